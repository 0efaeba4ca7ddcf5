// Package serde contains abstractions and implementations to serialize
// and deserialize the types used by the library, typically for crossing
// the boundary with a durable store.
package serde

// Serializer maps a Src type instance into a Dst type representation.
type Serializer[Src any, Dst any] interface {
	Serialize(src Src) (Dst, error)
}

// SerializerFunc is a functional implementation of the Serializer interface.
type SerializerFunc[Src any, Dst any] func(src Src) (Dst, error)

// Serialize implements the serde.Serializer interface.
func (fn SerializerFunc[Src, Dst]) Serialize(src Src) (Dst, error) { return fn(src) }

// Deserializer maps a Dst type representation back into a Src type instance.
type Deserializer[Src any, Dst any] interface {
	Deserialize(dst Dst) (Src, error)
}

// DeserializerFunc is a functional implementation of the Deserializer interface.
type DeserializerFunc[Src any, Dst any] func(dst Dst) (Src, error)

// Deserialize implements the serde.Deserializer interface.
func (fn DeserializerFunc[Src, Dst]) Deserialize(dst Dst) (Src, error) { return fn(dst) }

// Serde is both a Serializer and Deserializer between Src and Dst types.
type Serde[Src any, Dst any] interface {
	Serializer[Src, Dst]
	Deserializer[Src, Dst]
}

// Fused provides a convenient way to fuse a standalone Serializer
// and Deserializer pair into a Serde instance.
type Fused[Src any, Dst any] struct {
	Serializer[Src, Dst]
	Deserializer[Src, Dst]
}

// Fuse combines the provided Serializer and Deserializer into a Serde instance.
func Fuse[Src any, Dst any](
	serializer Serializer[Src, Dst],
	deserializer Deserializer[Src, Dst],
) Fused[Src, Dst] {
	return Fused[Src, Dst]{
		Serializer:   serializer,
		Deserializer: deserializer,
	}
}

// Bytes is a Serde specialization to serialize a Src type to and
// deserialize it from a byte array.
type Bytes[Src any] interface {
	Serde[Src, []byte]
}
