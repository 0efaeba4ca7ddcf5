package serde

import (
	"encoding/json"
	"fmt"
)

// NewJSONSerializer returns a serializer that marshals the source type
// into its JSON byte-array form using encoding/json.
func NewJSONSerializer[T any]() SerializerFunc[T, []byte] {
	return func(t T) ([]byte, error) {
		data, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("serde.JSON: failed to serialize data, %w", err)
		}

		return data, nil
	}
}

// NewJSONDeserializer returns a deserializer that unmarshals a JSON
// byte-array back into the destination type.
//
// The factory provides the fresh instance each payload is decoded into,
// which matters when the destination type uses pointer semantics.
func NewJSONDeserializer[T any](factory func() T) DeserializerFunc[T, []byte] {
	return func(data []byte) (T, error) {
		var zeroValue T

		model := factory()
		if err := json.Unmarshal(data, &model); err != nil {
			return zeroValue, fmt.Errorf("serde.JSON: failed to deserialize data, %w", err)
		}

		return model, nil
	}
}

// NewJSON fuses the JSON serializer and deserializer for the type into
// a single serde instance.
func NewJSON[T any](factory func() T) Fused[T, []byte] {
	return Fuse(
		NewJSONSerializer[T](),
		NewJSONDeserializer(factory),
	)
}
