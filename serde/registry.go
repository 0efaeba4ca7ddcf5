package serde

import (
	"fmt"

	"github.com/get-retrace/go-retrace/message"
)

// MessageRegistry maps message name identifiers to the serde used to decode
// the corresponding payload from its byte-array representation.
//
// The registry is built once at registration time from factory functions,
// so that decoding a persisted record does not require runtime reflection.
type MessageRegistry struct {
	factories map[string]func() message.Message
}

// NewMessageRegistry creates a new MessageRegistry.
//
// Payloads registered with the returned instance are encoded and decoded
// using JSON.
func NewMessageRegistry() *MessageRegistry {
	return &MessageRegistry{
		factories: make(map[string]func() message.Message),
	}
}

// Register adds type information to the registry for all the provided
// payload factory functions, keyed by the payload's name identifier.
//
// An error is returned if a factory returns nil, or if two different
// factories have been registered for the same message name.
func (r *MessageRegistry) Register(factories ...func() message.Message) error {
	for _, factory := range factories {
		msg := factory()
		if msg == nil {
			return fmt.Errorf("serde.MessageRegistry: factory returned a nil message")
		}

		name := msg.Name()
		if _, ok := r.factories[name]; ok {
			return fmt.Errorf("serde.MessageRegistry: message '%s' has already been registered", name)
		}

		r.factories[name] = factory
	}

	return nil
}

// Serialize encodes the provided payload, returning its byte-array
// representation together with the message name identifier to persist
// alongside it.
func (r *MessageRegistry) Serialize(msg message.Message) (string, []byte, error) {
	name := msg.Name()

	data, err := NewJSONSerializer[message.Message]().Serialize(msg)
	if err != nil {
		return "", nil, fmt.Errorf("serde.MessageRegistry: failed to serialize '%s', %w", name, err)
	}

	return name, data, nil
}

// Deserialize decodes a raw payload using the type registered under the
// supplied message name identifier.
func (r *MessageRegistry) Deserialize(name string, data []byte) (message.Message, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("serde.MessageRegistry: received unregistered message, '%s'", name)
	}

	msg, err := NewJSONDeserializer(factory).Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("serde.MessageRegistry: failed to deserialize '%s', %w", name, err)
	}

	return msg, nil
}
