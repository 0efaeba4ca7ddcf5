package serde_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-retrace/go-retrace/internal"
	"github.com/get-retrace/go-retrace/message"
	"github.com/get-retrace/go-retrace/serde"
)

func TestMessageRegistry(t *testing.T) {
	t.Run("round trip through the registered type", func(t *testing.T) {
		registry := serde.NewMessageRegistry()

		require.NoError(t, registry.Register(
			func() message.Message { return new(internal.EntryRecorded) },
			func() message.Message { return new(internal.EntrySummary) },
		))

		entry := &internal.EntryRecorded{Value: 42}

		name, data, err := registry.Serialize(entry)
		require.NoError(t, err)
		assert.Equal(t, "EntryRecorded", name)

		got, err := registry.Deserialize(name, data)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
	})

	t.Run("unregistered names are rejected", func(t *testing.T) {
		registry := serde.NewMessageRegistry()

		_, err := registry.Deserialize("Unknown", []byte("{}"))
		assert.ErrorContains(t, err, "received unregistered message")
	})

	t.Run("nil factories are rejected", func(t *testing.T) {
		registry := serde.NewMessageRegistry()

		err := registry.Register(func() message.Message { return nil })
		assert.ErrorContains(t, err, "factory returned a nil message")
	})

	t.Run("double registration is rejected", func(t *testing.T) {
		registry := serde.NewMessageRegistry()

		factory := func() message.Message { return new(internal.EntryRecorded) }

		require.NoError(t, registry.Register(factory))
		assert.ErrorContains(t, registry.Register(factory), "already been registered")
	})
}
