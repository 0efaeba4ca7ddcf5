package zaplogger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/get-retrace/go-retrace/logger"
	"github.com/get-retrace/go-retrace/zaplogger"
)

func TestWrap(t *testing.T) {
	core, observed := observer.New(zap.DebugLevel)
	wrapped := zaplogger.Wrap(zap.New(core))

	wrapped.Debug("debug entry")
	wrapped.Info("info entry", logger.With("key", "value"))
	wrapped.Error("error entry")

	entries := observed.All()
	assert.Len(t, entries, 3)

	assert.Equal(t, "info entry", entries[1].Message)
	assert.Equal(t, "value", entries[1].ContextMap()["key"])
}
