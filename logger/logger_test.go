package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/get-retrace/go-retrace/logger"
)

type recordingLogger struct {
	entries []string
}

func (l *recordingLogger) Debug(msg string, _ ...logger.Field) { l.entries = append(l.entries, msg) }
func (l *recordingLogger) Info(msg string, _ ...logger.Field)  { l.entries = append(l.entries, msg) }
func (l *recordingLogger) Error(msg string, _ ...logger.Field) { l.entries = append(l.entries, msg) }

func TestNilSafeHelpers(t *testing.T) {
	// The helpers must tolerate components configured without a logger.
	assert.NotPanics(t, func() {
		logger.Debug(nil, "debug")
		logger.Info(nil, "info")
		logger.Error(nil, "error")
	})

	recorder := new(recordingLogger)

	logger.Debug(recorder, "debug", logger.With("key", "value"))
	logger.Info(recorder, "info")
	logger.Error(recorder, "error")

	assert.Equal(t, []string{"debug", "info", "error"}, recorder.entries)
}
