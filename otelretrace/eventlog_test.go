package otelretrace_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/otelretrace"
)

// TestInstrumentedLog runs the full Event Log suite through the
// instrumentation decorator, asserting it is behavior-transparent.
func TestInstrumentedLog(t *testing.T) {
	suite.Run(t, eventlog.NewLogSuite(func() eventlog.Log[eventlog.StringID] {
		log, err := otelretrace.NewInstrumentedLog(
			eventlog.NewInMemoryLog[eventlog.StringID](),
			otelretrace.WithTracerProvider(tracenoop.NewTracerProvider()),
			otelretrace.WithMeterProvider(metricnoop.NewMeterProvider()),
		)
		require.NoError(t, err)

		return log
	}))
}
