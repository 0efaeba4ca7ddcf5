// Package otelretrace provides extension components to instrument the
// library using OpenTelemetry, in the form of metrics and traces.
package otelretrace

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/get-retrace/go-retrace/otelretrace"

type config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

func (cfg config) tracer() trace.Tracer {
	return cfg.tracerProvider.Tracer(instrumentationName)
}

func (cfg config) meter() metric.Meter {
	return cfg.meterProvider.Meter(instrumentationName)
}

// Option allows to customize the instrumentation provided by this package.
type Option interface {
	apply(cfg config) config
}

type optionFunc func(cfg config) config

func (fn optionFunc) apply(cfg config) config { return fn(cfg) }

// WithTracerProvider overrides the trace.TracerProvider used by the
// instrumentation; the global provider is used by default.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return optionFunc(func(cfg config) config {
		cfg.tracerProvider = provider
		return cfg
	})
}

// WithMeterProvider overrides the metric.MeterProvider used by the
// instrumentation; the global provider is used by default.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return optionFunc(func(cfg config) config {
		cfg.meterProvider = provider
		return cfg
	})
}

func newConfig(options ...Option) config {
	cfg := config{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}

	for _, option := range options {
		cfg = option.apply(cfg)
	}

	return cfg
}
