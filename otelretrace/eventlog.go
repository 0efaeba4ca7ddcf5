package otelretrace

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/get-retrace/go-retrace/event"
	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/version"
)

// Attribute keys used by the InstrumentedLog instrumentation.
const (
	ErrorAttribute         attribute.Key = "error"
	AggregateIDAttribute   attribute.Key = "aggregate.id"
	NumEventsAttribute     attribute.Key = "eventlog.num_events"
	BatchSizeAttribute     attribute.Key = "eventlog.batch_size"
	SnapshotIndexAttribute attribute.Key = "eventlog.snapshot_index"
	HasSnapshotAttribute   attribute.Key = "eventlog.has_snapshot"
)

// InstrumentedLog is a wrapper type over an eventlog.Log instance to
// provide instrumentation, in the form of metrics and traces using
// OpenTelemetry.
//
// Use NewInstrumentedLog for constructing a new instance of this type.
type InstrumentedLog[I eventlog.ID] struct {
	log eventlog.Log[I]

	tracer           trace.Tracer
	writeDuration    metric.Int64Histogram
	readDuration     metric.Int64Histogram
	truncateDuration metric.Int64Histogram
}

func (il *InstrumentedLog[I]) registerMetrics(meter metric.Meter) error {
	var err error

	if il.writeDuration, err = meter.Int64Histogram(
		"retrace.eventlog.write.duration.milliseconds",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of eventlog.Log write operations performed."),
	); err != nil {
		return fmt.Errorf("otelretrace.InstrumentedLog: failed to register metric: %w", err)
	}

	if il.readDuration, err = meter.Int64Histogram(
		"retrace.eventlog.read.duration.milliseconds",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of eventlog.Log read operations performed."),
	); err != nil {
		return fmt.Errorf("otelretrace.InstrumentedLog: failed to register metric: %w", err)
	}

	if il.truncateDuration, err = meter.Int64Histogram(
		"retrace.eventlog.truncate.duration.milliseconds",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of eventlog.Log truncate operations performed."),
	); err != nil {
		return fmt.Errorf("otelretrace.InstrumentedLog: failed to register metric: %w", err)
	}

	return nil
}

// NewInstrumentedLog returns a wrapper type to provide OpenTelemetry
// instrumentation (metrics and traces) around an eventlog.Log.
//
// An error is returned if metrics could not be registered.
func NewInstrumentedLog[I eventlog.ID](log eventlog.Log[I], options ...Option) (*InstrumentedLog[I], error) {
	cfg := newConfig(options...)

	il := &InstrumentedLog[I]{
		log:    log,
		tracer: cfg.tracer(),
	}

	if err := il.registerMetrics(cfg.meter()); err != nil {
		return nil, err
	}

	return il, nil
}

func (il *InstrumentedLog[I]) observe(
	ctx context.Context,
	histogram metric.Int64Histogram,
	spanName string,
	attributes []attribute.KeyValue,
	op func(ctx context.Context) error,
) error {
	ctx, span := il.tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
	start := time.Now()

	err := op(ctx)

	duration := time.Since(start)
	histogram.Record(ctx, duration.Milliseconds(), metric.WithAttributes(ErrorAttribute.Bool(err != nil)))

	if err != nil {
		span.RecordError(err)
	}

	span.End()

	return err
}

// Write calls the wrapped eventlog.Log.Write method and records metrics
// and traces around it.
func (il *InstrumentedLog[I]) Write(ctx context.Context, id I, history event.History) error {
	attributes := []attribute.KeyValue{
		AggregateIDAttribute.String(id.String()),
		NumEventsAttribute.Int(len(history.Events)),
		HasSnapshotAttribute.Bool(history.Snapshot != nil),
	}

	return il.observe(ctx, il.writeDuration, "eventlog.Log.Write", attributes, func(ctx context.Context) error {
		return il.log.Write(ctx, id, history)
	})
}

// WriteEvent calls the wrapped eventlog.Log.WriteEvent method and records
// metrics and traces around it.
func (il *InstrumentedLog[I]) WriteEvent(ctx context.Context, id I, evt event.Event) error {
	attributes := []attribute.KeyValue{
		AggregateIDAttribute.String(id.String()),
	}

	return il.observe(ctx, il.writeDuration, "eventlog.Log.WriteEvent", attributes, func(ctx context.Context) error {
		return il.log.WriteEvent(ctx, id, evt)
	})
}

// WriteSnapshot calls the wrapped eventlog.Log.WriteSnapshot method and
// records metrics and traces around it.
func (il *InstrumentedLog[I]) WriteSnapshot(ctx context.Context, id I, snapshot event.Snapshot) error {
	attributes := []attribute.KeyValue{
		AggregateIDAttribute.String(id.String()),
	}

	return il.observe(ctx, il.writeDuration, "eventlog.Log.WriteSnapshot", attributes, func(ctx context.Context) error {
		return il.log.WriteSnapshot(ctx, id, snapshot)
	})
}

// Read calls the wrapped eventlog.Log.Read method and records metrics
// and traces around it.
func (il *InstrumentedLog[I]) Read(ctx context.Context, id I) (event.History, error) {
	return il.ReadBatch(ctx, id, eventlog.DefaultSnapshotTrigger)
}

// ReadBatch calls the wrapped eventlog.Log.ReadBatch method and records
// metrics and traces around it.
func (il *InstrumentedLog[I]) ReadBatch(ctx context.Context, id I, batchSize int) (event.History, error) {
	attributes := []attribute.KeyValue{
		AggregateIDAttribute.String(id.String()),
		BatchSizeAttribute.Int(batchSize),
	}

	var history event.History

	err := il.observe(ctx, il.readDuration, "eventlog.Log.ReadBatch", attributes, func(ctx context.Context) error {
		var err error
		history, err = il.log.ReadBatch(ctx, id, batchSize)

		return err
	})

	return history, err
}

// HistoryBackward calls the wrapped eventlog.Log.HistoryBackward method
// and records metrics and traces around it.
func (il *InstrumentedLog[I]) HistoryBackward(
	ctx context.Context,
	records eventlog.RecordStream,
	id I,
	batchSize int,
	startingFrom *version.Version,
) error {
	attributes := []attribute.KeyValue{
		AggregateIDAttribute.String(id.String()),
		BatchSizeAttribute.Int(batchSize),
	}

	return il.observe(ctx, il.readDuration, "eventlog.Log.HistoryBackward", attributes, func(ctx context.Context) error {
		return il.log.HistoryBackward(ctx, records, id, batchSize, startingFrom)
	})
}

// DistinctIDs calls the wrapped eventlog.Log.DistinctIDs method and records
// metrics and traces around it.
func (il *InstrumentedLog[I]) DistinctIDs(ctx context.Context) ([]I, error) {
	var ids []I

	err := il.observe(ctx, il.readDuration, "eventlog.Log.DistinctIDs", nil, func(ctx context.Context) error {
		var err error
		ids, err = il.log.DistinctIDs(ctx)

		return err
	})

	return ids, err
}

// TruncateOlderThan calls the wrapped eventlog.Log.TruncateOlderThan
// method and records metrics and traces around it.
func (il *InstrumentedLog[I]) TruncateOlderThan(ctx context.Context, snapshotIndex int) error {
	attributes := []attribute.KeyValue{
		SnapshotIndexAttribute.Int(snapshotIndex),
	}

	return il.observe(ctx, il.truncateDuration, "eventlog.Log.TruncateOlderThan", attributes,
		func(ctx context.Context) error {
			return il.log.TruncateOlderThan(ctx, snapshotIndex)
		})
}

// TruncateOlderThanBefore calls the wrapped
// eventlog.Log.TruncateOlderThanBefore method and records metrics and
// traces around it.
func (il *InstrumentedLog[I]) TruncateOlderThanBefore(ctx context.Context, snapshotIndex int, cutoff time.Time) error {
	attributes := []attribute.KeyValue{
		SnapshotIndexAttribute.Int(snapshotIndex),
	}

	return il.observe(ctx, il.truncateDuration, "eventlog.Log.TruncateOlderThanBefore", attributes,
		func(ctx context.Context) error {
			return il.log.TruncateOlderThanBefore(ctx, snapshotIndex, cutoff)
		})
}

// Close closes the wrapped eventlog.Log.
func (il *InstrumentedLog[I]) Close() error {
	return il.log.Close()
}

// Interface implementation assertion.
var _ eventlog.Log[eventlog.StringID] = new(InstrumentedLog[eventlog.StringID])
