// Package eventlog exposes the append-only Event Log abstraction:
// a per-Aggregate ordered log of Domain Event and Snapshot records,
// supporting newest-first paging, bounded-read reconstruction and
// snapshot-based truncation.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/get-retrace/go-retrace/event"
	"github.com/get-retrace/go-retrace/version"
)

// DefaultSnapshotTrigger is the default number of records scanned backward
// by Log.Read before giving up on finding a Snapshot.
const DefaultSnapshotTrigger = 100

// ID represents an Aggregate ID type.
//
// Aggregate IDs must be usable as map keys, and should be able to be
// marshaled into a string format, in order to be saved onto a named log.
type ID interface {
	comparable
	fmt.Stringer
}

// StringID is a string-typed Aggregate ID.
type StringID string

func (id StringID) String() string { return string(id) }

// All the errors returned by a Log implementation.
var (
	// ErrClosed is returned by every operation invoked after Close.
	ErrClosed = errors.New("eventlog: log is closed")

	// ErrNotFound is returned by Read when the Aggregate has no records.
	ErrNotFound = errors.New("eventlog: no records found for aggregate")

	// ErrEmptyHistory is returned by Write when the History carries no events.
	ErrEmptyHistory = errors.New("eventlog: cannot write a history with no events")

	// ErrNegativeSnapshotIndex is returned by the truncation operations
	// when the snapshot index is negative.
	ErrNegativeSnapshotIndex = errors.New("eventlog: snapshot index must not be negative")
)

// Record is the atomic unit of the Event Log: either a Domain Event
// or a full-state Snapshot.
//
// This is a sealed interface and implementations are only provided
// by this package.
type Record interface {
	// Version is the Aggregate revision the record was produced at.
	Version() version.Version

	// RecordedAt is the time the record was produced at.
	RecordedAt() time.Time

	isRecord()
}

// EventRecord is a Record holding a Domain Event.
type EventRecord struct {
	Event event.Event
}

// Version implements the eventlog.Record interface.
func (r EventRecord) Version() version.Version { return r.Event.Version }

// RecordedAt implements the eventlog.Record interface.
func (r EventRecord) RecordedAt() time.Time { return r.Event.RecordedAt() }

func (EventRecord) isRecord() {}

// SnapshotRecord is a Record holding a full-state Snapshot.
type SnapshotRecord struct {
	Snapshot event.Snapshot
}

// Version implements the eventlog.Record interface.
func (r SnapshotRecord) Version() version.Version { return r.Snapshot.Version }

// RecordedAt implements the eventlog.Record interface.
func (r SnapshotRecord) RecordedAt() time.Time { return r.Snapshot.RecordedAt() }

func (SnapshotRecord) isRecord() {}

// RecordStream is the write-only channel a Log streams Records onto
// during a HistoryBackward call.
type RecordStream chan<- Record

// RecordsToSlice synchronously exhausts a Record stream into a slice,
// and returns an error if the stream origin, passed here as a closure,
// fails with an error.
func RecordsToSlice(ctx context.Context, f func(ctx context.Context, records RecordStream) error) ([]Record, error) {
	ch := make(chan Record, 1)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return f(ctx, ch) })

	var records []Record
	for record := range ch {
		records = append(records, record)
	}

	return records, group.Wait()
}

// Appender is the write side of the Event Log.
type Appender[I ID] interface {
	// Write appends every Event in the History as an Event record, followed
	// by the Snapshot as a Snapshot record, when one is present.
	//
	// ErrEmptyHistory is returned if the History carries no events.
	// Existing records are never rewritten.
	Write(ctx context.Context, id I, history event.History) error

	// WriteEvent appends a single Event record; used for single-event
	// dispatch paths.
	WriteEvent(ctx context.Context, id I, evt event.Event) error

	// WriteSnapshot appends a Snapshot record.
	WriteSnapshot(ctx context.Context, id I, snapshot event.Snapshot) error
}

// Reader is the read side of the Event Log.
type Reader[I ID] interface {
	// Read is equivalent to ReadBatch with DefaultSnapshotTrigger
	// as the batch size.
	Read(ctx context.Context, id I) (event.History, error)

	// ReadBatch walks the Aggregate's records newest-first, collecting
	// events until either a Snapshot record is hit, or batchSize records
	// have been scanned; the collected records are returned as a
	// chronologically-ordered History.
	//
	// ErrNotFound is returned when the Aggregate has no records at all.
	ReadBatch(ctx context.Context, id I, batchSize int) (event.History, error)

	// HistoryBackward streams the Aggregate's records newest-first onto
	// the provided channel, up to batchSize records, optionally starting
	// strictly older than the startingFrom version.
	//
	// The channel is closed when streaming completes. An unknown Aggregate
	// produces an empty stream.
	HistoryBackward(
		ctx context.Context,
		records RecordStream,
		id I,
		batchSize int,
		startingFrom *version.Version,
	) error

	// DistinctIDs returns the identifiers of every Aggregate appearing
	// anywhere in the raw log.
	DistinctIDs(ctx context.Context) ([]I, error)
}

// Truncator is the destructive maintenance side of the Event Log.
//
// Truncation must not be invoked concurrently with reads or writes
// targeting the same Aggregate; callers are expected to coordinate.
type Truncator interface {
	// TruncateOlderThan removes, independently for every Aggregate, each
	// record strictly older than the Aggregate's snapshotIndex-th latest
	// Snapshot (counting from the latest, index 0). Aggregates with fewer
	// than snapshotIndex+1 snapshots are left untouched.
	//
	// ErrNegativeSnapshotIndex is returned for a negative index.
	TruncateOlderThan(ctx context.Context, snapshotIndex int) error

	// TruncateOlderThanBefore behaves like TruncateOlderThan, additionally
	// requiring each removed record to have been recorded before the
	// provided cutoff time.
	TruncateOlderThanBefore(ctx context.Context, snapshotIndex int, cutoff time.Time) error
}

// Log is the full Event Log contract.
//
// Records for one Aggregate are ordered newest-first using the
// (version number, timestamp, insertion sequence) descending sort key:
// the version number dominates, the timestamp only breaks ties between
// equal version numbers, and the insertion sequence makes the ordering
// deterministic for records sharing both.
//
// A Log has an explicit open/closed lifecycle: every operation invoked
// after Close fails fast with ErrClosed.
type Log[I ID] interface {
	Appender[I]
	Reader[I]
	Truncator

	Close() error
}

// FusedLog is a convenience type to fuse the separate Event Log interfaces
// where only part of the functionality needs to be extended, while keeping
// the rest of the behavior from another implementation.
type FusedLog[I ID] struct {
	Appender[I]
	Reader[I]
	Truncator

	CloseFunc func() error
}

// Close implements the eventlog.Log interface.
func (f FusedLog[I]) Close() error {
	if f.CloseFunc == nil {
		return nil
	}

	return f.CloseFunc()
}
