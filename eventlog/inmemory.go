package eventlog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/get-retrace/go-retrace/event"
	"github.com/get-retrace/go-retrace/logger"
	"github.com/get-retrace/go-retrace/version"
)

// Interface implementation assertion.
var _ Log[StringID] = new(InMemoryLog[StringID])

// storedRecord pairs a Record with the monotonic sequence number assigned
// at insertion time, used as the final ordering tie-break.
type storedRecord struct {
	seq    uint64
	record Record
}

// InMemoryLog is a thread-safe, in-memory eventlog.Log implementation.
//
// Records are assigned an insertion sequence number, so that backward
// ordering is deterministic even for records sharing both version number
// and timestamp.
type InMemoryLog[I ID] struct {
	mx      sync.RWMutex
	closed  bool
	nextSeq uint64
	records map[I][]storedRecord
	log     logger.Logger
}

// InMemoryOption configures an InMemoryLog instance.
type InMemoryOption func(*inMemoryConfig)

type inMemoryConfig struct {
	logger logger.Logger
}

// WithLogger supplies the structured logger used to report maintenance
// operations, such as truncations.
func WithLogger(l logger.Logger) InMemoryOption {
	return func(cfg *inMemoryConfig) { cfg.logger = l }
}

// NewInMemoryLog creates a new InMemoryLog instance.
func NewInMemoryLog[I ID](options ...InMemoryOption) *InMemoryLog[I] {
	cfg := new(inMemoryConfig)
	for _, option := range options {
		option(cfg)
	}

	return &InMemoryLog[I]{
		records: make(map[I][]storedRecord),
		log:     cfg.logger,
	}
}

func (l *InMemoryLog[I]) checkOpen() error {
	if l.closed {
		return ErrClosed
	}

	return nil
}

// newerThan orders two stored records on the
// (version number, timestamp, insertion sequence) descending sort key.
func newerThan(a, b storedRecord) bool {
	av, bv := a.record.Version(), b.record.Version()

	if c := av.Compare(bv); c != 0 {
		return c > 0
	}

	return a.seq > b.seq
}

// olderThanVersion reports whether the record sorts strictly older than
// the provided version on the (number, timestamp) key.
func olderThanVersion(r Record, v version.Version) bool {
	return r.Version().Compare(v) < 0
}

// backward returns a newest-first copy of the Aggregate's records.
// Callers must hold at least a read lock.
func (l *InMemoryLog[I]) backward(id I) []storedRecord {
	records, ok := l.records[id]
	if !ok {
		return nil
	}

	sorted := make([]storedRecord, len(records))
	copy(sorted, records)

	sort.Slice(sorted, func(i, j int) bool {
		return newerThan(sorted[i], sorted[j])
	})

	return sorted
}

func (l *InMemoryLog[I]) append(id I, record Record) {
	l.records[id] = append(l.records[id], storedRecord{
		seq:    l.nextSeq,
		record: record,
	})
	l.nextSeq++
}

// Write implements the eventlog.Appender interface.
func (l *InMemoryLog[I]) Write(_ context.Context, id I, history event.History) error {
	l.mx.Lock()
	defer l.mx.Unlock()

	if err := l.checkOpen(); err != nil {
		return err
	}

	if len(history.Events) == 0 {
		return fmt.Errorf("eventlog.InMemoryLog: failed to write history for '%s', %w", id, ErrEmptyHistory)
	}

	for _, evt := range history.Events {
		l.append(id, EventRecord{Event: evt.StripMetadata()})
	}

	if history.Snapshot != nil {
		l.append(id, SnapshotRecord{Snapshot: *history.Snapshot})
	}

	return nil
}

// WriteEvent implements the eventlog.Appender interface.
func (l *InMemoryLog[I]) WriteEvent(_ context.Context, id I, evt event.Event) error {
	l.mx.Lock()
	defer l.mx.Unlock()

	if err := l.checkOpen(); err != nil {
		return err
	}

	l.append(id, EventRecord{Event: evt.StripMetadata()})

	return nil
}

// WriteSnapshot implements the eventlog.Appender interface.
func (l *InMemoryLog[I]) WriteSnapshot(_ context.Context, id I, snapshot event.Snapshot) error {
	l.mx.Lock()
	defer l.mx.Unlock()

	if err := l.checkOpen(); err != nil {
		return err
	}

	l.append(id, SnapshotRecord{Snapshot: snapshot})

	return nil
}

// Read implements the eventlog.Reader interface.
func (l *InMemoryLog[I]) Read(ctx context.Context, id I) (event.History, error) {
	return l.ReadBatch(ctx, id, DefaultSnapshotTrigger)
}

// ReadBatch implements the eventlog.Reader interface.
func (l *InMemoryLog[I]) ReadBatch(_ context.Context, id I, batchSize int) (event.History, error) {
	l.mx.RLock()
	defer l.mx.RUnlock()

	if err := l.checkOpen(); err != nil {
		return event.History{}, err
	}

	sorted := l.backward(id)
	if len(sorted) == 0 {
		return event.History{}, fmt.Errorf("eventlog.InMemoryLog: failed to read history for '%s', %w", id, ErrNotFound)
	}

	var history event.History

	// Walk newest-first, collecting events until a snapshot bounds the
	// replay depth or the batch budget is exhausted.
	for scanned, stored := range sorted {
		if scanned >= batchSize {
			break
		}

		switch record := stored.record.(type) {
		case SnapshotRecord:
			snapshot := record.Snapshot
			history.Snapshot = &snapshot
		case EventRecord:
			history.Events = append(history.Events, record.Event)
		}

		if history.Snapshot != nil {
			break
		}
	}

	// Events were collected newest-first; the History contract
	// is chronological.
	for i, j := 0, len(history.Events)-1; i < j; i, j = i+1, j-1 {
		history.Events[i], history.Events[j] = history.Events[j], history.Events[i]
	}

	return history, nil
}

// HistoryBackward implements the eventlog.Reader interface.
func (l *InMemoryLog[I]) HistoryBackward(
	ctx context.Context,
	records RecordStream,
	id I,
	batchSize int,
	startingFrom *version.Version,
) error {
	defer close(records)

	l.mx.RLock()

	if err := l.checkOpen(); err != nil {
		l.mx.RUnlock()
		return err
	}

	sorted := l.backward(id)
	l.mx.RUnlock()

	streamed := 0

	for _, stored := range sorted {
		if streamed >= batchSize {
			break
		}

		if startingFrom != nil && !olderThanVersion(stored.record, *startingFrom) {
			continue
		}

		select {
		case records <- stored.record:
			streamed++
		case <-ctx.Done():
			return fmt.Errorf("eventlog.InMemoryLog: context error, %w", ctx.Err())
		}
	}

	return nil
}

// DistinctIDs implements the eventlog.Reader interface.
func (l *InMemoryLog[I]) DistinctIDs(_ context.Context) ([]I, error) {
	l.mx.RLock()
	defer l.mx.RUnlock()

	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	ids := make([]I, 0, len(l.records))
	for id := range l.records {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})

	return ids, nil
}

// TruncateOlderThan implements the eventlog.Truncator interface.
func (l *InMemoryLog[I]) TruncateOlderThan(ctx context.Context, snapshotIndex int) error {
	return l.truncate(ctx, snapshotIndex, nil)
}

// TruncateOlderThanBefore implements the eventlog.Truncator interface.
func (l *InMemoryLog[I]) TruncateOlderThanBefore(ctx context.Context, snapshotIndex int, cutoff time.Time) error {
	return l.truncate(ctx, snapshotIndex, &cutoff)
}

func (l *InMemoryLog[I]) truncate(_ context.Context, snapshotIndex int, cutoff *time.Time) error {
	l.mx.Lock()
	defer l.mx.Unlock()

	if err := l.checkOpen(); err != nil {
		return err
	}

	if snapshotIndex < 0 {
		return fmt.Errorf("eventlog.InMemoryLog: failed to truncate, %w", ErrNegativeSnapshotIndex)
	}

	removed := 0

	for id := range l.records {
		removed += l.truncateAggregate(id, snapshotIndex, cutoff)
	}

	logger.Info(l.log, "eventlog: truncated records",
		logger.With("snapshot_index", snapshotIndex),
		logger.With("removed_records", removed),
	)

	return nil
}

// truncateAggregate removes the records of one Aggregate strictly older
// than its snapshotIndex-th latest snapshot, honoring the optional cutoff,
// and reports how many records were dropped. Callers must hold the
// write lock.
func (l *InMemoryLog[I]) truncateAggregate(id I, snapshotIndex int, cutoff *time.Time) int {
	sorted := l.backward(id)

	boundary := -1
	snapshots := 0

	for i, stored := range sorted {
		if _, ok := stored.record.(SnapshotRecord); !ok {
			continue
		}

		if snapshots == snapshotIndex {
			boundary = i
			break
		}

		snapshots++
	}

	if boundary < 0 {
		// Fewer than snapshotIndex+1 snapshots: leave this Aggregate untouched.
		return 0
	}

	drop := make(map[uint64]struct{})

	for _, stored := range sorted[boundary+1:] {
		if cutoff != nil && !stored.record.RecordedAt().Before(*cutoff) {
			continue
		}

		drop[stored.seq] = struct{}{}
	}

	if len(drop) == 0 {
		return 0
	}

	kept := make([]storedRecord, 0, len(l.records[id])-len(drop))

	for _, stored := range l.records[id] {
		if _, ok := drop[stored.seq]; !ok {
			kept = append(kept, stored)
		}
	}

	l.records[id] = kept

	return len(drop)
}

// Close marks the log as closed: every subsequent operation fails fast
// with ErrClosed. Closing an already-closed log is a no-op.
func (l *InMemoryLog[I]) Close() error {
	l.mx.Lock()
	defer l.mx.Unlock()

	l.closed = true

	return nil
}
