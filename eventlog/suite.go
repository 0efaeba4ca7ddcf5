package eventlog

import (
	"context"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/get-retrace/go-retrace/event"
	"github.com/get-retrace/go-retrace/internal"
	"github.com/get-retrace/go-retrace/version"
)

// LogSuite is a full testing suite for an eventlog.Log implementation,
// asserting the ordering, bounded-read and truncation semantics every
// implementation must honor.
type LogSuite struct {
	suite.Suite

	logFactory func() Log[StringID]
	log        Log[StringID] // NOTE: this instance is initialized in SetupTest.
}

// NewLogSuite creates a new Event Log testing suite using the provided
// eventlog.Log factory.
func NewLogSuite(factory func() Log[StringID]) *LogSuite {
	ls := new(LogSuite)
	ls.logFactory = factory

	return ls
}

// SetupTest creates a new, fresh Event Log instance for each test in the suite.
func (ls *LogSuite) SetupTest() {
	ls.log = ls.logFactory()
}

// TearDownTest closes the Event Log instance used by the test.
func (ls *LogSuite) TearDownTest() {
	assert.NoError(ls.T(), ls.log.Close())
}

var suiteEpoch = time.Date(2020, 7, 14, 12, 0, 0, 0, time.UTC)

func suiteVersion(number uint64) version.Version {
	return version.Version{
		Number:    number,
		Timestamp: suiteEpoch.Add(time.Duration(number) * time.Minute),
	}
}

func suiteEvent(number uint64) event.Event {
	return event.Event{
		Version: suiteVersion(number),
		Message: &internal.EntryRecorded{Value: int64(number)},
	}
}

func suiteSnapshot(number uint64) event.Snapshot {
	return event.Snapshot{
		Version: suiteVersion(number),
		State:   &internal.EntrySummary{Total: int64(number)},
	}
}

func (ls *LogSuite) assertVersion(expected version.Version, got version.Version) {
	ls.T().Helper()

	assert.Equal(ls.T(), expected.Number, got.Number)
	assert.True(ls.T(), expected.Timestamp.Equal(got.Timestamp),
		"expected timestamp %v, got %v", expected.Timestamp, got.Timestamp)
}

func (ls *LogSuite) assertEvent(expected event.Event, got event.Event) {
	ls.T().Helper()

	ls.assertVersion(expected.Version, got.Version)
	assert.Equal(ls.T(), expected.Message, got.Message)
}

func (ls *LogSuite) backward(id StringID, batchSize int, startingFrom *version.Version) []Record {
	ls.T().Helper()

	records, err := RecordsToSlice(context.Background(), func(ctx context.Context, records RecordStream) error {
		return ls.log.HistoryBackward(ctx, records, id, batchSize, startingFrom)
	})
	require.NoError(ls.T(), err)

	return records
}

// TestReadEmpty asserts that reading an Aggregate with no records fails
// with ErrNotFound, while backward streaming yields an empty stream.
func (ls *LogSuite) TestReadEmpty() {
	t := ls.T()
	ctx := context.Background()

	_, err := ls.log.Read(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, ls.backward("nobody", DefaultSnapshotTrigger, nil))

	ids, err := ls.log.DistinctIDs(ctx)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

// TestWriteAndRead asserts the basic append-then-read round trip: events
// come back in chronological order, and empty histories are rejected.
func (ls *LogSuite) TestWriteAndRead() {
	t := ls.T()
	ctx := context.Background()

	err := ls.log.Write(ctx, "logbook", event.History{})
	assert.ErrorIs(t, err, ErrEmptyHistory)

	history := event.History{
		Events: []event.Event{suiteEvent(1), suiteEvent(2), suiteEvent(3)},
	}

	require.NoError(t, ls.log.Write(ctx, "logbook", history))

	read, err := ls.log.Read(ctx, "logbook")
	require.NoError(t, err)

	assert.Nil(t, read.Snapshot)
	require.Len(t, read.Events, 3)

	for i, expected := range history.Events {
		ls.assertEvent(expected, read.Events[i])
	}
}

// TestMetadataIsStripped asserts that in-flight enrichment annotations
// never reach the recorded history.
func (ls *LogSuite) TestMetadataIsStripped() {
	t := ls.T()
	ctx := context.Background()

	evt := suiteEvent(1)
	evt.Metadata = evt.Metadata.With("correlation_id", "fixture")

	require.NoError(t, ls.log.WriteEvent(ctx, "logbook", evt))

	read, err := ls.log.Read(ctx, "logbook")
	require.NoError(t, err)

	require.Len(t, read.Events, 1)
	assert.Nil(t, read.Events[0].Metadata)
}

// TestReadStopsAtSnapshot asserts the bounded-read rule: the backward walk
// collects events until the first Snapshot record, which becomes the
// replay base of the returned History.
func (ls *LogSuite) TestReadStopsAtSnapshot() {
	t := ls.T()
	ctx := context.Background()

	for number := uint64(1); number <= 5; number++ {
		require.NoError(t, ls.log.WriteEvent(ctx, "logbook", suiteEvent(number)))
	}

	require.NoError(t, ls.log.WriteSnapshot(ctx, "logbook", suiteSnapshot(5)))
	require.NoError(t, ls.log.WriteEvent(ctx, "logbook", suiteEvent(6)))
	require.NoError(t, ls.log.WriteEvent(ctx, "logbook", suiteEvent(7)))

	read, err := ls.log.Read(ctx, "logbook")
	require.NoError(t, err)

	require.NotNil(t, read.Snapshot)
	ls.assertVersion(suiteVersion(5), read.Snapshot.Version)
	assert.Equal(t, &internal.EntrySummary{Total: 5}, read.Snapshot.State)

	require.Len(t, read.Events, 2)
	ls.assertEvent(suiteEvent(6), read.Events[0])
	ls.assertEvent(suiteEvent(7), read.Events[1])

	// A batch budget smaller than the snapshot distance returns only the
	// scanned events, with no snapshot base.
	read, err = ls.log.ReadBatch(ctx, "logbook", 1)
	require.NoError(t, err)

	assert.Nil(t, read.Snapshot)
	require.Len(t, read.Events, 1)
	ls.assertEvent(suiteEvent(7), read.Events[0])
}

// TestHistoryBackward asserts the newest-first enumeration: events and
// snapshots interleaved on the same ordering key, with the insertion
// order breaking the tie between an event and the snapshot recorded
// at the same version.
func (ls *LogSuite) TestHistoryBackward() {
	t := ls.T()
	ctx := context.Background()

	for number := uint64(1); number <= 5; number++ {
		require.NoError(t, ls.log.WriteEvent(ctx, "logbook", suiteEvent(number)))
	}

	require.NoError(t, ls.log.WriteSnapshot(ctx, "logbook", suiteSnapshot(5)))
	require.NoError(t, ls.log.WriteEvent(ctx, "logbook", suiteEvent(6)))
	require.NoError(t, ls.log.WriteEvent(ctx, "logbook", suiteEvent(7)))

	records := ls.backward("logbook", DefaultSnapshotTrigger, nil)
	require.Len(t, records, 8)

	ls.assertEvent(suiteEvent(7), records[0].(EventRecord).Event)
	ls.assertEvent(suiteEvent(6), records[1].(EventRecord).Event)

	snapshot, ok := records[2].(SnapshotRecord)
	require.True(t, ok, "expected the snapshot to sort newer than the event sharing its version")
	ls.assertVersion(suiteVersion(5), snapshot.Snapshot.Version)

	for i, number := range []uint64{5, 4, 3, 2, 1} {
		ls.assertEvent(suiteEvent(number), records[3+i].(EventRecord).Event)
	}

	// The batch size caps how many records are streamed.
	records = ls.backward("logbook", 2, nil)
	require.Len(t, records, 2)
	ls.assertEvent(suiteEvent(7), records[0].(EventRecord).Event)
	ls.assertEvent(suiteEvent(6), records[1].(EventRecord).Event)

	// startingFrom resumes the walk strictly older than the given version.
	startingFrom := suiteVersion(6)
	records = ls.backward("logbook", DefaultSnapshotTrigger, &startingFrom)
	require.Len(t, records, 6)

	_, ok = records[0].(SnapshotRecord)
	assert.True(t, ok)
	ls.assertVersion(suiteVersion(5), records[0].Version())
}

// TestVersionDominatesTimestamp asserts that backward ordering is driven
// by the version number, with the timestamp only breaking ties.
func (ls *LogSuite) TestVersionDominatesTimestamp() {
	t := ls.T()
	ctx := context.Background()

	older := event.Event{
		Version: version.Version{Number: 1, Timestamp: suiteEpoch.Add(time.Hour)},
		Message: &internal.EntryRecorded{Value: 1},
	}
	newer := event.Event{
		Version: version.Version{Number: 2, Timestamp: suiteEpoch},
		Message: &internal.EntryRecorded{Value: 2},
	}

	require.NoError(t, ls.log.WriteEvent(ctx, "logbook", older))
	require.NoError(t, ls.log.WriteEvent(ctx, "logbook", newer))

	records := ls.backward("logbook", DefaultSnapshotTrigger, nil)
	require.Len(t, records, 2)

	assert.Equal(t, uint64(2), records[0].Version().Number)
	assert.Equal(t, uint64(1), records[1].Version().Number)
}

// TestOutOfOrderInsertion asserts that the version number drives the
// ordering even when records arrive out of version order: insertion
// order must not leak into the sort key beyond tie-breaking.
func (ls *LogSuite) TestOutOfOrderInsertion() {
	t := ls.T()
	ctx := context.Background()

	write := func(number uint64) {
		require.NoError(t, ls.log.WriteEvent(ctx, "logbook", event.Event{
			Version: version.Version{Number: number, Timestamp: suiteEpoch},
			Message: &internal.EntryRecorded{Value: int64(number)},
		}))
	}

	write(2)
	write(1)
	write(3)

	records := ls.backward("logbook", DefaultSnapshotTrigger, nil)
	require.Len(t, records, 3)

	for i, number := range []uint64{3, 2, 1} {
		assert.Equal(t, number, records[i].Version().Number)
	}

	// The bounded read walks the same ordering, so the returned history
	// is chronological regardless of insertion order.
	read, err := ls.log.Read(ctx, "logbook")
	require.NoError(t, err)
	require.Len(t, read.Events, 3)

	for i, number := range []uint64{1, 2, 3} {
		assert.Equal(t, number, read.Events[i].Version.Number)
	}
}

// suiteTruncationFixture records the E1 E2 S2 E3 E4 S4 E5 layout used
// by the truncation tests.
func (ls *LogSuite) suiteTruncationFixture(ctx context.Context, id StringID) {
	t := ls.T()

	require.NoError(t, ls.log.WriteEvent(ctx, id, suiteEvent(1)))
	require.NoError(t, ls.log.WriteEvent(ctx, id, suiteEvent(2)))
	require.NoError(t, ls.log.WriteSnapshot(ctx, id, suiteSnapshot(2)))
	require.NoError(t, ls.log.WriteEvent(ctx, id, suiteEvent(3)))
	require.NoError(t, ls.log.WriteEvent(ctx, id, suiteEvent(4)))
	require.NoError(t, ls.log.WriteSnapshot(ctx, id, suiteSnapshot(4)))
	require.NoError(t, ls.log.WriteEvent(ctx, id, suiteEvent(5)))
}

// TestTruncateOlderThanLatest asserts that truncating against the latest
// snapshot keeps only the snapshot itself and the records following it,
// leaving snapshot-less Aggregates untouched.
func (ls *LogSuite) TestTruncateOlderThanLatest() {
	t := ls.T()
	ctx := context.Background()

	ls.suiteTruncationFixture(ctx, "logbook")
	require.NoError(t, ls.log.WriteEvent(ctx, "bare", suiteEvent(1)))

	assert.ErrorIs(t, ls.log.TruncateOlderThan(ctx, -1), ErrNegativeSnapshotIndex)

	require.NoError(t, ls.log.TruncateOlderThan(ctx, 0))

	records := ls.backward("logbook", DefaultSnapshotTrigger, nil)
	require.Len(t, records, 2)

	ls.assertEvent(suiteEvent(5), records[0].(EventRecord).Event)

	snapshot, ok := records[1].(SnapshotRecord)
	require.True(t, ok)
	ls.assertVersion(suiteVersion(4), snapshot.Snapshot.Version)

	// The snapshot-less aggregate must be left untouched.
	bare := ls.backward("bare", DefaultSnapshotTrigger, nil)
	require.Len(t, bare, 1)
}

// TestTruncateOlderThanPrevious asserts the snapshot index semantics:
// index 1 preserves everything from the second-latest snapshot onwards.
func (ls *LogSuite) TestTruncateOlderThanPrevious() {
	t := ls.T()
	ctx := context.Background()

	ls.suiteTruncationFixture(ctx, "logbook")

	require.NoError(t, ls.log.TruncateOlderThan(ctx, 1))

	records := ls.backward("logbook", DefaultSnapshotTrigger, nil)
	require.Len(t, records, 5)

	snapshot, ok := records[4].(SnapshotRecord)
	require.True(t, ok, "expected the second-latest snapshot to be the oldest surviving record")
	ls.assertVersion(suiteVersion(2), snapshot.Snapshot.Version)

	// An index pointing past the recorded snapshots is a no-op.
	require.NoError(t, ls.log.TruncateOlderThan(ctx, 2))
	assert.Len(t, ls.backward("logbook", DefaultSnapshotTrigger, nil), 5)
}

// TestTruncateOlderThanBefore asserts that the cutoff bound further
// restricts the removal to records recorded before it.
func (ls *LogSuite) TestTruncateOlderThanBefore() {
	t := ls.T()
	ctx := context.Background()

	ls.suiteTruncationFixture(ctx, "logbook")

	// Only E1 is both older than the latest snapshot and recorded
	// before the cutoff.
	cutoff := suiteVersion(2).Timestamp

	require.NoError(t, ls.log.TruncateOlderThanBefore(ctx, 0, cutoff))

	records := ls.backward("logbook", DefaultSnapshotTrigger, nil)
	require.Len(t, records, 6)
	ls.assertVersion(suiteVersion(2), records[len(records)-1].Version())
}

// TestDistinctIDs asserts that every Aggregate appearing in the raw log
// is enumerated, in lexicographic id order.
func (ls *LogSuite) TestDistinctIDs() {
	t := ls.T()
	ctx := context.Background()

	require.NoError(t, ls.log.WriteEvent(ctx, "second", suiteEvent(1)))
	require.NoError(t, ls.log.WriteEvent(ctx, "first", suiteEvent(1)))
	require.NoError(t, ls.log.WriteEvent(ctx, "second", suiteEvent(2)))

	ids, err := ls.log.DistinctIDs(ctx)
	require.NoError(t, err)

	assert.Equal(t, []StringID{"first", "second"}, ids)
}

// TestClosedLog asserts the open/closed lifecycle: every operation invoked
// after Close fails fast with ErrClosed, and Close is idempotent.
func (ls *LogSuite) TestClosedLog() {
	t := ls.T()
	ctx := context.Background()

	require.NoError(t, ls.log.WriteEvent(ctx, "logbook", suiteEvent(1)))
	require.NoError(t, ls.log.Close())

	assert.ErrorIs(t, ls.log.WriteEvent(ctx, "logbook", suiteEvent(2)), ErrClosed)

	// The closed check dominates argument validation: an empty history or
	// a negative snapshot index still reports ErrClosed.
	assert.ErrorIs(t, ls.log.Write(ctx, "logbook", event.History{}), ErrClosed)
	assert.ErrorIs(t, ls.log.TruncateOlderThan(ctx, -1), ErrClosed)

	_, err := ls.log.Read(ctx, "logbook")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = ls.log.DistinctIDs(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, ls.log.TruncateOlderThan(ctx, 0), ErrClosed)

	_, err = RecordsToSlice(ctx, func(ctx context.Context, records RecordStream) error {
		return ls.log.HistoryBackward(ctx, records, "logbook", DefaultSnapshotTrigger, nil)
	})
	assert.ErrorIs(t, err, ErrClosed)

	assert.NoError(t, ls.log.Close())
}
