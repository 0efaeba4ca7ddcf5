package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/internal"
	"github.com/get-retrace/go-retrace/lifecycle"
	"github.com/get-retrace/go-retrace/postgres"
	"github.com/get-retrace/go-retrace/serde"
	"github.com/get-retrace/go-retrace/staterecord"
	"github.com/get-retrace/go-retrace/version"
)

func summaryRecord(total int64, flags lifecycle.Flags) staterecord.Record[*internal.EntrySummary] {
	return staterecord.Record[*internal.EntrySummary]{
		State: &internal.EntrySummary{Total: total},
		Version: version.Version{
			Number:    uint64(total),
			Timestamp: time.Date(2020, 7, 14, 12, 0, 0, 0, time.UTC),
		},
		Flags: flags,
	}
}

func TestStateStore(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()
	dsn := startDatabase(t)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	store := postgres.NewStateStore[eventlog.StringID, *internal.EntrySummary](
		pool,
		stringIDs(),
		serde.NewJSON(func() *internal.EntrySummary { return new(internal.EntrySummary) }),
	)

	t.Run("reading a missing record fails with ErrNotFound", func(t *testing.T) {
		_, err := store.Read(ctx, "missing")
		assert.ErrorIs(t, err, staterecord.ErrNotFound)
	})

	t.Run("writes upsert the previous record", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, "ledger", summaryRecord(1, lifecycle.Flags{})))
		require.NoError(t, store.Write(ctx, "ledger", summaryRecord(2, lifecycle.Flags{})))

		got, err := store.Read(ctx, "ledger")
		require.NoError(t, err)

		assert.Equal(t, int64(2), got.State.Total)
		assert.Equal(t, uint64(2), got.Version.Number)
		assert.True(t, got.Flags.IsActive())
	})

	t.Run("the index enumerates every record in id order", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, "archive", summaryRecord(3, lifecycle.Flags{Archived: true})))
		require.NoError(t, store.Write(ctx, "bin", summaryRecord(4, lifecycle.Flags{Deleted: true})))

		ids, err := store.Index(ctx)
		require.NoError(t, err)
		assert.Equal(t, []eventlog.StringID{"archive", "bin", "ledger"}, ids)
	})

	t.Run("queries filter on the lifecycle flags", func(t *testing.T) {
		active, err := store.ReadAll(ctx, staterecord.Query{})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, int64(2), active[0].State.Total)

		withArchived, err := store.ReadAll(ctx, staterecord.Query{IncludeArchived: true})
		require.NoError(t, err)
		assert.Len(t, withArchived, 2)

		all, err := store.ReadAll(ctx, staterecord.Query{IncludeArchived: true, IncludeDeleted: true})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}
