package staterecord_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/internal"
	"github.com/get-retrace/go-retrace/lifecycle"
	"github.com/get-retrace/go-retrace/staterecord"
	"github.com/get-retrace/go-retrace/version"
)

func record(total int64, flags lifecycle.Flags) staterecord.Record[*internal.EntrySummary] {
	return staterecord.Record[*internal.EntrySummary]{
		State:   &internal.EntrySummary{Total: total},
		Version: version.Version{Number: uint64(total), Timestamp: time.Now()},
		Flags:   flags,
	}
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := staterecord.NewInMemoryStore[eventlog.StringID, *internal.EntrySummary]()

	t.Run("reading a missing record fails with ErrNotFound", func(t *testing.T) {
		_, err := store.Read(ctx, "missing")
		assert.ErrorIs(t, err, staterecord.ErrNotFound)
	})

	t.Run("writes overwrite the previous record", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, "ledger", record(1, lifecycle.Flags{})))
		require.NoError(t, store.Write(ctx, "ledger", record(2, lifecycle.Flags{})))

		got, err := store.Read(ctx, "ledger")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.State.Total)
		assert.Equal(t, uint64(2), got.Version.Number)
	})

	t.Run("the index enumerates every record in id order", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, "archive", record(3, lifecycle.Flags{Archived: true})))
		require.NoError(t, store.Write(ctx, "bin", record(4, lifecycle.Flags{Deleted: true})))

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
