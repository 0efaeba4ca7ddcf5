package aggregate_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-retrace/go-retrace/aggregate"
	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/internal/account"
	"github.com/get-retrace/go-retrace/staterecord"
)

func newRepository(
	options ...aggregate.RepositoryOption[uuid.UUID, *account.Account],
) (*aggregate.Repository[uuid.UUID, *account.Account], *eventlog.InMemoryLog[uuid.UUID], *staterecord.InMemoryStore[uuid.UUID, *account.Account]) {
	log := eventlog.NewInMemoryLog[uuid.UUID]()
	states := staterecord.NewInMemoryStore[uuid.UUID, *account.Account]()

	repository := aggregate.NewRepository(
		account.Type,
		account.NewRegistry(),
		log,
		states,
		options...,
	)

	return repository, log, states
}

func TestRepositoryGetNotFound(t *testing.T) {
	repository, _, _ := newRepository()

	_, err := repository.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, aggregate.ErrRootNotFound)
}

func TestRepositorySaveAndGet(t *testing.T) {
	ctx := context.Background()
	repository, _, states := newRepository()

	id := uuid.New()
	root := aggregate.New(account.Type, id)

	require.NoError(t, repository.Save(ctx, root,
		openedEvent(id, 1),
		depositedEvent(2, 20),
		withdrawnEvent(3, 5),
	))

	assert.Equal(t, uint64(3), root.Version().Number)

	got, err := repository.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, got.State().ID)
	assert.Equal(t, "Jane Doe", got.State().Owner)
	assert.Equal(t, int64(15), got.State().Balance.GetUnits())
	assert.Equal(t, uint64(3), got.Version().Number)
	assert.True(t, got.IsActive())

	// Every save updates the materialized record as well.
	record, err := states.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), record.Version.Number)
	assert.Equal(t, int64(15), record.State.Balance.GetUnits())

	// Saving with no events is a no-op.
	assert.NoError(t, repository.Save(ctx, got))
	assert.Equal(t, uint64(3), got.Version().Number)
}

func TestRepositorySnapshotPolicy(t *testing.T) {
	ctx := context.Background()
	repository, log, _ := newRepository(
		aggregate.WithSnapshotPolicy[uuid.UUID, *account.Account](aggregate.AlwaysSnapshot{}),
	)

	id := uuid.New()
	root := aggregate.New(account.Type, id)

	require.NoError(t, repository.Save(ctx, root,
		openedEvent(id, 1),
		depositedEvent(2, 20),
	))

	history, err := log.Read(ctx, id)
	require.NoError(t, err)

	// The snapshot bounds the read: no events precede it.
	require.NotNil(t, history.Snapshot)
	assert.Equal(t, uint64(2), history.Snapshot.Version.Number)
	assert.Empty(t, history.Events)

	require.NoError(t, repository.Save(ctx, root, withdrawnEvent(3, 5)))

	got, err := repository.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), got.Version().Number)
	assert.Equal(t, int64(15), got.State().Balance.GetUnits())
}

func TestRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repository, _, states := newRepository()

	id := uuid.New()
	root := aggregate.New(account.Type, id)

	require.NoError(t, repository.Save(ctx, root,
		openedEvent(id, 1),
		depositedEvent(2, 20),
	))

	require.NoError(t, repository.Archive(ctx, root))
	assert.False(t, root.IsActive())

	// The archived flag is a materialized-record concern: it survives
	// a full rehydration.
	got, err := repository.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Flags().Archived)
	assert.Equal(t, int64(20), got.State().Balance.GetUnits())

	// The default query visibility excludes archived aggregates.
	records, err := states.ReadAll(ctx, staterecord.Query{})
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = states.ReadAll(ctx, staterecord.Query{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// Archiving an already-archived aggregate writes nothing new.
	require.NoError(t, repository.Archive(ctx, root))

	require.NoError(t, repository.Unarchive(ctx, root))
	assert.True(t, root.IsActive())

	require.NoError(t, repository.Delete(ctx, root))
	assert.True(t, root.Flags().Deleted)

	records, err = states.ReadAll(ctx, staterecord.Query{})
	require.NoError(t, err)
	assert.Empty(t, records)

	// Deletion raises a marker: the recorded history is left untouched.
	got, err = repository.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Flags().Deleted)
	assert.Equal(t, uint64(2), got.Version().Number)
}

func TestRepositoryIndex(t *testing.T) {
	ctx := context.Background()
	repository, _, _ := newRepository()

	first := uuid.New()
	second := uuid.New()

	firstRoot := aggregate.New(account.Type, first)
	require.NoError(t, repository.Save(ctx, firstRoot, openedEvent(first, 1)))

	secondRoot := aggregate.New(account.Type, second)
	require.NoError(t, repository.Save(ctx, secondRoot, openedEvent(second, 1)))

	index, err := repository.Index(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{first, second}, index)

	distinct, err := repository.DistinctIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{first, second}, distinct)
}
