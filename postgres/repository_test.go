package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/type/money"

	"github.com/get-retrace/go-retrace/aggregate"
	"github.com/get-retrace/go-retrace/event"
	"github.com/get-retrace/go-retrace/internal/account"
	"github.com/get-retrace/go-retrace/message"
	"github.com/get-retrace/go-retrace/postgres"
	"github.com/get-retrace/go-retrace/serde"
	"github.com/get-retrace/go-retrace/staterecord"
	"github.com/get-retrace/go-retrace/version"
)

func uuidIDs() serde.Fused[uuid.UUID, string] {
	return serde.Fuse(
		serde.SerializerFunc[uuid.UUID, string](func(id uuid.UUID) (string, error) {
			return id.String(), nil
		}),
		serde.DeserializerFunc[uuid.UUID, string](func(raw string) (uuid.UUID, error) {
			return uuid.Parse(raw)
		}),
	)
}

func accountEvent(number uint64, msg message.Message) event.Event {
	return event.Event{
		Version: version.Version{
			Number:    number,
			Timestamp: time.Date(2020, 7, 14, 12, 0, 0, 0, time.UTC).Add(time.Duration(number) * time.Minute),
		},
		Message: msg,
	}
}

// TestAggregateRepository exercises the full stack: an aggregate.Repository
// composed of a postgres-backed Event Log and materialized state store.
func TestAggregateRepository(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()
	dsn := startDatabase(t)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	registry := serde.NewMessageRegistry()
	require.NoError(t, registry.Register(
		func() message.Message { return new(account.Account) },
		func() message.Message { return new(account.Opened) },
		func() message.Message { return new(account.Deposited) },
		func() message.Message { return new(account.Withdrawn) },
	))

	log := postgres.NewStore(pool, uuidIDs(), registry)

	t.Cleanup(func() {
		require.NoError(t, log.Close())
	})

	states := postgres.NewStateStore[uuid.UUID, *account.Account](
		pool,
		uuidIDs(),
		serde.NewJSON(func() *account.Account { return new(account.Account) }),
	)

	repository := aggregate.NewRepository(
		account.Type,
		account.NewRegistry(),
		log,
		states,
		aggregate.WithSnapshotPolicy[uuid.UUID, *account.Account](aggregate.SnapshotEvery(2)),
	)

	id := uuid.New()

	_, err = repository.Get(ctx, id)
	assert.ErrorIs(t, err, aggregate.ErrRootNotFound)

	root := aggregate.New(account.Type, id)

	require.NoError(t, repository.Save(ctx, root,
		accountEvent(1, &account.Opened{ID: id, Owner: "Jane Doe", Currency: "USD"}),
		accountEvent(2, &account.Deposited{Amount: &money.Money{CurrencyCode: "USD", Units: 20}}),
	))

	require.NoError(t, repository.Save(ctx, root,
		accountEvent(3, &account.Withdrawn{Amount: &money.Money{CurrencyCode: "USD", Units: 5}}),
	))

	got, err := repository.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, got.State().ID)
	assert.Equal(t, "Jane Doe", got.State().Owner)
	assert.Equal(t, int64(15), got.State().Balance.GetUnits())
	assert.Equal(t, uint64(3), got.Version().Number)

	// The snapshot recorded at version 2 bounds the read.
	history, err := log.Read(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, history.Snapshot)
	assert.Equal(t, uint64(2), history.Snapshot.Version.Number)
	require.Len(t, history.Events, 1)

	// Lifecycle changes survive a full rehydration.
	require.NoError(t, repository.Archive(ctx, root))

	got, err = repository.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Flags().Archived)

	records, err := states.ReadAll(ctx, staterecord.Query{})
	require.NoError(t, err)
	assert.Empty(t, records)

	index, err := repository.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, index)
}
