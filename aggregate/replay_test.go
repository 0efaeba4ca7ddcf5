package aggregate_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-retrace/go-retrace/aggregate"
	"github.com/get-retrace/go-retrace/event"
	"github.com/get-retrace/go-retrace/internal/account"
	"github.com/get-retrace/go-retrace/version"
)

func TestReplay(t *testing.T) {
	registry := account.NewRegistry()
	id := uuid.New()

	t.Run("folds the events over a copy of the input state", func(t *testing.T) {
		state := new(account.Account)

		outcome, err := aggregate.Replay(
			state,
			version.Zero(),
			[]event.Event{
				openedEvent(id, 1),
				depositedEvent(2, 20),
				withdrawnEvent(3, 5),
			},
			registry,
			aggregate.FromEvent{},
		)
		require.NoError(t, err)

		assert.True(t, outcome.StateChanged)
		assert.Equal(t, uint64(3), outcome.Version.Number)
		assert.Equal(t, int64(15), outcome.State.Balance.GetUnits())

		// The input state must be left untouched.
		assert.Empty(t, state.Owner)
		assert.Nil(t, state.Balance)
	})

	t.Run("replaying no events changes nothing", func(t *testing.T) {
		outcome, err := aggregate.Replay(
			new(account.Account),
			version.Zero(),
			nil,
			registry,
			aggregate.FromEvent{},
		)
		require.NoError(t, err)

		assert.False(t, outcome.StateChanged)
		assert.True(t, outcome.Version.IsZero())
	})

	t.Run("a regression fails the whole replay", func(t *testing.T) {
		_, err := aggregate.Replay(
			new(account.Account),
			version.Zero(),
			[]event.Event{
				openedEvent(id, 2),
				depositedEvent(1, 10),
			},
			registry,
			aggregate.FromEvent{},
		)

		expected := version.RegressionError{Current: 2, Attempted: 1}
		assert.ErrorAs(t, err, &expected)
	})
}
