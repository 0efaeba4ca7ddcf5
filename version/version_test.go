package version_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/get-retrace/go-retrace/version"
)

func TestZero(t *testing.T) {
	v := version.Zero()

	assert.True(t, v.IsZero())
	assert.Equal(t, uint64(0), v.Number)

	next := v.Next(time.Now())
	assert.False(t, next.IsZero())
	assert.Equal(t, uint64(1), next.Number)
}

func TestCompare(t *testing.T) {
	now := time.Now()

	t.Run("the version number dominates", func(t *testing.T) {
		older := version.Version{Number: 1, Timestamp: now.Add(time.Hour)}
		newer := version.Version{Number: 2, Timestamp: now}

		assert.Equal(t, -1, older.Compare(newer))
		assert.Equal(t, 1, newer.Compare(older))
	})

	t.Run("the timestamp breaks ties between equal numbers", func(t *testing.T) {
		older := version.Version{Number: 3, Timestamp: now}
		newer := version.Version{Number: 3, Timestamp: now.Add(time.Second)}

		assert.Equal(t, -1, older.Compare(newer))
		assert.Equal(t, 1, newer.Compare(older))
	})

	t.Run("identical versions compare equal", func(t *testing.T) {
		v := version.Version{Number: 3, Timestamp: now}
		assert.Equal(t, 0, v.Compare(v))
	})
}

func TestCheckAdvance(t *testing.T) {
	now := time.Now()

	current := version.Version{Number: 4, Timestamp: now}

	t.Run("advancing forward is allowed", func(t *testing.T) {
		assert.NoError(t, version.CheckAdvance(current, current.Next(now)))
	})

	t.Run("replaying the same number is allowed", func(t *testing.T) {
		assert.NoError(t, version.CheckAdvance(current, current))
	})

	t.Run("moving backwards is a regression", func(t *testing.T) {
		err := version.CheckAdvance(current, version.Version{Number: 2, Timestamp: now})

		expected := version.RegressionError{Current: 4, Attempted: 2}
		assert.ErrorAs(t, err, &expected)
		assert.ErrorContains(t, err, "cannot move from version 4 back to version 2")
	})
}
