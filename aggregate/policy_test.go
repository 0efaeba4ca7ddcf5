package aggregate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/get-retrace/go-retrace/aggregate"
	"github.com/get-retrace/go-retrace/version"
)

func at(number uint64) version.Version {
	return version.Version{Number: number, Timestamp: time.Now()}
}

func TestSnapshotPolicies(t *testing.T) {
	t.Run("NeverSnapshot", func(t *testing.T) {
		assert.False(t, aggregate.NeverSnapshot{}.ShouldRecord(at(1)))
		assert.False(t, aggregate.NeverSnapshot{}.ShouldRecord(at(100)))
	})

	t.Run("AlwaysSnapshot", func(t *testing.T) {
		assert.True(t, aggregate.AlwaysSnapshot{}.ShouldRecord(at(1)))
		assert.True(t, aggregate.AlwaysSnapshot{}.ShouldRecord(at(100)))
	})

	t.Run("SnapshotEvery", func(t *testing.T) {
		policy := aggregate.SnapshotEvery(10)

		assert.False(t, policy.ShouldRecord(at(0)))
		assert.False(t, policy.ShouldRecord(at(9)))
		assert.True(t, policy.ShouldRecord(at(10)))
		assert.False(t, policy.ShouldRecord(at(11)))
		assert.True(t, policy.ShouldRecord(at(20)))

		assert.False(t, aggregate.SnapshotEvery(0).ShouldRecord(at(10)))
	})
}
