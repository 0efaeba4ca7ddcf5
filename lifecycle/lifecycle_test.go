package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/lifecycle"
)

func TestIsActive(t *testing.T) {
	assert.True(t, lifecycle.Flags{}.IsActive())
	assert.False(t, lifecycle.Flags{Archived: true}.IsActive())
	assert.False(t, lifecycle.Flags{Deleted: true}.IsActive())
	assert.False(t, lifecycle.Flags{Archived: true, Deleted: true}.IsActive())
}

func TestCheckNotArchived(t *testing.T) {
	id := eventlog.StringID("ledger-1")

	assert.NoError(t, lifecycle.CheckNotArchived(lifecycle.Flags{}, id))

	err := lifecycle.CheckNotArchived(lifecycle.Flags{Archived: true}, id)

	expected := lifecycle.ModifyArchivedError{ID: "ledger-1"}
	assert.ErrorAs(t, err, &expected)
	assert.ErrorContains(t, err, "cannot modify archived entity 'ledger-1'")
}

func TestCheckNotDeleted(t *testing.T) {
	id := eventlog.StringID("ledger-1")

	assert.NoError(t, lifecycle.CheckNotDeleted(lifecycle.Flags{}, id))

	err := lifecycle.CheckNotDeleted(lifecycle.Flags{Deleted: true}, id)

	expected := lifecycle.ModifyDeletedError{ID: "ledger-1"}
	assert.ErrorAs(t, err, &expected)
	assert.ErrorContains(t, err, "cannot modify deleted entity 'ledger-1'")
}
