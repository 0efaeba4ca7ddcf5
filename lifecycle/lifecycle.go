// Package lifecycle exposes the archived/deleted markers controlling
// the visibility of an Aggregate to standard reads.
package lifecycle

import "fmt"

// Flags holds the lifecycle markers of an Aggregate.
//
// The zero value, with both markers cleared, represents an active Aggregate.
// Archiving or deleting an Aggregate only raises the corresponding marker:
// the recorded history is never destroyed by a lifecycle change.
type Flags struct {
	Archived bool
	Deleted  bool
}

// IsActive reports whether the Aggregate is visible to standard reads,
// which is the case only when both markers are cleared.
func (f Flags) IsActive() bool {
	return !f.Archived && !f.Deleted
}

// ModifyArchivedError is the rejection returned when domain logic attempts
// to modify an archived Aggregate.
//
// This is an expected, recoverable outcome carrying the Aggregate id,
// distinct from programming-error sentinels.
type ModifyArchivedError struct {
	ID string
}

func (err ModifyArchivedError) Error() string {
	return fmt.Sprintf("lifecycle: cannot modify archived entity '%s'", err.ID)
}

// ModifyDeletedError is the rejection returned when domain logic attempts
// to modify a deleted Aggregate.
type ModifyDeletedError struct {
	ID string
}

func (err ModifyDeletedError) Error() string {
	return fmt.Sprintf("lifecycle: cannot modify deleted entity '%s'", err.ID)
}

// CheckNotArchived returns a ModifyArchivedError rejection if the Archived
// marker is raised. Domain logic should call it before mutating state.
func CheckNotArchived(flags Flags, id fmt.Stringer) error {
	if flags.Archived {
		return ModifyArchivedError{ID: id.String()}
	}

	return nil
}

// CheckNotDeleted returns a ModifyDeletedError rejection if the Deleted
// marker is raised. Domain logic should call it before mutating state.
func CheckNotDeleted(flags Flags, id fmt.Stringer) error {
	if flags.Deleted {
		return ModifyDeletedError{ID: id.String()}
	}

	return nil
}
