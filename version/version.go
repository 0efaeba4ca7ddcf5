// Package version exposes the Version value type used to identify
// the revision of an Aggregate, together with its validation rules.
package version

import (
	"fmt"
	"time"
)

// Version identifies a single revision of an Aggregate.
//
// The Number component is monotonically non-decreasing over the lifetime
// of an Aggregate. A Version value is never mutated in place: each advance
// produces a brand new value that replaces the previous one wholesale.
type Version struct {
	Number    uint64
	Timestamp time.Time
}

// Zero returns the initial Version of a freshly-created Aggregate.
func Zero() Version {
	return Version{}
}

// IsZero reports whether the Version is the initial, unadvanced one.
func (v Version) IsZero() bool {
	return v.Number == 0 && v.Timestamp.IsZero()
}

// Next returns the Version following the current one, recorded at the
// specified time.
func (v Version) Next(at time.Time) Version {
	return Version{
		Number:    v.Number + 1,
		Timestamp: at,
	}
}

// Compare orders two Versions by their Number first, using the Timestamp
// only to break ties between equal Numbers.
//
// It returns -1 if v is older than other, +1 if newer, 0 if equal.
func (v Version) Compare(other Version) int {
	switch {
	case v.Number < other.Number:
		return -1
	case v.Number > other.Number:
		return 1
	case v.Timestamp.Before(other.Timestamp):
		return -1
	case v.Timestamp.After(other.Timestamp):
		return 1
	default:
		return 0
	}
}

// RegressionError is returned when attempting to move an Aggregate
// to a Version with a lower Number than its current one.
type RegressionError struct {
	Current   uint64
	Attempted uint64
}

func (err RegressionError) Error() string {
	return fmt.Sprintf(
		"version: cannot move from version %d back to version %d",
		err.Current,
		err.Attempted,
	)
}

// CheckAdvance validates that moving from the current Version to the next
// one does not regress the version Number.
//
// A RegressionError is returned on violation. Advancing to the same Number
// is allowed, as replaying an identical revision is a harmless no-op.
func CheckAdvance(current, next Version) error {
	if next.Number < current.Number {
		return RegressionError{
			Current:   current.Number,
			Attempted: next.Number,
		}
	}

	return nil
}
