package aggregate

import "github.com/get-retrace/go-retrace/version"

// SnapshotPolicy advises a Repository on when to record a full-state
// Snapshot alongside the Events being written, bounding the replay depth
// of subsequent reads.
//
// Choose a policy considering the rate of updates of the Aggregate type
// you are trying to optimize.
type SnapshotPolicy interface {
	ShouldRecord(next version.Version) bool
}

// NeverSnapshot is a SnapshotPolicy that never records snapshots.
type NeverSnapshot struct{}

// ShouldRecord always returns false.
func (NeverSnapshot) ShouldRecord(version.Version) bool { return false }

// AlwaysSnapshot is a SnapshotPolicy that records a snapshot
// on every commit.
type AlwaysSnapshot struct{}

// ShouldRecord always returns true.
func (AlwaysSnapshot) ShouldRecord(version.Version) bool { return true }

// SnapshotEvery is a SnapshotPolicy that records a snapshot every time the
// version number crosses a multiple of this value.
//
// If the number used is SnapshotEvery(10), a snapshot is recorded at
// version 10, 20, 30 and so on.
type SnapshotEvery uint64

// ShouldRecord returns true when the version number is a non-zero multiple
// of the policy increment.
func (p SnapshotEvery) ShouldRecord(next version.Version) bool {
	if p == 0 {
		return false
	}

	return next.Number > 0 && next.Number%uint64(p) == 0
}
