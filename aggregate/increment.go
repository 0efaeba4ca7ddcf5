package aggregate

import (
	"errors"
	"time"

	"github.com/get-retrace/go-retrace/event"
	"github.com/get-retrace/go-retrace/version"
)

// ErrMissingEventVersion is returned by the FromEvent strategy when the
// incoming Event carries no version to advance to.
var ErrMissingEventVersion = errors.New("aggregate: event carries no version to advance to")

// VersionIncrement is the policy advancing an Aggregate version as Events
// are played through a Transaction. The policy is chosen per entity kind,
// not per call.
//
// This is a sealed interface and implementations are only provided
// by this package.
type VersionIncrement interface {
	nextVersion(current version.Version, evt event.Event) (version.Version, error)
}

// FromEvent advances to exactly the version carried by the incoming Event,
// with no independent counting. This is the strategy used for Aggregates,
// whose Events intrinsically carry the revision they produced.
type FromEvent struct{}

func (FromEvent) nextVersion(_ version.Version, evt event.Event) (version.Version, error) {
	if evt.Version.IsZero() {
		return version.Zero(), ErrMissingEventVersion
	}

	return evt.Version, nil
}

// AutoIncrement advances to the current version number plus one, ignoring
// whatever version the incoming Event carries. This is the strategy used
// for entities without intrinsic event versioning, such as read-model
// projections.
type AutoIncrement struct{}

func (AutoIncrement) nextVersion(current version.Version, evt event.Event) (version.Version, error) {
	at := evt.Version.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	return current.Next(at), nil
}
