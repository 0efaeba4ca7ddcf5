// Package staterecord exposes the materialized current-state store:
// a keyed store holding each Aggregate's latest committed state, version
// and lifecycle flags, distinct from the append-only Event Log.
//
// The materialized store is what enables fast Aggregate enumeration and
// filtering without replaying the raw log.
package staterecord

import (
	"context"
	"errors"

	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/lifecycle"
	"github.com/get-retrace/go-retrace/version"
)

// ErrNotFound is returned by a Store when no record has been written
// for the requested Aggregate.
var ErrNotFound = errors.New("staterecord: record not found")

// Record is the materialized view of one Aggregate: its latest committed
// state, the version that produced it, and its lifecycle flags.
type Record[S any] struct {
	State   S
	Version version.Version
	Flags   lifecycle.Flags
}

// Query filters the records returned by Store.ReadAll.
//
// The zero value selects active Aggregates only, matching the standard
// read visibility rule.
type Query struct {
	IncludeArchived bool
	IncludeDeleted  bool
}

// Matches reports whether a record with the provided lifecycle flags
// is selected by the query.
func (q Query) Matches(flags lifecycle.Flags) bool {
	if flags.Archived && !q.IncludeArchived {
		return false
	}

	if flags.Deleted && !q.IncludeDeleted {
		return false
	}

	return true
}

// Store is the materialized current-state store contract.
//
// A caller updates the Store explicitly via Write whenever an Aggregate
// transaction commits; the Store performs no replay on its own.
type Store[I eventlog.ID, S any] interface {
	// Write adds or overwrites the record for the specified Aggregate.
	Write(ctx context.Context, id I, record Record[S]) error

	// Read returns the record for the specified Aggregate,
	// or ErrNotFound if none has been written.
	Read(ctx context.Context, id I) (Record[S], error)

	// Index returns the identifiers of every Aggregate holding
	// a materialized record.
	Index(ctx context.Context) ([]I, error)

	// ReadAll returns every record selected by the provided query.
	ReadAll(ctx context.Context, query Query) ([]Record[S], error)
}
