// Package aggregate exposes the replay side of the library: Aggregate
// instances whose state is rebuilt by left-folding Domain Events through
// registered applier functions, under the discipline of a Transaction.
package aggregate

import (
	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/lifecycle"
	"github.com/get-retrace/go-retrace/version"
)

// State is the constraint for an Aggregate state type.
//
// A state type is a Message (so that full-state Snapshots can be recorded
// in the Event Log) and must know how to produce a deep copy of itself,
// used to seed the private builder of a Transaction.
type State[S any] interface {
	// Name returns the state type name identifier (message.Message).
	Name() string

	// CopyState returns a deep copy of the state, such that mutations
	// performed on the copy are not visible through the receiver.
	CopyState() S
}

// Type represents the type of an Aggregate, exposing the name of the
// Aggregate and a factory method to create new zero-valued instances
// of its state, without using reflection.
//
// If your state implementation uses pointers, make sure the factory
// returns a non-nil instance of the type.
type Type[I eventlog.ID, S State[S]] struct {
	Name    string
	Factory func() S
}

// Aggregate is a replay target: a Domain entity whose current state is
// derived from its recorded Event history.
//
// An Aggregate starts at version zero with cleared lifecycle flags, and is
// only ever mutated by committing a Transaction started against it.
type Aggregate[I eventlog.ID, S State[S]] struct {
	id      I
	state   S
	version version.Version
	flags   lifecycle.Flags

	// current is the single Transaction allowed to be active against
	// this instance at any time.
	current *Transaction[I, S]
}

// New creates a new Aggregate of the provided Type, at version zero,
// with both lifecycle flags cleared.
func New[I eventlog.ID, S State[S]](typ Type[I, S], id I) *Aggregate[I, S] {
	return &Aggregate[I, S]{
		id:      id,
		state:   typ.Factory(),
		version: version.Zero(),
	}
}

// ID returns the Aggregate identifier.
func (a *Aggregate[I, S]) ID() I { return a.id }

// State returns the last committed state of the Aggregate.
func (a *Aggregate[I, S]) State() S { return a.state }

// Version returns the last committed version of the Aggregate.
func (a *Aggregate[I, S]) Version() version.Version { return a.version }

// Flags returns the last committed lifecycle flags of the Aggregate.
func (a *Aggregate[I, S]) Flags() lifecycle.Flags { return a.flags }

// IsActive reports whether the Aggregate is visible to standard reads.
func (a *Aggregate[I, S]) IsActive() bool { return a.flags.IsActive() }

// CheckNotArchived returns a lifecycle.ModifyArchivedError rejection if the
// Aggregate has been archived. Domain logic should call it before mutating.
func (a *Aggregate[I, S]) CheckNotArchived() error {
	return lifecycle.CheckNotArchived(a.flags, a.id)
}

// CheckNotDeleted returns a lifecycle.ModifyDeletedError rejection if the
// Aggregate has been deleted. Domain logic should call it before mutating.
func (a *Aggregate[I, S]) CheckNotDeleted() error {
	return lifecycle.CheckNotDeleted(a.flags, a.id)
}
