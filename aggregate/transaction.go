package aggregate

import (
	"errors"
	"fmt"

	"github.com/get-retrace/go-retrace/event"
	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/lifecycle"
	"github.com/get-retrace/go-retrace/version"
)

// All the errors returned by Transaction operations.
var (
	// ErrTransactionNotActive is returned by every mutating Transaction
	// method invoked while the Transaction is not active.
	ErrTransactionNotActive = errors.New("aggregate: transaction is not active")

	// ErrTransactionActive is returned when starting a Transaction against
	// an Aggregate that already has one active.
	ErrTransactionActive = errors.New("aggregate: another transaction is already active on this aggregate")

	// ErrTransactionCommitted is returned by Transaction methods invoked
	// after the Transaction has been committed.
	ErrTransactionCommitted = errors.New("aggregate: transaction has already been committed")

	// ErrWrongAggregate is returned when a Transaction constructed around
	// one Aggregate instance is attached to a different one.
	ErrWrongAggregate = errors.New("aggregate: transaction wraps a different aggregate")
)

type transactionPhase int

const (
	transactionNotStarted transactionPhase = iota
	transactionActive
	transactionCommitted
	transactionDiscarded
)

// Transaction is the scoped replay and mutation context for one dispatch
// cycle against one Aggregate instance.
//
// A Transaction moves through NotStarted, Active and Committed phases.
// There is no rollback phase: a Transaction that is discarded without
// committing leaves the wrapped Aggregate's state, version and flags
// unchanged, as every mutation happens on a private builder.
//
// A Transaction is ephemeral and must never be persisted or shared.
type Transaction[I eventlog.ID, S State[S]] struct {
	aggregate *Aggregate[I, S]
	registry  *Registry[S]
	strategy  VersionIncrement

	phase transactionPhase

	builder    S
	version    version.Version
	flags      lifecycle.Flags
	startFlags lifecycle.Flags

	stateChanged bool
}

// NewTransaction constructs a Transaction around the provided Aggregate
// instance, in the NotStarted phase. Use Aggregate.Attach (or the Begin
// shorthand) to activate it.
func NewTransaction[I eventlog.ID, S State[S]](
	agg *Aggregate[I, S],
	registry *Registry[S],
	strategy VersionIncrement,
) *Transaction[I, S] {
	return &Transaction[I, S]{
		aggregate: agg,
		registry:  registry,
		strategy:  strategy,
	}
}

// Attach activates the provided Transaction against the Aggregate, seeding
// its private builder with a deep copy of the last committed state.
//
// ErrWrongAggregate is returned when the Transaction was constructed around
// a different Aggregate instance, preventing a Transaction from being
// shared or hijacked across two instances. ErrTransactionActive is returned
// when another Transaction is already active on the Aggregate.
func (a *Aggregate[I, S]) Attach(tx *Transaction[I, S]) error {
	if tx.aggregate != a {
		return ErrWrongAggregate
	}

	switch tx.phase {
	case transactionActive:
		return ErrTransactionActive
	case transactionCommitted:
		return ErrTransactionCommitted
	case transactionDiscarded:
		return ErrTransactionNotActive
	case transactionNotStarted:
	}

	if a.current != nil {
		return ErrTransactionActive
	}

	tx.builder = a.state.CopyState()
	tx.version = a.version
	tx.flags = a.flags
	tx.startFlags = a.flags
	tx.phase = transactionActive
	a.current = tx

	return nil
}

// Begin constructs and activates a new Transaction against the provided
// Aggregate instance.
func Begin[I eventlog.ID, S State[S]](
	agg *Aggregate[I, S],
	registry *Registry[S],
	strategy VersionIncrement,
) (*Transaction[I, S], error) {
	tx := NewTransaction(agg, registry, strategy)

	if err := agg.Attach(tx); err != nil {
		return nil, err
	}

	return tx, nil
}

func (tx *Transaction[I, S]) checkActive() error {
	switch tx.phase {
	case transactionActive:
		return nil
	case transactionCommitted:
		return ErrTransactionCommitted
	default:
		return ErrTransactionNotActive
	}
}

// Builder returns the mutable state builder of the Transaction.
//
// This is the only way appliers and domain logic may mutate state within
// the dispatch cycle; the builder is private to the Transaction and is
// published onto the Aggregate only by Commit.
func (tx *Transaction[I, S]) Builder() (S, error) {
	var zeroValue S

	if err := tx.checkActive(); err != nil {
		return zeroValue, err
	}

	return tx.builder, nil
}

// Version returns the version the Transaction has advanced to so far.
func (tx *Transaction[I, S]) Version() version.Version { return tx.version }

// Apply plays a single Event against the builder: the applier registered
// for the Event's message type is invoked, the version is advanced using
// the configured VersionIncrement strategy, and the state-changed bit
// is raised.
//
// A version regression fails with version.RegressionError before the
// builder is touched.
func (tx *Transaction[I, S]) Apply(evt event.Event) error {
	if err := tx.checkActive(); err != nil {
		return err
	}

	next, stateChanged, err := applyEvent(tx.builder, tx.version, evt, tx.registry, tx.strategy)
	if err != nil {
		return err
	}

	tx.version = next
	tx.stateChanged = tx.stateChanged || stateChanged

	return nil
}

// Play applies the provided Events strictly in the order given;
// no reordering, no skipping. It stops at the first failure.
func (tx *Transaction[I, S]) Play(events ...event.Event) error {
	for _, evt := range events {
		if err := tx.Apply(evt); err != nil {
			return err
		}
	}

	return nil
}

// SetArchived raises or clears the pending Archived lifecycle flag.
// The change is not visible on the Aggregate until Commit.
func (tx *Transaction[I, S]) SetArchived(archived bool) error {
	if err := tx.checkActive(); err != nil {
		return err
	}

	tx.flags.Archived = archived

	return nil
}

// SetDeleted raises or clears the pending Deleted lifecycle flag.
// The change is not visible on the Aggregate until Commit.
func (tx *Transaction[I, S]) SetDeleted(deleted bool) error {
	if err := tx.checkActive(); err != nil {
		return err
	}

	tx.flags.Deleted = deleted

	return nil
}

// StateChanged reports whether at least one applier ran successfully
// during this Transaction.
func (tx *Transaction[I, S]) StateChanged() bool { return tx.stateChanged }

// LifecycleChanged reports whether the pending lifecycle flags differ from
// the flags at Transaction start. Tracked independently of StateChanged,
// so a repository can persist an Aggregate that only toggled a flag.
func (tx *Transaction[I, S]) LifecycleChanged() bool { return tx.flags != tx.startFlags }

// Commit atomically publishes the builder-derived state, the final version
// and the final lifecycle flags onto the Aggregate, then releases ownership
// so that a future Transaction may be started.
//
// Committing twice, or invoking any mutating method afterwards, fails with
// ErrTransactionCommitted.
func (tx *Transaction[I, S]) Commit() error {
	if err := tx.checkActive(); err != nil {
		return err
	}

	if tx.aggregate.current != tx {
		return ErrWrongAggregate
	}

	tx.aggregate.state = tx.builder
	tx.aggregate.version = tx.version
	tx.aggregate.flags = tx.flags
	tx.aggregate.current = nil
	tx.phase = transactionCommitted

	return nil
}

// Discard abandons the Transaction, releasing Aggregate ownership without
// publishing any of the pending changes. Discarding a non-active
// Transaction is a no-op.
func (tx *Transaction[I, S]) Discard() {
	if tx.phase != transactionActive {
		return
	}

	if tx.aggregate.current == tx {
		tx.aggregate.current = nil
	}

	tx.phase = transactionDiscarded
}

// restore seeds the Transaction builder and version from a Snapshot,
// bounding how much history needs to be replayed afterwards.
func (tx *Transaction[I, S]) restore(snapshot event.Snapshot) error {
	if err := tx.checkActive(); err != nil {
		return err
	}

	state, ok := snapshot.State.(S)
	if !ok {
		return fmt.Errorf("aggregate.Transaction: snapshot state is of unexpected type %T", snapshot.State)
	}

	tx.builder = state.CopyState()
	tx.version = snapshot.Version

	return nil
}

// restoreFlags seeds both the pending and the starting lifecycle flags,
// so that rehydration does not report a lifecycle change.
func (tx *Transaction[I, S]) restoreFlags(flags lifecycle.Flags) {
	tx.flags = flags
	tx.startFlags = flags
}
