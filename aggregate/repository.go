package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/get-retrace/go-retrace/event"
	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/staterecord"
)

// ErrRootNotFound is returned by Repository.Get when no records for the
// specified Aggregate have been found.
var ErrRootNotFound = errors.New("aggregate.Repository: aggregate root not found")

// Repository retrieves and saves Aggregates, composing an append-only
// Event Log with a materialized current-state store.
//
// The Event Log is the source of truth; the state store is the projection
// used for fast enumeration and filtering, updated on every commit.
//
// Use NewRepository to create a new instance of this type.
type Repository[I eventlog.ID, S State[S]] struct {
	typ      Type[I, S]
	registry *Registry[S]
	log      eventlog.Log[I]
	states   staterecord.Store[I, S]
	strategy VersionIncrement
	policy   SnapshotPolicy
}

// RepositoryOption configures a Repository instance.
type RepositoryOption[I eventlog.ID, S State[S]] func(*Repository[I, S])

// WithVersionIncrement overrides the version-advance strategy used when
// replaying Events. The default is FromEvent.
func WithVersionIncrement[I eventlog.ID, S State[S]](strategy VersionIncrement) RepositoryOption[I, S] {
	return func(r *Repository[I, S]) { r.strategy = strategy }
}

// WithSnapshotPolicy overrides the policy deciding when a full-state
// Snapshot is recorded on save. The default records a snapshot every
// eventlog.DefaultSnapshotTrigger versions.
func WithSnapshotPolicy[I eventlog.ID, S State[S]](policy SnapshotPolicy) RepositoryOption[I, S] {
	return func(r *Repository[I, S]) { r.policy = policy }
}

// NewRepository creates a Repository for the provided Aggregate Type, using
// the supplied applier Registry, Event Log and materialized state store.
func NewRepository[I eventlog.ID, S State[S]](
	typ Type[I, S],
	registry *Registry[S],
	log eventlog.Log[I],
	states staterecord.Store[I, S],
	options ...RepositoryOption[I, S],
) *Repository[I, S] {
	repo := &Repository[I, S]{
		typ:      typ,
		registry: registry,
		log:      log,
		states:   states,
		strategy: FromEvent{},
		policy:   SnapshotEvery(eventlog.DefaultSnapshotTrigger),
	}

	for _, option := range options {
		option(repo)
	}

	return repo
}

// Get retrieves the Aggregate identified by the provided id, rebuilding its
// current state by replaying the history read from the Event Log through
// a fresh Transaction.
//
// ErrRootNotFound is returned if the Event Log has no records for the id.
func (r *Repository[I, S]) Get(ctx context.Context, id I) (*Aggregate[I, S], error) {
	history, err := r.log.Read(ctx, id)
	if errors.Is(err, eventlog.ErrNotFound) {
		return nil, ErrRootNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("aggregate.Repository: failed to read history, %w", err)
	}

	root := New(r.typ, id)

	tx, err := Begin(root, r.registry, r.strategy)
	if err != nil {
		return nil, fmt.Errorf("aggregate.Repository: failed to begin transaction, %w", err)
	}

	defer tx.Discard()

	if history.Snapshot != nil {
		if err := tx.restore(*history.Snapshot); err != nil {
			return nil, fmt.Errorf("aggregate.Repository: failed to restore snapshot, %w", err)
		}
	}

	record, err := r.states.Read(ctx, id)

	switch {
	case err == nil:
		tx.restoreFlags(record.Flags)
	case errors.Is(err, staterecord.ErrNotFound):
		// No materialized record yet: the aggregate keeps cleared flags.
	default:
		return nil, fmt.Errorf("aggregate.Repository: failed to read materialized record, %w", err)
	}

	if err := tx.Play(history.Events...); err != nil {
		return nil, fmt.Errorf("aggregate.Repository: failed to rehydrate aggregate, %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("aggregate.Repository: failed to commit rehydration transaction, %w", err)
	}

	return root, nil
}

// Save plays the provided Events against the Aggregate in a new
// Transaction, commits it, and persists the outcome: the Events are
// appended to the Event Log (together with a Snapshot, when the policy
// advises one), and the materialized state record is updated.
//
// Saving with no events is a no-op.
func (r *Repository[I, S]) Save(ctx context.Context, root *Aggregate[I, S], events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := Begin(root, r.registry, r.strategy)
	if err != nil {
		return fmt.Errorf("aggregate.Repository: failed to begin transaction, %w", err)
	}

	defer tx.Discard()

	if err := tx.Play(events...); err != nil {
		return fmt.Errorf("aggregate.Repository: failed to play events, %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("aggregate.Repository: failed to commit transaction, %w", err)
	}

	history := event.History{Events: events}

	if r.policy.ShouldRecord(root.Version()) {
		history.Snapshot = &event.Snapshot{
			Version: root.Version(),
			State:   root.State(),
		}
	}

	if err := r.log.Write(ctx, root.ID(), history); err != nil {
		return fmt.Errorf("aggregate.Repository: failed to write history, %w", err)
	}

	if err := r.writeStateRecord(ctx, root); err != nil {
		return err
	}

	return nil
}

// Archive raises the Archived lifecycle flag of the Aggregate and updates
// its materialized record. No Event is appended to the log: archiving is
// a lifecycle change, not a Domain fact.
func (r *Repository[I, S]) Archive(ctx context.Context, root *Aggregate[I, S]) error {
	return r.setLifecycle(ctx, root, func(tx *Transaction[I, S]) error {
		return tx.SetArchived(true)
	})
}

// Unarchive clears the Archived lifecycle flag of the Aggregate and
// updates its materialized record.
func (r *Repository[I, S]) Unarchive(ctx context.Context, root *Aggregate[I, S]) error {
	return r.setLifecycle(ctx, root, func(tx *Transaction[I, S]) error {
		return tx.SetArchived(false)
	})
}

// Delete raises the Deleted lifecycle flag of the Aggregate and updates
// its materialized record. The recorded history is left untouched.
func (r *Repository[I, S]) Delete(ctx context.Context, root *Aggregate[I, S]) error {
	return r.setLifecycle(ctx, root, func(tx *Transaction[I, S]) error {
		return tx.SetDeleted(true)
	})
}

func (r *Repository[I, S]) setLifecycle(
	ctx context.Context,
	root *Aggregate[I, S],
	change func(tx *Transaction[I, S]) error,
) error {
	tx, err := Begin(root, r.registry, r.strategy)
	if err != nil {
		return fmt.Errorf("aggregate.Repository: failed to begin transaction, %w", err)
	}

	defer tx.Discard()

	if err := change(tx); err != nil {
		return fmt.Errorf("aggregate.Repository: failed to change lifecycle, %w", err)
	}

	changed := tx.LifecycleChanged()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("aggregate.Repository: failed to commit transaction, %w", err)
	}

	if !changed {
		return nil
	}

	return r.writeStateRecord(ctx, root)
}

func (r *Repository[I, S]) writeStateRecord(ctx context.Context, root *Aggregate[I, S]) error {
	record := staterecord.Record[S]{
		State:   root.State(),
		Version: root.Version(),
		Flags:   root.Flags(),
	}

	if err := r.states.Write(ctx, root.ID(), record); err != nil {
		return fmt.Errorf("aggregate.Repository: failed to write materialized record, %w", err)
	}

	return nil
}

// Index returns the identifiers of every Aggregate holding a materialized
// current-state record.
func (r *Repository[I, S]) Index(ctx context.Context) ([]I, error) {
	return r.states.Index(ctx)
}

// DistinctIDs returns the identifiers of every Aggregate appearing
// anywhere in the raw Event Log.
func (r *Repository[I, S]) DistinctIDs(ctx context.Context) ([]I, error) {
	return r.log.DistinctIDs(ctx)
}
