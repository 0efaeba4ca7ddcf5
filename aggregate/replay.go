package aggregate

import (
	"fmt"

	"github.com/get-retrace/go-retrace/event"
	"github.com/get-retrace/go-retrace/version"
)

// applyEvent folds a single Event into the builder: applier lookup, version
// advance validation, then the applier invocation. The builder is not
// touched when validation fails.
func applyEvent[S State[S]](
	builder S,
	current version.Version,
	evt event.Event,
	registry *Registry[S],
	strategy VersionIncrement,
) (version.Version, bool, error) {
	name := evt.Message.Name()

	applier, ok := registry.Lookup(name)
	if !ok {
		return version.Zero(), false, fmt.Errorf("aggregate: failed to apply event '%s', %w", name, ErrUnregisteredEvent)
	}

	next, err := strategy.nextVersion(current, evt)
	if err != nil {
		return version.Zero(), false, fmt.Errorf("aggregate: failed to advance version for event '%s', %w", name, err)
	}

	if err := version.CheckAdvance(current, next); err != nil {
		return version.Zero(), false, err
	}

	if err := applier(builder, evt.Message); err != nil {
		return version.Zero(), false, fmt.Errorf("aggregate: applier for event '%s' failed, %w", name, err)
	}

	return next, true, nil
}

// Outcome is the result of a Replay call: the new committed tuple,
// plus the state-changed bit.
type Outcome[S State[S]] struct {
	State        S
	Version      version.Version
	StateChanged bool
}

// Replay is the pure replay function: it left-folds the provided Events
// over a deep copy of the committed state, and returns the resulting tuple
// without mutating any of its inputs.
//
// Use a Transaction when replaying against a live Aggregate instance;
// Replay is useful for read-only projections of a history, or to inspect
// the effect of events without committing them.
func Replay[S State[S]](
	state S,
	current version.Version,
	events []event.Event,
	registry *Registry[S],
	strategy VersionIncrement,
) (Outcome[S], error) {
	outcome := Outcome[S]{
		State:   state.CopyState(),
		Version: current,
	}

	for _, evt := range events {
		next, stateChanged, err := applyEvent(outcome.State, outcome.Version, evt, registry, strategy)
		if err != nil {
			return Outcome[S]{}, err
		}

		outcome.Version = next
		outcome.StateChanged = outcome.StateChanged || stateChanged
	}

	return outcome, nil
}
