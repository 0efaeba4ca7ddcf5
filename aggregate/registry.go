package aggregate

import (
	"errors"
	"fmt"

	"github.com/get-retrace/go-retrace/message"
)

// ErrUnregisteredEvent is returned when playing an Event whose message type
// has no applier registered for the Aggregate type.
var ErrUnregisteredEvent = errors.New("aggregate: no applier registered for event")

// ApplierFunc causes a state change on the Aggregate builder, applying the
// Domain information carried by the message.
//
// Appliers should be free of side effects, save for the builder mutation:
// they run both when handling new events and when replaying history.
type ApplierFunc[S any] func(builder S, msg message.Message) error

// Registry maps Event message types to the applier function that folds
// them into the Aggregate state.
//
// A Registry is built once per Aggregate type at registration time, and
// reused across all instances and Transactions of that type; lookups
// do not use reflection.
type Registry[S any] struct {
	appliers map[string]ApplierFunc[S]
}

// NewRegistry creates an empty applier Registry.
func NewRegistry[S any]() *Registry[S] {
	return &Registry[S]{
		appliers: make(map[string]ApplierFunc[S]),
	}
}

// Register adds the applier for the provided message type, keyed by the
// message name identifier.
//
// An error is returned when the applier is nil, or when a different applier
// has already been registered for the same message name.
func (r *Registry[S]) Register(msg message.Message, applier ApplierFunc[S]) error {
	if applier == nil {
		return fmt.Errorf("aggregate.Registry: nil applier provided for message '%s'", msg.Name())
	}

	name := msg.Name()
	if _, ok := r.appliers[name]; ok {
		return fmt.Errorf("aggregate.Registry: message '%s' has already been registered", name)
	}

	r.appliers[name] = applier

	return nil
}

// MustRegister registers the provided appliers, panicking on error.
// Intended for package-level Registry construction.
func (r *Registry[S]) MustRegister(msg message.Message, applier ApplierFunc[S]) *Registry[S] {
	if err := r.Register(msg, applier); err != nil {
		panic(err)
	}

	return r
}

// Lookup returns the applier registered for the provided message name.
func (r *Registry[S]) Lookup(name string) (ApplierFunc[S], bool) {
	applier, ok := r.appliers[name]
	return applier, ok
}
