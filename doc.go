// Package retrace contains the building blocks for the persistence side
// of an Event-sourced application: an append-only Event Log with snapshot
// support, a monotonic version and lifecycle model, and a transactional
// replay engine to rebuild Aggregate state from recorded history.
//
// The library contains multiple packages. You might want to start from
// `aggregate` to model your Aggregate types and their appliers, and
// `eventlog` for the Event Log abstraction and its in-memory implementation.
// Durable backends are provided in their own packages (e.g. `postgres`).
package retrace
