// Package event contains the types used to represent Domain Events
// and full-state Snapshots recorded in the Event Log.
package event

import (
	"time"

	"github.com/get-retrace/go-retrace/message"
	"github.com/get-retrace/go-retrace/version"
)

// Event is an immutable Domain fact: some information that has happened
// in the past, which is of vital importance to the Domain itself.
//
// Event message names should be phrased in the past tense, to enforce
// the notion of "information happened in the past".
type Event struct {
	// Version is the Aggregate revision produced by this Event.
	// Its Timestamp component doubles as the Event occurrence time.
	Version version.Version

	// Message is the Domain-specific payload of the Event.
	Message message.Message

	// Metadata carries enrichment annotations for in-flight processing.
	// It is stripped before the Event is persisted.
	Metadata message.Metadata
}

// RecordedAt returns the occurrence time of the Event.
func (evt Event) RecordedAt() time.Time {
	return evt.Version.Timestamp
}

// StripMetadata returns a copy of the Event without its enrichment
// annotations, ready for persistence.
func (evt Event) StripMetadata() Event {
	evt.Metadata = nil
	return evt
}

// Snapshot is a full-state capture of an Aggregate at a given Version,
// bounding how far back an Event Log read has to walk during replay.
type Snapshot struct {
	// Version is the Aggregate revision the captured state corresponds to.
	Version version.Version

	// State is the full Aggregate state at the captured revision.
	State message.Message
}

// RecordedAt returns the capture time of the Snapshot.
func (snap Snapshot) RecordedAt() time.Time {
	return snap.Version.Timestamp
}

// History is the reconstructed replay input for an Aggregate: an optional
// Snapshot, plus the Events recorded after it in chronological order.
//
// Every Event in Events carries a Version strictly greater than the
// Snapshot's, when a Snapshot is present.
type History struct {
	Snapshot *Snapshot
	Events   []Event
}

// IsEmpty reports whether the History carries neither a Snapshot
// nor any Events.
func (h History) IsEmpty() bool {
	return h.Snapshot == nil && len(h.Events) == 0
}

// LastVersion returns the most recent Version recorded in the History,
// or the zero Version for an empty History.
func (h History) LastVersion() version.Version {
	if n := len(h.Events); n > 0 {
		return h.Events[n-1].Version
	}

	if h.Snapshot != nil {
		return h.Snapshot.Version
	}

	return version.Zero()
}
