// Package internal contains fixture payloads used by the library tests.
package internal

import "github.com/get-retrace/go-retrace/message"

var (
	_ message.Message = new(EntryRecorded)
	_ message.Message = new(EntrySummary)
)

// EntryRecorded is a minimal Domain Event payload used to exercise
// Event Log implementations.
type EntryRecorded struct {
	Value int64
}

// Name implements message.Message.
func (*EntryRecorded) Name() string { return "EntryRecorded" }

// EntrySummary is a minimal full-state payload used to exercise
// Snapshot records.
type EntrySummary struct {
	Total int64
}

// Name implements message.Message.
func (*EntrySummary) Name() string { return "EntrySummary" }
