package staterecord

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/get-retrace/go-retrace/eventlog"
)

// Interface implementation assertion.
var _ Store[eventlog.StringID, any] = new(InMemoryStore[eventlog.StringID, any])

// InMemoryStore is a map-based, thread-safe in-memory staterecord.Store
// implementation.
//
// Since there is no entry eviction, it is suggested to use this store
// only for test scenarios or short-lived tooling.
type InMemoryStore[I eventlog.ID, S any] struct {
	mx          sync.RWMutex
	recordsByID map[I]Record[S]
}

// NewInMemoryStore returns a fresh new InMemoryStore instance.
func NewInMemoryStore[I eventlog.ID, S any]() *InMemoryStore[I, S] {
	return &InMemoryStore[I, S]{
		recordsByID: make(map[I]Record[S]),
	}
}

// Write adds or overwrites the record for the specified Aggregate.
// This operation cannot fail.
func (s *InMemoryStore[I, S]) Write(_ context.Context, id I, record Record[S]) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.recordsByID[id] = record

	return nil
}

// Read returns the record written for the specified Aggregate.
// ErrNotFound is returned if no record has been written.
func (s *InMemoryStore[I, S]) Read(_ context.Context, id I) (Record[S], error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	record, ok := s.recordsByID[id]
	if !ok {
		return Record[S]{}, fmt.Errorf("staterecord.InMemoryStore: failed to read record for '%s', %w", id, ErrNotFound)
	}

	return record, nil
}

// Index implements the staterecord.Store interface.
func (s *InMemoryStore[I, S]) Index(_ context.Context) ([]I, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	ids := make([]I, 0, len(s.recordsByID))
	for id := range s.recordsByID {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})

	return ids, nil
}

// ReadAll implements the staterecord.Store interface.
func (s *InMemoryStore[I, S]) ReadAll(_ context.Context, query Query) ([]Record[S], error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	ids := make([]I, 0, len(s.recordsByID))
	for id := range s.recordsByID {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})

	records := make([]Record[S], 0, len(ids))

	for _, id := range ids {
		record := s.recordsByID[id]
		if query.Matches(record.Flags) {
			records = append(records, record)
		}
	}

	return records, nil
}
