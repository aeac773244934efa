// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package dataset

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and development setups.
// A single mutex gives Export its consistent read point.
type MemoryStore struct {
	mu          sync.RWMutex
	entities    map[string]map[string]Record
	entityOrder []string
}

// NewMemoryStore creates an empty in-memory store with the given entity
// dependency order (DefaultEntityOrder when nil).
func NewMemoryStore(entityOrder []string) *MemoryStore {
	if entityOrder == nil {
		entityOrder = DefaultEntityOrder
	}
	return &MemoryStore{
		entities:    make(map[string]map[string]Record),
		entityOrder: entityOrder,
	}
}

// Export captures the whole dataset under one lock acquisition.
func (s *MemoryStore) Export(_ context.Context) (*Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &Export{
		TakenAt:       time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Entities:      make(map[string][]Record, len(s.entities)),
	}

	for name, records := range s.entities {
		if len(records) == 0 {
			continue
		}
		list := make([]Record, 0, len(records))
		for _, r := range records {
			list = append(list, r)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		out.Entities[name] = list
	}

	out.EntityOrder = orderEntities(out.Entities, s.entityOrder)
	return out, nil
}

// Get returns a record by entity and ID.
func (s *MemoryStore) Get(_ context.Context, entity, id string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.entities[entity]
	if !ok {
		return Record{}, false, nil
	}
	r, ok := records[id]
	return r, ok, nil
}

// Put inserts or replaces one record.
func (s *MemoryStore) Put(_ context.Context, entity string, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(entity, record)
	return nil
}

// PutBatch applies all records under one lock acquisition.
func (s *MemoryStore) PutBatch(_ context.Context, entity string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.putLocked(entity, r)
	}
	return nil
}

// Delete removes one record. Ordinary CRM traffic deletes records; the
// backup subsystem itself never does.
func (s *MemoryStore) Delete(_ context.Context, entity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities[entity], id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) putLocked(entity string, record Record) {
	records, ok := s.entities[entity]
	if !ok {
		records = make(map[string]Record)
		s.entities[entity] = records
	}
	records[record.ID] = record
}

// Len returns the number of records currently held for an entity.
func (s *MemoryStore) Len(entity string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities[entity])
}
