// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

// Package dataset defines the live-dataset collaborator consumed by the
// backup subsystem.
//
// The CRM stores many entity types (leads, contacts, deals, ...). The backup
// subsystem treats them uniformly: an entity is a named collection of keyed,
// opaque records, each carrying a last-modified timestamp. New entity types
// stay snapshot- and merge-compatible without code changes here.
//
// Two operations matter to the backup subsystem: exporting every entity from
// one consistent read point, and upserting a single record by primary key.
package dataset

import (
	"context"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// SchemaVersion identifies the record encoding carried inside exports.
// Bumped when the record envelope changes shape.
const SchemaVersion = "1"

// DefaultEntityOrder is the CRM's entity dependency order: entities
// referenced by others come first so a merge can re-create references
// before the records that hold them.
var DefaultEntityOrder = []string{
	"users",
	"companies",
	"contacts",
	"leads",
	"deals",
	"tasks",
	"notes",
}

// Record is one keyed, opaque dataset record. Fields carries the entity's
// payload verbatim; the backup subsystem never interprets it.
type Record struct {
	ID          string          `json:"id"`
	LastUpdated time.Time       `json:"last_updated"`
	Fields      json.RawMessage `json:"fields"`
}

// Export is a whole-dataset capture taken from a single consistent read
// point. Records within each entity are sorted by ID; EntityOrder lists
// entities in dependency order (referenced-first).
type Export struct {
	TakenAt       time.Time           `json:"taken_at"`
	SchemaVersion string              `json:"schema_version"`
	EntityOrder   []string            `json:"entity_order"`
	Entities      map[string][]Record `json:"entities"`
}

// RecordCounts returns the number of records per entity.
func (e *Export) RecordCounts() map[string]int {
	counts := make(map[string]int, len(e.Entities))
	for name, records := range e.Entities {
		counts[name] = len(records)
	}
	return counts
}

// TotalRecords returns the record count across all entities.
func (e *Export) TotalRecords() int {
	total := 0
	for _, records := range e.Entities {
		total += len(records)
	}
	return total
}

// Store is the live dataset as seen by the backup subsystem.
//
// Export must observe one consistent point: records written concurrently
// with an export appear either entirely or not at all, never mixed
// pre/post-update state. Put and PutBatch are upserts by primary key; they
// run concurrently with ordinary CRM traffic.
type Store interface {
	// Export captures every entity from a single consistent read point.
	Export(ctx context.Context) (*Export, error)

	// Get returns the record with the given ID, reporting whether it exists.
	Get(ctx context.Context, entity, id string) (Record, bool, error)

	// Put inserts or fully replaces one record.
	Put(ctx context.Context, entity string, record Record) error

	// PutBatch applies a bounded batch of upserts to one entity.
	PutBatch(ctx context.Context, entity string, records []Record) error

	// Close releases store resources.
	Close() error
}

// orderEntities arranges the entity names present in entities into the
// configured dependency order; names missing from the configuration are
// appended alphabetically.
func orderEntities(entities map[string][]Record, configured []string) []string {
	order := make([]string, 0, len(entities))
	seen := make(map[string]bool, len(entities))
	for _, name := range configured {
		if _, ok := entities[name]; ok {
			order = append(order, name)
			seen[name] = true
		}
	}

	var extra []string
	for name := range entities {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)

	return append(order, extra...)
}
