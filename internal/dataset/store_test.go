// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package dataset

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func testRecord(id string, updated time.Time) Record {
	return Record{
		ID:          id,
		LastUpdated: updated,
		Fields:      json.RawMessage(`{"name":"` + id + `"}`),
	}
}

func TestOrderEntities(t *testing.T) {
	tests := []struct {
		name       string
		entities   []string
		configured []string
		want       []string
	}{
		{
			name:       "configured order wins",
			entities:   []string{"deals", "contacts", "users"},
			configured: DefaultEntityOrder,
			want:       []string{"users", "contacts", "deals"},
		},
		{
			name:       "unknown entities appended alphabetically",
			entities:   []string{"zebras", "users", "apples"},
			configured: DefaultEntityOrder,
			want:       []string{"users", "apples", "zebras"},
		},
		{
			name:       "empty configuration is alphabetical",
			entities:   []string{"b", "a"},
			configured: nil,
			want:       []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities := make(map[string][]Record, len(tt.entities))
			for _, name := range tt.entities {
				entities[name] = []Record{testRecord("1", time.Now())}
			}

			got := orderEntities(entities, tt.configured)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("orderEntities() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryStoreExportSortsRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	now := time.Now().UTC()
	for _, id := range []string{"c", "a", "b"} {
		if err := store.Put(ctx, "contacts", testRecord(id, now)); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	export, err := store.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	records := export.Entities["contacts"]
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"a", "b", "c"} {
		if records[i].ID != want {
			t.Errorf("record %d ID = %s, want %s", i, records[i].ID, want)
		}
	}

	if export.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %s, want %s", export.SchemaVersion, SchemaVersion)
	}
	if got := export.RecordCounts()["contacts"]; got != 3 {
		t.Errorf("RecordCounts()[contacts] = %d, want 3", got)
	}
	if got := export.TotalRecords(); got != 3 {
		t.Errorf("TotalRecords() = %d, want 3", got)
	}
}

func TestMemoryStoreGetPutBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	now := time.Now().UTC()

	batch := []Record{testRecord("1", now), testRecord("2", now)}
	if err := store.PutBatch(ctx, "leads", batch); err != nil {
		t.Fatalf("PutBatch() error = %v", err)
	}

	got, found, err := store.Get(ctx, "leads", "2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if got.ID != "2" {
		t.Errorf("Get() ID = %s, want 2", got.ID)
	}

	_, found, err = store.Get(ctx, "leads", "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true for missing record")
	}
}
