// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/dataset"
)

// testConfig returns a config rooted in a fresh temp dir with small merge
// batches so batching paths get exercised.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()
	cfg.MergeBatchSize = 2
	cfg.MergeBatchesPerSecond = 0
	return cfg
}

// newTestEnv builds a live store, catalog, and writer over a temp dir.
func newTestEnv(t *testing.T) (*dataset.MemoryStore, *Catalog, *Writer, Config) {
	t.Helper()
	cfg := testConfig(t)

	catalog, err := OpenCatalog(cfg.Dir)
	if err != nil {
		t.Fatalf("OpenCatalog() error = %v", err)
	}

	store := dataset.NewMemoryStore(nil)
	writer := NewWriter(cfg, store, catalog)
	return store, catalog, writer, cfg
}

func record(id string, updated time.Time) dataset.Record {
	return dataset.Record{
		ID:          id,
		LastUpdated: updated,
		Fields:      json.RawMessage(`{"name":"` + id + `"}`),
	}
}

func recordWithFields(id string, updated time.Time, fields string) dataset.Record {
	return dataset.Record{
		ID:          id,
		LastUpdated: updated,
		Fields:      json.RawMessage(fields),
	}
}

func mustPut(t *testing.T, store *dataset.MemoryStore, entity string, records ...dataset.Record) {
	t.Helper()
	if err := store.PutBatch(context.Background(), entity, records); err != nil {
		t.Fatalf("PutBatch(%s) error = %v", entity, err)
	}
}

func mustSnapshot(t *testing.T, writer *Writer, class BackupClass, trigger Trigger) *BackupSet {
	t.Helper()
	set, err := writer.CreateSnapshot(context.Background(), class, trigger, "")
	if err != nil {
		t.Fatalf("CreateSnapshot() error = %v", err)
	}
	return set
}

// syntheticSet registers a catalog entry without a real archive, for
// catalog and retention tests that never read the payload.
func syntheticSet(t *testing.T, catalog *Catalog, class BackupClass, trigger Trigger, createdAt time.Time, filePath string) *BackupSet {
	t.Helper()
	set := &BackupSet{
		ID:            uuid.New().String(),
		Class:         class,
		Trigger:       trigger,
		CreatedAt:     createdAt,
		FilePath:      filePath,
		SizeBytes:     100,
		Checksum:      "deadbeef",
		SchemaVersion: dataset.SchemaVersion,
		RecordCounts:  map[string]int{"contacts": 1},
	}
	if err := catalog.Register(set); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return set
}

// waitForTerminal polls a job until it leaves Running or the deadline hits.
func waitForTerminal(t *testing.T, tracker *Tracker, jobID string) *RestoreJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := tracker.GetJob(jobID)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", jobID)
	return nil
}
