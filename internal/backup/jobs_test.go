// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/dataset"
)

// gateStore blocks reads until the gate closes, pinning a merge mid-flight.
type gateStore struct {
	*dataset.MemoryStore
	gate chan struct{}
}

func (s *gateStore) Get(ctx context.Context, entity, id string) (dataset.Record, bool, error) {
	<-s.gate
	return s.MemoryStore.Get(ctx, entity, id)
}

func newTracker(t *testing.T, store dataset.Store) (*Tracker, *Writer, *Catalog, Config) {
	t.Helper()
	cfg := testConfig(t)
	catalog, err := OpenCatalog(cfg.Dir)
	if err != nil {
		t.Fatalf("OpenCatalog() error = %v", err)
	}
	writer := NewWriter(cfg, store, catalog)
	tracker := NewTracker(writer, NewMerger(store, cfg), catalog)
	return tracker, writer, catalog, cfg
}

func TestStartRestoreUnknownBackup(t *testing.T) {
	tracker, _, _, _ := newTracker(t, dataset.NewMemoryStore(nil))
	if _, err := tracker.StartRestore("no-such-backup"); !errors.Is(err, ErrNotFound) {
		t.Errorf("StartRestore() error = %v, want ErrNotFound", err)
	}
}

func TestRestoreJobLifecycle(t *testing.T) {
	store := dataset.NewMemoryStore(nil)
	tracker, writer, catalog, _ := newTracker(t, store)

	t1 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	mustPut(t, store, "contacts", record("a", t1), record("b", t1))
	set := mustSnapshot(t, writer, ClassManual, TriggerManual)
	if err := store.Delete(context.Background(), "contacts", "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	jobID, err := tracker.StartRestore(set.ID)
	if err != nil {
		t.Fatalf("StartRestore() error = %v", err)
	}

	// Progress must never go backwards while polling.
	prev := -1
	deadline := time.Now().Add(5 * time.Second)
	var job *RestoreJob
	for time.Now().Before(deadline) {
		job, err = tracker.GetJob(jobID)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if job.ProgressPercent < prev {
			t.Fatalf("progress went backwards: %d -> %d", prev, job.ProgressPercent)
		}
		prev = job.ProgressPercent
		if job.Status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if job == nil || job.Status != JobCompleted {
		t.Fatalf("job = %+v, want completed", job)
	}
	if job.ProgressPercent != 100 || job.CompletedAt == nil {
		t.Errorf("job completion fields = %d%%, completedAt %v", job.ProgressPercent, job.CompletedAt)
	}
	if counts := job.Result["contacts"]; counts.Inserted != 1 || counts.Skipped != 1 {
		t.Errorf("Result[contacts] = %+v, want 1 inserted 1 skipped", counts)
	}

	// The safety snapshot exists and is a manual, pre-restore set.
	if job.SafetyBackupID == "" {
		t.Fatal("SafetyBackupID is empty")
	}
	safety, err := catalog.Get(job.SafetyBackupID)
	if err != nil {
		t.Fatalf("catalog.Get(safety) error = %v", err)
	}
	if safety.Class != ClassManual || safety.Trigger != TriggerPreRestore {
		t.Errorf("safety set class/trigger = %s/%s", safety.Class, safety.Trigger)
	}

	// The merged record really came back.
	if _, found, _ := store.Get(context.Background(), "contacts", "a"); !found {
		t.Error("restored record missing from live store")
	}
}

func TestStartRestoreConflict(t *testing.T) {
	gated := &gateStore{MemoryStore: dataset.NewMemoryStore(nil), gate: make(chan struct{})}
	tracker, writer, _, _ := newTracker(t, gated)

	mustPut(t, gated.MemoryStore, "contacts", record("a", time.Now().UTC()))
	set := mustSnapshot(t, writer, ClassManual, TriggerManual)

	first, err := tracker.StartRestore(set.ID)
	if err != nil {
		t.Fatalf("first StartRestore() error = %v", err)
	}

	// The first job holds the single running slot.
	if _, err := tracker.StartRestore(set.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("second StartRestore() error = %v, want ErrConflict", err)
	}

	close(gated.gate)
	waitForTerminal(t, tracker, first)

	// Slot is free again once the job is terminal.
	second, err := tracker.StartRestore(set.ID)
	if err != nil {
		t.Fatalf("StartRestore() after completion error = %v", err)
	}
	waitForTerminal(t, tracker, second)
}

func TestRestoreJobFailureSurfacesThroughRecord(t *testing.T) {
	store := &entityFailStore{MemoryStore: dataset.NewMemoryStore(nil), failEntity: "contacts"}
	tracker, writer, _, _ := newTracker(t, store)

	t1 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	mustPut(t, store.MemoryStore, "users", record("u1", t1))
	mustPut(t, store.MemoryStore, "contacts", record("c1", t1))
	set := mustSnapshot(t, writer, ClassManual, TriggerManual)

	// Deleting the contact forces the merge to write, and the write fails.
	if err := store.MemoryStore.Delete(context.Background(), "contacts", "c1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	jobID, err := tracker.StartRestore(set.ID)
	if err != nil {
		t.Fatalf("StartRestore() error = %v", err)
	}
	job := waitForTerminal(t, tracker, jobID)

	if job.Status != JobFailed {
		t.Fatalf("job status = %s, want failed", job.Status)
	}
	if job.Error == "" || !strings.Contains(job.Error, job.SafetyBackupID) {
		t.Errorf("job error %q should reference safety backup %s", job.Error, job.SafetyBackupID)
	}
	if counts, ok := job.Result["users"]; !ok || counts.Skipped != 1 {
		t.Errorf("Result = %v, want users recorded as completed", job.Result)
	}
}

func TestGetJobReturnsCopies(t *testing.T) {
	store := dataset.NewMemoryStore(nil)
	tracker, writer, _, _ := newTracker(t, store)
	mustPut(t, store, "contacts", record("a", time.Now().UTC()))
	set := mustSnapshot(t, writer, ClassManual, TriggerManual)

	jobID, err := tracker.StartRestore(set.ID)
	if err != nil {
		t.Fatalf("StartRestore() error = %v", err)
	}
	job := waitForTerminal(t, tracker, jobID)

	job.Status = JobRunning
	job.Result["contacts"] = MergeCounts{Inserted: 99}

	fresh, err := tracker.GetJob(jobID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if fresh.Status != JobCompleted {
		t.Error("mutating a polled job affected the tracker's record")
	}
	if fresh.Result["contacts"].Inserted == 99 {
		t.Error("polled job result shares memory with the tracker")
	}
}

func TestPruneJobs(t *testing.T) {
	store := dataset.NewMemoryStore(nil)
	tracker, writer, _, _ := newTracker(t, store)
	mustPut(t, store, "contacts", record("a", time.Now().UTC()))
	set := mustSnapshot(t, writer, ClassManual, TriggerManual)

	jobID, err := tracker.StartRestore(set.ID)
	if err != nil {
		t.Fatalf("StartRestore() error = %v", err)
	}
	waitForTerminal(t, tracker, jobID)

	// A generous window keeps fresh jobs pollable.
	if pruned := tracker.PruneJobs(time.Hour); pruned != 0 {
		t.Errorf("PruneJobs(1h) = %d, want 0", pruned)
	}

	time.Sleep(10 * time.Millisecond)
	if pruned := tracker.PruneJobs(0); pruned != 1 {
		t.Errorf("PruneJobs(0) = %d, want 1", pruned)
	}
	if _, err := tracker.GetJob(jobID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob() after prune error = %v, want ErrNotFound", err)
	}
}
