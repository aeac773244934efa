// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/logging"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/metrics"
)

// Tracker runs restores asynchronously and keeps their job records
// pollable. At most one job is running at any time; a second StartRestore
// returns ErrConflict immediately. Once a restore is accepted, its outcome
// surfaces only through the polled job record.
type Tracker struct {
	writer  *Writer
	merger  *Merger
	catalog *Catalog

	mu       sync.Mutex
	jobs     map[string]*RestoreJob
	activeID string
	wg       sync.WaitGroup
}

// NewTracker creates a restore job tracker.
func NewTracker(writer *Writer, merger *Merger, catalog *Catalog) *Tracker {
	return &Tracker{
		writer:  writer,
		merger:  merger,
		catalog: catalog,
		jobs:    make(map[string]*RestoreJob),
	}
}

// StartRestore validates the request, registers a Running job, and kicks
// off the restore in the background. Unknown backup IDs and an
// already-running job are reported synchronously; everything after
// acceptance is reported through the job record.
func (t *Tracker) StartRestore(backupID string) (string, error) {
	set, err := t.catalog.Get(backupID)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	if t.activeID != "" {
		active := t.activeID
		t.mu.Unlock()
		return "", fmt.Errorf("%w (job %s)", ErrConflict, active)
	}

	job := &RestoreJob{
		ID:          uuid.New().String(),
		BackupID:    set.ID,
		Status:      JobRunning,
		CurrentStep: "starting",
		StartedAt:   time.Now().UTC(),
	}
	t.jobs[job.ID] = job
	t.activeID = job.ID
	t.mu.Unlock()

	logging.Info().
		Str("job_id", job.ID).
		Str("backup_id", set.ID).
		Msg("Restore job accepted")

	t.wg.Add(1)
	go t.run(job.ID, set)
	return job.ID, nil
}

// GetJob returns a copy of the job record. Pollers never share memory with
// the running job.
func (t *Tracker) GetJob(jobID string) (*RestoreJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("restore job %s: %w", jobID, ErrNotFound)
	}
	return job.clone(), nil
}

// ListJobs returns copies of all job records, newest first.
func (t *Tracker) ListJobs() []*RestoreJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*RestoreJob, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, job.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// PruneJobs drops terminal jobs that finished more than olderThan ago and
// returns how many were removed. Running jobs are never pruned.
func (t *Tracker) PruneJobs(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	t.mu.Lock()
	defer t.mu.Unlock()

	pruned := 0
	for id, job := range t.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(t.jobs, id)
			pruned++
		}
	}
	return pruned
}

// Wait blocks until any in-flight restore finishes. Used during shutdown.
func (t *Tracker) Wait() { t.wg.Wait() }

// run drives one restore: safety snapshot first, then the merge. A failed
// safety snapshot aborts the restore before any merge write.
func (t *Tracker) run(jobID string, set *BackupSet) {
	defer t.wg.Done()

	// Restores run to completion; shutdown waits for them rather than
	// cancelling half-applied work.
	ctx := context.Background()
	start := time.Now()

	t.update(jobID, func(job *RestoreJob) {
		job.CurrentStep = "safety_snapshot"
	})

	safety, err := t.writer.CreateSnapshot(ctx, ClassManual, TriggerPreRestore,
		fmt.Sprintf("Pre-restore safety snapshot (restoring %s)", set.ID))
	if err != nil {
		t.finish(jobID, JobFailed, nil, fmt.Sprintf("safety snapshot failed, dataset untouched: %v", err))
		metrics.RestoreJobsTotal.WithLabelValues(string(JobFailed)).Inc()
		return
	}

	t.update(jobID, func(job *RestoreJob) {
		job.SafetyBackupID = safety.ID
		job.CurrentStep = "merging"
		job.ProgressPercent = 10
	})

	result, err := t.merger.Merge(ctx, set, func(entity string, done, total int) {
		t.update(jobID, func(job *RestoreJob) {
			progress := 10 + 89*done/total
			if progress > job.ProgressPercent {
				job.ProgressPercent = progress
			}
			job.CurrentStep = "merged " + entity
		})
	})
	if err != nil {
		var partial *PartialMergeError
		msg := err.Error()
		var completed map[string]MergeCounts
		if errors.As(err, &partial) {
			completed = partial.Completed
			msg = fmt.Sprintf("%v; pre-restore state preserved in safety backup %s", err, safety.ID)
		}
		t.finish(jobID, JobFailed, completed, msg)
		metrics.RestoreJobsTotal.WithLabelValues(string(JobFailed)).Inc()
		return
	}

	t.finish(jobID, JobCompleted, result, "")
	metrics.RestoreJobsTotal.WithLabelValues(string(JobCompleted)).Inc()
	metrics.RestoreDuration.Observe(time.Since(start).Seconds())
}

// update mutates a job record under the tracker lock.
func (t *Tracker) update(jobID string, fn func(*RestoreJob)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[jobID]; ok {
		fn(job)
	}
}

// finish moves a job to its terminal state exactly once and releases the
// single-job slot.
func (t *Tracker) finish(jobID string, status JobStatus, result map[string]MergeCounts, errMsg string) {
	now := time.Now().UTC()

	t.mu.Lock()
	job, ok := t.jobs[jobID]
	if !ok || job.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	job.Status = status
	job.CompletedAt = &now
	job.Result = result
	job.Error = errMsg
	if status == JobCompleted {
		job.ProgressPercent = 100
		job.CurrentStep = "done"
	}
	if t.activeID == jobID {
		t.activeID = ""
	}
	t.mu.Unlock()

	event := logging.Info()
	if status == JobFailed {
		event = logging.Error()
	}
	event.
		Str("job_id", jobID).
		Str("status", string(status)).
		Str("error", errMsg).
		Msg("Restore job finished")
}
