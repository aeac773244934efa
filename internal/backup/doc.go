// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

// Package backup captures, catalogs, and restores whole-dataset snapshots of
// the CRM's operational data store.
//
// The package implements:
//   - Consistent, checksummed, atomically-published snapshots (Writer)
//   - An immutable snapshot catalog with explicit-only deletion (Catalog)
//   - Non-destructive, newest-wins merge restore (Merger)
//   - Asynchronous restore jobs with pollable progress (Tracker)
//   - Grandfather-father-son retention rotation (Sweeper)
//   - Daily scheduling driven by persisted settings (Scheduler, SettingsStore)
//
// Snapshot Classes:
//
//	Daily:   produced by the scheduler every day
//	Monthly: alias of the first successful automated snapshot of a month
//	Yearly:  alias of the first successful automated snapshot of a year
//	Manual:  operator-requested or pre-restore safety snapshots; never pruned
//
// Architecture:
//
//	┌───────────┐     ┌──────────┐     ┌─────────┐
//	│ Scheduler │────▶│  Writer  │────▶│ Catalog │
//	└───────────┘     └──────────┘     └─────────┘
//	      │                 ▲               │
//	      ▼                 │               ▼
//	┌───────────┐     ┌──────────┐     ┌─────────┐
//	│  Sweeper  │     │ Tracker  │────▶│ Merger  │
//	└───────────┘     └──────────┘     └─────────┘
//
// A restore job first asks the Writer for a Manual safety snapshot of the
// live dataset, then drives the Merger entity-by-entity while pollers read
// monotonic progress from the job record. Merge never deletes: records in
// the live dataset absent from the snapshot are untouched, and a record
// updated by live traffic after the snapshot was captured wins on timestamp.
//
// Usage:
//
//	catalog, _ := backup.OpenCatalog(cfg.Dir)
//	writer := backup.NewWriter(cfg, store, catalog)
//	set, err := writer.CreateSnapshot(ctx, backup.ClassManual, backup.TriggerManual, "before import")
//
//	tracker := backup.NewTracker(writer, backup.NewMerger(store, cfg), catalog)
//	jobID, err := tracker.StartRestore(set.ID)
//	job, err := tracker.GetJob(jobID) // poll until job.Status is terminal
package backup
