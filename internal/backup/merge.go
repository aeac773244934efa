// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/dataset"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/logging"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/metrics"
)

// ProgressFunc receives a completion update after each entity is merged.
type ProgressFunc func(entity string, done, total int)

// Merger applies a snapshot to the live dataset without deleting anything.
//
// Decision per record, against the live record with the same primary key:
//
//	absent               -> insert
//	older than snapshot  -> update (full replace)
//	newer or same age    -> skip (live wins)
//
// Records present live but absent from the snapshot are never touched.
// Running the same merge twice is a no-op the second time.
type Merger struct {
	store     dataset.Store
	batchSize int
	limiter   *rate.Limiter
}

// NewMerger creates a merger writing to the given live store, batched and
// throttled per the config.
func NewMerger(store dataset.Store, cfg Config) *Merger {
	m := &Merger{store: store, batchSize: cfg.MergeBatchSize}
	if cfg.MergeBatchesPerSecond > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.MergeBatchesPerSecond), 1)
	}
	return m
}

// Merge decodes and verifies the backup's archive, then merges entity by
// entity in the archive's dependency order. Verification failures return
// before any write. A mid-merge failure returns a PartialMergeError naming
// the failed entity and the per-entity counts completed before it.
func (m *Merger) Merge(ctx context.Context, set *BackupSet, progress ProgressFunc) (map[string]MergeCounts, error) {
	export, computed, err := readArchive(set.FilePath)
	if err != nil {
		return nil, err
	}
	if computed != set.Checksum {
		return nil, &SerializationError{
			Reason: fmt.Sprintf("catalog checksum %.12s does not match payload %.12s", set.Checksum, computed),
		}
	}

	result := make(map[string]MergeCounts, len(export.EntityOrder))
	total := len(export.EntityOrder)
	for i, entity := range export.EntityOrder {
		counts, err := m.mergeEntity(ctx, entity, export.Entities[entity])
		if err != nil {
			return nil, &PartialMergeError{Entity: entity, Completed: result, Err: err}
		}
		result[entity] = counts

		metrics.MergedRecordsTotal.WithLabelValues("inserted").Add(float64(counts.Inserted))
		metrics.MergedRecordsTotal.WithLabelValues("updated").Add(float64(counts.Updated))
		metrics.MergedRecordsTotal.WithLabelValues("skipped").Add(float64(counts.Skipped))

		logging.Debug().
			Str("backup_id", set.ID).
			Str("entity", entity).
			Int("inserted", counts.Inserted).
			Int("updated", counts.Updated).
			Int("skipped", counts.Skipped).
			Msg("Entity merged")

		if progress != nil {
			progress(entity, i+1, total)
		}
	}
	return result, nil
}

// mergeEntity merges one entity's records in bounded, throttled batches.
// Counts reflect decisions whose batch was written; a batch failure aborts
// the entity.
func (m *Merger) mergeEntity(ctx context.Context, entity string, records []dataset.Record) (MergeCounts, error) {
	var counts, pending MergeCounts
	batch := make([]dataset.Record, 0, m.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := m.store.PutBatch(ctx, entity, batch); err != nil {
			return fmt.Errorf("write batch of %d: %w", len(batch), err)
		}
		counts.Add(pending)
		pending = MergeCounts{}
		batch = batch[:0]
		return nil
	}

	for _, r := range records {
		existing, found, err := m.store.Get(ctx, entity, r.ID)
		if err != nil {
			return counts, fmt.Errorf("read record %s: %w", r.ID, err)
		}

		switch {
		case !found:
			pending.Inserted++
			batch = append(batch, r)
		case existing.LastUpdated.Before(r.LastUpdated):
			pending.Updated++
			batch = append(batch, r)
		default:
			// Live record is newer or the same age; it wins.
			counts.Skipped++
			continue
		}

		if len(batch) >= m.batchSize {
			if err := flush(); err != nil {
				return counts, err
			}
		}
	}

	if err := flush(); err != nil {
		return counts, err
	}
	return counts, nil
}
