// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/dataset"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/logging"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/metrics"
)

// Writer produces snapshots. A mutex serializes creation: scheduled,
// manual, and pre-restore snapshots of the same dataset never interleave.
type Writer struct {
	cfg     Config
	store   dataset.Store
	catalog *Catalog
	mu      sync.Mutex
}

// NewWriter creates a snapshot writer over the given live store and catalog.
func NewWriter(cfg Config, store dataset.Store, catalog *Catalog) *Writer {
	return &Writer{cfg: cfg, store: store, catalog: catalog}
}

// CreateSnapshot exports the live dataset, writes a checksummed archive in
// staging, atomically publishes it into the backup dir, and registers it in
// the catalog. Either the catalog gains a complete, verified entry or the
// dataset directory is unchanged; a failed attempt leaves no catalog entry
// and no published file.
func (w *Writer) CreateSnapshot(ctx context.Context, class BackupClass, trigger Trigger, note string) (*BackupSet, error) {
	if !w.cfg.Enabled {
		return nil, ErrDisabled
	}
	if !class.Valid() {
		return nil, fmt.Errorf("invalid backup class %q", class)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	logging.Info().
		Str("class", string(class)).
		Str("trigger", string(trigger)).
		Msg("Starting snapshot")

	set, err := w.createLocked(ctx, class, trigger, note, start)
	if err != nil {
		metrics.SnapshotsTotal.WithLabelValues(string(class), "failure").Inc()
		logging.Error().
			Err(err).
			Str("class", string(class)).
			Msg("Snapshot failed")
		return nil, err
	}

	metrics.SnapshotsTotal.WithLabelValues(string(class), "success").Inc()
	metrics.SnapshotDuration.Observe(set.Duration.Seconds())
	metrics.SnapshotSizeBytes.Set(float64(set.SizeBytes))
	w.updateCatalogGauges()

	logging.Info().
		Str("backup_id", set.ID).
		Str("class", string(class)).
		Str("checksum", set.Checksum[:12]).
		Int64("size_bytes", set.SizeBytes).
		Dur("duration", set.Duration).
		Int("records", set.TotalRecords()).
		Msg("Snapshot published")
	return set, nil
}

func (w *Writer) createLocked(ctx context.Context, class BackupClass, trigger Trigger, note string, start time.Time) (*BackupSet, error) {
	export, err := w.store.Export(ctx)
	if err != nil {
		return nil, &IOError{Op: "export dataset", Err: err}
	}

	id := uuid.New().String()
	filename := fmt.Sprintf("backup-%s-%s-%s%s",
		class, start.UTC().Format("20060102-150405"), id[:8], archiveExt(w.cfg.Compression))
	stagingPath := filepath.Join(w.cfg.StagingDir(), filename)
	finalPath := filepath.Join(w.cfg.Dir, filename)

	checksum, err := writeArchive(export, stagingPath, w.cfg.Compression)
	if err != nil {
		os.Remove(stagingPath)
		return nil, err
	}

	info, err := os.Stat(stagingPath)
	if err != nil {
		os.Remove(stagingPath)
		return nil, &IOError{Op: "stat staged archive", Path: stagingPath, Err: err}
	}

	// The rename is the publish point: readers of the backup dir only ever
	// see complete archives.
	if err := os.Rename(stagingPath, finalPath); err != nil {
		os.Remove(stagingPath)
		return nil, &IOError{Op: "publish archive", Path: finalPath, Err: err}
	}

	set := &BackupSet{
		ID:            id,
		Class:         class,
		Trigger:       trigger,
		CreatedAt:     export.TakenAt,
		Duration:      time.Since(start),
		FilePath:      finalPath,
		SizeBytes:     info.Size(),
		Checksum:      checksum,
		SchemaVersion: export.SchemaVersion,
		RecordCounts:  export.RecordCounts(),
		Note:          note,
	}

	if err := w.catalog.Register(set); err != nil {
		// Unregistered archives must not linger in the published dir.
		os.Remove(finalPath)
		return nil, err
	}
	return set, nil
}

// Verify re-reads a backup's archive, recomputes the canonical checksum
// from the stored bytes, and compares it against the catalog entry. A nil
// return means the payload decodes cleanly and matches what was written.
func (w *Writer) Verify(id string) error {
	set, err := w.catalog.Get(id)
	if err != nil {
		return err
	}

	_, computed, err := readArchive(set.FilePath)
	if err != nil {
		return err
	}
	if computed != set.Checksum {
		return &SerializationError{
			Reason: fmt.Sprintf("catalog checksum %.12s does not match payload %.12s", set.Checksum, computed),
		}
	}
	return nil
}

// updateCatalogGauges refreshes the catalog size metrics after a mutation.
func (w *Writer) updateCatalogGauges() {
	stats := w.catalog.Stats()
	for _, class := range Classes {
		metrics.CatalogSets.WithLabelValues(string(class)).Set(float64(stats.SetsByClass[class]))
	}
	metrics.CatalogSizeBytes.Set(float64(stats.SizeBytes))
}
