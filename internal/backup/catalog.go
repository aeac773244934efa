// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// catalogFileVersion is bumped when the catalog file changes shape.
const catalogFileVersion = 1

// catalogFile is the on-disk shape of catalog.json.
type catalogFile struct {
	Version   int          `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
	Sets      []*BackupSet `json:"sets"`
}

// Catalog is the durable index of published backup sets. Entries are
// immutable once registered; the only mutations are Register, RegisterAlias,
// and Delete, and every mutation is persisted before it returns.
//
// Payload files can be shared: a Monthly or Yearly alias points at the same
// archive as the Daily it was promoted from. Delete removes the payload only
// when the last entry referencing it goes away.
type Catalog struct {
	mu   sync.RWMutex
	path string
	sets map[string]*BackupSet
}

// OpenCatalog loads (or initializes) the catalog under dir. The backup dir
// and staging dir are created if missing.
func OpenCatalog(dir string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Join(dir, "staging"), 0o700); err != nil {
		return nil, &IOError{Op: "create backup dir", Path: dir, Err: err}
	}

	c := &Catalog{
		path: filepath.Join(dir, "catalog.json"),
		sets: make(map[string]*BackupSet),
	}

	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, &IOError{Op: "read catalog", Path: c.path, Err: err}
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &SerializationError{Reason: "decode catalog", Err: err}
	}
	if file.Version != catalogFileVersion {
		return nil, &SerializationError{
			Reason: fmt.Sprintf("unsupported catalog version %d", file.Version),
		}
	}
	for _, set := range file.Sets {
		c.sets[set.ID] = set
	}
	return c, nil
}

// Register adds a new backup set and persists the catalog. The set becomes
// visible to List and Get only after the catalog file is durably updated.
func (c *Catalog) Register(set *BackupSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sets[set.ID]; exists {
		return fmt.Errorf("backup set %s already registered", set.ID)
	}
	c.sets[set.ID] = set
	if err := c.persistLocked(); err != nil {
		delete(c.sets, set.ID)
		return err
	}
	return nil
}

// RegisterAlias publishes a new entry of the given class sharing src's
// payload file. No data is copied; the alias carries src's checksum, size,
// and record counts and names src in AliasOf.
func (c *Catalog) RegisterAlias(src *BackupSet, class BackupClass) (*BackupSet, error) {
	alias := &BackupSet{
		ID:            uuid.New().String(),
		Class:         class,
		Trigger:       src.Trigger,
		CreatedAt:     src.CreatedAt,
		Duration:      src.Duration,
		FilePath:      src.FilePath,
		SizeBytes:     src.SizeBytes,
		Checksum:      src.Checksum,
		SchemaVersion: src.SchemaVersion,
		RecordCounts:  src.RecordCounts,
		AliasOf:       src.ID,
		Note:          src.Note,
	}
	if err := c.Register(alias); err != nil {
		return nil, err
	}
	return alias, nil
}

// Get returns a copy of the backup set with the given ID.
func (c *Catalog) Get(id string) (*BackupSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	set, ok := c.sets[id]
	if !ok {
		return nil, fmt.Errorf("backup set %s: %w", id, ErrNotFound)
	}
	out := *set
	return &out, nil
}

// List returns all backup sets, newest first. The returned slice and its
// entries are copies.
func (c *Catalog) List() []*BackupSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listLocked()
}

func (c *Catalog) listLocked() []*BackupSet {
	out := make([]*BackupSet, 0, len(c.sets))
	for _, set := range c.sets {
		copied := *set
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GroupedByClass returns all backup sets bucketed by class, newest first
// within each bucket.
func (c *Catalog) GroupedByClass() map[BackupClass][]*BackupSet {
	grouped := make(map[BackupClass][]*BackupSet, len(Classes))
	for _, set := range c.List() {
		grouped[set.Class] = append(grouped[set.Class], set)
	}
	return grouped
}

// Delete removes a backup set from the catalog. The payload archive is
// deleted only when no other entry references it. Deleting an unknown ID
// returns ErrNotFound, which makes repeated deletes safe.
func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[id]
	if !ok {
		return fmt.Errorf("backup set %s: %w", id, ErrNotFound)
	}

	delete(c.sets, id)
	if err := c.persistLocked(); err != nil {
		c.sets[id] = set
		return err
	}

	if c.payloadRefsLocked(set.FilePath) == 0 {
		if err := os.Remove(set.FilePath); err != nil && !os.IsNotExist(err) {
			// The catalog entry is gone either way; an orphaned payload is
			// recoverable by hand, a dangling entry is not.
			return &IOError{Op: "remove payload", Path: set.FilePath, Err: err}
		}
	}
	return nil
}

// payloadRefsLocked counts catalog entries referencing a payload file.
func (c *Catalog) payloadRefsLocked(path string) int {
	n := 0
	for _, set := range c.sets {
		if set.FilePath == path {
			n++
		}
	}
	return n
}

// Stats summarizes the catalog. Shared payload files are counted and sized
// once.
func (c *Catalog) Stats() CatalogStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CatalogStats{
		SetsByClass: make(map[BackupClass]int, len(Classes)),
	}

	payloads := make(map[string]int64)
	for _, set := range c.sets {
		stats.TotalSets++
		stats.SetsByClass[set.Class]++
		payloads[set.FilePath] = set.SizeBytes

		created := set.CreatedAt
		if stats.OldestCreated == nil || created.Before(*stats.OldestCreated) {
			t := created
			stats.OldestCreated = &t
		}
		if stats.NewestCreated == nil || created.After(*stats.NewestCreated) {
			t := created
			stats.NewestCreated = &t
			stats.NewestBackupID = set.ID
			stats.TotalRecords = set.TotalRecords()
		}
		if set.Class == ClassDaily {
			if stats.LastDailyAt == nil || created.After(*stats.LastDailyAt) {
				t := created
				stats.LastDailyAt = &t
			}
		}
	}

	stats.PayloadFiles = len(payloads)
	for _, size := range payloads {
		stats.SizeBytes += size
	}
	return stats
}

// persistLocked writes the catalog file atomically: temp file in the same
// directory, fsync, rename over the old file.
func (c *Catalog) persistLocked() error {
	file := catalogFile{
		Version:   catalogFileVersion,
		UpdatedAt: time.Now().UTC(),
		Sets:      make([]*BackupSet, 0, len(c.sets)),
	}
	for _, set := range c.sets {
		file.Sets = append(file.Sets, set)
	}
	sort.Slice(file.Sets, func(i, j int) bool { return file.Sets[i].ID < file.Sets[j].ID })

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return &SerializationError{Reason: "encode catalog", Err: err}
	}

	tmp := c.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return &IOError{Op: "create catalog temp", Path: tmp, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return &IOError{Op: "write catalog temp", Path: tmp, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &IOError{Op: "sync catalog temp", Path: tmp, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &IOError{Op: "close catalog temp", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return &IOError{Op: "publish catalog", Path: c.path, Err: err}
	}
	return nil
}
