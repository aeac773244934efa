// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"fmt"
	"path/filepath"
	"time"
)

// Compression algorithms supported for snapshot archives.
const (
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// Config is the static, process-lifetime configuration of the backup
// subsystem. Runtime-changeable policy (schedule, retention counts) lives
// in Settings instead.
type Config struct {
	// Enabled gates the whole subsystem. When false the HTTP surface still
	// answers reads but snapshot creation is rejected.
	Enabled bool `koanf:"enabled" json:"enabled"`

	// Dir is the backup root. Payload archives live directly under it,
	// staging under Dir/staging, the catalog in Dir/catalog.json, and
	// settings in Dir/settings.json.
	Dir string `koanf:"dir" json:"dir" validate:"required"`

	// Compression selects the archive codec.
	Compression CompressionConfig `koanf:"compression" json:"compression"`

	// MergeBatchSize bounds how many records a restore writes to the live
	// store per batch.
	MergeBatchSize int `koanf:"merge_batch_size" json:"merge_batch_size" validate:"min=1,max=100000"`

	// MergeBatchesPerSecond throttles restore write batches so a merge does
	// not starve live CRM traffic. Zero disables throttling.
	MergeBatchesPerSecond float64 `koanf:"merge_batches_per_second" json:"merge_batches_per_second" validate:"min=0"`

	// JobRetention is how long terminal restore jobs stay pollable before
	// PruneJobs may discard them.
	JobRetention time.Duration `koanf:"job_retention" json:"job_retention"`
}

// CompressionConfig selects and tunes the archive codec.
type CompressionConfig struct {
	Algorithm string `koanf:"algorithm" json:"algorithm" validate:"oneof=gzip zstd"`
	Level     int    `koanf:"level" json:"level"`
}

// DefaultConfig returns the configuration used when the config file leaves
// the backup section out.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Dir:     "data/backups",
		Compression: CompressionConfig{
			Algorithm: CompressionGzip,
			Level:     6,
		},
		MergeBatchSize:        500,
		MergeBatchesPerSecond: 20,
		JobRetention:          24 * time.Hour,
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("backup dir is required")
	}
	if c.MergeBatchSize < 1 {
		return fmt.Errorf("merge_batch_size must be at least 1, got %d", c.MergeBatchSize)
	}
	if c.MergeBatchesPerSecond < 0 {
		return fmt.Errorf("merge_batches_per_second must not be negative, got %f", c.MergeBatchesPerSecond)
	}
	switch c.Compression.Algorithm {
	case CompressionGzip:
		if c.Compression.Level < 1 || c.Compression.Level > 9 {
			return fmt.Errorf("gzip level must be 1-9, got %d", c.Compression.Level)
		}
	case CompressionZstd:
		if c.Compression.Level < 1 || c.Compression.Level > 4 {
			return fmt.Errorf("zstd level must be 1-4, got %d", c.Compression.Level)
		}
	default:
		return fmt.Errorf("unknown compression algorithm %q", c.Compression.Algorithm)
	}
	return nil
}

// StagingDir returns the directory snapshots are assembled in before the
// atomic publish rename.
func (c *Config) StagingDir() string { return filepath.Join(c.Dir, "staging") }

// CatalogPath returns the location of the catalog metadata file.
func (c *Config) CatalogPath() string { return filepath.Join(c.Dir, "catalog.json") }

// SettingsPath returns the location of the persisted settings file.
func (c *Config) SettingsPath() string { return filepath.Join(c.Dir, "settings.json") }
