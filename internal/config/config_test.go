// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/backup"
)

func TestLoadDefaults(t *testing.T) {
	// Point the file lookup at a missing file so only defaults load.
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Backup.Compression.Algorithm != backup.CompressionGzip {
		t.Errorf("Backup.Compression = %+v", cfg.Backup.Compression)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %s", cfg.Server.Addr())
	}
}

func TestLoadFileAndEnvLayers(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9000
backup:
  dir: ` + filepath.Join(dir, "backups") + `
  compression:
    algorithm: zstd
    level: 2
`
	if err := os.WriteFile(configPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	// ENV beats the file.
	t.Setenv("CORVIA_SERVER__PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Backup.Compression.Algorithm != backup.CompressionZstd {
		t.Errorf("compression algorithm = %s, want zstd from file", cfg.Backup.Compression.Algorithm)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yaml := `
backup:
  compression:
    algorithm: lzma
`
	if err := os.WriteFile(configPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)

	if _, err := Load(); err == nil {
		t.Error("Load() accepted an unknown compression algorithm")
	}
}
