// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

// Package api exposes the backup subsystem over HTTP.
package api

import (
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/backup"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/config"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/models"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Handler carries the backup subsystem dependencies for all routes.
type Handler struct {
	cfg      *config.Config
	writer   *backup.Writer
	catalog  *backup.Catalog
	tracker  *backup.Tracker
	settings *backup.SettingsStore
	validate *validator.Validate
	started  time.Time
}

// NewHandler wires the API handler.
func NewHandler(cfg *config.Config, writer *backup.Writer, catalog *backup.Catalog,
	tracker *backup.Tracker, settings *backup.SettingsStore) *Handler {
	return &Handler{
		cfg:      cfg,
		writer:   writer,
		catalog:  catalog,
		tracker:  tracker,
		settings: settings,
		validate: validator.New(),
		started:  time.Now(),
	}
}

// handleHealth reports liveness.
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	})
}

// handleReady reports readiness: the catalog and settings store loaded at
// startup, so readiness reduces to the backup dir still being writable.
func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	if err := checkDirWritable(h.cfg.Backup.Dir); err != nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeInternal,
			"backup directory not writable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func checkDirWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".readycheck-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
