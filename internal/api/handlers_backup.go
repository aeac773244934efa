// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package api

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/backup"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/models"
)

// handleListBackups returns the catalog grouped by class, newest first
// within each class.
//
//	GET /api/v1/backups
func (h *Handler) handleListBackups(w http.ResponseWriter, _ *http.Request) {
	grouped := h.catalog.GroupedByClass()

	// Stable shape: every class key is present even when empty.
	data := make(map[backup.BackupClass][]*backup.BackupSet, len(backup.Classes))
	for _, class := range backup.Classes {
		sets := grouped[class]
		if sets == nil {
			sets = []*backup.BackupSet{}
		}
		data[class] = sets
	}
	respondJSON(w, http.StatusOK, data)
}

// handleCreateBackup takes a manual snapshot synchronously.
//
//	POST /api/v1/backups {"note": "..."}
func (h *Handler) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBackupRequest
	if r.ContentLength > 0 {
		if err := decodeRequest(r, h.validate, &req); err != nil {
			respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, err.Error(), "")
			return
		}
	}

	set, err := h.writer.CreateSnapshot(r.Context(), backup.ClassManual, backup.TriggerManual, req.Note)
	if err != nil {
		respondBackupError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, set)
}

// handleDeleteBackup removes one backup set by ID.
//
//	DELETE /api/v1/backups?id=<backup_id>
func (h *Handler) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "id query parameter is required", "")
		return
	}

	if err := h.catalog.Delete(id); err != nil {
		respondBackupError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleBackupStats summarizes the catalog.
//
//	GET /api/v1/backups/stats
func (h *Handler) handleBackupStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.Stats())
}

// handleVerifyBackup re-checks a backup archive against its recorded
// checksum without touching the live dataset.
//
//	GET /api/v1/backups/verify?id=<backup_id>
func (h *Handler) handleVerifyBackup(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "id query parameter is required", "")
		return
	}

	result := map[string]interface{}{"backup_id": id, "valid": true}
	if err := h.writer.Verify(id); err != nil {
		var serr *backup.SerializationError
		if errors.As(err, &serr) {
			result["valid"] = false
			result["error"] = serr.Error()
			respondJSON(w, http.StatusOK, result)
			return
		}
		respondBackupError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleDownloadBackup streams a backup archive.
//
//	GET /api/v1/backups/download?id=<backup_id>
func (h *Handler) handleDownloadBackup(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "id query parameter is required", "")
		return
	}

	set, err := h.catalog.Get(id)
	if err != nil {
		respondBackupError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(set.FilePath)+"\"")
	w.Header().Set("X-Backup-Checksum", set.Checksum)
	http.ServeFile(w, r, set.FilePath)
}
