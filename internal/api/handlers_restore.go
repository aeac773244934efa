// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package api

import (
	"net/http"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/models"
)

// handleStartRestore accepts a restore request and returns a pollable job
// ID. Acceptance is the last synchronous signal; everything after comes
// from the job record.
//
//	POST /api/v1/restore {"backup_id": "..."}
func (h *Handler) handleStartRestore(w http.ResponseWriter, r *http.Request) {
	var req models.RestoreRequest
	if err := decodeRequest(r, h.validate, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, err.Error(), "")
		return
	}

	jobID, err := h.tracker.StartRestore(req.BackupID)
	if err != nil {
		respondBackupError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, models.RestoreAccepted{JobID: jobID})
}

// handleRestoreStatus returns one restore job record.
//
//	GET /api/v1/restore/status?job_id=<job_id>
func (h *Handler) handleRestoreStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "job_id query parameter is required", "")
		return
	}

	job, err := h.tracker.GetJob(jobID)
	if err != nil {
		respondBackupError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// handleListRestoreJobs returns all retained job records, newest first.
//
//	GET /api/v1/restore/jobs
func (h *Handler) handleListRestoreJobs(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.tracker.ListJobs())
}
