// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package api

import (
	"net/http"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/backup"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/models"
)

// handleGetSettings returns the current backup policy.
//
//	GET /api/v1/settings/backup
func (h *Handler) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.settings.Get())
}

// handleUpdateSettings replaces the backup policy. The new policy takes
// effect at the next scheduling decision; in-flight work is untouched.
//
//	PUT /api/v1/settings/backup
func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var next backup.Settings
	if err := decodeJSON(r, &next); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, err.Error(), "")
		return
	}

	if err := h.settings.Update(next); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, err.Error(), "")
		return
	}
	respondJSON(w, http.StatusOK, h.settings.Get())
}
