// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/backup"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/logging"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/models"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// respondJSON writes a success envelope.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := models.APIResponse{
		Status:   "error",
		Error:    &models.APIError{Code: code, Message: message, Details: details},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode error response")
	}
}

// respondBackupError maps backup package errors onto HTTP statuses.
func respondBackupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backup.ErrNotFound):
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, err.Error(), "")
	case errors.Is(err, backup.ErrConflict):
		respondError(w, http.StatusConflict, models.ErrCodeConflict, err.Error(), "")
	case errors.Is(err, backup.ErrDisabled):
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeDisabled, err.Error(), "")
	default:
		logging.Error().Err(err).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "internal error", err.Error())
	}
}

// decodeRequest reads, decodes, and validates a JSON request body.
func decodeRequest(r *http.Request, v *validator.Validate, dst interface{}) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	if err := v.Struct(dst); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// decodeJSON reads and decodes a JSON request body without struct
// validation; used when the domain layer owns validation.
func decodeJSON(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
