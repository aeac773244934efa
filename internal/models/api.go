// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

// Package models holds the wire types shared by the HTTP API.
package models

import "time"

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Error    *APIError   `json:"error,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// Metadata carries response bookkeeping.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error codes returned by the API.
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeConflict   = "conflict"
	ErrCodeInternal   = "internal_error"
	ErrCodeDisabled   = "disabled"
)

// CreateBackupRequest is the body of POST /api/v1/backups.
type CreateBackupRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// RestoreRequest is the body of POST /api/v1/restore.
type RestoreRequest struct {
	BackupID string `json:"backup_id" validate:"required,uuid4"`
}

// RestoreAccepted is the payload returned when a restore job is accepted.
type RestoreAccepted struct {
	JobID string `json:"job_id"`
}

// HealthStatus is the payload of GET /health.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}
