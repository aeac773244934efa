// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"time"
)

// BackupClass determines how retention treats a backup set.
type BackupClass string

const (
	ClassDaily   BackupClass = "daily"
	ClassMonthly BackupClass = "monthly"
	ClassYearly  BackupClass = "yearly"
	ClassManual  BackupClass = "manual"
)

// Classes lists every backup class in display order.
var Classes = []BackupClass{ClassDaily, ClassMonthly, ClassYearly, ClassManual}

// Valid reports whether the class is one of the known classes.
func (c BackupClass) Valid() bool {
	switch c {
	case ClassDaily, ClassMonthly, ClassYearly, ClassManual:
		return true
	}
	return false
}

// Trigger records what caused a snapshot to be taken.
type Trigger string

const (
	TriggerScheduled  Trigger = "scheduled"
	TriggerManual     Trigger = "manual"
	TriggerPreRestore Trigger = "pre_restore"
)

// BackupSet is one immutable catalog entry describing a published snapshot.
//
// Monthly and Yearly entries are aliases: they share the payload file of the
// Daily set they were promoted from (AliasOf names it), and the payload is
// removed only when the last entry referencing it is deleted.
type BackupSet struct {
	ID            string         `json:"id"`
	Class         BackupClass    `json:"class"`
	Trigger       Trigger        `json:"trigger"`
	CreatedAt     time.Time      `json:"created_at"`
	Duration      time.Duration  `json:"duration"`
	FilePath      string         `json:"file_path"`
	SizeBytes     int64          `json:"size_bytes"`
	Checksum      string         `json:"checksum"`
	SchemaVersion string         `json:"schema_version"`
	RecordCounts  map[string]int `json:"record_counts"`
	AliasOf       string         `json:"alias_of,omitempty"`
	Note          string         `json:"note,omitempty"`
}

// TotalRecords returns the record count across all entities in the set.
func (b *BackupSet) TotalRecords() int {
	total := 0
	for _, n := range b.RecordCounts {
		total += n
	}
	return total
}

// IsAlias reports whether this entry shares another entry's payload file.
func (b *BackupSet) IsAlias() bool { return b.AliasOf != "" }

// JobStatus is the lifecycle state of a restore job. A job transitions from
// Running to exactly one terminal state and never changes again.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// MergeCounts summarizes one entity's merge outcome.
type MergeCounts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Add accumulates counts from another tally.
func (m *MergeCounts) Add(other MergeCounts) {
	m.Inserted += other.Inserted
	m.Updated += other.Updated
	m.Skipped += other.Skipped
}

// RestoreJob is the pollable record of one asynchronous restore. GetJob
// returns copies; callers never observe a job mid-update.
type RestoreJob struct {
	ID              string                 `json:"id"`
	BackupID        string                 `json:"backup_id"`
	Status          JobStatus              `json:"status"`
	ProgressPercent int                    `json:"progress_percent"`
	CurrentStep     string                 `json:"current_step"`
	StartedAt       time.Time              `json:"started_at"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	SafetyBackupID  string                 `json:"safety_backup_id,omitempty"`
	Result          map[string]MergeCounts `json:"result,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

// clone returns a deep copy safe to hand to pollers.
func (j *RestoreJob) clone() *RestoreJob {
	out := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.Result != nil {
		out.Result = make(map[string]MergeCounts, len(j.Result))
		for entity, counts := range j.Result {
			out.Result[entity] = counts
		}
	}
	return &out
}

// Settings is the persisted, runtime-changeable backup policy. Changes apply
// from the next scheduling decision; they never interrupt work in flight.
type Settings struct {
	Enabled         bool   `json:"enabled"`
	DailyTime       string `json:"daily_time" validate:"required,daily_time"`
	RetentionDays   int    `json:"retention_days" validate:"min=1,max=3650"`
	RetentionMonths int    `json:"retention_months" validate:"min=1,max=120"`
	RetentionYears  int    `json:"retention_years" validate:"min=1,max=100"`
}

// DefaultSettings returns the policy used until an operator changes it:
// daily snapshots at 02:00 local time, keeping 7 dailies, 12 monthlies,
// and 5 yearlies.
func DefaultSettings() Settings {
	return Settings{
		Enabled:         true,
		DailyTime:       "02:00",
		RetentionDays:   7,
		RetentionMonths: 12,
		RetentionYears:  5,
	}
}

// CatalogStats is the aggregate view of the catalog returned by Stats.
// SizeBytes counts each shared payload file once.
type CatalogStats struct {
	TotalSets      int                 `json:"total_sets"`
	SetsByClass    map[BackupClass]int `json:"sets_by_class"`
	SizeBytes      int64               `json:"size_bytes"`
	OldestCreated  *time.Time          `json:"oldest_created,omitempty"`
	NewestCreated  *time.Time          `json:"newest_created,omitempty"`
	LastDailyAt    *time.Time          `json:"last_daily_at,omitempty"`
	PayloadFiles   int                 `json:"payload_files"`
	TotalRecords   int                 `json:"total_records"`
	NewestBackupID string              `json:"newest_backup_id,omitempty"`
}
