// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a backup set or restore job does not
	// exist in the catalog or job tracker.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a restore is requested while another
	// restore job is still running. At most one job runs at a time.
	ErrConflict = errors.New("a restore job is already running")

	// ErrDisabled is returned when snapshot creation is requested while the
	// subsystem is disabled by configuration.
	ErrDisabled = errors.New("backups are disabled")
)

// IOError wraps a filesystem or storage failure with the operation that hit
// it. Callers match with errors.As to distinguish storage trouble from data
// corruption.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// SerializationError marks an archive that could not be decoded or whose
// contents do not match the recorded checksum. It always means the payload
// cannot be trusted; the live dataset was not touched.
type SerializationError struct {
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive unusable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("archive unusable: %s", e.Reason)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// PartialMergeError reports a merge that failed partway through. Entities
// listed in Completed were merged in full; Entity is where the failure hit.
// The live dataset may hold records from the completed entities, which is
// safe: merge only inserts or updates, never deletes.
type PartialMergeError struct {
	Entity    string
	Completed map[string]MergeCounts
	Err       error
}

func (e *PartialMergeError) Error() string {
	done := make([]string, 0, len(e.Completed))
	for entity := range e.Completed {
		done = append(done, entity)
	}
	sort.Strings(done)
	return fmt.Sprintf("merge failed at entity %q (completed: %s): %v",
		e.Entity, strings.Join(done, ","), e.Err)
}

func (e *PartialMergeError) Unwrap() error { return e.Err }
