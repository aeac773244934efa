// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"time"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/logging"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/metrics"
)

// Sweeper applies grandfather-father-son retention after each scheduled
// snapshot: the first scheduled daily of a calendar month is promoted to a
// Monthly alias (and of a year to a Yearly alias), then entries older than
// the per-class retention window are pruned. Manual snapshots are never
// pruned; only an explicit catalog Delete removes them.
type Sweeper struct {
	catalog *Catalog
}

// NewSweeper creates a retention sweeper over the catalog.
func NewSweeper(catalog *Catalog) *Sweeper {
	return &Sweeper{catalog: catalog}
}

// SweepReport summarizes one retention pass. Errors are collected per set;
// one bad entry never stops the sweep.
type SweepReport struct {
	PromotedMonthly *BackupSet
	PromotedYearly  *BackupSet
	PrunedIDs       []string
	Errors          []error
}

// Sweep promotes the just-created snapshot if it is the first of its month
// or year, then prunes expired entries. Retention failures are reported in
// the SweepReport, never as a snapshot failure: the snapshot that triggered
// the sweep is already published.
func (s *Sweeper) Sweep(created *BackupSet, settings Settings) SweepReport {
	var report SweepReport
	s.promote(created, &report)
	s.prune(settings, &report)

	if len(report.PrunedIDs) > 0 || report.PromotedMonthly != nil || report.PromotedYearly != nil {
		logging.Info().
			Int("pruned", len(report.PrunedIDs)).
			Bool("promoted_monthly", report.PromotedMonthly != nil).
			Bool("promoted_yearly", report.PromotedYearly != nil).
			Int("errors", len(report.Errors)).
			Msg("Retention sweep finished")
	}
	return report
}

// promote registers Monthly and Yearly aliases for the first scheduled
// daily of a period. The alias shares the daily's payload file; no bytes
// are copied.
func (s *Sweeper) promote(created *BackupSet, report *SweepReport) {
	if created == nil || created.Class != ClassDaily || created.Trigger != TriggerScheduled {
		return
	}

	year, month, _ := created.CreatedAt.UTC().Date()
	hasMonthly, hasYearly := false, false
	for _, set := range s.catalog.List() {
		if set.ID == created.ID {
			continue
		}
		y, m, _ := set.CreatedAt.UTC().Date()
		if set.Class == ClassMonthly && y == year && m == month {
			hasMonthly = true
		}
		if set.Class == ClassYearly && y == year {
			hasYearly = true
		}
	}

	if !hasMonthly {
		alias, err := s.catalog.RegisterAlias(created, ClassMonthly)
		if err != nil {
			report.Errors = append(report.Errors, err)
		} else {
			report.PromotedMonthly = alias
		}
	}
	if !hasYearly {
		alias, err := s.catalog.RegisterAlias(created, ClassYearly)
		if err != nil {
			report.Errors = append(report.Errors, err)
		} else {
			report.PromotedYearly = alias
		}
	}
}

// prune deletes entries older than their class's retention window.
func (s *Sweeper) prune(settings Settings, report *SweepReport) {
	now := time.Now().UTC()
	cutoffs := map[BackupClass]time.Time{
		ClassDaily:   now.AddDate(0, 0, -settings.RetentionDays),
		ClassMonthly: now.AddDate(0, -settings.RetentionMonths, 0),
		ClassYearly:  now.AddDate(-settings.RetentionYears, 0, 0),
	}

	for _, set := range s.catalog.List() {
		cutoff, pruneable := cutoffs[set.Class]
		if !pruneable || !set.CreatedAt.Before(cutoff) {
			continue
		}

		if err := s.catalog.Delete(set.ID); err != nil {
			report.Errors = append(report.Errors, err)
			logging.Warn().
				Err(err).
				Str("backup_id", set.ID).
				Msg("Retention prune failed for one set")
			continue
		}
		report.PrunedIDs = append(report.PrunedIDs, set.ID)
		metrics.RetentionPrunedTotal.WithLabelValues(string(set.Class)).Inc()
	}
}
