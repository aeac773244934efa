// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"testing"
	"time"
)

func TestSweepPromotesFirstDailyOfPeriod(t *testing.T) {
	_, catalog, _, _ := newTestEnv(t)
	sweeper := NewSweeper(catalog)
	now := time.Now().UTC()

	first := syntheticSet(t, catalog, ClassDaily, TriggerScheduled, now, "/tmp/first")
	report := sweeper.Sweep(first, DefaultSettings())

	if report.PromotedMonthly == nil || report.PromotedYearly == nil {
		t.Fatalf("report = %+v, want monthly and yearly promotions", report)
	}
	if report.PromotedMonthly.AliasOf != first.ID || report.PromotedMonthly.FilePath != first.FilePath {
		t.Errorf("monthly alias = %+v, want alias of %s sharing payload", report.PromotedMonthly, first.ID)
	}

	// A later daily in the same month and year promotes nothing.
	second := syntheticSet(t, catalog, ClassDaily, TriggerScheduled, now.Add(time.Minute), "/tmp/second")
	report = sweeper.Sweep(second, DefaultSettings())
	if report.PromotedMonthly != nil || report.PromotedYearly != nil {
		t.Errorf("second daily promoted: %+v", report)
	}

	stats := catalog.Stats()
	if stats.SetsByClass[ClassMonthly] != 1 || stats.SetsByClass[ClassYearly] != 1 {
		t.Errorf("SetsByClass = %v, want exactly one monthly and one yearly", stats.SetsByClass)
	}
}

func TestSweepDoesNotPromoteManualOrUnscheduled(t *testing.T) {
	_, catalog, _, _ := newTestEnv(t)
	sweeper := NewSweeper(catalog)
	now := time.Now().UTC()

	manual := syntheticSet(t, catalog, ClassManual, TriggerManual, now, "/tmp/manual")
	if report := sweeper.Sweep(manual, DefaultSettings()); report.PromotedMonthly != nil {
		t.Error("manual snapshot was promoted")
	}

	// A manually triggered daily-class set is not an automated snapshot.
	odd := syntheticSet(t, catalog, ClassDaily, TriggerManual, now, "/tmp/odd")
	if report := sweeper.Sweep(odd, DefaultSettings()); report.PromotedMonthly != nil {
		t.Error("manually triggered set was promoted")
	}
}

func TestSweepPruneRespectsClassWindows(t *testing.T) {
	_, catalog, _, _ := newTestEnv(t)
	sweeper := NewSweeper(catalog)
	now := time.Now().UTC()

	settings := DefaultSettings()
	settings.RetentionDays = 7
	settings.RetentionMonths = 12
	settings.RetentionYears = 5

	expired := syntheticSet(t, catalog, ClassDaily, TriggerScheduled, now.AddDate(0, 0, -8), "/tmp/d8")
	kept := syntheticSet(t, catalog, ClassDaily, TriggerScheduled, now.AddDate(0, 0, -6), "/tmp/d6")
	expiredMonthly := syntheticSet(t, catalog, ClassMonthly, TriggerScheduled, now.AddDate(0, -13, 0), "/tmp/m13")
	keptMonthly := syntheticSet(t, catalog, ClassMonthly, TriggerScheduled, now.AddDate(0, -11, 0), "/tmp/m11")
	keptYearly := syntheticSet(t, catalog, ClassYearly, TriggerScheduled, now.AddDate(-4, 0, 0), "/tmp/y4")

	report := sweeper.Sweep(nil, settings)
	if len(report.Errors) != 0 {
		t.Fatalf("sweep errors = %v", report.Errors)
	}

	pruned := make(map[string]bool, len(report.PrunedIDs))
	for _, id := range report.PrunedIDs {
		pruned[id] = true
	}
	if !pruned[expired.ID] || !pruned[expiredMonthly.ID] {
		t.Errorf("expired sets not pruned: %v", report.PrunedIDs)
	}
	for _, keep := range []*BackupSet{kept, keptMonthly, keptYearly} {
		if pruned[keep.ID] {
			t.Errorf("set %s (%s) pruned inside its window", keep.ID, keep.Class)
		}
		if _, err := catalog.Get(keep.ID); err != nil {
			t.Errorf("kept set %s missing from catalog: %v", keep.ID, err)
		}
	}
}

func TestSweepNeverPrunesManual(t *testing.T) {
	_, catalog, _, _ := newTestEnv(t)
	sweeper := NewSweeper(catalog)

	ancient := syntheticSet(t, catalog, ClassManual, TriggerManual,
		time.Now().UTC().AddDate(-10, 0, 0), "/tmp/ancient")

	report := sweeper.Sweep(nil, DefaultSettings())
	if len(report.PrunedIDs) != 0 {
		t.Errorf("PrunedIDs = %v, want none", report.PrunedIDs)
	}
	if _, err := catalog.Get(ancient.ID); err != nil {
		t.Errorf("ancient manual set was pruned: %v", err)
	}
}

func TestSweepPrunesAllExpiredSets(t *testing.T) {
	_, catalog, _, _ := newTestEnv(t)
	sweeper := NewSweeper(catalog)
	now := time.Now().UTC()

	a := syntheticSet(t, catalog, ClassDaily, TriggerScheduled, now.AddDate(0, 0, -10), "/tmp/a")
	b := syntheticSet(t, catalog, ClassDaily, TriggerScheduled, now.AddDate(0, 0, -9), "/tmp/b")

	report := sweeper.Sweep(nil, DefaultSettings())
	pruned := make(map[string]bool, len(report.PrunedIDs))
	for _, id := range report.PrunedIDs {
		pruned[id] = true
	}
	if !pruned[a.ID] || !pruned[b.ID] {
		t.Errorf("PrunedIDs = %v, want both expired dailies", report.PrunedIDs)
	}
}
