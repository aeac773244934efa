// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"path/filepath"
	"testing"
)

func TestLoadSettingsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}

	got := store.Get()
	want := DefaultSettings()
	if got != want {
		t.Errorf("Get() = %+v, want defaults %+v", got, want)
	}
}

func TestSettingsUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}

	next := Settings{
		Enabled:         false,
		DailyTime:       "04:30",
		RetentionDays:   14,
		RetentionMonths: 6,
		RetentionYears:  2,
	}
	if err := store.Update(next); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := store.Get(); got != next {
		t.Errorf("Get() after update = %+v, want %+v", got, next)
	}

	// A fresh load sees the persisted policy.
	reloaded, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() reload error = %v", err)
	}
	if got := reloaded.Get(); got != next {
		t.Errorf("reloaded settings = %+v, want %+v", got, next)
	}
}

func TestSettingsUpdateRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}

	tests := []struct {
		name string
		mod  func(*Settings)
	}{
		{"bad daily time", func(s *Settings) { s.DailyTime = "25:99" }},
		{"empty daily time", func(s *Settings) { s.DailyTime = "" }},
		{"zero retention days", func(s *Settings) { s.RetentionDays = 0 }},
		{"negative retention months", func(s *Settings) { s.RetentionMonths = -1 }},
	}

	before := store.Get()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := DefaultSettings()
			tt.mod(&next)
			if err := store.Update(next); err == nil {
				t.Error("Update() accepted invalid settings")
			}
			if got := store.Get(); got != before {
				t.Errorf("rejected update still changed settings: %+v", got)
			}
		})
	}
}

func TestParseDailyTime(t *testing.T) {
	hour, minute, err := parseDailyTime("23:45")
	if err != nil {
		t.Fatalf("parseDailyTime() error = %v", err)
	}
	if hour != 23 || minute != 45 {
		t.Errorf("parseDailyTime() = %d:%d, want 23:45", hour, minute)
	}

	if _, _, err := parseDailyTime("nope"); err == nil {
		t.Error("parseDailyTime() accepted garbage")
	}
}
