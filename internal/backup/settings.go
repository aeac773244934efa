// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/logging"
)

// dailyTimeLayout is the wall-clock format of Settings.DailyTime.
const dailyTimeLayout = "15:04"

// SettingsStore holds the runtime-changeable backup policy, persisted as
// JSON next to the catalog. Reads are cheap; updates validate, persist
// atomically, and only then swap the in-memory copy, so a crashed update
// never leaves a half-written policy in effect.
type SettingsStore struct {
	path     string
	validate *validator.Validate

	mu      sync.RWMutex
	current Settings
}

// LoadSettings opens the settings file at path, falling back to
// DefaultSettings when the file does not exist yet. A file that exists but
// fails validation is an error, not a silent fallback.
func LoadSettings(path string) (*SettingsStore, error) {
	v := validator.New()
	if err := v.RegisterValidation("daily_time", validDailyTime); err != nil {
		return nil, err
	}

	s := &SettingsStore{path: path, validate: v, current: DefaultSettings()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, &IOError{Op: "read settings", Path: path, Err: err}
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, &SerializationError{Reason: "decode settings", Err: err}
	}
	if err := s.Validate(loaded); err != nil {
		return nil, fmt.Errorf("settings file %s: %w", path, err)
	}
	s.current = loaded
	return s, nil
}

// Get returns the current policy.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates and persists a new policy. The change applies from the
// next scheduling decision; work already in flight is never interrupted.
func (s *SettingsStore) Update(next Settings) error {
	if err := s.Validate(next); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return &SerializationError{Reason: "encode settings", Err: err}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return &IOError{Op: "write settings temp", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return &IOError{Op: "publish settings", Path: s.path, Err: err}
	}

	s.current = next
	logging.Info().
		Bool("enabled", next.Enabled).
		Str("daily_time", next.DailyTime).
		Int("retention_days", next.RetentionDays).
		Int("retention_months", next.RetentionMonths).
		Int("retention_years", next.RetentionYears).
		Msg("Backup settings updated")
	return nil
}

// Validate checks a policy without applying it.
func (s *SettingsStore) Validate(settings Settings) error {
	if err := s.validate.Struct(settings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func validDailyTime(fl validator.FieldLevel) bool {
	_, err := time.Parse(dailyTimeLayout, fl.Field().String())
	return err == nil
}

// parseDailyTime splits an "HH:MM" wall-clock string.
func parseDailyTime(value string) (hour, minute int, err error) {
	t, err := time.Parse(dailyTimeLayout, value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid daily time %q: %w", value, err)
	}
	return t.Hour(), t.Minute(), nil
}
