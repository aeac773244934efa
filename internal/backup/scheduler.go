// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package backup

import (
	"context"
	"errors"
	"time"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/logging"
)

// Scheduler fires one daily snapshot at the configured wall-clock time and
// runs the retention sweep after each success. It implements
// suture.Service and is restarted by the supervisor if it ever returns
// unexpectedly.
//
// The settings store is re-read at every scheduling decision, so an
// operator change to DailyTime or Enabled takes effect at the next tick
// without a restart.
type Scheduler struct {
	writer   *Writer
	sweeper  *Sweeper
	settings *SettingsStore
	tracker  *Tracker
	cfg      Config
}

// NewScheduler creates the daily snapshot scheduler.
func NewScheduler(cfg Config, writer *Writer, sweeper *Sweeper, settings *SettingsStore, tracker *Tracker) *Scheduler {
	return &Scheduler{
		writer:   writer,
		sweeper:  sweeper,
		settings: settings,
		tracker:  tracker,
		cfg:      cfg,
	}
}

// Serve runs the scheduling loop until the context is cancelled.
func (s *Scheduler) Serve(ctx context.Context) error {
	logging.Info().Msg("Backup scheduler started")

	timer := time.NewTimer(s.untilNextRun(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Backup scheduler stopping")
			return ctx.Err()
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.untilNextRun(time.Now()))
		}
	}
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string { return "backup-scheduler" }

// tick runs one scheduled snapshot plus retention, and prunes stale
// terminal restore jobs as housekeeping.
func (s *Scheduler) tick(ctx context.Context) {
	settings := s.settings.Get()
	if !settings.Enabled {
		logging.Debug().Msg("Scheduled snapshot skipped, backups disabled")
		return
	}

	set, err := s.writer.CreateSnapshot(ctx, ClassDaily, TriggerScheduled, "Scheduled daily snapshot")
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			return
		}
		logging.Error().Err(err).Msg("Scheduled snapshot failed")
		return
	}

	report := s.sweeper.Sweep(set, settings)
	for _, sweepErr := range report.Errors {
		logging.Warn().Err(sweepErr).Msg("Retention sweep error")
	}

	if s.tracker != nil && s.cfg.JobRetention > 0 {
		if pruned := s.tracker.PruneJobs(s.cfg.JobRetention); pruned > 0 {
			logging.Debug().Int("pruned", pruned).Msg("Stale restore jobs pruned")
		}
	}
}

// untilNextRun returns the wait until the next configured daily time,
// always in the future. An unparseable stored value falls back to the
// default schedule rather than stalling the loop.
func (s *Scheduler) untilNextRun(now time.Time) time.Duration {
	settings := s.settings.Get()
	hour, minute, err := parseDailyTime(settings.DailyTime)
	if err != nil {
		hour, minute, _ = parseDailyTime(DefaultSettings().DailyTime)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
