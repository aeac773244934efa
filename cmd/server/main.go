// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

// Command server runs the CRM backup subsystem: the daily snapshot
// scheduler and the HTTP API, supervised by a Suture tree.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/api"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/backup"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/config"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/dataset"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/logging"
	"github.com/peterrefaatx/Corvia-CRM-sub000/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", api.Version).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting Corvia backup subsystem")

	store, err := dataset.OpenBadgerStore(cfg.Dataset.Dir, cfg.Dataset.EntityOrder)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn().Err(err).Msg("Dataset store close failed")
		}
	}()

	catalog, err := backup.OpenCatalog(cfg.Backup.Dir)
	if err != nil {
		return err
	}
	settings, err := backup.LoadSettings(cfg.Backup.SettingsPath())
	if err != nil {
		return err
	}

	writer := backup.NewWriter(cfg.Backup, store, catalog)
	merger := backup.NewMerger(store, cfg.Backup)
	tracker := backup.NewTracker(writer, merger, catalog)
	sweeper := backup.NewSweeper(catalog)
	scheduler := backup.NewScheduler(cfg.Backup, writer, sweeper, settings, tracker)

	handler := api.NewHandler(cfg, writer, catalog, tracker, settings)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.NewRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	treeConfig := supervisor.DefaultTreeConfig()
	treeConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeConfig)
	if cfg.Backup.Enabled {
		tree.AddCoreService(scheduler)
	}
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// Let any in-flight restore reach its terminal state before the store
	// closes underneath it.
	logging.Info().Msg("Waiting for in-flight restore jobs")
	tracker.Wait()

	logging.Info().Msg("Shutdown complete")
	return nil
}
