// Package main is the entry point for the Stocker trade accounting server.
// The server simulates a live price feed over a fixed universe, executes buy
// and sell orders against it, and keeps two records of every account: an
// append-only trade ledger and a mutable position snapshot derived from it.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stockerhq/stocker/internal/config"
	"github.com/stockerhq/stocker/internal/di"
	"github.com/stockerhq/stocker/internal/scheduler"
	"github.com/stockerhq/stocker/internal/server"
	"github.com/stockerhq/stocker/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("storage", cfg.Storage).
		Dur("tick_interval", cfg.TickInterval).
		Msg("Starting Stocker")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Repair any snapshot drift left over from an unclean shutdown before
	// accepting orders.
	if repaired, err := container.Reconciler.ReconcileAll(); err != nil {
		log.Error().Err(err).Msg("Startup reconciliation failed")
	} else if repaired > 0 {
		log.Warn().Int("repaired", repaired).Msg("Startup reconciliation repaired positions")
	}

	sched := scheduler.New(log)

	tickSchedule := "@every " + cfg.TickInterval.String()
	if err := sched.AddJob(tickSchedule, scheduler.NewFeedTickJob(container.Feed)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register feed tick job")
	}
	if err := sched.AddJob("@every 1m", scheduler.NewFeedStateJob(container.Feed, cfg.DataDir)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register feed state job")
	}
	if err := sched.AddJob("@every 5m", scheduler.NewReconcileJob(container.Reconciler)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register reconcile job")
	}
	if container.Backup != nil {
		if err := sched.AddJob("@hourly", scheduler.NewBackupJob(container.Backup)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}

	sched.Start()

	srv := server.New(server.Config{
		Log:         log,
		Config:      cfg,
		LedgerDB:    container.LedgerDB,
		PortfolioDB: container.PortfolioDB,
		Modules:     container.Modules,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sched.Stop()

	if err := container.Feed.SaveState(cfg.DataDir); err != nil {
		log.Error().Err(err).Msg("Failed to persist feed state")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
