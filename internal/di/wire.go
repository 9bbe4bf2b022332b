package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockerhq/stocker/internal/config"
	"github.com/stockerhq/stocker/internal/modules/feed"
	feedhandlers "github.com/stockerhq/stocker/internal/modules/feed/handlers"
	ledgerhandlers "github.com/stockerhq/stocker/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/stockerhq/stocker/internal/modules/portfolio/handlers"
	"github.com/stockerhq/stocker/internal/modules/reporting"
	reportinghandlers "github.com/stockerhq/stocker/internal/modules/reporting/handlers"
	"github.com/stockerhq/stocker/internal/modules/trading"
	tradinghandlers "github.com/stockerhq/stocker/internal/modules/trading/handlers"
	"github.com/stockerhq/stocker/internal/reliability"
	"github.com/stockerhq/stocker/internal/server"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Initialize stores (databases or in-memory)
// 2. Initialize the price feed, restoring persisted state when present
// 3. Initialize the engine, reconciler and reporting service
// 4. Initialize optional backup support
// 5. Build the module handler sets for the server
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	if err := initializeStores(container, cfg, log); err != nil {
		return nil, err
	}

	floor, err := decimal.NewFromString(cfg.PriceFloor)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("invalid price floor %q: %w", cfg.PriceFloor, err)
	}

	simulator, err := feed.New(feed.Config{
		Instruments: feed.DefaultUniverse(),
		PriceFloor:  floor,
		Seed:        cfg.FeedSeed,
	}, log)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize price feed: %w", err)
	}
	if err := simulator.LoadState(cfg.DataDir); err != nil {
		log.Warn().Err(err).Msg("Failed to restore feed state, starting from defaults")
	}
	container.Feed = simulator

	container.Engine = trading.NewEngine(simulator, container.Ledger, container.Positions, log)
	container.Reconciler = trading.NewReconciler(container.Ledger, container.Positions, container.Engine, log)
	container.Reporting = reporting.NewService(simulator, container.Ledger, container.Positions, log)

	if cfg.Backup.Enabled {
		store, err := reliability.NewObjectStoreClient(context.Background(), cfg.Backup, log)
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize backup client: %w", err)
		}
		container.Backup = reliability.NewBackupService(store, cfg.DataDir, cfg.Backup.Prefix, log)
	}

	container.Modules = []server.RouteRegistrar{
		feedhandlers.NewHandler(simulator, cfg.TickInterval, log),
		ledgerhandlers.NewHandler(container.Ledger, log),
		portfoliohandlers.NewHandler(container.Reporting, log),
		tradinghandlers.NewHandler(container.Engine, container.Reconciler, log),
		reportinghandlers.NewHandler(container.Reporting, log),
	}

	return container, nil
}
