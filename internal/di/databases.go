// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/stockerhq/stocker/internal/config"
	"github.com/stockerhq/stocker/internal/database"
	"github.com/stockerhq/stocker/internal/modules/ledger"
	"github.com/stockerhq/stocker/internal/modules/portfolio"
)

// initializeStores opens the databases and builds the ledger and position
// stores, or their in-memory equivalents for the memory backend.
func initializeStores(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if cfg.Storage == config.StorageMemory {
		container.Ledger = ledger.NewMemoryOrderRepository(log)
		container.Positions = portfolio.NewMemoryPositionRepository(log)
		log.Info().Msg("Using in-memory stores")
		return nil
	}

	// ledger.db holds the immutable trade record and gets the safest profile
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	if err := ledgerDB.Migrate(); err != nil {
		ledgerDB.Close()
		return fmt.Errorf("failed to migrate ledger database: %w", err)
	}
	container.LedgerDB = ledgerDB

	// portfolio.db holds the mutable position snapshots
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		ledgerDB.Close()
		return fmt.Errorf("failed to initialize portfolio database: %w", err)
	}
	if err := portfolioDB.Migrate(); err != nil {
		ledgerDB.Close()
		portfolioDB.Close()
		return fmt.Errorf("failed to migrate portfolio database: %w", err)
	}
	container.PortfolioDB = portfolioDB

	container.Ledger = ledger.NewOrderRepository(ledgerDB.Conn(), log)
	container.Positions = portfolio.NewPositionRepository(portfolioDB.Conn(), log)

	return nil
}
