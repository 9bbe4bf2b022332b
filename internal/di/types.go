package di

import (
	"github.com/stockerhq/stocker/internal/database"
	"github.com/stockerhq/stocker/internal/domain"
	"github.com/stockerhq/stocker/internal/modules/feed"
	"github.com/stockerhq/stocker/internal/modules/reporting"
	"github.com/stockerhq/stocker/internal/modules/trading"
	"github.com/stockerhq/stocker/internal/reliability"
	"github.com/stockerhq/stocker/internal/server"
)

// Container holds all initialized dependencies. The database handles are nil
// when the memory backend is active.
type Container struct {
	LedgerDB    *database.DB
	PortfolioDB *database.DB

	Ledger    domain.LedgerStore
	Positions domain.PositionStore

	Feed       *feed.Simulator
	Engine     *trading.Engine
	Reconciler *trading.Reconciler
	Reporting  *reporting.Service
	Backup     *reliability.BackupService // nil when backups are not configured

	Modules []server.RouteRegistrar
}

// Close releases database handles
func (c *Container) Close() {
	if c.LedgerDB != nil {
		c.LedgerDB.Close()
	}
	if c.PortfolioDB != nil {
		c.PortfolioDB.Close()
	}
}
