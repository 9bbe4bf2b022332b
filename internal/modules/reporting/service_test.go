package reporting

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockerhq/stocker/internal/domain"
	"github.com/stockerhq/stocker/internal/modules/ledger"
	"github.com/stockerhq/stocker/internal/modules/portfolio"
)

type fixedFeed struct {
	prices map[string]decimal.Decimal
}

func (f *fixedFeed) CurrentPrice(symbol string) (decimal.Decimal, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrUnknownInstrument, symbol)
	}
	return price, nil
}

func (f *fixedFeed) Snapshot() []domain.Quote {
	return nil
}

func newTestService(t *testing.T) (*Service, *ledger.MemoryOrderRepository, *portfolio.MemoryPositionRepository) {
	t.Helper()
	log := zerolog.Nop()
	feed := &fixedFeed{prices: map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("200.00"),
		"MSFT": decimal.RequireFromString("400.00"),
	}}
	orders := ledger.NewMemoryOrderRepository(log)
	positions := portfolio.NewMemoryPositionRepository(log)
	return NewService(feed, orders, positions, log), orders, positions
}

func seedPosition(t *testing.T, positions domain.PositionStore, holderID, symbol string, quantity int64, avgCost string) {
	t.Helper()
	err := positions.Replace(holderID, symbol, &domain.Position{
		HolderID: holderID,
		Symbol:   symbol,
		Quantity: quantity,
		AvgCost:  decimal.RequireFromString(avgCost),
	})
	require.NoError(t, err)
}

func seedTrade(t *testing.T, orders domain.LedgerStore, holderID, symbol string, quantity int64, price string) {
	t.Helper()
	p := decimal.RequireFromString(price)
	_, err := orders.Append(domain.Order{
		OrderUID:    uuid.NewString(),
		HolderID:    holderID,
		Symbol:      symbol,
		Side:        domain.SideBuy,
		Quantity:    quantity,
		Price:       p,
		TotalAmount: p.Mul(decimal.NewFromInt(quantity)),
		ExecutedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestHolderPortfolioValuation(t *testing.T) {
	service, _, positions := newTestService(t)

	seedPosition(t, positions, "alice", "AAPL", 10, "180.50")
	seedPosition(t, positions, "alice", "MSFT", 2, "410.00")
	seedPosition(t, positions, "bob", "AAPL", 5, "150.00")

	entries, err := service.HolderPortfolio("alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Sorted by symbol
	aapl := entries[0]
	assert.Equal(t, "AAPL", aapl.Symbol)
	assert.Equal(t, int64(10), aapl.Quantity)
	assert.True(t, aapl.CostBasis.Equal(decimal.RequireFromString("1805.00")))
	assert.True(t, aapl.MarketValue.Equal(decimal.RequireFromString("2000.00")))
	assert.True(t, aapl.UnrealizedPnL.Equal(decimal.RequireFromString("195.00")))
	assert.True(t, aapl.Priced)

	msft := entries[1]
	assert.Equal(t, "MSFT", msft.Symbol)
	assert.True(t, msft.UnrealizedPnL.Equal(decimal.RequireFromString("-20.00")))
}

func TestHolderPortfolioEmpty(t *testing.T) {
	service, _, _ := newTestService(t)

	entries, err := service.HolderPortfolio("nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}

func TestHolderPortfolioUnpricedPosition(t *testing.T) {
	service, _, positions := newTestService(t)

	// Held symbol no longer in the price universe
	seedPosition(t, positions, "alice", "GONE", 3, "50.00")

	entries, err := service.HolderPortfolio("alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.False(t, entry.Priced)
	assert.True(t, entry.CostBasis.Equal(decimal.RequireFromString("150.00")))
	assert.True(t, entry.MarketValue.IsZero())
}

func TestAdminSummary(t *testing.T) {
	service, orders, positions := newTestService(t)

	seedPosition(t, positions, "alice", "AAPL", 10, "180.50")
	seedPosition(t, positions, "bob", "MSFT", 2, "410.00")
	seedTrade(t, orders, "alice", "AAPL", 10, "180.50")
	seedTrade(t, orders, "bob", "MSFT", 2, "410.00")
	seedTrade(t, orders, "bob", "MSFT", 1, "405.00")

	summary, err := service.AdminSummary()
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Holders)
	assert.Equal(t, 2, summary.OpenPositions)
	assert.Equal(t, int64(3), summary.TotalTrades)
	assert.True(t, summary.TotalCostBasis.Equal(decimal.RequireFromString("2625.00")))
	assert.True(t, summary.TotalMarketValue.Equal(decimal.RequireFromString("2800.00")))
}

func TestAllTradesNewestFirst(t *testing.T) {
	service, orders, _ := newTestService(t)

	seedTrade(t, orders, "alice", "AAPL", 1, "180.00")
	seedTrade(t, orders, "bob", "MSFT", 2, "400.00")
	seedTrade(t, orders, "alice", "AAPL", 3, "185.00")

	trades, err := service.AllTrades(2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, int64(3), trades[0].Quantity)
	assert.Equal(t, int64(2), trades[1].Quantity)
}
