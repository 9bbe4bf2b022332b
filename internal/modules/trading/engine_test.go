package trading

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockerhq/stocker/internal/domain"
	"github.com/stockerhq/stocker/internal/modules/ledger"
	"github.com/stockerhq/stocker/internal/modules/portfolio"
)

// stubFeed serves fixed prices so tests control the execution price exactly
type stubFeed struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func newStubFeed() *stubFeed {
	return &stubFeed{prices: make(map[string]decimal.Decimal)}
}

func (f *stubFeed) set(symbol, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = decimal.RequireFromString(price)
}

func (f *stubFeed) CurrentPrice(symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrUnknownInstrument, symbol)
	}
	return price, nil
}

func (f *stubFeed) Snapshot() []domain.Quote {
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *stubFeed, *ledger.MemoryOrderRepository, *portfolio.MemoryPositionRepository) {
	t.Helper()
	log := zerolog.Nop()
	feed := newStubFeed()
	orders := ledger.NewMemoryOrderRepository(log)
	positions := portfolio.NewMemoryPositionRepository(log)
	engine := NewEngine(feed, orders, positions, log)
	return engine, feed, orders, positions
}

func TestExecuteOrderBuySellLifecycle(t *testing.T) {
	engine, feed, orders, positions := newTestEngine(t)
	feed.set("AAPL", "180.50")

	exec, err := engine.ExecuteOrder("alice", "AAPL", domain.SideBuy, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, exec.OrderUID)
	assert.Equal(t, "180.5", exec.ExecutionPrice.String())
	assert.Equal(t, "1805", exec.TotalAmount.String())

	feed.set("AAPL", "190.50")
	_, err = engine.ExecuteOrder("alice", "AAPL", domain.SideBuy, 5)
	require.NoError(t, err)

	pos, err := positions.Get("alice", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(15), pos.Quantity)
	assert.True(t, pos.AvgCost.Equal(decimal.RequireFromString("183.83333333")),
		"expected weighted average 183.83333333, got %s", pos.AvgCost)

	// Selling does not touch the cost basis
	feed.set("AAPL", "170.00")
	_, err = engine.ExecuteOrder("alice", "AAPL", domain.SideSell, 12)
	require.NoError(t, err)

	pos, err = positions.Get("alice", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(3), pos.Quantity)
	assert.True(t, pos.AvgCost.Equal(decimal.RequireFromString("183.83333333")))

	// Only 3 shares left, a sell of 10 must be rejected
	_, err = engine.ExecuteOrder("alice", "AAPL", domain.SideSell, 10)
	assert.ErrorIs(t, err, domain.ErrInsufficientPosition)

	count, err := orders.CountAll()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "rejected order must not reach the ledger")
}

func TestExecuteOrderValidation(t *testing.T) {
	engine, feed, orders, _ := newTestEngine(t)
	feed.set("AAPL", "180.50")

	_, err := engine.ExecuteOrder("alice", "AAPL", domain.SideBuy, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = engine.ExecuteOrder("alice", "AAPL", domain.SideBuy, -5)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = engine.ExecuteOrder("alice", "NOPE", domain.SideBuy, 1)
	assert.ErrorIs(t, err, domain.ErrUnknownInstrument)

	_, err = engine.ExecuteOrder("", "AAPL", domain.SideBuy, 1)
	assert.Error(t, err)

	_, err = engine.ExecuteOrder("alice", "AAPL", domain.Side("SHORT"), 1)
	assert.Error(t, err)

	count, err := orders.CountAll()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "rejected orders must leave no ledger entries")
}

func TestExecuteOrderSellWithoutPosition(t *testing.T) {
	engine, feed, _, _ := newTestEngine(t)
	feed.set("AAPL", "180.50")

	_, err := engine.ExecuteOrder("alice", "AAPL", domain.SideSell, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientPosition)
}

func TestExecuteOrderSymbolNormalization(t *testing.T) {
	engine, feed, _, positions := newTestEngine(t)
	feed.set("AAPL", "180.50")

	_, err := engine.ExecuteOrder("alice", " aapl ", domain.SideBuy, 2)
	require.NoError(t, err)

	pos, err := positions.Get("alice", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(2), pos.Quantity)
}

func TestExecuteOrderConcurrentBuys(t *testing.T) {
	engine, feed, orders, positions := newTestEngine(t)
	feed.set("MSFT", "415.75")

	const workers = 50

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.ExecuteOrder("alice", "MSFT", domain.SideBuy, 1)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "order %d failed", i)
	}

	pos, err := positions.Get("alice", "MSFT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(workers), pos.Quantity, "every unit buy must land exactly once")

	count, err := orders.CountAll()
	require.NoError(t, err)
	assert.Equal(t, int64(workers), count)
}

func TestExecuteOrderConcurrentSellsNeverOversell(t *testing.T) {
	engine, feed, _, positions := newTestEngine(t)
	feed.set("MSFT", "415.75")

	_, err := engine.ExecuteOrder("alice", "MSFT", domain.SideBuy, 10)
	require.NoError(t, err)

	const workers = 30

	var wg sync.WaitGroup
	var accepted int64
	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.ExecuteOrder("alice", "MSFT", domain.SideSell, 1); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), accepted, "only as many sells as shares held may succeed")

	pos, err := positions.Get("alice", "MSFT")
	require.NoError(t, err)
	assert.Nil(t, pos, "position fully sold out should be removed")
}

func TestExecuteOrderIndependentPairs(t *testing.T) {
	engine, feed, _, positions := newTestEngine(t)
	feed.set("AAPL", "180.50")
	feed.set("MSFT", "415.75")

	_, err := engine.ExecuteOrder("alice", "AAPL", domain.SideBuy, 3)
	require.NoError(t, err)
	_, err = engine.ExecuteOrder("alice", "MSFT", domain.SideBuy, 4)
	require.NoError(t, err)
	_, err = engine.ExecuteOrder("bob", "AAPL", domain.SideBuy, 5)
	require.NoError(t, err)

	alice, err := positions.GetByHolder("alice")
	require.NoError(t, err)
	assert.Len(t, alice, 2)

	bob, err := positions.GetByHolder("bob")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, int64(5), bob[0].Quantity)
}
