package trading

import (
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

func newTestReconciler(t *testing.T) (*Reconciler, *Engine, *stubFeed, *ledger.MemoryOrderRepository, *portfolio.MemoryPositionRepository) {
	t.Helper()
	log := zerolog.Nop()
	feed := newStubFeed()
	orders := ledger.NewMemoryOrderRepository(log)
	positions := portfolio.NewMemoryPositionRepository(log)
	engine := NewEngine(feed, orders, positions, log)
	reconciler := NewReconciler(orders, positions, engine, log)
	return reconciler, engine, feed, orders, positions
}

// appendOrder records a ledger entry without touching the position store,
// simulating a crash between the append and the position mutation.
func appendOrder(t *testing.T, orders domain.LedgerStore, holderID, symbol string, side domain.Side, quantity int64, price string) {
	t.Helper()
	p := decimal.RequireFromString(price)
	_, err := orders.Append(domain.Order{
		OrderUID:    uuid.NewString(),
		HolderID:    holderID,
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Price:       p,
		TotalAmount: p.Mul(decimal.NewFromInt(quantity)),
		ExecutedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestRebuildPositionFromLedger(t *testing.T) {
	reconciler, _, _, orders, positions := newTestReconciler(t)

	appendOrder(t, orders, "alice", "AAPL", domain.SideBuy, 10, "180.50")
	appendOrder(t, orders, "alice", "AAPL", domain.SideBuy, 5, "190.50")
	appendOrder(t, orders, "alice", "AAPL", domain.SideSell, 12, "170.00")

	pos, err := reconciler.RebuildPosition("alice", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(3), pos.Quantity)
	assert.True(t, pos.AvgCost.Equal(decimal.RequireFromString("183.83333333")),
		"expected weighted average 183.83333333, got %s", pos.AvgCost)

	stored, err := positions.Get("alice", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(3), stored.Quantity)
}

func TestRebuildPositionNetsToZero(t *testing.T) {
	reconciler, _, _, orders, positions := newTestReconciler(t)

	appendOrder(t, orders, "alice", "AAPL", domain.SideBuy, 10, "180.50")
	appendOrder(t, orders, "alice", "AAPL", domain.SideSell, 10, "185.00")

	pos, err := reconciler.RebuildPosition("alice", "AAPL")
	require.NoError(t, err)
	assert.Nil(t, pos)

	stored, err := positions.Get("alice", "AAPL")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestReconcileAllRepairsDriftedSnapshot(t *testing.T) {
	reconciler, engine, feed, orders, positions := newTestReconciler(t)
	feed.set("AAPL", "180.50")
	feed.set("MSFT", "415.75")

	// Healthy pair executed through the engine
	_, err := engine.ExecuteOrder("alice", "AAPL", domain.SideBuy, 10)
	require.NoError(t, err)

	// Orphaned ledger entries whose position mutation never landed
	appendOrder(t, orders, "bob", "MSFT", domain.SideBuy, 7, "415.75")

	repaired, err := reconciler.ReconcileAll()
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	bob, err := positions.Get("bob", "MSFT")
	require.NoError(t, err)
	require.NotNil(t, bob)
	assert.Equal(t, int64(7), bob.Quantity)
	assert.True(t, bob.AvgCost.Equal(decimal.RequireFromString("415.75")))

	// The healthy pair is untouched
	alice, err := positions.Get("alice", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.Equal(t, int64(10), alice.Quantity)

	// A second pass finds nothing to repair
	repaired, err = reconciler.ReconcileAll()
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)
}

func TestReconcileAllRemovesUnbackedSnapshot(t *testing.T) {
	reconciler, _, _, _, positions := newTestReconciler(t)

	// A snapshot row with no ledger entries behind it
	err := positions.Replace("ghost", "AAPL", &domain.Position{
		HolderID: "ghost",
		Symbol:   "AAPL",
		Quantity: 5,
		AvgCost:  decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	repaired, err := reconciler.ReconcileAll()
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	stored, err := positions.Get("ghost", "AAPL")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestReconcileAllClampsNegativeReplay(t *testing.T) {
	reconciler, _, _, orders, positions := newTestReconciler(t)

	appendOrder(t, orders, "alice", "AAPL", domain.SideBuy, 5, "180.50")
	appendOrder(t, orders, "alice", "AAPL", domain.SideSell, 8, "185.00")

	repaired, err := reconciler.ReconcileAll()
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	stored, err := positions.Get("alice", "AAPL")
	require.NoError(t, err)
	assert.Nil(t, stored, "a replay that nets negative must not materialize a position")
}
