package domain

import "github.com/shopspring/decimal"

// PriceSource provides the current price of every instrument in the fixed
// universe. The feed simulator implements this; the engine and reporting
// views only ever read from it.
type PriceSource interface {
	// CurrentPrice returns the live price for a symbol.
	// Returns ErrUnknownInstrument for symbols outside the universe.
	CurrentPrice(symbol string) (decimal.Decimal, error)

	// Snapshot returns all instruments with their current prices.
	// Individual prices are read atomically but the snapshot as a whole may
	// mix prices from adjacent ticks.
	Snapshot() []Quote
}

// LedgerStore is the append-only log of executed orders. There is
// deliberately no update or delete operation: the ledger is the durable
// source of truth and positions are re-derivable from it.
type LedgerStore interface {
	// Append writes one order record and returns its ledger id. Appending
	// an order whose OrderUID is already present is a no-op (this makes
	// retries after a transient failure idempotent).
	Append(order Order) (int64, error)

	// GetByHolder returns a holder's orders, most recent first.
	GetByHolder(holderID string, limit int) ([]Order, error)

	// GetAll returns all orders across holders, most recent first.
	GetAll(limit int) ([]Order, error)

	// GetByPairAsc returns all orders for one (holder, symbol) pair in
	// execution order, oldest first. Used to replay cost basis.
	GetByPairAsc(holderID, symbol string) ([]Order, error)

	// NetQuantities returns sum(buys) - sum(sells) per (holder, symbol).
	NetQuantities() (map[PositionKey]int64, error)

	// CountAll returns the total number of ledger entries.
	CountAll() (int64, error)
}

// PositionStore holds the mutable per-holder position snapshot derived from
// the ledger. Mutations for a given (holder, symbol) pair are serialized by
// the engine; the version-conditioned updates are a second guard against
// lost updates.
type PositionStore interface {
	// Get returns the position for (holder, symbol), or nil when absent.
	Get(holderID, symbol string) (*Position, error)

	// ApplyBuy creates the position on first buy or recomputes the
	// weighted-average cost basis on subsequent buys. Returns the new state.
	ApplyBuy(holderID, symbol string, quantity int64, price decimal.Decimal) (*Position, error)

	// ApplySell decrements quantity, leaving the cost basis unchanged.
	// Returns ErrInsufficientPosition (without mutating) when the held
	// quantity is smaller than requested. A position reaching quantity 0
	// disappears from all queries.
	ApplySell(holderID, symbol string, quantity int64) (*Position, error)

	// GetByHolder returns the holder's open positions (quantity > 0).
	GetByHolder(holderID string) ([]Position, error)

	// GetAll returns all open positions across holders.
	GetAll() ([]Position, error)

	// Replace overwrites the stored row for (holder, symbol) with pos,
	// or removes it when pos is nil. Used only by the reconciler.
	Replace(holderID, symbol string, pos *Position) error
}
