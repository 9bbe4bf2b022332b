// Package domain provides core domain models and types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of an order
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two known values
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Instrument is one entry of the fixed tradable universe.
// Everything except Price is immutable for the process lifetime.
type Instrument struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Quote is a point-in-time view of one instrument's price
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Order is one executed trade as recorded in the ledger.
// Orders are written once and never modified.
type Order struct {
	ID          int64           `json:"id"`
	OrderUID    string          `json:"order_uid"`
	HolderID    string          `json:"holder_id"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

// Position is a holder's current quantity and average cost basis in one
// instrument. A position with quantity 0 is logically absent and never
// returned by store queries.
type Position struct {
	HolderID    string          `json:"holder_id"`
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	Version     int64           `json:"-"`
	LastUpdated time.Time       `json:"last_updated"`
}

// PositionKey identifies one (holder, symbol) pair
type PositionKey struct {
	HolderID string
	Symbol   string
}

// Execution is the successful outcome of an order
type Execution struct {
	OrderUID       string          `json:"order_uid"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}
