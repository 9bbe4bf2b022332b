// Package ledger implements the append-only order ledger.
//
// The ledger is the durable source of truth for all executed orders. Rows
// are written exactly once; no update or delete operation exists on any
// repository in this package, and the position snapshot can always be
// rebuilt by replaying it.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockerhq/stocker/internal/domain"
)

// orderColumns is the column list for the orders table.
// Kept explicit so schema changes break loudly instead of silently shifting
// scan targets.
const orderColumns = `id, order_uid, holder_id, symbol, side, quantity, price, total_amount, executed_at`

// OrderRepository handles order ledger database operations
type OrderRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(ledgerDB *sql.DB, log zerolog.Logger) *OrderRepository {
	return &OrderRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "order").Logger(),
	}
}

// Append inserts a new order record. Appends are idempotent on OrderUID:
// retrying after a transient failure returns the already-written row's id
// instead of duplicating the entry.
func (r *OrderRepository) Append(order domain.Order) (int64, error) {
	if order.OrderUID == "" {
		return 0, fmt.Errorf("order is missing its uid")
	}

	if id, ok, err := r.findByUID(order.OrderUID); err != nil {
		return 0, err
	} else if ok {
		r.log.Debug().Str("order_uid", order.OrderUID).Msg("Order already recorded, skipping duplicate")
		return id, nil
	}

	query := `
		INSERT INTO orders
		(order_uid, holder_id, symbol, side, quantity, price, total_amount, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.ledgerDB.Exec(query,
		order.OrderUID,
		order.HolderID,
		strings.ToUpper(strings.TrimSpace(order.Symbol)),
		string(order.Side),
		order.Quantity,
		order.Price.String(),
		order.TotalAmount.String(),
		order.ExecutedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append order: %w: %v", domain.ErrStorageUnavailable, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read appended order id: %w", err)
	}

	r.log.Info().
		Str("holder_id", order.HolderID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Int64("quantity", order.Quantity).
		Msg("Order appended")

	return id, nil
}

// GetByHolder retrieves a holder's orders, most recent first.
// A non-positive limit returns all rows.
func (r *OrderRepository) GetByHolder(holderID string, limit int) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + ` FROM orders
		WHERE holder_id = ?
		ORDER BY executed_at DESC, id DESC
		LIMIT ?
	`
	return r.queryOrders(query, holderID, sqlLimit(limit))
}

// GetAll retrieves all orders across holders, most recent first
func (r *OrderRepository) GetAll(limit int) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + ` FROM orders
		ORDER BY executed_at DESC, id DESC
		LIMIT ?
	`
	return r.queryOrders(query, sqlLimit(limit))
}

// GetByPairAsc retrieves all orders for one (holder, symbol) pair in
// execution order, oldest first
func (r *OrderRepository) GetByPairAsc(holderID, symbol string) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + ` FROM orders
		WHERE holder_id = ? AND symbol = ?
		ORDER BY executed_at ASC, id ASC
	`
	return r.queryOrders(query, holderID, strings.ToUpper(symbol))
}

// NetQuantities returns sum(buys) - sum(sells) per (holder, symbol) pair
func (r *OrderRepository) NetQuantities() (map[domain.PositionKey]int64, error) {
	query := `
		SELECT holder_id, symbol,
		       SUM(CASE WHEN side = 'BUY' THEN quantity ELSE -quantity END) AS net
		FROM orders
		GROUP BY holder_id, symbol
	`

	rows, err := r.ledgerDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query net quantities: %w: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	result := make(map[domain.PositionKey]int64)
	for rows.Next() {
		var key domain.PositionKey
		var net int64
		if err := rows.Scan(&key.HolderID, &key.Symbol, &net); err != nil {
			return nil, fmt.Errorf("failed to scan net quantity: %w", err)
		}
		result[key] = net
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating net quantities: %w", err)
	}

	return result, nil
}

// CountAll returns the total number of ledger entries
func (r *OrderRepository) CountAll() (int64, error) {
	var count int64
	err := r.ledgerDB.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w: %v", domain.ErrStorageUnavailable, err)
	}
	return count, nil
}

// Helper methods

func (r *OrderRepository) findByUID(orderUID string) (int64, bool, error) {
	var id int64
	err := r.ledgerDB.QueryRow(`SELECT id FROM orders WHERE order_uid = ? LIMIT 1`, orderUID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to check for existing order: %w: %v", domain.ErrStorageUnavailable, err)
	}
	return id, true, nil
}

func (r *OrderRepository) queryOrders(query string, args ...interface{}) ([]domain.Order, error) {
	rows, err := r.ledgerDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

func scanOrder(rows *sql.Rows) (domain.Order, error) {
	var order domain.Order
	var side, priceStr, totalStr string
	var executedAt int64

	err := rows.Scan(
		&order.ID,
		&order.OrderUID,
		&order.HolderID,
		&order.Symbol,
		&side,
		&order.Quantity,
		&priceStr,
		&totalStr,
		&executedAt,
	)
	if err != nil {
		return order, err
	}

	order.Side = domain.Side(side)
	order.ExecutedAt = time.Unix(executedAt, 0).UTC()

	if order.Price, err = decimal.NewFromString(priceStr); err != nil {
		return order, fmt.Errorf("invalid stored price %q: %w", priceStr, err)
	}
	if order.TotalAmount, err = decimal.NewFromString(totalStr); err != nil {
		return order, fmt.Errorf("invalid stored total %q: %w", totalStr, err)
	}

	return order, nil
}

// sqlLimit maps "no limit" to SQLite's unlimited sentinel
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
