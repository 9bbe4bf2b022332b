// Package portfolio implements the mutable position snapshot.
//
// Positions are a materialized aggregate over the order ledger: one row per
// (holder, symbol) with the current quantity and weighted-average cost
// basis. Every mutation is conditioned on the row's version so a lost
// update surfaces as ErrConcurrentUpdateConflict instead of silently
// clobbering quantity.
package portfolio

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

const positionColumns = `holder_id, symbol, quantity, avg_cost, version, last_updated`

// PositionRepository handles position database operations
type PositionRepository struct {
	portfolioDB *sql.DB
	log         zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(portfolioDB *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "position").Logger(),
	}
}

// Get returns the position for (holder, symbol), or nil when absent.
// Zero-quantity rows are treated as absent.
func (r *PositionRepository) Get(holderID, symbol string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions
		WHERE holder_id = ? AND symbol = ? AND quantity > 0`

	row := r.portfolioDB.QueryRow(query, holderID, strings.ToUpper(symbol))
	pos, err := scanPositionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &pos, nil
}

// ApplyBuy creates or updates the position for a buy at the given execution
// price, recomputing the weighted-average cost basis:
//
//	newAvg = (oldQty*oldAvg + qty*price) / (oldQty + qty)
//
// The update is conditioned on the row version read at the start; a losing
// race returns ErrConcurrentUpdateConflict and mutates nothing.
func (r *PositionRepository) ApplyBuy(holderID, symbol string, quantity int64, price decimal.Decimal) (*domain.Position, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}
	symbol = strings.ToUpper(symbol)
	now := time.Now().UTC()

	existing, err := r.Get(holderID, symbol)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		pos := domain.Position{
			HolderID:    holderID,
			Symbol:      symbol,
			Quantity:    quantity,
			AvgCost:     price,
			Version:     1,
			LastUpdated: now,
		}

		// A stale zero-quantity row may still exist; reuse its slot. The
		// DO UPDATE is filtered on quantity = 0 so a row created by a
		// concurrent buy is left alone and shows up as zero affected rows.
		res, err := r.portfolioDB.Exec(`
			INSERT INTO positions (holder_id, symbol, quantity, avg_cost, version, last_updated)
			VALUES (?, ?, ?, ?, 1, ?)
			ON CONFLICT (holder_id, symbol) DO UPDATE SET
				quantity = excluded.quantity,
				avg_cost = excluded.avg_cost,
				version = positions.version + 1,
				last_updated = excluded.last_updated
			WHERE positions.quantity = 0
		`, holderID, symbol, quantity, price.String(), now.Unix())
		if err != nil {
			return nil, fmt.Errorf("failed to create position: %w: %v", domain.ErrStorageUnavailable, err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			// Row appeared with quantity > 0 between the read and the
			// insert: a concurrent buy won the race.
			return nil, domain.ErrConcurrentUpdateConflict
		}

		r.log.Info().
			Str("holder_id", holderID).
			Str("symbol", symbol).
			Int64("quantity", quantity).
			Msg("Position opened")
		return &pos, nil
	}

	newQuantity := existing.Quantity + quantity
	oldCost := existing.AvgCost.Mul(decimal.NewFromInt(existing.Quantity))
	newCost := price.Mul(decimal.NewFromInt(quantity))
	newAvg := oldCost.Add(newCost).DivRound(decimal.NewFromInt(newQuantity), 8)

	if err := r.conditionalUpdate(holderID, symbol, newQuantity, newAvg, existing.Version, now); err != nil {
		return nil, err
	}

	return &domain.Position{
		HolderID:    holderID,
		Symbol:      symbol,
		Quantity:    newQuantity,
		AvgCost:     newAvg,
		Version:     existing.Version + 1,
		LastUpdated: now,
	}, nil
}

// ApplySell decrements quantity, leaving the cost basis untouched. Selling
// more than held returns ErrInsufficientPosition without mutating; a
// position reaching zero is deleted.
func (r *PositionRepository) ApplySell(holderID, symbol string, quantity int64) (*domain.Position, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}
	symbol = strings.ToUpper(symbol)
	now := time.Now().UTC()

	existing, err := r.Get(holderID, symbol)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Quantity < quantity {
		return nil, domain.ErrInsufficientPosition
	}

	newQuantity := existing.Quantity - quantity

	if newQuantity == 0 {
		res, err := r.portfolioDB.Exec(`
			DELETE FROM positions
			WHERE holder_id = ? AND symbol = ? AND version = ?
		`, holderID, symbol, existing.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to close position: %w: %v", domain.ErrStorageUnavailable, err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return nil, domain.ErrConcurrentUpdateConflict
		}

		r.log.Info().
			Str("holder_id", holderID).
			Str("symbol", symbol).
			Msg("Position closed")

		return &domain.Position{
			HolderID:    holderID,
			Symbol:      symbol,
			Quantity:    0,
			AvgCost:     existing.AvgCost,
			LastUpdated: now,
		}, nil
	}

	if err := r.conditionalUpdate(holderID, symbol, newQuantity, existing.AvgCost, existing.Version, now); err != nil {
		return nil, err
	}

	return &domain.Position{
		HolderID:    holderID,
		Symbol:      symbol,
		Quantity:    newQuantity,
		AvgCost:     existing.AvgCost,
		Version:     existing.Version + 1,
		LastUpdated: now,
	}, nil
}

// GetByHolder returns the holder's open positions ordered by symbol
func (r *PositionRepository) GetByHolder(holderID string) ([]domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions
		WHERE holder_id = ? AND quantity > 0
		ORDER BY symbol`
	return r.queryPositions(query, holderID)
}

// GetAll returns all open positions across holders
func (r *PositionRepository) GetAll() ([]domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions
		WHERE quantity > 0
		ORDER BY holder_id, symbol`
	return r.queryPositions(query)
}

// Replace overwrites the stored row for (holder, symbol), or removes it when
// pos is nil. Used by the reconciler after replaying the ledger; bypasses
// version checks because the reconciler holds the pair's execution lock.
func (r *PositionRepository) Replace(holderID, symbol string, pos *domain.Position) error {
	symbol = strings.ToUpper(symbol)

	if pos == nil || pos.Quantity == 0 {
		if _, err := r.portfolioDB.Exec(
			`DELETE FROM positions WHERE holder_id = ? AND symbol = ?`, holderID, symbol); err != nil {
			return fmt.Errorf("failed to remove position: %w: %v", domain.ErrStorageUnavailable, err)
		}
		return nil
	}

	_, err := r.portfolioDB.Exec(`
		INSERT INTO positions (holder_id, symbol, quantity, avg_cost, version, last_updated)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT (holder_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_cost = excluded.avg_cost,
			version = positions.version + 1,
			last_updated = excluded.last_updated
	`, holderID, symbol, pos.Quantity, pos.AvgCost.String(), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to replace position: %w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Helper methods

func (r *PositionRepository) conditionalUpdate(holderID, symbol string, quantity int64, avgCost decimal.Decimal, version int64, now time.Time) error {
	res, err := r.portfolioDB.Exec(`
		UPDATE positions
		SET quantity = ?, avg_cost = ?, version = version + 1, last_updated = ?
		WHERE holder_id = ? AND symbol = ? AND version = ?
	`, quantity, avgCost.String(), now.Unix(), holderID, symbol, version)
	if err != nil {
		return fmt.Errorf("failed to update position: %w: %v", domain.ErrStorageUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrConcurrentUpdateConflict
	}
	return nil
}

func (r *PositionRepository) queryPositions(query string, args ...interface{}) ([]domain.Position, error) {
	rows, err := r.portfolioDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

func scanPosition(rows *sql.Rows) (domain.Position, error) {
	var pos domain.Position
	var avgCostStr string
	var lastUpdated int64

	err := rows.Scan(&pos.HolderID, &pos.Symbol, &pos.Quantity, &avgCostStr, &pos.Version, &lastUpdated)
	if err != nil {
		return pos, err
	}
	return finishPositionScan(pos, avgCostStr, lastUpdated)
}

func scanPositionRow(row *sql.Row) (domain.Position, error) {
	var pos domain.Position
	var avgCostStr string
	var lastUpdated int64

	err := row.Scan(&pos.HolderID, &pos.Symbol, &pos.Quantity, &avgCostStr, &pos.Version, &lastUpdated)
	if err != nil {
		return pos, err
	}
	return finishPositionScan(pos, avgCostStr, lastUpdated)
}

func finishPositionScan(pos domain.Position, avgCostStr string, lastUpdated int64) (domain.Position, error) {
	avgCost, err := decimal.NewFromString(avgCostStr)
	if err != nil {
		return pos, fmt.Errorf("invalid stored avg_cost %q: %w", avgCostStr, err)
	}
	pos.AvgCost = avgCost
	pos.LastUpdated = time.Unix(lastUpdated, 0).UTC()
	return pos, nil
}
