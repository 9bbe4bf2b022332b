package trading

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockerhq/stocker/internal/domain"
	"github.com/stockerhq/stocker/internal/utils"
)

// Reconciler rebuilds position snapshots from the order ledger. The ledger
// is the durable source of truth; whenever a position mutation is lost
// (crash or storage failure between the ledger append and the position
// update) replaying the pair's orders restores the correct snapshot.
type Reconciler struct {
	ledger    domain.LedgerStore
	positions domain.PositionStore
	locks     *keyedLocks
	log       zerolog.Logger
}

// NewReconciler creates a reconciler sharing the engine's per-pair locks so
// a repair never races an in-flight order for the same pair.
func NewReconciler(ledger domain.LedgerStore, positions domain.PositionStore, engine *Engine, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		ledger:    ledger,
		positions: positions,
		locks:     engine.locks,
		log:       log.With().Str("component", "reconciler").Logger(),
	}
}

// RebuildPosition replays one pair's ledger entries and overwrites the
// stored position with the result. Returns the rebuilt position, nil when
// the replay nets out to zero quantity.
func (r *Reconciler) RebuildPosition(holderID, symbol string) (*domain.Position, error) {
	unlock := r.locks.Lock(holderID, symbol)
	defer unlock()

	return r.rebuildLocked(holderID, symbol)
}

// ReconcileAll walks every (holder, symbol) pair present in either store and
// repairs the ones whose stored quantity disagrees with the ledger.
// Returns the number of repaired pairs.
func (r *Reconciler) ReconcileAll() (int, error) {
	defer utils.OperationTimer("reconcile_all", r.log)()

	nets, err := r.ledger.NetQuantities()
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger totals: %w", err)
	}

	stored, err := r.positions.GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to read positions: %w", err)
	}

	storedQty := make(map[domain.PositionKey]int64, len(stored))
	for _, pos := range stored {
		storedQty[domain.PositionKey{HolderID: pos.HolderID, Symbol: pos.Symbol}] = pos.Quantity
	}

	// Pairs in the ledger with a wrong or missing snapshot, plus snapshot
	// rows with no ledger backing at all.
	suspect := make(map[domain.PositionKey]bool)
	for key, net := range nets {
		if storedQty[key] != net {
			suspect[key] = true
		}
	}
	for key := range storedQty {
		if _, ok := nets[key]; !ok {
			suspect[key] = true
		}
	}

	repaired := 0
	for key := range suspect {
		unlock := r.locks.Lock(key.HolderID, key.Symbol)
		if _, err := r.rebuildLocked(key.HolderID, key.Symbol); err != nil {
			unlock()
			return repaired, fmt.Errorf("failed to rebuild %s/%s: %w", key.HolderID, key.Symbol, err)
		}
		unlock()
		repaired++

		r.log.Warn().
			Str("holder_id", key.HolderID).
			Str("symbol", key.Symbol).
			Msg("Position snapshot repaired from ledger")
	}

	return repaired, nil
}

// rebuildLocked replays the pair's orders oldest-first. Buys recompute the
// weighted-average cost basis exactly as the position store does; sells only
// decrement quantity. Caller must hold the pair's lock.
func (r *Reconciler) rebuildLocked(holderID, symbol string) (*domain.Position, error) {
	orders, err := r.ledger.GetByPairAsc(holderID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to replay ledger: %w", err)
	}

	var quantity int64
	avgCost := decimal.Zero

	for _, order := range orders {
		switch order.Side {
		case domain.SideBuy:
			newQuantity := quantity + order.Quantity
			oldCost := avgCost.Mul(decimal.NewFromInt(quantity))
			addedCost := order.Price.Mul(decimal.NewFromInt(order.Quantity))
			avgCost = oldCost.Add(addedCost).DivRound(decimal.NewFromInt(newQuantity), 8)
			quantity = newQuantity

		case domain.SideSell:
			quantity -= order.Quantity
			if quantity < 0 {
				// The ledger itself is inconsistent; clamp rather than
				// materialize a negative position.
				r.log.Error().
					Str("holder_id", holderID).
					Str("symbol", symbol).
					Str("order_uid", order.OrderUID).
					Msg("Ledger replay went negative, clamping to zero")
				quantity = 0
			}
		}
	}

	if quantity == 0 {
		if err := r.positions.Replace(holderID, symbol, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}

	pos := &domain.Position{
		HolderID: holderID,
		Symbol:   symbol,
		Quantity: quantity,
		AvgCost:  avgCost,
	}
	if err := r.positions.Replace(holderID, symbol, pos); err != nil {
		return nil, err
	}
	return pos, nil
}
