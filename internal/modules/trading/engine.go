// Package trading implements the trade accounting engine: the one component
// that turns an order request into a ledger entry and a position mutation.
//
// Execution pipeline per order: validate, read the execution price from the
// feed, append to the ledger, apply the position mutation. Mutations for a
// single (holder, symbol) pair are serialized by striped locks; across pairs
// orders run fully in parallel. The ledger append happens first and is the
// durable record - if the position mutation fails afterwards the call
// reports failure and the reconciler repairs the snapshot from the ledger.
package trading

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockerhq/stocker/internal/domain"
)

const (
	// maxMutationAttempts bounds retries of a position mutation that lost a
	// version race or hit a transient storage failure.
	maxMutationAttempts = 3

	// appendRetryDelay spaces out idempotent ledger append retries
	appendRetryDelay = 50 * time.Millisecond
)

// Engine orchestrates order execution end-to-end
type Engine struct {
	feed      domain.PriceSource
	ledger    domain.LedgerStore
	positions domain.PositionStore
	locks     *keyedLocks
	log       zerolog.Logger
}

// NewEngine creates a new trade accounting engine
func NewEngine(feed domain.PriceSource, ledger domain.LedgerStore, positions domain.PositionStore, log zerolog.Logger) *Engine {
	return &Engine{
		feed:      feed,
		ledger:    ledger,
		positions: positions,
		locks:     newKeyedLocks(),
		log:       log.With().Str("component", "engine").Logger(),
	}
}

// ExecuteOrder executes one buy or sell order for a holder.
//
// Business-rule rejections (ErrInvalidQuantity, ErrUnknownInstrument,
// ErrInsufficientPosition) leave no trace in either store. The price is read
// once; whichever value the feed holds at that instant is the execution
// price, even if a tick lands mid-call.
func (e *Engine) ExecuteOrder(holderID, symbol string, side domain.Side, quantity int64) (*domain.Execution, error) {
	if holderID == "" {
		return nil, fmt.Errorf("holder id must not be empty")
	}
	if !side.Valid() {
		return nil, fmt.Errorf("invalid order side %q", side)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	price, err := e.feed.CurrentPrice(symbol)
	if err != nil {
		return nil, err
	}

	// Serialize everything below per (holder, symbol): the sell pre-check,
	// the ledger append and the position mutation form one logical unit.
	unlock := e.locks.Lock(holderID, symbol)
	defer unlock()

	if side == domain.SideSell {
		held, err := e.heldQuantity(holderID, symbol)
		if err != nil {
			return nil, err
		}
		if held < quantity {
			return nil, domain.ErrInsufficientPosition
		}
	}

	totalAmount := price.Mul(decimal.NewFromInt(quantity))
	order := domain.Order{
		OrderUID:    uuid.NewString(),
		HolderID:    holderID,
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: totalAmount,
		ExecutedAt:  time.Now().UTC(),
	}

	if err := e.appendWithRetry(order); err != nil {
		return nil, err
	}

	if err := e.applyWithRetry(order); err != nil {
		// The ledger entry stands; the position snapshot is now behind and
		// will be repaired from the ledger by the reconciler.
		e.log.Error().Err(err).
			Str("order_uid", order.OrderUID).
			Str("holder_id", holderID).
			Str("symbol", symbol).
			Msg("Position mutation failed after ledger append, snapshot needs reconciliation")
		return nil, err
	}

	e.log.Info().
		Str("holder_id", holderID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Int64("quantity", quantity).
		Str("price", price.String()).
		Msg("Order executed")

	return &domain.Execution{
		OrderUID:       order.OrderUID,
		ExecutionPrice: price,
		TotalAmount:    totalAmount,
	}, nil
}

// heldQuantity returns the holder's current quantity in symbol, 0 if absent
func (e *Engine) heldQuantity(holderID, symbol string) (int64, error) {
	pos, err := e.positions.Get(holderID, symbol)
	if err != nil {
		return 0, err
	}
	if pos == nil {
		return 0, nil
	}
	return pos.Quantity, nil
}

// appendWithRetry appends the order to the ledger, retrying transient
// storage failures. The append is idempotent on the order uid, so a retry
// after an ambiguous failure cannot double-record.
func (e *Engine) appendWithRetry(order domain.Order) error {
	var err error
	for attempt := 1; attempt <= maxMutationAttempts; attempt++ {
		if _, err = e.ledger.Append(order); err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			return err
		}
		e.log.Warn().Err(err).Int("attempt", attempt).Msg("Ledger append failed, retrying")
		time.Sleep(appendRetryDelay)
	}
	return fmt.Errorf("ledger append exhausted retries: %w", err)
}

// applyWithRetry applies the position mutation for an already-ledgered
// order, retrying version conflicts and transient storage failures.
func (e *Engine) applyWithRetry(order domain.Order) error {
	var err error
	for attempt := 1; attempt <= maxMutationAttempts; attempt++ {
		if order.Side == domain.SideBuy {
			_, err = e.positions.ApplyBuy(order.HolderID, order.Symbol, order.Quantity, order.Price)
		} else {
			_, err = e.positions.ApplySell(order.HolderID, order.Symbol, order.Quantity)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdateConflict) && !errors.Is(err, domain.ErrStorageUnavailable) {
			return err
		}
		e.log.Warn().Err(err).
			Int("attempt", attempt).
			Str("order_uid", order.OrderUID).
			Msg("Position mutation failed, retrying")
	}
	return fmt.Errorf("position mutation exhausted retries: %w", err)
}
