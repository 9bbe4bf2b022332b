package portfolio

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockerhq/stocker/internal/domain"
)

// MemoryPositionRepository is an in-memory position backend with the same
// contract as the sqlite repository. All operations run under one mutex, so
// version conflicts cannot occur here; versions are still maintained to keep
// the two backends observationally identical.
type MemoryPositionRepository struct {
	mu        sync.RWMutex
	positions map[domain.PositionKey]*domain.Position
	log       zerolog.Logger
}

// NewMemoryPositionRepository creates an empty in-memory position store
func NewMemoryPositionRepository(log zerolog.Logger) *MemoryPositionRepository {
	return &MemoryPositionRepository{
		positions: make(map[domain.PositionKey]*domain.Position),
		log:       log.With().Str("repo", "position_memory").Logger(),
	}
}

// Get returns the position for (holder, symbol), or nil when absent
func (r *MemoryPositionRepository) Get(holderID, symbol string) (*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.positions[key(holderID, symbol)]
	if !ok || pos.Quantity == 0 {
		return nil, nil
	}
	c := *pos
	return &c, nil
}

// ApplyBuy creates or updates the position for a buy
func (r *MemoryPositionRepository) ApplyBuy(holderID, symbol string, quantity int64, price decimal.Decimal) (*domain.Position, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(holderID, symbol)
	now := time.Now().UTC()

	pos, ok := r.positions[k]
	if !ok || pos.Quantity == 0 {
		r.positions[k] = &domain.Position{
			HolderID:    holderID,
			Symbol:      k.Symbol,
			Quantity:    quantity,
			AvgCost:     price,
			Version:     1,
			LastUpdated: now,
		}
		c := *r.positions[k]
		return &c, nil
	}

	newQuantity := pos.Quantity + quantity
	oldCost := pos.AvgCost.Mul(decimal.NewFromInt(pos.Quantity))
	newCost := price.Mul(decimal.NewFromInt(quantity))

	pos.AvgCost = oldCost.Add(newCost).DivRound(decimal.NewFromInt(newQuantity), 8)
	pos.Quantity = newQuantity
	pos.Version++
	pos.LastUpdated = now

	c := *pos
	return &c, nil
}

// ApplySell decrements quantity, basis unchanged; all-or-nothing
func (r *MemoryPositionRepository) ApplySell(holderID, symbol string, quantity int64) (*domain.Position, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(holderID, symbol)
	pos, ok := r.positions[k]
	if !ok || pos.Quantity < quantity {
		return nil, domain.ErrInsufficientPosition
	}

	pos.Quantity -= quantity
	pos.Version++
	pos.LastUpdated = time.Now().UTC()

	c := *pos
	if pos.Quantity == 0 {
		delete(r.positions, k)
	}
	return &c, nil
}

// GetByHolder returns the holder's open positions ordered by symbol
func (r *MemoryPositionRepository) GetByHolder(holderID string) ([]domain.Position, error) {
	return r.scan(func(p *domain.Position) bool { return p.HolderID == holderID }), nil
}

// GetAll returns all open positions
func (r *MemoryPositionRepository) GetAll() ([]domain.Position, error) {
	return r.scan(func(*domain.Position) bool { return true }), nil
}

// Replace overwrites or removes the stored entry for (holder, symbol)
func (r *MemoryPositionRepository) Replace(holderID, symbol string, pos *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(holderID, symbol)
	if pos == nil || pos.Quantity == 0 {
		delete(r.positions, k)
		return nil
	}

	c := *pos
	c.HolderID = holderID
	c.Symbol = k.Symbol
	c.LastUpdated = time.Now().UTC()
	r.positions[k] = &c
	return nil
}

func (r *MemoryPositionRepository) scan(match func(*domain.Position) bool) []domain.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Position
	for _, pos := range r.positions {
		if pos.Quantity > 0 && match(pos) {
			result = append(result, *pos)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].HolderID != result[j].HolderID {
			return result[i].HolderID < result[j].HolderID
		}
		return result[i].Symbol < result[j].Symbol
	})
	return result
}

func key(holderID, symbol string) domain.PositionKey {
	return domain.PositionKey{HolderID: holderID, Symbol: strings.ToUpper(symbol)}
}
