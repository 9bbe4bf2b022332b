package ledger

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stockerhq/stocker/internal/domain"
)

// MemoryOrderRepository is an in-memory ledger backend with scan-and-filter
// query semantics (no secondary indexes are assumed; every query walks the
// log). It backs tests and ephemeral deployments.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders []domain.Order
	byUID  map[string]int64
	nextID int64
	log    zerolog.Logger
}

// NewMemoryOrderRepository creates an empty in-memory ledger
func NewMemoryOrderRepository(log zerolog.Logger) *MemoryOrderRepository {
	return &MemoryOrderRepository{
		byUID:  make(map[string]int64),
		nextID: 1,
		log:    log.With().Str("repo", "order_memory").Logger(),
	}
}

// Append records one order. Duplicate OrderUIDs are no-ops, mirroring the
// sqlite backend's idempotency guarantee.
func (r *MemoryOrderRepository) Append(order domain.Order) (int64, error) {
	if order.OrderUID == "" {
		return 0, fmt.Errorf("order is missing its uid")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byUID[order.OrderUID]; ok {
		return id, nil
	}

	order.ID = r.nextID
	order.Symbol = strings.ToUpper(strings.TrimSpace(order.Symbol))
	r.nextID++

	r.orders = append(r.orders, order)
	r.byUID[order.OrderUID] = order.ID

	return order.ID, nil
}

// GetByHolder scans the log for one holder's orders, most recent first
func (r *MemoryOrderRepository) GetByHolder(holderID string, limit int) ([]domain.Order, error) {
	return r.scan(func(o domain.Order) bool { return o.HolderID == holderID }, limit, false), nil
}

// GetAll returns all orders, most recent first
func (r *MemoryOrderRepository) GetAll(limit int) ([]domain.Order, error) {
	return r.scan(func(domain.Order) bool { return true }, limit, false), nil
}

// GetByPairAsc returns one pair's orders in execution order
func (r *MemoryOrderRepository) GetByPairAsc(holderID, symbol string) ([]domain.Order, error) {
	symbol = strings.ToUpper(symbol)
	return r.scan(func(o domain.Order) bool {
		return o.HolderID == holderID && o.Symbol == symbol
	}, 0, true), nil
}

// NetQuantities returns sum(buys) - sum(sells) per (holder, symbol) pair
func (r *MemoryOrderRepository) NetQuantities() (map[domain.PositionKey]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[domain.PositionKey]int64)
	for _, o := range r.orders {
		key := domain.PositionKey{HolderID: o.HolderID, Symbol: o.Symbol}
		if o.Side == domain.SideBuy {
			result[key] += o.Quantity
		} else {
			result[key] -= o.Quantity
		}
	}
	return result, nil
}

// CountAll returns the number of ledger entries
func (r *MemoryOrderRepository) CountAll() (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.orders)), nil
}

func (r *MemoryOrderRepository) scan(match func(domain.Order) bool, limit int, ascending bool) []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Order
	for _, o := range r.orders {
		if match(o) {
			result = append(result, o)
		}
	}

	// The log itself is in insertion (ascending) order
	sort.SliceStable(result, func(i, j int) bool {
		if ascending {
			if result[i].ExecutedAt.Equal(result[j].ExecutedAt) {
				return result[i].ID < result[j].ID
			}
			return result[i].ExecutedAt.Before(result[j].ExecutedAt)
		}
		if result[i].ExecutedAt.Equal(result[j].ExecutedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].ExecutedAt.After(result[j].ExecutedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
