// Package feed simulates a live price feed for the fixed instrument universe.
//
// Prices move on a periodic tick: each instrument independently draws a
// perturbation from U(-5%, +5%), multiplies its price by (1 + u) and rounds
// to 2 decimal places. A configurable floor keeps every price strictly
// positive. Readers of a single symbol always observe a fully-written price;
// a bulk snapshot may mix prices from adjacent ticks, which is accepted and
// harmless for display.
package feed

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/stockerhq/stocker/internal/domain"
)

// Config holds simulator configuration
type Config struct {
	Instruments []domain.Instrument
	PriceFloor  decimal.Decimal // smallest price a tick may produce; must be > 0
	Seed        uint64          // 0 uses a non-deterministic source
}

// Simulator owns the current price of every instrument in the universe
type Simulator struct {
	mu          sync.RWMutex
	instruments map[string]*domain.Instrument
	symbols     []string // stable iteration order for ticks and snapshots
	floor       decimal.Decimal
	perturb     distuv.Uniform
	log         zerolog.Logger
}

// New creates a simulator over the given universe.
// The reference behavior had no lower bound on simulated prices, so a long
// unlucky streak could drive a price to zero or below; the floor closes that
// hole and is applied after rounding.
func New(cfg Config, log zerolog.Logger) (*Simulator, error) {
	if len(cfg.Instruments) == 0 {
		return nil, fmt.Errorf("simulator requires a non-empty universe")
	}
	if !cfg.PriceFloor.IsPositive() {
		return nil, fmt.Errorf("price floor must be positive, got %s", cfg.PriceFloor)
	}

	perturb := distuv.Uniform{Min: -0.05, Max: 0.05}
	if cfg.Seed != 0 {
		perturb.Src = rand.NewPCG(cfg.Seed, cfg.Seed)
	}

	s := &Simulator{
		instruments: make(map[string]*domain.Instrument, len(cfg.Instruments)),
		floor:       cfg.PriceFloor,
		perturb:     perturb,
		log:         log.With().Str("component", "feed").Logger(),
	}

	for _, inst := range cfg.Instruments {
		if !inst.Price.IsPositive() {
			return nil, fmt.Errorf("instrument %s has non-positive start price %s", inst.Symbol, inst.Price)
		}
		c := inst
		s.instruments[inst.Symbol] = &c
		s.symbols = append(s.symbols, inst.Symbol)
	}
	sort.Strings(s.symbols)

	return s, nil
}

// CurrentPrice returns the live price for one symbol
func (s *Simulator) CurrentPrice(symbol string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instruments[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", domain.ErrUnknownInstrument, symbol)
	}
	return inst.Price, nil
}

// Snapshot returns every instrument with its current price, sorted by symbol
func (s *Simulator) Snapshot() []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := make([]domain.Quote, 0, len(s.symbols))
	for _, sym := range s.symbols {
		inst := s.instruments[sym]
		quotes = append(quotes, domain.Quote{
			Symbol: inst.Symbol,
			Name:   inst.Name,
			Price:  inst.Price,
		})
	}
	return quotes
}

// Tick applies one round of price perturbation to every instrument.
// The scheduler calls this on a fixed cadence; tests call it directly.
func (s *Simulator) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sym := range s.symbols {
		inst := s.instruments[sym]

		factor := decimal.NewFromFloat(1 + s.perturb.Rand())
		next := inst.Price.Mul(factor).Round(2)
		if next.LessThan(s.floor) {
			next = s.floor
		}
		inst.Price = next
	}
}
