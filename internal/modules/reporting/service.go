// Package reporting builds read-only views over the position store, the
// order ledger and the live price feed. Views are computed on demand from
// current data, nothing here is cached or persisted.
package reporting

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockerhq/stocker/internal/domain"
)

// PortfolioEntry is one valued position in a portfolio view. Market value
// and unrealized P&L are computed against the feed's current price; when
// the instrument is unknown to the feed the valuation fields stay zero and
// Priced is false.
type PortfolioEntry struct {
	HolderID      string          `json:"holder_id"`
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Priced        bool            `json:"priced"`
}

// Summary aggregates the whole system for the admin view
type Summary struct {
	Holders          int             `json:"holders"`
	OpenPositions    int             `json:"open_positions"`
	TotalTrades      int64           `json:"total_trades"`
	TotalCostBasis   decimal.Decimal `json:"total_cost_basis"`
	TotalMarketValue decimal.Decimal `json:"total_market_value"`
}

// Service computes reporting views
type Service struct {
	feed      domain.PriceSource
	ledger    domain.LedgerStore
	positions domain.PositionStore
	log       zerolog.Logger
}

// NewService creates a new reporting service
func NewService(feed domain.PriceSource, ledger domain.LedgerStore, positions domain.PositionStore, log zerolog.Logger) *Service {
	return &Service{
		feed:      feed,
		ledger:    ledger,
		positions: positions,
		log:       log.With().Str("service", "reporting").Logger(),
	}
}

// HolderPortfolio returns the holder's open positions valued at current
// prices, sorted by symbol. Holders with no positions get an empty slice.
func (s *Service) HolderPortfolio(holderID string) ([]PortfolioEntry, error) {
	positions, err := s.positions.GetByHolder(holderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions for %s: %w", holderID, err)
	}
	return s.value(positions), nil
}

// AllPortfolios returns every open position in the system valued at
// current prices, sorted by holder then symbol.
func (s *Service) AllPortfolios() ([]PortfolioEntry, error) {
	positions, err := s.positions.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	return s.value(positions), nil
}

// AdminSummary aggregates holders, open positions, trade count and total
// valuations across the system.
func (s *Service) AdminSummary() (*Summary, error) {
	entries, err := s.AllPortfolios()
	if err != nil {
		return nil, err
	}

	trades, err := s.ledger.CountAll()
	if err != nil {
		return nil, fmt.Errorf("failed to count trades: %w", err)
	}

	holders := make(map[string]bool)
	summary := &Summary{
		TotalTrades:      trades,
		TotalCostBasis:   decimal.Zero,
		TotalMarketValue: decimal.Zero,
	}
	for _, entry := range entries {
		holders[entry.HolderID] = true
		summary.OpenPositions++
		summary.TotalCostBasis = summary.TotalCostBasis.Add(entry.CostBasis)
		summary.TotalMarketValue = summary.TotalMarketValue.Add(entry.MarketValue)
	}
	summary.Holders = len(holders)

	return summary, nil
}

// AllTrades returns the most recent trades across all holders, newest first
func (s *Service) AllTrades(limit int) ([]domain.Order, error) {
	orders, err := s.ledger.GetAll(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// HolderTrades returns the holder's trades, newest first
func (s *Service) HolderTrades(holderID string, limit int) ([]domain.Order, error) {
	orders, err := s.ledger.GetByHolder(holderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades for %s: %w", holderID, err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// value turns raw positions into priced entries
func (s *Service) value(positions []domain.Position) []PortfolioEntry {
	entries := make([]PortfolioEntry, 0, len(positions))
	for _, pos := range positions {
		quantity := decimal.NewFromInt(pos.Quantity)
		entry := PortfolioEntry{
			HolderID:  pos.HolderID,
			Symbol:    pos.Symbol,
			Quantity:  pos.Quantity,
			AvgCost:   pos.AvgCost,
			CostBasis: pos.AvgCost.Mul(quantity).Round(2),
		}

		price, err := s.feed.CurrentPrice(pos.Symbol)
		if err != nil {
			// Position survives an instrument leaving the universe; report
			// it unpriced rather than dropping it from the view.
			s.log.Warn().Str("symbol", pos.Symbol).Msg("No current price for held position")
		} else {
			entry.CurrentPrice = price
			entry.MarketValue = price.Mul(quantity)
			entry.UnrealizedPnL = entry.MarketValue.Sub(entry.CostBasis)
			entry.Priced = true
		}

		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].HolderID != entries[j].HolderID {
			return entries[i].HolderID < entries[j].HolderID
		}
		return entries[i].Symbol < entries[j].Symbol
	})

	return entries
}
