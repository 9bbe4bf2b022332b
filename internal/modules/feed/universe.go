package feed

import (
	"github.com/shopspring/decimal"

	"github.com/stockerhq/stocker/internal/domain"
)

// DefaultUniverse returns the fixed set of tradable instruments with their
// starting prices. The universe never changes at runtime; only prices move.
func DefaultUniverse() []domain.Instrument {
	entries := []struct {
		symbol string
		name   string
		price  string
	}{
		{"AAPL", "Apple Inc.", "180.50"},
		{"GOOGL", "Alphabet Inc.", "2750.80"},
		{"MSFT", "Microsoft Corp.", "380.20"},
		{"AMZN", "Amazon.com Inc.", "3350.75"},
		{"TSLA", "Tesla Inc.", "850.40"},
		{"META", "Meta Platforms Inc.", "320.15"},
		{"NVDA", "NVIDIA Corp.", "450.90"},
		{"NFLX", "Netflix Inc.", "420.60"},
		{"PYPL", "PayPal Holdings Inc.", "280.30"},
		{"ADBE", "Adobe Inc.", "520.75"},
		{"CRM", "Salesforce Inc.", "210.45"},
		{"ORCL", "Oracle Corp.", "95.80"},
		{"IBM", "IBM Corp.", "140.25"},
		{"INTC", "Intel Corp.", "65.30"},
		{"AMD", "Advanced Micro Devices", "120.90"},
		{"UBER", "Uber Technologies", "45.70"},
		{"SNAP", "Snap Inc.", "35.80"},
		{"TWTR", "Twitter Inc.", "52.40"},
		{"SPOT", "Spotify Technology", "180.60"},
		{"SQ", "Block Inc.", "85.20"},
		{"ZOOM", "Zoom Video Communications", "120.15"},
	}

	instruments := make([]domain.Instrument, 0, len(entries))
	for _, e := range entries {
		instruments = append(instruments, domain.Instrument{
			Symbol: e.symbol,
			Name:   e.name,
			Price:  decimal.RequireFromString(e.price),
		})
	}
	return instruments
}
