// Package handlers provides HTTP handlers for the price feed.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockerhq/stocker/internal/domain"
)

// Handler handles price feed HTTP requests
type Handler struct {
	feed         domain.PriceSource
	tickInterval time.Duration
	log          zerolog.Logger
}

// NewHandler creates a new feed handler
func NewHandler(feed domain.PriceSource, tickInterval time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		feed:         feed,
		tickInterval: tickInterval,
		log:          log.With().Str("handler", "feed").Logger(),
	}
}

// HandleGetPrices handles GET /api/feed/prices
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	quotes := h.feed.Snapshot()

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"prices": quotes,
			"count":  len(quotes),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
