// Package handlers provides HTTP handlers for ledger queries.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/stockerhq/stocker/internal/domain"
)

// Handler handles ledger HTTP requests
type Handler struct {
	ledger domain.LedgerStore
	log    zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(ledger domain.LedgerStore, log zerolog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetHolderTrades handles GET /api/ledger/trades/{holderID}
func (h *Handler) HandleGetHolderTrades(w http.ResponseWriter, r *http.Request) {
	holderID := chi.URLParam(r, "holderID")
	if holderID == "" {
		http.Error(w, "missing holder id", http.StatusBadRequest)
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	orders, err := h.ledger.GetByHolder(holderID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("holder_id", holderID).Msg("Failed to query trades")
		http.Error(w, "Failed to query trades", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"trades": orders,
			"count":  len(orders),
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
