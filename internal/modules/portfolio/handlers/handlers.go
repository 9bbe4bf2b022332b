// Package handlers provides HTTP handlers for portfolio queries.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/stockerhq/stocker/internal/modules/reporting"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	reporting *reporting.Service
	log       zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(reportingService *reporting.Service, log zerolog.Logger) *Handler {
	return &Handler{
		reporting: reportingService,
		log:       log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetHolderPortfolio handles GET /api/portfolio/{holderID}
func (h *Handler) HandleGetHolderPortfolio(w http.ResponseWriter, r *http.Request) {
	holderID := chi.URLParam(r, "holderID")
	if holderID == "" {
		http.Error(w, "missing holder id", http.StatusBadRequest)
		return
	}

	entries, err := h.reporting.HolderPortfolio(holderID)
	if err != nil {
		h.log.Error().Err(err).Str("holder_id", holderID).Msg("Failed to build portfolio view")
		http.Error(w, "Failed to build portfolio view", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"positions": entries,
			"count":     len(entries),
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
