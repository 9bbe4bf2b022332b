// Package handlers provides HTTP handlers for the admin reporting views.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockerhq/stocker/internal/modules/reporting"
)

// Handler handles admin reporting HTTP requests
type Handler struct {
	reporting *reporting.Service
	log       zerolog.Logger
}

// NewHandler creates a new reporting handler
func NewHandler(reportingService *reporting.Service, log zerolog.Logger) *Handler {
	return &Handler{
		reporting: reportingService,
		log:       log.With().Str("handler", "reporting").Logger(),
	}
}

// HandleGetSummary handles GET /api/admin/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reporting.AdminSummary()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build summary")
		http.Error(w, "Failed to build summary", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"summary": summary,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetAllPortfolios handles GET /api/admin/portfolio
func (h *Handler) HandleGetAllPortfolios(w http.ResponseWriter, r *http.Request) {
	entries, err := h.reporting.AllPortfolios()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build portfolio view")
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

// HandleGetAllTrades handles GET /api/admin/trades
func (h *Handler) HandleGetAllTrades(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	orders, err := h.reporting.AllTrades(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query trades")
		http.Error(w, "Failed to query trades", http.StatusInternalServerError)
		return
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
