// Package handlers provides HTTP handlers for order execution.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockerhq/stocker/internal/domain"
	"github.com/stockerhq/stocker/internal/modules/trading"
)

// Handler handles trading HTTP requests
type Handler struct {
	engine     *trading.Engine
	reconciler *trading.Reconciler
	log        zerolog.Logger
}

// NewHandler creates a new trading handler
func NewHandler(engine *trading.Engine, reconciler *trading.Reconciler, log zerolog.Logger) *Handler {
	return &Handler{
		engine:     engine,
		reconciler: reconciler,
		log:        log.With().Str("handler", "trading").Logger(),
	}
}

// orderRequest is the POST body for order execution
type orderRequest struct {
	HolderID string `json:"holder_id"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity int64  `json:"quantity"`
}

// HandleExecuteOrder handles POST /api/trading/orders
func (h *Handler) HandleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.HolderID == "" {
		h.writeError(w, http.StatusBadRequest, "holder_id is required")
		return
	}

	side := domain.Side(req.Side)
	if !side.Valid() {
		h.writeError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}

	execution, err := h.engine.ExecuteOrder(req.HolderID, req.Symbol, side, req.Quantity)
	if err != nil {
		status, message := classifyError(err)
		if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
			h.log.Error().Err(err).Str("holder_id", req.HolderID).Str("symbol", req.Symbol).Msg("Order execution failed")
		}
		h.writeError(w, status, message)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"execution": execution,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleReconcile handles POST /api/admin/reconcile
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.reconciler.ReconcileAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Reconciliation failed")
		h.writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"repaired": repaired,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// classifyError maps the engine's failure taxonomy onto HTTP statuses
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnknownInstrument):
		return http.StatusBadRequest, "unknown instrument"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, "quantity must be a positive integer"
	case errors.Is(err, domain.ErrInsufficientPosition):
		return http.StatusUnprocessableEntity, "insufficient position"
	case errors.Is(err, domain.ErrConcurrentUpdateConflict):
		return http.StatusConflict, "order lost a concurrent update race, please retry"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage unavailable, please retry"
	default:
		return http.StatusInternalServerError, "order execution failed"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": message,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
