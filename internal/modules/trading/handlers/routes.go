package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the trading routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/trading/orders", h.HandleExecuteOrder)
	r.Post("/admin/reconcile", h.HandleReconcile)
}
