package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the admin reporting routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/summary", h.HandleGetSummary)
	r.Get("/admin/portfolio", h.HandleGetAllPortfolios)
	r.Get("/admin/trades", h.HandleGetAllTrades)
}
