package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all feed routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/feed", func(r chi.Router) {
		r.Get("/prices", h.HandleGetPrices)
		r.Get("/stream", h.HandleStream)
	})
}
