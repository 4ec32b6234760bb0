package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all optimization routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimize", func(r chi.Router) {
		r.Post("/", h.HandleOptimize)
		r.Post("/returns", h.HandleOptimizeReturns)
	})
	r.Post("/stock-data", h.HandleStockData)
}
