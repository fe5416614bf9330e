package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all commerce routes
func (h *CommerceHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/commerce", func(r chi.Router) {
		r.Post("/evaluate", h.HandleEvaluate) // Opportunity evaluation
		r.Post("/execute", h.HandleExecute)   // Transaction execution
	})
}
