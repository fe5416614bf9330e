package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all system state routes
func (h *GovernanceHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/state", h.HandleGetState)
		r.Post("/pause", h.HandlePause)
		r.Post("/resume", h.HandleResume)
		r.Post("/anomaly", h.HandleSignalAnomaly)
	})
}
