package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all wallet, budget and audit routes
func (h *LedgerHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/wallets", func(r chi.Router) {
		r.Post("/", h.HandleCreateWallet)
		r.Get("/{agentID}", h.HandleGetWallet)
		r.Get("/{agentID}/history", h.HandleGetHistory)
	})

	r.Route("/budgets", func(r chi.Router) {
		r.Post("/", h.HandleAllocateBudget)
		r.Get("/{agentID}", h.HandleGetBudget)
	})

	r.Post("/transactions/{txID}/revenue", h.HandleRecordRevenue)

	r.Route("/audit", func(r chi.Router) {
		r.Get("/transactions/{txID}", h.HandleAuditExport)
		r.Get("/report", h.HandleAuditReport)
	})
}
