// Package handlers provides HTTP handlers for wallets, budgets and the
// audit trail.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aretelabs/custodian/internal/modules/audit"
	"github.com/aretelabs/custodian/internal/modules/budget"
	"github.com/aretelabs/custodian/internal/modules/ledger"
)

// LedgerHandlers contains HTTP handlers for the ledger API
type LedgerHandlers struct {
	wallets *ledger.Service
	budgets *budget.Tracker
	audit   *audit.Service
	log     zerolog.Logger
}

// NewLedgerHandlers creates a new ledger handlers instance
func NewLedgerHandlers(wallets *ledger.Service, budgets *budget.Tracker, auditSvc *audit.Service, log zerolog.Logger) *LedgerHandlers {
	return &LedgerHandlers{
		wallets: wallets,
		budgets: budgets,
		audit:   auditSvc,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

type createWalletRequest struct {
	AgentID string `json:"agent_id"`
	Balance string `json:"balance"`
}

// HandleCreateWallet registers a wallet with an opening balance
// POST /api/wallets
func (h *LedgerHandlers) HandleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	balance, err := decimal.NewFromString(req.Balance)
	if err != nil {
		http.Error(w, "Invalid balance", http.StatusBadRequest)
		return
	}

	if err := h.wallets.CreateWallet(req.AgentID, balance); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// HandleGetWallet returns the wallet snapshot
// GET /api/wallets/{agentID}
func (h *LedgerHandlers) HandleGetWallet(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	wallet, err := h.wallets.Wallet(agentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, wallet)
}

// HandleGetHistory returns transactions inside a trailing window
// GET /api/wallets/{agentID}/history?hours=24
func (h *LedgerHandlers) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	hours := 24
	if param := r.URL.Query().Get("hours"); param != "" {
		if parsed, err := strconv.Atoi(param); err == nil && parsed > 0 {
			hours = parsed
		}
	}

	history, err := h.wallets.History(agentID, time.Duration(hours)*time.Hour)
	if err != nil {
		h.log.Error().Err(err).Str("agent_id", agentID).Msg("Failed to load history")
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":     agentID,
		"window_hours": hours,
		"transactions": history,
	})
}

type allocateBudgetRequest struct {
	AgentID string `json:"agent_id"`
	Total   string `json:"total"`
	Days    int    `json:"period_days"`
}

// HandleAllocateBudget creates a budget period for an agent
// POST /api/budgets
func (h *LedgerHandlers) HandleAllocateBudget(w http.ResponseWriter, r *http.Request) {
	var req allocateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	total, err := decimal.NewFromString(req.Total)
	if err != nil {
		http.Error(w, "Invalid total", http.StatusBadRequest)
		return
	}
	if req.Days <= 0 {
		req.Days = 30
	}

	start := time.Now().UTC()
	if err := h.budgets.Allocate(req.AgentID, total, start, start.AddDate(0, 0, req.Days)); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// HandleGetBudget returns the budget snapshot
// GET /api/budgets/{agentID}
func (h *LedgerHandlers) HandleGetBudget(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	b, err := h.budgets.Get(agentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

type recordRevenueRequest struct {
	Revenue string `json:"revenue"`
}

// HandleRecordRevenue records realized revenue for an executed transaction
// POST /api/transactions/{txID}/revenue
func (h *LedgerHandlers) HandleRecordRevenue(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txID")

	var req recordRevenueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	revenue, err := decimal.NewFromString(req.Revenue)
	if err != nil {
		http.Error(w, "Invalid revenue", http.StatusBadRequest)
		return
	}

	if err := h.wallets.RecordRevenue(txID, revenue); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleAuditExport returns the flat audit record for one transaction
// GET /api/audit/transactions/{txID}
func (h *LedgerHandlers) HandleAuditExport(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txID")

	record, err := h.audit.Export(txID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// HandleAuditReport returns a P&L report over a trailing window
// GET /api/audit/report?days=30
func (h *LedgerHandlers) HandleAuditReport(w http.ResponseWriter, r *http.Request) {
	days := 30
	if param := r.URL.Query().Get("days"); param != "" {
		if parsed, err := strconv.Atoi(param); err == nil && parsed > 0 {
			days = parsed
		}
	}

	end := time.Now().UTC()
	report, err := h.audit.Report(end.AddDate(0, 0, -days), end)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build P&L report")
		http.Error(w, "Failed to build report", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
