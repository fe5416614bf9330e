// Package handlers provides HTTP handlers for the commerce pipeline.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aretelabs/custodian/internal/domain"
	"github.com/aretelabs/custodian/internal/modules/commerce"
)

// CommerceHandlers contains HTTP handlers for the commerce API
type CommerceHandlers struct {
	service *commerce.Service
	log     zerolog.Logger
}

// NewCommerceHandlers creates a new commerce handlers instance
func NewCommerceHandlers(service *commerce.Service, log zerolog.Logger) *CommerceHandlers {
	return &CommerceHandlers{
		service: service,
		log:     log.With().Str("handler", "commerce").Logger(),
	}
}

type evaluateRequest struct {
	AgentID     string             `json:"agent_id"`
	Opportunity domain.Opportunity `json:"opportunity"`
}

// HandleEvaluate scores an opportunity and returns the decision
// POST /api/commerce/evaluate
func (h *CommerceHandlers) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		http.Error(w, "agent_id is required", http.StatusBadRequest)
		return
	}

	decision, err := h.service.EvaluateOpportunity(req.AgentID, req.Opportunity)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

type executeRequest struct {
	AgentID       string  `json:"agent_id"`
	Amount        string  `json:"amount"`
	Recipient     string  `json:"recipient"`
	Purpose       string  `json:"purpose"`
	Justification string  `json:"justification,omitempty"`
	ProjectedROI  float64 `json:"projected_roi,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// HandleExecute runs the full transaction pipeline
// POST /api/commerce/execute
func (h *CommerceHandlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" || req.Recipient == "" {
		http.Error(w, "agent_id and recipient are required", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	result, err := h.service.ExecuteTransaction(r.Context(), commerce.ExecuteRequest{
		AgentID:       req.AgentID,
		Amount:        amount,
		Recipient:     req.Recipient,
		Purpose:       req.Purpose,
		Justification: req.Justification,
		ProjectedROI:  req.ProjectedROI,
		Confidence:    req.Confidence,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

// writeError maps pipeline errors onto HTTP statuses. A halted system
// answers 503 with the halt reason so callers can tell it apart from a
// policy rejection.
func (h *CommerceHandlers) writeError(w http.ResponseWriter, err error) {
	var halted *domain.SystemHaltedError
	if errors.As(err, &halted) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "system_halted",
			"reason":  string(halted.Reason),
			"details": halted.Details,
		})
		return
	}

	h.log.Error().Err(err).Msg("Commerce request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
