// Package handlers provides HTTP handlers for the kill switch.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aretelabs/custodian/internal/domain"
	"github.com/aretelabs/custodian/internal/modules/governance"
)

// GovernanceHandlers contains HTTP handlers for system state control
type GovernanceHandlers struct {
	killSwitch *governance.KillSwitch
	log        zerolog.Logger
}

// NewGovernanceHandlers creates a new governance handlers instance
func NewGovernanceHandlers(killSwitch *governance.KillSwitch, log zerolog.Logger) *GovernanceHandlers {
	return &GovernanceHandlers{
		killSwitch: killSwitch,
		log:        log.With().Str("handler", "governance").Logger(),
	}
}

// HandleGetState returns the current kill-switch state
// GET /api/system/state
func (h *GovernanceHandlers) HandleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.killSwitch.Status())
}

type pauseRequest struct {
	Details string `json:"details,omitempty"`
}

// HandlePause suspends commerce activity
// POST /api/system/pause
func (h *GovernanceHandlers) HandlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.killSwitch.Pause(req.Details); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, h.killSwitch.Status())
}

// HandleResume returns a paused system to active
// POST /api/system/resume
func (h *GovernanceHandlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	if err := h.killSwitch.Resume(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, h.killSwitch.Status())
}

type anomalyRequest struct {
	Reason  string `json:"reason"`
	Details string `json:"details"`
}

// HandleSignalAnomaly triggers the emergency halt from an external
// collaborator (budget or security monitoring)
// POST /api/system/anomaly
func (h *GovernanceHandlers) HandleSignalAnomaly(w http.ResponseWriter, r *http.Request) {
	var req anomalyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reason := domain.PanicReason(req.Reason)
	switch reason {
	case domain.PanicBudgetAnomaly, domain.PanicSecurityBreach,
		domain.PanicMarketCrash, domain.PanicLowConfidence:
	default:
		http.Error(w, "Unknown panic reason", http.StatusBadRequest)
		return
	}

	// The returned halt error is the expected outcome here, not a failure
	_ = h.killSwitch.SignalAnomaly(reason, req.Details)

	writeJSON(w, http.StatusOK, h.killSwitch.Status())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
