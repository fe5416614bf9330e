// Package commerce composes risk analysis, budget checks, wallet locking
// and settlement into the evaluate/approve/lock/execute/record pipeline.
package commerce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/aretelabs/custodian/internal/domain"
	"github.com/aretelabs/custodian/internal/events"
	"github.com/aretelabs/custodian/internal/modules/audit"
	"github.com/aretelabs/custodian/internal/modules/budget"
	"github.com/aretelabs/custodian/internal/modules/governance"
	"github.com/aretelabs/custodian/internal/modules/ledger"
	"github.com/aretelabs/custodian/internal/modules/risk"
)

// evalConfidenceFloor is the orchestrator's own confidence gate for
// opportunity evaluation. Distinct from the kill switch floor: scoring
// between the two floors declines the opportunity without halting the
// system.
const defaultEvalConfidence = 0.6

// BudgetCheck reports the affordability side of an evaluation
type BudgetCheck struct {
	Cost      decimal.Decimal `json:"cost"`
	Remaining decimal.Decimal `json:"remaining"`
	Afford    bool            `json:"can_afford"`
}

// Decision is the outcome of an opportunity evaluation
type Decision struct {
	Proceed     bool                       `json:"proceed"`
	Analysis    domain.OpportunityAnalysis `json:"analysis"`
	BudgetCheck BudgetCheck                `json:"budget_check"`
	Confidence  float64                    `json:"confidence"`
	Reasoning   string                     `json:"reasoning"`
}

// Result is the outcome of a transaction execution
type Result struct {
	Success        bool   `json:"success"`
	TransactionID  string `json:"transaction_id,omitempty"`
	SettlementHash string `json:"settlement_hash,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Service is the commerce orchestrator. Every entry point consults the
// kill switch before touching any state; SystemHaltedError always
// propagates to the caller unmodified.
type Service struct {
	killSwitch *governance.KillSwitch
	wallets    *ledger.Service
	budgets    *budget.Tracker
	policy     *risk.Policy
	signer     *audit.Signer
	settlement Settlement
	limiter    *rate.Limiter
	eventBus   *events.Bus
	log        zerolog.Logger

	evalConfidence float64
}

// Config tunes the orchestrator
type Config struct {
	// EvalConfidence is the floor below which opportunities are declined
	// (not halted). Zero means the default of 0.6.
	EvalConfidence float64
	// SettlementRateLimit caps settlement calls per second. Zero disables
	// limiting.
	SettlementRateLimit float64
}

// NewService creates the commerce orchestrator
func NewService(
	cfg Config,
	killSwitch *governance.KillSwitch,
	wallets *ledger.Service,
	budgets *budget.Tracker,
	policy *risk.Policy,
	signer *audit.Signer,
	settlement Settlement,
	eventBus *events.Bus,
	log zerolog.Logger,
) *Service {
	if cfg.EvalConfidence <= 0 {
		cfg.EvalConfidence = defaultEvalConfidence
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SettlementRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SettlementRateLimit), 1)
	}
	return &Service{
		killSwitch:     killSwitch,
		wallets:        wallets,
		budgets:        budgets,
		policy:         policy,
		signer:         signer,
		settlement:     settlement,
		limiter:        limiter,
		eventBus:       eventBus,
		log:            log.With().Str("service", "commerce").Logger(),
		evalConfidence: cfg.EvalConfidence,
	}
}

// EvaluateOpportunity scores an opportunity and decides whether to pursue
// it. Proceeds only when the recommendation is a buy, the risk level is at
// most medium, the cost fits the remaining budget and confidence clears the
// floor. The reasoning string enumerates every failing criterion when
// declining.
func (s *Service) EvaluateOpportunity(agentID string, opp domain.Opportunity) (*Decision, error) {
	if err := s.killSwitch.Guard(); err != nil {
		return nil, err
	}

	analysis := risk.AnalyzeOpportunity(opp)

	// A confidence collapse is a panic trigger, not a mere decline
	if err := s.killSwitch.CheckConfidence(analysis.Confidence); err != nil {
		return nil, err
	}

	remaining, err := s.budgets.Remaining(agentID)
	if err != nil {
		return nil, fmt.Errorf("budget lookup for agent %s: %w", agentID, err)
	}
	affordable := !opp.Cost.GreaterThan(remaining)

	buySignal := analysis.Recommendation == domain.RecommendStrongBuy ||
		analysis.Recommendation == domain.RecommendBuy
	acceptableRisk := analysis.RiskLevel != domain.RiskHigh &&
		analysis.RiskLevel != domain.RiskVeryHigh
	confident := analysis.Confidence > s.evalConfidence

	decision := &Decision{
		Proceed:  buySignal && acceptableRisk && affordable && confident,
		Analysis: analysis,
		BudgetCheck: BudgetCheck{
			Cost:      opp.Cost,
			Remaining: remaining,
			Afford:    affordable,
		},
		Confidence: analysis.Confidence,
		Reasoning:  evaluationReasoning(analysis, affordable, buySignal, acceptableRisk, confident, s.evalConfidence),
	}

	if !decision.Proceed {
		s.eventBus.Emit("commerce", &events.OpportunityDeclinedData{
			OpportunityID: opp.ID,
			Reasoning:     decision.Reasoning,
		})
	}

	s.log.Info().
		Str("opportunity_id", opp.ID).
		Bool("proceed", decision.Proceed).
		Str("risk_level", string(analysis.RiskLevel)).
		Float64("roi_pct", analysis.ROIPercent).
		Msg("Opportunity evaluated")

	return decision, nil
}

// ExecuteRequest describes a transaction to execute
type ExecuteRequest struct {
	AgentID       string
	Amount        decimal.Decimal
	Recipient     string
	Purpose       string
	Justification string
	ProjectedROI  float64
	Confidence    float64
}

// ExecuteTransaction runs the full pipeline: kill-switch check, policy
// approval, funds lock, settlement, ledger record. Settlement is a single
// call with no automatic retry; on its failure the locked funds are
// released and the transaction is recorded as failed.
func (s *Service) ExecuteTransaction(ctx context.Context, req ExecuteRequest) (*Result, error) {
	if err := s.killSwitch.Guard(); err != nil {
		return nil, err
	}

	approval, err := s.policy.Approve(req.Amount, req.Purpose)
	if err != nil {
		s.log.Warn().Err(err).
			Str("agent_id", req.AgentID).
			Str("amount", req.Amount.String()).
			Msg("Transaction rejected at approval")
		return &Result{Success: false, Reason: err.Error()}, nil
	}

	if err := s.wallets.LockFunds(req.AgentID, req.Amount, req.Purpose); err != nil {
		s.policy.Release(approval.Category, req.Amount)
		return &Result{Success: false, Reason: err.Error()}, nil
	}

	tx := domain.Transaction{
		ID:        uuid.New().String(),
		AgentID:   req.AgentID,
		Amount:    req.Amount,
		Currency:  domain.CurrencyUSDC,
		Recipient: req.Recipient,
		Purpose:   req.Purpose,
		Category:  approval.Category,
		Status:    domain.StatusApproved,
		RiskLevel: approval.RiskLevel,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.limiter.Wait(ctx); err != nil {
		s.abort(&tx, fmt.Sprintf("settlement wait aborted: %v", err))
		return &Result{Success: false, TransactionID: tx.ID, Reason: err.Error()}, nil
	}

	transfer, err := s.settlement.Transfer(ctx, req.Recipient, req.Amount)
	if err != nil {
		settleErr := &domain.SettlementError{TransactionID: tx.ID, Err: err}
		s.abort(&tx, settleErr.Error())
		return &Result{Success: false, TransactionID: tx.ID, Reason: settleErr.Error()}, nil
	}

	tx.Status = domain.StatusExecuted
	tx.SettlementHash = transfer.TxHash

	reasoning := audit.ReasoningContext{
		ProjectedROI:  req.ProjectedROI,
		Confidence:    req.Confidence,
		Justification: justificationOrDefault(req),
		AgentID:       req.AgentID,
	}
	hash := reasoning.Hash()
	ann := ledger.Annotation{
		ReasoningHash: hash,
		Justification: reasoning.Justification,
	}
	if s.signer != nil {
		ann.Signature = s.signer.Sign(hash)
	}

	if err := s.wallets.RecordTransaction(tx, ann); err != nil {
		// Settlement already happened; the funds stay locked until an
		// operator reconciles, but the trail must show the failure.
		s.log.Error().Err(err).
			Str("transaction_id", tx.ID).
			Str("settlement_hash", transfer.TxHash).
			Msg("Settled transaction could not be recorded")
		return &Result{Success: false, TransactionID: tx.ID, Reason: err.Error()}, nil
	}

	return &Result{
		Success:        true,
		TransactionID:  tx.ID,
		SettlementHash: transfer.TxHash,
	}, nil
}

// abort unwinds a transaction that cannot settle: funds unlocked, policy
// headroom returned, the attempt recorded as failed.
func (s *Service) abort(tx *domain.Transaction, reason string) {
	if err := s.wallets.UnlockFunds(tx.AgentID, tx.Amount); err != nil {
		s.log.Error().Err(err).
			Str("transaction_id", tx.ID).
			Msg("Failed to unlock funds after settlement failure")
	}
	s.policy.Release(tx.Category, tx.Amount)

	tx.Status = domain.StatusFailed
	if err := s.wallets.RecordTransaction(*tx, ledger.Annotation{Justification: reason}); err != nil {
		s.log.Error().Err(err).
			Str("transaction_id", tx.ID).
			Msg("Failed to record failed transaction")
	}

	s.eventBus.Emit("commerce", &events.TransactionFailedData{
		TransactionID: tx.ID,
		AgentID:       tx.AgentID,
		Amount:        tx.Amount.String(),
		Reason:        reason,
	})
}

func evaluationReasoning(a domain.OpportunityAnalysis, affordable, buySignal, acceptableRisk, confident bool, floor float64) string {
	if buySignal && acceptableRisk && affordable && confident {
		return fmt.Sprintf("Proceeding with opportunity: ROI of %.1f%% with %s risk level and %.0f%% confidence",
			a.ROIPercent, a.RiskLevel, a.Confidence*100)
	}

	var reasons []string
	if !buySignal {
		reasons = append(reasons, fmt.Sprintf("poor ROI (%.1f%%)", a.ROIPercent))
	}
	if !acceptableRisk {
		reasons = append(reasons, fmt.Sprintf("high risk (%s)", a.RiskLevel))
	}
	if !affordable {
		reasons = append(reasons, "insufficient budget")
	}
	if !confident {
		reasons = append(reasons, fmt.Sprintf("low confidence (%.0f%% at or below %.0f%%)", a.Confidence*100, floor*100))
	}
	return "Declining opportunity due to: " + strings.Join(reasons, ", ")
}

func justificationOrDefault(req ExecuteRequest) string {
	if req.Justification != "" {
		return req.Justification
	}
	return req.Purpose
}
