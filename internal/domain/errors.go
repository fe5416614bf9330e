package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PanicReason identifies why the kill switch fired
type PanicReason string

const (
	PanicLowConfidence  PanicReason = "low_confidence"
	PanicMarketCrash    PanicReason = "market_crash"
	PanicBudgetAnomaly  PanicReason = "budget_anomaly"
	PanicSecurityBreach PanicReason = "security_breach"
)

// VersionConflictError is returned when an optimistic write is based on a
// stale version. Recoverable: the caller should re-read and retry.
type VersionConflictError struct {
	ResourceID string
	Expected   uint64
	Actual     uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected v%d, got v%d", e.ResourceID, e.Expected, e.Actual)
}

// Retryable reports that the caller may re-read and attempt the write again
func (e *VersionConflictError) Retryable() bool { return true }

// InsufficientFundsError is returned when a lock or spend would drive the
// spendable balance (balance minus locked funds) negative.
type InsufficientFundsError struct {
	AgentID   string
	Requested decimal.Decimal
	Spendable decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient spendable balance for agent %s: requested %s, spendable %s",
		e.AgentID, e.Requested, e.Spendable)
}

// BudgetExceededError is a policy rejection: the spend does not fit in the
// agent's remaining budget allocation.
type BudgetExceededError struct {
	AgentID   string
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded for agent %s: requested %s, remaining %s",
		e.AgentID, e.Requested, e.Remaining)
}

// CategoryLimitExceededError is a policy rejection against a per-category
// or daily aggregate spend ceiling.
type CategoryLimitExceededError struct {
	Category  SpendCategory
	Requested decimal.Decimal
	Ceiling   decimal.Decimal
	// Reasons enumerates every failing condition, not just the first
	Reasons []string
}

func (e *CategoryLimitExceededError) Error() string {
	if len(e.Reasons) > 0 {
		return fmt.Sprintf("transaction rejected: %s", strings.Join(e.Reasons, "; "))
	}
	return fmt.Sprintf("category limit exceeded for %s: requested %s, ceiling %s",
		e.Category, e.Requested, e.Ceiling)
}

// RiskRejectedError is returned when the confidence or risk-level gate fails
type RiskRejectedError struct {
	RiskLevel  RiskLevel
	Confidence float64
	Reasons    []string
}

func (e *RiskRejectedError) Error() string {
	return fmt.Sprintf("risk gate rejected (level=%s, confidence=%.2f): %s",
		e.RiskLevel, e.Confidence, strings.Join(e.Reasons, "; "))
}

// SystemHaltedError signals that the kill switch is engaged. It must
// propagate and abort the in-flight operation; the orchestrator never
// swallows it.
type SystemHaltedError struct {
	Reason   PanicReason
	Details  string
	HaltedAt time.Time
}

func (e *SystemHaltedError) Error() string {
	return fmt.Sprintf("system halted: %s - %s", e.Reason, e.Details)
}

// SettlementError wraps a failure from the external settlement collaborator.
// Funds are unlocked and the transaction marked failed; there is no
// automatic retry.
type SettlementError struct {
	TransactionID string
	Err           error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement failed for transaction %s: %v", e.TransactionID, e.Err)
}

func (e *SettlementError) Unwrap() error { return e.Err }
