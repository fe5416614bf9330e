// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code
type Currency string

const (
	CurrencyUSDC Currency = "USDC"
	CurrencyUSD  Currency = "USD"
	CurrencyTEST Currency = "TEST" // For research mode
)

// TransactionStatus represents the lifecycle state of a transaction.
// A transaction is immutable once it reaches StatusExecuted or StatusFailed.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusApproved  TransactionStatus = "approved"
	StatusExecuted  TransactionStatus = "executed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// RiskLevel represents the aggregate risk bucket of an opportunity or transaction
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "very_low"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// Recommendation represents the engine's verdict on an opportunity
type Recommendation string

const (
	RecommendStrongBuy Recommendation = "strong_buy"
	RecommendBuy       Recommendation = "buy"
	RecommendHold      Recommendation = "hold"
	RecommendAvoid     Recommendation = "avoid"
)

// SpendCategory represents a spend-category bucket for budget accounting
type SpendCategory string

const (
	CategoryCompute   SpendCategory = "compute"
	CategoryStorage   SpendCategory = "storage"
	CategoryAPICalls  SpendCategory = "api_calls"
	CategoryMarketing SpendCategory = "marketing"
	CategoryResearch  SpendCategory = "research"
	CategoryOther     SpendCategory = "other"
)

// AllCategories lists every spend category, used for exhaustive handling
// of per-category ceilings and budget buckets.
func AllCategories() []SpendCategory {
	return []SpendCategory{
		CategoryCompute,
		CategoryStorage,
		CategoryAPICalls,
		CategoryMarketing,
		CategoryResearch,
		CategoryOther,
	}
}

// Transaction represents a single spend by an agent.
// Created by the commerce orchestrator at approval time.
type Transaction struct {
	ID        string            `json:"id"`
	AgentID   string            `json:"agent_id"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  Currency          `json:"currency"`
	Recipient string            `json:"recipient"`
	Purpose   string            `json:"purpose"`
	Category  SpendCategory     `json:"category"`
	Status    TransactionStatus `json:"status"`
	RiskLevel RiskLevel         `json:"risk_level"`
	CreatedAt time.Time         `json:"created_at"`

	// Settlement outcome, populated once the external transfer completes
	SettlementHash string `json:"settlement_hash,omitempty"`

	// ActualRevenue is set once revenue attributable to this spend is known.
	// Nil means "not yet known", never zero.
	ActualRevenue *decimal.Decimal `json:"actual_revenue,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Terminal reports whether the transaction can no longer be mutated
func (t *Transaction) Terminal() bool {
	return t.Status == StatusExecuted || t.Status == StatusFailed
}

// RealizedROI returns the realized return on investment once actual revenue
// is recorded: (actual_revenue - amount) / amount. The second return value is
// false until revenue is known or when the amount is not positive.
func (t *Transaction) RealizedROI() (float64, bool) {
	if t.ActualRevenue == nil || !t.Amount.IsPositive() {
		return 0, false
	}
	roi, _ := t.ActualRevenue.Sub(t.Amount).Div(t.Amount).Float64()
	return roi, true
}

// Validate checks structural validity before persistence
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction missing id")
	}
	if t.AgentID == "" {
		return fmt.Errorf("transaction %s missing agent id", t.ID)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("transaction %s has non-positive amount %s", t.ID, t.Amount)
	}
	return nil
}

// Opportunity describes a commercial opportunity submitted for analysis.
// Cost and revenue are exact decimals; the risk inputs are ratios in [0,1].
type Opportunity struct {
	ID              string          `json:"id"`
	Topic           string          `json:"topic"`
	Cost            decimal.Decimal `json:"cost"`
	ExpectedRevenue decimal.Decimal `json:"expected_revenue"`
	DurationDays    float64         `json:"duration_days"`
	MarketRisk      float64         `json:"market_risk"`
	Complexity      float64         `json:"complexity"`
	Urgency         float64         `json:"urgency"`
}

// RiskFactors is the named breakdown of an opportunity's risk inputs,
// each weight in [0,1].
type RiskFactors struct {
	MarketVolatility     float64 `json:"market_volatility"`
	ExecutionComplexity  float64 `json:"execution_complexity"`
	TimeSensitivity      float64 `json:"time_sensitivity"`
	ResourceRequirements float64 `json:"resource_requirements"`
}

// Score returns the aggregate risk score: the arithmetic mean of the four factors
func (f RiskFactors) Score() float64 {
	return (f.MarketVolatility + f.ExecutionComplexity + f.TimeSensitivity + f.ResourceRequirements) / 4
}

// OpportunityAnalysis is the risk/ROI engine output. Computed fresh per
// request; never persisted as mutable state.
type OpportunityAnalysis struct {
	Cost            decimal.Decimal `json:"cost"`
	ExpectedRevenue decimal.Decimal `json:"expected_revenue"`
	ROIPercent      float64         `json:"roi_percent"`
	DailyROIPercent float64         `json:"daily_roi_percent"`
	Factors         RiskFactors     `json:"factors"`
	RiskScore       float64         `json:"risk_score"`
	RiskLevel       RiskLevel       `json:"risk_level"`
	Recommendation  Recommendation  `json:"recommendation"`
	Confidence      float64         `json:"confidence"`
	Mitigations     []string        `json:"mitigations"`
	MaxExposure     decimal.Decimal `json:"max_exposure"`
}
