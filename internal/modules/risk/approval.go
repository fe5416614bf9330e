package risk

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aretelabs/custodian/internal/domain"
)

// categoryKeywords drives category inference from the purpose text.
// First bucket with a matching keyword wins; no match falls through to
// CategoryOther.
var categoryKeywords = []struct {
	category domain.SpendCategory
	words    []string
}{
	{domain.CategoryCompute, []string{"compute", "gpu", "cpu", "render", "inference", "training"}},
	{domain.CategoryStorage, []string{"storage", "disk", "archive", "bucket", "backup"}},
	{domain.CategoryAPICalls, []string{"api", "endpoint", "request", "call", "quota"}},
	{domain.CategoryMarketing, []string{"marketing", "campaign", "promotion", "advert", "ad spend"}},
	{domain.CategoryResearch, []string{"research", "analysis", "study", "report", "survey"}},
}

// InferCategory buckets a purpose string into a spend category
func InferCategory(purpose string) domain.SpendCategory {
	lower := strings.ToLower(purpose)
	for _, bucket := range categoryKeywords {
		for _, word := range bucket.words {
			if strings.Contains(lower, word) {
				return bucket.category
			}
		}
	}
	return domain.CategoryOther
}

// PolicyConfig holds the externally configured ceilings and cutoffs
type PolicyConfig struct {
	CategoryLimits map[domain.SpendCategory]decimal.Decimal
	DailyCeiling   decimal.Decimal
	RiskCutoff     float64
}

// Approval is the outcome of a transaction-level safety check
type Approval struct {
	Category  domain.SpendCategory `json:"category"`
	RiskScore float64              `json:"risk_score"`
	RiskLevel domain.RiskLevel     `json:"risk_level"`
}

// Policy enforces per-category and daily aggregate spend ceilings plus an
// amount-scaled risk cutoff. Approved amounts count against the day's
// ceilings immediately so concurrent approvals cannot jointly exceed them;
// Release returns the headroom when a spend does not go through.
type Policy struct {
	mu            sync.Mutex
	cfg           PolicyConfig
	categorySpend map[domain.SpendCategory]decimal.Decimal
	dailySpend    decimal.Decimal
	log           zerolog.Logger
}

// NewPolicy creates a transaction approval policy
func NewPolicy(cfg PolicyConfig, log zerolog.Logger) *Policy {
	return &Policy{
		cfg:           cfg,
		categorySpend: make(map[domain.SpendCategory]decimal.Decimal),
		dailySpend:    decimal.Zero,
		log:           log.With().Str("service", "approval_policy").Logger(),
	}
}

// Approve runs every safety check against a proposed spend. The returned
// error enumerates every failing condition, not just the first.
func (p *Policy) Approve(amount decimal.Decimal, purpose string) (Approval, error) {
	if !amount.IsPositive() {
		return Approval{}, fmt.Errorf("transaction amount must be positive, got %s", amount)
	}

	category := InferCategory(purpose)
	score := transactionRiskScore(amount)
	level := LevelFromScore(score)

	p.mu.Lock()
	defer p.mu.Unlock()

	var reasons []string

	ceiling, ok := p.cfg.CategoryLimits[category]
	if !ok {
		ceiling = decimal.Zero
	}
	projected := p.categorySpend[category].Add(amount)
	if projected.GreaterThan(ceiling) {
		reasons = append(reasons, fmt.Sprintf("category %s ceiling exceeded: %s spent today + %s requested > %s limit",
			category, p.categorySpend[category], amount, ceiling))
	}

	if p.dailySpend.Add(amount).GreaterThan(p.cfg.DailyCeiling) {
		reasons = append(reasons, fmt.Sprintf("daily ceiling exceeded: %s spent today + %s requested > %s limit",
			p.dailySpend, amount, p.cfg.DailyCeiling))
	}

	if score >= p.cfg.RiskCutoff {
		reasons = append(reasons, fmt.Sprintf("risk score %.2f at or above cutoff %.2f", score, p.cfg.RiskCutoff))
	}

	if exposure := MaxExposure(level); amount.GreaterThan(exposure) {
		reasons = append(reasons, fmt.Sprintf("amount %s exceeds maximum exposure %s for %s risk",
			amount, exposure, level))
	}

	if len(reasons) > 0 {
		p.log.Warn().
			Str("category", string(category)).
			Str("amount", amount.String()).
			Strs("reasons", reasons).
			Msg("Transaction rejected by approval policy")
		return Approval{}, &domain.CategoryLimitExceededError{
			Category:  category,
			Requested: amount,
			Ceiling:   ceiling,
			Reasons:   reasons,
		}
	}

	// Reserve the headroom so a concurrent approval sees it
	p.categorySpend[category] = projected
	p.dailySpend = p.dailySpend.Add(amount)

	return Approval{Category: category, RiskScore: score, RiskLevel: level}, nil
}

// Release returns previously approved headroom when the spend did not
// execute (lock failure, settlement failure). Floored at zero.
func (p *Policy) Release(category domain.SpendCategory, amount decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.categorySpend[category] = p.categorySpend[category].Sub(amount)
	if p.categorySpend[category].IsNegative() {
		p.categorySpend[category] = decimal.Zero
	}
	p.dailySpend = p.dailySpend.Sub(amount)
	if p.dailySpend.IsNegative() {
		p.dailySpend = decimal.Zero
	}
}

// ResetDaily clears the day's aggregate counters. Run at midnight UTC.
func (p *Policy) ResetDaily() {
	p.mu.Lock()
	p.categorySpend = make(map[domain.SpendCategory]decimal.Decimal)
	p.dailySpend = decimal.Zero
	p.mu.Unlock()

	p.log.Info().Msg("Daily spend counters reset")
}

// DailySpend returns the aggregate approved spend for the current day
func (p *Policy) DailySpend() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dailySpend
}

// transactionRiskScore scales the amount onto [0,1], mirroring the
// resource_requirements factor of the opportunity engine
func transactionRiskScore(amount decimal.Decimal) float64 {
	ratio, _ := amount.Div(resourceScaleDivisor).Float64()
	if ratio > 1 {
		return 1
	}
	return ratio
}
