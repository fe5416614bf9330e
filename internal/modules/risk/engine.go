// Package risk provides the deterministic risk/ROI engine and the
// transaction approval policy.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aretelabs/custodian/internal/domain"
)

// Risk level thresholds on the aggregate score. Upper bounds are
// exclusive: a score of exactly 0.2 is low, not very_low.
const (
	veryLowUpper = 0.2
	lowUpper     = 0.4
	mediumUpper  = 0.6
	highUpper    = 0.8
)

// Mitigation trigger thresholds, one per risk factor
const (
	marketVolatilityTrigger     = 0.3
	executionComplexityTrigger  = 0.4
	timeSensitivityTrigger      = 0.3
	resourceRequirementsTrigger = 0.5
)

// resourceScaleDivisor normalizes cost into the resource_requirements
// factor: min(cost / 10000, 1.0)
var resourceScaleDivisor = decimal.NewFromInt(10000)

// maxExposure caps transaction size per risk level regardless of stated
// cost. Downstream approval refuses anything above the ceiling for the
// computed level.
var maxExposure = map[domain.RiskLevel]decimal.Decimal{
	domain.RiskVeryLow:  decimal.NewFromInt(10000),
	domain.RiskLow:      decimal.NewFromInt(5000),
	domain.RiskMedium:   decimal.NewFromInt(2500),
	domain.RiskHigh:     decimal.NewFromInt(1000),
	domain.RiskVeryHigh: decimal.NewFromInt(500),
}

// MaxExposure returns the transaction size ceiling for a risk level
func MaxExposure(level domain.RiskLevel) decimal.Decimal {
	return maxExposure[level]
}

// AnalyzeOpportunity scores an opportunity. Pure and deterministic:
// identical input always yields identical level, recommendation and
// confidence.
func AnalyzeOpportunity(opp domain.Opportunity) domain.OpportunityAnalysis {
	roi := roiPercent(opp.Cost, opp.ExpectedRevenue)

	dailyROI := 0.0
	if opp.DurationDays > 0 {
		dailyROI = roi / opp.DurationDays
	}

	factors := domain.RiskFactors{
		MarketVolatility:     opp.MarketRisk,
		ExecutionComplexity:  opp.Complexity,
		TimeSensitivity:      opp.Urgency,
		ResourceRequirements: resourceRequirements(opp.Cost),
	}

	score := factors.Score()
	level := LevelFromScore(score)

	return domain.OpportunityAnalysis{
		Cost:            opp.Cost,
		ExpectedRevenue: opp.ExpectedRevenue,
		ROIPercent:      roi,
		DailyROIPercent: dailyROI,
		Factors:         factors,
		RiskScore:       score,
		RiskLevel:       level,
		Recommendation:  recommend(roi, level),
		Confidence:      confidence(roi, level),
		Mitigations:     mitigations(factors),
		MaxExposure:     maxExposure[level],
	}
}

// roiPercent returns (revenue - cost) / cost * 100, or 0 for free
// opportunities
func roiPercent(cost, revenue decimal.Decimal) float64 {
	if !cost.IsPositive() {
		return 0
	}
	roi, _ := revenue.Sub(cost).Div(cost).Float64()
	return roi * 100
}

// resourceRequirements maps cost onto [0,1]
func resourceRequirements(cost decimal.Decimal) float64 {
	if cost.IsNegative() {
		return 0
	}
	ratio, _ := cost.Div(resourceScaleDivisor).Float64()
	if ratio > 1 {
		return 1
	}
	return ratio
}

// LevelFromScore buckets an aggregate risk score
func LevelFromScore(score float64) domain.RiskLevel {
	switch {
	case score < veryLowUpper:
		return domain.RiskVeryLow
	case score < lowUpper:
		return domain.RiskLow
	case score < mediumUpper:
		return domain.RiskMedium
	case score < highUpper:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}

func recommend(roi float64, level domain.RiskLevel) domain.Recommendation {
	lowRisk := level == domain.RiskVeryLow || level == domain.RiskLow

	switch {
	case roi > 50 && lowRisk:
		return domain.RecommendStrongBuy
	case roi > 20 && (lowRisk || level == domain.RiskMedium):
		return domain.RecommendBuy
	case roi > 10 && lowRisk:
		return domain.RecommendHold
	default:
		return domain.RecommendAvoid
	}
}

func confidence(roi float64, level domain.RiskLevel) float64 {
	c := 0.7

	if roi > 30 {
		c += 0.2
	}
	if roi < 5 {
		c -= 0.2
	}

	switch level {
	case domain.RiskVeryLow:
		c += 0.2
	case domain.RiskLow:
		c += 0.1
	case domain.RiskMedium:
		// no adjustment
	case domain.RiskHigh:
		c -= 0.1
	case domain.RiskVeryHigh:
		c -= 0.2
	}

	if c < 0.1 {
		c = 0.1
	}
	if c > 0.95 {
		c = 0.95
	}
	return c
}

// mitigations suggests countermeasures for each factor above its trigger.
// The checks are independent; any subset may fire.
func mitigations(f domain.RiskFactors) []string {
	var out []string
	if f.MarketVolatility > marketVolatilityTrigger {
		out = append(out, fmt.Sprintf("hedge market exposure: volatility factor %.2f above %.2f",
			f.MarketVolatility, marketVolatilityTrigger))
	}
	if f.ExecutionComplexity > executionComplexityTrigger {
		out = append(out, fmt.Sprintf("split delivery into smaller milestones: complexity factor %.2f above %.2f",
			f.ExecutionComplexity, executionComplexityTrigger))
	}
	if f.TimeSensitivity > timeSensitivityTrigger {
		out = append(out, fmt.Sprintf("prepare a fallback window: urgency factor %.2f above %.2f",
			f.TimeSensitivity, timeSensitivityTrigger))
	}
	if f.ResourceRequirements > resourceRequirementsTrigger {
		out = append(out, fmt.Sprintf("stage the spend in tranches: resource factor %.2f above %.2f",
			f.ResourceRequirements, resourceRequirementsTrigger))
	}
	return out
}
