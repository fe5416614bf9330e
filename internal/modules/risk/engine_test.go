package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretelabs/custodian/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func opp(cost, revenue string, days, market, complexity, urgency float64) domain.Opportunity {
	return domain.Opportunity{
		ID:              "opp-1",
		Topic:           "AI Regulation",
		Cost:            dec(cost),
		ExpectedRevenue: dec(revenue),
		DurationDays:    days,
		MarketRisk:      market,
		Complexity:      complexity,
		Urgency:         urgency,
	}
}

func TestROICalculation(t *testing.T) {
	a := AnalyzeOpportunity(opp("100", "250", 5, 0, 0, 0))
	assert.InDelta(t, 150.0, a.ROIPercent, 1e-9)
	assert.InDelta(t, 30.0, a.DailyROIPercent, 1e-9)
}

func TestZeroCostYieldsZeroROI(t *testing.T) {
	a := AnalyzeOpportunity(opp("0", "500", 5, 0, 0, 0))
	assert.Zero(t, a.ROIPercent)
}

func TestZeroDurationGuard(t *testing.T) {
	a := AnalyzeOpportunity(opp("100", "200", 0, 0, 0, 0))
	assert.Zero(t, a.DailyROIPercent)
}

func TestRiskLevelBucketsUpperBoundExclusive(t *testing.T) {
	cases := []struct {
		score float64
		level domain.RiskLevel
	}{
		{0.0, domain.RiskVeryLow},
		{0.19, domain.RiskVeryLow},
		{0.2, domain.RiskLow}, // boundary belongs to the higher bucket
		{0.39, domain.RiskLow},
		{0.4, domain.RiskMedium},
		{0.6, domain.RiskHigh},
		{0.8, domain.RiskVeryHigh},
		{1.0, domain.RiskVeryHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, LevelFromScore(tc.score), "score %v", tc.score)
	}
}

func TestResourceRequirementsFactorCapped(t *testing.T) {
	a := AnalyzeOpportunity(opp("5000", "6000", 1, 0, 0, 0))
	assert.InDelta(t, 0.5, a.Factors.ResourceRequirements, 1e-9)

	a = AnalyzeOpportunity(opp("50000", "60000", 1, 0, 0, 0))
	assert.InDelta(t, 1.0, a.Factors.ResourceRequirements, 1e-9)
}

func TestRecommendationLadder(t *testing.T) {
	// roi 150, all factors zero except a tiny resource load: very_low risk
	a := AnalyzeOpportunity(opp("100", "250", 5, 0, 0, 0))
	assert.Equal(t, domain.RecommendStrongBuy, a.Recommendation)

	// roi 25 at medium risk: buy
	a = AnalyzeOpportunity(opp("100", "125", 5, 0.55, 0.55, 0.55))
	require.Equal(t, domain.RiskMedium, a.RiskLevel)
	assert.Equal(t, domain.RecommendBuy, a.Recommendation)

	// roi 15 at low risk: hold
	a = AnalyzeOpportunity(opp("100", "115", 5, 0.3, 0.3, 0.3))
	require.Equal(t, domain.RiskLow, a.RiskLevel)
	assert.Equal(t, domain.RecommendHold, a.Recommendation)

	// strong roi but very high risk: avoid
	a = AnalyzeOpportunity(opp("3000", "9000", 5, 1, 1, 1))
	require.Equal(t, domain.RiskVeryHigh, a.RiskLevel)
	assert.Equal(t, domain.RecommendAvoid, a.Recommendation)
}

func TestConfidenceAdjustmentsAndClamp(t *testing.T) {
	// roi 150 (+0.2), very_low (+0.2): 1.1 clamps to 0.95
	a := AnalyzeOpportunity(opp("100", "250", 5, 0, 0, 0))
	assert.InDelta(t, 0.95, a.Confidence, 1e-9)

	// roi 0 (-0.2), very_high (-0.2): 0.3
	a = AnalyzeOpportunity(opp("3000", "3000", 5, 1, 1, 1))
	require.Equal(t, domain.RiskVeryHigh, a.RiskLevel)
	assert.InDelta(t, 0.3, a.Confidence, 1e-9)

	// roi 25 (no adj), medium (no adj): base 0.7
	a = AnalyzeOpportunity(opp("100", "125", 5, 0.55, 0.55, 0.55))
	require.Equal(t, domain.RiskMedium, a.RiskLevel)
	assert.InDelta(t, 0.7, a.Confidence, 1e-9)
}

func TestMitigationsFireIndependently(t *testing.T) {
	// Only market volatility above its trigger
	a := AnalyzeOpportunity(opp("100", "120", 5, 0.5, 0.1, 0.1))
	require.Len(t, a.Mitigations, 1)
	assert.Contains(t, a.Mitigations[0], "hedge market exposure")

	// All four triggers
	a = AnalyzeOpportunity(opp("9000", "12000", 5, 0.9, 0.9, 0.9))
	assert.Len(t, a.Mitigations, 4)

	// None
	a = AnalyzeOpportunity(opp("100", "120", 5, 0.1, 0.1, 0.1))
	assert.Empty(t, a.Mitigations)
}

func TestMaxExposureOrdering(t *testing.T) {
	levels := []domain.RiskLevel{
		domain.RiskVeryLow,
		domain.RiskLow,
		domain.RiskMedium,
		domain.RiskHigh,
		domain.RiskVeryHigh,
	}
	for i := 1; i < len(levels); i++ {
		assert.True(t, MaxExposure(levels[i]).LessThan(MaxExposure(levels[i-1])),
			"exposure ceiling must shrink as risk grows")
	}
}

func TestAnalysisIsDeterministic(t *testing.T) {
	input := opp("1234.56", "2500", 7, 0.42, 0.33, 0.21)
	first := AnalyzeOpportunity(input)
	for i := 0; i < 10; i++ {
		again := AnalyzeOpportunity(input)
		assert.Equal(t, first.RiskLevel, again.RiskLevel)
		assert.Equal(t, first.Recommendation, again.Recommendation)
		assert.Equal(t, first.Confidence, again.Confidence)
		assert.Equal(t, first.RiskScore, again.RiskScore)
	}
}
