package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealizedROI(t *testing.T) {
	revenue := decimal.NewFromInt(25)
	tx := Transaction{
		ID:            "tx-1",
		AgentID:       "agent-1",
		Amount:        decimal.NewFromInt(10),
		ActualRevenue: &revenue,
	}

	roi, ok := tx.RealizedROI()
	require.True(t, ok)
	assert.InDelta(t, 1.5, roi, 1e-9)
}

func TestRealizedROIAbsentUntilRevenueKnown(t *testing.T) {
	tx := Transaction{
		ID:      "tx-1",
		AgentID: "agent-1",
		Amount:  decimal.NewFromInt(10),
	}

	_, ok := tx.RealizedROI()
	assert.False(t, ok)
}

func TestRealizedROINegative(t *testing.T) {
	revenue := decimal.NewFromInt(4)
	tx := Transaction{
		Amount:        decimal.NewFromInt(10),
		ActualRevenue: &revenue,
	}

	roi, ok := tx.RealizedROI()
	require.True(t, ok)
	assert.InDelta(t, -0.6, roi, 1e-9)
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		wantErr bool
	}{
		{
			name: "valid",
			tx: Transaction{
				ID:      "tx-1",
				AgentID: "agent-1",
				Amount:  decimal.NewFromInt(100),
			},
		},
		{
			name:    "missing id",
			tx:      Transaction{AgentID: "agent-1", Amount: decimal.NewFromInt(100)},
			wantErr: true,
		},
		{
			name:    "missing agent",
			tx:      Transaction{ID: "tx-1", Amount: decimal.NewFromInt(100)},
			wantErr: true,
		},
		{
			name:    "zero amount",
			tx:      Transaction{ID: "tx-1", AgentID: "agent-1", Amount: decimal.Zero},
			wantErr: true,
		},
		{
			name: "negative amount",
			tx: Transaction{
				ID: "tx-1", AgentID: "agent-1", Amount: decimal.NewFromInt(-5),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, status := range []TransactionStatus{StatusExecuted, StatusFailed} {
		tx := Transaction{Status: status}
		assert.True(t, tx.Terminal(), string(status))
	}
	for _, status := range []TransactionStatus{StatusPending, StatusApproved, StatusCancelled} {
		tx := Transaction{Status: status}
		assert.False(t, tx.Terminal(), string(status))
	}
}

func TestRiskFactorsScoreIsMean(t *testing.T) {
	f := RiskFactors{
		MarketVolatility:     0.2,
		ExecutionComplexity:  0.4,
		TimeSensitivity:      0.6,
		ResourceRequirements: 0.8,
	}
	assert.InDelta(t, 0.5, f.Score(), 1e-9)
}
