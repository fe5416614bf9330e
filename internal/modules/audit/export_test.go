package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretelabs/custodian/internal/database"
	"github.com/aretelabs/custodian/internal/domain"
	"github.com/aretelabs/custodian/internal/modules/ledger"
)

func newTestRepo(t *testing.T) *ledger.Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	db.Conn().SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	return ledger.NewRepository(db.Conn(), zerolog.Nop())
}

func insertExecuted(t *testing.T, repo *ledger.Repository, amount string, at time.Time) domain.Transaction {
	t.Helper()

	amt, err := decimal.NewFromString(amount)
	require.NoError(t, err)

	tx := domain.Transaction{
		ID:        uuid.New().String(),
		AgentID:   "agent-1",
		Amount:    amt,
		Recipient: "0xvendor",
		Purpose:   "gpu batch",
		Category:  domain.CategoryCompute,
		Status:    domain.StatusExecuted,
		RiskLevel: domain.RiskLow,
		CreatedAt: at,
	}
	ctx := ReasoningContext{
		ProjectedROI:  30,
		Confidence:    0.8,
		Justification: "compute for trend batch",
		AgentID:       tx.AgentID,
	}
	require.NoError(t, repo.Insert(tx, ledger.Annotation{
		ReasoningHash: ctx.Hash(),
		Justification: ctx.Justification,
	}))
	return tx
}

func TestExportFlatRecord(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, zerolog.Nop())

	tx := insertExecuted(t, repo, "50", time.Now().UTC())
	require.NoError(t, repo.UpdateRevenue(tx.ID, decimal.NewFromInt(125)))

	record, err := svc.Export(tx.ID)
	require.NoError(t, err)

	assert.Equal(t, tx.ID, record.TransactionID)
	assert.Equal(t, "50", record.Amount)
	assert.Equal(t, "USDC", record.Currency)
	assert.Equal(t, "compute", record.Category)
	assert.Equal(t, "compute for trend batch", record.Justification)
	assert.Len(t, record.ReasoningHash, 64)
	require.NotNil(t, record.RealizedROI)
	assert.InDelta(t, 1.5, *record.RealizedROI, 1e-9)
}

func TestExportedHashReVerifies(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, zerolog.Nop())

	tx := insertExecuted(t, repo, "50", time.Now().UTC())

	record, err := svc.Export(tx.ID)
	require.NoError(t, err)

	// An auditor rebuilding the context from the record can re-verify
	rebuilt := ReasoningContext{
		ProjectedROI:  30,
		Confidence:    0.8,
		Justification: record.Justification,
		AgentID:       record.AgentID,
	}
	assert.True(t, rebuilt.Verify(record.ReasoningHash))

	rebuilt.Justification = "something else entirely"
	assert.False(t, rebuilt.Verify(record.ReasoningHash))
}

func TestExportUnknownTransaction(t *testing.T) {
	svc := NewService(newTestRepo(t), zerolog.Nop())

	_, err := svc.Export("missing")
	assert.Error(t, err)
}

func TestReportAggregates(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, zerolog.Nop())

	now := time.Now().UTC()
	a := insertExecuted(t, repo, "100", now.Add(-2*time.Hour))
	b := insertExecuted(t, repo, "40", now.Add(-1*time.Hour))
	require.NoError(t, repo.UpdateRevenue(a.ID, decimal.NewFromInt(250)))

	report, err := svc.Report(now.Add(-24*time.Hour), now)
	require.NoError(t, err)

	assert.Len(t, report.Transactions, 2)
	assert.True(t, decimal.NewFromInt(140).Equal(report.TotalSpend), "spend %s", report.TotalSpend)
	assert.True(t, decimal.NewFromInt(250).Equal(report.TotalRevenue))
	assert.True(t, decimal.NewFromInt(110).Equal(report.NetProfit))
	// Only a has recorded revenue: ROI (250-100)/100
	assert.InDelta(t, 1.5, report.AverageROI, 1e-9)
	_ = b
}

func TestReportRespectsWindow(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, zerolog.Nop())

	now := time.Now().UTC()
	insertExecuted(t, repo, "100", now.Add(-48*time.Hour))
	inWindow := insertExecuted(t, repo, "40", now.Add(-1*time.Hour))

	report, err := svc.Report(now.Add(-24*time.Hour), now)
	require.NoError(t, err)

	require.Len(t, report.Transactions, 1)
	assert.Equal(t, inWindow.ID, report.Transactions[0].TransactionID)
}
