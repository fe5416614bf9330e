package audit

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aretelabs/custodian/internal/modules/ledger"
)

// ExportRecord is the flat audit export for one executed transaction.
// Everything an external reviewer needs to re-verify the justification.
type ExportRecord struct {
	TransactionID string   `json:"transaction_id"`
	AgentID       string   `json:"agent_id"`
	Amount        string   `json:"amount"`
	Currency      string   `json:"currency"`
	Category      string   `json:"category"`
	RealizedROI   *float64 `json:"realized_roi,omitempty"`
	Justification string   `json:"justification"`
	ReasoningHash string   `json:"reasoning_hash"`
	Signature     string   `json:"signature,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

// PLReport aggregates spend, revenue and realized ROI over a period
type PLReport struct {
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
	TotalSpend   decimal.Decimal `json:"total_spend"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	AverageROI   float64         `json:"average_roi"`
	Transactions []ExportRecord  `json:"transactions"`
}

// Service reads the ledger trail and produces audit exports
type Service struct {
	repo *ledger.Repository
	log  zerolog.Logger
}

// NewService creates an audit export service
func NewService(repo *ledger.Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "audit").Logger(),
	}
}

// Export returns the flat audit record for a single transaction
func (s *Service) Export(txID string) (*ExportRecord, error) {
	entry, err := s.repo.GetByID(txID)
	if err != nil {
		return nil, fmt.Errorf("loading transaction %s: %w", txID, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("transaction %s not found", txID)
	}
	record := exportEntry(*entry)
	return &record, nil
}

// Report builds a P&L report over [start, end). Spend counts only executed
// transactions; ROI averages over transactions with recorded revenue.
func (s *Service) Report(start, end time.Time) (*PLReport, error) {
	entries, err := s.repo.EntriesInRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("loading ledger entries: %w", err)
	}

	report := &PLReport{
		PeriodStart:  start,
		PeriodEnd:    end,
		TotalSpend:   decimal.Zero,
		TotalRevenue: decimal.Zero,
		Transactions: make([]ExportRecord, 0, len(entries)),
	}

	roiSum := 0.0
	roiCount := 0
	for _, entry := range entries {
		report.Transactions = append(report.Transactions, exportEntry(entry))
		report.TotalSpend = report.TotalSpend.Add(entry.Transaction.Amount)
		if entry.Transaction.ActualRevenue != nil {
			report.TotalRevenue = report.TotalRevenue.Add(*entry.Transaction.ActualRevenue)
		}
		if roi, ok := entry.Transaction.RealizedROI(); ok {
			roiSum += roi
			roiCount++
		}
	}
	report.NetProfit = report.TotalRevenue.Sub(report.TotalSpend)
	if roiCount > 0 {
		report.AverageROI = roiSum / float64(roiCount)
	}

	s.log.Info().
		Int("transactions", len(entries)).
		Str("net_profit", report.NetProfit.String()).
		Msg("P&L report generated")

	return report, nil
}

func exportEntry(entry ledger.Entry) ExportRecord {
	record := ExportRecord{
		TransactionID: entry.Transaction.ID,
		AgentID:       entry.Transaction.AgentID,
		Amount:        entry.Transaction.Amount.String(),
		Currency:      string(entry.Transaction.Currency),
		Category:      string(entry.Transaction.Category),
		Justification: entry.Annotation.Justification,
		ReasoningHash: entry.Annotation.ReasoningHash,
		Signature:     entry.Annotation.Signature,
		CreatedAt:     entry.Transaction.CreatedAt.UTC().Format(time.RFC3339),
	}
	if roi, ok := entry.Transaction.RealizedROI(); ok {
		record.RealizedROI = &roi
	}
	return record
}
