// Package ledger provides wallet bookkeeping and the append-only
// transaction trail.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aretelabs/custodian/internal/domain"
)

// Annotation carries the audit fields stored alongside a transaction
type Annotation struct {
	ReasoningHash string
	Justification string
	Signature     string
}

// Entry is a persisted transaction together with its audit annotation
type Entry struct {
	Transaction domain.Transaction
	Annotation  Annotation
}

// Repository handles transaction persistence in ledger.db.
// The trail is append-only: rows are inserted once and only the
// actual_revenue column is ever updated afterwards.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// transactionColumns is the list of columns for the transactions table.
// Column order must match scanEntry().
const transactionColumns = `id, agent_id, amount, currency, recipient, purpose, category, status, risk_level, settlement_hash, actual_revenue, reasoning_hash, justification, signature, created_at`

// NewRepository creates a new transaction repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// Insert appends a transaction to the trail
func (r *Repository) Insert(tx domain.Transaction, ann Annotation) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	query := `
		INSERT INTO transactions
		(id, agent_id, amount, currency, recipient, purpose, category, status, risk_level,
		 settlement_hash, actual_revenue, reasoning_hash, justification, signature, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var revenue any
	if tx.ActualRevenue != nil {
		revenue = tx.ActualRevenue.String()
	}

	// Every trail entry carries a currency; USDC unless stated otherwise
	currency := tx.Currency
	if currency == "" {
		currency = domain.CurrencyUSDC
	}

	_, err := r.db.Exec(query,
		tx.ID,
		tx.AgentID,
		tx.Amount.String(),
		string(currency),
		tx.Recipient,
		tx.Purpose,
		string(tx.Category),
		string(tx.Status),
		string(tx.RiskLevel),
		nullString(tx.SettlementHash),
		revenue,
		nullString(ann.ReasoningHash),
		nullString(ann.Justification),
		nullString(ann.Signature),
		tx.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
	}

	r.log.Info().
		Str("transaction_id", tx.ID).
		Str("agent_id", tx.AgentID).
		Str("amount", tx.Amount.String()).
		Str("status", string(tx.Status)).
		Msg("Transaction recorded")

	return nil
}

// GetByID retrieves a transaction by identifier. Returns nil when absent.
func (r *Repository) GetByID(id string) (*Entry, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE id = ?"

	entry, err := scanEntry(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by id: %w", err)
	}

	return &entry, nil
}

// History retrieves an agent's transactions with timestamp at or after
// cutoff, ordered oldest to newest.
func (r *Repository) History(agentID string, cutoff time.Time) ([]domain.Transaction, error) {
	query := "SELECT " + transactionColumns + ` FROM transactions
		WHERE agent_id = ? AND created_at >= ?
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(query, agentID, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, entry.Transaction)
	}

	return txs, rows.Err()
}

// EntriesInRange retrieves all entries in [start, end), oldest first.
// Used by the audit exporter and P&L reports.
func (r *Repository) EntriesInRange(start, end time.Time) ([]Entry, error) {
	query := "SELECT " + transactionColumns + ` FROM transactions
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(query, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// UpdateRevenue sets the actual revenue on an executed transaction.
// The only mutation ever applied to a persisted row.
func (r *Repository) UpdateRevenue(id string, revenue decimal.Decimal) error {
	result, err := r.db.Exec(
		"UPDATE transactions SET actual_revenue = ? WHERE id = ? AND status = ?",
		revenue.String(), id, string(domain.StatusExecuted),
	)
	if err != nil {
		return fmt.Errorf("failed to update revenue for %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revenue update for %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("no executed transaction %s to record revenue against", id)
	}

	return nil
}

// rowScanner matches both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry          Entry
		amount         string
		currency       string
		category       string
		status         string
		riskLevel      string
		settlementHash sql.NullString
		actualRevenue  sql.NullString
		reasoningHash  sql.NullString
		justification  sql.NullString
		signature      sql.NullString
		createdAt      int64
	)

	err := row.Scan(
		&entry.Transaction.ID,
		&entry.Transaction.AgentID,
		&amount,
		&currency,
		&entry.Transaction.Recipient,
		&entry.Transaction.Purpose,
		&category,
		&status,
		&riskLevel,
		&settlementHash,
		&actualRevenue,
		&reasoningHash,
		&justification,
		&signature,
		&createdAt,
	)
	if err != nil {
		return Entry{}, err
	}

	entry.Transaction.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return Entry{}, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	if actualRevenue.Valid {
		revenue, err := decimal.NewFromString(actualRevenue.String)
		if err != nil {
			return Entry{}, fmt.Errorf("corrupt actual_revenue %q: %w", actualRevenue.String, err)
		}
		entry.Transaction.ActualRevenue = &revenue
	}

	entry.Transaction.Currency = domain.Currency(currency)
	entry.Transaction.Category = domain.SpendCategory(category)
	entry.Transaction.Status = domain.TransactionStatus(status)
	entry.Transaction.RiskLevel = domain.RiskLevel(riskLevel)
	entry.Transaction.SettlementHash = settlementHash.String
	entry.Transaction.CreatedAt = time.Unix(createdAt, 0).UTC()
	entry.Annotation.ReasoningHash = reasoningHash.String
	entry.Annotation.Justification = justification.String
	entry.Annotation.Signature = signature.String

	return entry, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
