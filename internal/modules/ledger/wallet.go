package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aretelabs/custodian/internal/domain"
	"github.com/aretelabs/custodian/internal/events"
	"github.com/aretelabs/custodian/internal/modules/budget"
)

// Wallet is a point-in-time snapshot of an agent's funds.
// Invariant: Locked <= Balance; Spendable = Balance - Locked >= 0.
type Wallet struct {
	AgentID   string          `json:"agent_id"`
	Balance   decimal.Decimal `json:"balance"`
	Locked    decimal.Decimal `json:"locked"`
	Spendable decimal.Decimal `json:"spendable"`
}

// walletState is the live record. The mutex serializes all mutations for
// one agent; wallets of different agents never contend.
type walletState struct {
	mu      sync.Mutex
	balance decimal.Decimal
	locked  decimal.Decimal
}

// Service manages wallets and records executed transactions.
//
// Responsibilities:
//   - Atomic lock/unlock of reserved funds relative to balance checks
//   - The executed-transaction commit: wallet debit, budget spend and
//     trail append as one unit
//   - Revenue recording and history queries
type Service struct {
	mu       sync.RWMutex
	wallets  map[string]*walletState
	repo     *Repository
	budgets  *budget.Tracker
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewService creates a wallet/ledger service
func NewService(repo *Repository, budgets *budget.Tracker, eventBus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		wallets:  make(map[string]*walletState),
		repo:     repo,
		budgets:  budgets,
		eventBus: eventBus,
		log:      log.With().Str("service", "ledger").Logger(),
	}
}

// CreateWallet registers a wallet with an opening balance
func (s *Service) CreateWallet(agentID string, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("opening balance for %s must not be negative, got %s", agentID, balance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[agentID]; exists {
		return fmt.Errorf("wallet for agent %s already exists", agentID)
	}

	s.wallets[agentID] = &walletState{balance: balance, locked: decimal.Zero}

	s.log.Info().
		Str("agent_id", agentID).
		Str("balance", balance.String()).
		Msg("Wallet created")

	return nil
}

// Wallet returns a snapshot of the agent's funds
func (s *Service) Wallet(agentID string) (Wallet, error) {
	w, err := s.lookup(agentID)
	if err != nil {
		return Wallet{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return Wallet{
		AgentID:   agentID,
		Balance:   w.balance,
		Locked:    w.locked,
		Spendable: w.balance.Sub(w.locked),
	}, nil
}

// LockFunds reserves funds for an imminent spend. The spendable check and
// the lock increment are a single critical section per agent, so two
// concurrent locks whose sum exceeds spendable balance can never both
// succeed. Returns *domain.InsufficientFundsError when the amount does not
// fit.
func (s *Service) LockFunds(agentID string, amount decimal.Decimal, purpose string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("lock amount must be positive, got %s", amount)
	}

	w, err := s.lookup(agentID)
	if err != nil {
		return err
	}

	w.mu.Lock()

	spendable := w.balance.Sub(w.locked)
	if amount.GreaterThan(spendable) {
		w.mu.Unlock()
		return &domain.InsufficientFundsError{
			AgentID:   agentID,
			Requested: amount,
			Spendable: spendable,
		}
	}

	w.locked = w.locked.Add(amount)

	// Emit outside the critical section so subscribers may read the
	// wallet without deadlocking.
	w.mu.Unlock()

	s.eventBus.Emit("ledger", &events.FundsLockedData{
		AgentID: agentID,
		Amount:  amount.String(),
		Purpose: purpose,
	})

	return nil
}

// UnlockFunds releases reserved funds. The lock amount is floored at zero;
// unlocking more than is locked is a no-op beyond the floor, so repeated
// unlocks are harmless.
func (s *Service) UnlockFunds(agentID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("unlock amount must not be negative, got %s", amount)
	}

	w, err := s.lookup(agentID)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.locked = w.locked.Sub(amount)
	if w.locked.IsNegative() {
		w.locked = decimal.Zero
	}
	w.mu.Unlock()

	s.eventBus.Emit("ledger", &events.FundsUnlockedData{
		AgentID: agentID,
		Amount:  amount.String(),
	})

	return nil
}

// RecordTransaction commits a transaction's financial effects. For an
// executed transaction this debits the balance, clears the matching locked
// amount, applies the spend to the agent's budget and category bucket, and
// appends to the trail - one atomic unit under the wallet lock. Failed or
// cancelled transactions are appended to the trail without wallet or
// budget effects.
func (s *Service) RecordTransaction(tx domain.Transaction, ann Annotation) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	if tx.Status != domain.StatusExecuted {
		return s.repo.Insert(tx, ann)
	}

	w, err := s.lookup(tx.AgentID)
	if err != nil {
		return err
	}

	w.mu.Lock()

	if tx.Amount.GreaterThan(w.balance) {
		w.mu.Unlock()
		return &domain.InsufficientFundsError{
			AgentID:   tx.AgentID,
			Requested: tx.Amount,
			Spendable: w.balance.Sub(w.locked),
		}
	}

	// Budget first: if the spend no longer fits the allocation the wallet
	// must stay untouched.
	if err := s.budgets.ApplySpend(tx.AgentID, tx.Category, tx.Amount); err != nil {
		w.mu.Unlock()
		return err
	}

	w.balance = w.balance.Sub(tx.Amount)
	w.locked = w.locked.Sub(tx.Amount)
	if w.locked.IsNegative() {
		w.locked = decimal.Zero
	}

	if err := s.repo.Insert(tx, ann); err != nil {
		w.mu.Unlock()
		// Funds already moved; surface the persistence failure loudly.
		s.log.Error().Err(err).
			Str("transaction_id", tx.ID).
			Msg("Failed to append executed transaction to trail")
		return err
	}

	// Emit outside the critical section so subscribers may read the
	// wallet without deadlocking.
	w.mu.Unlock()

	s.eventBus.Emit("ledger", &events.TransactionExecutedData{
		TransactionID:  tx.ID,
		AgentID:        tx.AgentID,
		Amount:         tx.Amount.String(),
		Category:       string(tx.Category),
		Recipient:      tx.Recipient,
		SettlementHash: tx.SettlementHash,
	})

	return nil
}

// RecordRevenue sets the actual revenue realized from an executed
// transaction. Realized ROI stays absent until this is called.
func (s *Service) RecordRevenue(txID string, revenue decimal.Decimal) error {
	if revenue.IsNegative() {
		return fmt.Errorf("revenue must not be negative, got %s", revenue)
	}

	if err := s.repo.UpdateRevenue(txID, revenue); err != nil {
		return err
	}

	entry, err := s.repo.GetByID(txID)
	if err != nil {
		return err
	}

	data := &events.RevenueRecordedData{
		TransactionID: txID,
		Revenue:       revenue.String(),
	}
	if roi, ok := entry.Transaction.RealizedROI(); ok {
		data.RealizedROI = &roi
	}
	s.eventBus.Emit("ledger", data)

	return nil
}

// History returns the agent's transactions inside the trailing window,
// ordered oldest to newest.
func (s *Service) History(agentID string, since time.Duration) ([]domain.Transaction, error) {
	return s.repo.History(agentID, time.Now().Add(-since))
}

func (s *Service) lookup(agentID string) (*walletState, error) {
	s.mu.RLock()
	w, ok := s.wallets[agentID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no wallet for agent %s", agentID)
	}
	return w, nil
}
