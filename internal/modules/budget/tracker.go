// Package budget tracks per-agent spend allocations and category buckets.
package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aretelabs/custodian/internal/domain"
	"github.com/aretelabs/custodian/internal/events"
)

// Budget is a per-agent allocation for an active period.
// Invariant: Spent + Remaining == TotalAllocation, Remaining never negative.
type Budget struct {
	AgentID         string                                   `json:"agent_id"`
	TotalAllocation decimal.Decimal                          `json:"total_allocation"`
	Spent           decimal.Decimal                          `json:"spent"`
	PeriodStart     time.Time                                `json:"period_start"`
	PeriodEnd       time.Time                                `json:"period_end"`
	Categories      map[domain.SpendCategory]decimal.Decimal `json:"categories"`
}

// Remaining returns the unspent allocation
func (b *Budget) Remaining() decimal.Decimal {
	return b.TotalAllocation.Sub(b.Spent)
}

// Tracker manages budgets for all agents. Mutation is serialized per agent
// so unrelated agents never block each other.
type Tracker struct {
	mu       sync.RWMutex
	budgets  map[string]*agentBudget
	eventBus *events.Bus
	log      zerolog.Logger
}

type agentBudget struct {
	mu     sync.Mutex
	budget Budget
}

// NewTracker creates a budget tracker
func NewTracker(eventBus *events.Bus, log zerolog.Logger) *Tracker {
	return &Tracker{
		budgets:  make(map[string]*agentBudget),
		eventBus: eventBus,
		log:      log.With().Str("service", "budget").Logger(),
	}
}

// Allocate creates a budget for an agent over [start, end).
// An existing budget for the agent is replaced.
func (t *Tracker) Allocate(agentID string, total decimal.Decimal, start, end time.Time) error {
	if !total.IsPositive() {
		return fmt.Errorf("budget allocation for %s must be positive, got %s", agentID, total)
	}
	if !end.After(start) {
		return fmt.Errorf("budget period for %s must end after it starts", agentID)
	}

	categories := make(map[domain.SpendCategory]decimal.Decimal, len(domain.AllCategories()))
	for _, cat := range domain.AllCategories() {
		categories[cat] = decimal.Zero
	}

	t.mu.Lock()
	t.budgets[agentID] = &agentBudget{
		budget: Budget{
			AgentID:         agentID,
			TotalAllocation: total,
			Spent:           decimal.Zero,
			PeriodStart:     start,
			PeriodEnd:       end,
			Categories:      categories,
		},
	}
	t.mu.Unlock()

	t.log.Info().
		Str("agent_id", agentID).
		Str("total", total.String()).
		Msg("Budget allocated")

	return nil
}

// Get returns a copy of the agent's budget
func (t *Tracker) Get(agentID string) (Budget, error) {
	ab, err := t.lookup(agentID)
	if err != nil {
		return Budget{}, err
	}

	ab.mu.Lock()
	defer ab.mu.Unlock()
	return copyBudget(ab.budget), nil
}

// Remaining returns the unspent allocation for an agent
func (t *Tracker) Remaining(agentID string) (decimal.Decimal, error) {
	b, err := t.Get(agentID)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Remaining(), nil
}

// Affordable reports whether a cost fits in the agent's remaining budget
func (t *Tracker) Affordable(agentID string, cost decimal.Decimal) (bool, error) {
	remaining, err := t.Remaining(agentID)
	if err != nil {
		return false, err
	}
	return cost.LessThanOrEqual(remaining), nil
}

// ApplySpend records a confirmed spend against the budget and its category
// bucket. Called only after a transaction is confirmed executed. Returns
// *domain.BudgetExceededError if the spend would drive remaining negative.
func (t *Tracker) ApplySpend(agentID string, category domain.SpendCategory, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("spend amount must be positive, got %s", amount)
	}

	ab, err := t.lookup(agentID)
	if err != nil {
		return err
	}

	ab.mu.Lock()

	remaining := ab.budget.Remaining()
	if amount.GreaterThan(remaining) {
		ab.mu.Unlock()
		return &domain.BudgetExceededError{
			AgentID:   agentID,
			Requested: amount,
			Remaining: remaining,
		}
	}

	ab.budget.Spent = ab.budget.Spent.Add(amount)
	ab.budget.Categories[category] = ab.budget.Categories[category].Add(amount)

	data := &events.BudgetUpdatedData{
		AgentID:   agentID,
		Category:  string(category),
		Spent:     ab.budget.Spent.String(),
		Remaining: ab.budget.Remaining().String(),
	}
	// Emit outside the critical section so subscribers may read the
	// tracker without deadlocking.
	ab.mu.Unlock()

	t.eventBus.Emit("budget", data)

	return nil
}

func (t *Tracker) lookup(agentID string) (*agentBudget, error) {
	t.mu.RLock()
	ab, ok := t.budgets[agentID]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no budget allocated for agent %s", agentID)
	}
	return ab, nil
}

func copyBudget(b Budget) Budget {
	categories := make(map[domain.SpendCategory]decimal.Decimal, len(b.Categories))
	for cat, spent := range b.Categories {
		categories[cat] = spent
	}
	b.Categories = categories
	return b
}
