package commerce

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// TransferResult is the outcome of a settlement transfer
type TransferResult struct {
	TxHash     string          `json:"tx_hash"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Status     string          `json:"status"`
}

// Settlement is the external transfer collaborator. The orchestrator
// treats it as a single opaque call per transaction: no automatic retry,
// so a flaky settlement can never double-spend. Callers re-submit
// deliberately.
type Settlement interface {
	Transfer(ctx context.Context, recipient string, amount decimal.Decimal) (TransferResult, error)
}

// MockChainClient simulates an on-chain settlement backend. Transfers
// succeed against a simulated treasury balance and produce a
// deterministic-looking transaction hash.
type MockChainClient struct {
	mu      sync.Mutex
	balance decimal.Decimal
	nonce   uint64
	failNext error
}

// NewMockChainClient creates a mock settlement backend with the given
// treasury balance
func NewMockChainClient(balance decimal.Decimal) *MockChainClient {
	return &MockChainClient{balance: balance}
}

// FailNext makes the next Transfer call return err instead of settling.
// Test hook for exercising the unlock-on-failure path.
func (c *MockChainClient) FailNext(err error) {
	c.mu.Lock()
	c.failNext = err
	c.mu.Unlock()
}

// Transfer simulates an on-chain transfer
func (c *MockChainClient) Transfer(ctx context.Context, recipient string, amount decimal.Decimal) (TransferResult, error) {
	if err := ctx.Err(); err != nil {
		return TransferResult{}, err
	}
	if !amount.IsPositive() {
		return TransferResult{}, fmt.Errorf("transfer amount must be positive, got %s", amount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return TransferResult{}, err
	}
	if amount.GreaterThan(c.balance) {
		return TransferResult{}, fmt.Errorf("treasury balance %s below transfer amount %s", c.balance, amount)
	}

	c.nonce++
	c.balance = c.balance.Sub(amount)

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", recipient, amount, c.nonce, time.Now().UnixNano())))
	return TransferResult{
		TxHash:     "0x" + hex.EncodeToString(sum[:]),
		NewBalance: c.balance,
		Status:     "confirmed",
	}, nil
}
