package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretelabs/custodian/internal/database"
	"github.com/aretelabs/custodian/internal/domain"
	"github.com/aretelabs/custodian/internal/events"
	"github.com/aretelabs/custodian/internal/modules/audit"
	"github.com/aretelabs/custodian/internal/modules/budget"
	"github.com/aretelabs/custodian/internal/modules/commerce"
	"github.com/aretelabs/custodian/internal/modules/governance"
	"github.com/aretelabs/custodian/internal/modules/ledger"
	"github.com/aretelabs/custodian/internal/modules/risk"
)

func setupRouter(t *testing.T) (*chi.Mux, *governance.KillSwitch) {
	t.Helper()

	log := zerolog.Nop()
	bus := events.NewBus(log)

	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	db.Conn().SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	budgets := budget.NewTracker(bus, log)
	require.NoError(t, budgets.Allocate("agent-1", decimal.NewFromInt(1000),
		time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour)))

	wallets := ledger.NewService(ledger.NewRepository(db.Conn(), log), budgets, bus, log)
	require.NoError(t, wallets.CreateWallet("agent-1", decimal.NewFromInt(1000)))

	policy := risk.NewPolicy(risk.PolicyConfig{
		CategoryLimits: map[domain.SpendCategory]decimal.Decimal{
			domain.CategoryCompute: decimal.NewFromInt(500),
		},
		DailyCeiling: decimal.NewFromInt(800),
		RiskCutoff:   0.8,
	}, log)

	signer, err := audit.NewSigner("test-key")
	require.NoError(t, err)

	killSwitch := governance.NewKillSwitch(bus, log)
	svc := commerce.NewService(commerce.Config{}, killSwitch, wallets, budgets, policy,
		signer, commerce.NewMockChainClient(decimal.NewFromInt(100000)), bus, log)

	r := chi.NewRouter()
	NewCommerceHandlers(svc, log).RegisterRoutes(r)
	return r, killSwitch
}

func TestHandleExecuteSuccess(t *testing.T) {
	router, _ := setupRouter(t)

	body := `{"agent_id":"agent-1","amount":"100","recipient":"0xvendor","purpose":"gpu batch"}`
	req := httptest.NewRequest(http.MethodPost, "/commerce/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result commerce.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.TransactionID)
	assert.Contains(t, result.SettlementHash, "0x")
}

func TestHandleExecuteRejection(t *testing.T) {
	router, _ := setupRouter(t)

	// 600 against the 500 compute ceiling
	body := `{"agent_id":"agent-1","amount":"600","recipient":"0xvendor","purpose":"gpu batch"}`
	req := httptest.NewRequest(http.MethodPost, "/commerce/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var result commerce.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Reason, "ceiling exceeded")
}

func TestHandleExecuteWhileHalted(t *testing.T) {
	router, killSwitch := setupRouter(t)
	_ = killSwitch.TriggerHalt(domain.PanicMarketCrash, "flash crash")

	body := `{"agent_id":"agent-1","amount":"100","recipient":"0xvendor","purpose":"gpu batch"}`
	req := httptest.NewRequest(http.MethodPost, "/commerce/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "system_halted", payload["error"])
	assert.Equal(t, "market_crash", payload["reason"])
}

func TestHandleEvaluate(t *testing.T) {
	router, _ := setupRouter(t)

	body := `{
		"agent_id": "agent-1",
		"opportunity": {
			"id": "opp-1",
			"topic": "AI Regulation",
			"cost": "100",
			"expected_revenue": "250",
			"duration_days": 5,
			"market_risk": 0.1,
			"complexity": 0.1,
			"urgency": 0.1
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/commerce/evaluate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var decision commerce.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.True(t, decision.Proceed)
	assert.Equal(t, domain.RecommendStrongBuy, decision.Analysis.Recommendation)
}

func TestHandleExecuteBadAmount(t *testing.T) {
	router, _ := setupRouter(t)

	body := `{"agent_id":"agent-1","amount":"lots","recipient":"0xvendor","purpose":"gpu batch"}`
	req := httptest.NewRequest(http.MethodPost, "/commerce/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
