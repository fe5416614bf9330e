package governance

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretelabs/custodian/internal/domain"
	"github.com/aretelabs/custodian/internal/events"
)

func newMonitor(t *testing.T, spendSpike float64) (*Monitor, *KillSwitch) {
	t.Helper()
	bus := events.NewBus(zerolog.Nop())
	k := NewKillSwitch(bus, zerolog.Nop())
	return NewMonitor(k, spendSpike, zerolog.Nop()), k
}

func TestVolatilityNeedsTwoSamples(t *testing.T) {
	m, _ := newMonitor(t, 0)

	assert.Zero(t, m.Volatility())
	m.Observe(100)
	assert.Zero(t, m.Volatility())
}

func TestStablePricesLowVolatility(t *testing.T) {
	m, k := newMonitor(t, 0)

	for i := 0; i < 10; i++ {
		m.Observe(100)
	}
	assert.Zero(t, m.Volatility())
	assert.NoError(t, m.Sweep())
	assert.Equal(t, StateActive, k.Status().State)
}

func TestWildPricesTriggerHalt(t *testing.T) {
	m, k := newMonitor(t, 0)

	// Alternating 100/300: stddev far above half the mean
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			m.Observe(100)
		} else {
			m.Observe(300)
		}
	}
	require.Greater(t, m.Volatility(), 50.0)

	err := m.Sweep()
	var halted *domain.SystemHaltedError
	require.ErrorAs(t, err, &halted)
	assert.Equal(t, domain.PanicMarketCrash, halted.Reason)
	assert.Equal(t, StateEmergencyHalt, k.Status().State)
}

func TestWindowDiscardsOldSamples(t *testing.T) {
	m, _ := newMonitor(t, 0)

	// A wild past followed by a long stable run settles the window
	m.Observe(100)
	m.Observe(900)
	for i := 0; i < defaultWindowSize; i++ {
		m.Observe(200)
	}
	assert.Zero(t, m.Volatility())
}

func TestNonPositivePricesIgnored(t *testing.T) {
	m, _ := newMonitor(t, 0)

	m.Observe(-5)
	m.Observe(0)
	m.Observe(100)
	assert.Zero(t, m.Volatility())
}

func TestSpendSpikeSignalsBudgetAnomaly(t *testing.T) {
	m, k := newMonitor(t, 3)

	require.NoError(t, m.CheckSpend(100)) // first observation, nothing to compare
	require.NoError(t, m.CheckSpend(250)) // 2.5x, under the 3x trigger

	err := m.CheckSpend(1000)
	var halted *domain.SystemHaltedError
	require.ErrorAs(t, err, &halted)
	assert.Equal(t, domain.PanicBudgetAnomaly, halted.Reason)
	assert.Equal(t, StateEmergencyHalt, k.Status().State)
}

func TestSpendCheckDisabled(t *testing.T) {
	m, k := newMonitor(t, 0)

	require.NoError(t, m.CheckSpend(100))
	require.NoError(t, m.CheckSpend(100000))
	assert.Equal(t, StateActive, k.Status().State)
}
