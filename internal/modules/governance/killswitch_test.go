package governance

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretelabs/custodian/internal/domain"
	"github.com/aretelabs/custodian/internal/events"
)

func newSwitch(t *testing.T, opts ...Option) (*KillSwitch, *events.Bus) {
	t.Helper()
	bus := events.NewBus(zerolog.Nop())
	return NewKillSwitch(bus, zerolog.Nop(), opts...), bus
}

func TestStartsActive(t *testing.T) {
	k, _ := newSwitch(t)
	assert.Equal(t, StateActive, k.Status().State)
	assert.NoError(t, k.Guard())
}

func TestPauseAndResume(t *testing.T) {
	k, _ := newSwitch(t)

	require.NoError(t, k.Pause("maintenance window"))
	assert.Equal(t, StatePaused, k.Status().State)

	err := k.Guard()
	var halted *domain.SystemHaltedError
	require.ErrorAs(t, err, &halted)

	require.NoError(t, k.Resume())
	assert.Equal(t, StateActive, k.Status().State)
	assert.NoError(t, k.Guard())
}

func TestConfidenceBelowFloorHalts(t *testing.T) {
	k, _ := newSwitch(t)

	require.NoError(t, k.CheckConfidence(0.5)) // floor itself passes

	err := k.CheckConfidence(0.49)
	var halted *domain.SystemHaltedError
	require.ErrorAs(t, err, &halted)
	assert.Equal(t, domain.PanicLowConfidence, halted.Reason)
	assert.Equal(t, StateEmergencyHalt, k.Status().State)
}

func TestVolatilityAboveCeilingHalts(t *testing.T) {
	k, _ := newSwitch(t)

	require.NoError(t, k.CheckMarketCrash(50)) // ceiling itself passes

	err := k.CheckMarketCrash(50.1)
	var halted *domain.SystemHaltedError
	require.ErrorAs(t, err, &halted)
	assert.Equal(t, domain.PanicMarketCrash, halted.Reason)
}

func TestHaltIsTerminal(t *testing.T) {
	k, _ := newSwitch(t)

	_ = k.SignalAnomaly(domain.PanicSecurityBreach, "credential leak detected")
	require.Equal(t, StateEmergencyHalt, k.Status().State)

	assert.Error(t, k.Resume())
	assert.Error(t, k.Pause("too late"))

	// A second trigger keeps the original halt record
	_ = k.SignalAnomaly(domain.PanicBudgetAnomaly, "spend spike")
	status := k.Status()
	assert.Equal(t, domain.PanicSecurityBreach, status.Reason)
	assert.Equal(t, "credential leak detected", status.Details)
	require.NotNil(t, status.HaltedAt)
}

func TestGuardCarriesHaltReason(t *testing.T) {
	k, _ := newSwitch(t)

	_ = k.SignalAnomaly(domain.PanicMarketCrash, "flash crash")

	err := k.Guard()
	var halted *domain.SystemHaltedError
	require.ErrorAs(t, err, &halted)
	assert.Equal(t, domain.PanicMarketCrash, halted.Reason)
	assert.Equal(t, "flash crash", halted.Details)
	assert.False(t, halted.HaltedAt.IsZero())
}

func TestHaltVisibleToConcurrentGuards(t *testing.T) {
	k, _ := newSwitch(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = k.TriggerHalt(domain.PanicMarketCrash, "crash")
	}()
	wg.Wait()

	// Every guard entering after the trigger observes the halt
	for i := 0; i < 8; i++ {
		var halted *domain.SystemHaltedError
		assert.True(t, errors.As(k.Guard(), &halted))
	}
}

func TestHaltEmitsEvent(t *testing.T) {
	k, bus := newSwitch(t)

	var got *events.Event
	bus.Subscribe(events.SystemHalted, func(e *events.Event) { got = e })

	_ = k.TriggerHalt(domain.PanicBudgetAnomaly, "spend spike")

	require.NotNil(t, got)
	data, ok := got.Data.(*events.SystemHaltedData)
	require.True(t, ok)
	assert.Equal(t, string(domain.PanicBudgetAnomaly), data.Reason)
}

func TestConfigurableThresholds(t *testing.T) {
	k, _ := newSwitch(t, WithMinConfidence(0.7), WithVolatilityCeiling(20))

	assert.NoError(t, k.CheckConfidence(0.71))
	assert.Error(t, k.CheckConfidence(0.69))

	k2, _ := newSwitch(t, WithVolatilityCeiling(20))
	assert.NoError(t, k2.CheckMarketCrash(20))
	assert.Error(t, k2.CheckMarketCrash(21))
}
