// Package governance implements the system-wide kill switch and the
// anomaly monitor that feeds it.
package governance

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aretelabs/custodian/internal/domain"
	"github.com/aretelabs/custodian/internal/events"
)

// SystemState is the process-wide operational state
type SystemState string

const (
	StateActive        SystemState = "active"
	StatePaused        SystemState = "paused"
	StateEmergencyHalt SystemState = "emergency_halt"
)

// Defaults for the panic triggers
const (
	DefaultMinConfidence     = 0.5
	DefaultVolatilityCeiling = 50.0
)

// Status is a point-in-time snapshot of the kill switch
type Status struct {
	State    SystemState        `json:"state"`
	Reason   domain.PanicReason `json:"reason,omitempty"`
	Details  string             `json:"details,omitempty"`
	HaltedAt *time.Time         `json:"halted_at,omitempty"`
}

// KillSwitch is the single writer of the system pause state. Every
// orchestrator entry point calls Guard before doing any work; reads are
// linearizable with writes, so a halt triggered mid-flight is observed by
// every subsequently entering call.
//
// emergency_halt is terminal for the process lifetime. Only an operator
// restarting the process clears it.
type KillSwitch struct {
	mu                sync.RWMutex
	state             SystemState
	reason            domain.PanicReason
	details           string
	haltedAt          *time.Time
	minConfidence     float64
	volatilityCeiling float64
	eventBus          *events.Bus
	log               zerolog.Logger
}

// Option configures a KillSwitch
type Option func(*KillSwitch)

// WithMinConfidence overrides the confidence floor below which
// CheckConfidence halts the system
func WithMinConfidence(floor float64) Option {
	return func(k *KillSwitch) { k.minConfidence = floor }
}

// WithVolatilityCeiling overrides the market volatility percentage above
// which CheckMarketCrash halts the system
func WithVolatilityCeiling(ceiling float64) Option {
	return func(k *KillSwitch) { k.volatilityCeiling = ceiling }
}

// NewKillSwitch creates a kill switch in the active state
func NewKillSwitch(eventBus *events.Bus, log zerolog.Logger, opts ...Option) *KillSwitch {
	k := &KillSwitch{
		state:             StateActive,
		minConfidence:     DefaultMinConfidence,
		volatilityCeiling: DefaultVolatilityCeiling,
		eventBus:          eventBus,
		log:               log.With().Str("service", "kill_switch").Logger(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Status returns the current state snapshot
func (k *KillSwitch) Status() Status {
	k.mu.RLock()
	defer k.mu.RUnlock()

	s := Status{
		State:   k.state,
		Reason:  k.reason,
		Details: k.details,
	}
	if k.haltedAt != nil {
		t := *k.haltedAt
		s.HaltedAt = &t
	}
	return s
}

// Guard fails with the halt's reason unless the system is active. This is
// the check every commerce entry point runs before touching any state.
func (k *KillSwitch) Guard() error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.state == StateActive {
		return nil
	}

	err := &domain.SystemHaltedError{
		Reason:  k.reason,
		Details: k.details,
	}
	if k.haltedAt != nil {
		err.HaltedAt = *k.haltedAt
	}
	if k.state == StatePaused && err.Details == "" {
		err.Details = "system paused by operator"
	}
	return err
}

// Pause suspends commerce activity without engaging the emergency halt.
// Pausing an already halted system is an error; pausing a paused system
// is a no-op.
func (k *KillSwitch) Pause(details string) error {
	k.mu.Lock()
	if k.state == StateEmergencyHalt {
		k.mu.Unlock()
		return fmt.Errorf("cannot pause: system is in emergency halt (%s)", k.reason)
	}
	if k.state == StatePaused {
		k.mu.Unlock()
		return nil
	}
	k.state = StatePaused
	k.details = details
	k.mu.Unlock()

	k.log.Warn().Str("details", details).Msg("System paused")
	k.eventBus.Emit("governance", &events.SystemPausedData{Details: details})
	return nil
}

// Resume returns a paused system to active. The emergency halt cannot be
// resumed in-process.
func (k *KillSwitch) Resume() error {
	k.mu.Lock()
	if k.state == StateEmergencyHalt {
		k.mu.Unlock()
		return fmt.Errorf("cannot resume: emergency halt is terminal (%s)", k.reason)
	}
	if k.state == StateActive {
		k.mu.Unlock()
		return nil
	}
	k.state = StateActive
	k.reason = ""
	k.details = ""
	k.mu.Unlock()

	k.log.Info().Msg("System resumed")
	k.eventBus.Emit("governance", &events.SystemResumedData{})
	return nil
}

// CheckConfidence halts the system when a confidence score falls below the
// configured floor. Returns the halt error so the caller aborts.
func (k *KillSwitch) CheckConfidence(score float64) error {
	if score >= k.minConfidence {
		return nil
	}
	return k.TriggerHalt(domain.PanicLowConfidence,
		fmt.Sprintf("confidence %.2f below floor %.2f", score, k.minConfidence))
}

// CheckMarketCrash halts the system when market volatility exceeds the
// ceiling percentage
func (k *KillSwitch) CheckMarketCrash(volatilityPercent float64) error {
	if volatilityPercent <= k.volatilityCeiling {
		return nil
	}
	return k.TriggerHalt(domain.PanicMarketCrash,
		fmt.Sprintf("volatility %.1f%% exceeds ceiling %.1f%%", volatilityPercent, k.volatilityCeiling))
}

// SignalAnomaly halts the system on an explicit budget or security anomaly
// reported by an external collaborator
func (k *KillSwitch) SignalAnomaly(reason domain.PanicReason, details string) error {
	return k.TriggerHalt(reason, details)
}

// TriggerHalt atomically moves the system into emergency_halt, recording
// reason, detail and timestamp, and returns the SystemHaltedError that the
// caller must propagate. A second trigger keeps the first halt's record.
func (k *KillSwitch) TriggerHalt(reason domain.PanicReason, details string) error {
	k.mu.Lock()
	if k.state == StateEmergencyHalt {
		err := &domain.SystemHaltedError{Reason: k.reason, Details: k.details, HaltedAt: *k.haltedAt}
		k.mu.Unlock()
		return err
	}
	now := time.Now().UTC()
	k.state = StateEmergencyHalt
	k.reason = reason
	k.details = details
	k.haltedAt = &now
	k.mu.Unlock()

	k.log.Error().
		Str("reason", string(reason)).
		Str("details", details).
		Msg("EMERGENCY HALT triggered")

	k.eventBus.Emit("governance", &events.SystemHaltedData{
		Reason:   string(reason),
		Details:  details,
		HaltedAt: now.Format(time.RFC3339),
	})

	return &domain.SystemHaltedError{Reason: reason, Details: details, HaltedAt: now}
}
