package governance

import (
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aretelabs/custodian/internal/domain"
)

const defaultWindowSize = 32

// Monitor accumulates market price samples and periodically converts them
// into a volatility percentage for the kill switch. It also watches
// per-sweep spend deltas for budget anomalies.
type Monitor struct {
	mu         sync.Mutex
	samples    []float64
	windowSize int
	lastSpend  float64
	spendSpike float64
	killSwitch *KillSwitch
	log        zerolog.Logger
}

// NewMonitor creates a monitor feeding the given kill switch. spendSpike is
// the per-sweep spend increase, as a multiple of the previous sweep, that
// counts as a budget anomaly (0 disables the check).
func NewMonitor(killSwitch *KillSwitch, spendSpike float64, log zerolog.Logger) *Monitor {
	return &Monitor{
		windowSize: defaultWindowSize,
		spendSpike: spendSpike,
		killSwitch: killSwitch,
		log:        log.With().Str("service", "anomaly_monitor").Logger(),
	}
}

// Observe records a market price sample. Older samples beyond the window
// are discarded.
func (m *Monitor) Observe(price float64) {
	if price <= 0 {
		return
	}
	m.mu.Lock()
	m.samples = append(m.samples, price)
	if len(m.samples) > m.windowSize {
		m.samples = m.samples[len(m.samples)-m.windowSize:]
	}
	m.mu.Unlock()
}

// Volatility returns the sample standard deviation of observed prices as a
// percentage of their mean. Needs at least two samples; returns 0 otherwise.
func (m *Monitor) Volatility() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.samples) < 2 {
		return 0
	}
	mean := stat.Mean(m.samples, nil)
	if mean == 0 {
		return 0
	}
	sd := stat.StdDev(m.samples, nil)
	return sd / mean * 100
}

// Sweep evaluates the current window against the kill switch. Returns the
// halt error when volatility breaches the ceiling. Run on a schedule.
func (m *Monitor) Sweep() error {
	vol := m.Volatility()
	m.log.Debug().Float64("volatility_pct", vol).Msg("Volatility sweep")
	return m.killSwitch.CheckMarketCrash(vol)
}

// CheckSpend compares the day's aggregate spend against the previous
// observation and signals a budget anomaly on an abrupt spike
func (m *Monitor) CheckSpend(dailySpend float64) error {
	m.mu.Lock()
	previous := m.lastSpend
	m.lastSpend = dailySpend
	spike := m.spendSpike
	m.mu.Unlock()

	if spike <= 0 || previous <= 0 {
		return nil
	}
	if dailySpend > previous*spike {
		return m.killSwitch.SignalAnomaly(domain.PanicBudgetAnomaly,
			"aggregate spend spiked beyond the configured multiple of the previous sweep")
	}
	return nil
}
