package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aretelabs/custodian/internal/modules/governance"
	"github.com/aretelabs/custodian/internal/modules/risk"
)

// DailyResetJob clears the rolling daily spend counter at midnight UTC.
type DailyResetJob struct {
	policy *risk.Policy
	log    zerolog.Logger
}

// NewDailyResetJob creates the daily reset job
func NewDailyResetJob(policy *risk.Policy, log zerolog.Logger) *DailyResetJob {
	return &DailyResetJob{
		policy: policy,
		log:    log.With().Str("job", "daily_spend_reset").Logger(),
	}
}

// Name returns the job name
func (j *DailyResetJob) Name() string { return "daily_spend_reset" }

// Run resets the daily spend counter
func (j *DailyResetJob) Run() error {
	previous := j.policy.DailySpend()
	j.policy.ResetDaily()
	j.log.Info().Str("previous_spend", previous.String()).Msg("Daily spend counter reset")
	return nil
}

// VolatilitySweepJob re-evaluates observed market volatility against the
// crash ceiling. A breach trips the kill switch.
type VolatilitySweepJob struct {
	monitor *governance.Monitor
}

// NewVolatilitySweepJob creates the volatility sweep job
func NewVolatilitySweepJob(monitor *governance.Monitor) *VolatilitySweepJob {
	return &VolatilitySweepJob{monitor: monitor}
}

// Name returns the job name
func (j *VolatilitySweepJob) Name() string { return "volatility_sweep" }

// Run sweeps the volatility window. The returned error is the halt record
// when the ceiling is breached.
func (j *VolatilitySweepJob) Run() error {
	return j.monitor.Sweep()
}

// SpendAnomalyJob compares the current daily spend against the previous
// observation and signals a budget anomaly on a spike.
type SpendAnomalyJob struct {
	monitor *governance.Monitor
	policy  *risk.Policy
}

// NewSpendAnomalyJob creates the spend anomaly job
func NewSpendAnomalyJob(monitor *governance.Monitor, policy *risk.Policy) *SpendAnomalyJob {
	return &SpendAnomalyJob{monitor: monitor, policy: policy}
}

// Name returns the job name
func (j *SpendAnomalyJob) Name() string { return "spend_anomaly_check" }

// Run checks the daily spend for anomalous growth
func (j *SpendAnomalyJob) Run() error {
	return j.monitor.CheckSpend(j.policy.DailySpend().InexactFloat64())
}
