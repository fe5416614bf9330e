package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aretelabs/custodian/internal/modules/governance"
)

// SystemHandlers exposes health and system status endpoints
type SystemHandlers struct {
	log        zerolog.Logger
	killSwitch *governance.KillSwitch
	startedAt  time.Time
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, killSwitch *governance.KillSwitch) *SystemHandlers {
	return &SystemHandlers{
		log:        log.With().Str("handler", "system").Logger(),
		killSwitch: killSwitch,
		startedAt:  time.Now().UTC(),
	}
}

// HandleHealth returns process health with host resource usage
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	}

	// CPU usage (sampled over a short interval)
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err == nil && len(cpuPercent) > 0 {
		response["cpu_percent"] = cpuPercent[0]
	}

	// Memory usage
	memInfo, err := mem.VirtualMemory()
	if err == nil {
		response["memory_percent"] = memInfo.UsedPercent
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode health response")
	}
}

// HandleSystemStatus returns the governance state alongside uptime
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := h.killSwitch.Status()

	response := map[string]interface{}{
		"state":          status.State,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	}
	if status.Reason != "" {
		response["reason"] = status.Reason
	}
	if status.Details != "" {
		response["details"] = status.Details
	}
	if status.HaltedAt != nil {
		response["halted_at"] = status.HaltedAt.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode status response")
	}
}
