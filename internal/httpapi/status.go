package httpapi

import (
	"net/http"
	"time"
)

type statusWire struct {
	Version       string  `json:"version"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	InputSampRate float64 `json:"input_sample_rate"`
}

// getStatus reports version/uptime (spec.md §6 "/api/status").
func (h *handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Now().Unix() - h.deps.StartedAt
	if uptime < 0 {
		uptime = 0
	}
	writeJSON(w, http.StatusOK, statusWire{
		Version:       h.deps.Version,
		UptimeSeconds: uptime,
		InputSampRate: h.deps.InputSampRate,
	})
}
