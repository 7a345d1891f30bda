package controllers

import (
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"tallyd/internal/engine"
	"tallyd/internal/providers"
)

type HealthController struct {
	eng       *engine.Engine
	gauges    providers.GaugeSource
	startTime time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Processed     int64   `json:"processed_events"`
	Rejected      int64   `json:"rejected_events"`
	Anomalies     int64   `json:"anomalies"`
	OpenSessions  int     `json:"open_sessions"`
	TrackedUsers  int     `json:"tracked_users"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	stats := hc.eng.Stats()
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Processed:     stats.Processed,
		Rejected:      stats.Rejected,
		Anomalies:     stats.Anomalies,
		OpenSessions:  hc.gauges.OpenSessionCount(),
		TrackedUsers:  hc.gauges.TrackedUserCount(),
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(eng *engine.Engine, gauges providers.GaugeSource) *HealthController {
	return &HealthController{
		eng:       eng,
		gauges:    gauges,
		startTime: time.Now(),
	}
}
