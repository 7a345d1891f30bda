package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallyd/internal/engine"
	"tallyd/internal/models"
)

func newHealthFixture() (*HealthController, *controllerFixture) {
	f := newControllerFixture()
	gauges := engine.NewStatsSource(f.tracker, f.svc)
	return NewHealthController(f.eng, gauges), f
}

func TestHealth_ReturnsOK(t *testing.T) {
	hc, f := newHealthFixture()
	t0 := time.Now().UTC()
	f.eng.ProcessPresence(&models.PresenceEvent{UserID: "u1", GuildID: "g1", ChannelID: "voice-1", Kind: models.PresenceJoined, Timestamp: t0})
	f.eng.ProcessMessage(&models.MessageEvent{UserID: "u2", GuildID: "g1", Content: "hi", Timestamp: t0})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Contains(t, resp, "uptime")
	assert.Contains(t, resp, "uptime_seconds")
	assert.Equal(t, float64(2), resp["processed_events"])
	assert.Equal(t, float64(1), resp["open_sessions"])
	assert.Equal(t, float64(1), resp["tracked_users"])
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	hc, _ := newHealthFixture()

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0h0m5s", formatDuration(5*time.Second))
	assert.Equal(t, "1h2m3s", formatDuration(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "25h0m0s", formatDuration(25*time.Hour))
}
