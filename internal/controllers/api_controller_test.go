package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallyd/internal/engine"
	"tallyd/internal/models"
	"tallyd/internal/services"
	"tallyd/internal/structures"
	"tallyd/internal/testutil"
)

type controllerFixture struct {
	ac      *ApiController
	eng     *engine.Engine
	tracker *engine.SessionTracker
	svc     services.AggregateServiceInterface
	toggles services.ConfigServiceInterface
	cache   *testutil.MockCache
}

func controllerConfig() *structures.Config {
	return &structures.Config{
		Engine: structures.EngineConfig{
			Shards:          4,
			DuplicateWindow: time.Minute,
			DuplicateCount:  3,
			FingerprintTTL:  5 * time.Minute,
			SweepInterval:   time.Hour,
		},
		Tracking: structures.TrackingDefaults{
			CallTracking:  true,
			SpamDetection: true,
			EmojiTracking: true,
		},
	}
}

func newControllerFixture() *controllerFixture {
	conf := controllerConfig()
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()
	svc := services.NewAggregateService(conf, nil, logger)
	toggles := services.NewConfigService(conf)
	tracker := engine.NewSessionTracker(logger)
	eng := engine.NewEngine(conf, tracker, engine.NewWindowStore(), svc, toggles, logger, metrics)
	cache := testutil.NewMockCache()
	return &controllerFixture{
		ac:      NewApiController(logger, svc, toggles, eng, cache),
		eng:     eng,
		tracker: tracker,
		svc:     svc,
		toggles: toggles,
		cache:   cache,
	}
}

func (f *controllerFixture) closeSession(user, guild string, t0 time.Time, dur time.Duration) {
	f.eng.ProcessPresence(&models.PresenceEvent{UserID: user, GuildID: guild, ChannelID: "voice-1", Kind: models.PresenceJoined, Timestamp: t0})
	f.eng.ProcessPresence(&models.PresenceEvent{UserID: user, GuildID: guild, Kind: models.PresenceLeft, Timestamp: t0.Add(dur)})
}

func TestGetAggregate_MissingParam(t *testing.T) {
	f := newControllerFixture()
	rr := httptest.NewRecorder()
	f.ac.GetAggregate(rr, httptest.NewRequest(http.MethodGet, "/aggregate", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetAggregate_UnknownUser(t *testing.T) {
	f := newControllerFixture()
	rr := httptest.NewRecorder()
	f.ac.GetAggregate(rr, httptest.NewRequest(http.MethodGet, "/aggregate?u=ghost", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetAggregate_ReturnsRollup(t *testing.T) {
	f := newControllerFixture()
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	f.closeSession("u1", "g1", t0, 5*time.Minute)

	rr := httptest.NewRecorder()
	f.ac.GetAggregate(rr, httptest.NewRequest(http.MethodGet, "/aggregate?u=u1", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var agg models.UserAggregate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &agg))
	assert.Equal(t, int64(300), agg.TotalCallSeconds)
	assert.Equal(t, int64(1), agg.TotalSessions)
}

func TestGetAggregate_ServedFromCache(t *testing.T) {
	f := newControllerFixture()
	t0 := time.Now().UTC()
	f.closeSession("u1", "g1", t0, time.Minute)

	rr := httptest.NewRecorder()
	f.ac.GetAggregate(rr, httptest.NewRequest(http.MethodGet, "/aggregate?u=u1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	first := rr.Body.String()

	// More activity lands, but the cached body is served as-is.
	f.closeSession("u1", "g1", t0.Add(time.Hour), time.Minute)
	rr = httptest.NewRecorder()
	f.ac.GetAggregate(rr, httptest.NewRequest(http.MethodGet, "/aggregate?u=u1", nil))
	assert.Equal(t, first, rr.Body.String())
}

func TestGetOpenSession(t *testing.T) {
	f := newControllerFixture()
	t0 := time.Now().UTC()

	rr := httptest.NewRecorder()
	f.ac.GetOpenSession(rr, httptest.NewRequest(http.MethodGet, "/session?u=u1&g=g1", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	f.eng.ProcessPresence(&models.PresenceEvent{UserID: "u1", GuildID: "g1", ChannelID: "voice-1", Kind: models.PresenceJoined, Timestamp: t0})

	rr = httptest.NewRecorder()
	f.ac.GetOpenSession(rr, httptest.NewRequest(http.MethodGet, "/session?u=u1&g=g1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var session models.VoiceSession
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	assert.Equal(t, "voice-1", session.ChannelID)
	assert.Nil(t, session.LeftAt)
}

func TestGetOpenSession_MissingParams(t *testing.T) {
	f := newControllerFixture()
	rr := httptest.NewRecorder()
	f.ac.GetOpenSession(rr, httptest.NewRequest(http.MethodGet, "/session?u=u1", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetLeaderboard(t *testing.T) {
	f := newControllerFixture()
	t0 := time.Now().UTC()
	f.closeSession("u1", "g1", t0, time.Minute)
	f.closeSession("u2", "g1", t0, 3*time.Minute)

	rr := httptest.NewRecorder()
	f.ac.GetLeaderboard(rr, httptest.NewRequest(http.MethodGet, "/leaderboard?g=g1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var board []models.LeaderboardEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &board))
	require.Len(t, board, 2)
	assert.Equal(t, "u2", board[0].UserID)
	assert.Equal(t, int64(180), board[0].Value)
}

func TestGetLeaderboard_EmptyIsOK(t *testing.T) {
	f := newControllerFixture()
	rr := httptest.NewRecorder()
	f.ac.GetLeaderboard(rr, httptest.NewRequest(http.MethodGet, "/leaderboard?g=g1&m=spam", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGetHeatmap(t *testing.T) {
	f := newControllerFixture()
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) // Saturday
	f.eng.ProcessMessage(&models.MessageEvent{UserID: "u1", GuildID: "g1", Content: "hi", Timestamp: t0})

	rr := httptest.NewRecorder()
	f.ac.GetHeatmap(rr, httptest.NewRequest(http.MethodGet, "/heatmap?u=u1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var grid [7][24]int64
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &grid))
	assert.Equal(t, int64(1), grid[6][10])
}

func TestGetHeatmap_UnknownUser(t *testing.T) {
	f := newControllerFixture()
	rr := httptest.NewRecorder()
	f.ac.GetHeatmap(rr, httptest.NewRequest(http.MethodGet, "/heatmap?u=ghost", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReceiveEvents_Batch(t *testing.T) {
	f := newControllerFixture()
	payload := `{
		"presence": [
			{"user_id":"u1","guild_id":"g1","channel_id":"voice-1","kind":"joined","ts":"2025-03-01T10:00:00Z"}
		],
		"messages": [
			{"user_id":"u2","guild_id":"g1","content":"hello","ts":"2025-03-01T10:00:05Z"}
		]
	}`
	rr := httptest.NewRecorder()
	f.ac.ReceiveEvents(rr, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(payload)))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	_, open := f.eng.GetOpenSession("u1", "g1")
	assert.True(t, open)
	_, tracked := f.svc.GetUserAggregate("u2")
	assert.True(t, tracked)
}

func TestReceiveEvents_InvalidJSON(t *testing.T) {
	f := newControllerFixture()
	rr := httptest.NewRecorder()
	f.ac.ReceiveEvents(rr, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("{broken")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReceiveEvents_InvalidEventsInsideBatchAccepted(t *testing.T) {
	f := newControllerFixture()
	payload := `{"presence":[{"guild_id":"g1","kind":"joined","ts":"2025-03-01T10:00:00Z"}]}`
	rr := httptest.NewRecorder()
	f.ac.ReceiveEvents(rr, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(payload)))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, int64(1), f.eng.Stats().Rejected)
}

func TestEraseAggregate(t *testing.T) {
	f := newControllerFixture()
	t0 := time.Now().UTC()
	f.closeSession("u1", "g1", t0, time.Minute)

	// Warm the cache first.
	rr := httptest.NewRecorder()
	f.ac.GetAggregate(rr, httptest.NewRequest(http.MethodGet, "/aggregate?u=u1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	f.ac.EraseAggregate(rr, httptest.NewRequest(http.MethodDelete, "/aggregate?u=u1", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	f.ac.GetAggregate(rr, httptest.NewRequest(http.MethodGet, "/aggregate?u=u1", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEraseAggregate_UnknownUser(t *testing.T) {
	f := newControllerFixture()
	rr := httptest.NewRecorder()
	f.ac.EraseAggregate(rr, httptest.NewRequest(http.MethodDelete, "/aggregate?u=ghost", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSetGuildConfig(t *testing.T) {
	f := newControllerFixture()
	payload := `{"guild_id":"g1","feature":"call_tracking","enabled":false}`
	rr := httptest.NewRecorder()
	f.ac.SetGuildConfig(rr, httptest.NewRequest(http.MethodPost, "/config/guild", strings.NewReader(payload)))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, f.toggles.GuildConfig("g1").CallTracking)
}

func TestSetGuildConfig_UnknownFeature(t *testing.T) {
	f := newControllerFixture()
	payload := `{"guild_id":"g1","feature":"telepathy","enabled":true}`
	rr := httptest.NewRecorder()
	f.ac.SetGuildConfig(rr, httptest.NewRequest(http.MethodPost, "/config/guild", strings.NewReader(payload)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetGuildConfig_MissingGuild(t *testing.T) {
	f := newControllerFixture()
	payload := `{"feature":"call_tracking","enabled":true}`
	rr := httptest.NewRecorder()
	f.ac.SetGuildConfig(rr, httptest.NewRequest(http.MethodPost, "/config/guild", strings.NewReader(payload)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetOptOut(t *testing.T) {
	f := newControllerFixture()
	payload := `{"user_id":"u1","opt_out":true}`
	rr := httptest.NewRecorder()
	f.ac.SetOptOut(rr, httptest.NewRequest(http.MethodPost, "/config/optout", strings.NewReader(payload)))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, f.toggles.IsOptedOut("u1"))
}
