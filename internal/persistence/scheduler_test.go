package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallyd/internal/engine"
	"tallyd/internal/models"
	"tallyd/internal/services"
	"tallyd/internal/structures"
	"tallyd/internal/testutil"
)

func schedulerConfig(filePath string) *structures.Config {
	return &structures.Config{
		Engine: structures.EngineConfig{
			Shards:          4,
			DuplicateWindow: time.Minute,
			DuplicateCount:  3,
			FingerprintTTL:  5 * time.Minute,
			SweepInterval:   time.Hour,
		},
		Tracking: structures.TrackingDefaults{CallTracking: true},
		Persistence: structures.Persistence{
			FilePath:     filePath,
			SaveInterval: time.Hour,
		},
	}
}

type schedulerFixture struct {
	conf      *structures.Config
	eng       *engine.Engine
	svc       services.AggregateServiceInterface
	scheduler *Scheduler
}

func newSchedulerFixture(t *testing.T, path string) *schedulerFixture {
	t.Helper()
	conf := schedulerConfig(path)
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()
	svc := services.NewAggregateService(conf, nil, logger)
	toggles := services.NewConfigService(conf)
	tracker := engine.NewSessionTracker(logger)
	eng := engine.NewEngine(conf, tracker, engine.NewWindowStore(), svc, toggles, logger, metrics)

	comp, err := NewZstdCompressor()
	require.NoError(t, err)
	t.Cleanup(comp.Close)

	fm := NewFileManager(comp, svc, tracker, logger)
	s := NewScheduler(conf, logger, metrics, eng, fm, nil).(*Scheduler)
	return &schedulerFixture{conf: conf, eng: eng, svc: svc, scheduler: s}
}

func TestScheduler_PersistRestore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.dat")
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	f := newSchedulerFixture(t, path)
	f.eng.ProcessPresence(&models.PresenceEvent{UserID: "u1", GuildID: "g1", ChannelID: "voice-1", Kind: models.PresenceJoined, Timestamp: t0})
	f.eng.ProcessPresence(&models.PresenceEvent{UserID: "u1", GuildID: "g1", Kind: models.PresenceLeft, Timestamp: t0.Add(5 * time.Minute)})
	f.eng.ProcessPresence(&models.PresenceEvent{UserID: "u2", GuildID: "g1", ChannelID: "voice-2", Kind: models.PresenceJoined, Timestamp: t0})

	require.NoError(t, f.scheduler.Persist())
	_, err := os.Stat(path)
	require.NoError(t, err)

	// A fresh process: no presence signal, so u2's session is closed at
	// the snapshot save time with an estimated duration.
	g := newSchedulerFixture(t, path)
	require.NoError(t, g.scheduler.Restore())
	g.scheduler.Reconcile()

	agg, ok := g.svc.GetUserAggregate("u1")
	require.True(t, ok)
	assert.Equal(t, int64(300), agg.TotalCallSeconds)

	agg, ok = g.svc.GetUserAggregate("u2")
	require.True(t, ok)
	assert.Equal(t, int64(1), agg.TotalSessions)
	_, open := g.eng.GetOpenSession("u2", "g1")
	assert.False(t, open)
}

func TestScheduler_Restore_FileNotExist(t *testing.T) {
	f := newSchedulerFixture(t, filepath.Join(t.TempDir(), "missing.dat"))
	assert.NoError(t, f.scheduler.Restore())
	assert.Equal(t, 0, f.svc.TrackedUserCount())
}

func TestScheduler_Restore_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.dat")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o644))

	f := newSchedulerFixture(t, path)
	assert.Error(t, f.scheduler.Restore())
}

func TestScheduler_Persist_WriteError(t *testing.T) {
	conf := schedulerConfig(filepath.Join(t.TempDir(), "state.dat"))
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()
	svc := services.NewAggregateService(conf, nil, logger)
	toggles := services.NewConfigService(conf)
	tracker := engine.NewSessionTracker(logger)
	eng := engine.NewEngine(conf, tracker, engine.NewWindowStore(), svc, toggles, logger, metrics)

	comp := &testutil.MockCompressor{
		CompressFn: func([]byte) ([]byte, error) { return nil, errors.New("compress error") },
	}
	fm := NewFileManager(comp, svc, tracker, logger)
	s := NewScheduler(conf, logger, metrics, eng, fm, nil).(*Scheduler)

	assert.Error(t, s.Persist())
	assert.NotZero(t, logger.CountLevel("error"))
}

func TestScheduler_InitAndStop(t *testing.T) {
	f := newSchedulerFixture(t, filepath.Join(t.TempDir(), "state.dat"))
	f.scheduler.Init()
	f.scheduler.Stop()
}
