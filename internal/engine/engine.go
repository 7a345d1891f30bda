package engine

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"

	"tallyd/internal/models"
	"tallyd/internal/providers"
	"tallyd/internal/services"
	"tallyd/internal/structures"
)

// EngineStats is the lock-free counter snapshot served by /health.
type EngineStats struct {
	Processed int64 `json:"processed"`
	Rejected  int64 `json:"rejected"`
	Anomalies int64 `json:"anomalies"`
}

// Engine routes inbound events to the session tracker or the classifiers
// plus window store, applies guild toggles and user opt-out, and writes
// results through the aggregate service. Events for one (user, guild)
// are serialized by a shard lock keyed on that pair; events for
// different users proceed in parallel.
type Engine struct {
	conf       *structures.Config
	tracker    *SessionTracker
	windows    *WindowStore
	aggregates services.AggregateServiceInterface
	toggles    services.ConfigServiceInterface
	logger     providers.Logger
	metrics    providers.MetricsProviderInterface

	shards []sync.Mutex

	processed atomic.Int64
	rejected  atomic.Int64
	anomalies atomic.Int64
}

func NewEngine(
	conf *structures.Config,
	tracker *SessionTracker,
	windows *WindowStore,
	aggregates services.AggregateServiceInterface,
	toggles services.ConfigServiceInterface,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) *Engine {
	shards := conf.Engine.Shards
	if shards <= 0 {
		shards = 64
	}
	return &Engine{
		conf:       conf,
		tracker:    tracker,
		windows:    windows,
		aggregates: aggregates,
		toggles:    toggles,
		logger:     logger,
		metrics:    metrics,
		shards:     make([]sync.Mutex, shards),
	}
}

func (e *Engine) shardFor(userID, guildID string) *sync.Mutex {
	d := xxhash.New()
	_, _ = d.WriteString(guildID)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(userID)
	return &e.shards[d.Sum64()%uint64(len(e.shards))]
}

func (e *Engine) reject(err error) {
	e.rejected.Inc()
	e.metrics.IncRejectedEvents()
	e.logger.Debugf(providers.TypeEngine, "event rejected: %s", err)
}

func (e *Engine) anomaly(kind string) {
	if kind == "" {
		return
	}
	e.anomalies.Inc()
	e.metrics.IncAnomalies(kind)
}

// ProcessPresence applies one voice-state transition. Opted-out users
// (and guilds with call tracking off) are routed through the close path
// only, so a session opened before the opt-out cannot leak open forever.
func (e *Engine) ProcessPresence(ev *models.PresenceEvent) {
	if err := ev.Validate(); err != nil {
		e.reject(err)
		return
	}

	start := time.Now()
	mu := e.shardFor(ev.UserID, ev.GuildID)
	mu.Lock()
	defer mu.Unlock()

	e.metrics.IncEventsTotal(string(ev.Kind))

	closeOnly := e.toggles.IsOptedOut(ev.UserID) || !e.toggles.GuildConfig(ev.GuildID).CallTracking

	var closed *models.VoiceSession
	var anomaly string

	switch ev.Kind {
	case models.PresenceJoined:
		if closeOnly {
			break
		}
		closed, anomaly = e.tracker.OnJoin(ev.UserID, ev.GuildID, ev.ChannelID, ev.Timestamp)
		e.applyOpen(ev.UserID, ev.GuildID)

	case models.PresenceLeft:
		closed, anomaly = e.tracker.OnLeave(ev.UserID, ev.GuildID, ev.Timestamp)

	case models.PresenceMoved:
		if closeOnly {
			// Only the close half of the move: nothing new opens for
			// an untracked user.
			closed, anomaly = e.tracker.OnLeave(ev.UserID, ev.GuildID, ev.Timestamp)
			break
		}
		closed, anomaly = e.tracker.OnMove(ev.UserID, ev.GuildID, ev.ChannelID, ev.Timestamp)
		e.applyOpen(ev.UserID, ev.GuildID)
	}

	e.anomaly(anomaly)
	if closed != nil {
		e.aggregates.ApplySessionClose(closed)
	}

	e.processed.Inc()
	e.metrics.ObserveDispatchDuration(time.Since(start))
}

func (e *Engine) applyOpen(userID, guildID string) {
	if open, ok := e.tracker.GetOpen(userID, guildID); ok {
		e.aggregates.ApplySessionOpen(open)
	}
}

// ProcessMessage classifies one message. The content is reduced to
// counters and a fingerprint inside this call and not retained.
func (e *Engine) ProcessMessage(ev *models.MessageEvent) {
	if err := ev.Validate(); err != nil {
		e.reject(err)
		return
	}

	start := time.Now()
	mu := e.shardFor(ev.UserID, ev.GuildID)
	mu.Lock()
	defer mu.Unlock()

	e.metrics.IncEventsTotal("message")

	if e.toggles.IsOptedOut(ev.UserID) {
		e.processed.Inc()
		return
	}

	cfg := e.toggles.GuildConfig(ev.GuildID)
	e.aggregates.Touch(ev.UserID, ev.Timestamp)

	if cfg.SpamDetection {
		e.classifyMessage(ev)
	}

	if cfg.EmojiTracking {
		for _, token := range ExtractEmojiTokens(ev.Content) {
			e.aggregates.ApplyCounterIncrement(ev.UserID, models.EmojiCategory(token), ev.Timestamp)
		}
	}

	e.processed.Inc()
	e.metrics.ObserveDispatchDuration(time.Since(start))
}

func (e *Engine) classifyMessage(ev *models.MessageEvent) {
	if hit, info := DetectCharRepetition(ev.Content); hit {
		e.detect(ev, models.CategoryCharRepetition)
		e.logger.Debugf(providers.TypeEngine, "char repetition by %s: %d runs, %d distinct chars", ev.UserID, info.Runs, len(info.Chars))
	}
	if DetectCapsSpam(ev.Content) {
		e.detect(ev, models.CategoryCapsSpam)
	}
	if DetectKeyboardMashing(ev.Content) {
		e.detect(ev, models.CategoryKeyboardMashing)
	}
	if DetectExcessiveLength(ev.Content) {
		e.detect(ev, models.CategoryExcessiveLength)
	}

	fp := Fingerprint(ev.Content)
	count := e.windows.RecordAndCount(ev.UserID, models.CategoryDuplicate, fp, ev.Timestamp, e.conf.Engine.DuplicateWindow)
	if count >= e.conf.Engine.DuplicateCount {
		e.detect(ev, models.CategoryDuplicate)
	}
}

func (e *Engine) detect(ev *models.MessageEvent, category string) {
	e.aggregates.ApplyCounterIncrement(ev.UserID, category, ev.Timestamp)
	e.metrics.IncDetections(category)
}

// RestoreSnapshot loads aggregates and re-opens sessions from a prior
// lifetime. Sessions stay open until ReconcileSessions checks them
// against live presence once the gateway is up.
func (e *Engine) RestoreSnapshot(snapshot *models.Snapshot) {
	if snapshot == nil {
		return
	}
	if snapshot.Users != nil {
		e.aggregates.PutSnapshotUsers(snapshot.Users)
	}
	e.tracker.Restore(snapshot.OpenSessions)
}

// ReconcileSessions closes restored sessions whose user is gone. The
// close timestamp is the snapshot save time when one is known, so the
// downtime between the last save and the restart never lands in a
// user's call totals.
func (e *Engine) ReconcileSessions(savedAt, recoveryTs time.Time, presence PresenceChecker) {
	closeTs := recoveryTs
	if !savedAt.IsZero() && savedAt.Before(recoveryTs) {
		closeTs = savedAt
	}
	closed := e.tracker.Reconcile(closeTs, presence)
	for _, s := range closed {
		e.anomaly(AnomalyRecoveryClose)
		e.aggregates.ApplySessionClose(s)
	}
	if len(closed) > 0 {
		e.logger.Infof(providers.TypeEngine, "recovery closed %d stale sessions at %s", len(closed), closeTs.Format(time.RFC3339))
	}
}

// Shutdown force-closes every open session at ts and folds them into the
// aggregates, so the final snapshot persisted on the way out is durable
// and complete.
func (e *Engine) Shutdown(ts time.Time) {
	closed := e.tracker.Shutdown(ts)
	for _, s := range closed {
		e.aggregates.ApplySessionClose(s)
	}
	if len(closed) > 0 {
		e.logger.Infof(providers.TypeEngine, "shutdown closed %d open sessions", len(closed))
	}
}

// GetOpenSession returns the open session for (user, guild) if any.
func (e *Engine) GetOpenSession(userID, guildID string) (*models.VoiceSession, bool) {
	return e.tracker.GetOpen(userID, guildID)
}

// SweepWindows reclaims expired window entries; wired to the scheduler.
func (e *Engine) SweepWindows(now time.Time) {
	e.windows.Sweep(now, e.conf.Engine.FingerprintTTL)
}

func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Processed: e.processed.Load(),
		Rejected:  e.rejected.Load(),
		Anomalies: e.anomalies.Load(),
	}
}
