package engine

import (
	"sync"
	"time"

	"tallyd/internal/models"
	"tallyd/internal/providers"
)

// Anomaly kinds reported by the tracker. Anomalies are counted and
// logged, never returned as errors.
const (
	AnomalyDuplicateJoin = "duplicate_join"
	AnomalyOrphanLeave   = "orphan_leave"
	AnomalyRecoveryClose = "recovery_close"
)

// PresenceChecker answers whether a user is currently in a given voice
// channel. The event source adapter implements it for restart recovery.
type PresenceChecker interface {
	InChannel(userID, guildID, channelID string) bool
}

func trackerKey(userID, guildID string) string {
	return guildID + "\x00" + userID
}

// SessionTracker owns the lifecycle of at most one open voice session per
// (user, guild). Transitions for a single key are serialized by the
// engine's shard locks; the internal mutex only guards the map itself.
type SessionTracker struct {
	mu       sync.RWMutex
	open     map[string]*models.VoiceSession
	restored []*models.VoiceSession
	logger   providers.Logger
}

func NewSessionTracker(logger providers.Logger) *SessionTracker {
	return &SessionTracker{
		open:   make(map[string]*models.VoiceSession),
		logger: logger,
	}
}

// OnJoin opens a session. A join with a session already open is a
// protocol anomaly: the stale session is force-closed at ts and a new
// one opened in its place.
func (st *SessionTracker) OnJoin(userID, guildID, channelID string, ts time.Time) (closed *models.VoiceSession, anomaly string) {
	key := trackerKey(userID, guildID)

	st.mu.Lock()
	defer st.mu.Unlock()

	if stale, ok := st.open[key]; ok {
		stale.Close(ts, models.CloseForced)
		closed = stale
		anomaly = AnomalyDuplicateJoin
		st.logger.Warnf(providers.TypeEngine, "duplicate join for %s in guild %s, forced close of session %s", userID, guildID, stale.SessionID)
	}

	st.open[key] = models.NewVoiceSession(userID, guildID, channelID, ts)
	return closed, anomaly
}

// OnLeave closes the open session if present. A leave with no open
// session (missed join) is a reported no-op, never a negative-duration
// session.
func (st *SessionTracker) OnLeave(userID, guildID string, ts time.Time) (closed *models.VoiceSession, anomaly string) {
	key := trackerKey(userID, guildID)

	st.mu.Lock()
	defer st.mu.Unlock()

	session, ok := st.open[key]
	if !ok {
		st.logger.Warnf(providers.TypeEngine, "orphan leave for %s in guild %s", userID, guildID)
		return nil, AnomalyOrphanLeave
	}

	delete(st.open, key)
	session.Close(ts, models.CloseLeft)
	return session, ""
}

// OnMove closes the current session and opens one in the destination
// channel at the same instant: exactly one closed and one open session,
// no gap or overlap.
func (st *SessionTracker) OnMove(userID, guildID, toChannelID string, ts time.Time) (closed *models.VoiceSession, anomaly string) {
	key := trackerKey(userID, guildID)

	st.mu.Lock()
	defer st.mu.Unlock()

	if session, ok := st.open[key]; ok {
		session.Close(ts, models.CloseMoved)
		closed = session
	} else {
		anomaly = AnomalyOrphanLeave
		st.logger.Warnf(providers.TypeEngine, "move without open session for %s in guild %s", userID, guildID)
	}

	st.open[key] = models.NewVoiceSession(userID, guildID, toChannelID, ts)
	return closed, anomaly
}

// GetOpen returns a copy of the open session for (user, guild).
func (st *SessionTracker) GetOpen(userID, guildID string) (*models.VoiceSession, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	session, ok := st.open[trackerKey(userID, guildID)]
	if !ok {
		return nil, false
	}
	return session.Clone(), true
}

// OpenSessions returns copies of every open session, for snapshotting.
func (st *SessionTracker) OpenSessions() []*models.VoiceSession {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sessions := make([]*models.VoiceSession, 0, len(st.open))
	for _, s := range st.open {
		sessions = append(sessions, s.Clone())
	}
	return sessions
}

func (st *SessionTracker) OpenCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.open)
}

// Restore re-opens sessions from a prior process lifetime. They stay
// open until Reconcile checks them against live presence; a live event
// arriving in between simply takes over the entry.
func (st *SessionTracker) Restore(snapshot []*models.VoiceSession) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.restored = nil
	for _, s := range snapshot {
		if s == nil || s.UserID == "" || s.GuildID == "" || s.JoinedAt.IsZero() {
			st.logger.Warnf(providers.TypeEngine, "corrupt open-session record dropped during recovery")
			continue
		}
		if !s.IsOpen() {
			continue
		}
		st.open[trackerKey(s.UserID, s.GuildID)] = s
		st.restored = append(st.restored, s)
	}
}

// Reconcile closes restored sessions whose user is no longer in the
// channel. closeTs must be the last time the user was known active, not
// the reconcile time, so process downtime is not charged as call time.
// Entries already replaced by a live event are left alone.
func (st *SessionTracker) Reconcile(closeTs time.Time, presence PresenceChecker) []*models.VoiceSession {
	st.mu.Lock()
	defer st.mu.Unlock()

	var closed []*models.VoiceSession
	for _, s := range st.restored {
		key := trackerKey(s.UserID, s.GuildID)
		if st.open[key] != s {
			continue
		}
		if presence != nil && presence.InChannel(s.UserID, s.GuildID, s.ChannelID) {
			continue
		}
		delete(st.open, key)
		s.Close(closeTs, models.CloseRecovery)
		s.Estimated = true
		closed = append(closed, s)
	}
	st.restored = nil
	return closed
}

// Shutdown force-closes every open session at ts. No session survives
// process death as open in memory.
func (st *SessionTracker) Shutdown(ts time.Time) []*models.VoiceSession {
	st.mu.Lock()
	defer st.mu.Unlock()

	closed := make([]*models.VoiceSession, 0, len(st.open))
	for key, s := range st.open {
		s.Close(ts, models.CloseShutdown)
		closed = append(closed, s)
		delete(st.open, key)
	}
	return closed
}
