package models

import (
	"sort"
	"sync"
	"time"
)

// Leaderboard metrics accepted by AggregateStore.Leaderboard.
const (
	MetricCallSeconds    = "call_seconds"
	MetricSessions       = "sessions"
	MetricLongestSession = "longest_session"
	MetricSpam           = "spam"
	MetricEmoji          = "emoji"
)

type LeaderboardEntry struct {
	UserID string `json:"user_id"`
	Value  int64  `json:"value"`
}

type lockedAggregate struct {
	mu  sync.Mutex
	agg *UserAggregate
}

// AggregateStore is the in-memory authoritative store of per-user
// aggregates. Every write for a given user runs under that user's entry
// mutex, so a session close and a concurrent counter increment for the
// same user serialize without blocking writes for other users.
type AggregateStore struct {
	mu       sync.RWMutex
	users    map[string]*lockedAggregate
	maxUsers int
}

func NewAggregateStore(maxUsers int) *AggregateStore {
	return &AggregateStore{
		users:    make(map[string]*lockedAggregate),
		maxUsers: maxUsers,
	}
}

// getOrCreate returns the entry for a user, creating it lazily.
// Fast path takes only the read lock; the slow path double-checks under
// the write lock.
func (s *AggregateStore) getOrCreate(userID string) *lockedAggregate {
	s.mu.RLock()
	entry, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok = s.users[userID]
	if !ok {
		if s.maxUsers > 0 && len(s.users) >= s.maxUsers {
			return nil
		}
		entry = &lockedAggregate{agg: NewUserAggregate(userID)}
		s.users[userID] = entry
	}
	return entry
}

// ApplySessionClose folds a closed session into the user's rollup.
// Sessions flagged as estimated (restart recovery) count toward session
// totals but the gap charged is whatever duration the recovery computed.
func (s *AggregateStore) ApplySessionClose(session *VoiceSession) {
	if session == nil || session.IsOpen() {
		return
	}
	entry := s.getOrCreate(session.UserID)
	if entry == nil {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	agg := entry.agg
	agg.TotalCallSeconds += session.DurationSeconds
	agg.TotalSessions++
	if session.DurationSeconds > agg.LongestSessionSeconds {
		agg.LongestSessionSeconds = session.DurationSeconds
	}
	agg.AverageSessionSeconds = agg.TotalCallSeconds / agg.TotalSessions
	agg.GuildCallSeconds[session.GuildID] += session.DurationSeconds
	if session.LeftAt.After(agg.LastActiveAt) {
		agg.LastActiveAt = *session.LeftAt
	}
	agg.Heatmap.Mark(session.JoinedAt)
}

func (s *AggregateStore) ApplyCounterIncrement(userID, category string, ts time.Time) {
	entry := s.getOrCreate(userID)
	if entry == nil {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	agg := entry.agg
	stat, ok := agg.Counters[category]
	if !ok {
		stat = &CounterStat{}
		agg.Counters[category] = stat
	}
	stat.Count++
	stat.LastTriggeredAt = ts
	if ts.After(agg.LastActiveAt) {
		agg.LastActiveAt = ts
	}
}

// Touch records plain activity (message seen) without any counter.
func (s *AggregateStore) Touch(userID string, ts time.Time) {
	entry := s.getOrCreate(userID)
	if entry == nil {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if ts.After(entry.agg.LastActiveAt) {
		entry.agg.LastActiveAt = ts
	}
	entry.agg.Heatmap.Mark(ts)
}

// Get returns a deep copy of the user's aggregate. A single write is
// never observed half-applied because copies are taken under the entry
// mutex.
func (s *AggregateStore) Get(userID string) (*UserAggregate, bool) {
	s.mu.RLock()
	entry, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.agg.Clone(), true
}

func (s *AggregateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Erase removes a user's aggregate entirely (data-erasure request).
func (s *AggregateStore) Erase(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	delete(s.users, userID)
	return ok
}

func (s *AggregateStore) metricValue(agg *UserAggregate, guildID, metric string) int64 {
	switch metric {
	case MetricCallSeconds:
		if guildID != "" {
			return agg.GuildCallSeconds[guildID]
		}
		return agg.TotalCallSeconds
	case MetricSessions:
		return agg.TotalSessions
	case MetricLongestSession:
		return agg.LongestSessionSeconds
	case MetricSpam, MetricEmoji:
		var sum int64
		for category, stat := range agg.Counters {
			if metric == MetricSpam && IsSpamCategory(category) {
				sum += stat.Count
			}
			if metric == MetricEmoji && IsEmojiCategory(category) {
				sum += stat.Count
			}
		}
		return sum
	}
	return 0
}

// Leaderboard returns the top users by metric, descending. For
// call_seconds the value is scoped to the given guild; other metrics are
// global per user.
func (s *AggregateStore) Leaderboard(guildID, metric string, limit int) []LeaderboardEntry {
	s.mu.RLock()
	entries := make([]*lockedAggregate, 0, len(s.users))
	for _, entry := range s.users {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	board := make([]LeaderboardEntry, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		value := s.metricValue(entry.agg, guildID, metric)
		userID := entry.agg.UserID
		entry.mu.Unlock()
		if value > 0 {
			board = append(board, LeaderboardEntry{UserID: userID, Value: value})
		}
	}

	sort.Slice(board, func(i, j int) bool {
		if board[i].Value != board[j].Value {
			return board[i].Value > board[j].Value
		}
		return board[i].UserID < board[j].UserID
	})

	if limit > 0 && len(board) > limit {
		board = board[:limit]
	}
	return board
}

// GetData returns a deep copy of all aggregates for snapshotting.
func (s *AggregateStore) GetData() map[string]*UserAggregate {
	s.mu.RLock()
	entries := make(map[string]*lockedAggregate, len(s.users))
	for id, entry := range s.users {
		entries[id] = entry
	}
	s.mu.RUnlock()

	result := make(map[string]*UserAggregate, len(entries))
	for id, entry := range entries {
		entry.mu.Lock()
		result[id] = entry.agg.Clone()
		entry.mu.Unlock()
	}
	return result
}

// PutData replaces the store contents from a loaded snapshot.
func (s *AggregateStore) PutData(data map[string]*UserAggregate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]*lockedAggregate, len(data))
	for id, agg := range data {
		if agg == nil || id == "" {
			continue
		}
		agg.UserID = id
		agg.normalize()
		s.users[id] = &lockedAggregate{agg: agg}
	}
}
