package models

import "time"

// CounterStat is one behavioral counter bucket for a user.
type CounterStat struct {
	Count           int64     `json:"count"`
	LastTriggeredAt time.Time `json:"last_triggered_at"`
}

// UserAggregate is the durable per-user rollup. TotalCallSeconds equals
// the sum of DurationSeconds over all closed sessions for the user;
// it is updated together with session closure, never recomputed by
// re-scanning sessions in the steady state.
type UserAggregate struct {
	UserID                string                  `json:"user_id"`
	TotalCallSeconds      int64                   `json:"total_call_seconds"`
	TotalSessions         int64                   `json:"total_sessions"`
	LongestSessionSeconds int64                   `json:"longest_session_seconds"`
	AverageSessionSeconds int64                   `json:"average_session_seconds"`
	GuildCallSeconds      map[string]int64        `json:"guild_call_seconds,omitempty"`
	LastActiveAt          time.Time               `json:"last_active_at"`
	Counters              map[string]*CounterStat `json:"counters,omitempty"`
	Heatmap               *Heatmap                `json:"heatmap,omitempty"`
}

func NewUserAggregate(userID string) *UserAggregate {
	return &UserAggregate{
		UserID:           userID,
		GuildCallSeconds: make(map[string]int64),
		Counters:         make(map[string]*CounterStat),
		Heatmap:          NewHeatmap(),
	}
}

// normalize fills nil maps after a snapshot load so callers never need
// nil checks on the hot path.
func (a *UserAggregate) normalize() {
	if a.GuildCallSeconds == nil {
		a.GuildCallSeconds = make(map[string]int64)
	}
	if a.Counters == nil {
		a.Counters = make(map[string]*CounterStat)
	}
	if a.Heatmap == nil {
		a.Heatmap = NewHeatmap()
	}
}

func (a *UserAggregate) Clone() *UserAggregate {
	cp := &UserAggregate{
		UserID:                a.UserID,
		TotalCallSeconds:      a.TotalCallSeconds,
		TotalSessions:         a.TotalSessions,
		LongestSessionSeconds: a.LongestSessionSeconds,
		AverageSessionSeconds: a.AverageSessionSeconds,
		GuildCallSeconds:      make(map[string]int64, len(a.GuildCallSeconds)),
		LastActiveAt:          a.LastActiveAt,
		Counters:              make(map[string]*CounterStat, len(a.Counters)),
	}
	for g, v := range a.GuildCallSeconds {
		cp.GuildCallSeconds[g] = v
	}
	for c, v := range a.Counters {
		stat := *v
		cp.Counters[c] = &stat
	}
	if a.Heatmap != nil {
		cp.Heatmap = a.Heatmap.Clone()
	}
	return cp
}
