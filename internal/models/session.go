package models

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

type CloseReason string

const (
	CloseLeft     CloseReason = "left"
	CloseMoved    CloseReason = "moved"
	CloseForced   CloseReason = "forced_close"
	CloseShutdown CloseReason = "shutdown"
	CloseRecovery CloseReason = "recovery"
)

// VoiceSession is one contiguous interval a user spent in a single voice
// channel. LeftAt is nil while the session is open.
type VoiceSession struct {
	SessionID       string      `json:"session_id"`
	UserID          string      `json:"user_id"`
	GuildID         string      `json:"guild_id"`
	ChannelID       string      `json:"channel_id"`
	JoinedAt        time.Time   `json:"joined_at"`
	LeftAt          *time.Time  `json:"left_at,omitempty"`
	DurationSeconds int64       `json:"duration_seconds,omitempty"`
	Reason          CloseReason `json:"reason,omitempty"`
	Estimated       bool        `json:"estimated,omitempty"`
}

func NewVoiceSession(userID, guildID, channelID string, joinedAt time.Time) *VoiceSession {
	return &VoiceSession{
		SessionID: sessionID(userID, guildID, joinedAt),
		UserID:    userID,
		GuildID:   guildID,
		ChannelID: channelID,
		JoinedAt:  joinedAt,
	}
}

func sessionID(userID, guildID string, joinedAt time.Time) string {
	d := xxhash.New()
	_, _ = d.WriteString(guildID)
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(userID)
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(strconv.FormatInt(joinedAt.UnixNano(), 10))
	return strconv.FormatUint(d.Sum64(), 16)
}

func (s *VoiceSession) IsOpen() bool {
	return s.LeftAt == nil
}

// Close sets LeftAt and the derived duration. A leave timestamp earlier
// than the join is clamped to zero, never negative.
func (s *VoiceSession) Close(ts time.Time, reason CloseReason) {
	left := ts
	s.LeftAt = &left
	s.Reason = reason
	dur := int64(ts.Sub(s.JoinedAt).Seconds())
	if dur < 0 {
		dur = 0
	}
	s.DurationSeconds = dur
}

func (s *VoiceSession) Clone() *VoiceSession {
	cp := *s
	if s.LeftAt != nil {
		left := *s.LeftAt
		cp.LeftAt = &left
	}
	return &cp
}
