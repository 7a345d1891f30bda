package models

import (
	"errors"
	"time"
)

type PresenceKind string

const (
	PresenceJoined PresenceKind = "joined"
	PresenceLeft   PresenceKind = "left"
	PresenceMoved  PresenceKind = "moved"
)

var (
	ErrMissingTimestamp = errors.New("event has no timestamp")
	ErrMissingUser      = errors.New("event has no user id")
	ErrMissingGuild     = errors.New("event has no guild id")
	ErrUnknownKind      = errors.New("unknown presence kind")
)

// PresenceEvent is a normalized voice-state transition delivered by an
// event source adapter. ChannelID is the destination channel for joined
// and moved events; FromChannelID is only set for moved.
type PresenceEvent struct {
	UserID        string       `json:"user_id"`
	GuildID       string       `json:"guild_id"`
	ChannelID     string       `json:"channel_id,omitempty"`
	FromChannelID string       `json:"from_channel_id,omitempty"`
	Kind          PresenceKind `json:"kind"`
	Timestamp     time.Time    `json:"ts"`
}

func (e *PresenceEvent) Validate() error {
	if e.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if e.UserID == "" {
		return ErrMissingUser
	}
	if e.GuildID == "" {
		return ErrMissingGuild
	}
	switch e.Kind {
	case PresenceJoined, PresenceLeft, PresenceMoved:
		return nil
	}
	return ErrUnknownKind
}

// MessageEvent carries message text for classification only. Content is
// never persisted; it is reduced to counters and fingerprints before the
// event is dropped.
type MessageEvent struct {
	UserID    string    `json:"user_id"`
	GuildID   string    `json:"guild_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
}

func (e *MessageEvent) Validate() error {
	if e.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if e.UserID == "" {
		return ErrMissingUser
	}
	if e.GuildID == "" {
		return ErrMissingGuild
	}
	return nil
}
