package models

import "time"

const SnapshotVersion = 2

// Snapshot is the on-disk state: all user rollups plus the sessions that
// were still open when it was taken. Window entries are deliberately
// absent: fingerprints must not outlive the process.
type Snapshot struct {
	Version      int                       `json:"version"`
	SavedAt      time.Time                 `json:"saved_at"`
	Users        map[string]*UserAggregate `json:"users"`
	OpenSessions []*VoiceSession           `json:"open_sessions,omitempty"`
}
