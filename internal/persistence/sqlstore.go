package persistence

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"tallyd/internal/models"
	"tallyd/internal/providers"
	"tallyd/internal/services"
	"tallyd/internal/structures"
)

// SQLStore is the write-through durable sink for the postgres driver:
// one row per session (with an explicit open marker), one aggregate row
// per user, one row per (user, category) counter. Window entries are
// never written here.
type SQLStore struct {
	conn   *sql.DB
	logger providers.Logger
}

// NewAggregateWriter returns the configured durable writer, or nil when
// the file driver is selected (the snapshot file then carries full
// durability on its own).
func NewAggregateWriter(conf *structures.Config, logger providers.Logger) (services.AggregateWriter, error) {
	if conf.Persistence.Driver != "postgres" {
		return nil, nil
	}

	conn, err := sql.Open("postgres", conf.Persistence.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLStore{conn: conn, logger: logger}
	if err := store.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	logger.Infof(providers.TypeApp, "Postgres write-through enabled")
	return store, nil
}

func (s *SQLStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS voice_sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL,
			left_at TIMESTAMPTZ,
			duration_seconds BIGINT NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			estimated BOOLEAN NOT NULL DEFAULT FALSE,
			open BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS user_aggregates (
			user_id TEXT PRIMARY KEY,
			total_call_seconds BIGINT NOT NULL DEFAULT 0,
			total_sessions BIGINT NOT NULL DEFAULT 0,
			longest_session_seconds BIGINT NOT NULL DEFAULT 0,
			last_active_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS user_counters (
			user_id TEXT NOT NULL,
			category TEXT NOT NULL,
			count BIGINT NOT NULL DEFAULT 0,
			last_triggered_at TIMESTAMPTZ,
			PRIMARY KEY (user_id, category)
		)`,
	}

	for _, query := range queries {
		if _, err := s.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) SessionOpened(session *models.VoiceSession) error {
	_, err := s.conn.Exec(`
		INSERT INTO voice_sessions (session_id, user_id, guild_id, channel_id, joined_at, open)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (session_id) DO NOTHING`,
		session.SessionID, session.UserID, session.GuildID, session.ChannelID, session.JoinedAt)
	return err
}

func (s *SQLStore) SessionClosed(session *models.VoiceSession) error {
	_, err := s.conn.Exec(`
		INSERT INTO voice_sessions (session_id, user_id, guild_id, channel_id, joined_at, left_at, duration_seconds, reason, estimated, open)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
		ON CONFLICT (session_id) DO UPDATE SET
			left_at = EXCLUDED.left_at,
			duration_seconds = EXCLUDED.duration_seconds,
			reason = EXCLUDED.reason,
			estimated = EXCLUDED.estimated,
			open = FALSE`,
		session.SessionID, session.UserID, session.GuildID, session.ChannelID,
		session.JoinedAt, session.LeftAt, session.DurationSeconds, string(session.Reason), session.Estimated)
	return err
}

func (s *SQLStore) AggregateUpdated(agg *models.UserAggregate) error {
	_, err := s.conn.Exec(`
		INSERT INTO user_aggregates (user_id, total_call_seconds, total_sessions, longest_session_seconds, last_active_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			total_call_seconds = EXCLUDED.total_call_seconds,
			total_sessions = EXCLUDED.total_sessions,
			longest_session_seconds = EXCLUDED.longest_session_seconds,
			last_active_at = EXCLUDED.last_active_at`,
		agg.UserID, agg.TotalCallSeconds, agg.TotalSessions, agg.LongestSessionSeconds, agg.LastActiveAt)
	return err
}

func (s *SQLStore) CounterIncremented(userID, category string, stat *models.CounterStat) error {
	_, err := s.conn.Exec(`
		INSERT INTO user_counters (user_id, category, count, last_triggered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, category) DO UPDATE SET
			count = EXCLUDED.count,
			last_triggered_at = EXCLUDED.last_triggered_at`,
		userID, category, stat.Count, stat.LastTriggeredAt)
	return err
}

func (s *SQLStore) EraseUser(userID string) error {
	for _, query := range []string{
		`DELETE FROM voice_sessions WHERE user_id = $1`,
		`DELETE FROM user_counters WHERE user_id = $1`,
		`DELETE FROM user_aggregates WHERE user_id = $1`,
	} {
		if _, err := s.conn.Exec(query, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.conn.Close()
}
