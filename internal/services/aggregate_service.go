package services

import (
	"time"

	"tallyd/internal/models"
	"tallyd/internal/providers"
	"tallyd/internal/structures"
)

// AggregateWriter is the durable write-through sink. The file snapshot
// path does not need one (the scheduler persists whole snapshots); the
// postgres driver implements it for per-record durability.
type AggregateWriter interface {
	SessionOpened(session *models.VoiceSession) error
	SessionClosed(session *models.VoiceSession) error
	AggregateUpdated(agg *models.UserAggregate) error
	CounterIncremented(userID, category string, stat *models.CounterStat) error
	EraseUser(userID string) error
	Close() error
}

type AggregateServiceInterface interface {
	ApplySessionOpen(session *models.VoiceSession)
	ApplySessionClose(session *models.VoiceSession)
	ApplyCounterIncrement(userID, category string, ts time.Time)
	Touch(userID string, ts time.Time)
	GetUserAggregate(userID string) (*models.UserAggregate, bool)
	Leaderboard(guildID, metric string, limit int) []models.LeaderboardEntry
	Erase(userID string) bool
	TrackedUserCount() int
	GetSnapshotUsers() map[string]*models.UserAggregate
	PutSnapshotUsers(users map[string]*models.UserAggregate)
}

// AggregateService owns the in-memory authoritative aggregates and
// forwards each applied write to the durable writer with bounded
// retries. A failed durable write never rolls back memory: the snapshot
// persisted by the scheduler remains the recovery source, so accuracy
// degrades to eventual consistency instead of losing the update.
type AggregateService struct {
	store        *models.AggregateStore
	writer       AggregateWriter
	logger       providers.Logger
	maxRetries   int
	retryBackoff time.Duration
}

func NewAggregateService(conf *structures.Config, writer AggregateWriter, logger providers.Logger) AggregateServiceInterface {
	maxRetries := conf.Persistence.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := conf.Persistence.RetryBackoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	return &AggregateService{
		store:        models.NewAggregateStore(conf.Engine.MaxTrackedUsers),
		writer:       writer,
		logger:       logger,
		maxRetries:   maxRetries,
		retryBackoff: backoff,
	}
}

func (as *AggregateService) writeThrough(what string, op func() error) {
	if op == nil {
		return
	}
	backoff := as.retryBackoff
	var err error
	for attempt := 0; attempt < as.maxRetries; attempt++ {
		if err = op(); err == nil {
			return
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	as.logger.Errorf(providers.TypeApp, "durable write failed (%s), memory state retained: %s", what, err)
}

func (as *AggregateService) ApplySessionOpen(session *models.VoiceSession) {
	if as.writer != nil {
		as.writeThrough("session open", func() error { return as.writer.SessionOpened(session) })
	}
}

func (as *AggregateService) ApplySessionClose(session *models.VoiceSession) {
	as.store.ApplySessionClose(session)
	if as.writer != nil {
		as.writeThrough("session close", func() error { return as.writer.SessionClosed(session) })
		if agg, ok := as.store.Get(session.UserID); ok {
			as.writeThrough("aggregate upsert", func() error { return as.writer.AggregateUpdated(agg) })
		}
	}
}

func (as *AggregateService) ApplyCounterIncrement(userID, category string, ts time.Time) {
	as.store.ApplyCounterIncrement(userID, category, ts)
	if as.writer != nil {
		agg, ok := as.store.Get(userID)
		if !ok {
			return
		}
		stat, ok := agg.Counters[category]
		if !ok {
			return
		}
		as.writeThrough("counter upsert", func() error {
			return as.writer.CounterIncremented(userID, category, stat)
		})
	}
}

func (as *AggregateService) Touch(userID string, ts time.Time) {
	as.store.Touch(userID, ts)
}

func (as *AggregateService) GetUserAggregate(userID string) (*models.UserAggregate, bool) {
	return as.store.Get(userID)
}

func (as *AggregateService) Leaderboard(guildID, metric string, limit int) []models.LeaderboardEntry {
	return as.store.Leaderboard(guildID, metric, limit)
}

func (as *AggregateService) Erase(userID string) bool {
	ok := as.store.Erase(userID)
	if ok && as.writer != nil {
		as.writeThrough("user erase", func() error { return as.writer.EraseUser(userID) })
	}
	return ok
}

func (as *AggregateService) TrackedUserCount() int {
	return as.store.Len()
}

func (as *AggregateService) GetSnapshotUsers() map[string]*models.UserAggregate {
	return as.store.GetData()
}

func (as *AggregateService) PutSnapshotUsers(users map[string]*models.UserAggregate) {
	as.store.PutData(users)
}
