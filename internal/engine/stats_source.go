package engine

import (
	"tallyd/internal/providers"
	"tallyd/internal/services"
)

// StatsSource feeds the prometheus gauges without making the metrics
// provider depend on the engine.
type StatsSource struct {
	tracker    *SessionTracker
	aggregates services.AggregateServiceInterface
}

func NewStatsSource(tracker *SessionTracker, aggregates services.AggregateServiceInterface) providers.GaugeSource {
	return &StatsSource{tracker: tracker, aggregates: aggregates}
}

func (s *StatsSource) OpenSessionCount() int {
	return s.tracker.OpenCount()
}

func (s *StatsSource) TrackedUserCount() int {
	return s.aggregates.TrackedUserCount()
}
