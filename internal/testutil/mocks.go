package testutil

import (
	"sync"
	"time"

	"tallyd/internal/models"
	"tallyd/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// CountLevel returns how many entries were recorded at the given level.
func (m *MockLogger) CountLevel(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level {
			n++
		}
	}
	return n
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu          sync.Mutex
	Events      map[string]int
	Rejected    int
	Anomalies   map[string]int
	Detections  map[string]int
	Requests    int
	CacheHits   int
	CacheMisses int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Events:     make(map[string]int),
		Anomalies:  make(map[string]int),
		Detections: make(map[string]int),
	}
}

func (m *MockMetrics) IncEventsTotal(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events[kind]++
}

func (m *MockMetrics) IncRejectedEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejected++
}

func (m *MockMetrics) IncAnomalies(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Anomalies[kind]++
}

func (m *MockMetrics) IncDetections(category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Detections[category]++
}

func (m *MockMetrics) IncRequestsTotal(endpoint string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests++
}

func (m *MockMetrics) ObserveRequestDuration(endpoint string, duration time.Duration) {}
func (m *MockMetrics) ObserveDispatchDuration(duration time.Duration)                 {}
func (m *MockMetrics) ObservePersistenceDuration(duration time.Duration)              {}

func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

func (m *MockMetrics) DetectionCount(category string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Detections[category]
}

func (m *MockMetrics) AnomalyCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Anomalies[kind]
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {}

// MockWriter implements services.AggregateWriter and records every call.
type MockWriter struct {
	mu       sync.Mutex
	Opened   []*models.VoiceSession
	Closed   []*models.VoiceSession
	Upserts  []*models.UserAggregate
	Counters []CounterCall
	Erased   []string
	FailWith error
}

type CounterCall struct {
	UserID   string
	Category string
	Count    int64
}

func (m *MockWriter) SessionOpened(session *models.VoiceSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Opened = append(m.Opened, session)
	return nil
}

func (m *MockWriter) SessionClosed(session *models.VoiceSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Closed = append(m.Closed, session)
	return nil
}

func (m *MockWriter) AggregateUpdated(agg *models.UserAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Upserts = append(m.Upserts, agg)
	return nil
}

func (m *MockWriter) CounterIncremented(userID, category string, stat *models.CounterStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Counters = append(m.Counters, CounterCall{UserID: userID, Category: category, Count: stat.Count})
	return nil
}

func (m *MockWriter) EraseUser(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Erased = append(m.Erased, userID)
	return nil
}

func (m *MockWriter) Close() error { return nil }
