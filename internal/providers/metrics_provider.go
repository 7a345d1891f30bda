package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tallyd/internal/structures"
)

type MetricsProviderInterface interface {
	IncEventsTotal(kind string)
	IncRejectedEvents()
	IncAnomalies(kind string)
	IncDetections(category string)
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	ObserveDispatchDuration(duration time.Duration)
	ObservePersistenceDuration(duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
}

// GaugeSource supplies values for the engine gauges without coupling the
// engine to prometheus.
type GaugeSource interface {
	OpenSessionCount() int
	TrackedUserCount() int
}

type MetricsProvider struct {
	eventsTotal         *prometheus.CounterVec
	rejectedEvents      prometheus.Counter
	anomaliesTotal      *prometheus.CounterVec
	detectionsTotal     *prometheus.CounterVec
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	dispatchDuration    prometheus.Histogram
	persistenceDuration prometheus.Histogram
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
}

func (m *MetricsProvider) IncEventsTotal(kind string) {
	m.eventsTotal.WithLabelValues(kind).Inc()
}

func (m *MetricsProvider) IncRejectedEvents() {
	m.rejectedEvents.Inc()
}

func (m *MetricsProvider) IncAnomalies(kind string) {
	m.anomaliesTotal.WithLabelValues(kind).Inc()
}

func (m *MetricsProvider) IncDetections(category string) {
	m.detectionsTotal.WithLabelValues(category).Inc()
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) ObserveDispatchDuration(duration time.Duration) {
	m.dispatchDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config, source GaugeSource) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		eventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tallyd_events_total",
			Help: "Total number of processed events by kind",
		}, []string{"kind"}),

		rejectedEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tallyd_rejected_events_total",
			Help: "Total number of events rejected at the boundary",
		}),

		anomaliesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tallyd_anomalies_total",
			Help: "Total number of protocol anomalies by kind",
		}, []string{"kind"}),

		detectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tallyd_detections_total",
			Help: "Total number of positive classifications by category",
		}, []string{"category"}),

		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tallyd_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tallyd_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		dispatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tallyd_event_dispatch_seconds",
			Help:    "Duration of in-memory event dispatch in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-6, 10, 8),
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tallyd_persistence_duration_seconds",
			Help:    "Duration of persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tallyd_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tallyd_cache_misses_total",
			Help: "Total number of cache misses",
		}),
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tallyd_open_sessions",
		Help: "Number of currently open voice sessions",
	}, func() float64 {
		return float64(source.OpenSessionCount())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tallyd_tracked_users",
		Help: "Number of users with an aggregate record",
	}, func() float64 {
		return float64(source.TrackedUserCount())
	})

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncEventsTotal(_ string)                          {}
func (n *noopMetrics) IncRejectedEvents()                               {}
func (n *noopMetrics) IncAnomalies(_ string)                            {}
func (n *noopMetrics) IncDetections(_ string)                           {}
func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) ObserveDispatchDuration(_ time.Duration)          {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
