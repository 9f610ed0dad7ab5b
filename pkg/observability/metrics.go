package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Global metrics instance for singleton pattern
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Data service metrics
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	// Cache metrics
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CacheRecomputes prometheus.Counter
	CacheCoalesced  prometheus.Counter

	// Fan-out metrics
	ActivitiesCreated  *prometheus.CounterVec
	FanoutFailures     prometheus.Counter
	FanoutSuppressions prometheus.Counter

	// Realtime metrics
	RealtimeEvents     *prometheus.CounterVec
	RealtimeReconnects prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	// Use singleton pattern to avoid duplicate registration in tests
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	// Return existing collector if already created
	if globalCollector != nil {
		return globalCollector
	}

	// Create a new registry for this collector
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "data_service_operation_duration_seconds",
			Help:      "Data service operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "relation"},
	)

	queryErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_service_errors_total",
			Help:      "Total number of data service errors",
		},
		[]string{"operation", "relation", "type"},
	)

	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
	)

	cacheMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
	)

	cacheRecomputes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_recomputes_total",
			Help:      "Total number of cache recomputations",
		},
	)

	cacheCoalesced := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_coalesced_total",
			Help:      "Invalidations absorbed into an already-running recomputation",
		},
	)

	activitiesCreated := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_created_total",
			Help:      "Total number of activity notifications created",
		},
		[]string{"type"},
	)

	fanoutFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_failures_total",
			Help:      "Activity writes that failed after a successful primary write",
		},
	)

	fanoutSuppressions := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_suppressions_total",
			Help:      "Activity writes skipped because actor and recipient match",
		},
	)

	realtimeEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Change feed events received per relation",
		},
		[]string{"relation"},
	)

	realtimeReconnects := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_reconnects_total",
			Help:      "Change feed reconnections",
		},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		queryDuration,
		queryErrors,
		cacheHits,
		cacheMisses,
		cacheRecomputes,
		cacheCoalesced,
		activitiesCreated,
		fanoutFailures,
		fanoutSuppressions,
		realtimeEvents,
		realtimeReconnects,
	)

	globalCollector = &Collector{
		registry:           registry,
		HTTPRequests:       httpRequests,
		HTTPDuration:       httpDuration,
		QueryDuration:      queryDuration,
		QueryErrors:        queryErrors,
		CacheHits:          cacheHits,
		CacheMisses:        cacheMisses,
		CacheRecomputes:    cacheRecomputes,
		CacheCoalesced:     cacheCoalesced,
		ActivitiesCreated:  activitiesCreated,
		FanoutFailures:     fanoutFailures,
		FanoutSuppressions: fanoutSuppressions,
		RealtimeEvents:     realtimeEvents,
		RealtimeReconnects: realtimeReconnects,
	}
	return globalCollector
}

// Handler returns an HTTP handler exposing the collector's registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveQuery records the duration and outcome of one data service operation
func (c *Collector) ObserveQuery(operation, relation string, start time.Time, err error) {
	c.QueryDuration.WithLabelValues(operation, relation).Observe(time.Since(start).Seconds())
	if err != nil {
		c.QueryErrors.WithLabelValues(operation, relation, "error").Inc()
	}
}
