// Package observability holds the process-wide Prometheus instruments.
package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricSet struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	upstream      *prometheus.HistogramVec
	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	resolve       *prometheus.CounterVec
	resolveCache  *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobItems      *prometheus.CounterVec
	events        *prometheus.CounterVec
}

var (
	mu  sync.RWMutex
	set = newMetricSet()
)

func newMetricSet() *metricSet {
	return &metricSet{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"method", "route", "status"},
		),
		upstream: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_latency_seconds",
				Help:    "Latency of upstream API calls in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"upstream"},
		),
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_op_total",
				Help: "Store operations by op and result.",
			},
			[]string{"op", "result"},
		),
		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redis_operation_duration_seconds",
				Help:    "Duration of Redis operations in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"op"},
		),
		resolve: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proximity_resolve_total",
				Help: "Nearest-station resolutions by outcome.",
			},
			[]string{"outcome"},
		),
		resolveCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proximity_cache_results_total",
				Help: "Resolve cache lookups by outcome.",
			},
			[]string{"outcome"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_job_runs_total",
				Help: "Ingestion job runs by job and result.",
			},
			[]string{"job", "result"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_job_duration_seconds",
				Help:    "Ingestion job duration in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"job"},
		),
		jobItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_items_total",
				Help: "Items written by ingestion jobs.",
			},
			[]string{"job"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "change_events_total",
				Help: "Layer change events by direction and result.",
			},
			[]string{"direction", "result"},
		),
	}
}

func (s *metricSet) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.httpRequests, s.httpDuration, s.upstream,
		s.storeOps, s.storeDuration,
		s.resolve, s.resolveCache,
		s.jobRuns, s.jobDuration, s.jobItems,
		s.events,
	}
}

// Init swaps in a fresh instrument set and registers it on reg when enabled.
// Calls made before Init are recorded on an unregistered set.
func Init(reg prometheus.Registerer, enabled bool) {
	s := newMetricSet()
	if enabled && reg != nil {
		reg.MustRegister(s.collectors()...)
	}
	mu.Lock()
	set = s
	mu.Unlock()
}

func current() *metricSet {
	mu.RLock()
	defer mu.RUnlock()
	return set
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	s := current()
	st := strconv.Itoa(status)
	s.httpRequests.WithLabelValues(method, route, st).Inc()
	s.httpDuration.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	current().upstream.WithLabelValues(upstream).Observe(durationSeconds)
}

func ObserveStoreOp(op string, err error, durationSeconds float64) {
	s := current()
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.storeOps.WithLabelValues(op, result).Inc()
	s.storeDuration.WithLabelValues(op).Observe(durationSeconds)
}

// outcome is one of hit, absent, invalid, error
func ObserveResolve(outcome string) {
	current().resolve.WithLabelValues(outcome).Inc()
}

func IncResolveCacheHit() {
	current().resolveCache.WithLabelValues("hit").Inc()
}

func IncResolveCacheMiss() {
	current().resolveCache.WithLabelValues("miss").Inc()
}

func ObserveJob(job string, err error, dur time.Duration, items int) {
	s := current()
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.jobRuns.WithLabelValues(job, result).Inc()
	s.jobDuration.WithLabelValues(job).Observe(dur.Seconds())
	if items > 0 {
		s.jobItems.WithLabelValues(job).Add(float64(items))
	}
}

// direction is publish or consume
func IncChangeEvent(direction, result string) {
	current().events.WithLabelValues(direction, result).Inc()
}
