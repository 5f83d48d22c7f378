package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/hostel-outing-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	decisions       *prometheus.CounterVec
	passesIssued    *prometheus.CounterVec
	gateScans       *prometheus.CounterVec
	schedulerRuns   *prometheus.CounterVec
	schedulerFailed *prometheus.CounterVec
	schedulerLast   *prometheus.GaugeVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	decisionCount        uint64
	issuedCount          uint64
	schedulerFailCount   uint64

	scanMu     sync.Mutex
	scanCounts map[string]uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outing_decisions_total",
		Help: "Approval decisions applied, by stage and verdict",
	}, []string{"level", "decision"})

	passesIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outing_passes_issued_total",
		Help: "Gate passes minted, by direction and trigger",
	}, []string{"direction", "trigger"})

	gateScans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outing_gate_scans_total",
		Help: "Gate scans, by direction and result code",
	}, []string{"direction", "result"})

	schedulerRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outing_scheduler_runs_total",
		Help: "Scheduler passes completed, by job",
	}, []string{"job"})

	schedulerFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outing_scheduler_failures_total",
		Help: "Per-request scheduler failures, by job",
	}, []string{"job"})

	schedulerLast := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "outing_scheduler_last_run_timestamp_seconds",
		Help: "Unix time of the last completed scheduler pass, by job",
	}, []string{"job"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		decisions, passesIssued, gateScans, schedulerRuns, schedulerFailed, schedulerLast, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		decisions:       decisions,
		passesIssued:    passesIssued,
		gateScans:       gateScans,
		schedulerRuns:   schedulerRuns,
		schedulerFailed: schedulerFailed,
		schedulerLast:   schedulerLast,
		scanCounts:      make(map[string]uint64),
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordDecision counts an applied approval verdict.
func (m *MetricsService) RecordDecision(level models.Level, decision models.Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(level.Label(), string(decision)).Inc()
	atomic.AddUint64(&m.decisionCount, 1)
}

// RecordPassIssued counts a minted gate pass. trigger is one of approval,
// scan, scheduler, regenerate or manual.
func (m *MetricsService) RecordPassIssued(direction models.Direction, trigger string) {
	if m == nil {
		return
	}
	m.passesIssued.WithLabelValues(string(direction), trigger).Inc()
	atomic.AddUint64(&m.issuedCount, 1)
}

// RecordGateScan counts a scan attempt by outcome code ("OK" on success).
func (m *MetricsService) RecordGateScan(direction models.Direction, result string) {
	if m == nil {
		return
	}
	dir := string(direction)
	if dir == "" {
		dir = "unknown"
	}
	m.gateScans.WithLabelValues(dir, result).Inc()
	m.scanMu.Lock()
	m.scanCounts[result]++
	m.scanMu.Unlock()
}

// RecordSchedulerRun marks a completed pass and how many requests failed in it.
func (m *MetricsService) RecordSchedulerRun(job string, failures int, at time.Time) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(job).Inc()
	m.schedulerLast.WithLabelValues(job).Set(float64(at.Unix()))
	if failures > 0 {
		m.schedulerFailed.WithLabelValues(job).Add(float64(failures))
		atomic.AddUint64(&m.schedulerFailCount, uint64(failures))
	}
}

// Snapshot returns aggregated metrics suitable for a JSON status endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	m.scanMu.Lock()
	scans := make(map[string]uint64, len(m.scanCounts))
	for k, v := range m.scanCounts {
		scans[k] = v
	}
	m.scanMu.Unlock()

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		Decisions:                atomic.LoadUint64(&m.decisionCount),
		PassesIssued:             atomic.LoadUint64(&m.issuedCount),
		GateScans:                scans,
		SchedulerFailures:        atomic.LoadUint64(&m.schedulerFailCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
