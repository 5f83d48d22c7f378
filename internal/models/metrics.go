package models

import "time"

// SystemMetrics is a lightweight JSON view over the Prometheus collectors.
type SystemMetrics struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	Decisions                uint64            `json:"decisions"`
	PassesIssued             uint64            `json:"passes_issued"`
	GateScans                map[string]uint64 `json:"gate_scans"`
	SchedulerFailures        uint64            `json:"scheduler_failures"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
