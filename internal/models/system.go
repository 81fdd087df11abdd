package models

import "time"

// SystemMetrics is a point-in-time summary of request and backend instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	BackendCallCount         uint64    `json:"backend_call_count"`
	AverageBackendCallMs     float64   `json:"average_backend_call_ms"`
	TranslationMisses        uint64    `json:"translation_misses"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
