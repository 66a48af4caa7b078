package models

import "time"

// SystemMetrics is an aggregated snapshot served to dashboards.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	PunchesTotal             uint64    `json:"punches_total"`
	ShiftsGeneratedTotal     uint64    `json:"shifts_generated_total"`
	ReportPDFsTotal          uint64    `json:"report_pdfs_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
