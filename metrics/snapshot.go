package metrics

import "time"

// SystemSnapshot is an immutable point-in-time record of process and host
// resource usage.
type SystemSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// CPUPercent is the process CPU-time delta over the sampling interval,
	// expressed as a percentage. Not clamped: values above 100 are
	// possible on multi-core hosts.
	CPUPercent float64 `json:"cpu_percent"`
	CPUCores   int     `json:"cpu_cores"`

	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`

	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes   uint64 `json:"heap_sys_bytes"`
	SysBytes       uint64 `json:"sys_bytes"`
	RSSBytes       uint64 `json:"rss_bytes"`

	// MemoryUsedPercent is host memory utilization.
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	MemoryTotalBytes  uint64  `json:"memory_total_bytes"`

	// UptimeSeconds is the elapsed time since the collector started.
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// EndpointStats summarizes activity for one endpoint+method pair.
type EndpointStats struct {
	Requests        int64         `json:"requests"`
	Successes       int64         `json:"successes"`
	Failures        int64         `json:"failures"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	LastAccess      time.Time     `json:"last_access"`
}

// AppSnapshot is an immutable point-in-time record of application-side
// request activity.
type AppSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	TotalRequests  int64 `json:"total_requests"`
	TotalSuccesses int64 `json:"total_successes"`
	TotalFailures  int64 `json:"total_failures"`

	// RequestRate is requests per second since the collector started.
	RequestRate float64 `json:"request_rate"`

	// ErrorRate is the failure percentage of all requests.
	ErrorRate float64 `json:"error_rate"`

	AvgResponseTime time.Duration `json:"avg_response_time"`
	P50ResponseTime time.Duration `json:"p50_response_time"`
	P90ResponseTime time.Duration `json:"p90_response_time"`
	P95ResponseTime time.Duration `json:"p95_response_time"`
	P99ResponseTime time.Duration `json:"p99_response_time"`

	Endpoints map[string]EndpointStats `json:"endpoints,omitempty"`
}

// Sample pairs the system and application snapshots taken on one tick.
type Sample struct {
	System SystemSnapshot `json:"system"`
	App    AppSnapshot    `json:"app"`
}
