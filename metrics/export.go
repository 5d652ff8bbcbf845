package metrics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Format selects an export rendering. Every format derives from the same
// Report value.
type Format int

const (
	// FormatJSON renders the report as an indented JSON object.
	FormatJSON Format = iota
	// FormatPrometheus renders a line-oriented exposition format with
	// quantile labels.
	FormatPrometheus
	// FormatCSV renders flat timestamp,metric,value,unit rows.
	FormatCSV
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatPrometheus:
		return "prometheus"
	case FormatCSV:
		return "csv"
	default:
		return "json"
	}
}

// Export renders the aggregated report for the window in the requested
// format.
func (c *Collector) Export(format Format, window time.Duration) ([]byte, error) {
	r := c.Report(window)

	switch format {
	case FormatJSON:
		return json.MarshalIndent(r, "", "  ")
	case FormatPrometheus:
		return renderPrometheus(r), nil
	case FormatCSV:
		return renderCSV(r)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
}

// renderPrometheus writes one exposition line per series, quantiles as
// labeled samples.
func renderPrometheus(r Report) []byte {
	var b strings.Builder

	writeLine := func(name string, value float64) {
		fmt.Fprintf(&b, "%s %g\n", name, value)
	}
	writeQuantile := func(name, q string, value float64) {
		fmt.Fprintf(&b, "%s{quantile=%q} %g\n", name, q, value)
	}

	sys := r.System.Latest
	writeLine("system_cpu_percent", sys.CPUPercent)
	writeLine("system_cpu_cores", float64(sys.CPUCores))
	writeLine("system_load1", sys.Load1)
	writeLine("system_load5", sys.Load5)
	writeLine("system_load15", sys.Load15)
	writeLine("system_heap_alloc_bytes", float64(sys.HeapAllocBytes))
	writeLine("system_rss_bytes", float64(sys.RSSBytes))
	writeLine("system_memory_used_percent", sys.MemoryUsedPercent)
	writeLine("system_uptime_seconds", sys.UptimeSeconds)

	writeLine("app_requests_total", float64(r.App.TotalRequests))
	writeLine("app_request_successes_total", float64(r.App.TotalSuccesses))
	writeLine("app_request_failures_total", float64(r.App.TotalFailures))
	writeLine("app_request_rate", r.App.RequestRate)
	writeLine("app_error_rate_percent", r.App.ErrorRate)
	writeLine("app_response_time_avg_ms", float64(r.App.AvgResponseTime.Milliseconds()))
	writeQuantile("app_response_time_ms", "0.5", float64(r.App.P50ResponseTime.Milliseconds()))
	writeQuantile("app_response_time_ms", "0.9", float64(r.App.P90ResponseTime.Milliseconds()))
	writeQuantile("app_response_time_ms", "0.95", float64(r.App.P95ResponseTime.Milliseconds()))
	writeQuantile("app_response_time_ms", "0.99", float64(r.App.P99ResponseTime.Milliseconds()))

	for _, series := range r.Custom {
		name := "custom_" + sanitizeMetricName(series.Name)
		writeLine(name+"_count", float64(series.Count))
		writeLine(name+"_sum", series.Sum)
		writeLine(name+"_avg", series.Avg)
		writeQuantile(name, "0.5", series.P50)
		writeQuantile(name, "0.9", series.P90)
		writeQuantile(name, "0.95", series.P95)
		writeQuantile(name, "0.99", series.P99)
	}

	return []byte(b.String())
}

// renderCSV writes timestamp,metric,value,unit rows.
func renderCSV(r Report) ([]byte, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write([]string{"timestamp", "metric", "value", "unit"}); err != nil {
		return nil, err
	}

	ts := r.GeneratedAt.UTC().Format(time.RFC3339)
	row := func(metric string, value float64, unit string) {
		w.Write([]string{ts, metric, fmt.Sprintf("%g", value), unit})
	}

	sys := r.System.Latest
	row("system_cpu_percent", sys.CPUPercent, "percent")
	row("system_cpu_cores", float64(sys.CPUCores), "count")
	row("system_load1", sys.Load1, "load")
	row("system_heap_alloc_bytes", float64(sys.HeapAllocBytes), "bytes")
	row("system_rss_bytes", float64(sys.RSSBytes), "bytes")
	row("system_memory_used_percent", sys.MemoryUsedPercent, "percent")
	row("system_uptime_seconds", sys.UptimeSeconds, "seconds")

	row("app_requests_total", float64(r.App.TotalRequests), "count")
	row("app_request_failures_total", float64(r.App.TotalFailures), "count")
	row("app_request_rate", r.App.RequestRate, "per_second")
	row("app_error_rate_percent", r.App.ErrorRate, "percent")
	row("app_response_time_avg_ms", float64(r.App.AvgResponseTime.Milliseconds()), "ms")
	row("app_response_time_p50_ms", float64(r.App.P50ResponseTime.Milliseconds()), "ms")
	row("app_response_time_p90_ms", float64(r.App.P90ResponseTime.Milliseconds()), "ms")
	row("app_response_time_p95_ms", float64(r.App.P95ResponseTime.Milliseconds()), "ms")
	row("app_response_time_p99_ms", float64(r.App.P99ResponseTime.Milliseconds()), "ms")

	for _, series := range r.Custom {
		name := "custom_" + sanitizeMetricName(series.Name)
		row(name+"_count", float64(series.Count), "count")
		row(name+"_avg", series.Avg, "value")
		row(name+"_p95", series.P95, "value")
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// sanitizeMetricName maps arbitrary metric names onto the exposition
// charset [a-zA-Z0-9_].
func sanitizeMetricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
