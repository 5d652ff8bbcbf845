package metrics

import (
	"fmt"
	"time"
)

// System health classifications derived from the latest snapshot in a
// report window.
const (
	HealthGood     = "good"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// SystemSummary aggregates system snapshots over a report window.
type SystemSummary struct {
	Latest           SystemSnapshot `json:"latest"`
	AvgCPUPercent    float64        `json:"avg_cpu_percent"`
	MaxCPUPercent    float64        `json:"max_cpu_percent"`
	AvgMemoryPercent float64        `json:"avg_memory_percent"`
	MaxMemoryPercent float64        `json:"max_memory_percent"`
}

// Report is the aggregated metrics view over a lookup window. All export
// formats render the same Report value; no format recomputes anything.
type Report struct {
	GeneratedAt     time.Time         `json:"generated_at"`
	Window          time.Duration     `json:"window"`
	SampleCount     int               `json:"sample_count"`
	System          SystemSummary     `json:"system"`
	App             AppSnapshot       `json:"app"`
	Custom          map[string]Series `json:"custom,omitempty"`
	SystemHealth    string            `json:"system_health"`
	Recommendations []string          `json:"recommendations,omitempty"`
}

// Report aggregates the snapshot history over the given window. An empty
// window falls back to the most recent snapshot; with no history at all a
// fresh application snapshot is synthesized so all derived figures default
// to zero. Never fails.
func (c *Collector) Report(window time.Duration) Report {
	if window <= 0 {
		window = time.Hour
	}
	now := time.Now()
	cutoff := now.Add(-window)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var samples []Sample
	for _, s := range c.history {
		if !s.System.Timestamp.Before(cutoff) {
			samples = append(samples, s)
		}
	}
	if len(samples) == 0 && len(c.history) > 0 {
		samples = c.history[len(c.history)-1:]
	}

	r := Report{
		GeneratedAt: now,
		Window:      window,
		SampleCount: len(samples),
		Custom:      make(map[string]Series),
	}

	if len(samples) > 0 {
		last := samples[len(samples)-1]
		r.System.Latest = last.System
		r.App = last.App

		for _, s := range samples {
			r.System.AvgCPUPercent += s.System.CPUPercent
			r.System.AvgMemoryPercent += s.System.MemoryUsedPercent
			if s.System.CPUPercent > r.System.MaxCPUPercent {
				r.System.MaxCPUPercent = s.System.CPUPercent
			}
			if s.System.MemoryUsedPercent > r.System.MaxMemoryPercent {
				r.System.MaxMemoryPercent = s.System.MemoryUsedPercent
			}
		}
		r.System.AvgCPUPercent /= float64(len(samples))
		r.System.AvgMemoryPercent /= float64(len(samples))
	} else {
		// No sampling has happened yet; report current counters with
		// zero-valued system figures.
		r.App = c.appSnapshotLocked(now)
		r.System.Latest = SystemSnapshot{Timestamp: now}
	}

	for _, cs := range c.custom {
		values := cs.valuesSince(cutoff)
		if len(values) == 0 {
			continue
		}
		name := ""
		if len(cs.samples) > 0 {
			name = cs.samples[len(cs.samples)-1].Name
		}
		r.Custom[name] = aggregate(name, cs.kind, values)
	}

	r.SystemHealth, r.Recommendations = c.classifyLocked(r)
	return r
}

// classifyLocked derives the systemHealth figure and recommendations from
// an assembled report. Caller holds c.mu (read).
func (c *Collector) classifyLocked(r Report) (string, []string) {
	t := c.config.Thresholds
	health := HealthGood
	var recs []string

	raise := func(level string) {
		if level == HealthCritical || health == HealthGood {
			health = level
		}
	}

	sys := r.System.Latest
	if sys.CPUPercent >= t.CPUCriticalPercent {
		raise(HealthCritical)
		recs = append(recs, fmt.Sprintf("CPU usage %.1f%% is critical, shed load or scale out", sys.CPUPercent))
	} else if sys.CPUPercent >= t.CPUWarningPercent {
		raise(HealthWarning)
		recs = append(recs, fmt.Sprintf("CPU usage %.1f%% is elevated", sys.CPUPercent))
	}

	if sys.MemoryUsedPercent >= t.MemoryCriticalPercent {
		raise(HealthCritical)
		recs = append(recs, fmt.Sprintf("memory usage %.1f%% is critical, consider a forced collection", sys.MemoryUsedPercent))
	} else if sys.MemoryUsedPercent >= t.MemoryWarningPercent {
		raise(HealthWarning)
		recs = append(recs, fmt.Sprintf("memory usage %.1f%% is elevated", sys.MemoryUsedPercent))
	}

	if r.App.AvgResponseTime >= t.ResponseTimeCritical {
		raise(HealthCritical)
		recs = append(recs, fmt.Sprintf("average response time %s is critical", r.App.AvgResponseTime.Round(time.Millisecond)))
	} else if r.App.AvgResponseTime >= t.ResponseTimeWarning {
		raise(HealthWarning)
		recs = append(recs, fmt.Sprintf("average response time %s is elevated", r.App.AvgResponseTime.Round(time.Millisecond)))
	}

	if r.App.TotalRequests > 0 {
		if r.App.ErrorRate >= t.ErrorRateCriticalPercent {
			raise(HealthCritical)
			recs = append(recs, fmt.Sprintf("error rate %.1f%% is critical", r.App.ErrorRate))
		} else if r.App.ErrorRate >= t.ErrorRateWarningPercent {
			raise(HealthWarning)
			recs = append(recs, fmt.Sprintf("error rate %.1f%% is elevated", r.App.ErrorRate))
		}
	}

	return health, recs
}
