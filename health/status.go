package health

import (
	"time"

	"github.com/jonwraymond/runtimeops/stats"
)

// State represents the health state of a probe target.
type State int

const (
	// StateUnknown means the target has not been checked yet.
	StateUnknown State = iota
	// StateHealthy means the last check met the success criteria.
	StateHealthy
	// StateDegraded means checks are failing but below the consecutive-
	// failure threshold.
	StateDegraded
	// StateUnhealthy means consecutive failures reached the threshold.
	StateUnhealthy
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of one target's health. Only the
// target's own check loop mutates the underlying record; Status values
// returned from queries are copies.
type Status struct {
	TargetID string
	State    State

	LastResponseTime time.Duration
	LastCheck        time.Time
	LastSuccess      *time.Time

	ConsecutiveFailures int
	TotalChecks         int64
	TotalSuccesses      int64
	TotalFailures       int64

	// Uptime is the success percentage over all checks.
	Uptime float64

	AvgResponseTime time.Duration
	P95ResponseTime time.Duration
	P99ResponseTime time.Duration

	// LastError is the most recent failure detail, empty when the last
	// check succeeded.
	LastError string

	ResponseTimeTrend stats.Trend
	UptimeTrend       stats.Trend
}

// trendEntry is one point in a target's bounded trailing window.
type trendEntry struct {
	at           time.Time
	state        State
	responseTime time.Duration
}

// targetState is the monitor-internal record for one target.
type targetState struct {
	target  Target
	status  Status
	samples *stats.Buffer
	window  []trendEntry
	cancel  func()
}

// pruneWindow drops entries older than horizon and caps the window length.
func (ts *targetState) pruneWindow(now time.Time, horizon time.Duration, maxEntries int) {
	cutoff := now.Add(-horizon)
	i := 0
	for i < len(ts.window) && ts.window[i].at.Before(cutoff) {
		i++
	}
	ts.window = ts.window[i:]

	if len(ts.window) > maxEntries {
		ts.window = ts.window[len(ts.window)-maxEntries:]
	}
}

// recomputeTrends derives the response-time and uptime trends by comparing
// the older half of the window against the newer half.
func (ts *targetState) recomputeTrends() {
	if len(ts.window) < 4 {
		ts.status.ResponseTimeTrend = stats.TrendStable
		ts.status.UptimeTrend = stats.TrendStable
		return
	}

	times := make([]float64, len(ts.window))
	healthy := make([]float64, len(ts.window))
	for i, e := range ts.window {
		times[i] = float64(e.responseTime.Milliseconds())
		if e.state == StateHealthy {
			healthy[i] = 1
		}
	}

	ts.status.ResponseTimeTrend = stats.SliceDirection(times, false)
	ts.status.UptimeTrend = stats.SliceDirection(healthy, true)
}
