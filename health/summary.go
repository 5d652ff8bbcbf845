package health

import (
	"fmt"
	"time"

	"github.com/jonwraymond/runtimeops/stats"
)

// Summary aggregates the health of every registered target.
type Summary struct {
	GeneratedAt time.Time

	// OverallState is unhealthy if any target is unhealthy, else degraded
	// if any is degraded, else healthy.
	OverallState State

	TotalTargets   int
	HealthyCount   int
	DegradedCount  int
	UnhealthyCount int
	UnknownCount   int

	// MonitorUptime is the elapsed time since Start.
	MonitorUptime time.Duration

	// AvgResponseTime is the mean of the per-target running averages.
	AvgResponseTime time.Duration

	CriticalIssues  []string
	Warnings        []string
	Recommendations []string
}

// uptimeFloor is the success percentage below which a target earns a
// recommendation.
const uptimeFloor = 99.0

// Summary computes the system-wide health summary.
func (m *Monitor) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{
		GeneratedAt:  time.Now(),
		OverallState: StateHealthy,
		TotalTargets: len(m.targets),
	}
	if m.running {
		s.MonitorUptime = time.Since(m.startedAt)
	}

	var responseSum time.Duration
	var responseCount int

	for _, ts := range m.targets {
		st := ts.status
		target := ts.target

		switch st.State {
		case StateHealthy:
			s.HealthyCount++
		case StateDegraded:
			s.DegradedCount++
		case StateUnhealthy:
			s.UnhealthyCount++
		default:
			s.UnknownCount++
		}

		if st.AvgResponseTime > 0 {
			responseSum += st.AvgResponseTime
			responseCount++
		}

		switch st.State {
		case StateUnhealthy:
			s.CriticalIssues = append(s.CriticalIssues,
				fmt.Sprintf("target %q is unhealthy (%d consecutive failures): %s", target.Name, st.ConsecutiveFailures, st.LastError))
		case StateDegraded:
			s.Warnings = append(s.Warnings,
				fmt.Sprintf("target %q is degraded: %s", target.Name, st.LastError))
		}

		if target.MaxResponseTime > 0 && st.AvgResponseTime > target.MaxResponseTime {
			s.Warnings = append(s.Warnings,
				fmt.Sprintf("target %q average response time %s exceeds ceiling %s", target.Name, st.AvgResponseTime.Round(time.Millisecond), target.MaxResponseTime))
		}
		if st.TotalChecks > 0 && st.Uptime < uptimeFloor {
			s.Recommendations = append(s.Recommendations,
				fmt.Sprintf("target %q uptime %.2f%% is below %.0f%%, investigate recent failures", target.Name, st.Uptime, uptimeFloor))
		}
		if st.ResponseTimeTrend == stats.TrendDegrading {
			s.Recommendations = append(s.Recommendations,
				fmt.Sprintf("target %q response time is trending worse", target.Name))
		}
		if st.UptimeTrend == stats.TrendDegrading {
			s.Recommendations = append(s.Recommendations,
				fmt.Sprintf("target %q availability is trending worse", target.Name))
		}
	}

	if s.UnhealthyCount > 0 {
		s.OverallState = StateUnhealthy
	} else if s.DegradedCount > 0 {
		s.OverallState = StateDegraded
	}

	if responseCount > 0 {
		s.AvgResponseTime = responseSum / time.Duration(responseCount)
	}
	return s
}
