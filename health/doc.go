// Package health implements periodic probing of dependent endpoints with
// per-target health state, rolling response-time percentiles, and
// failure/recovery trend detection.
//
// # Core Concepts
//
// A Target describes one monitored endpoint: its request shape, success
// criteria (expected status set, optional response-time ceiling), and
// check schedule. The Monitor runs one check loop per enabled target and
// maintains a Status per target: current State (unknown, healthy,
// degraded, unhealthy), consecutive-failure count, cumulative totals,
// uptime percentage, and p95/p99 response times.
//
// A target becomes unhealthy only when consecutive failures reach the
// configured threshold; below the threshold it is degraded. Any successful
// check resets the counter and, if the target was failing, emits a
// recovery alert on the event bus.
//
// # Basic Usage
//
//	mon := health.NewMonitor(health.Config{
//	    FailureThreshold: 3,
//	    Bus:              bus,
//	})
//	err := mon.Register(health.Target{
//	    ID:       "payments-api",
//	    URL:      "https://payments.internal/healthz",
//	    Interval: 15 * time.Second,
//	    Enabled:  true,
//	    Priority: health.PriorityCritical,
//	})
//	if err != nil {
//	    return err
//	}
//	mon.Start()
//	defer mon.Stop()
//
//	summary := mon.Summary()
//
// Queries (Status, AllStatuses, Summary) are safe to call at any time and
// never block the check loops.
package health
