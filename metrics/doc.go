// Package metrics implements periodic sampling and aggregation of system
// and application performance metrics with percentile and threshold
// analysis.
//
// A Collector runs one sampling loop. Each tick captures a SystemSnapshot
// (process CPU-time delta, heap and host memory, load average) and an
// AppSnapshot (request totals, error rate, response-time distribution from
// a capped sample buffer, per-endpoint stats), checks both against the
// configured Thresholds, and appends them to a retention-pruned history.
//
// Percentiles use sorted-index lookup (index = floor(n*q)); averages are
// recomputed from the full sample buffer on every snapshot, so figures
// are reproducible.
//
//	c, err := metrics.NewCollector(metrics.Config{Bus: bus})
//	if err != nil {
//	    return err
//	}
//	c.Start()
//	defer c.Stop()
//
//	c.RecordRequest("/orders", "POST")
//	c.RecordResponse("/orders", "POST", 42*time.Millisecond, true)
//
//	out, err := c.Export(metrics.FormatPrometheus, 15*time.Minute)
//
// Report and Export never fail on "no data yet": derived figures default
// to zero and an empty window falls back to the most recent snapshot.
package metrics
