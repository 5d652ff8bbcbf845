package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/runtimeops/events"
)

func TestNewCollectorDefaults(t *testing.T) {
	c, err := NewCollector(Config{})
	if err != nil {
		t.Fatalf("NewCollector() = %v", err)
	}

	if c.config.Interval != 10*time.Second {
		t.Errorf("Interval = %v, want 10s", c.config.Interval)
	}
	if c.config.Retention != 24*time.Hour {
		t.Errorf("Retention = %v, want 24h", c.config.Retention)
	}
	if c.config.MaxHistory != 1000 {
		t.Errorf("MaxHistory = %d, want 1000", c.config.MaxHistory)
	}

	th := c.config.Thresholds
	if th.CPUWarningPercent != 70 || th.CPUCriticalPercent != 90 {
		t.Errorf("CPU thresholds = %v/%v, want 70/90", th.CPUWarningPercent, th.CPUCriticalPercent)
	}
	if th.ResponseTimeWarning != time.Second || th.ResponseTimeCritical != 3*time.Second {
		t.Errorf("response thresholds = %v/%v", th.ResponseTimeWarning, th.ResponseTimeCritical)
	}
	if th.ErrorRateWarningPercent != 5 || th.ErrorRateCriticalPercent != 15 {
		t.Errorf("error-rate thresholds = %v/%v, want 5/15", th.ErrorRateWarningPercent, th.ErrorRateCriticalPercent)
	}
}

func TestRecordRequestAndResponse(t *testing.T) {
	c, err := NewCollector(Config{})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		c.RecordRequest("/orders", "GET")
		c.RecordResponse("/orders", "GET", 100*time.Millisecond, i != 0)
	}
	c.RecordRequest("/users", "POST")
	c.RecordResponse("/users", "POST", 50*time.Millisecond, true)

	r := c.Report(time.Hour)
	if r.App.TotalRequests != 11 {
		t.Errorf("TotalRequests = %d, want 11", r.App.TotalRequests)
	}
	if r.App.TotalFailures != 1 {
		t.Errorf("TotalFailures = %d, want 1", r.App.TotalFailures)
	}

	es, ok := r.App.Endpoints["GET /orders"]
	if !ok {
		t.Fatalf("endpoint key missing, got %v", r.App.Endpoints)
	}
	if es.Requests != 10 || es.Failures != 1 {
		t.Errorf("endpoint requests/failures = %d/%d, want 10/1", es.Requests, es.Failures)
	}
	if es.AvgResponseTime != 100*time.Millisecond {
		t.Errorf("endpoint avg = %v, want 100ms", es.AvgResponseTime)
	}
}

func TestResponsePercentiles(t *testing.T) {
	c, err := NewCollector(Config{})
	if err != nil {
		t.Fatal(err)
	}

	// 10ms..1000ms: p95 lands on the 950ms entry.
	for i := 1; i <= 100; i++ {
		c.RecordResponse("/x", "GET", time.Duration(i*10)*time.Millisecond, true)
	}

	r := c.Report(time.Hour)
	if r.App.P95ResponseTime != 960*time.Millisecond {
		t.Errorf("P95 = %v, want 960ms", r.App.P95ResponseTime)
	}
	if r.App.P50ResponseTime != 510*time.Millisecond {
		t.Errorf("P50 = %v, want 510ms", r.App.P50ResponseTime)
	}
}

func TestCustomMetrics(t *testing.T) {
	c, err := NewCollector(Config{})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.IncrementCounter("", 1, nil); !errors.Is(err, ErrMissingMetricName) {
		t.Errorf("empty name = %v, want ErrMissingMetricName", err)
	}

	if err := c.IncrementCounter("jobs_done", 3, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.IncrementCounter("jobs_done", 2, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.SetGauge("queue_depth", 7, nil); err != nil {
		t.Fatal(err)
	}
	for _, v := range []float64{10, 20, 30} {
		if err := c.RecordHistogram("batch_ms", v, nil); err != nil {
			t.Fatal(err)
		}
	}

	r := c.Report(time.Hour)

	counter, ok := r.Custom["jobs_done"]
	if !ok {
		t.Fatalf("jobs_done missing from %v", r.Custom)
	}
	// Counter samples are running totals; the latest is 5.
	if counter.Max != 5 {
		t.Errorf("counter Max = %v, want 5", counter.Max)
	}

	hist, ok := r.Custom["batch_ms"]
	if !ok {
		t.Fatal("batch_ms missing")
	}
	if hist.Count != 3 || hist.Avg != 20 {
		t.Errorf("histogram count/avg = %d/%v, want 3/20", hist.Count, hist.Avg)
	}
}

func TestSampleAppendsHistoryAndChecksThresholds(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(16)
	defer cancel()

	c, err := NewCollector(Config{
		Bus: bus,
		Thresholds: Thresholds{
			// Force the error-rate critical boundary low enough to trip.
			ErrorRateWarningPercent:  1,
			ErrorRateCriticalPercent: 2,
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		c.RecordRequest("/x", "GET")
		c.RecordResponse("/x", "GET", time.Millisecond, false)
	}

	c.sample()

	c.mu.RLock()
	n := len(c.history)
	c.mu.RUnlock()
	if n != 1 {
		t.Fatalf("history length = %d, want 1", n)
	}

	var sawErrorRate bool
	for {
		select {
		case e := <-ch:
			if e.Type == events.TypeMetricsThreshold && e.Severity == events.SeverityCritical {
				if e.Data["metric"] == "error_rate_percent" {
					sawErrorRate = true
				}
			}
		default:
			if !sawErrorRate {
				t.Error("no critical error-rate threshold event")
			}
			return
		}
	}
}

func TestReportEmptyWindowFallsBackToLastSample(t *testing.T) {
	c, err := NewCollector(Config{})
	if err != nil {
		t.Fatal(err)
	}

	c.RecordResponse("/x", "GET", 10*time.Millisecond, true)
	c.sample()

	// Window so small that no snapshot falls inside it.
	r := c.Report(time.Nanosecond)
	if r.SampleCount != 1 {
		t.Errorf("SampleCount = %d, want 1 (latest-sample fallback)", r.SampleCount)
	}
}

func TestReportWithNoHistory(t *testing.T) {
	c, err := NewCollector(Config{})
	if err != nil {
		t.Fatal(err)
	}

	c.RecordRequest("/x", "GET")
	c.RecordResponse("/x", "GET", 5*time.Millisecond, true)

	r := c.Report(time.Hour)
	if r.SampleCount != 0 {
		t.Errorf("SampleCount = %d, want 0", r.SampleCount)
	}
	// Counters still flow through the synthesized snapshot.
	if r.App.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", r.App.TotalRequests)
	}
	if r.SystemHealth != HealthGood {
		t.Errorf("SystemHealth = %q, want %q", r.SystemHealth, HealthGood)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	c, err := NewCollector(Config{Interval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if err := c.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	c.Stop()
	c.Stop() // idempotent
}
