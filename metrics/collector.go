package metrics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/runtimeops/events"
	"github.com/jonwraymond/runtimeops/stats"
	"github.com/jonwraymond/runtimeops/telemetry"
)

// Thresholds configures the warning and critical boundaries checked on
// every sampling tick. Crossing a boundary emits a metrics.threshold event;
// it never raises an error.
type Thresholds struct {
	// CPU percentages. Defaults: 70 warning, 90 critical.
	CPUWarningPercent  float64
	CPUCriticalPercent float64

	// Host memory utilization percentages. Defaults: 80 warning, 95 critical.
	MemoryWarningPercent  float64
	MemoryCriticalPercent float64

	// Average response time. Defaults: 1s warning, 3s critical.
	ResponseTimeWarning  time.Duration
	ResponseTimeCritical time.Duration

	// Error-rate percentages. Defaults: 5 warning, 15 critical.
	ErrorRateWarningPercent  float64
	ErrorRateCriticalPercent float64
}

// Config configures the Collector.
type Config struct {
	// Interval between sampling ticks. Default: 10 seconds.
	Interval time.Duration

	// Retention is how long snapshot history is kept. Default: 24 hours.
	Retention time.Duration

	// MaxHistory caps the snapshot history length. Default: 1000.
	MaxHistory int

	// MaxSamples caps the response-time sample buffer and per-series
	// custom metric retention. Default: 1000.
	MaxSamples int

	// Thresholds are the alerting boundaries.
	Thresholds Thresholds

	// Logger receives structured sampling logs. Default: no-op.
	Logger telemetry.Logger

	// Bus receives threshold alerts. Optional.
	Bus *events.Bus

	// Meter, when set, mirrors request counts, error counts, and
	// response times into OpenTelemetry instruments.
	Meter metric.Meter
}

// endpointRecord accumulates per-endpoint counters.
type endpointRecord struct {
	requests   int64
	successes  int64
	failures   int64
	totalTime  time.Duration
	respCount  int64
	lastAccess time.Time
}

// Collector samples system and application metrics on a single periodic
// loop and aggregates them over a configurable window.
//
// Contract:
// - Concurrency: safe for concurrent use; recording and queries never
//   block the sampling loop beyond brief mutex holds.
// - Errors: sampling failures are logged, never propagated.
type Collector struct {
	config Config
	log    telemetry.Logger
	bus    *events.Bus

	requestCount metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram

	mu            sync.RWMutex
	totalRequests int64
	totalSuccess  int64
	totalFailures int64
	responseTimes *stats.Buffer
	endpoints     map[string]*endpointRecord
	counters      map[string]float64
	gauges        map[string]float64
	custom        map[string]*customSeries
	history       []Sample

	running   bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	proc        *process.Process
	prevCPUTime float64
	lastSample  time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(config Config) (*Collector, error) {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Second
	}
	if config.Retention <= 0 {
		config.Retention = 24 * time.Hour
	}
	if config.MaxHistory <= 0 {
		config.MaxHistory = 1000
	}
	if config.MaxSamples <= 0 {
		config.MaxSamples = 1000
	}
	applyThresholdDefaults(&config.Thresholds)

	log := config.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}

	c := &Collector{
		config:        config,
		log:           log.WithComponent("metrics"),
		bus:           config.Bus,
		responseTimes: stats.NewBuffer(config.MaxSamples),
		endpoints:     make(map[string]*endpointRecord),
		counters:      make(map[string]float64),
		gauges:        make(map[string]float64),
		custom:        make(map[string]*customSeries),
		startedAt:     time.Now(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		c.proc = proc
	}

	if config.Meter != nil {
		if err := c.initInstruments(config.Meter); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func applyThresholdDefaults(t *Thresholds) {
	if t.CPUWarningPercent <= 0 {
		t.CPUWarningPercent = 70
	}
	if t.CPUCriticalPercent <= 0 {
		t.CPUCriticalPercent = 90
	}
	if t.MemoryWarningPercent <= 0 {
		t.MemoryWarningPercent = 80
	}
	if t.MemoryCriticalPercent <= 0 {
		t.MemoryCriticalPercent = 95
	}
	if t.ResponseTimeWarning <= 0 {
		t.ResponseTimeWarning = time.Second
	}
	if t.ResponseTimeCritical <= 0 {
		t.ResponseTimeCritical = 3 * time.Second
	}
	if t.ErrorRateWarningPercent <= 0 {
		t.ErrorRateWarningPercent = 5
	}
	if t.ErrorRateCriticalPercent <= 0 {
		t.ErrorRateCriticalPercent = 15
	}
}

func (c *Collector) initInstruments(meter metric.Meter) error {
	var err error
	c.requestCount, err = meter.Int64Counter(
		"app.requests.total",
		metric.WithDescription("Total number of recorded requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}
	c.errorCount, err = meter.Int64Counter(
		"app.requests.errors",
		metric.WithDescription("Total number of failed responses"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}
	c.durationHist, err = meter.Float64Histogram(
		"app.response.duration_ms",
		metric.WithDescription("Response duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// Start launches the sampling loop.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}
	c.running = true
	c.startedAt = time.Now()
	c.lastSample = c.startedAt
	c.ctx, c.cancel = context.WithCancel(context.Background())
	if c.proc != nil {
		if times, err := c.proc.Times(); err == nil {
			c.prevCPUTime = times.User + times.System
		}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				c.sample()
			}
		}
	}()

	c.publish(events.New(events.TypeComponentStart, "metrics", events.SeverityInfo, "metrics collector started"))
	return nil
}

// Stop halts the sampling loop. Idempotent.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
	c.publish(events.New(events.TypeComponentStop, "metrics", events.SeverityInfo, "metrics collector stopped"))
}

// RecordRequest counts an incoming request for the endpoint.
func (c *Collector) RecordRequest(endpoint, method string) {
	key := method + " " + endpoint

	c.mu.Lock()
	c.totalRequests++
	rec, ok := c.endpoints[key]
	if !ok {
		rec = &endpointRecord{}
		c.endpoints[key] = rec
	}
	rec.requests++
	rec.lastAccess = time.Now()
	c.mu.Unlock()

	if c.requestCount != nil {
		c.requestCount.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("method", method),
		))
	}
}

// RecordResponse records the outcome and latency of a response.
func (c *Collector) RecordResponse(endpoint, method string, responseTime time.Duration, success bool) {
	key := method + " " + endpoint

	c.mu.Lock()
	rec, ok := c.endpoints[key]
	if !ok {
		rec = &endpointRecord{}
		c.endpoints[key] = rec
	}
	rec.respCount++
	rec.totalTime += responseTime
	rec.lastAccess = time.Now()
	if success {
		c.totalSuccess++
		rec.successes++
	} else {
		c.totalFailures++
		rec.failures++
	}
	c.mu.Unlock()

	c.responseTimes.Add(float64(responseTime.Milliseconds()))

	opt := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("method", method),
	)
	if c.durationHist != nil {
		c.durationHist.Record(context.Background(), float64(responseTime.Milliseconds()), opt)
	}
	if !success && c.errorCount != nil {
		c.errorCount.Add(context.Background(), 1, opt)
	}
}

// IncrementCounter adds delta to a named counter metric.
func (c *Collector) IncrementCounter(name string, delta float64, labels map[string]string) error {
	if name == "" {
		return ErrMissingMetricName
	}
	c.mu.Lock()
	c.counters[name] += delta
	total := c.counters[name]
	c.mu.Unlock()

	return c.RecordCustomMetric(Metric{
		Name:      name,
		Kind:      KindCounter,
		Value:     total,
		Timestamp: time.Now(),
		Labels:    labels,
	})
}

// SetGauge sets a named gauge metric.
func (c *Collector) SetGauge(name string, value float64, labels map[string]string) error {
	if name == "" {
		return ErrMissingMetricName
	}
	c.mu.Lock()
	c.gauges[name] = value
	c.mu.Unlock()

	return c.RecordCustomMetric(Metric{
		Name:      name,
		Kind:      KindGauge,
		Value:     value,
		Timestamp: time.Now(),
		Labels:    labels,
	})
}

// RecordHistogram records a histogram observation.
func (c *Collector) RecordHistogram(name string, value float64, labels map[string]string) error {
	if name == "" {
		return ErrMissingMetricName
	}
	return c.RecordCustomMetric(Metric{
		Name:      name,
		Kind:      KindHistogram,
		Value:     value,
		Timestamp: time.Now(),
		Labels:    labels,
	})
}

// RecordCustomMetric retains a raw custom metric sample. Samples are kept
// per name+kind up to the buffer cap, sliding forward on overflow.
func (c *Collector) RecordCustomMetric(m Metric) error {
	if m.Name == "" {
		return ErrMissingMetricName
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	key := fmt.Sprintf("%s/%s", m.Name, m.Kind)

	c.mu.Lock()
	defer c.mu.Unlock()

	cs, ok := c.custom[key]
	if !ok {
		cs = &customSeries{kind: m.Kind, max: c.config.MaxSamples}
		c.custom[key] = cs
	}
	cs.add(m)
	return nil
}

// sample captures one system+application snapshot, appends it to history,
// and checks thresholds. Never panics past the tick; capture errors are
// logged and the affected fields stay zero.
func (c *Collector) sample() {
	now := time.Now()
	sys := c.systemSnapshot(now)

	c.mu.Lock()
	app := c.appSnapshotLocked(now)
	c.history = append(c.history, Sample{System: sys, App: app})
	c.pruneHistoryLocked(now)
	c.mu.Unlock()

	c.checkThresholds(sys, app)

	c.log.Debug(context.Background(), "sample captured",
		telemetry.F("cpu_percent", sys.CPUPercent),
		telemetry.F("memory_used_percent", sys.MemoryUsedPercent),
		telemetry.F("requests", app.TotalRequests),
	)
}

// systemSnapshot gathers process and host gauges. CPU percentage is the
// process CPU-time delta divided by the elapsed wall time, unclamped.
func (c *Collector) systemSnapshot(now time.Time) SystemSnapshot {
	snap := SystemSnapshot{Timestamp: now}

	c.mu.Lock()
	elapsed := now.Sub(c.lastSample)
	c.lastSample = now
	prev := c.prevCPUTime
	c.mu.Unlock()

	if c.proc != nil {
		if times, err := c.proc.Times(); err == nil {
			cpuSeconds := times.User + times.System
			if elapsed > 0 && prev > 0 {
				snap.CPUPercent = (cpuSeconds - prev) / elapsed.Seconds() * 100
			}
			c.mu.Lock()
			c.prevCPUTime = cpuSeconds
			c.mu.Unlock()
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			snap.RSSBytes = info.RSS
		}
	}

	if cores, err := cpu.Counts(true); err == nil {
		snap.CPUCores = cores
	}
	if avg, err := load.Avg(); err == nil {
		snap.Load1 = avg.Load1
		snap.Load5 = avg.Load5
		snap.Load15 = avg.Load15
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryUsedPercent = vm.UsedPercent
		snap.MemoryTotalBytes = vm.Total
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	snap.HeapAllocBytes = ms.HeapAlloc
	snap.HeapSysBytes = ms.HeapSys
	snap.SysBytes = ms.Sys

	snap.UptimeSeconds = now.Sub(c.startedAt).Seconds()
	return snap
}

// appSnapshotLocked builds the application snapshot from the running
// counters. Caller holds c.mu.
func (c *Collector) appSnapshotLocked(now time.Time) AppSnapshot {
	snap := AppSnapshot{
		Timestamp:      now,
		TotalRequests:  c.totalRequests,
		TotalSuccesses: c.totalSuccess,
		TotalFailures:  c.totalFailures,
	}

	if uptime := now.Sub(c.startedAt).Seconds(); uptime > 0 {
		snap.RequestRate = float64(c.totalRequests) / uptime
	}
	if c.totalRequests > 0 {
		snap.ErrorRate = float64(c.totalFailures) / float64(c.totalRequests) * 100
	}

	values := c.responseTimes.Values()
	if len(values) > 0 {
		snap.AvgResponseTime = time.Duration(stats.Mean(values)) * time.Millisecond
		snap.P50ResponseTime = time.Duration(stats.Percentile(values, 0.50)) * time.Millisecond
		snap.P90ResponseTime = time.Duration(stats.Percentile(values, 0.90)) * time.Millisecond
		snap.P95ResponseTime = time.Duration(stats.Percentile(values, 0.95)) * time.Millisecond
		snap.P99ResponseTime = time.Duration(stats.Percentile(values, 0.99)) * time.Millisecond
	}

	snap.Endpoints = make(map[string]EndpointStats, len(c.endpoints))
	for key, rec := range c.endpoints {
		es := EndpointStats{
			Requests:   rec.requests,
			Successes:  rec.successes,
			Failures:   rec.failures,
			LastAccess: rec.lastAccess,
		}
		if rec.respCount > 0 {
			es.AvgResponseTime = rec.totalTime / time.Duration(rec.respCount)
		}
		snap.Endpoints[key] = es
	}
	return snap
}

// pruneHistoryLocked enforces the retention period and history cap.
// Caller holds c.mu.
func (c *Collector) pruneHistoryLocked(now time.Time) {
	cutoff := now.Add(-c.config.Retention)
	i := 0
	for i < len(c.history) && c.history[i].System.Timestamp.Before(cutoff) {
		i++
	}
	c.history = c.history[i:]

	if len(c.history) > c.config.MaxHistory {
		c.history = c.history[len(c.history)-c.config.MaxHistory:]
	}
}

// checkThresholds emits a metrics.threshold event per crossed boundary.
func (c *Collector) checkThresholds(sys SystemSnapshot, app AppSnapshot) {
	t := c.config.Thresholds

	c.checkBound("cpu_percent", sys.CPUPercent, t.CPUWarningPercent, t.CPUCriticalPercent)
	c.checkBound("memory_used_percent", sys.MemoryUsedPercent, t.MemoryWarningPercent, t.MemoryCriticalPercent)
	c.checkBound("avg_response_time_ms",
		float64(app.AvgResponseTime.Milliseconds()),
		float64(t.ResponseTimeWarning.Milliseconds()),
		float64(t.ResponseTimeCritical.Milliseconds()))
	if app.TotalRequests > 0 {
		c.checkBound("error_rate_percent", app.ErrorRate, t.ErrorRateWarningPercent, t.ErrorRateCriticalPercent)
	}
}

func (c *Collector) checkBound(name string, value, warn, crit float64) {
	var severity events.Severity
	var bound float64
	switch {
	case value >= crit:
		severity = events.SeverityCritical
		bound = crit
	case value >= warn:
		severity = events.SeverityWarning
		bound = warn
	default:
		return
	}

	c.publish(events.New(events.TypeMetricsThreshold, "metrics", severity,
		fmt.Sprintf("%s %.2f crossed %s threshold %.2f", name, value, severity, bound)).
		WithData(map[string]any{
			"metric":    name,
			"value":     value,
			"threshold": bound,
		}))
}

func (c *Collector) publish(e events.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}
