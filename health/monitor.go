package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/runtimeops/events"
	"github.com/jonwraymond/runtimeops/stats"
	"github.com/jonwraymond/runtimeops/telemetry"
)

// Config configures the Monitor.
type Config struct {
	// DefaultInterval is used for targets with no interval of their own.
	// Default: 30 seconds.
	DefaultInterval time.Duration

	// DefaultTimeout bounds probe calls for targets with no timeout.
	// Default: 5 seconds.
	DefaultTimeout time.Duration

	// FailureThreshold is the number of consecutive failures before a
	// target is marked unhealthy. Default: 3.
	FailureThreshold int

	// TrendWindow is the horizon of the trailing trend window.
	// Default: 24 hours.
	TrendWindow time.Duration

	// MaxTrendEntries caps the trend window length. Default: 1000.
	MaxTrendEntries int

	// MaxSamples caps the per-target response-time buffer. Default: 100.
	MaxSamples int

	// MinPercentileSamples is the buffer size required before p95/p99 are
	// computed. Default: 5.
	MinPercentileSamples int

	// HTTPClient issues probe requests. Default: http.DefaultClient.
	HTTPClient *http.Client

	// Logger receives structured check logs. Default: no-op.
	Logger telemetry.Logger

	// Bus receives health alerts. Optional.
	Bus *events.Bus
}

// Monitor owns a set of probe targets and runs one periodic check loop per
// enabled target.
//
// Contract:
// - Concurrency: safe for concurrent use; queries never block check loops.
// - Ownership: per-target state transitions only happen on that target's
//   own loop (or a ForceCheck); results racing with Stop are discarded.
type Monitor struct {
	config Config
	client *http.Client
	log    telemetry.Logger
	bus    *events.Bus

	mu        sync.RWMutex
	targets   map[string]*targetState
	running   bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewMonitor creates a new health monitor.
func NewMonitor(config Config) *Monitor {
	if config.DefaultInterval <= 0 {
		config.DefaultInterval = 30 * time.Second
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 5 * time.Second
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.TrendWindow <= 0 {
		config.TrendWindow = 24 * time.Hour
	}
	if config.MaxTrendEntries <= 0 {
		config.MaxTrendEntries = 1000
	}
	if config.MaxSamples <= 0 {
		config.MaxSamples = 100
	}
	if config.MinPercentileSamples <= 0 {
		config.MinPercentileSamples = 5
	}

	client := config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	log := config.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}

	return &Monitor{
		config:  config,
		client:  client,
		log:     log.WithComponent("health"),
		bus:     config.Bus,
		targets: make(map[string]*targetState),
	}
}

// Register adds a probe target. If the monitor is running and the target is
// enabled, its check loop starts immediately.
func (m *Monitor) Register(target Target) error {
	if err := target.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.targets[target.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTarget, target.ID)
	}

	ts := &targetState{
		target:  target,
		status:  Status{TargetID: target.ID, State: StateUnknown},
		samples: stats.NewBuffer(m.config.MaxSamples),
	}
	m.targets[target.ID] = ts

	if m.running && target.Enabled {
		m.startLoopLocked(ts)
	}
	return nil
}

// Update replaces a target's registration, keeping its accumulated status.
// A running check loop is restarted with the new schedule.
func (m *Monitor) Update(target Target) error {
	if err := target.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ts, ok := m.targets[target.ID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTargetNotFound, target.ID)
	}

	if ts.cancel != nil {
		ts.cancel()
		ts.cancel = nil
	}
	ts.target = target
	if m.running && target.Enabled {
		m.startLoopLocked(ts)
	}
	return nil
}

// Unregister removes a target and destroys its health state.
func (m *Monitor) Unregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, ok := m.targets[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTargetNotFound, id)
	}
	if ts.cancel != nil {
		ts.cancel()
	}
	delete(m.targets, id)
	return nil
}

// Start launches a check loop for every enabled target.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}
	m.running = true
	m.startedAt = time.Now()
	m.ctx, m.cancel = context.WithCancel(context.Background())

	for _, ts := range m.targets {
		if ts.target.Enabled {
			m.startLoopLocked(ts)
		}
	}

	m.publish(events.New(events.TypeComponentStart, "health", events.SeverityInfo, "health monitor started"))
	return nil
}

// Stop cancels every check loop and waits until none are in flight.
// Results from checks racing with Stop are discarded. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	for _, ts := range m.targets {
		ts.cancel = nil
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.publish(events.New(events.TypeComponentStop, "health", events.SeverityInfo, "health monitor stopped"))
}

// startLoopLocked spawns the per-target loop. Caller holds m.mu.
func (m *Monitor) startLoopLocked(ts *targetState) {
	interval := ts.target.Interval
	if interval <= 0 {
		interval = m.config.DefaultInterval
	}

	loopCtx, cancel := context.WithCancel(m.ctx)
	ts.cancel = cancel
	id := ts.target.ID

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		// First check fires immediately so new targets get a state
		// before the first full interval elapses.
		m.checkTarget(loopCtx, id)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				m.checkTarget(loopCtx, id)
			}
		}
	}()
}

// ForceCheck runs a single check for the target immediately, regardless of
// its enabled flag, and returns the resulting status.
func (m *Monitor) ForceCheck(ctx context.Context, id string) (Status, error) {
	m.mu.RLock()
	_, ok := m.targets[id]
	m.mu.RUnlock()
	if !ok {
		return Status{}, fmt.Errorf("%w: %q", ErrTargetNotFound, id)
	}

	m.checkTarget(ctx, id)
	return m.Status(id)
}

// ForceCheckAll checks every registered target concurrently.
func (m *Monitor) ForceCheckAll(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.targets))
	for id := range m.targets {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := m.ForceCheck(gctx, id)
			return err
		})
	}
	return g.Wait()
}

// Status returns a copy of the target's current health status.
func (m *Monitor) Status(id string) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ts, ok := m.targets[id]
	if !ok {
		return Status{}, fmt.Errorf("%w: %q", ErrTargetNotFound, id)
	}
	return ts.status, nil
}

// AllStatuses returns a copy of every target's current health status.
func (m *Monitor) AllStatuses() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Status, len(m.targets))
	for id, ts := range m.targets {
		out[id] = ts.status
	}
	return out
}

// checkTarget performs one probe and applies the result. The probe runs
// outside the monitor lock; the result is discarded if ctx was cancelled
// or the target was removed while the probe was in flight.
func (m *Monitor) checkTarget(ctx context.Context, id string) {
	m.mu.RLock()
	ts, ok := m.targets[id]
	if !ok {
		m.mu.RUnlock()
		return
	}
	target := ts.target
	m.mu.RUnlock()

	timeout := target.Timeout
	if timeout <= 0 {
		timeout = m.config.DefaultTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	statusCode, err := m.probe(probeCtx, target)
	elapsed := time.Since(start)

	success := false
	slow := false
	var detail string
	switch {
	case err != nil:
		detail = err.Error()
	case !target.expectsStatus(statusCode):
		detail = fmt.Sprintf("unexpected status %d", statusCode)
	case target.MaxResponseTime > 0 && elapsed > target.MaxResponseTime:
		slow = true
		detail = fmt.Sprintf("response time %s exceeded ceiling %s", elapsed.Round(time.Millisecond), target.MaxResponseTime)
	default:
		success = true
	}

	if ctx.Err() != nil {
		// The monitor stopped while the probe was in flight.
		return
	}
	m.applyResult(id, time.Now(), elapsed, success, slow, detail)
}

// probe issues the configured HTTP call and returns the status code.
func (m *Monitor) probe(ctx context.Context, target Target) (int, error) {
	var body io.Reader
	if target.Body != "" {
		body = strings.NewReader(target.Body)
	}

	req, err := http.NewRequestWithContext(ctx, target.Method, target.URL, body)
	if err != nil {
		return 0, err
	}
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// applyResult folds one check outcome into the target's status and emits
// the appropriate alert.
func (m *Monitor) applyResult(id string, now time.Time, elapsed time.Duration, success, slow bool, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, ok := m.targets[id]
	if !ok {
		return
	}
	target := ts.target
	st := &ts.status

	st.TotalChecks++
	st.LastCheck = now
	st.LastResponseTime = elapsed

	if success {
		wasFailing := st.ConsecutiveFailures > 0 || st.State == StateUnhealthy || st.State == StateDegraded

		st.TotalSuccesses++
		succeededAt := now
		st.LastSuccess = &succeededAt
		st.ConsecutiveFailures = 0
		st.LastError = ""
		st.State = StateHealthy

		ts.samples.Add(float64(elapsed.Milliseconds()))
		st.AvgResponseTime = time.Duration(ts.samples.Mean()) * time.Millisecond
		if ts.samples.Len() >= m.config.MinPercentileSamples {
			st.P95ResponseTime = time.Duration(ts.samples.Percentile(0.95)) * time.Millisecond
			st.P99ResponseTime = time.Duration(ts.samples.Percentile(0.99)) * time.Millisecond
		}

		if wasFailing {
			m.emitAlert(events.TypeRecovery, target, events.SeverityInfo,
				fmt.Sprintf("target %q recovered", target.Name), st)
		}
	} else {
		st.TotalFailures++
		st.ConsecutiveFailures++
		st.LastError = detail

		if st.ConsecutiveFailures >= m.config.FailureThreshold {
			st.State = StateUnhealthy
		} else {
			st.State = StateDegraded
		}

		severity := events.SeverityWarning
		if target.Priority == PriorityCritical {
			severity = events.SeverityCritical
		}

		switch {
		case st.ConsecutiveFailures == m.config.FailureThreshold:
			m.emitAlert(events.TypeConsecutiveFailures, target, severity,
				fmt.Sprintf("target %q failed %d consecutive checks: %s", target.Name, st.ConsecutiveFailures, detail), st)
		case slow:
			m.emitAlert(events.TypeDegradedPerformance, target, severity,
				fmt.Sprintf("target %q degraded: %s", target.Name, detail), st)
		default:
			m.emitAlert(events.TypeCheckFailed, target, severity,
				fmt.Sprintf("target %q check failed: %s", target.Name, detail), st)
		}
	}

	if st.TotalChecks > 0 {
		st.Uptime = float64(st.TotalSuccesses) / float64(st.TotalChecks) * 100
	}

	ts.window = append(ts.window, trendEntry{at: now, state: st.State, responseTime: elapsed})
	ts.pruneWindow(now, m.config.TrendWindow, m.config.MaxTrendEntries)
	ts.recomputeTrends()

	m.log.Debug(context.Background(), "check complete",
		telemetry.F("target", id),
		telemetry.F("state", st.State.String()),
		telemetry.F("response_time_ms", elapsed.Milliseconds()),
	)
}

// emitAlert publishes a health alert. Caller holds m.mu.
func (m *Monitor) emitAlert(t events.Type, target Target, severity events.Severity, msg string, st *Status) {
	m.publish(events.New(t, target.ID, severity, msg).WithData(map[string]any{
		"target_name":          target.Name,
		"priority":             target.Priority.String(),
		"state":                st.State.String(),
		"consecutive_failures": st.ConsecutiveFailures,
		"last_error":           st.LastError,
	}))
}

func (m *Monitor) publish(e events.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}
