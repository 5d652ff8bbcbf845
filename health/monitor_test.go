package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/runtimeops/events"
)

func drainEvents(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func countType(evts []events.Event, t events.Type) int {
	n := 0
	for _, e := range evts {
		if e.Type == t {
			n++
		}
	}
	return n
}

func TestRegisterValidation(t *testing.T) {
	m := NewMonitor(Config{})

	if err := m.Register(Target{URL: "http://example.com"}); !errors.Is(err, ErrMissingTargetID) {
		t.Errorf("Register without ID = %v, want ErrMissingTargetID", err)
	}

	target := Target{ID: "api", URL: "http://example.com", Enabled: true}
	if err := m.Register(target); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	if err := m.Register(target); !errors.Is(err, ErrDuplicateTarget) {
		t.Errorf("duplicate Register = %v, want ErrDuplicateTarget", err)
	}
}

func TestInitialStateUnknown(t *testing.T) {
	m := NewMonitor(Config{})
	if err := m.Register(Target{ID: "api", URL: "http://example.com"}); err != nil {
		t.Fatal(err)
	}

	st, err := m.Status("api")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateUnknown {
		t.Errorf("initial State = %v, want %v", st.State, StateUnknown)
	}
	if st.TotalChecks != 0 {
		t.Errorf("TotalChecks = %d, want 0", st.TotalChecks)
	}
}

func TestForceCheckSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(16)
	defer cancel()

	m := NewMonitor(Config{Bus: bus})
	if err := m.Register(Target{ID: "api", URL: srv.URL}); err != nil {
		t.Fatal(err)
	}

	st, err := m.ForceCheck(context.Background(), "api")
	if err != nil {
		t.Fatal(err)
	}

	if st.State != StateHealthy {
		t.Errorf("State = %v, want %v", st.State, StateHealthy)
	}
	if st.TotalChecks != 1 || st.TotalSuccesses != 1 {
		t.Errorf("checks/successes = %d/%d, want 1/1", st.TotalChecks, st.TotalSuccesses)
	}
	if st.Uptime != 100 {
		t.Errorf("Uptime = %v, want 100", st.Uptime)
	}
	if st.LastSuccess == nil {
		t.Error("LastSuccess is nil")
	}

	if evts := drainEvents(ch); len(evts) != 0 {
		t.Errorf("unexpected alerts on first success: %v", evts)
	}
}

func TestConsecutiveFailuresMarkUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(32)
	defer cancel()

	m := NewMonitor(Config{FailureThreshold: 3, Bus: bus})
	if err := m.Register(Target{ID: "api", URL: srv.URL}); err != nil {
		t.Fatal(err)
	}

	var st Status
	var err error
	for i := 0; i < 3; i++ {
		st, err = m.ForceCheck(context.Background(), "api")
		if err != nil {
			t.Fatal(err)
		}
	}

	if st.State != StateUnhealthy {
		t.Errorf("State after 3 failures = %v, want %v", st.State, StateUnhealthy)
	}
	if st.ConsecutiveFailures != 3 {
		t.Errorf("ConsecutiveFailures = %d, want 3", st.ConsecutiveFailures)
	}
	if st.LastError == "" {
		t.Error("LastError is empty")
	}

	evts := drainEvents(ch)
	if n := countType(evts, events.TypeConsecutiveFailures); n != 1 {
		t.Errorf("consecutive-failures alerts = %d, want exactly 1", n)
	}
	if n := countType(evts, events.TypeCheckFailed); n != 2 {
		t.Errorf("check-failed alerts = %d, want 2", n)
	}
}

func TestDegradedBelowThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewMonitor(Config{FailureThreshold: 3})
	if err := m.Register(Target{ID: "api", URL: srv.URL}); err != nil {
		t.Fatal(err)
	}

	st, err := m.ForceCheck(context.Background(), "api")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateDegraded {
		t.Errorf("State after 1 failure = %v, want %v", st.State, StateDegraded)
	}
}

func TestRecoveryAlert(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(32)
	defer cancel()

	m := NewMonitor(Config{FailureThreshold: 3, Bus: bus})
	if err := m.Register(Target{ID: "api", URL: srv.URL}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, err := m.ForceCheck(context.Background(), "api"); err != nil {
			t.Fatal(err)
		}
	}

	fail.Store(false)
	st, err := m.ForceCheck(context.Background(), "api")
	if err != nil {
		t.Fatal(err)
	}

	if st.State != StateHealthy {
		t.Errorf("State = %v, want %v", st.State, StateHealthy)
	}
	if st.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", st.ConsecutiveFailures)
	}
	if st.LastError != "" {
		t.Errorf("LastError = %q, want empty", st.LastError)
	}

	evts := drainEvents(ch)
	if n := countType(evts, events.TypeRecovery); n != 1 {
		t.Errorf("recovery alerts = %d, want exactly 1", n)
	}
}

func TestSlowResponseCountsAsDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(16)
	defer cancel()

	m := NewMonitor(Config{FailureThreshold: 3, Bus: bus})
	err := m.Register(Target{ID: "api", URL: srv.URL, MaxResponseTime: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	st, err := m.ForceCheck(context.Background(), "api")
	if err != nil {
		t.Fatal(err)
	}

	if st.State != StateDegraded {
		t.Errorf("State = %v, want %v", st.State, StateDegraded)
	}
	if st.TotalFailures != 1 {
		t.Errorf("TotalFailures = %d, want 1", st.TotalFailures)
	}

	evts := drainEvents(ch)
	if n := countType(evts, events.TypeDegradedPerformance); n != 1 {
		t.Errorf("degraded-performance alerts = %d, want 1", n)
	}
}

func TestCriticalTargetAlertSeverity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(16)
	defer cancel()

	m := NewMonitor(Config{Bus: bus})
	err := m.Register(Target{ID: "db", URL: srv.URL, Priority: PriorityCritical})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.ForceCheck(context.Background(), "db"); err != nil {
		t.Fatal(err)
	}

	evts := drainEvents(ch)
	if len(evts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(evts))
	}
	if evts[0].Severity != events.SeverityCritical {
		t.Errorf("Severity = %v, want %v", evts[0].Severity, events.SeverityCritical)
	}
}

func TestPercentilesNeedMinimumSamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMonitor(Config{MinPercentileSamples: 5})
	if err := m.Register(Target{ID: "api", URL: srv.URL}); err != nil {
		t.Fatal(err)
	}

	var st Status
	var err error
	for i := 0; i < 4; i++ {
		st, err = m.ForceCheck(context.Background(), "api")
		if err != nil {
			t.Fatal(err)
		}
	}
	if st.P95ResponseTime != 0 {
		t.Errorf("P95 computed with %d samples, want deferred until 5", 4)
	}

	st, err = m.ForceCheck(context.Background(), "api")
	if err != nil {
		t.Fatal(err)
	}
	if st.P95ResponseTime < 0 {
		t.Errorf("P95 = %v", st.P95ResponseTime)
	}
}

func TestUnregister(t *testing.T) {
	m := NewMonitor(Config{})
	if err := m.Register(Target{ID: "api", URL: "http://example.com"}); err != nil {
		t.Fatal(err)
	}

	if err := m.Unregister("api"); err != nil {
		t.Fatalf("Unregister() = %v", err)
	}
	if err := m.Unregister("api"); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("second Unregister = %v, want ErrTargetNotFound", err)
	}
	if _, err := m.Status("api"); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Status after Unregister = %v, want ErrTargetNotFound", err)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMonitor(Config{DefaultInterval: time.Hour})
	err := m.Register(Target{ID: "api", URL: srv.URL, Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if err := m.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	m.Stop()
	m.Stop() // idempotent
}

func TestForceCheckUnknownTarget(t *testing.T) {
	m := NewMonitor(Config{})
	if _, err := m.ForceCheck(context.Background(), "ghost"); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("ForceCheck = %v, want ErrTargetNotFound", err)
	}
}

func TestSummary(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	m := NewMonitor(Config{FailureThreshold: 1})
	if err := m.Register(Target{ID: "up", URL: healthy.URL}); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(Target{ID: "down", URL: failing.URL}); err != nil {
		t.Fatal(err)
	}
	if err := m.ForceCheckAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	s := m.Summary()
	if s.TotalTargets != 2 {
		t.Errorf("TotalTargets = %d, want 2", s.TotalTargets)
	}
	if s.HealthyCount != 1 || s.UnhealthyCount != 1 {
		t.Errorf("healthy/unhealthy = %d/%d, want 1/1", s.HealthyCount, s.UnhealthyCount)
	}
	if s.OverallState != StateUnhealthy {
		t.Errorf("OverallState = %v, want %v", s.OverallState, StateUnhealthy)
	}
	if len(s.CriticalIssues) == 0 {
		t.Error("CriticalIssues is empty with an unhealthy target")
	}
}
