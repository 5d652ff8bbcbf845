package pool

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/jonwraymond/runtimeops/events"
	"github.com/jonwraymond/runtimeops/telemetry"
)

// ManagerConfig configures the pool manager.
type ManagerConfig struct {
	// ReclaimInterval is how often idle/invalid entries are reclaimed.
	// Default: 60 seconds.
	ReclaimInterval time.Duration

	// MemoryInterval is how often memory is sampled. Default: 30 seconds.
	MemoryInterval time.Duration

	// MemoryWarnBytes and MemoryWarnPercent are the heap thresholds that
	// emit a memory-pressure event. Defaults: 512 MiB, 75%.
	MemoryWarnBytes   uint64
	MemoryWarnPercent float64

	// GCTriggerBytes and GCTriggerPercent are the heap thresholds that
	// invoke a forced collection. Defaults: 1 GiB, 90%.
	GCTriggerBytes   uint64
	GCTriggerPercent float64

	// HistoryWindow bounds the retained memory samples. Default: 1 hour.
	HistoryWindow time.Duration

	// MaxCollections caps retained collection records. Default: 100.
	MaxCollections int

	// GCFunc performs a forced collection. Default: runtime.GC. Set
	// GCDisabled instead of a nil func to model an environment without
	// forced collection; then the trigger logs once and skips.
	GCFunc     func()
	GCDisabled bool

	// Logger receives structured manager logs. Default: no-op.
	Logger telemetry.Logger

	// Bus receives pool and memory events. Optional.
	Bus *events.Bus
}

// Manager owns a set of named pools plus the reclamation and
// memory-sampling loops.
type Manager struct {
	config ManagerConfig
	log    telemetry.Logger
	bus    *events.Bus
	proc   *process.Process

	mu          sync.RWMutex
	pools       map[string]*Pool
	memHistory  []MemorySample
	collections []Collection
	running     bool
	gcLogged    bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewManager creates a pool manager.
func NewManager(config ManagerConfig) *Manager {
	if config.ReclaimInterval <= 0 {
		config.ReclaimInterval = 60 * time.Second
	}
	if config.MemoryInterval <= 0 {
		config.MemoryInterval = 30 * time.Second
	}
	if config.MemoryWarnBytes == 0 {
		config.MemoryWarnBytes = 512 << 20
	}
	if config.MemoryWarnPercent <= 0 {
		config.MemoryWarnPercent = 75
	}
	if config.GCTriggerBytes == 0 {
		config.GCTriggerBytes = 1 << 30
	}
	if config.GCTriggerPercent <= 0 {
		config.GCTriggerPercent = 90
	}
	if config.HistoryWindow <= 0 {
		config.HistoryWindow = time.Hour
	}
	if config.MaxCollections <= 0 {
		config.MaxCollections = 100
	}
	if config.GCFunc == nil {
		config.GCFunc = runtime.GC
	}
	log := config.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}

	m := &Manager{
		config: config,
		log:    log.WithComponent("pools"),
		bus:    config.Bus,
		pools:  make(map[string]*Pool),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = proc
	}
	return m
}

// CreatePool registers and pre-warms a new named pool. Reusing a pool name
// is a configuration error reported here.
func (m *Manager) CreatePool(config Config) (*Pool, error) {
	if config.Logger == nil {
		config.Logger = m.config.Logger
	}
	if config.Bus == nil {
		config.Bus = m.bus
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pools[config.Name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicatePool, config.Name)
	}

	p, err := New(config)
	if err != nil {
		return nil, err
	}
	m.pools[config.Name] = p

	m.publish(events.New(events.TypePoolCreated, config.Name, events.SeverityInfo,
		fmt.Sprintf("pool %q created", config.Name)).
		WithData(map[string]any{"min_size": p.config.MinSize, "max_size": p.config.MaxSize}))
	return p, nil
}

// RemovePool destroys the pool's entries and unregisters it.
func (m *Manager) RemovePool(name string) error {
	m.mu.Lock()
	p, ok := m.pools[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrPoolNotFound, name)
	}
	delete(m.pools, name)
	m.mu.Unlock()

	p.Close()
	m.publish(events.New(events.TypePoolDestroyed, name, events.SeverityInfo,
		fmt.Sprintf("pool %q destroyed", name)))
	return nil
}

// Get returns the named pool.
func (m *Manager) Get(name string) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPoolNotFound, name)
	}
	return p, nil
}

// Acquire acquires an item from the named pool.
func (m *Manager) Acquire(ctx context.Context, name string) (*Item, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return p.Acquire(ctx)
}

// Release returns an item to the named pool.
func (m *Manager) Release(name string, item *Item) error {
	p, err := m.Get(name)
	if err != nil {
		return err
	}
	return p.Release(item)
}

// PoolStats returns a snapshot of every pool's accounting.
func (m *Manager) PoolStats() map[string]Stats {
	m.mu.RLock()
	pools := make([]*Pool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.RUnlock()

	out := make(map[string]Stats, len(pools))
	for _, p := range pools {
		out[p.Name()] = p.Stats()
	}
	return out
}

// Start launches the reclamation and memory-sampling loops.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}
	m.running = true
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(2)
	go m.reclaimLoop()
	go m.memoryLoop()

	m.publish(events.New(events.TypeComponentStart, "pools", events.SeverityInfo, "pool manager started"))
	return nil
}

// Stop halts both loops and closes every pool. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()

	for name := range m.PoolStats() {
		if err := m.RemovePool(name); err != nil {
			m.log.Warn(context.Background(), "pool teardown failed",
				telemetry.F("pool", name), telemetry.F("error", err.Error()))
		}
	}
	m.publish(events.New(events.TypeComponentStop, "pools", events.SeverityInfo, "pool manager stopped"))
}

func (m *Manager) reclaimLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			for _, p := range m.poolList() {
				if n := p.Reclaim(now); n > 0 {
					m.log.Debug(context.Background(), "reclaimed idle entries",
						telemetry.F("pool", p.Name()), telemetry.F("count", n))
				}
			}
		}
	}
}

func (m *Manager) memoryLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.MemoryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sampleMemory()
		}
	}
}

// sampleMemory records one memory sample, emits pressure events, and
// triggers a forced collection past the GC thresholds.
func (m *Manager) sampleMemory() {
	sample := memorySample(m.proc)

	m.mu.Lock()
	m.memHistory = append(m.memHistory, sample)
	m.pruneHistoryLocked(time.Now())
	m.mu.Unlock()

	warn := sample.HeapAllocBytes >= m.config.MemoryWarnBytes ||
		sample.HeapPercent >= m.config.MemoryWarnPercent
	trigger := sample.HeapAllocBytes >= m.config.GCTriggerBytes ||
		sample.HeapPercent >= m.config.GCTriggerPercent

	if warn || trigger {
		severity := events.SeverityWarning
		if trigger {
			severity = events.SeverityCritical
		}
		m.publish(events.New(events.TypeMemoryPressure, "pools", severity,
			fmt.Sprintf("heap %d bytes (%.1f%% of total)", sample.HeapAllocBytes, sample.HeapPercent)).
			WithData(map[string]any{
				"heap_alloc_bytes": sample.HeapAllocBytes,
				"heap_percent":     sample.HeapPercent,
			}))
	}
	if trigger {
		m.ForceCollection()
	}
}

// ForceCollection runs a forced garbage collection and records the
// before/after delta. With collection disabled it logs once and returns a
// zero-valued record; it never fails.
func (m *Manager) ForceCollection() Collection {
	if m.config.GCDisabled {
		m.mu.Lock()
		if !m.gcLogged {
			m.gcLogged = true
			m.log.Warn(context.Background(), "forced collection unavailable, skipping")
		}
		m.mu.Unlock()
		return Collection{StartedAt: time.Now()}
	}

	before := memorySample(m.proc)
	start := time.Now()
	m.config.GCFunc()
	duration := time.Since(start)
	after := memorySample(m.proc)

	c := Collection{
		StartedAt: start,
		Duration:  duration,
		Before:    before,
		After:     after,
	}
	if before.HeapAllocBytes > after.HeapAllocBytes {
		c.FreedBytes = before.HeapAllocBytes - after.HeapAllocBytes
	}

	m.mu.Lock()
	m.collections = append(m.collections, c)
	if len(m.collections) > m.config.MaxCollections {
		m.collections = m.collections[len(m.collections)-m.config.MaxCollections:]
	}
	m.mu.Unlock()

	m.publish(events.New(events.TypeCollectionForced, "pools", events.SeverityInfo,
		fmt.Sprintf("forced collection freed %d bytes in %s", c.FreedBytes, duration.Round(time.Millisecond))).
		WithData(map[string]any{"freed_bytes": c.FreedBytes, "duration_ms": duration.Milliseconds()}))
	return c
}

// OptimizeResult summarizes one Optimize pass.
type OptimizeResult struct {
	Collection Collection     `json:"collection"`
	Shrunk     map[string]int `json:"shrunk,omitempty"`
}

// Optimize forces a collection, shrinks oversized pools toward the current
// demand (1.2x min, 2x max), and prunes old memory history.
func (m *Manager) Optimize() OptimizeResult {
	result := OptimizeResult{
		Collection: m.ForceCollection(),
		Shrunk:     make(map[string]int),
	}

	for _, p := range m.poolList() {
		s := p.Stats()
		if s.Available <= 2*s.CheckedOut {
			continue
		}
		newMin := int(math.Ceil(float64(s.CheckedOut) * 1.2))
		if newMin < 1 {
			newMin = 1
		}
		newMax := s.CheckedOut * 2
		if newMax < newMin {
			newMax = newMin
		}
		if n := p.Shrink(newMin, newMax); n > 0 {
			result.Shrunk[p.Name()] = n
		}
	}

	m.mu.Lock()
	m.pruneHistoryLocked(time.Now())
	m.mu.Unlock()
	return result
}

// MemoryReport returns the current sample, retained history, collection
// records, and per-pool stats.
func (m *Manager) MemoryReport() MemoryReport {
	report := MemoryReport{
		Current: memorySample(m.proc),
		Pools:   m.PoolStats(),
	}

	m.mu.RLock()
	report.History = make([]MemorySample, len(m.memHistory))
	copy(report.History, m.memHistory)
	report.Collections = make([]Collection, len(m.collections))
	copy(report.Collections, m.collections)
	m.mu.RUnlock()
	return report
}

// pruneHistoryLocked drops memory samples older than HistoryWindow.
// Caller holds m.mu.
func (m *Manager) pruneHistoryLocked(now time.Time) {
	cutoff := now.Add(-m.config.HistoryWindow)
	i := 0
	for i < len(m.memHistory) && m.memHistory[i].Timestamp.Before(cutoff) {
		i++
	}
	m.memHistory = m.memHistory[i:]
}

func (m *Manager) poolList() []*Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Pool, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p)
	}
	return out
}

func (m *Manager) publish(e events.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}
