package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/runtimeops/events"
	"github.com/jonwraymond/runtimeops/health"
	"github.com/jonwraymond/runtimeops/metrics"
	"github.com/jonwraymond/runtimeops/pool"
	"github.com/jonwraymond/runtimeops/telemetry"
	"github.com/jonwraymond/runtimeops/validate"
)

// ErrAlreadyRunning indicates Start was called on a running core.
var ErrAlreadyRunning = errors.New("core: already running")

// Config configures the composed runtime core. The shared Logger and
// event bus are injected into every subsystem; per-subsystem Logger and
// Bus fields are overwritten.
type Config struct {
	// Logger is the shared structured logger. Default: no-op.
	Logger telemetry.Logger

	// EventBuffer sizes subscriber channels handed out by Events.
	// Default: events.DefaultBuffer.
	EventBuffer int

	// ReportWindow bounds the metrics history included in Report.
	// Default: 1 hour.
	ReportWindow time.Duration

	Health     health.Config
	Metrics    metrics.Config
	Pools      pool.ManagerConfig
	Validation validate.Config
}

// Core composes the health monitor, metrics collector, pool manager, and
// validation pipeline behind one lifecycle and one merged report.
//
// Contract:
// - Concurrency: safe for concurrent use after New returns.
// - Lifecycle: Start is rejected while running; Stop is idempotent and
//   stops every subsystem even when one of them fails.
type Core struct {
	config Config
	log    telemetry.Logger
	bus    *events.Bus

	monitor   *health.Monitor
	collector *metrics.Collector
	pools     *pool.Manager
	pipeline  *validate.Pipeline

	mu      sync.Mutex
	running bool
}

// New wires the four subsystems onto a shared logger and event bus.
func New(config Config) (*Core, error) {
	log := config.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = events.DefaultBuffer
	}
	if config.ReportWindow <= 0 {
		config.ReportWindow = time.Hour
	}

	bus := events.NewBus()

	config.Health.Logger = log
	config.Health.Bus = bus
	config.Metrics.Logger = log
	config.Metrics.Bus = bus
	config.Pools.Logger = log
	config.Pools.Bus = bus
	config.Validation.Logger = log
	config.Validation.Bus = bus

	collector, err := metrics.NewCollector(config.Metrics)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("core: metrics collector: %w", err)
	}

	return &Core{
		config:    config,
		log:       log.WithComponent("core"),
		bus:       bus,
		monitor:   health.NewMonitor(config.Health),
		collector: collector,
		pools:     pool.NewManager(config.Pools),
		pipeline:  validate.NewPipeline(config.Validation),
	}, nil
}

// Health returns the health monitor.
func (c *Core) Health() *health.Monitor { return c.monitor }

// Metrics returns the metrics collector.
func (c *Core) Metrics() *metrics.Collector { return c.collector }

// Pools returns the pool manager.
func (c *Core) Pools() *pool.Manager { return c.pools }

// Validation returns the validation pipeline.
func (c *Core) Validation() *validate.Pipeline { return c.pipeline }

// Events subscribes to the shared event stream. The returned cancel
// function releases the subscription.
func (c *Core) Events() (<-chan events.Event, func()) {
	return c.bus.Subscribe(c.config.EventBuffer)
}

// Start launches every subsystem. If any fails to start, the ones
// already running are stopped and the first error is returned.
func (c *Core) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	var g errgroup.Group
	g.Go(c.monitor.Start)
	g.Go(c.collector.Start)
	g.Go(c.pools.Start)

	if err := g.Wait(); err != nil {
		c.stopAll(ctx)
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return fmt.Errorf("core: start: %w", err)
	}

	c.log.Info(ctx, "runtime core started")
	return nil
}

// Stop halts every subsystem. Each subsystem is stopped regardless of
// sibling failures; the joined error is returned. Idempotent: a second
// call is a no-op.
func (c *Core) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	err := c.stopAll(ctx)
	c.log.Info(ctx, "runtime core stopped")
	return err
}

// stopAll stops the subsystems in reverse start order, isolating panics
// so one misbehaving subsystem cannot block its siblings.
func (c *Core) stopAll(ctx context.Context) error {
	return errors.Join(
		c.stopOne(ctx, "pools", c.pools.Stop),
		c.stopOne(ctx, "metrics", c.collector.Stop),
		c.stopOne(ctx, "health", c.monitor.Stop),
	)
}

func (c *Core) stopOne(ctx context.Context, name string, stop func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("core: stopping %s: %v", name, r)
			c.log.Error(ctx, "subsystem stop panicked",
				telemetry.F("subsystem", name), telemetry.F("panic", fmt.Sprint(r)))
		}
	}()
	stop()
	return nil
}

// Close stops the core and closes the shared event bus. After Close,
// Events subscriptions are drained and no further events are delivered.
func (c *Core) Close(ctx context.Context) error {
	err := c.Stop(ctx)
	c.bus.Close()
	return err
}

// StatusReport merges the subsystem reports into one document.
type StatusReport struct {
	GeneratedAt time.Time                     `json:"generated_at"`
	Health      health.Summary                `json:"health"`
	Targets     map[string]health.Status      `json:"targets"`
	Metrics     metrics.Report                `json:"metrics"`
	Pools       map[string]pool.Stats         `json:"pools"`
	Memory      pool.MemoryReport             `json:"memory"`
	Validation  map[string]validate.RuleStats `json:"validation"`
}

// Report merges health, metrics, pool, and validation state into one
// snapshot. Safe to call whether or not the core is running.
func (c *Core) Report() StatusReport {
	return StatusReport{
		GeneratedAt: time.Now(),
		Health:      c.monitor.Summary(),
		Targets:     c.monitor.AllStatuses(),
		Metrics:     c.collector.Report(c.config.ReportWindow),
		Pools:       c.pools.PoolStats(),
		Memory:      c.pools.MemoryReport(),
		Validation:  c.pipeline.Metrics(),
	}
}
