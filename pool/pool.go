package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/runtimeops/events"
	"github.com/jonwraymond/runtimeops/telemetry"
)

// Config configures one named pool.
type Config struct {
	// Name identifies the pool within a Manager.
	Name string

	// MinSize is the number of entries pre-warmed at creation and kept
	// through reclamation. Default: 2.
	MinSize int

	// MaxSize caps the total number of entries. Default: 10.
	MaxSize int

	// IdleTimeout is how long an available entry may sit unused before
	// reclamation destroys it. Default: 5 minutes.
	IdleTimeout time.Duration

	// Lifecycle supplies the create/reset/validate/destroy behaviors.
	Lifecycle Lifecycle

	// Logger receives structured pool logs. Default: no-op.
	Logger telemetry.Logger

	// Bus receives pool lifecycle events. Optional.
	Bus *events.Bus
}

// Item wraps a pooled object together with its bookkeeping. Items are
// handed out by Acquire and must be returned via Release.
type Item struct {
	value        any
	createdAt    time.Time
	lastUsed     time.Time
	checkedOutAt time.Time
	useCount     int64
	available    bool
	lifetime     time.Duration
}

// Value returns the wrapped object.
func (it *Item) Value() any { return it.value }

// UseCount returns how many times the item has been acquired.
func (it *Item) UseCount() int64 { return it.useCount }

// Stats is a point-in-time snapshot of one pool's accounting.
type Stats struct {
	Name string `json:"name"`

	TotalCreated   int64 `json:"total_created"`
	TotalDestroyed int64 `json:"total_destroyed"`
	TotalReused    int64 `json:"total_reused"`
	Acquisitions   int64 `json:"acquisitions"`
	Misses         int64 `json:"misses"`

	CurrentSize int `json:"current_size"`
	Available   int `json:"available"`
	CheckedOut  int `json:"checked_out"`

	// HitRate is the fraction of acquisitions satisfied by reuse.
	HitRate float64 `json:"hit_rate"`

	// AvgLifetime is the mean accumulated checked-out time per release.
	AvgLifetime time.Duration `json:"avg_lifetime"`

	// CreationRate and DestructionRate are entries per minute since the
	// pool was created.
	CreationRate    float64 `json:"creation_rate"`
	DestructionRate float64 `json:"destruction_rate"`
}

// Pool owns a set of reusable objects. An entry is never simultaneously
// available and checked out; Acquire never blocks.
type Pool struct {
	config Config
	life   Lifecycle
	log    telemetry.Logger
	bus    *events.Bus

	mu          sync.Mutex
	items       map[*Item]struct{}
	available   []*Item
	created     int64
	destroyed   int64
	reused      int64
	misses      int64
	acquired    int64
	releases    int64
	lifetimeSum time.Duration
	startedAt   time.Time
}

// New creates a pool and pre-warms it to MinSize. Sizing and lifecycle
// problems are reported here, not deferred to first use; pre-warm creation
// failures are logged and tolerated.
func New(config Config) (*Pool, error) {
	if config.Name == "" {
		return nil, ErrMissingPoolName
	}
	if config.Lifecycle == nil {
		return nil, fmt.Errorf("%w: pool %q", ErrMissingLifecycle, config.Name)
	}
	if config.MinSize < 0 || config.MaxSize < 0 {
		return nil, fmt.Errorf("%w: pool %q: negative size", ErrInvalidSize, config.Name)
	}
	if config.MinSize == 0 {
		config.MinSize = 2
	}
	if config.MaxSize == 0 {
		config.MaxSize = 10
	}
	if config.MinSize > config.MaxSize {
		return nil, fmt.Errorf("%w: pool %q: min %d > max %d", ErrInvalidSize, config.Name, config.MinSize, config.MaxSize)
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 5 * time.Minute
	}
	log := config.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}

	p := &Pool{
		config:    config,
		life:      config.Lifecycle,
		log:       log.WithComponent("pool." + config.Name),
		bus:       config.Bus,
		items:     make(map[*Item]struct{}),
		startedAt: time.Now(),
	}

	ctx := context.Background()
	for i := 0; i < config.MinSize; i++ {
		if _, err := p.createLocked(ctx); err != nil {
			p.log.Warn(ctx, "pre-warm create failed", telemetry.F("error", err.Error()))
		}
	}
	return p, nil
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.config.Name }

// Acquire hands out an available entry, creating one if the pool is under
// MaxSize. It never blocks: with no capacity left it records a miss and
// returns ErrExhausted. A reset failure destroys the offending entry and
// the acquisition is retried once.
func (p *Pool) Acquire(ctx context.Context) (*Item, error) {
	p.mu.Lock()
	p.acquired++
	p.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		item, err := p.tryAcquire(ctx)
		if err == nil {
			p.publish(events.New(events.TypePoolAcquired, p.config.Name, events.SeverityInfo, "item acquired").
				WithData(map[string]any{"use_count": item.useCount}))
			return item, nil
		}
		if err == ErrExhausted {
			p.mu.Lock()
			p.misses++
			p.mu.Unlock()
			p.publish(events.New(events.TypePoolExhausted, p.config.Name, events.SeverityWarning, "pool exhausted"))
			return nil, fmt.Errorf("%w: %q", ErrExhausted, p.config.Name)
		}
		// Reset or create failed; the entry was destroyed. Retry once.
		p.log.Warn(ctx, "acquire attempt failed", telemetry.F("error", err.Error()))
		lastErr = err
	}
	return nil, lastErr
}

// tryAcquire performs one acquisition attempt.
func (p *Pool) tryAcquire(ctx context.Context) (*Item, error) {
	now := time.Now()

	p.mu.Lock()
	var item *Item
	if n := len(p.available); n > 0 {
		item = p.available[n-1]
		p.available = p.available[:n-1]
		item.available = false
		item.useCount++
		item.lastUsed = now
		item.checkedOutAt = now
		p.mu.Unlock()

		if err := safeReset(p.life, item.value); err != nil {
			p.destroy(item)
			return nil, fmt.Errorf("pool: reset failed: %w", err)
		}
		if item.useCount > 1 {
			p.mu.Lock()
			p.reused++
			p.mu.Unlock()
		}
		return item, nil
	}

	if len(p.items) >= p.config.MaxSize {
		p.mu.Unlock()
		return nil, ErrExhausted
	}

	item, err := p.createLocked(ctx)
	if err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("pool: create failed: %w", err)
	}
	item.available = false
	item.useCount = 1
	item.checkedOutAt = now
	// Remove the fresh entry from the available stack; it goes straight out.
	p.available = p.available[:len(p.available)-1]
	p.mu.Unlock()
	return item, nil
}

// Release returns a checked-out item to the pool. Releasing an item twice
// is a caller bug: it is logged and reported, never panics.
func (p *Pool) Release(item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: %q: nil item", ErrNotOwned, p.config.Name)
	}
	now := time.Now()

	p.mu.Lock()
	if _, ok := p.items[item]; !ok {
		p.mu.Unlock()
		p.log.Warn(context.Background(), "release of unknown item")
		return fmt.Errorf("%w: %q", ErrNotOwned, p.config.Name)
	}
	if item.available {
		p.mu.Unlock()
		p.log.Warn(context.Background(), "double release")
		return fmt.Errorf("%w: %q", ErrAlreadyReleased, p.config.Name)
	}

	item.available = true
	item.lastUsed = now
	held := now.Sub(item.checkedOutAt)
	item.lifetime += held
	p.lifetimeSum += held
	p.releases++
	p.available = append(p.available, item)
	p.mu.Unlock()

	p.publish(events.New(events.TypePoolReleased, p.config.Name, events.SeverityInfo, "item released"))
	return nil
}

// createLocked builds a new entry and pushes it onto the available stack.
// Caller holds p.mu.
func (p *Pool) createLocked(ctx context.Context) (*Item, error) {
	value, err := safeCreate(ctx, p.life)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	item := &Item{
		value:     value,
		createdAt: now,
		lastUsed:  now,
		available: true,
	}
	p.items[item] = struct{}{}
	p.available = append(p.available, item)
	p.created++
	return item, nil
}

// destroy removes the item from the pool and runs the owner's Destroy.
// Destroy failures are logged and swallowed.
func (p *Pool) destroy(item *Item) {
	p.mu.Lock()
	if _, ok := p.items[item]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.items, item)
	for i, it := range p.available {
		if it == item {
			p.available = append(p.available[:i], p.available[i+1:]...)
			break
		}
	}
	p.destroyed++
	p.mu.Unlock()

	if err := safeDestroy(p.life, item.value); err != nil {
		p.log.Warn(context.Background(), "destroy failed", telemetry.F("error", err.Error()))
	}
}

// Reclaim destroys available entries that are idle past IdleTimeout or
// fail validation, keeping the pool at MinSize or above.
func (p *Pool) Reclaim(now time.Time) int {
	p.mu.Lock()
	candidates := make([]*Item, len(p.available))
	copy(candidates, p.available)
	size := len(p.items)
	minSize := p.config.MinSize
	idle := p.config.IdleTimeout
	p.mu.Unlock()

	reclaimed := 0
	for _, item := range candidates {
		if size-reclaimed <= minSize {
			break
		}
		stale := idle > 0 && now.Sub(item.lastUsed) > idle
		if stale || !safeValidate(p.life, item.value) {
			p.destroy(item)
			reclaimed++
		}
	}
	return reclaimed
}

// Shrink destroys available entries until the pool holds at most max, and
// lowers the configured sizing floor/ceiling. Checked-out entries are
// never touched.
func (p *Pool) Shrink(min, max int) int {
	if min < 0 || max < min {
		return 0
	}

	p.mu.Lock()
	p.config.MinSize = min
	p.config.MaxSize = max
	var victims []*Item
	for len(p.available) > 0 && len(p.items)-len(victims) > max {
		n := len(p.available)
		victims = append(victims, p.available[n-1])
		p.available = p.available[:n-1]
		// destroy() below re-checks membership; keep the entry marked
		// unavailable so nothing else can hand it out.
		victims[len(victims)-1].available = false
	}
	p.mu.Unlock()

	for _, item := range victims {
		p.destroy(item)
	}
	return len(victims)
}

// Close destroys every entry. Called when the pool is removed.
func (p *Pool) Close() {
	p.mu.Lock()
	victims := make([]*Item, 0, len(p.items))
	for item := range p.items {
		victims = append(victims, item)
	}
	p.mu.Unlock()

	for _, item := range victims {
		p.destroy(item)
	}
}

// Stats returns a snapshot of the pool's accounting.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Name:           p.config.Name,
		TotalCreated:   p.created,
		TotalDestroyed: p.destroyed,
		TotalReused:    p.reused,
		Acquisitions:   p.acquired,
		Misses:         p.misses,
		CurrentSize:    len(p.items),
		Available:      len(p.available),
		CheckedOut:     len(p.items) - len(p.available),
	}
	if p.acquired > 0 {
		s.HitRate = float64(p.reused) / float64(p.acquired)
	}
	if p.releases > 0 {
		s.AvgLifetime = p.lifetimeSum / time.Duration(p.releases)
	}
	if minutes := time.Since(p.startedAt).Minutes(); minutes > 0 {
		s.CreationRate = float64(p.created) / minutes
		s.DestructionRate = float64(p.destroyed) / minutes
	}
	return s
}

func (p *Pool) publish(e events.Event) {
	if p.bus != nil {
		p.bus.Publish(e)
	}
}

// safeCreate, safeReset, safeValidate, and safeDestroy guard the
// owner-supplied callbacks: a panic becomes an error (or a failed
// validation) instead of escaping into pool internals.

func safeCreate(ctx context.Context, life Lifecycle) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pool: create panicked: %v", r)
		}
	}()
	return life.Create(ctx)
}

func safeReset(life Lifecycle, obj any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pool: reset panicked: %v", r)
		}
	}()
	return life.Reset(obj)
}

func safeValidate(life Lifecycle, obj any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return life.Validate(obj)
}

func safeDestroy(life Lifecycle, obj any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pool: destroy panicked: %v", r)
		}
	}()
	return life.Destroy(obj)
}
