package breaker

import (
	"sync"
	"time"
)

// State of one resource's breaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config tunes the breaker. Rate-limit failures trip at a lower
// threshold than generic ones: they signal a hard external quota, not
// transient flakiness.
type Config struct {
	FailureThreshold   int
	RateLimitThreshold int
	Window             time.Duration
	Cooldown           time.Duration
}

// DefaultConfig mirrors production settings.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:   5,
		RateLimitThreshold: 2,
		Window:             time.Minute,
		Cooldown:           30 * time.Second,
	}
}

type resourceState struct {
	state         State
	failures      int
	rateLimited   int
	firstFailure  time.Time
	openedAt      time.Time
	trialInFlight bool
}

// Breaker is a per-resource circuit breaker. Counters are shared by
// concurrent workers reporting for the same upstream resource, so every
// access holds the mutex.
type Breaker struct {
	mu  sync.Mutex
	cfg Config
	m   map[string]*resourceState

	// now is swappable in tests.
	now func() time.Time

	onStateChange func(resource string, state State)
}

// New builds a breaker with the given config; zero fields fall back to
// defaults.
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RateLimitThreshold <= 0 {
		cfg.RateLimitThreshold = def.RateLimitThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Breaker{cfg: cfg, m: make(map[string]*resourceState), now: time.Now}
}

// OnStateChange registers a hook invoked (outside the lock) whenever a
// resource transitions state. Used for metrics.
func (b *Breaker) OnStateChange(fn func(resource string, state State)) {
	b.mu.Lock()
	b.onStateChange = fn
	b.mu.Unlock()
}

// CanExecute reports whether a call to resource may proceed. While open
// it fails fast; after the cooldown it permits exactly one trial call
// (half-open) until that trial reports back.
func (b *Breaker) CanExecute(resource string) bool {
	b.mu.Lock()
	rs := b.get(resource)
	switch rs.state {
	case StateClosed:
		b.mu.Unlock()
		return true
	case StateOpen:
		if b.now().Sub(rs.openedAt) >= b.cfg.Cooldown {
			rs.state = StateHalfOpen
			rs.trialInFlight = true
			fn := b.onStateChange
			b.mu.Unlock()
			if fn != nil {
				fn(resource, StateHalfOpen)
			}
			return true
		}
		b.mu.Unlock()
		return false
	case StateHalfOpen:
		if rs.trialInFlight {
			b.mu.Unlock()
			return false
		}
		rs.trialInFlight = true
		b.mu.Unlock()
		return true
	}
	b.mu.Unlock()
	return false
}

// RecordSuccess reports a successful call on resource.
func (b *Breaker) RecordSuccess(resource string) {
	b.mu.Lock()
	rs := b.get(resource)
	var fn func(string, State)
	if rs.state == StateHalfOpen {
		fn = b.onStateChange
	}
	rs.state = StateClosed
	rs.failures = 0
	rs.rateLimited = 0
	rs.trialInFlight = false
	b.mu.Unlock()
	if fn != nil {
		fn(resource, StateClosed)
	}
}

// RecordFailure reports a failed call on resource. isRateLimit marks
// quota errors, which open the breaker sooner.
func (b *Breaker) RecordFailure(resource string, isRateLimit bool) {
	now := b.now()
	b.mu.Lock()
	rs := b.get(resource)

	if rs.state == StateHalfOpen {
		// trial failed, back to open
		rs.state = StateOpen
		rs.openedAt = now
		rs.trialInFlight = false
		rs.failures = 0
		rs.rateLimited = 0
		fn := b.onStateChange
		b.mu.Unlock()
		if fn != nil {
			fn(resource, StateOpen)
		}
		return
	}

	// consecutive failures only count within the rolling window
	if rs.failures == 0 || now.Sub(rs.firstFailure) > b.cfg.Window {
		rs.firstFailure = now
		rs.failures = 0
		rs.rateLimited = 0
	}
	rs.failures++
	if isRateLimit {
		rs.rateLimited++
	}

	tripped := rs.failures >= b.cfg.FailureThreshold ||
		rs.rateLimited >= b.cfg.RateLimitThreshold
	if tripped && rs.state == StateClosed {
		rs.state = StateOpen
		rs.openedAt = now
		fn := b.onStateChange
		b.mu.Unlock()
		if fn != nil {
			fn(resource, StateOpen)
		}
		return
	}
	b.mu.Unlock()
}

// State returns the current state for resource.
func (b *Breaker) State(resource string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(resource).state
}

// caller holds b.mu
func (b *Breaker) get(resource string) *resourceState {
	rs, ok := b.m[resource]
	if !ok {
		rs = &resourceState{state: StateClosed}
		b.m[resource] = rs
	}
	return rs
}
