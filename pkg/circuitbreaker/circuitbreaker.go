// Package circuitbreaker implements a per-model three-state failure
// automaton (Closed/Open/HalfOpen) and an ordered fallback ladder over
// it. It holds no persisted state: a process restart re-probes every
// model from Closed.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is one of the three automaton states for a single model.
type State int

const (
	// Closed means failures are below threshold; calls proceed normally.
	Closed State = iota
	// Open means failures reached threshold and the cooldown has not
	// yet elapsed; calls must not be routed to this model.
	Open
	// HalfOpen means failures reached threshold but the cooldown has
	// elapsed; a single probe call is permitted.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const (
	// DefaultFailureThreshold is the number of consecutive failures
	// before a model's circuit trips.
	DefaultFailureThreshold = 3
	// DefaultCooldown is how long a tripped circuit stays Open before
	// allowing a probe call.
	DefaultCooldown = 60 * time.Second
)

type modelCounters struct {
	failures    int
	lastFailure time.Time
}

// Breaker tracks failure counters for a set of model ids behind a
// reader-writer mutex so one instance can be shared across routing
// sites. Reads (State, IsAvailable) are lock-free-dominant; writes
// (RecordSuccess/RecordFailure) are short.
type Breaker struct {
	mu        sync.RWMutex
	counters  map[string]*modelCounters
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// New creates a Breaker with the given threshold and cooldown. A
// threshold <= 0 falls back to the default. A cooldown <= 0 means the
// cooldown is always elapsed: a tripped circuit goes straight to
// HalfOpen rather than Open.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &Breaker{
		counters:  make(map[string]*modelCounters),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// State returns the current automaton state for a model. A model never
// recorded a failure is Closed.
func (b *Breaker) State(model string) State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stateLocked(model)
}

func (b *Breaker) stateLocked(model string) State {
	c, ok := b.counters[model]
	if !ok || c.failures < b.threshold {
		return Closed
	}
	if b.cooldown <= 0 {
		return HalfOpen
	}
	if b.now().Sub(c.lastFailure) >= b.cooldown {
		return HalfOpen
	}
	return Open
}

// IsAvailable reports whether a call may currently be routed to model.
// Open is unavailable; Closed and HalfOpen are available (HalfOpen
// permits exactly one probe call in the caller's protocol).
func (b *Breaker) IsAvailable(model string) bool {
	return b.State(model) != Open
}

// RecordSuccess clears a model's failure counters, returning it to
// Closed.
func (b *Breaker) RecordSuccess(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.counters, model)
}

// RecordFailure increments a model's failure counter and stamps the
// failure time, used to compute cooldown elapsed-ness.
func (b *Breaker) RecordFailure(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.counters[model]
	if !ok {
		c = &modelCounters{}
		b.counters[model] = c
	}
	c.failures++
	c.lastFailure = b.now()
}

// Reset clears all counters for every model, as if the process had
// just started.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters = make(map[string]*modelCounters)
}

// FailureCount returns the number of consecutive failures recorded for
// model, for diagnostics and tests.
func (b *Breaker) FailureCount(model string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if c, ok := b.counters[model]; ok {
		return c.failures
	}
	return 0
}
