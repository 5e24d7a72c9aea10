package ratelimit

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between heartbeats.
const DefaultCooldown = 120 * time.Second

// Limiter decides whether an event may proceed now.
type Limiter interface {
	// ShouldEmit reports whether an emission at now is allowed.
	ShouldEmit(now time.Time) bool

	// Record marks an emission at now.
	Record(now time.Time)

	// Allow checks and records against the limiter's own clock.
	Allow() bool

	// Reset forgets the last emission.
	Reset()
}

// Gate allows at most one emission per cooldown window.
// It is safe for concurrent use.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
	recorded bool
	nowFunc  func() time.Time
}

var _ Limiter = (*Gate)(nil)

// NewGate creates a gate. A non-positive cooldown uses DefaultCooldown.
func NewGate(cooldown time.Duration) *Gate {
	return NewGateWithClock(cooldown, time.Now)
}

// NewGateWithClock creates a gate that reads the time from now.
func NewGateWithClock(cooldown time.Duration, now func() time.Time) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Gate{cooldown: cooldown, nowFunc: now}
}

// Cooldown returns the window length.
func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}

// ShouldEmit reports whether an emission at now is allowed.
func (g *Gate) ShouldEmit(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shouldEmit(now)
}

func (g *Gate) shouldEmit(now time.Time) bool {
	if !g.recorded {
		return true
	}
	return !now.Before(g.last.Add(g.cooldown))
}

// Record marks an emission at now.
func (g *Gate) Record(now time.Time) {
	g.mu.Lock()
	g.last = now
	g.recorded = true
	g.mu.Unlock()
}

// Allow checks the gate at the current time and records on success.
func (g *Gate) Allow() bool {
	now := g.nowFunc()

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.shouldEmit(now) {
		return false
	}
	g.last = now
	g.recorded = true
	return true
}

// Last returns the time of the last recorded emission.
func (g *Gate) Last() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.recorded
}

// Reset forgets the last emission.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.last = time.Time{}
	g.recorded = false
	g.mu.Unlock()
}
