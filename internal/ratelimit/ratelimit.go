// Package ratelimit counts failed login attempts per identifier (a username
// or a client address) inside a sliding window and locks the identifier for
// a fixed period once the limit is reached.
//
// State is held in process memory. A restart clears every lockout, and two
// processes do not share counters.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds the limiter thresholds.
type Config struct {
	// MaxAttempts is the number of failures that triggers a lockout.
	MaxAttempts int
	// Window is how long failures keep counting after the first one.
	Window time.Duration
	// Lockout is how long an identifier stays locked.
	Lockout time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 5, Window: 5 * time.Minute, Lockout: 5 * time.Minute}
}

type record struct {
	attempts    int
	windowStart time.Time
	lockedUntil time.Time
}

// Limiter is safe for concurrent use. A single mutex guards every record;
// each operation is O(1).
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	records map[string]*record
}

type Option func(*Limiter)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		records: make(map[string]*record),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Limiter) Config() Config {
	return l.cfg
}

// IsLocked reports whether id is locked and, if so, how many whole seconds
// remain (rounded up, so a locked id never reports zero).
func (l *Limiter) IsLocked(id string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[id]
	if !ok {
		return false, 0
	}

	now := l.now()
	if now.Before(r.lockedUntil) {
		return true, ceilSeconds(r.lockedUntil.Sub(now))
	}
	return false, 0
}

// RemainingAttempts returns how many more failures id may have before it is
// locked. A stale window is expired first.
func (l *Limiter) RemainingAttempts(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[id]
	if !ok {
		return l.cfg.MaxAttempts
	}
	l.expireWindow(r, l.now())

	return max(0, l.cfg.MaxAttempts-r.attempts)
}

// RecordAttempt registers the outcome of an attempt. Success clears id.
// A failure counts toward the window and locks id once MaxAttempts is hit.
func (l *Limiter) RecordAttempt(id string, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		delete(l.records, id)
		return
	}

	now := l.now()
	r, ok := l.records[id]
	if !ok {
		r = &record{}
		l.records[id] = r
	}
	l.expireWindow(r, now)

	if r.attempts == 0 {
		r.windowStart = now
	}
	r.attempts++

	if r.attempts >= l.cfg.MaxAttempts {
		r.lockedUntil = now.Add(l.cfg.Lockout)
	}
}

// Unlock clears id regardless of its state.
func (l *Limiter) Unlock(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, id)
}

// Reset clears every identifier.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make(map[string]*record)
}

// expireWindow resets the failure count once the window has passed. The
// lock deadline is kept; IsLocked compares it with the clock.
// Must be called with l.mu held.
func (l *Limiter) expireWindow(r *record, now time.Time) {
	if r.attempts > 0 && now.Sub(r.windowStart) > l.cfg.Window {
		r.attempts = 0
		r.windowStart = time.Time{}
	}
}

func ceilSeconds(d time.Duration) int {
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
