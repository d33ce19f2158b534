package auth

import (
	"context"
	"sync"
	"time"
)

// Rate limiting defaults: more than 5 failures inside a 15 minute
// window blocks the client for an hour.
const (
	DefaultRateLimitMaxAttempts = 5
	DefaultRateLimitWindow      = 15 * time.Minute
	DefaultRateLimitBlock       = time.Hour
)

type rateEntry struct {
	count        int
	firstAttempt time.Time
	blockedUntil time.Time
}

// RateLimiter tracks failed login attempts per client identifier
// (normally the client IP). Checking an attempt never blocks by itself;
// only recorded failures push a client over the threshold.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateEntry

	maxAttempts int
	window      time.Duration
	blockFor    time.Duration
}

func NewRateLimiter(maxAttempts int, window, blockFor time.Duration) *RateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultRateLimitMaxAttempts
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if blockFor <= 0 {
		blockFor = DefaultRateLimitBlock
	}
	return &RateLimiter{
		entries:     make(map[string]*rateEntry),
		maxAttempts: maxAttempts,
		window:      window,
		blockFor:    blockFor,
	}
}

// Check reports whether id may attempt a login right now. A blocked id
// gets allowed=false and the time remaining until the block lifts.
// Unknown ids and ids whose window has lapsed start a fresh window.
func (rl *RateLimiter) Check(id string) (allowed bool, retryAfter time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[id]
	if !ok {
		rl.entries[id] = &rateEntry{count: 1, firstAttempt: now}
		return true, 0
	}
	if now.Before(e.blockedUntil) {
		return false, e.blockedUntil.Sub(now)
	}
	if now.Sub(e.firstAttempt) > rl.window {
		*e = rateEntry{count: 1, firstAttempt: now}
		return true, 0
	}
	return true, 0
}

// RecordFailure counts a failed attempt against id. Exceeding the
// threshold within the window starts the block.
func (rl *RateLimiter) RecordFailure(id string) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[id]
	if !ok {
		rl.entries[id] = &rateEntry{count: 1, firstAttempt: now}
		return
	}
	if !now.Before(e.blockedUntil) && now.Sub(e.firstAttempt) > rl.window {
		*e = rateEntry{count: 1, firstAttempt: now}
		return
	}
	e.count++
	if e.count > rl.maxAttempts && !now.Before(e.blockedUntil) {
		e.blockedUntil = now.Add(rl.blockFor)
	}
}

// Reset clears all state for id after a successful login.
func (rl *RateLimiter) Reset(id string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, id)
}

// Sweep removes lapsed entries every interval until ctx is done.
func (rl *RateLimiter) Sweep(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.sweep(time.Now())
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, e := range rl.entries {
		if now.Before(e.blockedUntil) {
			continue
		}
		if now.Sub(e.firstAttempt) > rl.window {
			delete(rl.entries, id)
		}
	}
}
