/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type windowEntry struct {
	count   int
	resetAt time.Time
}

// FixedWindowLimiter counts requests per key in non-overlapping windows of a
// fixed length. The counter for a key resets at each window boundary rather
// than rolling. The entries map grows with the number of distinct keys seen
// within a window; expired entries are reclaimed by RemoveExpired, which the
// sweep worker calls once per window length.
type FixedWindowLimiter struct {
	maxRate Rate

	mu      sync.Mutex
	entries map[string]*windowEntry

	now func() time.Time
}

// NewFixedWindowLimiter creates a new fixed window rate limiter.
func NewFixedWindowLimiter(maxRate Rate) (*FixedWindowLimiter, error) {
	if maxRate.Count <= 0 {
		return nil, fmt.Errorf("rate count must be positive, got %d", maxRate.Count)
	}
	if maxRate.Duration <= 0 {
		return nil, fmt.Errorf("rate duration must be positive, got %s", maxRate.Duration)
	}
	return &FixedWindowLimiter{
		maxRate: maxRate,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}, nil
}

// Allow checks if the request should be allowed based on the rate limit.
// When the limit for the key's current window is exhausted, retryAfter
// carries the time remaining until the window resets.
func (l *FixedWindowLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[key]
	if e == nil || now.After(e.resetAt) {
		l.entries[key] = &windowEntry{count: 1, resetAt: now.Add(l.maxRate.Duration)}
		return true, 0, nil
	}

	e.count++
	if e.count <= l.maxRate.Count {
		return true, 0, nil
	}
	return false, e.resetAt.Sub(now), nil
}

// RemoveExpired deletes every entry whose window has passed and reports how
// many were removed. It takes the same lock as Allow, so a concurrent request
// reinitializing a key cannot race with its deletion; the hold time is
// proportional to the number of entries with no I/O under the lock.
func (l *FixedWindowLimiter) RemoveExpired(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// MaxRate returns the limiter's configured rate.
func (l *FixedWindowLimiter) MaxRate() Rate {
	return l.maxRate
}

func (l *FixedWindowLimiter) entriesLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
