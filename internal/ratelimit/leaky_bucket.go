/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"
)

// LeakyBucketLimiter enforces a smoothed request rate using GCRA, a leaky
// bucket variant (https://brandur.org/rate-limiting#gcra). Unlike the fixed
// window there is no reset boundary: capacity drains continuously, so a rate
// of 5 per minute admits one request every 12 seconds plus maxBurst extra
// requests that may be spent back to back. Per-key state lives in an
// in-memory store bounded by maxKeys; maxKeys <= 0 leaves it unbounded.
type LeakyBucketLimiter struct {
	maxRate Rate
	gcra    *throttled.GCRARateLimiterCtx
}

// NewLeakyBucketLimiter creates a new leaky bucket rate limiter.
func NewLeakyBucketLimiter(maxRate Rate, maxBurst, maxKeys int) (*LeakyBucketLimiter, error) {
	if maxRate.Count <= 0 {
		return nil, fmt.Errorf("rate count must be positive, got %d", maxRate.Count)
	}
	if maxRate.Duration <= 0 {
		return nil, fmt.Errorf("rate duration must be positive, got %s", maxRate.Duration)
	}
	if maxBurst < 0 {
		return nil, fmt.Errorf("max burst must not be negative, got %d", maxBurst)
	}

	store, err := memstore.NewCtx(maxKeys)
	if err != nil {
		return nil, fmt.Errorf("new in-memory store: %w", err)
	}
	gcra, err := throttled.NewGCRARateLimiterCtx(store, throttled.RateQuota{
		MaxRate:  throttled.PerDuration(maxRate.Count, maxRate.Duration),
		MaxBurst: maxBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("new GCRA rate limiter: %w", err)
	}
	return &LeakyBucketLimiter{maxRate: maxRate, gcra: gcra}, nil
}

// Allow checks if the request should be allowed based on the rate limit.
// Denials carry the GCRA retry-after, the time until the bucket drains
// enough to admit one more request.
func (l *LeakyBucketLimiter) Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	limited, res, err := l.gcra.RateLimitCtx(ctx, key, 1)
	if err != nil {
		return false, 0, err
	}
	if limited {
		return false, res.RetryAfter, nil
	}
	return true, 0, nil
}

// MaxRate returns the limiter's configured rate.
func (l *LeakyBucketLimiter) MaxRate() Rate {
	return l.maxRate
}
