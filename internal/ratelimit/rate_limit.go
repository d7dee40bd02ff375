/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

// Package ratelimit provides per-key rate limiting for the download API.
// The fixed window algorithm is the default; leaky bucket (GCRA) and
// sliding window variants can be selected via configuration.
package ratelimit

import (
	"context"
	"time"
)

// Rate describes the frequency of requests.
type Rate struct {
	Count    int
	Duration time.Duration
}

// Limiter interface defines the rate limiting contract.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}

// Supported rate-limiting algorithm names (as used in configuration).
const (
	AlgFixedWindow   = "fixedWindow"
	AlgLeakyBucket   = "leakyBucket"
	AlgSlidingWindow = "slidingWindow"
)
