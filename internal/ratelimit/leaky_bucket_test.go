/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// LeakyBucketLimiterTestSuite contains tests for LeakyBucketLimiter
type LeakyBucketLimiterTestSuite struct {
	suite.Suite
}

func TestLeakyBucketLimiter(t *testing.T) {
	suite.Run(t, new(LeakyBucketLimiterTestSuite))
}

func (ts *LeakyBucketLimiterTestSuite) TestInvalidArgs() {
	_, err := NewLeakyBucketLimiter(Rate{Count: 0, Duration: time.Minute}, 0, 100)
	ts.Error(err)

	_, err = NewLeakyBucketLimiter(Rate{Count: 5, Duration: 0}, 0, 100)
	ts.Error(err)

	_, err = NewLeakyBucketLimiter(Rate{Count: 5, Duration: time.Minute}, -1, 100)
	ts.Error(err)
}

func (ts *LeakyBucketLimiterTestSuite) TestAllowedCarriesNoRetryAfter() {
	limiter, err := NewLeakyBucketLimiter(Rate{Count: 5, Duration: time.Minute}, 1, 100)
	ts.Require().NoError(err)
	ts.Equal(Rate{Count: 5, Duration: time.Minute}, limiter.MaxRate())

	allow, retryAfter, allowErr := limiter.Allow(context.Background(), "203.0.113.7")
	ts.NoError(allowErr)
	ts.True(allow)
	ts.Equal(time.Duration(0), retryAfter)
}

func (ts *LeakyBucketLimiterTestSuite) TestBurstThenLimited() {
	limiter, err := NewLeakyBucketLimiter(Rate{Count: 1, Duration: time.Minute}, 2, 100)
	ts.Require().NoError(err)

	ctx := context.Background()
	key := "203.0.113.7"

	// Burst capacity on top of the base rate.
	for i := 0; i < 3; i++ {
		allow, _, allowErr := limiter.Allow(ctx, key)
		ts.NoError(allowErr)
		ts.True(allow, "request %d should be allowed", i+1)
	}

	allow, retryAfter, allowErr := limiter.Allow(ctx, key)
	ts.NoError(allowErr)
	ts.False(allow)
	ts.Greater(retryAfter, time.Duration(0))
}

func (ts *LeakyBucketLimiterTestSuite) TestKeysAreIndependent() {
	limiter, err := NewLeakyBucketLimiter(Rate{Count: 1, Duration: time.Minute}, 0, 100)
	ts.Require().NoError(err)

	ctx := context.Background()

	allow, _, _ := limiter.Allow(ctx, "key-a")
	ts.True(allow)
	allow, _, _ = limiter.Allow(ctx, "key-a")
	ts.False(allow)

	allow, _, _ = limiter.Allow(ctx, "key-b")
	ts.True(allow)
}
