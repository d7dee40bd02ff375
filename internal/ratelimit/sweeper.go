/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/service"
)

// NewSweepWorker returns a periodic worker that removes expired fixed-window
// entries once per window length, bounding memory growth from distinct
// caller keys.
func NewSweepWorker(limiter *FixedWindowLimiter, logger log.FieldLogger) *service.PeriodicWorker {
	sweep := service.WorkerFunc(func(ctx context.Context) error {
		if removed := limiter.RemoveExpired(time.Now()); removed > 0 {
			logger.Debug("removed expired rate limit entries", log.Int("removed_entries", removed))
		}
		return nil
	})
	return service.NewPeriodicWorker(sweep, limiter.MaxRate().Duration, logger)
}
