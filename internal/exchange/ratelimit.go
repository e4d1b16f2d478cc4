package exchange

import (
	"context"

	"golang.org/x/time/rate"
)

// dualWindowLimiter admits a call only once both a per-second and a
// per-minute limiter have capacity. Both are x/time/rate token buckets
// (burst equal to the limit, refilled continuously), not sliding
// windows.
type dualWindowLimiter struct {
	perSecond *rate.Limiter
	perMinute *rate.Limiter
}

func newDualWindowLimiter(perSecondLimit, perMinuteLimit int) *dualWindowLimiter {
	return &dualWindowLimiter{
		perSecond: rate.NewLimiter(rate.Limit(perSecondLimit), perSecondLimit),
		perMinute: rate.NewLimiter(rate.Limit(float64(perMinuteLimit)/60.0), perMinuteLimit),
	}
}

// Wait blocks until both windows admit the call, or ctx is done.
func (l *dualWindowLimiter) Wait(ctx context.Context) error {
	if err := l.perSecond.Wait(ctx); err != nil {
		return err
	}
	return l.perMinute.Wait(ctx)
}
