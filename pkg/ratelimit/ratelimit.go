// Package ratelimit spaces out requests against a single site.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces operations to a fixed rate with optional jitter.
// It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	lim      *rate.Limiter
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
}

// NewLimiter creates a limiter allowing rps operations per second with a
// burst of one. Jitter is clamped to [0, 1]. If rps is <= 0, Wait never blocks.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	if rps <= 0 {
		return &Limiter{jitter: jitter}
	}
	return &Limiter{
		lim:      rate.NewLimiter(rate.Limit(rps), 1),
		jitter:   jitter,
		interval: time.Duration(float64(time.Second) / rps),
	}
}

// Wait blocks until the next operation may run or ctx is done. The first call
// returns immediately.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.lim == nil {
		return ctx.Err()
	}
	if err := l.lim.Wait(ctx); err != nil {
		return err
	}
	if l.jitter == 0 {
		return nil
	}

	// Only positive jitter delays; the token bucket already enforces the floor.
	extra := time.Duration(float64(l.interval) * l.jitter * rand.Float64())
	if extra <= 0 {
		return nil
	}
	t := time.NewTimer(extra)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interval is the nominal spacing between operations, zero when unlimited.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
