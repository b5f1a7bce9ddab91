// Package ratelimit spaces requests against upstream providers by a
// minimum interval.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter grants permits at least one interval apart. A zero interval
// never blocks. Callers are served one at a time while the lock is
// held, so concurrent waiters are released in sequence.
type Limiter struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// New builds a limiter with the given minimum spacing between permits.
// Negative intervals are treated as zero.
func New(interval time.Duration) *Limiter {
	if interval < 0 {
		interval = 0
	}
	return &Limiter{interval: interval}
}

// Interval reports the configured spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the next permit is due, then claims it. When ctx is
// done first the permit stays unclaimed and the context error is
// returned.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.interval > 0 && !l.last.IsZero() {
		remaining := l.interval - time.Since(l.last)
		if remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	l.last = time.Now()
	return nil
}
