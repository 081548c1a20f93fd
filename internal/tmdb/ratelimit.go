package tmdb

import (
	"context"
	"sync"
	"time"
)

// Rate limiting configuration for TMDB API calls.
const (
	DefaultRequestsPerSecond = 40
	DefaultMaxRetries        = 5
	DefaultBackoffBase       = 2 * time.Second
	DefaultBackoffMax        = 5 * time.Minute
)

// limiter caps requests inside a rolling one-second window and tracks the
// exponential backoff applied after rate limit responses.
type limiter struct {
	mu        sync.Mutex
	perSecond int
	window    []time.Time
	backoff   time.Duration
	base      time.Duration
	max       time.Duration
	now       func() time.Time
}

func newLimiter(perSecond int, base, max time.Duration) *limiter {
	if perSecond <= 0 {
		perSecond = DefaultRequestsPerSecond
	}
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if max <= 0 {
		max = DefaultBackoffMax
	}
	return &limiter{perSecond: perSecond, base: base, max: max, now: time.Now}
}

// wait blocks until a request slot is free in the rolling window.
func (l *limiter) wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		cutoff := now.Add(-time.Second)
		kept := l.window[:0]
		for _, ts := range l.window {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		l.window = kept

		if len(l.window) < l.perSecond {
			l.window = append(l.window, now)
			l.mu.Unlock()
			return nil
		}
		sleep := time.Second - now.Sub(l.window[0])
		l.mu.Unlock()

		if err := sleepWithContext(ctx, sleep); err != nil {
			return err
		}
	}
}

// rateLimited doubles the backoff (capped) and returns the delay to sleep
// before the next attempt.
func (l *limiter) rateLimited() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backoff == 0 {
		l.backoff = l.base
	} else {
		l.backoff *= 2
		if l.backoff > l.max {
			l.backoff = l.max
		}
	}
	return l.backoff
}

// succeeded resets the backoff after a clean response.
func (l *limiter) succeeded() {
	l.mu.Lock()
	l.backoff = 0
	l.mu.Unlock()
}

// sleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
