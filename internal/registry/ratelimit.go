// Package registry holds the HTTP clients for the external package
// registries and the source-hosting API the availability analyzer queries.
package registry

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every caller of one client.
// Concurrent callers serialize on it; Wait blocks until a token is
// available or the context is done.
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	perSec   float64
	last     time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter returns a full bucket holding capacity tokens refilled at
// perSec tokens per second.
func NewRateLimiter(capacity int, perSec float64) *RateLimiter {
	l := &RateLimiter{
		tokens:   float64(capacity),
		capacity: float64(capacity),
		perSec:   perSec,
		now:      time.Now,
		sleep:    sleepContext,
	}
	l.last = l.now()
	return l
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait consumes one token, blocking until one accrues.
func (l *RateLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		deficit := 1 - l.tokens
		wait := time.Duration(deficit / l.perSec * float64(time.Second))
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// refill accrues tokens for the time elapsed since the last refill.
// Callers hold l.mu.
func (l *RateLimiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.last).Seconds()
	if elapsed <= 0 {
		return
	}
	l.last = now
	l.tokens += elapsed * l.perSec
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
}
