// Package ratelimit provides per-key admission control. SlidingWindowLimiter
// guards score submissions with an exact trailing-window count;
// TokenBucketLimiter, backed by golang.org/x/time/rate, guards the API as a
// whole through Middleware, which also sets standard rate limit headers.
//
// All state is in memory and per process. Several instances behind a load
// balancer each enforce their own windows.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter defines the rate limiting contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Allow checks whether a request identified by key should be allowed.
	// Returns whether the request is allowed and rate information for
	// populating response headers.
	Allow(key string) (allowed bool, info Info)

	// Close stops background goroutines and releases resources.
	Close()
}

// Info contains rate limit state for populating response headers.
type Info struct {
	Limit      int           // Maximum requests per window
	Remaining  int           // Requests left in the current window
	ResetAt    time.Time     // When the full allowance is available again
	RetryAfter time.Duration // How long to wait (meaningful only when denied)
}

// Option configures a limiter.
type Option func(*settings)

type settings struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

func applyOptions(opts []Option) settings {
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// sweeper calls sweep every interval until stopped. A non-positive interval
// starts nothing; stop is still safe to call, any number of times.
type sweeper struct {
	done chan struct{}
	once sync.Once
}

func startSweeper(interval time.Duration, sweep func()) *sweeper {
	s := &sweeper{done: make(chan struct{})}
	if interval <= 0 {
		return s
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()
	return s
}

func (s *sweeper) stop() {
	s.once.Do(func() { close(s.done) })
}
