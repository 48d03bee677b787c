package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucketLimiter is an in-memory rate limiter backed by golang.org/x/time/rate.
// Each unique key gets its own bucket refilled at requestsPerMinute and holding
// up to burst tokens. It smooths general API traffic; score submissions are
// additionally gated by a SlidingWindowLimiter.
type TokenBucketLimiter struct {
	every     rate.Limit
	burst     int
	perMinute int
	idleAfter time.Duration
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	sweeper *sweeper
}

// NewTokenBucketLimiter creates a limiter with the given requests-per-minute
// rate and burst size. A non-positive rate disables limiting. When
// cleanupInterval is positive, buckets idle for twice that long are evicted
// in the background.
func NewTokenBucketLimiter(requestsPerMinute, burst int, cleanupInterval time.Duration, opts ...Option) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		every:     rate.Inf,
		burst:     max(burst, 1),
		perMinute: requestsPerMinute,
		idleAfter: 2 * cleanupInterval,
		now:       applyOptions(opts).now,
		buckets:   make(map[string]*bucket),
	}
	if requestsPerMinute > 0 {
		l.every = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	l.sweeper = startSweeper(cleanupInterval, l.evictStale)
	return l
}

// Allow implements Limiter.
func (l *TokenBucketLimiter) Allow(key string) (bool, Info) {
	now := l.now()
	lim := l.bucketFor(key, now)

	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	info := Info{
		Limit:     l.perMinute,
		Remaining: int(math.Max(0, math.Floor(tokens))),
		ResetAt:   now,
	}
	if missing := float64(l.burst) - tokens; missing > 0 && l.every != rate.Inf {
		info.ResetAt = now.Add(time.Duration(missing / float64(l.every) * float64(time.Second)))
	}
	if !allowed {
		// Reserve and cancel to learn the wait without consuming a token.
		r := lim.ReserveN(now, 1)
		info.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}
	return allowed, info
}

func (l *TokenBucketLimiter) bucketFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Close stops the background cleanup goroutine.
func (l *TokenBucketLimiter) Close() {
	l.sweeper.stop()
}

// evictStale removes buckets not seen within idleAfter.
func (l *TokenBucketLimiter) evictStale() {
	cutoff := l.now().Add(-l.idleAfter)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
