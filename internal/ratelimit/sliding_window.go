package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most capacity requests per key within any
// trailing window. It keeps the admission times of each key, pruning the
// expired ones on every check, so the count is exact rather than
// approximated from buckets.
//
// A denied request is not recorded: hammering a limited key does not extend
// its lockout.
type SlidingWindowLimiter struct {
	capacity int
	window   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
	sweeper *sweeper
}

// NewSlidingWindowLimiter creates a limiter admitting capacity requests per key
// per window. When cleanupInterval is positive a background goroutine drops
// keys whose windows have fully expired.
func NewSlidingWindowLimiter(capacity int, window, cleanupInterval time.Duration, opts ...Option) *SlidingWindowLimiter {
	l := &SlidingWindowLimiter{
		capacity: capacity,
		window:   window,
		now:      applyOptions(opts).now,
		windows:  make(map[string][]time.Time),
	}
	l.sweeper = startSweeper(cleanupInterval, l.evictStale)
	return l
}

// Allow implements Limiter.
func (l *SlidingWindowLimiter) Allow(key string) (bool, Info) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Read under the lock so each key's times are appended in ascending order.
	now := l.now()
	times := prune(l.windows[key], now.Add(-l.window))

	info := Info{Limit: l.capacity}

	if len(times) >= l.capacity {
		l.store(key, times)
		info.Remaining = 0
		if len(times) > 0 {
			info.ResetAt = times[len(times)-1].Add(l.window)
			info.RetryAfter = times[0].Add(l.window).Sub(now)
		} else {
			info.ResetAt = now.Add(l.window)
			info.RetryAfter = l.window
		}
		return false, info
	}

	times = append(times, now)
	l.windows[key] = times

	info.Remaining = l.capacity - len(times)
	info.ResetAt = now.Add(l.window)
	return true, info
}

// Close stops the background cleanup goroutine.
func (l *SlidingWindowLimiter) Close() {
	l.sweeper.stop()
}

// store keeps a pruned window, dropping the key once it is empty.
func (l *SlidingWindowLimiter) store(key string, times []time.Time) {
	if len(times) == 0 {
		delete(l.windows, key)
		return
	}
	l.windows[key] = times
}

// prune drops admission times at or before cutoff. times is ascending.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}

// evictStale removes keys with no admissions left inside the window.
func (l *SlidingWindowLimiter) evictStale() {
	cutoff := l.now().Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, times := range l.windows {
		l.store(key, prune(times, cutoff))
	}
}
