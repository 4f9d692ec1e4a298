package authz

import (
	"context"
	"sync"
	"time"
)

// Attempt is the outcome of recording one attempt against a limiter.
type Attempt struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// AttemptLimiter throttles repeated sensitive operations keyed by an
// identity string, typically source address plus target identity. An
// error from the backing store means the caller must fail closed and
// treat the attempt as disallowed.
type AttemptLimiter interface {
	Record(ctx context.Context, key string, window time.Duration, max int) (Attempt, error)
}

// attemptWindow holds one key's recorded attempts together with the
// window they were recorded under, so eviction always uses the key's
// own window even when the limiter serves callers with different ones.
type attemptWindow struct {
	window time.Duration
	stamps []time.Time
}

// MemoryLimiter is a process-local sliding-window limiter protected by
// a single mutex. Expired entries are evicted lazily by scanning the
// whole map on every call; fine at moderate volume, a known throughput
// bottleneck under high concurrency. Deployments with several API
// processes should use RedisLimiter instead so windows are shared.
type MemoryLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptWindow
	now      func() time.Time
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		attempts: make(map[string]*attemptWindow),
		now:      time.Now,
	}
}

// WithClock replaces the limiter's time source and returns the limiter.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

// Record registers one attempt for the key and reports whether it is
// within the window's budget.
func (l *MemoryLimiter) Record(ctx context.Context, key string, window time.Duration, max int) (Attempt, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, entry := range l.attempts {
		cutoff := now.Add(-entry.window)
		kept := entry.stamps[:0]
		for _, ts := range entry.stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(l.attempts, k)
			continue
		}
		entry.stamps = kept
	}

	entry := l.attempts[key]
	if entry == nil {
		entry = &attemptWindow{window: window}
		l.attempts[key] = entry
	}
	entry.window = window

	if len(entry.stamps) >= max {
		retry := entry.stamps[0].Add(window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Attempt{Allowed: false, RetryAfter: retry}, nil
	}

	entry.stamps = append(entry.stamps, now)
	return Attempt{Allowed: true, Remaining: max - len(entry.stamps)}, nil
}

var _ AttemptLimiter = (*MemoryLimiter)(nil)
