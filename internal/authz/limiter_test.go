package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiterWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter().WithClock(func() time.Time { return now })
	ctx := context.Background()

	window := 15 * time.Minute
	for i := 0; i < 5; i++ {
		attempt, err := limiter.Record(ctx, "1.2.3.4:9876543210", window, 5)
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
		if !attempt.Allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}

	attempt, err := limiter.Record(ctx, "1.2.3.4:9876543210", window, 5)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if attempt.Allowed {
		t.Fatal("sixth attempt within window must be rejected")
	}
	if attempt.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", attempt.RetryAfter)
	}

	// After the window elapses the counter resets.
	now = now.Add(window + time.Second)
	attempt, err = limiter.Record(ctx, "1.2.3.4:9876543210", window, 5)
	if err != nil {
		t.Fatalf("Record after window: %v", err)
	}
	if !attempt.Allowed {
		t.Fatal("attempt after window must be allowed again")
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	now := time.Now()
	limiter := NewMemoryLimiter().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Record(ctx, "a", time.Minute, 3); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	attempt, err := limiter.Record(ctx, "b", time.Minute, 3)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !attempt.Allowed {
		t.Fatal("exhausting key a must not affect key b")
	}
}

func TestMemoryLimiterEvictsExpiredKeys(t *testing.T) {
	now := time.Now()
	limiter := NewMemoryLimiter().WithClock(func() time.Time { return now })
	ctx := context.Background()

	if _, err := limiter.Record(ctx, "stale", time.Minute, 3); err != nil {
		t.Fatalf("Record: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := limiter.Record(ctx, "fresh", time.Minute, 3); err != nil {
		t.Fatalf("Record: %v", err)
	}

	limiter.mu.Lock()
	_, stale := limiter.attempts["stale"]
	limiter.mu.Unlock()
	if stale {
		t.Fatal("expired key should have been evicted")
	}
}

func TestMemoryLimiterMixedWindowsKeepBudget(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := limiter.Record(ctx, "grant:42", time.Hour, 5); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	// A call for another key under a much shorter window must evict by
	// that key's own window, not reopen grant:42's hourly budget.
	now = now.Add(2 * time.Second)
	if _, err := limiter.Record(ctx, "otp:other", time.Second, 5); err != nil {
		t.Fatalf("Record: %v", err)
	}

	attempt, err := limiter.Record(ctx, "grant:42", time.Hour, 5)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if attempt.Allowed {
		t.Fatal("hourly budget must survive a short-window call for another key")
	}
}

func TestRedisLimiterWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRedisLimiter(client, "test")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		attempt, err := limiter.Record(ctx, "otp:1.2.3.4", 15*time.Minute, 5)
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
		if !attempt.Allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}

	attempt, err := limiter.Record(ctx, "otp:1.2.3.4", 15*time.Minute, 5)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if attempt.Allowed {
		t.Fatal("sixth attempt within window must be rejected")
	}
	if attempt.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", attempt.RetryAfter)
	}

	mr.FastForward(16 * time.Minute)

	attempt, err = limiter.Record(ctx, "otp:1.2.3.4", 15*time.Minute, 5)
	if err != nil {
		t.Fatalf("Record after window: %v", err)
	}
	if !attempt.Allowed {
		t.Fatal("attempt after window must be allowed again")
	}
}
