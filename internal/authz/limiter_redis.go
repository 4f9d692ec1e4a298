package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts attempts in Redis so the window is shared across
// API processes. Fixed-window semantics: the first attempt on a key
// starts the window, the key expires with it.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "attempts"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// Record registers one attempt for the key and reports whether it is
// within the window's budget.
func (l *RedisLimiter) Record(ctx context.Context, key string, window time.Duration, max int) (Attempt, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Attempt{}, fmt.Errorf("authz: limiter incr: %w", err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			return Attempt{}, fmt.Errorf("authz: limiter expire: %w", err)
		}
	}
	if count > int64(max) {
		ttl, err := l.client.PTTL(ctx, redisKey).Result()
		if err != nil || ttl < 0 {
			ttl = window
		}
		if ttl < time.Second {
			ttl = time.Second
		}
		return Attempt{Allowed: false, RetryAfter: ttl}, nil
	}
	return Attempt{Allowed: true, Remaining: max - int(count)}, nil
}

var _ AttemptLimiter = (*RedisLimiter)(nil)
