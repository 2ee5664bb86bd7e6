package http

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimitResult tells the handler whether to serve the request and what
// throttling headers to attach.
type RateLimitResult struct {
	Allowed           bool
	Remaining         int
	RetryAfterSeconds int
}

type RateLimiter interface {
	Consume(ctx context.Context, key string) RateLimitResult
}

type bucket struct {
	count      int
	resetAt    time.Time
	lastSeenAt time.Time
}

// MemoryRateLimiter is a fixed-window limiter keyed by client identifier.
// Per-process best effort: in a multi-process deployment each process
// counts independently. Use the Redis limiter when global consistency
// matters.
type MemoryRateLimiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	limit         int
	window        time.Duration
	lastCleanupAt time.Time
	now           func() time.Time
}

func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *MemoryRateLimiter) Consume(_ context.Context, key string) RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	b, ok := l.buckets[key]
	if !ok || !b.resetAt.After(now) {
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(l.window), lastSeenAt: now}
		return RateLimitResult{
			Allowed:           true,
			Remaining:         maxInt(0, l.limit-1),
			RetryAfterSeconds: int(l.window / time.Second),
		}
	}

	b.lastSeenAt = now
	retryAfter := maxInt(1, int(b.resetAt.Sub(now).Round(time.Second)/time.Second))

	if b.count >= l.limit {
		return RateLimitResult{Allowed: false, Remaining: 0, RetryAfterSeconds: retryAfter}
	}

	b.count++
	return RateLimitResult{
		Allowed:           true,
		Remaining:         maxInt(0, l.limit-b.count),
		RetryAfterSeconds: retryAfter,
	}
}

func (l *MemoryRateLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanupAt) < 30*time.Second {
		return
	}
	l.lastCleanupAt = now
	for key, b := range l.buckets {
		if !b.resetAt.After(now) && now.Sub(b.lastSeenAt) > 30*time.Second {
			delete(l.buckets, key)
		}
	}
}

// RedisRateLimiter shares window state across processes with INCR+EXPIRE.
// On Redis errors it fails open: throttling is protection, not a feature
// the checkout flow may break on.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

func (l *RedisRateLimiter) Consume(ctx context.Context, key string) RateLimitResult {
	redisKey := "ratelimit:" + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return RateLimitResult{Allowed: true, Remaining: l.limit, RetryAfterSeconds: int(l.window / time.Second)}
	}
	if count == 1 {
		l.client.Expire(ctx, redisKey, l.window)
	}

	retryAfter := int(l.window / time.Second)
	if ttl, err := l.client.TTL(ctx, redisKey).Result(); err == nil && ttl > 0 {
		retryAfter = maxInt(1, int(ttl/time.Second))
	}

	if count > int64(l.limit) {
		return RateLimitResult{Allowed: false, Remaining: 0, RetryAfterSeconds: retryAfter}
	}
	return RateLimitResult{
		Allowed:           true,
		Remaining:         maxInt(0, l.limit-int(count)),
		RetryAfterSeconds: retryAfter,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
