package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter tracks failed logins per username.
type Limiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// NoLimit never blocks.
type NoLimit struct{}

func (NoLimit) Blocked(context.Context, string) (bool, error) { return false, nil }
func (NoLimit) Fail(context.Context, string) error            { return nil }
func (NoLimit) Reset(context.Context, string) error           { return nil }

type attempts struct {
	count int
	last  time.Time
}

// MemoryLimiter blocks a key once it has max failures with no gap longer than
// window between them. It is per process; RedisLimiter shares state.
type MemoryLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	now    func() time.Time
	seen   map[string]*attempts
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{max: max, window: window, now: time.Now, seen: make(map[string]*attempts)}
}

func (l *MemoryLimiter) Blocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.seen[key]
	if !ok {
		return false, nil
	}
	if l.now().Sub(a.last) > l.window {
		delete(l.seen, key)
		return false, nil
	}
	return a.count >= l.max, nil
}

func (l *MemoryLimiter) Fail(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	a, ok := l.seen[key]
	if !ok || now.Sub(a.last) > l.window {
		l.seen[key] = &attempts{count: 1, last: now}
		return nil
	}
	a.count++
	a.last = now
	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.seen, key)
	l.mu.Unlock()
	return nil
}

// RedisLimiter keeps the failure counter in Redis; every failure pushes the
// TTL out to window.
type RedisLimiter struct {
	rdb    *redis.Client
	max    int64
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, max: int64(max), window: window}
}

func limiterKey(key string) string { return "login:fail:" + key }

func (l *RedisLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Get(ctx, limiterKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= l.max, nil
}

func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	k := limiterKey(key)
	pipe := l.rdb.TxPipeline()
	pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	_, err := pipe.Exec(ctx)
	return err
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, limiterKey(key)).Err()
}
