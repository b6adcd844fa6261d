package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(3, 10*time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		blocked, _ := l.Blocked(ctx, "ann")
		require.False(t, blocked)
		require.NoError(t, l.Fail(ctx, "ann"))
	}
	blocked, _ := l.Blocked(ctx, "ann")
	assert.True(t, blocked)

	other, _ := l.Blocked(ctx, "bob")
	assert.False(t, other)

	now = now.Add(11 * time.Minute)
	blocked, _ = l.Blocked(ctx, "ann")
	assert.False(t, blocked, "window elapsed")

	require.NoError(t, l.Fail(ctx, "ann"))
	require.NoError(t, l.Reset(ctx, "ann"))
	blocked, _ = l.Blocked(ctx, "ann")
	assert.False(t, blocked)
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	l := NewRedisLimiter(rdb, 2, time.Minute)
	key := "test-" + time.Now().Format("150405.000000")
	defer l.Reset(ctx, key)

	require.NoError(t, l.Fail(ctx, key))
	blocked, err := l.Blocked(ctx, key)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, l.Fail(ctx, key))
	blocked, err = l.Blocked(ctx, key)
	require.NoError(t, err)
	assert.True(t, blocked)

	ttl, err := rdb.TTL(ctx, limiterKey(key)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
