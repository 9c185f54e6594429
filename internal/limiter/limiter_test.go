package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/chanlink/internal/config"
	appErr "github.com/xxxsen/chanlink/internal/pkg/errors"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func exhaust(t *testing.T, l Limiter, key string, max int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < max; i++ {
		require.NoError(t, l.Allow(ctx, key))
	}
	require.ErrorIs(t, l.Allow(ctx, key), appErr.ErrTooMany)
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedis(client, "test", Policy{Window: time.Minute, MaxAttempts: 3})

	exhaust(t, l, "reset:u1", 3)
	require.NoError(t, l.Allow(context.Background(), "reset:u2"))

	mr.FastForward(time.Minute + time.Second)
	require.NoError(t, l.Allow(context.Background(), "reset:u1"))
	require.True(t, mr.Exists("test:reset:u1"))
}

func TestRedisLimiterReset(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedis(client, "test", Policy{Window: time.Minute, MaxAttempts: 2})
	exhaust(t, l, "k", 2)
	require.NoError(t, l.Reset(context.Background(), "k"))
	require.False(t, mr.Exists("test:k"))
	require.NoError(t, l.Allow(context.Background(), "k"))
}

func TestRedisLimiterUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedis(client, "test", Policy{Window: time.Minute, MaxAttempts: 2})
	mr.Close()
	err := l.Allow(context.Background(), "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, appErr.ErrTooMany)
}

func TestMemoryLimiterFixedWindow(t *testing.T) {
	l := NewMemory(Policy{Window: 50 * time.Millisecond, MaxAttempts: 2}, 16)
	exhaust(t, l, "k", 2)
	require.NoError(t, l.Allow(context.Background(), "other"))

	require.Eventually(t, func() bool {
		return l.Allow(context.Background(), "k") == nil
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryLimiterReset(t *testing.T) {
	l := NewMemory(Policy{Window: time.Minute, MaxAttempts: 1}, 16)
	exhaust(t, l, "k", 1)
	require.NoError(t, l.Reset(context.Background(), "k"))
	require.NoError(t, l.Allow(context.Background(), "k"))
}

func TestDisabledPolicyNeverRefuses(t *testing.T) {
	l := NewMemory(Policy{Window: time.Minute}, 16)
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Allow(context.Background(), "k"))
	}
	require.NoError(t, Nop().Allow(context.Background(), "k"))
}

func TestNewFromConfig(t *testing.T) {
	l, err := New(config.LimiterConfig{Type: "memory", WindowSeconds: 60, MaxAttempts: 1})
	require.NoError(t, err)
	exhaust(t, l, "k", 1)

	mr, _ := newTestRedis(t)
	l, err = New(config.LimiterConfig{Type: "redis", WindowSeconds: 60, MaxAttempts: 1, Redis: config.RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	exhaust(t, l, "k", 1)

	_, err = New(config.LimiterConfig{Type: "etcd"})
	require.Error(t, err)
}
