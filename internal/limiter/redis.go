package limiter

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	appErr "github.com/xxxsen/chanlink/internal/pkg/errors"
)

type redisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	policy Policy
}

func NewRedis(client redis.UniversalClient, prefix string, policy Policy) Limiter {
	if prefix == "" {
		prefix = "chl"
	}
	return &redisLimiter{redis: client, prefix: prefix, policy: policy}
}

func (l *redisLimiter) key(key string) string {
	return l.prefix + ":" + key
}

func (l *redisLimiter) Allow(ctx context.Context, key string) error {
	if l.policy.MaxAttempts <= 0 {
		return nil
	}
	k := l.key(key)
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("limiter incr: %w", err)
	}
	// fixed window: the TTL is set by the first hit only
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.policy.Window).Err(); err != nil {
			return fmt.Errorf("limiter expire: %w", err)
		}
	}
	if count > int64(l.policy.MaxAttempts) {
		return appErr.ErrTooMany
	}
	return nil
}

func (l *redisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("limiter reset: %w", err)
	}
	return nil
}
