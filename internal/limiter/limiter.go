// Package limiter counts attempts per key in fixed windows.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xxxsen/chanlink/internal/config"
)

type Limiter interface {
	// Allow records one attempt for key and returns errors.ErrTooMany once
	// the window budget is spent.
	Allow(ctx context.Context, key string) error
	// Reset forgets all attempts recorded for key.
	Reset(ctx context.Context, key string) error
}

type Policy struct {
	Window      time.Duration
	MaxAttempts int
}

func New(cfg config.LimiterConfig) (Limiter, error) {
	policy := Policy{
		Window:      time.Duration(cfg.WindowSeconds) * time.Second,
		MaxAttempts: cfg.MaxAttempts,
	}
	switch cfg.Type {
	case "", "memory":
		return NewMemory(policy, cfg.MaxKeys), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedis(client, "chl", policy), nil
	default:
		return nil, fmt.Errorf("unsupported limiter type: %s", cfg.Type)
	}
}

type nopLimiter struct{}

// Nop returns a Limiter that never refuses.
func Nop() Limiter {
	return nopLimiter{}
}

func (nopLimiter) Allow(context.Context, string) error { return nil }

func (nopLimiter) Reset(context.Context, string) error { return nil }
