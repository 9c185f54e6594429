package limiter

import (
	"context"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"

	appErr "github.com/xxxsen/chanlink/internal/pkg/errors"
)

type window struct {
	count int
}

// memoryLimiter keeps counters in a bounded LRU whose entries expire one
// window after their first hit. Counters are per process.
type memoryLimiter struct {
	mu     sync.Mutex
	policy Policy
	cache  *expirable.LRU[string, *window]
}

func NewMemory(policy Policy, maxKeys int) Limiter {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &memoryLimiter{
		policy: policy,
		cache:  expirable.NewLRU[string, *window](maxKeys, nil, policy.Window),
	}
}

func (l *memoryLimiter) Allow(ctx context.Context, key string) error {
	if l.policy.MaxAttempts <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.cache.Get(key)
	if !ok {
		l.cache.Add(key, &window{count: 1})
		return nil
	}
	w.count++
	if w.count > l.policy.MaxAttempts {
		return appErr.ErrTooMany
	}
	return nil
}

func (l *memoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	l.cache.Remove(key)
	l.mu.Unlock()
	return nil
}
