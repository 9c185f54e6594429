// Package delivery sends short texts to a chat address. Every Send is a
// single attempt bounded by the caller's context and the sender's timeout.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/chanlink/internal/config"
)

var ErrRejected = errors.New("message rejected by channel")

type Sender interface {
	Send(ctx context.Context, address, text string) error
}

type Args struct {
	Data    interface{}
	Timeout time.Duration
}

type Factory func(args Args) (Sender, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.DeliveryConfig) (Sender, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("delivery.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported delivery type: %s", cfg.Type)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return factory(Args{Data: cfg.Data, Timeout: timeout})
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("delivery config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode delivery config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode delivery config: %w", err)
	}
	return nil
}
