// Package cache implements the Cache port in memory and on Redis.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/example/order-service/internal/domain"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a TTL-bound in-process cache. Used in tests and as CACHE=memory.
type Memory struct {
	mu    sync.RWMutex
	store map[string]entry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{store: make(map[string]entry), now: time.Now}
}

var _ domain.Cache = (*Memory)(nil)

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.store, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.store[key] = e
	c.mu.Unlock()
	return nil
}

func (c *Memory) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()
	return nil
}
