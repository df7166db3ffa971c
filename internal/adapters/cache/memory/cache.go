package memory

import (
	"context"
	"sync"
	"time"

	"resource-api/internal/ports/cache"
)

var _ cache.Cache = (*Cache)(nil)

// Cache es un key/value en memoria con TTL. Sirve para dev y tests; en
// producción se usa Redis.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type entry struct {
	value     string
	expiresAt time.Time
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

func WithMaxSize(n int) Option {
	return func(c *Cache) { c.maxSize = n }
}

// WithClock reemplaza time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     time.Hour,
		maxSize: 10000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *Cache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictExpired()
		if len(c.entries) >= c.maxSize {
			c.evictOne()
		}
	}

	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *Cache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Ping(context.Context) error { return nil }

// Len devuelve la cantidad de entradas (incluye vencidas no purgadas).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictExpired requiere el lock de escritura.
func (c *Cache) evictExpired() {
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// evictOne requiere el lock de escritura.
func (c *Cache) evictOne() {
	for k := range c.entries {
		delete(c.entries, k)
		return
	}
}
