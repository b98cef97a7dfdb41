package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memory struct{ c *gocache.Cache }

// NewMemory returns an in-process Cache with the given default TTL.
func NewMemory(defaultTTL time.Duration) Cache {
	return &memory{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *memory) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	return b, true
}

func (m *memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}

func (m *memory) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		m.c.Delete(k)
	}
}
