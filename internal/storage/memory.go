package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

type MemoryCache struct {
	entries map[string][]byte
	ttl     time.Duration
	mu      sync.RWMutex
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string][]byte),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryCache) Close() error {
	return nil
}

func (m *MemoryCache) Put(ctx context.Context, key string, value any) error {
	data, err := encodeEntry(value, m.now())
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = data
	return nil
}

func (m *MemoryCache) Get(ctx context.Context, key string, out any) error {
	m.mu.RLock()
	data, exists := m.entries[key]
	m.mu.RUnlock()

	if !exists {
		return ErrCacheMiss
	}

	err := decodeEntry(data, m.ttl, m.now(), out)
	if errors.Is(err, ErrCacheExpired) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
	}
	return err
}
