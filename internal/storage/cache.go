// Package storage provides the response cache used by the generation
// service. Every backend stores the same JSON envelope so entries written by
// one process can be read by another.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Cache interface {
	// Get decodes the entry stored under key into out. It returns
	// ErrCacheMiss or ErrCacheExpired when there is nothing usable.
	Get(ctx context.Context, key string, out any) error
	Put(ctx context.Context, key string, value any) error
	Close() error
}

// NopCache is used when no backend is configured. Every Get reports
// ErrCacheDisabled and Put discards the value.
type NopCache struct{}

func (NopCache) Get(ctx context.Context, key string, out any) error {
	return ErrCacheDisabled
}

func (NopCache) Put(ctx context.Context, key string, value any) error {
	return nil
}

func (NopCache) Close() error {
	return nil
}

type entry struct {
	StoredAt time.Time       `json:"stored_at"`
	Value    json.RawMessage `json:"value"`
}

func encodeEntry(value any, now time.Time) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return json.Marshal(entry{StoredAt: now.UTC(), Value: raw})
}

// decodeEntry unpacks data into out. A zero ttl never expires.
func decodeEntry(data []byte, ttl time.Duration, now time.Time, out any) error {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if ttl > 0 && now.Sub(e.StoredAt) > ttl {
		return ErrCacheExpired
	}
	if err := json.Unmarshal(e.Value, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}
