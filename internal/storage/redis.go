package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisCache stores entries with a native key expiry matching the TTL.
type RedisCache struct {
	client    redisClient
	ttl       time.Duration
	keyPrefix string
	now       func() time.Time
}

func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: connect to redis: %v", ErrStorageInit, err)
	}

	return newRedisCache(client, ttl), nil
}

func newRedisCache(client redisClient, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client:    client,
		ttl:       ttl,
		keyPrefix: "tcc:",
		now:       time.Now,
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Put(ctx context.Context, key string, value any) error {
	data, err := encodeEntry(value, r.now())
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.keyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry in Redis: %w", err)
	}
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string, out any) error {
	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to read cache entry from Redis: %w", err)
	}
	return decodeEntry(data, r.ttl, r.now(), out)
}
