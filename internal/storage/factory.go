package storage

import (
	"context"
	"fmt"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/pkg/logger"
)

// New builds the configured cache, a NopCache when caching is off.
func New(ctx context.Context, cfg config.StorageConfig) (Cache, error) {
	ttl := cfg.CacheTTLDuration()

	switch backend := cfg.Backend(); backend {
	case "":
		return NopCache{}, nil
	case "memory":
		logger.Info("Using memory cache")
		return NewMemoryCache(ttl), nil
	case "disk":
		disk := NewDiskCache(cfg.DataDir, ttl)
		if err := disk.Init(); err != nil {
			return nil, err
		}
		return disk, nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("%w: s3 cache needs a bucket", ErrStorageInit)
		}
		logger.Infof("Using S3 cache in bucket %s", cfg.S3Bucket)
		c, err := NewS3Cache(ctx, cfg.S3Bucket, ttl)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "redis":
		logger.Infof("Using Redis cache at %s", cfg.RedisAddr)
		c, err := NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, ttl)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, backend)
	}
}
