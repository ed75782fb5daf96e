package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tcc-slm-backend/pkg/logger"
)

// DiskCache keeps one JSON file per key under dataDir. Keys may contain
// slashes, which become subdirectories.
type DiskCache struct {
	dataDir string
	ttl     time.Duration
	mu      sync.RWMutex
	now     func() time.Time
}

func NewDiskCache(dataDir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		dataDir: dataDir,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (d *DiskCache) Init() error {
	if err := os.MkdirAll(d.dataDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("Disk cache initialized at %s", d.dataDir)
	return nil
}

func (d *DiskCache) Close() error {
	return nil
}

func (d *DiskCache) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: bad key %q", ErrInvalidData, key)
	}
	return filepath.Join(d.dataDir, clean), nil
}

func (d *DiskCache) Put(ctx context.Context, key string, value any) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}

	data, err := encodeEntry(value, d.now())
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskCache) Get(ctx context.Context, key string, out any) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}

	d.mu.RLock()
	data, err := os.ReadFile(path)
	d.mu.RUnlock()

	if err != nil {
		if os.IsNotExist(err) {
			return ErrCacheMiss
		}
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	err = decodeEntry(data, d.ttl, d.now(), out)
	if errors.Is(err, ErrCacheExpired) {
		d.mu.Lock()
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warnf("Failed to remove expired cache file %s: %v", path, rmErr)
		}
		d.mu.Unlock()
	}
	return err
}
