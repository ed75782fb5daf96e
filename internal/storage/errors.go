package storage

import "errors"

var (
	ErrCacheMiss     = errors.New("cache miss")
	ErrCacheExpired  = errors.New("cache entry expired")
	ErrCacheDisabled = errors.New("cache disabled")
	ErrInvalidData   = errors.New("invalid data")
	ErrStorageInit   = errors.New("storage initialization failed")
	ErrFileOperation = errors.New("file operation failed")
	ErrUnknownType   = errors.New("unknown storage type")
)

// IsMiss reports whether err means the key has no usable entry.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrCacheExpired)
}
