package cache

import (
	"errors"
	"time"
)

// Common errors for cache operations
var (
	// ErrEmptyKey is returned when a line id is missing
	ErrEmptyKey = errors.New("cache key cannot be empty")

	// ErrEmptyPayload is returned when there is no audio to store
	ErrEmptyPayload = errors.New("cannot cache an empty payload")

	// ErrCacheCorrupted is returned when a stored payload cannot be decoded
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Config holds cache configuration.
type Config struct {
	// Compress stores payloads zstd-compressed
	Compress bool

	// CompressionLevel follows zstd's 1 (fastest) to 22 (best) scale
	CompressionLevel int
}

// DefaultConfig returns an uncompressed configuration.
func DefaultConfig() Config {
	return Config{
		Compress:         false,
		CompressionLevel: 3,
	}
}

// Metadata describes one cached payload.
type Metadata struct {
	LineID     string    // Line the audio belongs to
	Size       int64     // Stored size in bytes
	RawSize    int64     // Payload size before compression
	Timestamp  time.Time // When the payload was cached
	LastAccess time.Time // Last Get hit
	Hits       int64     // Number of times read
}
