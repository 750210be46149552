// Package cache keeps synthesized audio in memory, keyed by line id.
// Payloads can optionally be stored zstd-compressed.
package cache
