package storage

import (
	"context"
	"time"
)

// Store is the raw key/value contract every backend implements.
// Keys and values are opaque byte slices; implementations copy them on the
// way in and out. Implementations must be safe for concurrent use.
type Store interface {
	// Insert stores value under key, replacing any existing entry.
	Insert(ctx context.Context, key, value []byte) error

	// Get returns the value stored under key.
	// Returns ErrNotFound if the key does not exist. TTL-aware
	// implementations return ErrExpired if the entry has lapsed.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key []byte) error
}

// TTLStore extends Store with per-entry expiration.
type TTLStore interface {
	Store

	// InsertWithTTL stores value under key and records expiry as the
	// instant after which reads treat the entry as gone.
	InsertWithTTL(ctx context.Context, key, value []byte, expiry time.Time) error

	// Touch replaces the expiry of an existing entry without changing its
	// value. Returns ErrNotFound if the key does not exist.
	Touch(ctx context.Context, key []byte, expiry time.Time) error
}

// Backend names used in errors and logs.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendTTL    = "ttl"
)

func copyBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
