package storage

import (
	"time"

	"github.com/sirupsen/logrus"

	internalstorage "github.com/SmitUplenchwar2687/keyval/internal/storage"
	"github.com/SmitUplenchwar2687/keyval/pkg/clock"
)

// Store is the raw key/value contract every backend implements.
type Store = internalstorage.Store

// TTLStore extends Store with per-entry expiration.
type TTLStore = internalstorage.TTLStore

// MemoryStore is the in-memory reference backend.
type MemoryStore = internalstorage.MemoryStore

// MemoryConfig configures the in-memory backend.
type MemoryConfig = internalstorage.MemoryConfig

// TTLOverlay adds expiration to any Store.
type TTLOverlay = internalstorage.TTLOverlay

// BoltStore is a Store backed by a bbolt file.
type BoltStore = internalstorage.BoltStore

// BoltConfig configures the bbolt backend.
type BoltConfig = internalstorage.BoltConfig

// RedisStore is a TTLStore backed by Redis.
type RedisStore = internalstorage.RedisStore

// RedisConfig configures the Redis backend.
type RedisConfig = internalstorage.RedisConfig

// Error types returned by every backend.
type (
	BackendError  = internalstorage.BackendError
	ScheduleError = internalstorage.ScheduleError
	EncodeError   = internalstorage.EncodeError
	DecodeError   = internalstorage.DecodeError
	ErrorMapper   = internalstorage.ErrorMapper
)

var (
	ErrNotFound = internalstorage.ErrNotFound
	ErrExpired  = internalstorage.ErrExpired
)

// Backend names accepted by configuration.
const (
	BackendMemory = internalstorage.BackendMemory
	BackendBolt   = internalstorage.BackendBolt
	BackendRedis  = internalstorage.BackendRedis
)

// NewMemoryStore creates an in-memory store using the given clock.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	return internalstorage.NewMemoryStore(c)
}

// NewMemoryStoreWithConfig creates an in-memory store from cfg.
func NewMemoryStoreWithConfig(cfg *MemoryConfig) (*MemoryStore, error) {
	return internalstorage.NewMemoryStoreWithConfig(cfg)
}

// NewTTLOverlay wraps s with envelope-based expiration.
func NewTTLOverlay(s Store, c clock.Clock, log logrus.FieldLogger) *TTLOverlay {
	return internalstorage.NewTTLOverlay(s, c, log)
}

// OpenBoltStore opens or creates a bbolt-backed store.
func OpenBoltStore(cfg *BoltConfig) (*BoltStore, error) {
	return internalstorage.OpenBoltStore(cfg)
}

// NewRedisStore connects to Redis.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	return internalstorage.NewRedisStore(cfg)
}

// Expires is a convenience for computing an absolute expiry from a TTL.
func Expires(c clock.Clock, ttl time.Duration) time.Time {
	return c.Now().Add(ttl)
}
