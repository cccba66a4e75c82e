package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/keyval/internal/clock"
)

// MemoryConfig configures the in-memory backend.
type MemoryConfig struct {
	// CleanupInterval enables a background janitor that purges expired
	// entries. Zero disables it; expired entries are then only removed
	// when read or by an explicit Cleanup call.
	CleanupInterval time.Duration      `json:"cleanup_interval" yaml:"cleanup_interval"`
	Clock           clock.Clock        `json:"-" yaml:"-"`
	Logger          logrus.FieldLogger `json:"-" yaml:"-"`
}

// MemoryStore is an in-memory implementation of TTLStore backed by a map.
// A single mutex guards the whole map for the duration of each operation.
// It uses a Clock for expiration checks, enabling virtual-time testing.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memItem
	clock clock.Clock
	log   logrus.FieldLogger

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

type memItem struct {
	value     []byte
	expiresAt time.Time // zero value means no expiration
}

// NewMemoryStore creates an in-memory store using the given clock.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	s, _ := NewMemoryStoreWithConfig(&MemoryConfig{Clock: c})
	return s
}

// NewMemoryStoreWithConfig creates an in-memory store from cfg.
// A nil cfg uses the real clock and no janitor.
func NewMemoryStoreWithConfig(cfg *MemoryConfig) (*MemoryStore, error) {
	var conf MemoryConfig
	if cfg != nil {
		conf = *cfg
	}
	if conf.CleanupInterval < 0 {
		return nil, fmt.Errorf("cleanup_interval must not be negative, got %s", conf.CleanupInterval)
	}
	if conf.Clock == nil {
		conf.Clock = clock.NewRealClock()
	}
	if conf.Logger == nil {
		conf.Logger = logrus.StandardLogger()
	}

	s := &MemoryStore{
		items: make(map[string]memItem),
		clock: conf.Clock,
		log:   conf.Logger.WithField("backend", BackendMemory),
	}
	if conf.CleanupInterval > 0 {
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.cleanupLoop(conf.CleanupInterval)
	}
	return s, nil
}

// BackendName implements Named.
func (s *MemoryStore) BackendName() string { return BackendMemory }

func (s *MemoryStore) Insert(ctx context.Context, key, value []byte) error {
	return s.put(ctx, key, value, time.Time{})
}

func (s *MemoryStore) InsertWithTTL(ctx context.Context, key, value []byte, expiry time.Time) error {
	return s.put(ctx, key, value, expiry)
}

func (s *MemoryStore) put(ctx context.Context, key, value []byte, expiry time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	item := memItem{
		value:     copyBytes(value),
		expiresAt: expiry,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[string(key)] = item
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	if clock.Expired(s.clock, item.expiresAt) {
		delete(s.items, string(key))
		return nil, ErrExpired
	}
	// Return a copy to prevent mutation.
	return copyBytes(item.value), nil
}

func (s *MemoryStore) Touch(ctx context.Context, key []byte, expiry time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[string(key)]
	if !ok {
		return ErrNotFound
	}
	item.expiresAt = expiry
	s.items[string(key)] = item
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, string(key))
	return nil
}

// Cleanup removes all expired items and returns how many were purged.
func (s *MemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for key, item := range s.items {
		if clock.Expired(s.clock, item.expiresAt) {
			delete(s.items, key)
			purged++
		}
	}
	return purged
}

// Len returns the number of items (including expired ones not yet cleaned up).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close stops the janitor, if one is running. It is idempotent.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		if s.stopCh == nil {
			return
		}
		close(s.stopCh)
		<-s.doneCh
	})
	return nil
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				s.log.WithField("purged", n).Debug("memory cleanup")
			}
		}
	}
}
