package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultRedisPoolSize    = 20
	defaultRedisDialTimeout = 5 * time.Second

	// noCommandRetries disables go-redis's own retry loop; -1, not 0, is
	// its "off" value.
	noCommandRetries = -1

	defaultRedisPrefix = "keyval:"
)

// RedisConfig configures the Redis backend. ConnectRetries is how many extra
// PINGs NewRedisStore sends before giving up; commands themselves are never
// retried.
type RedisConfig struct {
	Host           string             `json:"host" yaml:"host"`
	Port           int                `json:"port" yaml:"port"`
	Password       string             `json:"password,omitempty" yaml:"password,omitempty"`
	DB             int                `json:"db" yaml:"db"`
	Cluster        bool               `json:"cluster" yaml:"cluster"`
	ClusterNodes   []string           `json:"cluster_nodes,omitempty" yaml:"cluster_nodes,omitempty"`
	PoolSize       int                `json:"pool_size" yaml:"pool_size"`
	ConnectRetries int                `json:"connect_retries" yaml:"connect_retries"`
	DialTimeout    time.Duration      `json:"dial_timeout" yaml:"dial_timeout"`
	Prefix         string             `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Logger         logrus.FieldLogger `json:"-" yaml:"-"`
}

// RedisStore is a Redis-backed implementation of TTLStore using native key
// expiry. Redis evicts lapsed keys itself, so reads of an expired key report
// ErrNotFound rather than ErrExpired. Wrap the store in a TTLOverlay when
// callers need to tell the two apart.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	log    logrus.FieldLogger

	closeOnce sync.Once
	closeErr  error
}

// NewRedisStore constructs a Redis backend and waits for the server to
// answer a PING.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	conf, err := normalizeRedisConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := newRedisClient(conf)
	if err != nil {
		return nil, err
	}

	s := &RedisStore{
		client: client,
		prefix: conf.Prefix,
		log:    conf.Logger.WithField("backend", BackendRedis),
	}

	if err := s.pingWithRetry(context.Background(), conf.ConnectRetries); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return s, nil
}

// BackendName implements Named.
func (s *RedisStore) BackendName() string { return BackendRedis }

func (s *RedisStore) Insert(ctx context.Context, key, value []byte) error {
	err := s.client.Set(ctx, s.redisKey(key), value, 0).Err()
	return s.MapError("insert", err)
}

func (s *RedisStore) InsertWithTTL(ctx context.Context, key, value []byte, expiry time.Time) error {
	if expiry.IsZero() {
		return s.Insert(ctx, key, value)
	}
	// SetArgs.ExpireAt truncates to seconds; PXAT keeps millisecond precision.
	err := s.client.Do(ctx, "SET", s.redisKey(key), value, "PXAT", expiry.UnixMilli()).Err()
	return s.MapError("insert", err)
}

func (s *RedisStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	val, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		return nil, s.MapError("get", err)
	}
	return val, nil
}

func (s *RedisStore) Touch(ctx context.Context, key []byte, expiry time.Time) error {
	var (
		ok  bool
		err error
	)
	if expiry.IsZero() {
		// PERSIST replies false for keys without a TTL, so check existence
		// separately to keep ErrNotFound for absent keys only.
		var n int64
		n, err = s.client.Exists(ctx, s.redisKey(key)).Result()
		if err == nil && n > 0 {
			err = s.client.Persist(ctx, s.redisKey(key)).Err()
			ok = true
		}
	} else {
		ok, err = s.client.PExpireAt(ctx, s.redisKey(key), expiry).Result()
	}
	if err != nil {
		return s.MapError("touch", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key []byte) error {
	err := s.client.Del(ctx, s.redisKey(key)).Err()
	return s.MapError("remove", err)
}

// MapError implements ErrorMapper.
func (s *RedisStore) MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if isTaxonomy(err) {
		return err
	}
	return &BackendError{Backend: BackendRedis, Op: op, Err: err}
}

// Close releases Redis resources. It is idempotent.
func (s *RedisStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func (s *RedisStore) redisKey(key []byte) string {
	return s.prefix + string(key)
}

func (s *RedisStore) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := s.client.Ping(ctx).Err(); err == nil {
			return nil
		} else {
			lastErr = err
			s.log.WithError(err).WithField("attempt", i+1).Debug("redis ping failed")
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	if lastErr == nil {
		lastErr = errors.New("ping failed with unknown error")
	}
	return lastErr
}

func normalizeRedisConfig(cfg *RedisConfig) (*RedisConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	conf := *cfg
	if conf.PoolSize <= 0 {
		conf.PoolSize = defaultRedisPoolSize
	}
	if conf.ConnectRetries < 0 {
		conf.ConnectRetries = 0
	}
	if conf.DialTimeout <= 0 {
		conf.DialTimeout = defaultRedisDialTimeout
	}
	if conf.Prefix == "" {
		conf.Prefix = defaultRedisPrefix
	}
	if conf.Logger == nil {
		conf.Logger = logrus.StandardLogger()
	}

	if conf.Cluster {
		if len(conf.ClusterNodes) == 0 {
			return nil, fmt.Errorf("cluster_nodes is required when cluster=true")
		}
	} else {
		if conf.Host == "" {
			return nil, fmt.Errorf("host is required when cluster=false")
		}
		if conf.Port <= 0 {
			return nil, fmt.Errorf("port must be positive when cluster=false, got %d", conf.Port)
		}
	}

	return &conf, nil
}

func newRedisClient(cfg *RedisConfig) (redis.UniversalClient, error) {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.ClusterNodes,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MaxRetries:   noCommandRetries,
			MaxRedirects: noCommandRetries,
			DialTimeout:  cfg.DialTimeout,
		}), nil
	}

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  noCommandRetries,
		DialTimeout: cfg.DialTimeout,
	}), nil
}
