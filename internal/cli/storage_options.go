package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/keyval/internal/clock"
	"github.com/SmitUplenchwar2687/keyval/internal/config"
	"github.com/SmitUplenchwar2687/keyval/internal/storage"
)

type storageOptions struct {
	backend               string
	ttlOverlay            bool
	memoryCleanupInterval time.Duration
	boltPath              string
	boltBucket            string
	boltWorkers           int
	boltTimeout           time.Duration
	boltNonblocking       bool
	redisHost             string
	redisPort             int
	redisPassword         string
	redisDB               int
	redisCluster          bool
	redisClusterNodes     []string
	redisPoolSize         int
	redisConnectRetries   int
	redisDialTimeout      time.Duration
	redisPrefix           string
}

func defaultStorageOptions() storageOptions {
	d := config.Default().Storage
	return storageOptions{
		backend:               d.Backend,
		memoryCleanupInterval: d.Memory.CleanupInterval,
		boltPath:              d.Bolt.Path,
		boltBucket:            d.Bolt.Bucket,
		boltWorkers:           d.Bolt.Workers,
		boltTimeout:           d.Bolt.Timeout,
		redisHost:             d.Redis.Host,
		redisPort:             d.Redis.Port,
		redisPoolSize:         d.Redis.PoolSize,
		redisConnectRetries:   d.Redis.ConnectRetries,
		redisDialTimeout:      d.Redis.DialTimeout,
		redisPrefix:           d.Redis.Prefix,
	}
}

func (o *storageOptions) addFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.backend, "storage", o.backend, "storage backend (memory, bolt, redis)")
	f.BoolVar(&o.ttlOverlay, "ttl-overlay", false, "wrap the backend in the envelope-based TTL overlay")
	f.DurationVar(&o.memoryCleanupInterval, "storage-memory-cleanup-interval", o.memoryCleanupInterval, "cleanup interval for memory storage backend")
	f.StringVar(&o.boltPath, "bolt-path", o.boltPath, "bolt database file")
	f.StringVar(&o.boltBucket, "bolt-bucket", o.boltBucket, "bolt bucket name")
	f.IntVar(&o.boltWorkers, "bolt-workers", o.boltWorkers, "workers running blocking bolt calls")
	f.DurationVar(&o.boltTimeout, "bolt-timeout", o.boltTimeout, "how long to wait for the bolt file lock")
	f.BoolVar(&o.boltNonblocking, "bolt-nonblocking", false, "fail bolt calls instead of queueing when every worker is busy")
	f.StringVar(&o.redisHost, "redis-host", o.redisHost, "redis host (or host:port)")
	f.IntVar(&o.redisPort, "redis-port", o.redisPort, "redis port")
	f.StringVar(&o.redisPassword, "redis-password", "", "redis password")
	f.IntVar(&o.redisDB, "redis-db", 0, "redis database index")
	f.BoolVar(&o.redisCluster, "redis-cluster", false, "enable redis cluster mode")
	f.StringSliceVar(&o.redisClusterNodes, "redis-cluster-nodes", nil, "redis cluster nodes host:port list")
	f.IntVar(&o.redisPoolSize, "redis-pool-size", o.redisPoolSize, "redis connection pool size")
	f.IntVar(&o.redisConnectRetries, "redis-connect-retries", o.redisConnectRetries, "extra PING attempts while connecting to redis (commands are never retried)")
	f.DurationVar(&o.redisDialTimeout, "redis-dial-timeout", o.redisDialTimeout, "redis dial timeout")
	f.StringVar(&o.redisPrefix, "redis-prefix", o.redisPrefix, "prefix prepended to every redis key")
}

func (o *storageOptions) applyConfigIfUnset(cmd *cobra.Command, cfg *config.StorageConfig) {
	if cfg == nil {
		return
	}

	changed := cmd.Flags().Changed
	if !changed("storage") {
		o.backend = cfg.Backend
	}
	if !changed("ttl-overlay") {
		o.ttlOverlay = cfg.TTLOverlay
	}
	if !changed("storage-memory-cleanup-interval") {
		o.memoryCleanupInterval = cfg.Memory.CleanupInterval
	}
	if !changed("bolt-path") {
		o.boltPath = cfg.Bolt.Path
	}
	if !changed("bolt-bucket") {
		o.boltBucket = cfg.Bolt.Bucket
	}
	if !changed("bolt-workers") {
		o.boltWorkers = cfg.Bolt.Workers
	}
	if !changed("bolt-timeout") {
		o.boltTimeout = cfg.Bolt.Timeout
	}
	if !changed("bolt-nonblocking") {
		o.boltNonblocking = cfg.Bolt.Nonblocking
	}
	if !changed("redis-host") {
		o.redisHost = cfg.Redis.Host
	}
	if !changed("redis-port") {
		o.redisPort = cfg.Redis.Port
	}
	if !changed("redis-password") {
		o.redisPassword = cfg.Redis.Password
	}
	if !changed("redis-db") {
		o.redisDB = cfg.Redis.DB
	}
	if !changed("redis-cluster") {
		o.redisCluster = cfg.Redis.Cluster
	}
	if !changed("redis-cluster-nodes") {
		o.redisClusterNodes = cfg.Redis.ClusterNodes
	}
	if !changed("redis-pool-size") {
		o.redisPoolSize = cfg.Redis.PoolSize
	}
	if !changed("redis-connect-retries") {
		o.redisConnectRetries = cfg.Redis.ConnectRetries
	}
	if !changed("redis-dial-timeout") {
		o.redisDialTimeout = cfg.Redis.DialTimeout
	}
	if !changed("redis-prefix") {
		o.redisPrefix = cfg.Redis.Prefix
	}
}

func (o *storageOptions) normalize() error {
	if o.backend != config.BackendRedis || o.redisCluster {
		return nil
	}

	host, port, err := normalizeRedisHostPort(o.redisHost, o.redisPort)
	if err != nil {
		return err
	}
	o.redisHost = host
	o.redisPort = port
	return nil
}

func (o *storageOptions) toConfig() config.StorageConfig {
	return config.StorageConfig{
		Backend:    o.backend,
		TTLOverlay: o.ttlOverlay,
		Memory: config.StorageMemoryConfig{
			CleanupInterval: o.memoryCleanupInterval,
		},
		Bolt: config.StorageBoltConfig{
			Path:        o.boltPath,
			Bucket:      o.boltBucket,
			Workers:     o.boltWorkers,
			Timeout:     o.boltTimeout,
			Nonblocking: o.boltNonblocking,
		},
		Redis: config.StorageRedisConfig{
			Host:           o.redisHost,
			Port:           o.redisPort,
			Password:       o.redisPassword,
			DB:             o.redisDB,
			Cluster:        o.redisCluster,
			ClusterNodes:   append([]string(nil), o.redisClusterNodes...),
			PoolSize:       o.redisPoolSize,
			ConnectRetries: o.redisConnectRetries,
			DialTimeout:    o.redisDialTimeout,
			Prefix:         o.redisPrefix,
		},
	}
}

func normalizeRedisHostPort(host string, port int) (string, int, error) {
	if strings.Contains(host, ":") {
		h, p, err := net.SplitHostPort(host)
		if err != nil {
			return "", 0, fmt.Errorf("invalid --redis-host value %q: %w", host, err)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid redis port in --redis-host %q: %w", host, err)
		}
		host = h
		port = n
	}

	if host == "" {
		return "", 0, fmt.Errorf("redis host cannot be empty")
	}
	if port <= 0 {
		return "", 0, fmt.Errorf("redis port must be positive, got %d", port)
	}

	return host, port, nil
}

// openStore builds the configured backend, wrapped in the TTL overlay when
// requested. The returned close function releases the backend.
func openStore(cfg config.StorageConfig, clk clock.Clock, log logrus.FieldLogger) (storage.Store, func() error, error) {
	var (
		s       storage.Store
		closeFn func() error
	)

	switch cfg.Backend {
	case config.BackendMemory:
		m, err := storage.NewMemoryStoreWithConfig(&storage.MemoryConfig{
			CleanupInterval: cfg.Memory.CleanupInterval,
			Clock:           clk,
			Logger:          log,
		})
		if err != nil {
			return nil, nil, err
		}
		s, closeFn = m, m.Close
	case config.BackendBolt:
		b, err := storage.OpenBoltStore(&storage.BoltConfig{
			Path:        cfg.Bolt.Path,
			Bucket:      cfg.Bolt.Bucket,
			Workers:     cfg.Bolt.Workers,
			Timeout:     cfg.Bolt.Timeout,
			Logger:      log,
			Nonblocking: cfg.Bolt.Nonblocking,
		})
		if err != nil {
			return nil, nil, err
		}
		s, closeFn = b, b.Close
	case config.BackendRedis:
		r, err := storage.NewRedisStore(&storage.RedisConfig{
			Host:           cfg.Redis.Host,
			Port:           cfg.Redis.Port,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			Cluster:        cfg.Redis.Cluster,
			ClusterNodes:   cfg.Redis.ClusterNodes,
			PoolSize:       cfg.Redis.PoolSize,
			ConnectRetries: cfg.Redis.ConnectRetries,
			DialTimeout:    cfg.Redis.DialTimeout,
			Prefix:         cfg.Redis.Prefix,
			Logger:         log,
		})
		if err != nil {
			return nil, nil, err
		}
		s, closeFn = r, r.Close
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if cfg.TTLOverlay {
		s = storage.NewTTLOverlay(s, clk, log)
	}
	log.WithFields(logrus.Fields{"backend": storage.BackendName(s)}).Debug("store opened")
	return s, closeFn, nil
}
