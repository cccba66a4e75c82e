package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
)

// Config is the top-level configuration for a keyval process.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	// TTLOverlay wraps the backend in the envelope-based TTL overlay.
	// Required for TTL support on bolt; optional elsewhere.
	TTLOverlay bool                `json:"ttl_overlay" yaml:"ttl_overlay"`
	Memory     StorageMemoryConfig `json:"memory" yaml:"memory"`
	Bolt       StorageBoltConfig   `json:"bolt" yaml:"bolt"`
	Redis      StorageRedisConfig  `json:"redis" yaml:"redis"`
}

// StorageMemoryConfig configures the memory backend.
type StorageMemoryConfig struct {
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
}

// StorageBoltConfig configures the bolt backend.
type StorageBoltConfig struct {
	Path    string        `json:"path" yaml:"path"`
	Bucket  string        `json:"bucket" yaml:"bucket"`
	Workers int           `json:"workers" yaml:"workers"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Nonblocking fails calls with a schedule error when every worker is busy.
	Nonblocking bool `json:"nonblocking" yaml:"nonblocking"`
}

// StorageRedisConfig configures the redis backend.
type StorageRedisConfig struct {
	Host           string        `json:"host" yaml:"host"`
	Port           int           `json:"port" yaml:"port"`
	Password       string        `json:"password" yaml:"password"`
	DB             int           `json:"db" yaml:"db"`
	Cluster        bool          `json:"cluster" yaml:"cluster"`
	ClusterNodes   []string      `json:"cluster_nodes" yaml:"cluster_nodes"`
	PoolSize       int           `json:"pool_size" yaml:"pool_size"`
	ConnectRetries int           `json:"connect_retries" yaml:"connect_retries"`
	DialTimeout    time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	Prefix         string        `json:"prefix" yaml:"prefix"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Memory: StorageMemoryConfig{
				CleanupInterval: time.Minute,
			},
			Bolt: StorageBoltConfig{
				Path:    "keyval.db",
				Bucket:  "keyval",
				Workers: 16,
				Timeout: time.Second,
			},
			Redis: StorageRedisConfig{
				Host:           "localhost",
				Port:           6379,
				PoolSize:       20,
				ConnectRetries: 3,
				DialTimeout:    5 * time.Second,
				Prefix:         "keyval:",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	s := c.Storage
	switch s.Backend {
	case BackendMemory:
		if s.Memory.CleanupInterval < 0 {
			return fmt.Errorf("storage.memory.cleanup_interval must not be negative, got %s", s.Memory.CleanupInterval)
		}
	case BackendBolt:
		if s.Bolt.Path == "" {
			return fmt.Errorf("storage.bolt.path is required for the bolt backend")
		}
		if s.Bolt.Workers < 0 {
			return fmt.Errorf("storage.bolt.workers must not be negative, got %d", s.Bolt.Workers)
		}
	case BackendRedis:
		if s.Redis.Cluster {
			if len(s.Redis.ClusterNodes) == 0 {
				return fmt.Errorf("storage.redis.cluster_nodes is required when cluster=true")
			}
		} else if s.Redis.Host == "" || s.Redis.Port <= 0 {
			return fmt.Errorf("storage.redis host and positive port are required, got %q:%d", s.Redis.Host, s.Redis.Port)
		}
		if s.Redis.ConnectRetries < 0 {
			return fmt.Errorf("storage.redis.connect_retries must not be negative, got %d", s.Redis.ConnectRetries)
		}
	default:
		return fmt.Errorf("unknown storage backend %q, must be one of: memory, bolt, redis", s.Backend)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q, must be text or json", c.Log.Format)
	}
	return nil
}

// LoadFile reads a JSON or YAML config file (chosen by extension) and
// merges it with defaults. Fields not specified in the file retain their
// default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Use a raw intermediate struct to handle duration parsing.
	var raw rawConfig
	if isYAML(path) {
		err = yaml.UnmarshalStrict(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if err := raw.merge(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// rawConfig is the file representation with string durations.
type rawConfig struct {
	Server struct {
		Addr string `json:"addr" yaml:"addr"`
	} `json:"server" yaml:"server"`
	Storage struct {
		Backend    string `json:"backend" yaml:"backend"`
		TTLOverlay *bool  `json:"ttl_overlay" yaml:"ttl_overlay"`
		Memory     struct {
			CleanupInterval string `json:"cleanup_interval" yaml:"cleanup_interval"`
		} `json:"memory" yaml:"memory"`
		Bolt struct {
			Path        string `json:"path" yaml:"path"`
			Bucket      string `json:"bucket" yaml:"bucket"`
			Workers     int    `json:"workers" yaml:"workers"`
			Timeout     string `json:"timeout" yaml:"timeout"`
			Nonblocking *bool  `json:"nonblocking" yaml:"nonblocking"`
		} `json:"bolt" yaml:"bolt"`
		Redis struct {
			Host           string   `json:"host" yaml:"host"`
			Port           int      `json:"port" yaml:"port"`
			Password       string   `json:"password" yaml:"password"`
			DB             int      `json:"db" yaml:"db"`
			Cluster        bool     `json:"cluster" yaml:"cluster"`
			ClusterNodes   []string `json:"cluster_nodes" yaml:"cluster_nodes"`
			PoolSize       int      `json:"pool_size" yaml:"pool_size"`
			ConnectRetries *int     `json:"connect_retries" yaml:"connect_retries"`
			DialTimeout    string   `json:"dial_timeout" yaml:"dial_timeout"`
			Prefix         string   `json:"prefix" yaml:"prefix"`
		} `json:"redis" yaml:"redis"`
	} `json:"storage" yaml:"storage"`
	Log struct {
		Level  string `json:"level" yaml:"level"`
		Format string `json:"format" yaml:"format"`
	} `json:"log" yaml:"log"`
}

func (raw rawConfig) merge(cfg *Config) error {
	if raw.Server.Addr != "" {
		cfg.Server.Addr = raw.Server.Addr
	}

	rs := raw.Storage
	s := &cfg.Storage
	if rs.Backend != "" {
		s.Backend = rs.Backend
	}
	if rs.TTLOverlay != nil {
		s.TTLOverlay = *rs.TTLOverlay
	}
	if err := parseDuration("storage.memory.cleanup_interval", rs.Memory.CleanupInterval, &s.Memory.CleanupInterval); err != nil {
		return err
	}

	if rs.Bolt.Path != "" {
		s.Bolt.Path = rs.Bolt.Path
	}
	if rs.Bolt.Bucket != "" {
		s.Bolt.Bucket = rs.Bolt.Bucket
	}
	if rs.Bolt.Workers > 0 {
		s.Bolt.Workers = rs.Bolt.Workers
	}
	if err := parseDuration("storage.bolt.timeout", rs.Bolt.Timeout, &s.Bolt.Timeout); err != nil {
		return err
	}
	if rs.Bolt.Nonblocking != nil {
		s.Bolt.Nonblocking = *rs.Bolt.Nonblocking
	}

	if rs.Redis.Host != "" {
		s.Redis.Host = rs.Redis.Host
	}
	if rs.Redis.Port > 0 {
		s.Redis.Port = rs.Redis.Port
	}
	if rs.Redis.Password != "" {
		s.Redis.Password = rs.Redis.Password
	}
	if rs.Redis.DB > 0 {
		s.Redis.DB = rs.Redis.DB
	}
	if rs.Redis.Cluster {
		s.Redis.Cluster = true
	}
	if len(rs.Redis.ClusterNodes) > 0 {
		s.Redis.ClusterNodes = rs.Redis.ClusterNodes
	}
	if rs.Redis.PoolSize > 0 {
		s.Redis.PoolSize = rs.Redis.PoolSize
	}
	if rs.Redis.ConnectRetries != nil {
		s.Redis.ConnectRetries = *rs.Redis.ConnectRetries
	}
	if err := parseDuration("storage.redis.dial_timeout", rs.Redis.DialTimeout, &s.Redis.DialTimeout); err != nil {
		return err
	}
	if rs.Redis.Prefix != "" {
		s.Redis.Prefix = rs.Redis.Prefix
	}

	if raw.Log.Level != "" {
		cfg.Log.Level = raw.Log.Level
	}
	if raw.Log.Format != "" {
		cfg.Log.Format = raw.Log.Format
	}
	return nil
}

func parseDuration(field, value string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", field, err)
	}
	*dst = d
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

const exampleJSON = `{
  "server": {
    "addr": ":8080"
  },
  "storage": {
    "backend": "bolt",
    "ttl_overlay": true,
    "bolt": {
      "path": "keyval.db",
      "bucket": "keyval",
      "workers": 16,
      "timeout": "1s",
      "nonblocking": false
    },
    "redis": {
      "host": "localhost",
      "port": 6379,
      "dial_timeout": "5s",
      "connect_retries": 3,
      "prefix": "keyval:"
    }
  },
  "log": {
    "level": "info",
    "format": "text"
  }
}
`

const exampleYAML = `server:
  addr: ":8080"
storage:
  backend: bolt
  ttl_overlay: true
  bolt:
    path: keyval.db
    bucket: keyval
    workers: 16
    timeout: 1s
    nonblocking: false
  redis:
    host: localhost
    port: 6379
    dial_timeout: 5s
    connect_retries: 3
    prefix: "keyval:"
log:
  level: info
  format: text
`

// WriteExample writes an example config file to the given path, as YAML
// when the extension is .yaml or .yml and JSON otherwise.
func WriteExample(path string) error {
	example := exampleJSON
	if isYAML(path) {
		example = exampleYAML
	}
	return os.WriteFile(path, []byte(example), 0o644)
}
