package config

import internalconfig "github.com/SmitUplenchwar2687/keyval/internal/config"

// Config is the top-level keyval configuration.
type Config = internalconfig.Config

// ServerConfig holds HTTP server settings.
type ServerConfig = internalconfig.ServerConfig

// StorageConfig selects and configures the storage backend.
type StorageConfig = internalconfig.StorageConfig

// StorageMemoryConfig configures the in-memory storage backend.
type StorageMemoryConfig = internalconfig.StorageMemoryConfig

// StorageBoltConfig configures the bbolt storage backend.
type StorageBoltConfig = internalconfig.StorageBoltConfig

// StorageRedisConfig configures the Redis storage backend.
type StorageRedisConfig = internalconfig.StorageRedisConfig

// LogConfig configures logrus output.
type LogConfig = internalconfig.LogConfig

// Default returns a Config with sensible defaults.
func Default() Config {
	return internalconfig.Default()
}

// LoadFile reads a JSON or YAML config file and merges it with defaults.
func LoadFile(path string) (Config, error) {
	return internalconfig.LoadFile(path)
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	return internalconfig.WriteExample(path)
}
