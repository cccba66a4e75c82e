package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/keyval/internal/clock"
	"github.com/SmitUplenchwar2687/keyval/internal/config"
	"github.com/SmitUplenchwar2687/keyval/internal/storage"
)

// run executes a fresh root command and returns its stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), err
}

func boltArgs(t *testing.T, extra ...string) []string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	return append([]string{"--storage", "bolt", "--bolt-path", path, "--log-level", "error"}, extra...)
}

func TestNormalizeRedisHostPort(t *testing.T) {
	host, port, err := normalizeRedisHostPort("localhost:6380", 6379)
	if err != nil {
		t.Fatalf("normalizeRedisHostPort() error = %v", err)
	}
	if host != "localhost" || port != 6380 {
		t.Fatalf("normalizeRedisHostPort() = %s:%d, want localhost:6380", host, port)
	}

	host, port, err = normalizeRedisHostPort("redis.internal", 6379)
	if err != nil {
		t.Fatalf("normalizeRedisHostPort() error = %v", err)
	}
	if host != "redis.internal" || port != 6379 {
		t.Fatalf("normalizeRedisHostPort() = %s:%d, want redis.internal:6379", host, port)
	}
}

func TestNormalizeRedisHostPort_Invalid(t *testing.T) {
	if _, _, err := normalizeRedisHostPort("", 6379); err == nil {
		t.Fatal("expected error for empty host")
	}
	if _, _, err := normalizeRedisHostPort("localhost", 0); err == nil {
		t.Fatal("expected error for non-positive port")
	}
	if _, _, err := normalizeRedisHostPort("localhost:abc", 6379); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestOpenStore_MemoryWithOverlay(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(1_700_000_000, 0))
	cfg := config.StorageConfig{
		Backend:    config.BackendMemory,
		TTLOverlay: true,
	}

	s, closeFn, err := openStore(cfg, vc, logrus.New())
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer closeFn()

	if got := storage.BackendName(s); got != "ttl(memory)" {
		t.Fatalf("BackendName() = %q, want ttl(memory)", got)
	}
	if _, ok := s.(storage.TTLStore); !ok {
		t.Fatal("overlay store should support TTLs")
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, _, err := openStore(config.StorageConfig{Backend: "etcd"}, clock.NewRealClock(), logrus.New())
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestPutGetRemove_Bolt(t *testing.T) {
	args := boltArgs(t)

	if _, err := run(t, "", append([]string{"put", "greeting", "hello"}, args...)...); err != nil {
		t.Fatalf("put error = %v", err)
	}

	out, err := run(t, "", append([]string{"get", "greeting"}, args...)...)
	if err != nil {
		t.Fatalf("get error = %v", err)
	}
	if out != "hello" {
		t.Fatalf("get = %q, want hello", out)
	}

	if _, err := run(t, "", append([]string{"rm", "greeting"}, args...)...); err != nil {
		t.Fatalf("rm error = %v", err)
	}
	// Removing again is not an error.
	if _, err := run(t, "", append([]string{"rm", "greeting"}, args...)...); err != nil {
		t.Fatalf("second rm error = %v", err)
	}

	_, err = run(t, "", append([]string{"get", "greeting"}, args...)...)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get after rm error = %v, want ErrNotFound", err)
	}
}

func TestPut_ValueFromStdin(t *testing.T) {
	args := boltArgs(t)

	if _, err := run(t, "from\nstdin", append([]string{"put", "k", "-"}, args...)...); err != nil {
		t.Fatalf("put error = %v", err)
	}
	out, err := run(t, "", append([]string{"get", "k"}, args...)...)
	if err != nil {
		t.Fatalf("get error = %v", err)
	}
	if out != "from\nstdin" {
		t.Fatalf("get = %q, want stdin contents", out)
	}
}

func TestPutWithTTL_RequiresOverlay(t *testing.T) {
	args := boltArgs(t)

	_, err := run(t, "", append([]string{"put", "k", "v", "--ttl", "1m"}, args...)...)
	if err == nil || !strings.Contains(err.Error(), "does not support TTLs") {
		t.Fatalf("put --ttl error = %v, want TTL support error", err)
	}

	_, err = run(t, "", append([]string{"touch", "k", "--ttl", "1m"}, args...)...)
	if err == nil || !strings.Contains(err.Error(), "does not support TTLs") {
		t.Fatalf("touch error = %v, want TTL support error", err)
	}
}

func TestPutWithTTL_Expires(t *testing.T) {
	args := boltArgs(t, "--ttl-overlay")

	if _, err := run(t, "", append([]string{"put", "session", "abc", "--ttl", "20ms"}, args...)...); err != nil {
		t.Fatalf("put error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	_, err := run(t, "", append([]string{"get", "session"}, args...)...)
	if !errors.Is(err, storage.ErrExpired) {
		t.Fatalf("get error = %v, want ErrExpired", err)
	}

	// The expired entry was purged by the read.
	_, err = run(t, "", append([]string{"get", "session"}, args...)...)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second get error = %v, want ErrNotFound", err)
	}
}

func TestTouch(t *testing.T) {
	args := boltArgs(t, "--ttl-overlay")

	if _, err := run(t, "", append([]string{"put", "k", "v", "--ttl", "20ms"}, args...)...); err != nil {
		t.Fatalf("put error = %v", err)
	}
	if _, err := run(t, "", append([]string{"touch", "k", "--ttl", "0"}, args...)...); err != nil {
		t.Fatalf("touch error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	out, err := run(t, "", append([]string{"get", "k"}, args...)...)
	if err != nil {
		t.Fatalf("get after touch error = %v", err)
	}
	if out != "v" {
		t.Fatalf("get = %q, want v", out)
	}

	_, err = run(t, "", append([]string{"touch", "missing", "--ttl", "1m"}, args...)...)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("touch missing error = %v, want ErrNotFound", err)
	}

	if _, err := run(t, "", append([]string{"touch", "k"}, args...)...); err == nil {
		t.Fatal("expected error when --ttl is omitted")
	}
}

func TestConfigFile_FlagsOverride(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "keyval.yaml")
	boltPath := filepath.Join(dir, "from-config.db")
	contents := "storage:\n  backend: bolt\n  ttl_overlay: true\n  bolt:\n    path: " + boltPath + "\nlog:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := run(t, "", "put", "k", "v", "--ttl", "1h", "--config", cfgPath); err != nil {
		t.Fatalf("put error = %v", err)
	}
	if _, err := os.Stat(boltPath); err != nil {
		t.Fatalf("bolt file from config not created: %v", err)
	}

	// An explicit flag wins over the config file.
	otherPath := filepath.Join(dir, "from-flag.db")
	_, err := run(t, "", "get", "k", "--config", cfgPath, "--bolt-path", otherPath)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get with overridden path error = %v, want ErrNotFound", err)
	}
}

func TestApplyConfigIfUnset(t *testing.T) {
	opts := defaultStorageOptions()
	cmd := &cobra.Command{Use: "test"}
	opts.addFlags(cmd)
	if err := cmd.ParseFlags([]string{"--bolt-workers", "2"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg := config.Default().Storage
	cfg.Backend = config.BackendBolt
	cfg.Bolt.Workers = 32
	cfg.Bolt.Path = "other.db"
	cfg.Bolt.Nonblocking = true
	cfg.Redis.ConnectRetries = 0

	opts.applyConfigIfUnset(cmd, &cfg)
	if opts.backend != config.BackendBolt {
		t.Fatalf("backend = %q, want bolt", opts.backend)
	}
	if opts.boltPath != "other.db" {
		t.Fatalf("boltPath = %q, want other.db", opts.boltPath)
	}
	if opts.boltWorkers != 2 {
		t.Fatalf("boltWorkers = %d, want flag value 2", opts.boltWorkers)
	}
	if !opts.boltNonblocking {
		t.Fatal("boltNonblocking should come from config")
	}
	if opts.redisConnectRetries != 0 {
		t.Fatalf("redisConnectRetries = %d, want 0 from config", opts.redisConnectRetries)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyval.json")

	out, err := run(t, "", "config", "init", path)
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("output = %q, want it to mention %s", out, path)
	}
	if _, err := config.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() on generated config error = %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger("debug", "json", io.Discard)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v, want debug", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("formatter = %T, want JSONFormatter", log.Formatter)
	}

	if _, err := newLogger("loud", "text", io.Discard); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := newLogger("info", "xml", io.Discard); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
