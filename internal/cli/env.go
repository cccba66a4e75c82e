package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/keyval/internal/clock"
	"github.com/SmitUplenchwar2687/keyval/internal/config"
	"github.com/SmitUplenchwar2687/keyval/internal/storage"
)

// env is everything a subcommand needs once flags and config are resolved.
type env struct {
	cfg   config.Config
	log   *logrus.Logger
	clock clock.Clock
	store storage.Store
	close func() error
}

// loadConfig merges the config file (if any) under explicitly set flags.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.LoadFile(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	o.storage.applyConfigIfUnset(cmd, &cfg.Storage)
	if err := o.storage.normalize(); err != nil {
		return config.Config{}, err
	}
	cfg.Storage = o.storage.toConfig()

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// open resolves config, builds the logger and opens the store.
func (o *rootOptions) open(cmd *cobra.Command) (*env, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	clk := clock.NewRealClock()
	s, closeFn, err := openStore(cfg.Storage, clk, log)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, log: log, clock: clk, store: s, close: closeFn}, nil
}

func (e *env) Close() {
	if err := e.close(); err != nil {
		e.log.WithError(err).Warn("closing store")
	}
}
