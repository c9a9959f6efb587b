package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/ZaguanLabs/lazytl"
	"github.com/ZaguanLabs/lazytl/cache"
	"github.com/ZaguanLabs/lazytl/internal/config"
)

// cli holds the command tree and the streams it reads and writes.
type cli struct {
	root   *cobra.Command
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logJSON    bool
}

func newCLI(stdin io.Reader, stdout, stderr io.Writer) *cli {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           lazytl.Name,
		Short:         lazytl.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       lazytl.FullVersion(),
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "TOML configuration file")
	pf.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&c.logJSON, "log-json", false, "Log as JSON")

	root.AddCommand(c.newTranslateCmd())
	root.AddCommand(c.newCacheCmd())
	root.AddCommand(c.newMigrateCmd())
	root.AddCommand(c.newVersionCmd())

	c.root = root
	return c
}

// load reads the configuration and applies the logging flags.
func (c *cli) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logJSON {
		cfg.Log.JSON = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, cfg.NewLogger(c.stderr), nil
}

// store is a cache backend that can also be enumerated for export.
type store interface {
	lazytl.Store
	cache.Scanner
}

// openStore opens the configured cache backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (store, func() error, error) {
	ttl := cfg.Cache.TTL.Std()

	switch cfg.Cache.Backend {
	case config.BackendRedis:
		s, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			URL:       cfg.Cache.URL,
			TTL:       ttl,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening redis cache: %w", err)
		}
		return s, s.Close, nil

	case config.BackendPostgres:
		s, err := cache.NewPostgresStore(ctx, cfg.Cache.URL, ttl)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres cache: %w", err)
		}
		return s, func() error { s.Close(); return nil }, nil

	case config.BackendSQLite:
		s, err := cache.OpenSQLiteStore(cfg.Cache.URL, ttl)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite cache: %w", err)
		}
		return s, s.Close, nil

	default:
		return cache.NewInMemoryStore(ttl), func() error { return nil }, nil
	}
}

// release closes the store, logging any failure.
func release(ctx context.Context, logger *slog.Logger, closeStore func() error) {
	if err := closeStore(); err != nil {
		zerr.Log(ctx, logger, zerr.Wrap(err, "closing cache store failed"))
	}
}
