package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/lazytl/cache"
	"github.com/ZaguanLabs/lazytl/internal/config"
)

func (c *cli) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the cache schema",
		Long: `Applies the translation cache schema of the configured backend.
Postgres migrations are versioned; SQLite applies its schema on open.
Memory and Redis backends have no schema.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}

			switch cfg.Cache.Backend {
			case config.BackendPostgres:
				v, err := cache.MigratePostgres(cfg.Cache.URL)
				if err != nil {
					return err
				}
				logger.Info("postgres cache schema migrated", "version", v)
				fmt.Fprintf(c.stdout, "Postgres cache schema at version %d\n", v)

			case config.BackendSQLite:
				s, err := cache.OpenSQLiteStore(cfg.Cache.URL, 0)
				if err != nil {
					return fmt.Errorf("opening sqlite cache: %w", err)
				}
				if err := s.Close(); err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "SQLite cache schema applied to %s\n", cfg.Cache.URL)

			default:
				return fmt.Errorf("the %s cache backend has no schema to migrate", cfg.Cache.Backend)
			}
			return nil
		},
	}
}
