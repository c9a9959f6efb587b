package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/lazytl"
	"github.com/ZaguanLabs/lazytl/cache"
)

func (c *cli) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Export or import cached translations",
	}
	cmd.AddCommand(c.newCacheExportCmd())
	cmd.AddCommand(c.newCacheImportCmd())
	return cmd
}

func (c *cli) newCacheExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write every cached translation to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer release(cmd.Context(), logger, closeStore)

			n, err := cache.NewExporter(st).ExportToFile(cmd.Context(), args[0], map[string]string{
				"source_locale": cfg.SourceLocale,
				"backend":       cfg.Cache.Backend,
				"generator":     lazytl.UserAgent(),
			})
			if err != nil {
				return fmt.Errorf("exporting cache: %w", err)
			}

			logger.Info("cache exported", "entries", n, "file", args[0])
			fmt.Fprintf(c.stdout, "Exported %d entries to %s\n", n, args[0])
			return nil
		},
	}
}

func (c *cli) newCacheImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load cached translations from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer release(cmd.Context(), logger, closeStore)

			res, err := cache.NewImporter(st).ImportFromFile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("importing cache: %w", err)
			}

			logger.Info("cache imported",
				"file", args[0],
				"imported", res.Imported,
				"skipped", res.Skipped,
				"failed", res.Failed,
			)
			fmt.Fprintf(c.stdout, "Imported %d entries from %s\n", res.Imported, args[0])
			if res.Skipped > 0 {
				fmt.Fprintf(c.stdout, "  Skipped: %d\n", res.Skipped)
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d entries could not be written", res.Failed)
			}
			return nil
		},
	}
}
