package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/archdiagram/internal/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the layout and render cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached layouts and artifacts",
		Long: `Remove all cached layouts and artifacts from the configured backend.

For the redis and mongo backends only archdiagram's own entries are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend == config.CacheNone {
				printInfo("Caching is disabled")
				return nil
			}
			ch, err := c.openCache(cmd.Context(), cfg, false)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer ch.Close()

			if err := ch.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			printSuccess("Cleared %s cache", cfg.Cache.Backend)
			if loc, err := c.cacheLocation(cfg); err == nil {
				printDetail("Location: %s", loc)
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			loc, err := c.cacheLocation(cfg)
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), loc)
			return nil
		},
	}
}

// cacheLocation describes where the configured cache lives.
func (c *CLI) cacheLocation(cfg *config.Config) (string, error) {
	if cfg.Cache.Backend == config.CacheFile && cfg.Cache.Dir == "" {
		return cacheDir()
	}
	return cfg.CacheLocation(""), nil
}
