package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/archdiagram/internal/config"
	"github.com/matzehuels/archdiagram/internal/editor"
	"github.com/matzehuels/archdiagram/internal/server"
	"github.com/matzehuels/archdiagram/pkg/observability"
)

// serveCommand runs the browser editor.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the browser editor",
		Long: `Run the browser editor.

The editor shows a YAML document next to its diagram. Edits re-render once
typing pauses; the pane split and the selected perspective are remembered.
The server also exposes a small render API under /api.

Sessions, caching and rate limits are configured in the [server], [cache] and
[session] sections of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			return c.runServe(cmd.Context(), cfg, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg *config.Config, noCache bool) error {
	hooks := observability.NewLogHooks(c.Logger)
	observability.SetPipelineHooks(hooks)
	observability.SetCacheHooks(hooks)
	defer observability.Reset()

	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	store, err := openSessionStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	opts := baseOptions(cfg)
	editors, err := editor.NewManager(runner, editor.Config{
		EditDebounce:   cfg.Server.EditDebounce.Duration,
		ResizeDebounce: cfg.Server.ResizeDebounce.Duration,
		Options:        opts,
		Store:          store,
		PreferenceTTL:  cfg.Session.TTL.Duration,
		Logger:         c.Logger,
	}, cfg.Server.SessionIdle.Duration)
	if err != nil {
		return err
	}

	srv := server.New(runner, editors, server.Config{
		Addr:        cfg.Server.Addr,
		RenderRate:  cfg.Server.RenderRate,
		RenderBurst: cfg.Server.RenderBurst,
		Options:     opts,
		Logger:      c.Logger,
	})
	printInfo("Editor at %s", StyleHighlight.Render("http://"+cfg.Server.Addr))
	return srv.Run(ctx)
}
