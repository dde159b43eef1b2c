package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/archdiagram/internal/config"
	"github.com/matzehuels/archdiagram/internal/editor"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
	"github.com/matzehuels/archdiagram/pkg/session"
)

// watchCommand re-renders a document whenever it is saved.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		flags    diagramFlags
		output   string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [document.yaml]",
		Short: "Re-render a document to SVG whenever it changes",
		Long: `Re-render a document to SVG whenever it changes.

The document is rendered once, then again after each save, once writes have
been quiet for the debounce period. A document that fails to parse or lay out
leaves the last good SVG in place and logs the error.

Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "-" {
				return fmt.Errorf("watch needs a file, not stdin")
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, cfg, args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = cfg.Server.EditDebounce.Duration
			}
			if output == "" {
				output = basePath("", args[0]) + "." + pipeline.FormatSVG
			}
			return c.runWatch(cmd.Context(), args[0], output, opts, debounce, flags.noCache, cfg)
		},
	}

	flags.register(cmd)
	flags.registerRender(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "output SVG file (default: <input>.svg)")
	cmd.Flags().DurationVar(&debounce, "debounce", editor.DefaultEditDebounce, "quiet period before re-rendering")

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, input, output string, opts pipeline.Options, debounce time.Duration, noCache bool, cfg *config.Config) error {
	data, err := readInput(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	sess, err := editor.NewSession(session.GenerateID(), runner, editor.Config{
		EditDebounce: debounce,
		Options:      opts,
		Logger:       c.Logger,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	// Editors often save by renaming a temp file over the original, so the
	// directory is watched rather than the file.
	if err := watcher.Add(filepath.Dir(input)); err != nil {
		return fmt.Errorf("watch %s: %w", input, err)
	}

	events, cancel := sess.Subscribe()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.writeDiagrams(gctx, events, output)
	})
	g.Go(func() error {
		return c.forwardChanges(gctx, watcher, sess, input)
	})

	if err := sess.Load(ctx, data); err != nil {
		c.Logger.Warn("initial render failed, waiting for changes", "error", err)
	}
	printInfo("Watching %s", input)
	printFile(output)

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// writeDiagrams writes every diagram event to output until ctx is done.
func (c *CLI) writeDiagrams(ctx context.Context, events <-chan editor.Event, output string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-events:
			if !open {
				return nil
			}
			if ev.Kind == editor.EventError {
				c.Logger.Error("render failed, keeping last diagram", "error", ev.Err)
				continue
			}
			if err := writeFileAtomic(output, []byte(ev.SVG)); err != nil {
				return err
			}
			c.Logger.Info("diagram updated", "perspective", ev.Perspective, "dropped", ev.Dropped, "output", output)
		}
	}
}

// forwardChanges feeds saved versions of input into the session.
func (c *CLI) forwardChanges(ctx context.Context, w *fsnotify.Watcher, sess *editor.Session, input string) error {
	target := filepath.Clean(input)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, open := <-w.Errors:
			if !open {
				return nil
			}
			c.Logger.Warn("watch error", "error", err)
		case ev, open := <-w.Events:
			if !open {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(input)
			if err != nil {
				c.Logger.Debug("document not readable yet", "error", err)
				continue
			}
			c.Logger.Debug("document changed", "op", ev.Op.String())
			sess.Edit(data)
		}
	}
}

// writeFileAtomic replaces path with data so viewers never see a partial
// file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
