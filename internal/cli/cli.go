// Package cli implements the archdiagram command-line interface.
//
// Commands go through the same [pipeline.Runner] as the editor server, so a
// diagram rendered on the command line matches the one shown in the browser.
//
// # Commands
//
//   - render: render a document to SVG, PNG, PDF, JSON or DOT
//   - project: print the projected graph of a perspective, before layout
//   - layout: write the positioned graph as JSON
//   - perspectives: list the perspectives of a document
//   - fmt: normalize a document
//   - sample: print the sample document
//   - watch: re-render a document whenever it changes on disk
//   - serve: run the browser editor
//   - cache, config, completion: housekeeping
//
// # Configuration
//
// Defaults come from the TOML file described in package config; the
// --config flag points at a different file. Flags override the file.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/archdiagram/internal/config"
	"github.com/matzehuels/archdiagram/pkg/cache"
	"github.com/matzehuels/archdiagram/pkg/errors"
	"github.com/matzehuels/archdiagram/pkg/layout"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
	"github.com/matzehuels/archdiagram/pkg/session"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "archdiagram"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath overrides the default configuration file location.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// loadConfig reads the configuration file named by --config, or the default
// one.
func (c *CLI) loadConfig() (*config.Config, error) {
	path := c.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			c.Logger.Debug("no config directory, using defaults", "error", err)
			return config.Default(), nil
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("loaded config", "path", path, "cache", cfg.Cache.Backend)
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner backed by the configured cache.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, noCache bool) (*pipeline.Runner, error) {
	ch, err := c.openCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if cfg.Cache.KeyPrefix != "" {
		keyer = cache.NewScopedKeyer(nil, cfg.Cache.KeyPrefix)
	}
	return pipeline.NewRunner(ch, keyer, nil, c.Logger), nil
}

// openCache opens the configured cache backend. A file cache whose directory
// cannot be determined degrades to no caching.
func (c *CLI) openCache(ctx context.Context, cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case config.CacheMongo:
		return cache.NewMongoCache(ctx, cfg.Cache.MongoURI, cfg.Cache.MongoDatabase)
	case config.CacheFile:
		if cfg.Cache.Dir == "" {
			dir, err := cacheDir()
			if err != nil {
				c.Logger.Warn("cache directory unavailable, caching disabled", "error", err)
				return cache.NewNullCache(), nil
			}
			return cache.NewFileCache(dir)
		}
	}
	return cache.Open(ctx, cfg.CacheLocation(""))
}

// openSessionStore opens the store that keeps editor preferences.
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case config.SessionRedis:
		return session.NewRedisStore(ctx, cfg.Session.RedisURL)
	case config.SessionFile:
		dir := cfg.Session.Dir
		if dir == "" {
			base, err := cacheDir()
			if err != nil {
				return nil, fmt.Errorf("get session dir: %w", err)
			}
			dir = filepath.Join(base, "sessions")
		}
		return session.NewFileStore(dir)
	default:
		return session.NewMemoryStore(), nil
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/archdiagram/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// baseOptions returns pipeline options seeded from the configuration file.
func baseOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Style:  cfg.Render.Style,
		Layout: layout.Merge(nil, cfg.Layout.Options),
	}
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatSVG}
	}
	parts := strings.Split(s, ",")
	formats := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			formats = append(formats, p)
		}
	}
	return formats
}

// parseLayoutOpts parses repeated key=value flags into layout options.
func parseLayoutOpts(pairs []string) (layout.Options, error) {
	opts := layout.Options{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.New(errors.ErrCodeInvalidLayoutOption, "invalid layout option %q (want key=value)", pair)
		}
		opts[key] = strings.TrimSpace(value)
	}
	return opts, nil
}

// readInput reads a document from path, or from stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "document %s not found", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// nopCloser wraps a writer that must not be closed, such as stdout.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput opens path for writing, or stdout when path is empty or "-".
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
