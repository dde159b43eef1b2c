// Package config loads the archdiagram configuration file.
//
// The file is TOML and lives at $XDG_CONFIG_HOME/archdiagram/config.toml
// (~/.config/archdiagram/config.toml when XDG_CONFIG_HOME is unset). A
// missing file is not an error: every field has a default. Command-line
// flags override values read from the file.
//
//	[server]
//	addr = ":8080"
//	edit_debounce = "500ms"
//	resize_debounce = "3s"
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
//	[layout.options]
//	"elk.direction" = "DOWN"
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/archdiagram/pkg/errors"
	"github.com/matzehuels/archdiagram/pkg/render"
)

// FileName is the configuration file name inside the config directory.
const FileName = "config.toml"

// Cache backends.
const (
	CacheNone   = "none"
	CacheFile   = "file"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheMongo  = "mongo"
)

// Session store backends.
const (
	SessionMemory = "memory"
	SessionFile   = "file"
	SessionRedis  = "redis"
)

// ValidCacheBackends lists the accepted values of cache.backend.
var ValidCacheBackends = []string{CacheNone, CacheFile, CacheMemory, CacheRedis, CacheMongo}

// ValidSessionBackends lists the accepted values of session.backend.
var ValidSessionBackends = []string{SessionMemory, SessionFile, SessionRedis}

// Config holds all configuration sections.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Cache   CacheConfig   `toml:"cache"`
	Session SessionConfig `toml:"session"`
	Layout  LayoutConfig  `toml:"layout"`
	Render  RenderConfig  `toml:"render"`
}

// ServerConfig configures the editor server.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	EditDebounce   Duration `toml:"edit_debounce"`
	ResizeDebounce Duration `toml:"resize_debounce"`
	// RenderRate is the sustained number of render requests per second
	// accepted per client; RenderBurst bounds short spikes.
	RenderRate  float64  `toml:"render_rate"`
	RenderBurst int      `toml:"render_burst"`
	SessionIdle Duration `toml:"session_idle"`
}

// CacheConfig selects the layout and artifact cache.
type CacheConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	RedisURL      string `toml:"redis_url"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
	// KeyPrefix namespaces cache keys so deployments can share a backend.
	KeyPrefix string `toml:"key_prefix"`
}

// SessionConfig selects where layout preferences of server sessions are kept.
type SessionConfig struct {
	Backend  string   `toml:"backend"`
	Dir      string   `toml:"dir"`
	RedisURL string   `toml:"redis_url"`
	TTL      Duration `toml:"ttl"`
}

// LayoutConfig holds layout option overrides applied on top of the defaults.
type LayoutConfig struct {
	Options map[string]string `toml:"options"`
}

// RenderConfig holds rendering defaults.
type RenderConfig struct {
	Style string `toml:"style"`
}

// Duration is a time.Duration written as a Go duration string ("500ms").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           "localhost:8080",
			EditDebounce:   Duration{500 * time.Millisecond},
			ResizeDebounce: Duration{3 * time.Second},
			RenderRate:     5,
			RenderBurst:    10,
			SessionIdle:    Duration{30 * time.Minute},
		},
		Cache: CacheConfig{
			Backend:       CacheFile,
			MongoDatabase: "archdiagram",
		},
		Session: SessionConfig{
			Backend: SessionMemory,
			TTL:     Duration{30 * 24 * time.Hour},
		},
		Layout: LayoutConfig{Options: map[string]string{}},
		Render: RenderConfig{Style: render.StyleLight},
	}
}

// Dir returns the archdiagram configuration directory.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "archdiagram"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "archdiagram"), nil
}

// DefaultPath returns the path of the configuration file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the configuration at path on top of [Default]. A missing file
// yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown config key %q in %s", undecoded[0].String(), path)
	}
	if cfg.Layout.Options == nil {
		cfg.Layout.Options = map[string]string{}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path, creating the directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("ARCHDIAGRAM_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if url := os.Getenv("ARCHDIAGRAM_REDIS_URL"); url != "" {
		c.Cache.RedisURL = url
		c.Session.RedisURL = url
	}
	if uri := os.Getenv("ARCHDIAGRAM_MONGO_URI"); uri != "" {
		c.Cache.MongoURI = uri
	}
	if backend := os.Getenv("ARCHDIAGRAM_CACHE"); backend != "" {
		c.Cache.Backend = backend
	}
}

// Validate checks that backends are known and their connection settings are
// present.
func (c *Config) Validate() error {
	if !slices.Contains(ValidCacheBackends, c.Cache.Backend) {
		return errors.New(errors.ErrCodeInvalidInput, "invalid cache backend %q (valid: %v)", c.Cache.Backend, ValidCacheBackends)
	}
	if c.Cache.Backend == CacheRedis && c.Cache.RedisURL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache backend redis requires cache.redis_url")
	}
	if c.Cache.Backend == CacheMongo && c.Cache.MongoURI == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache backend mongo requires cache.mongo_uri")
	}
	if !slices.Contains(ValidSessionBackends, c.Session.Backend) {
		return errors.New(errors.ErrCodeInvalidInput, "invalid session backend %q (valid: %v)", c.Session.Backend, ValidSessionBackends)
	}
	if c.Session.Backend == SessionRedis && c.Session.RedisURL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "session backend redis requires session.redis_url")
	}
	if _, err := render.StyleByName(c.Render.Style); err != nil {
		return err
	}
	if c.Server.RenderRate <= 0 || c.Server.RenderBurst <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "server.render_rate and server.render_burst must be positive")
	}
	if c.Server.EditDebounce.Duration < 0 || c.Server.ResizeDebounce.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "debounce durations must not be negative")
	}
	return nil
}

// CacheLocation returns the location string understood by cache.Open.
// An empty dir for the file backend falls back to the default cache
// directory.
func (c *Config) CacheLocation(defaultDir string) string {
	switch c.Cache.Backend {
	case CacheNone:
		return CacheNone
	case CacheMemory:
		return CacheMemory
	case CacheRedis:
		return c.Cache.RedisURL
	case CacheMongo:
		return c.Cache.MongoURI
	default:
		if c.Cache.Dir != "" {
			return c.Cache.Dir
		}
		return defaultDir
	}
}
