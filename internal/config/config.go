// Package config loads stylus settings from defaults, an optional
// stylus.yaml, a .env file and STYLUS_* environment variables, in increasing
// order of precedence. Command-line flags bound through viper win over all
// of them.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/fingerprint"
)

// EnvPrefix prefixes every environment variable, e.g. STYLUS_STORAGE_BACKEND.
const EnvPrefix = "STYLUS"

// Config holds all application configuration.
type Config struct {
	Storage    StorageConfig      `mapstructure:"storage"`
	Fetch      FetchConfig        `mapstructure:"fetch"`
	Render     RenderConfig       `mapstructure:"render"`
	Server     ServerConfig       `mapstructure:"server"`
	Log        LogConfig          `mapstructure:"log"`
	Heuristics extract.Heuristics `mapstructure:"heuristics"`
}

// StorageConfig selects the record store backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // json, sqlite or postgres
	DSN     string `mapstructure:"dsn"`     // file path, or connection string for postgres
}

// FetchConfig controls plain HTTP acquisition.
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	Fingerprint  string        `mapstructure:"fingerprint"`
	Proxy        string        `mapstructure:"proxy"`
	// Cookie is a Cookie header copied from a logged-in browser session.
	Cookie     string   `mapstructure:"cookie"`
	UserAgents []string `mapstructure:"user_agents"`
	Rotation   string   `mapstructure:"rotation"`

	RPS    float64 `mapstructure:"rps"`
	Jitter float64 `mapstructure:"jitter"`

	RespectRobots   bool `mapstructure:"respect_robots"`
	RobotsCacheSize int  `mapstructure:"robots_cache_size"`
}

// RenderConfig controls the headless browser loader.
type RenderConfig struct {
	Headless     bool          `mapstructure:"headless"`
	NoSandbox    bool          `mapstructure:"no_sandbox"`
	BrowserBin   string        `mapstructure:"browser_bin"`
	ControlURL   string        `mapstructure:"control_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	WaitSelector string        `mapstructure:"wait_selector"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	Scrolls      int           `mapstructure:"scrolls"`
	ScrollPause  time.Duration `mapstructure:"scroll_pause"`
}

// ServerConfig controls the message transport.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release or test
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// DefaultDataPath is where the json backend keeps its file when no DSN is
// configured.
func DefaultDataPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "stylus-data.json"
	}
	return filepath.Join(dir, "stylus", "data.json")
}

// SetDefaults registers every key with its default. Keys must be known to
// viper for STYLUS_* variables to reach nested fields.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", "json")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("fetch.timeout", 20*time.Second)
	v.SetDefault("fetch.max_redirects", 5)
	v.SetDefault("fetch.fingerprint", string(fingerprint.ProfileChrome))
	v.SetDefault("fetch.proxy", "")
	v.SetDefault("fetch.cookie", "")
	v.SetDefault("fetch.user_agents", []string{})
	v.SetDefault("fetch.rotation", "sequential")
	v.SetDefault("fetch.rps", 0.5)
	v.SetDefault("fetch.jitter", 0.3)
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("fetch.robots_cache_size", 64)

	v.SetDefault("render.headless", true)
	v.SetDefault("render.no_sandbox", false)
	v.SetDefault("render.browser_bin", "")
	v.SetDefault("render.control_url", "")
	v.SetDefault("render.timeout", 45*time.Second)
	v.SetDefault("render.wait_selector", "")
	v.SetDefault("render.wait_timeout", 10*time.Second)
	v.SetDefault("render.scrolls", 3)
	v.SetDefault("render.scroll_pause", 750*time.Millisecond)

	v.SetDefault("server.addr", "127.0.0.1:8765")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	h := extract.DefaultHeuristics()
	v.SetDefault("heuristics.hosts", h.Hosts)
	v.SetDefault("heuristics.path_prefix", h.PathPrefix)
	v.SetDefault("heuristics.title_suffix", h.TitleSuffix)
	v.SetDefault("heuristics.placeholder", h.Placeholder)
	v.SetDefault("heuristics.prompt_class_fragments", h.PromptClassFragments)
	v.SetDefault("heuristics.prompt_selectors", h.PromptSelectors)
	v.SetDefault("heuristics.min_class_prompt_len", h.MinClassPromptLen)
	v.SetDefault("heuristics.min_scan_prompt_len", h.MinScanPromptLen)
	v.SetDefault("heuristics.min_sibling_prompt_len", h.MinSiblingPromptLen)
	v.SetDefault("heuristics.max_sibling_walk", h.MaxSiblingWalk)
	v.SetDefault("heuristics.container_roles", h.ContainerRoles)
	v.SetDefault("heuristics.container_class_hints", h.ContainerClassHints)
	v.SetDefault("heuristics.container_testid_hints", h.ContainerTestIDHints)
	v.SetDefault("heuristics.icon_selector", h.IconSelector)
	v.SetDefault("heuristics.interactive_selector", h.InteractiveSelector)
	v.SetDefault("heuristics.image_sources", h.ImageSources)
	v.SetDefault("heuristics.page_title_selectors", h.PageTitleSelectors)
	v.SetDefault("heuristics.hook_markers", h.HookMarkers)
	v.SetDefault("heuristics.app_root_selectors", h.AppRootSelectors)
	v.SetDefault("heuristics.song_title_selectors", h.SongTitleSelectors)
	v.SetDefault("heuristics.song_lyrics_selectors", h.SongLyricsSelectors)
	v.SetDefault("heuristics.song_style_selectors", h.SongStyleSelectors)
	v.SetDefault("heuristics.song_tag_selector", h.SongTagSelector)
}

// Load reads configuration into a fresh Config. configFile, when set, must
// exist; otherwise stylus.yaml is looked up in the working directory and
// the user config directory and is optional. A missing .env is ignored.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("stylus")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "stylus"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Decode into a zero value so configured lists replace the defaults
	// instead of being merged into them.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Storage.DSN == "" && strings.EqualFold(cfg.Storage.Backend, "json") {
		cfg.Storage.DSN = DefaultDataPath()
	}
	return &cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Storage.Backend) {
	case "json", "sqlite":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage dsn cannot be empty for %s backend", c.Storage.Backend))
		}
	case "postgres", "postgresql":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage backend must be json, sqlite or postgres, got %q", c.Storage.Backend))
	}

	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Fetch.MaxRedirects < 0 {
		errs = append(errs, errors.New("max redirects cannot be negative"))
	}
	if _, err := fingerprint.ParseProfile(c.Fetch.Fingerprint); err != nil {
		errs = append(errs, err)
	}
	if c.Fetch.Proxy != "" {
		if _, err := ParseProxy(c.Fetch.Proxy); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Fetch.RPS < 0 {
		errs = append(errs, errors.New("rps cannot be negative"))
	}
	if c.Fetch.Jitter < 0 || c.Fetch.Jitter > 1 {
		errs = append(errs, errors.New("jitter must be between 0 and 1"))
	}
	switch c.Fetch.Rotation {
	case "", "sequential", "random":
	default:
		errs = append(errs, fmt.Errorf("rotation must be sequential or random, got %q", c.Fetch.Rotation))
	}

	if c.Render.Timeout < 0 || c.Render.WaitTimeout < 0 || c.Render.ScrollPause < 0 {
		errs = append(errs, errors.New("render durations cannot be negative"))
	}
	if c.Render.Scrolls < 0 {
		errs = append(errs, errors.New("render scrolls cannot be negative"))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server addr cannot be empty"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.Log.Format))
	}

	if err := c.Heuristics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("heuristics: %w", err))
	}
	return errors.Join(errs...)
}

// ParseProxy parses a proxy URL and requires a scheme and host.
func ParseProxy(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxy url %q must include scheme and host", raw)
	}
	return u, nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewLogger builds a slog.Logger writing to w.
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}
