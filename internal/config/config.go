// Package config loads the postwatch configuration from a YAML file,
// applies defaults, and resolves secrets from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile  = "config.yaml"
	DefaultCursorPath  = ".postwatch/last_post_id.txt"
	DefaultStoragePath = ".postwatch/postwatch.db"
	DefaultRetainDays  = 90
	DefaultEndpoint    = "https://api.line.me/v2/bot/message/push"
	DefaultTokenEnv    = "LINE_CHANNEL_TOKEN"
	DefaultUserEnv     = "LINE_USER_ID"
	DefaultSchedule    = "@every 10m"
	DefaultLogLevel    = "info"

	FormatHTML = "html"
	FormatRSS  = "rss"
)

type Config struct {
	Profile ProfileConfig `yaml:"profile"`
	Line    LineConfig    `yaml:"line"`
	Cursor  CursorConfig  `yaml:"cursor"`
	Storage StorageConfig `yaml:"storage"`
	Watch   WatchConfig   `yaml:"watch"`
	Log     LogConfig     `yaml:"log"`
}

type ProfileConfig struct {
	URL       string         `yaml:"url"`
	Format    string         `yaml:"format"`
	Selectors SelectorConfig `yaml:"selectors"`
}

// SelectorConfig overrides the built-in selector chains. Empty lists keep
// the defaults.
type SelectorConfig struct {
	Containers []string `yaml:"containers"`
	Content    []string `yaml:"content"`
	Timestamp  []string `yaml:"timestamp"`
	Link       []string `yaml:"link"`
}

type LineConfig struct {
	Endpoint string `yaml:"endpoint"`
	TokenEnv string `yaml:"token_env"`
	UserEnv  string `yaml:"user_env"`

	// Resolved from env vars at load time. Either may be empty, which
	// turns delivery into a logged no-op for the run.
	Token  string `yaml:"-"`
	UserID string `yaml:"-"`
}

type CursorConfig struct {
	Path string `yaml:"path"`
}

type StorageConfig struct {
	Disabled   bool   `yaml:"disabled"`
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

type WatchConfig struct {
	Schedule string `yaml:"schedule"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Profile.Format == "" {
		cfg.Profile.Format = FormatHTML
	}
	if cfg.Line.Endpoint == "" {
		cfg.Line.Endpoint = DefaultEndpoint
	}
	if cfg.Line.TokenEnv == "" {
		cfg.Line.TokenEnv = DefaultTokenEnv
	}
	if cfg.Line.UserEnv == "" {
		cfg.Line.UserEnv = DefaultUserEnv
	}
	if cfg.Cursor.Path == "" {
		cfg.Cursor.Path = DefaultCursorPath
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.RetainDays == 0 {
		cfg.Storage.RetainDays = DefaultRetainDays
	}
	if cfg.Watch.Schedule == "" {
		cfg.Watch.Schedule = DefaultSchedule
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func resolveEnv(cfg *Config) {
	cfg.Line.Token = os.Getenv(cfg.Line.TokenEnv)
	cfg.Line.UserID = os.Getenv(cfg.Line.UserEnv)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Profile.URL) == "" {
		return errors.New("profile.url: is required")
	}
	u, err := url.Parse(cfg.Profile.URL)
	if err != nil {
		return fmt.Errorf("profile.url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("profile.url: %q must be an absolute URL", cfg.Profile.URL)
	}

	switch cfg.Profile.Format {
	case FormatHTML, FormatRSS:
		// valid
	default:
		return fmt.Errorf("profile.format: unknown format %q (want html or rss)", cfg.Profile.Format)
	}

	if _, err := cron.ParseStandard(cfg.Watch.Schedule); err != nil {
		return fmt.Errorf("watch.schedule: %w", err)
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}
