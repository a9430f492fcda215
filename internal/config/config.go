// Package config loads application configuration from defaults, an optional
// YAML file, and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{
	"config.yaml",
	"config.yml",
}

// Validation errors.
var (
	ErrMissingCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET")
	ErrMissingDatabaseURL = errors.New("missing DATABASE_URL")
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Spotify  SpotifyConfig  `koanf:"spotify"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr        string `koanf:"addr"`
	RedirectURI string `koanf:"redirect_uri"`
}

// SpotifyConfig holds Spotify API credentials and endpoints.
type SpotifyConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	APIBaseURL   string        `koanf:"api_base_url"`
	TokenURL     string        `koanf:"token_url"`
	RecentLimit  int           `koanf:"recent_limit"`
	Timeout      time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL     string `koanf:"url"`
	Migrate bool   `koanf:"migrate"`
}

// SyncConfig tunes the synchronization pipeline.
type SyncConfig struct {
	// Concurrency bounds the per-stage worker pool for album and track writes.
	Concurrency int `koanf:"concurrency"`

	// CollectRateLimit is the number of /collect requests allowed per IP per minute.
	CollectRateLimit int `koanf:"collect_rate_limit"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the configuration used before any file or env overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        "127.0.0.1:8080",
			RedirectURI: "http://127.0.0.1:8080/callback",
		},
		Spotify: SpotifyConfig{
			APIBaseURL:  "https://api.spotify.com/v1/",
			TokenURL:    "https://accounts.spotify.com/api/token",
			RecentLimit: 50,
			Timeout:     10 * time.Second,
		},
		Database: DatabaseConfig{
			Migrate: true,
		},
		Sync: SyncConfig{
			Concurrency:      5,
			CollectRateLimit: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envKeys maps environment variables to config keys. Unlisted variables are ignored.
var envKeys = map[string]string{
	"ADDR":                 "server.addr",
	"SPOTIFY_REDIRECT_URI": "server.redirect_uri",
	"SPOTIFY_ID":           "spotify.client_id",
	"SPOTIFY_SECRET":       "spotify.client_secret",
	"SPOTIFY_API_BASE_URL": "spotify.api_base_url",
	"SPOTIFY_TOKEN_URL":    "spotify.token_url",
	"SPOTIFY_RECENT_LIMIT": "spotify.recent_limit",
	"SPOTIFY_TIMEOUT":      "spotify.timeout",
	"DATABASE_URL":         "database.url",
	"DATABASE_MIGRATE":     "database.migrate",
	"SYNC_CONCURRENCY":     "sync.concurrency",
	"COLLECT_RATE_LIMIT":   "sync.collect_rate_limit",
	"LOG_LEVEL":            "logging.level",
	"LOG_FORMAT":           "logging.format",
}

func envTransform(key string) string {
	return envKeys[strings.ToUpper(key)]
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return ErrMissingCredentials
	}
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync.concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	if c.Sync.CollectRateLimit <= 0 {
		return fmt.Errorf("sync.collect_rate_limit must be positive, got %d", c.Sync.CollectRateLimit)
	}
	if c.Spotify.RecentLimit < 1 || c.Spotify.RecentLimit > 50 {
		return fmt.Errorf("spotify.recent_limit must be between 1 and 50, got %d", c.Spotify.RecentLimit)
	}
	return nil
}
