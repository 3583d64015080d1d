// Package config defines all configuration for the feed polling daemon.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via BEAM_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Poll      PollConfig      `mapstructure:"poll"`
	Store     StoreConfig     `mapstructure:"store"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// APIConfig holds the Beam API endpoints and the watchlist auth token.
// AuthToken is optional: without it the public feed still polls and the
// watchlist reports auth_required.
type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	PublicPath    string        `mapstructure:"public_path"`
	WatchlistPath string        `mapstructure:"watchlist_path"`
	AuthToken     string        `mapstructure:"auth_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// PollConfig tunes the adaptive polling cadence.
//
//   - BaseInterval: steady-state gap between polls (backoff multiplies it).
//   - MaxMultiplier: ceiling on the backoff multiplier.
//   - PageLimit: items requested per poll (server caps at 50).
type PollConfig struct {
	BaseInterval  time.Duration `mapstructure:"base_interval"`
	MaxMultiplier float64       `mapstructure:"max_multiplier"`
	PageLimit     int           `mapstructure:"page_limit"`
}

// StoreConfig sets where per-feed cursors are persisted (JSON files).
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// AnalyticsConfig controls best-effort poll telemetry. Disabled by default;
// failures are logged and never affect polling behavior.
type AnalyticsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the local status server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Defaults applied when the YAML file omits a field.
const (
	DefaultBaseInterval  = 30 * time.Second
	DefaultMaxMultiplier = 8.0
	DefaultPageLimit     = 20
	DefaultTimeout       = 15 * time.Second
)

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: BEAM_AUTH_TOKEN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BEAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.public_path", "/api/v1/feed")
	v.SetDefault("api.watchlist_path", "/api/v1/watchlist")
	v.SetDefault("api.timeout", DefaultTimeout)
	v.SetDefault("poll.base_interval", DefaultBaseInterval)
	v.SetDefault("poll.max_multiplier", DefaultMaxMultiplier)
	v.SetDefault("poll.page_limit", DefaultPageLimit)
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if tok := os.Getenv("BEAM_AUTH_TOKEN"); tok != "" {
		cfg.API.AuthToken = tok
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Poll.BaseInterval <= 0 {
		return fmt.Errorf("poll.base_interval must be > 0")
	}
	if c.Poll.MaxMultiplier < 1 {
		return fmt.Errorf("poll.max_multiplier must be >= 1")
	}
	if c.Poll.PageLimit <= 0 || c.Poll.PageLimit > 50 {
		return fmt.Errorf("poll.page_limit must be in 1..50")
	}
	if c.Analytics.Enabled && c.Analytics.Endpoint == "" {
		return fmt.Errorf("analytics.endpoint is required when analytics.enabled is true")
	}
	return nil
}
