// Package config loads application configuration from defaults, an optional
// YAML file and PROJECTWATCH_* environment variables, in that order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PROJECTWATCH_"

// Config is the root application configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Discord  DiscordConfig  `koanf:"discord"`
	Poll     PollConfig     `koanf:"poll"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ServerConfig controls the HTTP command API and metrics listeners.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig controls the PostgreSQL connection pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
}

// UpstreamConfig controls access to the tracked platform's read API.
type UpstreamConfig struct {
	APIBaseURL     string        `koanf:"api_base_url"`
	ProjectBaseURL string        `koanf:"project_base_url"`
	FetchTimeout   time.Duration `koanf:"fetch_timeout"`
}

// DiscordConfig controls the chat platform used for notification delivery.
type DiscordConfig struct {
	APIBaseURL string        `koanf:"api_base_url"`
	BotToken   string        `koanf:"bot_token"`
	RateLimit  float64       `koanf:"rate_limit"`
	Timeout    time.Duration `koanf:"timeout"`
}

// PollConfig controls the reconciliation schedule.
type PollConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Upstream: UpstreamConfig{
			APIBaseURL:     "https://api.scratch.mit.edu",
			ProjectBaseURL: "https://scratch.mit.edu",
			FetchTimeout:   15 * time.Second,
		},
		Discord: DiscordConfig{
			APIBaseURL: "https://discord.com/api/v10",
			RateLimit:  5,
			Timeout:    10 * time.Second,
		},
		Poll: PollConfig{
			Interval: 60 * time.Second,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// PROJECTWATCH_POLL_INTERVAL=30s -> poll.interval
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded configuration for values the process cannot
// run with.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Upstream.FetchTimeout <= 0 {
		return fmt.Errorf("upstream.fetch_timeout must be positive, got %s", c.Upstream.FetchTimeout)
	}
	if c.Upstream.FetchTimeout > c.Poll.Interval {
		return fmt.Errorf("upstream.fetch_timeout (%s) must not exceed poll.interval (%s)",
			c.Upstream.FetchTimeout, c.Poll.Interval)
	}
	return nil
}
