package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all discover configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Decay    DecayConfig    `yaml:"decay"`
	Feed     FeedConfig     `yaml:"feed"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	TokenTTL  string `yaml:"token_ttl"` // Go duration, used by `discover token`
}

type LogConfig struct {
	Mode string `yaml:"mode"` // "dev" or "prod"
}

type DecayConfig struct {
	SweepInterval     string `yaml:"sweep_interval"` // Go duration; "0" disables the background sweep
	Seed              int64  `yaml:"seed"`           // non-zero pins the weight-decay random source
	RecalculateOnFeed bool   `yaml:"recalculate_on_feed"`
}

type FeedConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Auth: AuthConfig{
			Issuer:   "discover",
			TokenTTL: "24h",
		},
		Log: LogConfig{
			Mode: "dev",
		},
		Decay: DecayConfig{
			SweepInterval:     "24h",
			RecalculateOnFeed: true,
		},
		Feed: FeedConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if cfg.Database.Path != "" {
		cfg.Database.Path = expandPath(cfg.Database.Path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("DISCOVER_DB")); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("DISCOVER_JWT_SECRET")); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("DISCOVER_LOG_MODE")); v != "" {
		c.Log.Mode = v
	}
	c.Server.Port = envInt("DISCOVER_PORT", c.Server.Port)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if _, err := c.SweepInterval(); err != nil {
		return err
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	if c.Feed.DefaultLimit <= 0 {
		return fmt.Errorf("feed.default_limit must be positive")
	}
	if c.Feed.MaxLimit < c.Feed.DefaultLimit {
		return fmt.Errorf("feed.max_limit (%d) below feed.default_limit (%d)", c.Feed.MaxLimit, c.Feed.DefaultLimit)
	}
	return nil
}

// SweepInterval parses decay.sweep_interval. Zero means disabled.
func (c *Config) SweepInterval() (time.Duration, error) {
	if c.Decay.SweepInterval == "" || c.Decay.SweepInterval == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Decay.SweepInterval)
	if err != nil {
		return 0, fmt.Errorf("decay.sweep_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("decay.sweep_interval must not be negative")
	}
	return d, nil
}

// TokenTTL parses auth.token_ttl.
func (c *Config) TokenTTL() (time.Duration, error) {
	if c.Auth.TokenTTL == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("auth.token_ttl: %w", err)
	}
	return d, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// DefaultConfigPath returns ~/.discover/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".discover", "config.yaml")
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
