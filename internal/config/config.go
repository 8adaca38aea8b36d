package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultPageSize is how many records each sync page requests.
	DefaultPageSize = 200

	// DefaultMaxSyncRecords caps how many records one sync will pull.
	DefaultMaxSyncRecords = 2000

	// DefaultFreshnessMinutes is the cache staleness window.
	DefaultFreshnessMinutes = 15
)

// Config holds all configuration for memctl.
type Config struct {
	Remote  RemoteConfig  `mapstructure:"remote"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Claude  ClaudeConfig  `mapstructure:"claude"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RemoteConfig holds remote memory store connection settings.
type RemoteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Org       string `mapstructure:"org"`
	Project   string `mapstructure:"project"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig holds local cache settings.
type CacheConfig struct {
	Dir              string `mapstructure:"dir"`
	FreshnessMinutes int    `mapstructure:"freshness_minutes"`
}

// FreshnessWindow returns the staleness window as a duration.
func (c CacheConfig) FreshnessWindow() time.Duration {
	return time.Duration(c.FreshnessMinutes) * time.Minute
}

// SyncConfig holds snapshot sync settings.
type SyncConfig struct {
	PageSize   int `mapstructure:"page_size"`
	MaxRecords int `mapstructure:"max_records"`
}

// LimitsConfig holds write-admission settings.
type LimitsConfig struct {
	SessionWriteCeiling int `mapstructure:"session_write_ceiling"`
}

// ClaudeConfig holds optional Anthropic Claude API settings for
// LLM-assisted candidate extraction.
type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// String returns a safe representation of ClaudeConfig with the API key masked.
func (c ClaudeConfig) String() string {
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s}", maskAPIKey(c.APIKey), c.Model)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("remote.base_url", "https://memory.memctl.dev")
	v.SetDefault("remote.org", "")
	v.SetDefault("remote.project", "")
	v.SetDefault("remote.auth_token", "")

	v.SetDefault("cache.dir", filepath.Join(homeDir(), ".memctl", "cache"))
	v.SetDefault("cache.freshness_minutes", DefaultFreshnessMinutes)

	v.SetDefault("sync.page_size", DefaultPageSize)
	v.SetDefault("sync.max_records", DefaultMaxSyncRecords)

	v.SetDefault("limits.session_write_ceiling", 500)

	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".memctl"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("MEMCTL")
	v.AutomaticEnv()

	_ = v.BindEnv("remote.base_url", "MEMCTL_REMOTE_BASE_URL")
	_ = v.BindEnv("remote.org", "MEMCTL_ORG")
	_ = v.BindEnv("remote.project", "MEMCTL_PROJECT")
	_ = v.BindEnv("remote.auth_token", "MEMCTL_AUTH_TOKEN")
	_ = v.BindEnv("claude.api_key", "ANTHROPIC_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK — use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url must not be empty")
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must not be empty")
	}
	if c.Cache.FreshnessMinutes <= 0 {
		return fmt.Errorf("cache.freshness_minutes must be greater than 0")
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("sync.page_size must be greater than 0")
	}
	if c.Sync.MaxRecords < c.Sync.PageSize {
		return fmt.Errorf("sync.max_records (%d) must be at least sync.page_size (%d)", c.Sync.MaxRecords, c.Sync.PageSize)
	}
	if c.Limits.SessionWriteCeiling <= 0 {
		return fmt.Errorf("limits.session_write_ceiling must be greater than 0")
	}
	return nil
}

// IndexPath returns the location of the full-text index database.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Cache.Dir, "index.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
