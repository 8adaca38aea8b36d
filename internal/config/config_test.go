package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Remote: RemoteConfig{BaseURL: "https://memory.memctl.dev", Org: "acme", Project: "widgets"},
		Cache:  CacheConfig{Dir: "/tmp/memctl", FreshnessMinutes: 15},
		Sync:   SyncConfig{PageSize: 200, MaxRecords: 2000},
		Limits: LimitsConfig{SessionWriteCeiling: 500},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty base url", func(c *Config) { c.Remote.BaseURL = "" }, "base_url"},
		{"empty cache dir", func(c *Config) { c.Cache.Dir = "" }, "cache.dir"},
		{"zero freshness", func(c *Config) { c.Cache.FreshnessMinutes = 0 }, "freshness_minutes"},
		{"zero page size", func(c *Config) { c.Sync.PageSize = 0 }, "page_size"},
		{"cap below page size", func(c *Config) { c.Sync.MaxRecords = 100 }, "max_records"},
		{"zero write ceiling", func(c *Config) { c.Limits.SessionWriteCeiling = 0 }, "session_write_ceiling"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://memory.memctl.dev", cfg.Remote.BaseURL)
	assert.Equal(t, DefaultPageSize, cfg.Sync.PageSize)
	assert.Equal(t, DefaultMaxSyncRecords, cfg.Sync.MaxRecords)
	assert.Equal(t, DefaultFreshnessMinutes, cfg.Cache.FreshnessMinutes)
	assert.Equal(t, 500, cfg.Limits.SessionWriteCeiling)
	assert.Equal(t, 15*time.Minute, cfg.Cache.FreshnessWindow())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MEMCTL_ORG", "acme")
	t.Setenv("MEMCTL_PROJECT", "widgets")
	t.Setenv("MEMCTL_AUTH_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Remote.Org)
	assert.Equal(t, "widgets", cfg.Remote.Project)
	assert.Equal(t, "secret", cfg.Remote.AuthToken)
}

func TestIndexPath(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, filepath.Join("/tmp/memctl", "index.db"), cfg.IndexPath())
}

func TestClaudeConfigMasksAPIKey(t *testing.T) {
	c := ClaudeConfig{APIKey: "sk-ant-REDACTED", Model: "claude-haiku-4-5-20251001"}
	s := c.String()
	assert.NotContains(t, s, "verylongsecret")
	assert.Contains(t, s, "sk-a")

	assert.Contains(t, ClaudeConfig{APIKey: "short"}.String(), "***")
}
