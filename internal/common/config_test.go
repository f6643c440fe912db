package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"ANTHROPIC_API_KEY", "SPECIALS_CLAUDE_API_KEY", "GEMINI_API_KEY", "SPECIALS_GEMINI_API_KEY"} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, StorageBadger, cfg.Storage.Type)
	assert.Equal(t, "2m", cfg.Scheduler.StoreTimeout)
	assert.Equal(t, 2, cfg.Scheduler.StoreConcurrency)
	assert.Len(t, cfg.Stores, 4)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	clearKeyEnv(t)
	base := writeConfig(t, "base.toml", `
[storage]
type = "sqlite"

[storage.sql]
dsn = "base.db"

[scheduler]
store_concurrency = 4
`)
	override := writeConfig(t, "override.toml", `
[storage.sql]
dsn = "override.db"

[sources.salefinder.retailers]
aldi = "999"
`)

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, StorageSQLite, cfg.Storage.Type)
	assert.Equal(t, "override.db", cfg.Storage.SQL.DSN)
	assert.Equal(t, 4, cfg.Scheduler.StoreConcurrency)
	assert.Equal(t, "999", cfg.Sources.SaleFinder.Retailers["aldi"])
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := writeConfig(t, "bad.toml", "[storage\ntype=")
	_, err = LoadFromFile(bad)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("SPECIALS_STORAGE_TYPE", "postgres")
	t.Setenv("SPECIALS_SQL_DSN", "postgres://localhost/specials")
	t.Setenv("SPECIALS_LOG_OUTPUT", "stdout, file")
	t.Setenv("SPECIALS_STORE_CONCURRENCY", "3")
	t.Setenv("SPECIALS_SCHEDULER_ENABLED", "false")
	t.Setenv("ANTHROPIC_API_KEY", "sdk-key")
	t.Setenv("SPECIALS_CLAUDE_API_KEY", "app-key")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.Storage.Type)
	assert.Equal(t, "postgres://localhost/specials", cfg.Storage.SQL.DSN)
	assert.Equal(t, []string{"stdout", "file"}, cfg.Logging.Output)
	assert.Equal(t, 3, cfg.Scheduler.StoreConcurrency)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "app-key", cfg.Claude.APIKey)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, "sqlite", "debug")
	assert.Equal(t, StorageSQLite, cfg.Storage.Type)
	assert.Equal(t, "debug", cfg.Logging.Level)

	ApplyFlagOverrides(cfg, "", "")
	assert.Equal(t, StorageSQLite, cfg.Storage.Type)
}

func TestResolveAPIKey(t *testing.T) {
	clearKeyEnv(t)

	_, err := ResolveAPIKey("claude_api_key", "")
	assert.Error(t, err)

	key, err := ResolveAPIKey("claude_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	key, err = ResolveAPIKey("claude_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	t.Setenv("GEMINI_API_KEY", "gemini-env")
	key, err = ResolveAPIKey("gemini_api_key", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini-env", key)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }, true},
		{"bad duration", func(c *Config) { c.Scheduler.StoreTimeout = "soon" }, true},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, true},
		{"zero concurrency", func(c *Config) { c.Scheduler.StoreConcurrency = 0 }, true},
		{"bad provider", func(c *Config) { c.LLM.DefaultProvider = "other" }, true},
		{"duplicate store", func(c *Config) { c.Stores = append(c.Stores, c.Stores[0]) }, true},
		{"schedule override", func(c *Config) { c.Scheduler.Schedules = map[string]string{"image_repair": "15 6 * * 3"} }, false},
		{"schedule too frequent", func(c *Config) { c.Scheduler.Schedules = map[string]string{"image_repair": "*/2 * * * *"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, 2*time.Minute, ParseDurationOr("", 2*time.Minute))
	assert.Equal(t, 2*time.Minute, ParseDurationOr("nope", 2*time.Minute))
	assert.Equal(t, 2*time.Minute, ParseDurationOr("-1s", 2*time.Minute))
	assert.Equal(t, 5*time.Second, ParseDurationOr("5s", 2*time.Minute))
}

func TestStoreModels(t *testing.T) {
	stores := NewDefaultConfig().StoreModels()

	require.Len(t, stores, 4)
	assert.Equal(t, "woolworths", stores[0].Slug)
	assert.Equal(t, int64(4), stores[3].ID)
}
