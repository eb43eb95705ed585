package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://youth.europa.eu/api/rest/eyp/v1/search_en", cfg.Catalog.BaseURL)
	assert.Equal(t, "https://youth.europa.eu/solidarity/opportunity/%s_en", cfg.Catalog.DetailURLTemplate)
	assert.Equal(t, 20, cfg.Catalog.TimeoutSecs)
	assert.Equal(t, 350, cfg.Catalog.RateIntervalMs)
	assert.Equal(t, 4, cfg.Catalog.MaxAttempts)
	assert.Equal(t, 2000, cfg.Catalog.InitialBackoffMs)
	assert.Equal(t, 30000, cfg.Catalog.MaxBackoffMs)
	assert.InDelta(t, 2.0, cfg.Catalog.BackoffMultiplier, 0.001)
	assert.InDelta(t, 0.5, cfg.Catalog.JitterFraction, 0.001)
	assert.Equal(t, 5, cfg.Catalog.FailureThreshold)
	assert.Len(t, cfg.Catalog.UserAgents, 5)
	assert.Equal(t, 15, cfg.Harvest.Workers)
	assert.Equal(t, 100, cfg.Harvest.PageSize)
	assert.Equal(t, 250, cfg.Harvest.MaxPages)
	assert.Equal(t, 0, cfg.Harvest.StartOffset)
	assert.Equal(t, 0, cfg.Harvest.DeadlineSecs)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, filepath.Join(xdg.DataHome, "harvest-cli", "opportunities.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(xdg.DataHome, "harvest-cli", "opportunities.json"), cfg.Backup.Path)
	assert.True(t, cfg.Backup.Auto)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
harvest:
  workers: 30
  page_size: 50
store:
  driver: postgres
  database_url: postgres://localhost/harvest
  max_conns: 20
  min_conns: 4
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Harvest.Workers)
	assert.Equal(t, 50, cfg.Harvest.PageSize)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/harvest", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(20), cfg.Store.MaxConns)
	assert.Equal(t, int32(4), cfg.Store.MinConns)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 250, cfg.Harvest.MaxPages)
	assert.Equal(t, 350, cfg.Catalog.RateIntervalMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
harvest:
  workers: 30
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("HARVEST_HARVEST_WORKERS", "8")
	t.Setenv("HARVEST_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, 8, cfg.Harvest.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("HARVEST_CATALOG_RATE_INTERVAL_MS", "1000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Catalog.RateIntervalMs)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")

	yaml := `
harvest:
  workers: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Harvest.Workers)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validConfig returns a Config that passes Validate, for mutation tests.
func validConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			BaseURL:           "https://catalog.example/api/search",
			DetailURLTemplate: "https://catalog.example/opportunity/%s",
			TimeoutSecs:       20,
			RateIntervalMs:    350,
			MaxAttempts:       4,
			UserAgents:        []string{"test-agent/1.0"},
		},
		Harvest: HarvestConfig{
			Workers:  15,
			PageSize: 100,
			MaxPages: 250,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "/tmp/opportunities.db",
		},
	}
}

func TestValidate_Defaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing base url", func(c *Config) { c.Catalog.BaseURL = "" }, "base_url is required"},
		{"bad detail template", func(c *Config) { c.Catalog.DetailURLTemplate = "https://x/fixed" }, "detail_url_template"},
		{"zero timeout", func(c *Config) { c.Catalog.TimeoutSecs = 0 }, "timeout_secs must be positive"},
		{"zero rate interval", func(c *Config) { c.Catalog.RateIntervalMs = 0 }, "rate_interval_ms must be positive"},
		{"zero attempts", func(c *Config) { c.Catalog.MaxAttempts = 0 }, "max_attempts must be positive"},
		{"no user agents", func(c *Config) { c.Catalog.UserAgents = nil }, "user_agents must not be empty"},
		{"zero workers", func(c *Config) { c.Harvest.Workers = 0 }, "workers must be positive"},
		{"negative workers", func(c *Config) { c.Harvest.Workers = -3 }, "workers must be positive"},
		{"zero page size", func(c *Config) { c.Harvest.PageSize = 0 }, "page_size must be positive"},
		{"zero max pages", func(c *Config) { c.Harvest.MaxPages = 0 }, "max_pages must be positive"},
		{"negative offset", func(c *Config) { c.Harvest.StartOffset = -1 }, "start_offset"},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }, "store.path is required"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "unknown store driver"},
		{"postgres without url", func(c *Config) {
			c.Store.Driver = "postgres"
			c.Store.DatabaseURL = ""
		}, "store.database_url is required"},
		{"auto backup without path", func(c *Config) {
			c.Backup.Auto = true
			c.Backup.Path = ""
		}, "backup.path is required"},
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
