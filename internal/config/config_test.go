package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "match-engine.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "v1", cfg.Scoring.WeightsVersion)
	assert.Equal(t, 0, cfg.Engagement.BaseOffset)
	assert.Equal(t, "store", cfg.Catalog.Source)
	assert.Equal(t, "https://api.airtable.com/v0", cfg.Airtable.BaseURL)
	assert.Equal(t, "Protocols", cfg.Airtable.ProtocolTable)
	assert.InDelta(t, 5.0, cfg.Airtable.RequestsPerSecond, 0.001)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(600), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 512, cfg.Cache.ReportSize)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.InDelta(t, 0.5, cfg.Monitoring.NoMatchRateThreshold, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/match
log:
  level: debug
  format: console
server:
  port: 9090
engagement:
  base_offset: 1250
catalog:
  source: file
  path: protocols.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/match", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 1250, cfg.Engagement.BaseOffset)
	assert.Equal(t, "file", cfg.Catalog.Source)
	assert.Equal(t, "protocols.yaml", cfg.Catalog.Path)
	// Defaults still apply for unset values
	assert.Equal(t, "v1", cfg.Scoring.WeightsVersion)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("MATCH_STORE_DRIVER", "postgres")
	t.Setenv("MATCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("MATCH_SERVER_PORT", "3000")
	t.Setenv("MATCH_ENGAGEMENT_BASE_OFFSET", "500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Engagement.BaseOffset)
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "match.db"
	cfg.Catalog.Source = "store"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("score"))
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidate_StoreAndCatalog(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""
	cfg.Catalog.Source = "xlsx"

	err := cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "catalog.path is required for source xlsx")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidateServe_MonitoringNeedsWebhook(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.Enabled = true

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.webhook_url")
}

func TestValidateCatalogSync_MissingAirtable(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("catalog-sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "airtable.key is required")
	assert.Contains(t, err.Error(), "airtable.base_id is required")

	cfg.Airtable.Key = "pat"
	cfg.Airtable.BaseID = "app123"
	assert.NoError(t, cfg.Validate("catalog-sync"))
}

func TestValidate_AirtableSourceNeedsCredentials(t *testing.T) {
	cfg := validDefaults()
	cfg.Catalog.Source = "airtable"

	err := cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "airtable.key is required")
}
