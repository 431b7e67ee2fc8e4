package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Engagement EngagementConfig `yaml:"engagement" mapstructure:"engagement"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Airtable   AirtableConfig   `yaml:"airtable" mapstructure:"airtable"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScoringConfig selects the versioned scoring tables.
type ScoringConfig struct {
	WeightsVersion string `yaml:"weights_version" mapstructure:"weights_version"`
}

// EngagementConfig configures the doctor tier engine.
type EngagementConfig struct {
	BaseOffset int `yaml:"base_offset" mapstructure:"base_offset"`
}

// CatalogConfig selects where the protocol catalog is read from.
// Source is one of store, file, xlsx or airtable.
type CatalogConfig struct {
	Source string `yaml:"source" mapstructure:"source"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// AirtableConfig holds Airtable API settings for catalog sync.
type AirtableConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	BaseID            string  `yaml:"base_id" mapstructure:"base_id"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	ProtocolTable     string  `yaml:"protocol_table" mapstructure:"protocol_table"`
	SolutionTable     string  `yaml:"solution_table" mapstructure:"solution_table"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// AnthropicConfig holds Anthropic API settings for report explanations.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CacheConfig sizes in-process caches.
type CacheConfig struct {
	ReportSize int `yaml:"report_size" mapstructure:"report_size"`
}

// BatchConfig configures batch report generation.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// MonitoringConfig configures background alerting.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	NoMatchRateThreshold float64 `yaml:"no_match_rate_threshold" mapstructure:"no_match_rate_threshold"`
	MinReports           int     `yaml:"min_reports" mapstructure:"min_reports"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "match-engine.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("scoring.weights_version", "v1")
	v.SetDefault("engagement.base_offset", 0)
	v.SetDefault("catalog.source", "store")
	v.SetDefault("airtable.base_url", "https://api.airtable.com/v0")
	v.SetDefault("airtable.protocol_table", "Protocols")
	v.SetDefault("airtable.solution_table", "signature_solutions")
	v.SetDefault("airtable.requests_per_second", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 600)
	v.SetDefault("anthropic.timeout_secs", 20)
	v.SetDefault("cache.report_size", 512)
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.no_match_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_reports", 10)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command needs are present. Mode names
// the command: serve, catalog-sync, or any other value for the common checks.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch c.Catalog.Source {
	case "store", "airtable":
	case "file", "xlsx":
		if c.Catalog.Path == "" {
			errs = append(errs, fmt.Sprintf("catalog.path is required for source %s", c.Catalog.Source))
		}
	default:
		errs = append(errs, fmt.Sprintf("catalog.source %q is not supported", c.Catalog.Source))
	}
	if c.Engagement.BaseOffset < 0 {
		errs = append(errs, "engagement.base_offset must be >= 0")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Monitoring.Enabled && c.Monitoring.WebhookURL == "" {
			errs = append(errs, "monitoring.webhook_url is required when monitoring is enabled")
		}
	}

	if mode == "catalog-sync" || c.Catalog.Source == "airtable" {
		if c.Airtable.Key == "" {
			errs = append(errs, "airtable.key is required")
		}
		if c.Airtable.BaseID == "" {
			errs = append(errs, "airtable.base_id is required")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
