package config

import (
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Harvest    HarvestConfig    `yaml:"harvest" mapstructure:"harvest"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Backup     BackupConfig     `yaml:"backup" mapstructure:"backup"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CatalogConfig configures access to the opportunity catalog.
type CatalogConfig struct {
	BaseURL           string   `yaml:"base_url" mapstructure:"base_url"`
	DetailURLTemplate string   `yaml:"detail_url_template" mapstructure:"detail_url_template"`
	TimeoutSecs       int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateIntervalMs    int      `yaml:"rate_interval_ms" mapstructure:"rate_interval_ms"`
	MaxAttempts       int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int      `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int      `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	JitterFraction    float64  `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold  int      `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	UserAgents        []string `yaml:"user_agents" mapstructure:"user_agents"`
}

// HarvestConfig configures a harvest run.
type HarvestConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers"`
	PageSize     int `yaml:"page_size" mapstructure:"page_size"`
	MaxPages     int `yaml:"max_pages" mapstructure:"max_pages"`
	StartOffset  int `yaml:"start_offset" mapstructure:"start_offset"`
	DeadlineSecs int `yaml:"deadline_secs" mapstructure:"deadline_secs"`
}

// ExtractionConfig configures detail-page extraction.
type ExtractionConfig struct {
	MappingsFile string `yaml:"mappings_file" mapstructure:"mappings_file"`
}

// StoreConfig configures the database backend. MaxConns and MinConns only
// apply to postgres; zero values fall back to the pool defaults.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BackupConfig configures JSON snapshot backups.
type BackupConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	Auto bool   `yaml:"auto" mapstructure:"auto"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// defaultUserAgents is rotated across catalog requests.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/120.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
}

// Load reads configuration from file and environment. A non-empty cfgFile
// pins the config file location instead of the search path.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, "harvest-cli"))
	}

	// Environment
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.base_url", "https://youth.europa.eu/api/rest/eyp/v1/search_en")
	v.SetDefault("catalog.detail_url_template", "https://youth.europa.eu/solidarity/opportunity/%s_en")
	v.SetDefault("catalog.timeout_secs", 20)
	v.SetDefault("catalog.rate_interval_ms", 350)
	v.SetDefault("catalog.max_attempts", 4)
	v.SetDefault("catalog.initial_backoff_ms", 2000)
	v.SetDefault("catalog.max_backoff_ms", 30000)
	v.SetDefault("catalog.backoff_multiplier", 2.0)
	v.SetDefault("catalog.jitter_fraction", 0.5)
	v.SetDefault("catalog.failure_threshold", 5)
	v.SetDefault("catalog.user_agents", defaultUserAgents)
	v.SetDefault("harvest.workers", 15)
	v.SetDefault("harvest.page_size", 100)
	v.SetDefault("harvest.max_pages", 250)
	v.SetDefault("harvest.start_offset", 0)
	v.SetDefault("harvest.deadline_secs", 0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", filepath.Join(xdg.DataHome, "harvest-cli", "opportunities.db"))
	v.SetDefault("backup.path", filepath.Join(xdg.DataHome, "harvest-cli", "opportunities.json"))
	v.SetDefault("backup.auto", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate rejects settings no run could operate under. Called again after
// flag overrides are applied.
func (c *Config) Validate() error {
	if c.Catalog.BaseURL == "" {
		return eris.New("config: catalog.base_url is required")
	}
	if !strings.Contains(c.Catalog.DetailURLTemplate, "%s") {
		return eris.New("config: catalog.detail_url_template must contain %s placeholder")
	}
	if c.Catalog.TimeoutSecs <= 0 {
		return eris.New("config: catalog.timeout_secs must be positive")
	}
	if c.Catalog.RateIntervalMs <= 0 {
		return eris.New("config: catalog.rate_interval_ms must be positive")
	}
	if c.Catalog.MaxAttempts <= 0 {
		return eris.New("config: catalog.max_attempts must be positive")
	}
	if len(c.Catalog.UserAgents) == 0 {
		return eris.New("config: catalog.user_agents must not be empty")
	}
	if c.Harvest.Workers <= 0 {
		return eris.New("config: harvest.workers must be positive")
	}
	if c.Harvest.PageSize <= 0 {
		return eris.New("config: harvest.page_size must be positive")
	}
	if c.Harvest.MaxPages <= 0 {
		return eris.New("config: harvest.max_pages must be positive")
	}
	if c.Harvest.StartOffset < 0 {
		return eris.New("config: harvest.start_offset must not be negative")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return eris.New("config: store.path is required for sqlite")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for postgres")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Backup.Auto && c.Backup.Path == "" {
		return eris.New("config: backup.path is required when backup.auto is set")
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
