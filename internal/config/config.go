// Package config loads the application configuration from file and
// environment and owns global logger setup.
package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/browser"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/extract"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/paginate"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Browser  browser.Config  `yaml:"browser" mapstructure:"browser"`
	Extract  extract.Config  `yaml:"extract" mapstructure:"extract"`
	Paginate paginate.Config `yaml:"paginate" mapstructure:"paginate"`
	Batch    BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Paths    PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the target database backend.
type StoreConfig struct {
	// Driver selects "postgres" or "sqlite".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`

	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// BatchConfig configures multi-company batch runs.
type BatchConfig struct {
	// Companies are the portal profiles to run, in order.
	Companies []string `yaml:"companies" mapstructure:"companies"`

	// MaxConcurrentCompanies bounds parallel company runs. The portals
	// throttle aggressively, so the default is sequential.
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
}

// PathsConfig holds the on-disk layout. Control, checkpoint and artifact
// directories are derived per company under DataDir.
type PathsConfig struct {
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// ControlDir is where the company's sentinel files and STATUS.json live.
func (p PathsConfig) ControlDir(company string) string {
	return filepath.Join(p.DataDir, company, "control")
}

// CheckpointDir holds the company's checkpoint files.
func (p PathsConfig) CheckpointDir(company string) string {
	return filepath.Join(p.DataDir, company, "checkpoints")
}

// ArtifactDir holds the company's rendered documents, attachments and
// record snapshots.
func (p PathsConfig) ArtifactDir(company string) string {
	return filepath.Join(p.DataDir, company, "processed")
}

// DownloadDir is the browser's scratch area for in-flight downloads.
func (p PathsConfig) DownloadDir(company string) string {
	return filepath.Join(p.DataDir, company, "downloads")
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the fields required for a given run mode. Modes:
// "extract" runs the browser pipeline without a store, "load" needs a
// reachable store, "run" needs both.
func (c *Config) Validate(mode string) error {
	var problems []string

	needStore := false
	switch mode {
	case "extract":
	case "load", "run", "migrate":
		needStore = true
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needStore {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				problems = append(problems, "store.sqlite_path is required")
			}
		default:
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
	}

	if c.Batch.MaxConcurrentCompanies < 1 || c.Batch.MaxConcurrentCompanies > 10 {
		problems = append(problems, "batch.max_concurrent_companies must be between 1 and 10")
	}
	if len(c.Batch.Companies) == 0 {
		problems = append(problems, "batch.companies must name at least one portal")
	}
	if c.Paths.DataDir == "" {
		problems = append(problems, "paths.data_dir is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EXTRACTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "extractor.db")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout", "45s")
	v.SetDefault("browser.step_timeout", "10s")
	v.SetDefault("extract.detail_wait", "15s")
	v.SetDefault("extract.download_timeout", "30s")
	v.SetDefault("extract.generic_table_cap", 3)
	v.SetDefault("extract.generic_row_cap", 20)
	v.SetDefault("paginate.checkpoint_frequency", 5)
	v.SetDefault("paginate.max_records_per_session", 1000)
	v.SetDefault("paginate.banner_wait", "15s")
	v.SetDefault("paginate.pause_tick", "5s")
	v.SetDefault("paginate.page_interval", "2s")
	v.SetDefault("batch.companies", []string{"aire", "afinia"})
	v.SetDefault("batch.max_concurrent_companies", 1)
	v.SetDefault("paths.data_dir", "data")
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
