package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

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

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 45*time.Second, cfg.Browser.NavTimeout)
	assert.Equal(t, 15*time.Second, cfg.Extract.DetailWait)
	assert.Equal(t, 30*time.Second, cfg.Extract.DownloadTimeout)
	assert.Equal(t, 3, cfg.Extract.GenericTableCap)
	assert.Equal(t, 20, cfg.Extract.GenericRowCap)
	assert.Equal(t, 5, cfg.Paginate.CheckpointFrequency)
	assert.Equal(t, 1000, cfg.Paginate.MaxRecordsPerSession)
	assert.Equal(t, 5*time.Second, cfg.Paginate.PauseTick)
	assert.Equal(t, 15*time.Second, cfg.Paginate.BannerWait)
	assert.Equal(t, []string{"aire", "afinia"}, cfg.Batch.Companies)
	assert.Equal(t, 1, cfg.Batch.MaxConcurrentCompanies)
	assert.Equal(t, "data", cfg.Paths.DataDir)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  sqlite_path: /var/lib/extractor/records.db
log:
  level: debug
  format: console
batch:
  companies: [afinia]
paginate:
  checkpoint_frequency: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/extractor/records.db", cfg.Store.SQLitePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"afinia"}, cfg.Batch.Companies)
	assert.Equal(t, 10, cfg.Paginate.CheckpointFrequency)
	// Defaults still apply for unset values
	assert.Equal(t, 1000, cfg.Paginate.MaxRecordsPerSession)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("EXTRACTOR_STORE_DRIVER", "postgres")
	t.Setenv("EXTRACTOR_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestPathsConfig_PerCompanyLayout(t *testing.T) {
	p := PathsConfig{DataDir: "/srv/extractor"}
	assert.Equal(t, filepath.Join("/srv/extractor", "aire", "control"), p.ControlDir("aire"))
	assert.Equal(t, filepath.Join("/srv/extractor", "aire", "checkpoints"), p.CheckpointDir("aire"))
	assert.Equal(t, filepath.Join("/srv/extractor", "afinia", "processed"), p.ArtifactDir("afinia"))
	assert.Equal(t, filepath.Join("/srv/extractor", "afinia", "downloads"), p.DownloadDir("afinia"))
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/extractor"
	cfg.Batch.Companies = []string{"aire"}
	cfg.Batch.MaxConcurrentCompanies = 1
	cfg.Paths.DataDir = "data"
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("run"))
}

func TestValidateRun_MissingDatabaseURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateExtract_NoStoreNeeded(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	assert.NoError(t, cfg.Validate("extract"))
}

func TestValidateSQLiteDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = ""

	err := cfg.Validate("load")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.sqlite_path is required")

	cfg.Store.SQLitePath = "records.db"
	assert.NoError(t, cfg.Validate("load"))
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "oracle"

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrentCompanies = 0
	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_companies must be between 1 and 10")

	cfg.Batch.MaxConcurrentCompanies = 11
	err = cfg.Validate("run")
	require.Error(t, err)

	cfg.Batch.MaxConcurrentCompanies = 10
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateCompaniesRequired(t *testing.T) {
	cfg := validDefaults()
	cfg.Batch.Companies = nil

	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.companies")
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
