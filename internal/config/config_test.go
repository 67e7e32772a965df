package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/errs"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Corner Shop")
	cfg.Database = DatabaseConfig{Driver: DriverBolt, DSN: "data/ledger.bolt"}
	cfg.Accounts.Roles = map[string]string{"cash": "1010"}
	cfg.Posting.Reconcile.Interval = 5 * time.Second

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Corner Shop", got.Business.Name)
	assert.Equal(t, DriverBolt, got.Database.Driver)
	assert.Equal(t, "data/ledger.bolt", got.Database.DSN)
	assert.Equal(t, "1010", got.Accounts.Roles["cash"])
	assert.Equal(t, 5*time.Second, got.Posting.Reconcile.Interval)
	assert.Equal(t, 50*time.Millisecond, got.Posting.Retry.InitialInterval)
	assert.Equal(t, "0.6", got.Posting.CogsRatio)
}

func TestDefaults(t *testing.T) {
	cfg := Default("My Shop")

	assert.Equal(t, "My Shop", cfg.Business.Name)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "tillbook.db", cfg.Database.DSN)
	assert.Equal(t, "audit.csv", cfg.Audit.Path)
	assert.Equal(t, "import", cfg.Import.Dir)
	assert.Empty(t, cfg.Accounts.Roles)

	ratio, err := cfg.CogsRatio()
	require.NoError(t, err)
	assert.Equal(t, "0.6", ratio.String())

	assert.NoError(t, cfg.Validate())
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	data := "business:\n  name: Kiosk\ndatabase:\n  driver: memory\n  dsn: \"\"\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Kiosk", cfg.Business.Name)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Posting.Reconcile.MaxAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default("Test Shop")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "business:")
	assert.Contains(t, content, "driver: sqlite")
	assert.Contains(t, content, "cogs_ratio:")
	assert.Contains(t, content, "interval: 30s")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		problem string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"mongo needs name", func(c *Config) { c.Database = DatabaseConfig{Driver: DriverMongo, DSN: "mongodb://x"} }, "database.name"},
		{"ratio above one", func(c *Config) { c.Posting.CogsRatio = "1.5" }, "posting.cogs_ratio"},
		{"ratio not a number", func(c *Config) { c.Posting.CogsRatio = "lots" }, "posting.cogs_ratio"},
		{"zero tries", func(c *Config) { c.Posting.Retry.MaxTries = 0 }, "posting.retry.max_tries"},
		{"zero batch", func(c *Config) { c.Posting.Reconcile.BatchSize = 0 }, "posting.reconcile.batch_size"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"empty role code", func(c *Config) { c.Accounts.Roles = map[string]string{"cash": " "} }, "accounts.roles.cash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("x")
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TILLBOOK_COGS_RATIO=0.55\n"), 0o644))

	t.Setenv(EnvDBDriver, DriverPostgres)
	t.Setenv(EnvDBDSN, "postgres://localhost/shop")
	t.Setenv(EnvLogLevel, "debug")
	// godotenv does not override variables already set; clear it so the
	// file value is used, and restore afterwards.
	t.Setenv(EnvCogsRatio, "")
	os.Unsetenv(EnvCogsRatio)

	cfg := Default("x")
	require.NoError(t, ApplyEnv(cfg, envFile))

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/shop", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "0.55", cfg.Posting.CogsRatio)
}

func TestApplyEnvMissingFile(t *testing.T) {
	err := ApplyEnv(Default("x"), filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
