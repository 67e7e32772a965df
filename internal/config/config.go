package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/tillbook/internal/errs"
)

// FileName is the project configuration file created by "tillbook init".
const FileName = "tillbook.yaml"

// Supported database drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverBolt     = "bolt"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Drivers lists every supported database driver.
var Drivers = []string{DriverMemory, DriverSQLite, DriverBolt, DriverMongo, DriverPostgres}

// Environment variables applied over the YAML file.
const (
	EnvDBDriver  = "TILLBOOK_DB_DRIVER"
	EnvDBDSN     = "TILLBOOK_DB_DSN"
	EnvLogLevel  = "TILLBOOK_LOG_LEVEL"
	EnvCogsRatio = "TILLBOOK_COGS_RATIO"
)

// Config represents the top-level tillbook.yaml configuration.
type Config struct {
	Business BusinessConfig `yaml:"business"`
	Database DatabaseConfig `yaml:"database"`
	Accounts AccountsConfig `yaml:"accounts"`
	Posting  PostingConfig  `yaml:"posting"`
	Audit    AuditConfig    `yaml:"audit"`
	Log      LogConfig      `yaml:"log"`
	Import   ImportConfig   `yaml:"import"`
}

// BusinessConfig identifies the store.
type BusinessConfig struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`            // file path for sqlite/bolt, URI for mongo/postgres
	Name   string `yaml:"name,omitempty"` // mongo database name
}

// AccountsConfig maps posting roles to account codes.
type AccountsConfig struct {
	ChartFile string            `yaml:"chart_file,omitempty"` // optional CSV seeded by init
	Roles     map[string]string `yaml:"roles,omitempty"`      // role -> account code
}

// PostingConfig controls the posting adapters.
type PostingConfig struct {
	CogsRatio string          `yaml:"cogs_ratio"`
	Retry     RetryConfig     `yaml:"retry"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

// RetryConfig bounds retries of transient store errors.
type RetryConfig struct {
	MaxTries        uint          `yaml:"max_tries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// ReconcileConfig controls the pending-posting reconciler.
type ReconcileConfig struct {
	Interval    time.Duration `yaml:"interval"`
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// AuditConfig locates the audit trail.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ImportConfig locates the event drop directory.
type ImportConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads a tillbook.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(businessName string) *Config {
	return &Config{
		Business: BusinessConfig{
			Name:     businessName,
			Currency: "USD",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "tillbook.db",
			Name:   "tillbook",
		},
		Posting: PostingConfig{
			CogsRatio: "0.6",
			Retry: RetryConfig{
				MaxTries:        5,
				InitialInterval: 50 * time.Millisecond,
				MaxInterval:     2 * time.Second,
			},
			Reconcile: ReconcileConfig{
				Interval:    30 * time.Second,
				BatchSize:   50,
				MaxAttempts: 10,
				BaseDelay:   time.Minute,
			},
		},
		Audit: AuditConfig{
			Path: "audit.csv",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Import: ImportConfig{
			Dir: "import",
		},
	}
}

// ApplyEnv loads envPath (if given) or a .env file in the working directory
// (if present), then applies TILLBOOK_* overrides to cfg.
func ApplyEnv(cfg *Config, envPath string) error {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	if v := os.Getenv(EnvDBDriver); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvCogsRatio); v != "" {
		cfg.Posting.CogsRatio = v
	}
	return nil
}

// CogsRatio returns the configured cost-of-goods ratio.
func (c *Config) CogsRatio() (decimal.Decimal, error) {
	return parseDecimal("posting.cogs_ratio", c.Posting.CogsRatio)
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", field, s)
	}
	return d, nil
}

// Validate reports every missing or invalid setting.
func (c *Config) Validate() error {
	var problems []string

	if !validDriver(c.Database.Driver) {
		problems = append(problems, fmt.Sprintf("database.driver: unknown driver %q (want one of %s)",
			c.Database.Driver, strings.Join(Drivers, ", ")))
	}
	if c.Database.Driver != DriverMemory && c.Database.DSN == "" {
		problems = append(problems, "database.dsn: required")
	}
	if c.Database.Driver == DriverMongo && c.Database.Name == "" {
		problems = append(problems, "database.name: required for mongo")
	}

	if ratio, err := c.CogsRatio(); err != nil {
		problems = append(problems, err.Error())
	} else if ratio.IsNegative() || ratio.GreaterThan(decimal.NewFromInt(1)) {
		problems = append(problems, "posting.cogs_ratio: must be between 0 and 1")
	}

	if c.Posting.Retry.MaxTries == 0 {
		problems = append(problems, "posting.retry.max_tries: must be at least 1")
	}
	r := c.Posting.Reconcile
	if r.Interval <= 0 {
		problems = append(problems, "posting.reconcile.interval: must be positive")
	}
	if r.BatchSize <= 0 {
		problems = append(problems, "posting.reconcile.batch_size: must be positive")
	}
	if r.MaxAttempts <= 0 {
		problems = append(problems, "posting.reconcile.max_attempts: must be positive")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format: unknown format %q", c.Log.Format))
	}

	for role, code := range c.Accounts.Roles {
		if strings.TrimSpace(code) == "" {
			problems = append(problems, fmt.Sprintf("accounts.roles.%s: empty account code", role))
		}
	}

	if len(problems) > 0 {
		return errs.Invalid("invalid configuration", problems)
	}
	return nil
}

func validDriver(d string) bool {
	for _, known := range Drivers {
		if d == known {
			return true
		}
	}
	return false
}
