// Package backend opens the store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/tillbook/internal/config"
	"github.com/cleared-dev/tillbook/internal/store"
	"github.com/cleared-dev/tillbook/internal/store/bolt"
	"github.com/cleared-dev/tillbook/internal/store/memory"
	"github.com/cleared-dev/tillbook/internal/store/mongo"
	"github.com/cleared-dev/tillbook/internal/store/postgres"
	"github.com/cleared-dev/tillbook/internal/store/sqlite"
)

// Open connects to the configured backend and migrates it. Relative file
// paths for sqlite and bolt are resolved against baseDir.
func Open(ctx context.Context, cfg config.DatabaseConfig, baseDir string) (store.Store, error) {
	s, err := open(ctx, cfg, baseDir)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrating %s store: %w", cfg.Driver, err)
	}
	return s, nil
}

func open(ctx context.Context, cfg config.DatabaseConfig, baseDir string) (store.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		return sqlite.Open(resolve(baseDir, cfg.DSN))
	case config.DriverBolt:
		return bolt.Open(resolve(baseDir, cfg.DSN))
	case config.DriverMongo:
		return mongo.Open(ctx, cfg.DSN, cfg.Name)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
