// Package app assembles the ledger components for one project directory.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	"github.com/cleared-dev/tillbook/internal/accounts"
	"github.com/cleared-dev/tillbook/internal/auditlog"
	"github.com/cleared-dev/tillbook/internal/config"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/importer"
	"github.com/cleared-dev/tillbook/internal/journal"
	"github.com/cleared-dev/tillbook/internal/ledger"
	"github.com/cleared-dev/tillbook/internal/posting"
	"github.com/cleared-dev/tillbook/internal/report"
	"github.com/cleared-dev/tillbook/internal/retry"
	"github.com/cleared-dev/tillbook/internal/sequence"
	"github.com/cleared-dev/tillbook/internal/store"
	"github.com/cleared-dev/tillbook/internal/store/backend"
)

// Runtime holds every service of an opened project.
type Runtime struct {
	Dir    string
	Config *config.Config
	Store  store.Store
	Logger *slog.Logger

	Registry   *accounts.Registry
	Chart      *accounts.Chart // nil when ChartErr is set
	ChartErr   error
	Ledger     *ledger.Ledger
	Numbers    *sequence.Allocator
	Journal    *journal.Engine
	Poster     *posting.Poster
	Dispatcher *posting.Dispatcher
	Reconciler *posting.Reconciler
	Reports    *report.Engine
	Importer   *importer.Importer
	Audit      *auditlog.FileRecorder
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	alerter posting.Alerter
	actor   string
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAlerter sets who is told about postings that failed for good.
func WithAlerter(a posting.Alerter) Option {
	return func(o *options) { o.alerter = a }
}

// WithActor names the user recorded in the audit trail.
func WithActor(actor string) Option {
	return func(o *options) { o.actor = actor }
}

// LoadConfig reads dir/tillbook.yaml and applies environment overrides.
func LoadConfig(dir, envPath string) (*config.Config, error) {
	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no %s in %s (run \"tillbook init\" first): %w", config.FileName, dir, err)
		}
		return nil, err
	}
	if err := config.ApplyEnv(cfg, envPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the project configuration in dir and opens the project.
func Load(ctx context.Context, dir, envPath string, opts ...Option) (*Runtime, error) {
	cfg, err := LoadConfig(dir, envPath)
	if err != nil {
		return nil, err
	}
	return Open(ctx, dir, cfg, opts...)
}

// Open validates cfg, connects the store, seeds the chart of accounts when
// the store is empty and wires the services. A chart missing a well-known
// account does not fail Open so the chart can still be repaired; posting
// commands check ChartErr through RequireChart.
func Open(ctx context.Context, dir string, cfg *config.Config, opts ...Option) (*Runtime, error) {
	o := options{logger: slog.Default(), actor: currentActor()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ratio, err := cfg.CogsRatio()
	if err != nil {
		return nil, err
	}

	s, err := backend.Open(ctx, cfg.Database, dir)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Dir: dir, Config: cfg, Store: s, Logger: o.logger}
	logger := o.logger
	policy := retry.FromConfig(cfg.Posting.Retry)

	rt.Registry = accounts.NewRegistry(s, accounts.WithLogger(logger))
	if err := rt.seed(ctx); err != nil {
		s.Close()
		return nil, err
	}
	rt.Chart, rt.ChartErr = rt.Registry.ResolveChart(ctx, cfg.Accounts.Roles)
	if rt.ChartErr != nil {
		if !errs.IsPostingIntegrity(rt.ChartErr) {
			s.Close()
			return nil, rt.ChartErr
		}
		logger.Warn("well-known accounts unresolved, posting disabled", "error", rt.ChartErr)
	}

	rt.Audit = auditlog.NewFileRecorder(rt.Path(cfg.Audit.Path), o.actor)
	rt.Ledger = ledger.New(s, ledger.WithLogger(logger), ledger.WithRetry(policy))
	rt.Numbers = sequence.New(s, policy, logger)
	rt.Journal = journal.NewEngine(s, rt.Ledger, rt.Numbers,
		journal.WithLogger(logger),
		journal.WithAudit(rt.Audit),
	)
	rt.Poster = posting.NewPoster(rt.Ledger, rt.Registry, rt.Chart,
		posting.WithPosterLogger(logger),
		posting.WithCogsRatio(ratio),
	)
	rt.Dispatcher = posting.NewDispatcher(rt.Poster, s, logger)

	ropts := []posting.ReconcilerOption{
		posting.WithReconcilerLogger(logger),
		posting.WithReconcilerAudit(rt.Audit),
	}
	if o.alerter != nil {
		ropts = append(ropts, posting.WithAlerter(o.alerter))
	}
	rt.Reconciler = posting.NewReconciler(rt.Poster, s, posting.SettingsFromConfig(cfg.Posting.Reconcile), ropts...)
	rt.Reports = report.New(rt.Registry, rt.Ledger, report.WithLogger(logger))
	rt.Importer = importer.New(rt.Dispatcher, importer.WithLogger(logger))

	logger.Debug("project opened", "dir", dir, "driver", cfg.Database.Driver)
	return rt, nil
}

// seed loads the starter chart, or the configured chart file, into an empty
// store.
func (rt *Runtime) seed(ctx context.Context) error {
	rows := accounts.DefaultChart()
	if f := rt.Config.Accounts.ChartFile; f != "" {
		fh, err := os.Open(rt.Path(f))
		if err != nil {
			return fmt.Errorf("opening chart file: %w", err)
		}
		defer fh.Close()
		if rows, err = accounts.ReadAccounts(fh); err != nil {
			return fmt.Errorf("reading chart file %s: %w", f, err)
		}
	}
	seeded, err := rt.Registry.InitializeFrom(ctx, accounts.DefaultSubTypes(), rows)
	if err != nil {
		return fmt.Errorf("seeding chart of accounts: %w", err)
	}
	if seeded {
		rt.Logger.Info("chart of accounts seeded", "accounts", len(rows))
	}
	return nil
}

// RequireChart returns the reason well-known accounts could not be resolved.
func (rt *Runtime) RequireChart() error {
	return rt.ChartErr
}

// Path resolves a configured path against the project directory.
func (rt *Runtime) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rt.Dir, p)
}

// ImportDir is the directory scanned by the importer.
func (rt *Runtime) ImportDir() string {
	return rt.Path(rt.Config.Import.Dir)
}

// Close stops the reconciler and closes the store.
func (rt *Runtime) Close() error {
	rt.Reconciler.Stop()
	return rt.Store.Close()
}

func currentActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "tillbook"
}
