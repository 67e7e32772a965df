package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/cleared-dev/tillbook/internal/auditlog"
	"github.com/cleared-dev/tillbook/internal/config"
	"github.com/cleared-dev/tillbook/internal/model"
)

// Alerter is told about postings that exhausted their attempts.
type Alerter interface {
	Alert(ctx context.Context, p model.PendingPosting)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(ctx context.Context, p model.PendingPosting)

func (f AlerterFunc) Alert(ctx context.Context, p model.PendingPosting) { f(ctx, p) }

// ReconcileSettings controls the Reconciler.
type ReconcileSettings struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// SettingsFromConfig builds ReconcileSettings from configuration.
func SettingsFromConfig(c config.ReconcileConfig) ReconcileSettings {
	return ReconcileSettings{
		Interval:    c.Interval,
		BatchSize:   c.BatchSize,
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
	}
}

// Summary counts the outcomes of one reconciliation pass.
type Summary struct {
	Posted      int
	Rescheduled int
	Failed      int
}

// Reconciler retries pending postings until they succeed or run out of
// attempts.
type Reconciler struct {
	poster   *Poster
	outbox   Outbox
	settings ReconcileSettings
	alerter  Alerter
	audit    auditlog.Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = logger }
}

// WithAlerter sets the alerter for postings marked failed.
func WithAlerter(a Alerter) ReconcilerOption {
	return func(r *Reconciler) { r.alerter = a }
}

// WithReconcilerAudit sets the recorder for postings marked failed.
func WithReconcilerAudit(rec auditlog.Recorder) ReconcilerOption {
	return func(r *Reconciler) { r.audit = rec }
}

// WithReconcilerClock overrides the time source.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a Reconciler. Zero settings fall back to the
// configuration defaults.
func NewReconciler(poster *Poster, outbox Outbox, settings ReconcileSettings, opts ...ReconcilerOption) *Reconciler {
	def := SettingsFromConfig(config.Default("").Posting.Reconcile)
	if settings.Interval <= 0 {
		settings.Interval = def.Interval
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = def.BatchSize
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = def.MaxAttempts
	}
	if settings.BaseDelay <= 0 {
		settings.BaseDelay = def.BaseDelay
	}
	if settings.MaxDelay <= 0 {
		settings.MaxDelay = 6 * time.Hour
	}

	r := &Reconciler{
		poster:   poster,
		outbox:   outbox,
		settings: settings,
		alerter:  AlerterFunc(func(context.Context, model.PendingPosting) {}),
		audit:    auditlog.Discard,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce processes one batch of due pending postings.
func (r *Reconciler) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary
	due, err := r.outbox.ListPending(ctx, model.PendingFilter{
		Status:    model.PendingStatusPending,
		DueBefore: r.now().UTC(),
		Limit:     r.settings.BatchSize,
	})
	if err != nil {
		return sum, fmt.Errorf("listing pending postings: %w", err)
	}

	var errs []error
	for i := range due {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		outcome, err := r.process(ctx, &due[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		switch outcome {
		case model.PendingStatusPosted:
			sum.Posted++
		case model.PendingStatusFailed:
			sum.Failed++
		default:
			sum.Rescheduled++
		}
	}

	if len(due) > 0 {
		r.logger.Info("reconciled pending postings",
			"posted", sum.Posted,
			"rescheduled", sum.Rescheduled,
			"failed", sum.Failed,
		)
	}
	return sum, errors.Join(errs...)
}

// Retry makes a failed or pending posting due now with a fresh attempt count.
func (r *Reconciler) Retry(ctx context.Context, pendingID string) error {
	p, err := r.outbox.GetPending(ctx, pendingID)
	if err != nil {
		return err
	}
	p.Status = model.PendingStatusPending
	p.Attempts = 0
	p.NextAttemptAt = r.now().UTC()
	return r.outbox.UpdatePending(ctx, p)
}

func (r *Reconciler) process(ctx context.Context, p *model.PendingPosting) (model.PendingStatus, error) {
	postErr := r.attempt(ctx, p)
	p.Attempts++

	switch {
	case postErr == nil:
		p.Status = model.PendingStatusPosted
		p.LastError = ""
	case p.Attempts >= r.settings.MaxAttempts:
		p.Status = model.PendingStatusFailed
		p.LastError = postErr.Error()
	default:
		p.LastError = postErr.Error()
		p.NextAttemptAt = r.now().UTC().Add(r.delay(p.Attempts))
	}

	if err := r.outbox.UpdatePending(ctx, p); err != nil {
		return "", fmt.Errorf("updating pending posting %s: %w", p.ID, err)
	}

	key := model.PostingKey(p.Kind, p.SourceID)
	switch p.Status {
	case model.PendingStatusPosted:
		r.logger.Info("pending posting succeeded", "posting_key", key, "attempts", p.Attempts)
	case model.PendingStatusFailed:
		r.logger.Error("pending posting failed permanently",
			"posting_key", key,
			"pending_id", p.ID,
			"attempts", p.Attempts,
			"error", p.LastError,
		)
		r.alerter.Alert(ctx, *p)
		if err := r.audit.Record(ctx, auditlog.Entry{
			Action:  auditlog.ActionPostingFailed,
			Subject: key,
			Details: auditlog.Details(map[string]any{
				"pending_id": p.ID,
				"attempts":   p.Attempts,
				"error":      p.LastError,
				"payload":    string(p.Payload),
			}),
		}); err != nil {
			r.logger.Error("failed to audit failed posting", "posting_key", key, "error", err)
		}
	default:
		r.logger.Warn("pending posting rescheduled",
			"posting_key", key,
			"attempts", p.Attempts,
			"next_attempt_at", p.NextAttemptAt,
			"error", p.LastError,
		)
	}
	return p.Status, nil
}

func (r *Reconciler) attempt(ctx context.Context, p *model.PendingPosting) error {
	ev, err := Decode(p.Kind, p.Payload)
	if err != nil {
		return err
	}
	_, err = r.poster.Post(ctx, ev)
	return err
}

// delay returns the wait before the given attempt number is retried.
func (r *Reconciler) delay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.settings.BaseDelay
	b.MaxInterval = r.settings.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Start runs RunOnce every Interval until Stop is called or ctx is done.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("reconciler already running")
	}
	r.running = true
	r.stopChan = make(chan struct{})

	r.wg.Add(1)
	go r.worker(ctx, r.stopChan)

	r.logger.Info("reconciler started",
		"interval", r.settings.Interval,
		"batch_size", r.settings.BatchSize,
		"max_attempts", r.settings.MaxAttempts,
	)
	return nil
}

// Stop halts the worker and waits for an in-flight pass to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("reconciler stopped")
}

func (r *Reconciler) worker(ctx context.Context, stop <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.settings.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("reconciliation pass failed", "error", err)
			}
		}
	}
}
