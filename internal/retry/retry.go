// Package retry re-runs store operations that failed with a transient
// error, using exponential backoff.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/cleared-dev/tillbook/internal/config"
	"github.com/cleared-dev/tillbook/internal/store"
)

// Policy bounds the retries of a single operation.
type Policy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy mirrors the configuration defaults.
var DefaultPolicy = Policy{MaxTries: 5, InitialInterval: 50 * time.Millisecond, MaxInterval: 2 * time.Second}

// NoRetry runs the operation exactly once.
var NoRetry = Policy{MaxTries: 1}

// FromConfig builds a Policy from the posting retry settings.
func FromConfig(c config.RetryConfig) Policy {
	return Policy{MaxTries: c.MaxTries, InitialInterval: c.InitialInterval, MaxInterval: c.MaxInterval}
}

// Do calls fn until it succeeds, returns a non-transient error, the policy
// runs out of tries, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, logger *slog.Logger, fn func(context.Context) error) error {
	_, err := Value(ctx, p, logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, logger *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	op := func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !store.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
	}
	if logger != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("retrying after transient store error", "error", err, "wait", wait)
		}))
	}
	return backoff.Retry(ctx, op, opts...)
}
