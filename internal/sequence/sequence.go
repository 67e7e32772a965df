// Package sequence allocates human-facing document numbers ("JE-00001")
// from gap-tolerant store counters.
package sequence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cleared-dev/tillbook/internal/id"
	"github.com/cleared-dev/tillbook/internal/retry"
	"github.com/cleared-dev/tillbook/internal/store"
)

// Counter is the subset of store.Store the allocator needs.
type Counter interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// Allocator hands out document numbers. Numbers are unique and increasing
// per series; a failed posting may leave a gap.
type Allocator struct {
	counter Counter
	policy  retry.Policy
	logger  *slog.Logger
}

// New returns an Allocator over counter.
func New(counter Counter, policy retry.Policy, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{counter: counter, policy: policy, logger: logger}
}

// Next returns the next number in series.
func (a *Allocator) Next(ctx context.Context, series id.Series) (string, error) {
	seq, err := retry.Value(ctx, a.policy, a.logger, func(ctx context.Context) (int64, error) {
		return a.counter.NextSequence(ctx, series.Sequence)
	})
	if err != nil {
		return "", fmt.Errorf("allocating %s number: %w", series.Prefix, err)
	}
	return id.FormatNumber(series.Prefix, seq), nil
}

var _ Counter = (store.Store)(nil)
