package posting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/id"
	"github.com/cleared-dev/tillbook/internal/model"
)

// Outbox is the part of the store that keeps pending postings.
type Outbox interface {
	EnqueuePending(ctx context.Context, p *model.PendingPosting) error
	UpdatePending(ctx context.Context, p *model.PendingPosting) error
	GetPending(ctx context.Context, id string) (*model.PendingPosting, error)
	ListPending(ctx context.Context, f model.PendingFilter) ([]model.PendingPosting, error)
}

// Dispatcher posts events on behalf of business operations that must not
// fail because the ledger did. A failed posting is stored in the outbox for
// the Reconciler.
type Dispatcher struct {
	poster *Poster
	outbox Outbox
	logger *slog.Logger
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(poster *Poster, outbox Outbox, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{poster: poster, outbox: outbox, logger: logger, now: time.Now}
}

// Dispatch posts ev. An invalid event is returned to the caller as a
// ValidationError and never queued. Any other posting failure queues the
// event and marks the result Queued; then only a failure to queue is
// returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Result, error) {
	res, postErr := d.poster.Post(ctx, ev)
	if postErr == nil {
		return res, nil
	}
	if errs.IsValidation(postErr) {
		return res, postErr
	}

	payload, err := Encode(ev)
	if err != nil {
		return res, err
	}
	now := d.now().UTC()
	p := &model.PendingPosting{
		ID:            id.New(id.PrefixPending),
		Kind:          ev.Reference(),
		SourceID:      ev.SourceID(),
		Payload:       payload,
		Status:        model.PendingStatusPending,
		Attempts:      1,
		LastError:     postErr.Error(),
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := d.outbox.EnqueuePending(ctx, p); err != nil {
		return res, fmt.Errorf("queueing %s after failed posting (%v): %w", Key(ev), postErr, err)
	}

	d.logger.Warn("posting failed, queued for reconciliation",
		"posting_key", Key(ev),
		"pending_id", p.ID,
		"error", postErr,
	)
	res.Key = Key(ev)
	res.Queued = true
	return res, nil
}
