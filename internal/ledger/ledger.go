// Package ledger is the single write path for transaction lines. Every
// posting, whether from a manual journal entry or a domain event, goes
// through PostGroup, which validates the whole group and persists it as one
// atomic unit.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/id"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/retry"
	"github.com/cleared-dev/tillbook/internal/store"
)

// ErrDuplicatePosting is returned when a group with the same key was already
// posted. Nothing is written.
var ErrDuplicatePosting = store.ErrDuplicatePosting

// LineSpec is one line of a group before the store assigns its identity.
type LineSpec struct {
	AccountID      string
	Reference      model.Reference
	ReferenceID    string
	ReferenceSubID string
	Date           time.Time
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	Description    string
}

// Group is a balanced set of lines posted together. Journal carries the
// header and items of a manual entry and is written in the same
// transaction.
type Group struct {
	Key     string
	Lines   []LineSpec
	Journal *model.JournalEntry
}

// Debit is shorthand for a debit line.
func Debit(accountID string, amount decimal.Decimal) LineSpec {
	return LineSpec{AccountID: accountID, Debit: amount}
}

// Credit is shorthand for a credit line.
func Credit(accountID string, amount decimal.Decimal) LineSpec {
	return LineSpec{AccountID: accountID, Credit: amount}
}

// Ledger posts and reads transaction lines.
type Ledger struct {
	store  store.Store
	policy retry.Policy
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithRetry sets the retry policy for transient store errors.
func WithRetry(p retry.Policy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithClock overrides the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger over s.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{store: s, policy: retry.DefaultPolicy, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PostGroup validates g and writes it atomically. A ValidationError lists
// every violation and nothing is written. A repeated key returns
// ErrDuplicatePosting. Lines are dated by calendar day; the returned lines
// carry their ids but not their store-assigned Seq.
func (l *Ledger) PostGroup(ctx context.Context, g Group) ([]model.TransactionLine, error) {
	accounts, err := l.loadAccounts(ctx, g.Lines)
	if err != nil {
		return nil, err
	}
	if problems := Validate(g, accounts); len(problems) > 0 {
		return nil, errs.Invalid(fmt.Sprintf("invalid posting group %q", g.Key), problems)
	}

	now := l.now().UTC()
	lines := make([]model.TransactionLine, len(g.Lines))
	total := decimal.Zero
	for i, spec := range g.Lines {
		lines[i] = model.TransactionLine{
			ID:             id.New(id.PrefixLine),
			AccountID:      spec.AccountID,
			Reference:      spec.Reference,
			ReferenceID:    spec.ReferenceID,
			ReferenceSubID: spec.ReferenceSubID,
			Date:           model.Day(spec.Date),
			Debit:          spec.Debit,
			Credit:         spec.Credit,
			Description:    spec.Description,
			PostingKey:     g.Key,
			CreatedAt:      now,
		}
		total = total.Add(spec.Debit)
	}

	pg := model.PostingGroup{Key: g.Key, Lines: lines, Journal: g.Journal}
	err = retry.Do(ctx, l.policy, l.logger, func(ctx context.Context) error {
		return l.store.InsertGroup(ctx, pg)
	})
	if errors.Is(err, store.ErrDuplicatePosting) {
		l.logger.Debug("posting group already written", "posting_key", g.Key)
		return nil, fmt.Errorf("posting %s: %w", g.Key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("posting %s: %w", g.Key, err)
	}

	l.logger.Info("posted group",
		"posting_key", g.Key,
		"lines", len(lines),
		"amount", total.StringFixed(2),
	)
	return lines, nil
}

func (l *Ledger) loadAccounts(ctx context.Context, specs []LineSpec) (map[string]*model.Account, error) {
	accounts := make(map[string]*model.Account)
	for _, spec := range specs {
		if spec.AccountID == "" {
			continue
		}
		if _, seen := accounts[spec.AccountID]; seen {
			continue
		}
		a, err := l.store.GetAccount(ctx, spec.AccountID)
		if errs.IsNotFound(err) {
			accounts[spec.AccountID] = nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading account %s: %w", spec.AccountID, err)
		}
		accounts[spec.AccountID] = a
	}
	return accounts, nil
}

// QueryLines returns lines matching f, newest date first and in posting
// order within a day.
func (l *Ledger) QueryLines(ctx context.Context, f model.LineFilter) ([]model.TransactionLine, error) {
	lines, err := l.store.QueryLines(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}
	return lines, nil
}

// AccountBalance returns debits minus credits for an account over lines
// dated up to and including asOf's calendar day, or over all lines when asOf
// is nil.
func (l *Ledger) AccountBalance(ctx context.Context, accountID string, asOf *time.Time) (decimal.Decimal, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return decimal.Zero, err
	}
	f := model.LineFilter{AccountID: accountID}
	if asOf != nil {
		f.Before = model.NextDay(*asOf)
	}
	lines, err := l.QueryLines(ctx, f)
	if err != nil {
		return decimal.Zero, err
	}
	var t model.Totals
	for _, line := range lines {
		t = t.Add(line)
	}
	return t.Balance(), nil
}

// Totals sums every line in the ledger. Debit equals Credit in a healthy
// ledger.
func (l *Ledger) Totals(ctx context.Context) (model.Totals, error) {
	lines, err := l.QueryLines(ctx, model.LineFilter{})
	if err != nil {
		return model.Totals{}, err
	}
	t := model.Totals{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, line := range lines {
		t = t.Add(line)
	}
	return t, nil
}
