// Package journal creates, lists and removes manual journal entries. Every
// entry is posted through the ledger together with its header, so the entry
// and its transaction lines appear or disappear as one unit.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tillbook/internal/auditlog"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/id"
	"github.com/cleared-dev/tillbook/internal/ledger"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/sequence"
	"github.com/cleared-dev/tillbook/internal/store"
)

// Engine manages journal entries.
type Engine struct {
	store   store.Store
	ledger  *ledger.Ledger
	numbers *sequence.Allocator
	audit   auditlog.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithAudit sets the recorder for deletions and reversals.
func WithAudit(r auditlog.Recorder) Option {
	return func(e *Engine) { e.audit = r }
}

// WithClock overrides the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine.
func NewEngine(s store.Store, l *ledger.Ledger, numbers *sequence.Allocator, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		ledger:  l,
		numbers: numbers,
		audit:   auditlog.Discard,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ItemParams is one item of a new entry.
type ItemParams struct {
	AccountID   string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// CreateParams describes a new journal entry.
type CreateParams struct {
	Date        time.Time
	Reference   string
	Description string
	Items       []ItemParams
}

// Create validates p, allocates the next JE number and posts the entry.
// Amounts carry at most two decimals, so the entry must balance exactly;
// any difference is rejected before a number is taken.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*model.JournalEntry, error) {
	var problems []string
	if p.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if len(p.Items) == 0 {
		problems = append(problems, "entry has no items")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, it := range p.Items {
		if it.AccountID == "" {
			problems = append(problems, fmt.Sprintf("item %d: account is required", i+1))
		}
		if !oneSided(it.Debit, it.Credit) {
			problems = append(problems, fmt.Sprintf("item %d: must have exactly one of debit or credit greater than zero", i+1))
		}
		if !cents(it.Debit) || !cents(it.Credit) {
			problems = append(problems, fmt.Sprintf("item %d: amount has more than two decimal places", i+1))
		}
		totalDebit = totalDebit.Add(it.Debit)
		totalCredit = totalCredit.Add(it.Credit)
	}
	if len(problems) > 0 {
		return nil, errs.Invalid("invalid journal entry", problems)
	}
	if !totalDebit.Equal(totalCredit) {
		return nil, errs.Invalid("unbalanced entry", []string{
			fmt.Sprintf("debits (%s) != credits (%s)", totalDebit.StringFixed(2), totalCredit.StringFixed(2)),
		})
	}

	number, err := e.numbers.Next(ctx, id.SeriesJournalEntry)
	if err != nil {
		return nil, err
	}

	entry := &model.JournalEntry{
		ID:          id.New(id.PrefixJournalEntry),
		Number:      number,
		Date:        model.Day(p.Date),
		Reference:   strings.TrimSpace(p.Reference),
		Description: strings.TrimSpace(p.Description),
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		CreatedAt:   e.now().UTC(),
	}

	group := ledger.Group{
		Key:     model.PostingKey(model.RefJournalEntry, entry.ID),
		Journal: entry,
	}
	for _, it := range p.Items {
		item := model.JournalItem{
			ID:          id.New(id.PrefixJournalItem),
			EntryID:     entry.ID,
			AccountID:   it.AccountID,
			Description: it.Description,
			Debit:       it.Debit,
			Credit:      it.Credit,
		}
		entry.Items = append(entry.Items, item)

		desc := item.Description
		if desc == "" {
			desc = entry.Description
		}
		group.Lines = append(group.Lines, ledger.LineSpec{
			AccountID:      item.AccountID,
			Reference:      model.RefJournalEntry,
			ReferenceID:    entry.ID,
			ReferenceSubID: item.ID,
			Date:           entry.Date,
			Debit:          item.Debit,
			Credit:         item.Credit,
			Description:    desc,
		})
	}

	if _, err := e.ledger.PostGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("creating journal entry %s: %w", number, err)
	}

	e.logger.Info("journal entry created",
		"journal_id", entry.ID,
		"number", entry.Number,
		"amount", totalDebit.StringFixed(2),
	)
	return entry, nil
}

func cents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func oneSided(debit, credit decimal.Decimal) bool {
	return model.JournalItem{Debit: debit, Credit: credit}.OneSided()
}

// Get returns an entry with its items.
func (e *Engine) Get(ctx context.Context, entryID string) (*model.JournalEntry, error) {
	return e.store.GetJournalEntry(ctx, entryID)
}

// GetByNumber returns the entry numbered like "JE-00001".
func (e *Engine) GetByNumber(ctx context.Context, number string) (*model.JournalEntry, error) {
	entries, err := e.store.ListJournalEntries(ctx, model.DateRange{})
	if err != nil {
		return nil, fmt.Errorf("listing journal entries: %w", err)
	}
	for _, je := range entries {
		if je.Number == number {
			return e.store.GetJournalEntry(ctx, je.ID)
		}
	}
	return nil, errs.NotFound("journal entry", number)
}

// Resolve accepts either an entry id or a JE number.
func (e *Engine) Resolve(ctx context.Context, ref string) (*model.JournalEntry, error) {
	if id.HasPrefix(ref, id.PrefixJournalEntry) {
		return e.Get(ctx, ref)
	}
	return e.GetByNumber(ctx, ref)
}

// List returns entries dated within r, ordered by number.
func (e *Engine) List(ctx context.Context, r model.DateRange) ([]model.JournalEntry, error) {
	return e.store.ListJournalEntries(ctx, r)
}

// Delete removes an entry, its items and the lines it produced, and records
// the removed contents in the audit trail.
func (e *Engine) Delete(ctx context.Context, entryID string) error {
	entry, err := e.store.GetJournalEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if err := e.store.DeleteJournalEntry(ctx, entryID); err != nil {
		return fmt.Errorf("deleting journal entry %s: %w", entry.Number, err)
	}

	e.logger.Warn("journal entry deleted", "journal_id", entry.ID, "number", entry.Number)
	if err := e.audit.Record(ctx, auditlog.Entry{
		Action:  auditlog.ActionJournalDeleted,
		Subject: entry.Number,
		Details: auditlog.Details(entry),
	}); err != nil {
		return fmt.Errorf("journal entry %s deleted but not audited: %w", entry.Number, err)
	}
	return nil
}

// Reverse posts a new entry that swaps the debits and credits of an
// existing one. The original is kept.
func (e *Engine) Reverse(ctx context.Context, entryID string, date time.Time, description string) (*model.JournalEntry, error) {
	orig, err := e.store.GetJournalEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = e.now()
	}
	if description == "" {
		description = "Reversal of " + orig.Number
	}

	p := CreateParams{Date: date, Reference: orig.Number, Description: description}
	for _, it := range orig.Items {
		p.Items = append(p.Items, ItemParams{
			AccountID:   it.AccountID,
			Description: it.Description,
			Debit:       it.Credit,
			Credit:      it.Debit,
		})
	}

	rev, err := e.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("reversing %s: %w", orig.Number, err)
	}
	if err := e.audit.Record(ctx, auditlog.Entry{
		Action:  auditlog.ActionJournalReversed,
		Subject: orig.Number,
		Details: auditlog.Details(map[string]string{"reversal": rev.Number, "reversal_id": rev.ID}),
	}); err != nil {
		e.logger.Error("failed to audit reversal", "number", orig.Number, "error", err)
	}
	return rev, nil
}
