// Package store defines the persistence contract for the ledger. Backends
// live in subpackages (memory, sqlite, bolt, mongo, postgres) and are chosen
// at startup by store/backend.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cleared-dev/tillbook/internal/model"
)

// ErrDuplicatePosting is returned by InsertGroup when a group with the same
// posting key has already been written. Nothing is written.
var ErrDuplicatePosting = errors.New("store: duplicate posting key")

// ErrChartSeeded is returned by SeedChart when account types already exist.
// Nothing is written.
var ErrChartSeeded = errors.New("store: chart already seeded")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Store is the unified storage interface for all ledger records.
//
// Backends return errs.NotFoundError for unknown ids, errs.ValidationError
// for account code collisions, and errs.ConflictError when a delete is
// refused because other records still reference the target.
type Store interface {
	// Chart of accounts
	CountAccountTypes(ctx context.Context) (int, error)
	// SeedChart writes types, sub-types and accounts in one transaction. It
	// returns ErrChartSeeded, checked inside that transaction, when any
	// account type already exists.
	SeedChart(ctx context.Context, types []model.AccountType, subTypes []model.AccountSubType, accounts []model.Account) error
	ListAccountTypes(ctx context.Context) ([]model.AccountType, error)
	GetAccountType(ctx context.Context, id string) (*model.AccountType, error)
	CreateAccountSubType(ctx context.Context, st *model.AccountSubType) error
	GetAccountSubType(ctx context.Context, id string) (*model.AccountSubType, error)
	ListAccountSubTypes(ctx context.Context, typeID string) ([]model.AccountSubType, error)
	// DeleteAccountSubType refuses while any account references the sub-type.
	DeleteAccountSubType(ctx context.Context, id string) error
	CreateAccount(ctx context.Context, a *model.Account) error
	UpdateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByCode(ctx context.Context, code string) (*model.Account, error)
	ListAccounts(ctx context.Context, f model.AccountFilter) ([]model.Account, error)
	// DeleteAccount refuses while any line or child account references it.
	DeleteAccount(ctx context.Context, id string) error

	// Ledger
	// InsertGroup writes the group's lines, and its journal header and items
	// when present, as one atomic unit. Lines receive Seq in slice order.
	InsertGroup(ctx context.Context, g model.PostingGroup) error
	// QueryLines orders by date descending, then Seq ascending.
	QueryLines(ctx context.Context, f model.LineFilter) ([]model.TransactionLine, error)

	// Journal entries
	NextSequence(ctx context.Context, name string) (int64, error)
	GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error)
	// ListJournalEntries orders by number ascending.
	ListJournalEntries(ctx context.Context, r model.DateRange) ([]model.JournalEntry, error)
	// DeleteJournalEntry removes the header, items and the lines it produced
	// in one transaction.
	DeleteJournalEntry(ctx context.Context, id string) error

	// Outbox
	EnqueuePending(ctx context.Context, p *model.PendingPosting) error
	UpdatePending(ctx context.Context, p *model.PendingPosting) error
	GetPending(ctx context.Context, id string) (*model.PendingPosting, error)
	// ListPending orders by NextAttemptAt ascending.
	ListPending(ctx context.Context, f model.PendingFilter) ([]model.PendingPosting, error)

	// Core
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// TransientError marks a persistence failure that may succeed on retry
// (lock contention, dropped connection, aborted transaction).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("store: transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
