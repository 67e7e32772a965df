package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Reference tags the kind of domain event a TransactionLine came from.
type Reference string

const (
	RefOrder          Reference = "Order"
	RefPurchaseOrder  Reference = "PurchaseOrder"
	RefGoodsReceipt   Reference = "GoodsReceipt"
	RefJournalEntry   Reference = "JournalEntry"
	RefPayment        Reference = "Payment"
	RefAdjustment     Reference = "Adjustment"
	RefReturn         Reference = "Return"
	RefMarketPurchase Reference = "MarketPurchase"
)

// Valid reports whether r is a known reference tag.
func (r Reference) Valid() bool {
	switch r {
	case RefOrder, RefPurchaseOrder, RefGoodsReceipt, RefJournalEntry,
		RefPayment, RefAdjustment, RefReturn, RefMarketPurchase:
		return true
	}
	return false
}

// TransactionLine is an append-only ledger fact. Corrections are new,
// offsetting lines; a line is never updated.
type TransactionLine struct {
	ID             string
	Seq            int64 // insertion order, assigned by the store
	AccountID      string
	Reference      Reference
	ReferenceID    string
	ReferenceSubID string
	Date           time.Time
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	Description    string
	PostingKey     string
	CreatedAt      time.Time
}

// Signed returns debit minus credit.
func (l TransactionLine) Signed() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// OneSided reports whether exactly one of debit/credit is strictly positive.
func (l TransactionLine) OneSided() bool {
	return oneSided(l.Debit, l.Credit)
}

// PostingGroup is the atomic unit written to the ledger: every line, plus the
// journal header when the group comes from a manual entry.
type PostingGroup struct {
	Key     string
	Lines   []TransactionLine
	Journal *JournalEntry
}

// PostingKey returns the idempotency key for an event's posting group.
// "Order", "ord_1" -> "Order:ord_1"
func PostingKey(ref Reference, referenceID string, parts ...string) string {
	all := append([]string{string(ref), referenceID}, parts...)
	return strings.Join(all, ":")
}

// LineFilter narrows QueryLines. Zero values match everything.
type LineFilter struct {
	AccountID   string
	Reference   Reference
	ReferenceID string
	From        time.Time // inclusive
	Before      time.Time // exclusive
}

// Match reports whether l satisfies the filter.
func (f LineFilter) Match(l TransactionLine) bool {
	if f.AccountID != "" && l.AccountID != f.AccountID {
		return false
	}
	if f.Reference != "" && l.Reference != f.Reference {
		return false
	}
	if f.ReferenceID != "" && l.ReferenceID != f.ReferenceID {
		return false
	}
	if !f.From.IsZero() && l.Date.Before(f.From) {
		return false
	}
	if !f.Before.IsZero() && !l.Date.Before(f.Before) {
		return false
	}
	return true
}

// Totals holds debit and credit sums.
type Totals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Add accumulates a line into the totals.
func (t Totals) Add(l TransactionLine) Totals {
	return Totals{Debit: t.Debit.Add(l.Debit), Credit: t.Credit.Add(l.Credit)}
}

// Balance returns debit minus credit.
func (t Totals) Balance() decimal.Decimal {
	return t.Debit.Sub(t.Credit)
}
