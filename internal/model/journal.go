package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is a manually authored balanced transaction.
type JournalEntry struct {
	ID          string
	Number      string // "JE-00001"
	Date        time.Time
	Reference   string
	Description string
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Items       []JournalItem
	CreatedAt   time.Time
}

// JournalItem is one line of a JournalEntry.
type JournalItem struct {
	ID          string
	EntryID     string
	AccountID   string
	Description string
	Debit       decimal.Decimal // zero if credit side
	Credit      decimal.Decimal // zero if debit side
}

// OneSided reports whether exactly one of debit/credit is strictly positive
// and neither is negative.
func (i JournalItem) OneSided() bool {
	return oneSided(i.Debit, i.Credit)
}

func oneSided(debit, credit decimal.Decimal) bool {
	if debit.IsNegative() || credit.IsNegative() {
		return false
	}
	return debit.IsPositive() != credit.IsPositive()
}
