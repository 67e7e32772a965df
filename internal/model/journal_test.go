package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestJournalItemOneSided(t *testing.T) {
	tests := []struct {
		debit, credit string
		want          bool
	}{
		{"50.00", "0", true},
		{"0", "50.00", true},
		{"50.00", "50.00", false},
		{"0", "0", false},
		{"-5.00", "0", false},
		{"5.00", "-5.00", false},
	}
	for _, tt := range tests {
		item := JournalItem{
			Debit:  decimal.RequireFromString(tt.debit),
			Credit: decimal.RequireFromString(tt.credit),
		}
		assert.Equal(t, tt.want, item.OneSided(), "debit=%s credit=%s", tt.debit, tt.credit)
	}
}

func TestPostingKey(t *testing.T) {
	assert.Equal(t, "Order:ord_1", PostingKey(RefOrder, "ord_1"))
	assert.Equal(t, "Return:ret_9:replacement", PostingKey(RefReturn, "ret_9", "replacement"))
}

func TestReferenceValid(t *testing.T) {
	for _, r := range []Reference{RefOrder, RefPurchaseOrder, RefGoodsReceipt, RefJournalEntry, RefPayment, RefAdjustment, RefReturn, RefMarketPurchase} {
		assert.True(t, r.Valid(), "%s should be valid", r)
	}
	assert.False(t, Reference("Invoice").Valid())
	assert.False(t, Reference("").Valid())
}

func TestAccountTypeName(t *testing.T) {
	assert.Len(t, AccountTypeNames, 6)
	assert.True(t, AccountTypeCOGS.Valid())
	assert.False(t, AccountTypeName("Revenue").Valid())

	assert.True(t, AccountTypeAsset.DebitNormal())
	assert.True(t, AccountTypeExpense.DebitNormal())
	assert.False(t, AccountTypeIncome.DebitNormal())
	assert.False(t, AccountTypeLiability.DebitNormal())
}

func TestDateRangeBounds(t *testing.T) {
	r := DateRange{
		From: time.Date(2025, 1, 10, 15, 30, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 20, 8, 0, 0, 0, time.UTC),
	}
	from, before := r.LineBounds()
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC), before)

	assert.True(t, r.Contains(time.Date(2025, 1, 20, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2025, 1, 9, 23, 59, 0, 0, time.UTC)))

	open := DateRange{}
	assert.True(t, open.Contains(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLineFilterMatch(t *testing.T) {
	line := TransactionLine{
		AccountID:   "acct_a",
		Reference:   RefOrder,
		ReferenceID: "ord_1",
		Date:        time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, LineFilter{}.Match(line))
	assert.True(t, LineFilter{AccountID: "acct_a", Reference: RefOrder}.Match(line))
	assert.False(t, LineFilter{AccountID: "acct_b"}.Match(line))
	assert.False(t, LineFilter{ReferenceID: "ord_2"}.Match(line))
	assert.False(t, LineFilter{Before: line.Date}.Match(line))
	assert.True(t, LineFilter{From: line.Date}.Match(line))
}
