package journal

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/accounts"
	"github.com/cleared-dev/tillbook/internal/auditlog"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/ledger"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/retry"
	"github.com/cleared-dev/tillbook/internal/sequence"
	"github.com/cleared-dev/tillbook/internal/store"
	"github.com/cleared-dev/tillbook/internal/store/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store     store.Store
	engine    *Engine
	ledger    *ledger.Ledger
	auditPath string
	rent      string
	cash      string
}

func setup(t *testing.T, opts ...Option) fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	reg := accounts.NewRegistry(s)
	_, err := reg.Initialize(ctx)
	require.NoError(t, err)
	rent, err := reg.GetAccountByCode(ctx, "6000")
	require.NoError(t, err)
	cash, err := reg.GetAccountByCode(ctx, "1000")
	require.NoError(t, err)

	auditPath := filepath.Join(t.TempDir(), "audit.csv")
	l := ledger.New(s, ledger.WithRetry(retry.NoRetry))
	opts = append([]Option{WithAudit(auditlog.NewFileRecorder(auditPath, "test"))}, opts...)
	e := NewEngine(s, l, sequence.New(s, retry.NoRetry, nil), opts...)
	return fixture{store: s, engine: e, ledger: l, auditPath: auditPath, rent: rent.ID, cash: cash.ID}
}

func rentEntry(f fixture, debit, credit string) CreateParams {
	return CreateParams{
		Date:        date(2026, 3, 1),
		Reference:   "INV-77",
		Description: "March rent",
		Items: []ItemParams{
			{AccountID: f.rent, Debit: dec(debit)},
			{AccountID: f.cash, Credit: dec(credit)},
		},
	}
}

func TestCreateBalancedEntry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	je, err := f.engine.Create(ctx, rentEntry(f, "50", "50"))
	require.NoError(t, err)
	assert.Equal(t, "JE-00001", je.Number)
	assert.True(t, dec("50").Equal(je.TotalDebit))
	require.Len(t, je.Items, 2)

	got, err := f.engine.Get(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, je.Number, got.Number)
	assert.Len(t, got.Items, 2)

	lines, err := f.ledger.QueryLines(ctx, model.LineFilter{Reference: model.RefJournalEntry, ReferenceID: je.ID})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.NotEmpty(t, l.ReferenceSubID)
		assert.Equal(t, "March rent", l.Description)
	}

	bal, err := f.ledger.AccountBalance(ctx, f.rent, nil)
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(bal))
}

func TestCreateUnbalancedEntryWritesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.engine.Create(ctx, rentEntry(f, "50", "40"))
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Contains(t, err.Error(), "unbalanced entry")

	lines, err := f.ledger.QueryLines(ctx, model.LineFilter{})
	require.NoError(t, err)
	assert.Empty(t, lines)
	entries, err := f.engine.List(ctx, model.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	// No number was consumed by the rejected entry.
	je, err := f.engine.Create(ctx, rentEntry(f, "50", "50"))
	require.NoError(t, err)
	assert.Equal(t, "JE-00001", je.Number)
}

func TestCreateOffByOneCentIsRejectedBeforeNumbering(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.engine.Create(ctx, rentEntry(f, "50.00", "49.99"))
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Contains(t, err.Error(), "unbalanced entry")
	assert.Contains(t, err.Error(), "debits (50.00) != credits (49.99)")

	je, err := f.engine.Create(ctx, rentEntry(f, "50.00", "50.00"))
	require.NoError(t, err)
	assert.Equal(t, "JE-00001", je.Number)
}

func TestCreateRejectsBadItems(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params CreateParams
		want   string
	}{
		{"no items", CreateParams{Date: date(2026, 3, 1)}, "no items"},
		{"no date", CreateParams{Items: rentEntry(f, "1", "1").Items}, "date is required"},
		{"two-sided item", CreateParams{Date: date(2026, 3, 1), Items: []ItemParams{
			{AccountID: f.rent, Debit: dec("5"), Credit: dec("5")},
		}}, "exactly one of debit or credit"},
		{"negative item", CreateParams{Date: date(2026, 3, 1), Items: []ItemParams{
			{AccountID: f.rent, Debit: dec("-5")},
			{AccountID: f.cash, Credit: dec("-5")},
		}}, "exactly one of debit or credit"},
		{"missing account", CreateParams{Date: date(2026, 3, 1), Items: []ItemParams{
			{Debit: dec("5")},
			{AccountID: f.cash, Credit: dec("5")},
		}}, "account is required"},
		{"sub-cent amount", CreateParams{Date: date(2026, 3, 1), Items: []ItemParams{
			{AccountID: f.rent, Debit: dec("5.005")},
			{AccountID: f.cash, Credit: dec("5.005")},
		}}, "more than two decimal places"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Create(ctx, tt.params)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCreateUnknownAccount(t *testing.T) {
	f := setup(t)
	p := rentEntry(f, "10", "10")
	p.Items[0].AccountID = "acct_missing"
	_, err := f.engine.Create(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestConcurrentNumberingIsUniqueAndGapFree(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	const n = 25

	var mu sync.Mutex
	var numbers []string
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			je, err := f.engine.Create(ctx, rentEntry(f, "1", "1"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers = append(numbers, je.Number)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, numbers, n)
	sort.Strings(numbers)
	for i, num := range numbers {
		assert.Equal(t, "JE-"+pad(i+1), num)
	}

	entries, err := f.engine.List(ctx, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, entries, n)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Number, entries[i].Number)
	}
}

func pad(n int) string {
	s := decimal.NewFromInt(int64(n)).String()
	for len(s) < 5 {
		s = "0" + s
	}
	return s
}

func TestListByDateRange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, d := range []time.Time{date(2026, 1, 31), date(2026, 2, 1), date(2026, 2, 28), date(2026, 3, 1)} {
		p := rentEntry(f, "5", "5")
		p.Date = d
		_, err := f.engine.Create(ctx, p)
		require.NoError(t, err)
	}

	entries, err := f.engine.List(ctx, model.DateRange{From: date(2026, 2, 1), To: date(2026, 2, 28)})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "JE-00002", entries[0].Number)
	assert.Equal(t, "JE-00003", entries[1].Number)
}

func TestDeleteRemovesLinesAndAudits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	je, err := f.engine.Create(ctx, rentEntry(f, "50", "50"))
	require.NoError(t, err)

	require.NoError(t, f.engine.Delete(ctx, je.ID))

	_, err = f.engine.Get(ctx, je.ID)
	assert.True(t, errs.IsNotFound(err))
	lines, err := f.ledger.QueryLines(ctx, model.LineFilter{})
	require.NoError(t, err)
	assert.Empty(t, lines)

	entries, err := auditlog.Read(f.auditPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, auditlog.ActionJournalDeleted, entries[0].Action)
	assert.Equal(t, "JE-00001", entries[0].Subject)
	assert.Contains(t, entries[0].Details, "March rent")
	assert.Equal(t, "test", entries[0].Actor)

	assert.True(t, errs.IsNotFound(f.engine.Delete(ctx, je.ID)))
}

func TestReverse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	je, err := f.engine.Create(ctx, rentEntry(f, "50", "50"))
	require.NoError(t, err)

	rev, err := f.engine.Reverse(ctx, je.ID, date(2026, 3, 5), "")
	require.NoError(t, err)
	assert.Equal(t, "JE-00002", rev.Number)
	assert.Equal(t, "JE-00001", rev.Reference)
	assert.Equal(t, "Reversal of JE-00001", rev.Description)

	bal, err := f.ledger.AccountBalance(ctx, f.rent, nil)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	// The original is kept.
	_, err = f.engine.Get(ctx, je.ID)
	assert.NoError(t, err)

	entries, err := auditlog.Read(f.auditPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, auditlog.ActionJournalReversed, entries[0].Action)
}

func TestResolveByNumberOrID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	je, err := f.engine.Create(ctx, rentEntry(f, "50", "50"))
	require.NoError(t, err)

	byID, err := f.engine.Resolve(ctx, je.ID)
	require.NoError(t, err)
	byNumber, err := f.engine.Resolve(ctx, "JE-00001")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byNumber.ID)

	_, err = f.engine.Resolve(ctx, "JE-00099")
	assert.True(t, errs.IsNotFound(err))
}
