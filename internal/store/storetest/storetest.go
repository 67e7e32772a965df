// Package storetest holds the conformance suite every store backend runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/id"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/store"
)

// Factory returns a fresh, migrated, empty store.
type Factory func(t *testing.T) store.Store

// Fixture is the small chart every suite test starts from.
type Fixture struct {
	AssetType  model.AccountType
	IncomeType model.AccountType
	Current    model.AccountSubType
	Cash       model.Account
	Revenue    model.Account
}

// Seed writes a two-account chart.
func Seed(t *testing.T, s store.Store) Fixture {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)

	f := Fixture{
		AssetType:  model.AccountType{ID: id.New(id.PrefixAccountType), Name: model.AccountTypeAsset},
		IncomeType: model.AccountType{ID: id.New(id.PrefixAccountType), Name: model.AccountTypeIncome},
	}
	f.Current = model.AccountSubType{ID: id.New(id.PrefixAccountSubType), Name: "Current Assets", TypeID: f.AssetType.ID}
	f.Cash = model.Account{
		ID: id.New(id.PrefixAccount), Code: "1000", Name: "Cash", TypeID: f.AssetType.ID,
		SubTypeID: f.Current.ID, Enabled: true, CreatedAt: now, UpdatedAt: now,
	}
	f.Revenue = model.Account{
		ID: id.New(id.PrefixAccount), Code: "4000", Name: "Sales Revenue", TypeID: f.IncomeType.ID,
		Enabled: true, CreatedAt: now, UpdatedAt: now,
	}

	err := s.SeedChart(context.Background(),
		[]model.AccountType{f.AssetType, f.IncomeType},
		[]model.AccountSubType{f.Current},
		[]model.Account{f.Cash, f.Revenue})
	require.NoError(t, err)
	return f
}

// Line builds a one-sided line for tests.
func Line(accountID string, ref model.Reference, refID string, date time.Time, debit, credit string) model.TransactionLine {
	return model.TransactionLine{
		ID:          id.New(id.PrefixLine),
		AccountID:   accountID,
		Reference:   ref,
		ReferenceID: refID,
		Date:        date,
		Debit:       decimal.RequireFromString(debit),
		Credit:      decimal.RequireFromString(credit),
		CreatedAt:   time.Now().UTC(),
	}
}

// Sale returns a balanced two-line group for an order.
func Sale(f Fixture, orderID string, date time.Time, amount string) model.PostingGroup {
	return model.PostingGroup{
		Key: model.PostingKey(model.RefOrder, orderID),
		Lines: []model.TransactionLine{
			Line(f.Cash.ID, model.RefOrder, orderID, date, amount, "0"),
			Line(f.Revenue.ID, model.RefOrder, orderID, date, "0", amount),
		},
	}
}

// RunSuite runs the conformance suite against stores built by newStore.
func RunSuite(t *testing.T, newStore Factory) {
	t.Run("SeedAndListChart", func(t *testing.T) { testSeedAndListChart(t, newStore(t)) })
	t.Run("SeedChartOnce", func(t *testing.T) { testSeedChartOnce(t, newStore(t)) })
	t.Run("AccountCodeUnique", func(t *testing.T) { testAccountCodeUnique(t, newStore(t)) })
	t.Run("AccountUpdate", func(t *testing.T) { testAccountUpdate(t, newStore(t)) })
	t.Run("DeleteAccountGuards", func(t *testing.T) { testDeleteAccountGuards(t, newStore(t)) })
	t.Run("SubTypes", func(t *testing.T) { testSubTypes(t, newStore(t)) })
	t.Run("InsertGroupAssignsSeq", func(t *testing.T) { testInsertGroupAssignsSeq(t, newStore(t)) })
	t.Run("InsertGroupDuplicateKey", func(t *testing.T) { testInsertGroupDuplicateKey(t, newStore(t)) })
	t.Run("InsertGroupUnknownAccount", func(t *testing.T) { testInsertGroupUnknownAccount(t, newStore(t)) })
	t.Run("InsertGroupDisabledAccount", func(t *testing.T) { testInsertGroupDisabledAccount(t, newStore(t)) })
	t.Run("QueryLinesFilterAndOrder", func(t *testing.T) { testQueryLines(t, newStore(t)) })
	t.Run("JournalEntryLifecycle", func(t *testing.T) { testJournalEntryLifecycle(t, newStore(t)) })
	t.Run("NextSequence", func(t *testing.T) { testNextSequence(t, newStore(t)) })
	t.Run("NextSequenceConcurrent", func(t *testing.T) { testNextSequenceConcurrent(t, newStore(t)) })
	t.Run("PendingOutbox", func(t *testing.T) { testPendingOutbox(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testSeedAndListChart(t *testing.T, s store.Store) {
	ctx := context.Background()

	n, err := s.CountAccountTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f := Seed(t, s)

	n, err = s.CountAccountTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	types, err := s.ListAccountTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 2)

	at, err := s.GetAccountType(ctx, f.AssetType.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountTypeAsset, at.Name)

	accounts, err := s.ListAccounts(ctx, model.AccountFilter{})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "1000", accounts[0].Code)
	assert.Equal(t, "4000", accounts[1].Code)

	byType, err := s.ListAccounts(ctx, model.AccountFilter{TypeID: f.IncomeType.ID})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, f.Revenue.ID, byType[0].ID)

	got, err := s.GetAccountByCode(ctx, "1000")
	require.NoError(t, err)
	assert.Equal(t, f.Cash.ID, got.ID)
	assert.Equal(t, f.Current.ID, got.SubTypeID)
	assert.True(t, got.Enabled)
}

func testSeedChartOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s)

	extra := model.Account{
		ID: id.New(id.PrefixAccount), Code: "1100", Name: "Float",
		TypeID: id.New(id.PrefixAccountType), Enabled: true,
	}
	err := s.SeedChart(ctx,
		[]model.AccountType{{ID: extra.TypeID, Name: model.AccountTypeExpense}},
		nil,
		[]model.Account{extra})
	assert.True(t, errors.Is(err, store.ErrChartSeeded), "got %v", err)

	n, err := s.CountAccountTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.GetAccountByCode(ctx, "1100")
	assert.True(t, errs.IsNotFound(err), "second seed wrote nothing: %v", err)
}

func testAccountCodeUnique(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	dup := model.Account{
		ID: id.New(id.PrefixAccount), Code: "1000", Name: "Petty Cash",
		TypeID: f.AssetType.ID, Enabled: true, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	err := s.CreateAccount(ctx, &dup)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err), "got %v", err)

	_, err = s.GetAccount(ctx, dup.ID)
	assert.True(t, errs.IsNotFound(err))
}

func testAccountUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	cash := f.Cash
	cash.Name = "Cash on Hand"
	cash.Enabled = false
	cash.UpdatedAt = time.Now().UTC()
	require.NoError(t, s.UpdateAccount(ctx, &cash))

	got, err := s.GetAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cash on Hand", got.Name)
	assert.False(t, got.Enabled)

	enabled := true
	list, err := s.ListAccounts(ctx, model.AccountFilter{Enabled: &enabled})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.Revenue.ID, list[0].ID)

	clash := f.Revenue
	clash.Code = "1000"
	err = s.UpdateAccount(ctx, &clash)
	assert.True(t, errs.IsValidation(err), "got %v", err)
}

func testDeleteAccountGuards(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s)
	now := time.Now().UTC()

	child := model.Account{
		ID: id.New(id.PrefixAccount), Code: "1010", Name: "Till 1",
		TypeID: f.AssetType.ID, ParentID: f.Cash.ID, Enabled: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAccount(ctx, &child))

	err := s.DeleteAccount(ctx, f.Cash.ID)
	assert.True(t, errs.IsConflict(err), "parent with child: %v", err)

	require.NoError(t, s.DeleteAccount(ctx, child.ID))

	require.NoError(t, s.InsertGroup(ctx, Sale(f, "ord_1", day(2025, 1, 5), "10.00")))
	err = s.DeleteAccount(ctx, f.Cash.ID)
	assert.True(t, errs.IsConflict(err), "account with lines: %v", err)

	unused := model.Account{
		ID: id.New(id.PrefixAccount), Code: "1900", Name: "Unused",
		TypeID: f.AssetType.ID, Enabled: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAccount(ctx, &unused))
	require.NoError(t, s.DeleteAccount(ctx, unused.ID))

	err = s.DeleteAccount(ctx, unused.ID)
	assert.True(t, errs.IsNotFound(err))
}

func testSubTypes(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	fixed := model.AccountSubType{ID: id.New(id.PrefixAccountSubType), Name: "Fixed Assets", TypeID: f.AssetType.ID}
	require.NoError(t, s.CreateAccountSubType(ctx, &fixed))

	list, err := s.ListAccountSubTypes(ctx, f.AssetType.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = s.ListAccountSubTypes(ctx, f.IncomeType.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := s.GetAccountSubType(ctx, fixed.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fixed Assets", got.Name)

	err = s.DeleteAccountSubType(ctx, f.Current.ID)
	assert.True(t, errs.IsConflict(err), "sub-type in use: %v", err)

	require.NoError(t, s.DeleteAccountSubType(ctx, fixed.ID))
	_, err = s.GetAccountSubType(ctx, fixed.ID)
	assert.True(t, errs.IsNotFound(err))
}

func testInsertGroupAssignsSeq(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s)
	d := day(2025, 2, 1)

	require.NoError(t, s.InsertGroup(ctx, Sale(f, "ord_1", d, "19.99")))
	require.NoError(t, s.InsertGroup(ctx, Sale(f, "ord_2", d, "0.01")))

	lines, err := s.QueryLines(ctx, model.LineFilter{})
	require.NoError(t, err)
	require.Len(t, lines, 4)

	for i := 1; i < len(lines); i++ {
		assert.Less(t, lines[i-1].Seq, lines[i].Seq, "same-day lines follow insertion order")
	}
	assert.Equal(t, "ord_1", lines[0].ReferenceID)
	assert.Equal(t, model.PostingKey(model.RefOrder, "ord_1"), lines[0].PostingKey)
	assert.True(t, decimal.RequireFromString("19.99").Equal(lines[0].Debit), "got %s", lines[0].Debit)
	assert.True(t, decimal.RequireFromString("0.01").Equal(lines[3].Credit), "got %s", lines[3].Credit)
	assert.True(t, d.Equal(lines[0].Date), "got %s", lines[0].Date)
}

func testInsertGroupDuplicateKey(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s)
	d := day(2025, 2, 1)

	require.NoError(t, s.InsertGroup(ctx, Sale(f, "ord_1", d, "10.00")))
	err := s.InsertGroup(ctx, Sale(f, "ord_1", d, "10.00"))
	assert.True(t, errors.Is(err, store.ErrDuplicatePosting), "got %v", err)

	lines, err := s.QueryLines(ctx, model.LineFilter{ReferenceID: "ord_1"})
	require.NoError(t, err)
	assert.Len(t, lines, 2, "second post wrote nothing")
}

func testInsertGroupUnknownAccount(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s)
	d := day(2025, 2, 1)

	g := model.PostingGroup{
		Key: model.PostingKey(model.RefOrder, "ord_bad"),
		Lines: []model.TransactionLine{
			Line(f.Cash.ID, model.RefOrder, "ord_bad", d, "5.00", "0"),
			Line(id.New(id.PrefixAccount), model.RefOrder, "ord_bad", d, "0", "5.00"),
		},
	}
	err := s.InsertGroup(ctx, g)
	require.Error(t, err)

	lines, err := s.QueryLines(ctx, model.LineFilter{})
	require.NoError(t, err)
	assert.Empty(t, lines, "failed group leaves no partial lines")

	// the key was not consumed
	require.NoError(t, s.InsertGroup(ctx, Sale(f, "ord_bad", d, "5.00")))
}

func testInsertGroupDisabledAccount(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s)
	d := day(2025, 2, 1)

	revenue := f.Revenue
	revenue.Enabled = false
	revenue.UpdatedAt = time.Now().UTC()
	require.NoError(t, s.UpdateAccount(ctx, &revenue))

	err := s.InsertGroup(ctx, Sale(f, "ord_off", d, "5.00"))
	assert.True(t, errs.IsValidation(err), "got %v", err)

	lines, err := s.QueryLines(ctx, model.LineFilter{})
	require.NoError(t, err)
	assert.Empty(t, lines)

	revenue.Enabled = true
	require.NoError(t, s.UpdateAccount(ctx, &revenue))
	require.NoError(t, s.InsertGroup(ctx, Sale(f, "ord_off", d, "5.00")), "rejected group did not consume the key")
}

func testQueryLines(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	require.NoError(t, s.InsertGroup(ctx, Sale(f, "ord_1", day(2025, 1, 1), "1.00")))
	require.NoError(t, s.InsertGroup(ctx, Sale(f, "ord_2", day(2025, 1, 15), "2.00")))
	require.NoError(t, s.InsertGroup(ctx, Sale(f, "ord_3", day(2025, 1, 31), "3.00")))

	lines, err := s.QueryLines(ctx, model.LineFilter{AccountID: f.Cash.ID})
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "ord_3", lines[0].ReferenceID, "newest first")
	assert.Equal(t, "ord_1", lines[2].ReferenceID)

	lines, err = s.QueryLines(ctx, model.LineFilter{
		AccountID: f.Cash.ID,
		From:      day(2025, 1, 15),
		Before:    day(2025, 1, 31),
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "ord_2", lines[0].ReferenceID)

	lines, err = s.QueryLines(ctx, model.LineFilter{Reference: model.RefOrder, ReferenceID: "ord_2"})
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	lines, err = s.QueryLines(ctx, model.LineFilter{Reference: model.RefReturn})
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func testJournalEntryLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := Seed(t, s)
	d := day(2025, 3, 10)

	entryID := id.New(id.PrefixJournalEntry)
	amount := decimal.RequireFromString("250.00")
	je := &model.JournalEntry{
		ID: entryID, Number: "JE-00001", Date: d, Reference: "memo-7", Description: "Owner top-up",
		TotalDebit: amount, TotalCredit: amount, CreatedAt: time.Now().UTC(),
		Items: []model.JournalItem{
			{ID: id.New(id.PrefixJournalItem), EntryID: entryID, AccountID: f.Cash.ID, Debit: amount, Credit: decimal.Zero},
			{ID: id.New(id.PrefixJournalItem), EntryID: entryID, AccountID: f.Revenue.ID, Debit: decimal.Zero, Credit: amount},
		},
	}
	g := model.PostingGroup{
		Key:     model.PostingKey(model.RefJournalEntry, entryID),
		Journal: je,
		Lines: []model.TransactionLine{
			Line(f.Cash.ID, model.RefJournalEntry, entryID, d, "250.00", "0"),
			Line(f.Revenue.ID, model.RefJournalEntry, entryID, d, "0", "250.00"),
		},
	}
	require.NoError(t, s.InsertGroup(ctx, g))
	require.NoError(t, s.InsertGroup(ctx, Sale(f, "ord_1", d, "4.00")))

	got, err := s.GetJournalEntry(ctx, entryID)
	require.NoError(t, err)
	assert.Equal(t, "JE-00001", got.Number)
	assert.Equal(t, "memo-7", got.Reference)
	assert.True(t, amount.Equal(got.TotalDebit))
	require.Len(t, got.Items, 2)
	assert.True(t, amount.Equal(got.Items[0].Debit))

	list, err := s.ListJournalEntries(ctx, model.DateRange{From: d, To: d})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = s.ListJournalEntries(ctx, model.DateRange{From: day(2025, 4, 1)})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.DeleteJournalEntry(ctx, entryID))

	_, err = s.GetJournalEntry(ctx, entryID)
	assert.True(t, errs.IsNotFound(err))

	lines, err := s.QueryLines(ctx, model.LineFilter{})
	require.NoError(t, err)
	require.Len(t, lines, 2, "only the sale's lines survive")
	assert.Equal(t, "ord_1", lines[0].ReferenceID)

	err = s.DeleteJournalEntry(ctx, entryID)
	assert.True(t, errs.IsNotFound(err))
}

func testNextSequence(t *testing.T, s store.Store) {
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.NextSequence(ctx, "journal_entry")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := s.NextSequence(ctx, "purchase_order")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "sequences are independent")
}

func testNextSequenceConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	const workers = 8
	const each = 5

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				n, err := s.NextSequence(ctx, "journal_entry")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				assert.False(t, seen[n], "duplicate sequence %d", n)
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*each)
	for n := int64(1); n <= workers*each; n++ {
		assert.True(t, seen[n], "missing %d", n)
	}
}

func testPendingOutbox(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	due := &model.PendingPosting{
		ID: id.New(id.PrefixPending), Kind: model.RefOrder, SourceID: "ord_1",
		Payload: []byte(`{"id":"ord_1"}`), Status: model.PendingStatusPending,
		NextAttemptAt: now.Add(-time.Minute), CreatedAt: now, UpdatedAt: now,
	}
	later := &model.PendingPosting{
		ID: id.New(id.PrefixPending), Kind: model.RefReturn, SourceID: "ret_1",
		Payload: []byte(`{"id":"ret_1"}`), Status: model.PendingStatusPending,
		NextAttemptAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.EnqueuePending(ctx, due))
	require.NoError(t, s.EnqueuePending(ctx, later))

	list, err := s.ListPending(ctx, model.PendingFilter{Status: model.PendingStatusPending, DueBefore: now})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)
	assert.Equal(t, `{"id":"ord_1"}`, string(list[0].Payload))

	list, err = s.ListPending(ctx, model.PendingFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, due.ID, list[0].ID, "ordered by next attempt")

	list, err = s.ListPending(ctx, model.PendingFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	due.Status = model.PendingStatusPosted
	due.Attempts = 2
	due.LastError = "store: transient: busy"
	require.NoError(t, s.UpdatePending(ctx, due))

	got, err := s.GetPending(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PendingStatusPosted, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, model.RefOrder, got.Kind)
	assert.Equal(t, "ord_1", got.SourceID)

	list, err = s.ListPending(ctx, model.PendingFilter{Status: model.PendingStatusPending})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, later.ID, list[0].ID)
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	missing := "missing"

	_, err := s.GetAccount(ctx, missing)
	assert.True(t, errs.IsNotFound(err))
	_, err = s.GetAccountByCode(ctx, "9999")
	assert.True(t, errs.IsNotFound(err))
	_, err = s.GetAccountType(ctx, missing)
	assert.True(t, errs.IsNotFound(err))
	_, err = s.GetJournalEntry(ctx, missing)
	assert.True(t, errs.IsNotFound(err))
	_, err = s.GetPending(ctx, missing)
	assert.True(t, errs.IsNotFound(err))

	p := &model.PendingPosting{ID: missing}
	assert.True(t, errs.IsNotFound(s.UpdatePending(ctx, p)))

	a := &model.Account{ID: missing, Code: "9999"}
	assert.True(t, errs.IsNotFound(s.UpdateAccount(ctx, a)))
}
