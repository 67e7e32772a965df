package accounts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/id"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/store/memory"
)

func newRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()
	s := memory.New()
	r := NewRegistry(s)
	seeded, err := r.Initialize(context.Background())
	require.NoError(t, err)
	require.True(t, seeded)
	return r, s
}

func mustType(t *testing.T, r *Registry, name model.AccountTypeName) *model.AccountType {
	t.Helper()
	typ, err := r.TypeByName(context.Background(), string(name))
	require.NoError(t, err)
	return typ
}

func mustCode(t *testing.T, r *Registry, code string) *model.Account {
	t.Helper()
	a, err := r.GetAccountByCode(context.Background(), code)
	require.NoError(t, err)
	return a
}

func TestInitializeSeedsStarterChart(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	types, err := r.ListTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 6)
	for i, typ := range types {
		assert.Equal(t, model.AccountTypeNames[i], typ.Name)
	}

	accts, err := r.ListAccounts(ctx, model.AccountFilter{})
	require.NoError(t, err)
	require.Len(t, accts, 18)
	assert.Equal(t, "1000", accts[0].Code)
	assert.Equal(t, "6500", accts[17].Code)

	inv := mustCode(t, r, "5100")
	assert.Equal(t, mustType(t, r, model.AccountTypeCOGS).ID, inv.TypeID)
	assert.NotEmpty(t, inv.SubTypeID)
}

func TestInitializeIsIdempotent(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	seeded, err := r.Initialize(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	accts, err := r.ListAccounts(ctx, model.AccountFilter{})
	require.NoError(t, err)
	assert.Len(t, accts, 18)
}

// staleCount reports an empty chart, as a second process would see it just
// before the first one commits its seed.
type staleCount struct {
	*memory.Store
}

func (staleCount) CountAccountTypes(context.Context) (int, error) { return 0, nil }

func TestInitializeRacingSeederIsNoop(t *testing.T) {
	ctx := context.Background()
	s := staleCount{memory.New()}

	seeded, err := NewRegistry(s).Initialize(ctx)
	require.NoError(t, err)
	require.True(t, seeded)

	seeded, err = NewRegistry(s).Initialize(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	types, err := s.ListAccountTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 6)
	accts, err := s.ListAccounts(ctx, model.AccountFilter{})
	require.NoError(t, err)
	assert.Len(t, accts, 18)
}

func TestInitializeFromTestdata(t *testing.T) {
	f, err := os.Open("../../testdata/chart-of-accounts.csv")
	require.NoError(t, err)
	defer f.Close()
	rows, err := ReadAccounts(f)
	require.NoError(t, err)

	r := NewRegistry(memory.New())
	ctx := context.Background()
	seeded, err := r.InitializeFrom(ctx, nil, rows)
	require.NoError(t, err)
	require.True(t, seeded)

	float := mustCode(t, r, "1010")
	assert.Equal(t, mustCode(t, r, "1000").ID, float.ParentID)
	assert.False(t, mustCode(t, r, "6900").Enabled)

	subs, err := r.ListSubTypes(ctx, mustType(t, r, model.AccountTypeCOGS).ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Cost of Sales", subs[0].Name)
}

func TestInitializeFromRejectsBadChart(t *testing.T) {
	rows := []ChartRow{
		{Code: "1000", Name: "Cash", Type: model.AccountTypeAsset, Enabled: true},
		{Code: "1000", Name: "Cash again", Type: model.AccountTypeAsset, Enabled: true},
		{Code: "1010", Name: "Float", Type: model.AccountTypeAsset, ParentCode: "1999"},
		{Code: "4010", Name: "Sub revenue", Type: model.AccountTypeIncome, ParentCode: "1000"},
	}
	r := NewRegistry(memory.New())
	_, err := r.InitializeFrom(context.Background(), nil, rows)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Contains(t, err.Error(), "duplicate code")
	assert.Contains(t, err.Error(), "unknown parent 1999")
	assert.Contains(t, err.Error(), "different type")

	n, err := r.store.CountAccountTypes(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "nothing written")
}

func TestCreateAccount(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	expense := mustType(t, r, model.AccountTypeExpense)
	subs, err := r.ListSubTypes(ctx, expense.ID)
	require.NoError(t, err)
	require.NotEmpty(t, subs)

	a, err := r.CreateAccount(ctx, AccountSpec{
		Code: " 6600 ", Name: "Insurance", TypeID: expense.ID, SubTypeID: subs[0].ID,
	})
	require.NoError(t, err)
	assert.True(t, id.HasPrefix(a.ID, id.PrefixAccount))
	assert.Equal(t, "6600", a.Code)
	assert.True(t, a.Enabled)

	got, err := r.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Insurance", got.Name)
}

func TestCreateAccountValidation(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	asset := mustType(t, r, model.AccountTypeAsset)
	income := mustType(t, r, model.AccountTypeIncome)
	incomeSubs, err := r.ListSubTypes(ctx, income.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		spec AccountSpec
		want string
	}{
		{"empty code", AccountSpec{Name: "X", TypeID: asset.ID}, "code is required"},
		{"empty name", AccountSpec{Code: "1900", TypeID: asset.ID}, "name is required"},
		{"duplicate code", AccountSpec{Code: "1000", Name: "Cash 2", TypeID: asset.ID}, "already exists"},
		{"unknown type", AccountSpec{Code: "1900", Name: "X", TypeID: "atype_nope"}, "unknown account type"},
		{"unknown sub-type", AccountSpec{Code: "1900", Name: "X", TypeID: asset.ID, SubTypeID: "astype_nope"}, "unknown account sub-type"},
		{"sub-type of other type", AccountSpec{Code: "1900", Name: "X", TypeID: asset.ID, SubTypeID: incomeSubs[0].ID}, "different account type"},
		{"unknown parent", AccountSpec{Code: "1900", Name: "X", TypeID: asset.ID, ParentID: "acct_nope"}, "unknown parent"},
		{"parent of other type", AccountSpec{Code: "1900", Name: "X", TypeID: asset.ID, ParentID: mustCode(t, r, "4000").ID}, "different type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.CreateAccount(ctx, tt.spec)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUpdateAccount(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	cash := mustCode(t, r, "1000")

	name := "Cash on Hand"
	desc := "drawer"
	got, err := r.UpdateAccount(ctx, cash.ID, AccountPatch{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Cash on Hand", got.Name)
	assert.Equal(t, "1000", got.Code)
	assert.Equal(t, cash.SubTypeID, got.SubTypeID)

	dup := "1100"
	_, err = r.UpdateAccount(ctx, cash.ID, AccountPatch{Code: &dup})
	assert.True(t, errs.IsValidation(err))

	_, err = r.UpdateAccount(ctx, "acct_missing", AccountPatch{Name: &name})
	assert.True(t, errs.IsNotFound(err))
}

func TestUpdateAccountRejectsParentCycle(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	cash := mustCode(t, r, "1000")

	child, err := r.CreateAccount(ctx, AccountSpec{Code: "1010", Name: "Till", TypeID: cash.TypeID, ParentID: cash.ID})
	require.NoError(t, err)

	parent := child.ID
	_, err = r.UpdateAccount(ctx, cash.ID, AccountPatch{ParentID: &parent})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "descendant")

	self := cash.ID
	_, err = r.UpdateAccount(ctx, cash.ID, AccountPatch{ParentID: &self})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "own parent")
}

func TestDisableEnable(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	rent := mustCode(t, r, "6000")

	a, err := r.DisableAccount(ctx, rent.ID)
	require.NoError(t, err)
	assert.False(t, a.Enabled)

	enabled := true
	list, err := r.ListAccounts(ctx, model.AccountFilter{Enabled: &enabled})
	require.NoError(t, err)
	assert.Len(t, list, 17)

	a, err = r.EnableAccount(ctx, rent.ID)
	require.NoError(t, err)
	assert.True(t, a.Enabled)
}

func TestDeleteAccount(t *testing.T) {
	r, s := newRegistry(t)
	ctx := context.Background()
	cash := mustCode(t, r, "1000")
	revenue := mustCode(t, r, "4000")
	marketing := mustCode(t, r, "6500")

	require.NoError(t, r.DeleteAccount(ctx, marketing.ID))
	_, err := r.GetAccount(ctx, marketing.ID)
	assert.True(t, errs.IsNotFound(err))

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(10)
	require.NoError(t, s.InsertGroup(ctx, model.PostingGroup{
		Key: model.PostingKey(model.RefOrder, "ord_1"),
		Lines: []model.TransactionLine{
			{ID: id.New(id.PrefixLine), AccountID: cash.ID, Reference: model.RefOrder, ReferenceID: "ord_1", Date: date, Debit: amount},
			{ID: id.New(id.PrefixLine), AccountID: revenue.ID, Reference: model.RefOrder, ReferenceID: "ord_1", Date: date, Credit: amount},
		},
	}))

	err = r.DeleteAccount(ctx, cash.ID)
	assert.True(t, errs.IsConflict(err))
	_, err = r.GetAccount(ctx, cash.ID)
	assert.NoError(t, err, "account still present")

	assert.True(t, errs.IsNotFound(r.DeleteAccount(ctx, "acct_missing")))
}

func TestSubTypes(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	expense := mustType(t, r, model.AccountTypeExpense)

	st, err := r.CreateSubType(ctx, "Occupancy", expense.ID)
	require.NoError(t, err)

	_, err = r.CreateAccount(ctx, AccountSpec{Code: "6010", Name: "Rates", TypeID: expense.ID, SubTypeID: st.ID})
	require.NoError(t, err)
	assert.True(t, errs.IsConflict(r.DeleteSubType(ctx, st.ID)))

	_, err = r.CreateSubType(ctx, " ", expense.ID)
	assert.True(t, errs.IsValidation(err))
	_, err = r.CreateSubType(ctx, "X", "atype_nope")
	assert.True(t, errs.IsValidation(err))
}

func TestExportMatchesDefaultChart(t *testing.T) {
	r, _ := newRegistry(t)
	rows, err := r.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultChart(), rows)
}

func TestResolveChart(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	chart, err := r.ResolveChart(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "1000", chart.Cash.Code)
	assert.Equal(t, "5100", chart.InventoryAdjustment.Code)
	a, ok := chart.Account(RoleSalesTaxPayable)
	require.True(t, ok)
	assert.Equal(t, "2100", a.Code)

	chart, err = r.ResolveChart(ctx, map[string]string{RoleCash: "1300"})
	require.NoError(t, err)
	assert.Equal(t, "1300", chart.Cash.Code)
}

func TestResolveChartFailsFast(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	_, err := r.DisableAccount(ctx, mustCode(t, r, "1200").ID)
	require.NoError(t, err)

	_, err = r.ResolveChart(ctx, map[string]string{RoleCash: "9999"})
	require.Error(t, err)
	assert.True(t, errs.IsPostingIntegrity(err))
	assert.Contains(t, err.Error(), "cash=9999 (missing)")
	assert.Contains(t, err.Error(), "inventory=1200 (disabled)")

	_, err = r.ResolveChart(ctx, map[string]string{"petty_cash": "1000"})
	assert.True(t, errs.IsValidation(err))
}

func TestRequirePostable(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	a, err := r.RequirePostable(ctx, "purchase", "po_1", "2000")
	require.NoError(t, err)
	assert.Equal(t, "Accounts Payable", a.Name)

	_, err = r.RequirePostable(ctx, "purchase", "po_1", "2999")
	assert.True(t, errs.IsPostingIntegrity(err))
}
