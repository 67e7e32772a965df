package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/accounts"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/journal"
	"github.com/cleared-dev/tillbook/internal/ledger"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/posting"
	"github.com/cleared-dev/tillbook/internal/retry"
	"github.com/cleared-dev/tillbook/internal/sequence"
	"github.com/cleared-dev/tillbook/internal/store/memory"
)

var (
	mar1 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mar2 = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mar3 = time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	reg     *accounts.Registry
	chart   *accounts.Chart
	poster  *posting.Poster
	journal *journal.Engine
	reports *Engine
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	reg := accounts.NewRegistry(s)
	_, err := reg.Initialize(ctx)
	require.NoError(t, err)
	chart, err := reg.ResolveChart(ctx, nil)
	require.NoError(t, err)
	l := ledger.New(s, ledger.WithRetry(retry.NoRetry))
	return fixture{
		reg:     reg,
		chart:   chart,
		poster:  posting.NewPoster(l, reg, chart),
		journal: journal.NewEngine(s, l, sequence.New(s, retry.NoRetry, nil)),
		reports: New(reg, l),
	}
}

func (f fixture) account(t *testing.T, code string) *model.Account {
	t.Helper()
	a, err := f.reg.GetAccountByCode(context.Background(), code)
	require.NoError(t, err)
	return a
}

func (f fixture) payRent(t *testing.T, date time.Time, amount string) {
	t.Helper()
	_, err := f.journal.Create(context.Background(), journal.CreateParams{
		Date:        date,
		Description: "Rent",
		Items: []journal.ItemParams{
			{AccountID: f.account(t, "6000").ID, Debit: dec(amount)},
			{AccountID: f.chart.Cash.ID, Credit: dec(amount)},
		},
	})
	require.NoError(t, err)
}

func row(t *testing.T, tb *TrialBalance, code string) TrialBalanceRow {
	t.Helper()
	for _, r := range tb.Rows {
		if r.Code == code {
			return r
		}
	}
	t.Fatalf("no trial balance row for %s", code)
	return TrialBalanceRow{}
}

func TestSaleScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.poster.PostSale(ctx, posting.SaleEvent{OrderID: "ord_1", Total: dec("100"), CostEstimate: dec("60"), Date: mar1})
	require.NoError(t, err)

	tb, err := f.reports.TrialBalance(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "160.00", tb.TotalDebit.StringFixed(2))
	assert.Equal(t, "160.00", tb.TotalCredit.StringFixed(2))
	assert.True(t, tb.Balanced)
	assert.Equal(t, "100.00", row(t, tb, "1000").Debit.StringFixed(2))
	assert.Equal(t, "-100.00", row(t, tb, "4000").Balance.StringFixed(2))
	assert.Equal(t, "60.00", row(t, tb, "5000").Debit.StringFixed(2))
	assert.Equal(t, "60.00", row(t, tb, "1200").Credit.StringFixed(2))
	assert.Len(t, tb.Rows, 18, "every enabled account appears")

	is, err := f.reports.IncomeStatement(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "100.00", is.TotalIncome.StringFixed(2))
	assert.Equal(t, "60.00", is.TotalCOGS.StringFixed(2))
	assert.Equal(t, "40.00", is.GrossProfit.StringFixed(2))
	assert.Equal(t, "40.00", is.NetIncome.StringFixed(2))
	require.Len(t, is.Income, 1)
	assert.Equal(t, "4000", is.Income[0].Code)
}

func TestReturnScenarioKeepsBalanceSheetBalanced(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.poster.PostSale(ctx, posting.SaleEvent{OrderID: "ord_1", Total: dec("100"), CostEstimate: dec("60"), Date: mar1})
	require.NoError(t, err)
	res, err := f.poster.PostReturn(ctx, posting.ReturnEvent{ReturnID: "ret_1", Kind: posting.ReturnRefund, RefundValue: dec("30"), Date: mar2})
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, f.chart.SalesRevenue.ID, res.Lines[0].AccountID)
	assert.Equal(t, "30.00", res.Lines[0].Debit.StringFixed(2))
	assert.Equal(t, f.chart.Cash.ID, res.Lines[1].AccountID)
	assert.Equal(t, "30.00", res.Lines[1].Credit.StringFixed(2))

	bs, err := f.reports.BalanceSheet(ctx, time.Time{})
	require.NoError(t, err)
	assert.True(t, bs.Balanced)
	assert.Equal(t, "10.00", bs.TotalAssets.StringFixed(2))
	assert.Equal(t, "0.00", bs.TotalLiabilities.StringFixed(2))
	assert.Equal(t, "10.00", bs.NetIncome.StringFixed(2))
	assert.Equal(t, "10.00", bs.TotalEquity.StringFixed(2))
}

func TestReportsRespectDates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.poster.PostSale(ctx, posting.SaleEvent{OrderID: "ord_1", Total: dec("100"), CostEstimate: dec("60"), Date: mar1})
	require.NoError(t, err)
	f.payRent(t, mar2, "25")
	_, err = f.poster.PostSale(ctx, posting.SaleEvent{OrderID: "ord_2", Total: dec("50"), CostEstimate: dec("30"), Date: mar3})
	require.NoError(t, err)

	asOf := mar2.Add(18 * time.Hour)
	tb, err := f.reports.TrialBalance(ctx, &asOf)
	require.NoError(t, err)
	assert.Equal(t, "185.00", tb.TotalDebit.StringFixed(2), "whole day of asOf included, later days excluded")
	assert.True(t, tb.Balanced)

	is, err := f.reports.IncomeStatement(ctx, mar2, mar3)
	require.NoError(t, err)
	assert.Equal(t, "50.00", is.TotalIncome.StringFixed(2))
	assert.Equal(t, "30.00", is.TotalCOGS.StringFixed(2))
	assert.Equal(t, "25.00", is.TotalExpenses.StringFixed(2))
	assert.Equal(t, "-5.00", is.NetIncome.StringFixed(2))

	bs, err := f.reports.BalanceSheet(ctx, mar2)
	require.NoError(t, err)
	assert.True(t, bs.Balanced)
	assert.Equal(t, "15.00", bs.NetIncome.StringFixed(2))

	_, err = f.reports.IncomeStatement(ctx, mar3, mar1)
	assert.True(t, errs.IsValidation(err))
}

func TestTrialBalanceDisabledAccounts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.payRent(t, mar1, "40")
	_, err := f.reg.DisableAccount(ctx, f.account(t, "6000").ID)
	require.NoError(t, err)
	_, err = f.reg.DisableAccount(ctx, f.account(t, "6400").ID)
	require.NoError(t, err)

	tb, err := f.reports.TrialBalance(ctx, nil)
	require.NoError(t, err)
	rent := row(t, tb, "6000")
	assert.False(t, rent.Enabled)
	assert.Equal(t, "40.00", rent.Balance.StringFixed(2))
	for _, r := range tb.Rows {
		assert.NotEqual(t, "6400", r.Code, "disabled account without activity is omitted")
	}
	assert.True(t, tb.Balanced)
}

func TestBalanceSheetWithLiabilitiesAndEquity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.journal.Create(ctx, journal.CreateParams{
		Date:        mar1,
		Description: "Owner investment",
		Items: []journal.ItemParams{
			{AccountID: f.chart.Cash.ID, Debit: dec("1000")},
			{AccountID: f.chart.OwnersEquity.ID, Credit: dec("1000")},
		},
	})
	require.NoError(t, err)
	_, err = f.poster.PostPurchase(ctx, posting.PurchaseEvent{
		PurchaseID: "po_1", Kind: model.RefPurchaseOrder, TotalAmount: dec("300"), PayoutAccountCode: "2000", Date: mar1,
	})
	require.NoError(t, err)
	_, err = f.poster.PostSale(ctx, posting.SaleEvent{
		OrderID: "ord_1", Total: dec("110"), Tax: dec("10"), CostEstimate: dec("55"), Date: mar2,
	})
	require.NoError(t, err)

	bs, err := f.reports.BalanceSheet(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "1355.00", bs.TotalAssets.StringFixed(2))
	assert.Equal(t, "310.00", bs.TotalLiabilities.StringFixed(2))
	assert.Equal(t, "45.00", bs.NetIncome.StringFixed(2))
	assert.Equal(t, "1045.00", bs.TotalEquity.StringFixed(2))
	assert.True(t, bs.Balanced)
	require.Len(t, bs.Equity, 1)
	assert.Equal(t, "1000.00", bs.Equity[0].Amount.StringFixed(2))
}
