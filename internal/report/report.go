// Package report builds the trial balance, income statement and balance
// sheet from ledger lines. Reports are computed on demand and never stored.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tillbook/internal/accounts"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/ledger"
	"github.com/cleared-dev/tillbook/internal/model"
)

// Engine computes financial reports.
type Engine struct {
	registry *accounts.Registry
	ledger   *ledger.Ledger
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates a report Engine.
func New(registry *accounts.Registry, l *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{registry: registry, ledger: l, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TrialBalanceRow is one account's sums in a trial balance.
type TrialBalanceRow struct {
	AccountID string
	Code      string
	Name      string
	Type      model.AccountTypeName
	Enabled   bool
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Balance   decimal.Decimal // debit - credit
}

// TrialBalance lists every account's debit and credit sums.
type TrialBalance struct {
	AsOf        *time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Balanced    bool
}

// AccountAmount is an account's net amount in a statement, signed so that
// the account's normal balance is positive.
type AccountAmount struct {
	AccountID string
	Code      string
	Name      string
	Amount    decimal.Decimal
}

// IncomeStatement summarizes income and costs over a period.
type IncomeStatement struct {
	Start         time.Time
	End           time.Time
	Income        []AccountAmount
	COGS          []AccountAmount
	Expenses      []AccountAmount
	TotalIncome   decimal.Decimal
	TotalCOGS     decimal.Decimal
	TotalExpenses decimal.Decimal
	GrossProfit   decimal.Decimal
	NetIncome     decimal.Decimal
}

// BalanceSheet states assets, liabilities and equity at a date. Equity
// includes net income to date, which is not closed into a posted account.
type BalanceSheet struct {
	AsOf             time.Time
	Assets           []AccountAmount
	Liabilities      []AccountAmount
	Equity           []AccountAmount
	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	TotalEquity      decimal.Decimal // includes NetIncome
	NetIncome        decimal.Decimal
	Balanced         bool
}

type activity struct {
	account model.Account
	typ     model.AccountTypeName
	totals  model.Totals
}

func (a activity) active() bool {
	return !a.totals.Debit.IsZero() || !a.totals.Credit.IsZero()
}

// normal returns the balance signed by the account type's normal side.
func (a activity) normal() decimal.Decimal {
	if a.typ.DebitNormal() {
		return a.totals.Balance()
	}
	return a.totals.Balance().Neg()
}

// collect sums the lines dated within r per account. Accounts come back
// ordered by code.
func (e *Engine) collect(ctx context.Context, r model.DateRange) ([]activity, error) {
	accts, err := e.registry.ListAccounts(ctx, model.AccountFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	types, err := e.registry.TypeNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing account types: %w", err)
	}

	from, before := r.LineBounds()
	lines, err := e.ledger.QueryLines(ctx, model.LineFilter{From: from, Before: before})
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}

	byID := make(map[string]*activity, len(accts))
	out := make([]*activity, 0, len(accts))
	for _, a := range accts {
		act := &activity{account: a, typ: types[a.TypeID]}
		byID[a.ID] = act
		out = append(out, act)
	}
	for _, l := range lines {
		act, ok := byID[l.AccountID]
		if !ok {
			e.logger.Warn("line references unknown account", "line_id", l.ID, "account_id", l.AccountID)
			continue
		}
		act.totals = act.totals.Add(l)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].account.Code < out[j].account.Code })
	result := make([]activity, len(out))
	for i, a := range out {
		result[i] = *a
	}
	return result, nil
}

// TrialBalance sums every account's lines dated on or before asOf; nil asOf
// covers the whole ledger. Disabled accounts appear only when they carry
// activity.
func (e *Engine) TrialBalance(ctx context.Context, asOf *time.Time) (*TrialBalance, error) {
	var r model.DateRange
	if asOf != nil {
		r.To = *asOf
	}
	acts, err := e.collect(ctx, r)
	if err != nil {
		return nil, err
	}

	tb := &TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, a := range acts {
		if !a.account.Enabled && !a.active() {
			continue
		}
		tb.Rows = append(tb.Rows, TrialBalanceRow{
			AccountID: a.account.ID,
			Code:      a.account.Code,
			Name:      a.account.Name,
			Type:      a.typ,
			Enabled:   a.account.Enabled,
			Debit:     a.totals.Debit,
			Credit:    a.totals.Credit,
			Balance:   a.totals.Balance(),
		})
		tb.TotalDebit = tb.TotalDebit.Add(a.totals.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(a.totals.Credit)
	}
	tb.Balanced = tb.TotalDebit.Equal(tb.TotalCredit)
	if !tb.Balanced {
		e.logger.Error("trial balance does not balance",
			"total_debit", tb.TotalDebit.StringFixed(2),
			"total_credit", tb.TotalCredit.StringFixed(2),
		)
	}
	return tb, nil
}

// IncomeStatement reports income, cost of goods sold and expenses for lines
// dated between start and end inclusive. A zero start or end leaves that
// side open.
func (e *Engine) IncomeStatement(ctx context.Context, start, end time.Time) (*IncomeStatement, error) {
	if !start.IsZero() && !end.IsZero() && model.Day(end).Before(model.Day(start)) {
		return nil, errs.Validation("end date %s is before start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	acts, err := e.collect(ctx, model.DateRange{From: start, To: end})
	if err != nil {
		return nil, err
	}

	is := &IncomeStatement{
		Start:         start,
		End:           end,
		TotalIncome:   decimal.Zero,
		TotalCOGS:     decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, a := range acts {
		if !a.active() {
			continue
		}
		row := amount(a)
		switch a.typ {
		case model.AccountTypeIncome:
			is.Income = append(is.Income, row)
			is.TotalIncome = is.TotalIncome.Add(row.Amount)
		case model.AccountTypeCOGS:
			is.COGS = append(is.COGS, row)
			is.TotalCOGS = is.TotalCOGS.Add(row.Amount)
		case model.AccountTypeExpense:
			is.Expenses = append(is.Expenses, row)
			is.TotalExpenses = is.TotalExpenses.Add(row.Amount)
		}
	}
	is.GrossProfit = is.TotalIncome.Sub(is.TotalCOGS)
	is.NetIncome = is.GrossProfit.Sub(is.TotalExpenses)
	return is, nil
}

// BalanceSheet states balances as of the end of asOf's day. A zero asOf
// covers the whole ledger.
func (e *Engine) BalanceSheet(ctx context.Context, asOf time.Time) (*BalanceSheet, error) {
	acts, err := e.collect(ctx, model.DateRange{To: asOf})
	if err != nil {
		return nil, err
	}

	bs := &BalanceSheet{
		AsOf:             asOf,
		TotalAssets:      decimal.Zero,
		TotalLiabilities: decimal.Zero,
		TotalEquity:      decimal.Zero,
		NetIncome:        decimal.Zero,
	}
	for _, a := range acts {
		if !a.active() {
			continue
		}
		row := amount(a)
		switch a.typ {
		case model.AccountTypeAsset:
			bs.Assets = append(bs.Assets, row)
			bs.TotalAssets = bs.TotalAssets.Add(row.Amount)
		case model.AccountTypeLiability:
			bs.Liabilities = append(bs.Liabilities, row)
			bs.TotalLiabilities = bs.TotalLiabilities.Add(row.Amount)
		case model.AccountTypeEquity:
			bs.Equity = append(bs.Equity, row)
			bs.TotalEquity = bs.TotalEquity.Add(row.Amount)
		case model.AccountTypeIncome:
			bs.NetIncome = bs.NetIncome.Add(row.Amount)
		case model.AccountTypeCOGS, model.AccountTypeExpense:
			bs.NetIncome = bs.NetIncome.Sub(row.Amount)
		}
	}
	bs.TotalEquity = bs.TotalEquity.Add(bs.NetIncome)
	bs.Balanced = bs.TotalAssets.Equal(bs.TotalLiabilities.Add(bs.TotalEquity))
	if !bs.Balanced {
		e.logger.Error("balance sheet does not balance",
			"total_assets", bs.TotalAssets.StringFixed(2),
			"total_liabilities", bs.TotalLiabilities.StringFixed(2),
			"total_equity", bs.TotalEquity.StringFixed(2),
		)
	}
	return bs, nil
}

func amount(a activity) AccountAmount {
	return AccountAmount{
		AccountID: a.account.ID,
		Code:      a.account.Code,
		Name:      a.account.Name,
		Amount:    a.normal(),
	}
}
