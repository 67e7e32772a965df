package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tillbook/internal/app"
	"github.com/cleared-dev/tillbook/internal/report"
)

func newReportCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Financial reports",
	}
	cmd.AddCommand(
		newTrialBalanceCommand(c),
		newIncomeCommand(c),
		newBalanceSheetCommand(c),
	)
	return cmd
}

func newTrialBalanceCommand(c *cli) *cobra.Command {
	var asOf time.Time

	cmd := &cobra.Command{
		Use:     "trial-balance",
		Aliases: []string{"tb"},
		Short:   "Debit and credit sums per account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				tb, err := rt.Reports.TrialBalance(ctx, asOfPtr(asOf))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				t := newTable(out, "CODE", "NAME", "TYPE", "DEBIT", "CREDIT", "BALANCE")
				for _, r := range tb.Rows {
					name := r.Name
					if !r.Enabled {
						name += " (disabled)"
					}
					t.row(r.Code, name, string(r.Type), blankZero(r.Debit), blankZero(r.Credit), money(r.Balance))
				}
				t.row("", "Total", "", money(tb.TotalDebit), money(tb.TotalCredit), "")
				if err := t.flush(); err != nil {
					return err
				}
				if !tb.Balanced {
					fmt.Fprintln(out, "WARNING: trial balance does not balance")
				}
				return nil
			})
		},
	}
	dateFlag(cmd.Flags(), &asOf, "as-of", "include lines dated on or before this day")
	return cmd
}

func newIncomeCommand(c *cli) *cobra.Command {
	var from, to time.Time

	cmd := &cobra.Command{
		Use:   "income",
		Short: "Income statement for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				is, err := rt.Reports.IncomeStatement(ctx, from, to)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Income statement %s\n\n", period(is.Start, is.End))
				t := newTable(out)
				section(t, "Income", is.Income, is.TotalIncome)
				section(t, "Cost of goods sold", is.COGS, is.TotalCOGS)
				t.row("", "Gross profit", money(is.GrossProfit))
				t.row("")
				section(t, "Expenses", is.Expenses, is.TotalExpenses)
				t.row("", "Net income", money(is.NetIncome))
				return t.flush()
			})
		},
	}
	dateFlag(cmd.Flags(), &from, "from", "first day of the period")
	dateFlag(cmd.Flags(), &to, "to", "last day of the period")
	return cmd
}

func newBalanceSheetCommand(c *cli) *cobra.Command {
	var asOf time.Time

	cmd := &cobra.Command{
		Use:     "balance-sheet",
		Aliases: []string{"bs"},
		Short:   "Assets, liabilities and equity at a date",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				bs, err := rt.Reports.BalanceSheet(ctx, asOf)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				writeBalanceSheet(out, bs)
				return nil
			})
		},
	}
	dateFlag(cmd.Flags(), &asOf, "as-of", "report date (default all lines)")
	return cmd
}

func writeBalanceSheet(out io.Writer, bs *report.BalanceSheet) {
	if bs.AsOf.IsZero() {
		fmt.Fprint(out, "Balance sheet\n\n")
	} else {
		fmt.Fprintf(out, "Balance sheet as of %s\n\n", day(bs.AsOf))
	}
	t := newTable(out)
	section(t, "Assets", bs.Assets, bs.TotalAssets)
	section(t, "Liabilities", bs.Liabilities, bs.TotalLiabilities)
	equity := append([]report.AccountAmount(nil), bs.Equity...)
	equity = append(equity, report.AccountAmount{Name: "Net income to date", Amount: bs.NetIncome})
	section(t, "Equity", equity, bs.TotalEquity)
	t.row("", "Liabilities and equity", money(bs.TotalLiabilities.Add(bs.TotalEquity)))
	_ = t.flush()
	if !bs.Balanced {
		fmt.Fprintln(out, "WARNING: balance sheet does not balance")
	}
}

func section(t *table, title string, rows []report.AccountAmount, total decimal.Decimal) {
	t.row(title)
	for _, r := range rows {
		t.row(r.Code, r.Name, money(r.Amount))
	}
	t.row("", "Total "+lowerFirst(title), money(total))
	t.row("")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

func period(start, end time.Time) string {
	switch {
	case start.IsZero() && end.IsZero():
		return "(all dates)"
	case start.IsZero():
		return "through " + day(end)
	case end.IsZero():
		return "from " + day(start)
	}
	return day(start) + " to " + day(end)
}
