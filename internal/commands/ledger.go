package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tillbook/internal/app"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
)

func newBalanceCommand(c *cli) *cobra.Command {
	var asOf time.Time

	cmd := &cobra.Command{
		Use:   "balance <code>",
		Short: "Show an account's debit-minus-credit balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				a, err := rt.Registry.GetAccountByCode(ctx, args[0])
				if err != nil {
					return err
				}
				bal, err := rt.Ledger.AccountBalance(ctx, a.ID, asOfPtr(asOf))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", a.Code, a.Name, money(bal))
				return nil
			})
		},
	}
	dateFlag(cmd.Flags(), &asOf, "as-of", "include lines dated on or before this day")
	return cmd
}

func newLinesCommand(c *cli) *cobra.Command {
	var (
		code, ref, refID string
		from, to         time.Time
	)

	cmd := &cobra.Command{
		Use:   "lines",
		Short: "List ledger lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				var f model.LineFilter
				if code != "" {
					id, err := accountIDByCode(ctx, rt, code)
					if err != nil {
						return err
					}
					f.AccountID = id
				}
				if ref != "" {
					f.Reference = model.Reference(ref)
					if !f.Reference.Valid() {
						return errs.Validation("unknown reference %q", ref)
					}
				}
				f.ReferenceID = refID
				f.From, f.Before = model.DateRange{From: from, To: to}.LineBounds()

				lines, err := rt.Ledger.QueryLines(ctx, f)
				if err != nil {
					return err
				}
				codes, err := accountCodes(ctx, rt)
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "SEQ", "DATE", "ACCOUNT", "REFERENCE", "DEBIT", "CREDIT", "DESCRIPTION")
				for _, l := range lines {
					t.row(fmt.Sprint(l.Seq), day(l.Date), codes[l.AccountID],
						model.PostingKey(l.Reference, l.ReferenceID),
						blankZero(l.Debit), blankZero(l.Credit), l.Description)
				}
				return t.flush()
			})
		},
	}
	cmd.Flags().StringVar(&code, "account", "", "account code")
	cmd.Flags().StringVar(&ref, "reference", "", "reference tag, e.g. Order or JournalEntry")
	cmd.Flags().StringVar(&refID, "ref-id", "", "source record id")
	dateFlag(cmd.Flags(), &from, "from", "first day")
	dateFlag(cmd.Flags(), &to, "to", "last day")
	return cmd
}

// accountCodes maps account ids to codes.
func accountCodes(ctx context.Context, rt *app.Runtime) (map[string]string, error) {
	accts, err := rt.Registry.ListAccounts(ctx, model.AccountFilter{})
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(accts))
	for _, a := range accts {
		m[a.ID] = a.Code
	}
	return m, nil
}
