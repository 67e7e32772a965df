package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tillbook/internal/app"
	"github.com/cleared-dev/tillbook/internal/journal"
	"github.com/cleared-dev/tillbook/internal/model"
)

func newJournalCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Manual journal entries",
	}
	cmd.AddCommand(
		newJournalCreateCommand(c),
		newJournalListCommand(c),
		newJournalShowCommand(c),
		newJournalDeleteCommand(c),
		newJournalReverseCommand(c),
	)
	return cmd
}

func newJournalCreateCommand(c *cli) *cobra.Command {
	var (
		date                   time.Time
		reference, description string
		debits, credits        []string
		itemsFile              string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a balanced journal entry",
		Long: `Create a balanced journal entry from --debit/--credit CODE=AMOUNT pairs
or from a CSV file with the columns account_code,description,debit,credit.

Example:
  tillbook journal create --description "March rent" --debit 6000=1200 --credit 1000=1200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				rows, err := journalRows(debits, credits, itemsFile)
				if err != nil {
					return err
				}
				p := journal.CreateParams{Date: orToday(date), Reference: reference, Description: description}
				for _, r := range rows {
					id, err := accountIDByCode(ctx, rt, r.AccountCode)
					if err != nil {
						return fmt.Errorf("account %q: %w", r.AccountCode, err)
					}
					p.Items = append(p.Items, journal.ItemParams{
						AccountID:   id,
						Description: r.Description,
						Debit:       r.Debit,
						Credit:      r.Credit,
					})
				}
				je, err := rt.Journal.Create(ctx, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", je.Number, money(je.TotalDebit))
				return nil
			})
		},
	}
	dateFlag(cmd.Flags(), &date, "date", "entry date (default today)")
	cmd.Flags().StringVar(&reference, "reference", "", "free-form reference, e.g. an invoice number")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringArrayVar(&debits, "debit", nil, "debit item CODE=AMOUNT (repeatable)")
	cmd.Flags().StringArrayVar(&credits, "credit", nil, "credit item CODE=AMOUNT (repeatable)")
	cmd.Flags().StringVar(&itemsFile, "items", "", "CSV file of items")
	return cmd
}

func journalRows(debits, credits []string, itemsFile string) ([]journal.ItemRow, error) {
	var rows []journal.ItemRow
	if itemsFile != "" {
		f, err := os.Open(itemsFile)
		if err != nil {
			return nil, fmt.Errorf("opening items file: %w", err)
		}
		defer f.Close()
		if rows, err = journal.ReadItems(f); err != nil {
			return nil, err
		}
	}
	for _, s := range debits {
		code, amt, err := splitAmount(s)
		if err != nil {
			return nil, err
		}
		rows = append(rows, journal.ItemRow{AccountCode: code, Debit: amt, Credit: decimal.Zero})
	}
	for _, s := range credits {
		code, amt, err := splitAmount(s)
		if err != nil {
			return nil, err
		}
		rows = append(rows, journal.ItemRow{AccountCode: code, Debit: decimal.Zero, Credit: amt})
	}
	return rows, nil
}

func newJournalListCommand(c *cli) *cobra.Command {
	var from, to time.Time

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				entries, err := rt.Journal.List(ctx, model.DateRange{From: from, To: to})
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "NUMBER", "DATE", "REFERENCE", "DESCRIPTION", "DEBIT", "CREDIT")
				for _, je := range entries {
					t.row(je.Number, day(je.Date), je.Reference, je.Description, money(je.TotalDebit), money(je.TotalCredit))
				}
				return t.flush()
			})
		},
	}
	dateFlag(cmd.Flags(), &from, "from", "first day")
	dateFlag(cmd.Flags(), &to, "to", "last day")
	return cmd
}

func newJournalShowCommand(c *cli) *cobra.Command {
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "show <number|id>",
		Short: "Show a journal entry and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				je, err := rt.Journal.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				codes, err := accountCodes(ctx, rt)
				if err != nil {
					return err
				}
				rows := make([]journal.ItemRow, 0, len(je.Items))
				for _, it := range je.Items {
					rows = append(rows, journal.ItemRow{
						AccountCode: codes[it.AccountID],
						Description: it.Description,
						Debit:       it.Debit,
						Credit:      it.Credit,
					})
				}
				out := cmd.OutOrStdout()
				if asCSV {
					return journal.WriteItems(out, rows)
				}

				fmt.Fprintf(out, "%s  %s  %s\n", je.Number, day(je.Date), je.Description)
				if je.Reference != "" {
					fmt.Fprintf(out, "Reference: %s\n", je.Reference)
				}
				t := newTable(out, "ACCOUNT", "DESCRIPTION", "DEBIT", "CREDIT")
				for _, r := range rows {
					t.row(r.AccountCode, r.Description, blankZero(r.Debit), blankZero(r.Credit))
				}
				t.row("", "Total", money(je.TotalDebit), money(je.TotalCredit))
				return t.flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print items as CSV")
	return cmd
}

func newJournalDeleteCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <number|id>",
		Short: "Delete a journal entry and its ledger lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				je, err := rt.Journal.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				if err := rt.Journal.Delete(ctx, je.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", je.Number)
				return nil
			})
		},
	}
}

func newJournalReverseCommand(c *cli) *cobra.Command {
	var (
		date        time.Time
		description string
	)

	cmd := &cobra.Command{
		Use:   "reverse <number|id>",
		Short: "Post an entry that offsets an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				je, err := rt.Journal.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				rev, err := rt.Journal.Reverse(ctx, je.ID, orToday(date), description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reversed %s with %s\n", je.Number, rev.Number)
				return nil
			})
		},
	}
	dateFlag(cmd.Flags(), &date, "date", "reversal date (default today)")
	cmd.Flags().StringVar(&description, "description", "", "description (default \"Reversal of <number>\")")
	return cmd
}
