package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tillbook/internal/app"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/posting"
)

func newPostCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a point-of-sale event to the ledger",
		Long: `Post a point-of-sale event to the ledger. An event that cannot be posted
is kept in the pending outbox and retried by "tillbook reconcile".`,
	}
	cmd.AddCommand(
		newPostSaleCommand(c),
		newPostReturnCommand(c),
		newPostAdjustmentCommand(c),
		newPostPurchaseCommand(c),
		newPostPaymentCommand(c),
	)
	return cmd
}

// dispatch posts ev through the outbox-backed dispatcher and reports the
// outcome.
func dispatch(c *cli, cmd *cobra.Command, ev posting.Event) error {
	return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
		if err := rt.RequireChart(); err != nil {
			return err
		}
		res, err := rt.Dispatcher.Dispatch(ctx, ev)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return nil
	})
}

func printResult(cmd *cobra.Command, res posting.Result) {
	out := cmd.OutOrStdout()
	switch {
	case res.Queued:
		fmt.Fprintf(out, "Queued %s for reconciliation\n", res.Key)
	case res.Duplicate:
		fmt.Fprintf(out, "%s already posted\n", res.Key)
	case res.Skipped:
		fmt.Fprintf(out, "Nothing to post for %s\n", res.Key)
	default:
		fmt.Fprintf(out, "Posted %s (%d lines)\n", res.Key, len(res.Lines))
	}
}

func newPostSaleCommand(c *cli) *cobra.Command {
	var (
		e    posting.SaleEvent
		date time.Time
	)
	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Post a completed sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e.Date = orToday(date)
			return dispatch(c, cmd, e)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&e.OrderID, "order", "", "order id (required)")
	decimalFlag(fs, &e.Total, "total", "sale total including tax (required)")
	decimalFlag(fs, &e.Tax, "tax", "sales tax included in the total")
	decimalFlag(fs, &e.CostEstimate, "cost", "cost of goods sold (default total less tax times cogs_ratio)")
	fs.StringVar(&e.Customer, "customer", "", "customer name")
	fs.BoolVar(&e.OnAccount, "on-account", false, "charge to accounts receivable instead of cash")
	dateFlag(fs, &date, "date", "sale date (default today)")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func newPostReturnCommand(c *cli) *cobra.Command {
	var (
		e    posting.ReturnEvent
		kind string
		date time.Time
	)
	cmd := &cobra.Command{
		Use:   "return",
		Short: "Post an approved return",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e.Kind = posting.ReturnKind(strings.ToLower(kind))
			e.Date = orToday(date)
			return dispatch(c, cmd, e)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&e.ReturnID, "id", "", "return id (required)")
	fs.StringVar(&kind, "kind", string(posting.ReturnRefund), "refund or replacement")
	decimalFlag(fs, &e.RefundValue, "refund", "value refunded to the customer")
	decimalFlag(fs, &e.RestockCost, "restock-cost", "cost of items put back into stock")
	decimalFlag(fs, &e.ReplacementValue, "replacement-value", "sale value of replacement items")
	decimalFlag(fs, &e.ReplacementCost, "replacement-cost", "cost of replacement items")
	fs.BoolVar(&e.OnAccount, "on-account", false, "refund to accounts receivable instead of cash")
	dateFlag(fs, &date, "date", "return date (default today)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newPostAdjustmentCommand(c *cli) *cobra.Command {
	var (
		e     posting.StockAdjustmentEvent
		lines []string
		date  time.Time
	)
	cmd := &cobra.Command{
		Use:   "adjustment",
		Short: "Post a stock count correction",
		Long: `Post a stock count correction, either as increase/decrease values or as
product lines PRODUCT:QTY_DELTA:UNIT_COST.

Example:
  tillbook post adjustment --id ADJ-00003 --line SKU-1:-2:3.50 --reason shrinkage`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range lines {
				l, err := parseAdjustmentLine(s)
				if err != nil {
					return err
				}
				e.Lines = append(e.Lines, l)
			}
			e.Date = orToday(date)
			return dispatch(c, cmd, e)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&e.AdjustmentID, "id", "", "adjustment id (required)")
	decimalFlag(fs, &e.IncreaseValue, "increase", "value of stock found")
	decimalFlag(fs, &e.DecreaseValue, "decrease", "value of stock lost")
	fs.StringArrayVar(&lines, "line", nil, "product line PRODUCT:QTY_DELTA:UNIT_COST (repeatable)")
	fs.StringVar(&e.Reason, "reason", "", "reason for the adjustment")
	dateFlag(fs, &date, "date", "adjustment date (default today)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func parseAdjustmentLine(s string) (posting.AdjustmentLine, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return posting.AdjustmentLine{}, errs.Validation("invalid line %q (want PRODUCT:QTY_DELTA:UNIT_COST)", s)
	}
	qty, err := decimal.NewFromString(parts[1])
	if err != nil {
		return posting.AdjustmentLine{}, errs.Validation("invalid quantity in %q", s)
	}
	cost, err := decimal.NewFromString(parts[2])
	if err != nil {
		return posting.AdjustmentLine{}, errs.Validation("invalid unit cost in %q", s)
	}
	return posting.AdjustmentLine{ProductID: parts[0], QtyDelta: qty, UnitCost: cost}, nil
}

func newPostPurchaseCommand(c *cli) *cobra.Command {
	var (
		e    posting.PurchaseEvent
		kind string
		date time.Time
	)
	cmd := &cobra.Command{
		Use:   "purchase",
		Short: "Post received stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(kind) {
			case "po", "purchase-order":
				e.Kind = model.RefPurchaseOrder
			case "gr", "goods-receipt":
				e.Kind = model.RefGoodsReceipt
			case "mp", "market":
				e.Kind = model.RefMarketPurchase
			default:
				return errs.Validation("unknown purchase kind %q (want po, gr or mp)", kind)
			}
			e.Date = orToday(date)
			return dispatch(c, cmd, e)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&e.PurchaseID, "id", "", "purchase id (required)")
	fs.StringVar(&kind, "kind", "po", "po (purchase order), gr (goods receipt) or mp (market purchase)")
	decimalFlag(fs, &e.TotalAmount, "total", "total cost (required)")
	fs.StringVar(&e.PayoutAccountCode, "payout", "", "account code paid from, e.g. 2000 for payables (default cash)")
	dateFlag(fs, &date, "date", "purchase date (default today)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func newPostPaymentCommand(c *cli) *cobra.Command {
	var (
		e         posting.PaymentEvent
		direction string
		date      time.Time
	)
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Post a supplier or customer payment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e.Direction = posting.PaymentDirection(strings.ToLower(direction))
			e.Date = orToday(date)
			return dispatch(c, cmd, e)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&e.PaymentID, "id", "", "payment id (required)")
	fs.StringVar(&direction, "direction", "", "supplier (pay payables) or customer (collect receivables) (required)")
	decimalFlag(fs, &e.Amount, "amount", "amount (required)")
	fs.StringVar(&e.AccountCode, "account", "", "money account code (default cash)")
	dateFlag(fs, &date, "date", "payment date (default today)")
	for _, f := range []string{"id", "direction", "amount"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
