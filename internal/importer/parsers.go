package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/posting"
)

const dateFormat = time.DateOnly

// table reads a headered CSV and looks fields up by column name.
type table struct {
	name    string
	index   map[string]int
	records [][]string
}

func readTable(r io.Reader, name string, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV: %w", name, err)
	}
	if len(records) == 0 {
		return &table{name: name}, nil
	}

	t := &table{name: name, index: make(map[string]int), records: records[1:]}
	for i, col := range records[0] {
		t.index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s CSV missing columns: %s", name, strings.Join(missing, ", "))
	}
	return t, nil
}

// each calls fn for every data row. Errors name the file line.
func (t *table) each(fn func(row) error) error {
	for i, rec := range t.records {
		if err := fn(row{t: t, rec: rec}); err != nil {
			return fmt.Errorf("%s row %d: %w", t.name, i+2, err)
		}
	}
	return nil
}

type row struct {
	t   *table
	rec []string
}

func (r row) str(col string) string {
	i, ok := r.t.index[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r row) amount(col string) (decimal.Decimal, error) {
	s := r.str(col)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s %q: %w", col, s, err)
	}
	return d, nil
}

func (r row) date(col string) (time.Time, error) {
	s := r.str(col)
	d, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s %q: %w", col, s, err)
	}
	return d, nil
}

func (r row) flag(col string) (bool, error) {
	s := r.str(col)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("parsing %s %q: %w", col, s, err)
	}
	return b, nil
}

// amounts parses several amount columns at once.
func (r row) amounts(cols ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(cols))
	for i, col := range cols {
		d, err := r.amount(col)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// SaleParser reads sales-*.csv:
// order_id,date,total,tax,cost,customer,on_account
type SaleParser struct{}

func (SaleParser) Format() string { return "sales" }

func (SaleParser) Parse(r io.Reader) ([]posting.Event, error) {
	t, err := readTable(r, "sales", "order_id", "date", "total")
	if err != nil {
		return nil, err
	}
	var events []posting.Event
	err = t.each(func(r row) error {
		date, err := r.date("date")
		if err != nil {
			return err
		}
		a, err := r.amounts("total", "tax", "cost")
		if err != nil {
			return err
		}
		onAccount, err := r.flag("on_account")
		if err != nil {
			return err
		}
		events = append(events, posting.SaleEvent{
			OrderID:      r.str("order_id"),
			Date:         date,
			Total:        a[0],
			Tax:          a[1],
			CostEstimate: a[2],
			Customer:     r.str("customer"),
			OnAccount:    onAccount,
		})
		return nil
	})
	return events, err
}

// ReturnParser reads returns-*.csv:
// return_id,date,kind,refund_value,restock_cost,replacement_value,replacement_cost,on_account
type ReturnParser struct{}

func (ReturnParser) Format() string { return "returns" }

func (ReturnParser) Parse(r io.Reader) ([]posting.Event, error) {
	t, err := readTable(r, "returns", "return_id", "date", "refund_value")
	if err != nil {
		return nil, err
	}
	var events []posting.Event
	err = t.each(func(r row) error {
		date, err := r.date("date")
		if err != nil {
			return err
		}
		a, err := r.amounts("refund_value", "restock_cost", "replacement_value", "replacement_cost")
		if err != nil {
			return err
		}
		onAccount, err := r.flag("on_account")
		if err != nil {
			return err
		}
		kind := posting.ReturnKind(strings.ToLower(r.str("kind")))
		if kind == "" {
			kind = posting.ReturnRefund
		}
		events = append(events, posting.ReturnEvent{
			ReturnID:         r.str("return_id"),
			Date:             date,
			Kind:             kind,
			RefundValue:      a[0],
			RestockCost:      a[1],
			ReplacementValue: a[2],
			ReplacementCost:  a[3],
			OnAccount:        onAccount,
		})
		return nil
	})
	return events, err
}

// AdjustmentParser reads adjustments-*.csv, one row per product line:
// adjustment_id,date,product_id,qty_delta,unit_cost,reason
// Consecutive rows with the same adjustment_id form one event.
type AdjustmentParser struct{}

func (AdjustmentParser) Format() string { return "adjustments" }

func (AdjustmentParser) Parse(r io.Reader) ([]posting.Event, error) {
	t, err := readTable(r, "adjustments", "adjustment_id", "date", "qty_delta", "unit_cost")
	if err != nil {
		return nil, err
	}
	var (
		events []posting.Event
		cur    *posting.StockAdjustmentEvent
	)
	flush := func() {
		if cur != nil {
			events = append(events, *cur)
			cur = nil
		}
	}
	err = t.each(func(r row) error {
		adjID := r.str("adjustment_id")
		if cur != nil && cur.AdjustmentID != adjID {
			flush()
		}
		if cur == nil {
			date, err := r.date("date")
			if err != nil {
				return err
			}
			cur = &posting.StockAdjustmentEvent{AdjustmentID: adjID, Date: date, Reason: r.str("reason")}
		}
		a, err := r.amounts("qty_delta", "unit_cost")
		if err != nil {
			return err
		}
		cur.Lines = append(cur.Lines, posting.AdjustmentLine{
			ProductID: r.str("product_id"),
			QtyDelta:  a[0],
			UnitCost:  a[1],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	flush()
	return events, nil
}

// PurchaseParser reads purchases-*.csv:
// purchase_id,date,kind,total,payout_account
type PurchaseParser struct{}

func (PurchaseParser) Format() string { return "purchases" }

func (PurchaseParser) Parse(r io.Reader) ([]posting.Event, error) {
	t, err := readTable(r, "purchases", "purchase_id", "date", "total")
	if err != nil {
		return nil, err
	}
	var events []posting.Event
	err = t.each(func(r row) error {
		date, err := r.date("date")
		if err != nil {
			return err
		}
		total, err := r.amount("total")
		if err != nil {
			return err
		}
		kind := purchaseKind(r.str("kind"))
		if kind == "" {
			return fmt.Errorf("unknown purchase kind %q", r.str("kind"))
		}
		events = append(events, posting.PurchaseEvent{
			PurchaseID:        r.str("purchase_id"),
			Date:              date,
			Kind:              kind,
			TotalAmount:       total,
			PayoutAccountCode: r.str("payout_account"),
		})
		return nil
	})
	return events, err
}

// purchaseKind accepts the reference tag or its short form. Blank means a
// purchase order.
func purchaseKind(s string) model.Reference {
	switch strings.ToLower(s) {
	case "", "po", "purchaseorder", "purchase_order":
		return model.RefPurchaseOrder
	case "gr", "goodsreceipt", "goods_receipt":
		return model.RefGoodsReceipt
	case "mp", "marketpurchase", "market_purchase":
		return model.RefMarketPurchase
	}
	return ""
}

// PaymentParser reads payments-*.csv:
// payment_id,date,direction,amount,account_code
type PaymentParser struct{}

func (PaymentParser) Format() string { return "payments" }

func (PaymentParser) Parse(r io.Reader) ([]posting.Event, error) {
	t, err := readTable(r, "payments", "payment_id", "date", "direction", "amount")
	if err != nil {
		return nil, err
	}
	var events []posting.Event
	err = t.each(func(r row) error {
		date, err := r.date("date")
		if err != nil {
			return err
		}
		amount, err := r.amount("amount")
		if err != nil {
			return err
		}
		events = append(events, posting.PaymentEvent{
			PaymentID:   r.str("payment_id"),
			Date:        date,
			Direction:   posting.PaymentDirection(strings.ToLower(r.str("direction"))),
			Amount:      amount,
			AccountCode: r.str("account_code"),
		})
		return nil
	})
	return events, err
}
