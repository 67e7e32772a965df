package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/posting"
)

func TestSaleParser_Parse(t *testing.T) {
	f, err := os.Open("../../testdata/events/sales-2026-03-14.csv")
	require.NoError(t, err)
	defer f.Close()

	events, err := SaleParser{}.Parse(f)
	require.NoError(t, err)
	require.Len(t, events, 3)

	first := events[0].(posting.SaleEvent)
	assert.Equal(t, "ORD-00041", first.OrderID)
	assert.Equal(t, "100.00", first.Total.StringFixed(2))
	assert.Equal(t, "60.00", first.CostEstimate.StringFixed(2))
	assert.True(t, first.Tax.IsZero())
	assert.False(t, first.OnAccount)
	assert.Equal(t, 14, first.Date.Day())

	second := events[1].(posting.SaleEvent)
	assert.Equal(t, "Maple Cafe", second.Customer)
	assert.True(t, second.OnAccount)
	assert.Equal(t, "4.00", second.Tax.StringFixed(2))
	assert.True(t, second.CostEstimate.IsZero())
}

func TestAdjustmentParser_GroupsLines(t *testing.T) {
	f, err := os.Open("../../testdata/events/adjustments-2026-03-14.csv")
	require.NoError(t, err)
	defer f.Close()

	events, err := AdjustmentParser{}.Parse(f)
	require.NoError(t, err)
	require.Len(t, events, 2)

	adj := events[0].(posting.StockAdjustmentEvent)
	assert.Equal(t, "ADJ-00007", adj.AdjustmentID)
	assert.Equal(t, "shrinkage", adj.Reason)
	require.Len(t, adj.Lines, 2)
	inc, decr := adj.Values()
	assert.Equal(t, "4.00", inc.StringFixed(2))
	assert.Equal(t, "6.50", decr.StringFixed(2))

	assert.Len(t, events[1].(posting.StockAdjustmentEvent).Lines, 1)
}

func TestReturnParser_DefaultsToRefund(t *testing.T) {
	in := "return_id,date,kind,refund_value,restock_cost\n" +
		"RET-00001,2026-03-15,,30.00,18.00\n" +
		"RET-00002,2026-03-15,Replacement,20.00,\n"
	events, err := ReturnParser{}.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, posting.ReturnRefund, events[0].(posting.ReturnEvent).Kind)
	assert.Equal(t, "18.00", events[0].(posting.ReturnEvent).RestockCost.StringFixed(2))
	assert.Equal(t, posting.ReturnReplacement, events[1].(posting.ReturnEvent).Kind)
}

func TestPurchaseParser_Kinds(t *testing.T) {
	in := "purchase_id,date,kind,total,payout_account\n" +
		"PO-00001,2026-03-01,,120.00,2000\n" +
		"GR-00001,2026-03-02,gr,80.00,\n" +
		"MP-00001,2026-03-03,MarketPurchase,15.00,\n"
	events, err := PurchaseParser{}.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, model.RefPurchaseOrder, events[0].Reference())
	assert.Equal(t, "2000", events[0].(posting.PurchaseEvent).PayoutAccountCode)
	assert.Equal(t, model.RefGoodsReceipt, events[1].Reference())
	assert.Equal(t, model.RefMarketPurchase, events[2].Reference())

	_, err = PurchaseParser{}.Parse(strings.NewReader("purchase_id,date,kind,total\nX,2026-03-01,barter,1\n"))
	assert.ErrorContains(t, err, "unknown purchase kind")
}

func TestPaymentParser_Parse(t *testing.T) {
	in := "payment_id,date,direction,amount,account_code\nPAY-1,2026-03-05,Supplier,45.00,1000\n"
	events, err := PaymentParser{}.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, events, 1)
	p := events[0].(posting.PaymentEvent)
	assert.Equal(t, posting.PaySupplier, p.Direction)
	assert.Equal(t, "1000", p.AccountCode)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"missing column", "order_id,date\nA,2026-01-01\n", "missing columns: total"},
		{"bad date", "order_id,date,total\nA,01/03/2026,1\n", "row 2: parsing date"},
		{"bad amount", "order_id,date,total\nA,2026-01-01,ten\n", "parsing total"},
		{"bad flag", "order_id,date,total,on_account\nA,2026-01-01,1,maybe\n", "parsing on_account"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SaleParser{}.Parse(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParser_HeaderOnly(t *testing.T) {
	events, err := SaleParser{}.Parse(strings.NewReader("order_id,date,total\n"))
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "sales", FormatOf("sales-2026-03-14.csv"))
	assert.Equal(t, "returns", FormatOf("Returns_till2.csv"))
	assert.Equal(t, "payments", FormatOf("/tmp/import/payments.csv"))
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(SaleParser{})
	assert.NotNil(t, r.Get("Sales"))
	assert.NotNil(t, r.Get("SALES"))
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(SaleParser{})
	assert.Panics(t, func() { r.Register(SaleParser{}) })
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, f := range []string{"sales", "returns", "adjustments", "purchases", "payments"} {
		assert.NotNil(t, r.Get(f), f)
	}
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales-1.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("data"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "processed"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "processed", "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "sales-1.csv", files[0].Name)
	assert.Equal(t, int64(4), files[0].Size)
}

func TestScan_MissingDir(t *testing.T) {
	files, err := Scan(filepath.Join(t.TempDir(), "import"))
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales-1.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "sales-1.csv"))

	_, err := os.Stat(filepath.Join(dir, "sales-1.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "processed", "sales-1.csv"))
	assert.NoError(t, err)
}

// recordingDispatcher returns canned results keyed by posting key.
type recordingDispatcher struct {
	keys    []string
	results map[string]posting.Result
	fail    string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev posting.Event) (posting.Result, error) {
	key := posting.Key(ev)
	if key == d.fail {
		return posting.Result{}, errors.New("outbox unavailable")
	}
	d.keys = append(d.keys, key)
	return d.results[key], nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestImporterRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sales-a.csv", "order_id,date,total\nO1,2026-03-14,10\nO2,2026-03-14,20\nO3,2026-03-14,30\n")
	writeFile(t, dir, "payments-a.csv", "payment_id,date,direction,amount\nP1,2026-03-14,customer,5\n")

	d := &recordingDispatcher{results: map[string]posting.Result{
		"Order:O2": {Duplicate: true},
		"Order:O3": {Queued: true},
	}}
	results, err := New(d).Run(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byName := map[string]FileResult{}
	for _, r := range results {
		byName[r.Name] = r
	}
	sales := byName["sales-a.csv"]
	assert.Equal(t, 3, sales.Events)
	assert.Equal(t, 1, sales.Posted)
	assert.Equal(t, 1, sales.Duplicates)
	assert.Equal(t, 1, sales.Queued)
	assert.Equal(t, 1, byName["payments-a.csv"].Posted)
	assert.Contains(t, d.keys, "Payment:P1")

	left, err := Scan(dir)
	require.NoError(t, err)
	assert.Empty(t, left, "all files moved to processed")
}

func TestImporterLeavesFailedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sales-a.csv", "order_id,date,total\nO1,2026-03-14,10\nO2,2026-03-14,20\n")
	writeFile(t, dir, "unknown-a.csv", "x\n1\n")
	writeFile(t, dir, "returns-a.csv", "return_id,date\n")

	d := &recordingDispatcher{fail: "Order:O2"}
	results, err := New(d).Run(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox unavailable")
	assert.Contains(t, err.Error(), `no parser for format "unknown"`)
	assert.Contains(t, err.Error(), "missing columns: refund_value")
	assert.Len(t, results, 3)

	left, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, left, 3)
	assert.Equal(t, []string{"Order:O1"}, d.keys)
}
