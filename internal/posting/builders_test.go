package posting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/accounts"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/ledger"
	"github.com/cleared-dev/tillbook/internal/model"
)

var day = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func acct(id, code string) model.Account {
	return model.Account{ID: id, Code: code, Enabled: true}
}

func testChart() *accounts.Chart {
	return &accounts.Chart{
		Cash:                acct("cash", "1000"),
		AccountsReceivable:  acct("ar", "1100"),
		Inventory:           acct("inv", "1200"),
		AccountsPayable:     acct("ap", "2000"),
		SalesTaxPayable:     acct("tax", "2100"),
		OwnersEquity:        acct("eq", "3000"),
		SalesRevenue:        acct("rev", "4000"),
		CostOfGoodsSold:     acct("cogs", "5000"),
		InventoryAdjustment: acct("adj", "5100"),
	}
}

// sides renders a group as "account:D amount" / "account:C amount" strings.
func sides(g ledger.Group) []string {
	var out []string
	for _, l := range g.Lines {
		if l.Debit.IsPositive() {
			out = append(out, l.AccountID+":D "+l.Debit.StringFixed(2))
		} else {
			out = append(out, l.AccountID+":C "+l.Credit.StringFixed(2))
		}
	}
	return out
}

func TestBuildSale(t *testing.T) {
	tests := []struct {
		name string
		ev   SaleEvent
		want []string
	}{
		{
			name: "cash sale with cost",
			ev:   SaleEvent{OrderID: "ord_1", Total: dec("100"), CostEstimate: dec("60"), Date: day},
			want: []string{"cash:D 100.00", "rev:C 100.00", "cogs:D 60.00", "inv:C 60.00"},
		},
		{
			name: "cost estimated from ratio",
			ev:   SaleEvent{OrderID: "ord_2", Total: dec("25.55"), Date: day},
			want: []string{"cash:D 25.55", "rev:C 25.55", "cogs:D 15.33", "inv:C 15.33"},
		},
		{
			name: "tax split out of revenue",
			ev:   SaleEvent{OrderID: "ord_3", Total: dec("110"), Tax: dec("10"), CostEstimate: dec("40"), Date: day},
			want: []string{"cash:D 110.00", "rev:C 100.00", "tax:C 10.00", "cogs:D 40.00", "inv:C 40.00"},
		},
		{
			name: "on account",
			ev:   SaleEvent{OrderID: "ord_4", Total: dec("50"), CostEstimate: dec("20"), Date: day, OnAccount: true},
			want: []string{"ar:D 50.00", "rev:C 50.00", "cogs:D 20.00", "inv:C 20.00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := BuildSale(testChart(), DefaultCogsRatio, tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sides(g))
			assert.Equal(t, "Order:"+tt.ev.OrderID, g.Key)
			for _, l := range g.Lines {
				assert.Equal(t, model.RefOrder, l.Reference)
				assert.Equal(t, tt.ev.OrderID, l.ReferenceID)
			}
		})
	}
}

func TestBuildSaleRejects(t *testing.T) {
	tests := []struct {
		name string
		ev   SaleEvent
	}{
		{"zero total", SaleEvent{OrderID: "o", Date: day}},
		{"negative cost", SaleEvent{OrderID: "o", Total: dec("1"), CostEstimate: dec("-1"), Date: day}},
		{"tax above total", SaleEvent{OrderID: "o", Total: dec("1"), Tax: dec("2"), Date: day}},
		{"no date", SaleEvent{OrderID: "o", Total: dec("1")}},
		{"no order id", SaleEvent{Total: dec("1"), Date: day}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildSale(testChart(), DefaultCogsRatio, tt.ev)
			assert.True(t, errs.IsValidation(err), "got %v", err)
		})
	}
}

func TestBuildSaleMissingRole(t *testing.T) {
	c := testChart()
	c.SalesTaxPayable = model.Account{}

	_, err := BuildSale(c, DefaultCogsRatio, SaleEvent{OrderID: "ord_1", Total: dec("110"), Tax: dec("10"), Date: day})
	require.Error(t, err)
	assert.True(t, errs.IsPostingIntegrity(err))
	assert.Contains(t, err.Error(), accounts.RoleSalesTaxPayable)

	// Without tax the role is not needed.
	_, err = BuildSale(c, DefaultCogsRatio, SaleEvent{OrderID: "ord_1", Total: dec("110"), Date: day})
	assert.NoError(t, err)

	_, err = BuildSale(nil, DefaultCogsRatio, SaleEvent{OrderID: "ord_1", Total: dec("1"), Date: day})
	assert.True(t, errs.IsPostingIntegrity(err))
}

func TestBuildReturn(t *testing.T) {
	tests := []struct {
		name string
		ev   ReturnEvent
		want []string
	}{
		{
			name: "refund",
			ev:   ReturnEvent{ReturnID: "ret_1", Kind: ReturnRefund, RefundValue: dec("30"), Date: day},
			want: []string{"rev:D 30.00", "cash:C 30.00"},
		},
		{
			name: "refund with restock",
			ev:   ReturnEvent{ReturnID: "ret_2", Kind: ReturnRefund, RefundValue: dec("30"), RestockCost: dec("18"), Date: day},
			want: []string{"rev:D 30.00", "cash:C 30.00", "inv:D 18.00", "cogs:C 18.00"},
		},
		{
			name: "replacement",
			ev: ReturnEvent{
				ReturnID: "ret_3", Kind: ReturnReplacement, RefundValue: dec("20"), RestockCost: dec("12"),
				ReplacementValue: dec("20"), Date: day,
			},
			want: []string{
				"rev:D 20.00", "cash:C 20.00",
				"inv:D 12.00", "cogs:C 12.00",
				"cash:D 20.00", "rev:C 20.00",
				"cogs:D 12.00", "inv:C 12.00",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := BuildReturn(testChart(), DefaultCogsRatio, tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sides(g))
			assert.Equal(t, "Return:"+tt.ev.ReturnID, g.Key)
		})
	}
}

func TestBuildReturnRejects(t *testing.T) {
	_, err := BuildReturn(testChart(), DefaultCogsRatio, ReturnEvent{ReturnID: "r", Kind: "exchange", RefundValue: dec("1"), Date: day})
	assert.True(t, errs.IsValidation(err))

	_, err = BuildReturn(testChart(), DefaultCogsRatio, ReturnEvent{ReturnID: "r", Kind: ReturnRefund, Date: day})
	assert.True(t, errs.IsValidation(err))
}

func TestBuildStockAdjustment(t *testing.T) {
	t.Run("net increase", func(t *testing.T) {
		g, err := BuildStockAdjustment(testChart(), StockAdjustmentEvent{
			AdjustmentID: "adj_1", IncreaseValue: dec("40"), DecreaseValue: dec("15"), Date: day,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"inv:D 25.00", "adj:C 25.00"}, sides(g))
	})

	t.Run("net decrease from lines", func(t *testing.T) {
		g, err := BuildStockAdjustment(testChart(), StockAdjustmentEvent{
			AdjustmentID: "adj_2",
			Lines: []AdjustmentLine{
				{ProductID: "p1", QtyDelta: dec("-3"), UnitCost: dec("2.50")},
				{ProductID: "p2", QtyDelta: dec("1"), UnitCost: dec("4")},
			},
			Reason: "shrinkage",
			Date:   day,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"adj:D 3.50", "inv:C 3.50"}, sides(g))
		assert.Equal(t, "Stock adjustment adj_2: shrinkage", g.Lines[0].Description)
	})

	t.Run("zero net posts nothing", func(t *testing.T) {
		g, err := BuildStockAdjustment(testChart(), StockAdjustmentEvent{
			AdjustmentID: "adj_3", IncreaseValue: dec("10"), DecreaseValue: dec("10"), Date: day,
		})
		require.NoError(t, err)
		assert.Empty(t, g.Lines)
		assert.Equal(t, "Adjustment:adj_3", g.Key)
	})
}

func TestBuildPurchase(t *testing.T) {
	c := testChart()
	g, err := BuildPurchase(c, c.AccountsPayable, PurchaseEvent{
		PurchaseID: "po_1", Kind: model.RefPurchaseOrder, TotalAmount: dec("250"), Date: day,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"inv:D 250.00", "ap:C 250.00"}, sides(g))
	assert.Equal(t, "PurchaseOrder:po_1", g.Key)

	_, err = BuildPurchase(c, model.Account{}, PurchaseEvent{
		PurchaseID: "po_2", Kind: model.RefMarketPurchase, TotalAmount: dec("1"), Date: day,
	})
	assert.True(t, errs.IsPostingIntegrity(err))

	_, err = BuildPurchase(c, c.Cash, PurchaseEvent{PurchaseID: "po_3", Kind: model.RefOrder, TotalAmount: dec("1"), Date: day})
	assert.True(t, errs.IsValidation(err))
}

func TestBuildPayment(t *testing.T) {
	c := testChart()

	g, err := BuildPayment(c, c.Cash, PaymentEvent{PaymentID: "pay_1", Direction: PaySupplier, Amount: dec("80"), Date: day})
	require.NoError(t, err)
	assert.Equal(t, []string{"ap:D 80.00", "cash:C 80.00"}, sides(g))

	g, err = BuildPayment(c, c.Cash, PaymentEvent{PaymentID: "pay_2", Direction: ReceiveCustomer, Amount: dec("45"), Date: day})
	require.NoError(t, err)
	assert.Equal(t, []string{"cash:D 45.00", "ar:C 45.00"}, sides(g))

	_, err = BuildPayment(c, c.Cash, PaymentEvent{PaymentID: "pay_3", Direction: "sideways", Amount: dec("1"), Date: day})
	assert.True(t, errs.IsValidation(err))
}

func TestCodecRoundTripKeepsKey(t *testing.T) {
	events := []Event{
		SaleEvent{OrderID: "ord_1", Total: dec("100"), Date: day},
		ReturnEvent{ReturnID: "ret_1", Kind: ReturnRefund, RefundValue: dec("5"), Date: day},
		StockAdjustmentEvent{AdjustmentID: "adj_1", IncreaseValue: dec("3"), Date: day},
		PurchaseEvent{PurchaseID: "gr_1", Kind: model.RefGoodsReceipt, TotalAmount: dec("9"), Date: day},
		PaymentEvent{PaymentID: "pay_1", Direction: PaySupplier, Amount: dec("7"), Date: day},
	}
	for _, ev := range events {
		payload, err := Encode(ev)
		require.NoError(t, err)
		got, err := Decode(ev.Reference(), payload)
		require.NoError(t, err)
		assert.Equal(t, Key(ev), Key(got))
	}

	_, err := Decode(model.RefJournalEntry, []byte(`{}`))
	assert.Error(t, err)
}
