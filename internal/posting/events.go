// Package posting translates domain events from the point-of-sale side
// (sales, returns, stock adjustments, purchases, payments) into balanced
// ledger postings, and keeps failed postings in a durable outbox until they
// succeed.
package posting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tillbook/internal/model"
)

// Event is a domain event that produces one posting group.
type Event interface {
	// Reference is the ledger reference tag of the event's lines.
	Reference() model.Reference
	// SourceID identifies the originating record (order, return, ...).
	SourceID() string
}

// SaleEvent is a completed sale.
type SaleEvent struct {
	OrderID      string          `json:"order_id"`
	Total        decimal.Decimal `json:"total"`         // tax included
	CostEstimate decimal.Decimal `json:"cost_estimate"` // zero: net * cogs ratio
	Tax          decimal.Decimal `json:"tax"`
	Date         time.Time       `json:"date"`
	Customer     string          `json:"customer,omitempty"`
	OnAccount    bool            `json:"on_account,omitempty"`
}

func (e SaleEvent) Reference() model.Reference { return model.RefOrder }
func (e SaleEvent) SourceID() string           { return e.OrderID }

// ReturnKind distinguishes refunds from replacements.
type ReturnKind string

const (
	ReturnRefund      ReturnKind = "refund"
	ReturnReplacement ReturnKind = "replacement"
)

// ReturnEvent is an approved customer return.
type ReturnEvent struct {
	ReturnID         string          `json:"return_id"`
	RefundValue      decimal.Decimal `json:"refund_value"`
	Kind             ReturnKind      `json:"kind"`
	Date             time.Time       `json:"date"`
	RestockCost      decimal.Decimal `json:"restock_cost"`
	ReplacementValue decimal.Decimal `json:"replacement_value"`
	ReplacementCost  decimal.Decimal `json:"replacement_cost"` // zero: value * cogs ratio
	OnAccount        bool            `json:"on_account,omitempty"`
}

func (e ReturnEvent) Reference() model.Reference { return model.RefReturn }
func (e ReturnEvent) SourceID() string           { return e.ReturnID }

// AdjustmentLine is one product's quantity change in a stock adjustment.
type AdjustmentLine struct {
	ProductID string          `json:"product_id"`
	QtyDelta  decimal.Decimal `json:"qty_delta"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// StockAdjustmentEvent is a stock count correction. When Lines are given
// the increase and decrease values are derived from them.
type StockAdjustmentEvent struct {
	AdjustmentID  string           `json:"adjustment_id"`
	IncreaseValue decimal.Decimal  `json:"increase_value"`
	DecreaseValue decimal.Decimal  `json:"decrease_value"`
	Lines         []AdjustmentLine `json:"lines,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Date          time.Time        `json:"date"`
}

func (e StockAdjustmentEvent) Reference() model.Reference { return model.RefAdjustment }
func (e StockAdjustmentEvent) SourceID() string           { return e.AdjustmentID }

// Values returns the increase and decrease at cost, from Lines when present.
func (e StockAdjustmentEvent) Values() (increase, decrease decimal.Decimal) {
	if len(e.Lines) == 0 {
		return e.IncreaseValue, e.DecreaseValue
	}
	increase, decrease = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		v := l.QtyDelta.Abs().Mul(l.UnitCost)
		if l.QtyDelta.IsPositive() {
			increase = increase.Add(v)
		} else {
			decrease = decrease.Add(v)
		}
	}
	return increase.Round(2), decrease.Round(2)
}

// PurchaseEvent is received stock paid from a payout account. Kind is one of
// PurchaseOrder, GoodsReceipt or MarketPurchase.
type PurchaseEvent struct {
	PurchaseID        string          `json:"purchase_id"`
	Kind              model.Reference `json:"kind"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PayoutAccountCode string          `json:"payout_account_code,omitempty"` // "" = cash
	Date              time.Time       `json:"date"`
}

func (e PurchaseEvent) Reference() model.Reference { return e.Kind }
func (e PurchaseEvent) SourceID() string           { return e.PurchaseID }

// PaymentDirection says who is paid.
type PaymentDirection string

const (
	PaySupplier     PaymentDirection = "supplier"
	ReceiveCustomer PaymentDirection = "customer"
)

// PaymentEvent settles a supplier or customer balance.
type PaymentEvent struct {
	PaymentID   string           `json:"payment_id"`
	Direction   PaymentDirection `json:"direction"`
	Amount      decimal.Decimal  `json:"amount"`
	AccountCode string           `json:"account_code,omitempty"` // money account; "" = cash
	Date        time.Time        `json:"date"`
}

func (e PaymentEvent) Reference() model.Reference { return model.RefPayment }
func (e PaymentEvent) SourceID() string           { return e.PaymentID }

// Key returns the idempotency key of an event's posting group.
func Key(e Event) string {
	return model.PostingKey(e.Reference(), e.SourceID())
}
