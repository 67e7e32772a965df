package posting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tillbook/internal/accounts"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/ledger"
	"github.com/cleared-dev/tillbook/internal/model"
)

// DefaultCogsRatio estimates cost of goods sold as a share of net sales when
// a sale carries no cost.
var DefaultCogsRatio = decimal.RequireFromString("0.6")

// groupBuilder stamps the event's reference and date on every line.
type groupBuilder struct {
	group ledger.Group
	spec  ledger.LineSpec
}

func newGroup(ev Event, date time.Time, desc string) *groupBuilder {
	return &groupBuilder{
		group: ledger.Group{Key: Key(ev)},
		spec: ledger.LineSpec{
			Reference:   ev.Reference(),
			ReferenceID: ev.SourceID(),
			Date:        date,
			Description: desc,
		},
	}
}

func (b *groupBuilder) pair(debit, credit model.Account, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	d := b.spec
	d.AccountID = debit.ID
	d.Debit = amount
	c := b.spec
	c.AccountID = credit.ID
	c.Credit = amount
	b.group.Lines = append(b.group.Lines, d, c)
}

func (b *groupBuilder) debit(a model.Account, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	l := b.spec
	l.AccountID = a.ID
	l.Debit = amount
	b.group.Lines = append(b.group.Lines, l)
}

func (b *groupBuilder) credit(a model.Account, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	l := b.spec
	l.AccountID = a.ID
	l.Credit = amount
	b.group.Lines = append(b.group.Lines, l)
}

// requireRoles fails with a PostingIntegrityError for every role the chart does
// not carry.
func requireRoles(c *accounts.Chart, ev Event, roles ...string) error {
	if c == nil {
		return errs.PostingIntegrity(eventName(ev), ev.SourceID(), roles...)
	}
	var missing []string
	for _, role := range roles {
		if _, ok := c.Account(role); !ok {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return errs.PostingIntegrity(eventName(ev), ev.SourceID(), missing...)
	}
	return nil
}

func eventName(ev Event) string {
	switch ev.(type) {
	case SaleEvent, *SaleEvent:
		return "sale"
	case ReturnEvent, *ReturnEvent:
		return "return"
	case StockAdjustmentEvent, *StockAdjustmentEvent:
		return "stock adjustment"
	case PurchaseEvent, *PurchaseEvent:
		return "purchase"
	case PaymentEvent, *PaymentEvent:
		return "payment"
	}
	return string(ev.Reference())
}

func checkEvent(ev Event, problems []string) error {
	if ev.SourceID() == "" {
		problems = append([]string{"source id is required"}, problems...)
	}
	if len(problems) > 0 {
		return errs.Invalid(fmt.Sprintf("invalid %s event %q", eventName(ev), ev.SourceID()), problems)
	}
	return nil
}

func nonNegative(problems []string, field string, d decimal.Decimal) []string {
	if d.IsNegative() {
		return append(problems, field+" must not be negative")
	}
	return problems
}

// BuildSale posts a completed sale: the total to cash (or receivables when on
// account) against revenue net of tax and sales tax payable, and the cost
// from inventory to cost of goods sold.
func BuildSale(c *accounts.Chart, cogsRatio decimal.Decimal, e SaleEvent) (ledger.Group, error) {
	var problems []string
	if !e.Total.IsPositive() {
		problems = append(problems, "total must be greater than zero")
	}
	problems = nonNegative(problems, "tax", e.Tax)
	problems = nonNegative(problems, "cost estimate", e.CostEstimate)
	if e.Tax.GreaterThan(e.Total) {
		problems = append(problems, "tax exceeds total")
	}
	if e.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if err := checkEvent(e, problems); err != nil {
		return ledger.Group{}, err
	}

	moneyRole := accounts.RoleCash
	if e.OnAccount {
		moneyRole = accounts.RoleAccountsReceivable
	}
	roles := []string{moneyRole, accounts.RoleSalesRevenue, accounts.RoleCostOfGoodsSold, accounts.RoleInventory}
	if e.Tax.IsPositive() {
		roles = append(roles, accounts.RoleSalesTaxPayable)
	}
	if err := requireRoles(c, e, roles...); err != nil {
		return ledger.Group{}, err
	}

	money, _ := c.Account(moneyRole)
	net := e.Total.Sub(e.Tax)
	cost := e.CostEstimate
	if cost.IsZero() {
		cost = net.Mul(cogsRatio).Round(2)
	}

	desc := "Sale " + e.OrderID
	if e.Customer != "" {
		desc += " to " + e.Customer
	}
	b := newGroup(e, e.Date, desc)
	b.debit(money, e.Total)
	b.credit(c.SalesRevenue, net)
	b.credit(c.SalesTaxPayable, e.Tax)
	b.pair(c.CostOfGoodsSold, c.Inventory, cost)
	return b.group, nil
}

// BuildReturn posts an approved return: the refund reverses revenue, a
// restocked cost moves back from cost of goods sold to inventory, and a
// replacement is booked like a new sale.
func BuildReturn(c *accounts.Chart, cogsRatio decimal.Decimal, e ReturnEvent) (ledger.Group, error) {
	var problems []string
	switch e.Kind {
	case ReturnRefund, ReturnReplacement:
	default:
		problems = append(problems, fmt.Sprintf("unknown return kind %q", e.Kind))
	}
	problems = nonNegative(problems, "refund value", e.RefundValue)
	problems = nonNegative(problems, "restock cost", e.RestockCost)
	problems = nonNegative(problems, "replacement value", e.ReplacementValue)
	problems = nonNegative(problems, "replacement cost", e.ReplacementCost)
	if e.Kind == ReturnRefund && !e.RefundValue.IsPositive() {
		problems = append(problems, "refund value must be greater than zero")
	}
	if e.Kind == ReturnReplacement && !e.ReplacementValue.IsPositive() && !e.RefundValue.IsPositive() {
		problems = append(problems, "replacement needs a refund or replacement value")
	}
	if e.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if err := checkEvent(e, problems); err != nil {
		return ledger.Group{}, err
	}

	moneyRole := accounts.RoleCash
	if e.OnAccount {
		moneyRole = accounts.RoleAccountsReceivable
	}
	roles := []string{moneyRole, accounts.RoleSalesRevenue}
	if e.RestockCost.IsPositive() || e.Kind == ReturnReplacement {
		roles = append(roles, accounts.RoleInventory, accounts.RoleCostOfGoodsSold)
	}
	if err := requireRoles(c, e, roles...); err != nil {
		return ledger.Group{}, err
	}

	money, _ := c.Account(moneyRole)
	b := newGroup(e, e.Date, "Return "+e.ReturnID)
	b.pair(c.SalesRevenue, money, e.RefundValue)
	b.pair(c.Inventory, c.CostOfGoodsSold, e.RestockCost)

	if e.Kind == ReturnReplacement {
		cost := e.ReplacementCost
		if cost.IsZero() {
			cost = e.ReplacementValue.Mul(cogsRatio).Round(2)
		}
		b.spec.Description = "Replacement for return " + e.ReturnID
		b.pair(money, c.SalesRevenue, e.ReplacementValue)
		b.pair(c.CostOfGoodsSold, c.Inventory, cost)
	}
	return b.group, nil
}

// BuildStockAdjustment posts the net value of a stock count correction
// between inventory and inventory adjustments. A zero net yields a group
// without lines, which is not posted.
func BuildStockAdjustment(c *accounts.Chart, e StockAdjustmentEvent) (ledger.Group, error) {
	var problems []string
	problems = nonNegative(problems, "increase value", e.IncreaseValue)
	problems = nonNegative(problems, "decrease value", e.DecreaseValue)
	for i, l := range e.Lines {
		if l.UnitCost.IsNegative() {
			problems = append(problems, fmt.Sprintf("line %d: unit cost must not be negative", i+1))
		}
	}
	if e.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if err := checkEvent(e, problems); err != nil {
		return ledger.Group{}, err
	}

	increase, decrease := e.Values()
	net := increase.Sub(decrease)
	if net.IsZero() {
		return ledger.Group{Key: Key(e)}, nil
	}
	if err := requireRoles(c, e, accounts.RoleInventory, accounts.RoleInventoryAdjustment); err != nil {
		return ledger.Group{}, err
	}

	desc := "Stock adjustment " + e.AdjustmentID
	if e.Reason != "" {
		desc += ": " + e.Reason
	}
	b := newGroup(e, e.Date, desc)
	if net.IsPositive() {
		b.pair(c.Inventory, c.InventoryAdjustment, net)
	} else {
		b.pair(c.InventoryAdjustment, c.Inventory, net.Neg())
	}
	return b.group, nil
}

// BuildPurchase posts received stock against the payout account.
func BuildPurchase(c *accounts.Chart, payout model.Account, e PurchaseEvent) (ledger.Group, error) {
	var problems []string
	switch e.Kind {
	case model.RefPurchaseOrder, model.RefGoodsReceipt, model.RefMarketPurchase:
	default:
		problems = append(problems, fmt.Sprintf("unknown purchase kind %q", e.Kind))
	}
	if !e.TotalAmount.IsPositive() {
		problems = append(problems, "total amount must be greater than zero")
	}
	if e.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if err := checkEvent(e, problems); err != nil {
		return ledger.Group{}, err
	}
	if err := requireRoles(c, e, accounts.RoleInventory); err != nil {
		return ledger.Group{}, err
	}
	if payout.ID == "" {
		return ledger.Group{}, errs.PostingIntegrity(eventName(e), e.PurchaseID, "payout account")
	}

	b := newGroup(e, e.Date, fmt.Sprintf("Purchase %s (%s)", e.PurchaseID, e.Kind))
	b.pair(c.Inventory, payout, e.TotalAmount)
	return b.group, nil
}

// BuildPayment posts a supplier payment (payables paid from money) or a
// customer payment (receivables collected into money).
func BuildPayment(c *accounts.Chart, money model.Account, e PaymentEvent) (ledger.Group, error) {
	var problems []string
	switch e.Direction {
	case PaySupplier, ReceiveCustomer:
	default:
		problems = append(problems, fmt.Sprintf("unknown payment direction %q", e.Direction))
	}
	if !e.Amount.IsPositive() {
		problems = append(problems, "amount must be greater than zero")
	}
	if e.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if err := checkEvent(e, problems); err != nil {
		return ledger.Group{}, err
	}
	if money.ID == "" {
		return ledger.Group{}, errs.PostingIntegrity(eventName(e), e.PaymentID, "payment account")
	}

	if e.Direction == PaySupplier {
		if err := requireRoles(c, e, accounts.RoleAccountsPayable); err != nil {
			return ledger.Group{}, err
		}
		b := newGroup(e, e.Date, "Supplier payment "+e.PaymentID)
		b.pair(c.AccountsPayable, money, e.Amount)
		return b.group, nil
	}

	if err := requireRoles(c, e, accounts.RoleAccountsReceivable); err != nil {
		return ledger.Group{}, err
	}
	b := newGroup(e, e.Date, "Customer payment "+e.PaymentID)
	b.pair(money, c.AccountsReceivable, e.Amount)
	return b.group, nil
}
