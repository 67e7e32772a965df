package accounts

import (
	"context"
	"fmt"
	"sort"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
)

// Posting roles. The posting adapters address accounts by role; the
// configuration maps each role to an account code.
const (
	RoleCash                = "cash"
	RoleAccountsReceivable  = "accounts_receivable"
	RoleAccountsPayable     = "accounts_payable"
	RoleInventory           = "inventory"
	RoleSalesRevenue        = "sales_revenue"
	RoleCostOfGoodsSold     = "cost_of_goods_sold"
	RoleInventoryAdjustment = "inventory_adjustment"
	RoleSalesTaxPayable     = "sales_tax_payable"
	RoleOwnersEquity        = "owners_equity"
)

// Roles lists every posting role.
var Roles = []string{
	RoleCash,
	RoleAccountsReceivable,
	RoleAccountsPayable,
	RoleInventory,
	RoleSalesRevenue,
	RoleCostOfGoodsSold,
	RoleInventoryAdjustment,
	RoleSalesTaxPayable,
	RoleOwnersEquity,
}

// DefaultCodes maps each role to its account in the starter chart.
func DefaultCodes() map[string]string {
	return map[string]string{
		RoleCash:                "1000",
		RoleAccountsReceivable:  "1100",
		RoleInventory:           "1200",
		RoleAccountsPayable:     "2000",
		RoleSalesTaxPayable:     "2100",
		RoleOwnersEquity:        "3000",
		RoleSalesRevenue:        "4000",
		RoleCostOfGoodsSold:     "5000",
		RoleInventoryAdjustment: "5100",
	}
}

// Chart holds the resolved well-known accounts.
type Chart struct {
	Cash                model.Account
	AccountsReceivable  model.Account
	AccountsPayable     model.Account
	Inventory           model.Account
	SalesRevenue        model.Account
	CostOfGoodsSold     model.Account
	InventoryAdjustment model.Account
	SalesTaxPayable     model.Account
	OwnersEquity        model.Account
}

func (c *Chart) slot(role string) *model.Account {
	switch role {
	case RoleCash:
		return &c.Cash
	case RoleAccountsReceivable:
		return &c.AccountsReceivable
	case RoleAccountsPayable:
		return &c.AccountsPayable
	case RoleInventory:
		return &c.Inventory
	case RoleSalesRevenue:
		return &c.SalesRevenue
	case RoleCostOfGoodsSold:
		return &c.CostOfGoodsSold
	case RoleInventoryAdjustment:
		return &c.InventoryAdjustment
	case RoleSalesTaxPayable:
		return &c.SalesTaxPayable
	case RoleOwnersEquity:
		return &c.OwnersEquity
	}
	return nil
}

// Account returns the account bound to role.
func (c *Chart) Account(role string) (model.Account, bool) {
	a := c.slot(role)
	if a == nil || a.ID == "" {
		return model.Account{}, false
	}
	return *a, true
}

// ResolveChart looks up every role's account by code. Roles absent from codes
// fall back to DefaultCodes. Any missing or disabled account fails with a
// PostingIntegrityError naming all of them.
func (r *Registry) ResolveChart(ctx context.Context, codes map[string]string) (*Chart, error) {
	defaults := DefaultCodes()
	for role := range codes {
		if _, known := defaults[role]; !known {
			return nil, errs.Validation("unknown posting role %q", role)
		}
	}

	chart := &Chart{}
	var missing []string
	for _, role := range Roles {
		code := codes[role]
		if code == "" {
			code = defaults[role]
		}
		a, err := r.store.GetAccountByCode(ctx, code)
		switch {
		case errs.IsNotFound(err):
			missing = append(missing, fmt.Sprintf("%s=%s (missing)", role, code))
			continue
		case err != nil:
			return nil, fmt.Errorf("resolving %s account: %w", role, err)
		case !a.Enabled:
			missing = append(missing, fmt.Sprintf("%s=%s (disabled)", role, code))
			continue
		}
		*chart.slot(role) = *a
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errs.PostingIntegrity("", "", missing...)
	}
	return chart, nil
}
