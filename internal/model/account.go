package model

import "time"

// AccountTypeName classifies accounts in the chart of accounts.
type AccountTypeName string

const (
	AccountTypeAsset     AccountTypeName = "Asset"
	AccountTypeLiability AccountTypeName = "Liability"
	AccountTypeEquity    AccountTypeName = "Equity"
	AccountTypeIncome    AccountTypeName = "Income"
	AccountTypeCOGS      AccountTypeName = "Cost of Goods Sold"
	AccountTypeExpense   AccountTypeName = "Expense"
)

// AccountTypeNames lists the fixed set of account types in chart order.
var AccountTypeNames = []AccountTypeName{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeIncome,
	AccountTypeCOGS,
	AccountTypeExpense,
}

// Valid reports whether n is one of the fixed account types.
func (n AccountTypeName) Valid() bool {
	for _, t := range AccountTypeNames {
		if t == n {
			return true
		}
	}
	return false
}

// DebitNormal reports whether balances of this type grow with debits.
func (n AccountTypeName) DebitNormal() bool {
	switch n {
	case AccountTypeAsset, AccountTypeCOGS, AccountTypeExpense:
		return true
	default:
		return false
	}
}

// AccountType is a seeded, immutable top-level classification.
type AccountType struct {
	ID   string
	Name AccountTypeName
}

// AccountSubType groups accounts of one type for reporting.
type AccountSubType struct {
	ID     string
	Name   string
	TypeID string
}

// Account is the postable unit of the chart of accounts.
type Account struct {
	ID          string
	Code        string
	Name        string
	TypeID      string
	SubTypeID   string
	ParentID    string // "" = top-level
	Enabled     bool
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AccountFilter narrows ListAccounts. Zero values match everything.
type AccountFilter struct {
	TypeID  string
	Enabled *bool
}

// Match reports whether a satisfies the filter.
func (f AccountFilter) Match(a Account) bool {
	if f.TypeID != "" && a.TypeID != f.TypeID {
		return false
	}
	if f.Enabled != nil && a.Enabled != *f.Enabled {
		return false
	}
	return true
}
