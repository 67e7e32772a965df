package accounts

import "github.com/cleared-dev/tillbook/internal/model"

// ChartRow describes one account by names and codes rather than ids. It is
// the unit of the seeded chart and of the chart CSV file.
type ChartRow struct {
	Code        string
	Name        string
	Type        model.AccountTypeName
	SubType     string // sub-type name within Type; "" for none
	ParentCode  string
	Enabled     bool
	Description string
}

// SubTypeRow names a sub-type within an account type.
type SubTypeRow struct {
	Name string
	Type model.AccountTypeName
}

// DefaultSubTypes returns the reporting groups seeded with the starter chart.
func DefaultSubTypes() []SubTypeRow {
	return []SubTypeRow{
		{Name: "Current Assets", Type: model.AccountTypeAsset},
		{Name: "Current Liabilities", Type: model.AccountTypeLiability},
		{Name: "Owner's Equity", Type: model.AccountTypeEquity},
		{Name: "Operating Revenue", Type: model.AccountTypeIncome},
		{Name: "Other Income", Type: model.AccountTypeIncome},
		{Name: "Cost of Sales", Type: model.AccountTypeCOGS},
		{Name: "Operating Expenses", Type: model.AccountTypeExpense},
	}
}

// DefaultChart returns the starter chart of accounts for a retail store.
func DefaultChart() []ChartRow {
	return []ChartRow{
		{Code: "1000", Name: "Cash", Type: model.AccountTypeAsset, SubType: "Current Assets", Enabled: true, Description: "Till and bank cash"},
		{Code: "1100", Name: "Accounts Receivable", Type: model.AccountTypeAsset, SubType: "Current Assets", Enabled: true, Description: "Customer balances on account"},
		{Code: "1200", Name: "Inventory", Type: model.AccountTypeAsset, SubType: "Current Assets", Enabled: true, Description: "Stock on hand at cost"},
		{Code: "1300", Name: "Prepaid Expenses", Type: model.AccountTypeAsset, SubType: "Current Assets", Enabled: true},
		{Code: "2000", Name: "Accounts Payable", Type: model.AccountTypeLiability, SubType: "Current Liabilities", Enabled: true, Description: "Amounts owed to suppliers"},
		{Code: "2100", Name: "Sales Tax Payable", Type: model.AccountTypeLiability, SubType: "Current Liabilities", Enabled: true},
		{Code: "3000", Name: "Owner's Equity", Type: model.AccountTypeEquity, SubType: "Owner's Equity", Enabled: true},
		{Code: "3100", Name: "Retained Earnings", Type: model.AccountTypeEquity, SubType: "Owner's Equity", Enabled: true},
		{Code: "4000", Name: "Sales Revenue", Type: model.AccountTypeIncome, SubType: "Operating Revenue", Enabled: true},
		{Code: "4100", Name: "Other Income", Type: model.AccountTypeIncome, SubType: "Other Income", Enabled: true},
		{Code: "5000", Name: "Cost of Goods Sold", Type: model.AccountTypeCOGS, SubType: "Cost of Sales", Enabled: true},
		{Code: "5100", Name: "Inventory Adjustments", Type: model.AccountTypeCOGS, SubType: "Cost of Sales", Enabled: true, Description: "Shrinkage, damage and count corrections"},
		{Code: "6000", Name: "Rent", Type: model.AccountTypeExpense, SubType: "Operating Expenses", Enabled: true},
		{Code: "6100", Name: "Utilities", Type: model.AccountTypeExpense, SubType: "Operating Expenses", Enabled: true},
		{Code: "6200", Name: "Salaries & Wages", Type: model.AccountTypeExpense, SubType: "Operating Expenses", Enabled: true},
		{Code: "6300", Name: "Office Supplies", Type: model.AccountTypeExpense, SubType: "Operating Expenses", Enabled: true},
		{Code: "6400", Name: "Bank Fees", Type: model.AccountTypeExpense, SubType: "Operating Expenses", Enabled: true},
		{Code: "6500", Name: "Marketing", Type: model.AccountTypeExpense, SubType: "Operating Expenses", Enabled: true},
	}
}
