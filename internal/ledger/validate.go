package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tillbook/internal/model"
)

// Validate checks g against the posting rules and returns every violation.
// accounts maps the account ids named by g's lines to their records; an id
// absent from the map is unknown.
func Validate(g Group, accounts map[string]*model.Account) []string {
	var problems []string

	if g.Key == "" {
		problems = append(problems, "posting key is required")
	}
	if len(g.Lines) == 0 {
		return append(problems, "group has no lines")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, l := range g.Lines {
		n := i + 1

		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			problems = append(problems, fmt.Sprintf("line %d: negative amount", n))
		} else if l.Debit.IsPositive() == l.Credit.IsPositive() {
			problems = append(problems, fmt.Sprintf("line %d: must have exactly one of debit or credit", n))
		}

		if !twoDecimals(l.Debit) {
			problems = append(problems, fmt.Sprintf("line %d: debit %s has more than 2 decimal places", n, l.Debit))
		}
		if !twoDecimals(l.Credit) {
			problems = append(problems, fmt.Sprintf("line %d: credit %s has more than 2 decimal places", n, l.Credit))
		}

		if !l.Reference.Valid() {
			problems = append(problems, fmt.Sprintf("line %d: unknown reference %q", n, l.Reference))
		}
		if l.ReferenceID == "" {
			problems = append(problems, fmt.Sprintf("line %d: reference id is required", n))
		}
		if l.Date.IsZero() {
			problems = append(problems, fmt.Sprintf("line %d: date is required", n))
		}

		a, ok := accounts[l.AccountID]
		switch {
		case l.AccountID == "":
			problems = append(problems, fmt.Sprintf("line %d: account is required", n))
		case !ok || a == nil:
			problems = append(problems, fmt.Sprintf("line %d: unknown account %q", n, l.AccountID))
		case !a.Enabled:
			problems = append(problems, fmt.Sprintf("line %d: account %s is disabled", n, a.Code))
		}

		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
	}

	if !totalDebit.Equal(totalCredit) {
		problems = append(problems, fmt.Sprintf("unbalanced group: debits (%s) != credits (%s)",
			totalDebit.StringFixed(2), totalCredit.StringFixed(2)))
	}
	return problems
}

func twoDecimals(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
