package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

// decimalValue is a pflag.Value for money amounts.
type decimalValue struct{ d *decimal.Decimal }

var _ pflag.Value = decimalValue{}

func (v decimalValue) String() string {
	if v.d == nil {
		return "0"
	}
	return v.d.String()
}

func (v decimalValue) Set(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	*v.d = d
	return nil
}

func (v decimalValue) Type() string { return "amount" }

func decimalFlag(fs *pflag.FlagSet, p *decimal.Decimal, name, usage string) {
	fs.Var(decimalValue{p}, name, usage)
}

// dateValue is a pflag.Value for calendar dates in YYYY-MM-DD form.
type dateValue struct{ t *time.Time }

func (v dateValue) String() string {
	if v.t == nil || v.t.IsZero() {
		return ""
	}
	return v.t.Format(time.DateOnly)
}

func (v dateValue) Set(s string) error {
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	*v.t = t
	return nil
}

func (v dateValue) Type() string { return "date" }

func dateFlag(fs *pflag.FlagSet, p *time.Time, name, usage string) {
	fs.Var(dateValue{p}, name, usage)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// today is the current calendar day in UTC.
var today = func() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func orToday(t time.Time) time.Time {
	if t.IsZero() {
		return today()
	}
	return t
}

// asOfPtr returns nil for an unset date.
func asOfPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// splitAmount parses "CODE=AMOUNT".
func splitAmount(s string) (string, decimal.Decimal, error) {
	code, amt, ok := strings.Cut(s, "=")
	if !ok {
		return "", decimal.Zero, fmt.Errorf("invalid item %q (want CODE=AMOUNT)", s)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(amt))
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("invalid amount in %q", s)
	}
	return strings.TrimSpace(code), d, nil
}
