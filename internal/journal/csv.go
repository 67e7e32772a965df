package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// ItemsHeader is the CSV header for journal item files.
const ItemsHeader = "account_code,description,debit,credit"

const (
	numFields = 4
	colCode   = 0
	colDesc   = 1
	colDebit  = 2
	colCredit = 3
)

// ItemRow is one journal item addressed by account code.
type ItemRow struct {
	AccountCode string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// ReadItems reads journal items from CSV. Blank amounts are zero.
func ReadItems(r io.Reader) ([]ItemRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading items CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var items []ItemRow
	for i, rec := range records[1:] {
		item, err := UnmarshalItem(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// WriteItems writes items with a header row.
func WriteItems(w io.Writer, items []ItemRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(ItemsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, item := range items {
		if err := cw.Write(MarshalItem(item)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalItem converts an ItemRow to a CSV record.
func MarshalItem(item ItemRow) []string {
	row := make([]string, numFields)
	row[colCode] = item.AccountCode
	row[colDesc] = item.Description
	if !item.Debit.IsZero() {
		row[colDebit] = item.Debit.StringFixed(2)
	}
	if !item.Credit.IsZero() {
		row[colCredit] = item.Credit.StringFixed(2)
	}
	return row
}

// UnmarshalItem converts a CSV record to an ItemRow.
func UnmarshalItem(record []string) (ItemRow, error) {
	if len(record) != numFields {
		return ItemRow{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	debit, err := parseAmount(record[colDebit])
	if err != nil {
		return ItemRow{}, fmt.Errorf("parsing debit: %w", err)
	}
	credit, err := parseAmount(record[colCredit])
	if err != nil {
		return ItemRow{}, fmt.Errorf("parsing credit: %w", err)
	}

	return ItemRow{
		AccountCode: strings.TrimSpace(record[colCode]),
		Description: record[colDesc],
		Debit:       debit,
		Credit:      credit,
	}, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}
