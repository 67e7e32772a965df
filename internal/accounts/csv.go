package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cleared-dev/tillbook/internal/model"
)

const (
	numFields  = 7
	colCode    = 0
	colName    = 1
	colType    = 2
	colSubType = 3
	colParent  = 4
	colEnabled = 5
	colDesc    = 6
)

var header = []string{"code", "name", "type", "subtype", "parent_code", "enabled", "description"}

// ReadAccounts reads a chart CSV file.
func ReadAccounts(r io.Reader) ([]ChartRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var rows []ChartRow
	for i, rec := range records[1:] {
		row, err := UnmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteAccounts writes a chart CSV file.
func WriteAccounts(w io.Writer, rows []ChartRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range rows {
		if err := cw.Write(MarshalRow(row)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalRow converts a ChartRow to a CSV record.
func MarshalRow(row ChartRow) []string {
	rec := make([]string, numFields)
	rec[colCode] = row.Code
	rec[colName] = row.Name
	rec[colType] = string(row.Type)
	rec[colSubType] = row.SubType
	rec[colParent] = row.ParentCode
	rec[colEnabled] = strconv.FormatBool(row.Enabled)
	rec[colDesc] = row.Description
	return rec
}

// UnmarshalRow converts a CSV record to a ChartRow.
func UnmarshalRow(record []string) (ChartRow, error) {
	if len(record) != numFields {
		return ChartRow{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	typ := model.AccountTypeName(strings.TrimSpace(record[colType]))
	if !typ.Valid() {
		return ChartRow{}, fmt.Errorf("unknown account type %q", record[colType])
	}

	enabled := true
	if s := strings.TrimSpace(record[colEnabled]); s != "" {
		var err error
		enabled, err = strconv.ParseBool(s)
		if err != nil {
			return ChartRow{}, fmt.Errorf("parsing enabled %q: %w", s, err)
		}
	}

	return ChartRow{
		Code:        strings.TrimSpace(record[colCode]),
		Name:        strings.TrimSpace(record[colName]),
		Type:        typ,
		SubType:     strings.TrimSpace(record[colSubType]),
		ParentCode:  strings.TrimSpace(record[colParent]),
		Enabled:     enabled,
		Description: record[colDesc],
	}, nil
}
