package accounts

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/model"
)

func TestRoundTrip(t *testing.T) {
	rows := []ChartRow{
		{Code: "1000", Name: "Cash", Type: model.AccountTypeAsset, SubType: "Current Assets", Enabled: true, Description: "Till, drawer and bank"},
		{Code: "1010", Name: "Till Float", Type: model.AccountTypeAsset, ParentCode: "1000", Enabled: false},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, rows))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestReadAccountsEmptyEnabledMeansTrue(t *testing.T) {
	in := "code,name,type,subtype,parent_code,enabled,description\n6000,Rent,Expense,,,,\n"
	got, err := ReadAccounts(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Enabled)
}

func TestReadAccountsErrors(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"unknown type", "6000,Rent,Overhead,,,true,", "unknown account type"},
		{"bad enabled", "6000,Rent,Expense,,,maybe,", "parsing enabled"},
		{"short row", "6000,Rent,Expense", "wrong number of fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := strings.Join(header, ",") + "\n" + tt.row + "\n"
			_, err := ReadAccounts(strings.NewReader(in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadAccountsEmptyInput(t *testing.T) {
	got, err := ReadAccounts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDefaultChart(t *testing.T) {
	chart := DefaultChart()
	require.Len(t, chart, 18)

	codes := make(map[string]bool)
	for _, row := range chart {
		codes[row.Code] = true
		assert.NotEmpty(t, row.Name, "account %s missing name", row.Code)
		assert.True(t, row.Type.Valid(), "account %s has invalid type", row.Code)
		assert.True(t, row.Enabled)
	}
	for _, code := range DefaultCodes() {
		assert.True(t, codes[code], "well-known code %s missing from default chart", code)
	}
}

func TestDefaultChartSubTypesExist(t *testing.T) {
	known := make(map[string]model.AccountTypeName)
	for _, st := range DefaultSubTypes() {
		known[st.Name] = st.Type
	}
	for _, row := range DefaultChart() {
		typ, ok := known[row.SubType]
		require.True(t, ok, "account %s: sub-type %q not seeded", row.Code, row.SubType)
		assert.Equal(t, row.Type, typ, "account %s: sub-type of another type", row.Code)
	}
}

func TestDefaultChartRoundTrip(t *testing.T) {
	chart := DefaultChart()

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, chart))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, chart, got)
}

func TestReadTestdata(t *testing.T) {
	f, err := os.Open("../../testdata/chart-of-accounts.csv")
	require.NoError(t, err)
	defer f.Close()

	rows, err := ReadAccounts(f)
	require.NoError(t, err)
	require.Len(t, rows, 12)

	types := make(map[model.AccountTypeName]bool)
	for _, row := range rows {
		types[row.Type] = true
	}
	for _, typ := range []model.AccountTypeName{model.AccountTypeAsset, model.AccountTypeLiability,
		model.AccountTypeEquity, model.AccountTypeIncome, model.AccountTypeCOGS, model.AccountTypeExpense} {
		assert.True(t, types[typ], "no %s account in testdata", typ)
	}
	assert.Equal(t, "1000", rows[1].ParentCode)
	assert.False(t, rows[11].Enabled)
}
