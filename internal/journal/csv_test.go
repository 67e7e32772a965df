package journal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemsRoundTrip(t *testing.T) {
	items := []ItemRow{
		{AccountCode: "6000", Description: "March rent", Debit: decimal.RequireFromString("1200.00")},
		{AccountCode: "1000", Description: "paid, by transfer", Credit: decimal.RequireFromString("1200.00")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteItems(&buf, items))

	got, err := ReadItems(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range items {
		assert.Equal(t, items[i].AccountCode, got[i].AccountCode)
		assert.Equal(t, items[i].Description, got[i].Description)
		assert.True(t, items[i].Debit.Equal(got[i].Debit))
		assert.True(t, items[i].Credit.Equal(got[i].Credit))
	}
}

func TestReadItemsBlankAmounts(t *testing.T) {
	in := ItemsHeader + "\n6000,,50,\n1000,, ,50\n"
	got, err := ReadItems(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Credit.IsZero())
	assert.True(t, got[1].Debit.IsZero())
	assert.Equal(t, "50", got[1].Credit.String())
}

func TestReadItemsBadAmount(t *testing.T) {
	in := ItemsHeader + "\n6000,,fifty,\n"
	_, err := ReadItems(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "parsing debit")
}
