package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := New(PrefixAccount)
	b := New(PrefixAccount)

	assert.True(t, strings.HasPrefix(a, "acct_"), "got %s", a)
	assert.NotEqual(t, a, b)
	assert.True(t, HasPrefix(a, PrefixAccount))
	assert.False(t, HasPrefix(a, PrefixJournalEntry))
	assert.False(t, HasPrefix("not-an-id", PrefixAccount))
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		prefix string
		seq    int64
		want   string
	}{
		{"JE", 1, "JE-00001"},
		{"JE", 99, "JE-00099"},
		{"PO", 12345, "PO-12345"},
		{"ADJ", 123456, "ADJ-123456"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.prefix, tt.seq))
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input      string
		wantPrefix string
		wantSeq    int64
	}{
		{"JE-00001", "JE", 1},
		{"PO-12345", "PO", 12345},
		{"ADJ-000042", "ADJ", 42},
	}
	for _, tt := range tests {
		prefix, seq, err := ParseNumber(tt.input)
		require.NoError(t, err, "input: %s", tt.input)
		assert.Equal(t, tt.wantPrefix, prefix)
		assert.Equal(t, tt.wantSeq, seq)
	}
}

func TestParseNumber_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"JE",
		"JE-",
		"-00001",
		"JE-abc",
		"JE-00000",
	}
	for _, input := range badInputs {
		_, _, err := ParseNumber(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range AllSeries {
		number := FormatNumber(s.Prefix, 7)
		prefix, seq, err := ParseNumber(number)
		require.NoError(t, err)
		assert.Equal(t, s.Prefix, prefix)
		assert.Equal(t, int64(7), seq)
	}
}
