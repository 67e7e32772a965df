// Package id generates record identifiers and formats sequential document
// numbers.
//
// Record IDs are TypeIDs ("acct_01h2xcejqtf2nbrexx3vqjhp41"): K-sortable,
// globally unique, and prefixed with the kind of record they name.
// Document numbers are human-facing ("JE-00001") and come from a store
// sequence.
package id

import (
	"fmt"
	"strconv"
	"strings"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record kind encoded in an ID.
type Prefix string

const (
	PrefixAccountType    Prefix = "atype"
	PrefixAccountSubType Prefix = "astype"
	PrefixAccount        Prefix = "acct"
	PrefixJournalEntry   Prefix = "je"
	PrefixJournalItem    Prefix = "jei"
	PrefixLine           Prefix = "txl"
	PrefixPending        Prefix = "pend"
)

// New generates a new ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) string {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return tid.String()
}

// HasPrefix reports whether s parses as a TypeID with the given prefix.
func HasPrefix(s string, prefix Prefix) bool {
	tid, err := typeid.Parse(s)
	if err != nil {
		return false
	}
	return tid.Prefix() == string(prefix)
}

// Series names a document-number sequence and its printed prefix.
type Series struct {
	Sequence string // store counter name
	Prefix   string // printed prefix, e.g. "JE"
}

// Known document series.
var (
	SeriesJournalEntry    = Series{Sequence: "journal_entry", Prefix: "JE"}
	SeriesPurchaseOrder   = Series{Sequence: "purchase_order", Prefix: "PO"}
	SeriesStockAdjustment = Series{Sequence: "stock_adjustment", Prefix: "ADJ"}
	SeriesReturn          = Series{Sequence: "return", Prefix: "RET"}
)

// AllSeries lists the known document series.
var AllSeries = []Series{SeriesJournalEntry, SeriesPurchaseOrder, SeriesStockAdjustment, SeriesReturn}

// FormatNumber returns a document number like "JE-00001".
func FormatNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%05d", prefix, seq)
}

// ParseNumber parses "JE-00001" into its prefix and sequence.
func ParseNumber(number string) (prefix string, seq int64, err error) {
	i := strings.LastIndexByte(number, '-')
	if i <= 0 || i == len(number)-1 {
		return "", 0, fmt.Errorf("invalid document number format: %q", number)
	}

	seq, err = strconv.ParseInt(number[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid sequence in document number %q: %w", number, err)
	}
	if seq <= 0 {
		return "", 0, fmt.Errorf("invalid sequence in document number %q: must be positive", number)
	}
	return number[:i], seq, nil
}
