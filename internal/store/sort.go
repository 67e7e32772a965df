package store

import (
	"sort"

	"github.com/cleared-dev/tillbook/internal/model"
)

// SortLines orders lines by date descending, then Seq ascending.
func SortLines(lines []model.TransactionLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].Date.Equal(lines[j].Date) {
			return lines[i].Date.After(lines[j].Date)
		}
		return lines[i].Seq < lines[j].Seq
	})
}

// SortJournalEntries orders entries by document number. Shorter numbers sort
// first so "JE-100000" follows "JE-99999".
func SortJournalEntries(entries []model.JournalEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Number, entries[j].Number
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
}

// SortAccounts orders accounts by code.
func SortAccounts(accounts []model.Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Code < accounts[j].Code
	})
}
