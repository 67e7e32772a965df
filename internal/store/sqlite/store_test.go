package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/store"
	"github.com/cleared-dev/tillbook/internal/store/storetest"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.RunSuite(t, func(t *testing.T) store.Store {
		return openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, s.Migrate(context.Background()))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	f := storetest.Seed(t, s)
	d := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertGroup(ctx, storetest.Sale(f, "ord_1", d, "12.34")))
	n, err := s.NextSequence(ctx, "journal_entry")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, s.Close())

	s = openTestStore(t, path)
	lines, err := s.QueryLines(ctx, model.LineFilter{AccountID: f.Cash.ID})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "12.34", lines[0].Debit.StringFixed(2))
	assert.True(t, d.Equal(lines[0].Date))

	n, err = s.NextSequence(ctx, "journal_entry")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "sequence survives reopen")
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	a := formatTime(time.Date(2025, 1, 9, 23, 0, 0, 0, time.UTC))
	b := formatTime(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	assert.Less(t, a, b)

	back, err := parseTime(b)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), back)
}
