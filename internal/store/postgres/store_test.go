package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/store"
	"github.com/cleared-dev/tillbook/internal/store/storetest"
)

const dropAll = `
DROP TABLE IF EXISTS pending_postings, sequences, transaction_lines, posting_keys,
    journal_items, journal_entries, accounts, account_subtypes, account_types CASCADE`

// TestConformance needs a throwaway database, e.g.
// TILLBOOK_TEST_POSTGRES_DSN=postgres://localhost/tillbook_test?sslmode=disable
// Every subtest drops and recreates the schema.
func TestConformance(t *testing.T) {
	dsn := os.Getenv("TILLBOOK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TILLBOOK_TEST_POSTGRES_DSN not set")
	}

	storetest.RunSuite(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := Open(ctx, dsn)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, dropAll)
		require.NoError(t, err)
		require.NoError(t, s.Migrate(ctx))
		t.Cleanup(func() { s.Close() })
		return s
	})
}
