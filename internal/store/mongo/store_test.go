package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/store"
	"github.com/cleared-dev/tillbook/internal/store/storetest"
)

// TestConformance needs a replica-set MongoDB, e.g.
// TILLBOOK_TEST_MONGO_URI=mongodb://localhost:27017/?replicaSet=rs0
func TestConformance(t *testing.T) {
	uri := os.Getenv("TILLBOOK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TILLBOOK_TEST_MONGO_URI not set")
	}

	n := 0
	storetest.RunSuite(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		n++
		db := fmt.Sprintf("tillbook_test_%d_%d", time.Now().UnixNano(), n)

		s, err := Open(ctx, uri, db)
		require.NoError(t, err)
		require.NoError(t, s.Migrate(ctx))
		t.Cleanup(func() {
			_ = s.db.Drop(context.Background())
			s.Close()
		})
		return s
	})
}
