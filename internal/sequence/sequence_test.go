package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/id"
	"github.com/cleared-dev/tillbook/internal/retry"
	"github.com/cleared-dev/tillbook/internal/store/memory"
)

func TestNextFormatsPerSeries(t *testing.T) {
	a := New(memory.New(), retry.NoRetry, nil)
	ctx := context.Background()

	n, err := a.Next(ctx, id.SeriesJournalEntry)
	require.NoError(t, err)
	assert.Equal(t, "JE-00001", n)

	n, err = a.Next(ctx, id.SeriesJournalEntry)
	require.NoError(t, err)
	assert.Equal(t, "JE-00002", n)

	n, err = a.Next(ctx, id.SeriesPurchaseOrder)
	require.NoError(t, err)
	assert.Equal(t, "PO-00001", n)
}

func TestNextConcurrentUnique(t *testing.T) {
	a := New(memory.New(), retry.NoRetry, nil)
	const n = 50

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := a.Next(context.Background(), id.SeriesReturn)
			require.NoError(t, err)
			mu.Lock()
			seen[num] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
	assert.True(t, seen["RET-00050"])
}
