package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/storage"
)

func ptr[T any](v T) *T { return &v }

func TestTradeStore_InsertIdempotent(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trade := &domain.Trade{Signature: "sig1", Timestamp: 100, Mint: "M", BaseDelta: 2, QuoteMint: ptr("Q"), QuoteDelta: ptr(-4.0), Price: ptr(2.0)}

	res, err := store.Insert(ctx, trade)
	require.NoError(t, err)
	assert.Equal(t, storage.Inserted, res)

	changed := *trade
	changed.BaseDelta = 99
	res, err = store.Insert(ctx, &changed)
	require.NoError(t, err)
	assert.Equal(t, storage.Duplicate, res)

	rows, err := store.Query(ctx, "M", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2.0, rows[0].BaseDelta, "duplicate insert must not alter stored row")
	assert.Equal(t, 1, store.Len())
}

func TestTradeStore_InsertInvalid(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	for _, tr := range []*domain.Trade{
		nil,
		{Signature: "", Mint: "M", BaseDelta: 1},
		{Signature: "s", Mint: "", BaseDelta: 1},
		{Signature: "s", Mint: "M", BaseDelta: 0},
	} {
		_, err := store.Insert(ctx, tr)
		assert.ErrorIs(t, err, storage.ErrInvalidInput)
	}
}

func TestTradeStore_QueryOrderedAndSince(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	for _, tr := range []*domain.Trade{
		{Signature: "c", Timestamp: 300, Mint: "M", BaseDelta: 1},
		{Signature: "a", Timestamp: 100, Mint: "M", BaseDelta: 1},
		{Signature: "z", Timestamp: 200, Mint: "M", BaseDelta: 1},
		{Signature: "b", Timestamp: 200, Mint: "M", BaseDelta: 1},
		{Signature: "x", Timestamp: 150, Mint: "OTHER", BaseDelta: 1},
	} {
		_, err := store.Insert(ctx, tr)
		require.NoError(t, err)
	}

	rows, err := store.Query(ctx, "M", nil)
	require.NoError(t, err)
	var sigs []string
	for _, r := range rows {
		sigs = append(sigs, r.Signature)
	}
	assert.Equal(t, []string{"a", "b", "z", "c"}, sigs)

	rows, err = store.Query(ctx, "M", ptr(int64(200)))
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = store.Query(ctx, "NONE", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTradeStore_QueryReturnsCopies(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	_, err := store.Insert(ctx, &domain.Trade{Signature: "s", Timestamp: 1, Mint: "M", BaseDelta: 1, Price: ptr(5.0)})
	require.NoError(t, err)

	rows, _ := store.Query(ctx, "M", nil)
	*rows[0].Price = 999

	rows, _ = store.Query(ctx, "M", nil)
	assert.Equal(t, 5.0, *rows[0].Price)
}

func TestTradeStore_WindowSums(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()
	now := int64(1_700_000_000)
	stables := domain.NewStableSet("USDC")

	for _, tr := range []*domain.Trade{
		{Signature: "1", Timestamp: now - 30, Mint: "M", BaseDelta: 2, QuoteMint: ptr("USDC"), Price: ptr(3.0)},
		{Signature: "2", Timestamp: now - 120, Mint: "M", BaseDelta: -3, QuoteMint: ptr("SOL"), Price: ptr(0.1)},
		{Signature: "3", Timestamp: now - 2000, Mint: "M", BaseDelta: 1.5},
		{Signature: "4", Timestamp: now + 50, Mint: "M", BaseDelta: 10},
	} {
		_, err := store.Insert(ctx, tr)
		require.NoError(t, err)
	}

	sums, err := store.WindowSums(ctx, "M", now, stables)
	require.NoError(t, err)
	require.Len(t, sums, 4)

	// ts >= now - window, no upper bound
	assert.Equal(t, domain.WindowSum{Label: "1m", Token: 12, StableUSD: 6, StableTrades: 1}, sums[0])
	assert.Equal(t, domain.WindowSum{Label: "5m", Token: 15, StableUSD: 6, StableTrades: 1}, sums[1])
	assert.Equal(t, domain.WindowSum{Label: "15m", Token: 15, StableUSD: 6, StableTrades: 1}, sums[2])
	assert.Equal(t, domain.WindowSum{Label: "1h", Token: 16.5, StableUSD: 6, StableTrades: 1}, sums[3])
}

func TestTradeStore_ConcurrentDuplicateInserts(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Insert(ctx, &domain.Trade{Signature: "same", Timestamp: 1, Mint: "M", BaseDelta: 1})
			assert.NoError(t, err)
			if res == storage.Inserted {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, store.Len())
}
