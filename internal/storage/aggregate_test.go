package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/storage"
	"pumpswap-indexer/internal/storage/memory"
)

func ptr[T any](v T) *T { return &v }

const now int64 = 1_700_000_000

func seed(t *testing.T) storage.TradeStore {
	t.Helper()
	store := memory.NewTradeStore()
	for _, tr := range []*domain.Trade{
		// stable-quoted inside 1m
		{Signature: "1", Timestamp: now - 30, Mint: "M", BaseDelta: 2, QuoteMint: ptr("USDC"), Price: ptr(3.0)},
		// unpriced, only inside 15m and 1h
		{Signature: "2", Timestamp: now - 600, Mint: "M", BaseDelta: 4},
	} {
		_, err := store.Insert(context.Background(), tr)
		require.NoError(t, err)
	}
	return store
}

func TestAggregate_TokenOnly(t *testing.T) {
	vols, err := storage.Aggregate(context.Background(), seed(t), "M", now, storage.AggregateOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"1m": 2, "5m": 2, "15m": 6, "1h": 6}, vols.TokenOnly())
	assert.Zero(t, vols["1h"].USD)
}

func TestAggregate_StableUSD(t *testing.T) {
	vols, err := storage.Aggregate(context.Background(), seed(t), "M", now, storage.AggregateOptions{
		WantUSD: true,
		Stables: domain.NewStableSet("USDC"),
	})
	require.NoError(t, err)
	assert.Equal(t, 6.0, vols["1m"].USD)
	assert.Equal(t, 6.0, vols["1h"].USD, "unpriced trade adds nothing without a live price")
}

func TestAggregate_LivePriceOnlyForWindowsWithoutStableTrades(t *testing.T) {
	calls := 0
	live := func(context.Context) (float64, bool) {
		calls++
		return -0.5, true
	}

	store := memory.NewTradeStore()
	for _, tr := range []*domain.Trade{
		{Signature: "1", Timestamp: now - 600, Mint: "M", BaseDelta: 4},
		{Signature: "2", Timestamp: now - 2000, Mint: "M", BaseDelta: 2, QuoteMint: ptr("USDC"), Price: ptr(10.0)},
	} {
		_, err := store.Insert(context.Background(), tr)
		require.NoError(t, err)
	}

	vols, err := storage.Aggregate(context.Background(), store, "M", now, storage.AggregateOptions{
		WantUSD: true,
		Stables: domain.NewStableSet("USDC"),
		Live:    live,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, vols["1m"].USD, "empty window")
	assert.Equal(t, 0.0, vols["5m"].USD)
	assert.Equal(t, 2.0, vols["15m"].USD, "4 * |-0.5|")
	assert.Equal(t, 20.0, vols["1h"].USD, "stable-quoted trade present; live price ignored")
	assert.Equal(t, 1, calls)
}

func TestAggregate_NoLivePrice(t *testing.T) {
	vols, err := storage.Aggregate(context.Background(), seed(t), "M", now, storage.AggregateOptions{
		WantUSD: true,
		Live:    func(context.Context) (float64, bool) { return 0, false },
	})
	require.NoError(t, err)
	assert.Zero(t, vols["15m"].USD, "\"USDC\" is not a default stable mint")
}

func TestInsertResultString(t *testing.T) {
	assert.Equal(t, "inserted", storage.Inserted.String())
	assert.Equal(t, "duplicate", storage.Duplicate.String())
	assert.Equal(t, "unknown", storage.InsertResult(0).String())
}
