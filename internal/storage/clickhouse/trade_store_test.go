package clickhouse

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/storage"
)

func usdcTrade(sig string, ts int64, delta, price float64) *domain.Trade {
	q := domain.USDCMint
	qd := -delta * price
	return &domain.Trade{
		Signature: sig, Timestamp: ts, Mint: "M", BaseDelta: delta,
		QuoteMint: &q, QuoteDelta: &qd, Price: &price,
	}
}

func TestTradeStore_InsertAndQuery(t *testing.T) {
	conn := setupTestDB(t)

	store := NewTradeStore(conn)
	ctx := context.Background()

	res, err := store.Insert(ctx, usdcTrade("sig-2", 200, -3, 2))
	require.NoError(t, err)
	assert.Equal(t, storage.Inserted, res)

	res, err = store.Insert(ctx, &domain.Trade{Signature: "sig-1", Timestamp: 100, Mint: "M", BaseDelta: 7})
	require.NoError(t, err)
	assert.Equal(t, storage.Inserted, res)

	got, err := store.Query(ctx, "M", nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sig-1", got[0].Signature)
	assert.Nil(t, got[0].QuoteMint)
	assert.Nil(t, got[0].Price)
	assert.Equal(t, "sig-2", got[1].Signature)
	require.NotNil(t, got[1].Price)
	assert.Equal(t, 2.0, *got[1].Price)
	assert.Equal(t, domain.USDCMint, *got[1].QuoteMint)
	assert.Equal(t, -3.0, got[1].BaseDelta)

	got, err = store.Query(ctx, "M", ptr(int64(150)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sig-2", got[0].Signature)

	got, err = store.Query(ctx, "other", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTradeStore_Insert_Duplicate(t *testing.T) {
	conn := setupTestDB(t)

	store := NewTradeStore(conn)
	ctx := context.Background()

	_, err := store.Insert(ctx, usdcTrade("dup", 100, 1, 1))
	require.NoError(t, err)

	res, err := store.Insert(ctx, usdcTrade("dup", 100, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, storage.Duplicate, res)

	got, err := store.Query(ctx, "M", nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTradeStore_Insert_ConcurrentDuplicates(t *testing.T) {
	conn := setupTestDB(t)

	store := NewTradeStore(conn)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		inserted atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Insert(ctx, usdcTrade("race", 100, 1, 1))
			assert.NoError(t, err)
			if res == storage.Inserted {
				inserted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())
	var n uint64
	require.NoError(t, conn.QueryRow(ctx, `SELECT count() FROM trades WHERE signature = 'race'`).Scan(&n))
	assert.Equal(t, uint64(1), n, "no duplicate row before merge")
}

func TestTradeStore_Insert_Invalid(t *testing.T) {
	conn := setupTestDB(t)

	store := NewTradeStore(conn)

	_, err := store.Insert(context.Background(), &domain.Trade{Signature: "s", Mint: "M"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTradeStore_WindowSums(t *testing.T) {
	conn := setupTestDB(t)

	store := NewTradeStore(conn)
	ctx := context.Background()
	now := int64(10_000)

	for _, tr := range []*domain.Trade{
		usdcTrade("a", now-30, 5, 2),
		usdcTrade("b", now-200, -1.5, 4),
		{Signature: "c", Timestamp: now - 2000, Mint: "M", BaseDelta: 10},
		{Signature: "d", Timestamp: now - 7200, Mint: "M", BaseDelta: 99},
	} {
		_, err := store.Insert(ctx, tr)
		require.NoError(t, err)
	}

	sums, err := store.WindowSums(ctx, "M", now, domain.DefaultStableSet())
	require.NoError(t, err)
	require.Len(t, sums, len(domain.Windows))

	byLabel := make(map[string]domain.WindowSum)
	for _, s := range sums {
		byLabel[s.Label] = s
	}

	assert.InDelta(t, 5.0, byLabel["1m"].Token, 1e-9)
	assert.InDelta(t, 10.0, byLabel["1m"].StableUSD, 1e-9)
	assert.Equal(t, int64(1), byLabel["1m"].StableTrades)

	assert.InDelta(t, 6.5, byLabel["5m"].Token, 1e-9)
	assert.InDelta(t, 16.0, byLabel["5m"].StableUSD, 1e-9)
	assert.Equal(t, int64(2), byLabel["5m"].StableTrades)

	assert.InDelta(t, 16.5, byLabel["1h"].Token, 1e-9)
	assert.Equal(t, int64(2), byLabel["1h"].StableTrades)

	// no stables configured
	sums, err = store.WindowSums(ctx, "M", now, domain.NewStableSet())
	require.NoError(t, err)
	for _, s := range sums {
		assert.Zero(t, s.StableTrades)
		assert.Zero(t, s.StableUSD)
	}
}

func TestTradeStore_Aggregate(t *testing.T) {
	conn := setupTestDB(t)

	store := NewTradeStore(conn)
	ctx := context.Background()

	_, err := store.Insert(ctx, usdcTrade("a", 1000, 5, 2))
	require.NoError(t, err)

	vols, err := storage.Aggregate(ctx, store, "M", 1010, storage.AggregateOptions{WantUSD: true})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, vols["1m"].Token, 1e-9)
	assert.InDelta(t, 10.0, vols["1m"].USD, 1e-9)
}
