package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/solana"
	"pumpswap-indexer/internal/solana/stub"
	"pumpswap-indexer/internal/storage/memory"
)

const usdcPDA = "5x38Kp4hvdomTCnCrAny4UtMUt5rQBdB6px2K1Ui45Wq"

type fixedPrices map[string]float64

func (p fixedPrices) Get(_ context.Context, mint string) (float64, bool) {
	v, ok := p[mint]
	return v, ok
}

func newRPC() *stub.RPCClient {
	rpc := stub.NewRPCClient()
	rpc.SetAccount(usdcPDA, borshAccount("USD Coin", "USDC"))
	ui := 2_000_000.0
	rpc.Supplies[domain.USDCMint] = &solana.TokenSupply{
		Amount: "2000000000000", Decimals: 6, UIAmount: &ui, UIAmountString: "2000000",
	}
	return rpc
}

func TestService_Lookup(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	svc := New(Options{
		RPC:    newRPC(),
		Prices: fixedPrices{domain.USDCMint: 1.0},
		Clock:  func() time.Time { return now },
	})

	meta, err := svc.Lookup(context.Background(), domain.USDCMint)
	require.NoError(t, err)

	assert.Equal(t, domain.USDCMint, meta.Mint)
	assert.Equal(t, usdcPDA, meta.MetadataPDA)
	require.NotNil(t, meta.Name)
	assert.Equal(t, "USD Coin", *meta.Name)
	require.NotNil(t, meta.Symbol)
	assert.Equal(t, "USDC", *meta.Symbol)
	assert.Equal(t, 6, meta.Decimals)
	require.NotNil(t, meta.Supply)
	assert.Equal(t, 2_000_000.0, *meta.Supply)
	require.NotNil(t, meta.PriceUSD)
	require.NotNil(t, meta.MarketCap)
	assert.Equal(t, 2_000_000.0, *meta.MarketCap)
	assert.Equal(t, now.Unix(), meta.FetchedAt)
}

func TestService_LookupWithoutPrice(t *testing.T) {
	svc := New(Options{RPC: newRPC(), Prices: fixedPrices{}})

	meta, err := svc.Lookup(context.Background(), domain.USDCMint)
	require.NoError(t, err)
	assert.Nil(t, meta.PriceUSD)
	assert.Nil(t, meta.MarketCap)
	assert.NotNil(t, meta.Supply)
}

func TestService_SupplyFromString(t *testing.T) {
	rpc := newRPC()
	rpc.Supplies[domain.USDCMint] = &solana.TokenSupply{Amount: "5", Decimals: 0, UIAmountString: "5"}

	meta, err := New(Options{RPC: rpc}).Lookup(context.Background(), domain.USDCMint)
	require.NoError(t, err)
	require.NotNil(t, meta.Supply)
	assert.Equal(t, 5.0, *meta.Supply)
}

func TestService_RPCFailuresAreBestEffort(t *testing.T) {
	rpc := newRPC()
	rpc.SetError(usdcPDA, errors.New("account fetch failed"))
	rpc.SetError(domain.USDCMint, errors.New("supply fetch failed"))

	meta, err := New(Options{RPC: rpc, Prices: fixedPrices{domain.USDCMint: 1.0}}).Lookup(context.Background(), domain.USDCMint)
	require.NoError(t, err)
	assert.Nil(t, meta.Name)
	assert.Nil(t, meta.Symbol)
	assert.Nil(t, meta.Supply)
	assert.Nil(t, meta.MarketCap)
	require.NotNil(t, meta.PriceUSD)
}

func TestService_InvalidMint(t *testing.T) {
	_, err := New(Options{RPC: newRPC()}).Lookup(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrInvalidMint)
}

func TestService_CachesInStore(t *testing.T) {
	ctx := context.Background()
	rpc := newRPC()
	store := memory.NewTokenMetadataStore()
	now := time.Unix(1_700_000_000, 0)

	svc := New(Options{
		RPC:    rpc,
		Prices: fixedPrices{domain.USDCMint: 1.0},
		Store:  store,
		MaxAge: time.Minute,
		Clock:  func() time.Time { return now },
	})

	_, err := svc.Lookup(ctx, domain.USDCMint)
	require.NoError(t, err)
	meta, err := svc.Lookup(ctx, domain.USDCMint)
	require.NoError(t, err)

	assert.Equal(t, 1, rpc.CallCount("getAccountInfo"))
	assert.Equal(t, 1, rpc.CallCount("getTokenSupply"))
	require.NotNil(t, meta.MarketCap, "price is applied to cached records")

	stored, err := store.GetByMint(ctx, domain.USDCMint)
	require.NoError(t, err)
	assert.Nil(t, stored.PriceUSD)

	// stale records are refetched
	now = now.Add(2 * time.Minute)
	_, err = svc.Lookup(ctx, domain.USDCMint)
	require.NoError(t, err)
	assert.Equal(t, 2, rpc.CallCount("getTokenSupply"))
}
