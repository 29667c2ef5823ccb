package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpswap-indexer/internal/solana"
	"pumpswap-indexer/internal/solana/stub"
	"pumpswap-indexer/internal/storage/memory"
	"pumpswap-indexer/internal/window"
)

func newBatchRPC() *stub.RPCClient {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures("MINT", []solana.SignatureInfo{
		{Signature: "recent"},
		{Signature: "missing"},
		{Signature: "older"},
		{Signature: "ancient"},
	})
	rpc.AddTransaction(swapTx("recent", testNow-30))
	rpc.AddTransaction(swapTx("older", testNow-600))
	rpc.AddTransaction(swapTx("ancient", testNow-3000))
	ui := 1_000_000.0
	rpc.Supplies["MINT"] = &solana.TokenSupply{Amount: "1000000000000", Decimals: 6, UIAmount: &ui, UIAmountString: "1000000"}
	return rpc
}

func TestBatch_Run(t *testing.T) {
	rpc := newBatchRPC()
	store := memory.NewTradeStore()
	idx := window.NewIndex(window.WithClock(fixedClock))

	b := NewBatch(BatchOptions{
		RPC:     rpc,
		Fetcher: NewTransactionFetcher(rpc, FetcherOptions{Sleep: noSleep}),
		Sink:    NewSink(SinkOptions{Store: store, Index: idx}),
		Clock:   fixedClock,
	})

	report, err := b.Run(context.Background(), "MINT", 10)
	require.NoError(t, err)

	assert.Equal(t, "MINT", report.Mint)
	assert.Equal(t, 4, report.Signatures)
	assert.Equal(t, 3, report.Trades)
	assert.Equal(t, 3, report.Stored)
	assert.Equal(t, 5.0, report.Volumes["1m"])
	assert.Equal(t, 10.0, report.Volumes["15m"])
	assert.Equal(t, 15.0, report.Volumes["1h"])

	require.NotNil(t, report.AgeSeconds)
	assert.Equal(t, int64(3000), *report.AgeSeconds)

	require.NotNil(t, report.Supply)
	assert.Equal(t, "1000000000000", report.Supply.Raw)
	assert.Equal(t, 6, report.Supply.Decimals)

	assert.Equal(t, 3, store.Len())
	assert.Equal(t, 3, idx.Len("MINT"))

	// rerun stores nothing new
	report, err = b.Run(context.Background(), "MINT", 10)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Trades)
	assert.Zero(t, report.Stored)
}

func TestBatch_NoTrades(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures("EMPTY", []solana.SignatureInfo{{Signature: "missing"}})

	b := NewBatch(BatchOptions{RPC: rpc, Fetcher: NewTransactionFetcher(rpc, FetcherOptions{Sleep: noSleep}), Clock: fixedClock})
	report, err := b.Run(context.Background(), "EMPTY", 0)
	require.NoError(t, err)

	assert.Zero(t, report.Trades)
	assert.Nil(t, report.AgeSeconds)
	assert.Nil(t, report.Supply)
	assert.Zero(t, rpc.CallCount("getTokenSupply"))
	for _, v := range report.Volumes {
		assert.Zero(t, v)
	}
}

func TestBatch_SignatureError(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetError("MINT", errors.New("rate limited"))

	b := NewBatch(BatchOptions{RPC: rpc, Clock: fixedClock})
	_, err := b.Run(context.Background(), "MINT", 5)
	assert.Error(t, err)
}

func TestBatch_MissingSupply(t *testing.T) {
	rpc := newBatchRPC()
	delete(rpc.Supplies, "MINT")

	b := NewBatch(BatchOptions{RPC: rpc, Fetcher: NewTransactionFetcher(rpc, FetcherOptions{Sleep: noSleep}), Clock: fixedClock})
	report, err := b.Run(context.Background(), "MINT", 10)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Trades)
	assert.Nil(t, report.Supply)
}
