package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/extractor"
	"pumpswap-indexer/internal/solana"
	"pumpswap-indexer/internal/storage"
	"pumpswap-indexer/internal/storage/memory"
)

const testNow int64 = 1_700_000_000

func fixedClock() time.Time { return time.Unix(testNow, 0) }

func bal(mint string, amt float64) solana.TokenBalance {
	return solana.TokenBalance{Mint: mint, UIAmount: &amt}
}

// swapTx moves MINT 10 -> 15 and QUOTE 100 -> 90 through the venue program.
func swapTx(sig string, blockTime int64) *solana.Transaction {
	return &solana.Transaction{
		Signature: sig,
		BlockTime: &blockTime,
		Meta: &solana.TransactionMeta{
			PreTokenBalances:  []solana.TokenBalance{bal("MINT", 10), bal("QUOTE", 100)},
			PostTokenBalances: []solana.TokenBalance{bal("MINT", 15), bal("QUOTE", 90)},
		},
		Message: &solana.TransactionMessage{
			Instructions: []solana.Instruction{{ProgramID: extractor.PumpSwapProgramID}},
		},
	}
}

// recordingSleep records requested delays without sleeping.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
	// cancel, when set, is called once len(delays) reaches stopAfter.
	cancel    context.CancelFunc
	stopAfter int
}

func (s *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	n := len(s.delays)
	s.mu.Unlock()
	if s.cancel != nil && n >= s.stopAfter {
		s.cancel()
	}
	return ctx.Err()
}

func (s *recordingSleep) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// flakyStore fails the first failures inserts, then delegates.
type flakyStore struct {
	*memory.TradeStore
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) Insert(ctx context.Context, t *domain.Trade) (storage.InsertResult, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return 0, errStoreDown
	}
	s.mu.Unlock()
	return s.TradeStore.Insert(ctx, t)
}

// failingStore fails every insert.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Insert(context.Context, *domain.Trade) (storage.InsertResult, error) {
	return 0, errStoreDown
}

func (failingStore) Query(context.Context, string, *int64) ([]*domain.Trade, error) {
	return nil, errStoreDown
}

func (failingStore) WindowSums(context.Context, string, int64, domain.StableSet) ([]domain.WindowSum, error) {
	return nil, errStoreDown
}

// recordingPublisher collects published trades.
type recordingPublisher struct {
	mu     sync.Mutex
	trades []*domain.Trade
	err    error
}

func (p *recordingPublisher) PublishTrade(_ context.Context, t *domain.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.trades = append(p.trades, t)
	return nil
}

func (p *recordingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.trades)
}
