package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	bySig  map[string]*domain.Trade   // keyed by signature
	byMint map[string][]*domain.Trade // sorted by (ts, signature)
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		bySig:  make(map[string]*domain.Trade),
		byMint: make(map[string][]*domain.Trade),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a trade. Returns Duplicate if the signature exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) (storage.InsertResult, error) {
	if err := storage.ValidateTrade(t); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySig[t.Signature]; exists {
		return storage.Duplicate, nil
	}

	c := cloneTrade(t)
	s.bySig[c.Signature] = c

	rows := s.byMint[c.Mint]
	pos := sort.Search(len(rows), func(i int) bool { return less(c, rows[i]) })
	next := make([]*domain.Trade, 0, len(rows)+1)
	next = append(next, rows[:pos]...)
	next = append(next, c)
	next = append(next, rows[pos:]...)
	s.byMint[c.Mint] = next

	return storage.Inserted, nil
}

// Query returns trades for mint with ts >= *since (all when since is nil), ascending.
func (s *TradeStore) Query(_ context.Context, mint string, since *int64) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.byMint[mint]
	start := 0
	if since != nil {
		start = sort.Search(len(rows), func(i int) bool { return rows[i].Timestamp >= *since })
	}

	result := make([]*domain.Trade, 0, len(rows)-start)
	for _, t := range rows[start:] {
		result = append(result, cloneTrade(t))
	}
	return result, nil
}

// WindowSums sums rows with ts >= now - window for each window.
func (s *TradeStore) WindowSums(_ context.Context, mint string, now int64, stables domain.StableSet) ([]domain.WindowSum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.byMint[mint]
	sums := make([]domain.WindowSum, len(domain.Windows))
	for i, w := range domain.Windows {
		sums[i].Label = w.Label
		cutoff := now - w.Seconds
		start := sort.Search(len(rows), func(k int) bool { return rows[k].Timestamp >= cutoff })
		for _, t := range rows[start:] {
			sums[i].Token += t.AbsBase()
			if t.QuotedIn(stables) {
				sums[i].StableUSD += t.AbsBase() * math.Abs(*t.Price)
				sums[i].StableTrades++
			}
		}
	}
	return sums, nil
}

// Len returns the number of stored trades.
func (s *TradeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySig)
}

func less(a, b *domain.Trade) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.Signature < b.Signature
}

func cloneTrade(t *domain.Trade) *domain.Trade {
	c := *t
	if t.QuoteMint != nil {
		q := *t.QuoteMint
		c.QuoteMint = &q
	}
	if t.QuoteDelta != nil {
		d := *t.QuoteDelta
		c.QuoteDelta = &d
	}
	if t.Price != nil {
		p := *t.Price
		c.Price = &p
	}
	return &c
}
