// Package window keeps a per-mint sliding window of recent trades in memory
// and answers rolling volume queries over the fixed window set.
package window

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/observability"
)

// PriceLookup resolves a USD price for a mint. Absence is reported with false.
type PriceLookup interface {
	Get(ctx context.Context, mint string) (float64, bool)
}

// entry is one retained trade. Entries are immutable once stored.
type entry struct {
	sig       string
	ts        int64
	amount    float64
	quoteMint string
	price     *float64
}

// Index is a concurrency-safe rolling window index.
// Each mint's series is replaced as a whole on write, so readers holding a
// previous slice are never affected by later writes.
type Index struct {
	mu      sync.RWMutex
	series  map[string][]entry
	stables domain.StableSet
	prices  PriceLookup
	clock   func() time.Time
	retain  int64
}

// Option configures an Index.
type Option func(*Index)

// WithPrices attaches a price lookup used as the USD fallback.
func WithPrices(p PriceLookup) Option {
	return func(i *Index) { i.prices = p }
}

// WithStables sets the mints treated as USD quotes.
func WithStables(s domain.StableSet) Option {
	return func(i *Index) { i.stables = s }
}

// WithClock overrides the wall clock used to bound write-time pruning.
func WithClock(clock func() time.Time) Option {
	return func(i *Index) { i.clock = clock }
}

// NewIndex creates an empty index.
func NewIndex(opts ...Option) *Index {
	i := &Index{
		series:  make(map[string][]entry),
		stables: domain.DefaultStableSet(),
		clock:   time.Now,
		retain:  domain.MaxWindowSeconds(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Add records a trade and prunes the mint's entries older than the largest
// window, measured from the trade's own timestamp (or the wall clock if the
// trade is future-dated). A trade whose signature is already retained for
// the mint is ignored; Add reports whether the trade was recorded.
func (i *Index) Add(t *domain.Trade) bool {
	if t == nil {
		return false
	}
	e := entry{sig: t.Signature, ts: t.Timestamp, amount: t.AbsBase(), price: t.Price}
	if t.QuoteMint != nil {
		e.quoteMint = *t.QuoteMint
	}

	now := t.Timestamp
	if wall := i.clock().Unix(); wall < now {
		now = wall
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	old := i.series[t.Mint]
	if e.sig != "" {
		for _, cur := range old {
			if cur.sig == e.sig {
				return false
			}
		}
	}
	pos := sort.Search(len(old), func(k int) bool { return old[k].ts > e.ts })

	next := make([]entry, 0, len(old)+1)
	next = append(next, old[:pos]...)
	next = append(next, e)
	next = append(next, old[pos:]...)

	i.series[t.Mint] = prune(next, now-i.retain)
	observability.UpdateIndexedMints(len(i.series))
	return true
}

// Prune drops the mint's entries older than now minus the largest window.
// Calling it repeatedly with the same now is a no-op after the first call.
func (i *Index) Prune(mint string, now int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pruneLocked(mint, now)
}

func (i *Index) pruneLocked(mint string, now int64) {
	cur, ok := i.series[mint]
	if !ok {
		return
	}
	next := prune(cur, now-i.retain)
	if len(next) == 0 {
		delete(i.series, mint)
		observability.UpdateIndexedMints(len(i.series))
		return
	}
	i.series[mint] = next
}

// prune returns the suffix of s with ts >= cutoff. s must be sorted by ts.
func prune(s []entry, cutoff int64) []entry {
	k := sort.Search(len(s), func(n int) bool { return s[n].ts >= cutoff })
	if k == 0 {
		return s
	}
	return append([]entry(nil), s[k:]...)
}

// Volumes prunes the mint and returns per-window volume at now.
// Entries with age in [0, window] count; future-dated entries are skipped.
//
// With wantUSD, a stable-quoted entry contributes amount*|price|. Any other
// entry contributes amount*|p| where p is the lookup price of the mint
// itself, when a lookup is attached and has a price. Token sums every
// qualifying entry in both modes, priced or not.
func (i *Index) Volumes(ctx context.Context, mint string, now int64, wantUSD bool) domain.Volumes {
	i.mu.Lock()
	i.pruneLocked(mint, now)
	entries := i.series[mint]
	i.mu.Unlock()

	vols := domain.NewVolumes()

	var (
		fallback     float64
		haveFallback bool
		looked       bool
	)
	fallbackPrice := func() (float64, bool) {
		if !looked {
			looked = true
			if i.prices != nil {
				fallback, haveFallback = i.prices.Get(ctx, mint)
			}
		}
		return fallback, haveFallback
	}

	for _, e := range entries {
		age := now - e.ts
		if age < 0 {
			continue
		}
		var usd float64
		if wantUSD {
			if e.price != nil && i.stables.Contains(e.quoteMint) {
				usd = e.amount * math.Abs(*e.price)
			} else if p, ok := fallbackPrice(); ok {
				usd = e.amount * math.Abs(p)
			}
		}
		for _, w := range domain.Windows {
			if age <= w.Seconds {
				wv := vols[w.Label]
				wv.Token += e.amount
				wv.USD += usd
				vols[w.Label] = wv
			}
		}
	}
	return vols
}

// Latest returns the newest timestamp retained for mint.
func (i *Index) Latest(mint string) (int64, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	s := i.series[mint]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].ts, true
}

// Len returns the number of entries retained for mint.
func (i *Index) Len(mint string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.series[mint])
}

// Mints returns the mints that currently have retained entries.
func (i *Index) Mints() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]string, 0, len(i.series))
	for m := range i.series {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
