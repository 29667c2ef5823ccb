// Package pricecache caches USD prices per mint with a TTL and refreshes a
// configured set of mints in the background.
package pricecache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/observability"
	"pumpswap-indexer/internal/pyth"
)

// DefaultTTL is the freshness bound for cached prices.
const DefaultTTL = 30 * time.Second

// SharedTier is an optional cross-process cache consulted on local miss.
type SharedTier interface {
	Get(ctx context.Context, mint string) (float64, bool, error)
	Set(ctx context.Context, mint string, price float64, ttl time.Duration) error
}

// Options configures a Cache.
type Options struct {
	TTL    time.Duration
	Source Source
	// Accounts and Oracles back the raw decode fallback of the refresh loop.
	Accounts AccountReader
	Oracles  map[string]string
	Shared   SharedTier
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Cache is a concurrency-safe TTL price cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]domain.PriceRecord

	ttl      time.Duration
	source   Source
	accounts AccountReader
	oracles  map[string]string
	shared   SharedTier
	clock    func() time.Time
	logger   *zap.Logger

	bgMu   sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Cache.
func New(opts Options) *Cache {
	c := &Cache{
		entries:  make(map[string]domain.PriceRecord),
		ttl:      opts.TTL,
		source:   opts.Source,
		accounts: opts.Accounts,
		oracles:  opts.Oracles,
		shared:   opts.Shared,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.oracles == nil {
		c.oracles = map[string]string{}
	}
	return c
}

// TTL returns the freshness bound.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a fresh cached price, or fetches one synchronously.
// Absence is a normal result.
func (c *Cache) Get(ctx context.Context, mint string) (float64, bool) {
	now := c.clock()

	c.mu.RLock()
	rec, ok := c.entries[mint]
	c.mu.RUnlock()
	if ok && rec.Fresh(now, c.ttl) {
		observability.RecordPriceLookup("hit")
		return rec.Price, true
	}

	if c.shared != nil {
		price, found, err := c.shared.Get(ctx, mint)
		if err != nil {
			c.logger.Debug("shared price tier get failed", zap.String("mint", mint), zap.Error(err))
		} else if found {
			c.store(mint, price, now)
			observability.RecordPriceLookup("shared")
			return price, true
		}
	}

	if c.source != nil {
		price, found, err := c.source.Price(ctx, mint)
		if err != nil {
			c.logger.Debug("price fetch failed", zap.String("mint", mint), zap.Error(err))
		} else if found {
			c.Set(ctx, mint, price)
			observability.RecordPriceLookup("fetched")
			return price, true
		}
	}

	observability.RecordPriceLookup("miss")
	return 0, false
}

// Set records a price observed now and writes it through to the shared tier.
func (c *Cache) Set(ctx context.Context, mint string, price float64) {
	c.store(mint, price, c.clock())
	if c.shared != nil {
		if err := c.shared.Set(ctx, mint, price, c.ttl); err != nil {
			c.logger.Debug("shared price tier set failed", zap.String("mint", mint), zap.Error(err))
		}
	}
}

func (c *Cache) store(mint string, price float64, at time.Time) {
	c.mu.Lock()
	c.entries[mint] = domain.PriceRecord{Mint: mint, Price: price, ObservedAt: at}
	c.mu.Unlock()
}

// OracleMints returns the mints that have an oracle account mapping.
func (c *Cache) OracleMints() []string {
	out := make([]string, 0, len(c.oracles))
	for m := range c.oracles {
		out = append(out, m)
	}
	return out
}

// Refresh attempts one price update per mint. Failures are logged and skipped.
// Returns the number of mints updated.
func (c *Cache) Refresh(ctx context.Context, mints []string) int {
	updated := 0
	for _, mint := range mints {
		if ctx.Err() != nil {
			break
		}
		if c.refreshOne(ctx, mint) {
			updated++
		}
	}
	return updated
}

func (c *Cache) refreshOne(ctx context.Context, mint string) bool {
	if c.source != nil {
		price, found, err := c.source.Price(ctx, mint)
		if err == nil && found {
			c.Set(ctx, mint, price)
			observability.RecordPriceRefresh("source")
			return true
		}
		if err != nil {
			c.logger.Debug("refresh source failed", zap.String("mint", mint), zap.Error(err))
		}
	}

	price, err := c.readRaw(ctx, mint)
	if err != nil {
		c.logger.Debug("refresh raw decode failed", zap.String("mint", mint), zap.Error(err))
		observability.RecordPriceRefresh("failed")
		return false
	}
	c.Set(ctx, mint, price)
	observability.RecordPriceRefresh("raw")
	return true
}

var errNoRawPrice = errors.New("no raw oracle price")

// readRaw decodes the mint's oracle account with the fixed layout only.
func (c *Cache) readRaw(ctx context.Context, mint string) (float64, error) {
	account := c.oracles[mint]
	if account == "" || c.accounts == nil {
		return 0, errNoRawPrice
	}
	data, err := c.accounts.GetAccountData(ctx, account)
	if err != nil {
		return 0, err
	}
	acc, ok := pyth.Decode(data)
	if !ok {
		return 0, errNoRawPrice
	}
	price := acc.Value()
	if !pyth.Plausible(price) {
		return 0, errNoRawPrice
	}
	return price, nil
}

// StartBackground starts the refresh loop. interval <= 0 uses the TTL and a
// nil mints list uses every mint with an oracle mapping. A second call while
// the loop runs is a no-op.
func (c *Cache) StartBackground(ctx context.Context, interval time.Duration, mints []string) {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()

	if c.done != nil {
		return
	}
	if interval <= 0 {
		interval = c.ttl
	}
	if mints == nil {
		mints = c.OracleMints()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go c.loop(loopCtx, interval, mints, done)
}

// StopBackground signals the loop and waits for it to exit.
func (c *Cache) StopBackground() {
	c.bgMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.bgMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Cache) loop(ctx context.Context, interval time.Duration, mints []string, done chan struct{}) {
	defer close(done)

	c.logger.Info("price refresh loop started",
		zap.Duration("interval", interval),
		zap.Int("mints", len(mints)),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("price refresh loop stopped")
			return
		case <-timer.C:
			n := c.Refresh(ctx, mints)
			c.logger.Debug("price refresh pass", zap.Int("updated", n))
			timer.Reset(interval)
		}
	}
}
