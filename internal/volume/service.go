// Package volume answers rolling-volume queries from the in-memory index or
// from durable storage.
package volume

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/observability"
	"pumpswap-indexer/internal/storage"
	"pumpswap-indexer/internal/window"
)

// Source selects the read path of a query.
type Source string

const (
	SourceMemory Source = "memory"
	SourceSQL    Source = "sql"
)

var (
	// ErrUnknownSource is returned for a source other than memory or sql.
	ErrUnknownSource = errors.New("source must be 'memory' or 'sql'")
	// ErrNoStore is returned by SQLQuery when no trade store is configured.
	ErrNoStore = errors.New("no trade store configured")
)

// ParseSource parses a source name. The empty string means memory.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "", SourceMemory:
		return SourceMemory, nil
	case SourceSQL:
		return SourceSQL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
	}
}

// Options configures a Service.
type Options struct {
	Index *window.Index
	Store storage.TradeStore
	// Prices supplies the USD fallback of the SQL path.
	Prices  window.PriceLookup
	Stables domain.StableSet
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Service holds the read-side state shared by every query handler.
type Service struct {
	index   *window.Index
	store   storage.TradeStore
	prices  window.PriceLookup
	stables domain.StableSet
	clock   func() time.Time
	logger  *zap.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	s := &Service{
		index:   opts.Index,
		store:   opts.Store,
		prices:  opts.Prices,
		stables: opts.Stables,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}
	if s.index == nil {
		s.index = window.NewIndex()
	}
	if s.stables == nil {
		s.stables = domain.DefaultStableSet()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Index returns the rolling window index queries read from.
func (s *Service) Index() *window.Index {
	return s.index
}

// Query dispatches to IndexQuery or SQLQuery.
func (s *Service) Query(ctx context.Context, source Source, mint string, wantUSD bool) (domain.Volumes, error) {
	switch source {
	case SourceMemory:
		return s.IndexQuery(ctx, mint, wantUSD), nil
	case SourceSQL:
		return s.SQLQuery(ctx, mint, wantUSD)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
}

// IndexQuery reads the rolling window index. "Now" is the newest retained
// trade of mint when there is one, so replays of historic data stay
// deterministic; otherwise the wall clock.
func (s *Service) IndexQuery(ctx context.Context, mint string, wantUSD bool) domain.Volumes {
	start := time.Now()
	defer func() {
		observability.RecordVolumeQuery(string(SourceMemory), time.Since(start).Seconds())
	}()

	now, ok := s.index.Latest(mint)
	if !ok {
		now = s.clock().Unix()
	}
	return s.index.Volumes(ctx, mint, now, wantUSD)
}

// SQLQuery aggregates from the trade store at wall-clock now. Windows with
// no stable-quoted trade fall back to the cached price of mint.
func (s *Service) SQLQuery(ctx context.Context, mint string, wantUSD bool) (domain.Volumes, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}

	start := time.Now()
	defer func() {
		observability.RecordVolumeQuery(string(SourceSQL), time.Since(start).Seconds())
	}()

	opts := storage.AggregateOptions{WantUSD: wantUSD, Stables: s.stables}
	if s.prices != nil {
		opts.Live = func(ctx context.Context) (float64, bool) {
			return s.prices.Get(ctx, mint)
		}
	}

	vols, err := storage.Aggregate(ctx, s.store, mint, s.clock().Unix(), opts)
	if err != nil {
		s.logger.Error("sql volume query failed", zap.String("mint", mint), zap.Error(err))
		return nil, err
	}
	return vols, nil
}
