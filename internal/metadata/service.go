// Package metadata provides best-effort token metadata: Metaplex name and
// symbol, mint supply and a market-cap estimate from the price cache.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/solana"
	"pumpswap-indexer/internal/storage"
)

// DefaultMaxAge is how long a cached record is served before it is refetched.
const DefaultMaxAge = time.Hour

// ErrInvalidMint is returned for a mint that is not a base58 pubkey.
var ErrInvalidMint = errors.New("invalid mint address")

// AccountSource is the subset of the RPC client metadata lookups use.
type AccountSource interface {
	GetAccountData(ctx context.Context, pubkey string) ([]byte, error)
	GetTokenSupply(ctx context.Context, mint string) (*solana.TokenSupply, error)
}

// PriceLookup returns a USD price for mint.
type PriceLookup interface {
	Get(ctx context.Context, mint string) (float64, bool)
}

// Options configures a Service.
type Options struct {
	RPC AccountSource
	// Prices, when set, adds price and market cap to results.
	Prices PriceLookup
	// Store, when set, caches fetched records.
	Store  storage.TokenMetadataStore
	MaxAge time.Duration
	Clock  func() time.Time
	Logger *zap.Logger
}

// Service resolves token metadata.
type Service struct {
	rpc    AccountSource
	prices PriceLookup
	store  storage.TokenMetadataStore
	maxAge time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// New creates a Service. RPC is required.
func New(opts Options) *Service {
	s := &Service{
		rpc:    opts.RPC,
		prices: opts.Prices,
		store:  opts.Store,
		maxAge: opts.MaxAge,
		clock:  opts.Clock,
		logger: opts.Logger,
	}
	if s.maxAge <= 0 {
		s.maxAge = DefaultMaxAge
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Lookup returns metadata for mint. RPC failures leave the affected fields
// nil; only an invalid mint or cancellation is an error.
func (s *Service) Lookup(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	if !solana.IsValidPubkey(mint) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMint, mint)
	}

	meta := s.cached(ctx, mint)
	if meta == nil {
		meta = s.fetch(ctx, mint)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.store != nil {
			if err := s.store.Upsert(ctx, meta); err != nil {
				s.logger.Warn("cache token metadata failed", zap.String("mint", mint), zap.Error(err))
			}
		}
	}

	s.price(ctx, meta)
	return meta, nil
}

func (s *Service) cached(ctx context.Context, mint string) *domain.TokenMetadata {
	if s.store == nil {
		return nil
	}
	meta, err := s.store.GetByMint(ctx, mint)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("read cached token metadata failed", zap.String("mint", mint), zap.Error(err))
		}
		return nil
	}
	if s.clock().Unix()-meta.FetchedAt > int64(s.maxAge/time.Second) {
		return nil
	}
	return meta
}

func (s *Service) fetch(ctx context.Context, mint string) *domain.TokenMetadata {
	meta := &domain.TokenMetadata{Mint: mint, FetchedAt: s.clock().Unix()}

	pda, err := MetadataPDA(mint)
	if err != nil {
		s.logger.Debug("derive metadata pda failed", zap.String("mint", mint), zap.Error(err))
	} else {
		meta.MetadataPDA = pda
		data, err := s.rpc.GetAccountData(ctx, pda)
		switch {
		case err != nil:
			s.logger.Warn("fetch metadata account failed", zap.String("mint", mint), zap.String("pda", pda), zap.Error(err))
		case len(data) > 0:
			meta.Name, meta.Symbol = DecodeNameSymbol(data)
		}
	}

	supply, err := s.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		s.logger.Warn("fetch token supply failed", zap.String("mint", mint), zap.Error(err))
		return meta
	}
	if info := supply.Info(); info != nil {
		meta.Decimals = info.Decimals
		meta.Supply = uiSupply(info)
	}
	return meta
}

func (s *Service) price(ctx context.Context, meta *domain.TokenMetadata) {
	if s.prices == nil {
		return
	}
	p, ok := s.prices.Get(ctx, meta.Mint)
	if !ok {
		return
	}
	meta.PriceUSD = &p
	if meta.Supply != nil {
		mc := *meta.Supply * p
		meta.MarketCap = &mc
	}
}

func uiSupply(info *domain.SupplyInfo) *float64 {
	if info.UIAmount != nil {
		v := *info.UIAmount
		return &v
	}
	if info.UIAmountString == "" {
		return nil
	}
	v, err := strconv.ParseFloat(info.UIAmountString, 64)
	if err != nil {
		return nil
	}
	return &v
}
