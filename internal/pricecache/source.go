package pricecache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pumpswap-indexer/internal/pyth"
)

// Source fetches a USD price for a mint. A missing price is (0, false, nil).
type Source interface {
	Price(ctx context.Context, mint string) (float64, bool, error)
}

// AccountReader reads raw account bytes. Absent accounts return nil, nil.
type AccountReader interface {
	GetAccountData(ctx context.Context, pubkey string) ([]byte, error)
}

// OracleSource prices mints from their mapped oracle price accounts.
type OracleSource struct {
	accounts  AccountReader
	oracles   map[string]string
	heuristic bool
	logger    *zap.Logger
}

// OracleOption configures an OracleSource.
type OracleOption func(*OracleSource)

// WithHeuristicScan enables the byte-scan fallback for accounts that do not
// decode as a price account. Such prices are logged as heuristic.
func WithHeuristicScan(enabled bool) OracleOption {
	return func(s *OracleSource) { s.heuristic = enabled }
}

// WithOracleLogger sets the logger.
func WithOracleLogger(l *zap.Logger) OracleOption {
	return func(s *OracleSource) { s.logger = l }
}

// NewOracleSource creates a source over the mint -> price account mapping.
func NewOracleSource(accounts AccountReader, oracles map[string]string, opts ...OracleOption) *OracleSource {
	s := &OracleSource{
		accounts: accounts,
		oracles:  oracles,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Price reads and decodes the mint's oracle account.
func (s *OracleSource) Price(ctx context.Context, mint string) (float64, bool, error) {
	account, ok := s.oracles[mint]
	if !ok || account == "" {
		return 0, false, nil
	}

	data, err := s.accounts.GetAccountData(ctx, account)
	if err != nil {
		return 0, false, fmt.Errorf("read oracle account %s: %w", account, err)
	}
	if len(data) == 0 {
		return 0, false, nil
	}

	price, quality := pyth.ReadPrice(data, s.heuristic)
	switch quality {
	case pyth.QualityNone:
		return 0, false, nil
	case pyth.QualityHeuristic:
		s.logger.Warn("oracle price from heuristic scan",
			zap.String("mint", mint),
			zap.String("account", account),
			zap.Float64("price", price),
		)
	}
	return price, true, nil
}
