package storage

import (
	"context"

	"pumpswap-indexer/internal/domain"
)

// InsertResult reports the outcome of an idempotent insert.
type InsertResult int

const (
	// Inserted means the row was written.
	Inserted InsertResult = iota + 1
	// Duplicate means a row with the same key already existed; nothing changed.
	Duplicate
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// TradeStore provides access to the trades log.
type TradeStore interface {
	// Insert writes a trade keyed by signature. An existing signature yields
	// Duplicate and leaves the stored row untouched.
	Insert(ctx context.Context, t *domain.Trade) (InsertResult, error)

	// Query returns trades for mint ordered by timestamp ASC, then signature.
	// A nil since returns the full history.
	Query(ctx context.Context, mint string, since *int64) ([]*domain.Trade, error)

	// WindowSums returns, for each window in domain.Windows order, sums over
	// rows with ts >= now - window.Seconds.
	WindowSums(ctx context.Context, mint string, now int64, stables domain.StableSet) ([]domain.WindowSum, error)
}

// TokenMetadataStore caches fetched token metadata.
type TokenMetadataStore interface {
	// Upsert stores metadata for m.Mint, replacing any previous record.
	Upsert(ctx context.Context, m *domain.TokenMetadata) error

	// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}
