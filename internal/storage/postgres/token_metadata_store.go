package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/observability"
	"pumpswap-indexer/internal/storage"
)

// TokenMetadataStore keeps one cached metadata row per mint. Price and
// market cap are derived on read and never stored.
type TokenMetadataStore struct {
	pool *Pool
}

func NewTokenMetadataStore(pool *Pool) *TokenMetadataStore {
	return &TokenMetadataStore{pool: pool}
}

var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

const upsertTokenMetadata = `
INSERT INTO token_metadata (mint, metadata_pda, name, symbol, decimals, supply, fetched_at)
VALUES (@mint, NULLIF(@pda, ''), @name, @symbol, @decimals, @supply, @fetched_at)
ON CONFLICT (mint) DO UPDATE SET
	metadata_pda = EXCLUDED.metadata_pda,
	name         = EXCLUDED.name,
	symbol       = EXCLUDED.symbol,
	decimals     = EXCLUDED.decimals,
	supply       = EXCLUDED.supply,
	fetched_at   = EXCLUDED.fetched_at,
	updated_at   = now()`

func (s *TokenMetadataStore) Upsert(ctx context.Context, m *domain.TokenMetadata) (err error) {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "upsert_token_metadata", time.Since(start).Seconds(), err)
	}()

	_, err = s.pool.Exec(ctx, upsertTokenMetadata, pgx.NamedArgs{
		"mint":       m.Mint,
		"pda":        m.MetadataPDA,
		"name":       m.Name,
		"symbol":     m.Symbol,
		"decimals":   m.Decimals,
		"supply":     m.Supply,
		"fetched_at": m.FetchedAt,
	})
	if err != nil {
		return fmt.Errorf("upsert token metadata %s: %w", m.Mint, err)
	}
	return nil
}

// metadataRow mirrors the token_metadata columns read back.
type metadataRow struct {
	Mint        string   `db:"mint"`
	MetadataPDA *string  `db:"metadata_pda"`
	Name        *string  `db:"name"`
	Symbol      *string  `db:"symbol"`
	Decimals    int      `db:"decimals"`
	Supply      *float64 `db:"supply"`
	FetchedAt   int64    `db:"fetched_at"`
}

// GetByMint returns storage.ErrNotFound for a mint never cached.
func (s *TokenMetadataStore) GetByMint(ctx context.Context, mint string) (_ *domain.TokenMetadata, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "get_token_metadata", time.Since(start).Seconds(), err)
	}()

	rows, err := s.pool.Query(ctx, `
		SELECT mint, metadata_pda, name, symbol, decimals, supply, fetched_at
		FROM token_metadata WHERE mint = $1`, mint)
	if err != nil {
		return nil, fmt.Errorf("query token metadata: %w", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[metadataRow])
	if isNotFoundError(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan token metadata: %w", err)
	}

	m := &domain.TokenMetadata{
		Mint:      row.Mint,
		Name:      row.Name,
		Symbol:    row.Symbol,
		Decimals:  row.Decimals,
		Supply:    row.Supply,
		FetchedAt: row.FetchedAt,
	}
	if row.MetadataPDA != nil {
		m.MetadataPDA = *row.MetadataPDA
	}
	return m, nil
}
