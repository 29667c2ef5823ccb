package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/observability"
	"pumpswap-indexer/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a trade. Returns Duplicate if the signature is already stored.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) (res storage.InsertResult, err error) {
	if err := storage.ValidateTrade(t); err != nil {
		return 0, err
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "insert_trade", time.Since(start).Seconds(), err)
	}()

	raw, err := storage.EncodeSnapshot(t)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO trades (
			signature, ts, mint, token_delta, quote_mint, quote_delta, price, raw
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (signature) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		t.Signature,
		t.Timestamp,
		t.Mint,
		t.BaseDelta,
		t.QuoteMint,
		t.QuoteDelta,
		t.Price,
		raw,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.Duplicate, nil
		}
		return 0, fmt.Errorf("insert trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.Duplicate, nil
	}
	return storage.Inserted, nil
}

// Query returns trades for mint with ts >= *since (all when since is nil),
// ordered by ts then signature.
func (s *TradeStore) Query(ctx context.Context, mint string, since *int64) ([]*domain.Trade, error) {
	query := `
		SELECT signature, ts, mint, token_delta, quote_mint, quote_delta, price, raw
		FROM trades
		WHERE mint = $1 AND ($2::bigint IS NULL OR ts >= $2)
		ORDER BY ts ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, mint, since)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// WindowSums sums rows with ts >= now - window for each window in one scan.
func (s *TradeStore) WindowSums(ctx context.Context, mint string, now int64, stables domain.StableSet) (sums []domain.WindowSum, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "window_sums", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT
			COALESCE(SUM(ABS(token_delta)), 0),
			COALESCE(SUM(ABS(token_delta) * ABS(price)) FILTER (WHERE price IS NOT NULL AND quote_mint = ANY($3)), 0),
			COUNT(*) FILTER (WHERE price IS NOT NULL AND quote_mint = ANY($3))
		FROM trades
		WHERE mint = $1 AND ts >= $2
	`

	quotes := make([]string, 0, len(stables))
	for m := range stables {
		quotes = append(quotes, m)
	}
	sort.Strings(quotes)

	batch := &pgx.Batch{}
	for _, w := range domain.Windows {
		batch.Queue(query, mint, now-w.Seconds, quotes)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	sums = make([]domain.WindowSum, 0, len(domain.Windows))
	for _, w := range domain.Windows {
		ws := domain.WindowSum{Label: w.Label}
		if err := br.QueryRow().Scan(&ws.Token, &ws.StableUSD, &ws.StableTrades); err != nil {
			return nil, fmt.Errorf("window %s: %w", w.Label, err)
		}
		sums = append(sums, ws)
	}
	return sums, nil
}

func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var result []*domain.Trade
	for rows.Next() {
		var (
			cols domain.Trade
			raw  []byte
		)
		err := rows.Scan(
			&cols.Signature,
			&cols.Timestamp,
			&cols.Mint,
			&cols.BaseDelta,
			&cols.QuoteMint,
			&cols.QuoteDelta,
			&cols.Price,
			&raw,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		result = append(result, storage.DecodeSnapshot(raw, &cols))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}
