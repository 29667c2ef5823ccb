package clickhouse

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/observability"
	"pumpswap-indexer/internal/storage"
)

// TradeStore implements storage.TradeStore using ClickHouse.
//
// Signature uniqueness is enforced by checking before inserting under a
// per-signature lock. The lock covers one process only; writers in separate
// processes can still race, and the ReplacingMergeTree engine collapses such
// rows at merge time.
type TradeStore struct {
	conn  *Conn
	locks signatureLocks
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(conn *Conn) *TradeStore {
	return &TradeStore{conn: conn}
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
		observability.RecordDBQuery("clickhouse", "insert_trade", time.Since(start).Seconds(), err)
	}()

	unlock := s.locks.lock(t.Signature)
	defer unlock()

	exists, err := s.exists(ctx, t.Signature)
	if err != nil {
		return 0, fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.Duplicate, nil
	}

	raw, err := storage.EncodeSnapshot(t)
	if err != nil {
		return 0, err
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trades (
			signature, ts, mint, token_delta, quote_mint, quote_delta, price, raw
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		t.Signature, t.Timestamp, t.Mint, t.BaseDelta,
		t.QuoteMint, t.QuoteDelta, t.Price, string(raw),
	)
	if err != nil {
		return 0, fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}

	return storage.Inserted, nil
}

// Query returns trades for mint with ts >= *since (all when since is nil),
// ordered by ts then signature.
func (s *TradeStore) Query(ctx context.Context, mint string, since *int64) ([]*domain.Trade, error) {
	query := `
		SELECT signature, ts, mint, token_delta, quote_mint, quote_delta, price, raw
		FROM trades FINAL
		WHERE mint = ? AND ts >= ?
		ORDER BY ts ASC, signature ASC
	`

	from := int64(math.MinInt64)
	if since != nil {
		from = *since
	}

	rows, err := s.conn.Query(ctx, query, mint, from)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// WindowSums sums rows with ts >= now - window for each window.
func (s *TradeStore) WindowSums(ctx context.Context, mint string, now int64, stables domain.StableSet) (sums []domain.WindowSum, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "window_sums", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT
			sum(abs(token_delta)),
			sumIf(abs(token_delta) * abs(ifNull(price, 0)), isNotNull(price) AND has(?, ifNull(quote_mint, ''))),
			countIf(isNotNull(price) AND has(?, ifNull(quote_mint, '')))
		FROM trades FINAL
		WHERE mint = ? AND ts >= ?
	`

	quotes := stableList(stables)
	sums = make([]domain.WindowSum, 0, len(domain.Windows))
	for _, w := range domain.Windows {
		var (
			token, usd float64
			count      uint64
		)
		row := s.conn.QueryRow(ctx, query, quotes, quotes, mint, now-w.Seconds)
		if err := row.Scan(&token, &usd, &count); err != nil {
			return nil, fmt.Errorf("window %s: %w", w.Label, err)
		}
		sums = append(sums, domain.WindowSum{
			Label:        w.Label,
			Token:        token,
			StableUSD:    usd,
			StableTrades: int64(count),
		})
	}
	return sums, nil
}

// exists checks if a trade with the given signature exists.
func (s *TradeStore) exists(ctx context.Context, signature string) (bool, error) {
	query := `SELECT count() FROM trades WHERE signature = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, signature).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTrades(rows chRows) ([]*domain.Trade, error) {
	var result []*domain.Trade
	for rows.Next() {
		var (
			cols       domain.Trade
			quoteMint  *string
			quoteDelta *float64
			price      *float64
			raw        string
		)
		err := rows.Scan(
			&cols.Signature, &cols.Timestamp, &cols.Mint, &cols.BaseDelta,
			&quoteMint, &quoteDelta, &price, &raw,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		cols.QuoteMint = quoteMint
		cols.QuoteDelta = quoteDelta
		cols.Price = price
		result = append(result, storage.DecodeSnapshot([]byte(raw), &cols))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// stableList returns the set as a sorted slice for array binding.
func stableList(stables domain.StableSet) []string {
	out := make([]string, 0, len(stables))
	for m := range stables {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
