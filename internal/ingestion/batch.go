package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/extractor"
	"pumpswap-indexer/internal/observability"
	"pumpswap-indexer/internal/solana"
	"pumpswap-indexer/internal/storage"
)

// DefaultBatchLimit is the number of recent signatures scanned by default.
const DefaultBatchLimit = 100

// BatchReport summarizes one batch scan of a mint.
type BatchReport struct {
	Mint       string             `json:"mint"`
	Signatures int                `json:"signatures"`
	Trades     int                `json:"trades"`
	Stored     int                `json:"stored"`
	Volumes    map[string]float64 `json:"volumes"`
	AgeSeconds *int64             `json:"age_seconds,omitempty"`
	Supply     *domain.SupplyInfo `json:"supply,omitempty"`
}

// BatchOptions configures a Batch.
type BatchOptions struct {
	RPC       solana.RPCClient
	Fetcher   *TransactionFetcher
	Extractor *extractor.Extractor
	// Sink, when set, persists and indexes extracted trades.
	Sink   *Sink
	Clock  func() time.Time
	Logger *zap.Logger
}

// Batch scans a mint's recent signatures and reports its volume and age.
type Batch struct {
	rpc       solana.RPCClient
	fetcher   *TransactionFetcher
	extractor *extractor.Extractor
	sink      *Sink
	clock     func() time.Time
	logger    *zap.Logger
}

// NewBatch creates a Batch. RPC is required; Fetcher defaults to one over RPC.
func NewBatch(opts BatchOptions) *Batch {
	b := &Batch{
		rpc:       opts.RPC,
		fetcher:   opts.Fetcher,
		extractor: opts.Extractor,
		sink:      opts.Sink,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.fetcher == nil {
		b.fetcher = NewTransactionFetcher(opts.RPC, FetcherOptions{Logger: b.logger})
	}
	if b.extractor == nil {
		b.extractor = extractor.New()
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	return b
}

// Run scans up to limit recent signatures of mint. Transactions that cannot
// be fetched are skipped. Supply is reported only when trades were found.
func (b *Batch) Run(ctx context.Context, mint string, limit int) (*BatchReport, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	sigs, err := b.rpc.GetSignaturesForAddress(ctx, mint, &solana.SignaturesOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("get signatures for %s: %w", mint, err)
	}

	report := &BatchReport{Mint: mint, Signatures: len(sigs)}

	var trades []*domain.Trade
	for _, info := range sigs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tx := b.fetcher.Fetch(ctx, info.Signature)
		if tx == nil {
			observability.RecordRejected(string(extractor.ReasonNoTransaction))
			continue
		}
		trade, reason := b.extractor.Extract(tx, mint, info.Signature)
		if trade == nil {
			observability.RecordRejected(string(reason))
			continue
		}
		observability.RecordTradeExtracted()
		trades = append(trades, trade)

		if b.sink != nil {
			res, err := b.sink.Accept(ctx, trade)
			if err != nil {
				return nil, err
			}
			if res == storage.Inserted {
				report.Stored++
			}
		}
	}

	now := b.clock().Unix()
	report.Trades = len(trades)
	report.Volumes = domain.ComputeVolumes(trades, now)

	b.logger.Info("batch scan finished",
		zap.String("mint", mint),
		zap.Int("signatures", len(sigs)),
		zap.Int("trades", len(trades)),
	)

	if len(trades) == 0 {
		return report, nil
	}

	if age, ok := domain.ComputeAgeSeconds(trades, now); ok {
		report.AgeSeconds = &age
	}

	supply, err := b.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		b.logger.Warn("get token supply failed", zap.String("mint", mint), zap.Error(err))
	} else {
		report.Supply = supply.Info()
	}

	return report, nil
}
