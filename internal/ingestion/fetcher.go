package ingestion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pumpswap-indexer/internal/observability"
	"pumpswap-indexer/internal/solana"
)

// Default retry policy for transaction fetches.
const (
	DefaultFetchAttempts  = 6
	DefaultFetchBaseDelay = 500 * time.Millisecond
)

// TransactionGetter fetches a transaction; nil, nil means not found.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// FetcherOptions configures a TransactionFetcher.
type FetcherOptions struct {
	Attempts  int
	BaseDelay time.Duration
	Sleep     SleepFunc
	Logger    *zap.Logger
}

// TransactionFetcher retries transient fetch errors with exponential backoff
// and degrades to absence once attempts are exhausted.
type TransactionFetcher struct {
	rpc       TransactionGetter
	attempts  int
	baseDelay time.Duration
	sleep     SleepFunc
	logger    *zap.Logger
}

// NewTransactionFetcher creates a fetcher.
func NewTransactionFetcher(rpc TransactionGetter, opts FetcherOptions) *TransactionFetcher {
	f := &TransactionFetcher{
		rpc:       rpc,
		attempts:  opts.Attempts,
		baseDelay: opts.BaseDelay,
		sleep:     opts.Sleep,
		logger:    opts.Logger,
	}
	if f.attempts <= 0 {
		f.attempts = DefaultFetchAttempts
	}
	if f.baseDelay <= 0 {
		f.baseDelay = DefaultFetchBaseDelay
	}
	if f.sleep == nil {
		f.sleep = sleepCtx
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// Fetch returns the transaction, or nil when it does not exist, every attempt
// failed, or ctx was cancelled.
func (f *TransactionFetcher) Fetch(ctx context.Context, signature string) *solana.Transaction {
	delay := f.baseDelay
	for attempt := 1; attempt <= f.attempts; attempt++ {
		tx, err := f.rpc.GetTransaction(ctx, signature)
		if err == nil {
			return tx
		}
		if ctx.Err() != nil {
			return nil
		}

		observability.RecordIngestionError("fetch")
		f.logger.Warn("get transaction failed",
			zap.String("signature", signature),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", f.attempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		if attempt == f.attempts {
			break
		}
		if err := f.sleep(ctx, delay); err != nil {
			return nil
		}
		delay *= 2
	}

	f.logger.Info("giving up on transaction", zap.String("signature", signature), zap.Int("attempts", f.attempts))
	return nil
}
