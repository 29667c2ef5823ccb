package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/observability"
	"pumpswap-indexer/internal/pubsub"
	"pumpswap-indexer/internal/storage"
	"pumpswap-indexer/internal/window"
)

// SinkOptions configures a Sink.
type SinkOptions struct {
	Store storage.TradeStore
	// Backend labels the stored-trades metric.
	Backend   string
	Index     *window.Index
	Publisher pubsub.TradePublisher
	Logger    *zap.Logger
}

// Sink persists accepted trades, then indexes and publishes the new ones.
type Sink struct {
	store     storage.TradeStore
	backend   string
	index     *window.Index
	publisher pubsub.TradePublisher
	logger    *zap.Logger
}

// NewSink creates a Sink. Store is required.
func NewSink(opts SinkOptions) *Sink {
	s := &Sink{
		store:     opts.Store,
		backend:   opts.Backend,
		index:     opts.Index,
		publisher: opts.Publisher,
		logger:    opts.Logger,
	}
	if s.backend == "" {
		s.backend = "unknown"
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Accept stores t and adds it to the index. The trade log is keyed by
// signature alone, so a second mint of the same transaction reports
// Duplicate but is still indexed; the index ignores signatures it already
// holds for the mint. Only newly inserted trades are published. A publish
// failure is logged and does not fail the call.
func (s *Sink) Accept(ctx context.Context, t *domain.Trade) (storage.InsertResult, error) {
	res, err := s.store.Insert(ctx, t)
	if err != nil {
		observability.RecordIngestionError("store")
		return 0, fmt.Errorf("store trade %s: %w", t.Signature, err)
	}

	if s.index != nil {
		s.index.Add(t)
	}

	if res == storage.Duplicate {
		observability.RecordDuplicate("store")
		s.logger.Debug("duplicate trade", zap.String("signature", t.Signature), zap.String("mint", t.Mint))
		return res, nil
	}

	observability.RecordStored(s.backend)
	observability.MarkIngestion(time.Now().Unix())

	if s.publisher != nil {
		if err := s.publisher.PublishTrade(ctx, t); err != nil {
			observability.RecordIngestionError("publish")
			s.logger.Warn("publish trade failed", zap.String("signature", t.Signature), zap.Error(err))
		}
	}
	return res, nil
}
