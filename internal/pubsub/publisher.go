// Package pubsub fans accepted trades out to subscribers.
package pubsub

import (
	"context"

	"pumpswap-indexer/internal/domain"
)

// TradePublisher publishes accepted trades.
type TradePublisher interface {
	PublishTrade(ctx context.Context, t *domain.Trade) error
}
