package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/pubsub"
)

// DefaultSubjectPrefix is used when Config.SubjectPrefix is empty.
const DefaultSubjectPrefix = "pumpswap.trades"

// Config configures Connect.
type Config struct {
	URL           string
	SubjectPrefix string
}

// Publisher publishes trades as JSON to "<prefix>.<mint>".
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// Compile-time interface check.
var _ pubsub.TradePublisher = (*Publisher)(nil)

// Connect dials NATS with endless reconnects.
func Connect(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name("pumpswap-indexer"),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	logger.Info("connected to nats", zap.String("url", cfg.URL), zap.String("prefix", prefix))
	return &Publisher{nc: nc, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject trades for mint are published on.
func (p *Publisher) Subject(mint string) string {
	return p.prefix + "." + mint
}

// PublishTrade implements pubsub.TradePublisher.
func (p *Publisher) PublishTrade(_ context.Context, t *domain.Trade) error {
	if t == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	if err := p.nc.Publish(p.Subject(t.Mint), data); err != nil {
		return fmt.Errorf("publish trade: %w", err)
	}
	return nil
}

// Ready reports whether the connection is up.
func (p *Publisher) Ready() bool {
	return p.nc != nil && p.nc.Status() == nats.CONNECTED
}

// Close drains and closes the connection. Safe to call more than once.
func (p *Publisher) Close() error {
	if p.nc == nil || p.nc.IsClosed() || p.nc.IsDraining() {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	p.logger.Info("nats connection closed")
	return nil
}
