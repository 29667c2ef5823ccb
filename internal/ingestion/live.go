package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pumpswap-indexer/internal/dedupe"
	"pumpswap-indexer/internal/extractor"
	"pumpswap-indexer/internal/observability"
	"pumpswap-indexer/internal/solana"
	"pumpswap-indexer/internal/storage"
)

// State is the live channel's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateSubscribed
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

var errStreamClosed = errors.New("logs stream closed")

const forgetTimeout = 2 * time.Second

// LiveOptions configures a LiveChannel.
type LiveOptions struct {
	Dialer    solana.LogsDialer
	Fetcher   *TransactionFetcher
	Extractor *extractor.Extractor
	Sink      *Sink
	// Dedupe, when set, skips signatures already handled.
	Dedupe dedupe.Deduper
	// BackoffUnit is the reconnect delay unit. Default one second.
	BackoffUnit time.Duration
	Sleep       SleepFunc
	Logger      *zap.Logger
}

// LiveChannel subscribes to venue logs and ingests every trade they lead to.
// It reconnects with exponential backoff until stopped.
type LiveChannel struct {
	dialer    solana.LogsDialer
	fetcher   *TransactionFetcher
	extractor *extractor.Extractor
	sink      *Sink
	dedupe    dedupe.Deduper
	backoff   *Backoff
	sleep     SleepFunc
	logger    *zap.Logger

	state atomic.Int32

	bgMu   sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLiveChannel creates a channel. Dialer, Fetcher and Sink are required.
func NewLiveChannel(opts LiveOptions) *LiveChannel {
	c := &LiveChannel{
		dialer:    opts.Dialer,
		fetcher:   opts.Fetcher,
		extractor: opts.Extractor,
		sink:      opts.Sink,
		dedupe:    opts.Dedupe,
		backoff:   NewBackoff(opts.BackoffUnit),
		sleep:     opts.Sleep,
		logger:    opts.Logger,
	}
	if c.extractor == nil {
		c.extractor = extractor.New()
	}
	if c.sleep == nil {
		c.sleep = sleepCtx
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// State returns the current connection state.
func (c *LiveChannel) State() State {
	return State(c.state.Load())
}

func (c *LiveChannel) setState(s State) {
	if State(c.state.Swap(int32(s))) != s {
		observability.SetFeedState(int(s))
		c.logger.Debug("feed state", zap.Stringer("state", s))
	}
}

// Run connects, streams and reconnects until ctx is done. It returns ctx.Err().
func (c *LiveChannel) Run(ctx context.Context) error {
	c.logger.Info("live ingestion started", zap.Strings("programs", c.extractor.Programs()))
	defer c.setState(StateDisconnected)

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("live ingestion stopping")
			return err
		}

		err := c.session(ctx)
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			c.logger.Info("live ingestion stopping")
			return ctx.Err()
		}

		delay := c.backoff.Next()
		observability.RecordReconnect()
		c.logger.Warn("live feed disconnected", zap.Error(err), zap.Duration("retry_in", delay))

		if err := c.sleep(ctx, delay); err != nil {
			c.logger.Info("live ingestion stopping")
			return err
		}
	}
}

// session runs one connection until it fails or ctx is done.
func (c *LiveChannel) session(ctx context.Context) error {
	stream, err := c.dialer.DialLogs(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer stream.Close()
	c.setState(StateConnected)

	// one subscription per program; many providers accept a single mention
	for _, program := range c.extractor.Programs() {
		id, err := stream.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{program}})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", program, err)
		}
		c.logger.Info("subscribed to program logs", zap.String("program", program), zap.Int64("subscription", id))
	}
	c.setState(StateSubscribed)
	c.backoff.Reset()

	notifs := stream.Notifications()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifs:
			if !ok {
				if err := stream.Err(); err != nil {
					return err
				}
				return errStreamClosed
			}
			c.setState(StateStreaming)
			if _, err := c.Handle(ctx, n); err != nil {
				return err
			}
		}
	}
}

// Handle ingests one notification. It returns the number of trades newly
// stored. Only a storage failure or cancellation is an error; every other
// problem means the notification yields no trade.
func (c *LiveChannel) Handle(ctx context.Context, n solana.LogNotification) (int, error) {
	start := time.Now()
	defer func() {
		observability.RecordMessageLatency(time.Since(start).Seconds())
	}()
	observability.RecordNotification()

	if n.Signature == "" {
		return 0, nil
	}
	if n.Err != nil {
		observability.RecordRejected("failed_tx")
		return 0, nil
	}

	fresh := false
	if c.dedupe != nil {
		seen, err := c.dedupe.Seen(ctx, n.Signature)
		switch {
		case err != nil:
			c.logger.Warn("dedupe check failed", zap.String("signature", n.Signature), zap.Error(err))
		case seen:
			observability.RecordDuplicate("live")
			return 0, nil
		default:
			fresh = true
		}
	}

	tx := c.fetcher.Fetch(ctx, n.Signature)
	if err := ctx.Err(); err != nil {
		c.forget(n.Signature, fresh)
		return 0, err
	}
	if tx == nil {
		// Not yet visible to the node; a redelivery must get another chance.
		c.forget(n.Signature, fresh)
		observability.RecordRejected(string(extractor.ReasonNoTransaction))
		return 0, nil
	}

	trades, rejected := c.extractor.ExtractAll(tx, n.Signature)
	for _, reason := range rejected {
		observability.RecordRejected(string(reason))
	}

	stored := 0
	for _, trade := range trades {
		observability.RecordTradeExtracted()

		res, err := c.sink.Accept(ctx, trade)
		if err != nil {
			c.forget(n.Signature, fresh)
			return stored, err
		}
		if res == storage.Inserted {
			stored++
		}
	}

	if stored > 0 {
		c.logger.Debug("ingested transaction",
			zap.String("signature", n.Signature),
			zap.Int64("slot", n.Slot),
			zap.Int("trades", stored),
		)
	}
	return stored, nil
}

// Start runs the channel in the background. A second call while running is a no-op.
func (c *LiveChannel) Start(ctx context.Context) {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()

	if c.done != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		_ = c.Run(runCtx)
	}()
}

// Stop signals the channel and waits for it to exit.
func (c *LiveChannel) Stop() {
	c.bgMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.bgMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// forget clears a signature this call marked as seen, so a failed attempt
// does not suppress a later redelivery.
func (c *LiveChannel) forget(signature string, fresh bool) {
	if !fresh {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), forgetTimeout)
	defer cancel()
	if err := c.dedupe.Forget(ctx, signature); err != nil {
		c.logger.Warn("dedupe forget failed", zap.String("signature", signature), zap.Error(err))
	}
}
