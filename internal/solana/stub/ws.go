package stub

import (
	"context"
	"errors"
	"sync"

	"pumpswap-indexer/internal/solana"
)

// ErrScriptExhausted is returned by LogsDialer once every scripted dial was consumed.
var ErrScriptExhausted = errors.New("stub: no more scripted dials")

// DialStep is one scripted outcome of DialLogs.
type DialStep struct {
	Err    error
	Stream *LogsStream
}

// LogsDialer implements solana.LogsDialer from a fixed script.
type LogsDialer struct {
	mu     sync.Mutex
	script []DialStep
	dials  int
}

// NewLogsDialer creates a dialer that plays steps in order.
func NewLogsDialer(steps ...DialStep) *LogsDialer {
	return &LogsDialer{script: steps}
}

// DialLogs returns the next scripted step.
func (d *LogsDialer) DialLogs(ctx context.Context) (solana.LogsStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.script) == 0 {
		return nil, ErrScriptExhausted
	}
	step := d.script[0]
	d.script = d.script[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Stream, nil
}

// Dials returns the number of DialLogs calls.
func (d *LogsDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// LogsStream is a scripted solana.LogsStream.
type LogsStream struct {
	mu      sync.Mutex
	notifs  chan solana.LogNotification
	err     error
	ended   bool
	closed  bool
	SubID   int64
	SubErr  error
	Filters []solana.LogsFilter
}

// NewLogsStream returns a stream that delivers the given notifications then stays open.
func NewLogsStream(notifs ...solana.LogNotification) *LogsStream {
	s := &LogsStream{notifs: make(chan solana.LogNotification, len(notifs)+16), SubID: 1}
	for _, n := range notifs {
		s.notifs <- n
	}
	return s
}

// Push enqueues another notification.
func (s *LogsStream) Push(n solana.LogNotification) {
	s.notifs <- n
}

// End terminates the stream with err after already-queued notifications are read.
func (s *LogsStream) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.notifs)
}

// SubscribeLogs records the filter and returns SubID or SubErr.
func (s *LogsStream) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Filters = append(s.Filters, filter)
	if s.SubErr != nil {
		return 0, s.SubErr
	}
	return s.SubID, nil
}

// Notifications implements solana.LogsStream.
func (s *LogsStream) Notifications() <-chan solana.LogNotification {
	return s.notifs
}

// Err implements solana.LogsStream.
func (s *LogsStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements solana.LogsStream.
func (s *LogsStream) Close() error {
	s.End(errors.New("closed"))
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *LogsStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var (
	_ solana.LogsDialer = (*LogsDialer)(nil)
	_ solana.LogsStream = (*LogsStream)(nil)
)
