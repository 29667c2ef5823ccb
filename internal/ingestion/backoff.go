package ingestion

import (
	"context"
	"time"
)

// MaxBackoffUnits caps the reconnect delay in units.
const MaxBackoffUnits = 30

// Backoff yields 1, 2, 4, 8, 16, 30, 30, ... units until Reset.
// Not safe for concurrent use.
type Backoff struct {
	unit time.Duration
	max  time.Duration
	next time.Duration
}

// NewBackoff creates a backoff measured in unit (typically one second).
func NewBackoff(unit time.Duration) *Backoff {
	if unit <= 0 {
		unit = time.Second
	}
	return &Backoff{unit: unit, max: MaxBackoffUnits * unit, next: unit}
}

// Next returns the current delay and doubles it for the following call.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// Reset restarts the sequence at one unit.
func (b *Backoff) Reset() {
	b.next = b.unit
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepCtx is the default SleepFunc.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
