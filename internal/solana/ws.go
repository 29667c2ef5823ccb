package solana

import (
	"context"
	"errors"
)

// ErrMalformedMessage is reported when the feed sends a frame that is not valid JSON-RPC.
var ErrMalformedMessage = errors.New("malformed websocket message")

// LogsDialer opens a single connection to the logs feed.
// Reconnect policy belongs to the caller.
type LogsDialer interface {
	DialLogs(ctx context.Context) (LogsStream, error)
}

// LogsStream is one live connection to the logs feed.
type LogsStream interface {
	// SubscribeLogs subscribes to program logs matching the filter and returns the subscription ID.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (int64, error)

	// Notifications delivers log notifications until the connection ends, then is closed.
	Notifications() <-chan LogNotification

	// Err returns the reason the connection ended, or nil while it is open.
	Err() error

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these program IDs.
	Mentions []string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Subscription int64
	Signature    string
	Slot         int64
	Logs         []string
	Err          interface{}
}
