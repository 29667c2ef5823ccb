package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// PongWait is how long the connection may stay silent (no frames, no pongs) before it is considered dead.
	PongWait time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the capacity of the notification channel.
	Buffer int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		HandshakeTimeout: 10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
		PingInterval:     30 * time.Second,
		PongWait:         90 * time.Second,
		WriteTimeout:     10 * time.Second,
		Buffer:           1024,
	}
}

// WSDialer implements LogsDialer using gorilla/websocket.
type WSDialer struct {
	endpoint string
	config   WSClientConfig
}

// NewWSDialer creates a dialer for the given ws:// or wss:// endpoint.
func NewWSDialer(endpoint string, config *WSClientConfig) *WSDialer {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	return &WSDialer{endpoint: endpoint, config: cfg}
}

// DialLogs establishes a new connection and starts its reader and ping loops.
func (d *WSDialer) DialLogs(ctx context.Context) (LogsStream, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.config.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, d.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &WSConn{
		conn:        conn,
		config:      d.config,
		pendingSubs: make(map[uint64]chan subscribeResult),
		notifs:      make(chan LogNotification, d.config.Buffer),
		done:        make(chan struct{}),
		stop:        make(chan struct{}),
	}

	if d.config.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(d.config.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(d.config.PongWait))
		})
	}

	c.wg.Add(1)
	go c.readLoop()

	if d.config.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop()
	}

	return c, nil
}

// WSConn is a single logs feed connection.
type WSConn struct {
	conn      *websocket.Conn
	config    WSClientConfig
	writeMu   sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan subscribeResult
	pendingSubsMu sync.Mutex

	notifs chan LogNotification

	errMu sync.Mutex
	err   error

	// done is closed when the reader exits; stop when Close is called.
	done chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

type subscribeResult struct {
	id  int64
	err error
}

// SubscribeLogs subscribes to program logs matching the filter.
func (c *WSConn) SubscribeLogs(ctx context.Context, filter LogsFilter) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)

	var logsFilter interface{} = "all"
	if len(filter.Mentions) > 0 {
		logsFilter = map[string]interface{}{"mentions": filter.Mentions}
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			logsFilter,
			map[string]string{"commitment": "confirmed"},
		},
	}

	confirmCh := make(chan subscribeResult, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	forget := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	if err := c.writeJSON(req); err != nil {
		forget()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	timeout := c.config.SubscribeTimeout
	if timeout <= 0 {
		timeout = DefaultWSConfig().SubscribeTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-confirmCh:
		return res.id, res.err
	case <-timer.C:
		forget()
		return 0, fmt.Errorf("subscription timeout after %s", timeout)
	case <-c.done:
		return 0, fmt.Errorf("connection closed: %w", c.Err())
	case <-ctx.Done():
		forget()
		return 0, ctx.Err()
	}
}

// Notifications returns the notification channel.
func (c *WSConn) Notifications() <-chan LogNotification {
	return c.notifs
}

// Err returns the reason the connection ended.
func (c *WSConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close closes the WebSocket connection and waits for its goroutines.
func (c *WSConn) Close() error {
	if c.closed.Swap(true) {
		c.wg.Wait()
		return nil
	}
	close(c.stop)

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	_ = c.conn.Close()
	c.wg.Wait()
	return nil
}

func (c *WSConn) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

func (c *WSConn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return c.conn.WriteJSON(v)
}

// readLoop reads messages until the connection fails, then closes the notification channel.
func (c *WSConn) readLoop() {
	defer c.wg.Done()
	defer close(c.notifs)
	defer close(c.done)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				c.fail(fmt.Errorf("client closed"))
			} else {
				c.fail(fmt.Errorf("websocket read: %w", err))
			}
			return
		}

		if c.config.PongWait > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		}

		if err := c.handleMessage(message); err != nil {
			c.fail(err)
			_ = c.conn.Close()
			return
		}
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSConn) handleMessage(message []byte) error {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch {
	case env.Method == "logsNotification":
		var notif wsNotification
		if err := json.Unmarshal(message, &notif); err != nil || notif.Params == nil {
			return fmt.Errorf("%w: bad logsNotification", ErrMalformedMessage)
		}
		c.handleLogsNotification(&notif)
	case env.ID != 0 && env.Error != nil:
		c.resolvePending(env.ID, subscribeResult{
			err: fmt.Errorf("subscribe rejected: code=%d msg=%s", env.Error.Code, env.Error.Message),
		})
	case env.ID != 0 && len(env.Result) > 0:
		var subID int64
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			return fmt.Errorf("%w: subscription id: %v", ErrMalformedMessage, err)
		}
		c.resolvePending(env.ID, subscribeResult{id: subID})
	}
	return nil
}

func (c *WSConn) resolvePending(id uint64, res subscribeResult) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[id]
	if ok {
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	if ok {
		ch <- res
	}
}

// handleLogsNotification forwards a notification to the consumer.
func (c *WSConn) handleLogsNotification(notif *wsNotification) {
	value := notif.Params.Result.Value

	logNotif := LogNotification{
		Subscription: notif.Params.Subscription,
		Signature:    value.Signature,
		Logs:         value.Logs,
		Err:          value.Err,
	}

	if notif.Params.Result.Context != nil {
		logNotif.Slot = notif.Params.Result.Context.Slot
	}

	// Block until the consumer reads or the connection is closed.
	select {
	case c.notifs <- logNotif:
	case <-c.stop:
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSConn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				// Reader observes the broken connection and ends the stream.
				return
			}
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
