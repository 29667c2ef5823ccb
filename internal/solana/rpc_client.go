package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pumpswap-indexer/internal/observability"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultCommitment  = "confirmed"
	maxErrorBodyLength = 256
)

// HTTPClient implements RPCClient over JSON-RPC 2.0. Transport failures,
// 429 and 5xx answers are retried with doubling delays; JSON-RPC errors
// are returned at once.
type HTTPClient struct {
	endpoint   string
	client     *http.Client
	commitment string
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	log        *zap.Logger
	nextID     atomic.Uint64
}

type ClientOption func(*HTTPClient)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

// WithMaxRetries sets how many times a failed request is re-sent. Zero
// makes every call single-shot, for callers with their own retry policy.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) { c.maxRetries = n }
}

func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.retryDelay = d }
}

func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.maxDelay = d }
}

func WithCommitment(level string) ClientOption {
	return func(c *HTTPClient) { c.commitment = level }
}

func WithLogger(log *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		if log != nil {
			c.log = log
		}
	}
}

// NewHTTPClient creates a client for a Solana RPC endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		commitment: DefaultCommitment,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// transientError marks a failure worth another attempt. wait, when set,
// is the delay the server asked for.
type transientError struct {
	err  error
	wait time.Duration
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (c *HTTPClient) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	start := time.Now()
	defer func() { observability.RecordRPCLatency(method, time.Since(start).Seconds()) }()

	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		raw, err := c.post(ctx, body)
		if err == nil {
			if result == nil || len(raw) == 0 {
				return nil
			}
			if err := json.Unmarshal(raw, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
			return nil
		}

		var transient *transientError
		if !errors.As(err, &transient) || ctx.Err() != nil {
			return err
		}
		if attempt >= c.maxRetries {
			return fmt.Errorf("%s: retries exhausted: %w", method, err)
		}

		wait := delay
		if transient.wait > wait {
			wait = transient.wait
		}
		c.log.Debug("rpc retry",
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, c.maxDelay)
	}
}

// post sends one request and returns the raw result member.
func (c *HTTPClient) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transientError{err: fmt.Errorf("http: %w", err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &transientError{err: errors.New("rate limited"), wait: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &transientError{err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(payload))}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(payload))
	}

	var out rpcResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &transientError{err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Error != nil {
		return nil, out.Error
	}
	if string(out.Result) == "null" {
		return nil, nil
	}
	return out.Result, nil
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(b []byte) string {
	if len(b) > maxErrorBodyLength {
		return string(b[:maxErrorBodyLength]) + "..."
	}
	return string(b)
}

// GetTransaction fetches a confirmed transaction with jsonParsed encoding.
// Unknown signatures yield nil, nil.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []any{signature, map[string]any{
		"encoding":                       "jsonParsed",
		"commitment":                     c.commitment,
		"maxSupportedTransactionVersion": 0,
	}}

	var raw *wireTransaction
	if err := c.call(ctx, "getTransaction", params, &raw); err != nil {
		return nil, err
	}
	if raw == nil || (raw.Slot == 0 && raw.BlockTime == nil) {
		return nil, nil
	}
	return raw.decode(signature), nil
}

type wireTransaction struct {
	Slot      int64  `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		Err               any                   `json:"err"`
		LogMessages       []string              `json:"logMessages"`
		PreTokenBalances  []wireTokenBalance    `json:"preTokenBalances"`
		PostTokenBalances []wireTokenBalance    `json:"postTokenBalances"`
		InnerInstructions []InnerInstructionSet `json:"innerInstructions"`
	} `json:"meta"`
	Transaction *struct {
		Message *struct {
			AccountKeys  []AccountKey  `json:"accountKeys"`
			Instructions []Instruction `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
}

type wireTokenBalance struct {
	AccountIndex int    `json:"accountIndex"`
	Mint         string `json:"mint"`
	Owner        string `json:"owner"`
	Amount       struct {
		UIAmount       *float64 `json:"uiAmount"`
		UIAmountString string   `json:"uiAmountString"`
		Amount         string   `json:"amount"`
		Decimals       int      `json:"decimals"`
	} `json:"uiTokenAmount"`
}

func (w *wireTransaction) decode(signature string) *Transaction {
	tx := &Transaction{Slot: w.Slot, Signature: signature, BlockTime: w.BlockTime}

	if m := w.Meta; m != nil {
		tx.Meta = &TransactionMeta{
			Err:               m.Err,
			LogMessages:       m.LogMessages,
			PreTokenBalances:  decodeBalances(m.PreTokenBalances),
			PostTokenBalances: decodeBalances(m.PostTokenBalances),
			InnerInstructions: m.InnerInstructions,
		}
	}

	if w.Transaction != nil && w.Transaction.Message != nil {
		msg := w.Transaction.Message
		keys := make([]string, 0, len(msg.AccountKeys))
		for _, k := range msg.AccountKeys {
			keys = append(keys, string(k))
		}
		tx.Message = &TransactionMessage{AccountKeys: keys, Instructions: msg.Instructions}
	}
	return tx
}

func decodeBalances(rows []wireTokenBalance) []TokenBalance {
	if len(rows) == 0 {
		return nil
	}
	out := make([]TokenBalance, 0, len(rows))
	for _, r := range rows {
		out = append(out, TokenBalance{
			AccountIndex:   r.AccountIndex,
			Mint:           r.Mint,
			Owner:          r.Owner,
			UIAmount:       r.Amount.UIAmount,
			UIAmountString: r.Amount.UIAmountString,
			Amount:         r.Amount.Amount,
			Decimals:       r.Amount.Decimals,
		})
	}
	return out
}

// GetSignaturesForAddress lists signatures touching address, newest first.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	params := []any{address}
	if cfg := opts.params(c.commitment); len(cfg) > 0 {
		params = append(params, cfg)
	}

	var sigs []SignatureInfo
	if err := c.call(ctx, "getSignaturesForAddress", params, &sigs); err != nil {
		return nil, err
	}
	return sigs, nil
}

func (o *SignaturesOpts) params(commitment string) map[string]any {
	cfg := map[string]any{"commitment": commitment}
	if o == nil {
		return cfg
	}
	if o.Before != "" {
		cfg["before"] = o.Before
	}
	if o.Until != "" {
		cfg["until"] = o.Until
	}
	if o.Limit > 0 {
		cfg["limit"] = o.Limit
	}
	return cfg
}

// GetAccountData returns the decoded bytes of an account, or nil, nil
// when it does not exist.
func (c *HTTPClient) GetAccountData(ctx context.Context, pubkey string) ([]byte, error) {
	var res struct {
		Value *struct {
			Data []string `json:"data"` // [payload, encoding]
		} `json:"value"`
	}
	params := []any{pubkey, map[string]any{"encoding": "base64", "commitment": c.commitment}}
	if err := c.call(ctx, "getAccountInfo", params, &res); err != nil {
		return nil, err
	}
	if res.Value == nil || len(res.Value.Data) == 0 {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(res.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decode account %s: %w", pubkey, err)
	}
	return data, nil
}

// GetTokenSupply returns a mint's supply, or nil, nil for an unknown mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error) {
	var res struct {
		Value *struct {
			Amount         string   `json:"amount"`
			Decimals       int      `json:"decimals"`
			UIAmount       *float64 `json:"uiAmount"`
			UIAmountString string   `json:"uiAmountString"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenSupply", []any{mint}, &res); err != nil {
		return nil, err
	}
	if res.Value == nil {
		return nil, nil
	}
	v := res.Value
	return &TokenSupply{Amount: v.Amount, Decimals: v.Decimals, UIAmount: v.UIAmount, UIAmountString: v.UIAmountString}, nil
}
