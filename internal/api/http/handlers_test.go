package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/metadata"
	"pumpswap-indexer/internal/solana"
	"pumpswap-indexer/internal/solana/stub"
	"pumpswap-indexer/internal/storage/memory"
	"pumpswap-indexer/internal/volume"
	"pumpswap-indexer/internal/window"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *APIError       `json:"error"`
}

func do(t *testing.T, h http.Handler, path string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func newTestRouter(t *testing.T, withStore bool) http.Handler {
	t.Helper()
	ctx := context.Background()

	usdc := domain.USDCMint
	price := 2.0
	tr := &domain.Trade{Signature: "s1", Timestamp: 1000, Mint: "MINT", BaseDelta: -4, QuoteMint: &usdc, Price: &price}

	idx := window.NewIndex(window.WithClock(func() time.Time { return time.Unix(1000, 0) }))
	idx.Add(tr)

	opts := volume.Options{Index: idx, Clock: func() time.Time { return time.Unix(1010, 0) }}
	if withStore {
		store := memory.NewTradeStore()
		_, err := store.Insert(ctx, tr)
		require.NoError(t, err)
		opts.Store = store
	}

	rpc := stub.NewRPCClient()
	ui := 100.0
	rpc.Supplies[domain.USDCMint] = &solana.TokenSupply{Amount: "100000000", Decimals: 6, UIAmount: &ui}

	api := NewAPI(Deps{
		Volumes:   volume.New(opts),
		Metadata:  metadata.New(metadata.Options{RPC: rpc}),
		FeedState: func() string { return "streaming" },
	})
	return NewRouter(api)
}

func TestVolumes_Memory(t *testing.T) {
	h := newTestRouter(t, false)

	code, env := do(t, h, "/volumes/MINT")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", env.Status)

	var vols map[string]float64
	require.NoError(t, json.Unmarshal(env.Data, &vols))
	assert.Equal(t, 4.0, vols["1m"])
	assert.Equal(t, 4.0, vols["1h"])
}

func TestVolumes_USD(t *testing.T) {
	h := newTestRouter(t, true)

	for _, source := range []string{"memory", "sql"} {
		code, env := do(t, h, "/volumes/MINT?usd=true&source="+source)
		require.Equal(t, http.StatusOK, code, source)

		var vols domain.Volumes
		require.NoError(t, json.Unmarshal(env.Data, &vols))
		assert.Equal(t, 4.0, vols["1m"].Token, source)
		assert.Equal(t, 8.0, vols["1m"].USD, source)
	}
}

func TestVolumes_BadRequest(t *testing.T) {
	h := newTestRouter(t, true)

	code, env := do(t, h, "/volumes/MINT?source=redis")
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "bad_request", env.Error.Code)
	assert.Equal(t, "source must be 'memory' or 'sql'", env.Error.Message)
	assert.NotEmpty(t, env.Error.TraceID)

	code, _ = do(t, h, "/volumes/MINT?usd=maybe")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestVolumes_SQLWithoutStore(t *testing.T) {
	h := newTestRouter(t, false)

	code, env := do(t, h, "/volumes/MINT?source=sql")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	require.NotNil(t, env.Error)
}

func TestToken(t *testing.T) {
	h := newTestRouter(t, false)

	code, env := do(t, h, "/tokens/"+domain.USDCMint)
	require.Equal(t, http.StatusOK, code)

	var meta domain.TokenMetadata
	require.NoError(t, json.Unmarshal(env.Data, &meta))
	assert.Equal(t, domain.USDCMint, meta.Mint)
	require.NotNil(t, meta.Supply)
	assert.Equal(t, 100.0, *meta.Supply)

	code, _ = do(t, h, "/tokens/not-a-mint")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestToken_Disabled(t *testing.T) {
	h := NewRouter(NewAPI(Deps{Volumes: volume.New(volume.Options{})}))
	code, _ := do(t, h, "/tokens/"+domain.USDCMint)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, false)

	code, env := do(t, h, "/health")
	require.Equal(t, http.StatusOK, code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "streaming", body["feed_state"])
	assert.Equal(t, 1.0, body["indexed_mints"])
}

func TestHealth_StorageDown(t *testing.T) {
	api := NewAPI(Deps{
		Volumes:     volume.New(volume.Options{Index: window.NewIndex()}),
		StoragePing: func(context.Context) error { return errors.New("connection refused") },
	})

	code, env := do(t, NewRouter(api), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", env.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pumpswap_indexer_")
}
