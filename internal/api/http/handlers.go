package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pumpswap-indexer/internal/metadata"
	"pumpswap-indexer/internal/volume"
)

// Deps are the services handlers read from.
type Deps struct {
	Volumes *volume.Service
	// Metadata, when nil, makes /tokens/{mint} answer 404.
	Metadata *metadata.Service
	// FeedState, when set, is reported by /health.
	FeedState func() string
	// StoragePing, when set, makes /health answer 503 while the durable
	// store is unreachable.
	StoragePing func(context.Context) error
	Logger      *zap.Logger
}

// API implements the HTTP handlers.
type API struct {
	deps Deps
	log  *zap.Logger
}

// NewAPI creates the handler set. Deps.Volumes is required.
func NewAPI(d Deps) *API {
	if d.Volumes == nil {
		panic("volume service cannot be nil")
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &API{deps: d, log: log}
}

// Volumes serves GET /volumes/{mint}?source=memory|sql&usd=true.
// Without usd the body maps window label to token volume.
func (a *API) Volumes(w http.ResponseWriter, r *http.Request) {
	mint := chi.URLParam(r, "mint")
	q := r.URL.Query()

	source, err := volume.ParseSource(q.Get("source"))
	if err != nil {
		a.fail(w, r, http.StatusBadRequest, "bad_request", volume.ErrUnknownSource.Error())
		return
	}

	wantUSD := false
	if raw := q.Get("usd"); raw != "" {
		wantUSD, err = strconv.ParseBool(raw)
		if err != nil {
			a.fail(w, r, http.StatusBadRequest, "bad_request", "usd must be a boolean")
			return
		}
	}

	vols, err := a.deps.Volumes.Query(r.Context(), source, mint, wantUSD)
	switch {
	case errors.Is(err, volume.ErrNoStore):
		a.fail(w, r, http.StatusServiceUnavailable, "unavailable", err.Error())
		return
	case err != nil:
		a.fail(w, r, http.StatusInternalServerError, "internal", "volume query failed")
		return
	}

	var body any = vols.TokenOnly()
	if wantUSD {
		body = vols
	}
	a.ok(w, body)
}

// Token serves GET /tokens/{mint}.
func (a *API) Token(w http.ResponseWriter, r *http.Request) {
	if a.deps.Metadata == nil {
		a.fail(w, r, http.StatusNotFound, "not_found", "token metadata is not enabled")
		return
	}

	meta, err := a.deps.Metadata.Lookup(r.Context(), chi.URLParam(r, "mint"))
	switch {
	case errors.Is(err, metadata.ErrInvalidMint):
		a.fail(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	case err != nil:
		a.fail(w, r, http.StatusInternalServerError, "internal", "metadata lookup failed")
		return
	}
	a.ok(w, meta)
}

// Health serves GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if a.deps.StoragePing != nil {
		if err := a.deps.StoragePing(r.Context()); err != nil {
			a.log.Warn("storage ping failed", zap.Error(err))
			a.fail(w, r, http.StatusServiceUnavailable, "unavailable", "storage unreachable")
			return
		}
	}
	body := map[string]any{
		"indexed_mints": len(a.deps.Volumes.Index().Mints()),
	}
	if a.deps.FeedState != nil {
		body["feed_state"] = a.deps.FeedState()
	}
	a.ok(w, body)
}

func (a *API) ok(w http.ResponseWriter, body any) {
	if err := writeJSON(w, http.StatusOK, body); err != nil {
		a.log.Warn("write response failed", zap.Error(err))
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if err := writeError(w, r, status, code, message); err != nil {
		a.log.Warn("write error response failed", zap.Error(err))
	}
}
