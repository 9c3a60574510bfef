package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/biorecords/biorecords/internal/server/cache"
	"github.com/biorecords/biorecords/internal/server/events"
	"github.com/biorecords/biorecords/internal/server/middleware"
	"github.com/biorecords/biorecords/internal/server/response"
	"github.com/biorecords/biorecords/internal/server/sse"
	ws "github.com/biorecords/biorecords/internal/server/websocket"
	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/logging"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 8 << 20

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	store          *store.Store
	cache          *cache.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	counters       *middleware.Counters
	startTime      time.Time
}

// New creates a new Handlers instance.
func New(
	st *store.Store,
	cache *cache.Cache,
	broker *events.Broker,
	wsHub *ws.Hub,
	sseBroadcaster *sse.Broadcaster,
	upgrader websocket.Upgrader,
	logger *zerolog.Logger,
	counters *middleware.Counters,
) *Handlers {
	return &Handlers{
		store:          st,
		cache:          cache,
		broker:         broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader:       upgrader,
		logger:         logger,
		counters:       counters,
		startTime:      time.Now(),
	}
}

// fail writes err through the error envelope. Server errors are logged with
// the request logger since their cause is hidden from the client.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if response.StatusFor(err) >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	response.ErrorFromType(w, err)
}

// cached serves a GET response from the cache, building and storing it on
// a miss. The cache is flushed on every record change.
func (h *Handlers) cached(w http.ResponseWriter, r *http.Request, build func(ctx context.Context) (any, error)) {
	key := cache.Key(r)
	if v, ok := h.cache.Get(key); ok {
		response.OK(w, v)
		return
	}
	v, err := build(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cache.Set(key, v)
	response.OK(w, v)
}

// page builds a list page, rendering an empty result set as [].
func page[T any](r *http.Request, opts store.ListOptions, items []T, total int) response.Page {
	if items == nil {
		items = []T{}
	}
	return response.NewPage(r, items, total, opts.Limit, opts.Offset)
}

// decode reads a JSON request body into v. Unknown fields are ignored.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, io.EOF):
		return errors.NewValidationError("body", nil, "request body is empty")
	default:
		var tErr *json.UnmarshalTypeError
		if stderrors.As(err, &tErr) && tErr.Field != "" {
			return errors.NewValidationError(tErr.Field, tErr.Value, "must be of type "+tErr.Type.String())
		}
		return errors.WrapParse("json", "request body", err)
	}
}

// pathID returns the numeric path variable name. Routes constrain it to
// digits, so only overflow can fail.
func pathID(r *http.Request, name string) (int64, error) {
	v := mux.Vars(r)[name]
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError(name, v, "must be an integer id")
	}
	return id, nil
}

// create decodes a new record, lets prepare fill in what the route
// determines and saves it.
func create[T any](h *Handlers, w http.ResponseWriter, r *http.Request, prepare func(*T), save func(context.Context, *T) error) {
	v := new(T)
	if err := decode(w, r, v); err != nil {
		h.fail(w, r, err)
		return
	}
	if prepare != nil {
		prepare(v)
	}
	if err := save(r.Context(), v); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, v)
}

// update applies a PUT or PATCH to a stored record. PATCH merges the body
// into the stored record, PUT starts from an empty one. keep restores the
// identity fields the body must not change.
func update[T any](h *Handlers, w http.ResponseWriter, r *http.Request,
	load func(context.Context) (*T, error), keep func(*T), save func(context.Context, *T) error,
) {
	v, err := load(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if r.Method == http.MethodPut {
		var zero T
		*v = zero
	}
	if err := decode(w, r, v); err != nil {
		h.fail(w, r, err)
		return
	}
	keep(v)
	if err := save(r.Context(), v); err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, v)
}

// remove runs a delete and answers 204.
func (h *Handlers) remove(w http.ResponseWriter, r *http.Request, del func(context.Context) error) {
	if err := del(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}

// WithID parses the id path variable before calling fn.
func (h *Handlers) WithID(fn func(w http.ResponseWriter, r *http.Request, id int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		fn(w, r, id)
	}
}
