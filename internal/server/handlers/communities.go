package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/biorecords/biorecords/internal/server/filter"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

// HandleListCommunities handles GET /community.
func (h *Handlers) HandleListCommunities(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		p := filter.New(r)
		opts := p.List()
		if err := p.Err(); err != nil {
			return nil, err
		}
		items, total, err := h.store.Communities.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		return page(r, opts, items, total), nil
	})
}

// HandleCreateCommunity handles POST /community.
func (h *Handlers) HandleCreateCommunity(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Communities.Create)
}

// HandleGetCommunity handles GET /community/{code}.
func (h *Handlers) HandleGetCommunity(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Communities.Get(ctx, code)
	})
}

// HandleUpdateCommunity handles PUT and PATCH /community/{code}. The code
// is the community's identity and cannot be changed through the body.
func (h *Handlers) HandleUpdateCommunity(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var id int64
	update(h, w, r,
		func(ctx context.Context) (*taxonomy.Community, error) {
			c, err := h.store.Communities.Get(ctx, code)
			if err == nil {
				id = c.ID
			}
			return c, err
		},
		func(c *taxonomy.Community) { c.ID, c.Code = id, code },
		h.store.Communities.Update)
}

// HandleDeleteCommunity handles DELETE /community/{code}.
func (h *Handlers) HandleDeleteCommunity(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	h.remove(w, r, func(ctx context.Context) error { return h.store.Communities.Delete(ctx, code) })
}

// HandleCommunityStatus handles GET /community/{code}/conservation-status.
func (h *Handlers) HandleCommunityStatus(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	h.cached(w, r, func(ctx context.Context) (any, error) {
		status, listings, err := h.store.Listings.CommunityStatus(ctx, code)
		if err != nil {
			return nil, err
		}
		return newSubjectStatus(status, listings), nil
	})
}
