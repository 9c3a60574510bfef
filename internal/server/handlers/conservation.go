package handlers

import (
	"context"
	"net/http"

	"github.com/biorecords/biorecords/internal/server/filter"
	"github.com/biorecords/biorecords/internal/server/response"
	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
)

// HandleListLists handles GET /conservationlist. Lists are few and are
// returned in a single page.
func (h *Handlers) HandleListLists(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		items, err := h.store.Lists.All(ctx)
		if err != nil {
			return nil, err
		}
		return page(r, store.ListOptions{}, items, len(items)), nil
	})
}

// HandleCreateList handles POST /conservationlist.
func (h *Handlers) HandleCreateList(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Lists.Create)
}

// HandleGetList handles GET /conservationlist/{id}.
func (h *Handlers) HandleGetList(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Lists.Get(ctx, id)
	})
}

// HandleUpdateList handles PUT and PATCH /conservationlist/{id}.
func (h *Handlers) HandleUpdateList(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*conservation.List, error) { return h.store.Lists.Get(ctx, id) },
		func(l *conservation.List) { l.ID = id },
		h.store.Lists.Update)
}

// HandleDeleteList handles DELETE /conservationlist/{id}.
func (h *Handlers) HandleDeleteList(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Lists.Delete(ctx, id) })
}

// HandleListCategories handles GET /conservationcategory?conservation_list=.
func (h *Handlers) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		p := filter.New(r)
		listID := p.Int64("conservation_list")
		if err := p.Err(); err != nil {
			return nil, err
		}
		items, err := h.store.Lists.Categories(ctx, listID)
		if err != nil {
			return nil, err
		}
		return page(r, store.ListOptions{}, items, len(items)), nil
	})
}

// HandleCreateCategory handles POST /conservationcategory.
func (h *Handlers) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Lists.CreateCategory)
}

// HandleGetCategory handles GET /conservationcategory/{id}.
func (h *Handlers) HandleGetCategory(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Lists.Category(ctx, id)
	})
}

// HandleUpdateCategory handles PUT and PATCH /conservationcategory/{id}.
func (h *Handlers) HandleUpdateCategory(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*conservation.Category, error) { return h.store.Lists.Category(ctx, id) },
		func(c *conservation.Category) { c.ID = id },
		h.store.Lists.UpdateCategory)
}

// HandleDeleteCategory handles DELETE /conservationcategory/{id}.
func (h *Handlers) HandleDeleteCategory(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Lists.DeleteCategory(ctx, id) })
}

// HandleListCriteria handles GET /conservationcriterion?conservation_list=.
func (h *Handlers) HandleListCriteria(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		p := filter.New(r)
		listID := p.Int64("conservation_list")
		if err := p.Err(); err != nil {
			return nil, err
		}
		items, err := h.store.Lists.Criteria(ctx, listID)
		if err != nil {
			return nil, err
		}
		return page(r, store.ListOptions{}, items, len(items)), nil
	})
}

// HandleCreateCriterion handles POST /conservationcriterion.
func (h *Handlers) HandleCreateCriterion(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Lists.CreateCriterion)
}

// HandleGetCriterion handles GET /conservationcriterion/{id}.
func (h *Handlers) HandleGetCriterion(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Lists.Criterion(ctx, id)
	})
}

// HandleUpdateCriterion handles PUT and PATCH /conservationcriterion/{id}.
func (h *Handlers) HandleUpdateCriterion(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*conservation.Criterion, error) { return h.store.Lists.Criterion(ctx, id) },
		func(c *conservation.Criterion) { c.ID = id },
		h.store.Lists.UpdateCriterion)
}

// HandleDeleteCriterion handles DELETE /conservationcriterion/{id}.
func (h *Handlers) HandleDeleteCriterion(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Lists.DeleteCriterion(ctx, id) })
}

// Listings returns the handlers of one listing subject kind, mounted at
// /taxonconservationlisting and /communityconservationlisting.
func (h *Handlers) Listings(kind conservation.SubjectKind) *ListingHandlers {
	return &ListingHandlers{h: h, kind: kind}
}

// ListingHandlers serves the listings of one subject kind.
type ListingHandlers struct {
	h    *Handlers
	kind conservation.SubjectKind
}

// HandleList handles GET. Filters: taxon, community, scope and status.
func (lh *ListingHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	lh.h.cached(w, r, func(ctx context.Context) (any, error) {
		f, err := filter.Listings(r, lh.kind)
		if err != nil {
			return nil, err
		}
		items, total, err := lh.h.store.Listings.List(ctx, f)
		if err != nil {
			return nil, err
		}
		return page(r, f.ListOptions, items, total), nil
	})
}

// HandleCreate handles POST. Category and criteria ids may be a list, a
// single id or null.
func (lh *ListingHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	create(lh.h, w, r,
		func(l *conservation.Listing) { l.Kind = lh.kind },
		lh.h.store.Listings.Create)
}

// HandleGet handles GET /{id}.
func (lh *ListingHandlers) HandleGet(w http.ResponseWriter, r *http.Request, id int64) {
	lh.h.cached(w, r, func(ctx context.Context) (any, error) {
		return lh.h.store.Listings.Get(ctx, lh.kind, id)
	})
}

// HandleUpdate handles PUT and PATCH /{id}. The status only changes
// through HandleTransition.
func (lh *ListingHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	update(lh.h, w, r,
		func(ctx context.Context) (*conservation.Listing, error) {
			return lh.h.store.Listings.Get(ctx, lh.kind, id)
		},
		func(l *conservation.Listing) { l.ID, l.Kind = id, lh.kind },
		lh.h.store.Listings.Update)
}

// HandleDelete handles DELETE /{id}.
func (lh *ListingHandlers) HandleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	lh.h.remove(w, r, func(ctx context.Context) error { return lh.h.store.Listings.Delete(ctx, lh.kind, id) })
}

// transitionRequest is the body of a listing or encounter transition.
type transitionRequest[S any] struct {
	Status *S `json:"status"`
}

// HandleTransition handles POST /{id}/transition with {"status": N}.
// Transitions the approval workflow does not allow are conflicts.
func (lh *ListingHandlers) HandleTransition(w http.ResponseWriter, r *http.Request, id int64) {
	var req transitionRequest[conservation.ListingStatus]
	if err := decode(w, r, &req); err != nil {
		lh.h.fail(w, r, err)
		return
	}
	if req.Status == nil {
		lh.h.fail(w, r, errors.NewValidationError("status", nil, "is required"))
		return
	}
	l, err := lh.h.store.Listings.Transition(r.Context(), lh.kind, id, *req.Status)
	if err != nil {
		lh.h.fail(w, r, err)
		return
	}
	response.OK(w, l)
}
