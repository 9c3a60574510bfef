package handlers

import (
	"context"
	"net/http"

	"github.com/biorecords/biorecords/internal/server/filter"
	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/conservation"
)

// ManagementCategories returns the handlers of the threat or action
// category table.
func (h *Handlers) ManagementCategories(kind store.CategoryKind) *CategoryHandlers {
	return &CategoryHandlers{h: h, kind: kind}
}

// CategoryHandlers serves one management category table.
type CategoryHandlers struct {
	h    *Handlers
	kind store.CategoryKind
}

// HandleList handles GET, ordered by code.
func (ch *CategoryHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	ch.h.cached(w, r, func(ctx context.Context) (any, error) {
		items, err := ch.h.store.Management.Categories(ctx, ch.kind)
		if err != nil {
			return nil, err
		}
		return page(r, store.ListOptions{}, items, len(items)), nil
	})
}

// HandleCreate handles POST.
func (ch *CategoryHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	create(ch.h, w, r, nil, func(ctx context.Context, c *conservation.ManagementCategory) error {
		return ch.h.store.Management.CreateCategory(ctx, ch.kind, c)
	})
}

// HandleGet handles GET /{id}.
func (ch *CategoryHandlers) HandleGet(w http.ResponseWriter, r *http.Request, id int64) {
	ch.h.cached(w, r, func(ctx context.Context) (any, error) {
		return ch.h.store.Management.Category(ctx, ch.kind, id)
	})
}

// HandleUpdate handles PUT and PATCH /{id}.
func (ch *CategoryHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	update(ch.h, w, r,
		func(ctx context.Context) (*conservation.ManagementCategory, error) {
			return ch.h.store.Management.Category(ctx, ch.kind, id)
		},
		func(c *conservation.ManagementCategory) { c.ID = id },
		func(ctx context.Context, c *conservation.ManagementCategory) error {
			return ch.h.store.Management.UpdateCategory(ctx, ch.kind, c)
		})
}

// HandleDelete handles DELETE /{id}.
func (ch *CategoryHandlers) HandleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	ch.h.remove(w, r, func(ctx context.Context) error {
		return ch.h.store.Management.DeleteCategory(ctx, ch.kind, id)
	})
}

// HandleListThreats handles GET /conservationthreat.
// Filters: taxon, community, document and category.
func (h *Handlers) HandleListThreats(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		f, _, err := filter.Management(r)
		if err != nil {
			return nil, err
		}
		items, total, err := h.store.Management.Threats(ctx, f)
		if err != nil {
			return nil, err
		}
		return page(r, f.ListOptions, items, total), nil
	})
}

// HandleCreateThreat handles POST /conservationthreat.
func (h *Handlers) HandleCreateThreat(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Management.CreateThreat)
}

// HandleGetThreat handles GET /conservationthreat/{id}.
func (h *Handlers) HandleGetThreat(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Management.Threat(ctx, id)
	})
}

// HandleUpdateThreat handles PUT and PATCH /conservationthreat/{id}.
func (h *Handlers) HandleUpdateThreat(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*conservation.Threat, error) { return h.store.Management.Threat(ctx, id) },
		func(t *conservation.Threat) { t.ID = id },
		h.store.Management.UpdateThreat)
}

// HandleDeleteThreat handles DELETE /conservationthreat/{id}.
func (h *Handlers) HandleDeleteThreat(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Management.DeleteThreat(ctx, id) })
}

// HandleListActions handles GET /conservationaction. Besides the threat
// filters it accepts status (not started, in progress or completed).
func (h *Handlers) HandleListActions(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		f, status, err := filter.Management(r)
		if err != nil {
			return nil, err
		}
		items, total, err := h.store.Management.Actions(ctx, f, status)
		if err != nil {
			return nil, err
		}
		return page(r, f.ListOptions, items, total), nil
	})
}

// HandleCreateAction handles POST /conservationaction. The status is
// derived and ignored in the body.
func (h *Handlers) HandleCreateAction(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Management.CreateAction)
}

// HandleGetAction handles GET /conservationaction/{id}.
func (h *Handlers) HandleGetAction(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Management.Action(ctx, id)
	})
}

// HandleUpdateAction handles PUT and PATCH /conservationaction/{id}.
func (h *Handlers) HandleUpdateAction(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*conservation.Action, error) { return h.store.Management.Action(ctx, id) },
		func(a *conservation.Action) { a.ID = id },
		h.store.Management.UpdateAction)
}

// HandleDeleteAction handles DELETE /conservationaction/{id}.
func (h *Handlers) HandleDeleteAction(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Management.DeleteAction(ctx, id) })
}

// HandleListActivities handles GET /conservationactivity?conservation_action=.
func (h *Handlers) HandleListActivities(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		p := filter.New(r)
		opts, actionID := p.List(), p.Int64("conservation_action")
		if err := p.Err(); err != nil {
			return nil, err
		}
		items, total, err := h.store.Management.Activities(ctx, actionID, opts)
		if err != nil {
			return nil, err
		}
		return page(r, opts, items, total), nil
	})
}

// HandleCreateActivity handles POST /conservationactivity.
func (h *Handlers) HandleCreateActivity(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Management.CreateActivity)
}

// HandleGetActivity handles GET /conservationactivity/{id}.
func (h *Handlers) HandleGetActivity(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Management.Activity(ctx, id)
	})
}

// HandleUpdateActivity handles PUT and PATCH /conservationactivity/{id}.
func (h *Handlers) HandleUpdateActivity(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*conservation.Activity, error) { return h.store.Management.Activity(ctx, id) },
		func(a *conservation.Activity) { a.ID = id },
		h.store.Management.UpdateActivity)
}

// HandleDeleteActivity handles DELETE /conservationactivity/{id}.
func (h *Handlers) HandleDeleteActivity(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Management.DeleteActivity(ctx, id) })
}
