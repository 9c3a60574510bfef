package handlers

import (
	"context"
	"net/http"

	"github.com/biorecords/biorecords/internal/server/filter"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/logging"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

// subjectStatus is the conservation status of a taxon or community
// together with the listings it was resolved from.
type subjectStatus struct {
	conservation.SubjectStatus
	Listings []*conservation.Listing `json:"listings"`
}

func newSubjectStatus(status conservation.SubjectStatus, listings []*conservation.Listing) subjectStatus {
	if listings == nil {
		listings = []*conservation.Listing{}
	}
	return subjectStatus{SubjectStatus: status, Listings: listings}
}

// HandleListTaxa handles GET /taxon.
// Filters: rank, current, paraphyletic_groups, parent and q (name contains).
func (h *Handlers) HandleListTaxa(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		f, err := filter.Taxa(r)
		if err != nil {
			return nil, err
		}
		items, total, err := h.store.Taxa.List(ctx, f)
		if err != nil {
			return nil, err
		}
		return page(r, f.ListOptions, items, total), nil
	})
}

// HandleCreateTaxon handles POST /taxon.
func (h *Handlers) HandleCreateTaxon(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Taxa.Create)
}

// HandleGetTaxon handles GET /taxon/{id}.
func (h *Handlers) HandleGetTaxon(w http.ResponseWriter, r *http.Request, nameID int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Taxa.Get(ctx, nameID)
	})
}

// HandleUpdateTaxon handles PUT and PATCH /taxon/{id}. A changed name,
// rank or parent rebuilds the names of the whole subtree.
func (h *Handlers) HandleUpdateTaxon(w http.ResponseWriter, r *http.Request, nameID int64) {
	r = r.WithContext(logging.WithTaxon(r.Context(), nameID))
	update(h, w, r,
		func(ctx context.Context) (*taxonomy.Taxon, error) { return h.store.Taxa.Get(ctx, nameID) },
		func(t *taxonomy.Taxon) { t.NameID = nameID },
		h.store.Taxa.Update)
}

// HandleDeleteTaxon handles DELETE /taxon/{id}.
func (h *Handlers) HandleDeleteTaxon(w http.ResponseWriter, r *http.Request, nameID int64) {
	r = r.WithContext(logging.WithTaxon(r.Context(), nameID))
	h.remove(w, r, func(ctx context.Context) error { return h.store.Taxa.Delete(ctx, nameID) })
}

// HandleTaxonStatus handles GET /taxon/{id}/conservation-status.
func (h *Handlers) HandleTaxonStatus(w http.ResponseWriter, r *http.Request, nameID int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		status, listings, err := h.store.Listings.TaxonStatus(ctx, nameID)
		if err != nil {
			return nil, err
		}
		return newSubjectStatus(status, listings), nil
	})
}

// HandleTaxonAncestors handles GET /taxon/{id}/ancestors, root first.
func (h *Handlers) HandleTaxonAncestors(w http.ResponseWriter, r *http.Request, nameID int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		items, err := h.store.Taxa.Ancestors(ctx, nameID)
		if items == nil {
			items = []*taxonomy.Taxon{}
		}
		return items, err
	})
}

// HandleTaxonChildren handles GET /taxon/{id}/children.
func (h *Handlers) HandleTaxonChildren(w http.ResponseWriter, r *http.Request, nameID int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		items, err := h.store.Taxa.Children(ctx, nameID)
		if items == nil {
			items = []*taxonomy.Taxon{}
		}
		return items, err
	})
}

// HandleListVernaculars handles GET /vernacular?taxon=.
func (h *Handlers) HandleListVernaculars(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		p := filter.New(r)
		opts, taxonID := p.List(), p.Int64("taxon")
		if err := p.Err(); err != nil {
			return nil, err
		}
		items, total, err := h.store.Vernaculars.List(ctx, taxonID, opts)
		if err != nil {
			return nil, err
		}
		return page(r, opts, items, total), nil
	})
}

// HandleCreateVernacular handles POST /vernacular.
func (h *Handlers) HandleCreateVernacular(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Vernaculars.Create)
}

// HandleGetVernacular handles GET /vernacular/{id}.
func (h *Handlers) HandleGetVernacular(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Vernaculars.Get(ctx, id)
	})
}

// HandleUpdateVernacular handles PUT and PATCH /vernacular/{id}.
func (h *Handlers) HandleUpdateVernacular(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*taxonomy.Vernacular, error) { return h.store.Vernaculars.Get(ctx, id) },
		func(v *taxonomy.Vernacular) { v.ID = id },
		h.store.Vernaculars.Update)
}

// HandleDeleteVernacular handles DELETE /vernacular/{id}.
func (h *Handlers) HandleDeleteVernacular(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Vernaculars.Delete(ctx, id) })
}

// HandleListCrossreferences handles GET /crossreference?taxon=.
func (h *Handlers) HandleListCrossreferences(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		p := filter.New(r)
		opts, taxonID := p.List(), p.Int64("taxon")
		if err := p.Err(); err != nil {
			return nil, err
		}
		items, total, err := h.store.Crossreferences.List(ctx, taxonID, opts)
		if err != nil {
			return nil, err
		}
		return page(r, opts, items, total), nil
	})
}

// HandleCreateCrossreference handles POST /crossreference.
func (h *Handlers) HandleCreateCrossreference(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Crossreferences.Create)
}

// HandleGetCrossreference handles GET /crossreference/{id}.
func (h *Handlers) HandleGetCrossreference(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Crossreferences.Get(ctx, id)
	})
}

// HandleUpdateCrossreference handles PUT and PATCH /crossreference/{id}.
func (h *Handlers) HandleUpdateCrossreference(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*taxonomy.Crossreference, error) {
			return h.store.Crossreferences.Get(ctx, id)
		},
		func(x *taxonomy.Crossreference) { x.ID = id },
		h.store.Crossreferences.Update)
}

// HandleDeleteCrossreference handles DELETE /crossreference/{id}.
func (h *Handlers) HandleDeleteCrossreference(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Crossreferences.Delete(ctx, id) })
}
