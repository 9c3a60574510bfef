package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb/geojson"

	"github.com/biorecords/biorecords/internal/server/filter"
	"github.com/biorecords/biorecords/internal/server/response"
	"github.com/biorecords/biorecords/pkg/geo"
	"github.com/biorecords/biorecords/pkg/occurrence"
)

// HandleListLookups handles GET /lookup/{table}, ordered by code.
func (h *Handlers) HandleListLookups(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	h.cached(w, r, func(ctx context.Context) (any, error) {
		p := filter.New(r)
		opts := p.List()
		if err := p.Err(); err != nil {
			return nil, err
		}
		items, total, err := h.store.Lookups.List(ctx, table, opts)
		if err != nil {
			return nil, err
		}
		return page(r, opts, items, total), nil
	})
}

// HandleCreateLookup handles POST /lookup/{table}.
func (h *Handlers) HandleCreateLookup(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	create(h, w, r, func(l *occurrence.Lookup) { l.Table = table }, h.store.Lookups.Create)
}

// HandleGetLookup handles GET /lookup/{table}/{id}.
func (h *Handlers) HandleGetLookup(w http.ResponseWriter, r *http.Request, id int64) {
	table := mux.Vars(r)["table"]
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Lookups.Get(ctx, table, id)
	})
}

// HandleUpdateLookup handles PUT and PATCH /lookup/{table}/{id}.
func (h *Handlers) HandleUpdateLookup(w http.ResponseWriter, r *http.Request, id int64) {
	table := mux.Vars(r)["table"]
	update(h, w, r,
		func(ctx context.Context) (*occurrence.Lookup, error) { return h.store.Lookups.Get(ctx, table, id) },
		func(l *occurrence.Lookup) { l.ID, l.Table = id, table },
		h.store.Lookups.Update)
}

// HandleDeleteLookup handles DELETE /lookup/{table}/{id}.
func (h *Handlers) HandleDeleteLookup(w http.ResponseWriter, r *http.Request, id int64) {
	table := mux.Vars(r)["table"]
	h.remove(w, r, func(ctx context.Context) error { return h.store.Lookups.Delete(ctx, table, id) })
}

// AreaEncounters returns the handlers of one area encounter kind and
// geometry type. Polygon endpoints read the geometry from "geom", point
// endpoints from "point".
func (h *Handlers) AreaEncounters(kind occurrence.Kind, geomType string) *AreaEncounterHandlers {
	return &AreaEncounterHandlers{h: h, kind: kind, geomType: geomType}
}

// AreaEncounterHandlers serves one occ-*-areas or occ-*-points endpoint.
// Records are written as GeoJSON features.
type AreaEncounterHandlers struct {
	h        *Handlers
	kind     occurrence.Kind
	geomType string
}

// areaEncounterBody accepts a point geometry under "point".
type areaEncounterBody struct {
	*occurrence.AreaEncounter
	Point *geo.Geometry `json:"point"`
}

func (ah *AreaEncounterHandlers) decode(w http.ResponseWriter, r *http.Request, a *occurrence.AreaEncounter) error {
	body := areaEncounterBody{AreaEncounter: a}
	if err := decode(w, r, &body); err != nil {
		return err
	}
	if ah.geomType == geo.TypePoint && body.Point != nil {
		a.Geom = *body.Point
	}
	a.Kind = ah.kind
	return nil
}

// HandleList handles GET. Filters: taxon and community.
func (ah *AreaEncounterHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	ah.h.cached(w, r, func(ctx context.Context) (any, error) {
		f, err := filter.AreaEncounters(r, ah.kind, ah.geomType)
		if err != nil {
			return nil, err
		}
		items, total, err := ah.h.store.AreaEncounters.List(ctx, f)
		if err != nil {
			return nil, err
		}
		features := make([]*geojson.Feature, len(items))
		for i, a := range items {
			features[i] = a.Feature()
		}
		return page(r, f.ListOptions, features, total), nil
	})
}

// HandleCreate handles POST. encounter_type accepts a lookup id or code.
func (ah *AreaEncounterHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	a := &occurrence.AreaEncounter{}
	if err := ah.decode(w, r, a); err != nil {
		ah.h.fail(w, r, err)
		return
	}
	if err := ah.h.store.AreaEncounters.Create(r.Context(), a, ah.geomType); err != nil {
		ah.h.fail(w, r, err)
		return
	}
	response.Created(w, a.Feature())
}

// HandleGet handles GET /{id}.
func (ah *AreaEncounterHandlers) HandleGet(w http.ResponseWriter, r *http.Request, id int64) {
	ah.h.cached(w, r, func(ctx context.Context) (any, error) {
		a, err := ah.h.store.AreaEncounters.Get(ctx, ah.kind, ah.geomType, id)
		if err != nil {
			return nil, err
		}
		return a.Feature(), nil
	})
}

// HandleUpdate handles PUT and PATCH /{id}.
func (ah *AreaEncounterHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	ctx := r.Context()
	a, err := ah.h.store.AreaEncounters.Get(ctx, ah.kind, ah.geomType, id)
	if err != nil {
		ah.h.fail(w, r, err)
		return
	}
	if r.Method == http.MethodPut {
		*a = occurrence.AreaEncounter{}
	}
	if err := ah.decode(w, r, a); err != nil {
		ah.h.fail(w, r, err)
		return
	}
	a.ID = id
	if err := ah.h.store.AreaEncounters.Update(ctx, a, ah.geomType); err != nil {
		ah.h.fail(w, r, err)
		return
	}
	response.OK(w, a.Feature())
}

// HandleDelete handles DELETE /{id}.
func (ah *AreaEncounterHandlers) HandleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	ah.h.remove(w, r, func(ctx context.Context) error {
		return ah.h.store.AreaEncounters.Delete(ctx, ah.kind, ah.geomType, id)
	})
}
