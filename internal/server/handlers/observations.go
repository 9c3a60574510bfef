package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/biorecords/biorecords/internal/server/filter"
	"github.com/biorecords/biorecords/internal/server/response"
	"github.com/biorecords/biorecords/pkg/logging"
	"github.com/biorecords/biorecords/pkg/schema"
)

// Observations returns the typed observation handlers of a domain:
// /occ-observation for occurrence observation groups and /observations
// for field encounter observations.
func (h *Handlers) Observations(domain schema.Domain) *ObservationHandlers {
	return &ObservationHandlers{h: h, domain: domain}
}

// ObservationHandlers dispatches observation payloads by obstype.
type ObservationHandlers struct {
	h      *Handlers
	domain schema.Domain
}

// bulkCreateResult is the body of a successful bulk create.
type bulkCreateResult struct {
	CreatedCount int `json:"created_count"`
}

// HandleList handles GET with optional obstype and encounter filters.
// Every result carries its obstype next to its typed fields.
func (oh *ObservationHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	oh.h.cached(w, r, func(ctx context.Context) (any, error) {
		f, err := filter.Observations(r, oh.domain)
		if err != nil {
			return nil, err
		}
		items, total, err := oh.h.store.Observations.List(ctx, f)
		if err != nil {
			return nil, err
		}
		return page(r, f.ListOptions, items, total), nil
	})
}

// HandleCreate handles POST with the obstype in the query or the body.
// When an identical observation already exists it is returned with 200
// instead of creating another one.
func (oh *ObservationHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decode(w, r, &raw); err != nil {
		oh.h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	rec, err := oh.h.store.Observations.Prepare(ctx, oh.domain, obstypeParam(r), raw)
	if err != nil {
		oh.h.fail(w, r, err)
		return
	}
	ctx = logging.WithObsType(logging.WithEncounter(ctx, rec.EncounterID), rec.ObsType)
	out, created, err := oh.h.store.Observations.Create(ctx, oh.domain, rec)
	if err != nil {
		oh.h.fail(w, r, err)
		return
	}
	if !created {
		logging.FromContext(ctx).Debug().Int64("observation_id", out.ID).Msg("Returned identical observation")
		response.OK(w, out)
		return
	}
	response.Created(w, out)
}

// HandleBulkCreate handles POST /bulk-create?obstype=X with a JSON array.
// Every item is validated before any is stored and an invalid item fails
// the whole batch, naming its index.
func (oh *ObservationHandlers) HandleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var items []map[string]any
	if err := decode(w, r, &items); err != nil {
		oh.h.fail(w, r, err)
		return
	}
	n, err := oh.h.store.Observations.BulkCreate(r.Context(), oh.domain, obstypeParam(r), items)
	if err != nil {
		oh.h.fail(w, r, err)
		return
	}
	response.Created(w, bulkCreateResult{CreatedCount: n})
}

// HandleGet handles GET /{id}.
func (oh *ObservationHandlers) HandleGet(w http.ResponseWriter, r *http.Request, id int64) {
	oh.h.cached(w, r, func(ctx context.Context) (any, error) {
		return oh.h.store.Observations.Get(ctx, oh.domain, id)
	})
}

// HandleUpdate handles PUT and PATCH /{id}. PATCH merges the body into the
// stored fields; PUT replaces them. The encounter is kept unless the body
// names another one, and the obstype cannot change.
func (oh *ObservationHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	ctx := r.Context()
	old, err := oh.h.store.Observations.Get(ctx, oh.domain, id)
	if err != nil {
		oh.h.fail(w, r, err)
		return
	}
	var body map[string]any
	if err := decode(w, r, &body); err != nil {
		oh.h.fail(w, r, err)
		return
	}
	raw := map[string]any{}
	if r.Method == http.MethodPatch {
		for k, v := range old.Data {
			raw[k] = v
		}
	}
	for k, v := range body {
		raw[k] = v
	}
	_, hasEncounter := body["encounter"]
	_, hasSource := body["source"]
	if !hasEncounter && !hasSource {
		raw["encounter"] = old.EncounterID
	}
	obstype := old.ObsType
	if s, ok := body["obstype"].(string); ok && strings.TrimSpace(s) != "" {
		obstype = s
	}

	rec, err := oh.h.store.Observations.Prepare(ctx, oh.domain, obstype, raw)
	if err != nil {
		oh.h.fail(w, r, err)
		return
	}
	rec.ID = id
	if err := oh.h.store.Observations.Update(ctx, oh.domain, rec); err != nil {
		oh.h.fail(w, r, err)
		return
	}
	response.OK(w, rec)
}

// HandleDelete handles DELETE /{id}.
func (oh *ObservationHandlers) HandleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	oh.h.remove(w, r, func(ctx context.Context) error { return oh.h.store.Observations.Delete(ctx, oh.domain, id) })
}

// HandleTypes handles GET /types, listing the obstypes of the domain with
// their fields.
func (oh *ObservationHandlers) HandleTypes(w http.ResponseWriter, _ *http.Request) {
	types := oh.h.store.Registry().Types(oh.domain)
	if types == nil {
		types = []*schema.Type{}
	}
	response.OK(w, types)
}

func obstypeParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("obstype"))
}
