package handlers

import (
	"context"
	"net/http"

	"github.com/biorecords/biorecords/internal/server/filter"
	"github.com/biorecords/biorecords/internal/server/response"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/logging"
	"github.com/biorecords/biorecords/pkg/observations"
)

// HandleListAreas handles GET /areas?area_type=.
func (h *Handlers) HandleListAreas(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		p := filter.New(r)
		opts, areaType := p.List(), observations.AreaType(p.String("area_type"))
		if err := p.Err(); err != nil {
			return nil, err
		}
		items, total, err := h.store.Areas.List(ctx, areaType, opts)
		if err != nil {
			return nil, err
		}
		return page(r, opts, items, total), nil
	})
}

// HandleCreateArea handles POST /areas. The northern extent and centroid
// are derived from the polygon.
func (h *Handlers) HandleCreateArea(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Areas.Create)
}

// HandleGetArea handles GET /areas/{id}.
func (h *Handlers) HandleGetArea(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Areas.Get(ctx, id)
	})
}

// HandleUpdateArea handles PUT and PATCH /areas/{id}.
func (h *Handlers) HandleUpdateArea(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*observations.Area, error) { return h.store.Areas.Get(ctx, id) },
		func(a *observations.Area) { a.ID = id },
		h.store.Areas.Update)
}

// HandleDeleteArea handles DELETE /areas/{id}.
func (h *Handlers) HandleDeleteArea(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Areas.Delete(ctx, id) })
}

// HandleListSurveys handles GET /surveys?site=.
func (h *Handlers) HandleListSurveys(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		p := filter.New(r)
		opts, siteID := p.List(), p.Int64("site")
		if err := p.Err(); err != nil {
			return nil, err
		}
		items, total, err := h.store.Surveys.List(ctx, siteID, opts)
		if err != nil {
			return nil, err
		}
		return page(r, opts, items, total), nil
	})
}

// HandleCreateSurvey handles POST /surveys.
func (h *Handlers) HandleCreateSurvey(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Surveys.Create)
}

// HandleGetSurvey handles GET /surveys/{id}.
func (h *Handlers) HandleGetSurvey(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Surveys.Get(ctx, id)
	})
}

// HandleUpdateSurvey handles PUT and PATCH /surveys/{id}.
func (h *Handlers) HandleUpdateSurvey(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*observations.Survey, error) { return h.store.Surveys.Get(ctx, id) },
		func(s *observations.Survey) { s.ID = id },
		h.store.Surveys.Update)
}

// HandleDeleteSurvey handles DELETE /surveys/{id}.
func (h *Handlers) HandleDeleteSurvey(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Surveys.Delete(ctx, id) })
}

// HandleListEncounters handles GET /encounters.
// Filters: kind, status, source, area, site, survey, when_after and
// when_before.
func (h *Handlers) HandleListEncounters(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		f, err := filter.Encounters(r)
		if err != nil {
			return nil, err
		}
		items, total, err := h.store.Encounters.List(ctx, f)
		if err != nil {
			return nil, err
		}
		return page(r, f.ListOptions, items, total), nil
	})
}

// HandleCreateEncounter handles POST /encounters. New encounters start in
// status new.
func (h *Handlers) HandleCreateEncounter(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Encounters.Create)
}

// HandleGetEncounter handles GET /encounters/{id}.
func (h *Handlers) HandleGetEncounter(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Encounters.Get(ctx, id)
	})
}

// HandleUpdateEncounter handles PUT and PATCH /encounters/{id}. The
// status only changes through HandleTransitionEncounter.
func (h *Handlers) HandleUpdateEncounter(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*observations.Encounter, error) { return h.store.Encounters.Get(ctx, id) },
		func(e *observations.Encounter) { e.ID = id },
		h.store.Encounters.Update)
}

// HandleDeleteEncounter handles DELETE /encounters/{id} together with its
// observations.
func (h *Handlers) HandleDeleteEncounter(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Encounters.Delete(ctx, id) })
}

// HandleTransitionEncounter handles POST /encounters/{id}/transition with
// {"status": "curated"}. Steps outside the QA workflow are conflicts.
func (h *Handlers) HandleTransitionEncounter(w http.ResponseWriter, r *http.Request, id int64) {
	var req transitionRequest[observations.Status]
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Status == nil || *req.Status == "" {
		h.fail(w, r, errors.NewValidationError("status", nil, "is required"))
		return
	}
	ctx := logging.WithEncounter(r.Context(), id)
	e, err := h.store.Encounters.Transition(ctx, id, *req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, e)
}

// HandleListUsers handles GET /users. q matches usernames, names,
// nicknames and aliases.
func (h *Handlers) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		p := filter.New(r)
		opts := p.List()
		if err := p.Err(); err != nil {
			return nil, err
		}
		items, total, err := h.store.Users.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		return page(r, opts, items, total), nil
	})
}

// HandleCreateUser handles POST /users.
func (h *Handlers) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Users.Create)
}

// HandleGetUser handles GET /users/{id}.
func (h *Handlers) HandleGetUser(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Users.Get(ctx, id)
	})
}

// HandleUpdateUser handles PUT and PATCH /users/{id}.
func (h *Handlers) HandleUpdateUser(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*observations.User, error) { return h.store.Users.Get(ctx, id) },
		func(u *observations.User) { u.ID = id },
		h.store.Users.Update)
}

// HandleDeleteUser handles DELETE /users/{id}.
func (h *Handlers) HandleDeleteUser(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Users.Delete(ctx, id) })
}
