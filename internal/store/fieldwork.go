package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/observations"
	"github.com/biorecords/biorecords/pkg/schema"
)

const (
	resourceArea      = "area"
	resourceSurvey    = "survey"
	resourceEncounter = "encounter"
)

// Areas stores localities, sites and other named polygons.
type Areas struct{ s *Store }

const areaColumns = `id, area_type, name, geom, northern_extent, centroid, length_surveyed_m,
	length_survey_roundtrip_m, created_at, updated_at`

func scanArea(r rowScanner) (*observations.Area, error) {
	var (
		a                observations.Area
		surveyed, round  sql.NullInt64
		created, updated string
	)
	if err := r.Scan(&a.ID, &a.AreaType, &a.Name, &a.Geom, &a.NorthernExtent, &a.Centroid, &surveyed, &round,
		&created, &updated); err != nil {
		return nil, err
	}
	a.LengthSurveyedM, a.LengthSurveyRoundtripM = intPtr(surveyed), intPtr(round)
	a.CreatedAt, a.UpdatedAt = parseTime(created), parseTime(updated)
	return &a, nil
}

// Get returns an area.
func (r *Areas) Get(ctx context.Context, id int64) (*observations.Area, error) {
	a, err := scanArea(r.s.db.QueryRowContext(ctx, `SELECT `+areaColumns+` FROM areas WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceArea, id, err)
	}
	return a, nil
}

// List returns areas, optionally of one type, ordered by northern extent
// from north to south.
func (r *Areas) List(ctx context.Context, areaType observations.AreaType, opts ListOptions) ([]*observations.Area, int, error) {
	var w where
	if areaType != "" {
		w.add(`area_type = ?`, string(areaType))
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		w.add(`name`+likeClause, like(q))
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM areas`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceArea, nil, err)
	}
	order := orderBy(opts.Ordering, map[string]string{"id": "id", "name": "name", "area_type": "area_type"},
		"northern_extent DESC, id")
	out, err := queryAll(ctx, r.s.db, `SELECT `+areaColumns+` FROM areas`+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, opts.limit(), opts.offset()), scanArea)
	if err != nil {
		return nil, 0, mapErr("list", resourceArea, nil, err)
	}
	return out, total, nil
}

// Create validates a, computing its extent and centroid, and inserts it.
func (r *Areas) Create(ctx context.Context, a *observations.Area) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.create(ctx, t, a) })
}

func (r *Areas) create(ctx context.Context, t *tx, a *observations.Area) error {
	now := r.s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	args := []any{string(a.AreaType), a.Name, a.Geom, a.NorthernExtent, a.Centroid, nullInt(a.LengthSurveyedM),
		nullInt(a.LengthSurveyRoundtripM), formatTime(now), formatTime(now)}
	query := `INSERT INTO areas (area_type, name, geom, northern_extent, centroid, length_surveyed_m,
		length_survey_roundtrip_m, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if a.ID != 0 {
		query = `INSERT INTO areas (id, area_type, name, geom, northern_extent, centroid, length_surveyed_m,
			length_survey_roundtrip_m, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		args = append([]any{a.ID}, args...)
	}
	res, err := t.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr("create", resourceArea, a.Name, err)
	}
	if a.ID == 0 {
		if a.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	t.changed(resourceArea, ActionCreated, a.ID)
	return nil
}

// Update replaces an area, recomputing its derived fields.
func (r *Areas) Update(ctx context.Context, a *observations.Area) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		a.UpdatedAt = r.s.now()
		res, err := t.ExecContext(ctx, `UPDATE areas SET area_type = ?, name = ?, geom = ?, northern_extent = ?,
			centroid = ?, length_surveyed_m = ?, length_survey_roundtrip_m = ?, updated_at = ? WHERE id = ?`,
			string(a.AreaType), a.Name, a.Geom, a.NorthernExtent, a.Centroid, nullInt(a.LengthSurveyedM),
			nullInt(a.LengthSurveyRoundtripM), formatTime(a.UpdatedAt), a.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceArea, a.ID, err)
		}
		t.changed(resourceArea, ActionUpdated, a.ID)
		return nil
	})
}

// Delete removes an area.
func (r *Areas) Delete(ctx context.Context, id int64) error {
	return r.s.deleteByID(ctx, resourceArea, `DELETE FROM areas WHERE id = ?`, id)
}

// Surveys stores site visits.
type Surveys struct{ s *Store }

const surveyColumns = `id, site_id, source, source_id, start_time, end_time, start_comments, end_comments,
	reporter_id, production, created_at, updated_at`

func scanSurvey(r rowScanner) (*observations.Survey, error) {
	var (
		sv                      observations.Survey
		site                    sql.NullInt64
		start, created, updated string
		end                     sql.NullString
	)
	if err := r.Scan(&sv.ID, &site, &sv.Source, &sv.SourceID, &start, &end, &sv.StartComments, &sv.EndComments,
		&sv.ReporterID, &sv.Production, &created, &updated); err != nil {
		return nil, err
	}
	sv.SiteID = intPtr(site)
	sv.StartTime, sv.EndTime = parseTime(start), timePtr(end)
	sv.CreatedAt, sv.UpdatedAt = parseTime(created), parseTime(updated)
	return &sv, nil
}

// Get returns a survey.
func (r *Surveys) Get(ctx context.Context, id int64) (*observations.Survey, error) {
	sv, err := scanSurvey(r.s.db.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM surveys WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceSurvey, id, err)
	}
	return sv, nil
}

// List returns surveys, optionally of one site, newest first.
func (r *Surveys) List(ctx context.Context, siteID *int64, opts ListOptions) ([]*observations.Survey, int, error) {
	var w where
	if siteID != nil {
		w.add(`site_id = ?`, *siteID)
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM surveys`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceSurvey, nil, err)
	}
	order := orderBy(opts.Ordering, map[string]string{"id": "id", "start_time": "start_time"}, "start_time DESC, id")
	out, err := queryAll(ctx, r.s.db, `SELECT `+surveyColumns+` FROM surveys`+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, opts.limit(), opts.offset()), scanSurvey)
	if err != nil {
		return nil, 0, mapErr("list", resourceSurvey, nil, err)
	}
	return out, total, nil
}

// Create inserts a survey.
func (r *Surveys) Create(ctx context.Context, sv *observations.Survey) error {
	if err := sv.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.create(ctx, t, sv) })
}

func (r *Surveys) create(ctx context.Context, t *tx, sv *observations.Survey) error {
	now := r.s.now()
	sv.CreatedAt, sv.UpdatedAt = now, now
	args := []any{nullInt(sv.SiteID), sv.Source, sv.SourceID, formatTime(sv.StartTime), nullTime(sv.EndTime),
		sv.StartComments, sv.EndComments, sv.ReporterID, boolInt(sv.Production), formatTime(now), formatTime(now)}
	query := `INSERT INTO surveys (site_id, source, source_id, start_time, end_time, start_comments, end_comments,
		reporter_id, production, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if sv.ID != 0 {
		query = `INSERT INTO surveys (id, site_id, source, source_id, start_time, end_time, start_comments,
			end_comments, reporter_id, production, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		args = append([]any{sv.ID}, args...)
	}
	res, err := t.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr("create", resourceSurvey, nil, err)
	}
	if sv.ID == 0 {
		if sv.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	t.changed(resourceSurvey, ActionCreated, sv.ID)
	return nil
}

// Update replaces a survey.
func (r *Surveys) Update(ctx context.Context, sv *observations.Survey) error {
	if err := sv.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		sv.UpdatedAt = r.s.now()
		res, err := t.ExecContext(ctx, `UPDATE surveys SET site_id = ?, source = ?, source_id = ?, start_time = ?,
			end_time = ?, start_comments = ?, end_comments = ?, reporter_id = ?, production = ?, updated_at = ?
			WHERE id = ?`,
			nullInt(sv.SiteID), sv.Source, sv.SourceID, formatTime(sv.StartTime), nullTime(sv.EndTime),
			sv.StartComments, sv.EndComments, sv.ReporterID, boolInt(sv.Production), formatTime(sv.UpdatedAt), sv.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceSurvey, sv.ID, err)
		}
		t.changed(resourceSurvey, ActionUpdated, sv.ID)
		return nil
	})
}

// Delete removes a survey.
func (r *Surveys) Delete(ctx context.Context, id int64) error {
	return r.s.deleteByID(ctx, resourceSurvey, `DELETE FROM surveys WHERE id = ?`, id)
}

// Encounters stores field encounters.
type Encounters struct{ s *Store }

const encounterColumns = `id, kind, area_id, site_id, survey_id, where_geom, when_at, location_accuracy,
	location_accuracy_m, name, observer_id, reporter_id, comments, status, source, source_id, encounter_type,
	details, created_at, updated_at`

func scanEncounter(r rowScanner) (*observations.Encounter, error) {
	var (
		e                           observations.Encounter
		area, site, survey          sql.NullInt64
		accuracyM                   sql.NullFloat64
		when, details, created, upd string
	)
	if err := r.Scan(&e.ID, &e.Kind, &area, &site, &survey, &e.Where, &when, &e.LocationAccuracy, &accuracyM,
		&e.Name, &e.ObserverID, &e.ReporterID, &e.Comments, &e.Status, &e.Source, &e.SourceID, &e.EncounterType,
		&details, &created, &upd); err != nil {
		return nil, err
	}
	e.AreaID, e.SiteID, e.SurveyID = intPtr(area), intPtr(site), intPtr(survey)
	e.LocationAccuracyM = floatPtr(accuracyM)
	e.When = parseTime(when)
	if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
		return nil, errors.WrapParse("json", "encounters.details", err)
	}
	e.CreatedAt, e.UpdatedAt = parseTime(created), parseTime(upd)
	return &e, nil
}

func (r *Encounters) get(ctx context.Context, q querier, id int64) (*observations.Encounter, error) {
	e, err := scanEncounter(q.QueryRowContext(ctx, `SELECT `+encounterColumns+` FROM encounters WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceEncounter, id, err)
	}
	return e, nil
}

// Get returns an encounter.
func (r *Encounters) Get(ctx context.Context, id int64) (*observations.Encounter, error) {
	return r.get(ctx, r.s.db, id)
}

// GetBySource returns the encounter with the given source and source id.
func (r *Encounters) GetBySource(ctx context.Context, source, sourceID string) (*observations.Encounter, error) {
	e, err := scanEncounter(r.s.db.QueryRowContext(ctx, `SELECT `+encounterColumns+` FROM encounters
		WHERE source = ? AND source_id = ?`, source, sourceID))
	if err != nil {
		return nil, mapErr("fetch", resourceEncounter, source+"/"+sourceID, err)
	}
	return e, nil
}

// EncounterFilter narrows Encounters.List.
type EncounterFilter struct {
	ListOptions
	Kind       observations.Kind
	Status     observations.Status
	Source     string
	AreaID     *int64
	SiteID     *int64
	SurveyID   *int64
	WhenAfter  *time.Time
	WhenBefore *time.Time
}

// List returns encounters matching f, newest first.
func (r *Encounters) List(ctx context.Context, f EncounterFilter) ([]*observations.Encounter, int, error) {
	var w where
	if f.Kind != "" {
		w.add(`kind = ?`, string(f.Kind))
	}
	if f.Status != "" {
		w.add(`status = ?`, string(f.Status))
	}
	if f.Source != "" {
		w.add(`source = ?`, f.Source)
	}
	if f.AreaID != nil {
		w.add(`area_id = ?`, *f.AreaID)
	}
	if f.SiteID != nil {
		w.add(`site_id = ?`, *f.SiteID)
	}
	if f.SurveyID != nil {
		w.add(`survey_id = ?`, *f.SurveyID)
	}
	if f.WhenAfter != nil {
		w.add(`when_at >= ?`, formatTime(*f.WhenAfter))
	}
	if f.WhenBefore != nil {
		w.add(`when_at < ?`, formatTime(*f.WhenBefore))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		w.add(`(name`+likeClause+` OR source_id`+likeClause+` OR comments`+likeClause+`)`, like(q), like(q), like(q))
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM encounters`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceEncounter, nil, err)
	}
	order := orderBy(f.Ordering, map[string]string{"id": "id", "when": "when_at", "status": "status"}, "when_at DESC, id")
	out, err := queryAll(ctx, r.s.db, `SELECT `+encounterColumns+` FROM encounters`+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, f.limit(), f.offset()), scanEncounter)
	if err != nil {
		return nil, 0, mapErr("list", resourceEncounter, nil, err)
	}
	return out, total, nil
}

// checkUsers confirms that every referenced user exists.
func checkUsers(ctx context.Context, q querier, refs map[string]int64) error {
	for field, id := range refs {
		ok, err := exists(ctx, q, `SELECT 1 FROM users WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewValidationError(field, id, "user does not exist")
		}
	}
	return nil
}

func detailsJSON(e *observations.Encounter) (string, error) {
	if e.Details == nil {
		return "{}", nil
	}
	b, err := json.Marshal(e.Details)
	if err != nil {
		return "", errors.WrapValidation("details", err)
	}
	return string(b), nil
}

// Create fills defaults, validates e and inserts it.
func (r *Encounters) Create(ctx context.Context, e *observations.Encounter) error {
	e.Defaults()
	if err := e.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.create(ctx, t, e) })
}

func (r *Encounters) create(ctx context.Context, t *tx, e *observations.Encounter) error {
	if err := checkUsers(ctx, t, map[string]int64{"observer": e.ObserverID, "reporter": e.ReporterID}); err != nil {
		return err
	}
	details, err := detailsJSON(e)
	if err != nil {
		return err
	}
	now := r.s.now()
	e.CreatedAt, e.UpdatedAt = now, now
	res, err := t.ExecContext(ctx, `INSERT INTO encounters (kind, area_id, site_id, survey_id, where_geom, when_at,
		location_accuracy, location_accuracy_m, name, observer_id, reporter_id, comments, status, source, source_id,
		encounter_type, details, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Kind), nullInt(e.AreaID), nullInt(e.SiteID), nullInt(e.SurveyID), e.Where, formatTime(e.When),
		string(e.LocationAccuracy), nullFloat(e.LocationAccuracyM), e.Name, e.ObserverID, e.ReporterID, e.Comments,
		string(e.Status), e.Source, e.SourceID, e.EncounterType, details, formatTime(now), formatTime(now))
	if err != nil {
		return mapErr("create", resourceEncounter, e.Source+"/"+e.SourceID, err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	t.changed(resourceEncounter, ActionCreated, e.ID)
	return nil
}

// Update replaces an encounter. Status changes go through Transition.
func (r *Encounters) Update(ctx context.Context, e *observations.Encounter) error {
	e.Defaults()
	if err := e.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		old, err := r.get(ctx, t, e.ID)
		if err != nil {
			return err
		}
		if e.Status != old.Status {
			return errors.NewValidationError("status", e.Status, "use the transition endpoint to change the status")
		}
		if err := checkUsers(ctx, t, map[string]int64{"observer": e.ObserverID, "reporter": e.ReporterID}); err != nil {
			return err
		}
		e.CreatedAt, e.UpdatedAt = old.CreatedAt, r.s.now()
		return r.update(ctx, t, e)
	})
}

func (r *Encounters) update(ctx context.Context, t *tx, e *observations.Encounter) error {
	details, err := detailsJSON(e)
	if err != nil {
		return err
	}
	res, err := t.ExecContext(ctx, `UPDATE encounters SET kind = ?, area_id = ?, site_id = ?, survey_id = ?,
		where_geom = ?, when_at = ?, location_accuracy = ?, location_accuracy_m = ?, name = ?, observer_id = ?,
		reporter_id = ?, comments = ?, status = ?, source = ?, source_id = ?, encounter_type = ?, details = ?,
		updated_at = ? WHERE id = ?`,
		string(e.Kind), nullInt(e.AreaID), nullInt(e.SiteID), nullInt(e.SurveyID), e.Where, formatTime(e.When),
		string(e.LocationAccuracy), nullFloat(e.LocationAccuracyM), e.Name, e.ObserverID, e.ReporterID, e.Comments,
		string(e.Status), e.Source, e.SourceID, e.EncounterType, details, formatTime(e.UpdatedAt), e.ID)
	if err := affected(res, err); err != nil {
		return mapErr("update", resourceEncounter, e.ID, err)
	}
	t.changed(resourceEncounter, ActionUpdated, e.ID)
	return nil
}

// Transition moves an encounter through the QA workflow.
func (r *Encounters) Transition(ctx context.Context, id int64, to observations.Status) (*observations.Encounter, error) {
	var out *observations.Encounter
	err := r.s.inTx(ctx, func(t *tx) error {
		e, err := r.get(ctx, t, id)
		if err != nil {
			return err
		}
		if err := observations.Transition(e, to); err != nil {
			return err
		}
		e.UpdatedAt = r.s.now()
		if err := r.update(ctx, t, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.s.logger.Info().
		Int64("encounter_id", id).
		Str("status", string(to)).
		Msg("Encounter status changed")
	return out, nil
}

// Delete removes an encounter and its observations.
func (r *Encounters) Delete(ctx context.Context, id int64) error {
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `DELETE FROM encounters WHERE id = ?`, id)
		if err := affected(res, err); err != nil {
			return mapErr("delete", resourceEncounter, id, err)
		}
		if _, err := t.ExecContext(ctx, `DELETE FROM observations WHERE domain = ? AND encounter_id = ?`,
			string(schema.DomainObservations), id); err != nil {
			return mapErr("delete", resourceEncounter, id, err)
		}
		t.changed(resourceEncounter, ActionDeleted, id)
		return nil
	})
}
