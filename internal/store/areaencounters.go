package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/geo"
	"github.com/biorecords/biorecords/pkg/occurrence"
	"github.com/biorecords/biorecords/pkg/schema"
)

func areaEncounterResource(kind occurrence.Kind, geomType string) string {
	suffix := "area"
	if geomType == geo.TypePoint {
		suffix = "point"
	}
	if kind == occurrence.KindArea {
		return "area" + suffix
	}
	return string(kind) + suffix
}

// AreaEncounters stores area, taxon and community encounters as polygons
// or points.
type AreaEncounters struct{ s *Store }

const areaEncounterColumns = `e.id, e.kind, e.source, e.source_id, e.code, e.label, e.name, e.description, e.geom,
	e.accuracy, e.encountered_on, e.encountered_by, e.encounter_type, e.taxon_id, e.community_id,
	COALESCE(c.code, ''), e.created_at, e.updated_at`

const areaEncounterFrom = ` FROM area_encounters e LEFT JOIN communities c ON c.id = e.community_id`

func scanAreaEncounter(r rowScanner) (*occurrence.AreaEncounter, error) {
	var (
		a                occurrence.AreaEncounter
		accuracy         sql.NullFloat64
		on               sql.NullString
		by, taxon, comm  sql.NullInt64
		encType          string
		created, updated string
	)
	if err := r.Scan(&a.ID, &a.Kind, &a.Source, &a.SourceID, &a.Code, &a.Label, &a.Name, &a.Description, &a.Geom,
		&accuracy, &on, &by, &encType, &taxon, &comm, &a.Community, &created, &updated); err != nil {
		return nil, err
	}
	a.AccuracyM = floatPtr(accuracy)
	a.EncounteredOn = timePtr(on)
	a.EncounteredBy, a.TaxonID, a.CommunityID = intPtr(by), intPtr(taxon), intPtr(comm)
	a.EncounterType = occurrence.LookupRef{Code: encType}
	a.CreatedAt, a.UpdatedAt = parseTime(created), parseTime(updated)
	return &a, nil
}

// AreaEncounterFilter narrows AreaEncounters.List.
type AreaEncounterFilter struct {
	ListOptions
	Kind      occurrence.Kind
	GeomType  string
	TaxonID   *int64
	Community string
}

func (r *AreaEncounters) get(ctx context.Context, q querier, kind occurrence.Kind, geomType string, id int64) (*occurrence.AreaEncounter, error) {
	a, err := scanAreaEncounter(q.QueryRowContext(ctx, `SELECT `+areaEncounterColumns+areaEncounterFrom+`
		WHERE e.id = ? AND e.kind = ? AND e.geom_type = ?`, id, string(kind), geomType))
	if err != nil {
		return nil, mapErr("fetch", areaEncounterResource(kind, geomType), id, err)
	}
	return a, nil
}

// Get returns an area encounter of the given kind and geometry type.
func (r *AreaEncounters) Get(ctx context.Context, kind occurrence.Kind, geomType string, id int64) (*occurrence.AreaEncounter, error) {
	return r.get(ctx, r.s.db, kind, geomType, id)
}

// Exists reports whether an area encounter of any kind exists.
func (r *AreaEncounters) Exists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.s.db, `SELECT 1 FROM area_encounters WHERE id = ?`, id)
}

// List returns area encounters matching f ordered by id.
func (r *AreaEncounters) List(ctx context.Context, f AreaEncounterFilter) ([]*occurrence.AreaEncounter, int, error) {
	var w where
	w.add(`e.kind = ?`, string(f.Kind))
	w.add(`e.geom_type = ?`, f.GeomType)
	if f.TaxonID != nil {
		w.add(`e.taxon_id = ?`, *f.TaxonID)
	}
	if f.Community != "" {
		w.add(`c.code = ?`, f.Community)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		w.add(`(e.code`+likeClause+` OR e.name`+likeClause+` OR e.label`+likeClause+`)`, like(q), like(q), like(q))
	}
	resource := areaEncounterResource(f.Kind, f.GeomType)
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*)`+areaEncounterFrom+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resource, nil, err)
	}
	order := orderBy(f.Ordering, map[string]string{
		"id": "e.id", "code": "e.code", "name": "e.name", "encountered_on": "e.encountered_on",
	}, "e.id")
	out, err := queryAll(ctx, r.s.db, `SELECT `+areaEncounterColumns+areaEncounterFrom+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, f.limit(), f.offset()), scanAreaEncounter)
	if err != nil {
		return nil, 0, mapErr("list", resource, nil, err)
	}
	return out, total, nil
}

// prepare validates a and resolves its encounter type before any
// transaction is opened.
func (r *AreaEncounters) prepare(ctx context.Context, a *occurrence.AreaEncounter, geomType string) error {
	if err := a.Validate(geomType); err != nil {
		return err
	}
	ref, err := r.s.Lookups.Resolve(ctx, occurrence.LookupEncounterType, a.EncounterType)
	if err != nil {
		return err
	}
	a.EncounterType = ref
	switch a.Kind {
	case occurrence.KindTaxon:
		a.Community, a.CommunityID = "", nil
	case occurrence.KindCommunity:
		a.TaxonID = nil
	default:
		a.TaxonID, a.Community, a.CommunityID = nil, "", nil
	}
	return nil
}

// resolveSubject checks the taxon and turns the community code into its id.
func (r *AreaEncounters) resolveSubject(ctx context.Context, t *tx, a *occurrence.AreaEncounter) error {
	if a.TaxonID != nil {
		ok, err := exists(ctx, t, `SELECT 1 FROM taxa WHERE name_id = ?`, *a.TaxonID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewValidationError("taxon", *a.TaxonID, "taxon does not exist")
		}
	}
	if a.Kind == occurrence.KindCommunity && a.Community != "" {
		id, err := r.s.Communities.idForCode(ctx, t, a.Community)
		if err != nil {
			return err
		}
		a.CommunityID = &id
	}
	if a.EncounteredBy != nil {
		ok, err := exists(ctx, t, `SELECT 1 FROM users WHERE id = ?`, *a.EncounteredBy)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewValidationError("encountered_by", *a.EncounteredBy, "user does not exist")
		}
	}
	return nil
}

// Create inserts a as the given geometry type. A missing source_id
// defaults to a random UUID.
func (r *AreaEncounters) Create(ctx context.Context, a *occurrence.AreaEncounter, geomType string) error {
	if err := r.prepare(ctx, a, geomType); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.create(ctx, t, a, geomType) })
}

func (r *AreaEncounters) create(ctx context.Context, t *tx, a *occurrence.AreaEncounter, geomType string) error {
	resource := areaEncounterResource(a.Kind, geomType)
	if err := r.resolveSubject(ctx, t, a); err != nil {
		return err
	}
	if a.SourceID == "" {
		a.SourceID = uuid.NewString()
	}
	now := r.s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	res, err := t.ExecContext(ctx, `INSERT INTO area_encounters (kind, source, source_id, code, label, name, description,
		geom, geom_type, accuracy, encountered_on, encountered_by, encounter_type, taxon_id, community_id, created_at,
		updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(a.Kind), a.Source, a.SourceID, a.Code, a.Label, a.Name, a.Description, a.Geom, a.Geom.Type(),
		nullFloat(a.AccuracyM), nullTime(a.EncounteredOn), nullInt(a.EncounteredBy), a.EncounterType.Code,
		nullInt(a.TaxonID), nullInt(a.CommunityID), formatTime(now), formatTime(now))
	if err != nil {
		return mapErr("create", resource, a.SourceID, err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	t.changed(resource, ActionCreated, a.ID)
	return nil
}

// Update replaces the stored encounter.
func (r *AreaEncounters) Update(ctx context.Context, a *occurrence.AreaEncounter, geomType string) error {
	if err := r.prepare(ctx, a, geomType); err != nil {
		return err
	}
	resource := areaEncounterResource(a.Kind, geomType)
	return r.s.inTx(ctx, func(t *tx) error {
		old, err := r.get(ctx, t, a.Kind, geomType, a.ID)
		if err != nil {
			return err
		}
		if err := r.resolveSubject(ctx, t, a); err != nil {
			return err
		}
		if a.SourceID == "" {
			a.SourceID = old.SourceID
		}
		a.CreatedAt, a.UpdatedAt = old.CreatedAt, r.s.now()
		res, err := t.ExecContext(ctx, `UPDATE area_encounters SET source = ?, source_id = ?, code = ?, label = ?, name = ?,
			description = ?, geom = ?, accuracy = ?, encountered_on = ?, encountered_by = ?, encounter_type = ?,
			taxon_id = ?, community_id = ?, updated_at = ? WHERE id = ?`,
			a.Source, a.SourceID, a.Code, a.Label, a.Name, a.Description, a.Geom, nullFloat(a.AccuracyM),
			nullTime(a.EncounteredOn), nullInt(a.EncounteredBy), a.EncounterType.Code, nullInt(a.TaxonID),
			nullInt(a.CommunityID), formatTime(a.UpdatedAt), a.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resource, a.ID, err)
		}
		t.changed(resource, ActionUpdated, a.ID)
		return nil
	})
}

// Delete removes an area encounter and its observation groups.
func (r *AreaEncounters) Delete(ctx context.Context, kind occurrence.Kind, geomType string, id int64) error {
	resource := areaEncounterResource(kind, geomType)
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `DELETE FROM area_encounters WHERE id = ? AND kind = ? AND geom_type = ?`,
			id, string(kind), geomType)
		if err := affected(res, err); err != nil {
			return mapErr("delete", resource, id, err)
		}
		if _, err := t.ExecContext(ctx, `DELETE FROM observations WHERE domain = ? AND encounter_id = ?`,
			string(schema.DomainOccurrence), id); err != nil {
			return mapErr("delete", resource, id, err)
		}
		t.changed(resource, ActionDeleted, id)
		return nil
	})
}
