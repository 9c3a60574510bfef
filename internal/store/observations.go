package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/observations"
	"github.com/biorecords/biorecords/pkg/occurrence"
	"github.com/biorecords/biorecords/pkg/schema"
)

// NewRegistry returns a registry holding every built-in obstype of both
// domains.
func NewRegistry() *schema.Registry {
	r := schema.NewRegistry()
	occurrence.RegisterObsTypes(r)
	observations.RegisterObsTypes(r)
	return r
}

// WithRegistry replaces the obstype registry.
func WithRegistry(r *schema.Registry) Option {
	return func(s *Store) { s.registry = r }
}

// Registry returns the obstype registry observations are decoded with.
func (s *Store) Registry() *schema.Registry {
	return s.registry
}

// Resolver checks obstype references against the store.
func (s *Store) Resolver() schema.Resolver {
	return resolver{s: s}
}

type resolver struct{ s *Store }

func (r resolver) LookupExists(ctx context.Context, table, code string) (bool, error) {
	return r.s.Lookups.Exists(ctx, table, code)
}

func (r resolver) TaxonExists(ctx context.Context, nameID int64) (bool, error) {
	return r.s.Taxa.Exists(ctx, nameID)
}

func (r resolver) UserExists(ctx context.Context, id int64) (bool, error) {
	return r.s.Users.Exists(ctx, id)
}

func (r resolver) AttachmentExists(ctx context.Context, id int64) (bool, error) {
	return r.s.Attachments.Exists(ctx, id)
}

func observationResource(domain schema.Domain) string {
	if domain == schema.DomainOccurrence {
		return "occurrenceobservation"
	}
	return "observation"
}

// encounterTable returns the table holding the encounters of a domain.
func encounterTable(domain schema.Domain) string {
	if domain == schema.DomainOccurrence {
		return "area_encounters"
	}
	return "encounters"
}

// Observations stores typed observations for both area encounters and
// field encounters.
type Observations struct{ s *Store }

func (r *Observations) columns(domain schema.Domain) string {
	return `o.id, o.domain, o.encounter_id, o.obstype, COALESCE(CAST(e.source AS TEXT), ''), COALESCE(e.source_id, ''),
		o.data, o.created_at, o.updated_at FROM observations o
		LEFT JOIN ` + encounterTable(domain) + ` e ON e.id = o.encounter_id`
}

func scanRecord(r rowScanner) (*schema.Record, error) {
	var (
		rec              schema.Record
		domain           string
		data             string
		created, updated string
	)
	if err := r.Scan(&rec.ID, &domain, &rec.EncounterID, &rec.ObsType, &rec.Source, &rec.SourceID, &data, &created, &updated); err != nil {
		return nil, err
	}
	d, err := schema.ParseData(data)
	if err != nil {
		return nil, errors.WrapParse("json", "observations.data", err)
	}
	rec.Domain, rec.Data = schema.Domain(domain), d
	rec.CreatedAt, rec.UpdatedAt = parseTime(created), parseTime(updated)
	return &rec, nil
}

func (r *Observations) get(ctx context.Context, q querier, domain schema.Domain, id int64) (*schema.Record, error) {
	rec, err := scanRecord(q.QueryRowContext(ctx, `SELECT `+r.columns(domain)+` WHERE o.domain = ? AND o.id = ?`,
		string(domain), id))
	if err != nil {
		return nil, mapErr("fetch", observationResource(domain), id, err)
	}
	return rec, nil
}

// Get returns one observation of a domain.
func (r *Observations) Get(ctx context.Context, domain schema.Domain, id int64) (*schema.Record, error) {
	return r.get(ctx, r.s.db, domain, id)
}

// ObservationFilter narrows Observations.List.
type ObservationFilter struct {
	ListOptions
	Domain      schema.Domain
	ObsType     string
	EncounterID *int64
}

// List returns observations matching f ordered by id. An obstype filter
// must name a type of the domain.
func (r *Observations) List(ctx context.Context, f ObservationFilter) ([]*schema.Record, int, error) {
	var w where
	w.add(`o.domain = ?`, string(f.Domain))
	if f.ObsType != "" {
		t, err := r.s.registry.Resolve(f.Domain, f.ObsType)
		if err != nil {
			return nil, 0, err
		}
		w.add(`o.obstype = ?`, t.Name)
	}
	if f.EncounterID != nil {
		w.add(`o.encounter_id = ?`, *f.EncounterID)
	}
	resource := observationResource(f.Domain)
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM observations o`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resource, nil, err)
	}
	order := orderBy(f.Ordering, map[string]string{"id": "o.id", "obstype": "o.obstype", "encounter": "o.encounter_id"}, "o.id")
	out, err := queryAll(ctx, r.s.db, `SELECT `+r.columns(f.Domain)+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, f.limit(), f.offset()), scanRecord)
	if err != nil {
		return nil, 0, mapErr("list", resource, nil, err)
	}
	return out, total, nil
}

// envelopeString reads an envelope value that may arrive as a JSON number
// or a string.
func envelopeString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// ResolveEncounter finds the encounter an observation payload belongs to,
// either by its "encounter" primary key or by the encounter's "source" and
// "source_id".
func (r *Observations) ResolveEncounter(ctx context.Context, domain schema.Domain, raw map[string]any) (int64, error) {
	table := encounterTable(domain)
	if ref := envelopeString(raw["encounter"]); ref != "" {
		id, err := strconv.ParseInt(ref, 10, 64)
		if err != nil {
			return 0, errors.NewValidationError("encounter", raw["encounter"], "must be an encounter id")
		}
		ok, err := exists(ctx, r.s.db, `SELECT 1 FROM `+table+` WHERE id = ?`, id)
		if err != nil {
			return 0, mapErr("fetch", "encounter", id, err)
		}
		if !ok {
			return 0, errors.NewValidationError("encounter", id, "encounter does not exist")
		}
		return id, nil
	}
	source, sourceID := envelopeString(raw["source"]), envelopeString(raw["source_id"])
	if source == "" || sourceID == "" {
		return 0, errors.NewValidationError("encounter", nil, "an encounter id or source and source_id are required")
	}
	var id int64
	err := r.s.db.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE source = ? AND source_id = ?`, source, sourceID).Scan(&id)
	if err != nil {
		if errors.IsNotFound(mapErr("fetch", "encounter", nil, err)) {
			return 0, errors.NewValidationError("encounter", source+"/"+sourceID, "no encounter with this source and source_id")
		}
		return 0, mapErr("fetch", "encounter", nil, err)
	}
	return id, nil
}

// Prepare resolves the obstype and encounter of a raw payload and decodes
// its typed fields. obstype falls back to the payload's "obstype" key.
func (r *Observations) Prepare(ctx context.Context, domain schema.Domain, obstype string, raw map[string]any) (*schema.Record, error) {
	if obstype == "" {
		obstype = envelopeString(raw["obstype"])
	}
	t, err := r.s.registry.Resolve(domain, obstype)
	if err != nil {
		return nil, err
	}
	encounterID, err := r.ResolveEncounter(ctx, domain, raw)
	if err != nil {
		return nil, err
	}
	data, err := t.Decode(ctx, raw, r.s.Resolver())
	if err != nil {
		return nil, err
	}
	return &schema.Record{Domain: domain, EncounterID: encounterID, ObsType: t.Name, Data: data}, nil
}

// duplicates returns the ids of stored observations identical to rec.
func (r *Observations) duplicates(ctx context.Context, q querier, domain schema.Domain, rec *schema.Record, canonical string) ([]int64, error) {
	return queryIDs(ctx, q, `SELECT id FROM observations
		WHERE domain = ? AND encounter_id = ? AND obstype = ? AND data = ? AND id != ? ORDER BY id`,
		string(domain), rec.EncounterID, rec.ObsType, canonical, rec.ID)
}

// Create stores a prepared record unless an identical one exists. When
// exactly one identical record exists it is returned instead and created
// is false. More than one identical record is a validation error.
func (r *Observations) Create(ctx context.Context, domain schema.Domain, rec *schema.Record) (*schema.Record, bool, error) {
	canonical, err := rec.Data.Canonical()
	if err != nil {
		return nil, false, errors.WrapValidation("data", err)
	}
	var (
		out     *schema.Record
		created bool
	)
	err = r.s.inTx(ctx, func(t *tx) error {
		dups, err := r.duplicates(ctx, t, domain, rec, canonical)
		if err != nil {
			return mapErr("create", observationResource(domain), nil, err)
		}
		switch len(dups) {
		case 0:
		case 1:
			out, err = r.get(ctx, t, domain, dups[0])
			return err
		default:
			return errors.NewValidationError("obstype", rec.ObsType,
				fmt.Sprintf("%d identical observations already exist for encounter %d", len(dups), rec.EncounterID))
		}
		if err := r.insert(ctx, t, domain, rec, canonical); err != nil {
			return err
		}
		out, created = rec, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (r *Observations) insert(ctx context.Context, t *tx, domain schema.Domain, rec *schema.Record, canonical string) error {
	now := r.s.now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	res, err := t.ExecContext(ctx, `INSERT INTO observations (domain, encounter_id, obstype, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`, string(domain), rec.EncounterID, rec.ObsType, canonical, formatTime(now), formatTime(now))
	if err != nil {
		return mapErr("create", observationResource(domain), nil, err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	if err := t.QueryRowContext(ctx, `SELECT CAST(source AS TEXT), source_id FROM `+encounterTable(domain)+` WHERE id = ?`,
		rec.EncounterID).Scan(&rec.Source, &rec.SourceID); err != nil {
		return mapErr("create", observationResource(domain), rec.ID, err)
	}
	t.changed(observationResource(domain), ActionCreated, rec.ID)
	return nil
}

// BulkCreate prepares every item before inserting any of them, then
// inserts all in a single transaction. An invalid item fails the batch
// with a validation error naming its index.
func (r *Observations) BulkCreate(ctx context.Context, domain schema.Domain, obstype string, items []map[string]any) (int, error) {
	if len(items) == 0 {
		return 0, errors.NewValidationError("items", nil, "expected a non-empty list of observations")
	}
	records := make([]*schema.Record, len(items))
	canonical := make([]string, len(items))
	for i, raw := range items {
		rec, err := r.Prepare(ctx, domain, obstype, raw)
		if err != nil {
			return 0, indexedError(i, err)
		}
		if canonical[i], err = rec.Data.Canonical(); err != nil {
			return 0, indexedError(i, errors.WrapValidation("data", err))
		}
		records[i] = rec
	}
	err := r.s.inTx(ctx, func(t *tx) error {
		for i, rec := range records {
			if err := r.insert(ctx, t, domain, rec, canonical[i]); err != nil {
				return indexedError(i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.s.logger.Info().
		Str("domain", string(domain)).
		Str("obstype", records[0].ObsType).
		Int("count", len(records)).
		Msg("Bulk created observations")
	return len(records), nil
}

// indexedError prefixes the failing field with the item index.
func indexedError(i int, err error) error {
	var verr *errors.ValidationError
	if stderrors.As(err, &verr) {
		field := fmt.Sprintf("[%d]", i)
		if verr.Field != "" {
			field += "." + verr.Field
		}
		return errors.NewValidationError(field, verr.Value, verr.Message)
	}
	if errors.IsNotFound(err) || errors.IsConflict(err) || errors.IsAlreadyExists(err) {
		return errors.NewValidationError(fmt.Sprintf("[%d]", i), nil, err.Error())
	}
	return err
}

// Update replaces the data of a stored observation with a prepared record.
// The obstype of a stored observation cannot change.
func (r *Observations) Update(ctx context.Context, domain schema.Domain, rec *schema.Record) error {
	canonical, err := rec.Data.Canonical()
	if err != nil {
		return errors.WrapValidation("data", err)
	}
	resource := observationResource(domain)
	return r.s.inTx(ctx, func(t *tx) error {
		old, err := r.get(ctx, t, domain, rec.ID)
		if err != nil {
			return err
		}
		if old.ObsType != rec.ObsType {
			return errors.NewValidationError("obstype", rec.ObsType, "cannot change the obstype of "+old.ObsType)
		}
		dups, err := r.duplicates(ctx, t, domain, rec, canonical)
		if err != nil {
			return mapErr("update", resource, rec.ID, err)
		}
		if len(dups) > 0 {
			return errors.NewValidationError("obstype", rec.ObsType,
				fmt.Sprintf("an identical observation %d already exists", dups[0]))
		}
		rec.CreatedAt, rec.UpdatedAt = old.CreatedAt, r.s.now()
		res, err := t.ExecContext(ctx, `UPDATE observations SET encounter_id = ?, data = ?, updated_at = ?
			WHERE domain = ? AND id = ?`, rec.EncounterID, canonical, formatTime(rec.UpdatedAt), string(domain), rec.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resource, rec.ID, err)
		}
		if err := t.QueryRowContext(ctx, `SELECT CAST(source AS TEXT), source_id FROM `+encounterTable(domain)+` WHERE id = ?`,
			rec.EncounterID).Scan(&rec.Source, &rec.SourceID); err != nil {
			return mapErr("update", resource, rec.ID, err)
		}
		t.changed(resource, ActionUpdated, rec.ID)
		return nil
	})
}

// Delete removes an observation and its attachments.
func (r *Observations) Delete(ctx context.Context, domain schema.Domain, id int64) error {
	resource := observationResource(domain)
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `DELETE FROM observations WHERE domain = ? AND id = ?`, string(domain), id)
		if err := affected(res, err); err != nil {
			return mapErr("delete", resource, id, err)
		}
		if _, err := t.ExecContext(ctx, `DELETE FROM attachments WHERE owner_type = ? AND owner_id = ?`,
			conservation.OwnerObservation, id); err != nil {
			return mapErr("delete", resourceAttachment, nil, err)
		}
		t.changed(resource, ActionDeleted, id)
		return nil
	})
}
