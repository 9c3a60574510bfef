package store

import (
	"context"
	"strings"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

const resourceVernacular = "vernacular"

// Vernaculars stores common names. Every write refreshes the vernacular
// names cached on the owning taxon.
type Vernaculars struct{ s *Store }

const vernacularColumns = `id, ogc_fid, taxon_id, name, language, preferred`

func scanVernacular(r rowScanner) (*taxonomy.Vernacular, error) {
	var (
		v         taxonomy.Vernacular
		preferred int
	)
	if err := r.Scan(&v.ID, &v.OgcFID, &v.TaxonID, &v.Name, &v.Language, &preferred); err != nil {
		return nil, err
	}
	v.Preferred = preferred != 0
	return &v, nil
}

func (r *Vernaculars) forTaxon(ctx context.Context, q querier, nameID int64) ([]*taxonomy.Vernacular, error) {
	vv, err := queryAll(ctx, q, `SELECT `+vernacularColumns+` FROM vernaculars WHERE taxon_id = ? ORDER BY id`,
		[]any{nameID}, scanVernacular)
	if err != nil {
		return nil, mapErr("list", resourceVernacular, nil, err)
	}
	return vv, nil
}

// ForTaxon returns the vernaculars of a taxon in insertion order.
func (r *Vernaculars) ForTaxon(ctx context.Context, nameID int64) ([]*taxonomy.Vernacular, error) {
	return r.forTaxon(ctx, r.s.db, nameID)
}

// Get returns a vernacular by id.
func (r *Vernaculars) Get(ctx context.Context, id int64) (*taxonomy.Vernacular, error) {
	v, err := scanVernacular(r.s.db.QueryRowContext(ctx, `SELECT `+vernacularColumns+` FROM vernaculars WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceVernacular, id, err)
	}
	return v, nil
}

// List returns vernaculars, optionally limited to one taxon.
func (r *Vernaculars) List(ctx context.Context, taxonID *int64, opts ListOptions) ([]*taxonomy.Vernacular, int, error) {
	var w where
	if taxonID != nil {
		w.add(`taxon_id = ?`, *taxonID)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		w.add(`name`+likeClause, like(q))
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM vernaculars`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceVernacular, nil, err)
	}
	order := orderBy(opts.Ordering, map[string]string{"id": "id", "name": "name", "ogc_fid": "ogc_fid"}, "id")
	vv, err := queryAll(ctx, r.s.db, `SELECT `+vernacularColumns+` FROM vernaculars`+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, opts.limit(), opts.offset()), scanVernacular)
	if err != nil {
		return nil, 0, mapErr("list", resourceVernacular, nil, err)
	}
	return vv, total, nil
}

// Create inserts v and refreshes its taxon.
func (r *Vernaculars) Create(ctx context.Context, v *taxonomy.Vernacular) error {
	if err := v.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		return r.create(ctx, t, v)
	})
}

func (r *Vernaculars) create(ctx context.Context, t *tx, v *taxonomy.Vernacular) error {
	if ok, err := exists(ctx, t, `SELECT 1 FROM taxa WHERE name_id = ?`, v.TaxonID); err != nil {
		return err
	} else if !ok {
		return errors.NewValidationError("taxon", v.TaxonID, "taxon does not exist")
	}
	res, err := t.ExecContext(ctx, `INSERT INTO vernaculars (ogc_fid, taxon_id, name, language, preferred) VALUES (?, ?, ?, ?, ?)`,
		v.OgcFID, v.TaxonID, v.Name, int(v.Language), boolInt(v.Preferred))
	if err != nil {
		return mapErr("create", resourceVernacular, v.OgcFID, err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	t.changed(resourceVernacular, ActionCreated, v.ID)
	return r.s.Taxa.refreshVernacularNames(ctx, t, v.TaxonID)
}

// Update stores v and refreshes both the old and the new taxon.
func (r *Vernaculars) Update(ctx context.Context, v *taxonomy.Vernacular) error {
	if err := v.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		old, err := scanVernacular(t.QueryRowContext(ctx, `SELECT `+vernacularColumns+` FROM vernaculars WHERE id = ?`, v.ID))
		if err != nil {
			return mapErr("fetch", resourceVernacular, v.ID, err)
		}
		_, err = t.ExecContext(ctx, `UPDATE vernaculars SET ogc_fid = ?, taxon_id = ?, name = ?, language = ?, preferred = ? WHERE id = ?`,
			v.OgcFID, v.TaxonID, v.Name, int(v.Language), boolInt(v.Preferred), v.ID)
		if err != nil {
			return mapErr("update", resourceVernacular, v.ID, err)
		}
		t.changed(resourceVernacular, ActionUpdated, v.ID)
		if old.TaxonID != v.TaxonID {
			if err := r.s.Taxa.refreshVernacularNames(ctx, t, old.TaxonID); err != nil {
				return err
			}
		}
		return r.s.Taxa.refreshVernacularNames(ctx, t, v.TaxonID)
	})
}

// Delete removes a vernacular and refreshes its taxon.
func (r *Vernaculars) Delete(ctx context.Context, id int64) error {
	return r.s.inTx(ctx, func(t *tx) error {
		old, err := scanVernacular(t.QueryRowContext(ctx, `SELECT `+vernacularColumns+` FROM vernaculars WHERE id = ?`, id))
		if err != nil {
			return mapErr("fetch", resourceVernacular, id, err)
		}
		if _, err := t.ExecContext(ctx, `DELETE FROM vernaculars WHERE id = ?`, id); err != nil {
			return mapErr("delete", resourceVernacular, id, err)
		}
		t.changed(resourceVernacular, ActionDeleted, id)
		return r.s.Taxa.refreshVernacularNames(ctx, t, old.TaxonID)
	})
}
