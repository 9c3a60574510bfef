package store

import (
	"context"
	"strings"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/occurrence"
)

const resourceLookup = "lookup"

// Lookups stores the code/label lookup tables.
type Lookups struct{ s *Store }

func scanLookup(r rowScanner) (*occurrence.Lookup, error) {
	var l occurrence.Lookup
	err := r.Scan(&l.ID, &l.Table, &l.Code, &l.Label, &l.Description)
	return &l, err
}

const lookupColumns = `id, tbl, code, label, description`

// Create inserts l.
func (r *Lookups) Create(ctx context.Context, l *occurrence.Lookup) error {
	l.Table = occurrence.NormalizeTable(l.Table)
	if err := l.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		return r.create(ctx, t, l)
	})
}

func (r *Lookups) create(ctx context.Context, t *tx, l *occurrence.Lookup) error {
	res, err := t.ExecContext(ctx, `INSERT INTO lookups (tbl, code, label, description) VALUES (?, ?, ?, ?)`,
		l.Table, l.Code, l.Label, l.Description)
	if err != nil {
		return mapErr("create", resourceLookup, l.Table+"/"+l.Code, err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	t.changed(resourceLookup, ActionCreated, l.ID)
	return nil
}

// Update replaces label and description, and optionally the code.
func (r *Lookups) Update(ctx context.Context, l *occurrence.Lookup) error {
	l.Table = occurrence.NormalizeTable(l.Table)
	if err := l.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `UPDATE lookups SET code = ?, label = ?, description = ? WHERE id = ? AND tbl = ?`,
			l.Code, l.Label, l.Description, l.ID, l.Table)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceLookup, l.ID, err)
		}
		t.changed(resourceLookup, ActionUpdated, l.ID)
		return nil
	})
}

// Get returns a lookup row by table and id.
func (r *Lookups) Get(ctx context.Context, table string, id int64) (*occurrence.Lookup, error) {
	l, err := scanLookup(r.s.db.QueryRowContext(ctx, `SELECT `+lookupColumns+` FROM lookups WHERE tbl = ? AND id = ?`,
		occurrence.NormalizeTable(table), id))
	if err != nil {
		return nil, mapErr("fetch", resourceLookup, id, err)
	}
	return l, nil
}

// List returns the rows of one table ordered by code.
func (r *Lookups) List(ctx context.Context, table string, opts ListOptions) ([]*occurrence.Lookup, int, error) {
	table = occurrence.NormalizeTable(table)
	if !occurrence.IsLookupTable(table) {
		return nil, 0, errors.NewValidationError("table", table, "unknown lookup table")
	}
	var w where
	w.add(`tbl = ?`, table)
	if q := strings.TrimSpace(opts.Query); q != "" {
		w.add(`(code`+likeClause+` OR label`+likeClause+`)`, like(q), like(q))
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM lookups`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceLookup, table, err)
	}
	order := orderBy(opts.Ordering, map[string]string{"code": "code", "label": "label", "id": "id"}, "code")
	rows, err := queryAll(ctx, r.s.db, `SELECT `+lookupColumns+` FROM lookups`+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, opts.limit(), opts.offset()), scanLookup)
	if err != nil {
		return nil, 0, mapErr("list", resourceLookup, table, err)
	}
	return rows, total, nil
}

// Exists reports whether code is present in table.
func (r *Lookups) Exists(ctx context.Context, table, code string) (bool, error) {
	return exists(ctx, r.s.db, `SELECT 1 FROM lookups WHERE tbl = ? AND code = ?`, occurrence.NormalizeTable(table), code)
}

// Resolve turns a reference by id or code into a code present in table.
// The zero reference resolves to the empty code.
func (r *Lookups) Resolve(ctx context.Context, table string, ref occurrence.LookupRef) (occurrence.LookupRef, error) {
	if ref.IsZero() {
		return ref, nil
	}
	table = occurrence.NormalizeTable(table)
	var (
		l   *occurrence.Lookup
		err error
	)
	if ref.ID != 0 {
		l, err = scanLookup(r.s.db.QueryRowContext(ctx, `SELECT `+lookupColumns+` FROM lookups WHERE tbl = ? AND id = ?`, table, ref.ID))
	} else {
		l, err = scanLookup(r.s.db.QueryRowContext(ctx, `SELECT `+lookupColumns+` FROM lookups WHERE tbl = ? AND code = ?`, table, ref.Code))
	}
	if err != nil {
		if errors.IsNotFound(mapErr("fetch", resourceLookup, nil, err)) {
			return ref, errors.NewValidationError(table, ref, "unknown "+table)
		}
		return ref, mapErr("fetch", resourceLookup, nil, err)
	}
	return occurrence.LookupRef{ID: l.ID, Code: l.Code}, nil
}

// Delete removes a lookup row.
func (r *Lookups) Delete(ctx context.Context, table string, id int64) error {
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `DELETE FROM lookups WHERE tbl = ? AND id = ?`, occurrence.NormalizeTable(table), id)
		if err := affected(res, err); err != nil {
			return mapErr("delete", resourceLookup, id, err)
		}
		t.changed(resourceLookup, ActionDeleted, id)
		return nil
	})
}
