package store

import (
	"context"
	"database/sql"

	"github.com/biorecords/biorecords/pkg/taxonomy"
)

const resourceCrossreference = "crossreference"

// Crossreferences stores name changes between taxa.
type Crossreferences struct{ s *Store }

const xrefColumns = `id, xref_id, predecessor_id, successor_id, reason, authorised_by, authorised_on, effective_to, comments`

func scanXref(r rowScanner) (*taxonomy.Crossreference, error) {
	var (
		x         taxonomy.Crossreference
		pre, suc  sql.NullInt64
		auth, eff sql.NullString
	)
	if err := r.Scan(&x.ID, &x.XrefID, &pre, &suc, &x.Reason, &x.AuthorisedBy, &auth, &eff, &x.Comments); err != nil {
		return nil, err
	}
	x.PredecessorID, x.SuccessorID = intPtr(pre), intPtr(suc)
	x.AuthorisedOn, x.EffectiveTo = timePtr(auth), timePtr(eff)
	return &x, nil
}

// Get returns a crossreference by id.
func (r *Crossreferences) Get(ctx context.Context, id int64) (*taxonomy.Crossreference, error) {
	x, err := scanXref(r.s.db.QueryRowContext(ctx, `SELECT `+xrefColumns+` FROM crossreferences WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceCrossreference, id, err)
	}
	return x, nil
}

// List returns crossreferences, optionally those involving one taxon as
// predecessor or successor.
func (r *Crossreferences) List(ctx context.Context, taxonID *int64, opts ListOptions) ([]*taxonomy.Crossreference, int, error) {
	var w where
	if taxonID != nil {
		w.add(`(predecessor_id = ? OR successor_id = ?)`, *taxonID, *taxonID)
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM crossreferences`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceCrossreference, nil, err)
	}
	order := orderBy(opts.Ordering, map[string]string{"id": "id", "xref_id": "xref_id", "reason": "reason"}, "id")
	xx, err := queryAll(ctx, r.s.db, `SELECT `+xrefColumns+` FROM crossreferences`+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, opts.limit(), opts.offset()), scanXref)
	if err != nil {
		return nil, 0, mapErr("list", resourceCrossreference, nil, err)
	}
	return xx, total, nil
}

// Create inserts x.
func (r *Crossreferences) Create(ctx context.Context, x *taxonomy.Crossreference) error {
	if err := x.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		return r.create(ctx, t, x)
	})
}

func (r *Crossreferences) create(ctx context.Context, t *tx, x *taxonomy.Crossreference) error {
	res, err := t.ExecContext(ctx, `INSERT INTO crossreferences (xref_id, predecessor_id, successor_id, reason,
		authorised_by, authorised_on, effective_to, comments) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		x.XrefID, nullInt(x.PredecessorID), nullInt(x.SuccessorID), int(x.Reason),
		x.AuthorisedBy, nullTime(x.AuthorisedOn), nullTime(x.EffectiveTo), x.Comments)
	if err != nil {
		return mapErr("create", resourceCrossreference, x.XrefID, err)
	}
	if x.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	t.changed(resourceCrossreference, ActionCreated, x.ID)
	return nil
}

// Update stores x.
func (r *Crossreferences) Update(ctx context.Context, x *taxonomy.Crossreference) error {
	if err := x.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `UPDATE crossreferences SET xref_id = ?, predecessor_id = ?, successor_id = ?,
			reason = ?, authorised_by = ?, authorised_on = ?, effective_to = ?, comments = ? WHERE id = ?`,
			x.XrefID, nullInt(x.PredecessorID), nullInt(x.SuccessorID), int(x.Reason),
			x.AuthorisedBy, nullTime(x.AuthorisedOn), nullTime(x.EffectiveTo), x.Comments, x.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceCrossreference, x.ID, err)
		}
		t.changed(resourceCrossreference, ActionUpdated, x.ID)
		return nil
	})
}

// Delete removes a crossreference.
func (r *Crossreferences) Delete(ctx context.Context, id int64) error {
	return r.s.deleteByID(ctx, resourceCrossreference, `DELETE FROM crossreferences WHERE id = ?`, id)
}

// InvolvedTaxa returns the ancestor-or-self name_ids of the predecessor and
// successor of crossreference id.
func (r *Crossreferences) InvolvedTaxa(ctx context.Context, id int64) ([]int64, error) {
	x, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var lineages [][]int64
	for _, side := range []*int64{x.PredecessorID, x.SuccessorID} {
		if side == nil {
			continue
		}
		lineage, err := r.s.Taxa.lineage(ctx, r.s.db, *side)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, len(lineage))
		for i, t := range lineage {
			ids[i] = t.NameID
		}
		lineages = append(lineages, ids)
	}
	return taxonomy.InvolvedTaxonIDs(lineages...), nil
}
