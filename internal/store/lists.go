package store

import (
	"context"
	"database/sql"

	"github.com/biorecords/biorecords/pkg/conservation"
)

const (
	resourceList      = "conservationlist"
	resourceCategory  = "conservationcategory"
	resourceCriterion = "conservationcriterion"
)

// Lists stores conservation lists with their categories and criteria.
type Lists struct{ s *Store }

const listColumns = `id, code, label, description, active_from, active_to, scope_wa, scope_cmw, scope_intl,
	scope_species, scope_communities, approval_level`

func scanList(r rowScanner) (*conservation.List, error) {
	var (
		l                               conservation.List
		from, to                        sql.NullString
		wa, cmw, intl, species, commune int
	)
	if err := r.Scan(&l.ID, &l.Code, &l.Label, &l.Description, &from, &to, &wa, &cmw, &intl, &species, &commune, &l.ApprovalLevel); err != nil {
		return nil, err
	}
	l.ActiveFrom, l.ActiveTo = timePtr(from), timePtr(to)
	l.ScopeWA, l.ScopeCMW, l.ScopeIntl = wa != 0, cmw != 0, intl != 0
	l.ScopeSpecies, l.ScopeCommunities = species != 0, commune != 0
	return &l, nil
}

const categoryColumns = `id, list_id, code, label, description, rank, current_security_ranking, threatened`

func scanCategory(r rowScanner) (*conservation.Category, error) {
	var (
		c                       conservation.Category
		securityRanking, threat int
	)
	if err := r.Scan(&c.ID, &c.ListID, &c.Code, &c.Label, &c.Description, &c.Rank, &securityRanking, &threat); err != nil {
		return nil, err
	}
	c.CurrentSecurityRanking, c.Threatened = securityRanking != 0, threat != 0
	return &c, nil
}

const criterionColumns = `id, list_id, code, label, description, rank`

func scanCriterion(r rowScanner) (*conservation.Criterion, error) {
	var c conservation.Criterion
	err := r.Scan(&c.ID, &c.ListID, &c.Code, &c.Label, &c.Description, &c.Rank)
	return &c, err
}

// All returns every list ordered by code.
func (r *Lists) All(ctx context.Context) ([]*conservation.List, error) {
	return r.all(ctx, r.s.db)
}

func (r *Lists) all(ctx context.Context, q querier) ([]*conservation.List, error) {
	ll, err := queryAll(ctx, q, `SELECT `+listColumns+` FROM conservation_lists ORDER BY code`, nil, scanList)
	if err != nil {
		return nil, mapErr("list", resourceList, nil, err)
	}
	return ll, nil
}

// Get returns a list by id.
func (r *Lists) Get(ctx context.Context, id int64) (*conservation.List, error) {
	l, err := scanList(r.s.db.QueryRowContext(ctx, `SELECT `+listColumns+` FROM conservation_lists WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceList, id, err)
	}
	return l, nil
}

// Create inserts l.
func (r *Lists) Create(ctx context.Context, l *conservation.List) error {
	if err := l.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.create(ctx, t, l) })
}

func (r *Lists) create(ctx context.Context, t *tx, l *conservation.List) error {
	res, err := t.ExecContext(ctx, `INSERT INTO conservation_lists (code, label, description, active_from, active_to,
		scope_wa, scope_cmw, scope_intl, scope_species, scope_communities, approval_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Code, l.Label, l.Description, nullTime(l.ActiveFrom), nullTime(l.ActiveTo),
		boolInt(l.ScopeWA), boolInt(l.ScopeCMW), boolInt(l.ScopeIntl), boolInt(l.ScopeSpecies),
		boolInt(l.ScopeCommunities), int(l.ApprovalLevel))
	if err != nil {
		return mapErr("create", resourceList, l.Code, err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	t.changed(resourceList, ActionCreated, l.ID)
	return nil
}

// Update stores l.
func (r *Lists) Update(ctx context.Context, l *conservation.List) error {
	if err := l.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `UPDATE conservation_lists SET code = ?, label = ?, description = ?,
			active_from = ?, active_to = ?, scope_wa = ?, scope_cmw = ?, scope_intl = ?, scope_species = ?,
			scope_communities = ?, approval_level = ? WHERE id = ?`,
			l.Code, l.Label, l.Description, nullTime(l.ActiveFrom), nullTime(l.ActiveTo),
			boolInt(l.ScopeWA), boolInt(l.ScopeCMW), boolInt(l.ScopeIntl), boolInt(l.ScopeSpecies),
			boolInt(l.ScopeCommunities), int(l.ApprovalLevel), l.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceList, l.ID, err)
		}
		t.changed(resourceList, ActionUpdated, l.ID)
		return nil
	})
}

// Delete removes a list with its categories and criteria.
func (r *Lists) Delete(ctx context.Context, id int64) error {
	return r.s.deleteByID(ctx, resourceList, `DELETE FROM conservation_lists WHERE id = ?`, id)
}

// Categories returns categories, optionally of one list, ordered by list
// and rank.
func (r *Lists) Categories(ctx context.Context, listID *int64) ([]*conservation.Category, error) {
	return r.categories(ctx, r.s.db, listID)
}

func (r *Lists) categories(ctx context.Context, q querier, listID *int64) ([]*conservation.Category, error) {
	var w where
	if listID != nil {
		w.add(`list_id = ?`, *listID)
	}
	cc, err := queryAll(ctx, q, `SELECT `+categoryColumns+` FROM conservation_categories`+w.String()+` ORDER BY list_id, rank, id`,
		w.args, scanCategory)
	if err != nil {
		return nil, mapErr("list", resourceCategory, nil, err)
	}
	return cc, nil
}

// Category returns a category by id.
func (r *Lists) Category(ctx context.Context, id int64) (*conservation.Category, error) {
	c, err := scanCategory(r.s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM conservation_categories WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceCategory, id, err)
	}
	return c, nil
}

// CreateCategory inserts c.
func (r *Lists) CreateCategory(ctx context.Context, c *conservation.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.createCategory(ctx, t, c) })
}

func (r *Lists) createCategory(ctx context.Context, t *tx, c *conservation.Category) error {
	res, err := t.ExecContext(ctx, `INSERT INTO conservation_categories (list_id, code, label, description, rank,
		current_security_ranking, threatened) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ListID, c.Code, c.Label, c.Description, c.Rank, boolInt(c.CurrentSecurityRanking), boolInt(c.Threatened))
	if err != nil {
		return mapErr("create", resourceCategory, c.Code, err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	t.changed(resourceCategory, ActionCreated, c.ID)
	return nil
}

// UpdateCategory stores c.
func (r *Lists) UpdateCategory(ctx context.Context, c *conservation.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `UPDATE conservation_categories SET list_id = ?, code = ?, label = ?,
			description = ?, rank = ?, current_security_ranking = ?, threatened = ? WHERE id = ?`,
			c.ListID, c.Code, c.Label, c.Description, c.Rank, boolInt(c.CurrentSecurityRanking), boolInt(c.Threatened), c.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceCategory, c.ID, err)
		}
		t.changed(resourceCategory, ActionUpdated, c.ID)
		return nil
	})
}

// DeleteCategory removes a category that no listing uses.
func (r *Lists) DeleteCategory(ctx context.Context, id int64) error {
	return r.s.deleteByID(ctx, resourceCategory, `DELETE FROM conservation_categories WHERE id = ?`, id)
}

// Criteria returns criteria, optionally of one list, ordered by list and
// rank.
func (r *Lists) Criteria(ctx context.Context, listID *int64) ([]*conservation.Criterion, error) {
	return r.criteria(ctx, r.s.db, listID)
}

func (r *Lists) criteria(ctx context.Context, q querier, listID *int64) ([]*conservation.Criterion, error) {
	var w where
	if listID != nil {
		w.add(`list_id = ?`, *listID)
	}
	cc, err := queryAll(ctx, q, `SELECT `+criterionColumns+` FROM conservation_criteria`+w.String()+` ORDER BY list_id, rank, id`,
		w.args, scanCriterion)
	if err != nil {
		return nil, mapErr("list", resourceCriterion, nil, err)
	}
	return cc, nil
}

// Criterion returns a criterion by id.
func (r *Lists) Criterion(ctx context.Context, id int64) (*conservation.Criterion, error) {
	c, err := scanCriterion(r.s.db.QueryRowContext(ctx, `SELECT `+criterionColumns+` FROM conservation_criteria WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceCriterion, id, err)
	}
	return c, nil
}

// CreateCriterion inserts c.
func (r *Lists) CreateCriterion(ctx context.Context, c *conservation.Criterion) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.createCriterion(ctx, t, c) })
}

func (r *Lists) createCriterion(ctx context.Context, t *tx, c *conservation.Criterion) error {
	res, err := t.ExecContext(ctx, `INSERT INTO conservation_criteria (list_id, code, label, description, rank)
		VALUES (?, ?, ?, ?, ?)`, c.ListID, c.Code, c.Label, c.Description, c.Rank)
	if err != nil {
		return mapErr("create", resourceCriterion, c.Code, err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	t.changed(resourceCriterion, ActionCreated, c.ID)
	return nil
}

// UpdateCriterion stores c.
func (r *Lists) UpdateCriterion(ctx context.Context, c *conservation.Criterion) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `UPDATE conservation_criteria SET list_id = ?, code = ?, label = ?,
			description = ?, rank = ? WHERE id = ?`, c.ListID, c.Code, c.Label, c.Description, c.Rank, c.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceCriterion, c.ID, err)
		}
		t.changed(resourceCriterion, ActionUpdated, c.ID)
		return nil
	})
}

// DeleteCriterion removes a criterion that no listing uses.
func (r *Lists) DeleteCriterion(ctx context.Context, id int64) error {
	return r.s.deleteByID(ctx, resourceCriterion, `DELETE FROM conservation_criteria WHERE id = ?`, id)
}

// Catalog loads every list, category and criterion.
func (r *Lists) Catalog(ctx context.Context) (*conservation.Catalog, error) {
	return r.catalog(ctx, r.s.db)
}

func (r *Lists) catalog(ctx context.Context, q querier) (*conservation.Catalog, error) {
	lists, err := r.all(ctx, q)
	if err != nil {
		return nil, err
	}
	cats, err := r.categories(ctx, q, nil)
	if err != nil {
		return nil, err
	}
	crits, err := r.criteria(ctx, q, nil)
	if err != nil {
		return nil, err
	}
	return conservation.NewCatalog(lists, cats, crits), nil
}
