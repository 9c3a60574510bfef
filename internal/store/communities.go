package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

const resourceCommunity = "community"

// Communities stores ecological communities, addressed by code.
type Communities struct{ s *Store }

const communityColumns = `id, code, name, description, eoo, source, source_id, created_at, updated_at`

func scanCommunity(r rowScanner) (*taxonomy.Community, error) {
	var (
		c                taxonomy.Community
		created, updated string
	)
	if err := r.Scan(&c.ID, &c.Code, &c.Name, &c.Description, &c.EOO, &c.Source, &c.SourceID, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt, c.UpdatedAt = parseTime(created), parseTime(updated)
	return &c, nil
}

// Get returns a community by code.
func (r *Communities) Get(ctx context.Context, code string) (*taxonomy.Community, error) {
	c, err := scanCommunity(r.s.db.QueryRowContext(ctx, `SELECT `+communityColumns+` FROM communities WHERE code = ?`, code))
	if err != nil {
		return nil, mapErr("fetch", resourceCommunity, code, err)
	}
	return c, nil
}

// GetByID returns a community by id.
func (r *Communities) GetByID(ctx context.Context, id int64) (*taxonomy.Community, error) {
	c, err := scanCommunity(r.s.db.QueryRowContext(ctx, `SELECT `+communityColumns+` FROM communities WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceCommunity, id, err)
	}
	return c, nil
}

// idForCode resolves a community code to its id.
func (r *Communities) idForCode(ctx context.Context, q querier, code string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM communities WHERE code = ?`, code).Scan(&id)
	if err != nil {
		if errors.IsNotFound(mapErr("fetch", resourceCommunity, code, err)) {
			return 0, errors.NewValidationError("community", code, "community does not exist")
		}
		return 0, mapErr("fetch", resourceCommunity, code, err)
	}
	return id, nil
}

func (r *Communities) idsForCodes(ctx context.Context, q querier, codes []string) ([]int64, error) {
	ids := make([]int64, 0, len(codes))
	for _, code := range codes {
		id, err := r.idForCode(ctx, q, code)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// List returns communities ordered by code.
func (r *Communities) List(ctx context.Context, opts ListOptions) ([]*taxonomy.Community, int, error) {
	var w where
	if q := strings.TrimSpace(opts.Query); q != "" {
		w.add(`(code`+likeClause+` OR name`+likeClause+`)`, like(q), like(q))
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM communities`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceCommunity, nil, err)
	}
	order := orderBy(opts.Ordering, map[string]string{"code": "code", "name": "name", "id": "id"}, "code")
	cc, err := queryAll(ctx, r.s.db, `SELECT `+communityColumns+` FROM communities`+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, opts.limit(), opts.offset()), scanCommunity)
	if err != nil {
		return nil, 0, mapErr("list", resourceCommunity, nil, err)
	}
	return cc, total, nil
}

// Create inserts c. A missing source_id defaults to a random UUID.
func (r *Communities) Create(ctx context.Context, c *taxonomy.Community) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		return r.create(ctx, t, c)
	})
}

func (r *Communities) create(ctx context.Context, t *tx, c *taxonomy.Community) error {
	if c.SourceID == "" {
		c.SourceID = uuid.NewString()
	}
	now := r.s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	res, err := t.ExecContext(ctx, `INSERT INTO communities (code, name, description, eoo, source, source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Code, c.Name, c.Description, c.EOO, c.Source, c.SourceID, formatTime(now), formatTime(now))
	if err != nil {
		return mapErr("create", resourceCommunity, c.Code, err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	t.changed(resourceCommunity, ActionCreated, c.Code)
	return nil
}

// Update stores c, located by its id.
func (r *Communities) Update(ctx context.Context, c *taxonomy.Community) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		c.UpdatedAt = r.s.now()
		res, err := t.ExecContext(ctx, `UPDATE communities SET code = ?, name = ?, description = ?, eoo = ?, source = ?,
			source_id = ?, updated_at = ? WHERE id = ?`,
			c.Code, c.Name, c.Description, c.EOO, c.Source, c.SourceID, formatTime(c.UpdatedAt), c.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceCommunity, c.Code, err)
		}
		t.changed(resourceCommunity, ActionUpdated, c.Code)
		return nil
	})
}

// Delete removes a community by code.
func (r *Communities) Delete(ctx context.Context, code string) error {
	return r.s.deleteByID(ctx, resourceCommunity, `DELETE FROM communities WHERE code = ?`, code)
}
