package store

import (
	"context"
	"database/sql"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/biorecords/biorecords/internal/utils/ptr"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

const resourceTaxon = "taxon"

// maxDepth bounds tree walks so that corrupt parent links cannot recurse
// forever.
const maxDepth = 64

// Taxa stores the taxonomic tree keyed by name_id.
type Taxa struct{ s *Store }

const taxonColumns = `t.name_id, t.parent_id, t.rank, t.name, t.author, t.field_code, t.publication_status,
	t.is_current, t.supra_group, t.paraphyletic_groups, t.eoo, t.canonical_name, t.taxonomic_name,
	t.vernacular_name, t.vernacular_names, t.created_at, t.updated_at`

func scanTaxon(r rowScanner) (*taxonomy.Taxon, error) {
	var (
		t                taxonomy.Taxon
		current          int
		created, updated string
	)
	var parent sql.NullInt64
	if err := r.Scan(&t.NameID, &parent, &t.Rank, &t.Name, &t.Author, &t.FieldCode, &t.PublicationStatus,
		&current, &t.SupraGroup, &t.ParaphyleticGroups, &t.EOO, &t.CanonicalName, &t.TaxonomicName,
		&t.VernacularName, &t.VernacularNames, &created, &updated); err != nil {
		return nil, err
	}
	t.ParentID = intPtr(parent)
	t.Current = current != 0
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return &t, nil
}

// TaxonFilter narrows Taxa.List.
type TaxonFilter struct {
	ListOptions
	Rank               *taxonomy.Rank
	Current            *bool
	ParaphyleticGroups string
	Parent             *int64
}

// Get returns a taxon by name_id.
func (r *Taxa) Get(ctx context.Context, nameID int64) (*taxonomy.Taxon, error) {
	return r.get(ctx, r.s.db, nameID)
}

func (r *Taxa) get(ctx context.Context, q querier, nameID int64) (*taxonomy.Taxon, error) {
	t, err := scanTaxon(q.QueryRowContext(ctx, `SELECT `+taxonColumns+` FROM taxa t WHERE t.name_id = ?`, nameID))
	if err != nil {
		return nil, mapErr("fetch", resourceTaxon, nameID, err)
	}
	return t, nil
}

// Exists reports whether a taxon with nameID exists.
func (r *Taxa) Exists(ctx context.Context, nameID int64) (bool, error) {
	return exists(ctx, r.s.db, `SELECT 1 FROM taxa WHERE name_id = ?`, nameID)
}

// List returns taxa matching f, ordered by name_id unless f says otherwise.
func (r *Taxa) List(ctx context.Context, f TaxonFilter) ([]*taxonomy.Taxon, int, error) {
	var w where
	if f.Rank != nil {
		w.add(`t.rank = ?`, int(*f.Rank))
	}
	if f.Current != nil {
		w.add(`t.is_current = ?`, boolInt(*f.Current))
	}
	if f.ParaphyleticGroups != "" {
		w.add(`t.paraphyletic_groups`+likeClause, like(f.ParaphyleticGroups))
	}
	if f.Parent != nil {
		w.add(`t.parent_id = ?`, *f.Parent)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		w.add(`(t.name`+likeClause+` OR t.canonical_name`+likeClause+` OR t.vernacular_names`+likeClause+`)`, like(q), like(q), like(q))
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM taxa t`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceTaxon, nil, err)
	}
	order := orderBy(f.Ordering, map[string]string{
		"name_id": "t.name_id", "name": "t.name", "rank": "t.rank", "canonical_name": "t.canonical_name",
	}, "t.name_id")
	taxa, err := queryAll(ctx, r.s.db, `SELECT `+taxonColumns+` FROM taxa t`+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, f.limit(), f.offset()), scanTaxon)
	if err != nil {
		return nil, 0, mapErr("list", resourceTaxon, nil, err)
	}
	return taxa, total, nil
}

// Ancestors returns the ancestors of nameID ordered from the root down to
// the parent.
func (r *Taxa) Ancestors(ctx context.Context, nameID int64) ([]*taxonomy.Taxon, error) {
	if _, err := r.Get(ctx, nameID); err != nil {
		return nil, err
	}
	return r.ancestors(ctx, r.s.db, nameID)
}

func (r *Taxa) ancestors(ctx context.Context, q querier, nameID int64) ([]*taxonomy.Taxon, error) {
	taxa, err := queryAll(ctx, q, `WITH RECURSIVE anc(name_id, parent_id, depth) AS (
			SELECT name_id, parent_id, 0 FROM taxa WHERE name_id = ?
			UNION ALL
			SELECT p.name_id, p.parent_id, anc.depth + 1 FROM taxa p JOIN anc ON p.name_id = anc.parent_id
			WHERE anc.depth < ?
		)
		SELECT `+taxonColumns+` FROM taxa t JOIN anc ON anc.name_id = t.name_id
		WHERE anc.depth > 0 ORDER BY anc.depth DESC`, []any{nameID, maxDepth}, scanTaxon)
	if err != nil {
		return nil, mapErr("fetch", resourceTaxon, nameID, err)
	}
	return taxa, nil
}

// lineage returns the ancestors plus the taxon itself.
func (r *Taxa) lineage(ctx context.Context, q querier, nameID int64) ([]*taxonomy.Taxon, error) {
	self, err := r.get(ctx, q, nameID)
	if err != nil {
		return nil, err
	}
	anc, err := r.ancestors(ctx, q, nameID)
	if err != nil {
		return nil, err
	}
	return append(anc, self), nil
}

// Children returns the direct children of nameID.
func (r *Taxa) Children(ctx context.Context, nameID int64) ([]*taxonomy.Taxon, error) {
	if _, err := r.Get(ctx, nameID); err != nil {
		return nil, err
	}
	taxa, err := queryAll(ctx, r.s.db, `SELECT `+taxonColumns+` FROM taxa t WHERE t.parent_id = ? ORDER BY t.name`,
		[]any{nameID}, scanTaxon)
	if err != nil {
		return nil, mapErr("list", resourceTaxon, nameID, err)
	}
	return taxa, nil
}

// Descendants returns every taxon below nameID, nearest levels first.
func (r *Taxa) Descendants(ctx context.Context, nameID int64) ([]*taxonomy.Taxon, error) {
	return r.descendants(ctx, r.s.db, nameID)
}

func (r *Taxa) descendants(ctx context.Context, q querier, nameID int64) ([]*taxonomy.Taxon, error) {
	taxa, err := queryAll(ctx, q, `WITH RECURSIVE sub(name_id, depth) AS (
			SELECT name_id, 1 FROM taxa WHERE parent_id = ?
			UNION ALL
			SELECT c.name_id, sub.depth + 1 FROM taxa c JOIN sub ON c.parent_id = sub.name_id
			WHERE sub.depth < ?
		)
		SELECT `+taxonColumns+` FROM taxa t JOIN sub ON sub.name_id = t.name_id
		ORDER BY sub.depth, t.name_id`, []any{nameID, maxDepth}, scanTaxon)
	if err != nil {
		return nil, mapErr("list", resourceTaxon, nameID, err)
	}
	return taxa, nil
}

// Roots returns the taxa without a parent.
func (r *Taxa) Roots(ctx context.Context) ([]*taxonomy.Taxon, error) {
	taxa, err := queryAll(ctx, r.s.db, `SELECT `+taxonColumns+` FROM taxa t WHERE t.parent_id IS NULL ORDER BY t.name_id`, nil, scanTaxon)
	if err != nil {
		return nil, mapErr("list", resourceTaxon, nil, err)
	}
	return taxa, nil
}

// checkParent rejects missing parents and moves below a descendant.
func (r *Taxa) checkParent(ctx context.Context, q querier, t *taxonomy.Taxon) ([]*taxonomy.Taxon, error) {
	if t.ParentID == nil {
		return nil, nil
	}
	lineage, err := r.lineage(ctx, q, *t.ParentID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewValidationError("parent", *t.ParentID, "parent taxon does not exist")
		}
		return nil, err
	}
	if taxonomy.HasAncestor(lineage, t.NameID) {
		return nil, errors.NewValidationError("parent", *t.ParentID, "a taxon cannot be moved below its own descendant")
	}
	return lineage, nil
}

// Create derives the names of t from its ancestors and inserts it.
func (r *Taxa) Create(ctx context.Context, t *taxonomy.Taxon) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(tx *tx) error {
		return r.create(ctx, tx, t)
	})
}

func (r *Taxa) create(ctx context.Context, tx *tx, t *taxonomy.Taxon) error {
	ancestors, err := r.checkParent(ctx, tx, t)
	if err != nil {
		return err
	}
	taxonomy.Rebuild(t, ancestors, nil)
	now := r.s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err = tx.ExecContext(ctx, `INSERT INTO taxa (name_id, parent_id, rank, name, author, field_code,
		publication_status, is_current, supra_group, paraphyletic_groups, eoo, canonical_name, taxonomic_name,
		vernacular_name, vernacular_names, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.NameID, nullInt(t.ParentID), int(t.Rank), t.Name, t.Author, t.FieldCode,
		int(t.PublicationStatus), boolInt(t.Current), t.SupraGroup, t.ParaphyleticGroups, t.EOO,
		t.CanonicalName, t.TaxonomicName, t.VernacularName, t.VernacularNames,
		formatTime(now), formatTime(now))
	if err != nil {
		return mapErr("create", resourceTaxon, t.NameID, err)
	}
	tx.changed(resourceTaxon, ActionCreated, t.NameID)
	return nil
}

// Update stores t, recomputing its derived names. A change of name, rank
// or parent also rebuilds the names of every descendant.
func (r *Taxa) Update(ctx context.Context, t *taxonomy.Taxon) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(tx *tx) error {
		old, err := r.get(ctx, tx, t.NameID)
		if err != nil {
			return err
		}
		ancestors, err := r.checkParent(ctx, tx, t)
		if err != nil {
			return err
		}
		vernaculars, err := r.s.Vernaculars.forTaxon(ctx, tx, t.NameID)
		if err != nil {
			return err
		}
		taxonomy.Rebuild(t, ancestors, vernaculars)
		t.CreatedAt = old.CreatedAt
		t.UpdatedAt = r.s.now()
		res, err := tx.ExecContext(ctx, `UPDATE taxa SET parent_id = ?, rank = ?, name = ?, author = ?, field_code = ?,
			publication_status = ?, is_current = ?, supra_group = ?, paraphyletic_groups = ?, eoo = ?,
			canonical_name = ?, taxonomic_name = ?, vernacular_name = ?, vernacular_names = ?, updated_at = ?
			WHERE name_id = ?`,
			nullInt(t.ParentID), int(t.Rank), t.Name, t.Author, t.FieldCode,
			int(t.PublicationStatus), boolInt(t.Current), t.SupraGroup, t.ParaphyleticGroups, t.EOO,
			t.CanonicalName, t.TaxonomicName, t.VernacularName, t.VernacularNames, formatTime(t.UpdatedAt),
			t.NameID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceTaxon, t.NameID, err)
		}
		tx.changed(resourceTaxon, ActionUpdated, t.NameID)

		if old.Name != t.Name || old.Rank != t.Rank || !ptr.Equal(old.ParentID, t.ParentID) {
			_, err = r.rebuildDescendants(ctx, tx, t, ancestors)
		}
		return err
	})
}

// RebuildNames recomputes the canonical and taxonomic names of every
// descendant of nameID and returns how many taxa changed.
func (r *Taxa) RebuildNames(ctx context.Context, nameID int64) (int, error) {
	var n int
	err := r.s.inTx(ctx, func(tx *tx) error {
		lineage, err := r.lineage(ctx, tx, nameID)
		if err != nil {
			return err
		}
		root := lineage[len(lineage)-1]
		n, err = r.rebuildDescendants(ctx, tx, root, lineage[:len(lineage)-1])
		return err
	})
	return n, err
}

// RebuildAll recomputes every taxon's derived names, roots first.
func (r *Taxa) RebuildAll(ctx context.Context) (int, error) {
	roots, err := r.Roots(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, root := range roots {
		err := r.s.inTx(ctx, func(tx *tx) error {
			vernaculars, err := r.s.Vernaculars.forTaxon(ctx, tx, root.NameID)
			if err != nil {
				return err
			}
			before := *root
			taxonomy.Rebuild(root, nil, vernaculars)
			if namesChanged(&before, root) {
				if err := r.saveNames(ctx, tx, root); err != nil {
					return err
				}
				total++
			}
			n, err := r.rebuildDescendants(ctx, tx, root, nil)
			total += n
			return err
		})
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// rebuildDescendants loads the subtree below root, recomputes names branch
// by branch in parallel, then writes the changed rows.
func (r *Taxa) rebuildDescendants(ctx context.Context, tx *tx, root *taxonomy.Taxon, rootAncestors []*taxonomy.Taxon) (int, error) {
	subtree, err := r.descendants(ctx, tx, root.NameID)
	if err != nil || len(subtree) == 0 {
		return 0, err
	}
	children := make(map[int64][]*taxonomy.Taxon)
	before := make(map[int64]taxonomy.Taxon, len(subtree))
	for _, t := range subtree {
		children[*t.ParentID] = append(children[*t.ParentID], t)
		before[t.NameID] = *t
	}

	base := append(append([]*taxonomy.Taxon{}, rootAncestors...), root)
	var walk func(parent []*taxonomy.Taxon, t *taxonomy.Taxon)
	walk = func(parent []*taxonomy.Taxon, t *taxonomy.Taxon) {
		t.CanonicalName = taxonomy.BuildCanonicalName(t, parent)
		t.TaxonomicName = taxonomy.BuildTaxonomicName(t.CanonicalName, t.Author)
		next := append(append(make([]*taxonomy.Taxon, 0, len(parent)+1), parent...), t)
		for _, c := range children[t.NameID] {
			walk(next, c)
		}
	}

	// Branches share only read-only lineage slices, so each can be walked
	// on its own goroutine.
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, c := range children[root.NameID] {
		c := c
		g.Go(func() error {
			walk(base, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	changed := 0
	for _, t := range subtree {
		old := before[t.NameID]
		if !namesChanged(&old, t) {
			continue
		}
		if err := r.saveNames(ctx, tx, t); err != nil {
			return changed, err
		}
		changed++
	}
	r.s.logger.Debug().
		Int64("name_id", root.NameID).
		Int("descendants", len(subtree)).
		Int("changed", changed).
		Msg("Rebuilt descendant names")
	return changed, nil
}

func namesChanged(a, b *taxonomy.Taxon) bool {
	return a.CanonicalName != b.CanonicalName || a.TaxonomicName != b.TaxonomicName ||
		a.VernacularName != b.VernacularName || a.VernacularNames != b.VernacularNames
}

func (r *Taxa) saveNames(ctx context.Context, tx *tx, t *taxonomy.Taxon) error {
	t.UpdatedAt = r.s.now()
	_, err := tx.ExecContext(ctx, `UPDATE taxa SET canonical_name = ?, taxonomic_name = ?, vernacular_name = ?,
		vernacular_names = ?, updated_at = ? WHERE name_id = ?`,
		t.CanonicalName, t.TaxonomicName, t.VernacularName, t.VernacularNames, formatTime(t.UpdatedAt), t.NameID)
	if err != nil {
		return mapErr("update", resourceTaxon, t.NameID, err)
	}
	tx.changed(resourceTaxon, ActionUpdated, t.NameID)
	return nil
}

// refreshVernacularNames recomputes the vernacular names of one taxon.
func (r *Taxa) refreshVernacularNames(ctx context.Context, tx *tx, nameID int64) error {
	t, err := r.get(ctx, tx, nameID)
	if err != nil {
		return err
	}
	vernaculars, err := r.s.Vernaculars.forTaxon(ctx, tx, nameID)
	if err != nil {
		return err
	}
	t.VernacularName = taxonomy.BuildVernacularName(vernaculars)
	t.VernacularNames = taxonomy.BuildVernacularNames(vernaculars)
	return r.saveNames(ctx, tx, t)
}

// Delete removes a taxon. Taxa with children cannot be deleted.
func (r *Taxa) Delete(ctx context.Context, nameID int64) error {
	return r.s.deleteByID(ctx, resourceTaxon, `DELETE FROM taxa WHERE name_id = ?`, nameID)
}
