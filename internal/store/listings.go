package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
)

func listingResource(kind conservation.SubjectKind) string {
	return string(kind) + "conservationlisting"
}

// Listings stores taxon and community conservation listings.
type Listings struct{ s *Store }

const listingColumns = `l.id, l.kind, l.taxon_id, l.community_id, COALESCE(c.code, ''), l.source, l.source_id, l.scope,
	l.status, l.category_cache, l.criteria_cache, l.label_cache, l.proposed_on, l.effective_from, l.effective_to,
	l.review_due, l.comments, l.created_at, l.updated_at`

const listingFrom = ` FROM listings l LEFT JOIN communities c ON c.id = l.community_id`

func scanListing(r rowScanner) (*conservation.Listing, error) {
	var (
		l                          conservation.Listing
		taxon, community           sql.NullInt64
		proposed, from, to, review sql.NullString
		created, updated           string
	)
	if err := r.Scan(&l.ID, &l.Kind, &taxon, &community, &l.Community, &l.Source, &l.SourceID, &l.Scope,
		&l.Status, &l.CategoryCache, &l.CriteriaCache, &l.LabelCache, &proposed, &from, &to,
		&review, &l.Comments, &created, &updated); err != nil {
		return nil, err
	}
	l.TaxonID = intPtr(taxon)
	l.CommunityID = community.Int64
	l.ProposedOn, l.EffectiveFrom, l.EffectiveTo, l.ReviewDue = timePtr(proposed), timePtr(from), timePtr(to), timePtr(review)
	l.CreatedAt, l.UpdatedAt = parseTime(created), parseTime(updated)
	return &l, nil
}

// loadLinks fills category and criterion ids for the given listings.
func (r *Listings) loadLinks(ctx context.Context, q querier, listings []*conservation.Listing) error {
	for _, l := range listings {
		cats, err := queryIDs(ctx, q, `SELECT category_id FROM listing_categories WHERE listing_id = ? ORDER BY category_id`, l.ID)
		if err != nil {
			return err
		}
		crits, err := queryIDs(ctx, q, `SELECT criterion_id FROM listing_criteria WHERE listing_id = ? ORDER BY criterion_id`, l.ID)
		if err != nil {
			return err
		}
		l.CategoryIDs, l.CriterionIDs = cats, crits
	}
	return nil
}

func (r *Listings) get(ctx context.Context, q querier, kind conservation.SubjectKind, id int64) (*conservation.Listing, error) {
	l, err := scanListing(q.QueryRowContext(ctx, `SELECT `+listingColumns+listingFrom+` WHERE l.id = ? AND l.kind = ?`, id, string(kind)))
	if err != nil {
		return nil, mapErr("fetch", listingResource(kind), id, err)
	}
	if err := r.loadLinks(ctx, q, []*conservation.Listing{l}); err != nil {
		return nil, mapErr("fetch", listingResource(kind), id, err)
	}
	return l, nil
}

// Get returns a listing of the given kind.
func (r *Listings) Get(ctx context.Context, kind conservation.SubjectKind, id int64) (*conservation.Listing, error) {
	return r.get(ctx, r.s.db, kind, id)
}

// ListingFilter narrows Listings.List.
type ListingFilter struct {
	ListOptions
	Kind      conservation.SubjectKind
	TaxonID   *int64
	Community string
	Scope     *conservation.Scope
	Status    *conservation.ListingStatus
}

// List returns listings matching f ordered by id.
func (r *Listings) List(ctx context.Context, f ListingFilter) ([]*conservation.Listing, int, error) {
	var w where
	w.add(`l.kind = ?`, string(f.Kind))
	if f.TaxonID != nil {
		w.add(`l.taxon_id = ?`, *f.TaxonID)
	}
	if f.Community != "" {
		w.add(`c.code = ?`, f.Community)
	}
	if f.Scope != nil {
		w.add(`l.scope = ?`, int(*f.Scope))
	}
	if f.Status != nil {
		w.add(`l.status = ?`, int(*f.Status))
	}
	if f.Query != "" {
		w.add(`l.label_cache`+likeClause, like(f.Query))
	}
	resource := listingResource(f.Kind)
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*)`+listingFrom+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resource, nil, err)
	}
	order := orderBy(f.Ordering, map[string]string{
		"id": "l.id", "status": "l.status", "scope": "l.scope", "effective_from": "l.effective_from",
	}, "l.id")
	listings, err := queryAll(ctx, r.s.db, `SELECT `+listingColumns+listingFrom+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, f.limit(), f.offset()), scanListing)
	if err != nil {
		return nil, 0, mapErr("list", resource, nil, err)
	}
	if err := r.loadLinks(ctx, r.s.db, listings); err != nil {
		return nil, 0, mapErr("list", resource, nil, err)
	}
	return listings, total, nil
}

func (r *Listings) forSubject(ctx context.Context, q querier, kind conservation.SubjectKind, subjectID int64) ([]*conservation.Listing, error) {
	col := `l.taxon_id`
	if kind == conservation.SubjectCommunity {
		col = `l.community_id`
	}
	listings, err := queryAll(ctx, q, `SELECT `+listingColumns+listingFrom+` WHERE l.kind = ? AND `+col+` = ? ORDER BY l.id`,
		[]any{string(kind), subjectID}, scanListing)
	if err != nil {
		return nil, mapErr("list", listingResource(kind), nil, err)
	}
	if err := r.loadLinks(ctx, q, listings); err != nil {
		return nil, mapErr("list", listingResource(kind), nil, err)
	}
	return listings, nil
}

// TaxonStatus resolves the conservation status of a taxon.
func (r *Listings) TaxonStatus(ctx context.Context, nameID int64) (conservation.SubjectStatus, []*conservation.Listing, error) {
	if _, err := r.s.Taxa.Get(ctx, nameID); err != nil {
		return conservation.SubjectStatus{}, nil, err
	}
	return r.status(ctx, conservation.SubjectTaxon, nameID)
}

// CommunityStatus resolves the conservation status of a community.
func (r *Listings) CommunityStatus(ctx context.Context, code string) (conservation.SubjectStatus, []*conservation.Listing, error) {
	c, err := r.s.Communities.Get(ctx, code)
	if err != nil {
		return conservation.SubjectStatus{}, nil, err
	}
	return r.status(ctx, conservation.SubjectCommunity, c.ID)
}

func (r *Listings) status(ctx context.Context, kind conservation.SubjectKind, subjectID int64) (conservation.SubjectStatus, []*conservation.Listing, error) {
	catalog, err := r.s.Lists.Catalog(ctx)
	if err != nil {
		return conservation.SubjectStatus{}, nil, err
	}
	listings, err := r.forSubject(ctx, r.s.db, kind, subjectID)
	if err != nil {
		return conservation.SubjectStatus{}, nil, err
	}
	return catalog.Resolve(listings, r.s.now()), listings, nil
}

// prepare resolves the subject, validates references and rebuilds caches.
func (r *Listings) prepare(ctx context.Context, t *tx, l *conservation.Listing) (*conservation.Catalog, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	switch l.Kind {
	case conservation.SubjectTaxon:
		ok, err := exists(ctx, t, `SELECT 1 FROM taxa WHERE name_id = ?`, *l.TaxonID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.NewValidationError("taxon", *l.TaxonID, "taxon does not exist")
		}
	case conservation.SubjectCommunity:
		if l.Community != "" {
			id, err := r.s.Communities.idForCode(ctx, t, l.Community)
			if err != nil {
				return nil, err
			}
			l.CommunityID = id
		}
	}
	catalog, err := r.s.Lists.catalog(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := catalog.RebuildCaches(l); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (r *Listings) subjectArgs(l *conservation.Listing) (any, any) {
	if l.Kind == conservation.SubjectTaxon {
		return nullInt(l.TaxonID), nil
	}
	return nil, l.CommunityID
}

// closeSuperseded closes every other listed listing of the same subject and
// scope when l becomes listed.
func (r *Listings) closeSuperseded(ctx context.Context, t *tx, l *conservation.Listing, now time.Time) error {
	if l.Status != conservation.StatusListed {
		return nil
	}
	taxon, community := r.subjectArgs(l)
	ids, err := queryIDs(ctx, t, `SELECT id FROM listings WHERE kind = ? AND scope = ? AND status = ? AND id != ?
		AND (taxon_id IS ? AND community_id IS ?)`,
		string(l.Kind), int(l.Scope), int(conservation.StatusListed), l.ID, taxon, community)
	if err != nil {
		return err
	}
	for _, id := range ids {
		_, err := t.ExecContext(ctx, `UPDATE listings SET status = ?, effective_to = ?, updated_at = ? WHERE id = ?`,
			int(conservation.StatusClosed), formatTime(now), formatTime(now), id)
		if err != nil {
			return err
		}
		t.changed(listingResource(l.Kind), ActionUpdated, id)
	}
	return nil
}

func (r *Listings) saveLinks(ctx context.Context, t *tx, l *conservation.Listing) error {
	if err := replaceLinks(ctx, t, "listing_categories", "listing_id", "category_id", l.ID, l.CategoryIDs); err != nil {
		return err
	}
	return replaceLinks(ctx, t, "listing_criteria", "listing_id", "criterion_id", l.ID, l.CriterionIDs)
}

// Create validates l, rebuilds its caches and inserts it. A missing
// source_id defaults to a random UUID. A new listing starts as proposed
// or at a status a proposed listing could move to on its list, so
// creating a listing never skips the approval workflow.
func (r *Listings) Create(ctx context.Context, l *conservation.Listing) error {
	return r.s.inTx(ctx, func(t *tx) error { return r.create(ctx, t, l, true) })
}

// Import inserts l at whatever status it carries. Fixture loading uses it
// to restore listings that went through review elsewhere.
func (r *Listings) Import(ctx context.Context, l *conservation.Listing) error {
	return r.s.inTx(ctx, func(t *tx) error { return r.create(ctx, t, l, false) })
}

func (r *Listings) create(ctx context.Context, t *tx, l *conservation.Listing, workflow bool) error {
	catalog, err := r.prepare(ctx, t, l)
	if err != nil {
		return err
	}
	if workflow && l.Status != conservation.StatusProposed &&
		!conservation.StatusProposed.CanTransition(l.Status, catalog.ApprovalLevel(l)) {
		return errors.NewConflictError(listingResource(l.Kind), "",
			fmt.Sprintf("a new listing cannot start as %q", l.Status))
	}
	if l.SourceID == "" {
		l.SourceID = uuid.NewString()
	}
	now := r.s.now()
	if l.Status == conservation.StatusListed && l.EffectiveFrom == nil {
		l.EffectiveFrom = &now
	}
	l.CreatedAt, l.UpdatedAt = now, now
	taxon, community := r.subjectArgs(l)
	res, err := t.ExecContext(ctx, `INSERT INTO listings (kind, taxon_id, community_id, source, source_id, scope, status,
		category_cache, criteria_cache, label_cache, proposed_on, effective_from, effective_to, review_due, comments,
		created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(l.Kind), taxon, community, l.Source, l.SourceID, int(l.Scope), int(l.Status),
		l.CategoryCache, l.CriteriaCache, l.LabelCache, nullTime(l.ProposedOn), nullTime(l.EffectiveFrom),
		nullTime(l.EffectiveTo), nullTime(l.ReviewDue), l.Comments, formatTime(now), formatTime(now))
	if err != nil {
		return mapErr("create", listingResource(l.Kind), l.SourceID, err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	if err := r.saveLinks(ctx, t, l); err != nil {
		return mapErr("create", listingResource(l.Kind), l.ID, err)
	}
	t.changed(listingResource(l.Kind), ActionCreated, l.ID)
	return r.closeSuperseded(ctx, t, l, now)
}

// Update stores l, rebuilding its caches. Status changes go through
// Transition.
func (r *Listings) Update(ctx context.Context, l *conservation.Listing) error {
	return r.s.inTx(ctx, func(t *tx) error {
		old, err := r.get(ctx, t, l.Kind, l.ID)
		if err != nil {
			return err
		}
		if l.Status != old.Status {
			return errors.NewValidationError("status", int(l.Status), "use the transition endpoint to change the status")
		}
		if _, err := r.prepare(ctx, t, l); err != nil {
			return err
		}
		if l.SourceID == "" {
			l.SourceID = old.SourceID
		}
		l.CreatedAt, l.UpdatedAt = old.CreatedAt, r.s.now()
		if err := r.update(ctx, t, l); err != nil {
			return err
		}
		return r.saveLinks(ctx, t, l)
	})
}

func (r *Listings) update(ctx context.Context, t *tx, l *conservation.Listing) error {
	taxon, community := r.subjectArgs(l)
	res, err := t.ExecContext(ctx, `UPDATE listings SET taxon_id = ?, community_id = ?, source = ?, source_id = ?, scope = ?,
		status = ?, category_cache = ?, criteria_cache = ?, label_cache = ?, proposed_on = ?, effective_from = ?,
		effective_to = ?, review_due = ?, comments = ?, updated_at = ? WHERE id = ? AND kind = ?`,
		taxon, community, l.Source, l.SourceID, int(l.Scope), int(l.Status),
		l.CategoryCache, l.CriteriaCache, l.LabelCache, nullTime(l.ProposedOn), nullTime(l.EffectiveFrom),
		nullTime(l.EffectiveTo), nullTime(l.ReviewDue), l.Comments, formatTime(l.UpdatedAt), l.ID, string(l.Kind))
	if err := affected(res, err); err != nil {
		return mapErr("update", listingResource(l.Kind), l.ID, err)
	}
	t.changed(listingResource(l.Kind), ActionUpdated, l.ID)
	return nil
}

// Transition moves a listing through the approval workflow. Listing it
// closes any previously listed listing of the same subject and scope.
func (r *Listings) Transition(ctx context.Context, kind conservation.SubjectKind, id int64, next conservation.ListingStatus) (*conservation.Listing, error) {
	var out *conservation.Listing
	err := r.s.inTx(ctx, func(t *tx) error {
		l, err := r.get(ctx, t, kind, id)
		if err != nil {
			return err
		}
		catalog, err := r.s.Lists.catalog(ctx, t)
		if err != nil {
			return err
		}
		now := r.s.now()
		if err := conservation.Transition(l, next, catalog.ApprovalLevel(l), now); err != nil {
			return err
		}
		l.UpdatedAt = now
		if err := r.update(ctx, t, l); err != nil {
			return err
		}
		if err := r.closeSuperseded(ctx, t, l, now); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.s.logger.Info().
		Str("kind", string(kind)).
		Int64("listing_id", id).
		Str("status", next.String()).
		Msg("Listing status changed")
	return out, nil
}

// Delete removes a listing.
func (r *Listings) Delete(ctx context.Context, kind conservation.SubjectKind, id int64) error {
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `DELETE FROM listings WHERE id = ? AND kind = ?`, id, string(kind))
		if err := affected(res, err); err != nil {
			return mapErr("delete", listingResource(kind), id, err)
		}
		t.changed(listingResource(kind), ActionDeleted, id)
		return nil
	})
}
