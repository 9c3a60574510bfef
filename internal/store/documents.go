package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
)

const (
	resourceDocument   = "document"
	resourceAttachment = "fileattachment"
)

// Documents stores management documents and their taxon, community and
// team links.
type Documents struct{ s *Store }

const documentColumns = `id, source_id, document_type, title, effective_from, effective_to, effective_from_commonwealth,
	effective_to_commonwealth, last_reviewed_on, review_due, comments, status, created_at, updated_at`

func scanDocument(r rowScanner) (*conservation.Document, error) {
	var (
		d                                  conservation.Document
		from, to, fromCMW, toCMW, reviewed sql.NullString
		due                                sql.NullString
		created, updated                   string
	)
	if err := r.Scan(&d.ID, &d.SourceID, &d.Type, &d.Title, &from, &to, &fromCMW, &toCMW, &reviewed, &due,
		&d.Comments, &d.Status, &created, &updated); err != nil {
		return nil, err
	}
	d.EffectiveFrom, d.EffectiveTo = timePtr(from), timePtr(to)
	d.EffectiveFromCommonwealth, d.EffectiveToCommonwealth = timePtr(fromCMW), timePtr(toCMW)
	d.LastReviewedOn, d.ReviewDue = timePtr(reviewed), timePtr(due)
	d.CreatedAt, d.UpdatedAt = parseTime(created), parseTime(updated)
	return &d, nil
}

func (r *Documents) loadLinks(ctx context.Context, q querier, docs []*conservation.Document) error {
	for _, d := range docs {
		taxa, err := queryIDs(ctx, q, `SELECT taxon_id FROM document_taxa WHERE document_id = ? ORDER BY taxon_id`, d.ID)
		if err != nil {
			return err
		}
		codes, err := queryStrings(ctx, q, `SELECT c.code FROM document_communities dc
			JOIN communities c ON c.id = dc.community_id WHERE dc.document_id = ? ORDER BY c.code`, d.ID)
		if err != nil {
			return err
		}
		team, err := queryIDs(ctx, q, `SELECT user_id FROM document_team WHERE document_id = ? ORDER BY user_id`, d.ID)
		if err != nil {
			return err
		}
		d.TaxonIDs, d.Communities, d.Team = taxa, codes, team
	}
	return nil
}

func (r *Documents) get(ctx context.Context, q querier, id int64) (*conservation.Document, error) {
	d, err := scanDocument(q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceDocument, id, err)
	}
	if err := r.loadLinks(ctx, q, []*conservation.Document{d}); err != nil {
		return nil, mapErr("fetch", resourceDocument, id, err)
	}
	return d, nil
}

// Get returns a document with its links.
func (r *Documents) Get(ctx context.Context, id int64) (*conservation.Document, error) {
	return r.get(ctx, r.s.db, id)
}

// DocumentFilter narrows Documents.List.
type DocumentFilter struct {
	ListOptions
	TaxonID   *int64
	Community string
	Type      *conservation.DocumentType
	Status    *conservation.DocumentStatus
}

// List returns documents matching f.
func (r *Documents) List(ctx context.Context, f DocumentFilter) ([]*conservation.Document, int, error) {
	var w where
	if f.TaxonID != nil {
		w.add(`id IN (SELECT document_id FROM document_taxa WHERE taxon_id = ?)`, *f.TaxonID)
	}
	if f.Community != "" {
		w.add(`id IN (SELECT dc.document_id FROM document_communities dc
			JOIN communities c ON c.id = dc.community_id WHERE c.code = ?)`, f.Community)
	}
	if f.Type != nil {
		w.add(`document_type = ?`, int(*f.Type))
	}
	if f.Status != nil {
		w.add(`status = ?`, int(*f.Status))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		w.add(`title`+likeClause, like(q))
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM documents`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceDocument, nil, err)
	}
	order := orderBy(f.Ordering, map[string]string{
		"id": "id", "title": "title", "effective_from": "effective_from", "review_due": "review_due",
	}, "id")
	docs, err := queryAll(ctx, r.s.db, `SELECT `+documentColumns+` FROM documents`+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, f.limit(), f.offset()), scanDocument)
	if err != nil {
		return nil, 0, mapErr("list", resourceDocument, nil, err)
	}
	if err := r.loadLinks(ctx, r.s.db, docs); err != nil {
		return nil, 0, mapErr("list", resourceDocument, nil, err)
	}
	return docs, total, nil
}

func (r *Documents) saveLinks(ctx context.Context, t *tx, d *conservation.Document) error {
	communities, err := r.s.Communities.idsForCodes(ctx, t, d.Communities)
	if err != nil {
		return err
	}
	if err := replaceLinks(ctx, t, "document_taxa", "document_id", "taxon_id", d.ID, d.TaxonIDs); err != nil {
		return err
	}
	if err := replaceLinks(ctx, t, "document_communities", "document_id", "community_id", d.ID, communities); err != nil {
		return err
	}
	return replaceLinks(ctx, t, "document_team", "document_id", "user_id", d.ID, d.Team)
}

// Create inserts d with its links. A missing source_id defaults to a
// random UUID.
func (r *Documents) Create(ctx context.Context, d *conservation.Document) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.create(ctx, t, d) })
}

func (r *Documents) create(ctx context.Context, t *tx, d *conservation.Document) error {
	if d.SourceID == "" {
		d.SourceID = uuid.NewString()
	}
	now := r.s.now()
	d.CreatedAt, d.UpdatedAt = now, now
	res, err := t.ExecContext(ctx, `INSERT INTO documents (source_id, document_type, title, effective_from, effective_to,
		effective_from_commonwealth, effective_to_commonwealth, last_reviewed_on, review_due, comments, status,
		created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.SourceID, int(d.Type), d.Title, nullTime(d.EffectiveFrom), nullTime(d.EffectiveTo),
		nullTime(d.EffectiveFromCommonwealth), nullTime(d.EffectiveToCommonwealth), nullTime(d.LastReviewedOn),
		nullTime(d.ReviewDue), d.Comments, int(d.Status), formatTime(now), formatTime(now))
	if err != nil {
		return mapErr("create", resourceDocument, d.SourceID, err)
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	if err := r.saveLinks(ctx, t, d); err != nil {
		return mapErr("create", resourceDocument, d.ID, err)
	}
	t.changed(resourceDocument, ActionCreated, d.ID)
	return nil
}

// Update replaces the stored document and its links.
func (r *Documents) Update(ctx context.Context, d *conservation.Document) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		old, err := r.get(ctx, t, d.ID)
		if err != nil {
			return err
		}
		if d.SourceID == "" {
			d.SourceID = old.SourceID
		}
		d.CreatedAt, d.UpdatedAt = old.CreatedAt, r.s.now()
		res, err := t.ExecContext(ctx, `UPDATE documents SET source_id = ?, document_type = ?, title = ?,
			effective_from = ?, effective_to = ?, effective_from_commonwealth = ?, effective_to_commonwealth = ?,
			last_reviewed_on = ?, review_due = ?, comments = ?, status = ?, updated_at = ? WHERE id = ?`,
			d.SourceID, int(d.Type), d.Title, nullTime(d.EffectiveFrom), nullTime(d.EffectiveTo),
			nullTime(d.EffectiveFromCommonwealth), nullTime(d.EffectiveToCommonwealth), nullTime(d.LastReviewedOn),
			nullTime(d.ReviewDue), d.Comments, int(d.Status), formatTime(d.UpdatedAt), d.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceDocument, d.ID, err)
		}
		if err := r.saveLinks(ctx, t, d); err != nil {
			return mapErr("update", resourceDocument, d.ID, err)
		}
		t.changed(resourceDocument, ActionUpdated, d.ID)
		return nil
	})
}

// Delete removes a document and its attachments.
func (r *Documents) Delete(ctx context.Context, id int64) error {
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
		if err := affected(res, err); err != nil {
			return mapErr("delete", resourceDocument, id, err)
		}
		if _, err := t.ExecContext(ctx, `DELETE FROM attachments WHERE owner_type = ? AND owner_id = ?`,
			conservation.OwnerDocument, id); err != nil {
			return mapErr("delete", resourceAttachment, nil, err)
		}
		t.changed(resourceDocument, ActionDeleted, id)
		return nil
	})
}

// Attachments stores uploaded files for documents, listings and
// observations.
type Attachments struct{ s *Store }

const attachmentColumns = `id, owner_type, owner_id, filename, content_type, size, title, author_id, confidential,
	is_current, created_at`

func scanAttachment(r rowScanner) (*conservation.FileAttachment, error) {
	var (
		a       conservation.FileAttachment
		author  sql.NullInt64
		created string
	)
	if err := r.Scan(&a.ID, &a.OwnerType, &a.OwnerID, &a.Filename, &a.ContentType, &a.Size, &a.Title, &author,
		&a.Confidential, &a.Current, &created); err != nil {
		return nil, err
	}
	a.AuthorID = intPtr(author)
	a.CreatedAt = parseTime(created)
	return &a, nil
}

var ownerTables = map[string]string{
	conservation.OwnerDocument:    "documents",
	conservation.OwnerListing:     "listings",
	conservation.OwnerObservation: "observations",
}

// Create stores a and its content after checking that the owner exists.
func (r *Attachments) Create(ctx context.Context, a *conservation.FileAttachment) error {
	table, ok := ownerTables[a.OwnerType]
	if !ok {
		return errors.NewValidationError("owner_type", a.OwnerType, "unknown attachment owner")
	}
	if strings.TrimSpace(a.Filename) == "" {
		return errors.NewValidationError("attachment", a.Filename, "a file is required")
	}
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	a.Size = int64(len(a.Content))
	return r.s.inTx(ctx, func(t *tx) error {
		ok, err := exists(ctx, t, `SELECT 1 FROM `+table+` WHERE id = ?`, a.OwnerID)
		if err != nil {
			return mapErr("create", resourceAttachment, nil, err)
		}
		if !ok {
			return errors.NewValidationError(a.OwnerType, a.OwnerID, "owner does not exist")
		}
		a.CreatedAt = r.s.now()
		res, err := t.ExecContext(ctx, `INSERT INTO attachments (owner_type, owner_id, filename, content_type, size,
			content, title, author_id, confidential, is_current, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.OwnerType, a.OwnerID, a.Filename, a.ContentType, a.Size, a.Content, a.Title, nullInt(a.AuthorID),
			boolInt(a.Confidential), boolInt(a.Current), formatTime(a.CreatedAt))
		if err != nil {
			return mapErr("create", resourceAttachment, a.Filename, err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		t.changed(resourceAttachment, ActionCreated, a.ID)
		return nil
	})
}

// Get returns attachment metadata without content.
func (r *Attachments) Get(ctx context.Context, id int64) (*conservation.FileAttachment, error) {
	a, err := scanAttachment(r.s.db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceAttachment, id, err)
	}
	return a, nil
}

// Content returns attachment metadata and content.
func (r *Attachments) Content(ctx context.Context, id int64) (*conservation.FileAttachment, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.s.db.QueryRowContext(ctx, `SELECT content FROM attachments WHERE id = ?`, id).Scan(&a.Content); err != nil {
		return nil, mapErr("fetch", resourceAttachment, id, err)
	}
	return a, nil
}

// ListForOwner returns the attachments of one owner, newest first.
func (r *Attachments) ListForOwner(ctx context.Context, ownerType string, ownerID int64) ([]*conservation.FileAttachment, error) {
	out, err := queryAll(ctx, r.s.db, `SELECT `+attachmentColumns+` FROM attachments
		WHERE owner_type = ? AND owner_id = ? ORDER BY id DESC`, []any{ownerType, ownerID}, scanAttachment)
	if err != nil {
		return nil, mapErr("list", resourceAttachment, nil, err)
	}
	return out, nil
}

// Exists reports whether an attachment exists.
func (r *Attachments) Exists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.s.db, `SELECT 1 FROM attachments WHERE id = ?`, id)
}

// Delete removes an attachment.
func (r *Attachments) Delete(ctx context.Context, id int64) error {
	return r.s.deleteByID(ctx, resourceAttachment, `DELETE FROM attachments WHERE id = ?`, id)
}
