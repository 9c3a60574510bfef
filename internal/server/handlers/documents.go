package handlers

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/biorecords/biorecords/internal/server/filter"
	"github.com/biorecords/biorecords/internal/server/response"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
)

// maxUploadBytes bounds multipart attachment uploads.
const maxUploadBytes = 32 << 20

// HandleListDocuments handles GET /document.
// Filters: taxon, community, document_type and status.
func (h *Handlers) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		f, err := filter.Documents(r)
		if err != nil {
			return nil, err
		}
		items, total, err := h.store.Documents.List(ctx, f)
		if err != nil {
			return nil, err
		}
		return page(r, f.ListOptions, items, total), nil
	})
}

// HandleCreateDocument handles POST /document.
func (h *Handlers) HandleCreateDocument(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, nil, h.store.Documents.Create)
}

// HandleGetDocument handles GET /document/{id}.
func (h *Handlers) HandleGetDocument(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Documents.Get(ctx, id)
	})
}

// HandleUpdateDocument handles PUT and PATCH /document/{id}.
func (h *Handlers) HandleUpdateDocument(w http.ResponseWriter, r *http.Request, id int64) {
	update(h, w, r,
		func(ctx context.Context) (*conservation.Document, error) { return h.store.Documents.Get(ctx, id) },
		func(d *conservation.Document) { d.ID = id },
		h.store.Documents.Update)
}

// HandleDeleteDocument handles DELETE /document/{id}. Its attachments are
// removed with it.
func (h *Handlers) HandleDeleteDocument(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Documents.Delete(ctx, id) })
}

// Attachments returns the attachment handlers of one owner type, mounted
// at /{owner}/{id}/attachments.
func (h *Handlers) Attachments(ownerType string) *AttachmentHandlers {
	return &AttachmentHandlers{h: h, ownerType: ownerType}
}

// AttachmentHandlers lists and uploads the attachments of one owner type.
type AttachmentHandlers struct {
	h         *Handlers
	ownerType string
}

// HandleList handles GET /{owner}/{id}/attachments, newest first.
func (ah *AttachmentHandlers) HandleList(w http.ResponseWriter, r *http.Request, ownerID int64) {
	ah.h.cached(w, r, func(ctx context.Context) (any, error) {
		items, err := ah.h.store.Attachments.ListForOwner(ctx, ah.ownerType, ownerID)
		if items == nil {
			items = []*conservation.FileAttachment{}
		}
		return items, err
	})
}

// HandleUpload handles POST /{owner}/{id}/attachments as a multipart form
// with the file in "attachment" and optional title, author, confidential
// and current fields.
func (ah *AttachmentHandlers) HandleUpload(w http.ResponseWriter, r *http.Request, ownerID int64) {
	a, err := readAttachment(w, r)
	if err != nil {
		ah.h.fail(w, r, err)
		return
	}
	a.OwnerType, a.OwnerID = ah.ownerType, ownerID
	if err := ah.h.store.Attachments.Create(r.Context(), a); err != nil {
		ah.h.fail(w, r, err)
		return
	}
	response.Created(w, a)
}

func readAttachment(w http.ResponseWriter, r *http.Request) (*conservation.FileAttachment, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, errors.NewValidationError("attachment", nil, "expected a multipart form: "+err.Error())
	}
	file, header, err := r.FormFile("attachment")
	if err != nil {
		return nil, errors.NewValidationError("attachment", nil, "a file is required")
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.WrapIO("read", header.Filename, err)
	}

	a := &conservation.FileAttachment{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
		Title:       strings.TrimSpace(r.FormValue("title")),
		Current:     true,
	}
	if v := strings.TrimSpace(r.FormValue("author")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.NewValidationError("author", v, "must be a user id")
		}
		a.AuthorID = &id
	}
	for name, dst := range map[string]*bool{"confidential": &a.Confidential, "current": &a.Current} {
		if v := strings.TrimSpace(r.FormValue(name)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errors.NewValidationError(name, v, "must be true or false")
			}
			*dst = b
		}
	}
	return a, nil
}

// HandleGetAttachment handles GET /attachment/{id}.
func (h *Handlers) HandleGetAttachment(w http.ResponseWriter, r *http.Request, id int64) {
	h.cached(w, r, func(ctx context.Context) (any, error) {
		return h.store.Attachments.Get(ctx, id)
	})
}

// HandleDownloadAttachment handles GET /attachment/{id}/download.
func (h *Handlers) HandleDownloadAttachment(w http.ResponseWriter, r *http.Request, id int64) {
	a, err := h.store.Attachments.Content(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Content)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Content)
}

// HandleDeleteAttachment handles DELETE /attachment/{id}.
func (h *Handlers) HandleDeleteAttachment(w http.ResponseWriter, r *http.Request, id int64) {
	h.remove(w, r, func(ctx context.Context) error { return h.store.Attachments.Delete(ctx, id) })
}
