package conservation

import (
	"fmt"
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
)

// DocumentType classifies management documents.
type DocumentType int

// Document types.
const (
	DocumentRecoveryPlan            DocumentType = 0
	DocumentInterimRecoveryPlan     DocumentType = 5
	DocumentManagementPlan          DocumentType = 10
	DocumentFaunaManagementPlan     DocumentType = 15
	DocumentAnnualReport            DocumentType = 20
	DocumentAnimalEthicsApplication DocumentType = 25
	DocumentOther                   DocumentType = 30
)

var documentTypeNames = map[DocumentType]string{
	DocumentRecoveryPlan:            "Recovery Plan",
	DocumentInterimRecoveryPlan:     "Interim Recovery Plan",
	DocumentManagementPlan:          "Management Plan",
	DocumentFaunaManagementPlan:     "Fauna Management Plan",
	DocumentAnnualReport:            "Annual Report",
	DocumentAnimalEthicsApplication: "Animal Ethics Application",
	DocumentOther:                   "Other",
}

// String returns the display name.
func (t DocumentType) String() string {
	if name, ok := documentTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DocumentType(%d)", int(t))
}

// Valid reports whether t is a known type.
func (t DocumentType) Valid() bool {
	_, ok := documentTypeNames[t]
	return ok
}

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus int

// Document statuses.
const (
	DocumentDraft     DocumentStatus = 0
	DocumentInReview  DocumentStatus = 10
	DocumentApproved  DocumentStatus = 20
	DocumentEffective DocumentStatus = 30
	DocumentRetired   DocumentStatus = 40
)

// String returns the display name.
func (s DocumentStatus) String() string {
	switch s {
	case DocumentDraft:
		return "Draft"
	case DocumentInReview:
		return "In review"
	case DocumentApproved:
		return "Approved"
	case DocumentEffective:
		return "Effective"
	case DocumentRetired:
		return "Retired"
	default:
		return fmt.Sprintf("DocumentStatus(%d)", int(s))
	}
}

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	return s >= DocumentDraft && s <= DocumentRetired && s%10 == 0
}

// Document is a recovery plan, management plan or similar document
// covering taxa and communities.
type Document struct {
	ID                        int64          `json:"id" yaml:"id,omitempty"`
	SourceID                  string         `json:"source_id" yaml:"source_id,omitempty"`
	Type                      DocumentType   `json:"document_type" yaml:"document_type"`
	Title                     string         `json:"title" yaml:"title"`
	TaxonIDs                  IDList         `json:"taxa" yaml:"taxa,omitempty"`
	Communities               []string       `json:"communities" yaml:"communities,omitempty"`
	Team                      IDList         `json:"team" yaml:"team,omitempty"`
	EffectiveFrom             *time.Time     `json:"effective_from" yaml:"effective_from,omitempty"`
	EffectiveTo               *time.Time     `json:"effective_to" yaml:"effective_to,omitempty"`
	EffectiveFromCommonwealth *time.Time     `json:"effective_from_commonwealth" yaml:"effective_from_commonwealth,omitempty"`
	EffectiveToCommonwealth   *time.Time     `json:"effective_to_commonwealth" yaml:"effective_to_commonwealth,omitempty"`
	LastReviewedOn            *time.Time     `json:"last_reviewed_on" yaml:"last_reviewed_on,omitempty"`
	ReviewDue                 *time.Time     `json:"review_due" yaml:"review_due,omitempty"`
	Comments                  string         `json:"comments" yaml:"comments,omitempty"`
	Status                    DocumentStatus `json:"status" yaml:"status"`
	CreatedAt                 time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt                 time.Time      `json:"updated_at" yaml:"-"`
}

// String renders "Type Title".
func (d *Document) String() string {
	return fmt.Sprintf("%s %s", d.Type, d.Title)
}

// Validate checks required fields and date ordering.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.NewValidationError("title", d.Title, "is required")
	}
	if !d.Type.Valid() {
		return errors.NewValidationError("document_type", int(d.Type), "unknown document type")
	}
	if !d.Status.Valid() {
		return errors.NewValidationError("status", int(d.Status), "unknown document status")
	}
	if d.EffectiveFrom != nil && d.EffectiveTo != nil && d.EffectiveTo.Before(*d.EffectiveFrom) {
		return errors.NewValidationError("effective_to", d.EffectiveTo, "must not precede effective_from")
	}
	return nil
}

// ReviewOverdue reports whether the review due date has passed.
func (d *Document) ReviewOverdue(now time.Time) bool {
	return d.ReviewDue != nil && d.ReviewDue.Before(now)
}

// FileAttachment is an uploaded file owned by a document, listing or
// observation.
type FileAttachment struct {
	ID           int64     `json:"id"`
	OwnerType    string    `json:"owner_type"`
	OwnerID      int64     `json:"owner_id"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Content      []byte    `json:"-"`
	Title        string    `json:"title"`
	AuthorID     *int64    `json:"author"`
	Confidential bool      `json:"confidential"`
	Current      bool      `json:"current"`
	CreatedAt    time.Time `json:"created_at"`
}

// Attachment owners.
const (
	OwnerDocument    = "document"
	OwnerListing     = "listing"
	OwnerObservation = "observation"
)

// String returns the title, falling back to the file name.
func (a *FileAttachment) String() string {
	if a.Title != "" {
		return a.Title
	}
	return a.Filename
}
