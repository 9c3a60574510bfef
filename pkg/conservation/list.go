// Package conservation models conservation lists and their categories and
// criteria, the listings that place taxa and communities on those lists,
// and the documents and management records (threats, actions, activities)
// that support them.
package conservation

import (
	"fmt"
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
)

// ApprovalLevel is the review depth a list requires before a listing
// becomes effective.
type ApprovalLevel int

// Approval levels.
const (
	ApprovalImmediate ApprovalLevel = 0
	ApprovalPanel     ApprovalLevel = 10
	ApprovalDirector  ApprovalLevel = 20
	ApprovalMinister  ApprovalLevel = 30
)

// String returns the display name.
func (a ApprovalLevel) String() string {
	switch a {
	case ApprovalImmediate:
		return "Immediate"
	case ApprovalPanel:
		return "Panel"
	case ApprovalDirector:
		return "Director"
	case ApprovalMinister:
		return "Minister"
	default:
		return fmt.Sprintf("ApprovalLevel(%d)", int(a))
	}
}

// Valid reports whether a is a known approval level.
func (a ApprovalLevel) Valid() bool {
	switch a {
	case ApprovalImmediate, ApprovalPanel, ApprovalDirector, ApprovalMinister:
		return true
	}
	return false
}

// RequiredStatus is the earliest review stage from which a listing on a
// list with this approval level may move to listed.
func (a ApprovalLevel) RequiredStatus() ListingStatus {
	switch a {
	case ApprovalPanel:
		return StatusInReviewPanel
	case ApprovalDirector:
		return StatusInReviewDirector
	case ApprovalMinister:
		return StatusInReviewMinister
	default:
		return StatusProposed
	}
}

// List is a conservation list such as the state Wildlife Conservation Act
// schedules or the Commonwealth EPBC list.
type List struct {
	ID               int64         `json:"id" yaml:"id,omitempty"`
	Code             string        `json:"code" yaml:"code"`
	Label            string        `json:"label" yaml:"label,omitempty"`
	Description      string        `json:"description" yaml:"description,omitempty"`
	ActiveFrom       *time.Time    `json:"active_from" yaml:"active_from,omitempty"`
	ActiveTo         *time.Time    `json:"active_to" yaml:"active_to,omitempty"`
	ScopeWA          bool          `json:"scope_wa" yaml:"scope_wa"`
	ScopeCMW         bool          `json:"scope_cmw" yaml:"scope_cmw"`
	ScopeIntl        bool          `json:"scope_intl" yaml:"scope_intl"`
	ScopeSpecies     bool          `json:"scope_species" yaml:"scope_species"`
	ScopeCommunities bool          `json:"scope_communities" yaml:"scope_communities"`
	ApprovalLevel    ApprovalLevel `json:"approval_level" yaml:"approval_level"`
}

// String returns the list code.
func (l *List) String() string {
	return l.Code
}

// Covers reports whether listings of the given subject kind and scope
// belong on l. A list flagged for neither species nor communities covers
// both.
func (l *List) Covers(kind SubjectKind, scope Scope) bool {
	switch scope {
	case ScopeWesternAustralia:
		if !l.ScopeWA {
			return false
		}
	case ScopeCommonwealth:
		if !l.ScopeCMW {
			return false
		}
	case ScopeInternational:
		if !l.ScopeIntl {
			return false
		}
	default:
		return false
	}
	if !l.ScopeSpecies && !l.ScopeCommunities {
		return true
	}
	switch kind {
	case SubjectTaxon:
		return l.ScopeSpecies
	case SubjectCommunity:
		return l.ScopeCommunities
	}
	return true
}

// Validate checks required fields.
func (l *List) Validate() error {
	if strings.TrimSpace(l.Code) == "" {
		return errors.NewValidationError("code", l.Code, "is required")
	}
	if !l.ApprovalLevel.Valid() {
		return errors.NewValidationError("approval_level", int(l.ApprovalLevel), "unknown approval level")
	}
	return nil
}

// Category is a conservation category within a list, e.g. CR, EN, VU or P1.
// Rank orders categories within their list, lowest first.
type Category struct {
	ID                     int64  `json:"id" yaml:"id,omitempty"`
	ListID                 int64  `json:"conservation_list" yaml:"conservation_list"`
	Code                   string `json:"code" yaml:"code"`
	Label                  string `json:"label" yaml:"label,omitempty"`
	Description            string `json:"description" yaml:"description,omitempty"`
	Rank                   int    `json:"rank" yaml:"rank,omitempty"`
	CurrentSecurityRanking bool   `json:"current_security_ranking" yaml:"current_security_ranking"`
	Threatened             bool   `json:"threatened" yaml:"threatened"`
}

// String returns the category code.
func (c *Category) String() string {
	return c.Code
}

// Validate checks required fields.
func (c *Category) Validate() error {
	if c.ListID == 0 {
		return errors.NewValidationError("conservation_list", c.ListID, "is required")
	}
	if strings.TrimSpace(c.Code) == "" {
		return errors.NewValidationError("code", c.Code, "is required")
	}
	return nil
}

// Criterion is a listing criterion within a list, e.g. B1ab(iii).
type Criterion struct {
	ID          int64  `json:"id" yaml:"id,omitempty"`
	ListID      int64  `json:"conservation_list" yaml:"conservation_list"`
	Code        string `json:"code" yaml:"code"`
	Label       string `json:"label" yaml:"label,omitempty"`
	Description string `json:"description" yaml:"description,omitempty"`
	Rank        int    `json:"rank" yaml:"rank,omitempty"`
}

// String returns the criterion code.
func (c *Criterion) String() string {
	return c.Code
}

// Validate checks required fields.
func (c *Criterion) Validate() error {
	if c.ListID == 0 {
		return errors.NewValidationError("conservation_list", c.ListID, "is required")
	}
	if strings.TrimSpace(c.Code) == "" {
		return errors.NewValidationError("code", c.Code, "is required")
	}
	return nil
}
