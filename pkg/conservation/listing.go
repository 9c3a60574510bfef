package conservation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
)

// Scope is the jurisdiction a listing applies in.
type Scope int

// Scopes.
const (
	ScopeWesternAustralia Scope = 0
	ScopeCommonwealth     Scope = 1
	ScopeInternational    Scope = 2
	ScopeActionPlan       Scope = 3
)

// String returns the display name.
func (s Scope) String() string {
	switch s {
	case ScopeWesternAustralia:
		return "Western Australia"
	case ScopeCommonwealth:
		return "Commonwealth"
	case ScopeInternational:
		return "International"
	case ScopeActionPlan:
		return "Action Plan"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s >= ScopeWesternAustralia && s <= ScopeActionPlan
}

// SubjectKind distinguishes taxon listings from community listings.
type SubjectKind string

// Listing subjects.
const (
	SubjectTaxon     SubjectKind = "taxon"
	SubjectCommunity SubjectKind = "community"
)

// IDList is a list of primary keys. It decodes from a JSON array, a single
// number or numeric string, or null.
type IDList []int64

// UnmarshalJSON implements json.Unmarshaler.
func (l *IDList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		*l = IDList{}
		return nil
	}
	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		ids := make(IDList, 0, len(raw))
		for _, r := range raw {
			id, err := parseID(r)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		*l = ids
		return nil
	}
	id, err := parseID(data)
	if err != nil {
		return err
	}
	*l = IDList{id}
	return nil
}

func parseID(data []byte) (int64, error) {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.NewValidationError("", s, "expected a primary key")
	}
	return id, nil
}

// Listing places a taxon or a community on a conservation list. The caches
// are rebuilt from the assigned categories and criteria on every save.
type Listing struct {
	ID          int64       `json:"id" yaml:"id,omitempty"`
	Kind        SubjectKind `json:"-" yaml:"-"`
	TaxonID     *int64      `json:"taxon,omitempty" yaml:"taxon,omitempty"`
	Community   string      `json:"community,omitempty" yaml:"community,omitempty"`
	CommunityID int64       `json:"-" yaml:"-"`

	Source   int    `json:"source" yaml:"source"`
	SourceID string `json:"source_id" yaml:"source_id"`

	Scope        Scope         `json:"scope" yaml:"scope"`
	Status       ListingStatus `json:"status" yaml:"status"`
	CategoryIDs  IDList        `json:"category" yaml:"category,omitempty"`
	CriterionIDs IDList        `json:"criteria" yaml:"criteria,omitempty"`

	CategoryCache string `json:"category_cache" yaml:"-"`
	CriteriaCache string `json:"criteria_cache" yaml:"-"`
	LabelCache    string `json:"label_cache" yaml:"-"`

	ProposedOn    *time.Time `json:"proposed_on" yaml:"proposed_on,omitempty"`
	EffectiveFrom *time.Time `json:"effective_from" yaml:"effective_from,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to" yaml:"effective_to,omitempty"`
	ReviewDue     *time.Time `json:"review_due" yaml:"review_due,omitempty"`
	Comments      string     `json:"comments" yaml:"comments,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// String renders the subject and label cache.
func (l *Listing) String() string {
	subject := l.Community
	if l.Kind == SubjectTaxon && l.TaxonID != nil {
		subject = strconv.FormatInt(*l.TaxonID, 10)
	}
	return strings.TrimSpace(fmt.Sprintf("[%s] %s %s", subject, l.Scope, l.LabelCache))
}

// Validate checks the subject, scope and status.
func (l *Listing) Validate() error {
	switch l.Kind {
	case SubjectTaxon:
		if l.TaxonID == nil {
			return errors.NewValidationError("taxon", nil, "is required")
		}
	case SubjectCommunity:
		if strings.TrimSpace(l.Community) == "" && l.CommunityID == 0 {
			return errors.NewValidationError("community", nil, "is required")
		}
	default:
		return errors.NewValidationError("kind", l.Kind, "unknown listing subject")
	}
	if !l.Scope.Valid() {
		return errors.NewValidationError("scope", int(l.Scope), "unknown scope")
	}
	if !l.Status.Valid() {
		return errors.NewValidationError("status", int(l.Status), "unknown status")
	}
	return nil
}

// IsActive reports whether the listing is listed and not yet expired.
func (l *Listing) IsActive(now time.Time) bool {
	if l.Status != StatusListed {
		return false
	}
	return l.EffectiveTo == nil || l.EffectiveTo.After(now)
}

// Catalog resolves category, criterion and list ids for cache building and
// status resolution.
type Catalog struct {
	Lists      map[int64]*List
	Categories map[int64]*Category
	Criteria   map[int64]*Criterion
}

// NewCatalog indexes lists, categories and criteria by id.
func NewCatalog(lists []*List, categories []*Category, criteria []*Criterion) *Catalog {
	c := &Catalog{
		Lists:      make(map[int64]*List, len(lists)),
		Categories: make(map[int64]*Category, len(categories)),
		Criteria:   make(map[int64]*Criterion, len(criteria)),
	}
	for _, l := range lists {
		c.Lists[l.ID] = l
	}
	for _, cat := range categories {
		c.Categories[cat.ID] = cat
	}
	for _, crit := range criteria {
		c.Criteria[crit.ID] = crit
	}
	return c
}

func (c *Catalog) listCode(id int64) string {
	if l, ok := c.Lists[id]; ok {
		return l.Code
	}
	return ""
}

// CategoriesOf resolves category ids, failing on unknown ids.
func (c *Catalog) CategoriesOf(ids []int64) ([]*Category, error) {
	out := make([]*Category, 0, len(ids))
	for _, id := range ids {
		cat, ok := c.Categories[id]
		if !ok {
			return nil, errors.NewValidationError("category", id, fmt.Sprintf("unknown conservation category %d", id))
		}
		out = append(out, cat)
	}
	return out, nil
}

// CriteriaOf resolves criterion ids, failing on unknown ids.
func (c *Catalog) CriteriaOf(ids []int64) ([]*Criterion, error) {
	out := make([]*Criterion, 0, len(ids))
	for _, id := range ids {
		crit, ok := c.Criteria[id]
		if !ok {
			return nil, errors.NewValidationError("criteria", id, fmt.Sprintf("unknown conservation criterion %d", id))
		}
		out = append(out, crit)
	}
	return out, nil
}

// SortCategories orders categories by list code then rank then code.
func (c *Catalog) SortCategories(cats []*Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		li, lj := c.listCode(cats[i].ListID), c.listCode(cats[j].ListID)
		if li != lj {
			return li < lj
		}
		if cats[i].Rank != cats[j].Rank {
			return cats[i].Rank < cats[j].Rank
		}
		return cats[i].Code < cats[j].Code
	})
}

// RebuildCaches validates the listing's category and criterion ids and
// recomputes the category, criteria and label caches.
func (c *Catalog) RebuildCaches(l *Listing) error {
	cats, err := c.CategoriesOf(l.CategoryIDs)
	if err != nil {
		return err
	}
	crits, err := c.CriteriaOf(l.CriterionIDs)
	if err != nil {
		return err
	}
	c.SortCategories(cats)
	sort.SliceStable(crits, func(i, j int) bool {
		if crits[i].Rank != crits[j].Rank {
			return crits[i].Rank < crits[j].Rank
		}
		return crits[i].Code < crits[j].Code
	})

	catCodes := make([]string, 0, len(cats))
	for _, cat := range cats {
		catCodes = append(catCodes, cat.Code)
	}
	critCodes := make([]string, 0, len(crits))
	for _, crit := range crits {
		critCodes = append(critCodes, crit.Code)
	}

	l.CategoryCache = strings.Join(catCodes, ", ")
	l.CriteriaCache = strings.Join(critCodes, ", ")

	var listCode string
	if len(cats) > 0 {
		listCode = c.listCode(cats[0].ListID)
	} else if len(crits) > 0 {
		listCode = c.listCode(crits[0].ListID)
	}
	l.LabelCache = strings.Join(strings.Fields(strings.Join([]string{listCode, l.CategoryCache, l.CriteriaCache}, " ")), " ")
	return nil
}

// ApprovalLevel is the strictest approval level among the lists the
// listing's categories and criteria belong to. A listing that references
// no list takes the strictest level of the lists covering its scope and
// subject kind.
func (c *Catalog) ApprovalLevel(l *Listing) ApprovalLevel {
	lists := make(map[int64]bool)
	for _, id := range l.CategoryIDs {
		if cat, ok := c.Categories[id]; ok {
			lists[cat.ListID] = true
		}
	}
	for _, id := range l.CriterionIDs {
		if crit, ok := c.Criteria[id]; ok {
			lists[crit.ListID] = true
		}
	}
	if len(lists) == 0 {
		for id, list := range c.Lists {
			if list.Covers(l.Kind, l.Scope) {
				lists[id] = true
			}
		}
	}
	level := ApprovalImmediate
	for id := range lists {
		if list, ok := c.Lists[id]; ok && list.ApprovalLevel > level {
			level = list.ApprovalLevel
		}
	}
	return level
}

// PrimaryCategory returns the highest priority category of the listing.
// Threatened categories come before all others, then lower rank first.
func (c *Catalog) PrimaryCategory(l *Listing) *Category {
	var primary *Category
	for _, id := range l.CategoryIDs {
		cat, ok := c.Categories[id]
		if !ok {
			continue
		}
		if primary == nil || higherPriority(cat, primary) {
			primary = cat
		}
	}
	return primary
}

func higherPriority(a, b *Category) bool {
	if a.Threatened != b.Threatened {
		return a.Threatened
	}
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.ID < b.ID
}
