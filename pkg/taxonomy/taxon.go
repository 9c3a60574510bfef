// Package taxonomy holds the taxonomic tree: taxa with derived names,
// their vernacular names, name crossreferences and ecological communities.
//
// Derived names are never edited directly. They are rebuilt from the
// taxon's ancestors and vernaculars with Rebuild whenever a taxon, its
// lineage or its vernaculars change.
package taxonomy

import (
	"fmt"
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/geo"
)

// Placeholders used when a canonical name lacks a genus or species ancestor.
const (
	GenusPlaceholder   = "GENUS"
	SpeciesPlaceholder = "SPECIES"
)

// Taxon is a node in the taxonomic tree. NameID is the external identifier
// issued by the names authority and is the taxon's primary key.
type Taxon struct {
	NameID             int64             `json:"name_id" yaml:"name_id"`
	ParentID           *int64            `json:"parent" yaml:"parent,omitempty"`
	Rank               Rank              `json:"rank" yaml:"rank"`
	Name               string            `json:"name" yaml:"name"`
	Author             string            `json:"author" yaml:"author,omitempty"`
	FieldCode          string            `json:"field_code" yaml:"field_code,omitempty"`
	PublicationStatus  PublicationStatus `json:"publication_status" yaml:"publication_status"`
	Current            bool              `json:"current" yaml:"current"`
	SupraGroup         string            `json:"supra_group" yaml:"supra_group,omitempty"`
	ParaphyleticGroups string            `json:"paraphyletic_groups" yaml:"paraphyletic_groups,omitempty"`
	EOO                geo.Geometry      `json:"eoo" yaml:"eoo,omitempty"`

	CanonicalName   string `json:"canonical_name" yaml:"-"`
	TaxonomicName   string `json:"taxonomic_name" yaml:"-"`
	VernacularName  string `json:"vernacular_name" yaml:"-"`
	VernacularNames string `json:"vernacular_names" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// NewTaxon returns a current, published taxon.
func NewTaxon(nameID int64, rank Rank, name string) *Taxon {
	return &Taxon{
		NameID:            nameID,
		Rank:              rank,
		Name:              name,
		PublicationStatus: PublicationPublishedName,
		Current:           true,
	}
}

// String renders "[name_id][field_code] (Rank) taxonomic name".
func (t *Taxon) String() string {
	name := t.TaxonomicName
	if name == "" {
		name = t.Name
	}
	return fmt.Sprintf("[%d][%s] (%s) %s", t.NameID, t.FieldCode, t.Rank, name)
}

// Validate checks the fields a caller must supply.
func (t *Taxon) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.NewValidationError("name", t.Name, "is required")
	}
	if !t.Rank.Valid() {
		return errors.NewValidationError("rank", int(t.Rank), "unknown rank")
	}
	if !t.PublicationStatus.Valid() {
		return errors.NewValidationError("publication_status", int(t.PublicationStatus), "unknown publication status")
	}
	if t.ParentID != nil && *t.ParentID == t.NameID {
		return errors.NewValidationError("parent", *t.ParentID, "a taxon cannot be its own parent")
	}
	if !t.EOO.IsZero() && t.EOO.Type() != geo.TypePolygon {
		return errors.NewValidationError("eoo", t.EOO.Type(), "extent of occurrence must be a polygon")
	}
	return nil
}

// nearest returns the closest ancestor of the given rank. Ancestors are
// ordered from the root down to the parent.
func nearest(ancestors []*Taxon, rank Rank) *Taxon {
	for i := len(ancestors) - 1; i >= 0; i-- {
		if ancestors[i].Rank == rank {
			return ancestors[i]
		}
	}
	return nil
}

// BuildCanonicalName derives the canonical name of t from its ancestors.
//
//   - species: "Genus name"
//   - below species: "Genus species abbr. name"
//   - anything above species: the name itself
func BuildCanonicalName(t *Taxon, ancestors []*Taxon) string {
	switch {
	case t.Rank == RankSpecies:
		genus := GenusPlaceholder
		if g := nearest(ancestors, RankGenus); g != nil {
			genus = g.Name
		}
		return fmt.Sprintf("%s %s", genus, t.Name)
	case t.Rank > RankSpecies:
		genus, species := GenusPlaceholder, SpeciesPlaceholder
		if g := nearest(ancestors, RankGenus); g != nil {
			genus = g.Name
		}
		if s := nearest(ancestors, RankSpecies); s != nil {
			species = s.Name
		}
		return fmt.Sprintf("%s %s %s %s", genus, species, t.Rank.Abbreviation(), t.Name)
	default:
		return t.Name
	}
}

// BuildTaxonomicName appends the author, stripped of parentheses, to the
// canonical name.
func BuildTaxonomicName(canonical, author string) string {
	if author == "" {
		return canonical
	}
	author = strings.TrimSpace(strings.NewReplacer("(", "", ")", "").Replace(author))
	return fmt.Sprintf("%s (%s)", canonical, author)
}

// Rebuild recomputes all derived names of t.
func Rebuild(t *Taxon, ancestors []*Taxon, vernaculars []*Vernacular) {
	t.CanonicalName = BuildCanonicalName(t, ancestors)
	t.TaxonomicName = BuildTaxonomicName(t.CanonicalName, t.Author)
	t.VernacularName = BuildVernacularName(vernaculars)
	t.VernacularNames = BuildVernacularNames(vernaculars)
}

// HasAncestor reports whether id appears among the ancestors.
func HasAncestor(ancestors []*Taxon, id int64) bool {
	for _, a := range ancestors {
		if a.NameID == id {
			return true
		}
	}
	return false
}
