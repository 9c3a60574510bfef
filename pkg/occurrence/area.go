// Package occurrence models area encounters: surveyed polygons and points,
// optionally tied to a taxon or community, together with the lookup tables
// and observation group types recorded against them.
package occurrence

import (
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/geo"
)

// Kind distinguishes plain area encounters from taxon and community ones.
type Kind string

// Area encounter kinds.
const (
	KindArea      Kind = "area"
	KindTaxon     Kind = "taxon"
	KindCommunity Kind = "community"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindArea, KindTaxon, KindCommunity:
		return true
	}
	return false
}

// Label is the human readable kind name.
func (k Kind) Label() string {
	switch k {
	case KindTaxon:
		return "Taxon area encounter"
	case KindCommunity:
		return "Community area encounter"
	default:
		return "Area encounter"
	}
}

// AreaEncounter is a surveyed area or point.
type AreaEncounter struct {
	ID            int64        `json:"id" yaml:"id,omitempty"`
	Kind          Kind         `json:"kind" yaml:"kind"`
	Source        int          `json:"source" yaml:"source,omitempty"`
	SourceID      string       `json:"source_id" yaml:"source_id,omitempty"`
	Code          string       `json:"code" yaml:"code,omitempty"`
	Label         string       `json:"label" yaml:"label,omitempty"`
	Name          string       `json:"name" yaml:"name,omitempty"`
	Description   string       `json:"description" yaml:"description,omitempty"`
	Geom          geo.Geometry `json:"geom" yaml:"geom"`
	AccuracyM     *float64     `json:"accuracy" yaml:"accuracy,omitempty"`
	EncounteredOn *time.Time   `json:"encountered_on" yaml:"encountered_on,omitempty"`
	EncounteredBy *int64       `json:"encountered_by" yaml:"encountered_by,omitempty"`
	EncounterType LookupRef    `json:"encounter_type" yaml:"encounter_type,omitempty"`
	TaxonID       *int64       `json:"taxon" yaml:"taxon,omitempty"`
	Community     string       `json:"community" yaml:"community,omitempty"`
	CommunityID   *int64       `json:"-" yaml:"-"`
	CreatedAt     time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time    `json:"updated_at" yaml:"-"`
}

// String returns a short label for logs and listings.
func (a *AreaEncounter) String() string {
	name := a.Name
	if name == "" {
		name = a.Code
	}
	return strings.TrimSpace(string(a.Kind) + " " + name)
}

// Validate checks the encounter against its kind. geomType is the
// geometry type the endpoint accepts (polygon or point).
func (a *AreaEncounter) Validate(geomType string) error {
	if !a.Kind.Valid() {
		return errors.NewValidationError("kind", a.Kind, "unknown area encounter kind")
	}
	field := "geom"
	if geomType == geo.TypePoint {
		field = "point"
	}
	if err := a.Geom.Require(field, geomType); err != nil {
		return err
	}
	if a.AccuracyM != nil && *a.AccuracyM < 0 {
		return errors.NewValidationError("accuracy", *a.AccuracyM, "must not be negative")
	}
	switch a.Kind {
	case KindTaxon:
		if a.TaxonID == nil {
			return errors.NewValidationError("taxon", nil, "is required")
		}
	case KindCommunity:
		if a.Community == "" && a.CommunityID == nil {
			return errors.NewValidationError("community", nil, "is required")
		}
	}
	if a.Kind != KindArea {
		if a.EncounteredBy == nil {
			return errors.NewValidationError("encountered_by", nil, "is required")
		}
		if a.EncounterType.IsZero() {
			return errors.NewValidationError("encounter_type", nil, "is required")
		}
	}
	return nil
}

// Properties returns the non-geometry fields for a GeoJSON feature.
func (a *AreaEncounter) Properties() map[string]any {
	props := map[string]any{
		"kind":           a.Kind,
		"source":         a.Source,
		"source_id":      a.SourceID,
		"code":           a.Code,
		"label":          a.Label,
		"name":           a.Name,
		"description":    a.Description,
		"accuracy":       a.AccuracyM,
		"encountered_on": a.EncounteredOn,
		"encountered_by": a.EncounteredBy,
		"encounter_type": a.EncounterType.Code,
		"created_at":     a.CreatedAt,
		"updated_at":     a.UpdatedAt,
	}
	if a.EncounterType.Code == "" {
		props["encounter_type"] = nil
	}
	switch a.Kind {
	case KindTaxon:
		props["taxon"] = a.TaxonID
	case KindCommunity:
		props["community"] = a.Community
	}
	return props
}

// Feature renders the encounter as a GeoJSON feature.
func (a *AreaEncounter) Feature() *geojson.Feature {
	return geo.Feature(a.ID, a.Geom, a.Properties())
}
