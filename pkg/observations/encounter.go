// Package observations models field encounters with animals, turtle nests,
// loggers and line transects, the sites and surveys they belong to, and the
// observation types recorded against them.
package observations

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/geo"
)

// Kind is the encounter kind.
type Kind string

// Encounter kinds.
const (
	KindEncounter    Kind = "encounter"
	KindAnimal       Kind = "animal"
	KindTurtleNest   Kind = "turtle_nest"
	KindLogger       Kind = "logger"
	KindLineTransect Kind = "line_transect"
)

var kindLabels = map[Kind]string{
	KindEncounter:    "Encounter",
	KindAnimal:       "Animal Encounter",
	KindTurtleNest:   "Turtle Nest Encounter",
	KindLogger:       "Logger Encounter",
	KindLineTransect: "Line Transect Encounter",
}

// detailKeys are the kind specific fields accepted into Encounter.Details.
var detailKeys = map[Kind][]string{
	KindAnimal: {
		"taxon", "species", "health", "sex", "maturity", "behaviour", "habitat",
		"activity", "nesting_event", "laparoscopy", "checked_for_injuries",
		"scanned_for_pit_tags", "checked_for_flipper_tags", "cause_of_death",
		"cause_of_death_confidence",
	},
	KindTurtleNest: {
		"nest_age", "nest_type", "species", "habitat", "disturbance", "nest_tagged",
		"logger_found", "eggs_counted", "hatchlings_measured", "fan_angles_measured",
	},
	KindLogger:       {"logger_type", "deployment_status", "logger_id"},
	KindLineTransect: {"transect", "species", "nest_age", "nest_type"},
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindLabels[k]
	return ok
}

// Label is the display name of the kind.
func (k Kind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// DetailKeys returns the detail fields the kind accepts.
func (k Kind) DetailKeys() []string {
	return detailKeys[k]
}

// LocationAccuracy is the coarse accuracy class of an encounter location.
type LocationAccuracy string

// Location accuracy classes.
const (
	AccuracyGPS      LocationAccuracy = "10"
	AccuracySite     LocationAccuracy = "1000"
	AccuracyRough    LocationAccuracy = "10000"
	DefaultAccuracy                   = AccuracySite
	accuracyUnparsed                  = -1
)

// Meters returns the accuracy radius, or -1 for an unknown class.
func (a LocationAccuracy) Meters() int {
	switch a {
	case AccuracyGPS:
		return 10
	case AccuracySite:
		return 1000
	case AccuracyRough:
		return 10000
	}
	return accuracyUnparsed
}

// Label is the display name of the accuracy class.
func (a LocationAccuracy) Label() string {
	switch a {
	case AccuracyGPS:
		return "GPS reading at exact location (10 m)"
	case AccuracySite:
		return "Site centroid or place name (1 km)"
	case AccuracyRough:
		return "Rough estimate (10 km)"
	}
	return string(a)
}

// Sources are the known encounter data sources.
var Sources = []string{"direct", "paper", "odk", "wamtram", "ntp", "dpaw", "cet", "pit", "fdm"}

// Encounter is an observation event at a place and time.
type Encounter struct {
	ID                int64            `json:"id" yaml:"id,omitempty"`
	Kind              Kind             `json:"kind" yaml:"kind"`
	AreaID            *int64           `json:"area" yaml:"area,omitempty"`
	SiteID            *int64           `json:"site" yaml:"site,omitempty"`
	SurveyID          *int64           `json:"survey" yaml:"survey,omitempty"`
	Where             geo.Geometry     `json:"where" yaml:"where"`
	When              time.Time        `json:"when" yaml:"when"`
	LocationAccuracy  LocationAccuracy `json:"location_accuracy" yaml:"location_accuracy,omitempty"`
	LocationAccuracyM *float64         `json:"location_accuracy_m" yaml:"location_accuracy_m,omitempty"`
	Name              string           `json:"name" yaml:"name,omitempty"`
	ObserverID        int64            `json:"observer" yaml:"observer"`
	ReporterID        int64            `json:"reporter" yaml:"reporter"`
	Comments          string           `json:"comments" yaml:"comments,omitempty"`
	Status            Status           `json:"status" yaml:"status,omitempty"`
	Source            string           `json:"source" yaml:"source"`
	SourceID          string           `json:"source_id" yaml:"source_id"`
	EncounterType     string           `json:"encounter_type" yaml:"encounter_type,omitempty"`
	Details           map[string]any   `json:"details" yaml:"details,omitempty"`
	CreatedAt         time.Time        `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time        `json:"updated_at" yaml:"-"`
}

// Defaults fills unset kind, status and accuracy.
func (e *Encounter) Defaults() {
	if e.Kind == "" {
		e.Kind = KindEncounter
	}
	if e.Status == "" {
		e.Status = StatusNew
	}
	if e.LocationAccuracy == "" {
		e.LocationAccuracy = DefaultAccuracy
	}
	if e.Source == "" {
		e.Source = "direct"
	}
}

// Validate checks required fields and drops detail keys the kind does not
// accept.
func (e *Encounter) Validate() error {
	if !e.Kind.Valid() {
		return errors.NewValidationError("kind", e.Kind, "unknown encounter kind")
	}
	if !e.Status.Valid() {
		return errors.NewValidationError("status", e.Status, "unknown status")
	}
	if err := e.Where.Require("where", geo.TypePoint); err != nil {
		return err
	}
	if e.When.IsZero() {
		return errors.NewValidationError("when", nil, "is required")
	}
	if e.LocationAccuracy.Meters() == accuracyUnparsed {
		return errors.NewValidationError("location_accuracy", e.LocationAccuracy, "unknown accuracy class")
	}
	if !slices.Contains(Sources, e.Source) {
		return errors.NewValidationError("source", e.Source, "unknown source")
	}
	if strings.TrimSpace(e.SourceID) == "" {
		return errors.NewValidationError("source_id", e.SourceID, "is required")
	}
	if e.ObserverID == 0 {
		return errors.NewValidationError("observer", nil, "is required")
	}
	if e.ReporterID == 0 {
		return errors.NewValidationError("reporter", nil, "is required")
	}
	allowed := e.Kind.DetailKeys()
	maps.DeleteFunc(e.Details, func(k string, _ any) bool {
		return !slices.Contains(allowed, k)
	})
	if t, ok := e.Details["transect"].(string); ok && t != "" {
		g, err := geo.ParseWKT(t)
		if err != nil {
			return errors.WrapValidation("transect", err)
		}
		if err := g.Require("transect", geo.TypeLineString); err != nil {
			return err
		}
	}
	return nil
}

// Latitude of the encounter location.
func (e *Encounter) Latitude() float64 { return e.Where.Latitude() }

// Longitude of the encounter location.
func (e *Encounter) Longitude() float64 { return e.Where.Longitude() }

// CRS is the coordinate reference system of Where.
func (e *Encounter) CRS() string { return geo.CRS }

// Label returns "<when UTC> <observer> <kind label>".
func (e *Encounter) Label(observer string) string {
	return strings.Join(strings.Fields(fmt.Sprintf("%s %s %s",
		e.When.UTC().Format("2006-01-02 15:04 UTC"), observer, e.Kind.Label())), " ")
}

// LeafletTitle is the popup title on maps. It matches Label.
func (e *Encounter) LeafletTitle(observer string) string {
	return e.Label(observer)
}

// String identifies the encounter by source.
func (e *Encounter) String() string {
	return fmt.Sprintf("%s %s/%s", e.Kind.Label(), e.Source, e.SourceID)
}
