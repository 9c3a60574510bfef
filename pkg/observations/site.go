package observations

import (
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/geo"
)

// AreaType classifies an Area.
type AreaType string

// Area types.
const (
	AreaMPA         AreaType = "mpa"
	AreaLocality    AreaType = "locality"
	AreaSite        AreaType = "site"
	AreaDBCA        AreaType = "dbca_region"
	AreaDistrict    AreaType = "dbca_district"
	AreaSectorLocal AreaType = "sector_local"
)

var areaTypes = map[AreaType]bool{
	AreaMPA: true, AreaLocality: true, AreaSite: true,
	AreaDBCA: true, AreaDistrict: true, AreaSectorLocal: true,
}

// Area is a named polygon such as a locality or monitoring site.
type Area struct {
	ID                     int64        `json:"id" yaml:"id,omitempty"`
	AreaType               AreaType     `json:"area_type" yaml:"area_type"`
	Name                   string       `json:"name" yaml:"name"`
	Geom                   geo.Geometry `json:"geom" yaml:"geom"`
	NorthernExtent         float64      `json:"northern_extent" yaml:"-"`
	Centroid               geo.Geometry `json:"centroid" yaml:"-"`
	LengthSurveyedM        *int64       `json:"length_surveyed_m" yaml:"length_surveyed_m,omitempty"`
	LengthSurveyRoundtripM *int64       `json:"length_survey_roundtrip_m" yaml:"length_survey_roundtrip_m,omitempty"`
	CreatedAt              time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt              time.Time    `json:"updated_at" yaml:"-"`
}

// Validate checks required fields and recomputes the derived extent and
// centroid from Geom.
func (a *Area) Validate() error {
	if !areaTypes[a.AreaType] {
		return errors.NewValidationError("area_type", a.AreaType, "unknown area type")
	}
	if strings.TrimSpace(a.Name) == "" {
		return errors.NewValidationError("name", a.Name, "is required")
	}
	if err := a.Geom.Require("geom", geo.TypePolygon); err != nil {
		return err
	}
	a.NorthernExtent = a.Geom.NorthernExtent()
	a.Centroid = geo.New(a.Geom.Centroid())
	return nil
}

// String is "<type> <name>".
func (a *Area) String() string {
	return string(a.AreaType) + " " + a.Name
}

// Survey is a visit to a site by a reporter.
type Survey struct {
	ID            int64      `json:"id" yaml:"id,omitempty"`
	SiteID        *int64     `json:"site" yaml:"site,omitempty"`
	Source        string     `json:"source" yaml:"source,omitempty"`
	SourceID      string     `json:"source_id" yaml:"source_id,omitempty"`
	StartTime     time.Time  `json:"start_time" yaml:"start_time"`
	EndTime       *time.Time `json:"end_time" yaml:"end_time,omitempty"`
	StartComments string     `json:"start_comments" yaml:"start_comments,omitempty"`
	EndComments   string     `json:"end_comments" yaml:"end_comments,omitempty"`
	ReporterID    int64      `json:"reporter" yaml:"reporter"`
	Production    bool       `json:"production" yaml:"production"`
	CreatedAt     time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time  `json:"updated_at" yaml:"-"`
}

// Validate checks times and reporter.
func (s *Survey) Validate() error {
	if s.StartTime.IsZero() {
		return errors.NewValidationError("start_time", nil, "is required")
	}
	if s.EndTime != nil && s.EndTime.Before(s.StartTime) {
		return errors.NewValidationError("end_time", s.EndTime, "must not be before start_time")
	}
	if s.ReporterID == 0 {
		return errors.NewValidationError("reporter", nil, "is required")
	}
	return nil
}

// Duration returns the survey length, or zero while it is open.
func (s *Survey) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
