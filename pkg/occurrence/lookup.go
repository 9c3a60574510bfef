package occurrence

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/biorecords/biorecords/pkg/errors"
)

// Lookup tables.
const (
	LookupEncounterType            = "encounter_type"
	LookupCountMethod              = "count_method"
	LookupCountAccuracy            = "count_accuracy"
	LookupSecondarySigns           = "secondary_signs"
	LookupSampleType               = "sample_type"
	LookupSampleDestination        = "sample_destination"
	LookupPermitType               = "permit_type"
	LookupLandform                 = "landform"
	LookupRockType                 = "rock_type"
	LookupSoilType                 = "soil_type"
	LookupSoilColour               = "soil_colour"
	LookupDrainage                 = "drainage"
	LookupSurfaceType              = "surface_type"
	LookupVegetationClassification = "vegetation_classification"
	LookupFireIntensity            = "fire_intensity"
	LookupPhysicalSampleType       = "physical_sample_type"
)

// LookupTables lists every lookup table name.
var LookupTables = []string{
	LookupEncounterType,
	LookupCountMethod,
	LookupCountAccuracy,
	LookupSecondarySigns,
	LookupSampleType,
	LookupSampleDestination,
	LookupPermitType,
	LookupLandform,
	LookupRockType,
	LookupSoilType,
	LookupSoilColour,
	LookupDrainage,
	LookupSurfaceType,
	LookupVegetationClassification,
	LookupFireIntensity,
	LookupPhysicalSampleType,
}

// IsLookupTable reports whether name is a known lookup table.
// Dashes are accepted in place of underscores.
func IsLookupTable(name string) bool {
	return slices.Contains(LookupTables, NormalizeTable(name))
}

// NormalizeTable maps "encounter-type" to "encounter_type".
func NormalizeTable(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}

// Lookup is a row of a code/label lookup table.
type Lookup struct {
	ID          int64  `json:"id" yaml:"id,omitempty"`
	Table       string `json:"-" yaml:"table,omitempty"`
	Code        string `json:"code" yaml:"code"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description,omitempty"`
}

// String returns the label, falling back to the code.
func (l *Lookup) String() string {
	if l.Label != "" {
		return l.Label
	}
	return l.Code
}

// Validate checks the table name and code.
func (l *Lookup) Validate() error {
	if !IsLookupTable(l.Table) {
		return errors.NewValidationError("table", l.Table, "unknown lookup table")
	}
	if strings.TrimSpace(l.Code) == "" {
		return errors.NewValidationError("code", l.Code, "is required")
	}
	return nil
}

// LookupRef references a lookup row either by id or by code. It decodes
// from a JSON number (id) or string (code) and always encodes as the code.
type LookupRef struct {
	ID   int64
	Code string
}

// IsZero reports whether neither id nor code is set.
func (r LookupRef) IsZero() bool {
	return r.ID == 0 && r.Code == ""
}

// MarshalJSON encodes the code, or null.
func (r LookupRef) MarshalJSON() ([]byte, error) {
	if r.Code == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.Code)
}

// UnmarshalJSON accepts a number, a string or null.
func (r *LookupRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = LookupRef{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		r.Code = strings.TrimSpace(s)
		return nil
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.NewValidationError("", string(data), "expected a lookup id or code")
	}
	r.ID = id
	return nil
}

// MarshalYAML encodes the code.
func (r LookupRef) MarshalYAML() (any, error) {
	if r.Code == "" {
		return nil, nil
	}
	return r.Code, nil
}

// UnmarshalYAML reads a code.
func (r *LookupRef) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*r = LookupRef{Code: strings.TrimSpace(s)}
	return nil
}
