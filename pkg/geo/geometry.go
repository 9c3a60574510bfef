// Package geo wraps orb geometries for storage as WKT and transport as GeoJSON.
package geo

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/biorecords/biorecords/pkg/errors"
)

// Geometry type names as reported by Type.
const (
	TypePoint      = "Point"
	TypePolygon    = "Polygon"
	TypeLineString = "LineString"
)

// CRS is the coordinate reference system of every stored geometry.
const CRS = "WGS 84"

// Geometry is an optional orb geometry. The zero value is an absent geometry.
// It is persisted as WKT and serialized to JSON as a GeoJSON geometry object.
type Geometry struct {
	orb.Geometry
}

// New wraps g.
func New(g orb.Geometry) Geometry {
	return Geometry{Geometry: g}
}

// ParseWKT parses a WKT string such as "POLYGON ((115 -32, 115 -33, 116 -33, 115 -32))".
// An empty string yields the zero Geometry.
func ParseWKT(s string) (Geometry, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Geometry{}, nil
	}
	// Drop an EWKT SRID prefix, geometries are always WGS 84.
	if strings.HasPrefix(strings.ToUpper(s), "SRID=") {
		if i := strings.Index(s, ";"); i > 0 {
			s = s[i+1:]
		}
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return Geometry{}, errors.NewParseError("wkt", "", err.Error(), err)
	}
	return Geometry{Geometry: g}, nil
}

// Parse accepts either a WKT string or a GeoJSON geometry object.
func Parse(data []byte) (Geometry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Geometry{}, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Geometry{}, errors.WrapParse("json", "", err)
		}
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "{") {
			return Parse([]byte(s))
		}
		return ParseWKT(s)
	}
	if data[0] == '{' {
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return Geometry{}, errors.NewParseError("geojson", "", err.Error(), err)
		}
		return Geometry{Geometry: g.Geometry()}, nil
	}
	return ParseWKT(string(data))
}

// IsZero reports whether the geometry is absent.
func (g Geometry) IsZero() bool {
	return g.Geometry == nil
}

// Type returns the GeoJSON type name, or "" for an absent geometry.
func (g Geometry) Type() string {
	if g.IsZero() {
		return ""
	}
	return g.Geometry.GeoJSONType()
}

// WKT returns the WKT text, or "" for an absent geometry.
func (g Geometry) WKT() string {
	if g.IsZero() {
		return ""
	}
	return wkt.MarshalString(g.Geometry)
}

// String implements fmt.Stringer.
func (g Geometry) String() string {
	return g.WKT()
}

// Point returns the geometry as a point.
func (g Geometry) Point() (orb.Point, bool) {
	p, ok := g.Geometry.(orb.Point)
	return p, ok
}

// Latitude of a point geometry, or of the centroid otherwise.
func (g Geometry) Latitude() float64 {
	return g.Centroid().Lat()
}

// Longitude of a point geometry, or of the centroid otherwise.
func (g Geometry) Longitude() float64 {
	return g.Centroid().Lon()
}

// Centroid returns the planar centroid. Points are their own centroid.
func (g Geometry) Centroid() orb.Point {
	if g.IsZero() {
		return orb.Point{}
	}
	if p, ok := g.Point(); ok {
		return p
	}
	c, _ := planar.CentroidArea(g.Geometry)
	return c
}

// NorthernExtent returns the maximum latitude of the geometry.
func (g Geometry) NorthernExtent() float64 {
	if g.IsZero() {
		return 0
	}
	return g.Geometry.Bound().Top()
}

// Require returns a validation error unless the geometry is present and of
// the wanted GeoJSON type.
func (g Geometry) Require(field, wantType string) error {
	if g.IsZero() {
		return errors.NewValidationError(field, nil, "geometry is required")
	}
	if got := g.Type(); got != wantType {
		return errors.NewValidationError(field, got, fmt.Sprintf("expected %s geometry, got %s", wantType, got))
	}
	return nil
}

// MarshalJSON renders a GeoJSON geometry object, or null.
func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.IsZero() {
		return []byte("null"), nil
	}
	return geojson.NewGeometry(g.Geometry).MarshalJSON()
}

// UnmarshalJSON accepts a GeoJSON geometry object, a WKT string, or null.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// MarshalYAML renders WKT so fixtures stay readable.
func (g Geometry) MarshalYAML() (any, error) {
	if g.IsZero() {
		return nil, nil
	}
	return g.WKT(), nil
}

// UnmarshalYAML reads WKT.
func (g *Geometry) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseWKT(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Value implements driver.Valuer.
func (g Geometry) Value() (driver.Value, error) {
	if g.IsZero() {
		return nil, nil
	}
	return g.WKT(), nil
}

// Scan implements sql.Scanner.
func (g *Geometry) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*g = Geometry{}
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("geo: cannot scan %T into Geometry", src)
	}
	parsed, err := ParseWKT(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Feature builds a GeoJSON feature with the given id and properties.
func Feature(id any, g Geometry, properties map[string]any) *geojson.Feature {
	f := &geojson.Feature{
		Type:       "Feature",
		ID:         id,
		Geometry:   g.Geometry,
		Properties: geojson.Properties(properties),
	}
	if f.Properties == nil {
		f.Properties = geojson.Properties{}
	}
	return f
}
