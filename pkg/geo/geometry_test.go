package geo_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/geo"
)

const square = "POLYGON((115 -32,115 -33,116 -33,116 -32,115 -32))"

func TestParseWKT(t *testing.T) {
	g, err := geo.ParseWKT(square)
	require.NoError(t, err)
	assert.Equal(t, geo.TypePolygon, g.Type())
	assert.InDelta(t, -32.0, g.NorthernExtent(), 1e-9)
	assert.InDelta(t, 115.5, g.Centroid().Lon(), 1e-9)
	assert.InDelta(t, -32.5, g.Centroid().Lat(), 1e-9)

	p, err := geo.ParseWKT("SRID=4326;POINT (115 -32)")
	require.NoError(t, err)
	assert.Equal(t, geo.TypePoint, p.Type())
	assert.InDelta(t, -32.0, p.Latitude(), 1e-9)
	assert.InDelta(t, 115.0, p.Longitude(), 1e-9)

	empty, err := geo.ParseWKT("  ")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	_, err = geo.ParseWKT("CIRCLE (1 2)")
	assert.True(t, errors.IsValidationError(err))
}

func TestJSONRoundTrip(t *testing.T) {
	var fromWKT geo.Geometry
	require.NoError(t, json.Unmarshal([]byte(`"POINT (115 -32)"`), &fromWKT))

	out, err := json.Marshal(fromWKT)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[115,-32]}`, string(out))

	var fromGeoJSON geo.Geometry
	require.NoError(t, json.Unmarshal(out, &fromGeoJSON))
	assert.Equal(t, "POINT(115 -32)", fromGeoJSON.WKT())

	var null geo.Geometry
	require.NoError(t, json.Unmarshal([]byte(`null`), &null))
	assert.True(t, null.IsZero())
	out, err = json.Marshal(null)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestRequire(t *testing.T) {
	poly, err := geo.ParseWKT(square)
	require.NoError(t, err)
	assert.NoError(t, poly.Require("geom", geo.TypePolygon))
	assert.True(t, errors.IsValidationError(poly.Require("point", geo.TypePoint)))
	assert.True(t, errors.IsValidationError(geo.Geometry{}.Require("geom", geo.TypePolygon)))
}

func TestScanValue(t *testing.T) {
	var g geo.Geometry
	require.NoError(t, g.Scan([]byte("POINT (1 2)")))
	v, err := g.Value()
	require.NoError(t, err)
	assert.Equal(t, "POINT(1 2)", v)

	require.NoError(t, g.Scan(nil))
	v, err = g.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Error(t, g.Scan(42))
}

func TestFeature(t *testing.T) {
	poly, err := geo.ParseWKT(square)
	require.NoError(t, err)
	f := geo.Feature(int64(7), poly, map[string]any{"code": "A1"})
	out, err := json.Marshal(f)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "Feature", doc["type"])
	assert.Equal(t, "Polygon", doc["geometry"].(map[string]any)["type"])
	assert.Equal(t, "A1", doc["properties"].(map[string]any)["code"])
}
