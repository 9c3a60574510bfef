package occurrence

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/internal/utils/ptr"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/geo"
	"github.com/biorecords/biorecords/pkg/schema"
)

const polygon = "POLYGON((115 -32,116 -32,116 -31,115 -31,115 -32))"

func mustWKT(t *testing.T, s string) geo.Geometry {
	t.Helper()
	g, err := geo.ParseWKT(s)
	require.NoError(t, err)
	return g
}

func TestAreaEncounterValidate(t *testing.T) {
	poly := mustWKT(t, polygon)
	point := mustWKT(t, "POINT(115.5 -31.5)")

	tests := []struct {
		name     string
		enc      AreaEncounter
		geomType string
		field    string
	}{
		{"plain area", AreaEncounter{Kind: KindArea, Geom: poly}, geo.TypePolygon, ""},
		{"missing geom", AreaEncounter{Kind: KindArea}, geo.TypePolygon, "geom"},
		{"point for polygon", AreaEncounter{Kind: KindArea, Geom: point}, geo.TypePolygon, "geom"},
		{"polygon for point", AreaEncounter{Kind: KindArea, Geom: poly}, geo.TypePoint, "point"},
		{"taxon without taxon", AreaEncounter{Kind: KindTaxon, Geom: poly, EncounteredBy: ptr.To(int64(1)), EncounterType: LookupRef{Code: "census"}}, geo.TypePolygon, "taxon"},
		{"taxon without observer", AreaEncounter{Kind: KindTaxon, Geom: poly, TaxonID: ptr.To(int64(24012)), EncounterType: LookupRef{Code: "census"}}, geo.TypePolygon, "encountered_by"},
		{"taxon without type", AreaEncounter{Kind: KindTaxon, Geom: poly, TaxonID: ptr.To(int64(24012)), EncounteredBy: ptr.To(int64(1))}, geo.TypePolygon, "encounter_type"},
		{"taxon ok", AreaEncounter{Kind: KindTaxon, Geom: point, TaxonID: ptr.To(int64(24012)), EncounteredBy: ptr.To(int64(1)), EncounterType: LookupRef{ID: 3}}, geo.TypePoint, ""},
		{"community without community", AreaEncounter{Kind: KindCommunity, Geom: poly, EncounteredBy: ptr.To(int64(1)), EncounterType: LookupRef{Code: "census"}}, geo.TypePolygon, "community"},
		{"community ok", AreaEncounter{Kind: KindCommunity, Geom: poly, Community: "AGSWAN", EncounteredBy: ptr.To(int64(1)), EncounterType: LookupRef{Code: "census"}}, geo.TypePolygon, ""},
		{"negative accuracy", AreaEncounter{Kind: KindArea, Geom: poly, AccuracyM: ptr.To(-1.0)}, geo.TypePolygon, "accuracy"},
		{"bad kind", AreaEncounter{Kind: "lake", Geom: poly}, geo.TypePolygon, "kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.enc.Validate(tt.geomType)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *errors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestAreaEncounterFeature(t *testing.T) {
	enc := AreaEncounter{
		ID:            7,
		Kind:          KindTaxon,
		Name:          "Quadrat 1",
		Geom:          mustWKT(t, polygon),
		TaxonID:       ptr.To(int64(24012)),
		EncounterType: LookupRef{Code: "census"},
	}
	b, err := json.Marshal(enc.Feature())
	require.NoError(t, err)

	var got struct {
		Type     string `json:"type"`
		ID       int64  `json:"id"`
		Geometry struct {
			Type string `json:"type"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "Feature", got.Type)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "Polygon", got.Geometry.Type)
	assert.Equal(t, "Quadrat 1", got.Properties["name"])
	assert.Equal(t, "census", got.Properties["encounter_type"])
	assert.Equal(t, float64(24012), got.Properties["taxon"])
}

func TestLookupRef(t *testing.T) {
	tests := []struct {
		in   string
		want LookupRef
	}{
		{`3`, LookupRef{ID: 3}},
		{`"census"`, LookupRef{Code: "census"}},
		{`null`, LookupRef{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var r LookupRef
			require.NoError(t, json.Unmarshal([]byte(tt.in), &r))
			assert.Equal(t, tt.want, r)
		})
	}

	b, err := json.Marshal(LookupRef{ID: 3, Code: "census"})
	require.NoError(t, err)
	assert.JSONEq(t, `"census"`, string(b))

	var r LookupRef
	assert.Error(t, json.Unmarshal([]byte(`true`), &r))
}

func TestLookupTables(t *testing.T) {
	assert.True(t, IsLookupTable("encounter-type"))
	assert.True(t, IsLookupTable("Soil_Colour"))
	assert.False(t, IsLookupTable("colour"))

	l := Lookup{Table: "landform", Code: ""}
	assert.True(t, errors.IsValidationError(l.Validate()))
	l.Code = "dune"
	assert.NoError(t, l.Validate())
}

type stubResolver struct{}

func (stubResolver) LookupExists(_ context.Context, table, code string) (bool, error) {
	return table == LookupSecondarySigns && (code == "track" || code == "scat"), nil
}
func (stubResolver) TaxonExists(context.Context, int64) (bool, error)      { return true, nil }
func (stubResolver) UserExists(context.Context, int64) (bool, error)       { return true, nil }
func (stubResolver) AttachmentExists(context.Context, int64) (bool, error) { return true, nil }

func TestRegisterObsTypes(t *testing.T) {
	r := schema.NewRegistry()
	RegisterObsTypes(r)

	names := r.Names(schema.DomainOccurrence)
	assert.Contains(t, names, "PlantCount")
	assert.Contains(t, names, "VegetationClassification")
	assert.Len(t, names, len(ObsTypes()))

	_, data, err := r.Decode(context.Background(), schema.DomainOccurrence, "animalobservation", map[string]any{
		"secondary_signs": "track",
		"no_adult_male":   "2",
	}, stubResolver{})
	require.NoError(t, err)
	assert.Equal(t, []string{"track"}, data["secondary_signs"])
	assert.Equal(t, int64(2), data["no_adult_male"])

	_, data, err = r.Decode(context.Background(), schema.DomainOccurrence, "AreaAssessment", map[string]any{}, stubResolver{})
	require.NoError(t, err)
	assert.Equal(t, "partial", data["survey_type"])

	_, _, err = r.Decode(context.Background(), schema.DomainOccurrence, "HabitatCondition", map[string]any{"pristine": 140}, stubResolver{})
	assert.True(t, errors.IsValidationError(err))
}
