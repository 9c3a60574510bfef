package schema

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/pkg/errors"
)

type fakeResolver struct {
	lookups map[string][]string
	taxa    map[int64]bool
}

func (f fakeResolver) LookupExists(_ context.Context, table, code string) (bool, error) {
	for _, c := range f.lookups[table] {
		if c == code {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeResolver) TaxonExists(_ context.Context, id int64) (bool, error) {
	return f.taxa[id], nil
}

func (f fakeResolver) UserExists(context.Context, int64) (bool, error)       { return true, nil }
func (f fakeResolver) AttachmentExists(context.Context, int64) (bool, error) { return false, nil }

func zero() *float64 { v := 0.0; return &v }

func testType() Type {
	return Type{
		Name:   "PlantCount",
		Label:  "Plant count",
		Domain: DomainOccurrence,
		Fields: []Field{
			{Name: "count_method", Kind: KindLookup, Lookup: "count_method", Required: true},
			{Name: "no_alive_mature", Kind: KindInt, Min: zero()},
			{Name: "population_area_sqm", Kind: KindFloat},
			{Name: "simple_alive", Kind: KindBool},
			{Name: "count_accuracy", Kind: KindChoice, Choices: []string{"actual", "estimate"}, Default: "actual"},
			{Name: "counted_on", Kind: KindDate},
			{Name: "signs", Kind: KindLookups, Lookup: "sign"},
			{Name: "taxon", Kind: KindTaxon},
			{Name: "photo", Kind: KindFile},
		},
	}
}

var resolver = fakeResolver{
	lookups: map[string][]string{
		"count_method": {"individual", "quadrat"},
		"sign":         {"track", "scat", "burrow"},
	},
	taxa: map[int64]bool{24012: true},
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(testType()))

	got, ok := r.Lookup("plantcount")
	require.True(t, ok)
	assert.Equal(t, "PlantCount", got.Name)

	err := r.Register(Type{Name: "PLANTCOUNT", Domain: DomainObservations})
	assert.True(t, errors.IsConflict(err))

	_, err = r.Resolve(DomainObservations, "PlantCount")
	assert.True(t, errors.IsValidationError(err), "types do not resolve across domains")

	_, err = r.Resolve(DomainOccurrence, "")
	assert.True(t, errors.IsValidationError(err))

	assert.Len(t, r.Types(DomainOccurrence), 1)
	assert.Empty(t, r.Types(DomainObservations))
	assert.Len(t, r.Types(""), 1)
}

func TestRegisterRejectsBadFields(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Type{Name: "X", Fields: []Field{{Name: "a", Kind: KindInt}, {Name: "a", Kind: KindInt}}})
	assert.True(t, errors.IsValidationError(err))

	err = r.Register(Type{Name: "Y", Fields: []Field{{Name: "encounter", Kind: KindInt}}})
	assert.True(t, errors.IsValidationError(err))

	assert.Panics(t, func() { r.MustRegister(Type{}) })
}

func TestDecode(t *testing.T) {
	typ := testType()
	ctx := context.Background()

	data, err := typ.Decode(ctx, map[string]any{
		"count_method":        "quadrat",
		"no_alive_mature":     json.Number("12"),
		"population_area_sqm": "3.5",
		"simple_alive":        "on",
		"counted_on":          "2020-03-01T10:00:00+08:00",
		"signs":               "track, scat",
		"taxon":               float64(24012),
		"landform":            "ignored",
		"encounter":           7,
	}, resolver)
	require.NoError(t, err)

	assert.Equal(t, Data{
		"count_method":        "quadrat",
		"no_alive_mature":     int64(12),
		"population_area_sqm": 3.5,
		"simple_alive":        true,
		"count_accuracy":      "actual",
		"counted_on":          "2020-03-01",
		"signs":               []string{"track", "scat"},
		"taxon":               int64(24012),
	}, data)
}

func TestDecodeNullsAreOptional(t *testing.T) {
	typ := testType()
	data, err := typ.Decode(context.Background(), map[string]any{
		"count_method":    "individual",
		"no_alive_mature": nil,
		"signs":           []any{},
		"counted_on":      "",
	}, resolver)
	require.NoError(t, err)
	assert.Equal(t, Data{"count_method": "individual", "count_accuracy": "actual"}, data)
}

func TestDecodeSingleStringForList(t *testing.T) {
	typ := testType()
	data, err := typ.Decode(context.Background(), map[string]any{
		"count_method": "individual",
		"signs":        "burrow",
	}, resolver)
	require.NoError(t, err)
	assert.Equal(t, []string{"burrow"}, data["signs"])
}

func TestDecodeErrors(t *testing.T) {
	typ := testType()
	tests := []struct {
		name  string
		raw   map[string]any
		field string
	}{
		{"missing required", map[string]any{}, "count_method"},
		{"unknown lookup", map[string]any{"count_method": "guess"}, "count_method"},
		{"bad int", map[string]any{"count_method": "quadrat", "no_alive_mature": "many"}, "no_alive_mature"},
		{"fractional int", map[string]any{"count_method": "quadrat", "no_alive_mature": 1.5}, "no_alive_mature"},
		{"below min", map[string]any{"count_method": "quadrat", "no_alive_mature": -1}, "no_alive_mature"},
		{"bad choice", map[string]any{"count_method": "quadrat", "count_accuracy": "vibes"}, "count_accuracy"},
		{"bad date", map[string]any{"count_method": "quadrat", "counted_on": "yesterday"}, "counted_on"},
		{"unknown sign", map[string]any{"count_method": "quadrat", "signs": []any{"track", "feather"}}, "signs"},
		{"unknown taxon", map[string]any{"count_method": "quadrat", "taxon": 1}, "taxon"},
		{"missing file", map[string]any{"count_method": "quadrat", "photo": 9}, "photo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := typ.Decode(context.Background(), tt.raw, resolver)
			require.Error(t, err)
			var verr *errors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCanonicalAndParse(t *testing.T) {
	d := Data{"b": int64(2), "a": "x", "c": []string{"p", "q"}, "f": 1.25}
	s, err := d.Canonical()
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"c":["p","q"],"f":1.25}`, s)

	back, err := ParseData(s)
	require.NoError(t, err)
	assert.Equal(t, d, back)

	again, err := back.Canonical()
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestRecordJSON(t *testing.T) {
	rec := Record{ID: 4, Domain: DomainOccurrence, EncounterID: 9, ObsType: "PlantCount", Source: "1", SourceID: "abc", Data: Data{"no_alive_mature": int64(3)}}
	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, float64(4), m["id"])
	assert.Equal(t, float64(9), m["encounter"])
	assert.Equal(t, "PlantCount", m["obstype"])
	assert.Equal(t, float64(1), m["source"])
	assert.Equal(t, "abc", m["source_id"])
	assert.Equal(t, float64(3), m["no_alive_mature"])

	// Field encounter sources are names.
	field := Record{ID: 5, Domain: DomainObservations, EncounterID: 9, ObsType: "TagObservation", Source: "odk", SourceID: "x"}
	b, err = json.Marshal(field)
	require.NoError(t, err)
	m = nil
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "odk", m["source"])
}

func TestRegistryDecode(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(testType(), Type{Name: "FireHistory", Domain: DomainOccurrence})
	assert.Equal(t, []string{"FireHistory", "PlantCount"}, r.Names(DomainOccurrence))

	typ, data, err := r.Decode(context.Background(), DomainOccurrence, "plantcount", map[string]any{"count_method": "quadrat"}, resolver)
	require.NoError(t, err)
	assert.Equal(t, "PlantCount", typ.Name)
	assert.Equal(t, "quadrat", data["count_method"])

	_, _, err = r.Decode(context.Background(), DomainOccurrence, "Nope", nil, resolver)
	assert.True(t, errors.IsValidationError(err))
}
