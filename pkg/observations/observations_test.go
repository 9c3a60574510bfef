package observations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/geo"
	"github.com/biorecords/biorecords/pkg/schema"
)

func mustWKT(t *testing.T, s string) geo.Geometry {
	t.Helper()
	g, err := geo.ParseWKT(s)
	require.NoError(t, err)
	return g
}

func validEncounter(t *testing.T) Encounter {
	e := Encounter{
		Kind:       KindAnimal,
		Where:      mustWKT(t, "POINT(122.2 -17.9)"),
		When:       time.Date(2019, 11, 20, 21, 30, 0, 0, time.UTC),
		ObserverID: 1,
		ReporterID: 1,
		SourceID:   "2019-11-20-animal-1",
	}
	e.Defaults()
	return e
}

func TestEncounterDefaults(t *testing.T) {
	var e Encounter
	e.Defaults()
	assert.Equal(t, KindEncounter, e.Kind)
	assert.Equal(t, StatusNew, e.Status)
	assert.Equal(t, AccuracySite, e.LocationAccuracy)
	assert.Equal(t, "direct", e.Source)
	assert.Equal(t, 1000, e.LocationAccuracy.Meters())
}

func TestEncounterValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Encounter)
		field  string
	}{
		{"valid", func(*Encounter) {}, ""},
		{"bad kind", func(e *Encounter) { e.Kind = "ufo" }, "kind"},
		{"polygon where", func(e *Encounter) { e.Where = mustWKT(t, "POLYGON((0 0,1 0,1 1,0 0))") }, "where"},
		{"no when", func(e *Encounter) { e.When = time.Time{} }, "when"},
		{"bad accuracy", func(e *Encounter) { e.LocationAccuracy = "5" }, "location_accuracy"},
		{"bad source", func(e *Encounter) { e.Source = "pigeon" }, "source"},
		{"no source id", func(e *Encounter) { e.SourceID = " " }, "source_id"},
		{"no observer", func(e *Encounter) { e.ObserverID = 0 }, "observer"},
		{"bad transect", func(e *Encounter) {
			e.Kind = KindLineTransect
			e.Details = map[string]any{"transect": "POINT(1 2)"}
		}, "transect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEncounter(t)
			tt.mutate(&e)
			err := e.Validate()
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

func TestEncounterDetailsFiltered(t *testing.T) {
	e := validEncounter(t)
	e.Details = map[string]any{"species": "natator-depressus", "sex": "female", "nest_age": "fresh"}
	require.NoError(t, e.Validate())
	assert.Equal(t, map[string]any{"species": "natator-depressus", "sex": "female"}, e.Details)
}

func TestEncounterLabel(t *testing.T) {
	e := validEncounter(t)
	assert.Equal(t, "2019-11-20 21:30 UTC Florian Mayer Animal Encounter", e.Label("Florian Mayer"))
	assert.Equal(t, "2019-11-20 21:30 UTC Animal Encounter", e.LeafletTitle(""))
	assert.InDelta(t, -17.9, e.Latitude(), 1e-9)
	assert.InDelta(t, 122.2, e.Longitude(), 1e-9)
	assert.Equal(t, "WGS 84", e.CRS())
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusNew, StatusProofread, true},
		{StatusProofread, StatusCurated, true},
		{StatusCurated, StatusPublished, true},
		{StatusNew, StatusCurated, false},
		{StatusPublished, StatusCurated, false},
		{StatusPublished, StatusNew, true},
		{StatusCurated, StatusNew, true},
		{StatusNew, StatusNew, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			e := Encounter{ID: 3, Status: tt.from}
			err := Transition(&e, tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, e.Status)
				return
			}
			assert.True(t, errors.IsConflict(err))
			assert.Equal(t, tt.from, e.Status)
		})
	}

	e := Encounter{Status: StatusNew}
	assert.True(t, errors.IsValidationError(Transition(&e, "flagged")))
}

func TestAreaDerivedFields(t *testing.T) {
	a := Area{AreaType: AreaSite, Name: "Cable Beach", Geom: mustWKT(t, "POLYGON((122 -18,123 -18,123 -17,122 -17,122 -18))")}
	require.NoError(t, a.Validate())
	assert.InDelta(t, -17.0, a.NorthernExtent, 1e-9)
	assert.InDelta(t, 122.5, a.Centroid.Longitude(), 1e-9)
	assert.InDelta(t, -17.5, a.Centroid.Latitude(), 1e-9)

	bad := Area{AreaType: "moon", Name: "x", Geom: a.Geom}
	assert.True(t, errors.IsValidationError(bad.Validate()))
}

func TestSurveyValidate(t *testing.T) {
	start := time.Date(2020, 1, 1, 6, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	s := Survey{StartTime: start, EndTime: &end, ReporterID: 1}
	assert.True(t, errors.IsValidationError(s.Validate()))

	end = start.Add(2 * time.Hour)
	require.NoError(t, s.Validate())
	assert.Equal(t, 2*time.Hour, s.Duration())
}

func TestUserMatches(t *testing.T) {
	u := User{Username: "florianm", Name: "Florian Mayer", Nickname: "Flo", Aliases: "FM, F. Mayer"}
	for _, name := range []string{"FLORIANM", "florian mayer", "flo", " f. mayer "} {
		assert.True(t, u.Matches(name), name)
	}
	assert.False(t, u.Matches("Mayer"))
	assert.False(t, u.Matches(""))
	assert.Equal(t, "Florian Mayer", u.String())
}

func TestUnits(t *testing.T) {
	assert.InDelta(t, 72.5, MMAsCM(725), 1e-9)
	assert.InDelta(t, 0.725, MMAsM(725), 1e-9)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, Rangify(3))
	assert.Equal(t, []int{15, 16, 17, 18, 19, 20, 21, 22, 23, 24}, Rangify(20))
	assert.Equal(t, "Confirmed present", PresenceLabel("present"))
	assert.Equal(t, "Confirmed absent", PresenceLabel("absent"))
	assert.Equal(t, "NA", PresenceLabel("na"))
	assert.Equal(t, "Proofread", StatusLabel(StatusProofread))
}

func TestRegisterObsTypes(t *testing.T) {
	r := schema.NewRegistry()
	RegisterObsTypes(r)

	typ, data, err := r.Decode(context.Background(), schema.DomainObservations, "hatchlingemergence", map[string]any{
		"bearing_to_water_degrees": "182.5",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "HatchlingEmergence", typ.Name)
	assert.Equal(t, 182.5, data["bearing_to_water_degrees"])
	assert.Equal(t, PresenceNA, data["light_sources_present"])

	_, _, err = r.Decode(context.Background(), schema.DomainObservations, "HatchlingEmergence", map[string]any{
		"bearing_to_water_degrees": 400,
	}, nil)
	assert.True(t, errors.IsValidationError(err))

	_, _, err = r.Decode(context.Background(), schema.DomainObservations, "TrackTallyObservation", map[string]any{"species": "x"}, nil)
	assert.True(t, errors.IsValidationError(err))
}
