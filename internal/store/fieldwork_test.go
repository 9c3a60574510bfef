package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/geo"
	"github.com/biorecords/biorecords/pkg/observations"
)

func mustWKT(t *testing.T, wkt string) geo.Geometry {
	t.Helper()
	g, err := geo.ParseWKT(wkt)
	require.NoError(t, err)
	return g
}

func createEncounter(t *testing.T, s *Store, sourceID string, user *observations.User) *observations.Encounter {
	t.Helper()
	e := &observations.Encounter{
		Kind:       observations.KindTurtleNest,
		Where:      mustWKT(t, "POINT (114.1 -21.8)"),
		When:       testNow.Add(-24 * time.Hour),
		Source:     "odk",
		SourceID:   sourceID,
		ObserverID: user.ID,
		ReporterID: user.ID,
		Details:    map[string]any{"nest_age": "fresh", "bogus": "dropped"},
	}
	require.NoError(t, s.Encounters.Create(context.Background(), e))
	return e
}

func TestAreaDerivedFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	south := &observations.Area{
		AreaType: observations.AreaLocality, Name: "Ningaloo",
		Geom: mustWKT(t, "POLYGON ((113 -23, 114 -23, 114 -22, 113 -22, 113 -23))"),
	}
	north := &observations.Area{
		AreaType: observations.AreaLocality, Name: "Thevenard",
		Geom: mustWKT(t, "POLYGON ((115 -21, 116 -21, 116 -20, 115 -20, 115 -21))"),
	}
	require.NoError(t, s.Areas.Create(ctx, south))
	require.NoError(t, s.Areas.Create(ctx, north))

	got, err := s.Areas.Get(ctx, north.ID)
	require.NoError(t, err)
	assert.InDelta(t, -20.0, got.NorthernExtent, 1e-9)
	assert.InDelta(t, -20.5, got.Centroid.Latitude(), 1e-9)
	assert.InDelta(t, 115.5, got.Centroid.Longitude(), 1e-9)

	areas, total, err := s.Areas.List(ctx, observations.AreaLocality, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, areas, 2)
	assert.Equal(t, "Thevenard", areas[0].Name)

	notPolygon := &observations.Area{AreaType: observations.AreaSite, Name: "Point", Geom: mustWKT(t, "POINT (1 1)")}
	assert.True(t, errors.IsValidationError(s.Areas.Create(ctx, notPolygon)))
}

func TestEncounterDefaultsAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ranger")
	e := createEncounter(t, s, "nest-1", u)

	got, err := s.Encounters.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, observations.StatusNew, got.Status)
	assert.Equal(t, observations.DefaultAccuracy, got.LocationAccuracy)
	assert.Equal(t, map[string]any{"nest_age": "fresh"}, got.Details)
	assert.InDelta(t, -21.8, got.Where.Latitude(), 1e-9)
	assert.True(t, got.When.Equal(testNow.Add(-24*time.Hour)))

	bySource, err := s.Encounters.GetBySource(ctx, "odk", "nest-1")
	require.NoError(t, err)
	assert.Equal(t, e.ID, bySource.ID)

	dup := createEncounterErr(s, "nest-1", u)
	assert.True(t, errors.IsAlreadyExists(dup), "got %v", dup)

	ghost := &observations.Encounter{
		Where: mustWKT(t, "POINT (114 -21)"), When: testNow, SourceID: "x",
		ObserverID: 404, ReporterID: u.ID,
	}
	assert.True(t, errors.IsValidationError(s.Encounters.Create(ctx, ghost)))

	list, total, err := s.Encounters.List(ctx, EncounterFilter{Kind: observations.KindTurtleNest})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	list, _, err = s.Encounters.List(ctx, EncounterFilter{WhenAfter: &testNow})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func createEncounterErr(s *Store, sourceID string, u *observations.User) error {
	g, _ := geo.ParseWKT("POINT (114.1 -21.8)")
	return s.Encounters.Create(context.Background(), &observations.Encounter{
		Where: g, When: testNow, Source: "odk", SourceID: sourceID, ObserverID: u.ID, ReporterID: u.ID,
	})
}

func TestEncounterTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ranger")
	e := createEncounter(t, s, "nest-2", u)

	_, err := s.Encounters.Transition(ctx, e.ID, observations.StatusCurated)
	assert.True(t, errors.IsConflict(err), "got %v", err)

	out, err := s.Encounters.Transition(ctx, e.ID, observations.StatusProofread)
	require.NoError(t, err)
	assert.Equal(t, observations.StatusProofread, out.Status)

	e.Status = observations.StatusPublished
	assert.True(t, errors.IsValidationError(s.Encounters.Update(ctx, e)))

	e.Status = observations.StatusProofread
	e.Comments = "checked"
	require.NoError(t, s.Encounters.Update(ctx, e))

	got, err := s.Encounters.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "checked", got.Comments)
	assert.Equal(t, observations.StatusProofread, got.Status)

	_, err = s.Encounters.Transition(ctx, 999, observations.StatusProofread)
	assert.True(t, errors.IsNotFound(err))
}

func TestSurveys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ranger")

	end := testNow.Add(-2 * time.Hour)
	sv := &observations.Survey{StartTime: testNow.Add(-4 * time.Hour), EndTime: &end, ReporterID: u.ID, Production: true}
	require.NoError(t, s.Surveys.Create(ctx, sv))

	got, err := s.Surveys.Get(ctx, sv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, got.Duration())
	assert.True(t, got.Production)

	backwards := &observations.Survey{StartTime: testNow, EndTime: &end, ReporterID: u.ID}
	assert.True(t, errors.IsValidationError(s.Surveys.Create(ctx, backwards)))

	require.NoError(t, s.Surveys.Delete(ctx, sv.ID))
	_, err = s.Surveys.Get(ctx, sv.ID)
	assert.True(t, errors.IsNotFound(err))
}
