package store

import (
	"context"
	stderrors "errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/schema"
)

func TestObservationDuplicateGate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ranger")
	e := createEncounter(t, s, "nest-3", u)

	raw := map[string]any{"source": "odk", "source_id": "nest-3", "name": "WA1234", "tag_type": "flipper-tag"}
	rec, err := s.Observations.Prepare(ctx, schema.DomainObservations, "TagObservation", raw)
	require.NoError(t, err)
	assert.Equal(t, e.ID, rec.EncounterID)
	assert.Equal(t, "resighted", rec.Data["status"])

	first, created, err := s.Observations.Create(ctx, schema.DomainObservations, rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "odk", first.Source)
	assert.Equal(t, "nest-3", first.SourceID)

	again, err := s.Observations.Prepare(ctx, schema.DomainObservations, "tagobservation", raw)
	require.NoError(t, err)
	existing, created, err := s.Observations.Create(ctx, schema.DomainObservations, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, existing.ID)

	// Bulk creation skips the gate, leaving two identical records behind.
	n, err := s.Observations.BulkCreate(ctx, schema.DomainObservations, "TagObservation", []map[string]any{raw})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	third, err := s.Observations.Prepare(ctx, schema.DomainObservations, "TagObservation", raw)
	require.NoError(t, err)
	_, _, err = s.Observations.Create(ctx, schema.DomainObservations, third)
	assert.True(t, errors.IsValidationError(err), "got %v", err)

	list, total, err := s.Observations.List(ctx, ObservationFilter{Domain: schema.DomainObservations, EncounterID: &e.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 2)
}

func TestObservationBulkCreateIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ranger")
	e := createEncounter(t, s, "nest-4", u)

	items := []map[string]any{
		{"encounter": e.ID, "body_weight_g": 21.5},
		{"encounter": e.ID, "body_weight_g": -3},
	}
	_, err := s.Observations.BulkCreate(ctx, schema.DomainObservations, "HatchlingMorphometric", items)
	require.Error(t, err)
	var verr *errors.ValidationError
	require.True(t, stderrors.As(err, &verr))
	assert.Equal(t, "[1].body_weight_g", verr.Field)

	_, total, err := s.Observations.List(ctx, ObservationFilter{Domain: schema.DomainObservations})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = s.Observations.BulkCreate(ctx, schema.DomainObservations, "HatchlingMorphometric", nil)
	assert.True(t, errors.IsValidationError(err))

	items[1]["body_weight_g"] = 19.0
	n, err := s.Observations.BulkCreate(ctx, schema.DomainObservations, "HatchlingMorphometric", items)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestObservationEncounterResolution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ranger")
	e := createEncounter(t, s, "nest-5", u)

	id, err := s.Observations.ResolveEncounter(ctx, schema.DomainObservations, map[string]any{"encounter": float64(e.ID)})
	require.NoError(t, err)
	assert.Equal(t, e.ID, id)

	id, err = s.Observations.ResolveEncounter(ctx, schema.DomainObservations, map[string]any{"encounter": " " + strconv.FormatInt(e.ID, 10) + " "})
	require.NoError(t, err)
	assert.Equal(t, e.ID, id)

	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"missing", map[string]any{}},
		{"unknown id", map[string]any{"encounter": 404}},
		{"not a number", map[string]any{"encounter": "abc"}},
		{"unknown source", map[string]any{"source": "odk", "source_id": "nope"}},
		{"source without id", map[string]any{"source": "odk"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Observations.ResolveEncounter(ctx, schema.DomainObservations, tt.raw)
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}

	// Occurrence observations belong to area encounters, not field encounters.
	_, err = s.Observations.ResolveEncounter(ctx, schema.DomainOccurrence, map[string]any{"encounter": e.ID})
	assert.True(t, errors.IsValidationError(err))

	_, err = s.Observations.Prepare(ctx, schema.DomainObservations, "NoSuchType", map[string]any{"encounter": e.ID})
	assert.True(t, errors.IsValidationError(err))
}

func TestObservationUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ranger")
	createEncounter(t, s, "nest-6", u)

	base := map[string]any{"source": "odk", "source_id": "nest-6"}
	with := func(extra map[string]any) map[string]any {
		out := map[string]any{}
		for k, v := range base {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}

	a, err := s.Observations.Prepare(ctx, schema.DomainObservations, "ManagementAction", with(map[string]any{"management_actions": "fenced"}))
	require.NoError(t, err)
	_, _, err = s.Observations.Create(ctx, schema.DomainObservations, a)
	require.NoError(t, err)
	b, err := s.Observations.Prepare(ctx, schema.DomainObservations, "ManagementAction", with(map[string]any{"management_actions": "relocated"}))
	require.NoError(t, err)
	_, _, err = s.Observations.Create(ctx, schema.DomainObservations, b)
	require.NoError(t, err)

	// Turning b into a copy of a is rejected.
	clash, err := s.Observations.Prepare(ctx, schema.DomainObservations, "ManagementAction", with(map[string]any{"management_actions": "fenced"}))
	require.NoError(t, err)
	clash.ID = b.ID
	assert.True(t, errors.IsValidationError(s.Observations.Update(ctx, schema.DomainObservations, clash)))

	other, err := s.Observations.Prepare(ctx, schema.DomainObservations, "LightSource", with(nil))
	require.NoError(t, err)
	other.ID = b.ID
	assert.True(t, errors.IsValidationError(s.Observations.Update(ctx, schema.DomainObservations, other)))

	fine, err := s.Observations.Prepare(ctx, schema.DomainObservations, "ManagementAction", with(map[string]any{"management_actions": "relocated", "comments": "moved 20 m"}))
	require.NoError(t, err)
	fine.ID = b.ID
	require.NoError(t, s.Observations.Update(ctx, schema.DomainObservations, fine))

	got, err := s.Observations.Get(ctx, schema.DomainObservations, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "moved 20 m", got.Data["comments"])
	assert.Equal(t, "nest-6", got.SourceID)

	require.NoError(t, s.Observations.Delete(ctx, schema.DomainObservations, b.ID))
	_, err = s.Observations.Get(ctx, schema.DomainObservations, b.ID)
	assert.True(t, errors.IsNotFound(err))
}
