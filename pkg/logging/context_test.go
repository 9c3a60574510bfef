package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/biorecords/biorecords/pkg/logging"
)

func TestContextFunctions(t *testing.T) {
	t.Run("record helpers tag the logger", func(t *testing.T) {
		tl := logging.NewTestLogger(t)
		ctx := logging.WithLogger(context.Background(), tl.Logger)
		ctx = logging.WithTaxon(ctx, 24451)
		ctx = logging.WithEncounter(ctx, 9)
		ctx = logging.WithObsType(ctx, "PlantCount")

		logging.FromContext(ctx).Info().Msg("saved")

		assert.True(t, tl.ContainsAll(`"name_id":24451`, `"encounter_id":9`, `"obstype":"PlantCount"`, "saved"))
	})

	t.Run("request id round trip", func(t *testing.T) {
		tl := logging.NewTestLogger(t)
		ctx := logging.WithLogger(context.Background(), tl.Logger)
		ctx = logging.WithRequestID(ctx, "req-123")

		assert.Equal(t, "req-123", logging.RequestID(ctx))
		logging.FromContext(ctx).Info().Msg("handled")
		tl.AssertContains(t, `"request_id":"req-123"`)
	})

	t.Run("falls back to default", func(t *testing.T) {
		assert.Same(t, logging.Default(), logging.FromContext(context.Background()))
		assert.Same(t, logging.Default(), logging.FromContext(logging.WithLogger(context.Background(), nil)))
		assert.Empty(t, logging.RequestID(context.Background()))
	})
}
