package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/biorecords/biorecords/pkg/errors"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "taxon",
			ID:       "42",
		}
		assert.Equal(t, "taxon with ID 42 not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("constructor", func(t *testing.T) {
		err := pkgerrors.NewNotFoundError("community", "TEC-01")
		assert.Equal(t, "community with ID TEC-01 not found", err.Error())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("encounter", "7")
		wrapped := fmt.Errorf("resolving observation: %w", base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Field:   "encounter_type",
			Message: "is required",
		}
		assert.Equal(t, "validation failed for field encounter_type: is required", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "empty batch"}
		assert.Equal(t, "validation failed: empty batch", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})
}

func TestConflictError(t *testing.T) {
	err := pkgerrors.NewConflictError("listing", "3", "cannot move from listed to proposed")
	assert.Equal(t, "conflict on listing 3: cannot move from listed to proposed", err.Error())
	assert.True(t, pkgerrors.IsConflict(err))
	assert.False(t, pkgerrors.IsValidationError(err))

	noID := pkgerrors.NewConflictError("observation", "", "2 duplicates")
	assert.Equal(t, "conflict on observation: 2 duplicates", noID.Error())
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name string
		err  *pkgerrors.ParseError
		want string
	}{
		{
			name: "with position",
			err:  &pkgerrors.ParseError{Format: "yaml", File: "taxa.yaml", Line: 3, Column: 5, Message: "bad indent"},
			want: "parse error in yaml at taxa.yaml:3:5: bad indent",
		},
		{
			name: "file only",
			err:  &pkgerrors.ParseError{Format: "yaml", File: "taxa.yaml", Message: "empty"},
			want: "parse error in yaml file taxa.yaml: empty",
		},
		{
			name: "no file",
			err:  &pkgerrors.ParseError{Format: "wkt", Message: "unknown geometry"},
			want: "wkt parse error: unknown geometry",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.True(t, pkgerrors.IsValidationError(tt.err))
		})
	}
}

func TestResourceError(t *testing.T) {
	base := errors.New("disk full")
	err := pkgerrors.NewResourceError("create", "taxon", "42", base)
	assert.Equal(t, "failed to create taxon 42: disk full", err.Error())
	assert.ErrorIs(t, err, base)

	noID := pkgerrors.NewResourceError("list", "taxa", "", base)
	assert.Equal(t, "failed to list taxa: disk full", noID.Error())
}

func TestIOError(t *testing.T) {
	base := errors.New("permission denied")
	err := pkgerrors.NewIOError("read", "/tmp/fixtures.yaml", base)
	assert.Equal(t, "IO error during read of /tmp/fixtures.yaml: permission denied", err.Error())
	assert.ErrorIs(t, err, base)
}

func TestConfigError(t *testing.T) {
	err := pkgerrors.NewConfigError("server", "port out of range", nil)
	assert.Equal(t, "configuration error in server: port out of range", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestWrapHelpers(t *testing.T) {
	t.Run("nil passthrough", func(t *testing.T) {
		assert.NoError(t, pkgerrors.WrapValidation("f", nil))
		assert.NoError(t, pkgerrors.WrapIO("read", "p", nil))
		assert.NoError(t, pkgerrors.WrapResource("create", "taxon", "1", nil))
		assert.NoError(t, pkgerrors.WrapParse("yaml", "f", nil))
	})

	t.Run("wrap validation", func(t *testing.T) {
		err := pkgerrors.WrapValidation("rank", errors.New("unknown rank"))
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("wrap resource keeps cause", func(t *testing.T) {
		err := pkgerrors.WrapResource("update", "taxon", "1", pkgerrors.NewNotFoundError("taxon", "1"))
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("wrap parse", func(t *testing.T) {
		var pe *pkgerrors.ParseError
		err := pkgerrors.WrapParse("json", "", errors.New("unexpected EOF"))
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "json", pe.Format)
	})
}
