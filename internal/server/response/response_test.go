package response

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/pkg/errors"
)

func TestFail(t *testing.T) {
	body := Fail("TEST_ERROR", "Test error message", Reason("Additional details"))
	require.NotNil(t, body.Error)
	assert.Equal(t, "TEST_ERROR", body.Error.Code)
	assert.Equal(t, "Test error message", body.Error.Message)
	assert.Equal(t, map[string]string{"reason": "Additional details"}, body.Error.Details)
}

func TestJSONWritesObjectItself(t *testing.T) {
	w := httptest.NewRecorder()
	Created(w, map[string]any{"name_id": 42})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	assert.Equal(t, float64(42), decoded["name_id"])
	assert.NotContains(t, decoded, "data")
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		name           string
		total          int
		limit, offset  int
		wantNext       string
		wantPrevious   string
		noNext, noPrev bool
	}{
		{name: "first page", total: 25, limit: 10, offset: 0, wantNext: "/api/v1/taxon?limit=10&offset=10&rank=species", noPrev: true},
		{name: "middle page", total: 25, limit: 10, offset: 10, wantNext: "/api/v1/taxon?limit=10&offset=20&rank=species", wantPrevious: "/api/v1/taxon?limit=10&offset=0&rank=species"},
		{name: "last page", total: 25, limit: 10, offset: 20, noNext: true, wantPrevious: "/api/v1/taxon?limit=10&offset=10&rank=species"},
		{name: "previous clamps at zero", total: 25, limit: 10, offset: 5, wantNext: "/api/v1/taxon?limit=10&offset=15&rank=species", wantPrevious: "/api/v1/taxon?limit=10&offset=0&rank=species"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/taxon?rank=species", nil)
			p := NewPage(r, []int{}, tt.total, tt.limit, tt.offset)
			assert.Equal(t, tt.total, p.Count)
			if tt.noNext {
				assert.Nil(t, p.Next)
			} else {
				require.NotNil(t, p.Next)
				assert.Equal(t, tt.wantNext, *p.Next)
			}
			if tt.noPrev {
				assert.Nil(t, p.Previous)
			} else {
				require.NotNil(t, p.Previous)
				assert.Equal(t, tt.wantPrevious, *p.Previous)
			}
		})
	}
}

func TestPageJSONShape(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	OK(w, NewPage(r, []string{"a"}, 1, 100, 0))

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	assert.Equal(t, float64(1), decoded["count"])
	assert.Nil(t, decoded["next"])
	assert.Nil(t, decoded["previous"])
	assert.Equal(t, []any{"a"}, decoded["results"])
}

func TestErrorFromType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		hasField string
	}{
		{name: "not found", err: errors.NewNotFoundError("taxon", "42"), status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "wrapped not found", err: fmt.Errorf("lookup: %w", errors.NewNotFoundError("taxon", "42")), status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "validation", err: errors.NewValidationError("rank", 99, "unknown rank"), status: http.StatusBadRequest, code: "BAD_REQUEST", hasField: "rank"},
		{name: "parse", err: errors.NewParseError("json", "", "unexpected EOF", nil), status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "conflict", err: errors.NewConflictError("listing", "1", "cannot move from proposed to listed"), status: http.StatusConflict, code: "CONFLICT"},
		{name: "already exists", err: errors.WrapResource("create", "encounter", "x", errors.ErrAlreadyExists), status: http.StatusConflict, code: "CONFLICT"},
		{name: "other", err: stderrors.New("disk on fire"), status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFromType(w, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status, StatusFor(tt.err))

			var body struct {
				Error struct {
					Code    string         `json:"code"`
					Message string         `json:"message"`
					Details map[string]any `json:"details"`
				} `json:"error"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Error.Code)
			if tt.hasField != "" {
				assert.Contains(t, body.Error.Details, tt.hasField)
			}
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	InternalError(w, stderrors.New("password=hunter2"))
	assert.NotContains(t, w.Body.String(), "hunter2")
}

func TestErrorDetailsAreObjects(t *testing.T) {
	writers := map[string]func(w http.ResponseWriter){
		"internal":    func(w http.ResponseWriter) { InternalError(w, stderrors.New("boom")) },
		"unavailable": func(w http.ResponseWriter) { ServiceUnavailable(w, "Database not available") },
		"method":      func(w http.ResponseWriter) { MethodNotAllowed(w, http.MethodDelete) },
		"rate":        func(w http.ResponseWriter) { RateLimited(w, "slow down") },
		"not found":   func(w http.ResponseWriter) { NotFound(w, "Endpoint not found", map[string]string{"path": "/x"}) },
	}
	for name, write := range writers {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			write(w)

			var body struct {
				Error struct {
					Details map[string]any `json:"details"`
				} `json:"error"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEmpty(t, body.Error.Details)
		})
	}
}
