package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		config     CORSConfig
		method     string
		origin     string
		wantOrigin string
		wantStatus int
		wantNext   bool
	}{
		{name: "allow all", config: CORSConfig{AllowAll: true}, method: http.MethodGet, origin: "https://a.example", wantOrigin: "*", wantStatus: http.StatusOK, wantNext: true},
		{name: "empty list allows all", config: CORSConfig{}, method: http.MethodGet, wantOrigin: "*", wantStatus: http.StatusOK, wantNext: true},
		{name: "listed origin echoed", config: CORSConfig{AllowedOrigins: []string{"https://a.example"}}, method: http.MethodGet, origin: "https://a.example", wantOrigin: "https://a.example", wantStatus: http.StatusOK, wantNext: true},
		{name: "unlisted origin", config: CORSConfig{AllowedOrigins: []string{"https://a.example"}}, method: http.MethodGet, origin: "https://b.example", wantStatus: http.StatusOK, wantNext: true},
		{name: "wildcard entry", config: CORSConfig{AllowedOrigins: []string{"*"}}, method: http.MethodGet, origin: "https://b.example", wantOrigin: "https://b.example", wantStatus: http.StatusOK, wantNext: true},
		{name: "preflight short circuits", config: DefaultCORSConfig(), method: http.MethodOptions, origin: "https://a.example", wantOrigin: "https://a.example", wantStatus: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := CORS(tt.config)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(tt.method, "/api/v1/taxon", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantNext, called)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestDefaultCORSConfigAllowsPatch(t *testing.T) {
	c := DefaultCORSConfig()
	assert.Contains(t, c.AllowedMethods, "PATCH")
	assert.Contains(t, c.AllowedHeaders, RequestIDHeader)
}
