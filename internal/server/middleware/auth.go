package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// APIKeyEnv names the environment variable holding the API key.
const APIKeyEnv = "BIORECORDS_API_KEY"

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled     bool
	APIKey      string
	HeaderName  string
	PublicPaths []string
}

// DefaultAuthConfig returns the default authentication configuration for
// an API mounted at prefix. Health and readiness checks stay public.
func DefaultAuthConfig(prefix string) AuthConfig {
	return AuthConfig{
		Enabled:     false,
		APIKey:      os.Getenv(APIKeyEnv),
		HeaderName:  "X-API-Key",
		PublicPaths: []string{prefix + "/health", prefix + "/ready"},
	}
}

// Auth middleware validates API keys for protected endpoints. The key is
// read from the configured header or an Authorization Bearer token.
func Auth(config AuthConfig, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled || r.Method == http.MethodOptions || isPublicPath(r.URL.Path, config.PublicPaths) {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := extractAPIKey(r, config)
			if apiKey == "" || config.APIKey == "" ||
				subtle.ConstantTimeCompare([]byte(apiKey), []byte(config.APIKey)) != 1 {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Bool("key_provided", apiKey != "").
					Msg("Authentication failed")

				writeError(w, http.StatusUnauthorized,
					`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing API key","details":{"reason":"Provide a valid API key in the `+config.HeaderName+` header or as a Bearer token"}}}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isPublicPath checks if a path is in the public paths list.
func isPublicPath(path string, publicPaths []string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// extractAPIKey extracts the API key from the request.
func extractAPIKey(r *http.Request, config AuthConfig) string {
	if apiKey := r.Header.Get(config.HeaderName); apiKey != "" {
		return apiKey
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
