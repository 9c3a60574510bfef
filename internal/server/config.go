package server

import (
	"os"
	"strconv"
	"time"

	"github.com/biorecords/biorecords/internal/server/middleware"
	"github.com/biorecords/biorecords/pkg/errors"
)

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// API settings
	PathPrefix string

	// CORS settings
	CORSEnabled bool
	CORSOrigins []string

	// Authentication settings
	AuthEnabled bool
	AuthHeader  string
	APIKey      string

	// Performance settings
	RateLimit int // Requests per minute per IP (0 to disable)
	CacheTTL  time.Duration

	// HTTP timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Features
	MetricsEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           8080,
		PathPrefix:     "/api/v1",
		CORSEnabled:    false,
		CORSOrigins:    []string{},
		AuthEnabled:    false,
		AuthHeader:     "X-API-Key",
		APIKey:         os.Getenv(middleware.APIKeyEnv),
		RateLimit:      100,
		CacheTTL:       5 * time.Minute,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
	}
}

// ApplyEnv overrides the listen address from HTTP_HOST and HTTP_PORT.
func (c *Config) ApplyEnv() error {
	if host := os.Getenv("HTTP_HOST"); host != "" {
		c.Host = host
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := ParsePort(v)
		if err != nil {
			return err
		}
		c.Port = port
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Validate checks the settings that would otherwise fail at request time.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.NewValidationError("port", c.Port, "must be between 0 and 65535")
	}
	if c.AuthEnabled && c.APIKey == "" {
		return errors.NewValidationError("api_key", nil, "authentication needs "+middleware.APIKeyEnv+" to be set")
	}
	if c.RateLimit < 0 {
		return errors.NewValidationError("rate_limit", c.RateLimit, "must not be negative")
	}
	return nil
}

// ParsePort parses a TCP port number.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewValidationError("port", s, "invalid port number")
	}
	if port < 1 || port > 65535 {
		return 0, errors.NewValidationError("port", port, "port out of range")
	}
	return port, nil
}
