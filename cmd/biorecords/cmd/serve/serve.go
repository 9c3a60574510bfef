// Package serve provides the HTTP API server command.
package serve

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/biorecords/biorecords/cmd/application"
	"github.com/biorecords/biorecords/internal/cmd/alerts"
	"github.com/biorecords/biorecords/internal/cmd/globals"
	"github.com/biorecords/biorecords/internal/server"
	"github.com/biorecords/biorecords/pkg/errors"
)

// DefaultShutdownTimeout bounds connection draining on shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// NewCommand creates the serve command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		GroupID: "core",
		Short:   "Start the REST API server",
		Long: `Start the REST API server over the record store.

Features:
  - CRUD endpoints for taxa, listings, documents, management and field records
  - Observation ingestion through the obstype schema registry
  - WebSocket (/updates/ws) and Server-Sent Events (/updates/stream) change feeds
  - Response caching cleared on every write
  - Rate limiting, API key authentication and CORS
  - Graceful shutdown with connection draining

HTTP_HOST and HTTP_PORT override the listen address.`,
		Example: `  # Start on default port 8080
  biorecords serve

  # Start on a custom port with authentication
  BIORECORDS_API_KEY=secret biorecords serve --port 3000 --auth

  # Allow a web client
  biorecords serve --cors-origins "https://records.example.org"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app)
		},
	}

	defaults := server.DefaultConfig()
	cmd.Flags().Int("port", defaults.Port, "Server port")
	cmd.Flags().String("host", defaults.Host, "Bind address")
	cmd.Flags().String("prefix", defaults.PathPrefix, "API path prefix")

	cmd.Flags().Bool("cors", false, "Enable CORS for all origins")
	cmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (comma-separated)")

	cmd.Flags().Bool("auth", false, "Require an API key (read from BIORECORDS_API_KEY)")
	cmd.Flags().String("auth-header", defaults.AuthHeader, "Authentication header name")

	cmd.Flags().Int("rate-limit", defaults.RateLimit, "Requests per minute per IP (0 to disable)")
	cmd.Flags().Duration("cache-ttl", defaults.CacheTTL, "Response cache TTL")

	cmd.Flags().Duration("read-timeout", defaults.ReadTimeout, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", defaults.WriteTimeout, "HTTP write timeout")
	cmd.Flags().Duration("idle-timeout", defaults.IdleTimeout, "HTTP idle timeout")
	cmd.Flags().Duration("shutdown-timeout", DefaultShutdownTimeout, "Graceful shutdown timeout")
	cmd.Flags().Bool("metrics", defaults.MetricsEnabled, "Enable the metrics endpoint")

	return cmd
}

func run(cmd *cobra.Command, app application.Application) error {
	cfg, err := parseConfig(cmd, app.ServerConfig())
	if err != nil {
		return err
	}
	logger := app.Logger()

	logger.Info().
		Str("addr", cfg.Addr()).
		Str("prefix", cfg.PathPrefix).
		Bool("cors", cfg.CORSEnabled).
		Bool("auth", cfg.AuthEnabled).
		Int("rate_limit", cfg.RateLimit).
		Dur("cache_ttl", cfg.CacheTTL).
		Str("database", app.Database()).
		Msg("Starting API server")

	st, err := app.Store(cmd.Context())
	if err != nil {
		return err
	}
	srv, err := server.New(st, cfg, logger)
	if err != nil {
		return errors.WrapResource("create", "server", "", err)
	}
	srv.Start()

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
	flags := globals.Parse(cmd)
	out := alerts.NewWriter(cmd.OutOrStdout(), flags.NoColor, flags.Quiet)
	return serve(cmd.Context(), httpServer, srv, shutdownTimeout, out, logger)
}

// parseConfig layers changed flags over base, then the HTTP_HOST and
// HTTP_PORT environment overrides.
func parseConfig(cmd *cobra.Command, base server.Config) (server.Config, error) {
	cfg := base
	f := cmd.Flags()

	if f.Changed("port") {
		cfg.Port, _ = f.GetInt("port")
	}
	if f.Changed("host") {
		cfg.Host, _ = f.GetString("host")
	}
	if f.Changed("prefix") {
		cfg.PathPrefix, _ = f.GetString("prefix")
	}
	if enabled, _ := f.GetBool("cors"); enabled {
		cfg.CORSEnabled = true
		cfg.CORSOrigins = nil
	}
	if f.Changed("cors-origins") {
		cfg.CORSEnabled = true
		cfg.CORSOrigins, _ = f.GetStringSlice("cors-origins")
	}
	if enabled, _ := f.GetBool("auth"); enabled {
		cfg.AuthEnabled = true
	}
	if f.Changed("auth-header") {
		cfg.AuthHeader, _ = f.GetString("auth-header")
	}
	if f.Changed("rate-limit") {
		cfg.RateLimit, _ = f.GetInt("rate-limit")
	}
	if f.Changed("cache-ttl") {
		cfg.CacheTTL, _ = f.GetDuration("cache-ttl")
	}
	if f.Changed("read-timeout") {
		cfg.ReadTimeout, _ = f.GetDuration("read-timeout")
	}
	if f.Changed("write-timeout") {
		cfg.WriteTimeout, _ = f.GetDuration("write-timeout")
	}
	if f.Changed("idle-timeout") {
		cfg.IdleTimeout, _ = f.GetDuration("idle-timeout")
	}
	if f.Changed("metrics") {
		cfg.MetricsEnabled, _ = f.GetBool("metrics")
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// serve runs httpServer until ctx is cancelled, then drains connections
// and stops the background services within timeout.
func serve(ctx context.Context, httpServer *http.Server, srv *server.Server, timeout time.Duration,
	out *alerts.Writer, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		_ = out.Write(alerts.NewInfo("API server listening on " + httpServer.Addr).
			WithDetails("Press Ctrl+C to stop"))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- errors.WrapResource("listen", "server", httpServer.Addr, err)
		}
	}()

	select {
	case err := <-serverErr:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
		_ = out.Write(alerts.NewInfo("Shutting down API server..."))

		// The parent context is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.WrapResource("shutdown", "server", httpServer.Addr, err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Background services shutdown had issues")
		}

		logger.Info().Msg("Server stopped gracefully")
		_ = out.Write(alerts.NewSuccess("Server stopped"))
		return nil
	}
}
