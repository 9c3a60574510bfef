// Package app provides the application context and dependency management
// for the biorecords CLI: configuration, logging and the lazily opened
// record store.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/biorecords/biorecords/internal/server"
	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/logging"
)

// MemoryDatabase selects a private in-memory database.
const MemoryDatabase = ":memory:"

// App represents the biorecords application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// Store (lazy-initialized, singleton)
	mu    sync.RWMutex
	store *store.Store
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Output
}

// Database returns the configured database path.
func (a *App) Database() string {
	return a.config.Database
}

// ServerConfig returns the configured server settings.
func (a *App) ServerConfig() server.Config {
	return a.config.Server()
}

// Store returns the record store, opening and migrating the database on
// first use. It is safe for concurrent use and opens at most one store.
func (a *App) Store(ctx context.Context) (*store.Store, error) {
	a.mu.RLock()
	if a.store != nil {
		st := a.store
		a.mu.RUnlock()
		return st, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.store != nil {
		return a.store, nil
	}

	dsn := store.DSN(a.config.Database)
	if a.config.Database == MemoryDatabase {
		dsn = store.MemoryDSN("biorecords")
	}
	ctx = logging.WithLogger(ctx, a.logger)
	st, err := store.Open(ctx, dsn, store.WithLogger(a.logger))
	if err != nil {
		return nil, errors.WrapResource("open", "database", a.config.Database, err)
	}
	a.logger.Debug().Str("database", a.config.Database).Msg("Store opened")

	a.store = st
	return st, nil
}

// Shutdown closes the store if it was opened.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to close store during shutdown")
		return errors.WrapResource("close", "database", a.config.Database, err)
	}
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithStore sets an already open store (useful for testing).
func WithStore(st *store.Store) Option {
	return func(a *App) error {
		a.store = st
		return nil
	}
}
