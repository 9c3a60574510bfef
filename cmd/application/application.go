// Package application provides the application interface for biorecords
// commands.
//
// Commands accept the interface instead of the concrete app type so they
// can be exercised against a mock:
//
//	mock := &application.Mock{
//	    StoreFunc: func(ctx context.Context) (*store.Store, error) {
//	        return testStore, nil
//	    },
//	}
//	cmd := taxa.NewCommand(mock)
package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/biorecords/biorecords/internal/server"
	"github.com/biorecords/biorecords/internal/store"
)

// Application provides what commands need from the running binary.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Store returns the record store, opening and migrating the configured
	// database on first use. Later calls return the same instance.
	Store(ctx context.Context) (*store.Store, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml).
	OutputFormat() string

	// Database returns the configured database path.
	Database() string

	// ServerConfig returns the server settings from the config file
	// layered over the server defaults. Serve flags override them.
	ServerConfig() server.Config

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
