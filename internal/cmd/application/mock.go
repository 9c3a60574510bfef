// Package application holds test doubles for the command application
// interface.
package application

import (
	"context"

	"github.com/rs/zerolog"

	app "github.com/biorecords/biorecords/cmd/application"
	"github.com/biorecords/biorecords/internal/server"
	"github.com/biorecords/biorecords/internal/store"
)

// Mock provides a mock implementation of Application for testing.
// If a function field is nil, the method returns a default value.
type Mock struct {
	StoreFunc        func(ctx context.Context) (*store.Store, error)
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	DatabaseFunc     func() string
	ServerConfigFunc func() server.Config
	VersionFunc      func() string
	CommitFunc       func() string
	DateFunc         func() string
	BuiltByFunc      func() string
}

// Store returns a store using the mock function or nil.
func (m *Mock) Store(ctx context.Context) (*store.Store, error) {
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx)
	}
	return nil, nil
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Database returns the database path using the mock function or ":memory:".
func (m *Mock) Database() string {
	if m.DatabaseFunc != nil {
		return m.DatabaseFunc()
	}
	return ":memory:"
}

// ServerConfig returns server settings using the mock function or the
// server defaults.
func (m *Mock) ServerConfig() server.Config {
	if m.ServerConfigFunc != nil {
		return m.ServerConfigFunc()
	}
	return server.DefaultConfig()
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "test".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}

var _ app.Application = (*Mock)(nil)
