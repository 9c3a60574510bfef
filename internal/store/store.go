// Package store persists biorecords in an embedded SQLite database.
//
// The database is opened with a single connection so that all writes are
// serialized. Repositories therefore always drain result sets before
// issuing follow-up queries, and code running inside a transaction only
// ever talks to the transaction.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/logging"
	"github.com/biorecords/biorecords/pkg/schema"
)

// Action is the kind of change a mutation made.
type Action string

// Change actions.
const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Change describes a committed mutation.
type Change struct {
	Resource string `json:"resource"`
	Action   Action `json:"action"`
	ID       string `json:"id"`
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the database handle and the repositories built on it.
type Store struct {
	db       *sql.DB
	logger   *zerolog.Logger
	now      func() time.Time
	registry *schema.Registry

	mu    sync.RWMutex
	hooks []func(Change)

	Users           *Users
	Lookups         *Lookups
	Taxa            *Taxa
	Vernaculars     *Vernaculars
	Crossreferences *Crossreferences
	Communities     *Communities
	Lists           *Lists
	Listings        *Listings
	Documents       *Documents
	Attachments     *Attachments
	Management      *Management
	AreaEncounters  *AreaEncounters
	Areas           *Areas
	Surveys         *Surveys
	Encounters      *Encounters
	Observations    *Observations
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source used for timestamps and listing
// activity checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// pragmas are applied to every connection through the DSN.
var pragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// DSN appends the connection pragmas to a database path or URI.
func DSN(path string) string {
	var b strings.Builder
	if !strings.HasPrefix(path, "file:") {
		b.WriteString("file:")
	}
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range pragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// MemoryDSN returns a DSN for a named in-memory database.
func MemoryDSN(name string) string {
	return DSN(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}

// Open opens the database at dsn, as built by DSN or MemoryDSN, and applies
// pending migrations.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewConfigError("store", "failed to open database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	s.init()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewConfigError("store", "failed to connect to database", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() {
	s.Users = &Users{s: s}
	s.Lookups = &Lookups{s: s}
	s.Taxa = &Taxa{s: s}
	s.Vernaculars = &Vernaculars{s: s}
	s.Crossreferences = &Crossreferences{s: s}
	s.Communities = &Communities{s: s}
	s.Lists = &Lists{s: s}
	s.Listings = &Listings{s: s}
	s.Documents = &Documents{s: s}
	s.Attachments = &Attachments{s: s}
	s.Management = &Management{s: s}
	s.AreaEncounters = &AreaEncounters{s: s}
	s.Areas = &Areas{s: s}
	s.Surveys = &Surveys{s: s}
	s.Encounters = &Encounters{s: s}
	s.Observations = &Observations{s: s}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// OnChange registers fn to be called after every committed mutation.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Store) notify(changes ...Change) {
	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()
	for _, c := range changes {
		s.logger.Debug().
			Str("resource", c.Resource).
			Str("action", string(c.Action)).
			Str("id", c.ID).
			Msg("Record changed")
		for _, fn := range hooks {
			fn(c)
		}
	}
}

// tx is a transaction that collects change notifications until commit.
type tx struct {
	*sql.Tx
	changes []Change
}

func (t *tx) changed(resource string, action Action, id any) {
	t.changes = append(t.changes, Change{Resource: resource, Action: action, ID: fmt.Sprint(id)})
}

// inTx runs fn in a transaction, committing when it returns nil and
// publishing the collected changes after commit.
func (s *Store) inTx(ctx context.Context, fn func(*tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapResource("begin", "transaction", "", err)
	}
	t := &tx{Tx: sqlTx}
	if err := fn(t); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Warn().Err(rbErr).Msg("Rollback failed")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return errors.WrapResource("commit", "transaction", "", err)
	}
	s.notify(t.changes...)
	return nil
}

// mapErr translates driver errors into the error types callers check for.
func mapErr(op, resource string, id any, err error) error {
	if err == nil {
		return nil
	}
	ident := ""
	if id != nil {
		ident = fmt.Sprint(id)
	}
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return errors.NewNotFoundError(resource, ident)
	case errors.IsNotFound(err), errors.IsValidationError(err), errors.IsConflict(err), errors.IsAlreadyExists(err):
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return errors.WrapResource(op, resource, ident, errors.ErrAlreadyExists)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return errors.NewValidationError(resource, ident, "references a record that does not exist or is still referenced")
	}
	return errors.WrapResource(op, resource, ident, err)
}
