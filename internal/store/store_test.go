package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/logging"
	"github.com/biorecords/biorecords/pkg/observations"
)

var testNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(context.Background(), MemoryDSN(name),
		WithLogger(logging.NewNopLogger()),
		WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createUser(t *testing.T, s *Store, username string) *observations.User {
	t.Helper()
	u := &observations.User{Username: username, Name: strings.ToUpper(username[:1]) + username[1:]}
	require.NoError(t, s.Users.Create(context.Background(), u))
	return u
}

func TestOpenMigrates(t *testing.T) {
	s := newTestStore(t)
	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LatestVersion(), v)

	// Migrate is idempotent.
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestDSN(t *testing.T) {
	dsn := DSN("data/records.db")
	assert.True(t, strings.HasPrefix(dsn, "file:data/records.db?_pragma=busy_timeout(5000)"))
	assert.Contains(t, dsn, "&_pragma=foreign_keys(1)")

	mem := MemoryDSN("x")
	assert.Equal(t, "file:x?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", mem)
}

func TestChangeHooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		changes []Change
	)
	s.OnChange(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})

	u := createUser(t, s, "alice")
	u.Nickname = "Al"
	require.NoError(t, s.Users.Update(ctx, u))
	require.NoError(t, s.Users.Delete(ctx, u.ID))

	// Failed mutations publish nothing.
	err := s.Users.Delete(ctx, u.ID)
	assert.True(t, errors.IsNotFound(err))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 3)
	assert.Equal(t, Change{Resource: "user", Action: ActionCreated, ID: "1"}, changes[0])
	assert.Equal(t, ActionUpdated, changes[1].Action)
	assert.Equal(t, ActionDeleted, changes[2].Action)
}

func TestErrorMapping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createUser(t, s, "bob")
	err := s.Users.Create(ctx, &observations.User{Username: "bob"})
	assert.True(t, errors.IsAlreadyExists(err), "got %v", err)

	_, err = s.Users.Get(ctx, 999)
	var nf *errors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "user", nf.Resource)
	assert.Equal(t, "999", nf.ID)

	err = s.Users.Create(ctx, &observations.User{})
	assert.True(t, errors.IsValidationError(err))
}

func TestUsersResolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &observations.User{Username: "jdoe", Name: "Jane Doe", Aliases: "J. Doe, Janey"}
	require.NoError(t, s.Users.Create(ctx, u))
	createUser(t, s, "other")

	got, err := s.Users.Resolve(ctx, "janey")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	users, total, err := s.Users.List(ctx, ListOptions{Query: "doe"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "jdoe", users[0].Username)
}

func TestListOptions(t *testing.T) {
	assert.Equal(t, DefaultLimit, ListOptions{}.limit())
	assert.Equal(t, MaxLimit, ListOptions{Limit: 5000}.limit())
	assert.Equal(t, 20, ListOptions{Limit: 20}.limit())
	assert.Equal(t, 0, ListOptions{Offset: -3}.offset())

	allowed := map[string]string{"name": "t.name"}
	assert.Equal(t, " ORDER BY t.name DESC, t.id", orderBy("-name", allowed, "t.id"))
	assert.Equal(t, " ORDER BY t.id", orderBy("bogus; DROP", allowed, "t.id"))
	assert.Equal(t, `%50\%\_off%`, like("50%_off"))
}
