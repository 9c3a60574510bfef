package listings

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/internal/cmd/application"
	"github.com/biorecords/biorecords/internal/fixtures"
	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/logging"
)

const seed = `
lists:
  - id: 1
    code: WAWCA
    label: Wildlife Conservation Act
    scope_wa: true
    scope_species: true
    scope_communities: true
categories:
  - id: 1
    conservation_list: 1
    code: EN
    label: Endangered
    threatened: true
taxa:
  - name_id: 8
    rank: 190
    name: alba
communities:
  - code: SCP01
    name: Swan Coastal Plain shrublands
listings:
  - taxon: 8
    scope: 0
    status: 0
    category: [1]
`

func newApp(t *testing.T, format string) (*application.Mock, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.MemoryDSN("listings_"+t.Name()), store.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f, err := fixtures.Parse("seed.yaml", []byte(seed))
	require.NoError(t, err)
	_, err = fixtures.Insert(ctx, st, f)
	require.NoError(t, err)

	return &application.Mock{
		StoreFunc:        func(context.Context) (*store.Store, error) { return st, nil },
		OutputFormatFunc: func() string { return format },
	}, st
}

func run(t *testing.T, app *application.Mock, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func listingID(t *testing.T, st *store.Store) string {
	t.Helper()
	listings, _, err := st.Listings.List(context.Background(), store.ListingFilter{Kind: conservation.SubjectTaxon})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	return strconv.FormatInt(listings[0].ID, 10)
}

func TestTransitionCommand(t *testing.T) {
	app, st := newApp(t, "json")
	id := listingID(t, st)

	out, err := run(t, app, "transition", "taxon", id, "in review with experts")
	require.NoError(t, err)

	var l conservation.Listing
	require.NoError(t, json.Unmarshal([]byte(out), &l))
	assert.Equal(t, conservation.StatusInReviewExperts, l.Status)

	_, err = run(t, app, "transition", "taxon", id, "proposed")
	assert.True(t, errors.IsConflict(err))

	_, err = run(t, app, "transition", "species", id, "listed")
	assert.True(t, errors.IsValidationError(err))
}

func TestStatusCommand(t *testing.T) {
	app, _ := newApp(t, "json")

	out, err := run(t, app, "status", "taxon", "8")
	require.NoError(t, err)

	var s Status
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.False(t, s.Status.IsCurrentlyListed)
	assert.Len(t, s.Listings, 1)

	_, err = run(t, app, "status", "community", "NOPE")
	assert.True(t, errors.IsNotFound(err))
}

func TestListCommand(t *testing.T) {
	app, _ := newApp(t, "table")

	out, err := run(t, app, "list", "--kind", "taxon")
	require.NoError(t, err)
	assert.Contains(t, out, "EN")

	_, err = run(t, app, "list", "--status", "approved")
	assert.True(t, errors.IsValidationError(err))
}
