package report

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/internal/fixtures"
	"github.com/biorecords/biorecords/internal/store"
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
threat_categories:
  - id: 1
    code: weeds
    label: Weed invasion
action_categories:
  - id: 1
    code: fencing
    label: Fencing
taxa:
  - name_id: 3
    rank: 130
    name: Banksia
  - name_id: 8
    parent: 3
    rank: 190
    name: alba
vernaculars:
  - ogc_fid: 1
    taxon: 8
    name: White banksia
    preferred: true
communities:
  - code: SCP01
    name: Swan Coastal Plain shrublands
listings:
  - taxon: 8
    scope: 0
    status: 70
    category: [1]
threats:
  - category: 1
    taxa: [8]
    cause: Veldt grass along the firebreak
    current_impact: 40
actions:
  - category: 1
    taxa: [8]
    instructions: Fence the northern population
documents:
  - document_type: 0
    title: Banksia alba recovery plan
    taxa: [8]
`

func newStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.MemoryDSN("report_"+t.Name()), store.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f, err := fixtures.Parse("seed.yaml", []byte(seed))
	require.NoError(t, err)
	_, err = fixtures.Insert(ctx, st, f)
	require.NoError(t, err)
	return st
}

func TestTaxon(t *testing.T) {
	st := newStore(t)

	var buf bytes.Buffer
	require.NoError(t, Taxon(context.Background(), st, 8, &buf))
	out := buf.String()

	for _, want := range []string{
		"# ",
		"White banksia",
		"## Conservation status",
		"### Active listings",
		"EN",
		"Banksia alba recovery plan",
		"Weed invasion",
		"Veldt grass along the firebreak",
		"High",
		"Fencing",
		"Fence the northern population",
		"not started",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "No active listings.")
}

func TestCommunityWithoutRecords(t *testing.T) {
	st := newStore(t)

	var buf bytes.Buffer
	require.NoError(t, Community(context.Background(), st, "SCP01", &buf))
	out := buf.String()

	assert.Contains(t, out, "# SCP01 Swan Coastal Plain shrublands")
	assert.Contains(t, out, "No active listings.")
	assert.Contains(t, out, "No documents.")
	assert.Contains(t, out, "No threats recorded.")
	assert.Contains(t, out, "No management actions recorded.")
}

func TestUnknownSubject(t *testing.T) {
	st := newStore(t)

	err := Taxon(context.Background(), st, 999, &bytes.Buffer{})
	assert.True(t, errors.IsNotFound(err))

	err = Community(context.Background(), st, "NOPE", &bytes.Buffer{})
	assert.True(t, errors.IsNotFound(err))
}
