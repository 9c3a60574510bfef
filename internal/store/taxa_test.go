package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/internal/utils/ptr"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

// seedTree creates Plantae > Fabaceae > Acacia > saligna > stolonifera.
func seedTree(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, tx := range []*taxonomy.Taxon{
		taxonomy.NewTaxon(1, taxonomy.RankKingdom, "Plantae"),
		{NameID: 2, ParentID: ptr.To(int64(1)), Rank: taxonomy.RankFamily, Name: "Fabaceae", PublicationStatus: taxonomy.PublicationPublishedName, Current: true},
		{NameID: 3, ParentID: ptr.To(int64(2)), Rank: taxonomy.RankGenus, Name: "Acacia", PublicationStatus: taxonomy.PublicationPublishedName, Current: true},
		{NameID: 4, ParentID: ptr.To(int64(3)), Rank: taxonomy.RankSpecies, Name: "saligna", Author: "(Labill.) H.L.Wendl.", PublicationStatus: taxonomy.PublicationPublishedName, Current: true},
		{NameID: 5, ParentID: ptr.To(int64(4)), Rank: taxonomy.RankSubspecies, Name: "stolonifera", PublicationStatus: taxonomy.PublicationPublishedName, Current: true},
	} {
		require.NoError(t, s.Taxa.Create(ctx, tx))
	}
}

func TestTaxaDerivedNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	species, err := s.Taxa.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Acacia saligna", species.CanonicalName)
	assert.Equal(t, "Acacia saligna (Labill. H.L.Wendl.)", species.TaxonomicName)

	sub, err := s.Taxa.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Acacia saligna subsp. stolonifera", sub.CanonicalName)

	ancestors, err := s.Taxa.Ancestors(ctx, 5)
	require.NoError(t, err)
	var ids []int64
	for _, a := range ancestors {
		ids = append(ids, a.NameID)
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, ids)

	children, err := s.Taxa.Children(ctx, 3)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, int64(4), children[0].NameID)
}

func TestTaxaRenameRebuildsDescendants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	genus, err := s.Taxa.Get(ctx, 3)
	require.NoError(t, err)
	genus.Name = "Racosperma"
	require.NoError(t, s.Taxa.Update(ctx, genus))

	want := map[int64]string{
		4: "Racosperma saligna",
		5: "Racosperma saligna subsp. stolonifera",
	}
	got := map[int64]string{}
	for id := range want {
		tx, err := s.Taxa.Get(ctx, id)
		require.NoError(t, err)
		got[id] = tx.CanonicalName
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("canonical names mismatch (-want +got):\n%s", diff)
	}

	// Names are already current, nothing changes.
	n, err := s.Taxa.RebuildNames(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTaxaMoveRejectsCycles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	family, err := s.Taxa.Get(ctx, 2)
	require.NoError(t, err)
	family.ParentID = ptr.To(int64(5))
	err = s.Taxa.Update(ctx, family)
	assert.True(t, errors.IsValidationError(err), "got %v", err)

	orphan := taxonomy.NewTaxon(9, taxonomy.RankGenus, "Nowhere")
	orphan.ParentID = ptr.To(int64(404))
	err = s.Taxa.Create(ctx, orphan)
	assert.True(t, errors.IsValidationError(err), "got %v", err)
}

func TestTaxaList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	taxa, total, err := s.Taxa.List(ctx, TaxonFilter{Rank: ptr.To(taxonomy.RankSpecies)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, taxa, 1)
	assert.Equal(t, "saligna", taxa[0].Name)

	taxa, total, err = s.Taxa.List(ctx, TaxonFilter{ListOptions: ListOptions{Query: "acacia", Ordering: "-name_id"}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, int64(5), taxa[0].NameID)

	taxa, _, err = s.Taxa.List(ctx, TaxonFilter{ListOptions: ListOptions{Limit: 2, Offset: 1}})
	require.NoError(t, err)
	require.Len(t, taxa, 2)
	assert.Equal(t, int64(2), taxa[0].NameID)
}

func TestVernacularsRefreshTaxonNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	first := &taxonomy.Vernacular{OgcFID: 10, TaxonID: 4, Name: "Orange wattle"}
	second := &taxonomy.Vernacular{OgcFID: 11, TaxonID: 4, Name: "Golden willow", Preferred: true}
	require.NoError(t, s.Vernaculars.Create(ctx, first))
	require.NoError(t, s.Vernaculars.Create(ctx, second))

	tx, err := s.Taxa.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Golden willow", tx.VernacularName)
	assert.Equal(t, "Orange wattle, Golden willow", tx.VernacularNames)

	require.NoError(t, s.Vernaculars.Delete(ctx, second.ID))
	tx, err = s.Taxa.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Orange wattle", tx.VernacularName)

	err = s.Vernaculars.Create(ctx, &taxonomy.Vernacular{OgcFID: 12, TaxonID: 999, Name: "Ghost"})
	assert.True(t, errors.IsValidationError(err))
}

func TestTaxaDeleteWithChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	err := s.Taxa.Delete(ctx, 3)
	assert.True(t, errors.IsValidationError(err), "got %v", err)
	require.NoError(t, s.Taxa.Delete(ctx, 5))

	_, err = s.Taxa.Get(ctx, 5)
	assert.True(t, errors.IsNotFound(err))
}
