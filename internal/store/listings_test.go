package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/internal/utils/ptr"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

type listFixture struct {
	list           *conservation.List
	cr, en, p1     *conservation.Category
	criterionB1abc *conservation.Criterion
}

// seedList creates a panel-approved WA list with CR, EN and P1 categories
// and a single species to list.
func seedList(t *testing.T, s *Store) listFixture {
	t.Helper()
	ctx := context.Background()
	f := listFixture{
		list: &conservation.List{Code: "WAWCA", Label: "WA Wildlife Conservation Act", ApprovalLevel: conservation.ApprovalPanel, ScopeWA: true, ScopeSpecies: true},
	}
	require.NoError(t, s.Lists.Create(ctx, f.list))
	f.cr = &conservation.Category{ListID: f.list.ID, Code: "CR", Rank: 1, Threatened: true}
	f.en = &conservation.Category{ListID: f.list.ID, Code: "EN", Rank: 2, Threatened: true}
	f.p1 = &conservation.Category{ListID: f.list.ID, Code: "P1", Rank: 10}
	for _, c := range []*conservation.Category{f.cr, f.en, f.p1} {
		require.NoError(t, s.Lists.CreateCategory(ctx, c))
	}
	f.criterionB1abc = &conservation.Criterion{ListID: f.list.ID, Code: "B1ab(iii)"}
	require.NoError(t, s.Lists.CreateCriterion(ctx, f.criterionB1abc))

	require.NoError(t, s.Taxa.Create(ctx, taxonomy.NewTaxon(100, taxonomy.RankSpecies, "wonganensis")))
	return f
}

func TestListingCreateBuildsCaches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedList(t, s)

	l := &conservation.Listing{
		Kind:         conservation.SubjectTaxon,
		TaxonID:      ptr.To(int64(100)),
		Status:       conservation.StatusProposed,
		CategoryIDs:  conservation.IDList{f.p1.ID, f.en.ID},
		CriterionIDs: conservation.IDList{f.criterionB1abc.ID},
	}
	require.NoError(t, s.Listings.Create(ctx, l))
	assert.NotEmpty(t, l.SourceID)

	got, err := s.Listings.Get(ctx, conservation.SubjectTaxon, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "EN, P1", got.CategoryCache)
	assert.Equal(t, "B1ab(iii)", got.CriteriaCache)
	assert.Equal(t, "WAWCA EN, P1 B1ab(iii)", got.LabelCache)
	assert.Equal(t, conservation.IDList{f.en.ID, f.p1.ID}, got.CategoryIDs)
	assert.Nil(t, got.EffectiveFrom)

	// A listing of the other kind with the same id does not exist.
	_, err = s.Listings.Get(ctx, conservation.SubjectCommunity, l.ID)
	assert.True(t, errors.IsNotFound(err))

	bad := &conservation.Listing{Kind: conservation.SubjectTaxon, TaxonID: ptr.To(int64(404))}
	assert.True(t, errors.IsValidationError(s.Listings.Create(ctx, bad)))

	unknownCategory := &conservation.Listing{Kind: conservation.SubjectTaxon, TaxonID: ptr.To(int64(100)), CategoryIDs: conservation.IDList{999}}
	assert.True(t, errors.IsValidationError(s.Listings.Create(ctx, unknownCategory)))
}

func TestListingTransitionWorkflow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedList(t, s)

	old := &conservation.Listing{
		Kind: conservation.SubjectTaxon, TaxonID: ptr.To(int64(100)),
		Status: conservation.StatusListed, CategoryIDs: conservation.IDList{f.cr.ID},
	}
	require.NoError(t, s.Listings.Import(ctx, old))
	require.NotNil(t, old.EffectiveFrom)
	assert.Equal(t, testNow, *old.EffectiveFrom)

	next := &conservation.Listing{
		Kind: conservation.SubjectTaxon, TaxonID: ptr.To(int64(100)),
		Status: conservation.StatusProposed, CategoryIDs: conservation.IDList{f.en.ID},
	}
	require.NoError(t, s.Listings.Create(ctx, next))

	// The list needs panel review before listing.
	_, err := s.Listings.Transition(ctx, conservation.SubjectTaxon, next.ID, conservation.StatusListed)
	assert.True(t, errors.IsConflict(err), "got %v", err)

	_, err = s.Listings.Transition(ctx, conservation.SubjectTaxon, next.ID, conservation.StatusInReviewPanel)
	require.NoError(t, err)
	listed, err := s.Listings.Transition(ctx, conservation.SubjectTaxon, next.ID, conservation.StatusListed)
	require.NoError(t, err)
	assert.Equal(t, conservation.StatusListed, listed.Status)

	closed, err := s.Listings.Get(ctx, conservation.SubjectTaxon, old.ID)
	require.NoError(t, err)
	assert.Equal(t, conservation.StatusClosed, closed.Status)
	require.NotNil(t, closed.EffectiveTo)
	assert.Equal(t, testNow, *closed.EffectiveTo)

	status, listings, err := s.Listings.TaxonStatus(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, listings, 2)
	assert.True(t, status.IsCurrentlyListed)
	require.NotNil(t, status.ActiveConservationListingState)
	assert.Equal(t, next.ID, status.ActiveConservationListingState.ID)
	require.NotNil(t, status.ConservationCategoryState)
	assert.Equal(t, "EN", *status.ConservationCategoryState)
	require.NotNil(t, status.ConservationListState)
	assert.Equal(t, "WAWCA", *status.ConservationListState)
	assert.Nil(t, status.ActiveConservationListingNational)

	filtered, total, err := s.Listings.List(ctx, ListingFilter{Kind: conservation.SubjectTaxon, Status: ptr.To(conservation.StatusClosed)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, filtered, 1)
	assert.Equal(t, old.ID, filtered[0].ID)
}

func TestListingCreateFollowsWorkflow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedList(t, s)

	current := &conservation.Listing{
		Kind: conservation.SubjectTaxon, TaxonID: ptr.To(int64(100)),
		Status: conservation.StatusListed, CategoryIDs: conservation.IDList{f.cr.ID},
	}
	require.NoError(t, s.Listings.Import(ctx, current))

	// The panel list does not allow a listing to start as listed.
	skip := &conservation.Listing{
		Kind: conservation.SubjectTaxon, TaxonID: ptr.To(int64(100)),
		Status: conservation.StatusListed, CategoryIDs: conservation.IDList{f.en.ID},
	}
	err := s.Listings.Create(ctx, skip)
	assert.True(t, errors.IsConflict(err), "got %v", err)

	got, err := s.Listings.Get(ctx, conservation.SubjectTaxon, current.ID)
	require.NoError(t, err)
	assert.Equal(t, conservation.StatusListed, got.Status)
	_, total, err := s.Listings.List(ctx, ListingFilter{Kind: conservation.SubjectTaxon})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	review := &conservation.Listing{
		Kind: conservation.SubjectTaxon, TaxonID: ptr.To(int64(100)),
		Status: conservation.StatusInReviewPanel, CategoryIDs: conservation.IDList{f.en.ID},
	}
	require.NoError(t, s.Listings.Create(ctx, review))

	// Without categories the list covering the scope decides.
	bare := &conservation.Listing{
		Kind: conservation.SubjectTaxon, TaxonID: ptr.To(int64(100)),
		Status: conservation.StatusListed,
	}
	assert.True(t, errors.IsConflict(s.Listings.Create(ctx, bare)))
}

func TestListingUpdateRejectsStatusChange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedList(t, s)

	l := &conservation.Listing{Kind: conservation.SubjectTaxon, TaxonID: ptr.To(int64(100)), CategoryIDs: conservation.IDList{f.p1.ID}}
	require.NoError(t, s.Listings.Create(ctx, l))

	l.Status = conservation.StatusListed
	assert.True(t, errors.IsValidationError(s.Listings.Update(ctx, l)))

	l.Status = conservation.StatusProposed
	l.CategoryIDs = conservation.IDList{f.cr.ID}
	l.Comments = "re-assessed"
	require.NoError(t, s.Listings.Update(ctx, l))

	got, err := s.Listings.Get(ctx, conservation.SubjectTaxon, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "CR", got.CategoryCache)
	assert.Equal(t, "re-assessed", got.Comments)

	require.NoError(t, s.Listings.Delete(ctx, conservation.SubjectTaxon, l.ID))
	assert.True(t, errors.IsNotFound(s.Listings.Delete(ctx, conservation.SubjectTaxon, l.ID)))
}

func TestCommunityStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := seedList(t, s)

	require.NoError(t, s.Communities.Create(ctx, &taxonomy.Community{Code: "TEC-01", Name: "Shrublands on ironstone"}))
	l := &conservation.Listing{
		Kind: conservation.SubjectCommunity, Community: "TEC-01",
		Status: conservation.StatusListed, CategoryIDs: conservation.IDList{f.en.ID},
	}
	require.NoError(t, s.Listings.Import(ctx, l))

	status, _, err := s.Listings.CommunityStatus(ctx, "TEC-01")
	require.NoError(t, err)
	assert.True(t, status.IsCurrentlyListed)
	require.NotNil(t, status.ConservationCodeState)
	assert.Equal(t, "EN", *status.ConservationCodeState)

	got, err := s.Listings.Get(ctx, conservation.SubjectCommunity, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "TEC-01", got.Community)

	_, _, err = s.Listings.CommunityStatus(ctx, "NOPE")
	assert.True(t, errors.IsNotFound(err))

	missing := &conservation.Listing{Kind: conservation.SubjectCommunity, Community: "NOPE"}
	err = s.Listings.Create(ctx, missing)
	assert.True(t, errors.IsValidationError(err) || errors.IsNotFound(err), "got %v", err)
}
