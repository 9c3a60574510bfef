package conservation_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/internal/utils/ptr"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// fixtureCatalog builds a state list (WAWCA, panel approval) and a
// Commonwealth list (EPBC, immediate approval).
func fixtureCatalog() *conservation.Catalog {
	lists := []*conservation.List{
		{ID: 1, Code: "WAWCA", ApprovalLevel: conservation.ApprovalPanel, ScopeWA: true},
		{ID: 2, Code: "EPBC", ApprovalLevel: conservation.ApprovalImmediate, ScopeCMW: true},
	}
	categories := []*conservation.Category{
		{ID: 10, ListID: 1, Code: "CR", Rank: 1, Threatened: true},
		{ID: 11, ListID: 1, Code: "EN", Rank: 2, Threatened: true},
		{ID: 12, ListID: 1, Code: "VU", Rank: 3, Threatened: true},
		{ID: 13, ListID: 1, Code: "MI", Rank: 0},
		{ID: 20, ListID: 2, Code: "EN", Rank: 2, Threatened: true},
	}
	criteria := []*conservation.Criterion{
		{ID: 30, ListID: 1, Code: "B1ab(iii)", Rank: 2},
		{ID: 31, ListID: 1, Code: "A2c", Rank: 1},
	}
	return conservation.NewCatalog(lists, categories, criteria)
}

func TestIDListUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  conservation.IDList
	}{
		{"array", `{"category":[1,2]}`, conservation.IDList{1, 2}},
		{"single number", `{"category":3}`, conservation.IDList{3}},
		{"single string", `{"category":"4"}`, conservation.IDList{4}},
		{"array of strings", `{"category":["5","6"]}`, conservation.IDList{5, 6}},
		{"null", `{"category":null}`, conservation.IDList{}},
		{"absent", `{}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l conservation.Listing
			require.NoError(t, json.Unmarshal([]byte(tt.input), &l))
			assert.Equal(t, tt.want, l.CategoryIDs)
		})
	}

	var l conservation.Listing
	assert.Error(t, json.Unmarshal([]byte(`{"category":"abc"}`), &l))
}

func TestRebuildCaches(t *testing.T) {
	catalog := fixtureCatalog()
	l := &conservation.Listing{
		Kind:         conservation.SubjectTaxon,
		TaxonID:      ptr.To(int64(100)),
		CategoryIDs:  conservation.IDList{13, 10},
		CriterionIDs: conservation.IDList{30, 31},
	}
	require.NoError(t, catalog.RebuildCaches(l))

	assert.Equal(t, "MI, CR", l.CategoryCache)
	assert.Equal(t, "A2c, B1ab(iii)", l.CriteriaCache)
	assert.Equal(t, "WAWCA MI, CR A2c, B1ab(iii)", l.LabelCache)

	empty := &conservation.Listing{Kind: conservation.SubjectTaxon, TaxonID: ptr.To(int64(100))}
	require.NoError(t, catalog.RebuildCaches(empty))
	assert.Empty(t, empty.CategoryCache)
	assert.Empty(t, empty.LabelCache)

	unknown := &conservation.Listing{CategoryIDs: conservation.IDList{999}}
	assert.True(t, errors.IsValidationError(catalog.RebuildCaches(unknown)))
}

func TestPrimaryCategoryPrefersThreatened(t *testing.T) {
	catalog := fixtureCatalog()

	l := &conservation.Listing{CategoryIDs: conservation.IDList{13, 12, 11}}
	primary := catalog.PrimaryCategory(l)
	require.NotNil(t, primary)
	assert.Equal(t, "EN", primary.Code)

	onlyMI := &conservation.Listing{CategoryIDs: conservation.IDList{13}}
	assert.Equal(t, "MI", catalog.PrimaryCategory(onlyMI).Code)

	assert.Nil(t, catalog.PrimaryCategory(&conservation.Listing{}))
}

func TestResolve(t *testing.T) {
	catalog := fixtureCatalog()

	state := &conservation.Listing{
		ID: 2, Kind: conservation.SubjectTaxon, Scope: conservation.ScopeWesternAustralia,
		Status: conservation.StatusListed, CategoryIDs: conservation.IDList{13, 11},
		CriterionIDs: conservation.IDList{30},
	}
	require.NoError(t, catalog.RebuildCaches(state))
	expired := &conservation.Listing{
		ID: 1, Kind: conservation.SubjectTaxon, Scope: conservation.ScopeWesternAustralia,
		Status: conservation.StatusListed, CategoryIDs: conservation.IDList{10},
		EffectiveTo: ptr.To(now.Add(-time.Hour)),
	}
	proposed := &conservation.Listing{
		ID: 3, Kind: conservation.SubjectTaxon, Scope: conservation.ScopeCommonwealth,
		Status: conservation.StatusProposed, CategoryIDs: conservation.IDList{20},
	}
	national := &conservation.Listing{
		ID: 4, Kind: conservation.SubjectTaxon, Scope: conservation.ScopeCommonwealth,
		Status: conservation.StatusListed, CategoryIDs: conservation.IDList{20},
	}

	status := catalog.Resolve([]*conservation.Listing{national, proposed, expired, state}, now)

	want := conservation.SubjectStatus{
		ActiveConservationListingState:    state,
		ActiveConservationListingNational: national,
		IsCurrentlyListed:                 true,
		ConservationCodeState:             ptr.To("MI, EN"),
		ConservationListState:             ptr.To("WAWCA"),
		ConservationCategoryState:         ptr.To("EN"),
		ConservationCategoriesState:       ptr.To("MI, EN"),
		ConservationCriteriaState:         ptr.To("B1ab(iii)"),
		ConservationCategoryNational:      ptr.To("EN"),
	}
	if diff := cmp.Diff(want, status); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}

	none := catalog.Resolve([]*conservation.Listing{proposed, expired}, now)
	assert.False(t, none.IsCurrentlyListed)
	assert.Nil(t, none.ActiveConservationListingState)
	assert.Nil(t, none.ConservationCodeState)
	assert.Nil(t, none.ConservationCategoryNational)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from, to conservation.ListingStatus
		approval conservation.ApprovalLevel
		want     bool
	}{
		{"immediate list skips review", conservation.StatusProposed, conservation.StatusListed, conservation.ApprovalImmediate, true},
		{"panel list needs panel review", conservation.StatusProposed, conservation.StatusListed, conservation.ApprovalPanel, false},
		{"panel review may list", conservation.StatusInReviewPanel, conservation.StatusListed, conservation.ApprovalPanel, true},
		{"experts review too early for panel list", conservation.StatusInReviewExperts, conservation.StatusListed, conservation.ApprovalPanel, false},
		{"minister list from minister", conservation.StatusInReviewMinister, conservation.StatusListed, conservation.ApprovalMinister, true},
		{"review advances", conservation.StatusInReviewExperts, conservation.StatusInReviewDirector, conservation.ApprovalMinister, true},
		{"review cannot go back", conservation.StatusInReviewDirector, conservation.StatusInReviewExperts, conservation.ApprovalMinister, false},
		{"reject from review", conservation.StatusInReviewPanel, conservation.StatusRejected, conservation.ApprovalPanel, true},
		{"delist listed", conservation.StatusListed, conservation.StatusDelisted, conservation.ApprovalPanel, true},
		{"listed cannot return to proposed", conservation.StatusListed, conservation.StatusProposed, conservation.ApprovalImmediate, false},
		{"close delisted", conservation.StatusDelisted, conservation.StatusClosed, conservation.ApprovalImmediate, true},
		{"closed is terminal", conservation.StatusClosed, conservation.StatusProposed, conservation.ApprovalImmediate, false},
		{"same status", conservation.StatusListed, conservation.StatusListed, conservation.ApprovalImmediate, false},
		{"unknown target", conservation.StatusProposed, conservation.ListingStatus(5), conservation.ApprovalImmediate, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to, tt.approval))
		})
	}
}

func TestTransition(t *testing.T) {
	l := &conservation.Listing{ID: 7, Status: conservation.StatusProposed}

	require.NoError(t, conservation.Transition(l, conservation.StatusListed, conservation.ApprovalImmediate, now))
	assert.Equal(t, conservation.StatusListed, l.Status)
	require.NotNil(t, l.EffectiveFrom)
	assert.Equal(t, now, *l.EffectiveFrom)
	assert.True(t, l.IsActive(now))

	later := now.Add(24 * time.Hour)
	require.NoError(t, conservation.Transition(l, conservation.StatusDelisted, conservation.ApprovalImmediate, later))
	require.NotNil(t, l.EffectiveTo)
	assert.Equal(t, later, *l.EffectiveTo)
	assert.False(t, l.IsActive(later))

	err := conservation.Transition(l, conservation.StatusListed, conservation.ApprovalImmediate, later)
	assert.True(t, errors.IsConflict(err))
	assert.Contains(t, err.Error(), "De-listed")
}

func TestApprovalLevel(t *testing.T) {
	catalog := fixtureCatalog()
	assert.Equal(t, conservation.ApprovalPanel, catalog.ApprovalLevel(&conservation.Listing{CategoryIDs: conservation.IDList{20, 10}}))
	assert.Equal(t, conservation.ApprovalImmediate, catalog.ApprovalLevel(&conservation.Listing{CategoryIDs: conservation.IDList{20}}))
	assert.Equal(t, conservation.ApprovalPanel, catalog.ApprovalLevel(&conservation.Listing{CriterionIDs: conservation.IDList{30}}))

	// Without categories or criteria, the lists covering the scope decide.
	assert.Equal(t, conservation.ApprovalPanel, catalog.ApprovalLevel(&conservation.Listing{Kind: conservation.SubjectTaxon}))
	assert.Equal(t, conservation.ApprovalImmediate, catalog.ApprovalLevel(&conservation.Listing{Scope: conservation.ScopeCommonwealth}))
	assert.Equal(t, conservation.ApprovalImmediate, catalog.ApprovalLevel(&conservation.Listing{Scope: conservation.ScopeActionPlan}))
}

func TestListCovers(t *testing.T) {
	species := &conservation.List{ScopeWA: true, ScopeSpecies: true}
	assert.True(t, species.Covers(conservation.SubjectTaxon, conservation.ScopeWesternAustralia))
	assert.False(t, species.Covers(conservation.SubjectCommunity, conservation.ScopeWesternAustralia))
	assert.False(t, species.Covers(conservation.SubjectTaxon, conservation.ScopeCommonwealth))

	both := &conservation.List{ScopeCMW: true}
	assert.True(t, both.Covers(conservation.SubjectCommunity, conservation.ScopeCommonwealth))
	assert.False(t, both.Covers(conservation.SubjectCommunity, conservation.ScopeActionPlan))
}

func TestListingValidate(t *testing.T) {
	taxon := &conservation.Listing{Kind: conservation.SubjectTaxon, TaxonID: ptr.To(int64(1))}
	assert.NoError(t, taxon.Validate())

	assert.True(t, errors.IsValidationError((&conservation.Listing{Kind: conservation.SubjectTaxon}).Validate()))
	assert.True(t, errors.IsValidationError((&conservation.Listing{Kind: conservation.SubjectCommunity}).Validate()))

	badScope := &conservation.Listing{Kind: conservation.SubjectCommunity, Community: "TEC", Scope: conservation.Scope(9)}
	assert.True(t, errors.IsValidationError(badScope.Validate()))
}

func TestActivityString(t *testing.T) {
	a := &conservation.Activity{ActionCategory: "Burn", ImplementationNotes: "burnt the lot"}
	assert.Equal(t, "[Burn][in progress] burnt the lot", a.String())

	a.CompletionDate = ptr.To(time.Date(2019, 3, 7, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "[Burn][07/03/2019] burnt the lot", a.String())
}

func TestActionDeriveStatus(t *testing.T) {
	a := &conservation.Action{CategoryID: 1}
	assert.Equal(t, conservation.ActionNotStarted, a.DeriveStatus(0))
	assert.Equal(t, conservation.ActionInProgress, a.DeriveStatus(2))
	a.CompletionDate = ptr.To(now)
	assert.Equal(t, conservation.ActionCompleted, a.DeriveStatus(2))
}

func TestThreatValidate(t *testing.T) {
	th := &conservation.Threat{CategoryID: 1, CurrentImpact: conservation.ImpactHigh}
	assert.NoError(t, th.Validate())

	th.AreaAffectedPercent = ptr.To(120.0)
	assert.True(t, errors.IsValidationError(th.Validate()))

	assert.True(t, errors.IsValidationError((&conservation.Threat{}).Validate()))
	assert.True(t, errors.IsValidationError((&conservation.Threat{CategoryID: 1, PotentialOnset: 15}).Validate()))
}

func TestDocumentValidate(t *testing.T) {
	d := &conservation.Document{Title: "test doc", Type: conservation.DocumentRecoveryPlan}
	assert.NoError(t, d.Validate())
	assert.Equal(t, "Recovery Plan test doc", d.String())

	d.EffectiveFrom = ptr.To(now)
	d.EffectiveTo = ptr.To(now.Add(-time.Hour))
	assert.True(t, errors.IsValidationError(d.Validate()))

	d.ReviewDue = ptr.To(now.Add(-time.Hour))
	assert.True(t, d.ReviewOverdue(now))
}

func TestParseListingStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    conservation.ListingStatus
		wantErr bool
	}{
		{in: "70", want: conservation.StatusListed},
		{in: "listed", want: conservation.StatusListed},
		{in: " De-listed ", want: conservation.StatusDelisted},
		{in: "in review with panel", want: conservation.StatusInReviewPanel},
		{in: "75", wantErr: true},
		{in: "approved", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := conservation.ParseListingStatus(tt.in)
			if tt.wantErr {
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
