package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/internal/utils/ptr"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

func TestActionStatusDerivation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	burn := &conservation.ManagementCategory{Code: "burn", Label: "Prescribed burn"}
	require.NoError(t, s.Management.CreateCategory(ctx, ActionCategories, burn))
	require.NoError(t, s.Taxa.Create(ctx, taxonomy.NewTaxon(7, taxonomy.RankSpecies, "sp. Mt Jackson")))

	a := &conservation.Action{CategoryID: burn.ID, TaxonIDs: conservation.IDList{7}, Instructions: "burn every five years"}
	require.NoError(t, s.Management.CreateAction(ctx, a))
	assert.Equal(t, conservation.ActionNotStarted, a.Status)

	act := &conservation.Activity{ActionID: a.ID, ImplementationNotes: "burnt the lot"}
	require.NoError(t, s.Management.CreateActivity(ctx, act))
	assert.Equal(t, "Prescribed burn", act.ActionCategory)
	assert.Equal(t, "[Prescribed burn][in progress] burnt the lot", act.String())

	got, err := s.Management.Action(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, conservation.ActionInProgress, got.Status)
	assert.Equal(t, []int64{7}, []int64(got.TaxonIDs))

	done := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	got.CompletionDate = &done
	require.NoError(t, s.Management.UpdateAction(ctx, got))
	assert.Equal(t, conservation.ActionCompleted, got.Status)

	second := &conservation.Action{CategoryID: burn.ID}
	require.NoError(t, s.Management.CreateAction(ctx, second))

	tests := []struct {
		status conservation.ActionStatus
		want   []int64
	}{
		{conservation.ActionCompleted, []int64{a.ID}},
		{conservation.ActionNotStarted, []int64{second.ID}},
		{conservation.ActionInProgress, nil},
		{"", []int64{a.ID, second.ID}},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			actions, total, err := s.Management.Actions(ctx, ManagementFilter{}, tt.status)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)
			var ids []int64
			for _, a := range actions {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	byTaxon, _, err := s.Management.Actions(ctx, ManagementFilter{TaxonID: ptr.To(int64(7))}, "")
	require.NoError(t, err)
	require.Len(t, byTaxon, 1)
	assert.Equal(t, a.ID, byTaxon[0].ID)

	_, _, err = s.Management.Actions(ctx, ManagementFilter{}, "sideways")
	assert.True(t, errors.IsValidationError(err))
}

func TestThreats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	weeds := &conservation.ManagementCategory{Code: "weeds", Label: "Weed invasion"}
	require.NoError(t, s.Management.CreateCategory(ctx, ThreatCategories, weeds))
	require.NoError(t, s.Communities.Create(ctx, &taxonomy.Community{Code: "TEC-02", Name: "Claypan"}))

	th := &conservation.Threat{
		CategoryID:    weeds.ID,
		Communities:   []string{"TEC-02"},
		CurrentImpact: conservation.ImpactHigh,
		Cause:         "buffel grass",
	}
	require.NoError(t, s.Management.CreateThreat(ctx, th))

	list, total, err := s.Management.Threats(ctx, ManagementFilter{Community: "TEC-02"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"TEC-02"}, list[0].Communities)
	assert.Equal(t, "buffel grass", list[0].Cause)

	unknown := &conservation.Threat{CategoryID: weeds.ID, Communities: []string{"NOPE"}}
	assert.True(t, errors.IsValidationError(s.Management.CreateThreat(ctx, unknown)))

	require.NoError(t, s.Management.DeleteThreat(ctx, th.ID))
	_, err = s.Management.Threat(ctx, th.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestDocumentsAndAttachments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Taxa.Create(ctx, taxonomy.NewTaxon(8, taxonomy.RankSpecies, "alba")))
	u := createUser(t, s, "author")

	doc := &conservation.Document{
		Title: "Recovery of alba", Type: conservation.DocumentRecoveryPlan,
		TaxonIDs: conservation.IDList{8}, Team: conservation.IDList{u.ID},
	}
	require.NoError(t, s.Documents.Create(ctx, doc))
	assert.NotEmpty(t, doc.SourceID)

	docs, total, err := s.Documents.List(ctx, DocumentFilter{TaxonID: ptr.To(int64(8))})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, docs, 1)
	assert.Equal(t, conservation.IDList{u.ID}, docs[0].Team)

	content := []byte("%PDF-1.4 plan")
	att := &conservation.FileAttachment{
		OwnerType: conservation.OwnerDocument, OwnerID: doc.ID,
		Filename: "plan.pdf", ContentType: "application/pdf", Content: content, Current: true,
	}
	require.NoError(t, s.Attachments.Create(ctx, att))
	assert.Equal(t, int64(len(content)), att.Size)

	meta, err := s.Attachments.Get(ctx, att.ID)
	require.NoError(t, err)
	assert.Nil(t, meta.Content)
	assert.Equal(t, "plan.pdf", meta.String())

	full, err := s.Attachments.Content(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, content, full.Content)

	orphan := &conservation.FileAttachment{OwnerType: conservation.OwnerDocument, OwnerID: 999, Filename: "x.txt"}
	assert.True(t, errors.IsValidationError(s.Attachments.Create(ctx, orphan)))
	badOwner := &conservation.FileAttachment{OwnerType: "taxon", OwnerID: 8, Filename: "x.txt"}
	assert.True(t, errors.IsValidationError(s.Attachments.Create(ctx, badOwner)))

	require.NoError(t, s.Documents.Delete(ctx, doc.ID))
	left, err := s.Attachments.ListForOwner(ctx, conservation.OwnerDocument, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}
