// Package report renders conservation profiles of taxa and communities as
// Markdown.
package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	md "github.com/nao1215/markdown"

	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
)

// subject is what a profile is about, with the filters selecting its
// records.
type subject struct {
	title    string
	facts    [][]string
	status   conservation.SubjectStatus
	listings []*conservation.Listing
	taxonID  *int64
	code     string
}

// Taxon writes the conservation profile of the taxon with the given name
// id to w.
func Taxon(ctx context.Context, st *store.Store, nameID int64, w io.Writer) error {
	t, err := st.Taxa.Get(ctx, nameID)
	if err != nil {
		return err
	}
	vernaculars, err := st.Vernaculars.ForTaxon(ctx, nameID)
	if err != nil {
		return err
	}
	status, listings, err := st.Listings.TaxonStatus(ctx, nameID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(vernaculars))
	for _, v := range vernaculars {
		names = append(names, v.String())
	}
	s := &subject{
		title: t.TaxonomicName,
		facts: [][]string{
			{"Name ID", strconv.FormatInt(t.NameID, 10)},
			{"Rank", t.Rank.String()},
			{"Canonical name", t.CanonicalName},
			{"Author", orDash(t.Author)},
			{"Vernacular names", orDash(strings.Join(names, "; "))},
			{"Publication status", t.PublicationStatus.String()},
			{"Current", yesNo(t.Current)},
		},
		status:   status,
		listings: listings,
		taxonID:  &t.NameID,
	}
	if s.title == "" {
		s.title = t.Name
	}
	return render(ctx, st, s, w)
}

// Community writes the conservation profile of the community with the
// given code to w.
func Community(ctx context.Context, st *store.Store, code string, w io.Writer) error {
	c, err := st.Communities.Get(ctx, code)
	if err != nil {
		return err
	}
	status, listings, err := st.Listings.CommunityStatus(ctx, code)
	if err != nil {
		return err
	}
	s := &subject{
		title: c.Code,
		facts: [][]string{
			{"Code", c.Code},
			{"Name", orDash(c.Name)},
			{"Description", orDash(c.Description)},
		},
		status:   status,
		listings: listings,
		code:     c.Code,
	}
	if c.Name != "" {
		s.title = c.Code + " " + c.Name
	}
	return render(ctx, st, s, w)
}

func render(ctx context.Context, st *store.Store, s *subject, w io.Writer) error {
	docs, _, err := st.Documents.List(ctx, store.DocumentFilter{
		ListOptions: store.ListOptions{Limit: store.MaxLimit},
		TaxonID:     s.taxonID,
		Community:   s.code,
	})
	if err != nil {
		return err
	}
	filter := store.ManagementFilter{
		ListOptions: store.ListOptions{Limit: store.MaxLimit},
		TaxonID:     s.taxonID,
		Community:   s.code,
	}
	threats, _, err := st.Management.Threats(ctx, filter)
	if err != nil {
		return err
	}
	actions, _, err := st.Management.Actions(ctx, filter, "")
	if err != nil {
		return err
	}
	labels := categoryLabels{ctx: ctx, st: st, seen: map[string]string{}}

	doc := md.NewMarkdown(w)
	doc.H1(s.title).LF()
	doc.Table(md.TableSet{Header: []string{"Property", "Value"}, Rows: s.facts}).LF()

	doc.H2("Conservation status").LF()
	doc.Table(md.TableSet{Header: []string{"Property", "Value"}, Rows: statusRows(s.status)}).LF()

	now := st.Now()
	active := conservation.Active(s.listings, now)
	doc.H3("Active listings").LF()
	if len(active) == 0 {
		doc.PlainText("No active listings.").LF().LF()
	} else {
		rows := make([][]string, 0, len(active))
		for _, l := range active {
			rows = append(rows, []string{
				l.Scope.String(), orDash(l.LabelCache), orDash(l.CategoryCache),
				orDash(l.CriteriaCache), date(l.EffectiveFrom), date(l.ReviewDue),
			})
		}
		doc.Table(md.TableSet{
			Header: []string{"Scope", "List", "Categories", "Criteria", "Effective from", "Review due"},
			Rows:   rows,
		}).LF()
	}

	doc.H2("Documents").LF()
	if len(docs) == 0 {
		doc.PlainText("No documents.").LF().LF()
	} else {
		items := make([]string, 0, len(docs))
		for _, d := range docs {
			items = append(items, fmt.Sprintf("%s (%s, %s)", md.Bold(d.Title), d.Type, d.Status))
		}
		doc.BulletList(items...).LF()
	}

	doc.H2("Threats").LF()
	if len(threats) == 0 {
		doc.PlainText("No threats recorded.").LF().LF()
	} else {
		rows := make([][]string, 0, len(threats))
		for _, th := range threats {
			rows = append(rows, []string{
				labels.get(store.ThreatCategories, th.CategoryID), orDash(th.Cause),
				th.CurrentImpact.String(), th.PotentialImpact.String(), th.PotentialOnset.String(),
			})
		}
		doc.Table(md.TableSet{
			Header: []string{"Category", "Cause", "Current impact", "Potential impact", "Potential onset"},
			Rows:   rows,
		}).LF()
	}

	doc.H2("Management actions").LF()
	if len(actions) == 0 {
		doc.PlainText("No management actions recorded.").LF().LF()
	} else {
		rows := make([][]string, 0, len(actions))
		for _, a := range actions {
			rows = append(rows, []string{
				labels.get(store.ActionCategories, a.CategoryID), orDash(a.Instructions),
				string(a.Status), date(a.CompletionDate),
			})
		}
		doc.Table(md.TableSet{
			Header: []string{"Category", "Instructions", "Status", "Completed"},
			Rows:   rows,
		}).LF()
	}

	if err := labels.err; err != nil {
		return err
	}
	return doc.Build()
}

func statusRows(s conservation.SubjectStatus) [][]string {
	return [][]string{
		{"Currently listed", yesNo(s.IsCurrentlyListed)},
		{"State conservation code", deref(s.ConservationCodeState)},
		{"State list", deref(s.ConservationListState)},
		{"State category", deref(s.ConservationCategoryState)},
		{"State criteria", deref(s.ConservationCriteriaState)},
		{"National category", deref(s.ConservationCategoryNational)},
	}
}

// categoryLabels memoizes management category labels. The first lookup
// error is kept and reported once rendering ends.
type categoryLabels struct {
	ctx  context.Context
	st   *store.Store
	seen map[string]string
	err  error
}

func (c *categoryLabels) get(kind store.CategoryKind, id int64) string {
	key := string(kind) + ":" + strconv.FormatInt(id, 10)
	if label, ok := c.seen[key]; ok {
		return label
	}
	label := strconv.FormatInt(id, 10)
	cat, err := c.st.Management.Category(c.ctx, kind, id)
	switch {
	case err == nil:
		label = cat.String()
	case !errors.IsNotFound(err) && c.err == nil:
		c.err = err
	}
	c.seen[key] = label
	return label
}

func date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return orDash(*s)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
