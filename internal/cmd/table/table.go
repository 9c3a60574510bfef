// Package table converts records into rows for CLI table output.
package table

import (
	"strconv"
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// TaxaToTableData converts taxa to table format.
func TaxaToTableData(taxa []*taxonomy.Taxon) Data {
	rows := make([][]string, 0, len(taxa))
	for _, t := range taxa {
		rows = append(rows, []string{
			strconv.FormatInt(t.NameID, 10),
			t.Rank.String(),
			t.TaxonomicName,
			dash(t.VernacularName),
			FormatBool(t.Current),
		})
	}
	return Data{
		Headers:         []string{"Name ID", "Rank", "Name", "Vernacular", "Current"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignRight, AlignLeft, AlignLeft, AlignLeft, AlignCenter},
	}
}

// TaxonToTableData renders one taxon as properties.
func TaxonToTableData(t *taxonomy.Taxon) Data {
	parent := "-"
	if t.ParentID != nil {
		parent = strconv.FormatInt(*t.ParentID, 10)
	}
	return Data{
		Headers: []string{"Property", "Value"},
		Rows: [][]string{
			{"Name ID", strconv.FormatInt(t.NameID, 10)},
			{"Rank", t.Rank.String()},
			{"Name", t.Name},
			{"Author", dash(t.Author)},
			{"Canonical name", t.CanonicalName},
			{"Taxonomic name", t.TaxonomicName},
			{"Vernacular names", dash(t.VernacularNames)},
			{"Parent", parent},
			{"Publication status", t.PublicationStatus.String()},
			{"Current", FormatBool(t.Current)},
			{"Paraphyletic groups", dash(t.ParaphyleticGroups)},
		},
	}
}

// ListingsToTableData converts conservation listings to table format.
func ListingsToTableData(listings []*conservation.Listing) Data {
	rows := make([][]string, 0, len(listings))
	for _, l := range listings {
		subject := l.Community
		if l.TaxonID != nil {
			subject = strconv.FormatInt(*l.TaxonID, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(l.ID, 10),
			subject,
			l.Scope.String(),
			l.Status.String(),
			dash(l.LabelCache),
			FormatDate(l.EffectiveFrom),
			FormatDate(l.EffectiveTo),
		})
	}
	return Data{
		Headers:         []string{"ID", "Subject", "Scope", "Status", "Categories", "Effective from", "Effective to"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignRight},
	}
}

// StatusToTableData renders the conservation status summary of a subject.
func StatusToTableData(s conservation.SubjectStatus) Data {
	return Data{
		Headers: []string{"Property", "Value"},
		Rows: [][]string{
			{"Currently listed", FormatBool(s.IsCurrentlyListed)},
			{"State code", deref(s.ConservationCodeState)},
			{"State list", deref(s.ConservationListState)},
			{"State category", deref(s.ConservationCategoryState)},
			{"State categories", deref(s.ConservationCategoriesState)},
			{"State criteria", deref(s.ConservationCriteriaState)},
			{"National category", deref(s.ConservationCategoryNational)},
		},
	}
}

// Tree renders taxa as an indented tree. depth maps name ids to their
// depth below the root of the listing.
func Tree(taxa []*taxonomy.Taxon, depth map[int64]int) string {
	var b strings.Builder
	for _, t := range taxa {
		b.WriteString(strings.Repeat("  ", depth[t.NameID]))
		b.WriteString(t.Rank.String())
		b.WriteString(" ")
		b.WriteString(t.TaxonomicName)
		b.WriteString(" [")
		b.WriteString(strconv.FormatInt(t.NameID, 10))
		b.WriteString("]\n")
	}
	return b.String()
}

// FormatDate renders an optional date, or "-".
func FormatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

// FormatBool renders yes or no.
func FormatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return dash(*s)
}
