// Package export writes threats, actions and documents as CSV.
//
// Related records are written by name: taxa by canonical name, the
// document by title, categories by label and users by name.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
)

// Kind names an exportable resource.
type Kind string

// Exportable resources.
const (
	Threats   Kind = "threats"
	Actions   Kind = "actions"
	Documents Kind = "documents"
)

// Kinds lists the exportable resources.
func Kinds() []Kind {
	return []Kind{Threats, Actions, Documents}
}

// ParseKind validates an export name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Kinds(), k) {
		return "", errors.NewValidationError("export", s, "must be one of threats, actions or documents")
	}
	return k, nil
}

// Column headers per resource.
var (
	threatColumns = []string{
		"taxon_list", "com_list", "document__title", "occurrence_area_code", "category__label",
		"encountered_by__name", "encountered_on", "area_affected_percent", "current_impact",
		"potential_impact", "potential_onset",
	}
	actionColumns = []string{
		"taxon_list", "com_list", "document__title", "occurrence_area_code", "category__label",
		"instructions", "implementation_notes", "completion_date", "expenditure", "status",
	}
	documentColumns = []string{
		"document_type", "title", "taxa", "communities", "team", "effective_from", "effective_to",
		"effective_from_commonwealth", "effective_to_commonwealth", "last_reviewed_on", "review_due",
		"comments", "status",
	}
)

// Filename returns the download name of an export.
func (k Kind) Filename() string {
	return string(k) + ".csv"
}

// Write exports every record of kind to w.
func Write(ctx context.Context, st *store.Store, kind Kind, w io.Writer) (int, error) {
	e := &exporter{st: st, names: map[string]string{}}
	cw := csv.NewWriter(w)
	var (
		n   int
		err error
	)
	switch kind {
	case Threats:
		n, err = e.threats(ctx, cw)
	case Actions:
		n, err = e.actions(ctx, cw)
	case Documents:
		n, err = e.documents(ctx, cw)
	default:
		return 0, errors.NewValidationError("export", string(kind), "unknown export")
	}
	if err != nil {
		return n, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, errors.WrapIO("write", kind.Filename(), err)
	}
	return n, nil
}

// all pages through a list method.
func all[T any](fetch func(store.ListOptions) ([]T, int, error)) ([]T, error) {
	var out []T
	opts := store.ListOptions{Limit: store.MaxLimit}
	for {
		items, total, err := fetch(opts)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		opts.Offset += len(items)
		if len(items) == 0 || opts.Offset >= total {
			return out, nil
		}
	}
}

// exporter resolves related names once per export.
type exporter struct {
	st    *store.Store
	names map[string]string
}

// name memoizes the display name of a related record. Missing records
// export as an empty cell.
func (e *exporter) name(key string, load func() (string, error)) (string, error) {
	if v, ok := e.names[key]; ok {
		return v, nil
	}
	v, err := load()
	if errors.IsNotFound(err) {
		v, err = "", nil
	}
	if err != nil {
		return "", err
	}
	e.names[key] = v
	return v, nil
}

func (e *exporter) taxonList(ctx context.Context, ids []int64) (string, error) {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := e.name("taxon:"+strconv.FormatInt(id, 10), func() (string, error) {
			t, err := e.st.Taxa.Get(ctx, id)
			if err != nil {
				return "", err
			}
			return t.CanonicalName, nil
		})
		if err != nil {
			return "", err
		}
		if n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", "), nil
}

func (e *exporter) documentTitle(ctx context.Context, id *int64) (string, error) {
	if id == nil {
		return "", nil
	}
	return e.name("document:"+strconv.FormatInt(*id, 10), func() (string, error) {
		d, err := e.st.Documents.Get(ctx, *id)
		if err != nil {
			return "", err
		}
		return d.Title, nil
	})
}

func (e *exporter) categoryLabel(ctx context.Context, kind store.CategoryKind, id int64) (string, error) {
	return e.name(string(kind)+":"+strconv.FormatInt(id, 10), func() (string, error) {
		c, err := e.st.Management.Category(ctx, kind, id)
		if err != nil {
			return "", err
		}
		return c.Label, nil
	})
}

func (e *exporter) userName(ctx context.Context, id *int64) (string, error) {
	if id == nil {
		return "", nil
	}
	return e.name("user:"+strconv.FormatInt(*id, 10), func() (string, error) {
		u, err := e.st.Users.Get(ctx, *id)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	})
}

func (e *exporter) threats(ctx context.Context, cw *csv.Writer) (int, error) {
	threats, err := all(func(opts store.ListOptions) ([]*conservation.Threat, int, error) {
		return e.st.Management.Threats(ctx, store.ManagementFilter{ListOptions: opts})
	})
	if err != nil {
		return 0, err
	}
	if err := cw.Write(threatColumns); err != nil {
		return 0, err
	}
	for _, t := range threats {
		taxa, err := e.taxonList(ctx, t.TaxonIDs)
		if err != nil {
			return 0, err
		}
		doc, err := e.documentTitle(ctx, t.DocumentID)
		if err != nil {
			return 0, err
		}
		category, err := e.categoryLabel(ctx, store.ThreatCategories, t.CategoryID)
		if err != nil {
			return 0, err
		}
		by, err := e.userName(ctx, t.EncounteredBy)
		if err != nil {
			return 0, err
		}
		if err := cw.Write([]string{
			taxa, strings.Join(t.Communities, ", "), doc, t.OccurrenceAreaCode, category,
			by, date(t.EncounteredOn), float(t.AreaAffectedPercent), t.CurrentImpact.String(),
			t.PotentialImpact.String(), t.PotentialOnset.String(),
		}); err != nil {
			return 0, err
		}
	}
	return len(threats), nil
}

func (e *exporter) actions(ctx context.Context, cw *csv.Writer) (int, error) {
	actions, err := all(func(opts store.ListOptions) ([]*conservation.Action, int, error) {
		return e.st.Management.Actions(ctx, store.ManagementFilter{ListOptions: opts}, "")
	})
	if err != nil {
		return 0, err
	}
	if err := cw.Write(actionColumns); err != nil {
		return 0, err
	}
	for _, a := range actions {
		taxa, err := e.taxonList(ctx, a.TaxonIDs)
		if err != nil {
			return 0, err
		}
		doc, err := e.documentTitle(ctx, a.DocumentID)
		if err != nil {
			return 0, err
		}
		category, err := e.categoryLabel(ctx, store.ActionCategories, a.CategoryID)
		if err != nil {
			return 0, err
		}
		if err := cw.Write([]string{
			taxa, strings.Join(a.Communities, ", "), doc, a.OccurrenceAreaCode, category,
			a.Instructions, a.ImplementationNotes, date(a.CompletionDate), Cents(a.ExpenditureCents),
			string(a.Status),
		}); err != nil {
			return 0, err
		}
	}
	return len(actions), nil
}

func (e *exporter) documents(ctx context.Context, cw *csv.Writer) (int, error) {
	docs, err := all(func(opts store.ListOptions) ([]*conservation.Document, int, error) {
		return e.st.Documents.List(ctx, store.DocumentFilter{ListOptions: opts})
	})
	if err != nil {
		return 0, err
	}
	if err := cw.Write(documentColumns); err != nil {
		return 0, err
	}
	for _, d := range docs {
		taxa, err := e.taxonList(ctx, d.TaxonIDs)
		if err != nil {
			return 0, err
		}
		team := make([]string, 0, len(d.Team))
		for _, id := range d.Team {
			name, err := e.userName(ctx, &id)
			if err != nil {
				return 0, err
			}
			if name != "" {
				team = append(team, name)
			}
		}
		if err := cw.Write([]string{
			d.Type.String(), d.Title, taxa, strings.Join(d.Communities, ", "), strings.Join(team, ", "),
			date(d.EffectiveFrom), date(d.EffectiveTo), date(d.EffectiveFromCommonwealth),
			date(d.EffectiveToCommonwealth), date(d.LastReviewedOn), date(d.ReviewDue), d.Comments,
			d.Status.String(),
		}); err != nil {
			return 0, err
		}
	}
	return len(docs), nil
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func float(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// Cents formats an amount in cents as dollars.
func Cents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
