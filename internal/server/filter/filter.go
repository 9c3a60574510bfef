// Package filter parses list query parameters into store filters.
//
// Every list endpoint accepts limit, offset, q and ordering; resource
// filters are parsed by the per-resource functions. Malformed values are
// reported as validation errors naming the parameter.
package filter

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/observations"
	"github.com/biorecords/biorecords/pkg/occurrence"
	"github.com/biorecords/biorecords/pkg/schema"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

// Params reads typed query parameters and keeps the first error.
type Params struct {
	q   url.Values
	err error
}

// New returns the query parameters of r.
func New(r *http.Request) *Params {
	return &Params{q: r.URL.Query()}
}

// Err returns the first parse error.
func (p *Params) Err() error {
	return p.err
}

func (p *Params) fail(name, value, msg string) {
	if p.err == nil {
		p.err = errors.NewValidationError(name, value, msg)
	}
}

// String returns the trimmed value of name.
func (p *Params) String(name string) string {
	return strings.TrimSpace(p.q.Get(name))
}

// Int returns name as an int, or def when absent.
func (p *Params) Int(name string, def int) int {
	v := p.String(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(name, v, "must be an integer")
		return def
	}
	return n
}

// Int64 returns name as an int64 pointer, nil when absent.
func (p *Params) Int64(name string) *int64 {
	v := p.String(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(name, v, "must be an integer")
		return nil
	}
	return &n
}

// Bool returns name as a bool pointer, nil when absent.
func (p *Params) Bool(name string) *bool {
	v := p.String(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(name, v, "must be true or false")
		return nil
	}
	return &b
}

// Time returns name as a time pointer, nil when absent. Dates and RFC 3339
// timestamps are accepted.
func (p *Params) Time(name string) *time.Time {
	v := p.String(name)
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	p.fail(name, v, "must be a date or RFC 3339 timestamp")
	return nil
}

// List returns the paging, search and ordering options.
func (p *Params) List() store.ListOptions {
	opts := store.ListOptions{
		Limit:    p.Int("limit", store.DefaultLimit),
		Offset:   p.Int("offset", 0),
		Query:    p.String("q"),
		Ordering: p.String("ordering"),
	}
	if opts.Limit < 0 {
		p.fail("limit", strconv.Itoa(opts.Limit), "must not be negative")
	}
	if opts.Offset < 0 {
		p.fail("offset", strconv.Itoa(opts.Offset), "must not be negative")
	}
	opts.Limit = min(opts.Limit, store.MaxLimit)
	return opts
}

// Taxa parses the taxon list filters.
func Taxa(r *http.Request) (store.TaxonFilter, error) {
	p := New(r)
	f := store.TaxonFilter{
		ListOptions:        p.List(),
		Current:            p.Bool("current"),
		ParaphyleticGroups: p.String("paraphyletic_groups"),
		Parent:             p.Int64("parent"),
	}
	if v := p.String("rank"); v != "" {
		rank, err := taxonomy.ParseRank(v)
		if err != nil {
			return f, err
		}
		f.Rank = &rank
	}
	return f, p.Err()
}

// Listings parses the listing list filters for one subject kind.
func Listings(r *http.Request, kind conservation.SubjectKind) (store.ListingFilter, error) {
	p := New(r)
	f := store.ListingFilter{
		ListOptions: p.List(),
		Kind:        kind,
		TaxonID:     p.Int64("taxon"),
		Community:   p.String("community"),
	}
	if n := p.Int64("scope"); n != nil {
		s := conservation.Scope(*n)
		if !s.Valid() {
			p.fail("scope", strconv.FormatInt(*n, 10), "unknown scope")
		}
		f.Scope = &s
	}
	if n := p.Int64("status"); n != nil {
		s := conservation.ListingStatus(*n)
		if !s.Valid() {
			p.fail("status", strconv.FormatInt(*n, 10), "unknown status")
		}
		f.Status = &s
	}
	return f, p.Err()
}

// Documents parses the document list filters.
func Documents(r *http.Request) (store.DocumentFilter, error) {
	p := New(r)
	f := store.DocumentFilter{
		ListOptions: p.List(),
		TaxonID:     p.Int64("taxon"),
		Community:   p.String("community"),
	}
	if n := p.Int64("document_type"); n != nil {
		t := conservation.DocumentType(*n)
		if !t.Valid() {
			p.fail("document_type", strconv.FormatInt(*n, 10), "unknown document type")
		}
		f.Type = &t
	}
	if n := p.Int64("status"); n != nil {
		s := conservation.DocumentStatus(*n)
		if !s.Valid() {
			p.fail("status", strconv.FormatInt(*n, 10), "unknown document status")
		}
		f.Status = &s
	}
	return f, p.Err()
}

// Management parses the threat, action and activity filters.
func Management(r *http.Request) (store.ManagementFilter, conservation.ActionStatus, error) {
	p := New(r)
	f := store.ManagementFilter{
		ListOptions: p.List(),
		TaxonID:     p.Int64("taxon"),
		Community:   p.String("community"),
		DocumentID:  p.Int64("document"),
		CategoryID:  p.Int64("category"),
	}
	return f, conservation.ActionStatus(p.String("status")), p.Err()
}

// AreaEncounters parses the occurrence area and point filters.
func AreaEncounters(r *http.Request, kind occurrence.Kind, geomType string) (store.AreaEncounterFilter, error) {
	p := New(r)
	f := store.AreaEncounterFilter{
		ListOptions: p.List(),
		Kind:        kind,
		GeomType:    geomType,
		TaxonID:     p.Int64("taxon"),
		Community:   p.String("community"),
	}
	return f, p.Err()
}

// Encounters parses the field encounter filters.
func Encounters(r *http.Request) (store.EncounterFilter, error) {
	p := New(r)
	f := store.EncounterFilter{
		ListOptions: p.List(),
		Kind:        observations.Kind(p.String("kind")),
		Status:      observations.Status(p.String("status")),
		Source:      p.String("source"),
		AreaID:      p.Int64("area"),
		SiteID:      p.Int64("site"),
		SurveyID:    p.Int64("survey"),
		WhenAfter:   p.Time("when_after"),
		WhenBefore:  p.Time("when_before"),
	}
	if f.Kind != "" && !f.Kind.Valid() {
		p.fail("kind", string(f.Kind), "unknown encounter kind")
	}
	if f.Status != "" && !f.Status.Valid() {
		p.fail("status", string(f.Status), "unknown status")
	}
	return f, p.Err()
}

// Observations parses the observation filters of a domain.
func Observations(r *http.Request, domain schema.Domain) (store.ObservationFilter, error) {
	p := New(r)
	f := store.ObservationFilter{
		ListOptions: p.List(),
		Domain:      domain,
		ObsType:     p.String("obstype"),
		EncounterID: p.Int64("encounter"),
	}
	return f, p.Err()
}
