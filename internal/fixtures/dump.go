package fixtures

import (
	"context"
	"slices"
	"strings"

	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/geo"
	"github.com/biorecords/biorecords/pkg/observations"
	"github.com/biorecords/biorecords/pkg/occurrence"
	"github.com/biorecords/biorecords/pkg/schema"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

// Dump reads the named sections from the store into a fixture that Load
// accepts. No sections means all of them.
func Dump(ctx context.Context, st *store.Store, names ...string) (*Fixture, error) {
	if len(names) == 0 {
		names = sections
	}
	f := &Fixture{}
	for _, name := range names {
		name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
		if !slices.Contains(sections, name) {
			return nil, errors.NewValidationError("section", name, "must be one of: "+strings.Join(sections, ", "))
		}
		if err := dumpSection(ctx, st, f, name); err != nil {
			return nil, errors.WrapResource("dump", name, "", err)
		}
	}
	return f, nil
}

func dumpSection(ctx context.Context, st *store.Store, f *Fixture, name string) error {
	var err error
	switch name {
	case "users":
		f.Users, err = all(func(o store.ListOptions) ([]*observations.User, int, error) { return st.Users.List(ctx, o) })
	case "lookups":
		for _, table := range occurrence.LookupTables {
			rows, err := all(func(o store.ListOptions) ([]*occurrence.Lookup, int, error) { return st.Lookups.List(ctx, table, o) })
			if err != nil {
				return err
			}
			for _, r := range rows {
				r.Table = table
			}
			f.Lookups = append(f.Lookups, rows...)
		}
	case "lists":
		f.Lists, err = st.Lists.All(ctx)
	case "categories":
		f.Categories, err = st.Lists.Categories(ctx, nil)
	case "criteria":
		f.Criteria, err = st.Lists.Criteria(ctx, nil)
	case "threat_categories":
		f.ThreatCategories, err = st.Management.Categories(ctx, store.ThreatCategories)
	case "action_categories":
		f.ActionCategories, err = st.Management.Categories(ctx, store.ActionCategories)
	case "taxa":
		f.Taxa, err = all(func(o store.ListOptions) ([]*taxonomy.Taxon, int, error) {
			return st.Taxa.List(ctx, store.TaxonFilter{ListOptions: o})
		})
	case "vernaculars":
		f.Vernaculars, err = all(func(o store.ListOptions) ([]*taxonomy.Vernacular, int, error) {
			return st.Vernaculars.List(ctx, nil, o)
		})
	case "crossreferences":
		f.Crossreferences, err = all(func(o store.ListOptions) ([]*taxonomy.Crossreference, int, error) {
			return st.Crossreferences.List(ctx, nil, o)
		})
	case "communities":
		f.Communities, err = all(func(o store.ListOptions) ([]*taxonomy.Community, int, error) { return st.Communities.List(ctx, o) })
	case "listings":
		f.Listings, err = all(func(o store.ListOptions) ([]*conservation.Listing, int, error) {
			return st.Listings.List(ctx, store.ListingFilter{ListOptions: o})
		})
	case "documents":
		f.Documents, err = all(func(o store.ListOptions) ([]*conservation.Document, int, error) {
			return st.Documents.List(ctx, store.DocumentFilter{ListOptions: o})
		})
	case "threats":
		f.Threats, err = all(func(o store.ListOptions) ([]*conservation.Threat, int, error) {
			return st.Management.Threats(ctx, store.ManagementFilter{ListOptions: o})
		})
	case "actions":
		f.Actions, err = all(func(o store.ListOptions) ([]*conservation.Action, int, error) {
			return st.Management.Actions(ctx, store.ManagementFilter{ListOptions: o}, "")
		})
	case "activities":
		f.Activities, err = all(func(o store.ListOptions) ([]*conservation.Activity, int, error) {
			return st.Management.Activities(ctx, nil, o)
		})
	case "areas":
		f.Areas, err = all(func(o store.ListOptions) ([]*observations.Area, int, error) { return st.Areas.List(ctx, "", o) })
	case "surveys":
		f.Surveys, err = all(func(o store.ListOptions) ([]*observations.Survey, int, error) { return st.Surveys.List(ctx, nil, o) })
	case "encounters":
		f.Encounters, err = all(func(o store.ListOptions) ([]*observations.Encounter, int, error) {
			return st.Encounters.List(ctx, store.EncounterFilter{ListOptions: o})
		})
	case "occurrences":
		for _, kind := range []occurrence.Kind{occurrence.KindArea, occurrence.KindTaxon, occurrence.KindCommunity} {
			for _, geomType := range []string{geo.TypePoint, geo.TypePolygon} {
				rows, err := all(func(o store.ListOptions) ([]*occurrence.AreaEncounter, int, error) {
					return st.AreaEncounters.List(ctx, store.AreaEncounterFilter{ListOptions: o, Kind: kind, GeomType: geomType})
				})
				if err != nil {
					return err
				}
				f.Occurrences = append(f.Occurrences, rows...)
			}
		}
	case "observations":
		for _, domain := range []schema.Domain{schema.DomainOccurrence, schema.DomainObservations} {
			recs, err := all(func(o store.ListOptions) ([]*schema.Record, int, error) {
				return st.Observations.List(ctx, store.ObservationFilter{ListOptions: o, Domain: domain})
			})
			if err != nil {
				return err
			}
			for _, r := range recs {
				f.Observations = append(f.Observations, observationOf(domain, r))
			}
		}
	}
	return err
}

// observationOf turns a stored record back into a payload that names its
// encounter by source and source_id.
func observationOf(domain schema.Domain, r *schema.Record) *Observation {
	data := make(map[string]any, len(r.Data)+2)
	for k, v := range r.Data {
		data[k] = v
	}
	data["source"] = r.Source
	data["source_id"] = r.SourceID
	return &Observation{Domain: domain, ObsType: r.ObsType, Data: data}
}

// all pages through a list call.
func all[T any](fetch func(store.ListOptions) ([]T, int, error)) ([]T, error) {
	var out []T
	for offset := 0; ; offset += store.MaxLimit {
		page, total, err := fetch(store.ListOptions{Limit: store.MaxLimit, Offset: offset})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) == 0 || len(out) >= total {
			return out, nil
		}
	}
}
