// Package fixtures loads and dumps biorecords as YAML fixture documents.
//
// A fixture document holds any of the sections of Fixture. Several
// documents can be loaded together; their contents are merged and inserted
// in dependency order, so a listing may name a category defined in another
// file.
//
// Ids in a fixture are local to the load. Records that reference each
// other by id (categories and their list, listings and their categories,
// threats and their document, encounters and their survey) are rewired to
// the ids the store assigns. Taxon name ids, community codes and user ids
// are natural keys and are kept. An id with no record in the load is
// passed through unchanged and must already exist in the store.
package fixtures

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/observations"
	"github.com/biorecords/biorecords/pkg/occurrence"
	"github.com/biorecords/biorecords/pkg/schema"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

// Fixture is a set of records to load, in the order they are inserted.
type Fixture struct {
	Users            []*observations.User               `json:"users,omitempty" yaml:"users,omitempty"`
	Lookups          []*occurrence.Lookup               `json:"lookups,omitempty" yaml:"lookups,omitempty"`
	Lists            []*conservation.List               `json:"lists,omitempty" yaml:"lists,omitempty"`
	Categories       []*conservation.Category           `json:"categories,omitempty" yaml:"categories,omitempty"`
	Criteria         []*conservation.Criterion          `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	ThreatCategories []*conservation.ManagementCategory `json:"threat_categories,omitempty" yaml:"threat_categories,omitempty"`
	ActionCategories []*conservation.ManagementCategory `json:"action_categories,omitempty" yaml:"action_categories,omitempty"`
	Taxa             []*taxonomy.Taxon                  `json:"taxa,omitempty" yaml:"taxa,omitempty"`
	Vernaculars      []*taxonomy.Vernacular             `json:"vernaculars,omitempty" yaml:"vernaculars,omitempty"`
	Crossreferences  []*taxonomy.Crossreference         `json:"crossreferences,omitempty" yaml:"crossreferences,omitempty"`
	Communities      []*taxonomy.Community              `json:"communities,omitempty" yaml:"communities,omitempty"`
	Listings         []*conservation.Listing            `json:"listings,omitempty" yaml:"listings,omitempty"`
	Documents        []*conservation.Document           `json:"documents,omitempty" yaml:"documents,omitempty"`
	Threats          []*conservation.Threat             `json:"threats,omitempty" yaml:"threats,omitempty"`
	Actions          []*conservation.Action             `json:"actions,omitempty" yaml:"actions,omitempty"`
	Activities       []*conservation.Activity           `json:"activities,omitempty" yaml:"activities,omitempty"`
	Areas            []*observations.Area               `json:"areas,omitempty" yaml:"areas,omitempty"`
	Surveys          []*observations.Survey             `json:"surveys,omitempty" yaml:"surveys,omitempty"`
	Encounters       []*observations.Encounter          `json:"encounters,omitempty" yaml:"encounters,omitempty"`
	Occurrences      []*occurrence.AreaEncounter        `json:"occurrences,omitempty" yaml:"occurrences,omitempty"`
	Observations     []*Observation                     `json:"observations,omitempty" yaml:"observations,omitempty"`
}

// Observation is a typed observation payload. Data carries the fields of
// the obstype plus the "source" and "source_id" of its encounter.
type Observation struct {
	Domain  schema.Domain  `json:"domain" yaml:"domain"`
	ObsType string         `json:"obstype" yaml:"obstype"`
	Data    map[string]any `json:"data" yaml:"data"`
}

// Merge appends the sections of other to f.
func (f *Fixture) Merge(other *Fixture) {
	f.Users = append(f.Users, other.Users...)
	f.Lookups = append(f.Lookups, other.Lookups...)
	f.Lists = append(f.Lists, other.Lists...)
	f.Categories = append(f.Categories, other.Categories...)
	f.Criteria = append(f.Criteria, other.Criteria...)
	f.ThreatCategories = append(f.ThreatCategories, other.ThreatCategories...)
	f.ActionCategories = append(f.ActionCategories, other.ActionCategories...)
	f.Taxa = append(f.Taxa, other.Taxa...)
	f.Vernaculars = append(f.Vernaculars, other.Vernaculars...)
	f.Crossreferences = append(f.Crossreferences, other.Crossreferences...)
	f.Communities = append(f.Communities, other.Communities...)
	f.Listings = append(f.Listings, other.Listings...)
	f.Documents = append(f.Documents, other.Documents...)
	f.Threats = append(f.Threats, other.Threats...)
	f.Actions = append(f.Actions, other.Actions...)
	f.Activities = append(f.Activities, other.Activities...)
	f.Areas = append(f.Areas, other.Areas...)
	f.Surveys = append(f.Surveys, other.Surveys...)
	f.Encounters = append(f.Encounters, other.Encounters...)
	f.Occurrences = append(f.Occurrences, other.Occurrences...)
	f.Observations = append(f.Observations, other.Observations...)
}

// Parse decodes one YAML fixture document. name is used in errors.
func Parse(name string, data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.Strict()); err != nil {
		return nil, errors.WrapParse("yaml", name, err)
	}
	for i, o := range f.Observations {
		if o == nil {
			return nil, errors.NewParseError("yaml", name, "observation "+strconv.Itoa(i)+" is empty", nil)
		}
		payload, err := jsonNumbers(o.Data)
		if err != nil {
			return nil, errors.WrapParse("yaml", name, err)
		}
		o.Data = payload
	}
	return &f, nil
}

// jsonNumbers re-encodes raw so its numbers decode the same way as an
// HTTP request body.
func jsonNumbers(raw map[string]any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Files expands paths into the fixture files to load. Directories
// contribute their *.yaml and *.yml files in name order.
func Files(paths ...string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.WrapIO("stat", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, errors.WrapIO("read", p, err)
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			files = append(files, filepath.Join(p, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errors.NewValidationError("paths", strings.Join(paths, ", "), "no fixture files found")
	}
	return files, nil
}

// Marshal encodes f as a YAML fixture document.
func Marshal(f *Fixture) ([]byte, error) {
	b, err := yaml.MarshalWithOptions(f, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return nil, errors.WrapParse("yaml", "fixture", err)
	}
	return b, nil
}

// Sections lists the fixture sections in insertion order.
func Sections() []string {
	return slices.Clone(sections)
}

var sections = []string{
	"users", "lookups", "lists", "categories", "criteria", "threat_categories", "action_categories",
	"taxa", "vernaculars", "crossreferences", "communities", "listings", "documents", "threats",
	"actions", "activities", "areas", "surveys", "encounters", "occurrences", "observations",
}
