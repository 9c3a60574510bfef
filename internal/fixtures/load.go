package fixtures

import (
	"context"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/logging"
	"github.com/biorecords/biorecords/pkg/occurrence"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

// Count is the number of records a load inserted into one section.
type Count struct {
	Section string `json:"section" yaml:"section"`
	Records int    `json:"records" yaml:"records"`
}

// ReadFiles reads and parses the fixture files in parallel and merges
// them in the order given.
func ReadFiles(ctx context.Context, files ...string) (*Fixture, error) {
	parsed := make([]*Fixture, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return errors.WrapIO("read", file, err)
			}
			f, err := Parse(file, data)
			if err != nil {
				return err
			}
			parsed[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := &Fixture{}
	for _, f := range parsed {
		merged.Merge(f)
	}
	return merged, nil
}

// Load reads the fixture files under paths and inserts their records.
func Load(ctx context.Context, st *store.Store, paths ...string) ([]Count, error) {
	files, err := Files(paths...)
	if err != nil {
		return nil, err
	}
	f, err := ReadFiles(ctx, files...)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug().Int("files", len(files)).Msg("Fixture files parsed")
	return Insert(ctx, st, f)
}

// idMap rewires fixture-local ids to stored ids.
type idMap map[int64]int64

func (m idMap) set(local, stored int64) {
	if local != 0 {
		m[local] = stored
	}
}

func (m idMap) id(local int64) int64 {
	if stored, ok := m[local]; ok {
		return stored
	}
	return local
}

func (m idMap) ptr(local *int64) *int64 {
	if local == nil {
		return nil
	}
	v := m.id(*local)
	return &v
}

func (m idMap) list(local conservation.IDList) conservation.IDList {
	if local == nil {
		return nil
	}
	out := make(conservation.IDList, len(local))
	for i, id := range local {
		out[i] = m.id(id)
	}
	return out
}

// loader inserts one merged fixture, section by section.
type loader struct {
	st     *store.Store
	logger *zerolog.Logger
	counts []Count

	users, lists, categories, criteria idMap
	threatCats, actionCats             idMap
	documents, actions, areas, surveys idMap
}

// Insert stores the records of f in dependency order and returns how many
// records each non-empty section inserted. It stops at the first error;
// records inserted before it remain.
func Insert(ctx context.Context, st *store.Store, f *Fixture) ([]Count, error) {
	l := &loader{
		st:         st,
		logger:     logging.FromContext(ctx),
		users:      idMap{},
		lists:      idMap{},
		categories: idMap{},
		criteria:   idMap{},
		threatCats: idMap{},
		actionCats: idMap{},
		documents:  idMap{},
		actions:    idMap{},
		areas:      idMap{},
		surveys:    idMap{},
	}
	steps := []struct {
		section string
		n       int
		run     func(context.Context, *Fixture) error
	}{
		{"users", len(f.Users), l.loadUsers},
		{"lookups", len(f.Lookups), l.loadLookups},
		{"lists", len(f.Lists), l.loadLists},
		{"categories", len(f.Categories), l.loadCategories},
		{"criteria", len(f.Criteria), l.loadCriteria},
		{"threat_categories", len(f.ThreatCategories), l.loadThreatCategories},
		{"action_categories", len(f.ActionCategories), l.loadActionCategories},
		{"taxa", len(f.Taxa), l.loadTaxa},
		{"vernaculars", len(f.Vernaculars), l.loadVernaculars},
		{"crossreferences", len(f.Crossreferences), l.loadCrossreferences},
		{"communities", len(f.Communities), l.loadCommunities},
		{"listings", len(f.Listings), l.loadListings},
		{"documents", len(f.Documents), l.loadDocuments},
		{"threats", len(f.Threats), l.loadThreats},
		{"actions", len(f.Actions), l.loadActions},
		{"activities", len(f.Activities), l.loadActivities},
		{"areas", len(f.Areas), l.loadAreas},
		{"surveys", len(f.Surveys), l.loadSurveys},
		{"encounters", len(f.Encounters), l.loadEncounters},
		{"occurrences", len(f.Occurrences), l.loadOccurrences},
		{"observations", len(f.Observations), l.loadObservations},
	}
	for _, step := range steps {
		if step.n == 0 {
			continue
		}
		if err := step.run(ctx, f); err != nil {
			return l.counts, errors.WrapResource("load", step.section, "", err)
		}
		l.counts = append(l.counts, Count{Section: step.section, Records: step.n})
		l.logger.Debug().Str("section", step.section).Int("records", step.n).Msg("Fixture section loaded")
	}
	return l.counts, nil
}

func (l *loader) loadUsers(ctx context.Context, f *Fixture) error {
	for _, u := range f.Users {
		local := u.ID
		if err := l.st.Users.Create(ctx, u); err != nil {
			return err
		}
		l.users.set(local, u.ID)
	}
	return nil
}

func (l *loader) loadLookups(ctx context.Context, f *Fixture) error {
	for _, lk := range f.Lookups {
		if err := l.st.Lookups.Create(ctx, lk); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadLists(ctx context.Context, f *Fixture) error {
	for _, cl := range f.Lists {
		local := cl.ID
		if err := l.st.Lists.Create(ctx, cl); err != nil {
			return err
		}
		l.lists.set(local, cl.ID)
	}
	return nil
}

func (l *loader) loadCategories(ctx context.Context, f *Fixture) error {
	for _, c := range f.Categories {
		local := c.ID
		c.ListID = l.lists.id(c.ListID)
		if err := l.st.Lists.CreateCategory(ctx, c); err != nil {
			return err
		}
		l.categories.set(local, c.ID)
	}
	return nil
}

func (l *loader) loadCriteria(ctx context.Context, f *Fixture) error {
	for _, c := range f.Criteria {
		local := c.ID
		c.ListID = l.lists.id(c.ListID)
		if err := l.st.Lists.CreateCriterion(ctx, c); err != nil {
			return err
		}
		l.criteria.set(local, c.ID)
	}
	return nil
}

func (l *loader) loadThreatCategories(ctx context.Context, f *Fixture) error {
	return l.loadManagementCategories(ctx, store.ThreatCategories, f.ThreatCategories, l.threatCats)
}

func (l *loader) loadActionCategories(ctx context.Context, f *Fixture) error {
	return l.loadManagementCategories(ctx, store.ActionCategories, f.ActionCategories, l.actionCats)
}

func (l *loader) loadManagementCategories(ctx context.Context, kind store.CategoryKind, cats []*conservation.ManagementCategory, ids idMap) error {
	for _, c := range cats {
		local := c.ID
		if err := l.st.Management.CreateCategory(ctx, kind, c); err != nil {
			return err
		}
		ids.set(local, c.ID)
	}
	return nil
}

func (l *loader) loadTaxa(ctx context.Context, f *Fixture) error {
	for _, t := range parentsFirst(f.Taxa) {
		if err := l.st.Taxa.Create(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// parentsFirst orders taxa so that every parent in the set precedes its
// children. Taxa keep their relative order otherwise.
func parentsFirst(taxa []*taxonomy.Taxon) []*taxonomy.Taxon {
	byID := make(map[int64]*taxonomy.Taxon, len(taxa))
	for _, t := range taxa {
		byID[t.NameID] = t
	}
	out := make([]*taxonomy.Taxon, 0, len(taxa))
	state := make(map[int64]int, len(taxa)) // 1 visiting, 2 done
	var visit func(t *taxonomy.Taxon)
	visit = func(t *taxonomy.Taxon) {
		if state[t.NameID] != 0 {
			return
		}
		state[t.NameID] = 1
		if t.ParentID != nil {
			if parent, ok := byID[*t.ParentID]; ok {
				visit(parent)
			}
		}
		state[t.NameID] = 2
		out = append(out, t)
	}
	for _, t := range taxa {
		visit(t)
	}
	return out
}

func (l *loader) loadVernaculars(ctx context.Context, f *Fixture) error {
	for _, v := range f.Vernaculars {
		if err := l.st.Vernaculars.Create(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadCrossreferences(ctx context.Context, f *Fixture) error {
	for _, x := range f.Crossreferences {
		if err := l.st.Crossreferences.Create(ctx, x); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadCommunities(ctx context.Context, f *Fixture) error {
	for _, c := range f.Communities {
		if err := l.st.Communities.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadListings(ctx context.Context, f *Fixture) error {
	for _, cl := range f.Listings {
		cl.Kind = conservation.SubjectCommunity
		if cl.TaxonID != nil {
			cl.Kind = conservation.SubjectTaxon
		}
		cl.CategoryIDs = l.categories.list(cl.CategoryIDs)
		cl.CriterionIDs = l.criteria.list(cl.CriterionIDs)
		if err := cl.Validate(); err != nil {
			return err
		}
		if err := l.st.Listings.Import(ctx, cl); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadDocuments(ctx context.Context, f *Fixture) error {
	for _, d := range f.Documents {
		local := d.ID
		d.Team = l.users.list(d.Team)
		if err := l.st.Documents.Create(ctx, d); err != nil {
			return err
		}
		l.documents.set(local, d.ID)
	}
	return nil
}

func (l *loader) loadThreats(ctx context.Context, f *Fixture) error {
	for _, th := range f.Threats {
		th.CategoryID = l.threatCats.id(th.CategoryID)
		th.DocumentID = l.documents.ptr(th.DocumentID)
		th.EncounteredBy = l.users.ptr(th.EncounteredBy)
		if err := l.st.Management.CreateThreat(ctx, th); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadActions(ctx context.Context, f *Fixture) error {
	for _, a := range f.Actions {
		local := a.ID
		a.CategoryID = l.actionCats.id(a.CategoryID)
		a.DocumentID = l.documents.ptr(a.DocumentID)
		if err := l.st.Management.CreateAction(ctx, a); err != nil {
			return err
		}
		l.actions.set(local, a.ID)
	}
	return nil
}

func (l *loader) loadActivities(ctx context.Context, f *Fixture) error {
	for _, a := range f.Activities {
		a.ActionID = l.actions.id(a.ActionID)
		if err := l.st.Management.CreateActivity(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadAreas(ctx context.Context, f *Fixture) error {
	for _, a := range f.Areas {
		local := a.ID
		if err := l.st.Areas.Create(ctx, a); err != nil {
			return err
		}
		l.areas.set(local, a.ID)
	}
	return nil
}

func (l *loader) loadSurveys(ctx context.Context, f *Fixture) error {
	for _, sv := range f.Surveys {
		local := sv.ID
		sv.SiteID = l.areas.ptr(sv.SiteID)
		sv.ReporterID = l.users.id(sv.ReporterID)
		if err := l.st.Surveys.Create(ctx, sv); err != nil {
			return err
		}
		l.surveys.set(local, sv.ID)
	}
	return nil
}

func (l *loader) loadEncounters(ctx context.Context, f *Fixture) error {
	for _, e := range f.Encounters {
		e.AreaID = l.areas.ptr(e.AreaID)
		e.SiteID = l.areas.ptr(e.SiteID)
		e.SurveyID = l.surveys.ptr(e.SurveyID)
		e.ObserverID = l.users.id(e.ObserverID)
		e.ReporterID = l.users.id(e.ReporterID)
		if err := l.st.Encounters.Create(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadOccurrences(ctx context.Context, f *Fixture) error {
	for _, a := range f.Occurrences {
		a.EncounteredBy = l.users.ptr(a.EncounteredBy)
		if a.Kind == "" {
			a.Kind = occurrence.KindArea
			switch {
			case a.TaxonID != nil:
				a.Kind = occurrence.KindTaxon
			case a.Community != "":
				a.Kind = occurrence.KindCommunity
			}
		}
		if err := l.st.AreaEncounters.Create(ctx, a, a.Geom.Type()); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadObservations(ctx context.Context, f *Fixture) error {
	for _, o := range f.Observations {
		rec, err := l.st.Observations.Prepare(ctx, o.Domain, o.ObsType, o.Data)
		if err != nil {
			return err
		}
		if _, _, err := l.st.Observations.Create(ctx, o.Domain, rec); err != nil {
			return err
		}
	}
	return nil
}
