package store

import (
	"context"
	"database/sql"

	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
)

const (
	resourceThreatCategory = "threatcategory"
	resourceActionCategory = "actioncategory"
	resourceThreat         = "conservationthreat"
	resourceAction         = "conservationaction"
	resourceActivity       = "conservationactivity"
)

// Management stores threats, actions and activities with their categories.
type Management struct{ s *Store }

// CategoryKind selects the threat or action category table.
type CategoryKind string

// Category kinds.
const (
	ThreatCategories CategoryKind = "threat"
	ActionCategories CategoryKind = "action"
)

func (k CategoryKind) table() (string, string, error) {
	switch k {
	case ThreatCategories:
		return "threat_categories", resourceThreatCategory, nil
	case ActionCategories:
		return "action_categories", resourceActionCategory, nil
	}
	return "", "", errors.NewValidationError("category", string(k), "unknown category kind")
}

func scanManagementCategory(r rowScanner) (*conservation.ManagementCategory, error) {
	var c conservation.ManagementCategory
	err := r.Scan(&c.ID, &c.Code, &c.Label, &c.Description)
	return &c, err
}

// Categories lists threat or action categories ordered by code.
func (r *Management) Categories(ctx context.Context, kind CategoryKind) ([]*conservation.ManagementCategory, error) {
	table, resource, err := kind.table()
	if err != nil {
		return nil, err
	}
	out, err := queryAll(ctx, r.s.db, `SELECT id, code, label, description FROM `+table+` ORDER BY code`, nil, scanManagementCategory)
	if err != nil {
		return nil, mapErr("list", resource, nil, err)
	}
	return out, nil
}

// Category returns one threat or action category.
func (r *Management) Category(ctx context.Context, kind CategoryKind, id int64) (*conservation.ManagementCategory, error) {
	table, resource, err := kind.table()
	if err != nil {
		return nil, err
	}
	c, err := scanManagementCategory(r.s.db.QueryRowContext(ctx, `SELECT id, code, label, description FROM `+table+` WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resource, id, err)
	}
	return c, nil
}

// CreateCategory inserts a threat or action category.
func (r *Management) CreateCategory(ctx context.Context, kind CategoryKind, c *conservation.ManagementCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.createCategory(ctx, t, kind, c) })
}

func (r *Management) createCategory(ctx context.Context, t *tx, kind CategoryKind, c *conservation.ManagementCategory) error {
	table, resource, err := kind.table()
	if err != nil {
		return err
	}
	res, err := t.ExecContext(ctx, `INSERT INTO `+table+` (code, label, description) VALUES (?, ?, ?)`, c.Code, c.Label, c.Description)
	if err != nil {
		return mapErr("create", resource, c.Code, err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	t.changed(resource, ActionCreated, c.ID)
	return nil
}

// UpdateCategory replaces a threat or action category.
func (r *Management) UpdateCategory(ctx context.Context, kind CategoryKind, c *conservation.ManagementCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	table, resource, err := kind.table()
	if err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `UPDATE `+table+` SET code = ?, label = ?, description = ? WHERE id = ?`,
			c.Code, c.Label, c.Description, c.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resource, c.ID, err)
		}
		t.changed(resource, ActionUpdated, c.ID)
		return nil
	})
}

// DeleteCategory removes an unused category.
func (r *Management) DeleteCategory(ctx context.Context, kind CategoryKind, id int64) error {
	table, resource, err := kind.table()
	if err != nil {
		return err
	}
	return r.s.deleteByID(ctx, resource, `DELETE FROM `+table+` WHERE id = ?`, id)
}

// ManagementFilter narrows threat and action lists.
type ManagementFilter struct {
	ListOptions
	TaxonID    *int64
	Community  string
	DocumentID *int64
	CategoryID *int64
}

func (f ManagementFilter) where(table, owner string) where {
	var w where
	if f.TaxonID != nil {
		w.add(`id IN (SELECT `+owner+` FROM `+table+`_taxa WHERE taxon_id = ?)`, *f.TaxonID)
	}
	if f.Community != "" {
		w.add(`id IN (SELECT l.`+owner+` FROM `+table+`_communities l
			JOIN communities c ON c.id = l.community_id WHERE c.code = ?)`, f.Community)
	}
	if f.DocumentID != nil {
		w.add(`document_id = ?`, *f.DocumentID)
	}
	if f.CategoryID != nil {
		w.add(`category_id = ?`, *f.CategoryID)
	}
	return w
}

// subjectLinks loads taxon ids and community codes of one owner.
func subjectLinks(ctx context.Context, q querier, table, owner string, id int64) ([]int64, []string, error) {
	taxa, err := queryIDs(ctx, q, `SELECT taxon_id FROM `+table+`_taxa WHERE `+owner+` = ? ORDER BY taxon_id`, id)
	if err != nil {
		return nil, nil, err
	}
	codes, err := queryStrings(ctx, q, `SELECT c.code FROM `+table+`_communities l
		JOIN communities c ON c.id = l.community_id WHERE l.`+owner+` = ? ORDER BY c.code`, id)
	if err != nil {
		return nil, nil, err
	}
	return taxa, codes, nil
}

func (r *Management) saveSubjects(ctx context.Context, t *tx, table, owner string, id int64, taxa []int64, codes []string) error {
	communities, err := r.s.Communities.idsForCodes(ctx, t, codes)
	if err != nil {
		return err
	}
	if err := replaceLinks(ctx, t, table+"_taxa", owner, "taxon_id", id, taxa); err != nil {
		return err
	}
	return replaceLinks(ctx, t, table+"_communities", owner, "community_id", id, communities)
}

const threatColumns = `id, category_id, document_id, occurrence_area_code, cause, encountered_by, encountered_on,
	area_affected_percent, current_impact, potential_impact, potential_onset`

func scanThreat(r rowScanner) (*conservation.Threat, error) {
	var (
		t            conservation.Threat
		doc, by      sql.NullInt64
		encountered  sql.NullString
		areaAffected sql.NullFloat64
	)
	if err := r.Scan(&t.ID, &t.CategoryID, &doc, &t.OccurrenceAreaCode, &t.Cause, &by, &encountered,
		&areaAffected, &t.CurrentImpact, &t.PotentialImpact, &t.PotentialOnset); err != nil {
		return nil, err
	}
	t.DocumentID, t.EncounteredBy = intPtr(doc), intPtr(by)
	t.EncounteredOn = timePtr(encountered)
	t.AreaAffectedPercent = floatPtr(areaAffected)
	return &t, nil
}

func (r *Management) getThreat(ctx context.Context, q querier, id int64) (*conservation.Threat, error) {
	th, err := scanThreat(q.QueryRowContext(ctx, `SELECT `+threatColumns+` FROM threats WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceThreat, id, err)
	}
	if th.TaxonIDs, th.Communities, err = subjectLinks(ctx, q, "threat", "threat_id", id); err != nil {
		return nil, mapErr("fetch", resourceThreat, id, err)
	}
	return th, nil
}

// Threat returns a threat with its subjects.
func (r *Management) Threat(ctx context.Context, id int64) (*conservation.Threat, error) {
	return r.getThreat(ctx, r.s.db, id)
}

// Threats lists threats matching f.
func (r *Management) Threats(ctx context.Context, f ManagementFilter) ([]*conservation.Threat, int, error) {
	w := f.where("threat", "threat_id")
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM threats`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceThreat, nil, err)
	}
	order := orderBy(f.Ordering, map[string]string{"id": "id", "encountered_on": "encountered_on"}, "id")
	threats, err := queryAll(ctx, r.s.db, `SELECT `+threatColumns+` FROM threats`+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, f.limit(), f.offset()), scanThreat)
	if err != nil {
		return nil, 0, mapErr("list", resourceThreat, nil, err)
	}
	for _, th := range threats {
		if th.TaxonIDs, th.Communities, err = subjectLinks(ctx, r.s.db, "threat", "threat_id", th.ID); err != nil {
			return nil, 0, mapErr("list", resourceThreat, nil, err)
		}
	}
	return threats, total, nil
}

// CreateThreat inserts a threat with its subjects.
func (r *Management) CreateThreat(ctx context.Context, th *conservation.Threat) error {
	if err := th.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.createThreat(ctx, t, th) })
}

func (r *Management) createThreat(ctx context.Context, t *tx, th *conservation.Threat) error {
	res, err := t.ExecContext(ctx, `INSERT INTO threats (category_id, document_id, occurrence_area_code, cause,
		encountered_by, encountered_on, area_affected_percent, current_impact, potential_impact, potential_onset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		th.CategoryID, nullInt(th.DocumentID), th.OccurrenceAreaCode, th.Cause, nullInt(th.EncounteredBy),
		nullTime(th.EncounteredOn), nullFloat(th.AreaAffectedPercent), int(th.CurrentImpact),
		int(th.PotentialImpact), int(th.PotentialOnset))
	if err != nil {
		return mapErr("create", resourceThreat, nil, err)
	}
	if th.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	if err := r.saveSubjects(ctx, t, "threat", "threat_id", th.ID, th.TaxonIDs, th.Communities); err != nil {
		return mapErr("create", resourceThreat, th.ID, err)
	}
	t.changed(resourceThreat, ActionCreated, th.ID)
	return nil
}

// UpdateThreat replaces a threat and its subjects.
func (r *Management) UpdateThreat(ctx context.Context, th *conservation.Threat) error {
	if err := th.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `UPDATE threats SET category_id = ?, document_id = ?, occurrence_area_code = ?,
			cause = ?, encountered_by = ?, encountered_on = ?, area_affected_percent = ?, current_impact = ?,
			potential_impact = ?, potential_onset = ? WHERE id = ?`,
			th.CategoryID, nullInt(th.DocumentID), th.OccurrenceAreaCode, th.Cause, nullInt(th.EncounteredBy),
			nullTime(th.EncounteredOn), nullFloat(th.AreaAffectedPercent), int(th.CurrentImpact),
			int(th.PotentialImpact), int(th.PotentialOnset), th.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceThreat, th.ID, err)
		}
		if err := r.saveSubjects(ctx, t, "threat", "threat_id", th.ID, th.TaxonIDs, th.Communities); err != nil {
			return mapErr("update", resourceThreat, th.ID, err)
		}
		t.changed(resourceThreat, ActionUpdated, th.ID)
		return nil
	})
}

// DeleteThreat removes a threat.
func (r *Management) DeleteThreat(ctx context.Context, id int64) error {
	return r.s.deleteByID(ctx, resourceThreat, `DELETE FROM threats WHERE id = ?`, id)
}

const actionColumns = `a.id, a.category_id, a.document_id, a.occurrence_area_code, a.instructions,
	a.implementation_notes, a.completion_date, a.expenditure,
	(SELECT COUNT(*) FROM activities WHERE action_id = a.id)`

func scanAction(r rowScanner) (*conservation.Action, error) {
	var (
		a          conservation.Action
		doc        sql.NullInt64
		completed  sql.NullString
		activities int
	)
	if err := r.Scan(&a.ID, &a.CategoryID, &doc, &a.OccurrenceAreaCode, &a.Instructions, &a.ImplementationNotes,
		&completed, &a.ExpenditureCents, &activities); err != nil {
		return nil, err
	}
	a.DocumentID = intPtr(doc)
	a.CompletionDate = timePtr(completed)
	a.DeriveStatus(activities)
	return &a, nil
}

// Action returns an action with its subjects and derived status.
func (r *Management) Action(ctx context.Context, id int64) (*conservation.Action, error) {
	a, err := scanAction(r.s.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions a WHERE a.id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceAction, id, err)
	}
	if a.TaxonIDs, a.Communities, err = subjectLinks(ctx, r.s.db, "action", "action_id", id); err != nil {
		return nil, mapErr("fetch", resourceAction, id, err)
	}
	return a, nil
}

// Actions lists actions matching f. A non-empty status filters on the
// derived action status.
func (r *Management) Actions(ctx context.Context, f ManagementFilter, status conservation.ActionStatus) ([]*conservation.Action, int, error) {
	w := f.where("action", "action_id")
	switch status {
	case "":
	case conservation.ActionCompleted:
		w.add(`completion_date IS NOT NULL`)
	case conservation.ActionInProgress:
		w.add(`completion_date IS NULL AND EXISTS (SELECT 1 FROM activities WHERE action_id = a.id)`)
	case conservation.ActionNotStarted:
		w.add(`completion_date IS NULL AND NOT EXISTS (SELECT 1 FROM activities WHERE action_id = a.id)`)
	default:
		return nil, 0, errors.NewValidationError("status", string(status), "unknown action status")
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM actions a`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceAction, nil, err)
	}
	order := orderBy(f.Ordering, map[string]string{"id": "a.id", "completion_date": "a.completion_date"}, "a.id")
	query := `SELECT ` + actionColumns + ` FROM actions a` + w.String() + order + ` LIMIT ? OFFSET ?`
	actions, err := queryAll(ctx, r.s.db, query, append(w.args, f.limit(), f.offset()), scanAction)
	if err != nil {
		return nil, 0, mapErr("list", resourceAction, nil, err)
	}
	for _, a := range actions {
		if a.TaxonIDs, a.Communities, err = subjectLinks(ctx, r.s.db, "action", "action_id", a.ID); err != nil {
			return nil, 0, mapErr("list", resourceAction, nil, err)
		}
	}
	return actions, total, nil
}

// CreateAction inserts an action with its subjects.
func (r *Management) CreateAction(ctx context.Context, a *conservation.Action) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.createAction(ctx, t, a) })
}

func (r *Management) createAction(ctx context.Context, t *tx, a *conservation.Action) error {
	res, err := t.ExecContext(ctx, `INSERT INTO actions (category_id, document_id, occurrence_area_code, instructions,
		implementation_notes, completion_date, expenditure) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.CategoryID, nullInt(a.DocumentID), a.OccurrenceAreaCode, a.Instructions, a.ImplementationNotes,
		nullTime(a.CompletionDate), a.ExpenditureCents)
	if err != nil {
		return mapErr("create", resourceAction, nil, err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	if err := r.saveSubjects(ctx, t, "action", "action_id", a.ID, a.TaxonIDs, a.Communities); err != nil {
		return mapErr("create", resourceAction, a.ID, err)
	}
	a.DeriveStatus(0)
	t.changed(resourceAction, ActionCreated, a.ID)
	return nil
}

// UpdateAction replaces an action and its subjects.
func (r *Management) UpdateAction(ctx context.Context, a *conservation.Action) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `UPDATE actions SET category_id = ?, document_id = ?, occurrence_area_code = ?,
			instructions = ?, implementation_notes = ?, completion_date = ?, expenditure = ? WHERE id = ?`,
			a.CategoryID, nullInt(a.DocumentID), a.OccurrenceAreaCode, a.Instructions, a.ImplementationNotes,
			nullTime(a.CompletionDate), a.ExpenditureCents, a.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceAction, a.ID, err)
		}
		if err := r.saveSubjects(ctx, t, "action", "action_id", a.ID, a.TaxonIDs, a.Communities); err != nil {
			return mapErr("update", resourceAction, a.ID, err)
		}
		var n int
		if err := t.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities WHERE action_id = ?`, a.ID).Scan(&n); err != nil {
			return mapErr("update", resourceAction, a.ID, err)
		}
		a.DeriveStatus(n)
		t.changed(resourceAction, ActionUpdated, a.ID)
		return nil
	})
}

// DeleteAction removes an action and its activities.
func (r *Management) DeleteAction(ctx context.Context, id int64) error {
	return r.s.deleteByID(ctx, resourceAction, `DELETE FROM actions WHERE id = ?`, id)
}

const activityColumns = `v.id, v.action_id, v.completion_date, v.implementation_notes, v.expenditure, COALESCE(c.label, '')`

const activityFrom = ` FROM activities v JOIN actions a ON a.id = v.action_id
	LEFT JOIN action_categories c ON c.id = a.category_id`

func scanActivity(r rowScanner) (*conservation.Activity, error) {
	var (
		a         conservation.Activity
		completed sql.NullString
	)
	if err := r.Scan(&a.ID, &a.ActionID, &completed, &a.ImplementationNotes, &a.ExpenditureCents, &a.ActionCategory); err != nil {
		return nil, err
	}
	a.CompletionDate = timePtr(completed)
	return &a, nil
}

func (r *Management) activity(ctx context.Context, q querier, id int64) (*conservation.Activity, error) {
	a, err := scanActivity(q.QueryRowContext(ctx, `SELECT `+activityColumns+activityFrom+` WHERE v.id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceActivity, id, err)
	}
	return a, nil
}

// Activity returns one activity with its action category label.
func (r *Management) Activity(ctx context.Context, id int64) (*conservation.Activity, error) {
	return r.activity(ctx, r.s.db, id)
}

// Activities lists activities, optionally of one action.
func (r *Management) Activities(ctx context.Context, actionID *int64, opts ListOptions) ([]*conservation.Activity, int, error) {
	var w where
	if actionID != nil {
		w.add(`v.action_id = ?`, *actionID)
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*)`+activityFrom+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceActivity, nil, err)
	}
	order := orderBy(opts.Ordering, map[string]string{"id": "v.id", "completion_date": "v.completion_date"}, "v.id")
	out, err := queryAll(ctx, r.s.db, `SELECT `+activityColumns+activityFrom+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, opts.limit(), opts.offset()), scanActivity)
	if err != nil {
		return nil, 0, mapErr("list", resourceActivity, nil, err)
	}
	return out, total, nil
}

// CreateActivity inserts an activity, moving its action into progress.
func (r *Management) CreateActivity(ctx context.Context, a *conservation.Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error { return r.createActivity(ctx, t, a) })
}

func (r *Management) createActivity(ctx context.Context, t *tx, a *conservation.Activity) error {
	res, err := t.ExecContext(ctx, `INSERT INTO activities (action_id, completion_date, implementation_notes, expenditure)
		VALUES (?, ?, ?, ?)`, a.ActionID, nullTime(a.CompletionDate), a.ImplementationNotes, a.ExpenditureCents)
	if err != nil {
		return mapErr("create", resourceActivity, nil, err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	stored, err := r.activity(ctx, t, a.ID)
	if err != nil {
		return err
	}
	a.ActionCategory = stored.ActionCategory
	t.changed(resourceActivity, ActionCreated, a.ID)
	t.changed(resourceAction, ActionUpdated, a.ActionID)
	return nil
}

// UpdateActivity replaces an activity.
func (r *Management) UpdateActivity(ctx context.Context, a *conservation.Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `UPDATE activities SET action_id = ?, completion_date = ?, implementation_notes = ?,
			expenditure = ? WHERE id = ?`, a.ActionID, nullTime(a.CompletionDate), a.ImplementationNotes, a.ExpenditureCents, a.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceActivity, a.ID, err)
		}
		t.changed(resourceActivity, ActionUpdated, a.ID)
		return nil
	})
}

// DeleteActivity removes an activity.
func (r *Management) DeleteActivity(ctx context.Context, id int64) error {
	return r.s.deleteByID(ctx, resourceActivity, `DELETE FROM activities WHERE id = ?`, id)
}
