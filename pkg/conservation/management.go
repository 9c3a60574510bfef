package conservation

import (
	"fmt"
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
)

// ManagementCategory is a threat or action category.
type ManagementCategory struct {
	ID          int64  `json:"id" yaml:"id,omitempty"`
	Code        string `json:"code" yaml:"code"`
	Label       string `json:"label" yaml:"label,omitempty"`
	Description string `json:"description" yaml:"description,omitempty"`
}

// String returns the label.
func (c *ManagementCategory) String() string {
	return c.Label
}

// Validate checks required fields.
func (c *ManagementCategory) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return errors.NewValidationError("code", c.Code, "is required")
	}
	return nil
}

// Impact grades a threat's current or potential impact.
type Impact int

// Impacts.
const (
	ImpactUnknown Impact = 0
	ImpactNil     Impact = 10
	ImpactLow     Impact = 20
	ImpactMedium  Impact = 30
	ImpactHigh    Impact = 40
	ImpactExtreme Impact = 50
)

// String returns the display name.
func (i Impact) String() string {
	switch i {
	case ImpactUnknown:
		return "Unknown"
	case ImpactNil:
		return "Nil"
	case ImpactLow:
		return "Low"
	case ImpactMedium:
		return "Medium"
	case ImpactHigh:
		return "High"
	case ImpactExtreme:
		return "Extreme"
	default:
		return fmt.Sprintf("Impact(%d)", int(i))
	}
}

// Valid reports whether i is a known impact.
func (i Impact) Valid() bool {
	return i >= ImpactUnknown && i <= ImpactExtreme && i%10 == 0
}

// Onset estimates when a potential impact takes effect.
type Onset int

// Onsets.
const (
	OnsetUnknown    Onset = 0
	OnsetShortTerm  Onset = 10
	OnsetMediumTerm Onset = 20
	OnsetLongTerm   Onset = 30
)

// String returns the display name.
func (o Onset) String() string {
	switch o {
	case OnsetUnknown:
		return "Unknown"
	case OnsetShortTerm:
		return "Short term"
	case OnsetMediumTerm:
		return "Medium term"
	case OnsetLongTerm:
		return "Long term"
	default:
		return fmt.Sprintf("Onset(%d)", int(o))
	}
}

// Valid reports whether o is a known onset.
func (o Onset) Valid() bool {
	return o >= OnsetUnknown && o <= OnsetLongTerm && o%10 == 0
}

// Threat is an observed or anticipated conservation threat.
type Threat struct {
	ID                  int64      `json:"id" yaml:"id,omitempty"`
	TaxonIDs            IDList     `json:"taxa" yaml:"taxa,omitempty"`
	Communities         []string   `json:"communities" yaml:"communities,omitempty"`
	DocumentID          *int64     `json:"document" yaml:"document,omitempty"`
	OccurrenceAreaCode  string     `json:"occurrence_area_code" yaml:"occurrence_area_code,omitempty"`
	CategoryID          int64      `json:"category" yaml:"category"`
	Cause               string     `json:"cause" yaml:"cause,omitempty"`
	EncounteredBy       *int64     `json:"encountered_by" yaml:"encountered_by,omitempty"`
	EncounteredOn       *time.Time `json:"encountered_on" yaml:"encountered_on,omitempty"`
	AreaAffectedPercent *float64   `json:"area_affected_percent" yaml:"area_affected_percent,omitempty"`
	CurrentImpact       Impact     `json:"current_impact" yaml:"current_impact"`
	PotentialImpact     Impact     `json:"potential_impact" yaml:"potential_impact"`
	PotentialOnset      Onset      `json:"potential_onset" yaml:"potential_onset"`
}

// Validate checks references and enumerations.
func (t *Threat) Validate() error {
	if t.CategoryID == 0 {
		return errors.NewValidationError("category", nil, "is required")
	}
	if !t.CurrentImpact.Valid() {
		return errors.NewValidationError("current_impact", int(t.CurrentImpact), "unknown impact")
	}
	if !t.PotentialImpact.Valid() {
		return errors.NewValidationError("potential_impact", int(t.PotentialImpact), "unknown impact")
	}
	if !t.PotentialOnset.Valid() {
		return errors.NewValidationError("potential_onset", int(t.PotentialOnset), "unknown onset")
	}
	if p := t.AreaAffectedPercent; p != nil && (*p < 0 || *p > 100) {
		return errors.NewValidationError("area_affected_percent", *p, "must be between 0 and 100")
	}
	return nil
}

// ActionStatus is derived from an action's completion date and activities.
type ActionStatus string

// Action statuses.
const (
	ActionNotStarted ActionStatus = "not started"
	ActionInProgress ActionStatus = "in progress"
	ActionCompleted  ActionStatus = "completed"
)

// Action is a planned or completed management action.
type Action struct {
	ID                  int64        `json:"id" yaml:"id,omitempty"`
	CategoryID          int64        `json:"category" yaml:"category"`
	TaxonIDs            IDList       `json:"taxa" yaml:"taxa,omitempty"`
	Communities         []string     `json:"communities" yaml:"communities,omitempty"`
	DocumentID          *int64       `json:"document" yaml:"document,omitempty"`
	OccurrenceAreaCode  string       `json:"occurrence_area_code" yaml:"occurrence_area_code,omitempty"`
	Instructions        string       `json:"instructions" yaml:"instructions,omitempty"`
	ImplementationNotes string       `json:"implementation_notes" yaml:"implementation_notes,omitempty"`
	CompletionDate      *time.Time   `json:"completion_date" yaml:"completion_date,omitempty"`
	ExpenditureCents    int64        `json:"expenditure" yaml:"expenditure,omitempty"`
	Status              ActionStatus `json:"status" yaml:"-"`
}

// Validate checks required fields.
func (a *Action) Validate() error {
	if a.CategoryID == 0 {
		return errors.NewValidationError("category", nil, "is required")
	}
	if a.ExpenditureCents < 0 {
		return errors.NewValidationError("expenditure", a.ExpenditureCents, "must not be negative")
	}
	return nil
}

// DeriveStatus sets Status from the completion date and activity count.
func (a *Action) DeriveStatus(activities int) ActionStatus {
	switch {
	case a.CompletionDate != nil:
		a.Status = ActionCompleted
	case activities > 0:
		a.Status = ActionInProgress
	default:
		a.Status = ActionNotStarted
	}
	return a.Status
}

// Activity records progress on an action.
type Activity struct {
	ID                  int64      `json:"id" yaml:"id,omitempty"`
	ActionID            int64      `json:"conservation_action" yaml:"conservation_action"`
	CompletionDate      *time.Time `json:"completion_date" yaml:"completion_date,omitempty"`
	ImplementationNotes string     `json:"implementation_notes" yaml:"implementation_notes,omitempty"`
	ExpenditureCents    int64      `json:"expenditure" yaml:"expenditure,omitempty"`

	// ActionCategory is the label of the parent action's category, joined
	// in by the store.
	ActionCategory string `json:"action_category" yaml:"-"`
}

// String renders "[category][dd/mm/yyyy] notes", with "in progress" for
// activities without a completion date.
func (a *Activity) String() string {
	date := "in progress"
	if a.CompletionDate != nil {
		date = a.CompletionDate.Format("02/01/2006")
	}
	return fmt.Sprintf("[%s][%s] %s", a.ActionCategory, date, a.ImplementationNotes)
}

// Validate checks required fields.
func (a *Activity) Validate() error {
	if a.ActionID == 0 {
		return errors.NewValidationError("conservation_action", nil, "is required")
	}
	return nil
}
