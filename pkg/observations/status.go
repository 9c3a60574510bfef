package observations

import (
	"fmt"

	"github.com/biorecords/biorecords/pkg/errors"
)

// Status is the quality assurance status of an encounter.
type Status string

// QA statuses, in workflow order.
const (
	StatusNew       Status = "new"
	StatusProofread Status = "proofread"
	StatusCurated   Status = "curated"
	StatusPublished Status = "published"
)

var statusLabels = map[Status]string{
	StatusNew:       "New",
	StatusProofread: "Proofread",
	StatusCurated:   "Curated",
	StatusPublished: "Published",
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label is the display name of s.
func (s Status) Label() string {
	return StatusLabel(s)
}

// StatusLabel returns the display name of a status, or the raw value.
func StatusLabel(s Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

var forward = map[Status]Status{
	StatusNew:       StatusProofread,
	StatusProofread: StatusCurated,
	StatusCurated:   StatusPublished,
}

// CanTransition reports whether from → to is allowed. Each status advances
// one step, and any reviewed status may be flagged back to new.
func CanTransition(from, to Status) bool {
	if forward[from] == to {
		return true
	}
	return to == StatusNew && from != StatusNew && from.Valid()
}

// Transition moves e to the next status or returns a conflict.
func Transition(e *Encounter, to Status) error {
	if !to.Valid() {
		return errors.NewValidationError("status", to, "unknown status")
	}
	if !CanTransition(e.Status, to) {
		return errors.NewConflictError("encounter", fmt.Sprint(e.ID),
			fmt.Sprintf("cannot move from %s to %s", e.Status, to))
	}
	e.Status = to
	return nil
}
