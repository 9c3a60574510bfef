package taxonomy

import (
	"fmt"
	"sort"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
)

// Reason explains why one name succeeds another.
type Reason int

// Crossreference reasons.
const (
	ReasonMisapplied           Reason = 0
	ReasonTaxonomicSynonym     Reason = 1
	ReasonNomenclaturalSynonym Reason = 2
	ReasonExcluded             Reason = 3
	ReasonConceptChange        Reason = 4
	ReasonFormalDescription    Reason = 5
	ReasonOrthographicVariant  Reason = 6
	ReasonNameInError          Reason = 7
	ReasonInformalSynonym      Reason = 8
)

var reasonNames = [...]string{
	ReasonMisapplied:           "Misapplied name",
	ReasonTaxonomicSynonym:     "Taxonomic synonym",
	ReasonNomenclaturalSynonym: "Nomenclatural synonym",
	ReasonExcluded:             "Excluded name",
	ReasonConceptChange:        "Concept change",
	ReasonFormalDescription:    "Formal description",
	ReasonOrthographicVariant:  "Orthographic variant",
	ReasonNameInError:          "Name in error",
	ReasonInformalSynonym:      "Informal Synonym",
}

// String returns the display name.
func (r Reason) String() string {
	if r.Valid() {
		return reasonNames[r]
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	return r >= 0 && int(r) < len(reasonNames)
}

// Crossreference links a predecessor name to its successor.
type Crossreference struct {
	ID            int64      `json:"id" yaml:"id,omitempty"`
	XrefID        int64      `json:"xref_id" yaml:"xref_id"`
	PredecessorID *int64     `json:"predecessor" yaml:"predecessor,omitempty"`
	SuccessorID   *int64     `json:"successor" yaml:"successor,omitempty"`
	Reason        Reason     `json:"reason" yaml:"reason"`
	AuthorisedBy  string     `json:"authorised_by" yaml:"authorised_by,omitempty"`
	AuthorisedOn  *time.Time `json:"authorised_on" yaml:"authorised_on,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to" yaml:"effective_to,omitempty"`
	Comments      string     `json:"comments" yaml:"comments,omitempty"`
}

// NewCrossreference returns a crossreference with the default reason.
func NewCrossreference(xrefID int64) *Crossreference {
	return &Crossreference{XrefID: xrefID, Reason: ReasonNameInError}
}

// String renders "[pre > suc] Reason" with "x" for a missing side.
func (x *Crossreference) String() string {
	side := func(id *int64) string {
		if id == nil {
			return "x"
		}
		return fmt.Sprintf("%d", *id)
	}
	return fmt.Sprintf("[%s > %s] %s", side(x.PredecessorID), side(x.SuccessorID), x.Reason)
}

// Validate checks the reason code.
func (x *Crossreference) Validate() error {
	if !x.Reason.Valid() {
		return errors.NewValidationError("reason", int(x.Reason), "unknown reason")
	}
	return nil
}

// InvolvedTaxonIDs returns the sorted union of the given lineages. Callers
// pass the ancestor-or-self ids of the predecessor and successor.
func InvolvedTaxonIDs(lineages ...[]int64) []int64 {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, lineage := range lineages {
		for _, id := range lineage {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
