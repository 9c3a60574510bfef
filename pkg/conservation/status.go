package conservation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
)

// ListingStatus is the approval workflow state of a listing.
type ListingStatus int

// Listing statuses, in workflow order.
const (
	StatusProposed                 ListingStatus = 0
	StatusInReviewExperts          ListingStatus = 10
	StatusInReviewPanel            ListingStatus = 20
	StatusInReviewBranchManager    ListingStatus = 30
	StatusInReviewDivisionDirector ListingStatus = 40
	StatusInReviewDirector         ListingStatus = 50
	StatusInReviewMinister         ListingStatus = 60
	StatusListed                   ListingStatus = 70
	StatusRejected                 ListingStatus = 80
	StatusDelisted                 ListingStatus = 90
	StatusClosed                   ListingStatus = 100
)

var statusNames = map[ListingStatus]string{
	StatusProposed:                 "Proposed",
	StatusInReviewExperts:          "In review with experts",
	StatusInReviewPanel:            "In review with panel",
	StatusInReviewBranchManager:    "In review with branch manager",
	StatusInReviewDivisionDirector: "In review with division director",
	StatusInReviewDirector:         "In review with director",
	StatusInReviewMinister:         "In review with minister",
	StatusListed:                   "Listed",
	StatusRejected:                 "Rejected",
	StatusDelisted:                 "De-listed",
	StatusClosed:                   "Closed",
}

// String returns the display name.
func (s ListingStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ListingStatus(%d)", int(s))
}

// Valid reports whether s is a known status.
func (s ListingStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// InReview reports whether s is a review stage.
func (s ListingStatus) InReview() bool {
	return s >= StatusInReviewExperts && s <= StatusInReviewMinister
}

// CanTransition reports whether a listing may move from s to next on a
// list requiring the given approval level.
func (s ListingStatus) CanTransition(next ListingStatus, approval ApprovalLevel) bool {
	if !next.Valid() || next == s {
		return false
	}
	switch {
	case s == StatusProposed || s.InReview():
		switch {
		case next.InReview():
			return next > s
		case next == StatusListed:
			return s >= approval.RequiredStatus()
		case next == StatusRejected, next == StatusClosed:
			return true
		}
	case s == StatusListed:
		return next == StatusDelisted || next == StatusClosed
	case s == StatusRejected, s == StatusDelisted:
		return next == StatusClosed
	}
	return false
}

// Transition moves l to next, stamping effective dates. Listing sets
// EffectiveFrom when absent. De-listing and closing set EffectiveTo.
func Transition(l *Listing, next ListingStatus, approval ApprovalLevel, now time.Time) error {
	if !l.Status.CanTransition(next, approval) {
		return errors.NewConflictError("listing", strconv.FormatInt(l.ID, 10),
			fmt.Sprintf("cannot move from %q to %q", l.Status, next))
	}
	l.Status = next
	switch next {
	case StatusListed:
		if l.EffectiveFrom == nil {
			t := now
			l.EffectiveFrom = &t
		}
		l.EffectiveTo = nil
	case StatusDelisted, StatusClosed:
		if l.EffectiveTo == nil || l.EffectiveTo.After(now) {
			t := now
			l.EffectiveTo = &t
		}
	}
	return nil
}

// ParseListingStatus accepts a status code or its display name.
func ParseListingStatus(s string) (ListingStatus, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if st := ListingStatus(n); st.Valid() {
			return st, nil
		}
		return 0, errors.NewValidationError("status", s, "unknown listing status")
	}
	for st, name := range statusNames {
		if strings.EqualFold(name, s) {
			return st, nil
		}
	}
	return 0, errors.NewValidationError("status", s, "unknown listing status")
}
