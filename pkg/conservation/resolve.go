package conservation

import (
	"sort"
	"time"
)

// SubjectStatus is the resolved conservation status of a taxon or
// community, derived from its listings.
type SubjectStatus struct {
	ActiveConservationListingState    *Listing `json:"active_conservation_listing_state"`
	ActiveConservationListingNational *Listing `json:"active_conservation_listing_national"`
	IsCurrentlyListed                 bool     `json:"is_currently_listed"`
	ConservationCodeState             *string  `json:"conservation_code_state"`
	ConservationListState             *string  `json:"conservation_list_state"`
	ConservationCategoryState         *string  `json:"conservation_category_state"`
	ConservationCategoriesState       *string  `json:"conservation_categories_state"`
	ConservationCriteriaState         *string  `json:"conservation_criteria_state"`
	ConservationCategoryNational      *string  `json:"conservation_category_national"`
}

// Active filters listings that are listed and unexpired, ordered by id.
func Active(listings []*Listing, now time.Time) []*Listing {
	out := make([]*Listing, 0, len(listings))
	for _, l := range listings {
		if l.IsActive(now) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FirstActive returns the first active listing in the given scope, or nil.
func FirstActive(listings []*Listing, scope Scope, now time.Time) *Listing {
	for _, l := range Active(listings, now) {
		if l.Scope == scope {
			return l
		}
	}
	return nil
}

// Resolve derives the subject status from all of its listings.
func (c *Catalog) Resolve(listings []*Listing, now time.Time) SubjectStatus {
	state := FirstActive(listings, ScopeWesternAustralia, now)
	national := FirstActive(listings, ScopeCommonwealth, now)

	status := SubjectStatus{
		ActiveConservationListingState:    state,
		ActiveConservationListingNational: national,
		IsCurrentlyListed:                 len(Active(listings, now)) > 0,
	}

	if state != nil {
		status.ConservationCodeState = strPtr(state.CategoryCache)
		status.ConservationCategoriesState = strPtr(state.CategoryCache)
		status.ConservationCriteriaState = strPtr(state.CriteriaCache)
		if primary := c.PrimaryCategory(state); primary != nil {
			status.ConservationCategoryState = strPtr(primary.Code)
			if list, ok := c.Lists[primary.ListID]; ok {
				status.ConservationListState = strPtr(list.Code)
			}
		}
	}
	if national != nil {
		if primary := c.PrimaryCategory(national); primary != nil {
			status.ConservationCategoryNational = strPtr(primary.Code)
		}
	}
	return status
}

func strPtr(s string) *string {
	return &s
}
