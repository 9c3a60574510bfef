package taxonomy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/biorecords/biorecords/pkg/errors"
)

// Rank is a taxonomic rank. Higher values are more specific.
type Rank int

// Taxonomic ranks.
const (
	RankThing       Rank = 0
	RankDomain      Rank = 5
	RankCommunity   Rank = 7
	RankKingdom     Rank = 10
	RankSubkingdom  Rank = 20
	RankDivision    Rank = 30
	RankSubdivision Rank = 40
	RankClass       Rank = 50
	RankSubclass    Rank = 60
	RankOrder       Rank = 70
	RankSuborder    Rank = 80
	RankFamily      Rank = 90
	RankSubfamily   Rank = 100
	RankTribe       Rank = 110
	RankSubtribe    Rank = 120
	RankGenus       Rank = 130
	RankSubgenus    Rank = 140
	RankSection     Rank = 150
	RankSubsection  Rank = 160
	RankSeries      Rank = 170
	RankSubseries   Rank = 180
	RankSpecies     Rank = 190
	RankSubspecies  Rank = 200
	RankVariety     Rank = 210
	RankSubvariety  Rank = 220
	RankForma       Rank = 230
	RankSubforma    Rank = 240
)

var rankNames = map[Rank]string{
	RankThing:       "Thing",
	RankDomain:      "Domain",
	RankCommunity:   "Community",
	RankKingdom:     "Kingdom",
	RankSubkingdom:  "Subkingdom",
	RankDivision:    "Division",
	RankSubdivision: "Subdivision",
	RankClass:       "Class",
	RankSubclass:    "Subclass",
	RankOrder:       "Order",
	RankSuborder:    "Suborder",
	RankFamily:      "Family",
	RankSubfamily:   "Subfamily",
	RankTribe:       "Tribe",
	RankSubtribe:    "Subtribe",
	RankGenus:       "Genus",
	RankSubgenus:    "Subgenus",
	RankSection:     "Section",
	RankSubsection:  "Subsection",
	RankSeries:      "Series",
	RankSubseries:   "Subseries",
	RankSpecies:     "Species",
	RankSubspecies:  "Subspecies",
	RankVariety:     "Variety",
	RankSubvariety:  "Subvariety",
	RankForma:       "Forma",
	RankSubforma:    "Subforma",
}

// Infraspecific rank abbreviations used in canonical names.
var rankAbbreviations = map[Rank]string{
	RankSubspecies: "subsp.",
	RankVariety:    "var.",
	RankSubvariety: "subvar.",
	RankForma:      "forma",
	RankSubforma:   "subf.",
}

// String returns the display name of the rank.
func (r Rank) String() string {
	if name, ok := rankNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Rank(%d)", int(r))
}

// Abbreviation returns the infraspecific abbreviation, or "" for ranks
// that have none.
func (r Rank) Abbreviation() string {
	return rankAbbreviations[r]
}

// Valid reports whether r is a known rank.
func (r Rank) Valid() bool {
	_, ok := rankNames[r]
	return ok
}

// Ranks returns all known ranks in ascending order.
func Ranks() []Rank {
	ranks := make([]Rank, 0, len(rankNames))
	for r := range rankNames {
		ranks = append(ranks, r)
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })
	return ranks
}

// ParseRank parses a numeric rank or a case-insensitive display name.
func ParseRank(s string) (Rank, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		r := Rank(n)
		if !r.Valid() {
			return 0, errors.NewValidationError("rank", s, "unknown rank")
		}
		return r, nil
	}
	for r, name := range rankNames {
		if strings.EqualFold(name, s) {
			return r, nil
		}
	}
	return 0, errors.NewValidationError("rank", s, "unknown rank")
}

// PublicationStatus describes how formally a name has been published.
type PublicationStatus int

// Publication statuses.
const (
	PublicationPhraseName     PublicationStatus = 0
	PublicationManuscriptName PublicationStatus = 1
	PublicationPublishedName  PublicationStatus = 2
)

// String returns the display name.
func (p PublicationStatus) String() string {
	switch p {
	case PublicationPhraseName:
		return "Phrase Name"
	case PublicationManuscriptName:
		return "Manuscript Name"
	case PublicationPublishedName:
		return "Published Name"
	default:
		return fmt.Sprintf("PublicationStatus(%d)", int(p))
	}
}

// Valid reports whether p is a known status.
func (p PublicationStatus) Valid() bool {
	return p >= PublicationPhraseName && p <= PublicationPublishedName
}
