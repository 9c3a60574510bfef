package taxonomy

import (
	"fmt"
	"strings"

	"github.com/biorecords/biorecords/pkg/errors"
)

// Language of a vernacular name.
type Language int

// Languages.
const (
	LanguageEnglish    Language = 0
	LanguageIndigenous Language = 1
)

// String returns the display name.
func (l Language) String() string {
	switch l {
	case LanguageEnglish:
		return "English"
	case LanguageIndigenous:
		return "Indigenous"
	default:
		return fmt.Sprintf("Language(%d)", int(l))
	}
}

// Vernacular is a common name of a taxon.
type Vernacular struct {
	ID        int64    `json:"id" yaml:"id,omitempty"`
	OgcFID    int64    `json:"ogc_fid" yaml:"ogc_fid"`
	TaxonID   int64    `json:"taxon" yaml:"taxon"`
	Name      string   `json:"name" yaml:"name"`
	Language  Language `json:"language" yaml:"language"`
	Preferred bool     `json:"preferred" yaml:"preferred"`
}

// String renders "name (Language)".
func (v *Vernacular) String() string {
	return fmt.Sprintf("%s (%s)", v.Name, v.Language)
}

// Validate checks required fields.
func (v *Vernacular) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.NewValidationError("name", v.Name, "is required")
	}
	if v.Language != LanguageEnglish && v.Language != LanguageIndigenous {
		return errors.NewValidationError("language", int(v.Language), "unknown language")
	}
	return nil
}

// BuildVernacularName returns the preferred English name, else the first
// English name, else the first name of any language. Vernaculars must be
// in insertion order.
func BuildVernacularName(vv []*Vernacular) string {
	var firstEnglish *Vernacular
	for _, v := range vv {
		if v.Language != LanguageEnglish {
			continue
		}
		if v.Preferred {
			return v.Name
		}
		if firstEnglish == nil {
			firstEnglish = v
		}
	}
	if firstEnglish != nil {
		return firstEnglish.Name
	}
	if len(vv) > 0 {
		return vv[0].Name
	}
	return ""
}

// BuildVernacularNames joins all non-empty vernacular names.
func BuildVernacularNames(vv []*Vernacular) string {
	names := make([]string, 0, len(vv))
	for _, v := range vv {
		if v.Name != "" {
			names = append(names, v.Name)
		}
	}
	return strings.Join(names, ", ")
}
