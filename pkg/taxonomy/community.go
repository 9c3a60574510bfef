package taxonomy

import (
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/geo"
)

// Community is an ecological community, identified by its code.
type Community struct {
	ID          int64        `json:"id" yaml:"id,omitempty"`
	Code        string       `json:"code" yaml:"code"`
	Name        string       `json:"name" yaml:"name,omitempty"`
	Description string       `json:"description" yaml:"description,omitempty"`
	EOO         geo.Geometry `json:"eoo" yaml:"eoo,omitempty"`
	Source      int          `json:"source" yaml:"source,omitempty"`
	SourceID    string       `json:"source_id" yaml:"source_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time    `json:"updated_at" yaml:"-"`
}

// String returns the community code.
func (c *Community) String() string {
	return c.Code
}

// Validate checks required fields.
func (c *Community) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return errors.NewValidationError("code", c.Code, "is required")
	}
	if !c.EOO.IsZero() && c.EOO.Type() != geo.TypePolygon {
		return errors.NewValidationError("eoo", c.EOO.Type(), "extent of occurrence must be a polygon")
	}
	return nil
}
