// Package schema implements the polymorphic observation type system.
//
// Observations of every kind share one storage shape: an encounter
// reference, an obstype discriminator and a bag of typed fields. Each
// obstype declares its fields once in a Type, and the Registry dispatches
// incoming payloads to the right Type for coercion and validation.
package schema

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/biorecords/biorecords/pkg/errors"
)

// Domain groups obstypes by the encounter family they attach to.
type Domain string

// Domains.
const (
	// DomainOccurrence types attach to area encounters.
	DomainOccurrence Domain = "occurrence"
	// DomainObservations types attach to field encounters.
	DomainObservations Domain = "observations"
)

// Kind is the value kind of a field.
type Kind string

// Field kinds.
const (
	KindString   Kind = "string"
	KindText     Kind = "text"
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindBool     Kind = "bool"
	KindDate     Kind = "date"
	KindDateTime Kind = "datetime"
	KindChoice   Kind = "choice"
	KindLookup   Kind = "lookup"
	KindLookups  Kind = "lookups"
	KindTaxon    Kind = "taxon"
	KindUser     Kind = "user"
	KindFile     Kind = "file"
)

// Field declares one typed field of an obstype.
type Field struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Required bool     `json:"required,omitempty"`
	Choices  []string `json:"choices,omitempty"`
	// Lookup names the lookup table for lookup and lookups fields.
	Lookup  string   `json:"lookup,omitempty"`
	Default any      `json:"default,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

// Type declares an obstype.
type Type struct {
	Name   string  `json:"name"`
	Label  string  `json:"label"`
	Domain Domain  `json:"domain"`
	Fields []Field `json:"fields"`
}

// Field returns the named field.
func (t *Type) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Resolver checks references that live in the store.
type Resolver interface {
	LookupExists(ctx context.Context, table, code string) (bool, error)
	TaxonExists(ctx context.Context, nameID int64) (bool, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	AttachmentExists(ctx context.Context, id int64) (bool, error)
}

// Registry holds obstypes keyed by case-insensitive name.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Register adds t. Names are unique across domains.
func (r *Registry) Register(t Type) error {
	key := strings.ToLower(t.Name)
	if key == "" {
		return errors.NewValidationError("name", t.Name, "obstype name is required")
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if seen[f.Name] {
			return errors.NewValidationError(f.Name, t.Name, "duplicate field")
		}
		if reservedFields[f.Name] {
			return errors.NewValidationError(f.Name, t.Name, "field name is reserved")
		}
		seen[f.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[key]; ok {
		return errors.NewConflictError("obstype", t.Name, "already registered")
	}
	r.types[key] = &t
	return nil
}

// MustRegister registers types and panics on error. It is meant for
// package level registration of built-in types.
func (r *Registry) MustRegister(types ...Type) {
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Lookup finds an obstype by name, ignoring case.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Resolve finds an obstype within a domain, returning a validation error
// for unknown or foreign types.
func (r *Registry) Resolve(domain Domain, name string) (*Type, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.NewValidationError("obstype", name, "is required")
	}
	t, ok := r.Lookup(name)
	if !ok || t.Domain != domain {
		return nil, errors.NewValidationError("obstype", name, "unknown observation type")
	}
	return t, nil
}

// Types returns the types of a domain sorted by name. An empty domain
// returns all types.
func (r *Registry) Types(domain Domain) []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Type, 0, len(r.types))
	for _, t := range r.types {
		if domain == "" || t.Domain == domain {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// reservedFields are envelope keys handled outside the typed data.
var reservedFields = map[string]bool{
	"id":                  true,
	"obstype":             true,
	"encounter":           true,
	"source":              true,
	"source_id":           true,
	"created_at":          true,
	"updated_at":          true,
	"format":              true,
	"csrfmiddlewaretoken": true,
}

// IsReserved reports whether key is an envelope key rather than a typed field.
func IsReserved(key string) bool {
	return reservedFields[key]
}

// Names returns the type names of a domain, sorted.
func (r *Registry) Names(domain Domain) []string {
	types := r.Types(domain)
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.Name
	}
	return out
}

// Decode resolves the named type within domain and decodes raw with it.
// The returned type carries the canonical obstype name.
func (r *Registry) Decode(ctx context.Context, domain Domain, name string, raw map[string]any, res Resolver) (*Type, Data, error) {
	t, err := r.Resolve(domain, name)
	if err != nil {
		return nil, nil, err
	}
	data, err := t.Decode(ctx, raw, res)
	if err != nil {
		return nil, nil, err
	}
	return t, data, nil
}
