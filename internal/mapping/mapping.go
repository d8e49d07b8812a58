// Package mapping holds entity-binding metadata: which index an entity
// type lives in, on which backend connection, and how its raw document
// fields convert back into typed Go values.
package mapping

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/textdex/internal/domain"
)

// FieldKind is the declared value kind of an indexed field.
type FieldKind int

const (
	// Keyword is an exact-match string field.
	Keyword FieldKind = iota
	// Text is an analyzed full-text string field.
	Text
	// Int is an integer field.
	Int
	// Float is a floating-point field.
	Float
	// Bool is a boolean field.
	Bool
	// Time is a date/time field, stored as RFC 3339 or epoch milliseconds.
	Time
	// Geo is a coordinate field stored as "lat,lon".
	Geo
)

// String returns the kind name.
func (k FieldKind) String() string {
	switch k {
	case Keyword:
		return "keyword"
	case Text:
		return "text"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Time:
		return "time"
	case Geo:
		return "geo"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind resolves a kind by its lowercase name.
func ParseKind(s string) (FieldKind, error) {
	switch s {
	case "keyword":
		return Keyword, nil
	case "text":
		return Text, nil
	case "int":
		return Int, nil
	case "float":
		return Float, nil
	case "bool":
		return Bool, nil
	case "time":
		return Time, nil
	case "geo":
		return Geo, nil
	default:
		return 0, fmt.Errorf("unknown field kind %q", s)
	}
}

// Numeric reports whether values of this kind lie on a numeric axis
// (and are therefore legal for range facets).
func (k FieldKind) Numeric() bool {
	return k == Int || k == Float || k == Time
}

// Field describes one indexed field of a bound entity type.
type Field struct {
	Name      string
	Kind      FieldKind
	Sortable  bool
	Facetable bool
}

// Convert turns a raw JSON-decoded value (string, float64, bool, nil)
// into the field's typed Go representation.
func (f Field) Convert(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch f.Kind {
	case Keyword, Text:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("field %s: expected string, got %T", f.Name, raw)
		}
		return s, nil
	case Int:
		switch v := raw.(type) {
		case float64:
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return n, nil
		}
		return nil, fmt.Errorf("field %s: expected number, got %T", f.Name, raw)
	case Float:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case string:
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return n, nil
		}
		return nil, fmt.Errorf("field %s: expected number, got %T", f.Name, raw)
	case Bool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("field %s: expected bool, got %T", f.Name, raw)
		}
		return b, nil
	case Time:
		switch v := raw.(type) {
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return t, nil
		case float64:
			return time.UnixMilli(int64(v)).UTC(), nil
		}
		return nil, fmt.Errorf("field %s: expected time, got %T", f.Name, raw)
	case Geo:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("field %s: expected \"lat,lon\" string, got %T", f.Name, raw)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("field %s: %w: %s", f.Name, domain.ErrUnknownField, f.Kind)
	}
}

// Binding ties one entity type to its physical index and field metadata.
type Binding struct {
	typeName   string
	indexName  string
	connection string
	fields     map[string]Field
}

// NewBinding validates and creates a binding. An empty index name marks
// a type that is mapped but not currently indexed anywhere; queries
// targeting only such types resolve to a no-op.
func NewBinding(typeName, indexName, connection string, fields []Field) (Binding, error) {
	if typeName == "" {
		return Binding{}, fmt.Errorf("binding requires a type name")
	}
	if indexName != "" && connection == "" {
		return Binding{}, fmt.Errorf("binding %s: indexed type requires a connection", typeName)
	}
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return Binding{}, fmt.Errorf("binding %s: field with empty name", typeName)
		}
		if _, dup := m[f.Name]; dup {
			return Binding{}, fmt.Errorf("binding %s: duplicate field %q", typeName, f.Name)
		}
		m[f.Name] = f
	}
	return Binding{typeName: typeName, indexName: indexName, connection: connection, fields: m}, nil
}

// TypeName returns the bound entity type name.
func (b Binding) TypeName() string { return b.typeName }

// IndexName returns the physical index name.
func (b Binding) IndexName() string { return b.indexName }

// Connection returns the backend connection name serving the index.
func (b Binding) Connection() string { return b.connection }

// Field looks up field metadata by name.
func (b Binding) Field(name string) (Field, bool) {
	f, ok := b.fields[name]
	return f, ok
}

// Registry resolves entity types to bindings, and hits back to types.
type Registry struct {
	byType  map[string]Binding
	byIndex map[indexTypeKey]Binding
}

type indexTypeKey struct {
	index    string
	typeName string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType:  make(map[string]Binding),
		byIndex: make(map[indexTypeKey]Binding),
	}
}

// Add registers a binding. Re-registering a type name is an error.
func (r *Registry) Add(b Binding) error {
	if _, dup := r.byType[b.typeName]; dup {
		return fmt.Errorf("type %q is already bound", b.typeName)
	}
	r.byType[b.typeName] = b
	if b.indexName != "" {
		r.byIndex[indexTypeKey{index: b.indexName, typeName: b.typeName}] = b
	}
	return nil
}

// ByType resolves a binding by entity type name.
func (r *Registry) ByType(typeName string) (Binding, bool) {
	b, ok := r.byType[typeName]
	return b, ok
}

// ByHit resolves the binding responsible for a raw hit by its index and
// type identifiers. A miss is a soft condition: the index may contain
// documents for types no longer mapped.
func (r *Registry) ByHit(indexName, typeName string) (Binding, bool) {
	b, ok := r.byIndex[indexTypeKey{index: indexName, typeName: typeName}]
	return b, ok
}
