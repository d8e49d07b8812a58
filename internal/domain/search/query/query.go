// Package query models the backend-neutral query specification:
// a predicate tree plus sorts, facets, projections, tenant and named
// filters, and pagination bounds. A Spec is immutable once built.
package query

import (
	"fmt"

	"github.com/kailas-cloud/textdex/internal/domain/geo"
	"github.com/kailas-cloud/textdex/internal/domain/search/facet"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
)

// Projection constants accepted alongside plain field names.
const (
	ProjectionID       = "__id"
	ProjectionScore    = "__score"
	ProjectionSource   = "__source"
	ProjectionDistance = "__distance"
	ProjectionIndex    = "__index"
)

// SortKind discriminates sort clauses.
type SortKind int

const (
	// ByField sorts on a document field value.
	ByField SortKind = iota
	// ByScore sorts on relevance score.
	ByScore
	// ByDistance sorts on distance from the spatial center.
	ByDistance
)

// Sort is one sort clause.
type Sort struct {
	Kind       SortKind
	Field      string // set for ByField and ByDistance
	Descending bool
}

// NamedFilter is a caller-enabled filter instance identified by name.
type NamedFilter struct {
	Name      string
	Predicate predicate.Node
}

// Params collects the inputs for building a Spec.
type Params struct {
	Types        []string
	Predicate    *predicate.Node
	Sorts        []Sort
	Center       *geo.Point
	SpatialField string
	Facets       []facet.Request
	Projections  []string
	Tenant       string
	NamedFilters []NamedFilter
	First        int
	Max          *int
}

// Spec is a validated, immutable query specification.
type Spec struct {
	types        []string
	pred         *predicate.Node
	sorts        []Sort
	center       *geo.Point
	spatialField string
	facets       []facet.Request
	projections  []string
	tenant       string
	namedFilters []NamedFilter
	first        int
	max          *int
}

// New validates the parameters and creates a Spec.
func New(p Params) (Spec, error) {
	if len(p.Types) == 0 {
		return Spec{}, fmt.Errorf("query requires at least one target type")
	}
	if p.First < 0 {
		return Spec{}, fmt.Errorf("first result offset must be >= 0, got %d", p.First)
	}
	if p.Max != nil && *p.Max < 0 {
		return Spec{}, fmt.Errorf("max results must be >= 0, got %d", *p.Max)
	}
	names := make(map[string]struct{}, len(p.Facets))
	for _, fr := range p.Facets {
		if _, dup := names[fr.Name()]; dup {
			return Spec{}, fmt.Errorf("duplicate facet request %q", fr.Name())
		}
		names[fr.Name()] = struct{}{}
	}
	for _, s := range p.Sorts {
		switch s.Kind {
		case ByField:
			if s.Field == "" {
				return Spec{}, fmt.Errorf("field sort requires a field")
			}
		case ByDistance:
			if p.Center == nil {
				return Spec{}, fmt.Errorf("distance sort requires a spatial center")
			}
		case ByScore:
		}
	}
	if p.Center != nil {
		if !p.Center.Valid() {
			return Spec{}, fmt.Errorf("invalid spatial center %+v", *p.Center)
		}
		if p.SpatialField == "" {
			return Spec{}, fmt.Errorf("spatial center requires a spatial field")
		}
	}
	return Spec{
		types:        append([]string(nil), p.Types...),
		pred:         p.Predicate,
		sorts:        append([]Sort(nil), p.Sorts...),
		center:       p.Center,
		spatialField: p.SpatialField,
		facets:       append([]facet.Request(nil), p.Facets...),
		projections:  append([]string(nil), p.Projections...),
		tenant:       p.Tenant,
		namedFilters: append([]NamedFilter(nil), p.NamedFilters...),
		first:        p.First,
		max:          p.Max,
	}, nil
}

// Types returns the targeted entity type names.
func (s Spec) Types() []string { return s.types }

// Predicate returns the user predicate tree, nil if absent.
func (s Spec) Predicate() *predicate.Node { return s.pred }

// Sorts returns the sort clauses in order.
func (s Spec) Sorts() []Sort { return s.sorts }

// Center returns the spatial center, nil if none was set.
func (s Spec) Center() *geo.Point { return s.center }

// SpatialField returns the field holding document coordinates.
func (s Spec) SpatialField() string { return s.spatialField }

// Facets returns the facet requests in declaration order.
func (s Spec) Facets() []facet.Request { return s.facets }

// Projections returns the projected field names.
func (s Spec) Projections() []string { return s.projections }

// Tenant returns the tenant identifier, empty if single-tenant.
func (s Spec) Tenant() string { return s.tenant }

// NamedFilters returns the enabled filter instances.
func (s Spec) NamedFilters() []NamedFilter { return s.namedFilters }

// First returns the first-result offset.
func (s Spec) First() int { return s.first }

// Max returns the max-results ceiling, nil if unbounded.
func (s Spec) Max() *int { return s.max }

// DistanceSortIndex returns the position of the first distance sort
// clause, or -1 if the results are not sorted by distance.
func (s Spec) DistanceSortIndex() int {
	for i, c := range s.sorts {
		if c.Kind == ByDistance {
			return i
		}
	}
	return -1
}
