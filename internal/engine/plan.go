package engine

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain"
	"github.com/kailas-cloud/textdex/internal/domain/search/facet"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
	"github.com/kailas-cloud/textdex/internal/domain/search/query"
	"github.com/kailas-cloud/textdex/internal/mapping"
)

// Reserved document fields contributed by the indexing pipeline.
const (
	typeField   = "_type"
	tenantField = "_tenant_id"
)

// Plan is the immutable snapshot of everything needed to execute one
// query: the resolved connection, the built request, and the facet
// requests paired with their validated field metadata. Built once per
// query object and never mutated.
type Plan struct {
	empty             bool
	conn              backend.Connection
	req               *backend.Request
	spec              query.Spec
	bindings          []mapping.Binding
	distanceSortIndex int
}

// BuildPlan resolves the targeted index set and constructs the backend
// request. All configuration errors (unknown type, mixed backends,
// unsortable sort field, facet on a non-facetable field, unsupported
// projection) surface here, before any network call.
func BuildPlan(
	spec query.Spec,
	registry *mapping.Registry,
	connections map[string]backend.Connection,
) (*Plan, error) {
	bindings := make([]mapping.Binding, 0, len(spec.Types()))
	indices := make([]string, 0, len(spec.Types()))
	indexSeen := make(map[string]struct{})
	connName := ""

	for _, typeName := range spec.Types() {
		b, ok := registry.ByType(typeName)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownType, typeName)
		}
		bindings = append(bindings, b)
		if b.IndexName() == "" {
			continue
		}
		if connName == "" {
			connName = b.Connection()
		} else if connName != b.Connection() {
			return nil, fmt.Errorf("%w: %q and %q", domain.ErrMixedBackends, connName, b.Connection())
		}
		if _, dup := indexSeen[b.IndexName()]; !dup {
			indexSeen[b.IndexName()] = struct{}{}
			indices = append(indices, b.IndexName())
		}
	}

	// Zero resolved indices: sending the request anyway would match
	// every index on the backend. Signal a no-op instead.
	if len(indices) == 0 {
		return &Plan{empty: true, spec: spec, bindings: bindings, distanceSortIndex: -1}, nil
	}

	conn, ok := connections[connName]
	if !ok {
		return nil, fmt.Errorf("no backend connection named %q", connName)
	}

	req := &backend.Request{Indices: indices}

	// (a) type restriction: OR over all targeted type names.
	typeFilter, err := typeRestriction(spec.Types())
	if err != nil {
		return nil, err
	}

	// (b) optional tenant restriction.
	filters := []predicate.Node{typeFilter}
	if tenant := spec.Tenant(); tenant != "" {
		tf, err := predicate.Term(tenantField, tenant)
		if err != nil {
			return nil, fmt.Errorf("tenant filter: %w", err)
		}
		filters = append(filters, tf)
	}

	// (c) named filter instances join the conjunction.
	for _, nf := range spec.NamedFilters() {
		filters = append(filters, nf.Predicate)
	}

	var must []predicate.Node
	if p := spec.Predicate(); p != nil {
		must = append(must, *p)
	}
	req.Query = predicate.Bool(must, filters, nil, nil)

	// (d) projected fields and distance-sort bookkeeping.
	fields, err := projectedFields(spec, bindings)
	if err != nil {
		return nil, err
	}
	req.Fields = fields

	// (e) facet aggregations, keyed by deterministic names.
	for _, fr := range spec.Facets() {
		if err := validateFacetField(fr, bindings); err != nil {
			return nil, err
		}
		req.Aggregations = append(req.Aggregations, facetAggregations(fr)...)
	}

	// (f) sorts last, after validating sortability.
	sorts, err := buildSorts(spec, bindings)
	if err != nil {
		return nil, err
	}
	req.Sorts = sorts

	return &Plan{
		conn:              conn,
		req:               req,
		spec:              spec,
		bindings:          bindings,
		distanceSortIndex: spec.DistanceSortIndex(),
	}, nil
}

// Empty reports whether the query resolved to zero target indices.
func (p *Plan) Empty() bool { return p.empty }

// Connection returns the single backend connection serving the query.
func (p *Plan) Connection() backend.Connection { return p.conn }

// Request returns the built request. Nil for empty plans.
func (p *Plan) Request() *backend.Request { return p.req }

// Spec returns the originating query specification.
func (p *Plan) Spec() query.Spec { return p.spec }

// Bindings returns the targeted entity bindings.
func (p *Plan) Bindings() []mapping.Binding { return p.bindings }

// DistanceSortIndex returns the position of the distance sort clause in
// the request's sort list, -1 when absent.
func (p *Plan) DistanceSortIndex() int { return p.distanceSortIndex }

// Describe renders a diagnostic summary of the plan.
func (p *Plan) Describe() string {
	if p.empty {
		return `{"empty":true}`
	}
	summary := map[string]any{
		"connection": p.conn.Name,
		"indices":    p.req.Indices,
		"sorts":      len(p.req.Sorts),
		"aggs":       len(p.req.Aggregations),
	}
	b, err := json.Marshal(summary)
	if err != nil {
		return fmt.Sprintf("%+v", summary)
	}
	return string(b)
}

func typeRestriction(types []string) (predicate.Node, error) {
	if len(types) == 1 {
		return predicate.Term(typeField, types[0])
	}
	return predicate.Terms(typeField, types...)
}

// projectedFields validates projection names and returns the source
// fields the backend should return. Projection constants resolve to
// hit metadata, not source fields; the spatial field is appended when
// a distance projection or sort needs document coordinates.
func projectedFields(spec query.Spec, bindings []mapping.Binding) ([]string, error) {
	var fields []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			fields = append(fields, name)
		}
	}

	needsSource := false
	for _, name := range spec.Projections() {
		switch name {
		case query.ProjectionID, query.ProjectionScore, query.ProjectionIndex:
		case query.ProjectionSource:
			needsSource = true
		case query.ProjectionDistance:
			if spec.Center() == nil {
				return nil, fmt.Errorf("%w: distance projection requires a spatial center", domain.ErrUnsupportedProjection)
			}
		default:
			if len(name) > 1 && name[0] == '_' && name[1] == '_' {
				return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProjection, name)
			}
			if err := requireField(name, bindings, nil); err != nil {
				return nil, err
			}
			add(name)
		}
	}
	// No field restriction (or the whole source was asked for
	// explicitly): let the backend return the full source.
	if needsSource || len(fields) == 0 {
		return nil, nil
	}
	if spec.SpatialField() != "" && (spec.DistanceSortIndex() >= 0 || hasDistanceProjection(spec)) {
		add(spec.SpatialField())
	}
	return fields, nil
}

func hasDistanceProjection(spec query.Spec) bool {
	for _, p := range spec.Projections() {
		if p == query.ProjectionDistance {
			return true
		}
	}
	return false
}

// requireField checks that every targeted binding declares the field,
// optionally enforcing a per-field predicate.
func requireField(name string, bindings []mapping.Binding, check func(mapping.Field) error) error {
	for _, b := range bindings {
		f, ok := b.Field(name)
		if !ok {
			return fmt.Errorf("%w: %q on type %q", domain.ErrUnknownField, name, b.TypeName())
		}
		if check != nil {
			if err := check(f); err != nil {
				return fmt.Errorf("%w on type %q", err, b.TypeName())
			}
		}
	}
	return nil
}

func validateFacetField(fr facet.Request, bindings []mapping.Binding) error {
	return requireField(fr.Field(), bindings, func(f mapping.Field) error {
		if !f.Facetable {
			return fmt.Errorf("%w: %q (facet %q)", domain.ErrNotFacetable, fr.Field(), fr.Name())
		}
		return nil
	})
}

// facetAggregations renders one facet request into its aggregation
// clauses. Discrete facets map to a single terms aggregation named by
// the request; every range of a range facet gets its own count
// aggregation named <facetName>-<rangeID>.
func facetAggregations(fr facet.Request) []backend.Aggregation {
	if fr.Kind() == facet.KindDiscrete {
		minDoc := 1
		if fr.IncludeZeroCounts() {
			minDoc = 0
		}
		return []backend.Aggregation{{
			Name:        fr.Name(),
			Field:       fr.Field(),
			Kind:        backend.AggTerms,
			Size:        fr.MaxCount(),
			MinDocCount: minDoc,
			Order:       termsOrder(fr.Sort()),
		}}
	}

	aggs := make([]backend.Aggregation, 0, len(fr.Ranges()))
	for _, r := range fr.Ranges() {
		aggs = append(aggs, backend.Aggregation{
			Name:       fr.Name() + "-" + r.ID(),
			Field:      fr.Field(),
			Kind:       backend.AggRangeCount,
			Min:        r.Min(),
			Max:        r.Max(),
			IncludeMin: r.IncludeMin(),
			IncludeMax: r.IncludeMax(),
		})
	}
	return aggs
}

func termsOrder(o facet.Order) string {
	switch o {
	case facet.CountAsc:
		return "count_asc"
	case facet.ValueAsc:
		return "value_asc"
	case facet.ValueDesc:
		return "value_desc"
	default:
		return "count_desc"
	}
}

func buildSorts(spec query.Spec, bindings []mapping.Binding) ([]backend.Sort, error) {
	if len(spec.Sorts()) == 0 {
		return nil, nil
	}
	sorts := make([]backend.Sort, 0, len(spec.Sorts()))
	for _, s := range spec.Sorts() {
		switch s.Kind {
		case query.ByScore:
			sorts = append(sorts, backend.Sort{Kind: backend.SortByScore, Descending: s.Descending})
		case query.ByField:
			err := requireField(s.Field, bindings, func(f mapping.Field) error {
				if !f.Sortable {
					return fmt.Errorf("%w: %q", domain.ErrUnsortableField, s.Field)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			sorts = append(sorts, backend.Sort{Kind: backend.SortByField, Field: s.Field, Descending: s.Descending})
		case query.ByDistance:
			center := spec.Center()
			sorts = append(sorts, backend.Sort{
				Kind:       backend.SortByDistance,
				Field:      spec.SpatialField(),
				Descending: s.Descending,
				Lat:        center.Lat,
				Lon:        center.Lon,
			})
		}
	}
	return sorts, nil
}
