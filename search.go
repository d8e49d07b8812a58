package textdex

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/textdex/internal/domain/geo"
	"github.com/kailas-cloud/textdex/internal/domain/search/facet"
	"github.com/kailas-cloud/textdex/internal/domain/search/query"
	"github.com/kailas-cloud/textdex/internal/engine"
)

// Projection constants accepted alongside plain field names.
const (
	ProjectionID       = query.ProjectionID
	ProjectionScore    = query.ProjectionScore
	ProjectionSource   = query.ProjectionSource
	ProjectionDistance = query.ProjectionDistance
)

// FacetOrder selects the ordering of facet values.
type FacetOrder string

const (
	FacetCountDesc       FacetOrder = "count_desc"
	FacetCountAsc        FacetOrder = "count_asc"
	FacetValueAsc        FacetOrder = "value_asc"
	FacetValueDesc       FacetOrder = "value_desc"
	FacetDefinitionOrder FacetOrder = "range_definition"
)

// FacetDef requests one facet over a field. Without Ranges it counts
// discrete values; with Ranges it counts documents per range.
type FacetDef struct {
	Name              string
	Field             string
	Order             FacetOrder
	IncludeZeroCounts bool
	MaxCount          int
	Ranges            []FacetRange
}

// FacetRange is one counted interval of a range facet.
type FacetRange struct {
	ID         string
	Label      string
	Min, Max   *float64
	IncludeMin bool
	IncludeMax bool
}

// FacetValue is one facet bucket: a label with its document count.
type FacetValue struct {
	Label string
	Count int
}

// Result is one typed search hit.
type Result struct {
	Type  string
	ID    string
	Score float64
	// Distance from the query center in meters, nil without a
	// distance sort or projection.
	Distance *float64
	// Fields holds converted projected field values.
	Fields map[string]any
	// Source is the raw document when the source projection was used.
	Source map[string]any
}

// Explanation describes how a hit's score was computed.
type Explanation struct {
	Value       float64
	Description string
	Details     []Explanation
}

// QueryBuilder is a fluent builder for search queries.
type QueryBuilder struct {
	client *Client
	types  []string

	pred         *Pred
	sorts        []query.Sort
	center       *geo.Point
	spatialField string
	facets       []FacetDef
	projections  []string
	tenant       string
	first        int
	max          *int

	err error
}

// Query sets the predicate; defaults to All when unset.
func (b *QueryBuilder) Query(p Pred) *QueryBuilder {
	b.pred = &p
	return b
}

// SortBy adds an ascending field sort.
func (b *QueryBuilder) SortBy(field string) *QueryBuilder {
	b.sorts = append(b.sorts, query.Sort{Kind: query.ByField, Field: field})
	return b
}

// SortByDesc adds a descending field sort.
func (b *QueryBuilder) SortByDesc(field string) *QueryBuilder {
	b.sorts = append(b.sorts, query.Sort{Kind: query.ByField, Field: field, Descending: true})
	return b
}

// SortByScore adds a relevance sort, best first.
func (b *QueryBuilder) SortByScore() *QueryBuilder {
	b.sorts = append(b.sorts, query.Sort{Kind: query.ByScore, Descending: true})
	return b
}

// SortByDistance adds a sort by distance from the center set via Near.
func (b *QueryBuilder) SortByDistance(field string) *QueryBuilder {
	b.sorts = append(b.sorts, query.Sort{Kind: query.ByDistance, Field: field})
	return b
}

// Near sets the spatial center and field for distance sorting and the
// distance projection.
func (b *QueryBuilder) Near(lat, lon float64, field string) *QueryBuilder {
	b.center = &geo.Point{Lat: lat, Lon: lon}
	b.spatialField = field
	return b
}

// Facet adds a facet request.
func (b *QueryBuilder) Facet(f FacetDef) *QueryBuilder {
	b.facets = append(b.facets, f)
	return b
}

// Project restricts returned data to the named fields and projection
// constants.
func (b *QueryBuilder) Project(fields ...string) *QueryBuilder {
	b.projections = append(b.projections, fields...)
	return b
}

// Tenant restricts results to one tenant.
func (b *QueryBuilder) Tenant(id string) *QueryBuilder {
	b.tenant = id
	return b
}

// First skips the given number of leading results.
func (b *QueryBuilder) First(n int) *QueryBuilder {
	b.first = n
	return b
}

// Max caps the number of returned results.
func (b *QueryBuilder) Max(n int) *QueryBuilder {
	b.max = &n
	return b
}

// Count executes the query and returns the total hit count.
func (b *QueryBuilder) Count(ctx context.Context) (int, error) {
	q, err := b.build()
	if err != nil {
		return 0, err
	}
	n, err := q.ResultSize(ctx)
	if err != nil {
		return 0, fmt.Errorf("textdex: count: %w", err)
	}
	return n, nil
}

// Results executes the query and returns the typed hits.
func (b *QueryBuilder) Results(ctx context.Context) ([]Result, error) {
	q, err := b.build()
	if err != nil {
		return nil, err
	}
	refs, err := q.Results(ctx)
	if err != nil {
		return nil, fmt.Errorf("textdex: search: %w", err)
	}
	out := make([]Result, len(refs))
	for i, ref := range refs {
		out[i] = resultFromRef(ref)
	}
	return out, nil
}

// Facets executes the query and returns facet values by facet name.
func (b *QueryBuilder) Facets(ctx context.Context) (map[string][]FacetValue, error) {
	q, err := b.build()
	if err != nil {
		return nil, err
	}
	raw, err := q.FacetResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("textdex: facets: %w", err)
	}
	out := make(map[string][]FacetValue, len(raw))
	for name, values := range raw {
		vs := make([]FacetValue, len(values))
		for i, v := range values {
			vs[i] = FacetValue{Label: v.Label, Count: v.Count}
		}
		out[name] = vs
	}
	return out, nil
}

// Explain executes the query and explains the result at the given
// position. Positions match the slice returned by Results.
func (b *QueryBuilder) Explain(ctx context.Context, index int) (Explanation, error) {
	q, err := b.build()
	if err != nil {
		return Explanation{}, err
	}
	node, err := q.Explain(ctx, index)
	if err != nil {
		return Explanation{}, fmt.Errorf("textdex: explain: %w", err)
	}
	out := Explanation{Value: node.Value, Description: node.Description}
	for _, d := range node.Details {
		out.Details = append(out.Details, Explanation{
			Value: d.Value, Description: d.Description,
		})
	}
	return out, nil
}

// Iterator opens a cursor for random access by result index. The
// caller owns the iterator and must Close it.
func (b *QueryBuilder) Iterator() (*Iterator, error) {
	q, err := b.build()
	if err != nil {
		return nil, err
	}
	ext, err := q.Extractor()
	if err != nil {
		return nil, fmt.Errorf("textdex: iterator: %w", err)
	}
	return &Iterator{inner: ext}, nil
}

func (b *QueryBuilder) build() (*engine.Query, error) {
	if b.err != nil {
		return nil, b.err
	}

	params := query.Params{
		Types:        b.types,
		Sorts:        b.sorts,
		Center:       b.center,
		SpatialField: b.spatialField,
		Projections:  b.projections,
		Tenant:       b.tenant,
		First:        b.first,
		Max:          b.max,
	}

	if b.pred != nil {
		if b.pred.err != nil {
			return nil, fmt.Errorf("textdex: %w", b.pred.err)
		}
		node := b.pred.node
		params.Predicate = &node
	}

	for _, f := range b.facets {
		req, err := facetRequest(f)
		if err != nil {
			return nil, fmt.Errorf("textdex: facet %s: %w", f.Name, err)
		}
		params.Facets = append(params.Facets, req)
	}

	spec, err := query.New(params)
	if err != nil {
		return nil, fmt.Errorf("textdex: %w", err)
	}
	return engine.NewQuery(spec, b.client.registry, b.client.connections, b.client.opts, b.client.logger), nil
}

func facetRequest(f FacetDef) (facet.Request, error) {
	order, err := facetOrder(f.Order)
	if err != nil {
		return facet.Request{}, err
	}
	if len(f.Ranges) == 0 {
		return facet.NewDiscrete(f.Name, f.Field, order, f.IncludeZeroCounts, f.MaxCount)
	}
	ranges := make([]facet.Range, 0, len(f.Ranges))
	for _, r := range f.Ranges {
		fr, err := facet.NewRange(r.ID, r.Label, r.Min, r.Max, r.IncludeMin, r.IncludeMax)
		if err != nil {
			return facet.Request{}, err
		}
		ranges = append(ranges, fr)
	}
	return facet.NewRanges(f.Name, f.Field, order, f.IncludeZeroCounts, ranges)
}

func facetOrder(o FacetOrder) (facet.Order, error) {
	switch o {
	case "", FacetCountDesc:
		return facet.CountDesc, nil
	case FacetCountAsc:
		return facet.CountAsc, nil
	case FacetValueAsc:
		return facet.ValueAsc, nil
	case FacetValueDesc:
		return facet.ValueDesc, nil
	case FacetDefinitionOrder:
		return facet.RangeDefinitionOrder, nil
	default:
		return 0, fmt.Errorf("unknown facet order %q", o)
	}
}

func resultFromRef(ref *engine.Ref) Result {
	return Result{
		Type:     ref.TypeName,
		ID:       ref.ID,
		Score:    ref.Score,
		Distance: ref.Distance,
		Fields:   ref.Fields,
		Source:   ref.Source,
	}
}

// Iterator is a cursor over the full result set with random access by
// absolute result index.
type Iterator struct {
	inner engine.DocumentExtractor
}

// At returns the result at the given absolute index. Indices may
// repeat or move backward within the configured backtracking window.
func (it *Iterator) At(ctx context.Context, index int) (Result, error) {
	ref, err := it.inner.Extract(ctx, index)
	if err != nil {
		return Result{}, fmt.Errorf("textdex: extract: %w", err)
	}
	if ref == nil {
		return Result{}, fmt.Errorf("textdex: extract: no result at index %d", index)
	}
	return resultFromRef(ref), nil
}

// FirstIndex returns the first reachable result index.
func (it *Iterator) FirstIndex() int {
	return it.inner.FirstIndex()
}

// MaxIndex returns the last reachable result index, -1 when empty.
func (it *Iterator) MaxIndex(ctx context.Context) (int, error) {
	n, err := it.inner.MaxIndex(ctx)
	if err != nil {
		return 0, fmt.Errorf("textdex: max index: %w", err)
	}
	return n, nil
}

// Close releases cursor state. Safe to call twice.
func (it *Iterator) Close(ctx context.Context) error {
	if err := it.inner.Close(ctx); err != nil {
		return fmt.Errorf("textdex: close iterator: %w", err)
	}
	return nil
}
