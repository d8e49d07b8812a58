package chi

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/textdex/internal/domain/geo"
	"github.com/kailas-cloud/textdex/internal/domain/search/facet"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
	"github.com/kailas-cloud/textdex/internal/domain/search/query"
	"github.com/kailas-cloud/textdex/internal/engine"
)

// ErrorResponseCode identifies an API error category.
type ErrorResponseCode string

const (
	ErrorCodeBadRequest       ErrorResponseCode = "bad_request"
	ErrorCodeValidationFailed ErrorResponseCode = "validation_failed"
	ErrorCodeTypeNotFound     ErrorResponseCode = "type_not_found"
	ErrorCodeUnsupported      ErrorResponseCode = "unsupported"
	ErrorCodeTimeout          ErrorResponseCode = "timeout"
	ErrorCodeInternalError    ErrorResponseCode = "internal_error"
)

// ErrorResponse is the uniform API error body.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// SearchRequest is the POST /v1/search/{type} body.
type SearchRequest struct {
	Query        *PredicateDTO `json:"query,omitempty"`
	Sorts        []SortDTO     `json:"sorts,omitempty"`
	Center       *PointDTO     `json:"center,omitempty"`
	SpatialField string        `json:"spatial_field,omitempty"`
	Facets       []FacetDTO    `json:"facets,omitempty"`
	Projections  []string      `json:"projections,omitempty"`
	Tenant       string        `json:"tenant,omitempty"`
	First        int           `json:"first,omitempty"`
	Max          *int          `json:"max,omitempty"`
	Explain      bool          `json:"explain,omitempty"`
}

// PredicateDTO is a query tree node: exactly one variant must be set.
type PredicateDTO struct {
	MatchAll *struct{} `json:"match_all,omitempty"`
	Match    *MatchDTO `json:"match,omitempty"`
	Term     *TermDTO  `json:"term,omitempty"`
	Terms    *TermsDTO `json:"terms,omitempty"`
	Range    *RangeDTO `json:"range,omitempty"`
	Bool     *BoolDTO  `json:"bool,omitempty"`
}

type MatchDTO struct {
	Field string `json:"field"`
	Text  string `json:"text"`
}

type TermDTO struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type TermsDTO struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

type RangeDTO struct {
	Field string   `json:"field"`
	Gt    *float64 `json:"gt,omitempty"`
	Gte   *float64 `json:"gte,omitempty"`
	Lt    *float64 `json:"lt,omitempty"`
	Lte   *float64 `json:"lte,omitempty"`
}

type BoolDTO struct {
	Must    []PredicateDTO `json:"must,omitempty"`
	Filter  []PredicateDTO `json:"filter,omitempty"`
	Should  []PredicateDTO `json:"should,omitempty"`
	MustNot []PredicateDTO `json:"must_not,omitempty"`
}

type SortDTO struct {
	// Kind is "score", "field" or "distance".
	Kind       string `json:"kind"`
	Field      string `json:"field,omitempty"`
	Descending bool   `json:"descending,omitempty"`
}

type PointDTO struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type FacetDTO struct {
	Name  string `json:"name"`
	Field string `json:"field"`
	// Order is "count_desc", "count_asc", "value_asc", "value_desc" or
	// "range_definition"; empty means count_desc.
	Order             string          `json:"order,omitempty"`
	IncludeZeroCounts bool            `json:"include_zero_counts,omitempty"`
	MaxCount          int             `json:"max_count,omitempty"`
	Ranges            []FacetRangeDTO `json:"ranges,omitempty"`
}

type FacetRangeDTO struct {
	ID         string   `json:"id"`
	Label      string   `json:"label,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	IncludeMin bool     `json:"include_min,omitempty"`
	IncludeMax bool     `json:"include_max,omitempty"`
}

// SearchResponse is the POST /v1/search/{type} reply.
type SearchResponse struct {
	Total      int                        `json:"total"`
	TookMillis int                        `json:"took_millis"`
	TimedOut   bool                       `json:"timed_out,omitempty"`
	Hits       []HitDTO                   `json:"hits"`
	Facets     map[string][]FacetValueDTO `json:"facets,omitempty"`
}

type HitDTO struct {
	Type     string         `json:"type"`
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Distance *float64       `json:"distance,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
	Source   map[string]any `json:"source,omitempty"`
	Explain  *ExplainDTO    `json:"explain,omitempty"`
}

type FacetValueDTO struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type ExplainDTO struct {
	Value       float64      `json:"value"`
	Description string       `json:"description"`
	Details     []ExplainDTO `json:"details,omitempty"`
}

// paramsFromRequest converts the API body into query parameters for the
// named document type.
func paramsFromRequest(typeName string, req *SearchRequest) (query.Params, error) {
	p := query.Params{
		Types:        []string{typeName},
		SpatialField: req.SpatialField,
		Projections:  req.Projections,
		Tenant:       req.Tenant,
		First:        req.First,
		Max:          req.Max,
	}

	if req.Query != nil {
		node, err := predicateFromDTO(*req.Query)
		if err != nil {
			return query.Params{}, err
		}
		p.Predicate = &node
	}

	for _, s := range req.Sorts {
		sort, err := sortFromDTO(s)
		if err != nil {
			return query.Params{}, err
		}
		p.Sorts = append(p.Sorts, sort)
	}

	if req.Center != nil {
		p.Center = &geo.Point{Lat: req.Center.Lat, Lon: req.Center.Lon}
	}

	for _, f := range req.Facets {
		fr, err := facetFromDTO(f)
		if err != nil {
			return query.Params{}, err
		}
		p.Facets = append(p.Facets, fr)
	}

	return p, nil
}

func predicateFromDTO(d PredicateDTO) (predicate.Node, error) {
	set := 0
	for _, v := range []bool{
		d.MatchAll != nil, d.Match != nil, d.Term != nil,
		d.Terms != nil, d.Range != nil, d.Bool != nil,
	} {
		if v {
			set++
		}
	}
	if set != 1 {
		return predicate.Node{}, errors.New("query node must have exactly one of match_all, match, term, terms, range, bool")
	}

	switch {
	case d.MatchAll != nil:
		return predicate.MatchAll(), nil
	case d.Match != nil:
		node, err := predicate.Match(d.Match.Field, d.Match.Text)
		if err != nil {
			return predicate.Node{}, fmt.Errorf("match: %w", err)
		}
		return node, nil
	case d.Term != nil:
		node, err := predicate.Term(d.Term.Field, d.Term.Value)
		if err != nil {
			return predicate.Node{}, fmt.Errorf("term: %w", err)
		}
		return node, nil
	case d.Terms != nil:
		node, err := predicate.Terms(d.Terms.Field, d.Terms.Values...)
		if err != nil {
			return predicate.Node{}, fmt.Errorf("terms: %w", err)
		}
		return node, nil
	case d.Range != nil:
		r, err := predicate.NewRange(d.Range.Gt, d.Range.Gte, d.Range.Lt, d.Range.Lte)
		if err != nil {
			return predicate.Node{}, fmt.Errorf("range: %w", err)
		}
		node, err := predicate.InRange(d.Range.Field, r)
		if err != nil {
			return predicate.Node{}, fmt.Errorf("range: %w", err)
		}
		return node, nil
	default:
		must, err := predicatesFromDTO(d.Bool.Must)
		if err != nil {
			return predicate.Node{}, err
		}
		filter, err := predicatesFromDTO(d.Bool.Filter)
		if err != nil {
			return predicate.Node{}, err
		}
		should, err := predicatesFromDTO(d.Bool.Should)
		if err != nil {
			return predicate.Node{}, err
		}
		mustNot, err := predicatesFromDTO(d.Bool.MustNot)
		if err != nil {
			return predicate.Node{}, err
		}
		return predicate.Bool(must, filter, should, mustNot), nil
	}
}

func predicatesFromDTO(ds []PredicateDTO) ([]predicate.Node, error) {
	if len(ds) == 0 {
		return nil, nil
	}
	out := make([]predicate.Node, 0, len(ds))
	for _, d := range ds {
		node, err := predicateFromDTO(d)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

func sortFromDTO(d SortDTO) (query.Sort, error) {
	var kind query.SortKind
	switch d.Kind {
	case "score", "":
		kind = query.ByScore
	case "field":
		kind = query.ByField
	case "distance":
		kind = query.ByDistance
	default:
		return query.Sort{}, fmt.Errorf("sort kind must be score, field or distance, got %q", d.Kind)
	}
	return query.Sort{Kind: kind, Field: d.Field, Descending: d.Descending}, nil
}

func facetFromDTO(d FacetDTO) (facet.Request, error) {
	order, err := facetOrderFromDTO(d.Order)
	if err != nil {
		return facet.Request{}, err
	}

	if len(d.Ranges) == 0 {
		fr, err := facet.NewDiscrete(d.Name, d.Field, order, d.IncludeZeroCounts, d.MaxCount)
		if err != nil {
			return facet.Request{}, fmt.Errorf("facet %s: %w", d.Name, err)
		}
		return fr, nil
	}

	ranges := make([]facet.Range, 0, len(d.Ranges))
	for _, r := range d.Ranges {
		fr, err := facet.NewRange(r.ID, r.Label, r.Min, r.Max, r.IncludeMin, r.IncludeMax)
		if err != nil {
			return facet.Request{}, fmt.Errorf("facet %s range %s: %w", d.Name, r.ID, err)
		}
		ranges = append(ranges, fr)
	}
	fr, err := facet.NewRanges(d.Name, d.Field, order, d.IncludeZeroCounts, ranges)
	if err != nil {
		return facet.Request{}, fmt.Errorf("facet %s: %w", d.Name, err)
	}
	return fr, nil
}

func facetOrderFromDTO(s string) (facet.Order, error) {
	switch s {
	case "", "count_desc":
		return facet.CountDesc, nil
	case "count_asc":
		return facet.CountAsc, nil
	case "value_asc":
		return facet.ValueAsc, nil
	case "value_desc":
		return facet.ValueDesc, nil
	case "range_definition":
		return facet.RangeDefinitionOrder, nil
	default:
		return 0, fmt.Errorf("facet order must be count_desc, count_asc, value_asc, value_desc or range_definition, got %q", s)
	}
}

func hitToDTO(ref *engine.Ref) HitDTO {
	return HitDTO{
		Type:     ref.TypeName,
		ID:       ref.ID,
		Score:    ref.Score,
		Distance: ref.Distance,
		Fields:   ref.Fields,
		Source:   ref.Source,
	}
}

func facetValuesToDTO(values []facet.Value) []FacetValueDTO {
	out := make([]FacetValueDTO, len(values))
	for i, v := range values {
		out[i] = FacetValueDTO{Label: v.Label, Count: v.Count}
	}
	return out
}
