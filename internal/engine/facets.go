package engine

import (
	"fmt"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain"
	"github.com/kailas-cloud/textdex/internal/domain/search/facet"
	"github.com/kailas-cloud/textdex/internal/mapping"
)

// extractFacets converts raw aggregation results into typed facet
// values, keyed by facet request name.
func extractFacets(
	resp *backend.Response,
	requests []facet.Request,
	bindings []mapping.Binding,
) (map[string][]facet.Value, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	results := make(map[string][]facet.Value, len(requests))
	for _, fr := range requests {
		var (
			values []facet.Value
			err    error
		)
		switch fr.Kind() {
		case facet.KindDiscrete:
			// The backend sorted the buckets per the request's order.
			values = extractDiscreteFacet(resp.Aggregations, fr)
		case facet.KindRange:
			values, err = extractRangeFacet(resp.Aggregations, fr, bindings)
			if err != nil {
				return nil, err
			}
			if fr.Sort() != facet.RangeDefinitionOrder {
				facet.SortValues(values, fr.Sort())
			}
		}
		results[fr.Name()] = values
	}
	return results, nil
}

func extractDiscreteFacet(aggs map[string]backend.Aggregate, fr facet.Request) []facet.Value {
	agg, ok := aggs[fr.Name()]
	if !ok {
		return nil
	}
	values := make([]facet.Value, 0, len(agg.Buckets))
	for _, b := range agg.Buckets {
		values = append(values, facet.Value{Label: b.Key, Count: b.DocCount})
	}
	return values
}

// extractRangeFacet reads one count aggregation per configured range,
// named <facetName>-<rangeID>. Absent aggregations are skipped: the
// backend omitted an empty bucket. Zero-count buckets are skipped
// unless the request asked for them.
func extractRangeFacet(
	aggs map[string]backend.Aggregate,
	fr facet.Request,
	bindings []mapping.Binding,
) ([]facet.Value, error) {
	if err := validateRangeKind(fr, bindings); err != nil {
		return nil, err
	}
	var values []facet.Value
	for _, r := range fr.Ranges() {
		agg, ok := aggs[fr.Name()+"-"+r.ID()]
		if !ok {
			continue
		}
		if agg.DocCount == 0 && !fr.IncludeZeroCounts() {
			continue
		}
		values = append(values, facet.Value{Label: r.Label(), Count: agg.DocCount})
	}
	return values, nil
}

// validateRangeKind restricts range facets to int, float and time
// fields. Caught here, at extraction time, not at request build.
func validateRangeKind(fr facet.Request, bindings []mapping.Binding) error {
	for _, b := range bindings {
		f, ok := b.Field(fr.Field())
		if !ok {
			continue
		}
		if !f.Kind.Numeric() {
			return fmt.Errorf("%w: facet %q on %s field %q",
				domain.ErrUnsupportedRangeKind, fr.Name(), f.Kind, fr.Field())
		}
	}
	return nil
}
