package elastic

import (
	"fmt"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
)

// buildPayload renders a neutral request into the search API body.
func buildPayload(req *backend.Request) (map[string]any, error) {
	body := map[string]any{
		"query": clauseJSON(req.Query),
	}
	if len(req.Fields) > 0 {
		body["_source"] = req.Fields
	}
	if len(req.Aggregations) > 0 {
		aggs := make(map[string]any, len(req.Aggregations))
		for _, a := range req.Aggregations {
			spec, err := aggJSON(a)
			if err != nil {
				return nil, err
			}
			aggs[a.Name] = spec
		}
		body["aggregations"] = aggs
	}
	if len(req.Sorts) > 0 {
		sorts := make([]any, 0, len(req.Sorts))
		for _, s := range req.Sorts {
			sorts = append(sorts, sortJSON(s))
		}
		body["sort"] = sorts
	}
	return body, nil
}

// clauseJSON renders one predicate node into its query DSL form.
func clauseJSON(n predicate.Node) map[string]any {
	switch n.Kind() {
	case predicate.KindMatchAll:
		return map[string]any{"match_all": map[string]any{}}
	case predicate.KindMatch:
		return map[string]any{"match": map[string]any{
			n.Field(): map[string]any{"query": n.Text()},
		}}
	case predicate.KindTerm:
		return map[string]any{"term": map[string]any{
			n.Field(): map[string]any{"value": n.Value()},
		}}
	case predicate.KindTerms:
		return map[string]any{"terms": map[string]any{
			n.Field(): n.Values(),
		}}
	case predicate.KindRange:
		return map[string]any{"range": map[string]any{
			n.Field(): rangeJSON(n.Range()),
		}}
	case predicate.KindBool:
		b := map[string]any{}
		addClauseGroup(b, "must", n.Must())
		addClauseGroup(b, "filter", n.Filter())
		addClauseGroup(b, "should", n.Should())
		addClauseGroup(b, "must_not", n.MustNot())
		return map[string]any{"bool": b}
	default:
		// Unreachable: Node constructors cover every kind.
		return map[string]any{"match_none": map[string]any{}}
	}
}

// addClauseGroup renders a bool sub-group. A single clause is rendered
// as a bare object rather than a one-element array.
func addClauseGroup(dst map[string]any, key string, nodes []predicate.Node) {
	switch len(nodes) {
	case 0:
	case 1:
		dst[key] = clauseJSON(nodes[0])
	default:
		arr := make([]any, 0, len(nodes))
		for _, c := range nodes {
			arr = append(arr, clauseJSON(c))
		}
		dst[key] = arr
	}
}

func rangeJSON(r *predicate.Range) map[string]any {
	bounds := map[string]any{}
	if v := r.GT(); v != nil {
		bounds["gt"] = *v
	}
	if v := r.GTE(); v != nil {
		bounds["gte"] = *v
	}
	if v := r.LT(); v != nil {
		bounds["lt"] = *v
	}
	if v := r.LTE(); v != nil {
		bounds["lte"] = *v
	}
	return bounds
}

func sortJSON(s backend.Sort) any {
	order := "asc"
	if s.Descending {
		order = "desc"
	}
	switch s.Kind {
	case backend.SortByScore:
		if !s.Descending {
			return map[string]any{"_score": map[string]any{"order": "asc"}}
		}
		return "_score"
	case backend.SortByDistance:
		return map[string]any{"_geo_distance": map[string]any{
			s.Field: map[string]any{"lat": s.Lat, "lon": s.Lon},
			"order": order,
			"unit":  "m",
		}}
	default:
		return map[string]any{s.Field: map[string]any{"order": order}}
	}
}

func aggJSON(a backend.Aggregation) (map[string]any, error) {
	switch a.Kind {
	case backend.AggTerms:
		terms := map[string]any{
			"field":         a.Field,
			"min_doc_count": a.MinDocCount,
		}
		if a.Size > 0 {
			terms["size"] = a.Size
		}
		if ord, ok := termsOrderJSON(a.Order); ok {
			terms["order"] = ord
		}
		return map[string]any{"terms": terms}, nil
	case backend.AggRangeCount:
		r := predicateRangeForAgg(a)
		return map[string]any{"filter": map[string]any{
			"range": map[string]any{a.Field: r},
		}}, nil
	default:
		return nil, fmt.Errorf("aggregation %q: unknown kind %d", a.Name, a.Kind)
	}
}

func termsOrderJSON(order string) (map[string]any, bool) {
	switch order {
	case "count_asc":
		return map[string]any{"_count": "asc"}, true
	case "count_desc", "":
		return map[string]any{"_count": "desc"}, true
	case "value_asc":
		return map[string]any{"_key": "asc"}, true
	case "value_desc":
		return map[string]any{"_key": "desc"}, true
	default:
		return nil, false
	}
}

func predicateRangeForAgg(a backend.Aggregation) map[string]any {
	bounds := map[string]any{}
	if a.Min != nil {
		if a.IncludeMin {
			bounds["gte"] = *a.Min
		} else {
			bounds["gt"] = *a.Min
		}
	}
	if a.Max != nil {
		if a.IncludeMax {
			bounds["lte"] = *a.Max
		} else {
			bounds["lt"] = *a.Max
		}
	}
	return bounds
}
