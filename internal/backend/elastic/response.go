package elastic

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/textdex/internal/backend"
)

type searchResponseJSON struct {
	Took     int    `json:"took"`
	TimedOut bool   `json:"timed_out"`
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total json.RawMessage `json:"total"`
		Hits  []hitJSON       `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]aggregateJSON `json:"aggregations"`
}

type hitJSON struct {
	Index  string         `json:"_index"`
	Type   string         `json:"_type"`
	ID     string         `json:"_id"`
	Score  *float64       `json:"_score"`
	Source map[string]any `json:"_source"`
	Sort   []any          `json:"sort"`
}

type aggregateJSON struct {
	DocCount *int         `json:"doc_count"`
	Buckets  []bucketJSON `json:"buckets"`
}

type bucketJSON struct {
	Key         any    `json:"key"`
	KeyAsString string `json:"key_as_string"`
	DocCount    int    `json:"doc_count"`
}

// parseResponse converts a raw search API reply into the neutral form.
func parseResponse(raw []byte) (*backend.Response, error) {
	var sr searchResponseJSON
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	total, err := parseTotal(sr.Hits.Total)
	if err != nil {
		return nil, err
	}

	resp := &backend.Response{
		Total:      total,
		Hits:       make([]backend.Hit, 0, len(sr.Hits.Hits)),
		Cursor:     sr.ScrollID,
		TookMillis: sr.Took,
		TimedOut:   sr.TimedOut,
	}
	for _, h := range sr.Hits.Hits {
		score := 0.0
		if h.Score != nil {
			score = *h.Score
		}
		resp.Hits = append(resp.Hits, backend.Hit{
			Index:  h.Index,
			Type:   h.Type,
			ID:     h.ID,
			Score:  score,
			Source: h.Source,
			Sort:   h.Sort,
		})
	}
	if len(sr.Aggregations) > 0 {
		resp.Aggregations = make(map[string]backend.Aggregate, len(sr.Aggregations))
		for name, agg := range sr.Aggregations {
			resp.Aggregations[name] = convertAggregate(agg)
		}
	}
	return resp, nil
}

// parseTotal handles both the bare-integer and the {value, relation}
// shapes of hits.total across API versions.
func parseTotal(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var obj struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, fmt.Errorf("parse hits.total: %w", err)
	}
	return obj.Value, nil
}

func convertAggregate(agg aggregateJSON) backend.Aggregate {
	out := backend.Aggregate{}
	if agg.DocCount != nil {
		out.DocCount = *agg.DocCount
	}
	for _, b := range agg.Buckets {
		out.Buckets = append(out.Buckets, backend.Bucket{
			Key:      bucketKey(b),
			DocCount: b.DocCount,
		})
	}
	return out
}

// bucketKey prefers key_as_string, falling back to the raw key.
func bucketKey(b bucketJSON) string {
	if b.KeyAsString != "" {
		return b.KeyAsString
	}
	switch k := b.Key.(type) {
	case string:
		return k
	case float64:
		if k == float64(int64(k)) {
			return fmt.Sprintf("%d", int64(k))
		}
		return fmt.Sprintf("%g", k)
	case bool:
		return fmt.Sprintf("%t", k)
	default:
		return fmt.Sprintf("%v", k)
	}
}

type explanationJSON struct {
	Value       float64            `json:"value"`
	Description string             `json:"description"`
	Details     []*explanationJSON `json:"details"`
}

func convertExplanation(e *explanationJSON) *backend.Explanation {
	out := &backend.Explanation{
		Value:       e.Value,
		Description: e.Description,
	}
	for _, d := range e.Details {
		out.Details = append(out.Details, *convertExplanation(d))
	}
	return out
}
