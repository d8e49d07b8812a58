package elastic

import "testing"

func TestParseResponse(t *testing.T) {
	raw := []byte(`{
		"took": 12,
		"timed_out": false,
		"_scroll_id": "cursor-abc",
		"hits": {
			"total": {"value": 42, "relation": "eq"},
			"hits": [
				{"_index": "books", "_type": "book", "_id": "b1", "_score": 1.5,
				 "_source": {"title": "Dune"}, "sort": [1.5]},
				{"_index": "books", "_type": "book", "_id": "b2", "_score": null}
			]
		},
		"aggregations": {
			"byGenre": {"buckets": [
				{"key": "scifi", "doc_count": 5},
				{"key": 1717243200000, "key_as_string": "2024-06-01", "doc_count": 2}
			]},
			"byPrice-cheap": {"doc_count": 7}
		}
	}`)

	resp, err := parseResponse(raw)
	if err != nil {
		t.Fatal(err)
	}

	if resp.Total != 42 {
		t.Errorf("Total = %d, want 42", resp.Total)
	}
	if resp.Cursor != "cursor-abc" {
		t.Errorf("Cursor = %q", resp.Cursor)
	}
	if resp.TookMillis != 12 || resp.TimedOut {
		t.Errorf("took = %d timed_out = %t", resp.TookMillis, resp.TimedOut)
	}

	if len(resp.Hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(resp.Hits))
	}
	h := resp.Hits[0]
	if h.Index != "books" || h.Type != "book" || h.ID != "b1" || h.Score != 1.5 {
		t.Errorf("hit = %+v", h)
	}
	if h.Source["title"] != "Dune" {
		t.Errorf("source = %v", h.Source)
	}
	if len(h.Sort) != 1 {
		t.Errorf("sort values = %v", h.Sort)
	}
	// A null score parses to zero, not an error.
	if resp.Hits[1].Score != 0 {
		t.Errorf("null score = %f, want 0", resp.Hits[1].Score)
	}

	genre := resp.Aggregations["byGenre"]
	if len(genre.Buckets) != 2 {
		t.Fatalf("buckets = %v", genre.Buckets)
	}
	if genre.Buckets[0].Key != "scifi" || genre.Buckets[0].DocCount != 5 {
		t.Errorf("bucket = %+v", genre.Buckets[0])
	}
	// key_as_string wins over the raw numeric key.
	if genre.Buckets[1].Key != "2024-06-01" {
		t.Errorf("bucket key = %q, want the string form", genre.Buckets[1].Key)
	}
	if resp.Aggregations["byPrice-cheap"].DocCount != 7 {
		t.Errorf("range agg = %+v", resp.Aggregations["byPrice-cheap"])
	}
}

func TestParseResponse_BareIntegerTotal(t *testing.T) {
	resp, err := parseResponse([]byte(`{"hits": {"total": 7, "hits": []}}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 7 {
		t.Errorf("Total = %d, want 7", resp.Total)
	}
}

func TestParseResponse_MissingTotal(t *testing.T) {
	resp, err := parseResponse([]byte(`{"hits": {"hits": []}}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 0 {
		t.Errorf("Total = %d, want 0", resp.Total)
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	if _, err := parseResponse([]byte(`{]`)); err == nil {
		t.Error("expected a parse error")
	}
}

func TestBucketKey(t *testing.T) {
	tests := []struct {
		name   string
		bucket bucketJSON
		want   string
	}{
		{"string", bucketJSON{Key: "scifi"}, "scifi"},
		{"integer number", bucketJSON{Key: 42.0}, "42"},
		{"fraction", bucketJSON{Key: 9.5}, "9.5"},
		{"bool", bucketJSON{Key: true}, "true"},
		{"key_as_string wins", bucketJSON{Key: 1.0, KeyAsString: "one"}, "one"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := bucketKey(tc.bucket); got != tc.want {
				t.Errorf("bucketKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestConvertExplanation(t *testing.T) {
	in := &explanationJSON{
		Value:       2.5,
		Description: "sum of:",
		Details: []*explanationJSON{
			{Value: 1.5, Description: "weight(title:dune)"},
			{Value: 1.0, Description: "weight(genre:scifi)"},
		},
	}
	out := convertExplanation(in)
	if out.Value != 2.5 || out.Description != "sum of:" {
		t.Errorf("out = %+v", out)
	}
	if len(out.Details) != 2 || out.Details[1].Value != 1.0 {
		t.Errorf("details = %+v", out.Details)
	}
}
