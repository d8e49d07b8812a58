package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain"
	"github.com/kailas-cloud/textdex/internal/domain/search/facet"
	"github.com/kailas-cloud/textdex/internal/domain/search/query"
)

func newTestQuery(t *testing.T, exec *mockExecutor, p query.Params) *Query {
	t.Helper()
	return NewQuery(mustSpec(t, p), newTestRegistry(t), newTestConnections(exec), Options{}, nil)
}

func TestQuery_Results(t *testing.T) {
	exec := &mockExecutor{
		searchResp: &backend.Response{
			Total:      2,
			TookMillis: 7,
			Hits: []backend.Hit{
				bookHit("1", 2.0, map[string]any{"title": "Dune"}),
				bookHit("2", 1.0, map[string]any{"title": "Neuromancer"}),
			},
		},
	}
	q := newTestQuery(t, exec, query.Params{Types: []string{"book"}})

	refs, err := q.Results(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 || refs[0].ID != "1" || refs[1].ID != "2" {
		t.Errorf("refs = %+v", refs)
	}

	size, err := q.ResultSize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if size != 2 {
		t.Errorf("ResultSize() = %d, want 2", size)
	}
	if exec.searchCalls != 1 {
		t.Errorf("searchCalls = %d, want the response cached", exec.searchCalls)
	}

	millis, timedOut := q.Took()
	if millis != 7 || timedOut {
		t.Errorf("Took() = (%d, %t), want (7, false)", millis, timedOut)
	}
}

func TestQuery_TookBeforeExecution(t *testing.T) {
	q := newTestQuery(t, &mockExecutor{}, query.Params{Types: []string{"book"}})
	if millis, timedOut := q.Took(); millis != 0 || timedOut {
		t.Errorf("Took() = (%d, %t), want zero values", millis, timedOut)
	}
}

func TestQuery_Paging(t *testing.T) {
	exec := &mockExecutor{}
	max := 25
	q := newTestQuery(t, exec, query.Params{Types: []string{"book"}, First: 50, Max: &max})

	if _, err := q.Results(context.Background()); err != nil {
		t.Fatal(err)
	}
	if exec.lastReq.From != 50 || exec.lastReq.Size != 25 {
		t.Errorf("paging = from %d size %d, want 50 / 25", exec.lastReq.From, exec.lastReq.Size)
	}
}

func TestQuery_DefaultSizeFillsResultWindow(t *testing.T) {
	exec := &mockExecutor{}
	q := newTestQuery(t, exec, query.Params{Types: []string{"book"}, First: 100})

	if _, err := q.Results(context.Background()); err != nil {
		t.Fatal(err)
	}
	if exec.lastReq.Size != maxResultWindow-100 {
		t.Errorf("Size = %d, want %d", exec.lastReq.Size, maxResultWindow-100)
	}
}

func TestQuery_EmptyPlan(t *testing.T) {
	exec := &mockExecutor{}
	q := newTestQuery(t, exec, query.Params{Types: []string{"draft"}})

	size, err := q.ResultSize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if size != 0 {
		t.Errorf("ResultSize() = %d, want 0", size)
	}
	refs, err := q.Results(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 0 {
		t.Errorf("refs = %+v, want none", refs)
	}
	if exec.searchCalls != 0 {
		t.Errorf("searchCalls = %d, want no backend calls", exec.searchCalls)
	}
}

func TestQuery_Reset(t *testing.T) {
	exec := &mockExecutor{}
	q := newTestQuery(t, exec, query.Params{Types: []string{"book"}})

	if _, err := q.Results(context.Background()); err != nil {
		t.Fatal(err)
	}
	q.Reset()
	if _, err := q.Results(context.Background()); err != nil {
		t.Fatal(err)
	}
	if exec.searchCalls != 2 {
		t.Errorf("searchCalls = %d, want re-execution after Reset", exec.searchCalls)
	}
}

func TestQuery_SearchError(t *testing.T) {
	exec := &mockExecutor{searchErr: errors.New("connection refused")}
	q := newTestQuery(t, exec, query.Params{Types: []string{"book"}})

	if _, err := q.Results(context.Background()); err == nil {
		t.Error("expected the backend error to surface")
	}
}

func TestQuery_FacetResults(t *testing.T) {
	byGenre, err := facet.NewDiscrete("byGenre", "genre", facet.CountDesc, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	exec := &mockExecutor{
		searchResp: &backend.Response{
			Total: 3,
			Aggregations: map[string]backend.Aggregate{
				"byGenre": {Buckets: []backend.Bucket{{Key: "scifi", DocCount: 3}}},
			},
		},
	}
	q := newTestQuery(t, exec, query.Params{Types: []string{"book"}, Facets: []facet.Request{byGenre}})

	results, err := q.FacetResults(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	values := results["byGenre"]
	if len(values) != 1 || values[0].Label != "scifi" || values[0].Count != 3 {
		t.Errorf("facet values = %v", values)
	}

	// The aggregation rode along with the search request.
	if len(exec.lastReq.Aggregations) != 1 {
		t.Errorf("aggregations = %v", exec.lastReq.Aggregations)
	}
}

func TestQuery_Explain(t *testing.T) {
	exec := &mockExecutor{
		searchResp: &backend.Response{Total: 1, Hits: []backend.Hit{bookHit("1", 2.5, nil)}},
		explainRes: &backend.Explanation{
			Value:       2.5,
			Description: "sum of:",
			Details:     []backend.Explanation{{Value: 2.5, Description: "weight(title:dune)"}},
		},
	}
	q := newTestQuery(t, exec, query.Params{Types: []string{"book"}})

	node, err := q.Explain(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if node.Value != 2.5 || node.Description != "sum of:" {
		t.Errorf("node = %+v", node)
	}
	if len(node.Details) != 1 || node.Details[0].Description != "weight(title:dune)" {
		t.Errorf("details = %+v", node.Details)
	}
}

func TestQuery_ExplainSkipsUnmappedHits(t *testing.T) {
	// A stale hit precedes the mapped one; positions follow the
	// converted results, so index 0 explains the surviving document.
	exec := &mockExecutor{
		searchResp: &backend.Response{Total: 2, Hits: []backend.Hit{
			{Index: "books", Type: "legacy_type", ID: "stale"},
			bookHit("real", 1.2, nil),
		}},
		explainRes: &backend.Explanation{Value: 1.2, Description: "weight(title:dune)"},
	}
	q := newTestQuery(t, exec, query.Params{Types: []string{"book"}})

	refs, err := q.Results(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].ID != "real" {
		t.Fatalf("refs = %+v", refs)
	}

	if _, err := q.Explain(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	if len(exec.explainedIDs) != 1 || exec.explainedIDs[0] != "real" {
		t.Errorf("explained ids = %v, want [real]", exec.explainedIDs)
	}

	// Index 1 is past the converted results even though two raw hits came back.
	_, err = q.Explain(context.Background(), 1)
	var bErr *domain.BoundsError
	if !errors.As(err, &bErr) {
		t.Fatalf("err = %v, want BoundsError", err)
	}
	if bErr.Index != 1 || bErr.Max != 0 {
		t.Errorf("BoundsError = %+v", bErr)
	}
}

func TestQuery_ExplainOutOfRange(t *testing.T) {
	exec := &mockExecutor{
		searchResp: &backend.Response{Total: 1, Hits: []backend.Hit{bookHit("1", 1, nil)}},
	}
	q := newTestQuery(t, exec, query.Params{Types: []string{"book"}})

	_, err := q.Explain(context.Background(), 5)
	var bErr *domain.BoundsError
	if !errors.As(err, &bErr) {
		t.Fatalf("err = %v, want BoundsError", err)
	}
	if bErr.Index != 5 || bErr.Max != 0 {
		t.Errorf("BoundsError = %+v", bErr)
	}
}

func TestQuery_PlanErrorSurfacesEverywhere(t *testing.T) {
	q := newTestQuery(t, &mockExecutor{}, query.Params{Types: []string{"movie"}})

	if _, err := q.Results(context.Background()); !errors.Is(err, domain.ErrUnknownType) {
		t.Errorf("Results err = %v", err)
	}
	if _, err := q.Extractor(); !errors.Is(err, domain.ErrUnknownType) {
		t.Errorf("Extractor err = %v", err)
	}
}
