package rescache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
	"github.com/kailas-cloud/textdex/internal/kv"
)

func testRequest(t *testing.T) *backend.Request {
	t.Helper()
	match, err := predicate.Match("title", "golang")
	if err != nil {
		t.Fatal(err)
	}
	return &backend.Request{
		Indices: []string{"books"},
		Query:   match,
		From:    0,
		Size:    10,
	}
}

func TestSearch_CacheMiss(t *testing.T) {
	inner := &mockExecutor{resp: &backend.Response{
		Total: 2,
		Hits: []backend.Hit{
			{Index: "books", Type: "book", ID: "1", Score: 1.5},
			{Index: "books", Type: "book", ID: "2", Score: 0.8},
		},
	}}
	ce, ms := newTestCachedExecutor(t, inner)
	ctx := context.Background()

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, kv.ErrKeyNotFound
	}

	var setCalled bool
	var setTTL time.Duration
	ms.setFn = func(_ context.Context, _ string, value []byte, ttl time.Duration) error {
		setCalled = true
		setTTL = ttl
		var resp backend.Response
		if err := json.Unmarshal(value, &resp); err != nil {
			t.Errorf("cached value is not a valid response: %v", err)
		}
		return nil
	}

	resp, err := ce.Search(ctx, testRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected total 2, got %d", resp.Total)
	}
	if inner.searchCalls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.searchCalls)
	}
	if !setCalled {
		t.Fatal("expected SET to be called for cache put")
	}
	if setTTL != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", setTTL)
	}
}

func TestSearch_CacheHit(t *testing.T) {
	inner := &mockExecutor{resp: &backend.Response{Total: 99}}
	ce, ms := newTestCachedExecutor(t, inner)
	ctx := context.Background()

	cached, err := json.Marshal(&backend.Response{
		Total: 1,
		Hits:  []backend.Hit{{Index: "books", Type: "book", ID: "7", Score: 2.0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	resp, err := ce.Search(ctx, testRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 1 || len(resp.Hits) != 1 || resp.Hits[0].ID != "7" {
		t.Fatalf("expected cached response, got %+v", resp)
	}
	if inner.searchCalls != 0 {
		t.Fatalf("expected no inner calls on hit, got %d", inner.searchCalls)
	}
}

func TestSearch_CorruptCacheFallsThrough(t *testing.T) {
	inner := &mockExecutor{resp: &backend.Response{Total: 3}}
	ce, ms := newTestCachedExecutor(t, inner)
	ctx := context.Background()

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte("{not json"), nil
	}

	resp, err := ce.Search(ctx, testRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 3 {
		t.Fatalf("expected inner response, got %+v", resp)
	}
	if inner.searchCalls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.searchCalls)
	}
}

func TestSearch_InnerError(t *testing.T) {
	inner := &mockExecutor{err: errors.New("backend down")}
	ce, ms := newTestCachedExecutor(t, inner)
	ctx := context.Background()

	var setCalled bool
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		setCalled = true
		return nil
	}

	_, err := ce.Search(ctx, testRequest(t))
	if err == nil {
		t.Fatal("expected error from inner executor")
	}
	if setCalled {
		t.Fatal("error responses must not be cached")
	}
}

func TestOpenScroll_BypassesCache(t *testing.T) {
	inner := &mockExecutor{resp: &backend.Response{Cursor: "c1"}}
	ce, ms := newTestCachedExecutor(t, inner)
	ctx := context.Background()

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		t.Error("scroll calls must not touch the cache")
		return nil, kv.ErrKeyNotFound
	}

	resp, err := ce.OpenScroll(ctx, testRequest(t), 100, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Cursor != "c1" {
		t.Fatalf("expected cursor c1, got %q", resp.Cursor)
	}
	if inner.scrollCalls != 1 {
		t.Fatalf("expected 1 scroll call, got %d", inner.scrollCalls)
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	a := cacheKey(testRequest(t))
	b := cacheKey(testRequest(t))
	if a != b {
		t.Fatalf("equal requests must hash equally: %s vs %s", a, b)
	}

	other := testRequest(t)
	other.Size = 20
	if cacheKey(other) == a {
		t.Fatal("different requests must hash differently")
	}
}

func TestRenderRequest_CoversClauses(t *testing.T) {
	gte := 10.0
	lt := 20.0
	rng, err := predicate.NewRange(nil, &gte, &lt, nil)
	if err != nil {
		t.Fatal(err)
	}
	rangeNode, err := predicate.InRange("price", rng)
	if err != nil {
		t.Fatal(err)
	}
	term, err := predicate.Term("_type", "book")
	if err != nil {
		t.Fatal(err)
	}

	req := &backend.Request{
		Indices: []string{"books"},
		Query:   predicate.Bool([]predicate.Node{rangeNode}, []predicate.Node{term}, nil, nil),
		Sorts:   []backend.Sort{{Kind: backend.SortByField, Field: "price", Descending: true}},
		Aggregations: []backend.Aggregation{
			{Name: "genre", Field: "genre", Kind: backend.AggTerms, Size: 5, Order: "count_desc"},
		},
		Size: 10,
	}

	rendered := renderRequest(req)
	for _, want := range []string{"bool(", "range(price:", "term(_type=book)", "sort=1:price:true", "agg=genre:genre"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("rendered request missing %q: %s", want, rendered)
		}
	}
}
