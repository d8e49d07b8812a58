package engine

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
	"github.com/kailas-cloud/textdex/internal/mapping"
)

// mockExecutor serves canned responses and records the last request.
// Scrolled fetches walk the pages slice one call at a time.
type mockExecutor struct {
	searchResp *backend.Response
	searchErr  error
	explainRes *backend.Explanation
	explainErr error

	pages     []*backend.Response
	page      int
	openErr   error
	scrollErr error

	lastReq        *backend.Request
	searchCalls    int
	openCalls      int
	scrollCalls    int
	clearedCursors []string
	explainedIDs   []string
}

func (m *mockExecutor) Search(_ context.Context, req *backend.Request) (*backend.Response, error) {
	m.searchCalls++
	m.lastReq = req
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if m.searchResp != nil {
		return m.searchResp, nil
	}
	return &backend.Response{}, nil
}

func (m *mockExecutor) OpenScroll(_ context.Context, req *backend.Request, _ int, _ time.Duration) (*backend.Response, error) {
	m.openCalls++
	m.lastReq = req
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.nextPage()
}

func (m *mockExecutor) ContinueScroll(_ context.Context, _ string, _ time.Duration) (*backend.Response, error) {
	m.scrollCalls++
	if m.scrollErr != nil {
		return nil, m.scrollErr
	}
	return m.nextPage()
}

func (m *mockExecutor) nextPage() (*backend.Response, error) {
	if m.page >= len(m.pages) {
		return &backend.Response{}, nil
	}
	resp := m.pages[m.page]
	m.page++
	return resp, nil
}

func (m *mockExecutor) ClearScroll(_ context.Context, cursor string) error {
	m.clearedCursors = append(m.clearedCursors, cursor)
	return nil
}

func (m *mockExecutor) Explain(_ context.Context, _, _, id string, _ predicate.Node) (*backend.Explanation, error) {
	m.explainedIDs = append(m.explainedIDs, id)
	if m.explainErr != nil {
		return nil, m.explainErr
	}
	return m.explainRes, nil
}

// newTestRegistry binds book -> books and article -> articles on
// connection "main", plus the unindexed type draft.
func newTestRegistry(t *testing.T) *mapping.Registry {
	t.Helper()
	registry := mapping.NewRegistry()
	fields := []mapping.Field{
		{Name: "title", Kind: mapping.Text},
		{Name: "genre", Kind: mapping.Keyword, Sortable: true, Facetable: true},
		{Name: "price", Kind: mapping.Float, Sortable: true, Facetable: true},
		{Name: "published_at", Kind: mapping.Time, Sortable: true, Facetable: true},
		{Name: "location", Kind: mapping.Geo},
	}
	for _, spec := range []struct {
		typeName, index, conn string
	}{
		{"book", "books", "main"},
		{"article", "articles", "main"},
		{"draft", "", ""},
	} {
		b, err := mapping.NewBinding(spec.typeName, spec.index, spec.conn, fields)
		if err != nil {
			t.Fatal(err)
		}
		if err := registry.Add(b); err != nil {
			t.Fatal(err)
		}
	}
	return registry
}

func newTestConnections(exec backend.Executor) map[string]backend.Connection {
	return map[string]backend.Connection{
		"main": {Name: "main", Executor: exec},
	}
}

func bookHit(id string, score float64, source map[string]any) backend.Hit {
	return backend.Hit{Index: "books", Type: "book", ID: id, Score: score, Source: source}
}

func f64(v float64) *float64 { return &v }
