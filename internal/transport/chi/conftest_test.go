package chi

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
	"github.com/kailas-cloud/textdex/internal/engine"
	"github.com/kailas-cloud/textdex/internal/mapping"
)

type mockExecutor struct {
	resp         *backend.Response
	err          error
	explainRes   *backend.Explanation
	lastReq      *backend.Request
	explainedIDs []string
}

func (m *mockExecutor) Search(_ context.Context, req *backend.Request) (*backend.Response, error) {
	m.lastReq = req
	return m.resp, m.err
}

func (m *mockExecutor) OpenScroll(_ context.Context, req *backend.Request, _ int, _ time.Duration) (*backend.Response, error) {
	m.lastReq = req
	return m.resp, m.err
}

func (m *mockExecutor) ContinueScroll(_ context.Context, _ string, _ time.Duration) (*backend.Response, error) {
	return m.resp, m.err
}

func (m *mockExecutor) ClearScroll(_ context.Context, _ string) error { return nil }

func (m *mockExecutor) Explain(_ context.Context, _, _, id string, _ predicate.Node) (*backend.Explanation, error) {
	m.explainedIDs = append(m.explainedIDs, id)
	if m.explainRes != nil {
		return m.explainRes, nil
	}
	return &backend.Explanation{Value: 1.0, Description: "score"}, nil
}

func newTestServer(t *testing.T, exec *mockExecutor) *Server {
	t.Helper()

	registry := mapping.NewRegistry()
	binding, err := mapping.NewBinding("book", "books", "main", []mapping.Field{
		{Name: "title", Kind: mapping.Text},
		{Name: "genre", Kind: mapping.Keyword, Sortable: true, Facetable: true},
		{Name: "price", Kind: mapping.Float, Sortable: true, Facetable: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := registry.Add(binding); err != nil {
		t.Fatal(err)
	}

	connections := map[string]backend.Connection{
		"main": {Name: "main", Executor: exec},
	}

	return NewServer(registry, connections, engine.Options{}, "mock", 10000, zap.NewNop())
}
