package rescache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
	"github.com/kailas-cloud/textdex/internal/kv"
)

type mockExecutor struct {
	resp        *backend.Response
	err         error
	searchCalls int
	scrollCalls int
}

func (m *mockExecutor) Search(_ context.Context, _ *backend.Request) (*backend.Response, error) {
	m.searchCalls++
	return m.resp, m.err
}

func (m *mockExecutor) OpenScroll(_ context.Context, _ *backend.Request, _ int, _ time.Duration) (*backend.Response, error) {
	m.scrollCalls++
	return m.resp, m.err
}

func (m *mockExecutor) ContinueScroll(_ context.Context, _ string, _ time.Duration) (*backend.Response, error) {
	m.scrollCalls++
	return m.resp, m.err
}

func (m *mockExecutor) ClearScroll(_ context.Context, _ string) error {
	return m.err
}

func (m *mockExecutor) Explain(_ context.Context, _, _, _ string, _ predicate.Node) (*backend.Explanation, error) {
	return nil, m.err
}

// mockKVStore implements kv.Store for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, kv.ErrKeyNotFound
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func (m *mockKVStore) Ping(_ context.Context) error { return nil }

func (m *mockKVStore) Close() {}

func newTestCachedExecutor(t *testing.T, inner *mockExecutor) (*CachedExecutor, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, time.Minute, nil, zap.NewNop())
	return ce, ms
}
