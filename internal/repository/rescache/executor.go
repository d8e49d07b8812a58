// Package rescache caches plain search responses in a key-value store.
// Scroll calls pass through untouched: cursor state is server-side and
// per-iteration, so caching them would serve stale pages.
package rescache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
	"github.com/kailas-cloud/textdex/internal/kv"
)

const cacheKeyPrefix = "textdex:res_cache:"

// Compile-time check: CachedExecutor implements backend.Executor.
var _ backend.Executor = (*CachedExecutor)(nil)

// CachedExecutor decorates a backend.Executor with response caching.
type CachedExecutor struct {
	inner      backend.Executor
	store      kv.Store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner backend.Executor,
	store kv.Store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedExecutor {
	return &CachedExecutor{
		inner:      inner,
		store:      store,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Search returns a cached response or calls the inner executor.
func (c *CachedExecutor) Search(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	key := cacheKey(req)

	if resp, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return resp, nil
	}

	c.incCache("miss")

	resp, err := c.inner.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	c.putToCache(ctx, key, resp)
	return resp, nil
}

// OpenScroll passes through to the inner executor.
func (c *CachedExecutor) OpenScroll(ctx context.Context, req *backend.Request, fetchSize int, keepAlive time.Duration) (*backend.Response, error) {
	return c.inner.OpenScroll(ctx, req, fetchSize, keepAlive)
}

// ContinueScroll passes through to the inner executor.
func (c *CachedExecutor) ContinueScroll(ctx context.Context, cursor string, keepAlive time.Duration) (*backend.Response, error) {
	return c.inner.ContinueScroll(ctx, cursor, keepAlive)
}

// ClearScroll passes through to the inner executor.
func (c *CachedExecutor) ClearScroll(ctx context.Context, cursor string) error {
	return c.inner.ClearScroll(ctx, cursor)
}

// Explain passes through to the inner executor.
func (c *CachedExecutor) Explain(ctx context.Context, index, typeName, id string, q predicate.Node) (*backend.Explanation, error) {
	return c.inner.Explain(ctx, index, typeName, id, q)
}

func (c *CachedExecutor) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedExecutor) getFromCache(ctx context.Context, key string) (*backend.Response, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached response", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	var resp backend.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("Failed to parse cached response", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &resp, true
}

func (c *CachedExecutor) putToCache(ctx context.Context, key string, resp *backend.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("Failed to encode response for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache response", zap.String("key", key), zap.Error(err))
	}
}

// cacheKey derives a stable key from the canonical request rendering.
func cacheKey(req *backend.Request) string {
	h := sha256.Sum256([]byte(renderRequest(req)))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

// renderRequest produces a deterministic textual form of the request.
// Clause order is preserved as built, so equal plans render equally.
func renderRequest(req *backend.Request) string {
	var b strings.Builder
	b.WriteString("idx=")
	b.WriteString(strings.Join(req.Indices, ","))
	b.WriteString(";q=")
	renderNode(&b, req.Query)
	b.WriteString(";from=")
	b.WriteString(strconv.Itoa(req.From))
	b.WriteString(";size=")
	b.WriteString(strconv.Itoa(req.Size))
	b.WriteString(";fields=")
	b.WriteString(strings.Join(req.Fields, ","))
	for _, s := range req.Sorts {
		fmt.Fprintf(&b, ";sort=%d:%s:%t:%g:%g", s.Kind, s.Field, s.Descending, s.Lat, s.Lon)
	}
	for _, a := range req.Aggregations {
		fmt.Fprintf(&b, ";agg=%s:%s:%d:%d:%d:%s:%s:%t:%t:%s",
			a.Name, a.Field, a.Kind, a.Size, a.MinDocCount,
			renderBound(a.Min), renderBound(a.Max), a.IncludeMin, a.IncludeMax, a.Order)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n predicate.Node) {
	switch n.Kind() {
	case predicate.KindMatchAll:
		b.WriteString("all")
	case predicate.KindMatch:
		fmt.Fprintf(b, "match(%s=%s)", n.Field(), n.Text())
	case predicate.KindTerm:
		fmt.Fprintf(b, "term(%s=%s)", n.Field(), n.Value())
	case predicate.KindTerms:
		fmt.Fprintf(b, "terms(%s=%s)", n.Field(), strings.Join(n.Values(), "|"))
	case predicate.KindRange:
		r := n.Range()
		fmt.Fprintf(b, "range(%s:%s,%s,%s,%s)", n.Field(),
			renderBound(r.GT()), renderBound(r.GTE()), renderBound(r.LT()), renderBound(r.LTE()))
	case predicate.KindBool:
		b.WriteString("bool(")
		renderGroup(b, "must", n.Must())
		renderGroup(b, "filter", n.Filter())
		renderGroup(b, "should", n.Should())
		renderGroup(b, "not", n.MustNot())
		b.WriteString(")")
	}
}

func renderGroup(b *strings.Builder, label string, nodes []predicate.Node) {
	if len(nodes) == 0 {
		return
	}
	b.WriteString(label)
	b.WriteString("[")
	for i, n := range nodes {
		if i > 0 {
			b.WriteString(",")
		}
		renderNode(b, n)
	}
	b.WriteString("]")
}

func renderBound(f *float64) string {
	if f == nil {
		return "_"
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}
