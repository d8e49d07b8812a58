// Package engine executes backend-neutral queries: it builds an
// immutable plan from a query spec and binding metadata, runs it
// through a backend connection, and reconstructs typed results, facet
// aggregations and relevance explanations from the raw response.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain"
	"github.com/kailas-cloud/textdex/internal/domain/search/explain"
	"github.com/kailas-cloud/textdex/internal/domain/search/facet"
	"github.com/kailas-cloud/textdex/internal/domain/search/query"
	"github.com/kailas-cloud/textdex/internal/mapping"
)

// Query executes one query specification. The plan and the raw
// response are built lazily on first access and cached until Reset.
// Not safe for concurrent use.
type Query struct {
	spec        query.Spec
	registry    *mapping.Registry
	connections map[string]backend.Connection
	opts        Options
	logger      *zap.Logger

	plan     *Plan
	deadline *Deadline
	resp     *backend.Response
}

// NewQuery creates a query executor for one spec.
func NewQuery(
	spec query.Spec,
	registry *mapping.Registry,
	connections map[string]backend.Connection,
	opts Options,
	logger *zap.Logger,
) *Query {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Query{
		spec:        spec,
		registry:    registry,
		connections: connections,
		opts:        opts.withDefaults(),
		logger:      logger,
	}
}

// Plan builds (once) and returns the immutable execution plan.
func (q *Query) Plan() (*Plan, error) {
	if q.plan != nil {
		return q.plan, nil
	}
	plan, err := BuildPlan(q.spec, q.registry, q.connections)
	if err != nil {
		return nil, err
	}
	q.plan = plan
	return plan, nil
}

// Reset drops all cached execution state. Call after mutating anything
// the plan was derived from.
func (q *Query) Reset() {
	q.plan = nil
	q.resp = nil
	q.deadline = nil
}

// ResultSize returns the total hit count.
func (q *Query) ResultSize(ctx context.Context) (int, error) {
	if err := q.execute(ctx); err != nil {
		return 0, err
	}
	return q.resp.Total, nil
}

// Results executes the query (plain, offset+limit paged) and converts
// the hits. Hits mapping to no known binding are dropped silently.
func (q *Query) Results(ctx context.Context) ([]*Ref, error) {
	if err := q.execute(ctx); err != nil {
		return nil, err
	}
	conv := newHitConverter(q.registry, q.spec)
	refs := make([]*Ref, 0, len(q.resp.Hits))
	for _, hit := range q.resp.Hits {
		if err := q.deadline.Check(); err != nil {
			return nil, err
		}
		ref, err := conv.convert(hit)
		if err != nil {
			return nil, err
		}
		if ref != nil {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Took reports the backend-side duration in milliseconds and the
// backend's timed-out flag for the executed search. Zero values before
// execution.
func (q *Query) Took() (millis int, timedOut bool) {
	if q.resp == nil {
		return 0, false
	}
	return q.resp.TookMillis, q.resp.TimedOut
}

// FacetResults returns converted facet values keyed by request name.
func (q *Query) FacetResults(ctx context.Context) (map[string][]facet.Value, error) {
	if err := q.execute(ctx); err != nil {
		return nil, err
	}
	plan, err := q.Plan()
	if err != nil {
		return nil, err
	}
	return extractFacets(q.resp, q.spec.Facets(), plan.Bindings())
}

// Explain fetches the relevance explanation for the result at the
// given position of Results(). Positions are counted over converted
// results, so hits dropped as unmappable do not shift them.
func (q *Query) Explain(ctx context.Context, index int) (explain.Node, error) {
	if err := q.execute(ctx); err != nil {
		return explain.Node{}, err
	}
	plan, err := q.Plan()
	if err != nil {
		return explain.Node{}, err
	}
	if plan.Empty() {
		return explain.Node{}, domain.NewBoundsError(index, -1)
	}

	hit, maxIndex, ok := q.hitAt(index)
	if !ok {
		return explain.Node{}, domain.NewBoundsError(index, maxIndex)
	}
	w := newWorker(plan.Connection().Executor, q.deadline, q.opts, q.logger)
	raw, err := w.explain(ctx, hit.Index, hit.Type, hit.ID, plan.Request().Query)
	if err != nil {
		return explain.Node{}, err
	}
	return convertExplanation(raw), nil
}

// hitAt resolves the raw hit backing the converted result at index,
// skipping hits with no binding the same way Results does. maxIndex is
// the largest valid position.
func (q *Query) hitAt(index int) (hit backend.Hit, maxIndex int, ok bool) {
	n := 0
	for _, h := range q.resp.Hits {
		if _, mapped := q.registry.ByHit(h.Index, h.Type); !mapped {
			continue
		}
		if n == index {
			hit, ok = h, true
		}
		n++
	}
	return hit, n - 1, ok
}

// Extractor returns a document extractor for scroll-based random
// access. For a no-op plan it is the empty extractor.
func (q *Query) Extractor() (DocumentExtractor, error) {
	plan, err := q.Plan()
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return EmptyExtractor(), nil
	}
	deadline := StartDeadline(q.opts.Timeout)
	w := newWorker(plan.Connection().Executor, deadline, q.opts, q.logger)
	conv := newHitConverter(q.registry, q.spec)
	return newExtractor(w, plan.Request(), conv, q.spec.First(), q.spec.Max()), nil
}

// execute runs the plain search once and caches the raw response.
func (q *Query) execute(ctx context.Context) error {
	if q.resp != nil {
		return nil
	}
	plan, err := q.Plan()
	if err != nil {
		return err
	}
	q.deadline = StartDeadline(q.opts.Timeout)

	if plan.Empty() {
		q.resp = &backend.Response{}
		return nil
	}

	req := *plan.Request()
	req.From = q.spec.First()
	if max := q.spec.Max(); max != nil {
		req.Size = *max
	} else {
		// Backends default to a handful of rows; take everything the
		// result window allows instead.
		req.Size = maxResultWindow - req.From
	}

	w := newWorker(plan.Connection().Executor, q.deadline, q.opts, q.logger)
	resp, err := w.search(ctx, &req)
	if err != nil {
		return fmt.Errorf("query %s: %w", plan.Describe(), err)
	}
	q.resp = resp
	return nil
}
