package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
)

// maxResultWindow caps first+size for plain searches when the caller
// sets no max-results ceiling; backends reject deeper offset paging.
const maxResultWindow = 10000

// Options tunes query execution.
type Options struct {
	// ScrollFetchSize is the page size for scrolled fetches.
	ScrollFetchSize int
	// BacktrackingWindow is how many already-extracted results stay
	// addressable behind the latest fetched page.
	BacktrackingWindow int
	// ScrollKeepAlive is the server-side cursor timeout.
	ScrollKeepAlive time.Duration
	// Timeout bounds one query execution; 0 means unlimited.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ScrollFetchSize <= 0 {
		o.ScrollFetchSize = 1000
	}
	if o.BacktrackingWindow <= 0 {
		o.BacktrackingWindow = 1000
	}
	if o.ScrollKeepAlive <= 0 {
		o.ScrollKeepAlive = time.Minute
	}
	return o
}

// worker submits built requests to one backend connection. Fail-fast:
// every error surfaces to the caller; the only swallowed failure is
// cursor release, which is logged and ignored.
type worker struct {
	exec     backend.Executor
	deadline *Deadline
	opts     Options
	logger   *zap.Logger
}

func newWorker(exec backend.Executor, deadline *Deadline, opts Options, logger *zap.Logger) *worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &worker{exec: exec, deadline: deadline, opts: opts, logger: logger}
}

func (w *worker) search(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	if err := w.deadline.Check(); err != nil {
		return nil, err
	}
	resp, err := w.exec.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}
	return resp, nil
}

func (w *worker) openScroll(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	if err := w.deadline.Check(); err != nil {
		return nil, err
	}
	resp, err := w.exec.OpenScroll(ctx, req, w.opts.ScrollFetchSize, w.opts.ScrollKeepAlive)
	if err != nil {
		return nil, fmt.Errorf("open scroll: %w", err)
	}
	return resp, nil
}

func (w *worker) continueScroll(ctx context.Context, cursor string) (*backend.Response, error) {
	if err := w.deadline.Check(); err != nil {
		return nil, err
	}
	resp, err := w.exec.ContinueScroll(ctx, cursor, w.opts.ScrollKeepAlive)
	if err != nil {
		return nil, fmt.Errorf("continue scroll: %w", err)
	}
	return resp, nil
}

// clearScroll releases the server-side cursor. Best-effort: a failure
// leaks backend state that expires on its own, so it is never escalated.
func (w *worker) clearScroll(ctx context.Context, cursor string) {
	if err := w.exec.ClearScroll(ctx, cursor); err != nil {
		w.logger.Warn("Failed to clear scroll cursor", zap.Error(err))
	}
}

func (w *worker) explain(
	ctx context.Context, index, typeName, id string, q predicate.Node,
) (*backend.Explanation, error) {
	if err := w.deadline.Check(); err != nil {
		return nil, err
	}
	expl, err := w.exec.Explain(ctx, index, typeName, id, q)
	if err != nil {
		return nil, fmt.Errorf("explain hit %s: %w", id, err)
	}
	return expl, nil
}
