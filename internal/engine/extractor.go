package engine

import (
	"context"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain"
)

// extractorState is the cursor-protocol state of an Extractor.
type extractorState int

const (
	// stateUnopened: no scroll has been started yet.
	stateUnopened extractorState = iota
	// stateInitialized: the scroll is open and the total count is known.
	stateInitialized
	// stateExhausted: fetching yields no further hits.
	stateExhausted
	// stateClosed: terminal; the cursor is released and the buffer cleared.
	stateClosed
)

// DocumentExtractor presents random access by absolute result index
// over a result set the backend only exposes through forward-only
// cursor iteration. Not safe for concurrent use.
type DocumentExtractor interface {
	// Extract returns the converted result at the given absolute index,
	// fetching further pages as needed.
	Extract(ctx context.Context, index int) (*Ref, error)
	// FirstIndex returns the first-result offset of the query.
	FirstIndex() int
	// MaxIndex returns the largest valid index.
	MaxIndex(ctx context.Context) (int, error)
	// Close releases the cursor. Idempotent; callers must guarantee it
	// runs on every exit path.
	Close(ctx context.Context) error
}

// Extractor implements DocumentExtractor over a scroll cursor with a
// bounded backtracking window.
type Extractor struct {
	worker *worker
	req    *backend.Request
	conv   *hitConverter

	first int
	// indexLimit is first+max when a max-results ceiling is set.
	indexLimit *int
	backtrack  int

	state   extractorState
	cursor  string
	total   int
	results *window[*Ref]
}

func newExtractor(w *worker, req *backend.Request, conv *hitConverter, first int, max *int) *Extractor {
	var indexLimit *int
	if max != nil {
		limit := first + *max
		indexLimit = &limit
	}
	return &Extractor{
		worker:     w,
		req:        req,
		conv:       conv,
		first:      first,
		indexLimit: indexLimit,
		backtrack:  w.opts.BacktrackingWindow,
		// Worst case: a page was just fetched and the full backtracking
		// capacity must survive behind it.
		//
		// The window starts at absolute index 0 even when a first-result
		// offset is set: the backend ignores offsets while scrolling, so
		// skipping happens here, by index, on the client side.
		results: newWindow[*Ref](0, w.opts.BacktrackingWindow+w.opts.ScrollFetchSize),
	}
}

// Extract returns the result at index, scrolling forward as needed.
func (e *Extractor) Extract(ctx context.Context, index int) (*Ref, error) {
	if e.state == stateClosed {
		return nil, domain.ErrExtractorClosed
	}
	if index < 0 {
		return nil, domain.NewBoundsError(index, -1)
	}
	if index < e.results.Start() {
		return nil, domain.NewBacktrackError(e.backtrack, e.results.Start(), index)
	}

	if err := e.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	maxIndex := e.maxIndex()
	if index > maxIndex {
		return nil, domain.NewBoundsError(index, maxIndex)
	}

	for e.results.Start()+e.results.Len() <= index && e.state != stateExhausted {
		if err := e.fetchNext(ctx); err != nil {
			return nil, err
		}
	}

	if index >= e.results.Start()+e.results.Len() {
		// Fetching dried up early (e.g. hits dropped as unmappable).
		return nil, domain.NewBoundsError(index, e.results.Start()+e.results.Len()-1)
	}
	return e.results.Get(index), nil
}

// FirstIndex returns the query's first-result offset.
func (e *Extractor) FirstIndex() int { return e.first }

// MaxIndex returns the largest valid index, initializing the scroll if
// needed to learn the total hit count.
func (e *Extractor) MaxIndex(ctx context.Context) (int, error) {
	if e.state == stateClosed {
		return 0, domain.ErrExtractorClosed
	}
	if err := e.ensureInitialized(ctx); err != nil {
		return 0, err
	}
	return e.maxIndex(), nil
}

func (e *Extractor) maxIndex() int {
	if e.indexLimit == nil {
		return e.total - 1
	}
	if e.total < *e.indexLimit {
		return e.total - 1
	}
	return *e.indexLimit - 1
}

// Close releases the cursor and clears the buffer. Safe to call more
// than once; a closed extractor stays closed.
func (e *Extractor) Close(ctx context.Context) error {
	if e.state == stateClosed {
		return nil
	}
	if e.cursor != "" {
		e.worker.clearScroll(ctx, e.cursor)
		e.cursor = ""
	}
	e.total = 0
	e.results.Clear()
	e.state = stateClosed
	return nil
}

func (e *Extractor) ensureInitialized(ctx context.Context) error {
	if e.state != stateUnopened {
		return nil
	}
	resp, err := e.worker.openScroll(ctx, e.req)
	if err != nil {
		return err
	}
	e.total = resp.Total
	e.state = stateInitialized
	if _, err := e.extractPage(resp); err != nil {
		return err
	}
	return nil
}

func (e *Extractor) fetchNext(ctx context.Context) error {
	if e.total <= e.results.Start()+e.results.Len() {
		e.state = stateExhausted
		return nil
	}
	resp, err := e.worker.continueScroll(ctx, e.cursor)
	if err != nil {
		return err
	}
	fetched, err := e.extractPage(resp)
	if err != nil {
		return err
	}
	if !fetched {
		e.state = stateExhausted
	}
	return nil
}

// extractPage converts a page of hits into the window, dropping hits
// that map to no known binding. Reports whether anything was added.
func (e *Extractor) extractPage(resp *backend.Response) (bool, error) {
	if resp.Cursor != "" {
		e.cursor = resp.Cursor
	}
	fetched := false
	for _, hit := range resp.Hits {
		ref, err := e.conv.convert(hit)
		if err != nil {
			return fetched, err
		}
		if ref == nil {
			continue
		}
		e.results.Add(ref)
		fetched = true
	}
	return fetched, nil
}

// emptyExtractor serves queries that resolved to zero target indices.
type emptyExtractor struct{}

// EmptyExtractor returns the extractor for a no-op query: zero results,
// MaxIndex of -1, and a no-op Close.
func EmptyExtractor() DocumentExtractor { return emptyExtractor{} }

func (emptyExtractor) Extract(_ context.Context, index int) (*Ref, error) {
	if index < 0 {
		return nil, domain.NewBoundsError(index, -1)
	}
	return nil, domain.NewBoundsError(index, -1)
}

func (emptyExtractor) FirstIndex() int { return 0 }

func (emptyExtractor) MaxIndex(context.Context) (int, error) { return -1, nil }

func (emptyExtractor) Close(context.Context) error { return nil }
