// Package backend defines the neutral request/response types shared by
// all index drivers, and the Executor capability the engine runs
// queries through. Wire formats (JSON DSL, SQL) live in the driver
// subpackages, never here.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
)

// ErrCursorNotFound signals a scroll continuation with an unknown or
// expired cursor token.
var ErrCursorNotFound = errors.New("scroll cursor not found")

// Executor runs built requests against one backend instance. All calls
// are synchronous; errors surface to the caller without retries.
type Executor interface {
	// Search runs a plain offset+limit search.
	Search(ctx context.Context, req *Request) (*Response, error)
	// OpenScroll runs the scroll-initiating search. The offset is
	// ignored by scrolling backends; callers compensate by skipping.
	OpenScroll(ctx context.Context, req *Request, fetchSize int, keepAlive time.Duration) (*Response, error)
	// ContinueScroll fetches the next page for a cursor token.
	ContinueScroll(ctx context.Context, cursor string, keepAlive time.Duration) (*Response, error)
	// ClearScroll releases server-side cursor state.
	ClearScroll(ctx context.Context, cursor string) error
	// Explain fetches the relevance explanation for one document
	// against the given query.
	Explain(ctx context.Context, index, typeName, id string, q predicate.Node) (*Explanation, error)
}

// Connection is a named backend instance.
type Connection struct {
	Name     string
	Executor Executor
}

// SortKind discriminates request sort clauses.
type SortKind int

const (
	// SortByScore orders by relevance, best first.
	SortByScore SortKind = iota
	// SortByField orders by a stored field value.
	SortByField
	// SortByDistance orders by distance from a center point.
	SortByDistance
)

// Sort is one request-level sort clause.
type Sort struct {
	Kind       SortKind
	Field      string
	Descending bool
	// Center coordinates for SortByDistance.
	Lat, Lon float64
}

// AggKind discriminates aggregation clauses.
type AggKind int

const (
	// AggTerms buckets documents by distinct field value.
	AggTerms AggKind = iota
	// AggRangeCount counts documents whose field value falls in one range.
	AggRangeCount
)

// Aggregation is one aggregation clause keyed by Name in the response.
type Aggregation struct {
	Name  string
	Field string
	Kind  AggKind
	// Size limits terms buckets; 0 means backend default.
	Size int
	// MinDocCount is the smallest bucket kept by the backend (terms only).
	MinDocCount int
	// Range bounds for AggRangeCount, on the field's numeric axis.
	Min, Max               *float64
	IncludeMin, IncludeMax bool
	// Order of terms buckets: "count_desc", "count_asc", "value_asc", "value_desc".
	Order string
}

// Request is a built, immutable search request.
type Request struct {
	Indices      []string
	Query        predicate.Node
	Aggregations []Aggregation
	Sorts        []Sort
	// Fields restricts the returned source to the named fields; empty
	// returns the whole source.
	Fields []string
	// From and Size page plain searches; both ignored when scrolling.
	From int
	Size int
}

// Hit is one raw matched document.
type Hit struct {
	Index  string
	Type   string
	ID     string
	Score  float64
	Source map[string]any
	// Sort holds the backend-computed sort values, aligned with the
	// request's sort clauses.
	Sort []any
}

// Bucket is one terms-aggregation bucket.
type Bucket struct {
	Key      string
	DocCount int
}

// Aggregate is one named aggregation result.
type Aggregate struct {
	// DocCount is set for range-count aggregations.
	DocCount int
	// Buckets is set for terms aggregations.
	Buckets []Bucket
}

// Response is a parsed backend reply for one search or scroll call.
type Response struct {
	Total        int
	Hits         []Hit
	Aggregations map[string]Aggregate
	// Cursor is the scroll token for the next page, empty when not scrolling.
	Cursor     string
	TookMillis int
	TimedOut   bool
}

// Explanation is a backend relevance-explanation tree.
type Explanation struct {
	Value       float64
	Description string
	Details     []Explanation
}
