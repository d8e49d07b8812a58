package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMixedBackends signals a query targeting indexes on different backend connections.
	ErrMixedBackends = errors.New("query targets indexes on different backends")
	// ErrUnsortableField signals a sort on a field not marked sortable.
	ErrUnsortableField = errors.New("field is not sortable")
	// ErrNotFacetable signals a facet request on a field not marked facetable.
	ErrNotFacetable = errors.New("field is not facetable")
	// ErrUnknownType signals a query targeting an entity type with no binding.
	ErrUnknownType = errors.New("unknown entity type")
	// ErrUnknownField signals a reference to a field absent from the binding.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnsupportedRangeKind signals a range facet over a non-numeric, non-time field.
	ErrUnsupportedRangeKind = errors.New("unsupported range facet value kind")
	// ErrUnsupportedProjection signals an unrecognized projection constant.
	ErrUnsupportedProjection = errors.New("unsupported projection")
	// ErrTimedOut signals that the query deadline was exceeded.
	ErrTimedOut = errors.New("query timed out")
	// ErrExtractorClosed signals use of a closed document extractor.
	ErrExtractorClosed = errors.New("extractor is closed")
)

// BoundsError wraps an out-of-range extractor index with the valid bound.
type BoundsError struct {
	Index int
	Max   int
}

func (e *BoundsError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("index %d must be >= 0", e.Index)
	}
	return fmt.Sprintf("index %d out of range [0, %d]", e.Index, e.Max)
}

// NewBoundsError creates an out-of-range error.
func NewBoundsError(index, maxIndex int) error {
	return &BoundsError{Index: index, Max: maxIndex}
}

// BacktrackError signals backward access beyond the retained window.
type BacktrackError struct {
	WindowSize  int
	WindowStart int
	Index       int
}

func (e *BacktrackError) Error() string {
	return fmt.Sprintf(
		"cannot backtrack to index %d: window of size %d starts at index %d",
		e.Index, e.WindowSize, e.WindowStart,
	)
}

// NewBacktrackError creates a backtracking overflow error.
func NewBacktrackError(windowSize, windowStart, index int) error {
	return &BacktrackError{WindowSize: windowSize, WindowStart: windowStart, Index: index}
}
