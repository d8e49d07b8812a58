// Package facet models facet requests and their aggregated results.
package facet

import "fmt"

// Kind discriminates facet request flavors.
type Kind int

const (
	// KindDiscrete enumerates distinct field values with counts.
	KindDiscrete Kind = iota
	// KindRange counts documents per configured value range.
	KindRange
)

// Order is the ordering applied to facet values.
type Order int

const (
	// CountDesc orders by document count, highest first.
	CountDesc Order = iota
	// CountAsc orders by document count, lowest first.
	CountAsc
	// ValueAsc orders alphabetically by facet label.
	ValueAsc
	// ValueDesc orders reverse-alphabetically by facet label.
	ValueDesc
	// RangeDefinitionOrder keeps ranges in the order they were declared.
	// Only meaningful for range facets.
	RangeDefinitionOrder
)

// Request names a field to facet on and how to bucket it.
type Request struct {
	name              string
	field             string
	kind              Kind
	order             Order
	includeZeroCounts bool
	maxCount          int
	ranges            []Range
}

// NewDiscrete creates a discrete facet request. maxCount <= 0 means no limit.
func NewDiscrete(name, field string, order Order, includeZeroCounts bool, maxCount int) (Request, error) {
	if name == "" || field == "" {
		return Request{}, fmt.Errorf("facet request requires a name and a field")
	}
	if order == RangeDefinitionOrder {
		return Request{}, fmt.Errorf("facet %q: range definition order is only valid for range facets", name)
	}
	return Request{
		name:              name,
		field:             field,
		kind:              KindDiscrete,
		order:             order,
		includeZeroCounts: includeZeroCounts,
		maxCount:          maxCount,
	}, nil
}

// NewRanges creates a range facet request over the given ranges.
func NewRanges(name, field string, order Order, includeZeroCounts bool, ranges []Range) (Request, error) {
	if name == "" || field == "" {
		return Request{}, fmt.Errorf("facet request requires a name and a field")
	}
	if len(ranges) == 0 {
		return Request{}, fmt.Errorf("facet %q: at least one range is required", name)
	}
	seen := make(map[string]struct{}, len(ranges))
	for _, r := range ranges {
		if _, dup := seen[r.id]; dup {
			return Request{}, fmt.Errorf("facet %q: duplicate range id %q", name, r.id)
		}
		seen[r.id] = struct{}{}
	}
	return Request{
		name:              name,
		field:             field,
		kind:              KindRange,
		order:             order,
		includeZeroCounts: includeZeroCounts,
		ranges:            ranges,
	}, nil
}

// Name returns the request name; facet results are keyed by it.
func (r Request) Name() string { return r.name }

// Field returns the faceted field.
func (r Request) Field() string { return r.field }

// Kind returns the request flavor.
func (r Request) Kind() Kind { return r.kind }

// Sort returns the requested value ordering.
func (r Request) Sort() Order { return r.order }

// IncludeZeroCounts reports whether empty buckets are kept.
func (r Request) IncludeZeroCounts() bool { return r.includeZeroCounts }

// MaxCount returns the discrete bucket limit, 0 for unlimited.
func (r Request) MaxCount() int { return r.maxCount }

// Ranges returns the configured ranges of a range facet.
func (r Request) Ranges() []Range { return r.ranges }

// Range is one bucket of a range facet. Bounds are expressed on the
// field's numeric axis (epoch milliseconds for time fields).
type Range struct {
	id         string
	label      string
	min        *float64
	max        *float64
	includeMin bool
	includeMax bool
}

// NewRange creates a facet range. Either bound may be nil for a half-open range.
func NewRange(id, label string, minBound, maxBound *float64, includeMin, includeMax bool) (Range, error) {
	if id == "" {
		return Range{}, fmt.Errorf("facet range requires an id")
	}
	if minBound == nil && maxBound == nil {
		return Range{}, fmt.Errorf("facet range %q requires at least one bound", id)
	}
	if label == "" {
		label = defaultLabel(minBound, maxBound, includeMin, includeMax)
	}
	return Range{id: id, label: label, min: minBound, max: maxBound, includeMin: includeMin, includeMax: includeMax}, nil
}

func defaultLabel(minBound, maxBound *float64, includeMin, includeMax bool) string {
	open, low := "(", "*"
	if minBound != nil {
		low = fmt.Sprintf("%g", *minBound)
		if includeMin {
			open = "["
		}
	}
	closing, high := ")", "*"
	if maxBound != nil {
		high = fmt.Sprintf("%g", *maxBound)
		if includeMax {
			closing = "]"
		}
	}
	return open + low + ", " + high + closing
}

// ID returns the range identifier used in aggregation names.
func (r Range) ID() string { return r.id }

// Label returns the human-readable range label used as the facet value.
func (r Range) Label() string { return r.label }

// Min returns the lower bound, nil if unbounded.
func (r Range) Min() *float64 { return r.min }

// Max returns the upper bound, nil if unbounded.
func (r Range) Max() *float64 { return r.max }

// IncludeMin reports whether the lower bound is inclusive.
func (r Range) IncludeMin() bool { return r.includeMin }

// IncludeMax reports whether the upper bound is inclusive.
func (r Range) IncludeMax() bool { return r.includeMax }

// Value is one facet result: a label and the number of matching documents.
type Value struct {
	Label string
	Count int
}
