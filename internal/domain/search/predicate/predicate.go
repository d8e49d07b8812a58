// Package predicate models the backend-neutral query predicate tree.
package predicate

import "fmt"

// Kind discriminates predicate tree nodes.
type Kind int

const (
	// KindMatchAll matches every document.
	KindMatchAll Kind = iota
	// KindMatch is a full-text match on a single field.
	KindMatch
	// KindTerm is an exact value match on a single field.
	KindTerm
	// KindTerms matches any of several exact values on a single field.
	KindTerms
	// KindRange is a numeric range on a single field.
	KindRange
	// KindBool combines sub-predicates with boolean semantics.
	KindBool
)

// String returns the wire-level name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMatchAll:
		return "match_all"
	case KindMatch:
		return "match"
	case KindTerm:
		return "term"
	case KindTerms:
		return "terms"
	case KindRange:
		return "range"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is one node of a predicate tree. The zero value is not valid;
// use the constructors.
type Node struct {
	kind   Kind
	field  string
	text   string
	values []string
	rng    *Range

	must    []Node
	filter  []Node
	should  []Node
	mustNot []Node
}

// MatchAll creates a predicate matching every document.
func MatchAll() Node {
	return Node{kind: KindMatchAll}
}

// Match creates a full-text match predicate.
func Match(field, text string) (Node, error) {
	if field == "" {
		return Node{}, fmt.Errorf("match predicate requires a field")
	}
	return Node{kind: KindMatch, field: field, text: text}, nil
}

// Term creates an exact-match predicate.
func Term(field, value string) (Node, error) {
	if field == "" {
		return Node{}, fmt.Errorf("term predicate requires a field")
	}
	return Node{kind: KindTerm, field: field, values: []string{value}}, nil
}

// Terms creates a predicate matching any of the given exact values.
func Terms(field string, values ...string) (Node, error) {
	if field == "" {
		return Node{}, fmt.Errorf("terms predicate requires a field")
	}
	if len(values) == 0 {
		return Node{}, fmt.Errorf("terms predicate on %q requires at least one value", field)
	}
	return Node{kind: KindTerms, field: field, values: values}, nil
}

// InRange creates a numeric range predicate.
func InRange(field string, r Range) (Node, error) {
	if field == "" {
		return Node{}, fmt.Errorf("range predicate requires a field")
	}
	if r.IsEmpty() {
		return Node{}, fmt.Errorf("range predicate on %q requires at least one bound", field)
	}
	return Node{kind: KindRange, field: field, rng: &r}, nil
}

// Bool combines sub-predicates. must contributes to scoring, filter,
// should and mustNot do not.
func Bool(must, filter, should, mustNot []Node) Node {
	return Node{kind: KindBool, must: must, filter: filter, should: should, mustNot: mustNot}
}

// Kind returns the node discriminator.
func (n Node) Kind() Kind { return n.kind }

// Field returns the targeted field for match/term/terms/range nodes.
func (n Node) Field() string { return n.field }

// Text returns the match text for match nodes.
func (n Node) Text() string { return n.text }

// Value returns the single value of a term node.
func (n Node) Value() string {
	if len(n.values) == 0 {
		return ""
	}
	return n.values[0]
}

// Values returns the values of a terms node.
func (n Node) Values() []string { return n.values }

// Range returns the range bounds of a range node.
func (n Node) Range() *Range { return n.rng }

// Must returns the scoring sub-predicates of a bool node.
func (n Node) Must() []Node { return n.must }

// Filter returns the non-scoring conjunctive sub-predicates of a bool node.
func (n Node) Filter() []Node { return n.filter }

// Should returns the disjunctive sub-predicates of a bool node.
func (n Node) Should() []Node { return n.should }

// MustNot returns the negated sub-predicates of a bool node.
func (n Node) MustNot() []Node { return n.mustNot }

// Fields appends every field referenced by the tree rooted at n to dst.
func (n Node) Fields(dst []string) []string {
	if n.field != "" {
		dst = append(dst, n.field)
	}
	for _, group := range [][]Node{n.must, n.filter, n.should, n.mustNot} {
		for _, child := range group {
			dst = child.Fields(dst)
		}
	}
	return dst
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRange validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRange(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// IsEmpty reports whether no boundary is set.
func (r Range) IsEmpty() bool {
	return r.gt == nil && r.gte == nil && r.lt == nil && r.lte == nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }
