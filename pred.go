package textdex

import (
	"fmt"

	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
)

// Pred is a composable query predicate. Construction errors are carried
// inside and surface when the query is built.
type Pred struct {
	node predicate.Node
	err  error
}

// All matches every document.
func All() Pred {
	return Pred{node: predicate.MatchAll()}
}

// Match matches documents whose analyzed field contains the text.
func Match(field, text string) Pred {
	node, err := predicate.Match(field, text)
	if err != nil {
		return Pred{err: fmt.Errorf("match: %w", err)}
	}
	return Pred{node: node}
}

// Eq matches documents whose field equals the exact value.
func Eq(field, value string) Pred {
	node, err := predicate.Term(field, value)
	if err != nil {
		return Pred{err: fmt.Errorf("eq: %w", err)}
	}
	return Pred{node: node}
}

// In matches documents whose field equals any of the values.
func In(field string, values ...string) Pred {
	node, err := predicate.Terms(field, values...)
	if err != nil {
		return Pred{err: fmt.Errorf("in: %w", err)}
	}
	return Pred{node: node}
}

// Bounds sets the open or closed interval for Between.
type Bounds struct {
	GT, GTE, LT, LTE *float64
}

// Between matches documents whose numeric field falls in the bounds.
func Between(field string, b Bounds) Pred {
	r, err := predicate.NewRange(b.GT, b.GTE, b.LT, b.LTE)
	if err != nil {
		return Pred{err: fmt.Errorf("between: %w", err)}
	}
	node, err := predicate.InRange(field, r)
	if err != nil {
		return Pred{err: fmt.Errorf("between: %w", err)}
	}
	return Pred{node: node}
}

// And requires all predicates to match.
func And(preds ...Pred) Pred {
	nodes, err := nodesOf(preds)
	if err != nil {
		return Pred{err: err}
	}
	return Pred{node: predicate.Bool(nodes, nil, nil, nil)}
}

// Or requires at least one predicate to match.
func Or(preds ...Pred) Pred {
	nodes, err := nodesOf(preds)
	if err != nil {
		return Pred{err: err}
	}
	return Pred{node: predicate.Bool(nil, nil, nodes, nil)}
}

// Not excludes documents matching any of the predicates.
func Not(preds ...Pred) Pred {
	nodes, err := nodesOf(preds)
	if err != nil {
		return Pred{err: err}
	}
	return Pred{node: predicate.Bool(nil, nil, nil, nodes)}
}

func nodesOf(preds []Pred) ([]predicate.Node, error) {
	nodes := make([]predicate.Node, 0, len(preds))
	for _, p := range preds {
		if p.err != nil {
			return nil, p.err
		}
		nodes = append(nodes, p.node)
	}
	return nodes, nil
}

// Float returns a pointer for use in Bounds.
func Float(v float64) *float64 { return &v }
