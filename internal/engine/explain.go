package engine

import (
	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/search/explain"
)

// convertExplanation recursively maps a backend explanation tree into
// the generic form. Absent details become an empty list, not an error.
func convertExplanation(e *backend.Explanation) explain.Node {
	node := explain.Node{
		Value:       e.Value,
		Description: e.Description,
		Details:     make([]explain.Node, 0, len(e.Details)),
	}
	for i := range e.Details {
		node.Details = append(node.Details, convertExplanation(&e.Details[i]))
	}
	return node
}
