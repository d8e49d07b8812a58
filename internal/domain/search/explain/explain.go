// Package explain holds the backend-neutral relevance explanation tree.
package explain

// Node is one node of a relevance explanation tree.
type Node struct {
	Value       float64
	Description string
	Details     []Node
}
