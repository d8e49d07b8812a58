package sqlite

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
)

// whereClause translates a predicate tree into a SQL condition over the
// docs table (aliased d). Full-text match nodes are routed through the
// FTS5 shadow table.
func whereClause(n predicate.Node, args *[]any) (string, error) {
	switch n.Kind() {
	case predicate.KindMatchAll:
		return "1=1", nil
	case predicate.KindMatch:
		*args = append(*args, matchExpr(n.Text()), n.Field())
		return "d.rowid IN (SELECT doc_rowid FROM docs_fts WHERE docs_fts MATCH ? AND field = ?)", nil
	case predicate.KindTerm:
		expr := fieldExpr(n.Field(), args)
		*args = append(*args, n.Value())
		return expr + " = ?", nil
	case predicate.KindTerms:
		expr := fieldExpr(n.Field(), args)
		placeholders := make([]string, 0, len(n.Values()))
		for _, v := range n.Values() {
			placeholders = append(placeholders, "?")
			*args = append(*args, v)
		}
		return fmt.Sprintf("%s IN (%s)", expr, strings.Join(placeholders, ", ")), nil
	case predicate.KindRange:
		return rangeClause(n.Field(), n.Range(), args), nil
	case predicate.KindBool:
		return boolClause(n, args)
	default:
		return "", fmt.Errorf("unknown predicate kind %s", n.Kind())
	}
}

// fieldExpr maps the reserved _type and _id fields to their table
// columns; everything else reads the JSON body.
func fieldExpr(field string, args *[]any) string {
	switch field {
	case "_type":
		return "d.type"
	case "_id":
		return "d.doc_id"
	default:
		*args = append(*args, field)
		return "json_extract(d.body, '$.' || ?)"
	}
}

func boolClause(n predicate.Node, args *[]any) (string, error) {
	var parts []string

	for _, group := range [][]predicate.Node{n.Must(), n.Filter()} {
		for _, child := range group {
			sub, err := whereClause(child, args)
			if err != nil {
				return "", err
			}
			parts = append(parts, sub)
		}
	}

	if should := n.Should(); len(should) > 0 {
		var ors []string
		for _, child := range should {
			sub, err := whereClause(child, args)
			if err != nil {
				return "", err
			}
			ors = append(ors, sub)
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}

	for _, child := range n.MustNot() {
		sub, err := whereClause(child, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, "NOT ("+sub+")")
	}

	if len(parts) == 0 {
		return "1=1", nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func rangeClause(field string, r *predicate.Range, args *[]any) string {
	var parts []string
	add := func(op string, v float64) {
		*args = append(*args, field, v)
		parts = append(parts, fmt.Sprintf("CAST(json_extract(d.body, '$.' || ?) AS REAL) %s ?", op))
	}
	if v := r.GT(); v != nil {
		add(">", *v)
	}
	if v := r.GTE(); v != nil {
		add(">=", *v)
	}
	if v := r.LT(); v != nil {
		add("<", *v)
	}
	if v := r.LTE(); v != nil {
		add("<=", *v)
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// matchExpr quotes user text for an FTS5 MATCH over the content column.
func matchExpr(text string) string {
	terms := strings.Fields(text)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return "content: " + strings.Join(quoted, " ")
}

// scoreExpr returns the SQL expression for a hit's relevance score.
// When the query is a single full-text match, the score is the negated
// FTS5 bm25 rank (higher is better). Other query shapes get a constant
// score: the embedded engine does not combine ranks across clauses.
func scoreExpr(n predicate.Node, args *[]any) string {
	if m, ok := singleMatch(n); ok {
		*args = append(*args, matchExpr(m.Text()), m.Field())
		return "COALESCE((SELECT -bm25(docs_fts) FROM docs_fts " +
			"WHERE docs_fts MATCH ? AND field = ? AND doc_rowid = d.rowid LIMIT 1), 0)"
	}
	return "1.0"
}

// singleMatch unwraps a query that is one match node, possibly inside
// single-element bool musts.
func singleMatch(n predicate.Node) (predicate.Node, bool) {
	for {
		switch n.Kind() {
		case predicate.KindMatch:
			return n, true
		case predicate.KindBool:
			if len(n.Must()) == 1 {
				n = n.Must()[0]
				continue
			}
			return predicate.Node{}, false
		default:
			return predicate.Node{}, false
		}
	}
}

// orderBy renders sort clauses. Distance sorts are not supported by the
// embedded engine.
func orderBy(sorts []backend.Sort, args *[]any) (string, error) {
	if len(sorts) == 0 {
		return "ORDER BY score DESC, d.rowid ASC", nil
	}
	var parts []string
	for _, s := range sorts {
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		switch s.Kind {
		case backend.SortByScore:
			parts = append(parts, "score "+dir)
		case backend.SortByField:
			*args = append(*args, s.Field)
			parts = append(parts, "json_extract(d.body, '$.' || ?) "+dir)
		case backend.SortByDistance:
			return "", fmt.Errorf("distance sort is not supported by the embedded engine")
		}
	}
	parts = append(parts, "d.rowid ASC")
	return "ORDER BY " + strings.Join(parts, ", "), nil
}
