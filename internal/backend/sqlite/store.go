// Package sqlite implements backend.Executor on an embedded SQLite
// database with an FTS5 shadow table for full-text matching. Scroll
// cursors are emulated in-process: the cursor token identifies a
// remembered request plus a page offset.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
)

// Compile-time check: Store implements backend.Executor.
var _ backend.Executor = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS docs (
	idx    TEXT NOT NULL,
	type   TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	body   TEXT NOT NULL,
	UNIQUE (idx, doc_id)
);
CREATE VIRTUAL TABLE IF NOT EXISTS docs_fts USING fts5(
	content, field UNINDEXED, doc_rowid UNINDEXED
);
`

// Store is an embedded Executor over a single database file
// (or ":memory:").
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	mu      sync.Mutex
	cursors map[string]*cursorState
}

type cursorState struct {
	req       *backend.Request
	fetchSize int
	offset    int
	total     int
	expires   time.Time
}

// Open creates or opens the embedded index database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, logger: logger, cursors: make(map[string]*cursorState)}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Doc is one document to index.
type Doc struct {
	Index  string
	Type   string
	ID     string
	Source map[string]any
	// TextFields names the Source fields included in full-text matching.
	TextFields []string
}

// Put upserts a document and its full-text shadow rows.
func (s *Store) Put(ctx context.Context, doc Doc) error {
	body, err := json.Marshal(doc.Source)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM docs_fts WHERE doc_rowid IN (SELECT rowid FROM docs WHERE idx = ? AND doc_id = ?)`,
		doc.Index, doc.ID); err != nil {
		return fmt.Errorf("clear fts rows for %s: %w", doc.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM docs WHERE idx = ? AND doc_id = ?`, doc.Index, doc.ID); err != nil {
		return fmt.Errorf("delete %s: %w", doc.ID, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO docs (idx, type, doc_id, body) VALUES (?, ?, ?, ?)`,
		doc.Index, doc.Type, doc.ID, string(body))
	if err != nil {
		return fmt.Errorf("insert %s: %w", doc.ID, err)
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("rowid of %s: %w", doc.ID, err)
	}

	for _, field := range doc.TextFields {
		content, ok := doc.Source[field].(string)
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO docs_fts (content, field, doc_rowid) VALUES (?, ?, ?)`,
			content, field, rowid); err != nil {
			return fmt.Errorf("index field %s of %s: %w", field, doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", doc.ID, err)
	}
	return nil
}

// Search runs a plain offset+limit search.
func (s *Store) Search(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	total, err := s.count(ctx, req)
	if err != nil {
		return nil, err
	}

	hits, err := s.page(ctx, req, req.From, req.Size)
	if err != nil {
		return nil, err
	}

	aggs, err := s.aggregate(ctx, req)
	if err != nil {
		return nil, err
	}

	return &backend.Response{Total: total, Hits: hits, Aggregations: aggs}, nil
}

// OpenScroll starts an emulated scroll: the first page plus a cursor
// token remembering the request and offset.
func (s *Store) OpenScroll(
	ctx context.Context, req *backend.Request, fetchSize int, keepAlive time.Duration,
) (*backend.Response, error) {
	total, err := s.count(ctx, req)
	if err != nil {
		return nil, err
	}
	hits, err := s.page(ctx, req, 0, fetchSize)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.expireCursorsLocked()
	s.cursors[token] = &cursorState{
		req:       req,
		fetchSize: fetchSize,
		offset:    len(hits),
		total:     total,
		expires:   time.Now().Add(keepAliveOrDefault(keepAlive)),
	}
	s.mu.Unlock()

	return &backend.Response{Total: total, Hits: hits, Cursor: token}, nil
}

// ContinueScroll fetches the next page for a cursor token.
func (s *Store) ContinueScroll(
	ctx context.Context, cursor string, keepAlive time.Duration,
) (*backend.Response, error) {
	s.mu.Lock()
	s.expireCursorsLocked()
	st, ok := s.cursors[cursor]
	if !ok {
		s.mu.Unlock()
		return nil, backend.ErrCursorNotFound
	}
	req, offset, fetchSize, total := st.req, st.offset, st.fetchSize, st.total
	st.expires = time.Now().Add(keepAliveOrDefault(keepAlive))
	s.mu.Unlock()

	hits, err := s.page(ctx, req, offset, fetchSize)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if st, ok := s.cursors[cursor]; ok {
		st.offset = offset + len(hits)
	}
	s.mu.Unlock()

	return &backend.Response{Total: total, Hits: hits, Cursor: cursor}, nil
}

// ClearScroll drops cursor state. Unknown tokens are a no-op.
func (s *Store) ClearScroll(_ context.Context, cursor string) error {
	s.mu.Lock()
	delete(s.cursors, cursor)
	s.mu.Unlock()
	return nil
}

// Explain reports the document's score for the query. The embedded
// engine has no scoring tree: the explanation is a single bm25 node.
func (s *Store) Explain(
	ctx context.Context, index, _, id string, q predicate.Node,
) (*backend.Explanation, error) {
	var args []any
	score := scoreExpr(q, &args)
	args = append(args, index, id)

	row := s.db.QueryRowContext(ctx,
		`SELECT `+score+` AS score FROM docs d WHERE d.idx = ? AND d.doc_id = ?`, args...)

	var value float64
	if err := row.Scan(&value); err != nil {
		return nil, fmt.Errorf("explain %s/%s: %w", index, id, err)
	}

	desc := "constant score"
	if m, ok := singleMatch(q); ok {
		desc = fmt.Sprintf("bm25(%s: %s)", m.Field(), m.Text())
	}
	return &backend.Explanation{Value: value, Description: desc}, nil
}

func (s *Store) count(ctx context.Context, req *backend.Request) (int, error) {
	var args []any
	idxFilter := indexFilter(req.Indices, &args)
	where, err := whereClause(req.Query, &args)
	if err != nil {
		return 0, fmt.Errorf("translate query: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM docs d WHERE `+idxFilter+` AND `+where, args...)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return total, nil
}

func (s *Store) page(ctx context.Context, req *backend.Request, offset, limit int) ([]backend.Hit, error) {
	var args []any
	score := scoreExpr(req.Query, &args)
	idxFilter := indexFilter(req.Indices, &args)
	where, err := whereClause(req.Query, &args)
	if err != nil {
		return nil, fmt.Errorf("translate query: %w", err)
	}
	order, err := orderBy(req.Sorts, &args)
	if err != nil {
		return nil, fmt.Errorf("translate sorts: %w", err)
	}
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx,
		`SELECT d.idx, d.type, d.doc_id, d.body, `+score+` AS score
		 FROM docs d WHERE `+idxFilter+` AND `+where+` `+order+` LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("search page: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logger.Warn("Failed to close result rows", zap.Error(cerr))
		}
	}()

	var hits []backend.Hit
	for rows.Next() {
		var h backend.Hit
		var body string
		if err := rows.Scan(&h.Index, &h.Type, &h.ID, &body, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &h.Source); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", h.ID, err)
		}
		if len(req.Fields) > 0 {
			h.Source = project(h.Source, req.Fields)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}

func (s *Store) aggregate(ctx context.Context, req *backend.Request) (map[string]backend.Aggregate, error) {
	if len(req.Aggregations) == 0 {
		return nil, nil
	}
	out := make(map[string]backend.Aggregate, len(req.Aggregations))
	for _, agg := range req.Aggregations {
		var (
			result backend.Aggregate
			err    error
		)
		switch agg.Kind {
		case backend.AggTerms:
			result, err = s.termsAgg(ctx, req, agg)
		case backend.AggRangeCount:
			result, err = s.rangeCountAgg(ctx, req, agg)
		default:
			err = fmt.Errorf("unknown aggregation kind %d", agg.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("aggregation %q: %w", agg.Name, err)
		}
		out[agg.Name] = result
	}
	return out, nil
}

func (s *Store) termsAgg(ctx context.Context, req *backend.Request, agg backend.Aggregation) (backend.Aggregate, error) {
	var args []any
	args = append(args, agg.Field)
	idxFilter := indexFilter(req.Indices, &args)
	where, err := whereClause(req.Query, &args)
	if err != nil {
		return backend.Aggregate{}, err
	}

	order := "c DESC, k ASC"
	switch agg.Order {
	case "count_asc":
		order = "c ASC, k ASC"
	case "value_asc":
		order = "k ASC"
	case "value_desc":
		order = "k DESC"
	}

	limit := agg.Size
	if limit <= 0 {
		limit = 10
	}
	args = append(args, agg.MinDocCount, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT CAST(json_extract(d.body, '$.' || ?) AS TEXT) AS k, COUNT(*) AS c
		 FROM docs d WHERE `+idxFilter+` AND `+where+`
		 GROUP BY k HAVING k IS NOT NULL AND c >= ?
		 ORDER BY `+order+` LIMIT ?`,
		args...)
	if err != nil {
		return backend.Aggregate{}, err
	}
	defer func() { _ = rows.Close() }()

	var result backend.Aggregate
	for rows.Next() {
		var b backend.Bucket
		if err := rows.Scan(&b.Key, &b.DocCount); err != nil {
			return backend.Aggregate{}, err
		}
		result.Buckets = append(result.Buckets, b)
	}
	return result, rows.Err()
}

func (s *Store) rangeCountAgg(ctx context.Context, req *backend.Request, agg backend.Aggregation) (backend.Aggregate, error) {
	var args []any
	idxFilter := indexFilter(req.Indices, &args)
	where, err := whereClause(req.Query, &args)
	if err != nil {
		return backend.Aggregate{}, err
	}

	var bounds []string
	add := func(op string, v float64) {
		args = append(args, agg.Field, v)
		bounds = append(bounds, fmt.Sprintf("CAST(json_extract(d.body, '$.' || ?) AS REAL) %s ?", op))
	}
	if agg.Min != nil {
		if agg.IncludeMin {
			add(">=", *agg.Min)
		} else {
			add(">", *agg.Min)
		}
	}
	if agg.Max != nil {
		if agg.IncludeMax {
			add("<=", *agg.Max)
		} else {
			add("<", *agg.Max)
		}
	}
	cond := "1=1"
	if len(bounds) > 0 {
		cond = strings.Join(bounds, " AND ")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM docs d WHERE `+idxFilter+` AND `+where+` AND `+cond, args...)
	var result backend.Aggregate
	if err := row.Scan(&result.DocCount); err != nil {
		return backend.Aggregate{}, err
	}
	return result, nil
}

func indexFilter(indices []string, args *[]any) string {
	placeholders := make([]string, 0, len(indices))
	for _, idx := range indices {
		placeholders = append(placeholders, "?")
		*args = append(*args, idx)
	}
	return "d.idx IN (" + strings.Join(placeholders, ", ") + ")"
}

func project(source map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := source[f]; ok {
			out[f] = v
		}
	}
	return out
}

func keepAliveOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Minute
	}
	return d
}

func (s *Store) expireCursorsLocked() {
	now := time.Now()
	for token, st := range s.cursors {
		if now.After(st.expires) {
			delete(s.cursors, token)
		}
	}
}
