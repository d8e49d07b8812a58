// Package textdex is a typed search layer over full-text backends.
// Callers describe queries as predicate trees with sorts, facets and
// projections; the client translates them for the configured backend
// and converts raw hits back into typed results.
package textdex

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/backend/elastic"
	"github.com/kailas-cloud/textdex/internal/backend/sqlite"
	"github.com/kailas-cloud/textdex/internal/engine"
	"github.com/kailas-cloud/textdex/internal/mapping"
)

const connectionName = "default"

// Field describes one indexed field of a mapped type.
type Field struct {
	Name string
	// Kind is one of "keyword", "text", "int", "float", "bool",
	// "time", "geo".
	Kind      string
	Sortable  bool
	Facetable bool
}

// Client is the textdex SDK entry point.
type Client struct {
	registry    *mapping.Registry
	connections map[string]backend.Connection
	opts        engine.Options
	logger      *zap.Logger
	closeFn     func() error
}

// New creates a textdex Client for the configured backend.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	exec, closeFn, err := createExecutor(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		registry: mapping.NewRegistry(),
		connections: map[string]backend.Connection{
			connectionName: {Name: connectionName, Executor: exec},
		},
		opts: engine.Options{
			ScrollFetchSize:    cfg.scrollFetchSize,
			BacktrackingWindow: cfg.backtrackingWindow,
			ScrollKeepAlive:    cfg.scrollKeepAlive,
			Timeout:            cfg.queryTimeout,
		},
		logger:  cfg.logger,
		closeFn: closeFn,
	}, nil
}

func createExecutor(cfg *clientConfig) (backend.Executor, func() error, error) {
	switch cfg.driver {
	case "elastic":
		timeout := cfg.timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client, err := elastic.NewClient(elastic.Config{
			BaseURL:  cfg.url,
			Username: cfg.username,
			Password: cfg.password,
			Timeout:  timeout,
		}, cfg.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("textdex: create elastic client: %w", err)
		}
		return client, func() error { return nil }, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.path, cfg.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("textdex: open sqlite store: %w", err)
		}
		return store, store.Close, nil
	case "":
		return nil, nil, errors.New("textdex: backend required (use WithElasticsearch or WithSQLite)")
	default:
		return nil, nil, fmt.Errorf("textdex: unknown driver %q", cfg.driver)
	}
}

// Close releases backend resources.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// MapType binds a document type to an index with its field metadata.
// An empty indexName registers the type as unindexed: queries naming
// only unindexed types match nothing.
func (c *Client) MapType(typeName, indexName string, fields ...Field) error {
	mapped := make([]mapping.Field, 0, len(fields))
	for _, f := range fields {
		kind, err := mapping.ParseKind(f.Kind)
		if err != nil {
			return fmt.Errorf("textdex: field %s: %w", f.Name, err)
		}
		mapped = append(mapped, mapping.Field{
			Name:      f.Name,
			Kind:      kind,
			Sortable:  f.Sortable,
			Facetable: f.Facetable,
		})
	}

	conn := connectionName
	if indexName == "" {
		conn = ""
	}
	binding, err := mapping.NewBinding(typeName, indexName, conn, mapped)
	if err != nil {
		return fmt.Errorf("textdex: map type %s: %w", typeName, err)
	}
	if err := c.registry.Add(binding); err != nil {
		return fmt.Errorf("textdex: map type %s: %w", typeName, err)
	}
	return nil
}

// Search starts a query builder over the given document types.
func (c *Client) Search(types ...string) *QueryBuilder {
	return &QueryBuilder{client: c, types: types}
}
