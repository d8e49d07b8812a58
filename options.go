package textdex

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver   string // "elastic" or "sqlite"
	url      string
	username string
	password string
	path     string
	timeout  time.Duration

	scrollFetchSize    int
	backtrackingWindow int
	scrollKeepAlive    time.Duration
	queryTimeout       time.Duration

	logger *zap.Logger
}

// WithElasticsearch configures the client against an Elasticsearch
// compatible cluster.
func WithElasticsearch(url string) Option {
	return func(c *clientConfig) {
		c.driver = "elastic"
		c.url = url
	}
}

// WithBasicAuth sets credentials for the elastic driver.
func WithBasicAuth(username, password string) Option {
	return func(c *clientConfig) {
		c.username = username
		c.password = password
	}
}

// WithSQLite configures the client against an embedded SQLite FTS
// database at the given path.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.driver = "sqlite"
		c.path = path
	}
}

// WithRequestTimeout bounds each backend HTTP call. Elastic only.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithScroll tunes cursor iteration: how many hits each scroll page
// fetches and how far backward random access may reach.
func WithScroll(fetchSize, backtrackingWindow int) Option {
	return func(c *clientConfig) {
		c.scrollFetchSize = fetchSize
		c.backtrackingWindow = backtrackingWindow
	}
}

// WithScrollKeepAlive sets the server-side cursor lifetime.
func WithScrollKeepAlive(d time.Duration) Option {
	return func(c *clientConfig) {
		c.scrollKeepAlive = d
	}
}

// WithQueryTimeout bounds whole-query execution. Zero means unlimited.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.queryTimeout = d
	}
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
