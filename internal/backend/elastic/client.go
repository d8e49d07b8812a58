// Package elastic implements backend.Executor against an
// Elasticsearch-compatible HTTP search API, including the scroll
// protocol for forward-only cursor iteration.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain/search/predicate"
)

// Compile-time check: Client implements backend.Executor.
var _ backend.Executor = (*Client)(nil)

// Config holds connection parameters for a remote search cluster.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client is an Executor speaking the Elasticsearch HTTP API.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient creates a remote driver.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

// Search runs a plain offset+limit search.
func (c *Client) Search(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	body, err := buildPayload(req)
	if err != nil {
		return nil, fmt.Errorf("build search payload: %w", err)
	}
	body["from"] = req.From
	body["size"] = req.Size

	raw, err := c.call(ctx, http.MethodPost, c.searchPath(req.Indices, nil), body)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return parseResponse(raw)
}

// OpenScroll starts a scrolled search. The from offset is not sent:
// scrolling backends ignore it, so the caller skips client-side.
func (c *Client) OpenScroll(
	ctx context.Context, req *backend.Request, fetchSize int, keepAlive time.Duration,
) (*backend.Response, error) {
	body, err := buildPayload(req)
	if err != nil {
		return nil, fmt.Errorf("build scroll payload: %w", err)
	}
	body["size"] = fetchSize

	params := url.Values{"scroll": []string{keepAliveString(keepAlive)}}
	raw, err := c.call(ctx, http.MethodPost, c.searchPath(req.Indices, params), body)
	if err != nil {
		return nil, fmt.Errorf("open scroll: %w", err)
	}
	return parseResponse(raw)
}

// ContinueScroll fetches the next page for a cursor.
func (c *Client) ContinueScroll(
	ctx context.Context, cursor string, keepAlive time.Duration,
) (*backend.Response, error) {
	body := map[string]any{
		"scroll":    keepAliveString(keepAlive),
		"scroll_id": cursor,
	}
	raw, err := c.call(ctx, http.MethodPost, c.baseURL+"/_search/scroll", body)
	if err != nil {
		return nil, fmt.Errorf("continue scroll: %w", err)
	}
	return parseResponse(raw)
}

// ClearScroll releases server-side scroll state.
func (c *Client) ClearScroll(ctx context.Context, cursor string) error {
	body := map[string]any{"scroll_id": []string{cursor}}
	if _, err := c.call(ctx, http.MethodDelete, c.baseURL+"/_search/scroll", body); err != nil {
		return fmt.Errorf("clear scroll: %w", err)
	}
	return nil
}

// Explain fetches the relevance explanation for one document.
func (c *Client) Explain(
	ctx context.Context, index, typeName, id string, q predicate.Node,
) (*backend.Explanation, error) {
	body := map[string]any{"query": clauseJSON(q)}
	path := fmt.Sprintf("%s/%s/%s/%s/_explain",
		c.baseURL, url.PathEscape(index), url.PathEscape(typeName), url.PathEscape(id))

	raw, err := c.call(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, fmt.Errorf("explain %s/%s: %w", index, id, err)
	}

	var resp struct {
		Explanation *explanationJSON `json:"explanation"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("explain %s/%s: parse response: %w", index, id, err)
	}
	if resp.Explanation == nil {
		return &backend.Explanation{}, nil
	}
	return convertExplanation(resp.Explanation), nil
}

func (c *Client) searchPath(indices []string, params url.Values) string {
	escaped := make([]string, 0, len(indices))
	for _, idx := range indices {
		escaped = append(escaped, url.PathEscape(idx))
	}
	path := c.baseURL + "/" + strings.Join(escaped, ",") + "/_search"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return path
}

func (c *Client) call(ctx context.Context, method, path string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(cerr))
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode == http.StatusNotFound && strings.Contains(path, "/_search/scroll") {
		return nil, backend.ErrCursorNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(raw, 512))
	}
	return raw, nil
}

// keepAliveString renders a scroll TTL. Sub-second durations round up
// to one second, the smallest TTL the API accepts.
func keepAliveString(d time.Duration) string {
	if d <= 0 {
		d = time.Minute
	}
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("%ds", secs)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
