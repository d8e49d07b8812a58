// Package chi exposes the search engine over a REST gateway.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/domain"
	"github.com/kailas-cloud/textdex/internal/domain/search/explain"
	"github.com/kailas-cloud/textdex/internal/domain/search/query"
	"github.com/kailas-cloud/textdex/internal/engine"
	"github.com/kailas-cloud/textdex/internal/logger"
	"github.com/kailas-cloud/textdex/internal/mapping"
	"github.com/kailas-cloud/textdex/internal/metrics"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server handles the search API routes.
type Server struct {
	registry    *mapping.Registry
	connections map[string]backend.Connection
	opts        engine.Options
	driver      string
	maxWindow   int
	logger      *zap.Logger

	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server over the given registry and
// backend connections. driver names the backend for metrics labels.
func NewServer(
	registry *mapping.Registry,
	connections map[string]backend.Connection,
	opts engine.Options,
	driver string,
	maxWindow int,
	log *zap.Logger,
) *Server {
	s := &Server{
		registry:    registry,
		connections: connections,
		opts:        opts,
		driver:      driver,
		maxWindow:   maxWindow,
		logger:      log,
	}
	s.errorHandlers = []errorHandler{
		boundsHandler,
		sentinelHandler(domain.ErrUnknownType, http.StatusNotFound, ErrorCodeTypeNotFound),
		sentinelHandler(domain.ErrUnknownField, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrUnsortableField, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNotFacetable, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrUnsupportedRangeKind, http.StatusBadRequest, ErrorCodeUnsupported),
		sentinelHandler(domain.ErrUnsupportedProjection, http.StatusBadRequest, ErrorCodeUnsupported),
		sentinelHandler(domain.ErrMixedBackends, http.StatusBadRequest, ErrorCodeUnsupported),
		sentinelHandler(domain.ErrTimedOut, http.StatusGatewayTimeout, ErrorCodeTimeout),
	}
	return s
}

// Routes mounts the API routes onto a router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/search/{type}", s.Search)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /v1/search/{type}.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	typeName := chi.URLParam(r, "type")
	log := logger.FromContext(r.Context())

	var body SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if body.Max != nil && *body.Max > s.maxWindow {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			"max exceeds the result window")
		return
	}

	params, err := paramsFromRequest(typeName, &body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	spec, err := query.New(params)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	q := engine.NewQuery(spec, s.registry, s.connections, s.opts, log)

	resp, err := s.runSearch(r, q, &body)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(s.driver, "search", "error").Inc()
		s.handleDomainError(w, err)
		return
	}

	metrics.SearchRequestsTotal.WithLabelValues(s.driver, "search", "ok").Inc()
	metrics.SearchRequestDuration.WithLabelValues(s.driver, "search").Observe(time.Since(start).Seconds())
	metrics.SearchHitsReturned.WithLabelValues(s.driver, "search").Observe(float64(len(resp.Hits)))

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) runSearch(r *http.Request, q *engine.Query, body *SearchRequest) (*SearchResponse, error) {
	ctx := r.Context()

	total, err := q.ResultSize(ctx)
	if err != nil {
		return nil, err
	}

	refs, err := q.Results(ctx)
	if err != nil {
		return nil, err
	}

	hits := make([]HitDTO, 0, len(refs))
	for i, ref := range refs {
		hit := hitToDTO(ref)
		if body.Explain {
			node, err := q.Explain(ctx, i)
			if err != nil {
				return nil, err
			}
			dto := explainToDTO(node)
			hit.Explain = &dto
		}
		hits = append(hits, hit)
	}

	resp := &SearchResponse{Total: total, Hits: hits}
	resp.TookMillis, resp.TimedOut = q.Took()

	if len(body.Facets) > 0 {
		facets, err := q.FacetResults(ctx)
		if err != nil {
			return nil, err
		}
		resp.Facets = make(map[string][]FacetValueDTO, len(facets))
		for name, values := range facets {
			resp.Facets[name] = facetValuesToDTO(values)
		}
	}

	return resp, nil
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func explainToDTO(n explain.Node) ExplainDTO {
	dto := ExplainDTO{Value: n.Value, Description: n.Description}
	for _, d := range n.Details {
		dto.Details = append(dto.Details, explainToDTO(d))
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnknownType,
		domain.ErrUnknownField,
		domain.ErrUnsortableField,
		domain.ErrNotFacetable,
		domain.ErrUnsupportedRangeKind,
		domain.ErrUnsupportedProjection,
		domain.ErrMixedBackends,
		domain.ErrTimedOut,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	var be *domain.BoundsError
	if errors.As(err, &be) {
		return be.Error()
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// boundsHandler handles out-of-range hit indices as bad requests.
func boundsHandler(w http.ResponseWriter, err error, msg string) bool {
	var be *domain.BoundsError
	if !errors.As(err, &be) {
		return false
	}
	writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
