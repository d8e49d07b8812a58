package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/textdex/internal/backend"
	"github.com/kailas-cloud/textdex/internal/backend/elastic"
	"github.com/kailas-cloud/textdex/internal/backend/sqlite"
	"github.com/kailas-cloud/textdex/internal/config"
	"github.com/kailas-cloud/textdex/internal/engine"
	"github.com/kailas-cloud/textdex/internal/kv"
	kvRedis "github.com/kailas-cloud/textdex/internal/kv/redis"
	logpkg "github.com/kailas-cloud/textdex/internal/logger"
	"github.com/kailas-cloud/textdex/internal/mapping"
	"github.com/kailas-cloud/textdex/internal/metrics"
	"github.com/kailas-cloud/textdex/internal/repository/rescache"
	chiTransport "github.com/kailas-cloud/textdex/internal/transport/chi"
	"github.com/kailas-cloud/textdex/internal/version"
)

const connectionName = "main"

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting textdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend_driver", cfg.Backend.Driver),
	)

	// Create backend executor based on driver
	var exec backend.Executor
	var closeBackend func()
	switch cfg.Backend.Driver {
	case "elastic":
		client, cerr := elastic.NewClient(elastic.Config{
			BaseURL:  cfg.Backend.URL,
			Username: cfg.Backend.Username,
			Password: cfg.Backend.Password,
			Timeout:  time.Duration(cfg.Backend.TimeoutSec) * time.Second,
		}, logger)
		if cerr != nil {
			logger.Fatal("Failed to create elastic client", zap.Error(cerr))
		}
		exec = client
		closeBackend = func() {}
	case "sqlite":
		store, serr := sqlite.Open(cfg.Backend.Path, logger)
		if serr != nil {
			logger.Fatal("Failed to open sqlite store", zap.Error(serr))
		}
		exec = store
		closeBackend = func() { _ = store.Close() }
	default:
		logger.Fatal("Unknown backend driver", zap.String("driver", cfg.Backend.Driver))
	}
	defer closeBackend()

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	// Optional response cache in front of plain searches
	if cfg.Cache.Enabled {
		var store kv.Store
		store, err = kvRedis.NewStore(kvRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		exec = rescache.New(
			exec, store,
			time.Duration(cfg.Cache.TTLSec)*time.Second,
			metrics.ResponseCacheTotal, logger,
		)
		logger.Info("Response cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	registry, err := buildRegistry(cfg.Mappings)
	if err != nil {
		logger.Fatal("Failed to build mapping registry", zap.Error(err))
	}

	connections := map[string]backend.Connection{
		connectionName: {Name: connectionName, Executor: exec},
	}

	opts := engine.Options{
		ScrollFetchSize:    cfg.Scroll.FetchSize,
		BacktrackingWindow: cfg.Scroll.BacktrackingWindow,
		ScrollKeepAlive:    time.Duration(cfg.Scroll.KeepAliveSec) * time.Second,
		Timeout:            time.Duration(cfg.Search.DefaultTimeoutSec) * time.Second,
	}

	server := chiTransport.NewServer(
		registry, connections, opts,
		cfg.Backend.Driver, cfg.Search.MaxResultWindow, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildRegistry turns configured mappings into a binding registry.
func buildRegistry(mappings []config.MappingConfig) (*mapping.Registry, error) {
	registry := mapping.NewRegistry()
	for _, m := range mappings {
		fields := make([]mapping.Field, 0, len(m.Fields))
		for _, f := range m.Fields {
			kind, err := mapping.ParseKind(f.Kind)
			if err != nil {
				return nil, fmt.Errorf("mapping %s field %s: %w", m.Type, f.Name, err)
			}
			fields = append(fields, mapping.Field{
				Name:      f.Name,
				Kind:      kind,
				Sortable:  f.Sortable,
				Facetable: f.Facetable,
			})
		}
		binding, err := mapping.NewBinding(m.Type, m.Index, m.Connection, fields)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", m.Type, err)
		}
		if err := registry.Add(binding); err != nil {
			return nil, fmt.Errorf("mapping %s: %w", m.Type, err)
		}
	}
	return registry, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
