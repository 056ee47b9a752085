// Package server implements the HTTP API for ragdesk: document upload,
// cited question answering, index statistics, and operational endpoints
// (health, readiness, Prometheus metrics).
// The server is started by the `ragdesk serve` CLI command.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultMaxUploadBytes = 16 << 20
	defaultQueryTimeout   = 2 * time.Minute
	defaultUploadTimeout  = 5 * time.Minute
)

// New constructs a Server from the provided collaborators and config.
func New(deps *Deps, cfg *Config) (*Server, error) {
	if deps == nil || deps.Asker == nil {
		return nil, fmt.Errorf("server: asker must not be nil")
	}
	if deps.Ingester == nil {
		return nil, fmt.Errorf("server: ingester must not be nil")
	}
	if deps.Vectors == nil {
		return nil, fmt.Errorf("server: vector store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	applyDefaults(cfg)

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		asker:    deps.Asker,
		ingester: deps.Ingester,
		vectors:  deps.Vectors,
		ledger:   deps.Ledger,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}

	s.limiter, s.stopRL = newRateLimiter(map[string]RateBudget{
		classQuery:  cfg.QueryRate,
		classUpload: cfg.UploadRate,
	})

	if cfg.APIKey == "" {
		log.Warn("auth: RAGDESK_API_KEY is not set, /api routes are unauthenticated")
	}
	protect := func(h http.HandlerFunc) http.Handler { return s.requireKey(h) }
	limited := func(class string, h http.HandlerFunc) http.Handler { return s.requireKey(s.rateLimit(class, h)) }

	mux := http.NewServeMux()
	mux.Handle("POST /api/upload", limited(classUpload, s.handleUpload))
	mux.Handle("POST /api/query", limited(classQuery, s.handleQuery))
	mux.Handle("GET /api/stats", protect(s.handleStats))
	mux.Handle("POST /api/clear", protect(s.handleClear))
	mux.Handle("GET /api/sources", protect(s.handleSources))
	mux.Handle("DELETE /api/sources", protect(s.handleDeleteSource))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// applyDefaults fills zero-valued fields of cfg.
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Must outlast the slowest upload (embedding a large PDF).
		cfg.WriteTimeout = 6 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = defaultUploadTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.QueryRate.RPS <= 0 || cfg.QueryRate.Burst <= 0 {
		cfg.QueryRate = defaultQueryRate
	}
	if cfg.UploadRate.RPS <= 0 || cfg.UploadRate.Burst <= 0 {
		cfg.UploadRate = defaultUploadRate
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
}

// Handler returns the fully wrapped HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("server stopped")
		return nil
	}
}
