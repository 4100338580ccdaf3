// Package server exposes a workspace over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/HyperAST/HyperAST-sub006/internal/config"
	"github.com/HyperAST/HyperAST-sub006/internal/metrics"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/middleware"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/security"
	"github.com/HyperAST/HyperAST-sub006/internal/workspace"
)

// Server is the HTTP front of a workspace.
type Server struct {
	cfg        Config
	log        *logger.Logger
	httpServer *http.Server

	ws      *workspace.Workspace
	metrics *metrics.Metrics // nil disables /metrics and request metrics
	limiter *middleware.RateLimiter
	api     *APIHandler

	mu      sync.Mutex
	started bool
}

// Config configures the server.
type Config struct {
	Host    string
	Port    int
	Version string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// RateLimit is in requests per second per client, 0 disables it.
	RateLimit int
	Burst     int
	// MaxBodyBytes bounds request bodies, 0 means unbounded.
	MaxBodyBytes int64
	MetricsPath  string
}

func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxBodyBytes:    8 << 20,
		MetricsPath:     "/metrics",
	}
}

// ConfigFrom fills a server config from the application settings.
func ConfigFrom(c config.ServerConfig, version string) Config {
	cfg := DefaultConfig()
	if c.Host != "" {
		cfg.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	if c.ReadTimeout > 0 {
		cfg.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	if c.MaxBodyBytes > 0 {
		cfg.MaxBodyBytes = c.MaxBodyBytes
	}
	if version != "" {
		cfg.Version = version
	}
	cfg.RateLimit = c.RateLimit
	cfg.Burst = c.Burst
	return cfg
}

// New creates a server. m may be nil.
func New(cfg Config, ws *workspace.Workspace, m *metrics.Metrics, log *logger.Logger) *Server {
	log = logger.OrDefault(log).WithComponent("server")
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	s := &Server{
		cfg:     cfg,
		log:     log,
		ws:      ws,
		metrics: m,
		api:     NewAPIHandler(ws, cfg.MaxBodyBytes, log),
	}
	if m != nil {
		s.api.WithCollector(metrics.NewCollector(m, StoreSizes(ws)))
	}
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(cfg.RateLimit),
			Burst:             cfg.Burst,
		})
	}
	return s
}

// Handler returns the full handler chain. Outermost first: request ids,
// logging, metrics, rate limiting, the response envelope and the routes.
func (s *Server) Handler() http.Handler {
	h := withEnvelope(s.routes())
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	if s.metrics != nil {
		h = metrics.HTTPMiddleware(s.metrics, h)
	}
	return withRequestID(withLogging(h, s.log))
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	s.api.RegisterRoutes(mux)

	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle(s.cfg.MetricsPath, s.metrics.Handler())
		mux.Handle("/v1/metrics/history", s.metrics.HistoryHandler())
	}
	return mux
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New(errors.CodeInvalidRequest, "server already started")
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.started = true
	srv := s.httpServer
	s.mu.Unlock()

	s.log.Info("Starting HTTP server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limiter != nil {
		s.limiter.Stop()
	}
	if !s.started {
		return nil
	}
	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.log.Error("HTTP shutdown error", "error", err)
	}
	s.started = false
	s.log.Info("Server stopped")
	return err
}

// Collector returns the metrics collector, nil without metrics.
func (s *Server) Collector() *metrics.Collector { return s.api.collector }

// Health reports whether the server is serving.
func (s *Server) Health() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
		"store":   s.ws.Stores().Stats(),
	})
}

func withLogging(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.WithContext(r.Context()).Debug("HTTP request",
			"method", r.Method,
			"path", security.SanitizeForLog(r.URL.Path),
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
