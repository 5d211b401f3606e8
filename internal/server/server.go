// Package server implements the HTTP server that exposes the biorag
// question-answering pipeline via a small REST API.
// The server is started by the `biorag serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkumar/biorag-go/internal/logging"
	"github.com/mkumar/biorag-go/internal/pipeline"
)

// maxQueryBytes bounds the request body size for POST /api/query.
const maxQueryBytes = 64 << 10

// New constructs a Server from the provided pipeline and config.
func New(p runner, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full pipeline run, including the LLM call.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 2 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if cfg.APIKey == "" {
		log.Warn("server: BIORAG_API_KEY not set — API authentication is disabled")
	}

	registry := prometheus.NewRegistry()
	s := &Server{
		runner:  p,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(registry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	mux := http.NewServeMux()
	mux.Handle("POST /api/query",
		authMiddleware(cfg.APIKey, rl.middleware(http.HandlerFunc(s.handleQuery))))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleQuery handles POST /api/query. It runs the full retrieval,
// assembly, and synthesis pipeline and returns the answer as JSON.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.runner.Run(ctx, pipeline.Query{Text: req.Question, Structured: req.Structured})
	elapsed := time.Since(start)

	if err != nil {
		kind := pipeline.Kind(err)
		s.metrics.queryRequestsTotal.WithLabelValues(kind).Inc()
		s.metrics.queryDurationSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
		log.Error("query failed",
			slog.String("kind", kind),
			slog.Any("error", err),
		)
		writeJSON(w, statusForKind(kind), errorResponse{Error: err.Error(), Kind: kind})
		return
	}

	s.metrics.queryRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.queryDurationSeconds.WithLabelValues("ok").Observe(elapsed.Seconds())

	resp := queryResponse{
		Summary:       result.Answer.Summary,
		Citations:     result.Answer.Citations,
		EvidenceCount: len(result.Context.Items),
		ElapsedMillis: result.Elapsed.Milliseconds(),
	}
	if resp.Citations == nil {
		resp.Citations = []string{}
	}
	for _, f := range result.Answer.Flags {
		resp.Flags = append(resp.Flags, string(f))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForKind maps a pipeline failure classification to an HTTP status.
func statusForKind(kind string) int {
	switch kind {
	case "timeout":
		return http.StatusGatewayTimeout
	case "cancelled":
		// Client went away; the status is mostly for logs.
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
