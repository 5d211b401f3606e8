package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkumar/biorag-go/internal/pipeline"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// QueryTimeout bounds each pipeline run triggered by POST /api/query.
	QueryTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
}

// runner is the interface handleQuery calls to answer a question.
// *pipeline.Pipeline satisfies it; tests inject a fake.
type runner interface {
	Run(ctx context.Context, query pipeline.Query) (*pipeline.PipelineResult, error)
}

// Server is the HTTP server that exposes the question-answering pipeline.
type Server struct {
	// runner answers queries; set to a *pipeline.Pipeline in production,
	// overridden by a fake in tests.
	runner runner
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Question is the natural language research question.
	Question string `json:"question"`
	// Structured requests a parsed summary+citations answer instead of raw text.
	Structured bool `json:"structured,omitempty"`
}

// queryResponse is the JSON response for POST /api/query.
type queryResponse struct {
	// Summary is the generated answer text.
	Summary string `json:"summary"`
	// Citations are the evidence identifiers the answer cites.
	Citations []string `json:"citations"`
	// Flags are degradation markers ("no_evidence", "uncited"), if any.
	Flags []string `json:"flags,omitempty"`
	// EvidenceCount is the number of passages in the assembled context.
	EvidenceCount int `json:"evidenceCount"`
	// ElapsedMillis is the total pipeline wall-clock time.
	ElapsedMillis int64 `json:"elapsedMillis"`
}

// errorResponse is the JSON body for failed /api/query requests.
type errorResponse struct {
	// Error is a human-readable description of the failure.
	Error string `json:"error"`
	// Kind classifies the failure ("timeout", "embedding_failure", ...).
	Kind string `json:"kind"`
}
