package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/mkumar/biorag-go/internal/logging"
	"github.com/mkumar/biorag-go/internal/pipeline"
	"github.com/mkumar/biorag-go/internal/provider"
	"github.com/mkumar/biorag-go/internal/server"
	"github.com/mkumar/biorag-go/internal/tracing"
)

// NewServeCmd constructs the `biorag serve` command, which runs the query
// pipeline behind an HTTP API.
func NewServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the question-answering HTTP server",
		Long: `Start an HTTP server exposing the query pipeline:

  POST /api/query   answer a question (JSON body: {"question": "...", "structured": true})
  GET  /api/health  liveness probe
  GET  /api/ready   readiness probe (checks the model backend and Qdrant)
  GET  /metrics     Prometheus metrics

Set BIORAG_API_KEY to require bearer-token auth on /api/query.

Examples:
  biorag serve
  biorag serve --host 0.0.0.0 --port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, log)

			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Debug("langfuse tracing enabled")
			}

			minScore := getEnvFloat32("BIORAG_MIN_SCORE", pipeline.DefaultMinScore)
			opts := pipeline.Options{
				TopK:         getEnvInt("BIORAG_TOP_K", pipeline.DefaultTopK),
				MinScore:     &minScore,
				BudgetTokens: getEnvInt("BIORAG_CONTEXT_TOKENS", 0),
			}

			p, _, qs, closeStore, err := buildPipeline(ctx, log, opts)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeStore()

			pingers := []server.Pinger{
				server.NewNamedPinger("qdrant", qs.Ping),
			}
			if provider.ConfigFromEnv().Backend == provider.BackendOllama {
				baseURL := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
				pingers = append(pingers, server.NewOllamaPinger(baseURL))
			}

			srv, err := server.New(p, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   pingers,
				RateLimit: float64(getEnvFloat32("BIORAG_RATE_LIMIT", 0)),
				RateBurst: getEnvInt("BIORAG_RATE_BURST", 0),
				APIKey:    os.Getenv("BIORAG_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Interface to bind the HTTP server to")
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")

	return cmd
}
