package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/mkumar/biorag-go/internal/embedder"
	"github.com/mkumar/biorag-go/internal/pipeline"
	"github.com/mkumar/biorag-go/internal/provider"
	"github.com/mkumar/biorag-go/internal/rag"
	"github.com/mkumar/biorag-go/internal/store"
)

// defaultCollection is the Qdrant collection used when QDRANT_COLLECTION is unset.
const defaultCollection = "pubmed-abstracts"

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// embeddingBackend resolves the effective embedding backend name from the
// environment, mirroring the embedder factory's inheritance rules.
func embeddingBackend() string {
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		return v
	}
	return getEnvOrDefault("MODEL_PROVIDER", "ollama")
}

// buildVectorStore connects to Qdrant using env configuration and ensures
// the abstracts collection exists.
func buildVectorStore(ctx context.Context, log *slog.Logger) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)
	vectorSize := uint64(embedder.DefaultDimensions(embeddingBackend())) //nolint:gosec // dimensions are bounded

	qs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	log.Info("qdrant store ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)
	return qs, nil
}

// buildPipeline wires the full retrieval and synthesis pipeline from env
// configuration. The returned close function releases the vector store
// connection.
func buildPipeline(ctx context.Context, log *slog.Logger, opts pipeline.Options) (*pipeline.Pipeline, *provider.Generator, *rag.QdrantStore, func(), error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, nil, nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	qs, err := buildVectorStore(ctx, log)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	closeStore := func() { _ = qs.Close() }

	retriever, err := pipeline.NewRetriever(emb, qs)
	if err != nil {
		closeStore()
		return nil, nil, nil, nil, err
	}

	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		closeStore()
		return nil, nil, nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.Model),
	)
	generator := provider.NewGenerator(chatModel)

	synthesizer, err := pipeline.NewSynthesizer(generator)
	if err != nil {
		closeStore()
		return nil, nil, nil, nil, err
	}

	p, err := pipeline.New(retriever, synthesizer, opts)
	if err != nil {
		closeStore()
		return nil, nil, nil, nil, err
	}

	return p, generator, qs, closeStore, nil
}

// openHistoryStore opens the SQLite result store unless disabled.
// BIORAG_HISTORY_DB overrides the default path (~/.biorag/history.db);
// set it to "disabled" to skip persistence entirely. A nil store with a
// no-op close is returned when history is unavailable.
func openHistoryStore(log *slog.Logger) (store.ResultStore, func()) {
	noop := func() {}

	dbPath := os.Getenv("BIORAG_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via BIORAG_HISTORY_DB=disabled")
		return nil, noop
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, noop
		}
	}

	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, noop
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs, func() { _ = hs.Close() }
}
