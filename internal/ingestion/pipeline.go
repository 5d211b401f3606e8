package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkumar/biorag-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// BatchSize is the number of abstracts embedded and upserted per round
	// trip. Defaults to 32 if zero.
	BatchSize int
}

// Pipeline orchestrates the load → embed → upsert flow for a set of
// abstract records.
type Pipeline struct {
	// embedder converts abstract text into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded passages.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}, nil
}

// Ingest embeds and stores all provided records in batches. It processes
// batches sequentially and returns the first error encountered, along with
// the number of records stored so far. Progress is reported via the optional
// progress callback.
func (p *Pipeline) Ingest(ctx context.Context, records []Record, progress func(msg string)) (int, error) {
	if progress == nil {
		progress = func(string) {}
	}

	stored := 0
	for start := 0; start < len(records); start += p.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return stored, fmt.Errorf("ingestion: cancelled: %w", err)
		}

		end := start + p.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, r := range batch {
			texts[i] = embeddingText(r)
		}

		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return stored, fmt.Errorf("ingestion: embedding batch %d–%d failed: %w", start, end, err)
		}

		passages := make([]rag.Passage, 0, len(batch))
		for _, r := range batch {
			passages = append(passages, recordToPassage(r))
		}

		if err := p.store.Upsert(ctx, passages, embeddings); err != nil {
			return stored, fmt.Errorf("ingestion: upsert batch %d–%d failed: %w", start, end, err)
		}

		stored += len(batch)
		progress(fmt.Sprintf("stored %d/%d abstracts", stored, len(records)))
	}

	return stored, nil
}

// embeddingText builds the text actually embedded for a record. Prefixing
// the title improves recall for title-only matches.
func embeddingText(r Record) string {
	if strings.TrimSpace(r.Title) == "" {
		return r.Abstract
	}
	return r.Title + "\n" + r.Abstract
}

// recordToPassage converts an input record to its stored passage form.
func recordToPassage(r Record) rag.Passage {
	meta := map[string]string{}
	if len(r.Authors) > 0 {
		meta["authors"] = strings.Join(r.Authors, ", ")
	}
	return rag.Passage{
		SourceID: r.PMID,
		Text:     r.Abstract,
		Title:    r.Title,
		Gene:     r.Gene,
		Metadata: meta,
	}
}
