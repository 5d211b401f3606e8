package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mkumar/biorag-go/internal/logging"
	"github.com/mkumar/biorag-go/internal/rag"
)

// Retriever turns a query into a deduplicated, rank-ordered evidence set.
// It embeds the query via the embedding gateway, issues a top-k similarity
// search against the vector index, and filters the hits by a minimum score.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder rag.Embedder

	// store performs the vector similarity search. Read-only here.
	store rag.VectorStore
}

// NewRetriever constructs a Retriever from the given Embedder and VectorStore.
func NewRetriever(embedder rag.Embedder, store rag.VectorStore) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("pipeline: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("pipeline: vector store must not be nil")
	}
	return &Retriever{embedder: embedder, store: store}, nil
}

// Retrieve returns the top-k evidence passages for the query with score at
// least minScore, deduplicated by source identifier (highest-scoring
// occurrence wins) and ordered by descending score with ties broken by
// source identifier ascending. Zero hits yield an empty set, not an error.
//
// An embedding gateway failure surfaces as *EmbeddingError with no retry.
func (r *Retriever) Retrieve(ctx context.Context, query Query, k int, minScore float32) (EvidenceSet, error) {
	if k < 1 {
		return EvidenceSet{}, fmt.Errorf("pipeline: k must be >= 1, got %d", k)
	}
	if minScore < 0 || minScore > 1 {
		return EvidenceSet{}, fmt.Errorf("pipeline: min score must be in [0,1], got %g", minScore)
	}
	if err := ctx.Err(); err != nil {
		return EvidenceSet{}, err
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query.Text})
	if err != nil {
		return EvidenceSet{}, &EmbeddingError{Err: err}
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return EvidenceSet{}, &EmbeddingError{Err: fmt.Errorf("embedder returned an empty vector")}
	}

	if err := ctx.Err(); err != nil {
		return EvidenceSet{}, err
	}

	hits, err := r.store.Search(ctx, embeddings[0], k)
	if err != nil {
		return EvidenceSet{}, fmt.Errorf("pipeline: vector search failed: %w", err)
	}

	set := buildEvidenceSet(hits, minScore)

	logging.FromContext(ctx).Debug("retrieval complete",
		slog.Int("hits", len(hits)),
		slog.Int("kept", len(set.Items)),
		slog.String("min_score", fmt.Sprintf("%.2f", minScore)),
	)

	return set, nil
}

// buildEvidenceSet filters hits below minScore, deduplicates by source
// identifier keeping the highest-scoring occurrence, and sorts the result
// by descending score with source-identifier-ascending tie breaking so the
// output is deterministic for a given input.
func buildEvidenceSet(hits []rag.Passage, minScore float32) EvidenceSet {
	best := make(map[string]rag.Passage, len(hits))
	for _, h := range hits {
		if h.Score < minScore {
			continue
		}
		if h.SourceID == "" {
			continue
		}
		if prev, ok := best[h.SourceID]; !ok || h.Score > prev.Score {
			best[h.SourceID] = h
		}
	}

	items := make([]EvidenceItem, 0, len(best))
	for _, p := range best {
		items = append(items, EvidenceItem{Passage: p})
	}

	slices.SortFunc(items, func(a, b EvidenceItem) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.SourceID < b.SourceID:
			return -1
		case a.SourceID > b.SourceID:
			return 1
		default:
			return 0
		}
	})

	return EvidenceSet{Items: items}
}
