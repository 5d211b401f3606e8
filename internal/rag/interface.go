// Package rag defines the data contracts shared between the retrieval
// pipeline and its external collaborators: the embedding gateway and the
// vector index. Concrete implementations (Qdrant, Ollama, OpenAI) satisfy
// these interfaces so the pipeline never depends on a specific backend.
package rag

import (
	"context"
)

// Passage is a unit of retrieved or stored biomedical text, typically a
// single PubMed abstract or a gene annotation record.
type Passage struct {
	// SourceID is the stable identifier of the source record, e.g. a
	// PubMed ID ("31452104") or a gene annotation accession.
	SourceID string

	// Text is the passage body (abstract text or annotation text).
	Text string

	// Title is the article or record title, if known.
	Title string

	// Gene is the gene symbol associated with the record, if any.
	Gene string

	// Metadata holds additional key-value pairs (journal, year, etc.).
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval (0.0–1.0
	// for cosine similarity). Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching passage
// embeddings. Implementations must be safe to call from multiple goroutines.
// Search is read-only and side-effect-free; concurrent query-time reads
// require no external locking.
type VectorStore interface {
	// Upsert stores or updates a batch of passages with their pre-computed
	// embeddings. The embeddings slice must be parallel to passages —
	// embeddings[i] is the vector for passages[i].
	Upsert(ctx context.Context, passages []Passage, embeddings [][]float32) error

	// Search performs a similarity search and returns the top-k most
	// relevant passages for the given query embedding, ordered by
	// descending score. An empty result is not an error.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Passage, error)

	// Delete removes passages by their source identifiers.
	Delete(ctx context.Context, sourceIDs []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector
// embeddings. Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
