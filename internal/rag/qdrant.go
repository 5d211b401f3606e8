package rag

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys used for passage fields in the Qdrant collection.
const (
	payloadSourceID = "source_id"
	payloadText     = "text"
	payloadTitle    = "title"
	payloadGene     = "gene"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
// Point IDs are derived deterministically from the passage source ID, so
// re-ingesting the same record updates it in place.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
// Cosine distance matches the normalised embeddings produced by the ingestion
// pipeline, so search scores land in [0,1].
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// pointID derives a deterministic UUID-shaped point ID from a source ID.
// Qdrant requires UUIDs or unsigned integers for point IDs; PubMed IDs are
// numeric strings but annotation accessions are not, so hashing keeps both
// stable.
func pointID(sourceID string) string {
	sum := sha256.Sum256([]byte(sourceID))
	return fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16])
}

// Upsert stores or updates a batch of passages with their embeddings.
// The embeddings slice must be parallel to passages.
func (s *QdrantStore) Upsert(ctx context.Context, passages []Passage, embeddings [][]float32) error {
	if len(passages) != len(embeddings) {
		return fmt.Errorf("qdrant: %d passages but %d embeddings", len(passages), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(passages))
	for i, p := range passages {
		payload := map[string]interface{}{
			payloadSourceID: p.SourceID,
			payloadText:     p.Text,
			payloadTitle:    p.Title,
			payloadGene:     p.Gene,
		}
		for k, v := range p.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(p.SourceID)),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k results
// ordered by descending score.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Passage, error) {
	limit := uint64(topK) //nolint:gosec // topK is validated by the caller
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	passages := make([]Passage, 0, len(results))
	for _, r := range results {
		p := Passage{
			Score:    r.Score,
			Metadata: make(map[string]string),
		}
		if pl := r.Payload; pl != nil {
			if v, ok := pl[payloadSourceID]; ok {
				p.SourceID = v.GetStringValue()
			}
			if v, ok := pl[payloadText]; ok {
				p.Text = v.GetStringValue()
			}
			if v, ok := pl[payloadTitle]; ok {
				p.Title = v.GetStringValue()
			}
			if v, ok := pl[payloadGene]; ok {
				p.Gene = v.GetStringValue()
			}
			for k, v := range pl {
				switch k {
				case payloadSourceID, payloadText, payloadTitle, payloadGene:
				default:
					p.Metadata[k] = v.GetStringValue()
				}
			}
		}
		passages = append(passages, p)
	}

	return passages, nil
}

// Delete removes passages from the collection by their source identifiers.
func (s *QdrantStore) Delete(ctx context.Context, sourceIDs []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointID(id)))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// Ping calls the Qdrant HealthCheck RPC. Returns nil if the server is
// reachable, a descriptive error otherwise.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
