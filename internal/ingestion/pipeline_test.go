package ingestion

import (
	"context"
	"fmt"
	"testing"

	"github.com/mkumar/biorag-go/internal/rag"
)

// captureEmbedder records every batch it is asked to embed and returns
// zero vectors of the right shape.
type captureEmbedder struct {
	batches  [][]string
	failWith error
}

func (e *captureEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.failWith != nil {
		return nil, e.failWith
	}
	e.batches = append(e.batches, texts)
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

// captureStore records every upserted passage.
type captureStore struct {
	passages []rag.Passage
}

func (s *captureStore) Upsert(_ context.Context, passages []rag.Passage, _ [][]float32) error {
	s.passages = append(s.passages, passages...)
	return nil
}

func (s *captureStore) Search(_ context.Context, _ []float32, _ int) ([]rag.Passage, error) {
	return nil, nil
}

func (s *captureStore) Delete(_ context.Context, _ []string) error { return nil }
func (s *captureStore) Close() error                               { return nil }

func makeRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			PMID:     fmt.Sprintf("%d", 1000+i),
			Title:    fmt.Sprintf("Title %d", i),
			Abstract: fmt.Sprintf("Abstract text %d", i),
		}
	}
	return records
}

func Test_Ingest_BatchesRespectConfiguredSize(t *testing.T) {
	t.Parallel()
	emb := &captureEmbedder{}
	st := &captureStore{}
	p, err := NewPipeline(emb, st, &Config{BatchSize: 4})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	stored, err := p.Ingest(context.Background(), makeRecords(10), nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stored != 10 {
		t.Errorf("stored = %d, want 10", stored)
	}
	if len(emb.batches) != 3 {
		t.Fatalf("want 3 embed batches (4+4+2), got %d", len(emb.batches))
	}
	if len(emb.batches[2]) != 2 {
		t.Errorf("last batch size = %d, want 2", len(emb.batches[2]))
	}
	if len(st.passages) != 10 {
		t.Errorf("upserted %d passages, want 10", len(st.passages))
	}
}

func Test_Ingest_PassageCarriesRecordFields(t *testing.T) {
	t.Parallel()
	emb := &captureEmbedder{}
	st := &captureStore{}
	p, err := NewPipeline(emb, st, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	records := []Record{{
		PMID:     "555",
		Title:    "EGFR inhibitors in NSCLC",
		Abstract: "Gefitinib improves outcomes.",
		Authors:  []string{"Lee A", "Park B"},
		Gene:     "EGFR",
	}}
	if _, err := p.Ingest(context.Background(), records, nil); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(st.passages) != 1 {
		t.Fatalf("want 1 passage, got %d", len(st.passages))
	}
	got := st.passages[0]
	if got.SourceID != "555" || got.Gene != "EGFR" {
		t.Errorf("passage fields wrong: %+v", got)
	}
	if got.Metadata["authors"] != "Lee A, Park B" {
		t.Errorf("authors metadata = %q", got.Metadata["authors"])
	}
}

func Test_Ingest_TitlePrefixedIntoEmbeddingText(t *testing.T) {
	t.Parallel()
	emb := &captureEmbedder{}
	st := &captureStore{}
	p, err := NewPipeline(emb, st, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	records := []Record{
		{PMID: "1", Title: "T", Abstract: "body"},
		{PMID: "2", Abstract: "no title body"},
	}
	if _, err := p.Ingest(context.Background(), records, nil); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if emb.batches[0][0] != "T\nbody" {
		t.Errorf("embedded text = %q, want title-prefixed", emb.batches[0][0])
	}
	if emb.batches[0][1] != "no title body" {
		t.Errorf("embedded text = %q, want bare abstract", emb.batches[0][1])
	}
}

func Test_Ingest_EmbedFailureStopsAndReportsCount(t *testing.T) {
	t.Parallel()
	emb := &captureEmbedder{failWith: fmt.Errorf("backend down")}
	st := &captureStore{}
	p, err := NewPipeline(emb, st, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	stored, err := p.Ingest(context.Background(), makeRecords(3), nil)
	if err == nil {
		t.Fatal("want error from failing embedder")
	}
	if stored != 0 {
		t.Errorf("stored = %d, want 0", stored)
	}
}

func Test_Ingest_CancelledContextStopsBetweenBatches(t *testing.T) {
	t.Parallel()
	emb := &captureEmbedder{}
	st := &captureStore{}
	p, err := NewPipeline(emb, st, &Config{BatchSize: 1})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stored, err := p.Ingest(ctx, makeRecords(5), nil)
	if err == nil {
		t.Fatal("want cancellation error")
	}
	if stored != 0 {
		t.Errorf("stored = %d, want 0", stored)
	}
}

func Test_NewPipeline_RejectsNilDependencies(t *testing.T) {
	t.Parallel()
	if _, err := NewPipeline(nil, &captureStore{}, nil); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewPipeline(&captureEmbedder{}, nil, nil); err == nil {
		t.Error("want error for nil store")
	}
}
