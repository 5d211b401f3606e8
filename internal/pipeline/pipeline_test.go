package pipeline

import (
	"context"
	"testing"

	"github.com/mkumar/biorag-go/internal/rag"
)

func Test_Run_EndToEndScenario(t *testing.T) {
	t.Parallel()
	// Five hits above threshold, one a duplicate of another PMID.
	store := &fakeStore{hits: []rag.Passage{
		{SourceID: "31452104", Text: "TP53 mutation status correlates with survival.", Score: 0.92},
		{SourceID: "28985672", Text: "Prognostic impact of TP53 variants in breast cancer.", Score: 0.88},
		{SourceID: "31452104", Text: "TP53 mutation status correlates with survival.", Score: 0.85},
		{SourceID: "30112233", Text: "p53 pathway alterations in gliomas.", Score: 0.61},
		{SourceID: "27665544", Text: "TP53 germline variants and Li-Fraumeni syndrome.", Score: 0.44},
	}}
	gen := &scriptedGenerator{outputs: []string{
		`{"summary": "TP53 variants are associated with worse prognosis across cancers.", "citations": ["31452104", "28985672"]}`,
	}}

	retriever, err := NewRetriever(&fakeEmbedder{}, store)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	synth, err := NewSynthesizer(gen)
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}
	p, err := New(retriever, synth, Options{TopK: 5, MinScore: minScore(0.3)})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	result, err := p.Run(context.Background(),
		Query{Text: "TP53 variants and cancer prognosis", Structured: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if n := len(result.Evidence.Items); n > 5 || n != 4 {
		t.Errorf("want 4 deduplicated items above threshold, got %d", n)
	}
	if result.Context.Empty() {
		t.Error("want non-empty context block")
	}
	for _, id := range result.Answer.Citations {
		if !result.Context.HasSource(id) {
			t.Errorf("citation %s not present in context block", id)
		}
	}
	if len(result.Answer.Flags) != 0 {
		t.Errorf("want unflagged answer, got %v", result.Answer.Flags)
	}
}

func Test_Run_EmptyRetrievalDegradesGracefully(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{outputs: []string{
		`{"summary": "No supporting evidence was found.", "citations": []}`,
	}}
	retriever, _ := NewRetriever(&fakeEmbedder{}, &fakeStore{})
	synth, _ := NewSynthesizer(gen)
	p, _ := New(retriever, synth, Options{})

	result, err := p.Run(context.Background(), Query{Text: "obscure query", Structured: true})
	if err != nil {
		t.Fatalf("empty retrieval must not fail the run: %v", err)
	}
	if !result.Evidence.Empty() {
		t.Error("want empty evidence set")
	}
	if !result.Context.Empty() {
		t.Error("want empty context block")
	}
	if !result.Answer.Flagged(FlagNoEvidence) {
		t.Error("want no_evidence flag on the answer")
	}
}

// minScore builds the pointer-valued threshold option.
func minScore(v float32) *float32 { return &v }

func Test_Options_Defaults(t *testing.T) {
	t.Parallel()
	opts := Options{}.withDefaults()
	if opts.TopK != DefaultTopK {
		t.Errorf("want TopK default %d, got %d", DefaultTopK, opts.TopK)
	}
	if opts.MinScore == nil || *opts.MinScore != DefaultMinScore {
		t.Errorf("want MinScore default %g, got %v", float32(DefaultMinScore), opts.MinScore)
	}
	if opts.BudgetTokens <= 0 {
		t.Error("want positive default budget")
	}
}

func Test_Options_ZeroMinScoreIsHonored(t *testing.T) {
	t.Parallel()
	opts := Options{MinScore: minScore(0)}.withDefaults()
	if *opts.MinScore != 0 {
		t.Errorf("explicit zero threshold replaced with %g", *opts.MinScore)
	}
}
