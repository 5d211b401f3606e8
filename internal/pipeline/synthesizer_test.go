package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mkumar/biorag-go/internal/rag"
)

// scriptedGenerator returns canned outputs in order, one per call.
type scriptedGenerator struct {
	outputs []string
	err     error
	calls   int
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	i := g.calls - 1
	if i >= len(g.outputs) {
		i = len(g.outputs) - 1
	}
	return g.outputs[i], nil
}

// blockOf builds a ContextBlock containing the given source IDs.
func blockOf(ids ...string) ContextBlock {
	var block ContextBlock
	for _, id := range ids {
		block.Items = append(block.Items, ContextItem{
			EvidenceItem: EvidenceItem{Passage: rag.Passage{
				SourceID: id,
				Text:     "abstract text for " + id,
				Title:    "Title " + id,
			}},
			Tokens: 20,
		})
		block.TotalTokens += 20
	}
	block.Budget = 4000
	return block
}

func Test_Synthesize_StructuredHappyPath(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{outputs: []string{
		`{"summary": "TP53 mutations predict poor prognosis.", "citations": ["111", "222"]}`,
	}}
	s, err := NewSynthesizer(gen)
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}

	answer, err := s.Synthesize(context.Background(),
		Query{Text: "TP53 variants and cancer prognosis", Structured: true},
		blockOf("111", "222", "333"))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if answer.Summary != "TP53 mutations predict poor prognosis." {
		t.Errorf("unexpected summary %q", answer.Summary)
	}
	if len(answer.Citations) != 2 {
		t.Errorf("want 2 citations, got %v", answer.Citations)
	}
	if len(answer.Flags) != 0 {
		t.Errorf("want no flags, got %v", answer.Flags)
	}
	if gen.calls != 1 {
		t.Errorf("want exactly 1 generation call, got %d", gen.calls)
	}
}

func Test_Synthesize_FencedJSONIsParsed(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{outputs: []string{
		"```json\n{\"summary\": \"ok\", \"citations\": [\"111\"]}\n```",
	}}
	s, _ := NewSynthesizer(gen)

	answer, err := s.Synthesize(context.Background(),
		Query{Text: "q", Structured: true}, blockOf("111"))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if answer.Summary != "ok" || len(answer.Citations) != 1 {
		t.Errorf("fenced JSON not parsed: %+v", answer)
	}
}

func Test_Synthesize_ExactlyOneRetryThenMalformedError(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{outputs: []string{"not json at all", "still not json"}}
	s, _ := NewSynthesizer(gen)

	_, err := s.Synthesize(context.Background(),
		Query{Text: "q", Structured: true}, blockOf("111"))

	var malErr *MalformedOutputError
	if !errors.As(err, &malErr) {
		t.Fatalf("want *MalformedOutputError, got %T: %v", err, err)
	}
	if gen.calls != 2 {
		t.Fatalf("want exactly 2 generation calls (1 retry), got %d", gen.calls)
	}
	if malErr.Attempts != 2 {
		t.Errorf("want Attempts=2, got %d", malErr.Attempts)
	}
	// The retry must carry the stricter formatting instruction.
	if !strings.Contains(gen.prompts[1], "could not be parsed") {
		t.Error("retry prompt missing strict formatting instruction")
	}
	if strings.Contains(gen.prompts[0], "could not be parsed") {
		t.Error("first prompt must not carry the strict instruction")
	}
}

func Test_Synthesize_RetrySucceeds(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{outputs: []string{
		"sorry, here you go:",
		`{"summary": "second time lucky", "citations": ["111"]}`,
	}}
	s, _ := NewSynthesizer(gen)

	answer, err := s.Synthesize(context.Background(),
		Query{Text: "q", Structured: true}, blockOf("111"))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if answer.Summary != "second time lucky" {
		t.Errorf("unexpected summary %q", answer.Summary)
	}
	if gen.calls != 2 {
		t.Errorf("want 2 calls, got %d", gen.calls)
	}
}

func Test_Synthesize_InvalidCitationDroppedValidRetained(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{outputs: []string{
		`{"summary": "s", "citations": ["111", "99999999", "222"]}`,
	}}
	s, _ := NewSynthesizer(gen)

	answer, err := s.Synthesize(context.Background(),
		Query{Text: "q", Structured: true}, blockOf("111", "222"))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	want := []string{"111", "222"}
	if len(answer.Citations) != len(want) {
		t.Fatalf("want %v, got %v", want, answer.Citations)
	}
	for i, id := range want {
		if answer.Citations[i] != id {
			t.Errorf("citation %d: want %s, got %s", i, id, answer.Citations[i])
		}
	}
	if answer.Flagged(FlagUncited) {
		t.Error("answer with surviving citations must not be flagged uncited")
	}
}

func Test_Synthesize_AllCitationsInvalidFlagsUncited(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{outputs: []string{
		`{"summary": "s", "citations": ["77777", "88888"]}`,
	}}
	s, _ := NewSynthesizer(gen)

	answer, err := s.Synthesize(context.Background(),
		Query{Text: "q", Structured: true}, blockOf("111"))
	if err != nil {
		t.Fatalf("uncited answer must be returned, not fail: %v", err)
	}
	if !answer.Flagged(FlagUncited) {
		t.Error("want uncited flag when every citation is invalid")
	}
	if len(answer.Citations) != 0 {
		t.Errorf("want no citations, got %v", answer.Citations)
	}
}

func Test_Synthesize_EmptyContextFlagsNoEvidence(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{outputs: []string{
		`{"summary": "cannot ground this", "citations": []}`,
	}}
	s, _ := NewSynthesizer(gen)

	answer, err := s.Synthesize(context.Background(),
		Query{Text: "q", Structured: true}, ContextBlock{Budget: 100})
	if err != nil {
		t.Fatalf("empty context must degrade, not fail: %v", err)
	}
	if !answer.Flagged(FlagNoEvidence) {
		t.Error("want no_evidence flag for empty context")
	}
	// The context-free prompt must tell the model nothing was found.
	if !strings.Contains(gen.prompts[0], "No relevant evidence passages were found") {
		t.Error("context-free prompt missing no-evidence notice")
	}
}

func Test_Synthesize_UnstructuredPassesRawSummary(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{outputs: []string{"plain prose answer"}}
	s, _ := NewSynthesizer(gen)

	answer, err := s.Synthesize(context.Background(),
		Query{Text: "q"}, blockOf("111", "222"))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if answer.Summary != "plain prose answer" {
		t.Errorf("unexpected summary %q", answer.Summary)
	}
	// Unstructured answers are attributed to the whole context block.
	if len(answer.Citations) != 2 {
		t.Errorf("want context source ids as citations, got %v", answer.Citations)
	}
}

func Test_Synthesize_BackendErrorSurfacesTyped(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{err: fmt.Errorf("model unavailable")}
	s, _ := NewSynthesizer(gen)

	_, err := s.Synthesize(context.Background(),
		Query{Text: "q", Structured: true}, blockOf("111"))
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("want *GenerationError, got %T: %v", err, err)
	}
	if gen.calls != 1 {
		t.Errorf("backend errors must not be retried, got %d calls", gen.calls)
	}
}

func Test_Synthesize_CancelledBeforeGeneration(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{outputs: []string{"x"}}
	s, _ := NewSynthesizer(gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Synthesize(ctx, Query{Text: "q"}, blockOf("111"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if gen.calls != 0 {
		t.Error("generation gateway must not be called after cancellation")
	}
}
