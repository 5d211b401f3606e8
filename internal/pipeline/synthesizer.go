package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkumar/biorag-go/internal/logging"
)

// Generator is the generation gateway consumed by the synthesizer: a
// stateless single-shot LLM call. Implementations must be safe to call
// from multiple goroutines.
type Generator interface {
	// Generate returns the model's completion for the given prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// maxGenerationAttempts bounds the structured-output retry loop: one
// initial call plus exactly one retry with a stricter instruction.
const maxGenerationAttempts = 2

// Synthesizer builds the generation prompt, invokes the generation gateway,
// and binds the model's citations back to the retrieved evidence.
type Synthesizer struct {
	// generator is the LLM gateway.
	generator Generator
}

// NewSynthesizer constructs a Synthesizer from the given Generator.
func NewSynthesizer(generator Generator) (*Synthesizer, error) {
	if generator == nil {
		return nil, fmt.Errorf("pipeline: generator must not be nil")
	}
	return &Synthesizer{generator: generator}, nil
}

// Synthesize generates a grounded answer for the query from the context
// block. For structured queries the model output is parsed into a summary
// plus citation list; a parse failure triggers exactly one re-invocation
// with a stricter formatting instruction, and a second failure surfaces as
// *MalformedOutputError.
//
// Citations not present in the context block are dropped with a warning;
// if every citation was invalid the answer is flagged FlagUncited. An
// empty context block produces an answer flagged FlagNoEvidence.
func (s *Synthesizer) Synthesize(ctx context.Context, query Query, block ContextBlock) (GeneratedAnswer, error) {
	log := logging.FromContext(ctx)

	if !query.Structured {
		raw, err := s.generate(ctx, query, block, false)
		if err != nil {
			return GeneratedAnswer{}, err
		}
		answer := GeneratedAnswer{
			Summary: raw,
			// An unstructured answer is attributed to the full context
			// block, mirroring the evidence listing shown to the model.
			Citations: contextSourceIDs(block),
		}
		return flagged(answer, block), nil
	}

	// Explicit bounded retry loop so the exactly-once-retry invariant is
	// visible and testable, rather than error-driven recursion.
	var lastRaw string
	var lastErr error
	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		raw, err := s.generate(ctx, query, block, attempt > 1)
		if err != nil {
			return GeneratedAnswer{}, err
		}

		env, parseErr := parseStructuredAnswer(raw)
		if parseErr == nil {
			answer := s.bindCitations(ctx, env, block)
			return flagged(answer, block), nil
		}

		lastRaw, lastErr = raw, parseErr
		log.Warn("structured output parse failed",
			slog.Int("attempt", attempt),
			slog.Any("error", parseErr),
		)
	}

	return GeneratedAnswer{}, &MalformedOutputError{
		Attempts: maxGenerationAttempts,
		Reason:   lastErr.Error(),
		Raw:      lastRaw,
	}
}

// generate renders the prompt and performs one generation gateway call.
// The context is checked first so cancelled batch runs never reach the
// backend.
func (s *Synthesizer) generate(ctx context.Context, query Query, block ContextBlock, strict bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prompt, err := buildPrompt(query, block, strict)
	if err != nil {
		return "", err
	}

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	return raw, nil
}

// bindCitations validates the model's citations against the context block.
// Invalid citations are dropped and logged as mismatches; if all citations
// were invalid the answer is flagged uncited so callers can reject it.
func (s *Synthesizer) bindCitations(ctx context.Context, env structuredEnvelope, block ContextBlock) GeneratedAnswer {
	log := logging.FromContext(ctx)

	answer := GeneratedAnswer{Summary: env.Summary}

	seen := make(map[string]bool, len(env.Citations))
	for _, id := range env.Citations {
		if seen[id] {
			continue
		}
		seen[id] = true
		if block.HasSource(id) {
			answer.Citations = append(answer.Citations, id)
			continue
		}
		log.Warn("citation mismatch: model cited a source not in context",
			slog.String("source_id", id),
		)
	}

	if len(env.Citations) > 0 && len(answer.Citations) == 0 {
		answer.Flags = append(answer.Flags, FlagUncited)
	}

	return answer
}

// flagged appends FlagNoEvidence when the answer was generated without any
// retrieved context.
func flagged(answer GeneratedAnswer, block ContextBlock) GeneratedAnswer {
	if block.Empty() {
		answer.Flags = append(answer.Flags, FlagNoEvidence)
		answer.Citations = nil
	}
	return answer
}

// contextSourceIDs returns the source identifiers of the context block in
// rank order.
func contextSourceIDs(block ContextBlock) []string {
	ids := make([]string, 0, len(block.Items))
	for _, it := range block.Items {
		ids = append(ids, it.SourceID)
	}
	return ids
}
