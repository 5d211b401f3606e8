package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkumar/biorag-go/internal/budget"
	"github.com/mkumar/biorag-go/internal/logging"
)

// stage names the phases of one pipeline run. A run moves strictly forward
// through the stages; the only loop is the single structured-output retry
// inside the synthesizer.
type stage string

const (
	stageRetrieving stage = "retrieving"
	stageAssembling stage = "assembling"
	stageGenerating stage = "generating"
	stageDone       stage = "done"
)

// Options holds the per-run tuning knobs. Zero values select the defaults,
// so a zero Options is usable.
type Options struct {
	// TopK is the number of candidates requested from the vector index.
	// Defaults to DefaultTopK.
	TopK int

	// MinScore is the similarity threshold below which candidates are
	// discarded. Nil defaults to DefaultMinScore. A pointer so that an
	// explicit zero (accept every candidate) stays distinguishable from
	// unset.
	MinScore *float32

	// BudgetTokens is the estimated token budget for the evidence context.
	// Defaults to budget.DefaultContextTokens.
	BudgetTokens int
}

// Default tuning values. The retrieval depth follows the original corpus
// configuration; the score threshold and context budget are documented
// defaults chosen for cosine similarity over normalised abstract embeddings.
const (
	// DefaultTopK is the default number of candidates per retrieval.
	DefaultTopK = 15

	// DefaultMinScore is the default cosine similarity threshold.
	DefaultMinScore = 0.25
)

// withDefaults fills unset option fields.
func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.MinScore == nil {
		def := float32(DefaultMinScore)
		o.MinScore = &def
	}
	if o.BudgetTokens <= 0 {
		o.BudgetTokens = budget.DefaultContextTokens
	}
	return o
}

// Pipeline wires the retriever, assembler, and synthesizer into the full
// query → evidence → context → answer flow. A Pipeline is immutable after
// construction and safe for concurrent runs; each run keeps all
// intermediate state on its own stack.
type Pipeline struct {
	// retriever produces the evidence set for a query.
	retriever *Retriever

	// synthesizer produces the grounded answer from the context block.
	synthesizer *Synthesizer

	// opts are the default options applied to every run.
	opts Options
}

// New constructs a Pipeline from its two stages and default options.
func New(retriever *Retriever, synthesizer *Synthesizer, opts Options) (*Pipeline, error) {
	if retriever == nil {
		return nil, fmt.Errorf("pipeline: retriever must not be nil")
	}
	if synthesizer == nil {
		return nil, fmt.Errorf("pipeline: synthesizer must not be nil")
	}
	return &Pipeline{
		retriever:   retriever,
		synthesizer: synthesizer,
		opts:        opts.withDefaults(),
	}, nil
}

// Run executes one full pipeline pass for the query and returns the
// result. Cancellation is checked between stages, so aborting the context
// never leaves partially mutated shared state — intermediate values are
// local and immutable once built.
//
// Empty retrieval is not an error: the run proceeds with an empty context
// and the answer comes back flagged FlagNoEvidence.
func (p *Pipeline) Run(ctx context.Context, query Query) (*PipelineResult, error) {
	opts := p.opts
	log := logging.FromContext(ctx).With(slog.String("query", query.Text))
	start := time.Now()

	log.Debug("pipeline stage", slog.String("stage", string(stageRetrieving)))
	evidence, err := p.retriever.Retrieve(ctx, query, opts.TopK, *opts.MinScore)
	if err != nil {
		return nil, err
	}
	if evidence.Empty() {
		log.Info("retrieval returned no evidence above threshold")
	}

	log.Debug("pipeline stage", slog.String("stage", string(stageAssembling)))
	block, err := Assemble(evidence, opts.BudgetTokens)
	if err != nil {
		return nil, err
	}

	log.Debug("pipeline stage",
		slog.String("stage", string(stageGenerating)),
		slog.Int("context_passages", len(block.Items)),
		slog.Int("context_tokens", block.TotalTokens),
	)
	answer, err := p.synthesizer.Synthesize(ctx, query, block)
	if err != nil {
		return nil, err
	}

	result := &PipelineResult{
		Query:    query,
		Evidence: evidence,
		Context:  block,
		Answer:   answer,
		Elapsed:  time.Since(start),
	}

	log.Debug("pipeline stage",
		slog.String("stage", string(stageDone)),
		slog.Int("citations", len(answer.Citations)),
		slog.Any("flags", answer.Flags),
		slog.Duration("elapsed", result.Elapsed),
	)

	return result, nil
}
