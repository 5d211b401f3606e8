package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/mkumar/biorag-go/internal/budget"
	"github.com/mkumar/biorag-go/internal/extract"
	"github.com/mkumar/biorag-go/internal/logging"
	"github.com/mkumar/biorag-go/internal/pipeline"
	"github.com/mkumar/biorag-go/internal/store"
	"github.com/mkumar/biorag-go/internal/tracing"
)

// NewQueryCmd constructs the `biorag query` command, which answers a single
// biomedical question against the indexed abstract corpus.
func NewQueryCmd() *cobra.Command {
	var (
		topK       int
		minScore   float32
		budgetTok  int
		structured bool
		doExtract  bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Answer a biomedical question from the indexed literature",
		Long: `Answer a natural language biomedical question using evidence retrieved
from the ingested PubMed abstracts.

The answer cites the PMIDs of the abstracts it is grounded on. With
--structured, the model is asked for a machine-parseable summary plus an
explicit citation list; malformed output is retried once before failing.

Examples:
  biorag query "Which kinases does imatinib inhibit?"
  biorag query --structured --top-k 20 "What is the role of TP53 in breast cancer?"
  biorag query --extract "What targets gefitinib in NSCLC?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Debug("langfuse tracing enabled")
			}

			opts := pipeline.Options{
				TopK:         topK,
				MinScore:     &minScore,
				BudgetTokens: budgetTok,
			}

			p, generator, _, closeStore, err := buildPipeline(ctx, log, opts)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer closeStore()

			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			question := strings.Join(args, " ")
			result, err := p.Run(runCtx, pipeline.Query{Text: question, Structured: structured})
			if err != nil {
				return fmt.Errorf("query: %s: %w", pipeline.Kind(err), err)
			}

			printResult(cmd, result)

			// Persist the run unless history is disabled.
			history, closeHistory := openHistoryStore(log)
			defer closeHistory()
			if history != nil {
				flags := make([]string, 0, len(result.Answer.Flags))
				for _, f := range result.Answer.Flags {
					flags = append(flags, string(f))
				}
				if _, err := history.SaveRun(ctx, &store.Run{
					Query:     question,
					Summary:   result.Answer.Summary,
					Citations: result.Answer.Citations,
					Flags:     flags,
				}); err != nil {
					log.Warn("history: failed to save run", slog.Any("error", err))
				}
			}

			if doExtract && !result.Context.Empty() {
				ex, err := extract.NewExtractor(generator)
				if err != nil {
					return fmt.Errorf("query: %w", err)
				}
				triples, skipped, err := ex.FromContext(runCtx, &result.Context)
				if err != nil {
					return fmt.Errorf("query: extraction failed: %w", err)
				}
				printTriples(cmd, triples, skipped)
				if history != nil && len(triples) > 0 {
					if err := history.SaveTriples(ctx, triples); err != nil {
						log.Warn("history: failed to save triples", slog.Any("error", err))
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", getEnvInt("BIORAG_TOP_K", pipeline.DefaultTopK), "Number of candidate abstracts retrieved from the vector store")
	cmd.Flags().Float32Var(&minScore, "min-score", getEnvFloat32("BIORAG_MIN_SCORE", pipeline.DefaultMinScore), "Minimum similarity score for a retrieved abstract to be used (0.0-1.0)")
	cmd.Flags().IntVar(&budgetTok, "budget", getEnvInt("BIORAG_CONTEXT_TOKENS", budget.DefaultContextTokens), "Token budget for the assembled evidence context")
	cmd.Flags().BoolVarP(&structured, "structured", "s", false, "Request a structured summary+citations answer from the model")
	cmd.Flags().BoolVar(&doExtract, "extract", false, "Also extract drug-target-disease triples from the evidence context")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall deadline for the pipeline run")

	return cmd
}

// printResult writes the answer, citations, and degradation markers to stdout.
func printResult(cmd *cobra.Command, result *pipeline.PipelineResult) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, strings.TrimSpace(result.Answer.Summary))

	if len(result.Answer.Citations) > 0 {
		fmt.Fprintf(out, "\nCitations: %s\n", strings.Join(result.Answer.Citations, ", "))
	}

	for _, f := range result.Answer.Flags {
		switch f {
		case pipeline.FlagNoEvidence:
			fmt.Fprintln(out, "\n[no evidence: no abstracts matched the query above the score threshold]")
		case pipeline.FlagUncited:
			fmt.Fprintln(out, "\n[uncited: the model did not cite any retrieved abstract]")
		}
	}

	fmt.Fprintf(out, "\n(%d passages, %d tokens, %s)\n",
		len(result.Context.Items), result.Context.TotalTokens,
		result.Elapsed.Round(time.Millisecond))
}

// printTriples writes extracted relations to stdout.
func printTriples(cmd *cobra.Command, triples []store.Triple, skipped int) {
	out := cmd.OutOrStdout()

	if len(triples) == 0 {
		fmt.Fprintln(out, "\nNo drug-target-disease relations found in the evidence.")
		return
	}

	fmt.Fprintf(out, "\nExtracted relations (%d):\n", len(triples))
	for _, t := range triples {
		line := fmt.Sprintf("  %s -> %s -> %s [%s]", t.Drug, t.Target, t.Disease, t.SourceID)
		if t.Mechanism != "" {
			line += " (" + t.Mechanism + ")"
		}
		fmt.Fprintln(out, line)
	}
	if skipped > 0 {
		fmt.Fprintf(out, "  (%d passages skipped: unparseable extraction output)\n", skipped)
	}
}
