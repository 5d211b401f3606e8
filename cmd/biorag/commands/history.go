package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkumar/biorag-go/internal/logging"
	"github.com/mkumar/biorag-go/internal/store"
)

// NewHistoryCmd constructs the `biorag history` command, which lists
// previously answered queries from the local SQLite store.
func NewHistoryCmd() *cobra.Command {
	var (
		limit int
		drug  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent query runs",
		Long: `List recent question-answer runs persisted in the local history
database (default ~/.biorag/history.db, override with BIORAG_HISTORY_DB).

With --drug, list the extracted drug-target-disease relations stored for
that drug instead of the run log.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			history, closeHistory := openHistoryStore(log)
			defer closeHistory()
			if history == nil {
				return fmt.Errorf("history: store unavailable or disabled")
			}

			if drug != "" {
				triples, err := history.TriplesForDrug(ctx, drug)
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}
				printDrugTriples(cmd, drug, triples)
				return nil
			}

			runs, err := history.RecentRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			for _, run := range runs {
				fmt.Fprintf(out, "[%d] %s\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04"))
				fmt.Fprintf(out, "  Q: %s\n", run.Query)
				fmt.Fprintf(out, "  A: %s\n", truncateLine(run.Summary, 200))
				if len(run.Citations) > 0 {
					fmt.Fprintf(out, "  Citations: %s\n", strings.Join(run.Citations, ", "))
				}
				if len(run.Flags) > 0 {
					fmt.Fprintf(out, "  Flags: %s\n", strings.Join(run.Flags, ", "))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&drug, "drug", "", "List stored relations for this drug instead of the run log")

	return cmd
}

// printDrugTriples writes the stored relations for one drug to stdout.
func printDrugTriples(cmd *cobra.Command, drug string, triples []store.Triple) {
	out := cmd.OutOrStdout()
	if len(triples) == 0 {
		fmt.Fprintf(out, "No relations stored for %q.\n", drug)
		return
	}
	fmt.Fprintf(out, "Relations for %s (%d):\n", drug, len(triples))
	for _, t := range triples {
		line := fmt.Sprintf("  %s -> %s -> %s [%s]", t.Drug, t.Target, t.Disease, t.SourceID)
		if t.Mechanism != "" {
			line += " (" + t.Mechanism + ")"
		}
		fmt.Fprintln(out, line)
	}
}

// truncateLine collapses the text to a single line capped at max runes.
func truncateLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
