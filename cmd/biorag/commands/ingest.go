package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkumar/biorag-go/internal/embedder"
	"github.com/mkumar/biorag-go/internal/ingestion"
	"github.com/mkumar/biorag-go/internal/logging"
)

// NewIngestCmd constructs the `biorag ingest` command, which loads abstract
// records from JSON files, embeds them, and upserts them into Qdrant.
func NewIngestCmd() *cobra.Command {
	var (
		dir       string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "ingest --dir <path>",
		Short: "Index PubMed abstract records into the vector store",
		Long: `Load abstract records from a JSON file or a directory of JSON files,
embed each abstract, and upsert the vectors into the Qdrant collection.

Each file holds either a single record object or an array of records:

  {"pmid": "12345", "title": "...", "abstract": "...", "authors": [...], "gene": "EGFR"}

Records without an abstract or a PMID are skipped and counted.

Examples:
  biorag ingest --dir ./data/abstracts.json
  biorag ingest --dir ./data/pubmed/ --batch-size 64`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)
			path := dir

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			loaded, err := ingestion.LoadRecords(path)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("records loaded",
				slog.String("path", path),
				slog.Int("usable", len(loaded.Records)),
				slog.Int("skipped_empty_abstract", loaded.SkippedEmpty),
				slog.Int("skipped_missing_pmid", loaded.SkippedNoID),
			)
			if len(loaded.Records) == 0 {
				return fmt.Errorf("ingest: no usable records in %s", path)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}

			qs, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer qs.Close()

			ing, err := ingestion.NewPipeline(emb, qs, &ingestion.Config{BatchSize: batchSize})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			start := time.Now()
			stored, err := ing.Ingest(ctx, loaded.Records, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: stored %d of %d records: %w", stored, len(loaded.Records), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d abstracts in %s (%d skipped: %d empty, %d missing PMID)\n",
				stored, time.Since(start).Round(time.Millisecond),
				loaded.SkippedEmpty+loaded.SkippedNoID, loaded.SkippedEmpty, loaded.SkippedNoID)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "JSON file or directory of JSON files holding abstract records")
	cmd.Flags().IntVar(&batchSize, "batch-size", 32, "Number of abstracts embedded and upserted per batch")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}
