// Package commands defines all Cobra CLI commands for the biorag binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/mkumar/biorag-go/internal/audit"
	"github.com/mkumar/biorag-go/internal/config"
	"github.com/mkumar/biorag-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "biorag",
		Short: "Evidence-grounded answers from the biomedical literature",
		Long: `biorag answers biomedical research questions using retrieval-augmented
generation over PubMed abstracts.

Abstracts are embedded and indexed in a Qdrant vector store ('biorag ingest').
Questions are answered by retrieving the most similar abstracts, packing them
into a token-budgeted evidence context, and asking an LLM for an answer that
cites the abstracts it used ('biorag query').

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.biorag/config.yaml).
See 'biorag --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.biorag/config.yaml)")

	root.AddCommand(
		NewQueryCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
