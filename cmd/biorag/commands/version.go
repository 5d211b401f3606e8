package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkumar/biorag-go/internal/version"
)

// NewVersionCmd constructs the `biorag version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "biorag %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.BuildDate)
		},
	}
}
