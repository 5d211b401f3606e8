// Command biorag is the entry point for the biomedical literature
// question-answering CLI. It retrieves PubMed abstract evidence from a
// vector store and synthesises cited answers with a local or hosted LLM.
package main

import (
	"fmt"
	"os"

	"github.com/mkumar/biorag-go/cmd/biorag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
