// Command codebase-search is the CLI for the codebase search engine,
// wrapping core/indexer's index/search/status operations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

var rootCmd = &cobra.Command{
	Use:   "codebase-search",
	Short: "Hybrid lexical and vector search over a codebase",
	Long:  `codebase-search indexes a directory tree for both TF-IDF lexical and HNSW vector search, and answers hybrid queries over the result.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
