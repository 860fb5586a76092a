// This file implements the search command for querying the codebase.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SylphxAI/codebase-search/core/indexer"
)

const (
	// SearchDefaultLimit is the default number of results.
	SearchDefaultLimit = 10

	// SearchDefaultDataDir is the default directory holding the persisted index.
	SearchDefaultDataDir = ".codebase-search"
)

var (
	searchMode       string
	searchLanguage   string
	searchLimit      int
	searchVectorWt   float64
	searchMinScore   float64
	searchJSON       bool
	searchDataDir    string
	searchRootPath   string
	searchDimensions int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the codebase",
	Long: `Search a previously-built index using lexical, vector, or hybrid retrieval.

Examples:
  codebase-search search "handle request"
  codebase-search search --mode lexical "func Authenticate"
  codebase-search search --mode vector --language go "parse config"
  codebase-search search --json "error handling" | jq '.results'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "hybrid", "Search mode: lexical, vector, or hybrid")
	searchCmd.Flags().StringVarP(&searchLanguage, "language", "l", "", "Filter by language")
	searchCmd.Flags().IntVar(&searchLimit, "limit", SearchDefaultLimit, "Maximum number of results")
	searchCmd.Flags().Float64Var(&searchVectorWt, "vector-weight", 0.7, "Vector weight in hybrid mode (0-1)")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0.01, "Minimum fused score a result must reach")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output results as JSON")
	searchCmd.Flags().StringVar(&searchDataDir, "data", SearchDefaultDataDir, "Directory holding the persisted index")
	searchCmd.Flags().StringVarP(&searchRootPath, "root", "r", ".", "Codebase root (must match the root used to build the index)")
	searchCmd.Flags().IntVar(&searchDimensions, "dimensions", IndexDefaultDimensions, "Embedding vector dimensions")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	ctx := context.Background()

	ix, err := indexer.New(ctx, indexer.Config{
		CodebaseRoot: searchRootPath,
		DataDir:      searchDataDir,
		Dimensions:   searchDimensions,
	})
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer ix.Close()

	results, err := ix.Search(ctx, query, indexer.SearchOptions{
		Mode:         indexer.Mode(searchMode),
		Limit:        searchLimit,
		VectorWeight: &searchVectorWt,
		MinScore:     searchMinScore,
		Language:     searchLanguage,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	return outputSearchResults(cmd.OutOrStdout(), query, results)
}

// =============================================================================
// Output Formatting
// =============================================================================

func outputSearchResults(w io.Writer, query string, results []indexer.SearchResult) error {
	if searchJSON {
		return outputJSONResults(w, query, results)
	}
	return outputRichResults(w, query, results)
}

type searchOutput struct {
	Query   string          `json:"query"`
	Count   int             `json:"count"`
	Results []resultOutput  `json:"results"`
}

type resultOutput struct {
	Path           string   `json:"path"`
	Score          float64  `json:"score"`
	Provenance     string   `json:"provenance"`
	Language       string   `json:"language,omitempty"`
	MatchedTerms   []string `json:"matched_terms,omitempty"`
	Similarity     float64  `json:"similarity,omitempty"`
	ContentPreview string   `json:"content_preview,omitempty"`
}

func outputJSONResults(w io.Writer, query string, results []indexer.SearchResult) error {
	out := searchOutput{Query: query, Count: len(results)}
	for _, r := range results {
		out.Results = append(out.Results, resultOutput{
			Path:           r.Path,
			Score:          r.Score,
			Provenance:     string(r.Provenance),
			Language:       r.Language,
			MatchedTerms:   r.MatchedTerms,
			Similarity:     r.Similarity,
			ContentPreview: extractSnippet(r.ContentPreview, 200),
		})
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func outputRichResults(w io.Writer, query string, results []indexer.SearchResult) error {
	fmt.Fprintf(w, "%s%sSearch Results%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%sQuery:%s %s\n", colorGray, colorReset, query)
	fmt.Fprintf(w, "%sFound:%s %d results\n", colorGray, colorReset, len(results))
	fmt.Fprintln(w)

	if len(results) == 0 {
		fmt.Fprintf(w, "%sNo results found.%s\n", colorYellow, colorReset)
		return nil
	}

	for i, r := range results {
		outputRichResult(w, i+1, r)
	}
	return nil
}

func outputRichResult(w io.Writer, index int, r indexer.SearchResult) {
	fmt.Fprintf(w, "%s%d.%s %s%s%s\n", colorYellow, index, colorReset, colorBold, r.Path, colorReset)
	fmt.Fprintf(w, "   %sProvenance:%s %s  %sLang:%s %s  %sScore:%s %.4f\n",
		colorGray, colorReset, r.Provenance,
		colorGray, colorReset, getLanguageDisplay(r.Language),
		colorGray, colorReset, r.Score)

	if len(r.MatchedTerms) > 0 {
		fmt.Fprintf(w, "   %sMatched:%s %s\n", colorBlue, colorReset, strings.Join(r.MatchedTerms, ", "))
	}

	snippet := extractSnippet(r.ContentPreview, 150)
	if snippet != "" {
		fmt.Fprintf(w, "   %s%s%s\n", colorGray, snippet, colorReset)
	}
	fmt.Fprintln(w)
}

func getLanguageDisplay(lang string) string {
	if lang == "" {
		return "unknown"
	}
	return lang
}

// extractSnippet collapses whitespace and truncates content to maxLen
// bytes at a word boundary.
func extractSnippet(content string, maxLen int) string {
	if content == "" {
		return ""
	}
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= maxLen {
		return content
	}
	snippet := content[:maxLen]
	if lastSpace := strings.LastIndex(snippet, " "); lastSpace > maxLen/2 {
		snippet = snippet[:lastSpace]
	}
	return snippet + "..."
}
