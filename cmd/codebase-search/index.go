// This file implements the index command for managing the search index.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SylphxAI/codebase-search/core/indexer"
)

const (
	// IndexDefaultDataDir is the default directory holding index.db and the
	// vector snapshot.
	IndexDefaultDataDir = ".codebase-search"

	// IndexDefaultDimensions is the default embedding vector length.
	IndexDefaultDimensions = 384
)

var (
	indexDataDir     string
	indexRootPath    string
	indexDimensions  int
	indexWatch       bool
	indexJSON        bool
	indexVerbose     bool
	indexExclude     []string
)

// indexCmd represents the index command.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the search index",
	Long: `Manage the search index for a codebase.

Subcommands:
  status   - Show index status and statistics
  rebuild  - Scan the codebase root and (re)build the index
  verify   - Verify index integrity

Examples:
  codebase-search index status
  codebase-search index rebuild --root .
  codebase-search index rebuild --root . --watch
  codebase-search index verify`,
	RunE: runIndexStatus,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	Long:  `Show the current status of the search index, including document and vector counts. Pipeline run state (stage, run id) is kept in memory only, so a freshly opened index reports none.`,
	RunE:  runIndexStatus,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Scan the codebase root and (re)build the index",
	Long: `Scan --root for files, run the staged indexing pipeline, and persist
the result to --data.

Use --watch to keep the process running and reindex on every debounced
filesystem change after the initial run completes.`,
	RunE: runIndexRebuild,
}

var indexVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify index integrity",
	Long:  `Verify the integrity of the persisted SQLite store.`,
	RunE:  runIndexVerify,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.AddCommand(indexStatusCmd)
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexVerifyCmd)

	indexCmd.PersistentFlags().StringVar(&indexDataDir, "data", IndexDefaultDataDir, "Directory holding the persisted index")
	indexCmd.PersistentFlags().BoolVar(&indexJSON, "json", false, "Output as JSON")
	indexCmd.PersistentFlags().BoolVarP(&indexVerbose, "verbose", "v", false, "Verbose output")

	indexRebuildCmd.Flags().StringVarP(&indexRootPath, "root", "r", ".", "Codebase root to scan")
	indexRebuildCmd.Flags().IntVar(&indexDimensions, "dimensions", IndexDefaultDimensions, "Embedding vector dimensions")
	indexRebuildCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "Keep watching for changes after the initial build")
	indexRebuildCmd.Flags().StringSliceVarP(&indexExclude, "exclude", "E", nil, "Exclude glob patterns (e.g. 'vendor/**,*_test.go')")

	indexStatusCmd.Flags().StringVarP(&indexRootPath, "root", "r", ".", "Codebase root (must match the root used to build the index)")
	indexVerifyCmd.Flags().StringVarP(&indexRootPath, "root", "r", ".", "Codebase root (must match the root used to build the index)")
}

func openIndexer(ctx context.Context) (*indexer.Indexer, error) {
	return indexer.New(ctx, indexer.Config{
		CodebaseRoot:    indexRootPath,
		DataDir:         indexDataDir,
		Dimensions:      indexDimensions,
		IgnoreExtra:     indexExclude,
		ExcludePatterns: indexExclude,
	})
}

// =============================================================================
// Index Status
// =============================================================================

type indexStatusOutput struct {
	DataDir       string `json:"data_dir"`
	DocumentCount int    `json:"document_count"`
	VectorCount   int    `json:"vector_count"`
	DeletedSlots  int    `json:"deleted_slots"`
	Stage         string `json:"stage"`
	LastRunID     string `json:"last_run_id,omitempty"`
}

func runIndexStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	ix, err := openIndexer(ctx)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer ix.Close()

	stats := ix.Stats()
	status := ix.Status()
	out := indexStatusOutput{
		DataDir:       indexDataDir,
		DocumentCount: stats.DocumentCount,
		VectorCount:   stats.VectorCount,
		DeletedSlots:  stats.DeletedSlots,
		Stage:         string(status.Stage),
		LastRunID:     status.RunID,
	}

	if indexJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}
	return outputRichIndexStatus(cmd.OutOrStdout(), out)
}

func outputRichIndexStatus(w io.Writer, status indexStatusOutput) error {
	fmt.Fprintf(w, "%s%sIndex Status%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%s%s%s\n", colorGray, strings.Repeat("-", 40), colorReset)
	fmt.Fprintf(w, "%sData dir:%s   %s\n", colorGray, colorReset, status.DataDir)
	fmt.Fprintf(w, "%sDocuments:%s  %d\n", colorGray, colorReset, status.DocumentCount)
	fmt.Fprintf(w, "%sVectors:%s    %d (%d deleted)\n", colorGray, colorReset, status.VectorCount, status.DeletedSlots)
	fmt.Fprintf(w, "%sLast stage:%s %s\n", colorGray, colorReset, status.Stage)
	if status.DocumentCount == 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%sIndex is empty. Run 'codebase-search index rebuild --root <path>'.%s\n", colorYellow, colorReset)
	}
	return nil
}

// =============================================================================
// Index Rebuild
// =============================================================================

type indexRebuildOutput struct {
	Success      bool          `json:"success"`
	IndexedFiles int           `json:"indexed_files"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
	Watching     bool          `json:"watching,omitempty"`
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(cmd.OutOrStderr(), "\nInterrupted. Cleaning up...")
		cancel()
	}()

	if err := validateRootPath(indexRootPath); err != nil {
		return err
	}

	if !indexJSON {
		fmt.Fprintf(cmd.OutOrStdout(), "%s%sIndexing%s\n", colorBold, colorCyan, colorReset)
		fmt.Fprintf(cmd.OutOrStdout(), "%sRoot:%s %s\n", colorGray, colorReset, indexRootPath)
		fmt.Fprintf(cmd.OutOrStdout(), "%sData:%s %s\n", colorGray, colorReset, indexDataDir)
		fmt.Fprintln(cmd.OutOrStdout())
	}

	ix, err := openIndexer(ctx)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer ix.Close()

	startTime := time.Now()
	status, err := ix.Index(ctx)
	result := indexRebuildOutput{
		Success:      err == nil,
		IndexedFiles: status.IndexedFiles,
		Duration:     time.Since(startTime),
	}
	if err != nil {
		result.Error = err.Error()
	}

	if outErr := outputRebuildResult(cmd.OutOrStdout(), result); outErr != nil {
		return outErr
	}
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if indexWatch {
		result.Watching = true
		return runWatchMode(ctx, cmd.OutOrStdout(), ix)
	}
	return nil
}

func validateRootPath(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("root path does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to access root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path is not a directory: %s", path)
	}
	return nil
}

func outputRebuildResult(w io.Writer, result indexRebuildOutput) error {
	if indexJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sIndexing Complete%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%s%s%s\n", colorGray, strings.Repeat("-", 40), colorReset)
	fmt.Fprintf(w, "%sIndexed:%s  %s%d%s\n", colorGray, colorReset, colorGreen, result.IndexedFiles, colorReset)
	fmt.Fprintf(w, "%sDuration:%s %v\n", colorGray, colorReset, result.Duration.Round(time.Millisecond))
	if result.Error != "" {
		fmt.Fprintf(w, "%sError:%s     %s%s%s\n", colorGray, colorReset, colorRed, result.Error, colorReset)
	}
	return nil
}

// =============================================================================
// Watch Mode
// =============================================================================

func runWatchMode(ctx context.Context, w io.Writer, ix *indexer.Indexer) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sWatch Mode%s - Press Ctrl+C to stop\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%sWatching:%s %s\n", colorGray, colorReset, indexRootPath)
	fmt.Fprintln(w)

	if err := ix.StartBackgroundIndexing(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	<-ctx.Done()
	fmt.Fprintln(w, "\nWatch mode stopped.")
	return nil
}

// =============================================================================
// Index Verify
// =============================================================================

type indexVerifyOutput struct {
	Valid         bool   `json:"valid"`
	DocumentCount int    `json:"document_count"`
	Issue         string `json:"issue,omitempty"`
	CheckDuration string `json:"check_duration"`
}

func runIndexVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if !indexJSON {
		fmt.Fprintf(cmd.OutOrStdout(), "%s%sVerifying Index%s\n", colorBold, colorCyan, colorReset)
		fmt.Fprintln(cmd.OutOrStdout())
	}

	startTime := time.Now()
	result := indexVerifyOutput{Valid: true}

	ix, err := openIndexer(ctx)
	if err != nil {
		result.Valid = false
		result.Issue = err.Error()
		return outputVerifyResult(cmd.OutOrStdout(), result, startTime)
	}
	defer ix.Close()

	if err := ix.Verify(); err != nil {
		result.Valid = false
		result.Issue = err.Error()
	}
	result.DocumentCount = ix.Stats().DocumentCount

	return outputVerifyResult(cmd.OutOrStdout(), result, startTime)
}

func outputVerifyResult(w io.Writer, result indexVerifyOutput, startTime time.Time) error {
	result.CheckDuration = time.Since(startTime).String()

	if indexJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Fprintf(w, "%sDocument Count:%s %d\n", colorGray, colorReset, result.DocumentCount)
	fmt.Fprintf(w, "%sDuration:%s       %s\n", colorGray, colorReset, result.CheckDuration)
	fmt.Fprintln(w)

	if result.Valid {
		fmt.Fprintf(w, "%sResult:%s %s%sValid%s\n", colorGray, colorReset, colorBold, colorGreen, colorReset)
	} else {
		fmt.Fprintf(w, "%sResult:%s %s%sInvalid%s\n", colorGray, colorReset, colorBold, colorRed, colorReset)
		if result.Issue != "" {
			fmt.Fprintf(w, "  - %s\n", result.Issue)
		}
	}
	return nil
}
