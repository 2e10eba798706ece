package main

import (
	"fmt"

	"github.com/matsen/paperlib/internal/pipeline"
	"github.com/spf13/cobra"
)

var processForce bool

func init() {
	processCmd.Flags().BoolVarP(&processForce, "force", "f", false, "Reprocess identifiers already in the library")
	rootCmd.AddCommand(processCmd)
}

var processCmd = &cobra.Command{
	Use:   "process <identifier>...",
	Short: "Process papers and articles into notes",
	Long: `Process one or more identifiers into vault notes.

Identifiers:
  2301.12345, arxiv:2301.12345, https://arxiv.org/abs/2301.12345
  10.1038/nature12373, doi:10.1038/nature12373
  ~/Downloads/paper.pdf
  https://example.com/blog/post

Already-processed identifiers are skipped unless --force is given.

Examples:
  plib process 1706.03762
  plib process --human paper.pdf https://example.com/post`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	a := mustLoadApp(true)
	defer a.logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	db := a.mustOpenIndex()
	defer db.Close()

	proc := a.newProcessor(ctx, db, a.mustLoadLedger())
	res, err := proc.ProcessBatch(ctx, args, pipeline.BatchOptions{Force: processForce})
	if err != nil && !res.Stopped {
		exitWithError(ExitError, "%v", err)
	}

	printBatchResult(res)

	if code := batchExitCode(res.Processed, res.Failed, firstError(res)); code != ExitSuccess {
		return exitSilently(code)
	}
	return nil
}

// printBatchResult reports per-identifier outcomes.
func printBatchResult(res pipeline.BatchResult) {
	if !humanOutput {
		outputJSON(res)
		return
	}

	for _, r := range res.Results {
		switch r.Status {
		case pipeline.StatusProcessed:
			fmt.Printf("✓ %s\n  %s\n  → %s (%d citations, $%.4f)\n",
				r.Identifier, truncateString(r.Title, ResultTitleMaxLen), r.NotePath, r.Citations, r.CostUSD)
		case pipeline.StatusSkipped:
			fmt.Printf("- %s (already processed)\n", r.Identifier)
		case pipeline.StatusFailed:
			fmt.Printf("✗ %s\n  %s\n", r.Identifier, r.Error)
		}
	}
	fmt.Printf("\nProcessed %d, skipped %d, failed %d", res.Processed, res.Skipped, res.Failed)
	if res.CostUSD > 0 {
		fmt.Printf(" (cost $%.4f)", res.CostUSD)
	}
	fmt.Println()
	if res.Stopped {
		fmt.Println("Stopped before all identifiers were processed.")
	}
}

func firstError(res pipeline.BatchResult) error {
	if len(res.Errors) == 0 {
		return nil
	}
	return res.Errors[0].Err
}

// exitError carries an exit code out of RunE without printing anything.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitSilently(code int) error {
	return exitError{code: code}
}
