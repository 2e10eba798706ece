package main

import (
	"io"
	"os"

	"github.com/matsen/paperlib/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	batchForce       bool
	batchStopOnError bool
)

func init() {
	batchCmd.Flags().BoolVarP(&batchForce, "force", "f", false, "Reprocess identifiers already in the library")
	batchCmd.Flags().BoolVar(&batchStopOnError, "stop-on-error", false, "Stop at the first failure")
	rootCmd.AddCommand(batchCmd)
}

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Process identifiers listed in a file",
	Long: `Process identifiers listed one per line in a file ("-" reads stdin).

Blank lines and lines starting with # are ignored. Failures are reported at
the end; exit status 5 means some identifiers failed.

Examples:
  plib batch reading-list.txt
  grep arxiv links.txt | plib batch -`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			exitWithError(ExitDataError, "opening batch file: %v", err)
		}
		defer f.Close()
		r = f
	}

	ids, err := pipeline.ReadIdentifiers(r)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	if len(ids) == 0 {
		exitWithError(ExitDataError, "no identifiers in %s", args[0])
	}

	a := mustLoadApp(true)
	defer a.logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	db := a.mustOpenIndex()
	defer db.Close()

	proc := a.newProcessor(ctx, db, a.mustLoadLedger())
	res, err := proc.ProcessBatch(ctx, ids, pipeline.BatchOptions{
		Force:       batchForce,
		StopOnError: batchStopOnError,
	})
	if err != nil && !res.Stopped {
		exitWithError(ExitError, "%v", err)
	}

	printBatchResult(res)

	if code := batchExitCode(res.Processed, res.Failed, firstError(res)); code != ExitSuccess {
		return exitSilently(code)
	}
	return nil
}
