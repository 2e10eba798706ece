package main

import (
	"fmt"
	"os"

	"github.com/matsen/paperlib/internal/config"
	"github.com/matsen/paperlib/internal/export"
	"github.com/matsen/paperlib/internal/reference"
	"github.com/matsen/paperlib/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportBibTeX string
	exportXLSX   string
	exportAppend bool
)

func init() {
	exportCmd.Flags().StringVar(&exportBibTeX, "bibtex", "", `Write BibTeX to this file ("-" for stdout)`)
	exportCmd.Flags().StringVar(&exportXLSX, "xlsx", "", "Write a spreadsheet of papers and citations to this file")
	exportCmd.Flags().BoolVar(&exportAppend, "append", false, "Append to an existing .bib, skipping entries already present")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the library as BibTeX or a spreadsheet",
	Long: `Export every processed paper.

Examples:
  plib export --bibtex -
  plib export --bibtex refs.bib --append
  plib export --xlsx library.xlsx`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

// ExportResult is the response for file exports.
type ExportResult struct {
	Format   string `json:"format"`
	Path     string `json:"path"`
	Papers   int    `json:"papers"`
	Exported int    `json:"exported"`
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportBibTeX == "" && exportXLSX == "" {
		exitWithError(ExitError, "choose --bibtex or --xlsx")
	}
	if exportAppend && (exportBibTeX == "" || exportBibTeX == "-") {
		exitWithError(ExitError, "--append needs --bibtex with a file path")
	}

	a := mustLoadApp(false)
	defer a.logger.Sync()

	papers, err := storage.ReadAll(config.LibraryPath(a.cfg.VaultPath))
	if err != nil {
		exitWithError(ExitDataError, "reading library: %v", err)
	}

	var results []ExportResult
	if exportBibTeX != "" {
		results = append(results, writeBibTeX(papers))
	}
	if exportXLSX != "" {
		if err := export.SaveXLSX(exportXLSX, papers); err != nil {
			exitWithError(ExitError, "%v", err)
		}
		results = append(results, ExportResult{Format: "xlsx", Path: exportXLSX, Papers: len(papers), Exported: len(papers)})
	}

	if exportBibTeX == "-" {
		return nil
	}
	if humanOutput {
		for _, r := range results {
			fmt.Printf("Wrote %d of %d papers to %s (%s)\n", r.Exported, r.Papers, r.Path, r.Format)
		}
	} else {
		outputJSON(results)
	}
	return nil
}

func writeBibTeX(papers []reference.Paper) ExportResult {
	res := ExportResult{Format: "bibtex", Path: exportBibTeX, Papers: len(papers)}

	switch {
	case exportBibTeX == "-":
		fmt.Print(export.ToBibTeXList(papers))
		res.Exported = len(papers)
	case exportAppend:
		n, err := export.AppendBibTeX(exportBibTeX, papers)
		if err != nil {
			exitWithError(ExitError, "appending BibTeX: %v", err)
		}
		res.Exported = n
	default:
		if err := os.WriteFile(exportBibTeX, []byte(export.ToBibTeXList(papers)), 0o644); err != nil {
			exitWithError(ExitError, "writing BibTeX: %v", err)
		}
		res.Exported = len(papers)
	}
	return res
}
