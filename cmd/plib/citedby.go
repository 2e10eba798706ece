package main

import (
	"regexp"
	"strings"

	"github.com/matsen/paperlib/internal/reference"
	"github.com/spf13/cobra"
)

var citedByLimit int

var doiLike = regexp.MustCompile(`^(?i:doi:\s*)?10\.\d{4,9}/\S+$`)

func init() {
	citedByCmd.Flags().IntVar(&citedByLimit, "limit", DefaultSearchLimit, "Maximum results to return")
	rootCmd.AddCommand(citedByCmd)
}

var citedByCmd = &cobra.Command{
	Use:   "cited-by <doi|title>",
	Short: "List library papers that cite a work",
	Long: `List papers in the library whose retained citations match a DOI or title.

Examples:
  plib cited-by 10.1038/nature14539
  plib cited-by "Attention is all you need"`,
	Args: cobra.ExactArgs(1),
	RunE: runCitedBy,
}

// citedTarget turns the argument into the paper to look up.
func citedTarget(arg string) reference.Paper {
	arg = strings.TrimSpace(arg)
	if doiLike.MatchString(arg) {
		doi := strings.TrimSpace(arg[strings.Index(arg, "10."):])
		return reference.Paper{DOI: doi}
	}
	return reference.Paper{Title: arg}
}

func runCitedBy(cmd *cobra.Command, args []string) error {
	a := mustLoadApp(false)
	defer a.logger.Sync()
	db := a.mustOpenIndex()
	defer db.Close()

	papers, err := db.CitedBy(citedTarget(args[0]), citedByLimit)
	if err != nil {
		exitWithError(ExitError, "looking up citing papers: %v", err)
	}
	printPapers(papers, "No library papers cite this work")
	return nil
}
