package main

import (
	"fmt"

	"github.com/matsen/paperlib/internal/pdf"
	"github.com/matsen/paperlib/internal/reference"
	"github.com/matsen/paperlib/internal/storage"
	"github.com/spf13/cobra"
)

var openPathOnly bool

func init() {
	openCmd.Flags().BoolVar(&openPathOnly, "path-only", false, "Print the PDF path instead of opening it")
	rootCmd.AddCommand(openCmd)
}

var openCmd = &cobra.Command{
	Use:   "open <query>",
	Short: "Open a paper's PDF",
	Long: `Open the PDF of the best library match for a query (key, DOI, arXiv ID or keywords)
in the configured reader.

Examples:
  plib open 1706.03762
  plib open "attention is all you need"`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

// OpenResult is the response for the open command.
type OpenResult struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Title  string `json:"title"`
	Path   string `json:"path"`
}

func runOpen(cmd *cobra.Command, args []string) error {
	a := mustLoadApp(false)
	defer a.logger.Sync()
	db := a.mustOpenIndex()
	defer db.Close()

	p, err := findPaper(db, args[0])
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}
	if p == nil {
		exitWithError(ExitDataError, "no paper with a PDF matches %q", args[0])
	}

	opener := pdf.NewOpener(a.cfg.VaultPath, a.cfg.PDFReader)
	path, err := opener.ResolvePath(p.PDFPath)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	res := OpenResult{Status: "opened", Key: p.Key(), Title: p.Title, Path: path}
	if openPathOnly {
		res.Status = "found"
	} else if err := opener.Open(path); err != nil {
		exitWithError(ExitError, "opening PDF: %v", err)
	}

	if humanOutput {
		if openPathOnly {
			fmt.Println(path)
		} else {
			fmt.Printf("Opened %s\n", truncateString(p.Title, SearchTitleMaxLen))
		}
	} else {
		outputJSON(res)
	}
	return nil
}

// findPaper resolves a query to one paper with a PDF: an exact key, DOI or
// arXiv ID first, then the best keyword match.
func findPaper(db *storage.DB, query string) (*reference.Paper, error) {
	keys := []string{
		query,
		reference.Paper{DOI: query}.Key(),
		reference.Paper{ArXivID: query}.Key(),
	}
	for _, key := range keys {
		p, err := db.GetByKey(key)
		if err != nil {
			return nil, err
		}
		if p != nil && p.PDFPath != "" {
			return p, nil
		}
	}

	papers, err := db.Search(query, 10)
	if err != nil {
		return nil, err
	}
	for i := range papers {
		if papers[i].PDFPath != "" {
			return &papers[i], nil
		}
	}
	return nil, nil
}
