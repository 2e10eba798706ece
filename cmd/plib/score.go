package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/matsen/paperlib/internal/citation"
	"github.com/matsen/paperlib/internal/export"
	"github.com/matsen/paperlib/internal/grobid"
	"github.com/spf13/cobra"
)

var (
	scoreTitle   string
	scoreAuthors []string
	scoreYear    int
	scoreVenue   string
	scoreTEI     string
	scoreXLSX    string
)

func init() {
	scoreCmd.Flags().StringVar(&scoreTitle, "title", "", "Parsed title")
	scoreCmd.Flags().StringArrayVar(&scoreAuthors, "author", nil, "Parsed author (repeatable)")
	scoreCmd.Flags().IntVar(&scoreYear, "year", 0, "Parsed publication year")
	scoreCmd.Flags().StringVar(&scoreVenue, "venue", "", "Parsed venue")
	scoreCmd.Flags().StringVar(&scoreTEI, "tei", "", "Score every citation in a GROBID TEI file")
	scoreCmd.Flags().StringVar(&scoreXLSX, "xlsx", "", "With --tei, also write the scores to a spreadsheet")
	rootCmd.AddCommand(scoreCmd)
}

var scoreCmd = &cobra.Command{
	Use:   "score [raw text]",
	Short: "Score a bibliography entry for plausibility",
	Long: `Score a candidate bibliography entry. 0 is a plausible reference, 100 is
certainly garbage; entries above 60 are discarded during processing.

Examples:
  plib score "for i = 1 to n do x ← x + 1"
  plib score --title "Deep Learning" --author "LeCun Y." --year 2015 --venue Nature "LeCun Y. Deep Learning. Nature 2015."
  plib score --tei paper.tei.xml --xlsx scores.xlsx`,
	Args: cobra.ArbitraryArgs,
	RunE: runScore,
}

// ScoreResult is the response for a single scored entry.
type ScoreResult struct {
	Entry     citation.Entry     `json:"entry"`
	Band      citation.Band      `json:"band"`
	Discard   bool               `json:"discard"`
	Breakdown citation.Breakdown `json:"breakdown"`
}

// TEIScoreResult is the response for scoring a TEI document.
type TEIScoreResult struct {
	Source    string                  `json:"source"`
	Total     int                     `json:"total"`
	Discarded int                     `json:"discarded"`
	ByBand    map[citation.Band]int   `json:"by_band"`
	Citations []grobid.ScoredCitation `json:"citations"`
	XLSX      string                  `json:"xlsx,omitempty"`
}

func runScore(cmd *cobra.Command, args []string) error {
	if scoreTEI != "" {
		return runScoreTEI()
	}

	entry := entryFromFlags(args)
	if !scorable(entry) {
		exitWithError(ExitError, "nothing to score: pass raw text, --title or --author")
	}

	bd := citation.NewScorer().Breakdown(entry)
	res := ScoreResult{
		Entry:     entry,
		Band:      citation.BandOf(bd.Score),
		Discard:   citation.IsGarbage(bd.Score),
		Breakdown: bd,
	}

	if !humanOutput {
		outputJSON(res)
		return nil
	}

	fmt.Printf("Score: %d (%s)", bd.Score, res.Band)
	if res.Discard {
		fmt.Print(" - would be discarded")
	}
	fmt.Println()
	if bd.Shortcut {
		fmt.Println("  " + shortcutReason(bd))
		return nil
	}
	fmt.Printf("  baseline:        %d\n", bd.Baseline)
	names := make([]string, 0, len(bd.Categories))
	for name := range bd.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-16s %d\n", name+":", bd.Categories[name])
	}
	if bd.TrustReduction > 0 {
		fmt.Printf("  trust reduction: -%d\n", bd.TrustReduction)
	}
	return nil
}

// entryFromFlags builds the entry to score from flags and raw text arguments.
func entryFromFlags(args []string) citation.Entry {
	var authors []string
	for _, a := range scoreAuthors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	return citation.Entry{
		Title:   strings.TrimSpace(scoreTitle),
		Authors: authors,
		Year:    scoreYear,
		Venue:   strings.TrimSpace(scoreVenue),
		Raw:     strings.Join(strings.Fields(strings.Join(args, " ")), " "),
	}
}

func runScoreTEI() error {
	data, err := os.ReadFile(scoreTEI)
	if err != nil {
		exitWithError(ExitDataError, "reading TEI file: %v", err)
	}

	cites, err := grobid.NewParser(citation.NewScorer()).Citations(data, true)
	if err != nil {
		exitWithError(ExitDataError, "parsing TEI: %v", err)
	}

	res := TEIScoreResult{
		Source:    scoreTEI,
		Total:     len(cites),
		ByBand:    map[citation.Band]int{},
		Citations: cites,
	}
	for _, c := range cites {
		res.ByBand[c.Band]++
		if c.Discard {
			res.Discarded++
		}
	}
	if res.Citations == nil {
		res.Citations = []grobid.ScoredCitation{}
	}

	if scoreXLSX != "" {
		f, err := export.ScoredWorkbook(scoreTEI, cites)
		if err != nil {
			exitWithError(ExitError, "building spreadsheet: %v", err)
		}
		err = f.SaveAs(scoreXLSX)
		f.Close()
		if err != nil {
			exitWithError(ExitError, "saving %s: %v", scoreXLSX, err)
		}
		res.XLSX = scoreXLSX
	}

	if !humanOutput {
		outputJSON(res)
		return nil
	}

	for i, c := range cites {
		mark := " "
		if c.Discard {
			mark = "✗"
		}
		text := c.Title
		if text == "" {
			text = c.Raw
		}
		fmt.Printf("%s %3d. [%3d %-10s] %s\n", mark, i+1, c.GarbageScore, c.Band, truncateString(text, SearchTitleMaxLen))
	}
	fmt.Printf("\n%d citations, %d discarded\n", res.Total, res.Discarded)
	if res.XLSX != "" {
		fmt.Printf("Wrote %s\n", res.XLSX)
	}
	return nil
}

// scorable reports whether e carries anything the classifier can judge.
func scorable(e citation.Entry) bool {
	return e.Raw != "" || e.Title != "" || e.HasAuthors()
}

// shortcutReason explains a score reached without raw text.
func shortcutReason(bd citation.Breakdown) string {
	if bd.Score == citation.MaxScore {
		return "no raw text and no title or authors: scored as garbage"
	}
	return "no raw text: trusting the parsed title and authors"
}
