package main

import (
	"fmt"
	"strings"

	"github.com/matsen/paperlib/internal/author"
	"github.com/matsen/paperlib/internal/reference"
	"github.com/matsen/paperlib/internal/storage"
	"github.com/spf13/cobra"
)

var (
	searchLimit    int
	searchAuthors  []string
	searchYearFrom int
	searchYearTo   int
	searchVenue    string
	searchSource   string
	searchArticles bool
)

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", DefaultSearchLimit, "Maximum results to return")
	searchCmd.Flags().StringArrayVar(&searchAuthors, "author", nil, "Filter by author (repeatable; all must match)")
	searchCmd.Flags().IntVar(&searchYearFrom, "year-from", 0, "Minimum publication year")
	searchCmd.Flags().IntVar(&searchYearTo, "year-to", 0, "Maximum publication year")
	searchCmd.Flags().StringVar(&searchVenue, "venue", "", "Filter by venue")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "Filter by source (arxiv, doi, local, web)")
	searchCmd.Flags().BoolVar(&searchArticles, "articles", false, "Search web articles instead of papers")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the library",
	Long: `Search processed papers by keyword over title, abstract and authors.

Examples:
  plib search "phylogenetics"
  plib search --author Matsen --year-from 2020
  plib search --author "Bloom, Jesse" --author Matsen
  plib search --articles "language models"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) == 1 {
		query = args[0]
	}

	a := mustLoadApp(false)
	defer a.logger.Sync()
	db := a.mustOpenIndex()
	defer db.Close()

	if searchArticles {
		if query == "" {
			exitWithError(ExitError, "article search needs a query")
		}
		articles, err := db.SearchArticles(query, searchLimit)
		if err != nil {
			exitWithError(ExitError, "searching: %v", err)
		}
		printArticles(articles)
		return nil
	}

	queries := author.ParseQueries(searchAuthors)
	filters := storage.SearchFilters{
		Keyword:  query,
		Author:   authorPrefilter(queries),
		YearFrom: searchYearFrom,
		YearTo:   searchYearTo,
		Venue:    searchVenue,
		Source:   searchSource,
	}
	if filters == (storage.SearchFilters{}) {
		exitWithError(ExitError, "give a query or at least one filter")
	}

	// The index matches author words loosely, so fetch everything and
	// apply the exact author rules before limiting.
	limit := searchLimit
	if len(queries) > 0 {
		limit = 0
	}
	papers, err := db.SearchWithFilters(filters, limit)
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}
	papers = author.Filter(papers, queries)
	if searchLimit > 0 && len(papers) > searchLimit {
		papers = papers[:searchLimit]
	}
	printPapers(papers, "No papers found")
	return nil
}

// authorPrefilter returns the last names the index should match.
func authorPrefilter(queries []author.Query) string {
	lasts := make([]string, len(queries))
	for i, q := range queries {
		lasts[i] = q.Last
	}
	return strings.Join(lasts, " ")
}

func printPapers(papers []reference.Paper, empty string) {
	if !humanOutput {
		outputJSON(summarize(papers))
		return
	}
	if len(papers) == 0 {
		fmt.Println(empty)
		return
	}
	fmt.Printf("Found %d papers:\n\n", len(papers))
	for i, p := range papers {
		printPaperSummary(i+1, p)
	}
}

func printArticles(articles []reference.Article) {
	if !humanOutput {
		if articles == nil {
			articles = []reference.Article{}
		}
		outputJSON(articles)
		return
	}
	if len(articles) == 0 {
		fmt.Println("No articles found")
		return
	}
	for i, art := range articles {
		fmt.Printf("[%d] %s\n    %s\n", i+1, truncateString(art.Title, SearchTitleMaxLen), art.URL)
		if len(art.Authors) > 0 {
			fmt.Printf("    %s\n", strings.Join(art.Authors, ", "))
		}
		fmt.Println()
	}
}
