package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/matsen/paperlib/internal/reference"
)

// Output formatting constants.
const (
	DefaultSearchLimit = 20 // Default limit for search and cited-by
	SearchTitleMaxLen  = 70 // Title width in result summaries
	ResultTitleMaxLen  = 60 // Title width in process output
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UpdateResponse is the response for config set commands.
type UpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// PaperSummary is the JSON form of a paper in listings.
type PaperSummary struct {
	Key       string   `json:"key"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Year      int      `json:"year,omitempty"`
	Venue     string   `json:"venue,omitempty"`
	DOI       string   `json:"doi,omitempty"`
	ArXivID   string   `json:"arxiv_id,omitempty"`
	Citations int      `json:"citations"`
	NotePath  string   `json:"note_path,omitempty"`
	PDFPath   string   `json:"pdf_path,omitempty"`
}

func summarize(papers []reference.Paper) []PaperSummary {
	out := make([]PaperSummary, 0, len(papers))
	for _, p := range papers {
		out = append(out, PaperSummary{
			Key:       p.Key(),
			Title:     p.Title,
			Authors:   reference.AuthorNames(p.Authors),
			Year:      p.Year,
			Venue:     p.Venue,
			DOI:       p.DOI,
			ArXivID:   p.ArXivID,
			Citations: len(p.Citations),
			NotePath:  p.NotePath,
			PDFPath:   p.PDFPath,
		})
	}
	return out
}

// printPaperSummary prints one numbered paper for human output.
func printPaperSummary(num int, p reference.Paper) {
	fmt.Printf("[%d] %s\n", num, p.Key())
	fmt.Printf("    %s\n", truncateString(p.Title, SearchTitleMaxLen))
	if len(p.Authors) > 0 {
		fmt.Printf("    %s\n", formatAuthorsShort(p.Authors, 3))
	}
	switch {
	case p.Venue != "" && p.Year > 0:
		fmt.Printf("    %s (%d)\n", p.Venue, p.Year)
	case p.Year > 0:
		fmt.Printf("    (%d)\n", p.Year)
	}
	fmt.Println()
}

// truncateString truncates a string to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// formatAuthorShort formats an author as "Last F" (abbreviated first name).
func formatAuthorShort(a reference.Author) string {
	if a.First != "" {
		return a.Last + " " + string([]rune(a.First)[0])
	}
	return a.Last
}

// formatAuthorsShort formats authors with abbreviation and "et al." for more than maxCount.
func formatAuthorsShort(authors []reference.Author, maxCount int) string {
	var names []string
	for i, a := range authors {
		if i >= maxCount {
			names = append(names, "et al.")
			break
		}
		names = append(names, formatAuthorShort(a))
	}
	return strings.Join(names, ", ")
}
