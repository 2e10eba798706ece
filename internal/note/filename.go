package note

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/matsen/paperlib/internal/reference"
)

// MaxNameLen is the longest note name allowed, leaving room for ".md".
const MaxNameLen = 77

var (
	repeatedDashes  = regexp.MustCompile(`-+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}_\s\-().]`)
	pathChars       = strings.NewReplacer(
		`"`, "", "'", "",
		".", "-", ":", " -",
		"/", "", `\`, "", "*", "", "?", "", "<", "", ">", "", "|", "",
	)
)

// PaperName returns the note name (without extension) for a paper:
// "Surname et al (Year) - Title".
func PaperName(p reference.Paper) string {
	first := ""
	if len(p.Authors) > 0 {
		first = p.Authors[0].Last
	}
	return Name(first, len(p.Authors) > 1, p.Year, p.Title)
}

// ArticleName returns the note name for an article. Articles without a
// publication date use the year of now.
func ArticleName(a reference.Article, now time.Time) string {
	first := ""
	if len(a.Authors) > 0 {
		first, _, _ = strings.Cut(a.Authors[0], ",")
	}
	year := now.Year()
	if a.PublishedDate != nil {
		year = a.PublishedDate.Year()
	}
	return Name(first, len(a.Authors) > 1, year, a.Title)
}

// Name builds a filesystem-safe note name from the first author, the year
// and the title, truncating the title at a word boundary when possible.
func Name(firstAuthor string, multipleAuthors bool, year int, title string) string {
	author := strings.TrimSpace(firstAuthor)
	if author == "" {
		author = "Unknown"
	}
	if multipleAuthors {
		author += " et al"
	}

	title = pathChars.Replace(title)
	title = repeatedDashes.ReplaceAllString(title, "-")
	title = strings.TrimSpace(whitespaceRun.ReplaceAllString(title, " "))
	if title == "" {
		title = "Untitled"
	}

	prefix := fmt.Sprintf("%s (%d) - ", author, year)
	if n := len([]rune(prefix + title)); n > MaxNameLen {
		title = truncateTitle(title, MaxNameLen-len([]rune(prefix)))
	}

	return unsafeNameChars.ReplaceAllString(prefix+title, "")
}

// truncateTitle keeps at most available runes, backing off to the last
// space or dash if one falls past 70% of the budget.
func truncateTitle(title string, available int) string {
	if available <= 0 {
		return ""
	}
	runes := []rune(title)
	if len(runes) <= available {
		return title
	}
	truncated := runes[:available]

	boundary := -1
	for i := len(truncated) - 1; i >= 0; i-- {
		if truncated[i] == ' ' || truncated[i] == '-' {
			boundary = i
			break
		}
	}
	if float64(boundary) > float64(available)*0.7 {
		truncated = truncated[:boundary]
	}
	return strings.TrimSpace(string(truncated))
}
