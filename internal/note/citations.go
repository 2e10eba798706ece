package note

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/matsen/paperlib/internal/reference"
)

const (
	// KeyCitations is how many citations are linked in the Cites section.
	KeyCitations = 10

	maxLinkTitle = 60
	maxLinkRaw   = 80
)

var (
	camelJoin  = regexp.MustCompile(`([a-z])([A-Z])`)
	splitArXiv = regexp.MustCompile(`(?i)ar\s*xiv`)
)

func complete(c reference.Citation) bool {
	return len(c.Authors) > 0 && c.Year > 0 && c.Title != ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// joinAuthors formats "A", "A & B" or "A, B & C" for any number of names.
func joinAuthors(names []string) string {
	switch len(names) {
	case 0:
		return "Unknown"
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " & " + names[len(names)-1]
	}
}

// Wikilink formats a citation as a forward link to the note it would
// have once processed.
func Wikilink(c reference.Citation) string {
	if complete(c) {
		return fmt.Sprintf("[[%s (%d) - %s]]", joinAuthors(c.Authors), c.Year, truncate(c.Title, maxLinkTitle))
	}
	return "[[" + truncate(c.Raw, maxLinkRaw) + "]]"
}

// FormatCitation renders one numbered entry of the full citation list:
// "N. Authors (Year). Title. Venue, Vol. V(I), pp. P. DOI: D".
func FormatCitation(c reference.Citation, number int) string {
	if complete(c) {
		authors := c.Authors
		var names string
		if len(authors) > 3 {
			names = strings.Join(authors[:3], ", ") + " et al."
		} else {
			names = joinAuthors(authors)
		}

		parts := []string{
			fmt.Sprintf("%d. %s (%d).", number, names, c.Year),
			c.Title + ".",
		}
		if c.Venue != "" {
			venue := []string{c.Venue}
			if c.Volume != "" {
				vol := "Vol. " + c.Volume
				if c.Issue != "" {
					vol += "(" + c.Issue + ")"
				}
				venue = append(venue, vol)
			}
			if c.Pages != "" {
				venue = append(venue, "pp. "+c.Pages)
			}
			parts = append(parts, strings.Join(venue, ", ")+".")
		}
		if c.DOI != "" {
			parts = append(parts, "DOI: "+c.DOI)
		}
		return strings.Join(parts, " ")
	}

	if c.Raw == "" {
		parts := []string{fmt.Sprintf("%d.", number)}
		if c.Title != "" {
			parts = append(parts, c.Title)
		}
		if len(c.Authors) > 0 {
			parts = append(parts, "("+strings.Join(c.Authors[:min(3, len(c.Authors))], ", ")+")")
		}
		if c.Year > 0 {
			parts = append(parts, fmt.Sprintf("(%d)", c.Year))
		}
		if len(parts) == 1 {
			return fmt.Sprintf("%d. [Incomplete citation]", number)
		}
		return strings.Join(parts, " ")
	}

	return fmt.Sprintf("%d. %s", number, CleanRaw(c.Raw))
}

// CleanRaw splits words that PDF extraction glued together at a case
// change and normalizes whitespace.
func CleanRaw(raw string) string {
	raw = camelJoin.ReplaceAllString(raw, "$1 $2")
	raw = splitArXiv.ReplaceAllString(raw, "arXiv")
	return strings.Join(strings.Fields(raw), " ")
}
