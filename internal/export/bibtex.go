// Package export writes library papers out as BibTeX and spreadsheets.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/matsen/paperlib/internal/reference"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Entry types.
const (
	EntryArticle       = "article"
	EntryInproceedings = "inproceedings"
	EntryMisc          = "misc"
)

var titleStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "on": true, "of": true,
	"in": true, "for": true, "to": true, "towards": true, "and": true,
}

// ToBibTeX renders p as a BibTeX entry keyed by CiteKey.
func ToBibTeX(p reference.Paper) string {
	entryType := determineEntryType(p)
	var b strings.Builder

	fmt.Fprintf(&b, "@%s{%s,\n", entryType, CiteKey(p))

	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "  %s = {%s},\n", name, value)
		}
	}

	if len(p.Authors) > 0 {
		field("author", formatAuthors(p.Authors))
	}
	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(p.Title)))

	switch entryType {
	case EntryInproceedings:
		field("booktitle", escapeLatex(p.Venue))
	case EntryArticle:
		field("journal", escapeLatex(p.Venue))
	}

	if p.Year > 0 {
		field("year", strconv.Itoa(p.Year))
	}
	field("volume", p.Volume)
	field("number", p.Issue)
	field("pages", strings.ReplaceAll(p.Pages, "-", "--"))
	field("doi", p.DOI)

	if p.ArXivID != "" {
		field("eprint", p.ArXivID)
		field("archivePrefix", "arXiv")
		if entryType == EntryMisc {
			field("url", "https://arxiv.org/abs/"+p.ArXivID)
		}
	}

	if p.Abstract != "" {
		field("abstract", escapeLatex(p.Abstract))
	}

	b.WriteString("}\n")
	return b.String()
}

// ToBibTeXList renders every paper, separated by blank lines.
func ToBibTeXList(papers []reference.Paper) string {
	var entries []string
	for _, p := range papers {
		entries = append(entries, ToBibTeX(p))
	}
	return strings.Join(entries, "\n")
}

// CiteKey builds a citation key from the first author's surname, the year
// and the first significant title word, e.g. "Vaswani2017attention".
// Papers without authors fall back to the arXiv ID or "Unknown".
func CiteKey(p reference.Paper) string {
	var b strings.Builder

	switch {
	case len(p.Authors) > 0 && asciiWord(p.Authors[0].Last) != "":
		b.WriteString(asciiWord(p.Authors[0].Last))
	case p.ArXivID != "":
		return "arXiv" + strings.NewReplacer("/", "_", ".", "_").Replace(p.ArXivID)
	default:
		b.WriteString("Unknown")
	}

	if p.Year > 0 {
		b.WriteString(strconv.Itoa(p.Year))
	}

	for _, w := range strings.Fields(p.Title) {
		w = strings.ToLower(asciiWord(w))
		if w == "" || titleStopWords[w] {
			continue
		}
		b.WriteString(w)
		break
	}
	return b.String()
}

// asciiWord strips accents and keeps only ASCII letters and digits.
func asciiWord(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, folded)
}

// determineEntryType returns the BibTeX entry type for a paper. Papers
// known only from arXiv are @misc with an eprint.
func determineEntryType(p reference.Paper) string {
	venue := strings.ToLower(p.Venue)

	if p.ArXivID != "" && (venue == "" || venue == "arxiv") {
		return EntryMisc
	}

	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return EntryInproceedings
	}

	return EntryArticle
}

// formatAuthors formats authors in BibTeX style: "Last, First and Last, First"
func formatAuthors(authors []reference.Author) string {
	formatted := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Last == "" && a.First == "" {
			continue
		}
		formatted = append(formatted, escapeLatex(a.String()))
	}
	return strings.Join(formatted, " and ")
}

var latexReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	"&", `\&`,
	"%", `\%`,
	"$", `\$`,
	"#", `\#`,
	"_", `\_`,
	"{", `\{`,
	"}", `\}`,
	"~", `\textasciitilde{}`,
	"^", `\textasciicircum{}`,
)

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	return latexReplacer.Replace(s)
}
