package grobid

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/matsen/paperlib/internal/citation"
	"github.com/matsen/paperlib/internal/reference"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MinRawTextLen is the shortest raw citation text considered at all.
const MinRawTextLen = 10

// Prefixes GROBID sometimes folds into a title.
var titleNoisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)^Provided proper attribution.*?solely for use in.*?\.`),
	regexp.MustCompile(`(?is)^©.*?\d{4}`),
	regexp.MustCompile(`(?is)^Copyright.*?\d{4}`),
	regexp.MustCompile(`(?is)^\*\s*Equal contribution.*?$`),
}

// ScoredCitation is a citation together with the classifier's verdict.
type ScoredCitation struct {
	reference.Citation
	Band    citation.Band `json:"band"`
	Discard bool          `json:"discard"`
}

// Parser converts GROBID TEI XML into papers and citations.
type Parser struct {
	scorer citation.Scorer
}

// NewParser creates a parser that scores citations with s.
func NewParser(s citation.Scorer) *Parser {
	return &Parser{scorer: s}
}

func decode(data []byte) (*teiDocument, error) {
	var doc teiDocument
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Entity = xml.HTMLEntity
	if err := d.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidXML, err)
	}
	return &doc, nil
}

// Parse extracts the paper's metadata and its retained citations.
// Citations scoring above citation.DiscardThreshold are dropped. When the
// header lacks a title, authors or year, the partial paper is returned
// together with ErrMissingFields so callers holding other metadata can
// still use the citations.
func (p *Parser) Parse(data []byte) (reference.Paper, error) {
	doc, err := decode(data)
	if err != nil {
		return reference.Paper{}, err
	}

	src := doc.Header.Source
	paper := reference.Paper{
		Title:    headerTitle(doc.Header),
		Authors:  headerAuthors(src),
		Year:     src.year(),
		Abstract: strings.Join(doc.Header.Summary.paragraphs(), "\n\n"),
		Venue:    src.venue(),
		DOI:      src.doi(),
	}
	paper.Volume, paper.Issue, paper.Pages = src.publicationInfo()

	for _, sc := range p.scoreAll(doc) {
		if !sc.Discard {
			paper.Citations = append(paper.Citations, sc.Citation)
		}
	}

	if paper.Title == "" || len(paper.Authors) == 0 || paper.Year == 0 {
		return paper, ErrMissingFields
	}
	return paper, nil
}

// Citations scores every bibliography entry. With keepAll false, entries
// above the discard threshold are omitted.
func (p *Parser) Citations(data []byte, keepAll bool) ([]ScoredCitation, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}

	all := p.scoreAll(doc)
	if keepAll {
		return all, nil
	}
	kept := all[:0]
	for _, sc := range all {
		if !sc.Discard {
			kept = append(kept, sc)
		}
	}
	return kept, nil
}

func (p *Parser) scoreAll(doc *teiDocument) []ScoredCitation {
	list := doc.Back.firstList()
	if list == nil {
		return nil
	}

	var out []ScoredCitation
	for _, bs := range list.Entries {
		entry, ok := citationEntry(bs)
		if !ok {
			continue
		}
		score := p.scorer.Score(entry)
		out = append(out, ScoredCitation{
			Citation: reference.Citation{Entry: entry, MentionCount: 1, GarbageScore: score},
			Band:     citation.BandOf(score),
			Discard:  citation.IsGarbage(score),
		})
	}
	return out
}

// citationEntry builds a classifier entry from one bibliography biblStruct.
// It returns false when the raw text is too short to be a reference.
func citationEntry(bs teiBiblStruct) (citation.Entry, bool) {
	raw := collapseSpace(innerText(bs.Inner))
	if utf8.RuneCountInString(raw) < MinRawTextLen {
		return citation.Entry{}, false
	}

	// An article-level title, even an empty one, hides the book title.
	title, ok := bs.levelTitle("a")
	if !ok {
		title, _ = bs.levelTitle("m")
	}

	var authors []string
	for _, part := range bs.parts() {
		for _, a := range part.Authors {
			if name := initialsName(a); name != "" {
				authors = append(authors, name)
			}
		}
	}

	e := citation.Entry{
		Title:   title,
		Authors: authors,
		Year:    bs.year(),
		Venue:   bs.venue(),
		DOI:     bs.doi(),
		Raw:     raw,
	}
	e.Volume, e.Issue, e.Pages = bs.publicationInfo()
	return e, true
}

// initialsName formats an author as "Surname F. M.".
func initialsName(a teiAuthor) string {
	if a.PersName == nil {
		return ""
	}
	surname := strings.TrimSpace(a.PersName.Surname)
	if surname == "" {
		return ""
	}
	parts := []string{surname}
	for _, f := range a.PersName.Forenames {
		f = strings.TrimSpace(f)
		if r, _ := utf8.DecodeRuneInString(f); f != "" {
			parts = append(parts, string(r)+".")
		}
	}
	return strings.Join(parts, " ")
}

func headerTitle(h teiHeader) string {
	for _, t := range h.Titles {
		if t.Type == "main" {
			if text := strings.TrimSpace(t.Text); text != "" {
				return CleanTitle(text)
			}
		}
	}
	if h.Source.Analytic != nil {
		for _, t := range h.Source.Analytic.Titles {
			if t.Type == "main" {
				if text := strings.TrimSpace(t.Text); text != "" {
					return CleanTitle(text)
				}
			}
		}
	}
	return ""
}

func headerAuthors(bs teiBiblStruct) []reference.Author {
	if bs.Analytic == nil {
		return nil
	}
	var authors []reference.Author
	for _, a := range bs.Analytic.Authors {
		if a.PersName == nil {
			continue
		}
		surname := strings.TrimSpace(a.PersName.Surname)
		if surname == "" {
			continue
		}
		var forenames []string
		for _, f := range a.PersName.Forenames {
			if f = strings.TrimSpace(f); f != "" {
				forenames = append(forenames, f)
			}
		}
		authors = append(authors, reference.Author{First: strings.Join(forenames, " "), Last: surname})
	}
	return authors
}

// CleanTitle strips copyright and footnote noise GROBID attaches to titles
// and title-cases titles that are mostly upper case.
func CleanTitle(title string) string {
	for _, re := range titleNoisePatterns {
		title = re.ReplaceAllString(title, "")
	}
	title = strings.Trim(strings.TrimSpace(title), ".,;:")
	title = collapseSpace(title)

	if mostlyUpper(title) {
		title = cases.Title(language.English).String(title)
	}
	return strings.TrimSpace(title)
}

func mostlyUpper(s string) bool {
	var upper, lower, alpha int
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		}
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if upper > 0 && lower == 0 {
		return true
	}
	return float64(upper) > float64(alpha)*0.5
}
