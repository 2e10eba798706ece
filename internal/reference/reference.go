// Package reference defines the core domain types for processed papers and articles.
package reference

import (
	"regexp"
	"strings"
	"time"

	"github.com/matsen/paperlib/internal/citation"
)

// Source types recorded on processed items.
const (
	SourceArXiv = "arxiv"
	SourceLocal = "local"
	SourceWeb   = "web"
	SourceDOI   = "doi"
)

// Citation is a bibliography entry retained from a processed paper.
type Citation struct {
	citation.Entry
	MentionCount int `json:"mention_count,omitempty"`
	GarbageScore int `json:"garbage_score"`
}

// Paper represents an academic paper processed into the vault.
type Paper struct {
	Title    string   `json:"title"`
	Authors  []Author `json:"authors"`
	Year     int      `json:"year"`
	Abstract string   `json:"abstract,omitempty"`

	// Publication details
	Venue  string `json:"venue,omitempty"`
	Volume string `json:"volume,omitempty"`
	Issue  string `json:"issue,omitempty"`
	Pages  string `json:"pages,omitempty"`

	// Identifiers
	DOI     string `json:"doi,omitempty"`
	ArXivID string `json:"arxiv_id,omitempty"`

	Citations []Citation `json:"citations,omitempty"`

	// Processing
	PDFPath     string    `json:"pdf_path,omitempty"`
	NotePath    string    `json:"note_path,omitempty"`
	Source      string    `json:"source,omitempty"`
	ProcessedAt time.Time `json:"processed_at,omitempty"`
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Key returns a stable identifier: the DOI, else the arXiv ID, else a
// slug of the title.
func (p Paper) Key() string {
	switch {
	case p.DOI != "":
		return "doi:" + strings.ToLower(p.DOI)
	case p.ArXivID != "":
		return "arxiv:" + p.ArXivID
	default:
		return "title:" + NormalizeTitle(p.Title)
	}
}

// SameWork reports whether a and b describe the same paper: a shared DOI or
// arXiv ID, or equal keys.
func SameWork(a, b Paper) bool {
	if a.DOI != "" && strings.EqualFold(a.DOI, b.DOI) {
		return true
	}
	if a.ArXivID != "" && a.ArXivID == b.ArXivID {
		return true
	}
	return a.Key() == b.Key()
}

// NormalizeTitle lower-cases a title and collapses punctuation to single
// hyphens so that citations and papers can be matched by title.
func NormalizeTitle(title string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

// Article represents a web article processed into the vault.
type Article struct {
	Title         string     `json:"title"`
	Authors       []string   `json:"authors"`
	URL           string     `json:"url"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	Publisher     string     `json:"publisher,omitempty"`
	Content       string     `json:"-"`
	NotePath      string     `json:"note_path,omitempty"`
	Source        string     `json:"source"`
	ProcessedAt   time.Time  `json:"processed_at,omitempty"`
}
