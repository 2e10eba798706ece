// Package note renders processed papers and articles as Obsidian markdown
// notes with YAML frontmatter.
package note

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matsen/paperlib/internal/reference"
	"github.com/matsen/paperlib/internal/synthesis"
)

// Status is the reading status every new note starts with.
const Status = "unread"

const dateLayout = "2006-01-02"

// PaperNote is everything a paper note shows.
type PaperNote struct {
	Paper     reference.Paper
	Synthesis synthesis.Synthesis
	// CitedBy lists library papers whose bibliographies cite this one.
	CitedBy []reference.Paper
}

// ArticleNote is everything an article note shows.
type ArticleNote struct {
	Article   reference.Article
	Synthesis synthesis.Synthesis
	Content   string
}

type paperFrontmatter struct {
	Title   string   `yaml:"title"`
	Authors []string `yaml:"authors,flow"`
	Year    int      `yaml:"year"`
	Venue   string   `yaml:"venue,omitempty"`
	Volume  string   `yaml:"volume,omitempty"`
	Issue   string   `yaml:"issue,omitempty"`
	Pages   string   `yaml:"pages,omitempty"`
	DOI     string   `yaml:"doi,omitempty"`
	ArXiv   string   `yaml:"arxiv,omitempty"`
	Type    string   `yaml:"type"`
	Status  string   `yaml:"status"`
	Added   string   `yaml:"added"`
	Tags    []string `yaml:"tags,omitempty"`
}

type articleFrontmatter struct {
	Title     string   `yaml:"title"`
	Authors   []string `yaml:"authors,flow"`
	Publisher string   `yaml:"publisher,omitempty"`
	URL       string   `yaml:"url"`
	Type      string   `yaml:"type"`
	Status    string   `yaml:"status"`
	Published string   `yaml:"published,omitempty"`
	Added     string   `yaml:"added"`
	Tags      []string `yaml:"tags,omitempty"`
}

// Writer renders notes. The zero value is not usable; call NewWriter.
type Writer struct {
	now func() time.Time
}

// NewWriter creates a Writer that stamps notes with today's date.
func NewWriter() *Writer {
	return &Writer{now: time.Now}
}

func frontmatter(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding frontmatter: %w", err)
	}
	return "---\n" + string(data) + "---\n", nil
}

func authorFullNames(authors []reference.Author) []string {
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = a.FullName()
	}
	return names
}

// Byline formats "A", "A & B", "A, B & C" or "A et al.".
func Byline(names []string) string {
	if len(names) > 3 {
		return names[0] + " et al."
	}
	return joinAuthors(names)
}

func writeSynthesis(b *strings.Builder, s synthesis.Synthesis) {
	if s.MemorableQuote != "" {
		b.WriteString("> [!quote] Memorable Quote\n")
		fmt.Fprintf(b, "> \"%s\"\n\n", s.MemorableQuote)
	}

	b.WriteString("## Quick Refresh\n\n")
	b.WriteString(s.Summary + "\n\n")

	b.WriteString("## Why You Cared\n\n")
	b.WriteString(s.WhyYouCared + "\n\n")

	b.WriteString("## Key Concepts\n\n")
	tags := make([]string, len(s.KeyConcepts))
	for i, c := range s.KeyConcepts {
		tags[i] = "`#" + c + "`"
	}
	b.WriteString(strings.Join(tags, " ") + "\n\n")
}

// Paper renders a paper note.
func (w *Writer) Paper(n PaperNote) (string, error) {
	p := n.Paper
	fm, err := frontmatter(paperFrontmatter{
		Title:   p.Title,
		Authors: authorFullNames(p.Authors),
		Year:    p.Year,
		Venue:   p.Venue,
		Volume:  p.Volume,
		Issue:   p.Issue,
		Pages:   p.Pages,
		DOI:     p.DOI,
		ArXiv:   p.ArXivID,
		Type:    "paper",
		Status:  Status,
		Added:   w.now().Format(dateLayout),
		Tags:    n.Synthesis.KeyConcepts,
	})
	if err != nil {
		return "", err
	}

	surnames := make([]string, len(p.Authors))
	for i, a := range p.Authors {
		surnames[i] = a.Last
	}

	var b strings.Builder
	b.WriteString(fm + "\n")
	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	fmt.Fprintf(&b, "**%s** • %d\n\n", Byline(surnames), p.Year)

	writeSynthesis(&b, n.Synthesis)

	if len(p.Citations) > 0 {
		b.WriteString("## Cites (Key Papers)\n\n")
		for _, c := range p.Citations[:min(KeyCitations, len(p.Citations))] {
			b.WriteString("- " + Wikilink(c) + "\n")
		}
		if extra := len(p.Citations) - KeyCitations; extra > 0 {
			fmt.Fprintf(&b, "\n*(%d more citations below)*\n", extra)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Cited By\n\n")
	if len(n.CitedBy) == 0 {
		b.WriteString("*This section will be populated as you process papers that cite this one.*\n\n")
	} else {
		for _, citing := range n.CitedBy {
			b.WriteString("- [[" + PaperName(citing) + "]]\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Details\n\n")
	if details := detailLines(p); len(details) > 0 {
		b.WriteString(strings.Join(details, "\n") + "\n\n")
	}

	if p.Abstract != "" {
		b.WriteString("## Abstract\n\n")
		b.WriteString(p.Abstract + "\n\n")
	}

	if len(p.Citations) > 0 {
		b.WriteString("## Full Citation List\n\n")
		for i, c := range p.Citations {
			b.WriteString(FormatCitation(c, i+1) + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func detailLines(p reference.Paper) []string {
	var lines []string
	if p.Venue != "" {
		pub := []string{p.Venue}
		if p.Volume != "" {
			pub = append(pub, "Vol. "+p.Volume)
		}
		if p.Issue != "" {
			pub = append(pub, "Issue "+p.Issue)
		}
		if p.Pages != "" {
			pub = append(pub, "pp. "+p.Pages)
		}
		lines = append(lines, "**Published:** "+strings.Join(pub, ", "))
	}
	if p.DOI != "" {
		lines = append(lines, fmt.Sprintf("**DOI:** [%s](https://doi.org/%s)", p.DOI, p.DOI))
	}
	if p.ArXivID != "" {
		lines = append(lines, fmt.Sprintf("**arXiv:** [%s](https://arxiv.org/abs/%s)", p.ArXivID, p.ArXivID))
	}
	if p.PDFPath != "" {
		lines = append(lines, "**PDF:** [["+filepath.Base(p.PDFPath)+"]]")
	}
	return lines
}

// Article renders an article note.
func (w *Writer) Article(n ArticleNote) (string, error) {
	a := n.Article
	published := ""
	if a.PublishedDate != nil {
		published = a.PublishedDate.Format(dateLayout)
	}

	fm, err := frontmatter(articleFrontmatter{
		Title:     a.Title,
		Authors:   a.Authors,
		Publisher: a.Publisher,
		URL:       a.URL,
		Type:      "article",
		Status:    Status,
		Published: published,
		Added:     w.now().Format(dateLayout),
		Tags:      n.Synthesis.KeyConcepts,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fm + "\n")
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	b.WriteString("**" + Byline(a.Authors) + "**")
	if published != "" {
		b.WriteString(" • " + published)
	}
	b.WriteString("\n\n")

	publisher := a.Publisher
	if publisher == "" {
		publisher = "Web"
	}
	fmt.Fprintf(&b, "**Source:** [%s](%s)\n\n", publisher, a.URL)

	writeSynthesis(&b, n.Synthesis)

	b.WriteString("## Related Papers\n\n")
	b.WriteString("*Papers referenced in this article will appear here.*\n\n")

	b.WriteString("## Original Content\n\n")
	b.WriteString(n.Content)

	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

// Save writes content to dir/name.md, creating dir if needed, and returns
// the file path.
func Save(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating note directory: %w", err)
	}
	path := filepath.Join(dir, name+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing note: %w", err)
	}
	return path, nil
}
