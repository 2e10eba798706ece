package note

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matsen/paperlib/internal/citation"
	"github.com/matsen/paperlib/internal/reference"
	"github.com/matsen/paperlib/internal/synthesis"
)

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func testWriter() *Writer {
	return &Writer{now: func() time.Time { return fixedNow }}
}

func splitFrontmatter(t *testing.T, note string) (string, string) {
	t.Helper()
	if !strings.HasPrefix(note, "---\n") {
		t.Fatalf("note does not start with frontmatter:\n%s", note)
	}
	end := strings.Index(note[4:], "\n---\n")
	if end < 0 {
		t.Fatalf("unterminated frontmatter:\n%s", note)
	}
	return note[4 : 4+end+1], note[4+end+5:]
}

func samplePaper() reference.Paper {
	cites := []reference.Citation{
		{Entry: citation.Entry{
			Title:   "Attention Is All You Need",
			Authors: []string{"Vaswani A.", "Shazeer N.", "Parmar N."},
			Year:    2017,
			Venue:   "NeurIPS",
		}},
		{Entry: citation.Entry{Raw: "HeK. Deep residual learning. ar Xiv preprint"}},
	}
	return reference.Paper{
		Title:     `Sparse Attention: A "Survey"`,
		Authors:   []reference.Author{{First: "Ada", Last: "Lovelace"}, {First: "Alan", Last: "Turing"}},
		Year:      2023,
		Abstract:  "We survey sparse attention.",
		Venue:     "JMLR",
		Volume:    "24",
		Pages:     "1-40",
		DOI:       "10.5555/jmlr.2023.1",
		ArXivID:   "2312.12345",
		Citations: cites,
		PDFPath:   "/vault/PDFs/arxiv_2312.12345.pdf",
	}
}

func sampleSynthesis() synthesis.Synthesis {
	return synthesis.Synthesis{
		Summary:        "A survey of sparse attention.",
		WhyYouCared:    "Long documents need it.",
		KeyConcepts:    []string{"sparse-attention", "transformers"},
		MemorableQuote: "Attention need not be dense.",
	}
}

func TestPaperNote(t *testing.T) {
	w := testWriter()
	citing := reference.Paper{Title: "Later Work", Authors: []reference.Author{{Last: "Hopper"}}, Year: 2024}

	out, err := w.Paper(PaperNote{Paper: samplePaper(), Synthesis: sampleSynthesis(), CitedBy: []reference.Paper{citing}})
	if err != nil {
		t.Fatalf("Paper() error = %v", err)
	}

	fmText, body := splitFrontmatter(t, out)
	var fm paperFrontmatter
	if err := yaml.Unmarshal([]byte(fmText), &fm); err != nil {
		t.Fatalf("frontmatter is not valid YAML: %v\n%s", err, fmText)
	}
	if fm.Title != `Sparse Attention: A "Survey"` {
		t.Errorf("title = %q", fm.Title)
	}
	if strings.Join(fm.Authors, "|") != "Ada Lovelace|Alan Turing" {
		t.Errorf("authors = %v", fm.Authors)
	}
	if fm.Year != 2023 || fm.ArXiv != "2312.12345" || fm.DOI != "10.5555/jmlr.2023.1" {
		t.Errorf("year/arxiv/doi = %d/%q/%q", fm.Year, fm.ArXiv, fm.DOI)
	}
	if fm.Type != "paper" || fm.Status != "unread" || fm.Added != "2024-05-01" {
		t.Errorf("type/status/added = %q/%q/%q", fm.Type, fm.Status, fm.Added)
	}
	if len(fm.Tags) != 2 {
		t.Errorf("tags = %v", fm.Tags)
	}

	for _, want := range []string{
		"# Sparse Attention: A \"Survey\"\n",
		"**Lovelace & Turing** • 2023",
		"> [!quote] Memorable Quote\n> \"Attention need not be dense.\"",
		"## Quick Refresh\n\nA survey of sparse attention.",
		"## Why You Cared\n\nLong documents need it.",
		"`#sparse-attention` `#transformers`",
		"- [[Vaswani A., Shazeer N. & Parmar N. (2017) - Attention Is All You Need]]",
		"- [[Hopper (2024) - Later Work]]",
		"**Published:** JMLR, Vol. 24, pp. 1-40",
		"**DOI:** [10.5555/jmlr.2023.1](https://doi.org/10.5555/jmlr.2023.1)",
		"**arXiv:** [2312.12345](https://arxiv.org/abs/2312.12345)",
		"**PDF:** [[arxiv_2312.12345.pdf]]",
		"## Abstract\n\nWe survey sparse attention.",
		"1. Vaswani A., Shazeer N. & Parmar N. (2017). Attention Is All You Need. NeurIPS.",
		"2. He K. Deep residual learning. arXiv preprint",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("note missing %q\n%s", want, body)
		}
	}
	if strings.Contains(body, "will be populated") {
		t.Error("Cited By placeholder shown despite citing papers")
	}
	if !strings.HasSuffix(out, "\n") || strings.HasSuffix(out, "\n\n") {
		t.Error("note should end with exactly one newline")
	}
}

func TestPaperNoteMinimal(t *testing.T) {
	out, err := testWriter().Paper(PaperNote{
		Paper:     reference.Paper{Title: "Bare", Year: 2020},
		Synthesis: synthesis.Synthesis{Summary: "s", WhyYouCared: "w"},
	})
	if err != nil {
		t.Fatalf("Paper() error = %v", err)
	}
	if !strings.Contains(out, "**Unknown** • 2020") {
		t.Errorf("byline missing Unknown:\n%s", out)
	}
	for _, absent := range []string{"[!quote]", "## Cites", "## Abstract", "## Full Citation List", "venue:", "tags:"} {
		if strings.Contains(out, absent) {
			t.Errorf("minimal note unexpectedly contains %q", absent)
		}
	}
	if !strings.Contains(out, "*This section will be populated as you process papers that cite this one.*") {
		t.Error("Cited By placeholder missing")
	}
}

func TestPaperNoteManyCitations(t *testing.T) {
	p := reference.Paper{Title: "Big", Year: 2020}
	for i := 0; i < 13; i++ {
		p.Citations = append(p.Citations, reference.Citation{Entry: citation.Entry{Raw: "Some reference text"}})
	}
	out, err := testWriter().Paper(PaperNote{Paper: p, Synthesis: sampleSynthesis()})
	if err != nil {
		t.Fatalf("Paper() error = %v", err)
	}
	if got := strings.Count(out, "- [[Some reference text]]"); got != KeyCitations {
		t.Errorf("linked citations = %d, want %d", got, KeyCitations)
	}
	if !strings.Contains(out, "*(3 more citations below)*") {
		t.Error("missing overflow marker")
	}
	if !strings.Contains(out, "13. Some reference text") {
		t.Error("full list does not include every citation")
	}
}

func TestArticleNote(t *testing.T) {
	published := time.Date(2023, 3, 3, 0, 0, 0, 0, time.UTC)
	out, err := testWriter().Article(ArticleNote{
		Article: reference.Article{
			Title:         "How Cameras See",
			Authors:       []string{"Sam Lee", "Kim Park"},
			URL:           "https://distill.pub/cameras",
			PublishedDate: &published,
			Publisher:     "Distill",
		},
		Synthesis: sampleSynthesis(),
		Content:   "First paragraph.\n\nSecond paragraph.",
	})
	if err != nil {
		t.Fatalf("Article() error = %v", err)
	}

	fmText, body := splitFrontmatter(t, out)
	var fm articleFrontmatter
	if err := yaml.Unmarshal([]byte(fmText), &fm); err != nil {
		t.Fatalf("frontmatter is not valid YAML: %v", err)
	}
	if fm.Type != "article" || fm.URL != "https://distill.pub/cameras" || fm.Published != "2023-03-03" || fm.Publisher != "Distill" {
		t.Errorf("frontmatter = %+v", fm)
	}

	for _, want := range []string{
		"**Sam Lee & Kim Park** • 2023-03-03",
		"**Source:** [Distill](https://distill.pub/cameras)",
		"## Related Papers",
		"## Original Content\n\nFirst paragraph.\n\nSecond paragraph.\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("note missing %q\n%s", want, body)
		}
	}
}

func TestArticleNoteWithoutPublisher(t *testing.T) {
	out, err := testWriter().Article(ArticleNote{
		Article:   reference.Article{Title: "T", Authors: []string{"Unknown"}, URL: "https://example.org/t"},
		Synthesis: sampleSynthesis(),
	})
	if err != nil {
		t.Fatalf("Article() error = %v", err)
	}
	if !strings.Contains(out, "**Source:** [Web](https://example.org/t)") {
		t.Errorf("missing Web source fallback:\n%s", out)
	}
	if strings.Contains(out, "published:") {
		t.Error("published date emitted without a date")
	}
}

func TestWikilink(t *testing.T) {
	long := strings.Repeat("x", 100)
	tests := []struct {
		name string
		c    reference.Citation
		want string
	}{
		{
			"single author",
			reference.Citation{Entry: citation.Entry{Title: "T", Authors: []string{"Smith J."}, Year: 2001}},
			"[[Smith J. (2001) - T]]",
		},
		{
			"two authors",
			reference.Citation{Entry: citation.Entry{Title: "T", Authors: []string{"A", "B"}, Year: 2001}},
			"[[A & B (2001) - T]]",
		},
		{
			"long title",
			reference.Citation{Entry: citation.Entry{Title: long, Authors: []string{"A"}, Year: 2001}},
			"[[A (2001) - " + strings.Repeat("x", 60) + "...]]",
		},
		{
			"raw fallback",
			reference.Citation{Entry: citation.Entry{Raw: long}},
			"[[" + strings.Repeat("x", 80) + "...]]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Wikilink(tt.c); got != tt.want {
				t.Errorf("Wikilink() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatCitation(t *testing.T) {
	tests := []struct {
		name string
		c    reference.Citation
		n    int
		want string
	}{
		{
			"full with venue",
			reference.Citation{Entry: citation.Entry{
				Title: "Title", Authors: []string{"A", "B", "C", "D"}, Year: 2020,
				Venue: "Nature", Volume: "5", Issue: "2", Pages: "1-10", DOI: "10.1/x",
			}},
			1,
			"1. A, B, C et al. (2020). Title. Nature, Vol. 5(2), pp. 1-10. DOI: 10.1/x",
		},
		{
			"raw text",
			reference.Citation{Entry: citation.Entry{Raw: "SmithJ. (2020)  DeepNets on ar Xiv"}},
			3,
			"3. Smith J. (2020) Deep Nets on arXiv",
		},
		{
			"nothing",
			reference.Citation{},
			4,
			"4. [Incomplete citation]",
		},
		{
			"title only",
			reference.Citation{Entry: citation.Entry{Title: "Some Title", Year: 1999}},
			5,
			"5. Some Title (1999)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCitation(tt.c, tt.n); got != tt.want {
				t.Errorf("FormatCitation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		author   string
		multiple bool
		year     int
		title    string
		want     string
	}{
		{"Vaswani", true, 2017, "Attention Is All You Need", "Vaswani et al (2017) - Attention Is All You Need"},
		{"", false, 2020, "", "Unknown (2020) - Untitled"},
		{"Smith", false, 2019, `Deep Learning: A "Review"`, "Smith (2019) - Deep Learning - A Review"},
		{"Lee", false, 2021, "v2.0 of a/b tool?", "Lee (2021) - v2-0 of ab tool"},
		{
			"Smith", true, 2020,
			"Alpha Beta Gamma Delta Epsilon Zeta Eta Theta Iota Kappa Lambda Mu",
			"Smith et al (2020) - Alpha Beta Gamma Delta Epsilon Zeta Eta Theta Iota",
		},
	}
	for _, tt := range tests {
		got := Name(tt.author, tt.multiple, tt.year, tt.title)
		if got != tt.want {
			t.Errorf("Name(%q, %v, %d, %q) = %q, want %q", tt.author, tt.multiple, tt.year, tt.title, got, tt.want)
		}
		if n := len([]rune(got)); n > MaxNameLen {
			t.Errorf("Name() length = %d, exceeds %d", n, MaxNameLen)
		}
	}
}

func TestPaperAndArticleName(t *testing.T) {
	p := reference.Paper{Title: "T", Authors: []reference.Author{{First: "Ada", Last: "Lovelace"}}, Year: 1843}
	if got := PaperName(p); got != "Lovelace (1843) - T" {
		t.Errorf("PaperName() = %q", got)
	}

	a := reference.Article{Title: "Post", Authors: []string{"Lee, Sam"}}
	if got := ArticleName(a, fixedNow); got != "Lee (2024) - Post" {
		t.Errorf("ArticleName() = %q", got)
	}
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Papers")
	path, err := Save(dir, "Lovelace (1843) - T", "content\n")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Base(path) != "Lovelace (1843) - T.md" {
		t.Errorf("Save() path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "content\n" {
		t.Errorf("saved content = %q, %v", data, err)
	}
}
