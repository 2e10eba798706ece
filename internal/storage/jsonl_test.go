package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matsen/paperlib/internal/citation"
	"github.com/matsen/paperlib/internal/reference"
)

func TestReadAll_NonExistentFile(t *testing.T) {
	papers, err := ReadAll("/nonexistent/path/library.jsonl")
	if err != nil {
		t.Fatalf("ReadAll() error = %v (should return nil for nonexistent file)", err)
	}
	if len(papers) != 0 {
		t.Errorf("ReadAll() returned %v, want empty", papers)
	}
}

func TestReadAll_SkipsEmptyLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.jsonl")
	content := `{"title":"One","authors":[{"last":"A"}],"year":2020}` + "\n\n" +
		`{"title":"Two","authors":[{"first":"B","last":"C"}],"year":2021,"doi":"10.1/two"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	papers, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("ReadAll() returned %d papers, want 2", len(papers))
	}
	if papers[1].DOI != "10.1/two" || papers[1].Authors[0].First != "B" {
		t.Errorf("second paper = %+v", papers[1])
	}
}

func TestReadAll_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.jsonl")
	content := `{"title":"One","year":2020}` + "\n" + `{not json}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadAll(path)
	if err == nil {
		t.Fatal("ReadAll() expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("ReadAll() error = %v, want mention of line 2", err)
	}
}

func TestReadAll_LongLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.jsonl")
	p := reference.Paper{Title: "Long", Year: 2020, Abstract: strings.Repeat("a", 3*1024*1024)}
	if err := Append(path, p); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	papers, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(papers) != 1 || len(papers[0].Abstract) != len(p.Abstract) {
		t.Error("long line not read back intact")
	}
}

func TestAppendAndRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "_meta", "library.jsonl")
	processed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := reference.Paper{
		Title:    "Attention Is All You Need",
		Authors:  []reference.Author{{First: "Ashish", Last: "Vaswani"}},
		Year:     2017,
		Venue:    "NeurIPS",
		ArXivID:  "1706.03762",
		Source:   reference.SourceArXiv,
		NotePath: "Papers/Vaswani (2017) - Attention Is All You Need.md",
		Citations: []reference.Citation{{
			Entry:        citation.Entry{Title: "Neural Machine Translation", Authors: []string{"Bahdanau D."}, Year: 2014},
			GarbageScore: 15,
		}},
		ProcessedAt: processed,
	}

	if err := Append(path, p); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := Append(path, reference.Paper{Title: "Second", Year: 2020}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	papers, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("ReadAll() returned %d papers, want 2", len(papers))
	}

	got := papers[0]
	if got.Key() != "arxiv:1706.03762" {
		t.Errorf("Key() = %q", got.Key())
	}
	if len(got.Citations) != 1 || got.Citations[0].GarbageScore != 15 || got.Citations[0].Authors[0] != "Bahdanau D." {
		t.Errorf("Citations = %+v", got.Citations)
	}
	if !got.ProcessedAt.Equal(processed) {
		t.Errorf("ProcessedAt = %v, want %v", got.ProcessedAt, processed)
	}
}

func TestWriteAll_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "library.jsonl")

	if err := WriteAll(path, []reference.Paper{{Title: "A", Year: 2001}, {Title: "B", Year: 2002}}); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := WriteAll(path, []reference.Paper{{Title: "C", Year: 2003}}); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}

	papers, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(papers) != 1 || papers[0].Title != "C" {
		t.Errorf("ReadAll() after overwrite = %+v", papers)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestFindByKey(t *testing.T) {
	papers := []reference.Paper{
		{Title: "A", DOI: "10.1/ABC"},
		{Title: "B", ArXivID: "2312.12345"},
		{Title: "Some Local Paper"},
	}

	tests := []struct {
		key     string
		wantIdx int
		found   bool
	}{
		{"doi:10.1/abc", 0, true},
		{"arxiv:2312.12345", 1, true},
		{"title:some-local-paper", 2, true},
		{"doi:10.1/none", -1, false},
	}
	for _, tt := range tests {
		idx, found := FindByKey(papers, tt.key)
		if idx != tt.wantIdx || found != tt.found {
			t.Errorf("FindByKey(%q) = (%d, %v), want (%d, %v)", tt.key, idx, found, tt.wantIdx, tt.found)
		}
	}
}

func TestUpsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.jsonl")

	replaced, err := Upsert(path, reference.Paper{Title: "Draft", ArXivID: "2312.12345", Year: 2023})
	if err != nil || replaced {
		t.Fatalf("Upsert() = (%v, %v), want (false, nil)", replaced, err)
	}
	if _, err := Upsert(path, reference.Paper{Title: "Other", DOI: "10.1/x", Year: 2020}); err != nil {
		t.Fatal(err)
	}

	replaced, err = Upsert(path, reference.Paper{Title: "Final", ArXivID: "2312.12345", Year: 2024})
	if err != nil || !replaced {
		t.Fatalf("Upsert() = (%v, %v), want (true, nil)", replaced, err)
	}

	papers, _ := ReadAll(path)
	if len(papers) != 2 {
		t.Fatalf("ReadAll() returned %d papers, want 2", len(papers))
	}
	if papers[0].Title != "Final" || papers[0].Year != 2024 {
		t.Errorf("upserted paper = %+v", papers[0])
	}
}

func TestUpsertArticle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.jsonl")
	a := reference.Article{Title: "Post", URL: "https://example.org/post", Authors: []string{"Sam Lee"}, Content: "not stored"}

	if replaced, err := UpsertArticle(path, a); err != nil || replaced {
		t.Fatalf("UpsertArticle() = (%v, %v), want (false, nil)", replaced, err)
	}
	a.Title = "Post (updated)"
	if replaced, err := UpsertArticle(path, a); err != nil || !replaced {
		t.Fatalf("UpsertArticle() = (%v, %v), want (true, nil)", replaced, err)
	}

	articles, err := ReadAllArticles(path)
	if err != nil {
		t.Fatalf("ReadAllArticles() error = %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "Post (updated)" {
		t.Errorf("articles = %+v", articles)
	}
	if articles[0].Content != "" {
		t.Error("article content should not be persisted")
	}
}
