package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/matsen/paperlib/internal/citation"
	"github.com/matsen/paperlib/internal/grobid"
	"github.com/matsen/paperlib/internal/reference"
	"github.com/xuri/excelize/v2"
)

func testPapers() []reference.Paper {
	return []reference.Paper{
		{
			Title:       "Attention Is All You Need",
			Authors:     []reference.Author{{First: "Ashish", Last: "Vaswani"}, {First: "Noam", Last: "Shazeer"}},
			Year:        2017,
			Venue:       "arXiv",
			ArXivID:     "1706.03762",
			Source:      reference.SourceArXiv,
			NotePath:    "Papers/Vaswani et al (2017) - Attention Is All You Need.md",
			ProcessedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Citations: []reference.Citation{
				{Entry: citation.Entry{Title: "Neural Machine Translation", Authors: []string{"Bahdanau D."}, Year: 2014, Raw: "Bahdanau 2014"}, GarbageScore: 10},
				{Entry: citation.Entry{Raw: "for i in range(n) do x = y"}, GarbageScore: 45},
			},
		},
		{Title: "No Citations", Authors: []reference.Author{{Last: "Doe"}}},
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, testPapers()); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != SheetPapers || sheets[1] != SheetCitations {
		t.Fatalf("sheets = %v, want [%s %s]", sheets, SheetPapers, SheetCitations)
	}

	rows, err := f.GetRows(SheetPapers)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("Papers has %d rows, want 3", len(rows))
	}
	if rows[0][0] != "Key" {
		t.Errorf("header = %v", rows[0])
	}
	first := rows[1]
	if first[0] != "Vaswani2017attention" || first[2] != "Vaswani, Ashish; Shazeer, Noam" || first[3] != "2017" {
		t.Errorf("paper row = %v", first)
	}
	if first[11] != "2" || first[13] != "2026-03-01" {
		t.Errorf("citation count or processed date wrong: %v", first)
	}
	if rows[2][3] != "" {
		t.Errorf("missing year should be blank, got %q", rows[2][3])
	}

	cites, err := f.GetRows(SheetCitations)
	if err != nil {
		t.Fatal(err)
	}
	if len(cites) != 3 {
		t.Fatalf("Citations has %d rows, want 3", len(cites))
	}
	if cites[1][0] != "Vaswani2017attention" || cites[1][1] != "1" || cites[1][7] != "10" {
		t.Errorf("citation row = %v", cites[1])
	}
	if cites[1][8] != string(citation.BandOf(10)) || cites[1][9] != "no" {
		t.Errorf("band/discard = %v", cites[1][8:10])
	}
	if cites[2][7] != "45" || cites[2][8] != string(citation.BandOf(45)) {
		t.Errorf("second citation = %v", cites[2])
	}
}

func TestSaveXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.xlsx")
	if err := SaveXLSX(path, nil); err != nil {
		t.Fatalf("SaveXLSX() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetPapers)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("empty library should have only the header, got %d rows", len(rows))
	}
}

func TestScoredWorkbook(t *testing.T) {
	cites := []grobid.ScoredCitation{
		{Citation: reference.Citation{Entry: citation.Entry{Title: "Good"}, GarbageScore: 5}, Band: citation.BandOf(5)},
		{Citation: reference.Citation{Entry: citation.Entry{Raw: "Figure 3: results"}, GarbageScore: 80}, Band: citation.BandOf(80), Discard: true},
	}

	f, err := ScoredWorkbook("paper.tei.xml", cites)
	if err != nil {
		t.Fatalf("ScoredWorkbook() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetCitations)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[2][0] != "paper.tei.xml" || rows[2][9] != "yes" {
		t.Errorf("discarded row = %v", rows[2])
	}
}
