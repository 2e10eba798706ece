package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/matsen/paperlib/internal/citation"
	"github.com/matsen/paperlib/internal/grobid"
	"github.com/matsen/paperlib/internal/reference"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	SheetPapers    = "Papers"
	SheetCitations = "Citations"
)

var (
	paperHeader = []interface{}{
		"Key", "Title", "Authors", "Year", "Venue", "Volume", "Issue", "Pages",
		"DOI", "arXiv", "Source", "Citations", "Note", "Processed",
	}
	citationHeader = []interface{}{
		"Citing Key", "#", "Title", "Authors", "Year", "Venue", "DOI",
		"Score", "Band", "Discard", "Raw",
	}
)

// Workbook builds a spreadsheet of papers and their retained citations.
func Workbook(papers []reference.Paper) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), SheetPapers); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetCitations); err != nil {
		f.Close()
		return nil, fmt.Errorf("creating sheet: %w", err)
	}

	w := sheetWriter{f: f}
	w.header(SheetPapers, paperHeader)
	w.header(SheetCitations, citationHeader)

	row := 2
	citeRow := 2
	for _, p := range papers {
		key := CiteKey(p)
		processed := ""
		if !p.ProcessedAt.IsZero() {
			processed = p.ProcessedAt.Format("2006-01-02")
		}
		w.row(SheetPapers, row, []interface{}{
			key, p.Title, strings.Join(reference.AuthorNames(p.Authors), "; "), yearCell(p.Year),
			p.Venue, p.Volume, p.Issue, p.Pages, p.DOI, p.ArXivID, p.Source,
			len(p.Citations), p.NotePath, processed,
		})
		row++

		for i, c := range p.Citations {
			w.row(SheetCitations, citeRow, citationRow(key, i+1, c))
			citeRow++
		}
	}

	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	return f, nil
}

// ScoredWorkbook builds a single-sheet spreadsheet of every citation of
// one document, discarded ones included.
func ScoredWorkbook(source string, cites []grobid.ScoredCitation) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetCitations); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	w := sheetWriter{f: f}
	w.header(SheetCitations, citationHeader)
	for i, c := range cites {
		w.row(SheetCitations, i+2, citationRow(source, i+1, c.Citation))
	}
	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	return f, nil
}

// WriteXLSX writes the workbook for papers to w.
func WriteXLSX(w io.Writer, papers []reference.Paper) error {
	f, err := Workbook(papers)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook for papers to path.
func SaveXLSX(path string, papers []reference.Paper) error {
	f, err := Workbook(papers)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

func citationRow(citingKey string, n int, c reference.Citation) []interface{} {
	discard := "no"
	if citation.IsGarbage(c.GarbageScore) {
		discard = "yes"
	}
	return []interface{}{
		citingKey, n, c.Title, strings.Join(c.Authors, "; "), yearCell(c.Year),
		c.Venue, c.DOI, c.GarbageScore, string(citation.BandOf(c.GarbageScore)),
		discard, c.Raw,
	}
}

func yearCell(year int) interface{} {
	if year == 0 {
		return ""
	}
	return year
}

// sheetWriter keeps the first error so rows can be written without
// checking each call.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) header(sheet string, cells []interface{}) {
	w.row(sheet, 1, cells)
	if w.err != nil {
		return
	}
	style, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		w.err = fmt.Errorf("creating header style: %w", err)
		return
	}
	last, err := excelize.CoordinatesToCellName(len(cells), 1)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellStyle(sheet, "A1", last, style); err != nil {
		w.err = fmt.Errorf("styling %s header: %w", sheet, err)
	}
}

func (w *sheetWriter) row(sheet string, n int, cells []interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetSheetRow(sheet, cell, &cells); err != nil {
		w.err = fmt.Errorf("writing %s row %d: %w", sheet, n, err)
	}
}
