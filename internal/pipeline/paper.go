package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/matsen/paperlib/internal/config"
	"github.com/matsen/paperlib/internal/grobid"
	"github.com/matsen/paperlib/internal/note"
	"github.com/matsen/paperlib/internal/reference"
	"github.com/matsen/paperlib/internal/storage"
	"go.uber.org/zap"
)

// processPaper runs fetch, GROBID, merge, text, synthesis, note and library
// steps. base carries metadata already known for URL-sourced PDFs.
func (p *Processor) processPaper(ctx context.Context, t Target, base reference.Paper, log *zap.Logger) (Result, error) {
	fail := func(stage Stage, err error) (Result, error) {
		return Result{Kind: "paper"}, &StageError{Identifier: t.Input, Stage: stage, Err: err}
	}

	switch t.Source {
	case reference.SourceArXiv:
		pdfPath, meta, err := p.c.ArXiv.Fetch(ctx, t.Key, p.pdfDir())
		if err != nil {
			return fail(StageFetch, err)
		}
		meta.PDFPath = pdfPath
		meta.Source = reference.SourceArXiv
		base = meta
	case reference.SourceLocal:
		base = reference.Paper{PDFPath: t.Key, Source: reference.SourceLocal}
	}
	log.Info("fetched", zap.String("pdf", base.PDFPath), zap.String("title", base.Title))

	extracted, err := p.c.GROBID.Process(ctx, base.PDFPath)
	if err != nil {
		// A header GROBID could not read is fine when the fetcher already
		// supplied the bibliographic fields.
		if !errors.Is(err, grobid.ErrMissingFields) || !complete(base) {
			return fail(StageExtract, err)
		}
		log.Warn("incomplete GROBID header, using fetched metadata", zap.Error(err))
	}

	paper := Merge(base, extracted)
	p.fillFromPDF(&paper, log)
	log.Info("extracted", zap.Int("citations", len(paper.Citations)), zap.String("doi", paper.DOI))

	text, err := p.text.Text(paper.PDFPath)
	if err != nil || strings.TrimSpace(text) == "" {
		if paper.Abstract == "" {
			if err == nil {
				err = ErrNoText
			}
			return fail(StageText, err)
		}
		log.Warn("no PDF text, synthesizing from abstract", zap.Error(err))
		text = paper.Abstract
	}

	syn, err := p.c.Synthesizer.Paper(ctx, text, paper)
	if err != nil {
		return fail(StageSynthesis, err)
	}

	var citedBy []reference.Paper
	if p.c.Index != nil {
		citedBy, err = p.c.Index.CitedBy(paper, CitedByLimit)
		if err != nil {
			log.Warn("looking up citing papers", zap.Error(err))
			citedBy = nil
		}
	}

	content, err := p.notes.Paper(note.PaperNote{Paper: paper, Synthesis: syn, CitedBy: citedBy})
	if err != nil {
		return fail(StageNote, err)
	}
	notePath, err := note.Save(config.PapersPath(p.vault), note.PaperName(paper), content)
	if err != nil {
		return fail(StageNote, err)
	}

	paper.NotePath = p.relPath(notePath)
	paper.PDFPath = p.relPath(paper.PDFPath)
	paper.ProcessedAt = p.now().UTC()

	if _, err := storage.Upsert(config.LibraryPath(p.vault), paper); err != nil {
		return fail(StageLibrary, err)
	}
	if p.c.Index != nil {
		if err := p.c.Index.UpsertPaper(paper); err != nil {
			log.Warn("updating library index", zap.Error(err))
		}
	}
	if paper.DOI != "" && t.Source != reference.SourceDOI {
		p.ledger.MarkProcessed(strings.ToLower(paper.DOI), reference.SourceDOI)
	}

	return Result{
		Kind:      "paper",
		Title:     paper.Title,
		NotePath:  paper.NotePath,
		Citations: len(paper.Citations),
		CitedBy:   len(citedBy),
		CostUSD:   syn.CostUSD,
	}, nil
}

// complete reports whether p has the fields a note needs.
func complete(p reference.Paper) bool {
	return p.Title != "" && len(p.Authors) > 0 && p.Year != 0
}

// Merge combines fetched metadata with GROBID's extraction. Fetched
// bibliographic fields win where present; GROBID supplies publication
// details and citations. Identifiers, the PDF path and the source always
// come from base.
func Merge(base, extracted reference.Paper) reference.Paper {
	merged := reference.Paper{
		Title:     first(base.Title, extracted.Title),
		Authors:   base.Authors,
		Year:      base.Year,
		Abstract:  first(base.Abstract, extracted.Abstract),
		Venue:     first(extracted.Venue, base.Venue),
		Volume:    first(extracted.Volume, base.Volume),
		Issue:     first(extracted.Issue, base.Issue),
		Pages:     first(extracted.Pages, base.Pages),
		DOI:       first(base.DOI, extracted.DOI),
		ArXivID:   base.ArXivID,
		Citations: extracted.Citations,
		PDFPath:   first(base.PDFPath, extracted.PDFPath),
		Source:    base.Source,
	}
	if len(merged.Authors) == 0 {
		merged.Authors = extracted.Authors
	}
	if merged.Year == 0 {
		merged.Year = extracted.Year
	}
	return merged
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// fillFromPDF scans the PDF for a DOI and title when metadata lacks them.
func (p *Processor) fillFromPDF(paper *reference.Paper, log *zap.Logger) {
	if paper.DOI == "" {
		doi, err := p.text.DOI(paper.PDFPath)
		if err != nil {
			log.Debug("scanning PDF for DOI", zap.Error(err))
		}
		paper.DOI = doi
	}
	if paper.Title == "" {
		title, err := p.text.Title(paper.PDFPath)
		if err != nil {
			log.Debug("guessing title from PDF", zap.Error(err))
		}
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(paper.PDFPath), filepath.Ext(paper.PDFPath))
		}
		paper.Title = title
	}
}
