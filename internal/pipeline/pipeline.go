// Package pipeline turns identifiers into vault notes: it fetches papers and
// articles, extracts metadata and citations, asks for a synthesis, writes the
// note, and records the outcome in the library and the processing ledger.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/matsen/paperlib/internal/config"
	"github.com/matsen/paperlib/internal/ledger"
	"github.com/matsen/paperlib/internal/note"
	"github.com/matsen/paperlib/internal/pdf"
	"github.com/matsen/paperlib/internal/reference"
	"github.com/matsen/paperlib/internal/synthesis"
	"github.com/matsen/paperlib/internal/web"
	"go.uber.org/zap"
)

// Stage names a pipeline step.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageExtract   Stage = "extract"
	StageText      Stage = "text"
	StageSynthesis Stage = "synthesis"
	StageNote      Stage = "note"
	StageLibrary   Stage = "library"
)

// Status is the outcome of processing one identifier.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// CitedByLimit bounds the Cited By section of a new note.
const CitedByLimit = 25

// PaperExtractor extracts metadata and citations from a PDF.
type PaperExtractor interface {
	Process(ctx context.Context, pdfPath string) (reference.Paper, error)
}

// ArXivFetcher downloads an arXiv paper and its metadata.
type ArXivFetcher interface {
	Fetch(ctx context.Context, input, pdfDir string) (string, reference.Paper, error)
}

// WebFetcher downloads web pages and PDFs served at URLs.
type WebFetcher interface {
	Fetch(ctx context.Context, rawURL string) (web.Result, error)
}

// Synthesizer writes the AI summary of a paper or article.
type Synthesizer interface {
	Paper(ctx context.Context, text string, p reference.Paper) (synthesis.Synthesis, error)
	Article(ctx context.Context, text string, a reference.Article) (synthesis.Synthesis, error)
}

// Index is the queryable library index. It is optional.
type Index interface {
	UpsertPaper(p reference.Paper) error
	UpsertArticle(a reference.Article) error
	CitedBy(p reference.Paper, limit int) ([]reference.Paper, error)
}

// TextSource reads text and identifiers out of PDFs.
type TextSource interface {
	Text(path string) (string, error)
	DOI(path string) (string, error)
	Title(path string) (string, error)
}

// pdfText is the TextSource backed by the pdf package.
type pdfText struct{}

func (pdfText) Text(path string) (string, error)  { return pdf.ExtractText(path, 0) }
func (pdfText) DOI(path string) (string, error)   { return pdf.ExtractDOI(path) }
func (pdfText) Title(path string) (string, error) { return pdf.ExtractTitle(path) }

// Components are the collaborators a Processor drives.
type Components struct {
	GROBID      PaperExtractor
	ArXiv       ArXivFetcher
	Web         WebFetcher
	Synthesizer Synthesizer
	// Index may be nil, in which case notes have no Cited By entries and
	// only the JSONL library is updated.
	Index Index
}

// Result describes what happened to one identifier.
type Result struct {
	Identifier string  `json:"identifier"`
	Source     string  `json:"source,omitempty"`
	Status     Status  `json:"status"`
	Kind       string  `json:"kind,omitempty"`
	Title      string  `json:"title,omitempty"`
	NotePath   string  `json:"note_path,omitempty"`
	Citations  int     `json:"citations,omitempty"`
	CitedBy    int     `json:"cited_by,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Options control a single Process call.
type Options struct {
	// Force reprocesses identifiers already recorded in the ledger.
	Force bool
}

// Processor runs the pipeline against one vault.
type Processor struct {
	vault  string
	c      Components
	ledger *ledger.Ledger
	notes  *note.Writer
	text   TextSource
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = l
	}
}

// WithTextSource replaces PDF text extraction.
func WithTextSource(ts TextSource) Option {
	return func(p *Processor) {
		p.text = ts
	}
}

// WithClock sets the time source for processing timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// WithNoteWriter sets the note renderer.
func WithNoteWriter(w *note.Writer) Option {
	return func(p *Processor) {
		p.notes = w
	}
}

// NewProcessor creates a processor writing into vault and recording
// outcomes in l.
func NewProcessor(vault string, l *ledger.Ledger, c Components, opts ...Option) *Processor {
	p := &Processor{
		vault:  vault,
		c:      c,
		ledger: l,
		notes:  note.NewWriter(),
		text:   pdfText{},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the pipeline for one identifier. Identifiers already in the
// ledger are skipped unless opts.Force is set. Failures are recorded in the
// ledger and returned as *StageError.
func (p *Processor) Process(ctx context.Context, identifier string, opts Options) (Result, error) {
	res := Result{Identifier: identifier}

	target, err := Classify(identifier)
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		p.ledger.MarkFailed(identifier, err)
		p.saveLedger()
		return res, &StageError{Identifier: identifier, Stage: StageFetch, Err: err}
	}
	res.Source = target.Source
	log := p.logger.With(zap.String("identifier", identifier), zap.String("source", target.Source))

	if !opts.Force && p.ledger.IsProcessed(target.Key) {
		log.Info("already processed, skipping")
		res.Status = StatusSkipped
		return res, nil
	}

	start := p.now()
	log.Info("processing")

	var out Result
	switch target.Source {
	case reference.SourceWeb, reference.SourceDOI:
		out, err = p.processURL(ctx, target, log)
	default:
		out, err = p.processPaper(ctx, target, reference.Paper{}, log)
	}
	out.Identifier = identifier
	out.Source = target.Source

	if err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
		p.ledger.MarkFailed(target.Key, err)
		p.saveLedger()
		log.Error("processing failed", zap.String("stage", string(StageOf(err))), zap.Error(err))
		return out, err
	}

	p.ledger.MarkProcessed(target.Key, target.Source)
	if err := p.ledger.Save(); err != nil {
		log.Error("saving processing state", zap.Error(err))
		out.Status = StatusFailed
		out.Error = err.Error()
		return out, &StageError{Identifier: identifier, Stage: StageLibrary, Err: err}
	}

	out.Status = StatusProcessed
	log.Info("processed",
		zap.String("note", out.NotePath),
		zap.Int("citations", out.Citations),
		zap.Float64("cost_usd", out.CostUSD),
		zap.Duration("elapsed", p.now().Sub(start)))
	return out, nil
}

// processURL fetches a web resource; PDFs continue down the paper path.
func (p *Processor) processURL(ctx context.Context, t Target, log *zap.Logger) (Result, error) {
	u := t.Key
	if t.Source == reference.SourceDOI {
		u = DOIResolverURL + t.Key
	}

	fetched, err := p.c.Web.Fetch(ctx, u)
	if err != nil {
		return Result{}, &StageError{Identifier: t.Input, Stage: StageFetch, Err: err}
	}

	if fetched.IsPDF() {
		log.Info("URL served a PDF", zap.String("pdf", fetched.PDFPath))
		base := reference.Paper{PDFPath: fetched.PDFPath, Source: t.Source}
		if t.Source == reference.SourceDOI {
			base.DOI = t.Key
		}
		return p.processPaper(ctx, t, base, log)
	}
	return p.processArticle(ctx, t, fetched, log)
}

// relPath returns path relative to the vault when it lies inside it.
func (p *Processor) relPath(path string) string {
	rel, err := filepath.Rel(p.vault, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

func (p *Processor) saveLedger() {
	if err := p.ledger.Save(); err != nil {
		p.logger.Error("saving processing state", zap.Error(err))
	}
}

// pdfDir is where downloaded PDFs land.
func (p *Processor) pdfDir() string {
	return config.PDFsPath(p.vault)
}
