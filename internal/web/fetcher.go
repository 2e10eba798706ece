// Package web fetches web articles and converts them into markdown.
package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/matsen/paperlib/internal/reference"
	"golang.org/x/time/rate"
)

const (
	// MinContentLength is the shortest article body accepted, in characters.
	MinContentLength = 500

	// MaxContentLength bounds the article body handed to synthesis.
	MaxContentLength = 500_000

	// WaybackBaseURL is the Internet Archive's Wayback Machine.
	WaybackBaseURL = "https://web.archive.org/web"

	headTimeout = 15 * time.Second
	getTimeout  = 30 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// UnsupportedHosts maps hosts we refuse to scrape to a description.
var UnsupportedHosts = map[string]string{
	"twitter.com":  "Twitter/X threads",
	"x.com":        "Twitter/X threads",
	"reddit.com":   "Reddit threads",
	"youtube.com":  "YouTube videos",
	"youtu.be":     "YouTube videos",
	"linkedin.com": "LinkedIn posts",
}

// Result is a fetched web resource. Exactly one of Article or PDFPath is
// meaningful: PDFPath is set when the URL served a PDF.
type Result struct {
	Article reference.Article
	Content string
	PDFPath string
}

// IsPDF reports whether the URL served a PDF that was saved locally.
func (r Result) IsPDF() bool {
	return r.PDFPath != ""
}

// Fetcher downloads web pages and PDFs.
type Fetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	pdfDir     string
	now        func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = hc
	}
}

// WithRateLimit spaces requests at least every apart. Zero disables limiting.
func WithRateLimit(every time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if every <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(every), 1)
	}
}

// WithClock sets the time source used for PDF file names.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		f.now = now
	}
}

// NewFetcher creates a fetcher that stores PDFs found at URLs in pdfDir.
func NewFetcher(pdfDir string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		pdfDir:     pdfDir,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsURL reports whether text looks like a web address.
func IsURL(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasPrefix(text, "http://") ||
		strings.HasPrefix(text, "https://") ||
		strings.HasPrefix(text, "www.")
}

// ArchiveURL returns the Wayback Machine listing for a URL.
func ArchiveURL(original string) string {
	return WaybackBaseURL + "/*/" + original
}

// Fetch downloads a URL. HTML pages become articles; PDFs are saved to the
// PDF directory for full-text processing.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "www.") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	if desc, ok := unsupportedHost(u.Hostname()); ok {
		return Result{}, fmt.Errorf("%w: cannot process %s (%s); save the page as PDF instead", ErrUnsupportedSource, desc, rawURL)
	}

	contentType, err := f.detectType(ctx, rawURL)
	if err != nil {
		return Result{}, err
	}

	body, contentType, err := f.get(ctx, rawURL, contentType)
	if err != nil {
		return Result{}, err
	}

	switch {
	case contentType == "application/pdf":
		path, err := f.savePDF(u, body)
		if err != nil {
			return Result{}, err
		}
		return Result{PDFPath: path}, nil
	case strings.HasPrefix(contentType, "text/html"), contentType == "application/xhtml+xml":
		return parseHTML(rawURL, u, body)
	default:
		return Result{}, fmt.Errorf("%w %q (supported: HTML articles, PDFs): %s", ErrUnknownContentType, contentType, rawURL)
	}
}

func unsupportedHost(host string) (string, bool) {
	host = strings.ToLower(host)
	for h, desc := range UnsupportedHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return desc, true
		}
	}
	return "", false
}

// detectType issues a HEAD request and returns the media type, defaulting
// to text/html when the server does not say.
func (f *Fetcher) detectType(ctx context.Context, rawURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, headTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	resp.Body.Close()
	return mediaType(resp.Header.Get("Content-Type")), nil
}

// get downloads the body. The GET response's content type wins over the
// HEAD guess when it is set.
func (f *Fetcher) get(ctx context.Context, rawURL, guessed string) ([]byte, string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}
	ctx, cancel := context.WithTimeout(ctx, getTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", statusError(resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", rawURL, err)
	}

	contentType := guessed
	if guessed != "application/pdf" {
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			contentType = mediaType(ct)
		}
	}
	return body, contentType, nil
}

func mediaType(header string) string {
	if header == "" {
		return "text/html"
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
	}
	return mt
}

func (f *Fetcher) savePDF(u *url.URL, body []byte) (string, error) {
	if err := os.MkdirAll(f.pdfDir, 0755); err != nil {
		return "", fmt.Errorf("creating PDF directory: %w", err)
	}
	path := filepath.Join(f.pdfDir, PDFFilename(u, f.now()))
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("saving PDF: %w", err)
	}
	return path, nil
}

// PDFFilename names a PDF downloaded from u as web_<domain>_<slug>_<timestamp>.pdf.
func PDFFilename(u *url.URL, at time.Time) string {
	domain := strings.TrimPrefix(u.Hostname(), "www.")
	domain, _, _ = strings.Cut(domain, ".")

	slug := strings.TrimSuffix(u.Path, "/")
	if i := strings.LastIndex(slug, "/"); i >= 0 {
		slug = slug[i+1:]
	}
	slug = strings.TrimSuffix(slug, ".pdf")
	if r := []rune(slug); len(r) > 30 {
		slug = string(r[:30])
	}
	if slug == "" {
		slug = "document"
	}
	return fmt.Sprintf("web_%s_%s_%s.pdf", domain, slug, at.Format("20060102_150405"))
}

func parseHTML(rawURL string, u *url.URL, body []byte) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("parsing HTML: %w", err)
	}

	article := reference.Article{
		Title:         extractTitle(doc, u),
		Authors:       extractAuthors(doc),
		URL:           rawURL,
		PublishedDate: extractPublished(doc),
		Publisher:     extractPublisher(doc),
		Source:        reference.SourceWeb,
	}

	contentHTML := extractContent(doc)
	if contentHTML == "" {
		return Result{}, fmt.Errorf("%w: could not extract article content from %s", ErrTooShort, rawURL)
	}

	pageHTML, _ := doc.Html()

	content, err := toMarkdown(contentHTML)
	if err != nil {
		return Result{}, fmt.Errorf("converting content: %w", err)
	}

	if n := len([]rune(content)); n < MinContentLength {
		return Result{}, fmt.Errorf("%w (%d chars, need %d); may be paywalled, a listing page, or not an article: %s",
			ErrTooShort, n, MinContentLength, rawURL)
	}
	if hasPaywall(pageHTML, content) {
		return Result{}, fmt.Errorf("%w: %s (try an archived copy: %s)", ErrPaywall, rawURL, ArchiveURL(rawURL))
	}
	if r := []rune(content); len(r) > MaxContentLength {
		content = string(r[:MaxContentLength])
	}

	article.Content = content
	return Result{Article: article, Content: content}, nil
}
