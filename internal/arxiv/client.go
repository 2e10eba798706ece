package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/paperlib/internal/reference"
	"golang.org/x/time/rate"
)

const (
	// APIBaseURL is the arXiv export API query endpoint.
	APIBaseURL = "http://export.arxiv.org/api/query"

	// PDFBaseURL serves PDFs at {PDFBaseURL}/{id}.pdf.
	PDFBaseURL = "https://arxiv.org/pdf"

	// RateInterval is the minimum spacing between requests arXiv asks for.
	RateInterval = 3 * time.Second

	metadataTimeout = 30 * time.Second
	downloadTimeout = 120 * time.Second

	userAgent = "plib/1.0 (paper library)"
)

// Client is a rate-limited arXiv client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
	pdfURL     string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets the API query URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.apiURL = u
	}
}

// WithPDFBaseURL sets the PDF download base URL (for testing).
func WithPDFBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.pdfURL = u
	}
}

// WithRateLimit overrides the request spacing. Zero disables limiting.
func WithRateLimit(every time.Duration) ClientOption {
	return func(c *Client) {
		if every <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(every), 1)
	}
}

// NewClient creates a new arXiv client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: downloadTimeout},
		limiter:    rate.NewLimiter(rate.Every(RateInterval), 1),
		apiURL:     APIBaseURL,
		pdfURL:     PDFBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string       `xml:"id"`
	Title      string       `xml:"title"`
	Summary    string       `xml:"summary"`
	Published  string       `xml:"published"`
	Authors    []atomAuthor `xml:"author"`
	DOI        string       `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string       `xml:"http://arxiv.org/schemas/atom journal_ref"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// Fetch retrieves metadata and downloads the PDF into pdfDir.
func (c *Client) Fetch(ctx context.Context, input, pdfDir string) (string, reference.Paper, error) {
	id, ok := ParseID(input)
	if !ok {
		return "", reference.Paper{}, fmt.Errorf("%w: %s", ErrInvalidID, input)
	}

	paper, err := c.FetchMetadata(ctx, id)
	if err != nil {
		return "", reference.Paper{}, err
	}

	pdfPath, err := c.DownloadPDF(ctx, id, pdfDir)
	if err != nil {
		return "", reference.Paper{}, err
	}
	paper.PDFPath = pdfPath
	return pdfPath, paper, nil
}

// FetchMetadata queries the Atom API for a single paper.
func (c *Client) FetchMetadata(ctx context.Context, id string) (reference.Paper, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return reference.Paper{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	reqURL := c.apiURL + "?id_list=" + url.QueryEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return reference.Paper{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return reference.Paper{}, fmt.Errorf("fetching arXiv metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return reference.Paper{}, &APIError{StatusCode: resp.StatusCode, URL: reqURL}
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return reference.Paper{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(feed.Entries) == 0 || strings.Contains(feed.Entries[0].ID, "api/errors") {
		return reference.Paper{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	paper := entryToPaper(feed.Entries[0])
	paper.ArXivID = id
	if paper.Title == "" || len(paper.Authors) == 0 || paper.Year == 0 {
		return reference.Paper{}, fmt.Errorf("%w for %s", ErrIncompleteMetadata, id)
	}
	return paper, nil
}

func entryToPaper(e atomEntry) reference.Paper {
	p := reference.Paper{
		Title:    strings.Join(strings.Fields(e.Title), " "),
		Abstract: strings.Join(strings.Fields(e.Summary), " "),
		DOI:      strings.TrimSpace(e.DOI),
		Venue:    strings.Join(strings.Fields(e.JournalRef), " "),
		Source:   reference.SourceArXiv,
	}
	if len(e.Published) >= 4 {
		if y, err := strconv.Atoi(e.Published[:4]); err == nil {
			p.Year = y
		}
	}
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, reference.ParseAuthor(name))
		}
	}
	return p
}

// DownloadPDF saves the paper's PDF under dir and returns its path.
// An existing file is reused; a partial file is removed on failure.
func (c *Client) DownloadPDF(ctx context.Context, id, dir string) (string, error) {
	path := filepath.Join(dir, PDFFilename(id))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating PDF directory: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	reqURL := c.pdfURL + "/" + id + ".pdf"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading PDF: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, URL: reqURL}
	}

	if err := writeFile(path, resp.Body); err != nil {
		return "", fmt.Errorf("downloading PDF: %w", err)
	}
	return path, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
