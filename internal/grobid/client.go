// Package grobid talks to a GROBID server and turns its TEI output into
// papers with plausibility-filtered citations.
package grobid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/matsen/paperlib/internal/citation"
	"github.com/matsen/paperlib/internal/reference"
)

const (
	// DefaultBaseURL is where a local GROBID container listens.
	DefaultBaseURL = "http://localhost:8070"

	// DefaultTimeout bounds full-text processing of one PDF.
	DefaultTimeout = 300 * time.Second

	fulltextPath = "/api/processFulltextDocument"
	isAlivePath  = "/api/isalive"
)

// Client is an HTTP client for the GROBID REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	parser     *Parser
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets the GROBID server URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithScorer sets the citation scorer used when parsing TEI.
func WithScorer(s citation.Scorer) ClientOption {
	return func(c *Client) {
		c.parser = NewParser(s)
	}
}

// NewClient creates a new GROBID client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
		parser:     NewParser(citation.NewScorer()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process sends a PDF to GROBID and parses the result. With
// ErrMissingFields the partial paper is still returned.
func (c *Client) Process(ctx context.Context, pdfPath string) (reference.Paper, error) {
	tei, err := c.ProcessFulltext(ctx, pdfPath)
	if err != nil {
		return reference.Paper{}, err
	}

	paper, err := c.parser.Parse(tei)
	paper.PDFPath = pdfPath
	if err != nil {
		return paper, fmt.Errorf("parsing TEI for %s: %w", filepath.Base(pdfPath), err)
	}
	return paper, nil
}

// ProcessFulltext uploads a PDF and returns the raw TEI XML.
func (c *Client) ProcessFulltext(ctx context.Context, pdfPath string) ([]byte, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPDFNotFound, pdfPath)
		}
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("input", filepath.Base(pdfPath))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+fulltextPath, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, fmt.Errorf("%w for %s", ErrTimeout, filepath.Base(pdfPath))
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading GROBID response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: truncate(string(data), 200)}
	}
	return data, nil
}

// IsAlive checks that the GROBID server answers its health endpoint.
func (c *Client) IsAlive(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+isAlivePath, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
