package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultModel is the model used for quick syntheses.
	DefaultModel = "claude-haiku-4-5"

	// DefaultAPIBaseURL is the Anthropic API endpoint.
	DefaultAPIBaseURL = "https://api.anthropic.com"

	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"

	// DefaultTimeout bounds one completion request.
	DefaultTimeout = 2 * time.Minute

	messagesPath = "/v1/messages"
)

// Completion is the text a model produced plus its token usage.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Completer sends a single-turn prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (Completion, error)
}

// APIClient calls the Anthropic Messages API over HTTP.
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// ClientOption configures an APIClient.
type ClientOption func(*APIClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *APIClient) {
		c.httpClient = hc
	}
}

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *APIClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithModel sets the model name.
func WithModel(model string) ClientOption {
	return func(c *APIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// NewAPIClient creates a Messages API client. An empty apiKey is reported
// on the first Complete call.
func NewAPIClient(apiKey string, opts ...ClientOption) *APIClient {
	c := &APIClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultAPIBaseURL,
		apiKey:     apiKey,
		model:      DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Completer.
func (c *APIClient) Complete(ctx context.Context, prompt string, maxTokens int) (Completion, error) {
	if c.apiKey == "" {
		return Completion{}, ErrMissingAPIKey
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Completion{}, ErrTimeout
		}
		return Completion{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var er errorResponse
		if json.Unmarshal(data, &er) == nil && er.Error.Message != "" {
			apiErr.Type = er.Error.Type
			apiErr.Message = er.Error.Message
		}
		return Completion{}, apiErr
	}

	var mr messagesResponse
	if err := json.Unmarshal(data, &mr); err != nil {
		return Completion{}, fmt.Errorf("decoding response: %w", err)
	}

	var text strings.Builder
	for _, block := range mr.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return Completion{}, ErrEmptyResponse
	}

	model := mr.Model
	if model == "" {
		model = c.model
	}
	return Completion{
		Text:         text.String(),
		Model:        model,
		InputTokens:  mr.Usage.InputTokens,
		OutputTokens: mr.Usage.OutputTokens,
	}, nil
}

// CLIClient shells out to a locally installed claude CLI. Token usage is
// not reported, so syntheses made through it cost nothing on the ledger.
type CLIClient struct {
	Binary  string
	Model   string
	Timeout time.Duration
}

// NewCLIClient returns a CLIClient for the given model alias.
func NewCLIClient(model string) *CLIClient {
	if model == "" {
		model = "haiku"
	}
	return &CLIClient{Binary: "claude", Model: model, Timeout: DefaultTimeout}
}

// Complete implements Completer. maxTokens is ignored by the CLI.
func (c *CLIClient) Complete(ctx context.Context, prompt string, maxTokens int) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Binary, "--model", c.Model, "-p", prompt)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Completion{}, fmt.Errorf("claude CLI timed out after %s: %w", c.Timeout, ErrTimeout)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return Completion{}, fmt.Errorf("claude CLI error: %s", string(exitErr.Stderr))
		}
		return Completion{}, fmt.Errorf("claude CLI error: %w", err)
	}

	text := strings.TrimSpace(string(output))
	if text == "" {
		return Completion{}, ErrEmptyResponse
	}
	return Completion{Text: text, Model: c.Model}, nil
}
