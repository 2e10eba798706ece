package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestAPIClientComplete(t *testing.T) {
	var got messagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != APIVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "<summary>ok</summary>"}],
			"usage": {"input_tokens": 1200, "output_tokens": 300}
		}`))
	}))
	defer server.Close()

	client := NewAPIClient("sk-test", WithBaseURL(server.URL+"/"))
	completion, err := client.Complete(context.Background(), "hello", 500)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if got.Model != DefaultModel || got.MaxTokens != 500 {
		t.Errorf("request model/max_tokens = %q/%d", got.Model, got.MaxTokens)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "hello" {
		t.Errorf("request messages = %+v", got.Messages)
	}
	if completion.Text != "<summary>ok</summary>" {
		t.Errorf("Text = %q", completion.Text)
	}
	if completion.InputTokens != 1200 || completion.OutputTokens != 300 {
		t.Errorf("usage = %d/%d, want 1200/300", completion.InputTokens, completion.OutputTokens)
	}
}

func TestAPIClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		retryable bool
	}{
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, nil, true},
		{"rate limited", 429, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, nil, true},
		{"bad request", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, nil, false},
		{"empty content", 200, `{"content": [], "usage": {}}`, ErrEmptyResponse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewAPIClient("sk-test", WithBaseURL(server.URL)).Complete(context.Background(), "p", 10)
			if err == nil {
				t.Fatal("Complete() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Complete() error = %v, want %v", err, tt.wantErr)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable(%v) = %v, want %v", err, IsRetryable(err), tt.retryable)
			}
			var apiErr *APIError
			if tt.status != 200 && errors.As(err, &apiErr) && apiErr.Type == "" {
				t.Errorf("APIError.Type not decoded for %s", tt.name)
			}
		})
	}
}

func TestAPIClientMissingKey(t *testing.T) {
	_, err := NewAPIClient("").Complete(context.Background(), "p", 10)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Complete() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestCLIClientComplete(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "claude")
	// Echo the arguments so the test can see the model and prompt.
	body := "#!/bin/sh\necho \"  $1 $2 $3 $4  \"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	client := NewCLIClient("")
	client.Binary = script

	completion, err := client.Complete(context.Background(), "summarize", 100)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completion.Text != "--model haiku -p summarize" {
		t.Errorf("Text = %q", completion.Text)
	}
	if completion.InputTokens != 0 || completion.OutputTokens != 0 {
		t.Errorf("usage = %d/%d, want 0/0", completion.InputTokens, completion.OutputTokens)
	}
}

func TestCLIClientFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "claude")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho nope >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	client := NewCLIClient("sonnet")
	client.Binary = script
	if _, err := client.Complete(context.Background(), "p", 10); err == nil {
		t.Error("Complete() expected error")
	}
}
