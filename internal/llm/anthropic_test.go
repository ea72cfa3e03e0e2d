package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/image/bmp"
)

// anthropicCapture records the last decoded request body.
type anthropicCapture struct {
	body map[string]any
}

func newTestAnthropicProvider(t *testing.T, capture *anthropicCapture, status int, reply map[string]any) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(&capture.body); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(server.Close)

	client := anthropic.NewClient(option.WithAPIKey("test-key"), option.WithBaseURL(server.URL))
	return &AnthropicProvider{client: &client, model: "claude-sonnet-4-20250514"}
}

func anthropicMessage(text, stop string) map[string]any {
	return map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"model":       "claude-sonnet-4-20250514",
		"stop_reason": stop,
		"usage":       map[string]any{"input_tokens": 120, "output_tokens": 18},
	}
}

func anthropicError(kind, message string) map[string]any {
	return map[string]any{"type": "error", "error": map[string]any{"type": kind, "message": message}}
}

func TestAnthropicProvider_Solution(t *testing.T) {
	p := newTestAnthropicProvider(t, nil, http.StatusOK,
		anthropicMessage("Add the ones: 7 + 5 = 12, write 2 carry 1. Answer: 42.", "end_turn"))

	resp, err := p.Generate(context.Background(), Request{
		System:    "Write a worked solution.",
		Messages:  []Message{{Role: RoleUser, Content: "17 + 25 = ?"}},
		MaxTokens: 1024,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Add the ones: 7 + 5 = 12, write 2 carry 1. Answer: 42." {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 138 {
		t.Fatalf("expected 138 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if resp.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp.StopReason)
	}
}

func TestAnthropicProvider_ReviewVerdict(t *testing.T) {
	capture := &anthropicCapture{}
	p := newTestAnthropicProvider(t, capture, http.StatusOK,
		anthropicMessage(`{"passed":false,"reason":"the carry into the tens was dropped"}`, "end_turn"))

	resp, err := p.Generate(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "Question: 17 + 25\nSolution: 32"}},
		Schema:    verdictSchema(),
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var verdict struct {
		Passed bool   `json:"passed"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(resp.Content, &verdict); err != nil {
		t.Fatalf("content is not JSON: %v", err)
	}
	if verdict.Passed || verdict.Reason != "the carry into the tens was dropped" {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
	if _, ok := capture.body["output_config"]; !ok {
		t.Fatalf("expected output_config in request, got keys %v", capture.body)
	}
}

func TestAnthropicProvider_TruncatedVerdict(t *testing.T) {
	p := newTestAnthropicProvider(t, nil, http.StatusOK, anthropicMessage(`{"passed":false,"rea`, "max_tokens"))

	_, err := p.Generate(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "review"}},
		Schema:    verdictSchema(),
		MaxTokens: 8,
	})
	var truncated *ErrMaxTokensExceeded
	if !errors.As(err, &truncated) {
		t.Fatalf("expected ErrMaxTokensExceeded, got: %T (%v)", err, err)
	}
	if !IsMalformed(err) {
		t.Fatal("truncated output should count as malformed")
	}
}

func TestAnthropicProvider_TruncatedSolutionIsReturned(t *testing.T) {
	p := newTestAnthropicProvider(t, nil, http.StatusOK, anthropicMessage("Step 1: line up the digits", "max_tokens"))

	resp, err := p.Generate(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "17 + 25 = ?"}},
		MaxTokens: 8,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StopReason != "max_tokens" {
		t.Fatalf("expected stop reason 'max_tokens', got %q", resp.StopReason)
	}
}

func TestAnthropicProvider_ImageParts(t *testing.T) {
	var bmpData bytes.Buffer
	if err := bmp.Encode(&bmpData, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode bmp: %v", err)
	}

	capture := &anthropicCapture{}
	p := newTestAnthropicProvider(t, capture, http.StatusOK, anthropicMessage("17 + 25 = ?", "end_turn"))

	_, err := p.Generate(context.Background(), Request{
		Messages: []Message{{
			Role:    RoleUser,
			Content: "Transcribe the question.",
			Images: []Image{
				{MIMEType: "image/jpeg", Data: []byte("jpeg-bytes")},
				{MIMEType: "image/bmp", Data: bmpData.Bytes()},
			},
		}},
		MaxTokens: 512,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	messages := capture.body["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	if len(content) != 3 {
		t.Fatalf("expected text plus two images, got %d blocks", len(content))
	}
	wantTypes := []string{"image/jpeg", "image/png"}
	for i, want := range wantTypes {
		block := content[i+1].(map[string]any)
		if block["type"] != "image" {
			t.Fatalf("block %d type = %v, want image", i+1, block["type"])
		}
		source := block["source"].(map[string]any)
		if source["media_type"] != want {
			t.Errorf("block %d media_type = %v, want %s", i+1, source["media_type"], want)
		}
	}
}

func TestAnthropicProvider_UndecodableImage(t *testing.T) {
	p := newTestAnthropicProvider(t, nil, http.StatusOK, anthropicMessage("unused", "end_turn"))

	_, err := p.Generate(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "x", Images: []Image{{MIMEType: "image/tiff", Data: []byte("nope")}}}},
		MaxTokens: 64,
	})
	if err == nil {
		t.Fatal("expected error for undecodable tiff")
	}
}

func TestAnthropicProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   string
		check  func(error) bool
	}{
		{"rate limit", http.StatusTooManyRequests, "rate_limit_error", func(err error) bool {
			var e *ErrRateLimit
			return errors.As(err, &e)
		}},
		{"overloaded", http.StatusInternalServerError, "api_error", func(err error) bool {
			var e *ErrProviderUnavailable
			return errors.As(err, &e)
		}},
		{"bad schema", http.StatusBadRequest, "invalid_request_error", func(err error) bool {
			var e *ErrRequestRejected
			return errors.As(err, &e) && e.StatusCode == http.StatusBadRequest
		}},
		{"bad key", http.StatusUnauthorized, "authentication_error", func(err error) bool {
			var e *ErrRequestRejected
			return errors.As(err, &e)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestAnthropicProvider(t, nil, tt.status, anthropicError(tt.kind, tt.name))
			_, err := p.Generate(context.Background(), Request{
				Messages:  []Message{{Role: RoleUser, Content: "review"}},
				MaxTokens: 64,
			})
			if !tt.check(err) {
				t.Fatalf("unexpected error: %T (%v)", err, err)
			}
		})
	}
}

func TestAnthropicModelAliases(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"claude-sonnet", "claude-sonnet-4-20250514"},
		{"claude-haiku", "claude-haiku-4-5-20251001"},
		{"claude-opus-4-1", "claude-opus-4-1"},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.input, anthropicAliases); got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
	p := &AnthropicProvider{model: resolveModel("claude-haiku", anthropicAliases)}
	if p.ModelID() != "claude-haiku-4-5-20251001" {
		t.Fatalf("unexpected model id %q", p.ModelID())
	}
}
