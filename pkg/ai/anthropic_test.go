package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	infraAI "github.com/felixgeelhaar/smartreviewer/pkg/ai"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/ai"
)

func TestAnthropicProvider_DefaultModel(t *testing.T) {
	p := infraAI.NewAnthropicProvider("", "test-key")
	if p.ID() != "anthropic:claude-3-5-sonnet-20240620" {
		t.Errorf("expected default model, got %q", p.ID())
	}
}

func TestAnthropicProvider_Complete_NoAPIKey(t *testing.T) {
	p := infraAI.NewAnthropicProvider("claude-3-haiku", "")
	if _, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "Hello"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestAnthropicProvider_Complete_Success(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"text": `{"verdict":"fail"}`}},
			"usage":   map[string]any{"input_tokens": 12, "output_tokens": 4},
		})
	}))
	defer server.Close()

	p := infraAI.NewAnthropicProvider("claude-3-haiku", "test-key")
	p.BaseURL = server.URL

	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "judge", System: "sys", MaxTokens: 256, Temperature: 0.1})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != `{"verdict":"fail"}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if received["system"] != "sys" || received["max_tokens"] != float64(256) {
		t.Errorf("request body = %v", received)
	}
}

func TestAnthropicProvider_Complete_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := infraAI.NewAnthropicProvider("m", "k")
	p.BaseURL = server.URL
	_, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "x"})
	var se *ai.StatusError
	if !errors.As(err, &se) || !se.Temporary() {
		t.Fatalf("err = %v, want temporary StatusError", err)
	}
}

func TestOpenAIProvider_Complete_JSONMode(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "ok"}}},
		})
	}))
	defer server.Close()

	p := infraAI.NewOpenAIProvider("gpt-4o", "k")
	p.BaseURL = server.URL
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "x", System: "s", JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q", resp.Text)
	}
	format, _ := received["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("response_format = %v", received["response_format"])
	}
	if msgs, _ := received["messages"].([]any); len(msgs) != 2 {
		t.Errorf("messages = %v", received["messages"])
	}
}

func TestOllamaProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["format"] != "json" {
			t.Errorf("format = %v, want json", body["format"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "  {\"verdict\":\"pass\"} ", "done": true, "eval_count": 7})
	}))
	defer server.Close()

	p := infraAI.NewOllamaProvider("llama3")
	p.BaseURL = server.URL
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "x", JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != `{"verdict":"pass"}` || resp.Usage.OutputTokens != 7 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOllamaProvider_InvalidModel(t *testing.T) {
	p := infraAI.NewOllamaProvider("bad model; rm")
	if _, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected invalid model error")
	}
}
