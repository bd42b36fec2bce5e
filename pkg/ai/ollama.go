package ai

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/ai"
)

const ollamaURL = "http://localhost:11434/api/generate"

type OllamaProvider struct {
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func NewOllamaProvider(model string) *OllamaProvider {
	if model == "" {
		model = "llama3"
	}
	return &OllamaProvider{Model: model, BaseURL: ollamaURL}
}

func (p *OllamaProvider) ID() string {
	return "ollama:" + p.Model
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

var safeModelName = regexp.MustCompile(`^[a-zA-Z0-9:._-]+$`)

func (p *OllamaProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if !safeModelName.MatchString(p.Model) {
		return nil, fmt.Errorf("invalid model name: %s", p.Model)
	}
	url := p.BaseURL
	if url == "" {
		url = ollamaURL
	}

	body := ollamaRequest{
		Model:  p.Model,
		Prompt: req.Prompt,
		System: req.System,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": maxTokensOr(req.MaxTokens, 4096),
		},
	}
	if req.JSON {
		body.Format = "json"
	}

	var out ollamaResponse
	if err := postJSON(ctx, p.HTTPClient, "Ollama", url, nil, body, &out); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return nil, ai.ErrEmptyCompletion
	}

	return &ai.CompletionResponse{
		Text:  text,
		Model: p.Model,
		Usage: ai.TokenUsage{InputTokens: out.PromptEvalCount, OutputTokens: out.EvalCount},
	}, nil
}
