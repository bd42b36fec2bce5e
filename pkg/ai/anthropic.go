package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/ai"
)

const anthropicURL = "https://api.anthropic.com/v1/messages"

type AnthropicProvider struct {
	Model      string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewAnthropicProvider(model string, apiKey string) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &AnthropicProvider{Model: model, APIKey: apiKey, BaseURL: anthropicURL}
}

func (p *AnthropicProvider) ID() string {
	return "anthropic:" + p.Model
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key not provided (set ANTHROPIC_API_KEY)")
	}
	url := p.BaseURL
	if url == "" {
		url = anthropicURL
	}

	var out anthropicResponse
	err := postJSON(ctx, p.HTTPClient, "Anthropic", url,
		map[string]string{"x-api-key": p.APIKey, "anthropic-version": "2023-06-01"},
		anthropicRequest{
			Model:       p.Model,
			System:      req.System,
			Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
			MaxTokens:   maxTokensOr(req.MaxTokens, 4096),
			Temperature: req.Temperature,
		}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Content) == 0 {
		return nil, ai.ErrEmptyCompletion
	}

	return &ai.CompletionResponse{
		Text:  out.Content[0].Text,
		Model: p.Model,
		Usage: ai.TokenUsage{InputTokens: out.Usage.InputTokens, OutputTokens: out.Usage.OutputTokens},
	}, nil
}
