package ai

import (
	"context"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/ai"
)

// mockVerdict is a judgment with no findings, used for offline runs.
const mockVerdict = `{"verdict":"pass","rationale":"offline mock judgment","findings":[]}`

// MockProvider answers without calling a model. Respond overrides the
// fixed pass verdict.
type MockProvider struct {
	Model   string
	Respond func(req ai.CompletionRequest) (string, error)
}

func (p *MockProvider) ID() string {
	return "mock:" + p.Model
}

func (p *MockProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := mockVerdict
	if p.Respond != nil {
		var err error
		if text, err = p.Respond(req); err != nil {
			return nil, err
		}
	}
	return &ai.CompletionResponse{
		Text:  text,
		Model: p.Model,
		Usage: ai.TokenUsage{InputTokens: len(req.Prompt) / 4, OutputTokens: len(text) / 4},
	}, nil
}
