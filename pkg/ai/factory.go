package ai

import (
	"fmt"
	"os"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/ai"
)

// Environment overrides for the configured provider.
const (
	EnvProvider = "SMARTREVIEWER_AI_PROVIDER"
	EnvModel    = "SMARTREVIEWER_AI_MODEL"
)

// NewProvider builds a provider by name. API keys come from the environment.
func NewProvider(providerName string, modelName string) (ai.Provider, error) {
	switch providerName {
	case "ollama", "":
		return NewOllamaProvider(modelName), nil
	case "mock":
		return &MockProvider{Model: modelName}, nil
	case "openai":
		return NewOpenAIProvider(modelName, os.Getenv("OPENAI_API_KEY")), nil
	case "anthropic":
		return NewAnthropicProvider(modelName, os.Getenv("ANTHROPIC_API_KEY")), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", providerName)
	}
}

// GetDefaultProvider applies environment overrides before NewProvider.
func GetDefaultProvider(providerName, modelName string) (ai.Provider, error) {
	if v := os.Getenv(EnvProvider); v != "" {
		providerName = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		modelName = v
	}
	return NewProvider(providerName, modelName)
}
