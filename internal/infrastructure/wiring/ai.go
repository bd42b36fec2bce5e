package wiring

import (
	"time"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/config"
	infraai "github.com/felixgeelhaar/smartreviewer/pkg/ai"
	domainai "github.com/felixgeelhaar/smartreviewer/pkg/domain/ai"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// Judgment model used when review.yaml names none.
const (
	DefaultProviderName = "ollama"
	DefaultModelName    = "llama3"
)

// BuildProvider resolves the judgment provider. SMARTREVIEWER_AI_PROVIDER
// and SMARTREVIEWER_AI_MODEL win over review.yaml. Network providers get
// retry and timeout; the mock provider is returned bare.
func BuildProvider(cfg *config.ReviewConfig) (domainai.Provider, error) {
	var pc config.ProviderConfig
	if cfg != nil {
		pc = cfg.Provider
	}
	name, model := pc.Name, pc.Model
	if name == "" {
		name = DefaultProviderName
	}
	if model == "" {
		model = DefaultModelName
	}

	provider, err := infraai.GetDefaultProvider(name, model)
	if err != nil {
		return nil, &review.Error{Kind: review.KindConfiguration, Op: "provider", Err: err}
	}
	if _, ok := provider.(*infraai.MockProvider); ok {
		return provider, nil
	}
	return infraai.NewResilientProviderWithConfig(provider, providerResilience(pc)), nil
}

func providerResilience(pc config.ProviderConfig) infraai.ResilienceConfig {
	rc := infraai.DefaultResilienceConfig()
	if pc.MaxRetries > 0 {
		rc.MaxRetries = pc.MaxRetries
	}
	if pc.RetryDelayMs > 0 {
		rc.RetryDelay = time.Duration(pc.RetryDelayMs) * time.Millisecond
	}
	if pc.TimeoutSec > 0 {
		rc.Timeout = time.Duration(pc.TimeoutSec) * time.Second
	}
	return rc
}
