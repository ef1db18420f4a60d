package enrichment

import (
	"context"
	"fmt"

	appconfig "multibagger/config"
	"multibagger/observability"
	"multibagger/services"
)

// Provider produces a qualitative insight for one stock.
type Provider interface {
	Name() string
	AttemptEnrich(ctx context.Context, prompt Prompt) (*Insight, error)
}

// LLMProvider asks a language model for an insight.
type LLMProvider struct {
	llm services.LLMService
}

func NewLLMProvider(llm services.LLMService) *LLMProvider {
	return &LLMProvider{llm: llm}
}

func (p *LLMProvider) Name() string {
	return p.llm.Name()
}

func (p *LLMProvider) AttemptEnrich(ctx context.Context, prompt Prompt) (*Insight, error) {
	text, err := p.llm.InvokeWithPrompt(ctx, SystemPrompt, prompt.UserPrompt())
	if err != nil {
		return nil, fmt.Errorf("%s enrichment failed: %w", p.Name(), err)
	}
	insight := ParseInsight(text)
	insight.Provider = p.Name()
	return insight, nil
}

// BuildProviders constructs an LLMProvider for every configured provider
// that has credentials, in ENRICHMENT_PROVIDERS order. Providers that fail
// to construct are logged and left out.
func BuildProviders(ctx context.Context, cfg *appconfig.Config) []Provider {
	if !cfg.Enrichment.Enabled {
		return nil
	}

	providers := make([]Provider, 0, len(cfg.Enrichment.Providers))
	for _, name := range cfg.Enrichment.Providers {
		if !cfg.HasProvider(name) {
			observability.Debug("enrichment provider not configured", "provider", name)
			continue
		}

		llm, err := newLLMService(ctx, cfg, name)
		if err != nil {
			observability.Warn("failed to initialize enrichment provider",
				"provider", name,
				"error", err)
			continue
		}
		providers = append(providers, NewLLMProvider(llm))
	}
	return providers
}

func newLLMService(ctx context.Context, cfg *appconfig.Config, name string) (services.LLMService, error) {
	switch name {
	case "openai":
		return services.NewOpenAIService(cfg)
	case "groq":
		return services.NewGroqService(cfg)
	case "anthropic":
		return services.NewAnthropicService(cfg)
	case "bedrock":
		return services.NewBedrockService(ctx, cfg)
	case "gemini":
		return services.NewGeminiService(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown enrichment provider %q", name)
	}
}
