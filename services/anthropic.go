package services

import (
	"context"
	"fmt"
	"strings"

	appconfig "multibagger/config"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicClient interface {
	NewMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type anthropicClientWrapper struct {
	client anthropic.Client
}

func (w *anthropicClientWrapper) NewMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return w.client.Messages.New(ctx, params)
}

// AnthropicService calls Claude through the Anthropic Messages API.
type AnthropicService struct {
	client      anthropicClient
	model       string
	maxTokens   int
	temperature float64
}

func NewAnthropicService(cfg *appconfig.Config) (*AnthropicService, error) {
	if cfg.Anthropic.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.Anthropic.APIKey))

	return &AnthropicService{
		client:      &anthropicClientWrapper{client: client},
		model:       cfg.Anthropic.Model,
		maxTokens:   cfg.Enrichment.MaxTokens,
		temperature: cfg.Enrichment.Temperature,
	}, nil
}

func (s *AnthropicService) Name() string {
	return BreakerAnthropic
}

func (s *AnthropicService) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return invokeLLM(ctx, BreakerAnthropic, func() (string, error) {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(s.model),
			MaxTokens: int64(s.maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			},
			Temperature: anthropic.Float(s.temperature),
		}
		if systemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
		}

		resp, err := s.client.NewMessage(ctx, params)
		if err != nil {
			return "", fmt.Errorf("failed to invoke anthropic: %w", err)
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		return text.String(), nil
	})
}
