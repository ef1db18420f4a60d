package services

import (
	"context"
	"fmt"

	appconfig "multibagger/config"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openaiClient defines the interface for OpenAI API calls (for testing)
type openaiClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// openaiClientWrapper wraps the openai.Client to implement our interface
type openaiClientWrapper struct {
	client openai.Client
}

func (w *openaiClientWrapper) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return w.client.Chat.Completions.New(ctx, params)
}

// OpenAIService talks to any OpenAI-compatible chat completion endpoint.
// Groq is served through the same client with a different base URL.
type OpenAIService struct {
	name        string
	client      openaiClient
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAIService creates a service for the OpenAI API.
func NewOpenAIService(cfg *appconfig.Config) (*OpenAIService, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	client := openai.NewClient(option.WithAPIKey(cfg.OpenAI.APIKey))

	return &OpenAIService{
		name:        BreakerOpenAI,
		client:      &openaiClientWrapper{client: client},
		model:       cfg.OpenAI.Model,
		maxTokens:   cfg.Enrichment.MaxTokens,
		temperature: cfg.Enrichment.Temperature,
	}, nil
}

// NewGroqService creates a service for Groq's OpenAI-compatible endpoint.
func NewGroqService(cfg *appconfig.Config) (*OpenAIService, error) {
	if cfg.Groq.APIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required")
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.Groq.APIKey),
		option.WithBaseURL(cfg.Groq.BaseURL),
	)

	return &OpenAIService{
		name:        BreakerGroq,
		client:      &openaiClientWrapper{client: client},
		model:       cfg.Groq.Model,
		maxTokens:   cfg.Enrichment.MaxTokens,
		temperature: cfg.Enrichment.Temperature,
	}, nil
}

// newOpenAIServiceWithClient creates an OpenAIService with a custom client (for testing)
func newOpenAIServiceWithClient(name string, client openaiClient, model string, maxTokens int) *OpenAIService {
	return &OpenAIService{
		name:        name,
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: 0.3,
	}
}

func (s *OpenAIService) Name() string {
	return s.name
}

// InvokeWithPrompt sends a prompt and returns the first choice's text.
func (s *OpenAIService) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return invokeLLM(ctx, s.name, func() (string, error) {
		params := openai.ChatCompletionNewParams{
			Model:       shared.ChatModel(s.model),
			MaxTokens:   openai.Int(int64(s.maxTokens)),
			Temperature: openai.Float(s.temperature),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(userPrompt),
			},
		}

		completion, err := s.client.CreateChatCompletion(ctx, params)
		if err != nil {
			return "", fmt.Errorf("failed to invoke %s: %w", s.name, err)
		}

		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("empty response from %s", s.name)
		}

		return completion.Choices[0].Message.Content, nil
	})
}
