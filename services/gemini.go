package services

import (
	"context"
	"fmt"

	appconfig "multibagger/config"

	"google.golang.org/genai"
)

type geminiClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiClientWrapper struct {
	client *genai.Client
}

func (w *geminiClientWrapper) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return w.client.Models.GenerateContent(ctx, model, contents, config)
}

// GeminiService calls Google Gemini through the Gemini API backend.
type GeminiService struct {
	client      geminiClient
	model       string
	maxTokens   int
	temperature float64
}

func NewGeminiService(ctx context.Context, cfg *appconfig.Config) (*GeminiService, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiService{
		client:      &geminiClientWrapper{client: client},
		model:       cfg.Gemini.Model,
		maxTokens:   cfg.Enrichment.MaxTokens,
		temperature: cfg.Enrichment.Temperature,
	}, nil
}

func (s *GeminiService) Name() string {
	return BreakerGemini
}

func (s *GeminiService) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return invokeLLM(ctx, BreakerGemini, func() (string, error) {
		config := &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(s.temperature)),
			MaxOutputTokens: int32(s.maxTokens),
		}
		if systemPrompt != "" {
			config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
		}

		resp, err := s.client.GenerateContent(ctx, s.model, []*genai.Content{
			{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{genai.NewPartFromText(userPrompt)},
			},
		}, config)
		if err != nil {
			return "", fmt.Errorf("failed to invoke gemini: %w", err)
		}

		var text string
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				text += part.Text
			}
			break
		}
		return text, nil
	})
}
