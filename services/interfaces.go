package services

import (
	"context"

	"multibagger/models"
)

// LLMService is a text completion backend used for qualitative enrichment.
type LLMService interface {
	Name() string
	InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// FundamentalsServiceInterface provides annual statements and the company profile.
type FundamentalsServiceInterface interface {
	GetIncomeStatements(ctx context.Context, symbol string, limit int) (models.StatementSeries, error)
	GetBalanceSheets(ctx context.Context, symbol string, limit int) (models.StatementSeries, error)
	GetCashFlows(ctx context.Context, symbol string, limit int) (models.StatementSeries, error)
	GetCompanyProfile(ctx context.Context, symbol string) (*CompanyProfile, error)
}

// MarketDataServiceInterface provides price history and ownership data.
type MarketDataServiceInterface interface {
	GetDailyBars(ctx context.Context, symbol, historyRange string) (*PriceHistory, error)
	GetHolderSummary(ctx context.Context, symbol string) (*HolderSummary, error)
}

// ExchangeServiceInterface provides exchange-published data for Indian equities.
type ExchangeServiceInterface interface {
	GetIndexConstituents(ctx context.Context, index string) ([]string, error)
	GetBulkDeals(ctx context.Context, symbol string) ([]models.BulkDeal, error)
	GetFIIDIIFlows(ctx context.Context) (*models.FIIDIIFlow, error)
}

// NewsAPIServiceInterface defines the interface for news data operations
type NewsAPIServiceInterface interface {
	GetNews(ctx context.Context, query string, limit int) ([]models.NewsArticle, error)
}

// Compile-time interface verification
var _ LLMService = (*OpenAIService)(nil)
var _ LLMService = (*AnthropicService)(nil)
var _ LLMService = (*BedrockService)(nil)
var _ LLMService = (*GeminiService)(nil)
var _ FundamentalsServiceInterface = (*FMPService)(nil)
var _ MarketDataServiceInterface = (*YahooService)(nil)
var _ ExchangeServiceInterface = (*NSEService)(nil)
var _ NewsAPIServiceInterface = (*NewsAPIService)(nil)
