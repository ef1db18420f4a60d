package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig

	// LLM providers used for qualitative enrichment
	OpenAI    OpenAIConfig
	Groq      GroqConfig
	Anthropic AnthropicConfig
	AWS       AWSConfig
	Gemini    GeminiConfig

	Enrichment EnrichmentConfig

	// Market and news data sources
	FMP     FMPConfig
	Yahoo   YahooConfig
	NSE     NSEConfig
	NewsAPI NewsAPIConfig

	Scoring   ScoringConfig
	Agent     AgentConfig
	Discovery DiscoveryConfig
	HTTP      HTTPConfig
	Log       LogConfig
	Vault     VaultConfig
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
}

type OpenAIConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// GroqConfig configures Groq through its OpenAI-compatible endpoint.
type GroqConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

// AWSConfig configures Claude through AWS Bedrock.
type AWSConfig struct {
	Region           string
	BedrockModelID   string
	BedrockMaxTokens int
	AnthropicVersion string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

// EnrichmentConfig controls the LLM enrichment chain.
type EnrichmentConfig struct {
	Enabled               bool
	Providers             []string // tried in order; the rule-based fallback always runs last
	MaxTokens             int
	Temperature           float64
	TimeoutSeconds        int
	HealthCacheTTLSeconds int
}

type FMPConfig struct {
	APIKey  string
	BaseURL string
}

type YahooConfig struct {
	BaseURL         string
	BenchmarkSymbol string
	HistoryRange    string
}

type NSEConfig struct {
	BaseURL           string
	RequestsPerSecond int
	UniverseIndex     string
}

type NewsAPIConfig struct {
	APIKey   string
	PageSize int
}

// ScoringConfig carries the supervisor weights and thresholds.
type ScoringConfig struct {
	WeightFundamentals float64
	WeightManagement   float64
	WeightPolicy       float64
	WeightSmartMoney   float64
	WeightTechnicals   float64

	MultibaggerThreshold float64
	WatchlistThreshold   float64
	RejectionThreshold   float64

	ConsensusStrategy string // default or conservative
}

type AgentConfig struct {
	TimeoutSeconds   int
	ConcurrencyLimit int
}

// DiscoveryConfig controls the batch discovery workflow.
type DiscoveryConfig struct {
	MaxStocks            int
	MaxMarketCapCrores   float64 // applied to index-derived universes only
	MaxConcurrent        int
	AnalysisTimeoutSec   int
	ResultsDir           string
	SnapshotCacheMinutes int
	StockSetsFile        string
}

type HTTPConfig struct {
	Addr               string
	CORSAllowedOrigins string
}

type LogConfig struct {
	Format string // text or json
	Level  string
}

// VaultConfig locates the encrypted credential vault. An empty Dir means
// ~/.multibagger.
type VaultConfig struct {
	Dir        string
	Passphrase string
}

// KnownProviders are the enrichment provider names accepted in ENRICHMENT_PROVIDERS.
var KnownProviders = []string{"groq", "anthropic", "bedrock", "openai", "gemini"}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: getEnvInt("DATABASE_MAX_CONNS", 10),
		},
		OpenAI: OpenAIConfig{
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			Model:     getEnvString("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 500),
		},
		Groq: GroqConfig{
			APIKey:  os.Getenv("GROQ_API_KEY"),
			Model:   getEnvString("GROQ_MODEL", "llama-3.1-8b-instant"),
			BaseURL: getEnvString("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		},
		Anthropic: AnthropicConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  getEnvString("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
		},
		AWS: AWSConfig{
			Region:           os.Getenv("AWS_REGION"),
			BedrockModelID:   os.Getenv("BEDROCK_MODEL_ID"),
			BedrockMaxTokens: getEnvInt("BEDROCK_MAX_TOKENS", 500),
			AnthropicVersion: getEnvString("BEDROCK_ANTHROPIC_VERSION", "bedrock-2023-05-31"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GOOGLE_GEMINI_API_KEY"),
			Model:  getEnvString("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Enrichment: EnrichmentConfig{
			Enabled:               getEnvBool("ENRICHMENT_ENABLED", true),
			Providers:             getEnvList("ENRICHMENT_PROVIDERS", []string{"groq", "anthropic", "bedrock", "openai", "gemini"}),
			MaxTokens:             getEnvInt("ENRICHMENT_MAX_TOKENS", 500),
			Temperature:           getEnvFloat("ENRICHMENT_TEMPERATURE", 0.3),
			TimeoutSeconds:        getEnvInt("ENRICHMENT_TIMEOUT_SECONDS", 30),
			HealthCacheTTLSeconds: getEnvInt("ENRICHMENT_HEALTH_CACHE_TTL_SECONDS", 60),
		},
		FMP: FMPConfig{
			APIKey:  os.Getenv("FMP_API_KEY"),
			BaseURL: getEnvString("FMP_BASE_URL", "https://financialmodelingprep.com/api/v3"),
		},
		Yahoo: YahooConfig{
			BaseURL:         getEnvString("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			BenchmarkSymbol: getEnvString("BENCHMARK_SYMBOL", "^NSEI"),
			HistoryRange:    getEnvString("PRICE_HISTORY_RANGE", "5y"),
		},
		NSE: NSEConfig{
			BaseURL:           getEnvString("NSE_BASE_URL", "https://www.nseindia.com/api"),
			RequestsPerSecond: getEnvInt("NSE_REQUESTS_PER_SECOND", 2),
			UniverseIndex:     getEnvString("NSE_UNIVERSE_INDEX", "NIFTY 500"),
		},
		NewsAPI: NewsAPIConfig{
			APIKey:   os.Getenv("NEWS_API_KEY"),
			PageSize: getEnvInt("NEWS_API_PAGE_SIZE", 20),
		},
		Scoring: ScoringConfig{
			WeightFundamentals:   getEnvFloat("WEIGHT_FUNDAMENTALS", 0.35),
			WeightManagement:     getEnvFloat("WEIGHT_MANAGEMENT", 0.15),
			WeightPolicy:         getEnvFloat("WEIGHT_POLICY", 0.20),
			WeightSmartMoney:     getEnvFloat("WEIGHT_SMART_MONEY", 0.15),
			WeightTechnicals:     getEnvFloat("WEIGHT_TECHNICALS", 0.15),
			MultibaggerThreshold: getEnvFloat("MULTIBAGGER_THRESHOLD", 0.60),
			WatchlistThreshold:   getEnvFloat("WATCHLIST_THRESHOLD", 0.45),
			RejectionThreshold:   getEnvFloat("REJECTION_THRESHOLD", 0.30),
			ConsensusStrategy:    getEnvString("CONSENSUS_STRATEGY", "default"),
		},
		Agent: AgentConfig{
			TimeoutSeconds:   getEnvInt("AGENT_TIMEOUT_SECONDS", 30),
			ConcurrencyLimit: getEnvInt("ANALYSIS_CONCURRENCY_LIMIT", 3),
		},
		Discovery: DiscoveryConfig{
			MaxStocks:            getEnvInt("DISCOVERY_MAX_STOCKS", 20),
			MaxMarketCapCrores:   getEnvFloatUnbounded("DISCOVERY_MAX_MARKET_CAP_CRORES", 8000),
			MaxConcurrent:        getEnvInt("DISCOVERY_MAX_CONCURRENT", 4),
			AnalysisTimeoutSec:   getEnvInt("DISCOVERY_TIMEOUT_SECONDS", 600),
			ResultsDir:           getEnvString("RESULTS_DIR", "results"),
			SnapshotCacheMinutes: getEnvInt("SNAPSHOT_CACHE_MINUTES", 360),
			StockSetsFile:        os.Getenv("STOCK_SETS_FILE"),
		},
		HTTP: HTTPConfig{
			Addr:               getEnvString("HTTP_ADDR", ":8080"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
		Log: LogConfig{
			Format: getEnvString("LOG_FORMAT", "text"),
			Level:  getEnvString("LOG_LEVEL", "info"),
		},
		Vault: VaultConfig{
			Dir:        os.Getenv("MULTIBAGGER_VAULT_DIR"),
			Passphrase: os.Getenv("MULTIBAGGER_VAULT_PASSPHRASE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	s := c.Scoring
	weights := []struct {
		key string
		val float64
	}{
		{"WEIGHT_FUNDAMENTALS", s.WeightFundamentals},
		{"WEIGHT_MANAGEMENT", s.WeightManagement},
		{"WEIGHT_POLICY", s.WeightPolicy},
		{"WEIGHT_SMART_MONEY", s.WeightSmartMoney},
		{"WEIGHT_TECHNICALS", s.WeightTechnicals},
	}

	var sum float64
	for _, w := range weights {
		if w.val < 0 || w.val > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %.2f", w.key, w.val)
		}
		sum += w.val
	}
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("agent weights must sum to 1.0, got %.2f (fundamentals=%.2f, management=%.2f, policy=%.2f, smart_money=%.2f, technicals=%.2f)",
			sum, s.WeightFundamentals, s.WeightManagement, s.WeightPolicy, s.WeightSmartMoney, s.WeightTechnicals)
	}

	if !(s.RejectionThreshold < s.WatchlistThreshold && s.WatchlistThreshold < s.MultibaggerThreshold) {
		return fmt.Errorf("thresholds must ascend rejection < watchlist < multibagger, got %.2f, %.2f, %.2f",
			s.RejectionThreshold, s.WatchlistThreshold, s.MultibaggerThreshold)
	}
	if s.RejectionThreshold < 0 || s.MultibaggerThreshold > 1 {
		return fmt.Errorf("thresholds must lie within [0, 1]")
	}

	if c.Agent.TimeoutSeconds <= 0 {
		return fmt.Errorf("AGENT_TIMEOUT_SECONDS must be positive, got %d", c.Agent.TimeoutSeconds)
	}
	if c.Agent.ConcurrencyLimit <= 0 {
		return fmt.Errorf("ANALYSIS_CONCURRENCY_LIMIT must be positive, got %d", c.Agent.ConcurrencyLimit)
	}
	if c.Discovery.MaxStocks <= 0 {
		return fmt.Errorf("DISCOVERY_MAX_STOCKS must be positive, got %d", c.Discovery.MaxStocks)
	}
	if c.Discovery.MaxConcurrent <= 0 {
		return fmt.Errorf("DISCOVERY_MAX_CONCURRENT must be positive, got %d", c.Discovery.MaxConcurrent)
	}
	if c.Discovery.MaxMarketCapCrores < 0 {
		return fmt.Errorf("DISCOVERY_MAX_MARKET_CAP_CRORES must not be negative, got %.0f", c.Discovery.MaxMarketCapCrores)
	}

	for _, p := range c.Enrichment.Providers {
		if !isKnownProvider(p) {
			return fmt.Errorf("unknown enrichment provider %q (known: %s)", p, strings.Join(KnownProviders, ", "))
		}
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func isKnownProvider(name string) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}

func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAI.APIKey != ""
}

func (c *Config) HasGroq() bool {
	return c.Groq.APIKey != ""
}

func (c *Config) HasAnthropic() bool {
	return c.Anthropic.APIKey != ""
}

// HasBedrock requires both a region and a model id.
func (c *Config) HasBedrock() bool {
	return c.AWS.Region != "" && c.AWS.BedrockModelID != ""
}

func (c *Config) HasGemini() bool {
	return c.Gemini.APIKey != ""
}

func (c *Config) HasNewsAPI() bool {
	return c.NewsAPI.APIKey != ""
}

func (c *Config) HasFMP() bool {
	return c.FMP.APIKey != ""
}

// HasProvider reports whether the named enrichment provider has credentials.
func (c *Config) HasProvider(name string) bool {
	switch name {
	case "groq":
		return c.HasGroq()
	case "anthropic":
		return c.HasAnthropic()
	case "bedrock":
		return c.HasBedrock()
	case "openai":
		return c.HasOpenAI()
	case "gemini":
		return c.HasGemini()
	}
	return false
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= 0 && parsed <= 1 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatUnbounded(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks and lower-casing entries.
func getEnvList(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// NewTestConfig returns a valid configuration with defaults and no credentials.
func NewTestConfig() *Config {
	return &Config{
		OpenAI:    OpenAIConfig{Model: "gpt-4o-mini", MaxTokens: 500},
		Groq:      GroqConfig{Model: "llama-3.1-8b-instant", BaseURL: "https://api.groq.com/openai/v1"},
		Anthropic: AnthropicConfig{Model: "claude-3-haiku-20240307"},
		AWS:       AWSConfig{BedrockMaxTokens: 500, AnthropicVersion: "bedrock-2023-05-31"},
		Gemini:    GeminiConfig{Model: "gemini-2.5-flash"},
		Enrichment: EnrichmentConfig{
			Enabled:               false,
			Providers:             []string{"groq", "anthropic", "bedrock", "openai", "gemini"},
			MaxTokens:             500,
			Temperature:           0.3,
			TimeoutSeconds:        30,
			HealthCacheTTLSeconds: 60,
		},
		FMP:     FMPConfig{BaseURL: "https://financialmodelingprep.com/api/v3"},
		Yahoo:   YahooConfig{BaseURL: "https://query1.finance.yahoo.com", BenchmarkSymbol: "^NSEI", HistoryRange: "5y"},
		NSE:     NSEConfig{BaseURL: "https://www.nseindia.com/api", RequestsPerSecond: 2, UniverseIndex: "NIFTY 500"},
		NewsAPI: NewsAPIConfig{PageSize: 20},
		Scoring: ScoringConfig{
			WeightFundamentals:   0.35,
			WeightManagement:     0.15,
			WeightPolicy:         0.20,
			WeightSmartMoney:     0.15,
			WeightTechnicals:     0.15,
			MultibaggerThreshold: 0.60,
			WatchlistThreshold:   0.45,
			RejectionThreshold:   0.30,
			ConsensusStrategy:    "default",
		},
		Agent: AgentConfig{TimeoutSeconds: 30, ConcurrencyLimit: 3},
		Discovery: DiscoveryConfig{
			MaxStocks:            20,
			MaxMarketCapCrores:   8000,
			MaxConcurrent:        4,
			AnalysisTimeoutSec:   600,
			ResultsDir:           "results",
			SnapshotCacheMinutes: 360,
		},
		HTTP: HTTPConfig{Addr: ":8080", CORSAllowedOrigins: "*"},
		Log:  LogConfig{Format: "text", Level: "info"},
	}
}
