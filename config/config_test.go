package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// saveEnv saves current environment variables for restoration
func saveEnv(t *testing.T, keys []string) map[string]string {
	t.Helper()
	saved := make(map[string]string)
	for _, key := range keys {
		saved[key] = os.Getenv(key)
	}
	return saved
}

// restoreEnv restores previously saved environment variables
func restoreEnv(t *testing.T, saved map[string]string) {
	t.Helper()
	for key, val := range saved {
		if val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, val)
		}
	}
}

func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, key := range keys {
		os.Unsetenv(key)
	}
}

var allEnvKeys = []string{
	"DATABASE_URL", "DATABASE_MAX_CONNS",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_MAX_TOKENS",
	"GROQ_API_KEY", "GROQ_MODEL", "GROQ_BASE_URL",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL",
	"AWS_REGION", "BEDROCK_MODEL_ID", "BEDROCK_MAX_TOKENS", "BEDROCK_ANTHROPIC_VERSION",
	"GOOGLE_GEMINI_API_KEY", "GEMINI_MODEL",
	"ENRICHMENT_ENABLED", "ENRICHMENT_PROVIDERS", "ENRICHMENT_MAX_TOKENS",
	"ENRICHMENT_TEMPERATURE", "ENRICHMENT_TIMEOUT_SECONDS", "ENRICHMENT_HEALTH_CACHE_TTL_SECONDS",
	"FMP_API_KEY", "FMP_BASE_URL",
	"YAHOO_BASE_URL", "BENCHMARK_SYMBOL", "PRICE_HISTORY_RANGE",
	"NSE_BASE_URL", "NSE_REQUESTS_PER_SECOND", "NSE_UNIVERSE_INDEX",
	"NEWS_API_KEY", "NEWS_API_PAGE_SIZE",
	"WEIGHT_FUNDAMENTALS", "WEIGHT_MANAGEMENT", "WEIGHT_POLICY", "WEIGHT_SMART_MONEY", "WEIGHT_TECHNICALS",
	"MULTIBAGGER_THRESHOLD", "WATCHLIST_THRESHOLD", "REJECTION_THRESHOLD",
	"AGENT_TIMEOUT_SECONDS", "ANALYSIS_CONCURRENCY_LIMIT",
	"DISCOVERY_MAX_STOCKS", "DISCOVERY_MAX_MARKET_CAP_CRORES", "DISCOVERY_MAX_CONCURRENT",
	"DISCOVERY_TIMEOUT_SECONDS", "RESULTS_DIR", "SNAPSHOT_CACHE_MINUTES", "STOCK_SETS_FILE",
	"HTTP_ADDR", "CORS_ALLOWED_ORIGINS",
	"LOG_FORMAT", "LOG_LEVEL",
	"MULTIBAGGER_VAULT_DIR", "MULTIBAGGER_VAULT_PASSPHRASE",
}

func TestLoad_Defaults(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	s := cfg.Scoring
	if s.WeightFundamentals != 0.35 || s.WeightManagement != 0.15 || s.WeightPolicy != 0.20 ||
		s.WeightSmartMoney != 0.15 || s.WeightTechnicals != 0.15 {
		t.Errorf("unexpected default weights: %+v", s)
	}
	if s.MultibaggerThreshold != 0.60 || s.WatchlistThreshold != 0.45 || s.RejectionThreshold != 0.30 {
		t.Errorf("unexpected default thresholds: %+v", s)
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("Database.MaxConns = %d, want 10", cfg.Database.MaxConns)
	}
	if cfg.Discovery.MaxStocks != 20 {
		t.Errorf("MaxStocks = %d, want 20", cfg.Discovery.MaxStocks)
	}
	if cfg.Discovery.MaxMarketCapCrores != 8000 {
		t.Errorf("MaxMarketCapCrores = %v, want 8000", cfg.Discovery.MaxMarketCapCrores)
	}
	if cfg.Groq.BaseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("Groq.BaseURL = %s", cfg.Groq.BaseURL)
	}
	if cfg.AWS.AnthropicVersion != "bedrock-2023-05-31" {
		t.Errorf("AnthropicVersion = %s", cfg.AWS.AnthropicVersion)
	}
	if cfg.Yahoo.BenchmarkSymbol != "^NSEI" {
		t.Errorf("BenchmarkSymbol = %s", cfg.Yahoo.BenchmarkSymbol)
	}
	if !cfg.Enrichment.Enabled {
		t.Error("enrichment should be enabled by default")
	}
	if got := strings.Join(cfg.Enrichment.Providers, ","); got != "groq,anthropic,bedrock,openai,gemini" {
		t.Errorf("Providers = %s", got)
	}
	if cfg.HasDatabase() || cfg.HasGroq() || cfg.HasFMP() || cfg.HasNewsAPI() {
		t.Error("no credentials should be detected with a clean environment")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("DATABASE_URL", "postgres://localhost/multibagger")
	os.Setenv("GROQ_API_KEY", "gsk_test")
	os.Setenv("ENRICHMENT_PROVIDERS", " Anthropic , groq,, ")
	os.Setenv("WEIGHT_FUNDAMENTALS", "0.40")
	os.Setenv("WEIGHT_POLICY", "0.15")
	os.Setenv("MULTIBAGGER_THRESHOLD", "0.7")
	os.Setenv("DISCOVERY_MAX_CONCURRENT", "8")
	os.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !cfg.HasDatabase() || !cfg.HasGroq() || !cfg.HasProvider("groq") {
		t.Error("expected database and groq to be configured")
	}
	if got := strings.Join(cfg.Enrichment.Providers, ","); got != "anthropic,groq" {
		t.Errorf("Providers = %q, want anthropic,groq", got)
	}
	if cfg.Scoring.WeightFundamentals != 0.40 || cfg.Scoring.WeightPolicy != 0.15 {
		t.Errorf("weights not applied: %+v", cfg.Scoring)
	}
	if cfg.Scoring.MultibaggerThreshold != 0.7 {
		t.Errorf("MultibaggerThreshold = %v", cfg.Scoring.MultibaggerThreshold)
	}
	if cfg.Discovery.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent = %d", cfg.Discovery.MaxConcurrent)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %s", cfg.Log.Format)
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("AGENT_TIMEOUT_SECONDS", "-5")
	os.Setenv("WEIGHT_MANAGEMENT", "1.5")
	os.Setenv("DISCOVERY_MAX_STOCKS", "many")
	os.Setenv("ENRICHMENT_ENABLED", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Agent.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want default 30", cfg.Agent.TimeoutSeconds)
	}
	if cfg.Scoring.WeightManagement != 0.15 {
		t.Errorf("WeightManagement = %v, want default 0.15", cfg.Scoring.WeightManagement)
	}
	if cfg.Discovery.MaxStocks != 20 {
		t.Errorf("MaxStocks = %d, want default 20", cfg.Discovery.MaxStocks)
	}
	if !cfg.Enrichment.Enabled {
		t.Error("unparseable bool should keep default true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"weights do not sum to one", func(c *Config) { c.Scoring.WeightFundamentals = 0.5 }, "must sum to 1.0"},
		{"weight out of range", func(c *Config) {
			c.Scoring.WeightFundamentals = -0.05
			c.Scoring.WeightManagement = 0.55
		}, "WEIGHT_FUNDAMENTALS must be between 0 and 1"},
		{"thresholds not ascending", func(c *Config) { c.Scoring.WatchlistThreshold = 0.7 }, "thresholds must ascend"},
		{"rejection equals watchlist", func(c *Config) { c.Scoring.RejectionThreshold = 0.45 }, "thresholds must ascend"},
		{"multibagger above one", func(c *Config) { c.Scoring.MultibaggerThreshold = 1.2 }, "within [0, 1]"},
		{"zero timeout", func(c *Config) { c.Agent.TimeoutSeconds = 0 }, "AGENT_TIMEOUT_SECONDS"},
		{"zero concurrency", func(c *Config) { c.Agent.ConcurrencyLimit = 0 }, "ANALYSIS_CONCURRENCY_LIMIT"},
		{"zero max stocks", func(c *Config) { c.Discovery.MaxStocks = 0 }, "DISCOVERY_MAX_STOCKS"},
		{"zero discovery concurrency", func(c *Config) { c.Discovery.MaxConcurrent = 0 }, "DISCOVERY_MAX_CONCURRENT"},
		{"negative market cap ceiling", func(c *Config) { c.Discovery.MaxMarketCapCrores = -1 }, "DISCOVERY_MAX_MARKET_CAP_CRORES"},
		{"unknown provider", func(c *Config) { c.Enrichment.Providers = []string{"huggingface"} }, "unknown enrichment provider"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestHasProvider(t *testing.T) {
	cfg := NewTestConfig()
	for _, p := range KnownProviders {
		if cfg.HasProvider(p) {
			t.Errorf("HasProvider(%s) should be false without credentials", p)
		}
	}

	cfg.Anthropic.APIKey = "sk-ant"
	cfg.AWS.Region = "us-east-1"
	if !cfg.HasProvider("anthropic") {
		t.Error("anthropic should be configured")
	}
	if cfg.HasProvider("bedrock") {
		t.Error("bedrock needs a model id as well as a region")
	}
	cfg.AWS.BedrockModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	if !cfg.HasProvider("bedrock") {
		t.Error("bedrock should be configured")
	}
	if cfg.HasProvider("huggingface") {
		t.Error("unknown provider should never be configured")
	}
}

func TestLoadStockSets_Default(t *testing.T) {
	sets, err := LoadStockSets("")
	if err != nil {
		t.Fatalf("LoadStockSets() failed: %v", err)
	}
	if len(sets) != 6 {
		t.Fatalf("len(sets) = %d, want 6", len(sets))
	}

	set, ok := FindStockSet(sets, "defense & aerospace")
	if !ok {
		t.Fatal("Defense & Aerospace set not found")
	}
	if strings.Join(set.Stocks, ",") != "HAL.NS,BEL.NS,KPIT.NS,IRFC.NS" {
		t.Errorf("Stocks = %v", set.Stocks)
	}
}

func TestLoadStockSets_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sets.yaml")
	data := "sets:\n  - name: Mine\n    description: custom\n    stocks: [ tanla.ns , kei.ns]\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	sets, err := LoadStockSets(path)
	if err != nil {
		t.Fatalf("LoadStockSets() failed: %v", err)
	}
	if len(sets) != 1 || strings.Join(sets[0].Stocks, ",") != "TANLA.NS,KEI.NS" {
		t.Errorf("sets = %+v", sets)
	}

	if _, err := LoadStockSets(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseStockSets_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed yaml", "sets: [\n"},
		{"missing name", "sets:\n  - stocks: [A]\n"},
		{"no stocks", "sets:\n  - name: Empty\n"},
		{"duplicate", "sets:\n  - name: A\n    stocks: [X]\n  - name: a\n    stocks: [Y]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseStockSets([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
