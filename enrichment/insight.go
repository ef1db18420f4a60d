package enrichment

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// SystemPrompt is sent to every LLM provider.
const SystemPrompt = "You are an expert fundamental analyst specializing in Indian multibagger stocks. Provide concise, actionable insights."

// FallbackProviderName identifies insights produced without an LLM.
const FallbackProviderName = "fallback_analysis"

const (
	maxStrengths  = 3
	maxRisks      = 2
	maxAdjustment = 0.5
)

// Metrics are the numeric fundamentals an enrichment provider reasons about.
type Metrics struct {
	RevenueCAGR       float64
	PATCAGR           float64
	OperatingMargin   float64
	RevenueImproving  bool
	MarginExpanding   bool
	MarginCompressing bool
}

// Prompt is the input to one enrichment attempt.
type Prompt struct {
	Symbol    string
	Sector    string
	Industry  string
	MarketCap decimal.Decimal // rupees
	Metrics   Metrics
}

// UserPrompt renders the request sent to an LLM.
func (p Prompt) UserPrompt() string {
	revenueTrend := "Stable/Declining"
	if p.Metrics.RevenueImproving {
		revenueTrend = "Improving"
	}
	marginTrend := "Stable/Contracting"
	if p.Metrics.MarginExpanding {
		marginTrend = "Expanding"
	}

	return fmt.Sprintf(`As a fundamental analyst, analyze this Indian stock for multibagger potential:

Company: %s
Sector: %s
Industry: %s
Market Cap: ₹%s

Financial Metrics:
- Revenue CAGR (5Y): %.1f%%
- PAT CAGR (5Y): %.1f%%
- Operating Margin: %.1f%%
- Revenue Trend: %s
- Margin Trend: %s

Provide:
1. Top 3 fundamental strengths for multibagger potential
2. Top 2 key risks to watch
3. Confidence score (0-1) for multibagger potential
4. Score adjustment (-0.5 to +0.5) based on qualitative factors

Focus on: scalability, competitive moats, management execution, sector tailwinds.

Respond ONLY with valid JSON in this exact format:
{
  "strengths": ["strength1", "strength2", "strength3"],
  "risks": ["risk1", "risk2"],
  "confidence": 0.75,
  "ai_score_adjustment": 0.3,
  "reasoning": "brief explanation"
}`,
		p.Symbol,
		orUnknown(p.Sector),
		orUnknown(p.Industry),
		p.MarketCap.StringFixed(0),
		p.Metrics.RevenueCAGR,
		p.Metrics.PATCAGR,
		p.Metrics.OperatingMargin,
		revenueTrend,
		marginTrend,
	)
}

// Insight is the qualitative output of a provider.
type Insight struct {
	Strengths       []string `json:"strengths"`
	Risks           []string `json:"risks"`
	Confidence      float64  `json:"confidence"`
	ScoreAdjustment float64  `json:"ai_score_adjustment"`
	Reasoning       string   `json:"reasoning"`
	Provider        string   `json:"provider"`
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ParseInsight extracts the JSON object from an LLM reply. Replies that hold
// no parseable object yield a neutral insight rather than an error.
func ParseInsight(text string) *Insight {
	raw := jsonObjectPattern.FindString(text)
	if raw == "" {
		return unparsedInsight()
	}

	var insight Insight
	if err := json.Unmarshal([]byte(raw), &insight); err != nil {
		return unparsedInsight()
	}
	insight.normalize()
	return &insight
}

func unparsedInsight() *Insight {
	return &Insight{
		Strengths:  []string{"AI analysis completed"},
		Risks:      []string{"Monitor market conditions"},
		Confidence: 0.5,
		Reasoning:  "AI response parsing failed",
	}
}

// normalize bounds the adjustment and confidence and trims the lists.
func (i *Insight) normalize() {
	i.ScoreAdjustment = clamp(i.ScoreAdjustment, -maxAdjustment, maxAdjustment)
	i.Confidence = clamp(i.Confidence, 0, 1)
	i.Strengths = trimList(i.Strengths, maxStrengths)
	i.Risks = trimList(i.Risks, maxRisks)
}

func trimList(items []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
