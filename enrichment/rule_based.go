package enrichment

import (
	"context"
	"fmt"
	"strings"
)

// sectorHint maps ticker fragments to a sector strength and optional risk.
type sectorHint struct {
	fragments  []string
	strength   string
	risk       string
	confidence float64
}

var sectorHints = []sectorHint{
	{fragments: []string{"TCS", "INFY", "WIPRO", "TECH"}, strength: "Technology sector tailwinds", confidence: 0.05},
	{fragments: []string{"HDFC", "ICICI", "SBI", "BANK"}, strength: "Banking sector fundamentals", risk: "Interest rate sensitivity"},
	{fragments: []string{"SUN", "CIPLA", "REDDY", "PHARMA"}, strength: "Healthcare sector growth", risk: "Regulatory changes"},
}

// RuleBasedProvider derives an insight from the numeric metrics alone. It
// never fails and terminates every Chain.
type RuleBasedProvider struct{}

func NewRuleBasedProvider() *RuleBasedProvider {
	return &RuleBasedProvider{}
}

func (p *RuleBasedProvider) Name() string {
	return FallbackProviderName
}

func (p *RuleBasedProvider) AttemptEnrich(ctx context.Context, prompt Prompt) (*Insight, error) {
	return p.Derive(prompt), nil
}

// Derive builds the rule-based insight for prompt.
func (p *RuleBasedProvider) Derive(prompt Prompt) *Insight {
	var strengths, risks []string
	confidence := 0.5
	adjustment := 0.0
	m := prompt.Metrics

	switch {
	case m.RevenueCAGR > 15:
		strengths = append(strengths, fmt.Sprintf("Strong revenue growth: %.1f%% CAGR", m.RevenueCAGR))
		confidence += 0.1
		adjustment += 0.3
	case m.RevenueCAGR > 10:
		strengths = append(strengths, fmt.Sprintf("Decent revenue growth: %.1f%% CAGR", m.RevenueCAGR))
		confidence += 0.05
		adjustment += 0.1
	case m.RevenueCAGR < 0:
		risks = append(risks, "Declining revenue trend")
		confidence -= 0.1
		adjustment -= 0.2
	}

	switch {
	case m.MarginExpanding:
		strengths = append(strengths, "Operating margin expansion")
		confidence += 0.1
		adjustment += 0.2
	case m.MarginCompressing:
		risks = append(risks, "Margin compression pressure")
		confidence -= 0.1
		adjustment -= 0.2
	}

	if m.RevenueImproving {
		strengths = append(strengths, "Recent revenue acceleration")
		confidence += 0.1
		adjustment += 0.2
	}

	symbol := strings.ToUpper(prompt.Symbol)
	if strings.HasSuffix(symbol, ".NS") {
		for _, hint := range sectorHints {
			if !containsAny(symbol, hint.fragments) {
				continue
			}
			strengths = append(strengths, hint.strength)
			if hint.risk != "" {
				risks = append(risks, hint.risk)
			}
			confidence += hint.confidence
			break
		}
	}

	if len(strengths) == 0 {
		strengths = []string{"Established market presence", "Financial data available"}
	}
	if len(risks) == 0 {
		risks = []string{"Market volatility", "Economic cycles"}
	}

	return &Insight{
		Strengths:       trimList(strengths, maxStrengths),
		Risks:           trimList(risks, maxRisks),
		Confidence:      clamp(confidence, 0.3, 0.8),
		ScoreAdjustment: clamp(adjustment, -maxAdjustment, maxAdjustment),
		Reasoning:       fmt.Sprintf("Fallback analysis for %s - AI providers unavailable", prompt.Symbol),
		Provider:        FallbackProviderName,
	}
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
