package agents

import (
	"context"
	"fmt"
	"strings"

	"multibagger/models"
)

const (
	PolicyStrong   = "STRONG"
	PolicyModerate = "MODERATE"
	PolicyWeak     = "WEAK"

	HorizonLong   = "LONG"
	HorizonMedium = "MEDIUM"
	HorizonShort  = "SHORT"

	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

type policyTheme struct {
	name    string
	signal  Signal
	points  int
	horizon string
}

// policyThemes is ordered from the strongest tailwind down.
var policyThemes = []policyTheme{
	{name: "Structural infrastructure & defence", signal: SignalThemeStructural, points: 4, horizon: HorizonLong},
	{name: "Manufacturing incentives", signal: SignalThemeManufacturing, points: 3, horizon: HorizonMedium},
	{name: "Consumption & financials", signal: SignalThemeConsumption, points: 1, horizon: HorizonShort},
}

// PolicyAgent estimates government policy tailwinds from the company's
// sector and recent news flow.
type PolicyAgent struct {
	classifier TextClassifier
}

// NewPolicyAgent creates a PolicyAgent. A nil classifier uses the default
// keyword tables.
func NewPolicyAgent(classifier TextClassifier) *PolicyAgent {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &PolicyAgent{classifier: classifier}
}

func (a *PolicyAgent) Name() string {
	return "Policy Analyst"
}

func (a *PolicyAgent) Type() models.AgentType {
	return models.AgentTypePolicy
}

func (a *PolicyAgent) Analyze(ctx context.Context, snapshot *models.StockSnapshot) (models.AgentResult, error) {
	result := newResult(models.AgentTypePolicy, snapshot.Symbol)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	info := snapshot.Info
	profile := a.classifier.Classify(strings.Join([]string{info.Sector, info.Industry, info.BusinessSummary}, " "))

	detail := models.PolicyDetail{
		Themes:       []string{},
		Horizon:      HorizonShort,
		Sentiment:    SentimentNeutral,
		ArticleCount: len(snapshot.News),
	}
	for _, theme := range policyThemes {
		if !profile.Has(theme.signal) {
			continue
		}
		detail.Themes = append(detail.Themes, theme.name)
		if theme.points > detail.ThemePoints {
			detail.ThemePoints = theme.points
			detail.Horizon = theme.horizon
		}
	}

	for _, article := range snapshot.News {
		signals := a.classifier.Classify(article.Title + " " + article.Description)
		detail.SentimentScore += signals.Count(SignalPositiveNews) - signals.Count(SignalNegativeNews)
		detail.PolicyMentions += signals.Count(SignalPolicyKeyword)
	}

	points := detail.ThemePoints
	var evidence, risks []string
	if len(detail.Themes) > 0 {
		evidence = append(evidence, "Policy theme: "+detail.Themes[0])
	}
	switch {
	case detail.SentimentScore > 2:
		detail.Sentiment = SentimentPositive
		points += 2
		evidence = append(evidence, "Positive news sentiment")
	case detail.SentimentScore < -2:
		detail.Sentiment = SentimentNegative
		points--
		risks = append(risks, "Negative news sentiment")
	}
	switch {
	case detail.PolicyMentions >= 2:
		points += 2
		evidence = append(evidence, fmt.Sprintf("Policy coverage in news (%d mentions)", detail.PolicyMentions))
	case detail.PolicyMentions == 1:
		points++
		evidence = append(evidence, "Policy mention in news")
	}

	switch {
	case points >= 6:
		detail.Strength = PolicyStrong
	case points >= 3:
		detail.Strength = PolicyModerate
	default:
		detail.Strength = PolicyWeak
	}

	result.Score = NormalizeScore(float64(points))
	result.Label = detail.Strength
	result.Evidence = capList(evidence, maxEvidence)
	result.Risks = capList(risks, maxRisks)
	result.Policy = &detail
	return result, nil
}
