package models

import "time"

type AgentType string

const (
	AgentTypeFundamental AgentType = "fundamental"
	AgentTypeManagement  AgentType = "management"
	AgentTypeTechnical   AgentType = "technical"
	AgentTypeSmartMoney  AgentType = "smart_money"
	AgentTypePolicy      AgentType = "policy"
)

// AllAgentTypes lists the scorers every stock must pass through.
func AllAgentTypes() []AgentType {
	return []AgentType{
		AgentTypeFundamental,
		AgentTypeManagement,
		AgentTypeTechnical,
		AgentTypeSmartMoney,
		AgentTypePolicy,
	}
}

// AgentResult is the output of one scorer for one stock. Score is bounded to
// [0, 10]. Label carries the agent's categorical output: technical stage,
// policy strength, shareholder alignment or accumulation trend. Exactly one
// of the detail pointers is set, matching AgentType.
type AgentResult struct {
	AgentType AgentType `json:"agent_type"`
	Symbol    string    `json:"symbol"`
	Score     float64   `json:"score"`
	Label     string    `json:"label,omitempty"`
	Evidence  []string  `json:"evidence"`
	Risks     []string  `json:"risks"`

	Fundamental *FundamentalDetail `json:"fundamental,omitempty"`
	Management  *ManagementDetail  `json:"management,omitempty"`
	Technical   *TechnicalDetail   `json:"technical,omitempty"`
	SmartMoney  *SmartMoneyDetail  `json:"smart_money,omitempty"`
	Policy      *PolicyDetail      `json:"policy,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Summary flattens the result into a map for run logs.
func (r AgentResult) Summary() map[string]any {
	out := map[string]any{
		"score":    r.Score,
		"evidence": r.Evidence,
		"risks":    r.Risks,
	}
	if r.Label != "" {
		out["label"] = r.Label
	}
	switch {
	case r.Fundamental != nil:
		out["detail"] = r.Fundamental
	case r.Management != nil:
		out["detail"] = r.Management
	case r.Technical != nil:
		out["detail"] = r.Technical
	case r.SmartMoney != nil:
		out["detail"] = r.SmartMoney
	case r.Policy != nil:
		out["detail"] = r.Policy
	}
	return out
}

// FundamentalSubScores breaks the fundamental score into its dimensions.
type FundamentalSubScores struct {
	Revenue         float64 `json:"revenue"`
	Profitability   float64 `json:"profitability"`
	Efficiency      float64 `json:"efficiency"`
	Debt            float64 `json:"debt"`
	Cashflow        float64 `json:"cashflow"`
	InflectionBonus float64 `json:"inflection_bonus"`
	AIAdjustment    float64 `json:"ai_adjustment"`
}

type FundamentalDetail struct {
	RevenueCAGR      float64              `json:"revenue_cagr_5y"`
	PATCAGR          float64              `json:"pat_cagr_5y"`
	LatestMargin     float64              `json:"latest_operating_margin"`
	LatestROCE       float64              `json:"latest_roce"`
	LatestROE        float64              `json:"latest_roe"`
	DebtToEquity     float64              `json:"debt_to_equity"`
	OCFToPAT         float64              `json:"ocf_to_pat_ratio"`
	AvgCapex         float64              `json:"avg_capex"`
	CapexTrend       string               `json:"capex_trend"`
	RevenueImproving bool                 `json:"revenue_improving"`
	MarginExpanding  bool                 `json:"margin_expanding"`
	SubScores        FundamentalSubScores `json:"sub_scores"`
	AIProvider       string               `json:"ai_provider_used"`
	AIConfidence     float64              `json:"ai_confidence"`
	AIReasoning      string               `json:"ai_reasoning,omitempty"`
	InsufficientData bool                 `json:"insufficient_data,omitempty"`
	AIProvidersTried []string             `json:"ai_providers_tried,omitempty"`
}

type ManagementDetail struct {
	PromoterHoldingPercent      float64 `json:"promoter_holding_percent"`
	InstitutionalHoldingPercent float64 `json:"institutional_holding_percent"`
	PromoterScore               float64 `json:"promoter_score"`
	GovernanceScore             float64 `json:"governance_score"`
	TrackRecordScore            float64 `json:"track_record_score"`
	TransparencyScore           float64 `json:"transparency_score"`
	CompanyAgeYears             int     `json:"company_age_years"`
	Alignment                   string  `json:"minority_shareholder_alignment"`
}

type TechnicalDetail struct {
	Stage               string  `json:"technical_stage"`
	BaseFormationMonths float64 `json:"base_formation_months"`
	BaseQuality         string  `json:"base_quality"`
	BreakoutConfirmed   bool    `json:"breakout_confirmed"`
	BreakoutStrength    string  `json:"breakout_strength"`
	FalseBreakout       bool    `json:"false_breakout"`
	RelativeStrength    float64 `json:"relative_strength_vs_nifty"`
	VolumeExpansion     bool    `json:"volume_expansion"`
	VolumeTrend         string  `json:"volume_trend"`
	TrendDirection      string  `json:"trend_direction"`
	TrendStrength       string  `json:"trend_strength"`
	SupportLevel        float64 `json:"support_level"`
	ResistanceLevel     float64 `json:"resistance_level"`
	CurrentPrice        float64 `json:"current_price"`
	RiskReward          string  `json:"risk_reward_ratio"`
}

type SmartMoneyDetail struct {
	FIINet30d                   float64  `json:"fii_net_investment_30d"`
	DIINet30d                   float64  `json:"dii_net_investment_30d"`
	InstitutionalHoldingPercent float64  `json:"institutional_holding_percent"`
	MFHoldingCount              int      `json:"mf_holding_count"`
	BulkDeals30d                int      `json:"bulk_deals_30d"`
	AccumulationTrend           string   `json:"accumulation_trend"`
	InvestorsDetected           []string `json:"investors_detected"`
}

type PolicyDetail struct {
	Strength       string   `json:"policy_tailwind_strength"`
	Horizon        string   `json:"time_horizon"`
	Themes         []string `json:"themes"`
	ThemePoints    int      `json:"theme_points"`
	Sentiment      string   `json:"news_sentiment"`
	SentimentScore int      `json:"sentiment_score"`
	PolicyMentions int      `json:"policy_mentions"`
	ArticleCount   int      `json:"article_count"`
}

// StockAnalysis bundles the five agent results for one stock.
type StockAnalysis struct {
	Symbol  string                    `json:"symbol"`
	Info    CompanyInfo               `json:"info"`
	Results map[AgentType]AgentResult `json:"results"`
}

// Result returns the result for an agent type.
func (a StockAnalysis) Result(t AgentType) (AgentResult, bool) {
	r, ok := a.Results[t]
	return r, ok
}
