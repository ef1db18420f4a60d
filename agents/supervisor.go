package agents

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"multibagger/config"
	"multibagger/models"
	"multibagger/observability"

	"github.com/samber/lo"
)

const (
	maxTriggers      = 5
	maxVerdictRisks  = 4
	maxRejectedShown = 10
)

// Weights are the supervisor's per-agent weights. They are expected to sum
// to 1; config validation enforces that, the supervisor does not.
type Weights struct {
	Fundamentals float64 `json:"fundamentals"`
	Management   float64 `json:"management"`
	Policy       float64 `json:"policy_macro"`
	SmartMoney   float64 `json:"smart_money"`
	Technicals   float64 `json:"technicals"`
}

// Thresholds bucket the weighted probability: rejection < watchlist < multibagger.
type Thresholds struct {
	Multibagger float64 `json:"multibagger_threshold"`
	Watchlist   float64 `json:"watchlist_threshold"`
	Rejection   float64 `json:"rejection_threshold"`
}

func DefaultWeights() Weights {
	return Weights{Fundamentals: 0.35, Management: 0.15, Policy: 0.20, SmartMoney: 0.15, Technicals: 0.15}
}

func DefaultThresholds() Thresholds {
	return Thresholds{Multibagger: 0.60, Watchlist: 0.45, Rejection: 0.30}
}

var (
	technicalStageWeights = map[string]float64{
		StageBreakout: 0.9,
		StageBase:     0.7,
		StageExtended: 0.4,
	}
	riskRewardMultipliers = map[string]float64{
		RiskReward3Plus: 1.2,
		RiskReward2:     1.1,
		RiskReward15:    1.0,
		RiskReward1:     0.95,
	}
	policyStrengthWeights = map[string]float64{
		PolicyStrong:   0.9,
		PolicyModerate: 0.7,
		PolicyWeak:     0.4,
	}
	horizonMultipliers = map[string]float64{
		HorizonLong:   1.1,
		HorizonMedium: 1.0,
		HorizonShort:  0.9,
	}
)

// Supervisor combines the five agent results for each stock into a weighted
// multibagger probability and a ranked, bucketed report.
type Supervisor struct {
	weights    Weights
	thresholds Thresholds
	consensus  ConsensusStrategy
	now        func() time.Time
}

// NewSupervisor creates a Supervisor. Weights and thresholds are copied and
// never change afterwards.
func NewSupervisor(weights Weights, thresholds Thresholds, consensus ConsensusStrategy) *Supervisor {
	if consensus == nil {
		consensus = NewDefaultConsensus()
	}
	return &Supervisor{
		weights:    weights,
		thresholds: thresholds,
		consensus:  consensus,
		now:        time.Now,
	}
}

// NewSupervisorFromConfig builds a Supervisor from the scoring configuration.
func NewSupervisorFromConfig(cfg config.ScoringConfig) *Supervisor {
	return NewSupervisor(
		Weights{
			Fundamentals: cfg.WeightFundamentals,
			Management:   cfg.WeightManagement,
			Policy:       cfg.WeightPolicy,
			SmartMoney:   cfg.WeightSmartMoney,
			Technicals:   cfg.WeightTechnicals,
		},
		Thresholds{
			Multibagger: cfg.MultibaggerThreshold,
			Watchlist:   cfg.WatchlistThreshold,
			Rejection:   cfg.RejectionThreshold,
		},
		ConsensusFromName(cfg.ConsensusStrategy),
	)
}

func (s *Supervisor) Weights() Weights { return s.weights }

func (s *Supervisor) Thresholds() Thresholds { return s.thresholds }

func (s *Supervisor) Consensus() ConsensusStrategy { return s.consensus }

// Synthesize ranks the analyses. A stock whose bundle cannot be evaluated is
// logged and left out of every bucket.
func (s *Supervisor) Synthesize(ctx context.Context, analyses []models.StockAnalysis) models.DiscoveryReport {
	if len(analyses) == 0 {
		return models.NewEmptyReport(models.ErrNoStocksFound, s.now())
	}

	metrics := observability.GetMetrics()
	var high, watch, rejected []models.StockVerdict
	skipped := 0

	for _, a := range analyses {
		if ctx.Err() != nil {
			skipped++
			metrics.RecordStockSkipped("cancelled")
			continue
		}
		verdict, err := s.Evaluate(a)
		if err != nil {
			skipped++
			observability.Error("skipping stock in synthesis", "symbol", a.Symbol, "error", err)
			metrics.RecordStockSkipped("synthesis_error")
			continue
		}
		metrics.RecordVerdict(string(verdict.Bucket), verdict.Probability)
		switch verdict.Bucket {
		case models.BucketHighProbability:
			high = append(high, verdict)
		case models.BucketWatchlist:
			watch = append(watch, verdict)
		default:
			rejected = append(rejected, verdict)
		}
	}

	processed := len(analyses) - skipped
	if processed == 0 {
		report := models.NewEmptyReport(models.ErrAnalysisFailed, s.now())
		report.Summary.SkippedCount = skipped
		return report
	}

	for _, bucket := range [][]models.StockVerdict{high, watch, rejected} {
		sortByProbability(bucket)
	}

	hardRejected := lo.CountBy(rejected, func(v models.StockVerdict) bool {
		return v.Probability < s.thresholds.Rejection
	})

	observability.Info("synthesis completed",
		"high_conviction", len(high),
		"watchlist", len(watch),
		"rejected", len(rejected),
		"skipped", skipped)

	return models.DiscoveryReport{
		HighProbability: orEmpty(high),
		EarlyWatchlist:  orEmpty(watch),
		RejectedStocks:  orEmpty(lo.Subset(rejected, 0, maxRejectedShown)),
		Summary: models.AnalysisSummary{
			TotalStocksAnalyzed: processed,
			HighConvictionCount: len(high),
			WatchlistCount:      len(watch),
			RejectedCount:       len(rejected),
			HardRejectedCount:   hardRejected,
			SkippedCount:        skipped,
			AnalysisDate:        s.now().Format(models.AnalysisDateLayout),
		},
		Disclaimer: models.Disclaimer,
	}
}

// Evaluate produces the verdict for one stock. It fails when an agent result
// is missing or a score is not finite, and turns a panic into an error.
func (s *Supervisor) Evaluate(a models.StockAnalysis) (verdict models.StockVerdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluating %s: panic: %v", a.Symbol, r)
		}
	}()

	results := make(map[models.AgentType]models.AgentResult, len(models.AllAgentTypes()))
	for _, t := range models.AllAgentTypes() {
		r, ok := a.Result(t)
		if !ok {
			return models.StockVerdict{}, fmt.Errorf("%s: missing %s result", a.Symbol, t)
		}
		if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
			return models.StockVerdict{}, fmt.Errorf("%s: %s score is not finite", a.Symbol, t)
		}
		results[t] = r
	}

	fund := results[models.AgentTypeFundamental]
	mgmt := results[models.AgentTypeManagement]
	tech := results[models.AgentTypeTechnical]
	smart := results[models.AgentTypeSmartMoney]
	policy := results[models.AgentTypePolicy]

	probability := s.Probability(results)

	sector := a.Info.Sector
	if strings.TrimSpace(sector) == "" {
		sector = "Unknown"
	}

	return models.StockVerdict{
		Symbol:            a.Symbol,
		Sector:            sector,
		MarketCap:         a.Info.MarketCapDisplay(),
		Probability:       probability,
		Bucket:            s.bucket(probability),
		ExpectedTimeframe: timeframe(fund.Score, tech.Label, policyHorizon(policy)),
		KeyTriggers:       keyTriggers(fund, mgmt, smart, policy),
		MajorRisks:        majorRisks(fund, mgmt, tech),
		AgentConsensus:    s.consensus.Consensus(probability),
		DetailedScores: models.DetailedScores{
			FundamentalScore: fund.Score,
			ManagementScore:  mgmt.Score,
			TechnicalStage:   tech.Label,
			SmartMoneyScore:  smart.Score,
			PolicyStrength:   policy.Label,
		},
	}, nil
}

// Probability is the weighted score in [0, 1], rounded to three places.
func (s *Supervisor) Probability(results map[models.AgentType]models.AgentResult) float64 {
	w := s.weights
	weighted := results[models.AgentTypeFundamental].Score/10*w.Fundamentals +
		results[models.AgentTypeManagement].Score/10*w.Management +
		normalizeTechnical(results[models.AgentTypeTechnical])*w.Technicals +
		results[models.AgentTypeSmartMoney].Score/10*w.SmartMoney +
		normalizePolicy(results[models.AgentTypePolicy])*w.Policy
	return round3(math.Max(0, math.Min(1, weighted)))
}

func (s *Supervisor) bucket(probability float64) models.Bucket {
	switch {
	case probability >= s.thresholds.Multibagger:
		return models.BucketHighProbability
	case probability >= s.thresholds.Watchlist:
		return models.BucketWatchlist
	default:
		return models.BucketRejected
	}
}

func normalizeTechnical(r models.AgentResult) float64 {
	base, ok := technicalStageWeights[r.Label]
	if !ok {
		base = 0.6
	}
	multiplier := 1.0
	if r.Technical != nil {
		if m, ok := riskRewardMultipliers[r.Technical.RiskReward]; ok {
			multiplier = m
		}
	}
	return math.Min(1, base*multiplier)
}

func normalizePolicy(r models.AgentResult) float64 {
	base, ok := policyStrengthWeights[r.Label]
	if !ok {
		base = 0.4
	}
	multiplier, ok := horizonMultipliers[policyHorizon(r)]
	if !ok {
		multiplier = 1.0
	}
	return math.Min(1, base*multiplier)
}

func policyHorizon(r models.AgentResult) string {
	if r.Policy == nil {
		return ""
	}
	return r.Policy.Horizon
}

func timeframe(fundamentalScore float64, stage, horizon string) string {
	switch {
	case fundamentalScore >= 7 && stage == StageBreakout && (horizon == HorizonMedium || horizon == HorizonLong):
		return "2-3 years"
	case fundamentalScore >= 6 && (stage == StageBreakout || stage == StageBase):
		return "3-5 years"
	default:
		return "5+ years"
	}
}

func keyTriggers(fund, mgmt, smart, policy models.AgentResult) []string {
	triggers := append([]string{}, lo.Subset(fund.Evidence, 0, 2)...)
	triggers = append(triggers, lo.Subset(mgmt.Evidence, 0, 1)...)
	if investors := lo.Subset(smart.Evidence, 0, 2); len(investors) > 0 {
		triggers = append(triggers, "Smart money: "+strings.Join(investors, ", "))
	}
	if policy.Label == PolicyStrong || policy.Label == PolicyModerate {
		triggers = append(triggers, "Policy tailwinds: "+strings.ToLower(policy.Label))
	}
	return capList(triggers, maxTriggers)
}

func majorRisks(fund, mgmt, tech models.AgentResult) []string {
	risks := append([]string{}, lo.Subset(fund.Risks, 0, 2)...)
	if mgmt.Label == AlignmentLow {
		risks = append(risks, "Poor minority shareholder alignment")
	}
	if tech.Label == StageExtended {
		risks = append(risks, "Technically extended levels")
	}
	if len(risks) == 0 {
		risks = append(risks, "Market volatility", "Execution risk")
	}
	return capList(risks, maxVerdictRisks)
}

// sortByProbability orders descending, keeping input order among ties.
func sortByProbability(verdicts []models.StockVerdict) {
	sort.SliceStable(verdicts, func(i, j int) bool {
		return verdicts[i].Probability > verdicts[j].Probability
	})
}

func orEmpty(v []models.StockVerdict) []models.StockVerdict {
	if v == nil {
		return []models.StockVerdict{}
	}
	return v
}
