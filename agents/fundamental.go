package agents

import (
	"context"
	"fmt"
	"math"
	"time"

	"multibagger/enrichment"
	"multibagger/models"
	"multibagger/observability"
)

const (
	minRevenuePeriods      = 3
	insufficientFinancials = "Insufficient financial data"
	noAIProvider           = "None"
)

// FundamentalScorecard is the numeric part of a fundamental analysis, before
// any enrichment is applied.
type FundamentalScorecard struct {
	Detail   models.FundamentalDetail
	Score    float64
	Evidence []string
	RedFlags []string
}

// FundamentalAgent scores growth, profitability, capital efficiency, leverage
// and cash conversion from the statement history.
type FundamentalAgent struct {
	enricher Enricher
}

// NewFundamentalAgent creates a FundamentalAgent. A nil enricher disables
// qualitative enrichment.
func NewFundamentalAgent(enricher Enricher) *FundamentalAgent {
	return &FundamentalAgent{enricher: enricher}
}

func (a *FundamentalAgent) Name() string {
	return "Fundamental Analyst"
}

func (a *FundamentalAgent) Type() models.AgentType {
	return models.AgentTypeFundamental
}

// Analyze performs fundamental analysis on a snapshot
func (a *FundamentalAgent) Analyze(ctx context.Context, snapshot *models.StockSnapshot) (models.AgentResult, error) {
	result := newResult(models.AgentTypeFundamental, snapshot.Symbol)

	card, err := ScoreFundamentals(snapshot.Financials, snapshot.BalanceSheet, snapshot.CashFlow)
	if err != nil {
		return result, fmt.Errorf("%s: %w", snapshot.Symbol, err)
	}

	detail := card.Detail
	evidence := card.Evidence
	redFlags := card.RedFlags
	score := card.Score

	if !detail.InsufficientData && a.enricher != nil {
		res := a.enricher.Enrich(ctx, enrichment.Prompt{
			Symbol:    snapshot.Symbol,
			Sector:    snapshot.Info.Sector,
			Industry:  snapshot.Info.Industry,
			MarketCap: snapshot.Info.MarketCap,
			Metrics: enrichment.Metrics{
				RevenueCAGR:       detail.RevenueCAGR,
				PATCAGR:           detail.PATCAGR,
				OperatingMargin:   detail.LatestMargin,
				RevenueImproving:  detail.RevenueImproving,
				MarginExpanding:   detail.MarginExpanding,
				MarginCompressing: hasFlag(redFlags, flagMarginCompression),
			},
		})
		if insight := res.Insight; insight != nil {
			evidence = append(evidence, insight.Strengths...)
			redFlags = append(redFlags, insight.Risks...)
			detail.SubScores.AIAdjustment = insight.ScoreAdjustment
			detail.AIProvider = insight.Provider
			detail.AIConfidence = insight.Confidence
			detail.AIReasoning = insight.Reasoning
			score += insight.ScoreAdjustment
		}
		detail.AIProvidersTried = res.Tried
	}

	result.Score = round2(NormalizeScore(score))
	result.Evidence = capList(evidence, maxEvidence)
	result.Risks = capList(redFlags, maxRisks)
	result.Fundamental = &detail

	observability.Debug("fundamental analysis completed",
		"symbol", snapshot.Symbol,
		"score", result.Score,
		"ai_provider", detail.AIProvider)

	return result, nil
}

const (
	flagDecliningRevenue  = "Declining revenue trend"
	flagMarginCompression = "Margin compression trend"
	flagHighDebt          = "High debt levels"
	flagPoorCashflow      = "Poor cash conversion"
)

// ScoreFundamentals computes the deterministic fundamental score. It fails
// only when a statement holds a non-finite value.
func ScoreFundamentals(financials, balance, cashflow models.StatementSeries) (FundamentalScorecard, error) {
	for name, series := range map[string]models.StatementSeries{
		"financials":    financials,
		"balance sheet": balance,
		"cash flow":     cashflow,
	} {
		if field, period, found := series.NonFinite(); found {
			return FundamentalScorecard{}, fmt.Errorf("%w: %s %q for %s is not finite",
				ErrMalformedInput, name, field, period.Format("2006-01-02"))
		}
	}

	financials = financials.Sorted()
	balance = balance.Sorted()
	cashflow = cashflow.Sorted()

	revenues := fieldValues(financials, models.FieldTotalRevenue)
	if len(revenues) < minRevenuePeriods {
		return FundamentalScorecard{
			Detail: models.FundamentalDetail{
				CapexTrend:       "stable",
				AIProvider:       noAIProvider,
				InsufficientData: true,
			},
			Evidence: []string{},
			RedFlags: []string{insufficientFinancials},
		}, nil
	}

	rev := analyzeRevenue(revenues)
	prof := analyzeProfitability(financials)
	eff := analyzeEfficiency(financials, balance)
	debt := analyzeDebt(balance)
	cash := analyzeCashflow(cashflow, financials)
	avgCapex, capexTrend := analyzeCapex(cashflow)

	var evidence, flags []string
	if rev.improving {
		evidence = append(evidence, fmt.Sprintf("Revenue CAGR improving: %.1f%%", rev.cagr))
	}
	if rev.declining {
		flags = append(flags, flagDecliningRevenue)
	}
	if prof.expanding {
		evidence = append(evidence, fmt.Sprintf("Operating margin expanding: %.1f%%", prof.latestMargin))
	}
	if prof.compressing {
		flags = append(flags, flagMarginCompression)
	}
	if eff.roceImproving {
		evidence = append(evidence, fmt.Sprintf("ROCE improving: %.1f%%", eff.roce))
	}
	if eff.roeImproving {
		evidence = append(evidence, fmt.Sprintf("ROE improving: %.1f%%", eff.roe))
	}
	if debt.reducing {
		evidence = append(evidence, "Debt reduction trend")
	}
	if debt.high {
		flags = append(flags, flagHighDebt)
	}
	if cash.strong {
		evidence = append(evidence, "Strong operating cash flow")
	}
	if cash.poor {
		flags = append(flags, flagPoorCashflow)
	}

	sub := models.FundamentalSubScores{
		Revenue:       scoreRevenue(rev),
		Profitability: scoreProfitability(prof),
		Efficiency:    scoreEfficiency(eff),
		Debt:          scoreDebt(debt),
		Cashflow:      scoreCashflow(cash),
	}
	if rev.improving && prof.expanding {
		sub.InflectionBonus += 0.5
	}
	if eff.roceImproving && eff.roeImproving {
		sub.InflectionBonus += 0.5
	}

	total := sub.Revenue + sub.Profitability + sub.Efficiency + sub.Debt + sub.Cashflow + sub.InflectionBonus

	return FundamentalScorecard{
		Detail: models.FundamentalDetail{
			RevenueCAGR:      round2(rev.cagr),
			PATCAGR:          round2(prof.patCAGR),
			LatestMargin:     round2(prof.latestMargin),
			LatestROCE:       round2(eff.roce),
			LatestROE:        round2(eff.roe),
			DebtToEquity:     round2(debt.ratio),
			OCFToPAT:         round2(cash.ratio),
			AvgCapex:         avgCapex,
			CapexTrend:       capexTrend,
			RevenueImproving: rev.improving,
			MarginExpanding:  prof.expanding,
			SubScores:        sub,
			AIProvider:       noAIProvider,
		},
		Score:    total,
		Evidence: evidence,
		RedFlags: flags,
	}, nil
}

// fieldValues returns the reported values of field in period order.
func fieldValues(series models.StatementSeries, field string) []float64 {
	out := make([]float64, 0, len(series))
	for _, st := range series {
		if v, ok := st.Value(field); ok {
			out = append(out, v)
		}
	}
	return out
}

type revenueAnalysis struct {
	cagr      float64
	improving bool
	declining bool
}

func analyzeRevenue(revenues []float64) revenueAnalysis {
	growth := cagr(lastN(revenues, 5))

	recent := lastN(revenues, 3)
	var prior []float64
	if len(revenues) >= 6 {
		prior = revenues[len(revenues)-6 : len(revenues)-3]
	} else {
		prior = revenues[:3]
	}
	improving := mean(recent) >= 1.1*mean(prior)

	declining := growth < -5
	if v, ok := back(revenues, 2); ok && revenues[len(revenues)-1] < 0.9*v {
		declining = true
	}

	return revenueAnalysis{cagr: growth, improving: improving, declining: declining}
}

type profitabilityAnalysis struct {
	patCAGR      float64
	latestMargin float64
	expanding    bool
	compressing  bool
}

func analyzeProfitability(financials models.StatementSeries) profitabilityAnalysis {
	var out profitabilityAnalysis
	out.patCAGR = cagr(lastN(fieldValues(financials, models.FieldNetIncome), 5))

	var margins []float64
	for _, st := range financials {
		rev, ok := st.Value(models.FieldTotalRevenue)
		if !ok || rev <= 0 {
			continue
		}
		margins = append(margins, st.ValueOr(models.FieldOperatingIncome, 0)/rev*100)
	}
	if len(margins) > 0 {
		out.latestMargin = margins[len(margins)-1]
	}
	if len(margins) >= 3 {
		recent, older := mean(lastN(margins, 2)), mean(margins[:2])
		out.expanding = recent > older+1
		out.compressing = recent < older-1
	}
	return out
}

type efficiencyAnalysis struct {
	roce, roe                   float64
	roceImproving, roeImproving bool
}

func analyzeEfficiency(financials, balance models.StatementSeries) efficiencyAnalysis {
	var roce, roe []float64
	for _, st := range financials {
		bs, ok := balance.Lookup(st.Period)
		if !ok {
			continue
		}
		assets := bs.ValueOr(models.FieldTotalAssets, 0)
		equity := bs.ValueOr(models.FieldStockholdersEquity, 0)
		if assets <= 0 || equity <= 0 {
			continue
		}
		ni := st.ValueOr(models.FieldNetIncome, 0)
		roce = append(roce, ni/assets*100)
		roe = append(roe, ni/equity*100)
	}

	var out efficiencyAnalysis
	if len(roce) < 2 {
		return out
	}
	out.roce = roce[len(roce)-1]
	out.roe = roe[len(roe)-1]
	if v, ok := back(roce, 2); ok {
		out.roceImproving = out.roce > v
	}
	if v, ok := back(roe, 2); ok {
		out.roeImproving = out.roe > v
	}
	return out
}

type debtAnalysis struct {
	ratio    float64
	reducing bool
	high     bool
}

func analyzeDebt(balance models.StatementSeries) debtAnalysis {
	var out debtAnalysis
	if len(balance) < 2 {
		return out
	}
	ratios := make([]float64, 0, len(balance))
	for _, st := range balance {
		equity := math.Max(st.ValueOr(models.FieldStockholdersEquity, 1), 1)
		ratios = append(ratios, st.ValueOr(models.FieldTotalDebt, 0)/equity)
	}
	out.ratio = ratios[len(ratios)-1]
	if v, ok := back(ratios, 2); ok {
		out.reducing = out.ratio < v
	}
	out.high = out.ratio > 1.0
	return out
}

type cashflowAnalysis struct {
	ratio  float64
	strong bool
	poor   bool
}

func analyzeCashflow(cashflow, financials models.StatementSeries) cashflowAnalysis {
	var ratios []float64
	for _, cf := range cashflow {
		st, ok := financials.Lookup(cf.Period)
		if !ok {
			continue
		}
		ni := st.ValueOr(models.FieldNetIncome, 0)
		if ni == 0 {
			ratios = append(ratios, 0)
			continue
		}
		ratios = append(ratios, cf.ValueOr(models.FieldOperatingCashFlow, 0)/ni)
	}

	var out cashflowAnalysis
	if len(ratios) < 2 {
		return out
	}
	out.ratio = ratios[len(ratios)-1]
	out.strong = out.ratio > 1.2
	out.poor = out.ratio < 0.8
	return out
}

func analyzeCapex(cashflow models.StatementSeries) (avg float64, trend string) {
	capex := make([]float64, 0, len(cashflow))
	for _, cf := range cashflow {
		capex = append(capex, math.Abs(cf.ValueOr(models.FieldCapitalExpenditures, 0)))
	}
	trend = "stable"
	if v, ok := back(capex, 2); ok && capex[len(capex)-1] > v {
		trend = "increasing"
	}
	return mean(capex), trend
}

func scoreRevenue(a revenueAnalysis) float64 {
	switch {
	case a.declining:
		return 0
	case a.cagr > 15 && a.improving:
		return 2.0
	case a.cagr > 10 || a.improving:
		return 1.5
	case a.cagr > 5:
		return 1.0
	default:
		return 0.5
	}
}

func scoreProfitability(a profitabilityAnalysis) float64 {
	switch {
	case a.compressing:
		return 0
	case a.patCAGR > 20 && a.expanding:
		return 2.0
	case a.patCAGR > 10 || a.expanding:
		return 1.5
	case a.patCAGR > 5:
		return 1.0
	default:
		return 0.5
	}
}

func scoreEfficiency(a efficiencyAnalysis) float64 {
	var score float64
	if a.roce > 20 || a.roe > 20 {
		score += 1.0
	} else if a.roce > 15 || a.roe > 15 {
		score += 0.5
	}
	if a.roceImproving || a.roeImproving {
		score += 1.0
	}
	return capAt(score, 2.0)
}

func scoreDebt(a debtAnalysis) float64 {
	switch {
	case a.high:
		return 0
	case a.ratio < 0.3 && a.reducing:
		return 2.0
	case a.ratio < 0.5 || a.reducing:
		return 1.5
	case a.ratio < 0.8:
		return 1.0
	default:
		return 0.5
	}
}

func scoreCashflow(a cashflowAnalysis) float64 {
	switch {
	case a.poor:
		return 0
	case a.strong && a.ratio > 1.5:
		return 2.0
	case a.strong || a.ratio > 1.0:
		return 1.5
	case a.ratio > 0.8:
		return 1.0
	default:
		return 0.5
	}
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

// snapshotNow is the reference time for recency checks.
func snapshotNow(snapshot *models.StockSnapshot) time.Time {
	if !snapshot.FetchedAt.IsZero() {
		return snapshot.FetchedAt
	}
	return time.Now()
}
