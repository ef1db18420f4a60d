package agents

import (
	"context"
	"fmt"
	"math"

	"multibagger/models"
)

// Technical stages, ordered by how attractive the entry is.
const (
	StageBreakout = "BREAKOUT"
	StageBase     = "BASE"
	StageExtended = "EXTENDED"
)

// Risk/reward bands.
const (
	RiskReward3Plus = "1:3+"
	RiskReward2     = "1:2"
	RiskReward15    = "1:1.5"
	RiskReward1     = "1:1"
)

const (
	tradingYear      = 252
	tradingMonth     = 21
	breakoutLookback = 10
	maxBaseRange     = 30.0 // percent
)

var stageScores = map[string]float64{
	StageBreakout: 9,
	StageBase:     7,
	StageExtended: 4,
}

// TechnicalAgent checks whether the market structure confirms the
// fundamentals: a long base, a clean breakout and relative strength.
type TechnicalAgent struct{}

func NewTechnicalAgent() *TechnicalAgent {
	return &TechnicalAgent{}
}

func (a *TechnicalAgent) Name() string {
	return "Technical Analyst"
}

func (a *TechnicalAgent) Type() models.AgentType {
	return models.AgentTypeTechnical
}

func (a *TechnicalAgent) Analyze(ctx context.Context, snapshot *models.StockSnapshot) (models.AgentResult, error) {
	result := newResult(models.AgentTypeTechnical, snapshot.Symbol)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	for _, bar := range snapshot.Prices {
		if !finite(bar.Open, bar.High, bar.Low, bar.Close, bar.Volume) {
			return result, fmt.Errorf("%s: %w: price bar %s is not finite",
				snapshot.Symbol, ErrMalformedInput, bar.Date.Format("2006-01-02"))
		}
	}

	detail := AnalyzeTechnicals(snapshot.Prices, snapshot.Benchmark, snapshot.CurrentPrice)

	var evidence, risks []string
	switch detail.BaseQuality {
	case "EXCELLENT", "GOOD":
		evidence = append(evidence, fmt.Sprintf("%.0f-month base formation (%s)", detail.BaseFormationMonths, detail.BaseQuality))
	}
	if detail.BreakoutConfirmed {
		evidence = append(evidence, fmt.Sprintf("Breakout above %.2f (%s)", detail.ResistanceLevel, detail.BreakoutStrength))
	}
	if detail.RelativeStrength > 0 {
		evidence = append(evidence, fmt.Sprintf("Outperforming NIFTY by %.1f%%", detail.RelativeStrength))
	}
	if detail.VolumeExpansion {
		evidence = append(evidence, "Volume expansion")
	}
	if detail.TrendDirection == "UPTREND" {
		evidence = append(evidence, "Price above 50 and 200 day averages")
	}
	if detail.FalseBreakout {
		risks = append(risks, "False breakout below resistance")
	}
	if detail.Stage == StageExtended {
		risks = append(risks, "Price extended more than 50% above breakout")
	}
	if detail.TrendDirection == "DOWNTREND" {
		risks = append(risks, "Price below 50 and 200 day averages")
	}

	result.Score = NormalizeScore(stageScores[detail.Stage])
	result.Label = detail.Stage
	result.Evidence = capList(evidence, maxEvidence)
	result.Risks = capList(risks, maxRisks)
	result.Technical = &detail
	return result, nil
}

// AnalyzeTechnicals derives the technical structure from daily bars ordered
// oldest first. With less than a year of history the stock is treated as
// still basing.
func AnalyzeTechnicals(prices, benchmark []models.PriceBar, currentPrice float64) models.TechnicalDetail {
	detail := models.TechnicalDetail{
		Stage:            StageBase,
		BaseQuality:      "POOR",
		BreakoutStrength: "NO_BREAKOUT",
		VolumeTrend:      "FLAT",
		TrendDirection:   "SIDEWAYS",
		TrendStrength:    "WEAK",
		RiskReward:       RiskReward1,
	}

	closes := make([]float64, len(prices))
	for i, b := range prices {
		closes[i] = b.Close
	}
	price := currentPrice
	if price <= 0 && len(closes) > 0 {
		price = closes[len(closes)-1]
	}
	detail.CurrentPrice = round2(price)

	if len(prices) < tradingYear {
		return detail
	}

	months := baseFormationMonths(prices)
	detail.BaseFormationMonths = round2(months)
	detail.BaseQuality = baseQuality(months)

	// Resistance is the prior year's high, excluding the bars being tested.
	window := prices[:len(prices)-breakoutLookback]
	highs := make([]float64, 0, tradingYear)
	for _, b := range window[max(0, len(window)-tradingYear):] {
		highs = append(highs, b.High)
	}
	resistance := maxOf(highs)
	detail.ResistanceLevel = round2(resistance)

	lows := make([]float64, 0, tradingYear)
	for _, b := range prices[len(prices)-tradingYear:] {
		lows = append(lows, b.Low)
	}
	support := minOf(lows)
	detail.SupportLevel = round2(support)

	breakout := resistance > 0 && price > resistance*1.02
	if breakout {
		pct := (price - resistance) / resistance * 100
		switch {
		case pct > 10:
			detail.BreakoutStrength = "STRONG"
		case pct > 5:
			detail.BreakoutStrength = "MODERATE"
		default:
			detail.BreakoutStrength = "WEAK"
		}
		for _, c := range lastN(closes, breakoutLookback) {
			if c < resistance*0.98 {
				detail.FalseBreakout = true
				break
			}
		}
	}
	detail.BreakoutConfirmed = breakout && !detail.FalseBreakout

	detail.RelativeStrength = round2(relativeStrength(closes, benchmark))
	detail.VolumeExpansion, detail.VolumeTrend = volumePattern(prices)
	detail.TrendDirection, detail.TrendStrength = trend(closes, price)

	if detail.BreakoutConfirmed && (detail.BaseQuality == "GOOD" || detail.BaseQuality == "EXCELLENT") {
		detail.Stage = StageBreakout
		if (price-resistance)/resistance*100 > 50 {
			detail.Stage = StageExtended
		}
	}

	detail.RiskReward = riskReward(price, support, resistance)
	return detail
}

// baseFormationMonths returns the longest run of days whose trailing year
// traded within a 30% range, in months.
func baseFormationMonths(prices []models.PriceBar) float64 {
	var streak, longest int
	for end := tradingYear; end <= len(prices); end++ {
		hi, lo := math.Inf(-1), math.Inf(1)
		for _, b := range prices[end-tradingYear : end] {
			hi = math.Max(hi, b.High)
			lo = math.Min(lo, b.Low)
		}
		if lo > 0 && (hi-lo)/lo*100 < maxBaseRange {
			streak++
			longest = max(longest, streak)
		} else {
			streak = 0
		}
	}
	return float64(longest) / tradingMonth
}

func baseQuality(months float64) string {
	switch {
	case months >= 36:
		return "EXCELLENT"
	case months >= 24:
		return "GOOD"
	case months >= 12:
		return "FAIR"
	default:
		return "POOR"
	}
}

// relativeStrength is the stock's one-year return minus the benchmark's, in
// percentage points.
func relativeStrength(closes []float64, benchmark []models.PriceBar) float64 {
	if len(benchmark) < tradingYear || len(closes) < tradingYear {
		return 0
	}
	stock := yearReturn(closes)
	bench := make([]float64, len(benchmark))
	for i, b := range benchmark {
		bench[i] = b.Close
	}
	return stock - yearReturn(bench)
}

func yearReturn(closes []float64) float64 {
	start := closes[len(closes)-tradingYear]
	if start == 0 {
		return 0
	}
	return (closes[len(closes)-1] - start) / start * 100
}

func volumePattern(prices []models.PriceBar) (expansion bool, trend string) {
	volumes := make([]float64, len(prices))
	for i, b := range prices {
		volumes[i] = b.Volume
	}
	expansion = mean(lastN(volumes, 63)) > mean(lastN(volumes, tradingYear))*1.5

	recent := mean(lastN(volumes, tradingMonth))
	older := mean(lastN(volumes, 2*tradingMonth)[:tradingMonth])
	switch {
	case recent > older*1.2:
		trend = "INCREASING"
	case recent < older*0.8:
		trend = "DECREASING"
	default:
		trend = "FLAT"
	}
	return expansion, trend
}

func trend(closes []float64, price float64) (direction, strength string) {
	sma50 := mean(lastN(closes, 50))
	sma200 := mean(lastN(closes, 200))
	switch {
	case price > sma50 && sma50 > sma200:
		direction = "UPTREND"
	case price < sma50 && sma50 < sma200:
		direction = "DOWNTREND"
	default:
		direction = "SIDEWAYS"
	}

	recent := lastN(closes, 15)
	moves := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		moves = append(moves, math.Abs(recent[i]-recent[i-1]))
	}
	avgMove := mean(moves)
	last := closes[len(closes)-1]
	switch {
	case avgMove > last*0.02:
		strength = "STRONG"
	case avgMove > last*0.01:
		strength = "MODERATE"
	default:
		strength = "WEAK"
	}
	return direction, strength
}

func riskReward(price, support, resistance float64) string {
	risk := price - support
	if risk <= 0 {
		return RiskReward1
	}
	ratio := (resistance*1.2 - price) / risk
	switch {
	case ratio >= 3:
		return RiskReward3Plus
	case ratio >= 2:
		return RiskReward2
	case ratio >= 1.5:
		return RiskReward15
	default:
		return RiskReward1
	}
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
