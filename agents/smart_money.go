package agents

import (
	"context"
	"strings"
	"time"

	"multibagger/models"

	"github.com/shopspring/decimal"
)

const (
	AccumulationYes = "YES"
	AccumulationNo  = "NO"

	bulkDealDateLayout = "2006-01-02"
	recentDealWindow   = 30 * 24 * time.Hour
	maxActiveFunds     = 3
)

// SmartMoneyAgent looks for early institutional footprints: flows, fund
// holdings, bulk deals, private capital and promoter buying.
type SmartMoneyAgent struct {
	classifier TextClassifier
}

// NewSmartMoneyAgent creates a SmartMoneyAgent. A nil classifier uses the
// default keyword tables.
func NewSmartMoneyAgent(classifier TextClassifier) *SmartMoneyAgent {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &SmartMoneyAgent{classifier: classifier}
}

func (a *SmartMoneyAgent) Name() string {
	return "Smart Money Tracker"
}

func (a *SmartMoneyAgent) Type() models.AgentType {
	return models.AgentTypeSmartMoney
}

type flowAnalysis struct {
	netPositive    bool
	strongFII      bool
	strongDII      bool
	significant    bool
	institutionPct float64
}

type fundAnalysis struct {
	increasing   bool
	activeFunds  []string
	qualityFunds int
	total        float64
}

type dealAnalysis struct {
	recent         int
	institutional  bool
	netBuying      bool
	promoterBuying int
}

func (a *SmartMoneyAgent) Analyze(ctx context.Context, snapshot *models.StockSnapshot) (models.AgentResult, error) {
	result := newResult(models.AgentTypeSmartMoney, snapshot.Symbol)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	flows := analyzeFlows(snapshot.FIIDII, snapshot.Shareholding)
	funds := a.analyzeFunds(snapshot.MutualFunds)
	deals := a.analyzeDeals(snapshot.BulkDeals, snapshotNow(snapshot))
	summary := a.classifier.Classify(snapshot.Info.BusinessSummary)
	peVC := summary.Has(SignalPEVC)
	recentPE := summary.Has(SignalRecentInvestment)

	var investors []string
	if flows.netPositive {
		investors = append(investors, "FII/DII net buyers")
	}
	if funds.increasing {
		investors = append(investors, funds.activeFunds...)
	}
	if deals.institutional {
		investors = append(investors, "Institutional bulk buyers")
	}
	if peVC {
		investors = append(investors, "PE/VC investors")
	}
	if deals.promoterBuying > 0 {
		investors = append(investors, "Promoter buying")
	}

	total := scoreFlows(flows) + scoreFunds(funds) + scoreDeals(deals) + scorePEVC(peVC, recentPE) + scorePromoterBuying(deals)

	positives := 0
	for _, ok := range []bool{flows.netPositive, funds.increasing, deals.institutional} {
		if ok {
			positives++
		}
	}
	trend := AccumulationNo
	if positives >= 2 {
		trend = AccumulationYes
	}

	var risks []string
	if snapshot.FIIDII.FIINet30d+snapshot.FIIDII.DIINet30d < 0 {
		risks = append(risks, "Institutional net selling")
	}

	if investors == nil {
		investors = []string{}
	}
	result.Score = round2(NormalizeScore(total))
	result.Label = trend
	result.Evidence = append([]string{}, investors...)
	result.Risks = capList(risks, maxRisks)
	result.SmartMoney = &models.SmartMoneyDetail{
		FIINet30d:                   snapshot.FIIDII.FIINet30d,
		DIINet30d:                   snapshot.FIIDII.DIINet30d,
		InstitutionalHoldingPercent: flows.institutionPct,
		MFHoldingCount:              len(snapshot.MutualFunds),
		BulkDeals30d:                deals.recent,
		AccumulationTrend:           trend,
		InvestorsDetected:           investors,
	}
	return result, nil
}

// analyzeFlows reads FII/DII activity. When no split holding is reported the
// aggregate institutional holding from the shareholding pattern is used.
func analyzeFlows(flow models.FIIDIIFlow, holding models.Shareholding) flowAnalysis {
	pct := flow.FIIHoldingPercent + flow.DIIHoldingPercent
	if pct == 0 {
		pct = holding.InstitutionalPercent
	}
	return flowAnalysis{
		netPositive:    flow.FIINet30d+flow.DIINet30d > 0,
		strongFII:      flow.FIINet30d > 10,
		strongDII:      flow.DIINet30d > 5,
		significant:    flow.FIIHoldingPercent > 10 || flow.DIIHoldingPercent > 15,
		institutionPct: pct,
	}
}

func (a *SmartMoneyAgent) analyzeFunds(holdings []models.MutualFundHolding) fundAnalysis {
	var out fundAnalysis
	for _, h := range holdings {
		out.total += h.HoldingPercent
		if h.HoldingPercent > 1.0 && len(out.activeFunds) < maxActiveFunds {
			out.activeFunds = append(out.activeFunds, h.FundName)
		}
		if a.classifier.Classify(h.FundName).Has(SignalQualityFund) {
			out.qualityFunds++
		}
	}
	out.increasing = out.qualityFunds >= 2 && out.total > 5
	return out
}

func (a *SmartMoneyAgent) analyzeDeals(deals []models.BulkDeal, now time.Time) dealAnalysis {
	var out dealAnalysis
	buyValue, sellValue := decimal.Zero, decimal.Zero
	for _, d := range deals {
		if !isRecentDeal(d, now) {
			continue
		}
		out.recent++
		signals := a.classifier.Classify(d.ClientName)
		switch strings.ToUpper(strings.TrimSpace(d.BuySell)) {
		case "BUY":
			buyValue = buyValue.Add(d.Value())
			if signals.Has(SignalInstitutionalBuyer) {
				out.institutional = true
			}
			if signals.Has(SignalPromoter) {
				out.promoterBuying++
			}
		case "SELL":
			sellValue = sellValue.Add(d.Value())
		}
	}
	out.netBuying = buyValue.GreaterThan(sellValue)
	return out
}

// isRecentDeal reports whether the deal is inside the trailing 30 days.
// Unparsable dates are never recent.
func isRecentDeal(d models.BulkDeal, now time.Time) bool {
	date, err := time.Parse(bulkDealDateLayout, strings.TrimSpace(d.Date))
	if err != nil {
		return false
	}
	return !date.Before(now.Add(-recentDealWindow))
}

func scoreFlows(f flowAnalysis) float64 {
	var score float64
	if f.netPositive {
		score += 0.5
	}
	if f.strongFII {
		score += 0.5
	}
	if f.strongDII {
		score += 0.5
	}
	if f.significant {
		score += 0.5
	}
	return capAt(score, 2.0)
}

func scoreFunds(f fundAnalysis) float64 {
	var score float64
	if f.increasing {
		score += 1.0
	}
	if f.total > 10 {
		score += 0.5
	}
	if f.qualityFunds >= 2 {
		score += 0.5
	}
	return capAt(score, 2.0)
}

func scoreDeals(d dealAnalysis) float64 {
	var score float64
	if d.institutional {
		score += 1.0
	}
	if d.netBuying {
		score += 0.5
	}
	if d.recent > 0 {
		score += 0.5
	}
	return capAt(score, 2.0)
}

func scorePEVC(presence, recentEntry bool) float64 {
	var score float64
	if presence {
		score += 1.0
	}
	if recentEntry {
		score += 1.0
	}
	return capAt(score, 2.0)
}

func scorePromoterBuying(d dealAnalysis) float64 {
	var score float64
	if d.promoterBuying > 0 {
		score += 1.5
	}
	if d.promoterBuying > 1 {
		score += 0.5
	}
	return capAt(score, 2.0)
}
