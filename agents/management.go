package agents

import (
	"context"
	"strings"
	"unicode/utf8"

	"multibagger/models"
)

// unknownCompanyAge is assumed when the founding year is not reported.
const (
	unknownCompanyAge     = 4
	maxManagementEvidence = 6
)

const (
	AlignmentHigh   = "HIGH"
	AlignmentMedium = "MEDIUM"
	AlignmentLow    = "LOW"
)

// ManagementAgent scores management quality and minority shareholder
// alignment from ownership data and the company's business description.
type ManagementAgent struct {
	classifier TextClassifier
}

// NewManagementAgent creates a ManagementAgent. A nil classifier uses the
// default keyword tables.
func NewManagementAgent(classifier TextClassifier) *ManagementAgent {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &ManagementAgent{classifier: classifier}
}

func (a *ManagementAgent) Name() string {
	return "Management Analyst"
}

func (a *ManagementAgent) Type() models.AgentType {
	return models.AgentTypeManagement
}

type managementSignals struct {
	stableHolding  bool
	highHolding    bool
	lowHolding     bool
	strategic      bool
	privateEquity  bool
	professional   bool
	boardIndep     bool
	established    bool
	relatedParty   bool
	experienced    bool
	leadership     bool
	pastSuccess    bool
	hasWebsite     bool
	regularUpdates bool
	goodDisclosure bool
	age            int
}

func (a *ManagementAgent) Analyze(ctx context.Context, snapshot *models.StockSnapshot) (models.AgentResult, error) {
	result := newResult(models.AgentTypeManagement, snapshot.Symbol)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	info := snapshot.Info
	holding := snapshot.Shareholding
	signals := a.classifier.Classify(info.BusinessSummary)

	s := managementSignals{
		stableHolding:  holding.PromoterPercent >= 40 && holding.PromoterPercent <= 75,
		highHolding:    holding.PromoterPercent > 75,
		lowHolding:     holding.PromoterPercent < 25,
		strategic:      holding.InstitutionalPercent > 20,
		privateEquity:  signals.Has(SignalPrivateEquity),
		professional:   signals.Has(SignalProfessionalManagement),
		boardIndep:     info.HasGovernanceDate,
		relatedParty:   signals.Has(SignalRelatedParty),
		experienced:    signals.Has(SignalExperienced),
		leadership:     signals.Has(SignalIndustryLeader),
		pastSuccess:    signals.Has(SignalPastSuccess),
		hasWebsite:     strings.TrimSpace(info.Website) != "",
		regularUpdates: info.HasFiscalYearEnd,
		age:            companyAge(info.FoundingYear, snapshotNow(snapshot).Year()),
	}
	s.established = s.age > 10
	s.goodDisclosure = s.hasWebsite && utf8.RuneCountInString(info.BusinessSummary) > 100 && s.regularUpdates

	detail := models.ManagementDetail{
		PromoterHoldingPercent:      holding.PromoterPercent,
		InstitutionalHoldingPercent: holding.InstitutionalPercent,
		PromoterScore:               scorePromoter(s),
		GovernanceScore:             scoreGovernance(s),
		TrackRecordScore:            scoreTrackRecord(s),
		TransparencyScore:           scoreTransparency(s),
		CompanyAgeYears:             s.age,
		Alignment:                   shareholderAlignment(s),
	}

	var evidence []string
	if s.stableHolding {
		evidence = append(evidence, "Stable promoter holding indicates confidence")
	}
	if s.strategic {
		evidence = append(evidence, "Strategic investor entry detected")
	}
	if s.professional {
		evidence = append(evidence, "Professional management team in place")
	}
	if s.boardIndep {
		evidence = append(evidence, "Independent board structure")
	}
	if s.experienced {
		evidence = append(evidence, "Experienced management team")
	}
	if s.goodDisclosure {
		evidence = append(evidence, "Good disclosure practices")
	}

	var risks []string
	if s.relatedParty {
		risks = append(risks, "Related party transactions disclosed")
	}
	if s.lowHolding {
		risks = append(risks, "Low promoter holding")
	}

	total := detail.PromoterScore + detail.GovernanceScore + detail.TrackRecordScore + detail.TransparencyScore
	result.Score = round2(NormalizeScore(total))
	result.Label = detail.Alignment
	result.Evidence = capList(evidence, maxManagementEvidence)
	result.Risks = capList(risks, maxRisks)
	result.Management = &detail
	return result, nil
}

func companyAge(foundingYear, currentYear int) int {
	if foundingYear <= 0 || foundingYear > currentYear {
		return unknownCompanyAge
	}
	return currentYear - foundingYear
}

func scorePromoter(s managementSignals) float64 {
	var score float64
	switch {
	case s.stableHolding:
		score += 1.5
	case s.highHolding:
		score += 1.0
	case s.lowHolding:
		score += 0.5
	}
	if s.strategic {
		score += 0.5
	}
	if s.privateEquity {
		score += 0.5
	}
	return capAt(score, 2.5)
}

func scoreGovernance(s managementSignals) float64 {
	var score float64
	if s.professional {
		score += 1.0
	}
	if s.boardIndep {
		score += 0.5
	}
	if s.established {
		score += 0.5
	}
	if !s.relatedParty {
		score += 0.5
	}
	return capAt(score, 2.5)
}

func scoreTrackRecord(s managementSignals) float64 {
	var score float64
	if s.experienced {
		score += 1.0
	}
	if s.leadership {
		score += 0.75
	}
	if s.pastSuccess {
		score += 0.75
	}
	return capAt(score, 2.5)
}

func scoreTransparency(s managementSignals) float64 {
	var score float64
	if s.goodDisclosure {
		score += 1.5
	}
	if s.hasWebsite {
		score += 0.5
	}
	if s.regularUpdates {
		score += 0.5
	}
	return capAt(score, 2.5)
}

func shareholderAlignment(s managementSignals) string {
	tally := 0
	if s.stableHolding {
		tally += 2
	}
	if s.strategic {
		tally++
	}
	if s.professional {
		tally += 2
	}
	if !s.relatedParty {
		tally++
	}
	if s.goodDisclosure {
		tally += 2
	}
	switch {
	case tally >= 6:
		return AlignmentHigh
	case tally >= 3:
		return AlignmentMedium
	default:
		return AlignmentLow
	}
}
