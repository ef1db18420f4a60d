package agents

import "strings"

// Signal names a qualitative pattern detected in free text.
type Signal string

const (
	SignalProfessionalManagement Signal = "professional_management"
	SignalRelatedParty           Signal = "related_party"
	SignalPrivateEquity          Signal = "private_equity"
	SignalExperienced            Signal = "experienced"
	SignalIndustryLeader         Signal = "industry_leader"
	SignalPastSuccess            Signal = "past_success"
	SignalInstitutionalBuyer     Signal = "institutional_buyer"
	SignalQualityFund            Signal = "quality_fund"
	SignalPEVC                   Signal = "pe_vc"
	SignalRecentInvestment       Signal = "recent_investment"
	SignalPromoter               Signal = "promoter"
	SignalPositiveNews           Signal = "positive_news"
	SignalNegativeNews           Signal = "negative_news"
	SignalPolicyKeyword          Signal = "policy_keyword"

	SignalThemeStructural    Signal = "theme_structural"
	SignalThemeManufacturing Signal = "theme_manufacturing"
	SignalThemeConsumption   Signal = "theme_consumption"
)

// SignalSet holds keyword hit counts per signal.
type SignalSet map[Signal]int

func (s SignalSet) Has(sig Signal) bool { return s[sig] > 0 }

func (s SignalSet) Count(sig Signal) int { return s[sig] }

// TextClassifier detects signals in free text. Scorers depend only on this
// interface so keyword matching can be swapped for a model.
type TextClassifier interface {
	Classify(text string) SignalSet
}

// DefaultKeywords is the keyword table used by NewKeywordClassifier.
// Keywords are lower case and matched as substrings.
var DefaultKeywords = map[Signal][]string{
	SignalProfessionalManagement: {"professional management", "experienced leadership", "industry veteran", "former ceo", "ex-", "iim", "iit", "mba"},
	SignalRelatedParty:           {"related party"},
	SignalPrivateEquity:          {"private equity"},
	SignalExperienced:            {"years of experience", "decades", "veteran", "expertise", "track record", "proven", "established"},
	SignalIndustryLeader:         {"industry leader", "market leader", "pioneer", "innovator"},
	SignalPastSuccess:            {"successful", "growth", "expansion", "turnaround"},
	SignalInstitutionalBuyer:     {"mutual fund", "insurance", "pms", "aif", "fund"},
	SignalQualityFund:            {"hdfc", "icici", "sbi", "axis", "kotak", "franklin", "dsp"},
	SignalPEVC:                   {"private equity", "venture capital", "pe fund", "vc fund", "investment fund", "capital partners", "equity partners"},
	SignalRecentInvestment:       {"recent investment", "funding"},
	SignalPromoter:               {"promoter", "director", "founder", "chairman", "managing director"},
	SignalPositiveNews:           {"growth", "profit", "gain", "rise", "bullish", "positive", "strong"},
	SignalNegativeNews:           {"loss", "decline", "fall", "bearish", "negative", "weak", "drop"},
	SignalPolicyKeyword:          {"government", "policy", "scheme", "production linked incentive", "pli scheme", "subsidy", "budget", "reform", "capex"},

	SignalThemeStructural:    {"defence", "defense", "aerospace", "railway", "infrastructure", "renewable", "solar", "power"},
	SignalThemeManufacturing: {"electronic", "specialty chemical", "pharmaceutical", "auto component", "auto parts", "capital goods", "industrial machinery", "electrical equipment"},
	SignalThemeConsumption:   {"bank", "information technology", "software", "it services", "fmcg", "consumer staples", "household"},
}

// countingSignals count every occurrence rather than distinct keywords.
var countingSignals = map[Signal]bool{
	SignalPositiveNews:  true,
	SignalNegativeNews:  true,
	SignalPolicyKeyword: true,
}

// KeywordClassifier matches lower-cased substrings.
type KeywordClassifier struct {
	keywords map[Signal][]string
}

func NewKeywordClassifier() *KeywordClassifier {
	return NewKeywordClassifierWith(DefaultKeywords)
}

func NewKeywordClassifierWith(keywords map[Signal][]string) *KeywordClassifier {
	return &KeywordClassifier{keywords: keywords}
}

// Classify returns, per signal, the number of distinct keywords found, or
// for news and policy signals the total number of occurrences.
func (c *KeywordClassifier) Classify(text string) SignalSet {
	set := SignalSet{}
	text = strings.ToLower(text)
	if text == "" {
		return set
	}
	for sig, words := range c.keywords {
		hits := 0
		for _, w := range words {
			if countingSignals[sig] {
				hits += strings.Count(text, w)
			} else if strings.Contains(text, w) {
				hits++
			}
		}
		if hits > 0 {
			set[sig] = hits
		}
	}
	return set
}
