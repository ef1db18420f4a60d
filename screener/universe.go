package screener

import (
	"strings"

	"multibagger/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// NormalizeSymbols upper-cases and trims symbols, drops blanks and
// duplicates, and keeps at most limit entries in input order. A limit of zero
// or less keeps everything.
func NormalizeSymbols(symbols []string, limit int) []string {
	cleaned := lo.FilterMap(symbols, func(s string, _ int) (string, bool) {
		s = strings.ToUpper(strings.TrimSpace(s))
		return s, s != ""
	})
	cleaned = lo.Uniq(cleaned)
	if limit > 0 && len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return cleaned
}

// ExceedsMarketCap reports whether a snapshot has a known market cap above
// ceilingCrores. Unknown market caps never exceed; a zero ceiling disables the
// check.
func ExceedsMarketCap(info models.CompanyInfo, ceilingCrores float64) bool {
	if ceilingCrores <= 0 || !info.MarketCapKnown() {
		return false
	}
	return info.MarketCapCrores().GreaterThan(decimal.NewFromFloat(ceilingCrores))
}
