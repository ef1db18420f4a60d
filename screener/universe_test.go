package screener

import (
	"strings"
	"testing"

	"multibagger/models"

	"github.com/shopspring/decimal"
)

func TestNormalizeSymbols(t *testing.T) {
	tests := []struct {
		name    string
		symbols []string
		limit   int
		want    []string
	}{
		{"nil", nil, 20, []string{}},
		{"trims and upper-cases", []string{" kei.ns ", "dixon.NS"}, 20, []string{"KEI.NS", "DIXON.NS"}},
		{"drops blanks", []string{"", "  ", "TANLA.NS"}, 20, []string{"TANLA.NS"}},
		{"dedupes keeping first position", []string{"B.NS", "a.ns", "b.ns", "A.NS"}, 20, []string{"B.NS", "A.NS"}},
		{"caps after dedupe", []string{"A.NS", "A.NS", "B.NS", "C.NS"}, 2, []string{"A.NS", "B.NS"}},
		{"zero limit keeps all", []string{"A.NS", "B.NS", "C.NS"}, 0, []string{"A.NS", "B.NS", "C.NS"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSymbols(tt.symbols, tt.limit)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("NormalizeSymbols() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExceedsMarketCap(t *testing.T) {
	crores := func(n int64) models.CompanyInfo {
		return models.CompanyInfo{MarketCap: decimal.NewFromInt(n).Mul(decimal.NewFromInt(10_000_000))}
	}

	tests := []struct {
		name    string
		info    models.CompanyInfo
		ceiling float64
		want    bool
	}{
		{"below ceiling", crores(4200), 8000, false},
		{"at ceiling", crores(8000), 8000, false},
		{"above ceiling", crores(8001), 8000, true},
		{"unknown market cap passes", models.CompanyInfo{}, 8000, false},
		{"zero ceiling disables", crores(500000), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExceedsMarketCap(tt.info, tt.ceiling); got != tt.want {
				t.Errorf("ExceedsMarketCap() = %v, want %v", got, tt.want)
			}
		})
	}
}
