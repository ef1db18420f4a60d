package models

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Statement line items consumed by the scorers.
const (
	FieldTotalRevenue        = "Total Revenue"
	FieldNetIncome           = "Net Income"
	FieldOperatingIncome     = "Operating Income"
	FieldTotalAssets         = "Total Assets"
	FieldStockholdersEquity  = "Stockholders Equity"
	FieldTotalDebt           = "Total Debt"
	FieldOperatingCashFlow   = "Operating Cash Flow"
	FieldCapitalExpenditures = "Capital Expenditures"
)

// croreDivisor converts rupees to crores.
var croreDivisor = decimal.NewFromInt(10_000_000)

// Statement is one reporting period of a financial statement.
type Statement struct {
	Period time.Time          `json:"period"`
	Items  map[string]float64 `json:"items"`
}

// Value returns a line item and whether it was reported.
func (s Statement) Value(field string) (float64, bool) {
	v, ok := s.Items[field]
	return v, ok
}

// ValueOr returns a line item or def when it is missing.
func (s Statement) ValueOr(field string, def float64) float64 {
	if v, ok := s.Items[field]; ok {
		return v
	}
	return def
}

// StatementSeries is an unordered collection of statement periods.
type StatementSeries []Statement

// Sorted returns a copy ordered from oldest to newest period.
func (s StatementSeries) Sorted() StatementSeries {
	out := make(StatementSeries, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out
}

// Lookup finds the statement reported for period.
func (s StatementSeries) Lookup(period time.Time) (Statement, bool) {
	for _, st := range s {
		if st.Period.Equal(period) {
			return st, true
		}
	}
	return Statement{}, false
}

// NonFinite returns the first field holding NaN or Inf, if any.
func (s StatementSeries) NonFinite() (field string, period time.Time, found bool) {
	for _, st := range s {
		for name, v := range st.Items {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return name, st.Period, true
			}
		}
	}
	return "", time.Time{}, false
}

// CompanyInfo is static company metadata. Zero values mean "not reported".
type CompanyInfo struct {
	Name              string          `json:"name"`
	Sector            string          `json:"sector"`
	Industry          string          `json:"industry"`
	MarketCap         decimal.Decimal `json:"market_cap"` // rupees
	BusinessSummary   string          `json:"business_summary"`
	Website           string          `json:"website"`
	HasGovernanceDate bool            `json:"has_governance_date"`
	FoundingYear      int             `json:"founding_year"`
	HasFiscalYearEnd  bool            `json:"has_fiscal_year_end"`
}

// MarketCapCrores returns the market capitalisation in crores of rupees.
func (c CompanyInfo) MarketCapCrores() decimal.Decimal {
	return c.MarketCap.Div(croreDivisor)
}

// MarketCapKnown reports whether a positive market cap was supplied.
func (c CompanyInfo) MarketCapKnown() bool {
	return c.MarketCap.IsPositive()
}

// MarketCapDisplay renders the market cap as "₹N Cr", or "Unknown".
func (c CompanyInfo) MarketCapDisplay() string {
	if !c.MarketCapKnown() {
		return "Unknown"
	}
	return "₹" + c.MarketCapCrores().Round(0).String() + " Cr"
}

// Shareholding holds ownership percentages; missing values are 0.
type Shareholding struct {
	PromoterPercent      float64 `json:"promoter_percent"`
	InstitutionalPercent float64 `json:"institutional_percent"`
	PublicPercent        float64 `json:"public_percent"`
}

// PriceBar is one daily OHLCV bar.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// FIIDIIFlow summarises foreign and domestic institutional activity.
// Net investment figures are in crores.
type FIIDIIFlow struct {
	FIINet30d         float64 `json:"fii_net_investment_30d"`
	DIINet30d         float64 `json:"dii_net_investment_30d"`
	FIIHoldingPercent float64 `json:"fii_holding_percent"`
	DIIHoldingPercent float64 `json:"dii_holding_percent"`
}

type MutualFundHolding struct {
	FundName       string  `json:"fund_name"`
	HoldingPercent float64 `json:"holding_percent"`
}

// BulkDeal is a reported bulk or block trade. Date is an ISO yyyy-mm-dd string
// as published by the exchange and may be malformed.
type BulkDeal struct {
	Date       string  `json:"date"`
	ClientName string  `json:"client_name"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	BuySell    string  `json:"buy_sell"`
}

// Value returns quantity × price.
func (d BulkDeal) Value() decimal.Decimal {
	return decimal.NewFromFloat(d.Quantity).Mul(decimal.NewFromFloat(d.Price))
}

// NewsArticle is a news item about a company.
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Author      string    `json:"author,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// StockSnapshot is everything known about one stock at analysis time. Every
// section is optional and its zero value is the documented default.
type StockSnapshot struct {
	Symbol       string              `json:"symbol"`
	Financials   StatementSeries     `json:"financials"`
	BalanceSheet StatementSeries     `json:"balance_sheet"`
	CashFlow     StatementSeries     `json:"cashflow"`
	Info         CompanyInfo         `json:"info"`
	Shareholding Shareholding        `json:"shareholding"`
	Prices       []PriceBar          `json:"prices"`
	Benchmark    []PriceBar          `json:"benchmark"`
	CurrentPrice float64             `json:"current_price"` // 0 means use last close
	FIIDII       FIIDIIFlow          `json:"fii_dii"`
	MutualFunds  []MutualFundHolding `json:"mutual_fund_holdings"`
	BulkDeals    []BulkDeal          `json:"bulk_deals"`
	News         []NewsArticle       `json:"news"`
	FetchedAt    time.Time           `json:"fetched_at"`
}
