package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	appconfig "multibagger/config"
	"multibagger/models"
	"multibagger/observability"

	"github.com/go-resty/resty/v2"
)

// FMPService handles communication with Financial Modeling Prep API
type FMPService struct {
	client *resty.Client
	apiKey string
}

// NewFMPService creates a new FMPService instance
func NewFMPService(cfg *appconfig.Config) *FMPService {
	return &FMPService{
		client: newRestyClient(cfg.FMP.BaseURL),
		apiKey: cfg.FMP.APIKey,
	}
}

// CompanyProfile is the subset of the FMP profile used to describe a company.
type CompanyProfile struct {
	Symbol            string  `json:"symbol"`
	CompanyName       string  `json:"company_name"`
	Price             float64 `json:"price"`
	MarketCap         float64 `json:"market_cap"`
	Currency          string  `json:"currency"`
	Sector            string  `json:"sector"`
	Industry          string  `json:"industry"`
	Description       string  `json:"description"`
	Website           string  `json:"website"`
	Exchange          string  `json:"exchange"`
	IPODate           string  `json:"ipo_date"`
	IsActivelyTrading bool    `json:"is_actively_trading"`
}

// IPOYear returns the listing year, or 0 when unknown.
func (p CompanyProfile) IPOYear() int {
	t, err := time.Parse("2006-01-02", p.IPODate)
	if err != nil {
		return 0
	}
	return t.Year()
}

// fmpProfileResponse represents a company profile from the FMP API
type fmpProfileResponse struct {
	Symbol            string  `json:"symbol"`
	CompanyName       string  `json:"companyName"`
	Price             float64 `json:"price"`
	MktCap            float64 `json:"mktCap"`
	Currency          string  `json:"currency"`
	ExchangeShortName string  `json:"exchangeShortName"`
	Industry          string  `json:"industry"`
	Website           string  `json:"website"`
	Description       string  `json:"description"`
	Sector            string  `json:"sector"`
	IPODate           string  `json:"ipoDate"`
	IsActivelyTrading bool    `json:"isActivelyTrading"`
}

type fmpIncomeStatement struct {
	Date            string  `json:"date"`
	Revenue         float64 `json:"revenue"`
	NetIncome       float64 `json:"netIncome"`
	OperatingIncome float64 `json:"operatingIncome"`
}

type fmpBalanceSheet struct {
	Date                    string  `json:"date"`
	TotalAssets             float64 `json:"totalAssets"`
	TotalStockholdersEquity float64 `json:"totalStockholdersEquity"`
	TotalDebt               float64 `json:"totalDebt"`
}

type fmpCashFlow struct {
	Date               string  `json:"date"`
	OperatingCashFlow  float64 `json:"operatingCashFlow"`
	CapitalExpenditure float64 `json:"capitalExpenditure"`
}

// GetIncomeStatements returns annual revenue, net income and operating income.
func (s *FMPService) GetIncomeStatements(ctx context.Context, symbol string, limit int) (models.StatementSeries, error) {
	var rows []fmpIncomeStatement
	if err := s.fetchStatements(ctx, "income-statement", symbol, limit, &rows); err != nil {
		return nil, err
	}

	series := make(models.StatementSeries, 0, len(rows))
	for _, r := range rows {
		period, ok := parseStatementDate(symbol, r.Date)
		if !ok {
			continue
		}
		series = append(series, models.Statement{
			Period: period,
			Items: map[string]float64{
				models.FieldTotalRevenue:    r.Revenue,
				models.FieldNetIncome:       r.NetIncome,
				models.FieldOperatingIncome: r.OperatingIncome,
			},
		})
	}
	return series.Sorted(), nil
}

// GetBalanceSheets returns annual total assets, equity and debt.
func (s *FMPService) GetBalanceSheets(ctx context.Context, symbol string, limit int) (models.StatementSeries, error) {
	var rows []fmpBalanceSheet
	if err := s.fetchStatements(ctx, "balance-sheet-statement", symbol, limit, &rows); err != nil {
		return nil, err
	}

	series := make(models.StatementSeries, 0, len(rows))
	for _, r := range rows {
		period, ok := parseStatementDate(symbol, r.Date)
		if !ok {
			continue
		}
		series = append(series, models.Statement{
			Period: period,
			Items: map[string]float64{
				models.FieldTotalAssets:        r.TotalAssets,
				models.FieldStockholdersEquity: r.TotalStockholdersEquity,
				models.FieldTotalDebt:          r.TotalDebt,
			},
		})
	}
	return series.Sorted(), nil
}

// GetCashFlows returns annual operating cash flow and capital expenditure.
func (s *FMPService) GetCashFlows(ctx context.Context, symbol string, limit int) (models.StatementSeries, error) {
	var rows []fmpCashFlow
	if err := s.fetchStatements(ctx, "cash-flow-statement", symbol, limit, &rows); err != nil {
		return nil, err
	}

	series := make(models.StatementSeries, 0, len(rows))
	for _, r := range rows {
		period, ok := parseStatementDate(symbol, r.Date)
		if !ok {
			continue
		}
		series = append(series, models.Statement{
			Period: period,
			Items: map[string]float64{
				models.FieldOperatingCashFlow:   r.OperatingCashFlow,
				models.FieldCapitalExpenditures: r.CapitalExpenditure,
			},
		})
	}
	return series.Sorted(), nil
}

func (s *FMPService) fetchStatements(ctx context.Context, endpoint, symbol string, limit int, out any) error {
	if limit <= 0 {
		limit = 10
	}
	_, err := WithCircuitBreaker(ctx, BreakerFMP, func() (struct{}, error) {
		return struct{}{}, s.get(ctx, endpoint, "/"+endpoint+"/"+url.PathEscape(symbol), map[string]string{
			"period": "annual",
			"limit":  strconv.Itoa(limit),
		}, out)
	})
	return err
}

// GetCompanyProfile returns the company profile for a symbol
func (s *FMPService) GetCompanyProfile(ctx context.Context, symbol string) (*CompanyProfile, error) {
	return WithCircuitBreaker(ctx, BreakerFMP, func() (*CompanyProfile, error) {
		var profileResp []fmpProfileResponse
		if err := s.get(ctx, "profile", "/profile/"+url.PathEscape(symbol), nil, &profileResp); err != nil {
			return nil, err
		}

		if len(profileResp) == 0 {
			return nil, fmt.Errorf("no profile data for symbol %s", symbol)
		}

		p := profileResp[0]
		return &CompanyProfile{
			Symbol:            p.Symbol,
			CompanyName:       p.CompanyName,
			Price:             p.Price,
			MarketCap:         p.MktCap,
			Currency:          p.Currency,
			Sector:            p.Sector,
			Industry:          p.Industry,
			Description:       p.Description,
			Website:           p.Website,
			Exchange:          p.ExchangeShortName,
			IPODate:           p.IPODate,
			IsActivelyTrading: p.IsActivelyTrading,
		}, nil
	})
}

func (s *FMPService) get(ctx context.Context, operation, path string, params map[string]string, out any) error {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerFMP, operation)
	timer := metrics.NewTimer()

	query := map[string]string{"apikey": s.apiKey}
	for k, v := range params {
		query[k] = v
	}
	err := getJSON(ctx, BreakerFMP, s.client, path, query, out)

	timer.ObserveExternalAPI(BreakerFMP, operation)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerFMP, operation, categorizeAPIError(err))
	}
	return err
}

func parseStatementDate(symbol, date string) (time.Time, bool) {
	period, err := time.Parse("2006-01-02", date)
	if err != nil {
		observability.Warn("skipping statement with unparseable date",
			"symbol", symbol,
			"date", date)
		return time.Time{}, false
	}
	return period, true
}
