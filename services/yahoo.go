package services

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	appconfig "multibagger/config"
	"multibagger/models"
	"multibagger/observability"

	"github.com/go-resty/resty/v2"
)

// YahooService reads price history and ownership data from Yahoo Finance.
type YahooService struct {
	client *resty.Client
}

func NewYahooService(cfg *appconfig.Config) *YahooService {
	client := newRestyClient(cfg.Yahoo.BaseURL)
	client.SetHeader("User-Agent", browserUserAgent)
	return &YahooService{client: client}
}

// PriceHistory is a daily bar series plus the latest quoted price.
type PriceHistory struct {
	Bars               []models.PriceBar
	RegularMarketPrice float64
}

// HolderSummary is ownership and disclosure data from the quote summary.
type HolderSummary struct {
	InsidersPercent     float64
	InstitutionsPercent float64
	FundHoldings        []models.MutualFundHolding
	Website             string
	BusinessSummary     string
	Sector              string
	Industry            string
	HasGovernanceDate   bool
	HasFiscalYearEnd    bool
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooValue struct {
	Raw *float64 `json:"raw"`
}

func (v yahooValue) value() float64 {
	if v.Raw == nil {
		return 0
	}
	return *v.Raw
}

type yahooQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile *struct {
				Website             string `json:"website"`
				LongBusinessSummary string `json:"longBusinessSummary"`
				Sector              string `json:"sector"`
				Industry            string `json:"industry"`
				GovernanceEpochDate int64  `json:"governanceEpochDate"`
			} `json:"assetProfile"`
			DefaultKeyStatistics *struct {
				HeldPercentInsiders     yahooValue `json:"heldPercentInsiders"`
				HeldPercentInstitutions yahooValue `json:"heldPercentInstitutions"`
				LastFiscalYearEnd       yahooValue `json:"lastFiscalYearEnd"`
			} `json:"defaultKeyStatistics"`
			FundOwnership *struct {
				OwnershipList []struct {
					Organization string     `json:"organization"`
					PctHeld      yahooValue `json:"pctHeld"`
				} `json:"ownershipList"`
			} `json:"fundOwnership"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// GetDailyBars returns daily OHLCV bars oldest first. Bars with any missing
// field are dropped.
func (s *YahooService) GetDailyBars(ctx context.Context, symbol, historyRange string) (*PriceHistory, error) {
	if historyRange == "" {
		historyRange = "5y"
	}

	return WithCircuitBreaker(ctx, BreakerYahoo, func() (*PriceHistory, error) {
		var resp yahooChartResponse
		err := s.get(ctx, "chart", "/v8/finance/chart/"+url.PathEscape(symbol), map[string]string{
			"range":    historyRange,
			"interval": "1d",
		}, &resp)
		if err != nil {
			return nil, err
		}

		if resp.Chart.Error != nil {
			return nil, fmt.Errorf("yahoo chart error for %s: %s", symbol, resp.Chart.Error.Description)
		}
		if len(resp.Chart.Result) == 0 {
			return nil, fmt.Errorf("no chart data for symbol %s", symbol)
		}

		result := resp.Chart.Result[0]
		history := &PriceHistory{RegularMarketPrice: result.Meta.RegularMarketPrice}
		if len(result.Indicators.Quote) == 0 {
			return history, nil
		}

		q := result.Indicators.Quote[0]
		history.Bars = make([]models.PriceBar, 0, len(result.Timestamp))
		for i, ts := range result.Timestamp {
			open, ok1 := at(q.Open, i)
			high, ok2 := at(q.High, i)
			low, ok3 := at(q.Low, i)
			closePrice, ok4 := at(q.Close, i)
			volume, ok5 := at(q.Volume, i)
			if !(ok1 && ok2 && ok3 && ok4 && ok5) {
				continue
			}
			history.Bars = append(history.Bars, models.PriceBar{
				Date:   time.Unix(ts, 0).UTC(),
				Open:   open,
				High:   high,
				Low:    low,
				Close:  closePrice,
				Volume: volume,
			})
		}
		return history, nil
	})
}

// GetHolderSummary returns insider and institutional ownership, fund holders
// and disclosure fields. Percentages are 0-100.
func (s *YahooService) GetHolderSummary(ctx context.Context, symbol string) (*HolderSummary, error) {
	return WithCircuitBreaker(ctx, BreakerYahoo, func() (*HolderSummary, error) {
		var resp yahooQuoteSummaryResponse
		err := s.get(ctx, "quote_summary", "/v10/finance/quoteSummary/"+url.PathEscape(symbol), map[string]string{
			"modules": "assetProfile,defaultKeyStatistics,fundOwnership",
		}, &resp)
		if err != nil {
			return nil, err
		}

		if resp.QuoteSummary.Error != nil {
			return nil, fmt.Errorf("yahoo quote summary error for %s: %s", symbol, resp.QuoteSummary.Error.Description)
		}
		if len(resp.QuoteSummary.Result) == 0 {
			return nil, fmt.Errorf("no quote summary for symbol %s", symbol)
		}

		r := resp.QuoteSummary.Result[0]
		summary := &HolderSummary{}
		if p := r.AssetProfile; p != nil {
			summary.Website = p.Website
			summary.BusinessSummary = p.LongBusinessSummary
			summary.Sector = p.Sector
			summary.Industry = p.Industry
			summary.HasGovernanceDate = p.GovernanceEpochDate > 0
		}
		if k := r.DefaultKeyStatistics; k != nil {
			summary.InsidersPercent = k.HeldPercentInsiders.value() * 100
			summary.InstitutionsPercent = k.HeldPercentInstitutions.value() * 100
			summary.HasFiscalYearEnd = k.LastFiscalYearEnd.value() > 0
		}
		if f := r.FundOwnership; f != nil {
			for _, o := range f.OwnershipList {
				summary.FundHoldings = append(summary.FundHoldings, models.MutualFundHolding{
					FundName:       o.Organization,
					HoldingPercent: o.PctHeld.value() * 100,
				})
			}
		}
		return summary, nil
	})
}

func (s *YahooService) get(ctx context.Context, operation, path string, params map[string]string, out any) error {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, operation)
	timer := metrics.NewTimer()

	err := getJSON(ctx, BreakerYahoo, s.client, path, params, out)

	timer.ObserveExternalAPI(BreakerYahoo, operation)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, operation, categorizeAPIError(err))
	}
	return err
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	v := *values[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
