package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	appconfig "multibagger/config"
	"multibagger/models"
	"multibagger/observability"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// NSEService reads index constituents, bulk deals and institutional flows
// from the National Stock Exchange public API.
type NSEService struct {
	client  *resty.Client
	limiter *rate.Limiter
}

func NewNSEService(cfg *appconfig.Config) *NSEService {
	rps := cfg.NSE.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	client := newRestyClient(cfg.NSE.BaseURL)
	client.SetHeader("User-Agent", browserUserAgent)
	client.SetHeader("Referer", "https://www.nseindia.com/")

	return &NSEService{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// flexFloat decodes NSE numbers, which arrive as JSON numbers or as strings
// with thousands separators.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" || s == "-" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type nseIndexResponse struct {
	Name string `json:"name"`
	Data []struct {
		Symbol string `json:"symbol"`
	} `json:"data"`
}

type nseBulkDealsResponse struct {
	Data []struct {
		Symbol     string    `json:"symbol"`
		Date       string    `json:"date"`
		ClientName string    `json:"clientName"`
		BuyOrSell  string    `json:"buyOrSell"`
		Quantity   flexFloat `json:"quantity"`
		Price      flexFloat `json:"price"`
	} `json:"data"`
}

type nseFIIDIIRow struct {
	Category  string    `json:"category"`
	Date      string    `json:"date"`
	BuyValue  flexFloat `json:"buyValue"`
	SellValue flexFloat `json:"sellValue"`
	NetValue  flexFloat `json:"netValue"`
}

// nseDateLayouts are the date formats NSE uses across endpoints.
var nseDateLayouts = []string{"02-Jan-2006", "02-01-2006", "2006-01-02", "02 Jan 2006"}

// TrimExchangeSuffix strips the .NS/.BO suffix used by price providers.
func TrimExchangeSuffix(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimSuffix(s, ".NS")
	return strings.TrimSuffix(s, ".BO")
}

// GetIndexConstituents returns the index members as .NS symbols, in exchange order.
func (s *NSEService) GetIndexConstituents(ctx context.Context, index string) ([]string, error) {
	return WithCircuitBreaker(ctx, BreakerNSE, func() ([]string, error) {
		var resp nseIndexResponse
		if err := s.get(ctx, "index_constituents", "/equity-stockIndices", map[string]string{"index": index}, &resp); err != nil {
			return nil, err
		}

		seen := make(map[string]bool, len(resp.Data))
		symbols := make([]string, 0, len(resp.Data))
		for _, row := range resp.Data {
			sym := strings.ToUpper(strings.TrimSpace(row.Symbol))
			// the index itself is reported as the first row
			if sym == "" || strings.EqualFold(sym, index) {
				continue
			}
			sym += ".NS"
			if seen[sym] {
				continue
			}
			seen[sym] = true
			symbols = append(symbols, sym)
		}
		if len(symbols) == 0 {
			return nil, fmt.Errorf("index %s returned no constituents", index)
		}
		return symbols, nil
	})
}

// GetBulkDeals returns the exchange's recent bulk deals for symbol. Dates are
// normalised to yyyy-mm-dd where parseable and passed through otherwise.
func (s *NSEService) GetBulkDeals(ctx context.Context, symbol string) ([]models.BulkDeal, error) {
	clean := TrimExchangeSuffix(symbol)

	return WithCircuitBreaker(ctx, BreakerNSE, func() ([]models.BulkDeal, error) {
		var resp nseBulkDealsResponse
		if err := s.get(ctx, "bulk_deals", "/corporates-bulk-deals", nil, &resp); err != nil {
			return nil, err
		}

		deals := make([]models.BulkDeal, 0)
		for _, row := range resp.Data {
			if !strings.EqualFold(strings.TrimSpace(row.Symbol), clean) {
				continue
			}
			deals = append(deals, models.BulkDeal{
				Date:       normalizeNSEDate(row.Date),
				ClientName: strings.TrimSpace(row.ClientName),
				Quantity:   float64(row.Quantity),
				Price:      float64(row.Price),
				BuySell:    strings.ToUpper(strings.TrimSpace(row.BuyOrSell)),
			})
		}
		return deals, nil
	})
}

// GetFIIDIIFlows returns the latest reported FII and DII net investment in crores.
func (s *NSEService) GetFIIDIIFlows(ctx context.Context) (*models.FIIDIIFlow, error) {
	return WithCircuitBreaker(ctx, BreakerNSE, func() (*models.FIIDIIFlow, error) {
		var rows []nseFIIDIIRow
		if err := s.get(ctx, "fii_dii", "/fiidiiTradeReact", nil, &rows); err != nil {
			return nil, err
		}

		flow := &models.FIIDIIFlow{}
		var sawFII, sawDII bool
		for _, row := range rows {
			category := strings.ToUpper(row.Category)
			switch {
			case strings.Contains(category, "FII") && !sawFII:
				flow.FIINet30d = float64(row.NetValue)
				sawFII = true
			case strings.Contains(category, "DII") && !sawDII:
				flow.DIINet30d = float64(row.NetValue)
				sawDII = true
			}
		}
		if !sawFII && !sawDII {
			return nil, fmt.Errorf("no FII/DII rows in response")
		}
		return flow, nil
	})
}

func (s *NSEService) get(ctx context.Context, operation, path string, params map[string]string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("nse rate limiter: %w", err)
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerNSE, operation)
	timer := metrics.NewTimer()

	err := getJSON(ctx, BreakerNSE, s.client, path, params, out)

	timer.ObserveExternalAPI(BreakerNSE, operation)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerNSE, operation, categorizeAPIError(err))
	}
	return err
}

func normalizeNSEDate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range nseDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}
