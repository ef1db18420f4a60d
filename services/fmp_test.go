package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"multibagger/config"
	"multibagger/models"
)

// fastRetries shortens backoff for the duration of a test.
func fastRetries(t *testing.T) {
	t.Helper()
	saved := httpRetryConfig
	httpRetryConfig = RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	t.Cleanup(func() { httpRetryConfig = saved })
}

func newTestFMPService(t *testing.T, handler http.HandlerFunc) *FMPService {
	t.Helper()
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))
	fastRetries(t)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.NewTestConfig()
	cfg.FMP.APIKey = "test-key"
	cfg.FMP.BaseURL = server.URL
	return NewFMPService(cfg)
}

func TestFMPService_GetIncomeStatements(t *testing.T) {
	svc := newTestFMPService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/income-statement/TANLA.NS" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("apikey") != "test-key" || q.Get("period") != "annual" || q.Get("limit") != "5" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"date": "2024-03-31", "revenue": 3900, "netIncome": 550, "operatingIncome": 700},
			{"date": "2023-03-31", "revenue": 3350, "netIncome": 480, "operatingIncome": 590},
			{"date": "not-a-date", "revenue": 1, "netIncome": 1, "operatingIncome": 1}
		]`))
	})

	series, err := svc.GetIncomeStatements(context.Background(), "TANLA.NS", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(series))
	}
	if series[0].Period.Year() != 2023 {
		t.Errorf("series should be oldest first, got %v", series[0].Period)
	}
	if got := series[1].ValueOr(models.FieldTotalRevenue, 0); got != 3900 {
		t.Errorf("latest revenue = %v, want 3900", got)
	}
	if got := series[1].ValueOr(models.FieldOperatingIncome, 0); got != 700 {
		t.Errorf("latest operating income = %v, want 700", got)
	}
}

func TestFMPService_BalanceSheetAndCashFlow(t *testing.T) {
	svc := newTestFMPService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/balance-sheet-statement/KEI.NS":
			w.Write([]byte(`[{"date": "2024-03-31", "totalAssets": 5000, "totalStockholdersEquity": 3200, "totalDebt": 150}]`))
		case "/cash-flow-statement/KEI.NS":
			w.Write([]byte(`[{"date": "2024-03-31", "operatingCashFlow": 420, "capitalExpenditure": -180}]`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	bs, err := svc.GetBalanceSheets(ctx, "KEI.NS", 10)
	if err != nil {
		t.Fatalf("GetBalanceSheets: %v", err)
	}
	if v, _ := bs[0].Value(models.FieldTotalDebt); v != 150 {
		t.Errorf("debt = %v, want 150", v)
	}

	cf, err := svc.GetCashFlows(ctx, "KEI.NS", 10)
	if err != nil {
		t.Fatalf("GetCashFlows: %v", err)
	}
	if v, _ := cf[0].Value(models.FieldCapitalExpenditures); v != -180 {
		t.Errorf("capex = %v, want -180", v)
	}
}

func TestFMPService_GetCompanyProfile(t *testing.T) {
	svc := newTestFMPService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile/BEL.NS" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`[{
			"symbol": "BEL.NS",
			"companyName": "Bharat Electronics Limited",
			"price": 285.4,
			"mktCap": 2086000000000,
			"currency": "INR",
			"sector": "Industrials",
			"industry": "Aerospace & Defense",
			"website": "https://bel-india.in",
			"description": "Bharat Electronics designs and manufactures defence electronics.",
			"exchangeShortName": "NSE",
			"ipoDate": "2002-07-01",
			"isActivelyTrading": true
		}]`))
	})

	p, err := svc.GetCompanyProfile(context.Background(), "BEL.NS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CompanyName != "Bharat Electronics Limited" || p.Sector != "Industrials" {
		t.Errorf("profile = %+v", p)
	}
	if p.MarketCap != 2086000000000 {
		t.Errorf("MarketCap = %v", p.MarketCap)
	}
	if p.IPOYear() != 2002 {
		t.Errorf("IPOYear() = %d, want 2002", p.IPOYear())
	}
	if (CompanyProfile{}).IPOYear() != 0 {
		t.Error("missing IPO date should give year 0")
	}
}

func TestFMPService_EmptyProfile(t *testing.T) {
	svc := newTestFMPService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	if _, err := svc.GetCompanyProfile(context.Background(), "NOPE.NS"); err == nil {
		t.Error("expected error for empty profile")
	}
}

func TestFMPService_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	svc := newTestFMPService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"Error Message": "Invalid API KEY"}`))
	})

	_, err := svc.GetIncomeStatements(context.Background(), "TCS.NS", 5)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("err = %v, want 403 APIError", err)
	}
	if !strings.Contains(apiErr.Error(), "Invalid API KEY") {
		t.Errorf("error should carry the body: %v", apiErr)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestFMPService_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	svc := newTestFMPService(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"date": "2024-03-31", "revenue": 10, "netIncome": 1, "operatingIncome": 2}]`))
	})

	series, err := svc.GetIncomeStatements(context.Background(), "TCS.NS", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 1 || calls.Load() != 3 {
		t.Errorf("len = %d, calls = %d", len(series), calls.Load())
	}
}
