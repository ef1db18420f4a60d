package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"multibagger/config"
)

func newTestNSEService(t *testing.T, handler http.HandlerFunc) *NSEService {
	t.Helper()
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))
	fastRetries(t)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.NewTestConfig()
	cfg.NSE.BaseURL = server.URL
	cfg.NSE.RequestsPerSecond = 100
	return NewNSEService(cfg)
}

func TestFlexFloat_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`12.5`, 12.5},
		{`"1,25,000"`, 125000},
		{`" 310.45 "`, 310.45},
		{`"-"`, 0},
		{`""`, 0},
		{`null`, 0},
	}
	for _, tt := range tests {
		var f flexFloat
		if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
			t.Errorf("Unmarshal(%s) error: %v", tt.in, err)
			continue
		}
		if float64(f) != tt.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, f, tt.want)
		}
	}

	var f flexFloat
	if err := json.Unmarshal([]byte(`"abc"`), &f); err == nil {
		t.Error("expected error for non-numeric string")
	}
}

func TestTrimExchangeSuffix(t *testing.T) {
	for in, want := range map[string]string{
		"tanla.ns":    "TANLA",
		"RELIANCE.BO": "RELIANCE",
		" KEI ":       "KEI",
	} {
		if got := TrimExchangeSuffix(in); got != want {
			t.Errorf("TrimExchangeSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNSEService_GetIndexConstituents(t *testing.T) {
	svc := newTestNSEService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/equity-stockIndices" || r.URL.Query().Get("index") != "NIFTY 500" {
			t.Errorf("unexpected request: %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`{"name": "NIFTY 500", "data": [
			{"symbol": "NIFTY 500"},
			{"symbol": "RELIANCE"},
			{"symbol": "TANLA"},
			{"symbol": "RELIANCE"}
		]}`))
	})

	symbols, err := svc.GetIndexConstituents(context.Background(), "NIFTY 500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(symbols, ",") != "RELIANCE.NS,TANLA.NS" {
		t.Errorf("symbols = %v", symbols)
	}
}

func TestNSEService_GetBulkDeals(t *testing.T) {
	svc := newTestNSEService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [
			{"symbol": "TANLA", "date": "15-Jan-2024", "clientName": "SBI MUTUAL FUND ", "buyOrSell": "buy", "quantity": "12,50,000", "price": "1210.35"},
			{"symbol": "KEI", "date": "15-Jan-2024", "clientName": "X", "buyOrSell": "SELL", "quantity": 10, "price": 1},
			{"symbol": "tanla", "date": "garbage", "clientName": "UDAY REDDY", "buyOrSell": "SELL", "quantity": 300000, "price": 1190}
		]}`))
	})

	deals, err := svc.GetBulkDeals(context.Background(), "TANLA.NS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deals) != 2 {
		t.Fatalf("expected 2 TANLA deals, got %d", len(deals))
	}
	d := deals[0]
	if d.Date != "2024-01-15" || d.BuySell != "BUY" || d.ClientName != "SBI MUTUAL FUND" {
		t.Errorf("deal = %+v", d)
	}
	if d.Quantity != 1250000 || d.Price != 1210.35 {
		t.Errorf("quantity/price = %v/%v", d.Quantity, d.Price)
	}
	if deals[1].Date != "garbage" {
		t.Errorf("unparseable dates pass through, got %q", deals[1].Date)
	}
}

func TestNSEService_GetFIIDIIFlows(t *testing.T) {
	svc := newTestNSEService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"category": "DII **", "date": "18-Oct-2024", "buyValue": "15230.1", "sellValue": "10110.6", "netValue": "5119.5"},
			{"category": "FII/FPI *", "date": "18-Oct-2024", "buyValue": "12011.2", "sellValue": "14500.9", "netValue": "-2489.7"}
		]`))
	})

	flow, err := svc.GetFIIDIIFlows(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flow.FIINet30d != -2489.7 || flow.DIINet30d != 5119.5 {
		t.Errorf("flow = %+v", flow)
	}
}

func TestNSEService_GetFIIDIIFlows_Empty(t *testing.T) {
	svc := newTestNSEService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	if _, err := svc.GetFIIDIIFlows(context.Background()); err == nil {
		t.Error("expected error for empty response")
	}
}

func TestNSEService_RateLimiterHonoursContext(t *testing.T) {
	svc := newTestNSEService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.GetBulkDeals(ctx, "TANLA.NS"); err == nil {
		t.Error("expected error with cancelled context")
	}
}
