package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultHTTPTimeout = 30 * time.Second

// browserUserAgent is required by NSE and Yahoo, which reject default client agents.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// httpRetryConfig is the retry policy for market data requests.
var httpRetryConfig = DefaultRetryConfig

// APIError is a non-200 response from a data provider.
type APIError struct {
	Service    string
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Service, e.Endpoint, e.StatusCode, e.Message)
}

func newRestyClient(baseURL string) *resty.Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(defaultHTTPTimeout)
	client.SetHeader("Accept", "application/json")
	return client
}

// getJSON issues a GET and decodes the body into out. Client errors other
// than 429 are not retried.
func getJSON(ctx context.Context, service string, client *resty.Client, path string, params map[string]string, out any) error {
	return WithRetry(ctx, httpRetryConfig, func() error {
		resp, err := client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(path)
		if err != nil {
			return fmt.Errorf("%s request %s failed: %w", service, path, err)
		}

		if resp.StatusCode() != http.StatusOK {
			apiErr := &APIError{
				Service:    service,
				Endpoint:   path,
				StatusCode: resp.StatusCode(),
				Message:    truncate(resp.String(), 200),
			}
			switch {
			case resp.StatusCode() == http.StatusTooManyRequests:
				return RetryAfter(apiErr, parseRetryAfter(resp.Header().Get("Retry-After")))
			case resp.StatusCode() >= 400 && resp.StatusCode() < 500:
				return Permanent(apiErr)
			}
			return apiErr
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return Permanent(fmt.Errorf("failed to decode %s response: %w", service, err))
		}
		return nil
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
