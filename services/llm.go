package services

import (
	"context"
	"errors"
	"strings"

	"multibagger/observability"
)

// invokeLLM runs fn behind the named breaker and records request metrics.
func invokeLLM(ctx context.Context, breaker string, fn func() (string, error)) (string, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(breaker, "invoke")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, breaker, fn)

	timer.ObserveExternalAPI(breaker, "invoke")
	if err != nil {
		metrics.RecordExternalAPIError(breaker, "invoke", categorizeAPIError(err))
		return "", err
	}
	if strings.TrimSpace(result) == "" {
		return "", errors.New("empty response from " + breaker)
	}
	return result, nil
}

// categorizeAPIError categorizes an error for metrics purposes
func categorizeAPIError(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return "circuit_open"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, "timeout", "deadline"):
		return "timeout"
	case containsAny(errStr, "rate limit", "429"):
		return "rate_limit"
	case containsAny(errStr, "unauthorized", "401", "403"):
		return "auth_error"
	case containsAny(errStr, "connection", "network"):
		return "connection_error"
	default:
		return "unknown"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
