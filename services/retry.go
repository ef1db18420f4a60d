package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"multibagger/observability"
)

// RetryConfig bounds WithRetry. MaxRetries counts attempts after the first.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// retryControl annotates an error with how WithRetry should treat it.
type retryControl struct {
	err       error
	permanent bool
	after     time.Duration
}

func (e *retryControl) Error() string { return e.err.Error() }
func (e *retryControl) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, e.g. an unknown symbol.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &retryControl{err: err, permanent: true}
}

// RetryAfter asks for the next attempt no sooner than d, as a rate-limited
// upstream requests. d is still capped by MaxBackoff.
func RetryAfter(err error, d time.Duration) error {
	if err == nil {
		return nil
	}
	return &retryControl{err: err, after: d}
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// WithRetry calls fn until it succeeds, returns a Permanent error, attempts
// run out or ctx is done. Waits double from InitialBackoff up to MaxBackoff.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	wait := config.InitialBackoff
	var lastErr error

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var ctl *retryControl
		if errors.As(err, &ctl) {
			if ctl.permanent {
				return ctl.err
			}
			err = ctl.err
		}
		lastErr = err

		if attempt >= config.MaxRetries {
			break
		}

		delay := wait
		if ctl != nil && ctl.after > delay {
			delay = ctl.after
		}
		if config.MaxBackoff > 0 && delay > config.MaxBackoff {
			delay = config.MaxBackoff
		}

		observability.Debug("retrying request",
			"attempt", attempt+1,
			"max_retries", config.MaxRetries,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-timer.C:
		}

		wait *= 2
		if config.MaxBackoff > 0 && wait > config.MaxBackoff {
			wait = config.MaxBackoff
		}
	}

	return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, lastErr)
}
