package chat

import (
	"context"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig configures connection-establishment retry with exponential
// backoff. Only connecting is retried; a stream that drops mid-body is not
// recoverable and is never re-dialed.
type RetryConfig struct {
	// MaxAttempts is the maximum number of connection attempts, including
	// the initial one. Streaming uses a smaller cap than plain
	// request/response to bound user-perceived latency.
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration

	// BackoffFactor is the exponential multiplier.
	BackoffFactor float64

	// JitterFactor is the maximum jitter as a fraction of the backoff
	// (0..1), added to avoid synchronized reconnect storms.
	JitterFactor float64
}

// DefaultRetryConfig returns the streaming defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
	}
}

// backoffFor returns the wait before retry number n (1-based).
func (c RetryConfig) backoffFor(n int) time.Duration {
	d := float64(c.InitialBackoff)
	for i := 1; i < n; i++ {
		d *= c.BackoffFactor
	}
	if max := float64(c.MaxBackoff); d > max {
		d = max
	}
	if c.JitterFactor > 0 {
		d += d * c.JitterFactor * rand.Float64()
	}
	return time.Duration(d)
}

// connectFunc performs one connection attempt.
type connectFunc func(ctx context.Context) (*http.Response, error)

// connectWithRetry establishes a connection under the retry policy:
//   - transport-level failures classified as retryable, and gateway
//     statuses (502/503/504), back off and retry, capped at
//     cfg.MaxAttempts total attempts;
//   - a 401 triggers exactly one credential refresh followed by exactly one
//     replay, never more (a second 401 after the replay is terminal);
//   - all other error classes surface immediately.
//
// On success the caller owns the response body.
func connectWithRetry(ctx context.Context, cfg RetryConfig, tokens TokenSource, logger *Logger, connect connectFunc) (*http.Response, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	refreshed := false
	var lastFailure *Failure

	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := connect(ctx)
		if err == nil && resp.StatusCode == http.StatusUnauthorized {
			drainAndClose(resp)
			if refreshed || tokens == nil {
				return nil, classifyStatus(http.StatusUnauthorized, "")
			}
			logger.Info("authorization failed, refreshing credentials")
			if rerr := tokens.Refresh(ctx); rerr != nil {
				return nil, newFailure(FailureAuth, rerr, "credential refresh failed")
			}
			refreshed = true
			// The single replay does not consume the retry budget.
			attempt--
			continue
		}
		if err == nil && retryableStatus(resp.StatusCode) {
			drainAndClose(resp)
			lastFailure = classifyStatus(resp.StatusCode, "")
		} else if err == nil {
			return resp, nil
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !retryableConnectError(err) {
				return nil, classifyError(err)
			}
			lastFailure = classifyError(err)
		}

		if attempt == attempts {
			break
		}

		wait := cfg.backoffFor(attempt)
		logger.Warn("connection attempt failed, retrying",
			"attempt", attempt, "wait", wait, "error", lastFailure)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, lastFailure
}

// retryableStatus reports whether an HTTP status is a transient gateway
// condition worth another connection attempt.
func retryableStatus(status int) bool {
	return status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}
