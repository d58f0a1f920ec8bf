package llm

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/HexSleeves/toolloop/internal/errors"
)

// retryBaseDelay is the first backoff step; tests shorten it.
var retryBaseDelay = time.Second

const retryMaxDelay = 30 * time.Second

// IsRetryableError checks if a completion error is worth retrying.
// It covers common transient failures: network errors, rate limits,
// server errors, and provider-specific overload conditions.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return errors.IsRetryable(err)
}

// classifyStatus marks a provider failure as retryable or permanent from its
// HTTP status, so the decision never depends on the message text.
func classifyStatus(err error, code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return errors.NewRetryableError(err, "rate_limit")
	case code == http.StatusRequestTimeout, code == http.StatusConflict:
		return errors.NewRetryableError(err, "timeout")
	case code >= 500:
		return errors.NewRetryableError(err, "server")
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return errors.NewPermanentError(err, "auth")
	case code >= 400:
		return errors.NewPermanentError(err, "request")
	}
	return err
}

// RetryCall retries a completion with exponential backoff.
// maxRetries is the number of retry attempts (not counting the initial call).
// Backoff schedule: 1s, 2s, 4s, etc.
// Only retries if IsRetryableError returns true for the error.
func RetryCall(ctx context.Context, maxRetries int, logger *log.Logger, fn func(ctx context.Context) (string, error)) (string, error) {
	out, err := fn(ctx)
	if err == nil {
		return out, nil
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if !IsRetryableError(err) {
			return "", err
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		backoff := errors.CalculateBackoff(retryBaseDelay, attempt, retryMaxDelay)
		if logger != nil {
			logger.Printf("⚠ LLM call failed: %v, retrying in %v (attempt %d/%d)", err, backoff, attempt+1, maxRetries)
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}

		out, err = fn(ctx)
		if err == nil {
			return out, nil
		}
	}

	return "", err
}
