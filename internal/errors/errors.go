// Package errors defines the failure taxonomy of the agent loop and the
// retry classification used by the LLM gateway.
//
// Only a GatewayError ends a run abruptly. ParseError and ToolExecutionError
// are turned into observations so the model can correct itself, and a
// TimeoutError reports an exhausted iteration budget.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType categorizes errors for retry decisions
type ErrorType string

const (
	// ErrorTypeRetryable indicates the error might succeed on retry
	ErrorTypeRetryable ErrorType = "retryable"
	// ErrorTypePermanent indicates the error will not succeed on retry
	ErrorTypePermanent ErrorType = "permanent"
	// ErrorTypePanic indicates a panic was recovered
	ErrorTypePanic ErrorType = "panic"
)

// GatewayError reports that a completion call could not be completed:
// network failure, authentication failure or a malformed upstream response.
type GatewayError struct {
	Provider string
	Model    string
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("gateway %s (%s): %v", e.Provider, e.Model, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ParseError reports a reply that carries the ACTION marker but does not
// have the THOUGHT|ACTION|tool|argument shape.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed action: %s", e.Reason)
}

// ToolExecutionError reports a tool that failed on its argument.
type ToolExecutionError struct {
	Tool     string
	Argument string
	Err      error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s(%q) failed: %v", e.Tool, e.Argument, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that the iteration budget ran out before the model
// produced an ANSWER. LastReply holds the final raw reply, if any.
type TimeoutError struct {
	Iterations int
	LastReply  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no answer after %d iterations", e.Iterations)
}

// Is and As forward to the standard library so callers importing this
// package do not need a second errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// IsGateway reports whether err carries a GatewayError.
func IsGateway(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// IsTimeout reports whether err carries a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// RetryableError represents errors that may succeed on retry
// Examples: network timeouts, rate limits, temporary unavailability
type RetryableError struct {
	Err  error
	Kind string
}

func (e *RetryableError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("[retryable:%s] %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("[retryable] %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// PermanentError represents errors that will not succeed on retry
// Examples: bad credentials, unknown model, invalid request
type PermanentError struct {
	Err  error
	Kind string
}

func (e *PermanentError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("[permanent:%s] %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("[permanent] %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps an error as retryable
func NewRetryableError(err error, kind string) error {
	return &RetryableError{Err: err, Kind: kind}
}

// NewPermanentError wraps an error as permanent
func NewPermanentError(err error, kind string) error {
	return &PermanentError{Err: err, Kind: kind}
}

// IsRetryable checks if an error is retryable. Explicit wrappers win over
// message classification.
func IsRetryable(err error) bool {
	return GetErrorType(err) == ErrorTypeRetryable
}

// GetErrorType returns the ErrorType for any error
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var pe *PermanentError
	if errors.As(err, &pe) {
		return ErrorTypePermanent
	}

	var re *RetryableError
	if errors.As(err, &re) {
		return ErrorTypeRetryable
	}

	return ClassifyError(err)
}

var retryablePatterns = []string{
	// Network errors
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
	"deadline exceeded",
	"temporary failure",
	"network is unreachable",
	"unexpected eof",
	// Rate limiting
	"rate limit",
	"too many requests",
	// Upstream trouble
	"internal server error",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"overloaded",
}

var permanentPatterns = []string{
	"unauthorized",
	"forbidden",
	"invalid api key",
	"missing credential",
	"bad request",
}

// ClassifyError determines the error type based on error message patterns.
// It is the fallback for errors without a RetryableError or PermanentError
// wrapper, mostly network failures. Status codes are not matched as bare
// numbers since URLs and response bodies carry digits too. Unknown errors
// default to permanent so that a broken request is not replayed.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	msg := strings.ToLower(err.Error())

	for _, pattern := range permanentPatterns {
		if strings.Contains(msg, pattern) {
			return ErrorTypePermanent
		}
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return ErrorTypeRetryable
		}
	}
	return ErrorTypePermanent
}

// RecoveryResult holds the result of a recovered panic
type RecoveryResult struct {
	Recovered  bool
	PanicValue interface{}
	ErrorMsg   string
	ErrorType  ErrorType
}

// RecoverPanic recovers from a panic and returns a RecoveryResult.
// Use with defer:
//
//	defer func() {
//	    if r := errors.RecoverPanic(recover()); r.Recovered {
//	        // Handle recovered panic
//	    }
//	}()
func RecoverPanic(r interface{}) RecoveryResult {
	if r == nil {
		return RecoveryResult{Recovered: false}
	}

	result := RecoveryResult{
		Recovered:  true,
		PanicValue: r,
		ErrorType:  ErrorTypePanic,
	}

	switch v := r.(type) {
	case error:
		result.ErrorMsg = fmt.Sprintf("panic: %v", v)
	case string:
		result.ErrorMsg = fmt.Sprintf("panic: %s", v)
	default:
		result.ErrorMsg = fmt.Sprintf("panic: %+v", v)
	}

	return result
}

// CalculateBackoff calculates exponential backoff delay
// baseDelay: initial delay
// retryCount: current retry attempt (0-indexed)
// maxDelay: maximum delay cap
func CalculateBackoff(baseDelay time.Duration, retryCount int, maxDelay time.Duration) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}

	delay := baseDelay * (1 << retryCount)

	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}

	return delay
}
