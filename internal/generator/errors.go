package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FailureReason categorizes why a provider request failed.
type FailureReason string

const (
	// FailureTimeout indicates the request hit its deadline.
	FailureTimeout FailureReason = "timeout"

	// FailureRateLimit indicates rate limiting (HTTP 429).
	FailureRateLimit FailureReason = "rate_limit"

	// FailureAuth indicates authentication failure (HTTP 401, 403).
	FailureAuth FailureReason = "auth"

	// FailureServerError indicates server-side issues (HTTP 5xx).
	FailureServerError FailureReason = "server_error"

	// FailureUnavailable indicates the provider could not be reached.
	FailureUnavailable FailureReason = "unavailable"

	// FailureUnknown indicates an unclassified error.
	FailureUnknown FailureReason = "unknown"
)

// IsRetryable returns true if the reason suggests retrying may succeed.
func (r FailureReason) IsRetryable() bool {
	switch r {
	case FailureTimeout, FailureRateLimit, FailureServerError, FailureUnavailable:
		return true
	default:
		return false
	}
}

// ProviderError is a structured error from a response-generator provider.
// Every ProviderError is recovered locally with a canned fallback reply;
// it never surfaces to the caller as a turn failure.
type ProviderError struct {
	Reason   FailureReason
	Provider string
	Model    string
	Status   int
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	parts := []string{fmt.Sprintf("[%s]", e.Reason)}
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a ProviderError, classifying cause.
func NewProviderError(provider, model string, cause error) *ProviderError {
	err := &ProviderError{
		Provider: provider,
		Model:    model,
		Cause:    cause,
		Reason:   FailureUnknown,
	}
	if cause != nil {
		err.Message = cause.Error()
		err.Reason = classifyError(cause)
	}
	return err
}

// WithStatus adds the HTTP status and reclassifies.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	if reason := classifyStatusCode(status); reason != FailureUnknown {
		e.Reason = reason
	}
	return e
}

// IsProviderError extracts a ProviderError from an error chain.
func IsProviderError(err error) (*ProviderError, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr, true
	}
	return nil, false
}

func classifyError(err error) FailureReason {
	if err == nil {
		return FailureUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "deadline exceeded"):
		return FailureTimeout
	case strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "too many requests"):
		return FailureRateLimit
	case strings.Contains(errStr, "unauthorized"),
		strings.Contains(errStr, "invalid api key"),
		strings.Contains(errStr, "authentication"):
		return FailureAuth
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "no such host"):
		return FailureUnavailable
	default:
		return FailureUnknown
	}
}

func classifyStatusCode(status int) FailureReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailureAuth
	case status == http.StatusTooManyRequests:
		return FailureRateLimit
	case status >= 500:
		return FailureServerError
	default:
		return FailureUnknown
	}
}
