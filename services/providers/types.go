package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError is a failed call to an upstream provider.
// StatusCode is 0 when no HTTP response was received.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Provider + ": " + e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether the upstream rejected the request itself (4xx other than
// timeouts and throttling).
func (e *UpstreamError) IsClientError() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(provider string, statusCode int, message string, err error) *UpstreamError {
	return &UpstreamError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// CountsAsFailure decides whether err should count against a provider's circuit breaker.
// Caller cancellations and client errors do not indicate an unhealthy upstream.
func CountsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) && upstreamErr.IsClientError() {
		return false
	}
	return true
}
