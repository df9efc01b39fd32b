package search

import (
	"context"
	"errors"
	"hotel-search-go/services/providers"
	"net"
	"net/http"
	"strings"
)

// Code is the stable error code surfaced to clients.
type Code string

const (
	CodeInvalidParams Code = "INVALID_PARAMS"
	CodeNoRates       Code = "NO_RATES"
	CodeTimeout       Code = "TIMEOUT"
	CodeSearchFailed  Code = "SEARCH_FAILED"
)

// HTTPStatus maps a code to its response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidParams:
		return http.StatusBadRequest
	case CodeNoRates:
		return http.StatusNotFound
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// Error is a classified search failure.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error
func NewError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var timeoutStatuses = map[int]bool{
	http.StatusRequestTimeout: true,
	http.StatusGatewayTimeout: true,
	524:                       true, // origin timeout reported by some CDNs
}

var timeoutPhrases = []string{"timeout", "timed out", "deadline exceeded"}

// Classify maps any error from a search into an *Error. An *Error anywhere in the chain is
// returned as is.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var searchErr *Error
	if errors.As(err, &searchErr) {
		return searchErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeTimeout, "Hotel search timed out", err)
	}

	var upstreamErr *providers.UpstreamError
	if errors.As(err, &upstreamErr) {
		if timeoutStatuses[upstreamErr.StatusCode] {
			return NewError(CodeTimeout, "Hotel search timed out", err)
		}
		if upstreamErr.IsClientError() {
			return NewError(CodeInvalidParams, upstreamErr.Message, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(CodeTimeout, "Hotel search timed out", err)
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range timeoutPhrases {
		if strings.Contains(msg, phrase) {
			return NewError(CodeTimeout, "Hotel search timed out", err)
		}
	}

	return NewError(CodeSearchFailed, "Hotel search failed", err)
}
