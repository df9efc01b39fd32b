package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestUpstreamError(t *testing.T) {
	t.Run("Error message with status and wrapped error", func(t *testing.T) {
		underlying := errors.New("connection reset")
		err := NewUpstreamError("rates", 502, "bad gateway", underlying)

		expected := "rates: status 502: bad gateway: connection reset"
		if err.Error() != expected {
			t.Errorf("Expected %q, got %q", expected, err.Error())
		}
		if !errors.Is(err, underlying) {
			t.Error("Expected errors.Is to find the wrapped error")
		}
	})

	t.Run("Error message without status", func(t *testing.T) {
		err := NewUpstreamError("details", 0, "request failed", nil)
		if err.Error() != "details: request failed" {
			t.Errorf("Unexpected message %q", err.Error())
		}
	})

	t.Run("errors.As through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("primary search: %w", NewUpstreamError("rates", 400, "invalid checkin", nil))
		var upstreamErr *UpstreamError
		if !errors.As(wrapped, &upstreamErr) {
			t.Fatal("Expected errors.As to succeed")
		}
		if upstreamErr.StatusCode != 400 {
			t.Errorf("Expected status 400, got %d", upstreamErr.StatusCode)
		}
	})
}

func TestUpstreamErrorIsClientError(t *testing.T) {
	tests := []struct {
		status   int
		expected bool
	}{
		{0, false},
		{400, true},
		{404, true},
		{408, false},
		{422, true},
		{429, false},
		{500, false},
		{504, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := NewUpstreamError("rates", tt.status, "x", nil)
			if got := err.IsClientError(); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCountsAsFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"wrapped canceled", NewUpstreamError("rates", 0, "request failed", context.Canceled), false},
		{"client error", NewUpstreamError("rates", 400, "bad", nil), false},
		{"server error", NewUpstreamError("rates", 500, "boom", nil), true},
		{"deadline", context.DeadlineExceeded, true},
		{"plain error", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountsAsFailure(tt.err); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
