package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hotel-search-go/circuitbreaker"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "hotel-search-go/1.0"
	maxErrorBody   = 512
)

// Client is the shared JSON-over-HTTP transport used by the upstream providers.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// ClientConfig configures a Client. Zero values select defaults.
type ClientConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a transport for one upstream.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.Config{Name: cfg.Name, IsFailure: CountsAsFailure})
	}
	return &Client{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		breaker:    breaker,
	}
}

// Name returns the provider name used in errors and logs.
func (c *Client) Name() string {
	return c.name
}

// Breaker returns the circuit breaker guarding this upstream.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Request describes one upstream call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
	// APIKey overrides the client's default credential.
	APIKey string
}

// Do performs req through the circuit breaker and returns the raw response body.
// Non-2xx responses become *UpstreamError.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	var body []byte
	err := c.breaker.Execute(func() error {
		var err error
		body, err = c.do(ctx, req)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil, NewUpstreamError(c.name, http.StatusServiceUnavailable, "circuit breaker open", err)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, req Request) ([]byte, error) {
	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.apiKey
	}
	if apiKey != "" {
		httpReq.Header.Set("X-API-Key", apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewUpstreamError(c.name, 0, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewUpstreamError(c.name, resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewUpstreamError(c.name, resp.StatusCode, upstreamMessage(data), nil)
	}
	return data, nil
}

// upstreamMessage pulls a human readable message out of an error body.
func upstreamMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message     string `json:"message"`
			Description string `json:"description"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		switch {
		case envelope.Error.Message != "":
			return envelope.Error.Message
		case envelope.Error.Description != "":
			return envelope.Error.Description
		case envelope.Message != "":
			return envelope.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		msg = "empty response"
	}
	return msg
}
