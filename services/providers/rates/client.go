package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"hotel-search-go/logcolors"
	"hotel-search-go/services/providers"
	"net/http"

	log "github.com/sirupsen/logrus"
)

const (
	providerName = "rates"
	ratesPath    = "/hotels/rates"
)

// Client queries the upstream rate search provider.
type Client struct {
	*providers.Client
}

// NewClient wraps a transport configured for the rates upstream.
func NewClient(transport *providers.Client) *Client {
	return &Client{Client: transport}
}

// NewDefaultClient builds a rates client with its own transport.
func NewDefaultClient(cfg providers.ClientConfig) *Client {
	if cfg.Name == "" {
		cfg.Name = providerName
	}
	return NewClient(providers.NewClient(cfg))
}

// SearchRates posts req and decodes the response. The response keeps the raw body.
func (c *Client) SearchRates(ctx context.Context, req Request) (*Response, error) {
	log.Debugf("%s Searching rates (place=%q refundableOnly=%v)", logcolors.LogRates, req.PlaceID, req.RefundableRatesOnly)

	body, err := c.Do(ctx, providers.Request{
		Method: http.MethodPost,
		Path:   ratesPath,
		Body:   req,
		APIKey: req.APIKey,
	})
	if err != nil {
		return nil, err
	}

	resp, err := Decode(body)
	if err != nil {
		return nil, providers.NewUpstreamError(c.Name(), http.StatusOK, "failed to parse response", err)
	}
	return resp, nil
}

// Decode parses a rates response body.
func Decode(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid rates payload: %w", err)
	}
	resp.Raw = json.RawMessage(body)
	return &resp, nil
}
