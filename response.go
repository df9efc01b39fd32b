package main

import (
	"encoding/json"
	"hotel-search-go/services/pricing"
	"hotel-search-go/services/search"
	"net/http"
)

// APIResponse handles consistent header setting and JSON responses.
// It centralizes X-Cache-Status, the pricing debug headers and X-RateLimit-Type.
type APIResponse struct {
	w           http.ResponseWriter
	r           *http.Request
	cacheStatus string
	pricing     *pricing.Inputs
}

// Respond creates a response helper from request context
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetCacheStatus sets the X-Cache-Status header value
func (a *APIResponse) SetCacheStatus(status string) *APIResponse {
	a.cacheStatus = status
	return a
}

// SetPricing exposes the resolved channel and margin as debug headers.
func (a *APIResponse) SetPricing(in pricing.Inputs) *APIResponse {
	a.pricing = &in
	return a
}

// writeHeaders sets all standard headers based on context
func (a *APIResponse) writeHeaders() {
	a.w.Header().Set("Content-Type", "application/json")

	if a.cacheStatus != "" {
		a.w.Header().Set("X-Cache-Status", a.cacheStatus)
	}
	if a.pricing != nil {
		a.w.Header().Set("X-Pricing-Channel", a.pricing.Channel)
		a.w.Header().Set("X-Pricing-Margin", a.pricing.MarginHeader())
	}

	if rateLimitType, ok := a.r.Context().Value(rateLimitTypeKey).(string); ok && rateLimitType != "" {
		a.w.Header().Set("X-RateLimit-Type", rateLimitType)
	}
}

// JSON writes headers and encodes data as JSON (200 OK)
func (a *APIResponse) JSON(data interface{}) error {
	a.writeHeaders()
	return json.NewEncoder(a.w).Encode(data)
}

// Error writes headers, sets status code, and encodes the standard error body.
func (a *APIResponse) Error(statusCode int, code, message string) error {
	a.writeHeaders()
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(ErrorBody{Error: ErrorDetail{Message: message, Code: code}})
}

// SearchError writes err using its search classification.
func (a *APIResponse) SearchError(err error) error {
	searchErr := search.Classify(err)
	return a.Error(searchErr.Code.HTTPStatus(), string(searchErr.Code), searchErr.Message)
}
