package main

import (
	"hotel-search-go/cache"
	"hotel-search-go/circuitbreaker"
	"hotel-search-go/models"
	"hotel-search-go/services/enrichment"
	"hotel-search-go/services/filtersort"
	"hotel-search-go/services/search"
)

type contextKey string

const (
	cacheOnlyModeKey contextKey = "cacheOnlyMode"
	rateLimitTypeKey contextKey = "rateLimitType"
)

// Service error codes outside the search classification.
const (
	codeRateLimited  = "RATE_LIMITED"
	codeNotFound     = "NOT_FOUND"
	codeUnauthorized = "UNAUTHORIZED"
)

// searchBody is the POST /api/search body. SessionID may also come from X-Session-Id.
type searchBody struct {
	search.Request
	SessionID string `json:"sessionId"`
}

// SearchResponse is the composed payload plus the session and the initial filtered view.
type SearchResponse struct {
	*search.Payload
	SessionID string `json:"sessionId"`
	Channel   string `json:"pricingChannel"`
	filtersort.Segments
}

// ResultsResponse is a re-filtered view over a session's current search.
type ResultsResponse struct {
	SessionID string                `json:"sessionId"`
	State     enrichment.WaveState  `json:"state"`
	Done      bool                  `json:"done"`
	Total     int                   `json:"totalHotels"`
	SortOrder filtersort.SortOrder  `json:"sortOrder"`
	Hotels    []models.HotelSummary `json:"hotels"`
	Other     []models.HotelSummary `json:"otherHotels"`
}

// DetailsRequest is the POST /api/hotels/details body.
type DetailsRequest struct {
	HotelIDs []string `json:"hotelIds" validate:"required,min=1,max=200,dive,required,max=100"`
	Language string   `json:"language" validate:"omitempty,min=2,max=5"`
}

// DetailsResponse maps hotel ids to the details that could be fetched.
type DetailsResponse struct {
	Details map[string]models.HotelDetail `json:"hotelDetailsByHotelId"`
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable machine readable code and a human message.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// CachePerformance contains cache hit/miss statistics
type CachePerformance struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate_percent"`
}

// ResultCacheInfo describes the in-memory search result cache.
type ResultCacheInfo struct {
	Entries     int              `json:"entries"`
	TTLSeconds  float64          `json:"ttl_seconds"`
	Performance CachePerformance `json:"performance"`
}

// DetailCacheInfo describes the persistent hotel detail cache.
type DetailCacheInfo struct {
	NumberOfKeys int                          `json:"number_of_keys"`
	SizeInKB     int                          `json:"size_kb"`
	SizeInMB     float64                      `json:"size_mb"`
	Performance  CachePerformance             `json:"performance"`
	Entries      map[string]cache.DetailEntry `json:"entries,omitempty"`
}

// CacheDumpResponse is the response format for /cache endpoint
type CacheDumpResponse struct {
	Results ResultCacheInfo `json:"results"`
	Details DetailCacheInfo `json:"details"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status   string                             `json:"status"`
	Uptime   string                             `json:"uptime"`
	Sessions int                                `json:"sessions"`
	Breakers map[string]circuitbreaker.Snapshot `json:"circuit_breakers"`
}
