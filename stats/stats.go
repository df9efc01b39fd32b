package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxInt64 = int64(^uint64(0) >> 1)

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests   atomic.Int64
	SearchRequests  atomic.Int64
	ResultsRequests atomic.Int64
	DetailsRequests atomic.Int64
	CacheRequests   atomic.Int64
	StatsRequests   atomic.Int64
	HealthRequests  atomic.Int64
	OtherRequests   atomic.Int64

	// Result cache performance
	CacheHits   atomic.Int64
	CacheMisses atomic.Int64

	// Detail cache and upstream
	DetailCacheHits     atomic.Int64
	DetailCacheMisses   atomic.Int64
	DetailFetchFailures atomic.Int64
	UpstreamCalls       atomic.Int64
	UpstreamErrors      atomic.Int64

	// Enrichment
	WavesCompleted atomic.Int64
	WavesDiscarded atomic.Int64
	WavesFailed    atomic.Int64
	HotelsEnriched atomic.Int64

	// Rate limiting
	RateLimitNormal   atomic.Int64 // Requests served under normal rate limit
	RateLimitCached   atomic.Int64 // Requests served under cached-only tier
	RateLimitExceeded atomic.Int64 // Requests rejected (429)

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64

	// Search endpoint response times (microseconds)
	searchResponseTime  atomic.Int64
	searchResponseCount atomic.Int64

	// Search outcomes by code (OK, NO_RATES, TIMEOUT, ...)
	outcomes sync.Map // map[string]*atomic.Int64
}

// New returns an empty Stats started now.
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(maxInt64)
	return s
}

// Global stats instance
var global = New()

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// RecordRequest records a request to a specific endpoint
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/api/search":
		s.SearchRequests.Add(1)
	case "/api/sessions/{id}/results", "/api/sessions/{id}":
		s.ResultsRequests.Add(1)
	case "/api/hotels/details":
		s.DetailsRequests.Add(1)
	case "/cache", "/cache/clear", "/cache/backup", "/cache/backups", "/cache/restore":
		s.CacheRequests.Add(1)
	case "/stats":
		s.StatsRequests.Add(1)
	case "/health":
		s.HealthRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordCacheHit records a result cache hit
func (s *Stats) RecordCacheHit() {
	s.CacheHits.Add(1)
}

// RecordCacheMiss records a result cache miss
func (s *Stats) RecordCacheMiss() {
	s.CacheMisses.Add(1)
}

// RecordSearchOutcome counts a finished search under its outcome code
func (s *Stats) RecordSearchOutcome(code string) {
	counter, _ := s.outcomes.LoadOrStore(code, &atomic.Int64{})
	counter.(*atomic.Int64).Add(1)
}

// OutcomeSnapshot returns the search outcome counters
func (s *Stats) OutcomeSnapshot() map[string]int64 {
	out := make(map[string]int64)
	s.outcomes.Range(func(key, value any) bool {
		out[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return out
}

// ObserveUpstream counts rate search calls and their failures.
func (s *Stats) ObserveUpstream(_ string, _ time.Duration, err error) {
	s.UpstreamCalls.Add(1)
	if err != nil {
		s.UpstreamErrors.Add(1)
	}
}

func (s *Stats) ObserveCache(hit bool) {
	if hit {
		s.RecordCacheHit()
	} else {
		s.RecordCacheMiss()
	}
}

func (s *Stats) ObserveOutcome(code string) { s.RecordSearchOutcome(code) }

func (s *Stats) DetailCacheHit()    { s.DetailCacheHits.Add(1) }
func (s *Stats) DetailCacheMiss()   { s.DetailCacheMisses.Add(1) }
func (s *Stats) DetailFetchFailed() { s.DetailFetchFailures.Add(1) }

func (s *Stats) WaveCompleted(_, updated int) {
	s.WavesCompleted.Add(1)
	s.HotelsEnriched.Add(int64(updated))
}

func (s *Stats) WaveDiscarded() { s.WavesDiscarded.Add(1) }
func (s *Stats) WaveFailed()    { s.WavesFailed.Add(1) }

// RecordRateLimit records rate limit tier usage
func (s *Stats) RecordRateLimit(tier string) {
	switch tier {
	case "normal":
		s.RateLimitNormal.Add(1)
	case "cached":
		s.RateLimitCached.Add(1)
	case "exceeded":
		s.RateLimitExceeded.Add(1)
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration, endpoint string) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	// Update min/max atomically
	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}

	if endpoint == "/api/search" {
		s.searchResponseTime.Add(us)
		s.searchResponseCount.Add(1)
	}
}

// Uptime returns the server uptime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the result cache hit rate as a percentage
func (s *Stats) CacheHitRate() float64 {
	return rate(s.CacheHits.Load(), s.CacheMisses.Load())
}

// DetailCacheHitRate returns the detail cache hit rate as a percentage
func (s *Stats) DetailCacheHitRate() float64 {
	return rate(s.DetailCacheHits.Load(), s.DetailCacheMisses.Load())
}

func rate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the minimum response time
func (s *Stats) MinResponseTime() time.Duration {
	v := s.minResponseTime.Load()
	if v == maxInt64 {
		return 0
	}
	return time.Duration(v) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// AvgSearchResponseTime returns the average response time for search requests
func (s *Stats) AvgSearchResponseTime() time.Duration {
	count := s.searchResponseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.searchResponseTime.Load()/count) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	outcomes := s.OutcomeSnapshot()
	codes := make([]string, 0, len(outcomes))
	for code := range outcomes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	ordered := make([]map[string]interface{}, 0, len(codes))
	for _, code := range codes {
		ordered = append(ordered, map[string]interface{}{"code": code, "count": outcomes[code]})
	}

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":   s.TotalRequests.Load(),
			"search":  s.SearchRequests.Load(),
			"results": s.ResultsRequests.Load(),
			"details": s.DetailsRequests.Load(),
			"cache":   s.CacheRequests.Load(),
			"stats":   s.StatsRequests.Load(),
			"health":  s.HealthRequests.Load(),
			"other":   s.OtherRequests.Load(),
		},
		"cache": map[string]interface{}{
			"hits":     s.CacheHits.Load(),
			"misses":   s.CacheMisses.Load(),
			"hit_rate": s.CacheHitRate(),
		},
		"detail_cache": map[string]interface{}{
			"hits":           s.DetailCacheHits.Load(),
			"misses":         s.DetailCacheMisses.Load(),
			"fetch_failures": s.DetailFetchFailures.Load(),
			"hit_rate":       s.DetailCacheHitRate(),
		},
		"upstream": map[string]interface{}{
			"calls":  s.UpstreamCalls.Load(),
			"errors": s.UpstreamErrors.Load(),
		},
		"searches": ordered,
		"enrichment": map[string]interface{}{
			"waves_completed": s.WavesCompleted.Load(),
			"waves_discarded": s.WavesDiscarded.Load(),
			"waves_failed":    s.WavesFailed.Load(),
			"hotels_enriched": s.HotelsEnriched.Load(),
		},
		"rate_limiting": map[string]interface{}{
			"normal_tier": s.RateLimitNormal.Load(),
			"cached_tier": s.RateLimitCached.Load(),
			"exceeded":    s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg":        s.AvgResponseTime().String(),
			"min":        s.MinResponseTime().String(),
			"max":        s.MaxResponseTime().String(),
			"avg_search": s.AvgSearchResponseTime().String(),
		},
	}
}
