package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hotel_search"

type Metrics struct {
	SearchOutcomes   *prometheus.CounterVec
	SearchCache      *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	DetailCache      *prometheus.CounterVec
	DetailFailures   prometheus.Counter
	Waves            *prometheus.CounterVec
	HotelsEnriched   prometheus.Counter
	BreakerState     *prometheus.GaugeVec
	RateLimitDrops   *prometheus.CounterVec
	HTTPRequestTotal *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	Registry         *prometheus.Registry
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		SearchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by outcome code",
		}, []string{"outcome"}),
		SearchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_lookups_total",
			Help:      "Result cache lookups by result",
		}, []string{"result"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Latency of rate search calls",
			Buckets:   []float64{.1, .25, .5, 1, 2, 3, 5, 8, 13, 21, 30},
		}, []string{"call"}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Failed rate search calls",
		}, []string{"call"}),
		DetailCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detail_cache_lookups_total",
			Help:      "Hotel detail cache lookups by result",
		}, []string{"result"}),
		DetailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detail_fetch_failures_total",
			Help:      "Hotel detail lookups that failed",
		}),
		Waves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_waves_total",
			Help:      "Enrichment waves by outcome",
		}, []string{"outcome"}),
		HotelsEnriched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_hotels_updated_total",
			Help:      "Hotels that gained at least one detail field from a wave",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"name"}),
		RateLimitDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_drops_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"tier"}),
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		Registry: reg,
	}

	reg.MustRegister(
		m.SearchOutcomes,
		m.SearchCache,
		m.UpstreamLatency,
		m.UpstreamErrors,
		m.DetailCache,
		m.DetailFailures,
		m.Waves,
		m.HotelsEnriched,
		m.BreakerState,
		m.RateLimitDrops,
		m.HTTPRequestTotal,
		m.HTTPDuration,
	)

	return m
}

// TrackSize exports fn as a gauge, read on every scrape.
func (m *Metrics) TrackSize(name, help string, fn func() int) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(fn()) }))
}

func (m *Metrics) ObserveUpstream(call string, elapsed time.Duration, err error) {
	m.UpstreamLatency.WithLabelValues(call).Observe(elapsed.Seconds())
	if err != nil {
		m.UpstreamErrors.WithLabelValues(call).Inc()
	}
}

func (m *Metrics) ObserveCache(hit bool) {
	m.SearchCache.WithLabelValues(hitLabel(hit)).Inc()
}

func (m *Metrics) ObserveOutcome(code string) {
	m.SearchOutcomes.WithLabelValues(code).Inc()
}

func (m *Metrics) DetailCacheHit()    { m.DetailCache.WithLabelValues("hit").Inc() }
func (m *Metrics) DetailCacheMiss()   { m.DetailCache.WithLabelValues("miss").Inc() }
func (m *Metrics) DetailFetchFailed() { m.DetailFailures.Inc() }

func (m *Metrics) WaveCompleted(size, updated int) {
	m.Waves.WithLabelValues("completed").Inc()
	m.HotelsEnriched.Add(float64(updated))
}

func (m *Metrics) WaveDiscarded() { m.Waves.WithLabelValues("discarded").Inc() }
func (m *Metrics) WaveFailed()    { m.Waves.WithLabelValues("failed").Inc() }

// SetBreakerState records a breaker's state as its numeric value.
func (m *Metrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) IncRateLimitDrops(tier string) {
	m.RateLimitDrops.WithLabelValues(tier).Inc()
}

func (m *Metrics) ObserveHTTP(method, path, status string, seconds float64) {
	m.HTTPRequestTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path, status).Observe(seconds)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
