package main

import (
	"context"
	"fmt"
	"hotel-search-go/cache"
	"hotel-search-go/circuitbreaker"
	"hotel-search-go/config"
	"hotel-search-go/logcolors"
	"hotel-search-go/metrics"
	"hotel-search-go/middleware"
	"hotel-search-go/services/enrichment"
	"hotel-search-go/services/pricing"
	"hotel-search-go/services/providers"
	"hotel-search-go/services/providers/details"
	"hotel-search-go/services/providers/rates"
	"hotel-search-go/services/search"
	"hotel-search-go/stats"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// server holds every long-lived component behind the HTTP API.
type server struct {
	conf        config.Config
	clock       clockwork.Clock
	stats       *stats.Stats
	metrics     *metrics.Metrics
	obs         observers
	resolver    pricing.Resolver
	results     *cache.ResultCache[*search.Payload]
	detailCache *cache.DetailCache
	details     *details.Client
	search      *search.Service
	sessions    *enrichment.Registry
	providers   *providers.Registry
	limiter     *middleware.IPRateLimiter
	proxies     *middleware.TrustedProxies
	validate    *validator.Validate
}

// serverOptions overrides process-wide collaborators, mostly for tests.
type serverOptions struct {
	Clock    clockwork.Clock
	Stats    *stats.Stats
	Registry *prometheus.Registry
}

func newServer(cfg config.Config, opts serverOptions) (*server, error) {
	c := cfg.Configuration
	ff := cfg.FeatureFlags

	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Stats == nil {
		opts.Stats = stats.Get()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	m := metrics.New(opts.Registry)
	obs := observers{m: m, s: opts.Stats}

	newBreaker := func(name string) *circuitbreaker.CircuitBreaker {
		return circuitbreaker.New(circuitbreaker.Config{
			Name:      name,
			Threshold: c.CircuitBreakerThreshold,
			Cooldown:  time.Duration(c.CircuitBreakerCooldownSecs) * time.Second,
			Clock:     opts.Clock,
			IsFailure: providers.CountsAsFailure,
			OnStateChange: func(name string, _, to circuitbreaker.State) {
				m.SetBreakerState(name, int(to))
			},
		})
	}

	proxies, err := middleware.NewTrustedProxies(c.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TRUSTED_PROXIES: %w", err)
	}

	detailCache, err := cache.NewDetailCache(
		c.DetailCachePath,
		c.DetailCacheBackupPath,
		time.Duration(c.DetailCacheTTLInSeconds)*time.Second,
		ff.CacheCompression,
		opts.Clock,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open detail cache: %w", err)
	}

	results, err := cache.NewResultCache[*search.Payload](cache.ResultCacheConfig{
		TTL:        time.Duration(c.SearchCacheTTLInSeconds) * time.Second,
		MaxEntries: c.SearchCacheMaxEntries,
		Clock:      opts.Clock,
	})
	if err != nil {
		detailCache.Close()
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	rateClient := rates.NewDefaultClient(providers.ClientConfig{
		Name:    "rates",
		BaseURL: c.RatesBaseURL,
		APIKey:  c.UpstreamAPIKey,
		Breaker: newBreaker("rates"),
	})
	detailClient := details.NewDefaultClient(providers.ClientConfig{
		Name:    "details",
		BaseURL: c.DetailBaseURL,
		APIKey:  c.UpstreamAPIKey,
		Timeout: time.Duration(c.DetailTimeoutSec) * time.Second,
		Breaker: newBreaker("details"),
	}, details.Options{
		Store:       detailCache,
		Concurrency: c.EnrichmentConcurrency,
		Observer:    obs,
	})

	registry := providers.NewRegistry()
	registry.Register(rateClient)
	registry.Register(detailClient)

	aggregator := search.NewAggregator(search.AggregatorConfig{
		Rates:    rateClient,
		Promo:    search.NewPromoConfig(c.PromoBannerText, c.PromoDiscountPercent),
		Observer: obs,
		Clock:    opts.Clock,
	})

	sessions := enrichment.NewRegistry(enrichment.RegistryConfig{
		MaxSessions: c.SessionMax,
		IdleTTL:     time.Duration(c.SessionTTLInMinutes) * time.Minute,
		Fetcher:     detailClient,
		Scheduler:   enrichment.NewClockScheduler(opts.Clock),
		Session: enrichment.Config{
			BatchSize:   c.EnrichmentBatchSize,
			MaxWaves:    c.EnrichmentMaxWaves,
			Debounce:    time.Duration(c.EnrichmentDebounceMs) * time.Millisecond,
			CancelStale: ff.CancelStaleWaves,
		},
		Observer: obs,
	})

	s := &server{
		conf:        cfg,
		clock:       opts.Clock,
		stats:       opts.Stats,
		metrics:     m,
		obs:         obs,
		results:     results,
		detailCache: detailCache,
		details:     detailClient,
		providers:   registry,
		sessions:    sessions,
		validate:    validator.New(),
		search: search.NewService(aggregator, results, search.Options{
			SingleFlight: ff.SearchSingleFlight,
			Observer:     obs,
		}),
		resolver: pricing.NewStaticResolver(pricing.StaticConfig{
			DefaultChannel: c.DefaultChannel,
			DefaultMargin:  c.DefaultMargin,
			FallbackAPIKey: c.UpstreamAPIKey,
			APIKeys:        c.ChannelAPIKeys,
			Margins:        c.ChannelMargins,
			Markups:        c.ChannelMarkups,
		}),
		limiter: middleware.NewIPRateLimiter(
			rate.Limit(c.RateLimitPerSecond), c.RateLimitBurstLimit,
			rate.Limit(c.CachedRateLimitPerSecond), c.CachedRateLimitBurstLimit,
		),
		proxies: proxies,
	}

	m.TrackSize("result_cache_entries", "Entries held by the search result cache", results.Len)
	m.TrackSize("sessions_active", "Live enrichment sessions", sessions.Len)
	m.TrackSize("ratelimit_tracked_ips", "Client IPs tracked by the rate limiter", s.limiter.Len)
	m.TrackSize("detail_cache_entries", "Entries held by the hotel detail cache", func() int {
		n, _ := detailCache.Stats()
		return n
	})

	log.Infof("%s Rate limits: normal %d/s burst %d, cached %d/s burst %d", logcolors.LogConfig,
		c.RateLimitPerSecond, c.RateLimitBurstLimit, c.CachedRateLimitPerSecond, c.CachedRateLimitBurstLimit)
	if proxies.Len() > 0 {
		log.Infof("%s Honoring X-Forwarded-For from %d trusted proxy ranges", logcolors.LogConfig, proxies.Len())
	}
	log.Infof("%s Result cache TTL %ds, single flight %v, cancel stale waves %v", logcolors.LogConfig,
		c.SearchCacheTTLInSeconds, ff.SearchSingleFlight, ff.CancelStaleWaves)

	return s, nil
}

// handler assembles the router and the middleware chain.
func (s *server) handler() http.Handler {
	router := mux.NewRouter()
	s.setupRoutes(router)
	router.Use(middleware.MetricsMiddleware(s.metrics), s.statsMiddleware)

	apiKey := middleware.APIKeyMiddleware(
		s.conf.Configuration.APIKey,
		s.conf.Configuration.APIKeyRequired,
		[]string{"/health", "/metrics"},
	)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.conf.Configuration.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-API-Key", "X-Channel", "X-Session-Id", "Authorization"},
		ExposedHeaders:   []string{"X-Cache-Status", "X-Pricing-Channel", "X-Pricing-Margin", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	return middleware.LoggingMiddleware(s.proxies)(s.limitMiddleware(c.Handler(apiKey(router))))
}

// close releases the stores. Sessions are closed first so no wave writes to a closed cache.
func (s *server) close() {
	s.sessions.Close()
	if err := s.detailCache.Close(); err != nil {
		log.Warnf("%s Failed to close detail cache: %v", logcolors.LogCache, err)
	}
}

// statsMiddleware counts requests by route and records status codes and latency.
func (s *server) statsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := middleware.RouteTemplate(r)
		s.stats.RecordRequest(route)

		rec := middleware.NewResponseRecorder(w)
		next.ServeHTTP(rec, r)

		s.stats.RecordStatusCode(rec.StatusCode)
		s.stats.RecordResponseTime(time.Since(start), route)
	})
}

// rateLimitExempt paths are probes and never count against a client.
var rateLimitExempt = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

func (s *server) limitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rateLimitExempt[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		// Check for API key to bypass rate limits
		apiKey := r.Header.Get("X-API-Key")
		if apiKey != "" && s.conf.Configuration.APIKey != "" && apiKey == s.conf.Configuration.APIKey {
			w.Header().Set("X-RateLimit-Bypass", "true")
			ctx := context.WithValue(r.Context(), rateLimitTypeKey, "bypass")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		ip := s.proxies.ClientIP(r)
		limiters := s.limiter.GetLimiter(ip)

		// Try normal tier first
		if limiters.Normal.Allow() {
			s.stats.RecordRateLimit("normal")
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", s.limiter.GetNormalLimit()))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiters.GetNormalTokens()))
			w.Header().Set("X-RateLimit-Type", "normal")
			ctx := context.WithValue(r.Context(), rateLimitTypeKey, "normal")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Normal tier exceeded, searches may only replay cached results
		if limiters.Cached.Allow() {
			s.stats.RecordRateLimit("cached")
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", s.limiter.GetCachedLimit()))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiters.GetCachedTokens()))
			w.Header().Set("X-RateLimit-Type", "cached")
			log.Debugf("%s IP %s exceeded normal tier, using cached tier", logcolors.LogRateLimit, ip)
			ctx := context.WithValue(r.Context(), cacheOnlyModeKey, true)
			ctx = context.WithValue(ctx, rateLimitTypeKey, "cached")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Both tiers exceeded
		s.stats.RecordRateLimit("exceeded")
		s.metrics.IncRateLimitDrops("exceeded")
		log.Warnf("%s IP %s exceeded both rate limit tiers", logcolors.LogRateLimit, ip)
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", s.limiter.GetCachedLimit()))
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Type", "exceeded")
		w.Header().Set("Retry-After", "1")
		Respond(w, r).Error(http.StatusTooManyRequests, codeRateLimited, "Too many requests, retry shortly")
	})
}

// startMaintenance runs the periodic cleanup jobs until ctx is done.
func (s *server) startMaintenance(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	idle := time.Duration(s.conf.Configuration.RateLimiterIdleMinutes) * time.Minute
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if n := s.detailCache.PurgeExpired(); n > 0 {
					log.Infof("%s Purged %d expired hotel details", logcolors.LogCacheDetails, n)
				}
				if n := s.limiter.Cleanup(idle); n > 0 {
					log.Debugf("%s Forgot %d idle clients", logcolors.LogRateLimit, n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
