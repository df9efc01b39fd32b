package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		Port      string `envconfig:"PORT" default:"8080"`
		LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
		LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

		RateLimitPerSecond        int `envconfig:"RATE_LIMIT_PER_SECOND" default:"2"`
		RateLimitBurstLimit       int `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"5"`
		CachedRateLimitPerSecond  int `envconfig:"CACHED_RATE_LIMIT_PER_SECOND" default:"10"`
		CachedRateLimitBurstLimit int `envconfig:"CACHED_RATE_LIMIT_BURST_LIMIT" default:"20"`

		SearchCacheTTLInSeconds int `envconfig:"SEARCH_CACHE_TTL_IN_SECONDS" default:"180"`
		SearchCacheMaxEntries   int `envconfig:"SEARCH_CACHE_MAX_ENTRIES" default:"0"` // 0 keeps the cache unbounded
		DefaultTimeoutInSeconds int `envconfig:"DEFAULT_TIMEOUT_IN_SECONDS" default:"5"`

		DetailCacheTTLInSeconds int    `envconfig:"DETAIL_CACHE_TTL_IN_SECONDS" default:"3600"`
		DetailCachePath         string `envconfig:"DETAIL_CACHE_PATH" default:"./data/details.db"`
		DetailCacheBackupPath   string `envconfig:"DETAIL_CACHE_BACKUP_PATH" default:"./data/backups"`
		StatsDBPath             string `envconfig:"STATS_DB_PATH" default:"./data/stats.db"`
		StatsSaveIntervalInSecs int    `envconfig:"STATS_SAVE_INTERVAL_IN_SECONDS" default:"300"`
		CacheAccessToken        string `envconfig:"CACHE_ACCESS_TOKEN" default:""`
		APIKey                  string `envconfig:"API_KEY" default:""`
		APIKeyRequired          bool   `envconfig:"API_KEY_REQUIRED" default:"false"`

		// Upstream providers
		RatesBaseURL     string `envconfig:"RATES_BASE_URL" default:"https://api.liteapi.travel/v3.0"`
		DetailBaseURL    string `envconfig:"DETAIL_BASE_URL" default:"https://api.liteapi.travel/v3.0"`
		UpstreamAPIKey   string `envconfig:"UPSTREAM_API_KEY" default:""`
		DetailTimeoutSec int    `envconfig:"DETAIL_TIMEOUT_SECS" default:"10"`

		// Pricing channels, e.g. CHANNEL_API_KEYS=web:key1,mobile:key2
		ChannelAPIKeys map[string]string  `envconfig:"CHANNEL_API_KEYS" default:""`
		ChannelMargins map[string]float64 `envconfig:"CHANNEL_MARGINS" default:""`
		ChannelMarkups map[string]float64 `envconfig:"CHANNEL_MARKUPS" default:""`
		DefaultChannel string             `envconfig:"DEFAULT_CHANNEL" default:"web"`
		DefaultMargin  float64            `envconfig:"DEFAULT_MARGIN" default:"0"`

		EnrichmentBatchSize   int `envconfig:"ENRICHMENT_BATCH_SIZE" default:"80"`
		EnrichmentMaxWaves    int `envconfig:"ENRICHMENT_MAX_WAVES" default:"10"`
		EnrichmentDebounceMs  int `envconfig:"ENRICHMENT_DEBOUNCE_MS" default:"350"`
		EnrichmentConcurrency int `envconfig:"ENRICHMENT_CONCURRENCY" default:"8"`
		SessionTTLInMinutes   int `envconfig:"SESSION_TTL_IN_MINUTES" default:"30"`
		SessionMax            int `envconfig:"SESSION_MAX" default:"10000"`

		RateLimiterIdleMinutes int `envconfig:"RATE_LIMITER_IDLE_MINUTES" default:"10"`
		// Addresses or CIDR ranges whose X-Forwarded-For is honored, e.g. TRUSTED_PROXIES=10.0.0.0/8
		TrustedProxies []string `envconfig:"TRUSTED_PROXIES" default:""`

		CircuitBreakerThreshold    int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`      // Consecutive failures before circuit opens
		CircuitBreakerCooldownSecs int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"60"` // Seconds to wait before retrying

		AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

		PromoBannerText      string  `envconfig:"PROMO_BANNER_TEXT" default:""`
		PromoDiscountPercent float64 `envconfig:"PROMO_DISCOUNT_PERCENT" default:"0"`
	}

	FeatureFlags struct {
		CacheCompression   bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
		SearchSingleFlight bool `envconfig:"FF_SEARCH_SINGLE_FLIGHT" default:"false"`
		CancelStaleWaves   bool `envconfig:"FF_CANCEL_STALE_WAVES" default:"false"`
	}
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}
