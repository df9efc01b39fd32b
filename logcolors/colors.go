package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Red    = "\033[31m"
	Yellow = "\033[33m"

	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
)

// Cache-related log prefixes
const (
	LogCacheInit    = Blue + "[Cache:Init]" + Reset
	LogCache        = Blue + "[Cache]" + Reset
	LogCacheBackup  = Blue + "[Cache:Backup]" + Reset
	LogCacheClear   = Blue + "[Cache:Clear]" + Reset
	LogCacheBackups = Blue + "[Cache:Backups]" + Reset
	LogCacheRestore = Blue + "[Cache:Restore]" + Reset
	LogCacheSearch  = Green + "[Cache:Search]" + Reset
	LogCacheDetails = Green + "[Cache:Details]" + Reset
)

// Rate limiting log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Purple + "[APIKey]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// sessionColors rotate per session so interleaved enrichment logs stay readable
var sessionColors = []string{
	Green, Blue, Purple, Cyan,
	BrightGreen, BrightBlue, BrightMagenta, BrightCyan,
}

// Session returns a colored session id for log messages.
// Same id always gets the same color.
func Session(id string) string {
	hash := 0
	for _, c := range id {
		hash += int(c)
	}
	color := sessionColors[hash%len(sessionColors)]
	return color + id + Reset
}

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
	LogHTTP   = Cyan + "[HTTP]" + Reset
)

// Search pipeline log prefixes
const (
	LogSearch      = Blue + "[Search]" + Reset
	LogAggregate   = Green + "[Aggregate]" + Reset
	LogRates       = Cyan + "[Rates]" + Reset
	LogDetails     = Cyan + "[Details]" + Reset
	LogEnrichment  = BrightBlue + "[Enrichment]" + Reset
	LogWave        = BrightCyan + "[Wave]" + Reset
	LogSession     = BrightMagenta + "[Session]" + Reset
	LogPricing     = Purple + "[Pricing]" + Reset
	LogHealthCheck = Cyan + "[Health Check]" + Reset
	LogWarning     = Red + "[Warning]" + Reset
)
