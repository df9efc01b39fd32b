package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

// DefaultResultTTL is how long a composed search response is served from memory.
const DefaultResultTTL = 180 * time.Second

type resultEntry[V any] struct {
	storedAt time.Time
	payload  V
}

// ResultCache maps a canonical search key to a composed response.
// Reads past the TTL are misses but the entry is kept until overwritten or evicted.
// With MaxEntries <= 0 the cache grows without bound.
type ResultCache[V any] struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.RWMutex
	entries map[string]resultEntry[V]

	bounded *lru.Cache[string, resultEntry[V]]
}

// ResultCacheConfig configures a ResultCache. Zero values select defaults.
type ResultCacheConfig struct {
	TTL        time.Duration
	MaxEntries int
	Clock      clockwork.Clock
}

// NewResultCache creates a result cache.
func NewResultCache[V any](cfg ResultCacheConfig) (*ResultCache[V], error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultResultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	rc := &ResultCache[V]{ttl: cfg.TTL, clock: cfg.Clock}
	if cfg.MaxEntries > 0 {
		bounded, err := lru.New[string, resultEntry[V]](cfg.MaxEntries)
		if err != nil {
			return nil, err
		}
		rc.bounded = bounded
	} else {
		rc.entries = make(map[string]resultEntry[V])
	}
	return rc, nil
}

func (rc *ResultCache[V]) lookup(key string) (resultEntry[V], bool) {
	if rc.bounded != nil {
		return rc.bounded.Get(key)
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	e, ok := rc.entries[key]
	return e, ok
}

// Get returns the payload stored under key if it is at most TTL old.
func (rc *ResultCache[V]) Get(key string) (V, bool) {
	e, ok := rc.lookup(key)
	if !ok || rc.clock.Since(e.storedAt) > rc.ttl {
		var zero V
		return zero, false
	}
	return e.payload, true
}

// Set overwrites any entry for key and stamps it with the current time.
func (rc *ResultCache[V]) Set(key string, payload V) {
	e := resultEntry[V]{storedAt: rc.clock.Now(), payload: payload}
	if rc.bounded != nil {
		rc.bounded.Add(key, e)
		return
	}
	rc.mu.Lock()
	rc.entries[key] = e
	rc.mu.Unlock()
}

// Len counts stored entries including stale ones.
func (rc *ResultCache[V]) Len() int {
	if rc.bounded != nil {
		return rc.bounded.Len()
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.entries)
}

// Keys lists stored keys including stale ones.
func (rc *ResultCache[V]) Keys() []string {
	if rc.bounded != nil {
		return rc.bounded.Keys()
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	keys := make([]string, 0, len(rc.entries))
	for k := range rc.entries {
		keys = append(keys, k)
	}
	return keys
}

// Purge drops every entry.
func (rc *ResultCache[V]) Purge() {
	if rc.bounded != nil {
		rc.bounded.Purge()
		return
	}
	rc.mu.Lock()
	rc.entries = make(map[string]resultEntry[V])
	rc.mu.Unlock()
}

// TTL returns the freshness window.
func (rc *ResultCache[V]) TTL() time.Duration {
	return rc.ttl
}
