package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"hotel-search-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store handles persistent storage for stats
type Store struct {
	db       *bolt.DB
	dbPath   string
	stats    *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// PersistedStats represents the stats data that gets persisted to disk
type PersistedStats struct {
	// Cumulative counters (these accumulate across restarts)
	TotalRequests       int64 `json:"total_requests"`
	SearchRequests      int64 `json:"search_requests"`
	ResultsRequests     int64 `json:"results_requests"`
	DetailsRequests     int64 `json:"details_requests"`
	CacheRequests       int64 `json:"cache_requests"`
	StatsRequests       int64 `json:"stats_requests"`
	HealthRequests      int64 `json:"health_requests"`
	OtherRequests       int64 `json:"other_requests"`
	CacheHits           int64 `json:"cache_hits"`
	CacheMisses         int64 `json:"cache_misses"`
	DetailCacheHits     int64 `json:"detail_cache_hits"`
	DetailCacheMisses   int64 `json:"detail_cache_misses"`
	DetailFetchFailures int64 `json:"detail_fetch_failures"`
	UpstreamCalls       int64 `json:"upstream_calls"`
	UpstreamErrors      int64 `json:"upstream_errors"`
	WavesCompleted      int64 `json:"waves_completed"`
	WavesDiscarded      int64 `json:"waves_discarded"`
	WavesFailed         int64 `json:"waves_failed"`
	HotelsEnriched      int64 `json:"hotels_enriched"`
	RateLimitNormal     int64 `json:"rate_limit_normal"`
	RateLimitCached     int64 `json:"rate_limit_cached"`
	RateLimitExceeded   int64 `json:"rate_limit_exceeded"`
	Status2xx           int64 `json:"status_2xx"`
	Status4xx           int64 `json:"status_4xx"`
	Status5xx           int64 `json:"status_5xx"`

	// Response time tracking
	TotalResponseTime   int64 `json:"total_response_time"`
	ResponseCount       int64 `json:"response_count"`
	MinResponseTime     int64 `json:"min_response_time"`
	MaxResponseTime     int64 `json:"max_response_time"`
	SearchResponseTime  int64 `json:"search_response_time"`
	SearchResponseCount int64 `json:"search_response_count"`

	// Search outcomes by code
	Outcomes map[string]int64 `json:"outcomes"`

	// Metadata
	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore creates a new stats store with a dedicated BoltDB file. A nil target persists the
// global stats.
func NewStore(dbPath string, target *Stats) (*Store, error) {
	if target == nil {
		target = Get()
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	// Create bucket if it doesn't exist
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %w", err)
	}

	store := &Store{
		db:       db,
		dbPath:   dbPath,
		stats:    target,
		stopChan: make(chan struct{}),
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return store, nil
}

// Load reads persisted stats from disk and applies them to the target stats
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var persisted PersistedStats
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}

		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil // No persisted stats yet
		}

		return json.Unmarshal(data, &persisted)
	})

	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	st := s.stats

	st.TotalRequests.Store(persisted.TotalRequests)
	st.SearchRequests.Store(persisted.SearchRequests)
	st.ResultsRequests.Store(persisted.ResultsRequests)
	st.DetailsRequests.Store(persisted.DetailsRequests)
	st.CacheRequests.Store(persisted.CacheRequests)
	st.StatsRequests.Store(persisted.StatsRequests)
	st.HealthRequests.Store(persisted.HealthRequests)
	st.OtherRequests.Store(persisted.OtherRequests)
	st.CacheHits.Store(persisted.CacheHits)
	st.CacheMisses.Store(persisted.CacheMisses)
	st.DetailCacheHits.Store(persisted.DetailCacheHits)
	st.DetailCacheMisses.Store(persisted.DetailCacheMisses)
	st.DetailFetchFailures.Store(persisted.DetailFetchFailures)
	st.UpstreamCalls.Store(persisted.UpstreamCalls)
	st.UpstreamErrors.Store(persisted.UpstreamErrors)
	st.WavesCompleted.Store(persisted.WavesCompleted)
	st.WavesDiscarded.Store(persisted.WavesDiscarded)
	st.WavesFailed.Store(persisted.WavesFailed)
	st.HotelsEnriched.Store(persisted.HotelsEnriched)
	st.RateLimitNormal.Store(persisted.RateLimitNormal)
	st.RateLimitCached.Store(persisted.RateLimitCached)
	st.RateLimitExceeded.Store(persisted.RateLimitExceeded)
	st.Status2xx.Store(persisted.Status2xx)
	st.Status4xx.Store(persisted.Status4xx)
	st.Status5xx.Store(persisted.Status5xx)
	st.totalResponseTime.Store(persisted.TotalResponseTime)
	st.responseCount.Store(persisted.ResponseCount)
	st.searchResponseTime.Store(persisted.SearchResponseTime)
	st.searchResponseCount.Store(persisted.SearchResponseCount)

	// Only update min/max if we have valid persisted values
	if persisted.MinResponseTime > 0 && persisted.MinResponseTime < maxInt64 {
		st.minResponseTime.Store(persisted.MinResponseTime)
	}
	if persisted.MaxResponseTime > 0 {
		st.maxResponseTime.Store(persisted.MaxResponseTime)
	}

	for code, count := range persisted.Outcomes {
		counter := &atomic.Int64{}
		counter.Store(count)
		st.outcomes.Store(code, counter)
	}

	// Preserve the original first start time if available
	if !persisted.FirstStarted.IsZero() {
		st.StartTime = persisted.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, persisted.TotalRequests, persisted.FirstStarted.Format(time.RFC3339))

	return nil
}

// Save persists current stats to disk
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats

	persisted := PersistedStats{
		TotalRequests:       st.TotalRequests.Load(),
		SearchRequests:      st.SearchRequests.Load(),
		ResultsRequests:     st.ResultsRequests.Load(),
		DetailsRequests:     st.DetailsRequests.Load(),
		CacheRequests:       st.CacheRequests.Load(),
		StatsRequests:       st.StatsRequests.Load(),
		HealthRequests:      st.HealthRequests.Load(),
		OtherRequests:       st.OtherRequests.Load(),
		CacheHits:           st.CacheHits.Load(),
		CacheMisses:         st.CacheMisses.Load(),
		DetailCacheHits:     st.DetailCacheHits.Load(),
		DetailCacheMisses:   st.DetailCacheMisses.Load(),
		DetailFetchFailures: st.DetailFetchFailures.Load(),
		UpstreamCalls:       st.UpstreamCalls.Load(),
		UpstreamErrors:      st.UpstreamErrors.Load(),
		WavesCompleted:      st.WavesCompleted.Load(),
		WavesDiscarded:      st.WavesDiscarded.Load(),
		WavesFailed:         st.WavesFailed.Load(),
		HotelsEnriched:      st.HotelsEnriched.Load(),
		RateLimitNormal:     st.RateLimitNormal.Load(),
		RateLimitCached:     st.RateLimitCached.Load(),
		RateLimitExceeded:   st.RateLimitExceeded.Load(),
		Status2xx:           st.Status2xx.Load(),
		Status4xx:           st.Status4xx.Load(),
		Status5xx:           st.Status5xx.Load(),
		TotalResponseTime:   st.totalResponseTime.Load(),
		ResponseCount:       st.responseCount.Load(),
		MinResponseTime:     st.minResponseTime.Load(),
		MaxResponseTime:     st.maxResponseTime.Load(),
		SearchResponseTime:  st.searchResponseTime.Load(),
		SearchResponseCount: st.searchResponseCount.Load(),
		Outcomes:            st.OutcomeSnapshot(),
		LastSaved:           time.Now(),
		FirstStarted:        st.StartTime,
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})

	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}

	return nil
}

// StartAutoSave begins periodic saving of stats
func (s *Store) StartAutoSave(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close saves stats and closes the database
func (s *Store) Close() error {
	// Signal auto-save goroutine to stop
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()

	// Final save before closing
	if err := s.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}

	return s.db.Close()
}
