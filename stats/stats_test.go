package stats

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordRequest(t *testing.T) {
	s := New()
	for _, endpoint := range []string{
		"/api/search", "/api/search", "/api/sessions/{id}/results", "/api/hotels/details",
		"/cache/backup", "/stats", "/health", "/metrics",
	} {
		s.RecordRequest(endpoint)
	}

	tests := []struct {
		name     string
		got      int64
		expected int64
	}{
		{"total", s.TotalRequests.Load(), 8},
		{"search", s.SearchRequests.Load(), 2},
		{"results", s.ResultsRequests.Load(), 1},
		{"details", s.DetailsRequests.Load(), 1},
		{"cache", s.CacheRequests.Load(), 1},
		{"stats", s.StatsRequests.Load(), 1},
		{"health", s.HealthRequests.Load(), 1},
		{"other", s.OtherRequests.Load(), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, tt.got)
			}
		})
	}
}

func TestCacheHitRate(t *testing.T) {
	s := New()
	if s.CacheHitRate() != 0 {
		t.Error("Expected 0 hit rate with no lookups")
	}

	s.ObserveCache(true)
	s.ObserveCache(true)
	s.ObserveCache(true)
	s.ObserveCache(false)

	if got := s.CacheHitRate(); got != 75 {
		t.Errorf("Expected 75%% hit rate, got %v", got)
	}
}

func TestPipelineObservers(t *testing.T) {
	s := New()
	s.ObserveUpstream("primary", time.Second, nil)
	s.ObserveUpstream("refundable", time.Second, errors.New("boom"))
	s.ObserveOutcome("OK")
	s.ObserveOutcome("OK")
	s.ObserveOutcome("TIMEOUT")
	s.DetailCacheHit()
	s.DetailCacheMiss()
	s.DetailFetchFailed()
	s.WaveCompleted(80, 10)
	s.WaveDiscarded()
	s.WaveFailed()

	if s.UpstreamCalls.Load() != 2 || s.UpstreamErrors.Load() != 1 {
		t.Errorf("Unexpected upstream counters %d/%d", s.UpstreamCalls.Load(), s.UpstreamErrors.Load())
	}
	outcomes := s.OutcomeSnapshot()
	if outcomes["OK"] != 2 || outcomes["TIMEOUT"] != 1 {
		t.Errorf("Unexpected outcomes %v", outcomes)
	}
	if s.DetailCacheHitRate() != 50 {
		t.Errorf("Expected 50%% detail hit rate, got %v", s.DetailCacheHitRate())
	}
	if s.WavesCompleted.Load() != 1 || s.HotelsEnriched.Load() != 10 || s.WavesDiscarded.Load() != 1 || s.WavesFailed.Load() != 1 {
		t.Error("Unexpected wave counters")
	}
}

func TestRecordStatusCodeAndRateLimit(t *testing.T) {
	s := New()
	for _, code := range []int{200, 204, 404, 429, 502, 504} {
		s.RecordStatusCode(code)
	}
	s.RecordRateLimit("normal")
	s.RecordRateLimit("cached")
	s.RecordRateLimit("exceeded")
	s.RecordRateLimit("unknown")

	if s.Status2xx.Load() != 2 || s.Status4xx.Load() != 2 || s.Status5xx.Load() != 2 {
		t.Errorf("Unexpected status counters %d/%d/%d", s.Status2xx.Load(), s.Status4xx.Load(), s.Status5xx.Load())
	}
	if s.RateLimitNormal.Load() != 1 || s.RateLimitCached.Load() != 1 || s.RateLimitExceeded.Load() != 1 {
		t.Error("Unexpected rate limit counters")
	}
}

func TestResponseTimes(t *testing.T) {
	s := New()
	if s.MinResponseTime() != 0 || s.AvgResponseTime() != 0 {
		t.Error("Expected zero response times initially")
	}

	s.RecordResponseTime(10*time.Millisecond, "/api/search")
	s.RecordResponseTime(30*time.Millisecond, "/api/search")
	s.RecordResponseTime(2*time.Millisecond, "/health")

	if got := s.MinResponseTime(); got != 2*time.Millisecond {
		t.Errorf("Expected min 2ms, got %v", got)
	}
	if got := s.MaxResponseTime(); got != 30*time.Millisecond {
		t.Errorf("Expected max 30ms, got %v", got)
	}
	if got := s.AvgResponseTime(); got != 14*time.Millisecond {
		t.Errorf("Expected avg 14ms, got %v", got)
	}
	if got := s.AvgSearchResponseTime(); got != 20*time.Millisecond {
		t.Errorf("Expected search avg 20ms, got %v", got)
	}
}

func TestSnapshotShape(t *testing.T) {
	s := New()
	s.ObserveOutcome("NO_RATES")
	snap := s.Snapshot()

	for _, key := range []string{"server", "requests", "cache", "detail_cache", "upstream", "searches", "enrichment", "rate_limiting", "responses", "response_times"} {
		if _, ok := snap[key]; !ok {
			t.Errorf("Expected snapshot key %q", key)
		}
	}
	searches := snap["searches"].([]map[string]interface{})
	if len(searches) != 1 || searches[0]["code"] != "NO_RATES" {
		t.Errorf("Unexpected searches %v", searches)
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stats.db")

	original := New()
	original.RecordRequest("/api/search")
	original.ObserveCache(true)
	original.ObserveOutcome("OK")
	original.WaveCompleted(80, 4)
	original.RecordResponseTime(5*time.Millisecond, "/api/search")

	store, err := NewStore(path, original)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Save(); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	restored := New()
	store, err = NewStore(path, restored)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()

	if err := store.Load(); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if restored.SearchRequests.Load() != 1 || restored.CacheHits.Load() != 1 || restored.HotelsEnriched.Load() != 4 {
		t.Error("Expected counters to be restored")
	}
	if restored.OutcomeSnapshot()["OK"] != 1 {
		t.Error("Expected outcomes to be restored")
	}
	if restored.MinResponseTime() != 5*time.Millisecond {
		t.Errorf("Expected min response time restored, got %v", restored.MinResponseTime())
	}
	if !restored.StartTime.Equal(original.StartTime) {
		t.Errorf("Expected first start time %v, got %v", original.StartTime, restored.StartTime)
	}
}

func TestStoreLoadEmpty(t *testing.T) {
	s := New()
	store, err := NewStore(filepath.Join(t.TempDir(), "stats.db"), s)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if err := store.Load(); err != nil {
		t.Fatalf("Expected empty load to succeed, got %v", err)
	}
	if s.TotalRequests.Load() != 0 {
		t.Error("Expected counters to stay at zero")
	}
}

func TestStoreAutoSave(t *testing.T) {
	s := New()
	path := filepath.Join(t.TempDir(), "stats.db")
	store, err := NewStore(path, s)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	store.StartAutoSave(10 * time.Millisecond)
	s.RecordRequest("/health")
	time.Sleep(50 * time.Millisecond)
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	restored := New()
	store, err = NewStore(path, restored)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer store.Close()
	if err := store.Load(); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if restored.HealthRequests.Load() != 1 {
		t.Error("Expected auto-saved counter")
	}
}
