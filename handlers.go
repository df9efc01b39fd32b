package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hotel-search-go/cache"
	"hotel-search-go/logcolors"
	"hotel-search-go/models"
	"hotel-search-go/services/enrichment"
	"hotel-search-go/services/filtersort"
	"hotel-search-go/services/pricing"
	"hotel-search-go/services/search"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// errCacheOnlyMiss is returned when a rate-limited client asks for a search that is not cached.
var errCacheOnlyMiss = errors.New("search result not cached")

func (s *server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		Respond(w, r).Error(http.StatusBadRequest, string(search.CodeInvalidParams), "Request body must be a JSON search request")
		return
	}
	if body.Timeout == nil && s.conf.Configuration.DefaultTimeoutInSeconds > 0 {
		t := float64(s.conf.Configuration.DefaultTimeoutInSeconds)
		body.Timeout = &t
	}

	q, err := search.NewQuery(body.Request)
	if err != nil {
		Respond(w, r).SearchError(err)
		return
	}

	inputs := s.resolver.Resolve(r.Header.Get("X-Channel"))
	resp := Respond(w, r).SetPricing(inputs)
	cacheOnly, _ := r.Context().Value(cacheOnlyModeKey).(bool)

	primary, err := s.runSearch(r.Context(), q, inputs, cacheOnly)
	if err != nil {
		resp.SetCacheStatus("MISS")
		if errors.Is(err, errCacheOnlyMiss) {
			s.metrics.IncRateLimitDrops("cached")
			resp.Error(http.StatusTooManyRequests, codeRateLimited, "Rate limit reached, only cached searches can be served")
			return
		}
		resp.SearchError(err)
		return
	}

	var secondary *search.Payload
	if body.ShowAllProperties && q.HasQualityFilters() {
		out, err := s.runSearch(r.Context(), q.WithoutQualityFilters(), inputs, cacheOnly)
		if err != nil {
			log.Warnf("%s Unfiltered search for %q failed: %v", logcolors.LogSearch, q.LocationID(), err)
		} else {
			secondary = out.Payload
		}
	}

	sessionID := r.Header.Get("X-Session-Id")
	if sessionID == "" {
		sessionID = body.SessionID
	}
	session := s.sessions.GetOrCreate(sessionID)
	session.Supersede(enrichment.Search{
		Primary:   primary.Payload,
		Secondary: secondary,
		Language:  q.Language(),
	})
	snap := session.Snapshot()

	criteria := filtersort.Criteria{
		SortOrder:      filtersort.ParseSortOrder(body.SortOrder),
		MinPrice:       body.MinPrice,
		MaxPrice:       body.MaxPrice,
		Name:           body.Name,
		RefundableOnly: body.RefundableOnly,
	}

	if primary.CacheHit {
		resp.SetCacheStatus("HIT")
	} else {
		resp.SetCacheStatus("MISS")
	}
	w.Header().Set("X-Session-Id", session.ID())
	resp.JSON(SearchResponse{
		Payload:   primary.Payload,
		SessionID: session.ID(),
		Channel:   inputs.Channel,
		Segments:  buildSegments(primary.Payload, secondary, snap.Details, criteria),
	})
}

// runSearch serves q from the full pipeline, or from the result cache alone for clients on
// the cached rate limit tier.
func (s *server) runSearch(ctx context.Context, q search.Query, in pricing.Inputs, cacheOnly bool) (search.Outcome, error) {
	if !cacheOnly {
		return s.search.Search(ctx, q, in)
	}
	out, ok := s.search.Lookup(q, in)
	s.obs.ObserveCache(ok)
	if !ok {
		return out, errCacheOnlyMiss
	}
	return out, nil
}

// buildSegments applies c to the primary hotels and to the secondary-only remainder, using
// details as the shared detail index.
func buildSegments(primary, secondary *search.Payload, details map[string]models.HotelDetail, c filtersort.Criteria) filtersort.Segments {
	var (
		primaryHotels, secondaryHotels []models.Hotel
		primaryIdx, secondaryIdx       = filtersort.Indices{Details: details}, filtersort.Indices{Details: details}
	)
	if primary != nil {
		primaryHotels = primary.Hotels
		primaryIdx.Prices, primaryIdx.Refundable = primary.Prices, primary.Refundable
	}
	if secondary != nil {
		secondaryHotels = secondary.Hotels
		secondaryIdx.Prices, secondaryIdx.Refundable = secondary.Prices, secondary.Refundable
	}
	return filtersort.ApplyWithSecondary(primaryHotels, primaryIdx, secondaryHotels, secondaryIdx, c)
}

func (s *server) sessionResultsHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessions.Get(mux.Vars(r)["id"])
	if !ok {
		Respond(w, r).Error(http.StatusNotFound, codeNotFound, "Session not found or expired")
		return
	}

	criteria, err := criteriaFromQuery(r.URL.Query())
	if err != nil {
		Respond(w, r).Error(http.StatusBadRequest, string(search.CodeInvalidParams), err.Error())
		return
	}

	snap := session.Snapshot()
	segments := buildSegments(snap.Search.Primary, snap.Search.Secondary, snap.Details, criteria)
	Respond(w, r).JSON(ResultsResponse{
		SessionID: snap.ID,
		State:     snap.State,
		Done:      snap.Done,
		Total:     snap.Total,
		SortOrder: criteria.SortOrder,
		Hotels:    segments.Primary,
		Other:     segments.Secondary,
	})
}

// criteriaFromQuery reads sortOrder, minPrice, maxPrice, name and refundableOnly.
func criteriaFromQuery(v url.Values) (filtersort.Criteria, error) {
	c := filtersort.Criteria{
		SortOrder: filtersort.ParseSortOrder(v.Get("sortOrder")),
		Name:      v.Get("name"),
	}

	var err error
	if c.MinPrice, err = parsePrice(v.Get("minPrice")); err != nil {
		return c, fmt.Errorf("minPrice: %w", err)
	}
	if c.MaxPrice, err = parsePrice(v.Get("maxPrice")); err != nil {
		return c, fmt.Errorf("maxPrice: %w", err)
	}
	if raw := v.Get("refundableOnly"); raw != "" {
		if c.RefundableOnly, err = strconv.ParseBool(raw); err != nil {
			return c, fmt.Errorf("refundableOnly must be true or false")
		}
	}
	return c, nil
}

func parsePrice(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return nil, fmt.Errorf("must be a non-negative number")
	}
	return &f, nil
}

func (s *server) sessionStateHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessions.Get(mux.Vars(r)["id"])
	if !ok {
		Respond(w, r).Error(http.StatusNotFound, codeNotFound, "Session not found or expired")
		return
	}
	Respond(w, r).JSON(session.Snapshot())
}

func (s *server) hotelDetailsHandler(w http.ResponseWriter, r *http.Request) {
	var req DetailsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		Respond(w, r).Error(http.StatusBadRequest, string(search.CodeInvalidParams), "Request body must be JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		Respond(w, r).Error(http.StatusBadRequest, string(search.CodeInvalidParams), "hotelIds must list between 1 and 200 hotel ids")
		return
	}

	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = "en"
	}

	if cacheOnly, _ := r.Context().Value(cacheOnlyModeKey).(bool); cacheOnly {
		details := s.details.CachedBatch(req.HotelIDs, language)
		if len(details) == 0 {
			s.metrics.IncRateLimitDrops("cached")
			Respond(w, r).SetCacheStatus("MISS").Error(http.StatusTooManyRequests, codeRateLimited, "Rate limit reached, only cached hotel details can be served")
			return
		}
		Respond(w, r).SetCacheStatus("HIT").JSON(DetailsResponse{Details: details})
		return
	}

	details, err := s.details.FetchBatch(r.Context(), req.HotelIDs, language)
	if err != nil {
		Respond(w, r).SearchError(err)
		return
	}
	Respond(w, r).JSON(DetailsResponse{Details: details})
}

// authorized reports whether r carries the admin access token. Admin endpoints stay closed
// while no token is configured.
func (s *server) authorized(r *http.Request) bool {
	token := s.conf.Configuration.CacheAccessToken
	return token != "" && r.Header.Get("Authorization") == token
}

func (s *server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if s.authorized(r) {
		return true
	}
	Respond(w, r).Error(http.StatusUnauthorized, codeUnauthorized, "Unauthorized")
	return false
}

func (s *server) getStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	snapshot := s.stats.Snapshot()

	numKeys, sizeInKB := s.detailCache.Stats()
	snapshot["cache_storage"] = map[string]interface{}{
		"keys":    numKeys,
		"size_kb": sizeInKB,
		"size_mb": float64(sizeInKB) / 1024,
	}
	snapshot["result_cache"] = map[string]interface{}{
		"entries":     s.results.Len(),
		"ttl_seconds": s.results.TTL().Seconds(),
	}
	snapshot["sessions"] = s.sessions.Len()
	snapshot["circuit_breakers"] = s.providers.Breakers()

	Respond(w, r).JSON(snapshot)
}

func (s *server) getCacheDump(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	numKeys, sizeInKB := s.detailCache.Stats()
	dump := CacheDumpResponse{
		Results: ResultCacheInfo{
			Entries:    s.results.Len(),
			TTLSeconds: s.results.TTL().Seconds(),
			Performance: CachePerformance{
				Hits:    s.stats.CacheHits.Load(),
				Misses:  s.stats.CacheMisses.Load(),
				HitRate: s.stats.CacheHitRate(),
			},
		},
		Details: DetailCacheInfo{
			NumberOfKeys: numKeys,
			SizeInKB:     sizeInKB,
			SizeInMB:     float64(sizeInKB) / 1024,
			Performance: CachePerformance{
				Hits:    s.stats.DetailCacheHits.Load(),
				Misses:  s.stats.DetailCacheMisses.Load(),
				HitRate: s.stats.DetailCacheHitRate(),
			},
		},
	}

	if r.URL.Query().Get("entries") == "true" {
		dump.Details.Entries = make(map[string]cache.DetailEntry, numKeys)
		s.detailCache.Range(func(key string, entry cache.DetailEntry) bool {
			dump.Details.Entries[key] = entry
			return true
		})
	}

	Respond(w, r).JSON(dump)
}

func (s *server) backupCache(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	backupPath, err := s.detailCache.Backup()
	if err != nil {
		log.Errorf("%s Failed to create backup: %v", logcolors.LogCacheBackup, err)
		Respond(w, r).Error(http.StatusInternalServerError, "BACKUP_FAILED", fmt.Sprintf("Failed to create backup: %v", err))
		return
	}

	log.Infof("%s Backup created successfully at: %s", logcolors.LogCacheBackup, backupPath)
	Respond(w, r).JSON(map[string]interface{}{
		"message":     "Backup created successfully",
		"backup_path": backupPath,
	})
}

// clearCache drops every cached search result and backs up then clears the detail cache.
func (s *server) clearCache(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	resultEntries := s.results.Len()
	s.results.Purge()

	backupPath, err := s.detailCache.BackupAndClear()
	if err != nil {
		log.Errorf("%s Failed to backup and clear cache: %v", logcolors.LogCacheClear, err)
		Respond(w, r).Error(http.StatusInternalServerError, "CLEAR_FAILED", fmt.Sprintf("Failed to backup and clear cache: %v", err))
		return
	}

	log.Infof("%s Cache cleared successfully, backup at: %s", logcolors.LogCacheClear, backupPath)
	Respond(w, r).JSON(map[string]interface{}{
		"message":         "Cache cleared successfully",
		"backup_path":     backupPath,
		"results_dropped": resultEntries,
	})
}

func (s *server) listBackups(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	backups, err := s.detailCache.ListBackups()
	if err != nil {
		log.Errorf("%s Failed to list backups: %v", logcolors.LogCacheBackups, err)
		Respond(w, r).Error(http.StatusInternalServerError, "BACKUP_LIST_FAILED", fmt.Sprintf("Failed to list backups: %v", err))
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"count":   len(backups),
		"backups": backups,
	})
}

func (s *server) restoreCache(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	backupFileName := r.URL.Query().Get("backup")
	if backupFileName == "" {
		Respond(w, r).Error(http.StatusBadRequest, string(search.CodeInvalidParams), "Missing 'backup' query parameter. Use /cache/backups to list available backups.")
		return
	}

	if err := s.detailCache.RestoreFromBackup(backupFileName); err != nil {
		log.Errorf("%s Failed to restore from backup %s: %v", logcolors.LogCacheRestore, backupFileName, err)
		Respond(w, r).Error(http.StatusInternalServerError, "RESTORE_FAILED", fmt.Sprintf("Failed to restore from backup: %v", err))
		return
	}

	numKeys, sizeKB := s.detailCache.Stats()
	log.Infof("%s Cache restored from backup: %s", logcolors.LogCacheRestore, backupFileName)
	Respond(w, r).JSON(map[string]interface{}{
		"message":       "Cache restored successfully",
		"restored_from": backupFileName,
		"keys_restored": numKeys,
		"size_kb":       sizeKB,
	})
}

func (s *server) getHealthStatus(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:   "ok",
		Uptime:   s.stats.Uptime().Round(time.Second).String(),
		Sessions: s.sessions.Len(),
		Breakers: s.providers.Breakers(),
	}
	if s.providers.AnyOpen() {
		health.Status = "degraded"
	}
	Respond(w, r).JSON(health)
}

func (s *server) getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"breakers": s.providers.Breakers(),
		"config": map[string]interface{}{
			"threshold":    s.conf.Configuration.CircuitBreakerThreshold,
			"cooldown_sec": s.conf.Configuration.CircuitBreakerCooldownSecs,
		},
	})
}

// resetCircuitBreaker closes one breaker (?name=rates) or all of them.
func (s *server) resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	names := s.providers.List()
	if name := r.URL.Query().Get("name"); name != "" {
		names = []string{name}
	}

	for _, name := range names {
		p, err := s.providers.Get(name)
		if err != nil {
			Respond(w, r).Error(http.StatusNotFound, codeNotFound, err.Error())
			return
		}
		p.Breaker().Reset()
	}

	Respond(w, r).JSON(map[string]interface{}{
		"message": "Circuit breaker reset to CLOSED state",
		"reset":   names,
	})
}
