package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func (s *server) setupRoutes(router *mux.Router) {
	// Search and progressive results
	router.HandleFunc("/api/search", s.searchHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/{id}/results", s.sessionResultsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions/{id}", s.sessionStateHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/hotels/details", s.hotelDetailsHandler).Methods(http.MethodPost)

	// Cache management endpoints
	router.HandleFunc("/cache", s.getCacheDump)
	router.HandleFunc("/cache/backup", s.backupCache)
	router.HandleFunc("/cache/backups", s.listBackups)
	router.HandleFunc("/cache/restore", s.restoreCache)
	router.HandleFunc("/cache/clear", s.clearCache)

	// Health, stats and metrics endpoints
	router.HandleFunc("/health", s.getHealthStatus)
	router.HandleFunc("/stats", s.getStats)
	router.Handle("/metrics", s.metrics.Handler())

	// Circuit breaker endpoints
	router.HandleFunc("/circuit-breaker", s.getCircuitBreakerStatus)
	router.HandleFunc("/circuit-breaker/reset", s.resetCircuitBreaker)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Respond(w, r).Error(http.StatusNotFound, codeNotFound, "No route for "+r.URL.Path)
	})
}
