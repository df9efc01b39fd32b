package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// HTTPObserver records request counts and latencies.
type HTTPObserver interface {
	ObserveHTTP(method, path, status string, seconds float64)
}

// MetricsMiddleware reports every request to obs, labelled by the matched route template
// so path variables like session ids do not explode label cardinality.
func MetricsMiddleware(obs HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewResponseRecorder(w)
			next.ServeHTTP(rec, r)
			obs.ObserveHTTP(r.Method, RouteTemplate(r), strconv.Itoa(rec.StatusCode), time.Since(start).Seconds())
		})
	}
}

// RouteTemplate returns the mux path template for r, or "unmatched" outside a route.
func RouteTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
