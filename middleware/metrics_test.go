package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

type observedRequest struct {
	method, path, status string
}

type recordingHTTPObserver struct {
	mu   sync.Mutex
	seen []observedRequest
}

func (o *recordingHTTPObserver) ObserveHTTP(method, path, status string, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observedRequest{method, path, status})
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	obs := &recordingHTTPObserver{}
	router := mux.NewRouter()
	router.Use(MetricsMiddleware(obs))
	router.HandleFunc("/api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")

	req := httptest.NewRequest("GET", "/api/sessions/abc-123", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if len(obs.seen) != 1 {
		t.Fatalf("Expected 1 observation, got %d", len(obs.seen))
	}
	want := observedRequest{"GET", "/api/sessions/{id}", "404"}
	if obs.seen[0] != want {
		t.Errorf("Expected %+v, got %+v", want, obs.seen[0])
	}
}

func TestRouteTemplateOutsideRouter(t *testing.T) {
	req := httptest.NewRequest("GET", "/nowhere", nil)
	if got := RouteTemplate(req); got != "unmatched" {
		t.Errorf("Expected 'unmatched', got %q", got)
	}
}
