package middleware

import (
	"hotel-search-go/logcolors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestGetStatusColor(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   string
	}{
		{"2xx", http.StatusOK, logcolors.Green},
		{"3xx", http.StatusNotModified, logcolors.Cyan},
		{"4xx", http.StatusTooManyRequests, logcolors.Yellow},
		{"5xx", http.StatusBadGateway, logcolors.Red},
		{"1xx", http.StatusContinue, logcolors.Reset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getStatusColor(tt.statusCode); got != tt.expected {
				t.Errorf("getStatusColor(%d) = %q, expected %q", tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestResponseRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := NewResponseRecorder(w)

	if rec.StatusCode != http.StatusOK {
		t.Errorf("Expected default status code %d, got %d", http.StatusOK, rec.StatusCode)
	}

	rec.WriteHeader(http.StatusNotFound)
	rec.Write([]byte(`{"error":`))
	rec.Write([]byte(`{"code":"NOT_FOUND"}}`))

	if rec.StatusCode != http.StatusNotFound || w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 recorded and forwarded, got %d and %d", rec.StatusCode, w.Code)
	}
	if expected := len(`{"error":{"code":"NOT_FOUND"}}`); rec.BodySize != expected {
		t.Errorf("Expected body size %d, got %d", expected, rec.BodySize)
	}
	if w.Body.String() != `{"error":{"code":"NOT_FOUND"}}` {
		t.Errorf("Expected body to pass through, got %q", w.Body.String())
	}
}

// captureLog routes the standard logger into a test hook for the duration of the test.
func captureLog(t *testing.T) *logtest.Hook {
	t.Helper()
	hook := logtest.NewGlobal()
	level := log.GetLevel()
	log.SetLevel(log.InfoLevel)
	t.Cleanup(func() {
		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
		log.SetLevel(level)
	})
	return hook
}

func TestLoggingMiddleware_Fields(t *testing.T) {
	proxies, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := []struct {
		name       string
		proxies    *TrustedProxies
		remoteAddr string
		forwarded  string
		status     int
		body       string
		expectIP   string
	}{
		{"direct client", nil, "203.0.113.7:4000", "", http.StatusOK, `{"hotels":[]}`, "203.0.113.7"},
		{"spoofed header ignored", nil, "203.0.113.7:4000", "198.51.100.1", http.StatusTooManyRequests, "", "203.0.113.7"},
		{"behind trusted proxy", proxies, "10.1.2.3:80", "198.51.100.1", http.StatusCreated, "ok", "198.51.100.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook := captureLog(t)

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			req := httptest.NewRequest("POST", "/api/search?x=1", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			rec := httptest.NewRecorder()
			LoggingMiddleware(tt.proxies)(handler).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}

			entry := hook.LastEntry()
			if entry == nil {
				t.Fatal("Expected a log entry")
			}
			if entry.Data["ip"] != tt.expectIP {
				t.Errorf("Expected ip %q, got %v", tt.expectIP, entry.Data["ip"])
			}
			if entry.Data["bytes"] != len(tt.body) {
				t.Errorf("Expected bytes %d, got %v", len(tt.body), entry.Data["bytes"])
			}
			if entry.Data["request_id"] != rec.Header().Get(RequestIDHeader) {
				t.Errorf("Expected logged request id to match header, got %v", entry.Data["request_id"])
			}
			if !strings.Contains(entry.Message, "POST /api/search?x=1") {
				t.Errorf("Expected method and URI in message, got %q", entry.Message)
			}
		})
	}
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	captureLog(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	middleware := LoggingMiddleware(nil)(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, req)

	generated := rec.Header().Get(RequestIDHeader)
	if generated == "" {
		t.Error("Expected a generated request id header")
	}

	rec = httptest.NewRecorder()
	middleware.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))
	if rec.Header().Get(RequestIDHeader) == generated {
		t.Error("Expected a fresh id per request")
	}

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	rec = httptest.NewRecorder()
	middleware.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "upstream-id" {
		t.Errorf("Expected incoming request id to be kept, got %q", got)
	}
}
