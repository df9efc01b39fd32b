package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAPIKeyMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		apiKey     string
		required   bool
		path       string
		header     string
		expectCode int
	}{
		{"Not required", "secret", false, "/api/search", "", http.StatusOK},
		{"Required but unconfigured", "", true, "/api/search", "", http.StatusOK},
		{"Public exact path", "secret", true, "/health", "", http.StatusOK},
		{"Public prefix path", "secret", true, "/metrics/extra", "", http.StatusOK},
		{"Missing key", "secret", true, "/api/search", "", http.StatusUnauthorized},
		{"Wrong key", "secret", true, "/api/search", "nope", http.StatusUnauthorized},
		{"Valid key", "secret", true, "/api/search", "secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyMiddleware(tt.apiKey, tt.required, []string{"/health", "/metrics*"})(ok)
			req := httptest.NewRequest("POST", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectCode {
				t.Errorf("Expected status %d, got %d", tt.expectCode, rec.Code)
			}
			if tt.expectCode == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), `"code":"UNAUTHORIZED"`) {
				t.Errorf("Expected UNAUTHORIZED error body, got %s", rec.Body.String())
			}
		})
	}
}
