package middleware

import (
	"fmt"
	"net/http/httptest"
	"testing"
)

func TestNewTrustedProxies(t *testing.T) {
	tests := []struct {
		name      string
		entries   []string
		expectLen int
		expectErr bool
	}{
		{"empty", nil, 0, false},
		{"blank entries skipped", []string{"", "  "}, 0, false},
		{"single address and range", []string{"10.0.0.1", "192.168.0.0/16"}, 2, false},
		{"ipv6 range", []string{"fd00::/8"}, 1, false},
		{"bad address", []string{"proxy.internal"}, 0, true},
		{"bad range", []string{"10.0.0.0/40"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, err := NewTrustedProxies(tt.entries)
			if tt.expectErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tp.Len() != tt.expectLen {
				t.Errorf("Expected %d ranges, got %d", tt.expectLen, tp.Len())
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	proxies, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := []struct {
		name       string
		proxies    *TrustedProxies
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{"Remote address", nil, "203.0.113.7:5555", nil, "203.0.113.7"},
		{"Address without port", nil, "203.0.113.8", nil, "203.0.113.8"},
		{"Headers ignored without trusted proxies", nil, "203.0.113.9:5555",
			map[string]string{"X-Forwarded-For": "198.51.100.1", "X-Real-IP": "198.51.100.2"}, "203.0.113.9"},
		{"Headers ignored from untrusted peer", proxies, "203.0.113.9:5555",
			map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.9"},
		{"Trusted peer, single hop", proxies, "10.0.0.1:80",
			map[string]string{"X-Forwarded-For": "198.51.100.1"}, "198.51.100.1"},
		{"Trusted peer, spoofed left hops", proxies, "10.0.0.1:80",
			map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.1, 10.0.0.2"}, "198.51.100.1"},
		{"Trusted peer, every hop trusted", proxies, "10.0.0.1:80",
			map[string]string{"X-Forwarded-For": "10.0.0.3, 10.0.0.2"}, "10.0.0.3"},
		{"Trusted peer, garbage hop", proxies, "10.0.0.1:80",
			map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.1"},
		{"Trusted peer, real IP header", proxies, "10.0.0.1:80",
			map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := tt.proxies.ClientIP(req); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestClientIP_RotatedForwardedForSharesBucket(t *testing.T) {
	rl := NewIPRateLimiter(1, 1, 1, 1)
	var proxies *TrustedProxies

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rl.GetLimiter(proxies.ClientIP(req))
	}

	if rl.Len() != 1 {
		t.Errorf("Expected rotated X-Forwarded-For values to share one bucket, got %d", rl.Len())
	}
}
