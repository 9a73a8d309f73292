package infrastructure

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIPResolver(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "172.16.0.5"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies() error = %v", err)
	}
	resolver := NewClientIPResolver(trusted)

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:    "forwarded header from untrusted peer is ignored",
			headers: map[string]string{"X-Forwarded-For": "52.89.214.238"},
			remote:  "6.6.6.6:4444",
			want:    "6.6.6.6",
		},
		{
			name:    "real ip header from untrusted peer is ignored",
			headers: map[string]string{"X-Real-Ip": "52.89.214.238"},
			remote:  "6.6.6.6:4444",
			want:    "6.6.6.6",
		},
		{
			name:    "trusted proxy forwards the client",
			headers: map[string]string{"X-Forwarded-For": "52.89.214.238"},
			remote:  "10.1.2.3:1234",
			want:    "52.89.214.238",
		},
		{
			name:    "spoofed leftmost hop behind trusted proxy",
			headers: map[string]string{"X-Forwarded-For": "52.89.214.238, 6.6.6.6"},
			remote:  "10.1.2.3:1234",
			want:    "6.6.6.6",
		},
		{
			name:    "chain of trusted proxies",
			headers: map[string]string{"X-Forwarded-For": "34.212.75.30, 172.16.0.5"},
			remote:  "10.1.2.3:1234",
			want:    "34.212.75.30",
		},
		{
			name:    "trusted proxy without forwarded for uses real ip",
			headers: map[string]string{"X-Real-Ip": "54.218.53.128"},
			remote:  "172.16.0.5:80",
			want:    "54.218.53.128",
		},
		{
			name:    "malformed hop stops at the last valid address",
			headers: map[string]string{"X-Forwarded-For": "not-an-ip, 10.9.9.9"},
			remote:  "10.1.2.3:1234",
			want:    "10.9.9.9",
		},
		{
			name:   "socket peer",
			remote: "54.218.53.128:5555",
			want:   "54.218.53.128",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/webhook", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			if got := resolver.Resolve(r); got != tt.want {
				t.Fatalf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPWithoutTrustedProxies(t *testing.T) {
	var seen string
	server := NewHTTPServerWithConfig(HTTPServerConfig{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientIP(r)
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	r.RemoteAddr = "6.6.6.6:4444"
	r.Header.Set("X-Forwarded-For", "52.89.214.238")
	server.Handler().ServeHTTP(httptest.NewRecorder(), r)

	if seen != "6.6.6.6" {
		t.Fatalf("ClientIP() = %q, want the socket peer 6.6.6.6", seen)
	}
}

func TestParseTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := ParseTrustedProxies([]string{"10.0.0.0/8", "proxy.local"}); err == nil {
		t.Fatalf("ParseTrustedProxies() error = nil, want error for hostname")
	}
}

func TestIPRateLimiter(t *testing.T) {
	limiter := newIPRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if !limiter.allow("1.1.1.1") || !limiter.allow("1.1.1.1") {
		t.Fatalf("burst requests should be allowed")
	}
	if limiter.allow("1.1.1.1") {
		t.Fatalf("third request within burst window should be limited")
	}
	if !limiter.allow("2.2.2.2") {
		t.Fatalf("other ip should have its own bucket")
	}

	now = now.Add(time.Second)
	if !limiter.allow("1.1.1.1") {
		t.Fatalf("token should refill after one second")
	}

	now = now.Add(ipLimiterIdleTTL + time.Second)
	limiter.allow("3.3.3.3")
	if _, ok := limiter.limiters["2.2.2.2"]; ok {
		t.Fatalf("idle limiter should be evicted")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	server := NewHTTPServerWithConfig(HTTPServerConfig{RateLimit: 1, RateBurst: 1}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for range 2 {
		r := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		r.RemoteAddr = "52.89.214.238:443"
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("status codes = %v, want [200 429]", codes)
	}
}

func TestRateLimitIgnoresRotatedForwardedFor(t *testing.T) {
	server := NewHTTPServerWithConfig(HTTPServerConfig{RateLimit: 1, RateBurst: 1}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for _, forwarded := range []string{"1.1.1.1", "2.2.2.2"} {
		r := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		r.RemoteAddr = "6.6.6.6:4444"
		r.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("status codes = %v, want [200 429]", codes)
	}
}

func TestBackoffWithJitter(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	min, max := 100*time.Millisecond, time.Second

	for attempt := range 10 {
		got := backoffWithJitter(attempt, 2, min, max, rng)
		if got < min || got > max {
			t.Fatalf("attempt %d backoff %s outside [%s, %s]", attempt, got, min, max)
		}
	}

	if got := backoffWithJitter(3, 2, time.Second, time.Second, rng); got != time.Second {
		t.Fatalf("backoff with equal bounds = %s, want 1s", got)
	}
}
