package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, rps float64, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: rps, Burst: burst, CleanupInterval: time.Minute})
	t.Cleanup(rl.Stop)
	return rl
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 2.5})
	defer rl.Stop()
	assert.Equal(t, 3, rl.burst)
	assert.Equal(t, 5*time.Minute, rl.idle)

	cfg := DefaultRateLimiterConfig()
	assert.Equal(t, 100.0, cfg.RequestsPerSecond)
	assert.Equal(t, 200, cfg.Burst)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := newLimiter(t, 2, 2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "clients have independent buckets")

	time.Sleep(600 * time.Millisecond)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := newLimiter(t, 10, 10)
	for i := range 5 {
		rl.Allow("10.0.0." + strconv.Itoa(i))
	}
	require.Equal(t, 5, rl.Clients())

	assert.Zero(t, rl.evict(time.Now().Add(-time.Hour)))
	assert.Equal(t, 5, rl.evict(time.Now().Add(time.Second)))
	assert.Zero(t, rl.Clients())
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := newLimiter(t, 1000, 1000)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				rl.Allow("client-" + strconv.Itoa(i))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, rl.Clients())
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := newLimiter(t, 1, 2)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"remote", "192.168.1.100:12345", nil, "192.168.1.100"},
		{"ipv6", "[2001:db8::1]:12345", nil, "2001:db8::1"},
		{"no port", "unix", nil, "unix"},
		{"forwarded", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.1, 198.51.100.1"}, "203.0.113.1"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "203.0.113.50"}, "203.0.113.50"},
		{"priority", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.1", "X-Real-IP": "203.0.113.50"}, "203.0.113.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientAddr(req))
		})
	}
}
