package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPMiddleware(t *testing.T) {
	m := New()
	defer m.Close()

	// Create a test handler
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response"))
	})

	// Wrap with middleware
	wrapped := HTTPMiddleware(m, handler)

	// Create test request
	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	// Execute request
	wrapped.ServeHTTP(rec, req)

	// Verify response
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	// Verify metrics were recorded
	if m.HTTPRequests == nil {
		t.Fatal("HTTPRequests metric is nil")
	}

	if got := m.HTTPRequests.WithLabels("GET", "/test", "200").Value(); got != 1 {
		t.Errorf("expected 1 recorded request, got %d", got)
	}

	if m.HTTPRequestsInFlight.Value() != 0 {
		t.Errorf("expected in-flight requests to be 0, got %f", m.HTTPRequestsInFlight.Value())
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "static root",
			input:    "/",
			expected: "/",
		},
		{
			name:     "health endpoint",
			input:    "/healthz",
			expected: "/healthz",
		},
		{
			name:     "diff endpoint",
			input:    "/v1/diff",
			expected: "/v1/diff",
		},
		{
			name:     "node with id",
			input:    "/v1/nodes/42",
			expected: "/v1/nodes/{id}",
		},
		{
			name:     "file path",
			input:    "/v1/files/src/main.go",
			expected: "/v1/files/{path}",
		},
		{
			name:     "unknown path kept",
			input:    "/other",
			expected: "/other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizePath(tt.input)
			if result != tt.expected {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "200"},
		{201, "201"},
		{404, "404"},
		{500, "500"},
		{503, "503"},
		{150, "1xx"},
		{250, "2xx"},
		{350, "3xx"},
		{450, "4xx"},
		{550, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := statusCode(tt.code)
			if result != tt.expected {
				t.Errorf("statusCode(%d) = %q, want %q", tt.code, result, tt.expected)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := &responseWriter{
		ResponseWriter: rec,
		statusCode:     http.StatusOK,
	}

	// Test WriteHeader
	wrapped.WriteHeader(http.StatusCreated)
	if wrapped.statusCode != http.StatusCreated {
		t.Errorf("expected status 201, got %d", wrapped.statusCode)
	}

	// Test Write auto-calls WriteHeader
	wrapped2 := &responseWriter{
		ResponseWriter: httptest.NewRecorder(),
		statusCode:     http.StatusOK,
	}
	wrapped2.Write([]byte("test"))
	if !wrapped2.written {
		t.Error("expected written flag to be true")
	}
	if wrapped2.statusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", wrapped2.statusCode)
	}
}

func BenchmarkHTTPMiddleware(b *testing.B) {
	m := New()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := HTTPMiddleware(m, handler)

	req := httptest.NewRequest("GET", "/test", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
	}
}

func BenchmarkNormalizePath(b *testing.B) {
	paths := []string{
		"/v1/stores/default/search",
		"/admin/models/abc123/download",
		"/files/src/main.go",
		"/healthz",
		"/stores/mystore/files/src/utils/helper.go",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, path := range paths {
			_ = normalizePath(path)
		}
	}
}

func TestHandler(t *testing.T) {
	m := New()
	defer m.Close()
	m.RecordGeneration(1, 2, 0, nil)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hyperast_files_generated_total 1") {
		t.Errorf("unexpected body:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHistoryHandler(t *testing.T) {
	m := New()
	defer m.Close()
	m.RecordGeneration(1, 4, 0, nil)

	rec := httptest.NewRecorder()
	m.HistoryHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/metrics/history?series=generations&range=all", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result MetricQueryResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p := result.Series["generations"]; len(p) != 1 || p[0].Value != 4 {
		t.Errorf("unexpected generations series %+v", p)
	}

	rec = httptest.NewRecorder()
	m.HistoryHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/metrics/history?series=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown series, got %d", rec.Code)
	}
}
