package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
)

// ResponseMeta contains metadata for API responses.
type ResponseMeta struct {
	RequestID string `json:"request_id"`
	LatencyMS int64  `json:"latency_ms"`
	Timestamp string `json:"timestamp"`
}

// Envelope wraps successful /v1 JSON responses.
type Envelope struct {
	Data json.RawMessage `json:"data"`
	Meta ResponseMeta    `json:"meta"`
}

// bufferedWriter holds the response until the envelope is built.
type bufferedWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (rw *bufferedWriter) WriteHeader(code int) { rw.status = code }

func (rw *bufferedWriter) Write(b []byte) (int, error) { return rw.body.Write(b) }

// withRequestID propagates or assigns an X-Request-ID and stores it in the
// request context for logging.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}

// withEnvelope wraps successful JSON responses of /v1 endpoints in
// {data, meta}. Errors and non JSON bodies pass through.
func withEnvelope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		body := bytes.TrimSpace(rw.body.Bytes())
		if rw.status >= 400 || len(body) == 0 || !json.Valid(body) {
			w.WriteHeader(rw.status)
			_, _ = w.Write(rw.body.Bytes())
			return
		}

		id, _ := r.Context().Value(logger.RequestIDKey).(string)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rw.status)
		_ = json.NewEncoder(w).Encode(Envelope{
			Data: body,
			Meta: ResponseMeta{
				RequestID: id,
				LatencyMS: time.Since(start).Milliseconds(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
