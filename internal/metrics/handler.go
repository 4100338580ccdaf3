package metrics

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
)

// Handler returns an HTTP handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			errors.WriteErrorWithStatus(w, http.StatusMethodNotAllowed, errors.InvalidRequestError("method not allowed"))
			return
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(m.PrometheusFormat()))
	})
}

// ServeHTTP implements http.Handler interface.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.Handler().ServeHTTP(w, r)
}

// HistoryHandler serves history series as JSON. The query parameters are
// preset, series (comma separated) and range.
func (m *Metrics) HistoryHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			errors.WriteErrorWithStatus(w, http.StatusMethodNotAllowed, errors.InvalidRequestError("method not allowed"))
			return
		}

		q := MetricQuery{
			PresetID:  r.URL.Query().Get("preset"),
			TimeRange: r.URL.Query().Get("range"),
		}
		if s := r.URL.Query().Get("series"); s != "" {
			q.Series = strings.Split(s, ",")
		}
		if q.PresetID == "" && len(q.Series) == 0 {
			q.PresetID = "diff_overview"
		}

		result, err := m.ExecuteQuery(q)
		if err != nil {
			errors.WriteError(w, errors.ValidationError(err.Error()))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	})
}
